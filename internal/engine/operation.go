package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/roach88/idocore/internal/allocation"
	"github.com/roach88/idocore/internal/ido"
)

// Env is what an operation runs against.
type Env struct {
	Service *allocation.Service
	// Now is the operation's effective time. It is journaled with the
	// entry and reused on replay.
	Now time.Time
}

// Operation is one journaled mutation. Its JSON encoding is its argument
// list; Decode reverses it by kind.
type Operation interface {
	// Kind names the operation in the journal, e.g. "commit".
	Kind() string
	// Target returns the project and account the operation is about.
	// Either may be zero.
	Target() (ido.ProjectID, string)
	// Apply executes the operation. The result must encode to a JSON
	// object or array.
	Apply(ctx context.Context, env Env) (any, error)
}

var registry = map[string]func() Operation{}

func register(kind string, newOp func() Operation) {
	if _, dup := registry[kind]; dup {
		panic(fmt.Sprintf("engine: duplicate operation kind %q", kind))
	}
	registry[kind] = newOp
}

// Kinds lists the registered operation kinds in lexical order.
func Kinds() []string {
	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Decode rebuilds an operation from its kind and JSON arguments.
// Unknown fields are rejected.
func Decode(kind string, args []byte) (Operation, error) {
	newOp, ok := registry[kind]
	if !ok {
		return nil, ido.NewInvalidArgument("kind", fmt.Sprintf("unknown operation kind %q", kind))
	}
	op := newOp()
	dec := json.NewDecoder(bytes.NewReader(args))
	dec.DisallowUnknownFields()
	if err := dec.Decode(op); err != nil {
		return nil, ido.NewInvalidArgument("args", fmt.Sprintf("decode %s args: %v", kind, err))
	}
	return op, nil
}
