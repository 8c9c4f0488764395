package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/idocore/internal/ido"
	"github.com/roach88/idocore/internal/journal"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Journal holds every entry the scenario produced, in seq order.
	Journal []journal.Entry `json:"journal"`

	// Projects maps spec project names to their assigned ids.
	Projects map[string]ido.ProjectID `json:"projects"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Journal:  []journal.Entry{},
		Projects: make(map[string]ido.ProjectID),
		Errors:   []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// TraceLine renders one entry as "<request id> <summary>", e.g.
// "req-4 5 resolve error INSUFFICIENT_BALANCE".
func TraceLine(e journal.Entry) string {
	return fmt.Sprintf("%s %s", e.RequestID, e.Summary())
}

// Trace renders the journal one TraceLine per line.
func (r *Result) Trace() string {
	var b strings.Builder
	for _, e := range r.Journal {
		b.WriteString(TraceLine(e))
		b.WriteByte('\n')
	}
	return b.String()
}
