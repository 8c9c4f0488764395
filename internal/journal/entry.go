package journal

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/idocore/internal/ido"
)

// DomainOperation is the hash domain of entry ids.
// The version suffix leaves room for a future algorithm change.
const DomainOperation = "idocore/operation/v1"

// Outcomes recorded on an entry.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Entry is one executed operation.
type Entry struct {
	// ID is the content-addressed identity of the operation.
	ID string `json:"id"`

	// Seq is the engine's logical clock value when the operation ran.
	Seq int64 `json:"seq"`

	// RequestID correlates the entry with the request that caused it.
	RequestID string `json:"request_id"`

	// Kind names the operation, e.g. "commit".
	Kind string `json:"kind"`

	ProjectID ido.ProjectID `json:"project_id,omitempty"`
	Account   string        `json:"account,omitempty"`

	// Args is the canonical JSON of the operation's arguments.
	Args json.RawMessage `json:"args"`

	// Outcome is OutcomeOK or OutcomeError.
	Outcome   string          `json:"outcome"`
	ErrorCode string          `json:"error_code,omitempty"`
	Message   string          `json:"message,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`

	// At is the operation's effective time. It is not part of the id.
	At time.Time `json:"at"`
}

// New builds an entry for an operation that is about to run.
func New(seq int64, requestID, kind string, args any, at time.Time) (Entry, error) {
	canonical, err := MarshalCanonical(args)
	if err != nil {
		return Entry{}, fmt.Errorf("canonicalize %s args: %w", kind, err)
	}
	id, err := EntryID(requestID, kind, canonical, seq)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		ID:        id,
		Seq:       seq,
		RequestID: requestID,
		Kind:      kind,
		Args:      canonical,
		At:        at.UTC(),
	}, nil
}

// Complete records the outcome of the operation on e.
func (e *Entry) Complete(result any, opErr error) error {
	if opErr != nil {
		e.Outcome = OutcomeError
		e.ErrorCode = string(ido.CodeOf(opErr))
		e.Message = opErr.Error()
		e.Result = nil
		return nil
	}
	e.Outcome = OutcomeOK
	e.ErrorCode = ""
	e.Message = ""
	if result == nil {
		return nil
	}
	canonical, err := MarshalCanonical(result)
	if err != nil {
		return fmt.Errorf("canonicalize %s result: %w", e.Kind, err)
	}
	e.Result = canonical
	return nil
}

// Summary renders the entry as a single stable line, e.g.
// "3 commit ok" or "4 commit error NOT_IN_PERIOD".
func (e Entry) Summary() string {
	if e.Outcome == OutcomeError {
		code := e.ErrorCode
		if code == "" {
			code = "INTERNAL"
		}
		return fmt.Sprintf("%d %s error %s", e.Seq, e.Kind, code)
	}
	return fmt.Sprintf("%d %s %s", e.Seq, e.Kind, e.Outcome)
}

// EntryID computes the content-addressed id of an operation.
// canonicalArgs must already be canonical JSON.
func EntryID(requestID, kind string, canonicalArgs []byte, seq int64) (string, error) {
	obj := map[string]any{
		"request_id": requestID,
		"kind":       kind,
		"args":       json.RawMessage(canonicalArgs),
		"seq":        seq,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("EntryID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainOperation, canonical), nil
}

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Filter selects journal entries. Zero fields match everything.
type Filter struct {
	RequestID string
	ProjectID ido.ProjectID
	AfterSeq  int64
	Limit     int
}

// Match reports whether e passes f, ignoring Limit.
func (f Filter) Match(e Entry) bool {
	if f.RequestID != "" && e.RequestID != f.RequestID {
		return false
	}
	if f.ProjectID != 0 && e.ProjectID != f.ProjectID {
		return false
	}
	return e.Seq > f.AfterSeq
}
