package engine

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// RequestIDGenerator produces request ids. Every Submit or Enqueue gets
// one, and journal entries are correlated by it.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type RequestIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 request ids.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined request ids for tests and
// scenario runs. It panics once the ids are exhausted.
type FixedGenerator struct {
	mu     sync.Mutex
	tokens []string
	idx    int
}

// NewFixedGenerator creates a generator that returns tokens in order.
func NewFixedGenerator(tokens ...string) *FixedGenerator {
	return &FixedGenerator{tokens: tokens}
}

// Generate returns the next predetermined id.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.tokens) {
		panic("FixedGenerator: all tokens exhausted")
	}
	token := g.tokens[g.idx]
	g.idx++
	return token
}

// SequenceGenerator returns prefix-1, prefix-2, ... without limit.
type SequenceGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceGenerator creates a SequenceGenerator.
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	return &SequenceGenerator{prefix: prefix}
}

// Generate returns the next id.
func (g *SequenceGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// querySeparator joins a request id and a query ordinal.
const querySeparator = "/"

// queryIDs derives staking query ids from the running operation's request
// id: "<request>/1", "<request>/2", ... It is only used from the Run
// goroutine.
type queryIDs struct {
	mu      sync.Mutex
	request string
	n       int
}

func (q *queryIDs) begin(requestID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.request = requestID
	q.n = 0
}

func (q *queryIDs) Generate() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.n++
	return fmt.Sprintf("%s%s%d", q.request, querySeparator, q.n)
}

// RequestOfQuery returns the request id a query id was derived from, or
// "" when queryID has no request prefix.
func RequestOfQuery(queryID string) string {
	i := strings.LastIndex(queryID, querySeparator)
	if i <= 0 {
		return ""
	}
	return queryID[:i]
}
