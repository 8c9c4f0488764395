// Package memory is an in-memory store.Store.
//
// Update works on a copy of the whole state and swaps it in only when the
// callback succeeds, which gives the same all-or-nothing behaviour as the
// SQL backends. It is meant for tests, replay and single-process demos.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/roach88/idocore/internal/ido"
	"github.com/roach88/idocore/internal/journal"
	"github.com/roach88/idocore/internal/store"
)

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu      sync.RWMutex
	state   *state
	journal []journal.Entry
	ids     map[string]bool
	seqs    map[int64]bool
}

var _ store.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{state: newState(), ids: make(map[string]bool), seqs: make(map[int64]bool)}
}

// accountKey addresses a per-project account row, the same
// (project_id, account) key the SQL stores use.
type accountKey struct {
	project ido.ProjectID
	account string
}

type ticketKey struct {
	project ido.ProjectID
	id      uint64
}

type state struct {
	lastID   ido.ProjectID
	projects map[ido.ProjectID]*ido.Project
	roster   map[accountKey]bool
	accounts map[accountKey]*ido.ProjectAccount
	tickets  map[ticketKey]ido.Ticket
}

func newState() *state {
	return &state{
		projects: make(map[ido.ProjectID]*ido.Project),
		roster:   make(map[accountKey]bool),
		accounts: make(map[accountKey]*ido.ProjectAccount),
		tickets:  make(map[ticketKey]ido.Ticket),
	}
}

func (s *state) clone() *state {
	c := newState()
	c.lastID = s.lastID
	for id, p := range s.projects {
		c.projects[id] = p.Clone()
	}
	for k := range s.roster {
		c.roster[k] = true
	}
	for k, a := range s.accounts {
		c.accounts[k] = a.Clone()
	}
	for k, tk := range s.tickets {
		c.tickets[k] = tk
	}
	return c
}

// Update runs fn against a private copy of the state and keeps the copy
// only if fn succeeds.
func (s *Store) Update(_ context.Context, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	if err := fn(&tx{st: working}); err != nil {
		return err
	}
	s.state = working
	return nil
}

// View runs fn against the current state.
func (s *Store) View(_ context.Context, fn func(tx store.ReadTx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&tx{st: s.state})
}

// AppendJournal records an entry.
func (s *Store) AppendJournal(_ context.Context, e journal.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ids[e.ID] || s.seqs[e.Seq] {
		return store.ErrDuplicateKey
	}
	s.journal = append(s.journal, e)
	s.ids[e.ID] = true
	s.seqs[e.Seq] = true
	sort.SliceStable(s.journal, func(i, j int) bool { return s.journal[i].Seq < s.journal[j].Seq })
	return nil
}

// ReadJournal returns matching entries ordered by seq.
func (s *Store) ReadJournal(_ context.Context, f journal.Filter) ([]journal.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []journal.Entry{}
	for _, e := range s.journal {
		if !f.Match(e) {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

// JournalHead returns the highest seq recorded.
func (s *Store) JournalHead(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.journal) == 0 {
		return 0, nil
	}
	return s.journal[len(s.journal)-1].Seq, nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
