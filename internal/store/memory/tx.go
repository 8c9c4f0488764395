package memory

import (
	"context"
	"sort"

	"github.com/roach88/idocore/internal/ido"
	"github.com/roach88/idocore/internal/store"
)

type tx struct {
	st *state
}

func (t *tx) GetProject(_ context.Context, id ido.ProjectID) (*ido.Project, error) {
	p, ok := t.st.projects[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return p.Clone(), nil
}

func (t *tx) ListProjects(_ context.Context, f store.ProjectFilter) ([]*ido.Project, error) {
	ids := make([]ido.ProjectID, 0, len(t.st.projects))
	for id, p := range t.st.projects {
		if f.Status != nil && p.Status != *f.Status {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := []*ido.Project{}
	for i, id := range ids {
		if i < f.Offset {
			continue
		}
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
		out = append(out, t.st.projects[id].Clone())
	}
	return out, nil
}

func (t *tx) GetAccount(_ context.Context, id ido.ProjectID, account string) (*ido.ProjectAccount, error) {
	a, ok := t.st.accounts[accountKey{id, account}]
	if !ok {
		return nil, store.ErrNotFound
	}
	return a.Clone(), nil
}

func (t *tx) ListAccounts(_ context.Context, id ido.ProjectID) ([]*ido.ProjectAccount, error) {
	out := []*ido.ProjectAccount{}
	for k, a := range t.st.accounts {
		if k.project == id {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Account < out[j].Account })
	return out, nil
}

func (t *tx) InRoster(_ context.Context, id ido.ProjectID, account string) (bool, error) {
	return t.st.roster[accountKey{id, account}], nil
}

func (t *tx) RosterSize(_ context.Context, id ido.ProjectID) (int, error) {
	n := 0
	for k := range t.st.roster {
		if k.project == id {
			n++
		}
	}
	return n, nil
}

func (t *tx) ListTickets(_ context.Context, id ido.ProjectID) ([]ido.Ticket, error) {
	out := []ido.Ticket{}
	for k, tk := range t.st.tickets {
		if k.project == id {
			out = append(out, tk)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) CreateProject(_ context.Context, p *ido.Project) (ido.ProjectID, error) {
	if p == nil {
		return 0, store.ErrInvalidInput
	}
	t.st.lastID++
	c := p.Clone()
	c.ID = t.st.lastID
	t.st.projects[c.ID] = c
	return c.ID, nil
}

func (t *tx) PutProject(_ context.Context, p *ido.Project) error {
	if _, ok := t.st.projects[p.ID]; !ok {
		return store.ErrNotFound
	}
	t.st.projects[p.ID] = p.Clone()
	return nil
}

func (t *tx) AddToRoster(_ context.Context, id ido.ProjectID, account string) error {
	if _, ok := t.st.projects[id]; !ok {
		return store.ErrNotFound
	}
	k := accountKey{id, account}
	if t.st.roster[k] {
		return store.ErrDuplicateKey
	}
	t.st.roster[k] = true
	return nil
}

func (t *tx) PutAccount(_ context.Context, a *ido.ProjectAccount) error {
	if _, ok := t.st.projects[a.ProjectID]; !ok {
		return store.ErrNotFound
	}
	t.st.accounts[accountKey{a.ProjectID, a.Account}] = a.Clone()
	return nil
}

func (t *tx) AppendTickets(_ context.Context, id ido.ProjectID, account string, ticketIDs []uint64) error {
	if _, ok := t.st.projects[id]; !ok {
		return store.ErrNotFound
	}
	for _, tid := range ticketIDs {
		if _, exists := t.st.tickets[ticketKey{id, tid}]; exists {
			return store.ErrDuplicateKey
		}
	}
	for _, tid := range ticketIDs {
		t.st.tickets[ticketKey{id, tid}] = ido.Ticket{ID: tid, Account: account}
	}
	return nil
}

func (t *tx) MarkWinners(_ context.Context, id ido.ProjectID, ticketIDs []uint64) error {
	for _, tid := range ticketIDs {
		k := ticketKey{id, tid}
		tk, ok := t.st.tickets[k]
		if !ok {
			return store.ErrNotFound
		}
		tk.Winning = true
		t.st.tickets[k] = tk
	}
	return nil
}
