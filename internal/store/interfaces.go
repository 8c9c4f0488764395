package store

import (
	"context"

	"github.com/roach88/idocore/internal/ido"
	"github.com/roach88/idocore/internal/journal"
)

// ProjectFilter selects projects for listing. Results are ordered by id.
type ProjectFilter struct {
	// Status restricts the listing to one status when non-nil.
	Status *ido.Status
	// Offset skips that many matching projects.
	Offset int
	// Limit caps the result; non-positive means no cap.
	Limit int
}

// ReadTx is the read side of a transaction.
type ReadTx interface {
	// GetProject returns ErrNotFound if the project does not exist.
	GetProject(ctx context.Context, id ido.ProjectID) (*ido.Project, error)

	// ListProjects returns matching projects ordered by id.
	ListProjects(ctx context.Context, f ProjectFilter) ([]*ido.Project, error)

	// GetAccount returns ErrNotFound if the account does not exist.
	GetAccount(ctx context.Context, id ido.ProjectID, account string) (*ido.ProjectAccount, error)

	// ListAccounts returns a project's accounts ordered by account.
	ListAccounts(ctx context.Context, id ido.ProjectID) ([]*ido.ProjectAccount, error)

	// InRoster reports whether account passed the project's gate.
	InRoster(ctx context.Context, id ido.ProjectID, account string) (bool, error)

	// RosterSize returns the number of roster members.
	RosterSize(ctx context.Context, id ido.ProjectID) (int, error)

	// ListTickets returns the project's ticket ledger ordered by ticket id.
	ListTickets(ctx context.Context, id ido.ProjectID) ([]ido.Ticket, error)
}

// Tx is a read-write transaction.
type Tx interface {
	ReadTx

	// CreateProject inserts p and returns its assigned id.
	CreateProject(ctx context.Context, p *ido.Project) (ido.ProjectID, error)

	// PutProject overwrites an existing project. Returns ErrNotFound if absent.
	PutProject(ctx context.Context, p *ido.Project) error

	// AddToRoster returns ErrDuplicateKey if account is already a member.
	AddToRoster(ctx context.Context, id ido.ProjectID, account string) error

	// PutAccount inserts or overwrites an account.
	PutAccount(ctx context.Context, a *ido.ProjectAccount) error

	// AppendTickets records ticket ownership. Returns ErrDuplicateKey if any
	// id is already in the ledger.
	AppendTickets(ctx context.Context, id ido.ProjectID, account string, ticketIDs []uint64) error

	// MarkWinners sets the winning flag on the given tickets.
	MarkWinners(ctx context.Context, id ido.ProjectID, ticketIDs []uint64) error
}

// Store is a transactional allocation store with an operation journal.
type Store interface {
	// Update runs fn in a read-write transaction. If fn returns an error
	// the transaction is rolled back and the error returned unchanged.
	Update(ctx context.Context, fn func(tx Tx) error) error

	// View runs fn in a read-only transaction.
	View(ctx context.Context, fn func(tx ReadTx) error) error

	// AppendJournal records an executed operation.
	// Returns ErrDuplicateKey if the seq or id is already present.
	AppendJournal(ctx context.Context, e journal.Entry) error

	// ReadJournal returns matching entries ordered by seq.
	ReadJournal(ctx context.Context, f journal.Filter) ([]journal.Entry, error)

	// JournalHead returns the highest seq in the journal, zero when empty.
	JournalHead(ctx context.Context) (int64, error)

	Close() error
}
