package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/roach88/idocore/internal/ido"
	"github.com/roach88/idocore/internal/journal"
	"github.com/roach88/idocore/internal/store"
)

// Store implements store.Store using PostgreSQL.
type Store struct {
	pool *Pool
}

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Open connects to dsn and applies migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := NewPool(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// New wraps an existing pool. Migrations must already be applied.
func New(pool *Pool) *Store {
	return &Store{pool: pool}
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Update runs fn in a read-write transaction.
func (s *Store) Update(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(&pgTx{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// View runs fn in a read-only transaction.
func (s *Store) View(ctx context.Context, fn func(tx store.ReadTx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	return fn(&pgTx{tx: tx})
}

// AppendJournal inserts an entry. Returns ErrDuplicateKey if seq or id exists.
func (s *Store) AppendJournal(ctx context.Context, e journal.Entry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO journal
		(seq, id, request_id, kind, project_id, account, args, outcome, error_code, message, result, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		e.Seq, e.ID, e.RequestID, e.Kind, int64(e.ProjectID), e.Account,
		string(e.Args), e.Outcome, e.ErrorCode, e.Message, string(e.Result), e.At.UnixNano(),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return store.ErrDuplicateKey
		}
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

// ReadJournal returns matching entries ordered by seq.
func (s *Store) ReadJournal(ctx context.Context, f journal.Filter) ([]journal.Entry, error) {
	where := []string{"seq > $1"}
	args := []any{f.AfterSeq}
	if f.RequestID != "" {
		args = append(args, f.RequestID)
		where = append(where, fmt.Sprintf("request_id = $%d", len(args)))
	}
	if f.ProjectID != 0 {
		args = append(args, int64(f.ProjectID))
		where = append(where, fmt.Sprintf("project_id = $%d", len(args)))
	}
	query := `
		SELECT seq, id, request_id, kind, project_id, account, args, outcome, error_code, message, result, at
		FROM journal
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY seq ASC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	defer rows.Close()

	entries := []journal.Entry{}
	for rows.Next() {
		var (
			e         journal.Entry
			projectID int64
			argsText  string
			result    string
			at        int64
		)
		if err := rows.Scan(&e.Seq, &e.ID, &e.RequestID, &e.Kind, &projectID, &e.Account,
			&argsText, &e.Outcome, &e.ErrorCode, &e.Message, &result, &at); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.ProjectID = ido.ProjectID(projectID)
		e.Args = json.RawMessage(argsText)
		if result != "" {
			e.Result = json.RawMessage(result)
		}
		e.At = time.Unix(0, at).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return entries, nil
}

// JournalHead returns the highest seq written so far.
func (s *Store) JournalHead(ctx context.Context) (int64, error) {
	var head int64
	if err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(seq), 0) FROM journal`).Scan(&head); err != nil {
		return 0, fmt.Errorf("read journal head: %w", err)
	}
	return head, nil
}
