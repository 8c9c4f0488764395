package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/idocore/internal/ido"
	"github.com/roach88/idocore/internal/journal"
)

// AppendJournal inserts an entry. Entries are immutable once written.
func (s *SQLite) AppendJournal(ctx context.Context, e journal.Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO journal
		(seq, id, request_id, kind, project_id, account, args, outcome, error_code, message, result, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.Seq,
		e.ID,
		e.RequestID,
		e.Kind,
		int64(e.ProjectID),
		e.Account,
		string(e.Args),
		e.Outcome,
		e.ErrorCode,
		e.Message,
		string(e.Result),
		e.At.UnixNano(),
	)
	if isDuplicateKeyError(err) {
		return ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("write journal entry: %w", err)
	}
	return nil
}

// ReadJournal returns matching entries ordered by seq.
func (s *SQLite) ReadJournal(ctx context.Context, f journal.Filter) ([]journal.Entry, error) {
	where := []string{"seq > ?"}
	args := []any{f.AfterSeq}
	if f.RequestID != "" {
		where = append(where, "request_id = ?")
		args = append(args, f.RequestID)
	}
	if f.ProjectID != 0 {
		where = append(where, "project_id = ?")
		args = append(args, int64(f.ProjectID))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, request_id, kind, project_id, account, args, outcome, error_code, message, result, at
		FROM journal
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY seq ASC
		LIMIT ?
	`, args...)
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
func (s *SQLite) JournalHead(ctx context.Context) (int64, error) {
	var head int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM journal`).Scan(&head); err != nil {
		return 0, fmt.Errorf("read journal head: %w", err)
	}
	return head, nil
}
