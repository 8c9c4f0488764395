package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/idocore/internal/ido"
)

// sqliteTx implements Tx over a database/sql transaction.
type sqliteTx struct {
	tx *sql.Tx
}

const projectColumns = `id, name, whitelist_start, whitelist_end, sale_start, sale_end,
	token_raised_amount, token_sale_rate, total_fund_committed, status, gate, sale,
	ticket_counter, distribution_dust`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*ido.Project, error) {
	var r ProjectRow
	err := row.Scan(&r.ID, &r.Name, &r.WhitelistStart, &r.WhitelistEnd, &r.SaleStart, &r.SaleEnd,
		&r.TokenRaisedAmount, &r.TokenSaleRate, &r.TotalFundCommitted, &r.Status, &r.Gate, &r.Sale,
		&r.TicketCounter, &r.DistributionDust)
	if err != nil {
		return nil, err
	}
	return r.Decode()
}

func (t *sqliteTx) GetProject(ctx context.Context, id ido.ProjectID) (*ido.Project, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, int64(id))
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project %d: %w", id, err)
	}
	return p, nil
}

func (t *sqliteTx) ListProjects(ctx context.Context, f ProjectFilter) ([]*ido.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects`
	var args []any
	if f.Status != nil {
		query += ` WHERE status = ?`
		args = append(args, int(*f.Status))
	}
	query += ` ORDER BY id ASC`
	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, limit, f.Offset)

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := []*ido.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("list projects: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return projects, nil
}

func (t *sqliteTx) GetAccount(ctx context.Context, id ido.ProjectID, account string) (*ido.ProjectAccount, error) {
	var record string
	err := t.tx.QueryRowContext(ctx,
		`SELECT record FROM accounts WHERE project_id = ? AND account = ?`, int64(id), account).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return UnmarshalAccount(id, account, record)
}

func (t *sqliteTx) ListAccounts(ctx context.Context, id ido.ProjectID) ([]*ido.ProjectAccount, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT account, record FROM accounts
		WHERE project_id = ?
		ORDER BY account COLLATE BINARY ASC
	`, int64(id))
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	accounts := []*ido.ProjectAccount{}
	for rows.Next() {
		var account, record string
		if err := rows.Scan(&account, &record); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		a, err := UnmarshalAccount(id, account, record)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}

func (t *sqliteTx) InRoster(ctx context.Context, id ido.ProjectID, account string) (bool, error) {
	var n int
	err := t.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM roster WHERE project_id = ? AND account = ?`, int64(id), account).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check roster: %w", err)
	}
	return n > 0, nil
}

func (t *sqliteTx) RosterSize(ctx context.Context, id ido.ProjectID) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM roster WHERE project_id = ?`, int64(id)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count roster: %w", err)
	}
	return n, nil
}

func (t *sqliteTx) ListTickets(ctx context.Context, id ido.ProjectID) ([]ido.Ticket, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT ticket_id, account, winning FROM tickets
		WHERE project_id = ?
		ORDER BY ticket_id ASC
	`, int64(id))
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	tickets := []ido.Ticket{}
	for rows.Next() {
		var (
			ticketID int64
			tk       ido.Ticket
		)
		if err := rows.Scan(&ticketID, &tk.Account, &tk.Winning); err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		tk.ID = uint64(ticketID)
		tickets = append(tickets, tk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tickets: %w", err)
	}
	return tickets, nil
}

func (t *sqliteTx) CreateProject(ctx context.Context, p *ido.Project) (ido.ProjectID, error) {
	r, err := EncodeProject(p)
	if err != nil {
		return 0, fmt.Errorf("create project: %w", err)
	}
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO projects
		(name, whitelist_start, whitelist_end, sale_start, sale_end, token_raised_amount,
		 token_sale_rate, total_fund_committed, status, gate, sale, ticket_counter, distribution_dust)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.Name, r.WhitelistStart, r.WhitelistEnd, r.SaleStart, r.SaleEnd, r.TokenRaisedAmount,
		r.TokenSaleRate, r.TotalFundCommitted, r.Status, r.Gate, r.Sale, r.TicketCounter, r.DistributionDust)
	if err != nil {
		return 0, fmt.Errorf("create project: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create project: %w", err)
	}
	return ido.ProjectID(id), nil
}

func (t *sqliteTx) PutProject(ctx context.Context, p *ido.Project) error {
	r, err := EncodeProject(p)
	if err != nil {
		return fmt.Errorf("put project: %w", err)
	}
	res, err := t.tx.ExecContext(ctx, `
		UPDATE projects SET
			name = ?, whitelist_start = ?, whitelist_end = ?, sale_start = ?, sale_end = ?,
			token_raised_amount = ?, token_sale_rate = ?, total_fund_committed = ?, status = ?,
			gate = ?, sale = ?, ticket_counter = ?, distribution_dust = ?
		WHERE id = ?
	`, r.Name, r.WhitelistStart, r.WhitelistEnd, r.SaleStart, r.SaleEnd, r.TokenRaisedAmount,
		r.TokenSaleRate, r.TotalFundCommitted, r.Status, r.Gate, r.Sale, r.TicketCounter, r.DistributionDust,
		r.ID)
	if err != nil {
		return fmt.Errorf("put project: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("put project: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *sqliteTx) AddToRoster(ctx context.Context, id ido.ProjectID, account string) error {
	_, err := t.tx.ExecContext(ctx, `INSERT INTO roster (project_id, account) VALUES (?, ?)`, int64(id), account)
	if isDuplicateKeyError(err) {
		return ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("add to roster: %w", err)
	}
	return nil
}

func (t *sqliteTx) PutAccount(ctx context.Context, a *ido.ProjectAccount) error {
	record, err := MarshalAccount(a)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO accounts (project_id, account, record) VALUES (?, ?, ?)
		ON CONFLICT(project_id, account) DO UPDATE SET record = excluded.record
	`, int64(a.ProjectID), a.Account, record)
	if err != nil {
		return fmt.Errorf("put account: %w", err)
	}
	return nil
}

func (t *sqliteTx) AppendTickets(ctx context.Context, id ido.ProjectID, account string, ticketIDs []uint64) error {
	stmt, err := t.tx.PrepareContext(ctx, `INSERT INTO tickets (project_id, ticket_id, account) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("append tickets: %w", err)
	}
	defer stmt.Close()

	for _, ticketID := range ticketIDs {
		_, err := stmt.ExecContext(ctx, int64(id), int64(ticketID), account)
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		if err != nil {
			return fmt.Errorf("append ticket %d: %w", ticketID, err)
		}
	}
	return nil
}

func (t *sqliteTx) MarkWinners(ctx context.Context, id ido.ProjectID, ticketIDs []uint64) error {
	stmt, err := t.tx.PrepareContext(ctx, `UPDATE tickets SET winning = 1 WHERE project_id = ? AND ticket_id = ?`)
	if err != nil {
		return fmt.Errorf("mark winners: %w", err)
	}
	defer stmt.Close()

	for _, ticketID := range ticketIDs {
		res, err := stmt.ExecContext(ctx, int64(id), int64(ticketID))
		if err != nil {
			return fmt.Errorf("mark winner %d: %w", ticketID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("mark winner %d: %w", ticketID, ErrNotFound)
		}
	}
	return nil
}
