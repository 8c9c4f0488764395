package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/roach88/idocore/internal/ido"
	"github.com/roach88/idocore/internal/store"
)

// pgTx implements store.Tx over a pgx transaction.
type pgTx struct {
	tx pgx.Tx
}

const projectColumns = `id, name, whitelist_start, whitelist_end, sale_start, sale_end,
	token_raised_amount, token_sale_rate, total_fund_committed, status, gate, sale,
	ticket_counter, distribution_dust`

func scanProject(row pgx.Row) (*ido.Project, error) {
	var r store.ProjectRow
	err := row.Scan(&r.ID, &r.Name, &r.WhitelistStart, &r.WhitelistEnd, &r.SaleStart, &r.SaleEnd,
		&r.TokenRaisedAmount, &r.TokenSaleRate, &r.TotalFundCommitted, &r.Status, &r.Gate, &r.Sale,
		&r.TicketCounter, &r.DistributionDust)
	if err != nil {
		return nil, err
	}
	return r.Decode()
}

func (t *pgTx) GetProject(ctx context.Context, id ido.ProjectID) (*ido.Project, error) {
	p, err := scanProject(t.tx.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, int64(id)))
	if err != nil {
		if isNotFoundError(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get project %d: %w", id, err)
	}
	return p, nil
}

func (t *pgTx) ListProjects(ctx context.Context, f store.ProjectFilter) ([]*ido.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects`
	var args []any
	if f.Status != nil {
		args = append(args, int(*f.Status))
		query += fmt.Sprintf(` WHERE status = $%d`, len(args))
	}
	query += ` ORDER BY id ASC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := t.tx.Query(ctx, query, args...)
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

func (t *pgTx) GetAccount(ctx context.Context, id ido.ProjectID, account string) (*ido.ProjectAccount, error) {
	var record string
	err := t.tx.QueryRow(ctx,
		`SELECT record FROM accounts WHERE project_id = $1 AND account = $2`, int64(id), account).Scan(&record)
	if err != nil {
		if isNotFoundError(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return store.UnmarshalAccount(id, account, record)
}

func (t *pgTx) ListAccounts(ctx context.Context, id ido.ProjectID) ([]*ido.ProjectAccount, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT account, record FROM accounts
		WHERE project_id = $1
		ORDER BY account COLLATE "C" ASC
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
		a, err := store.UnmarshalAccount(id, account, record)
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

func (t *pgTx) InRoster(ctx context.Context, id ido.ProjectID, account string) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM roster WHERE project_id = $1 AND account = $2)`, int64(id), account).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check roster: %w", err)
	}
	return exists, nil
}

func (t *pgTx) RosterSize(ctx context.Context, id ido.ProjectID) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM roster WHERE project_id = $1`, int64(id)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count roster: %w", err)
	}
	return n, nil
}

func (t *pgTx) ListTickets(ctx context.Context, id ido.ProjectID) ([]ido.Ticket, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT ticket_id, account, winning FROM tickets
		WHERE project_id = $1
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

func (t *pgTx) CreateProject(ctx context.Context, p *ido.Project) (ido.ProjectID, error) {
	r, err := store.EncodeProject(p)
	if err != nil {
		return 0, fmt.Errorf("create project: %w", err)
	}
	var id int64
	err = t.tx.QueryRow(ctx, `
		INSERT INTO projects
		(name, whitelist_start, whitelist_end, sale_start, sale_end, token_raised_amount,
		 token_sale_rate, total_fund_committed, status, gate, sale, ticket_counter, distribution_dust)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`, r.Name, r.WhitelistStart, r.WhitelistEnd, r.SaleStart, r.SaleEnd, r.TokenRaisedAmount,
		r.TokenSaleRate, r.TotalFundCommitted, r.Status, r.Gate, r.Sale, r.TicketCounter, r.DistributionDust,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create project: %w", err)
	}
	return ido.ProjectID(id), nil
}

func (t *pgTx) PutProject(ctx context.Context, p *ido.Project) error {
	r, err := store.EncodeProject(p)
	if err != nil {
		return fmt.Errorf("put project: %w", err)
	}
	tag, err := t.tx.Exec(ctx, `
		UPDATE projects SET
			name = $1, whitelist_start = $2, whitelist_end = $3, sale_start = $4, sale_end = $5,
			token_raised_amount = $6, token_sale_rate = $7, total_fund_committed = $8, status = $9,
			gate = $10, sale = $11, ticket_counter = $12, distribution_dust = $13
		WHERE id = $14
	`, r.Name, r.WhitelistStart, r.WhitelistEnd, r.SaleStart, r.SaleEnd, r.TokenRaisedAmount,
		r.TokenSaleRate, r.TotalFundCommitted, r.Status, r.Gate, r.Sale, r.TicketCounter, r.DistributionDust,
		r.ID)
	if err != nil {
		return fmt.Errorf("put project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *pgTx) AddToRoster(ctx context.Context, id ido.ProjectID, account string) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO roster (project_id, account) VALUES ($1, $2)`, int64(id), account)
	if err != nil {
		if isDuplicateKeyError(err) {
			return store.ErrDuplicateKey
		}
		return fmt.Errorf("add to roster: %w", err)
	}
	return nil
}

func (t *pgTx) PutAccount(ctx context.Context, a *ido.ProjectAccount) error {
	record, err := store.MarshalAccount(a)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO accounts (project_id, account, record) VALUES ($1, $2, $3)
		ON CONFLICT (project_id, account) DO UPDATE SET record = EXCLUDED.record
	`, int64(a.ProjectID), a.Account, record)
	if err != nil {
		return fmt.Errorf("put account: %w", err)
	}
	return nil
}

func (t *pgTx) AppendTickets(ctx context.Context, id ido.ProjectID, account string, ticketIDs []uint64) error {
	batch := &pgx.Batch{}
	for _, ticketID := range ticketIDs {
		batch.Queue(`INSERT INTO tickets (project_id, ticket_id, account) VALUES ($1, $2, $3)`,
			int64(id), int64(ticketID), account)
	}
	results := t.tx.SendBatch(ctx, batch)
	defer results.Close()

	for _, ticketID := range ticketIDs {
		if _, err := results.Exec(); err != nil {
			if isDuplicateKeyError(err) {
				return store.ErrDuplicateKey
			}
			return fmt.Errorf("append ticket %d: %w", ticketID, err)
		}
	}
	return nil
}

func (t *pgTx) MarkWinners(ctx context.Context, id ido.ProjectID, ticketIDs []uint64) error {
	ids := make([]int64, len(ticketIDs))
	for i, v := range ticketIDs {
		ids[i] = int64(v)
	}
	tag, err := t.tx.Exec(ctx,
		`UPDATE tickets SET winning = TRUE WHERE project_id = $1 AND ticket_id = ANY($2)`, int64(id), ids)
	if err != nil {
		return fmt.Errorf("mark winners: %w", err)
	}
	if tag.RowsAffected() != int64(len(ids)) {
		return fmt.Errorf("mark winners: %w", store.ErrNotFound)
	}
	return nil
}
