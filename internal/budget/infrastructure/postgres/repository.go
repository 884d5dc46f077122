package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	budget "grants-cloud/internal/budget/domain"
)

var errNilDB = errors.New("budget repo: nil db")

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...any) error
}

// Repository persists grants, engagements and payments in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// GetGrant loads a grant with its lines and sub-lines.
func (r *Repository) GetGrant(ctx context.Context, id string) (*budget.Grant, error) {
	if r == nil || r.db == nil {
		return nil, errNilDB
	}
	row := r.db.QueryRowContext(ctx, `
SELECT id, code, name, donor, total_amount, planned_amount, currency, status,
	start_date, end_date, created_at, updated_at
FROM grants
WHERE id = $1`, id)
	grant, err := scanGrant(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, budget.ErrGrantNotFound
		}
		return nil, err
	}
	if err := r.loadLines(ctx, grant); err != nil {
		return nil, err
	}
	return grant, nil
}

// ListGrants returns all grants ordered by creation time.
func (r *Repository) ListGrants(ctx context.Context) ([]*budget.Grant, error) {
	if r == nil || r.db == nil {
		return nil, errNilDB
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, code, name, donor, total_amount, planned_amount, currency, status,
	start_date, end_date, created_at, updated_at
FROM grants
ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	var grants []*budget.Grant
	for rows.Next() {
		grant, err := scanGrant(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		grants = append(grants, grant)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	for _, grant := range grants {
		if err := r.loadLines(ctx, grant); err != nil {
			return nil, err
		}
	}
	return grants, nil
}

// SaveGrant upserts a grant and replaces its line tree.
func (r *Repository) SaveGrant(ctx context.Context, grant *budget.Grant) error {
	if r == nil || r.db == nil {
		return errNilDB
	}
	if grant == nil {
		return budget.ErrNilGrant
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := writeGrant(ctx, tx, grant); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// GetEngagement loads an engagement.
func (r *Repository) GetEngagement(ctx context.Context, id string) (*budget.Engagement, error) {
	if r == nil || r.db == nil {
		return nil, errNilDB
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+engagementColumns+`
FROM engagements
WHERE id = $1`, id)
	eng, err := scanEngagement(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, budget.ErrEngagementNotFound
		}
		return nil, err
	}
	return eng, nil
}

// ListEngagements lists engagements matching filter ordered by number.
func (r *Repository) ListEngagements(ctx context.Context, filter budget.EngagementFilter) ([]*budget.Engagement, error) {
	if r == nil || r.db == nil {
		return nil, errNilDB
	}
	var (
		where []string
		args  []any
	)
	if filter.GrantID != "" {
		args = append(args, filter.GrantID)
		where = append(where, fmt.Sprintf("grant_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	query := "SELECT " + engagementColumns + "\nFROM engagements"
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	query += "\nORDER BY engagement_number ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*budget.Engagement
	for rows.Next() {
		eng, err := scanEngagement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, eng)
	}
	return out, rows.Err()
}

// CreateEngagement inserts eng and saves grant in one transaction.
func (r *Repository) CreateEngagement(ctx context.Context, eng *budget.Engagement, grant *budget.Grant) error {
	if r == nil || r.db == nil {
		return errNilDB
	}
	if eng == nil {
		return budget.ErrNilEngagement
	}
	if grant == nil {
		return budget.ErrNilGrant
	}
	approvals, err := json.Marshal(eng.Approvals)
	if err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO engagements (
	id, engagement_number, grant_id, budget_line_id, sub_budget_line_id, amount,
	description, supplier, quote_reference, invoice_number, engagement_date,
	status, approvals, created_by, created_at, updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
)`,
		eng.ID, eng.Number, eng.GrantID, eng.BudgetLineID, eng.SubBudgetLineID, eng.Amount,
		eng.Description, eng.Supplier, eng.QuoteReference, eng.InvoiceNumber, eng.Date,
		string(eng.Status), approvals, eng.CreatedBy, eng.CreatedAt.UTC(), eng.UpdatedAt.UTC(),
	)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := writeGrant(ctx, tx, grant); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// UpdateEngagement updates eng and, when given, saves grant in the same transaction.
func (r *Repository) UpdateEngagement(ctx context.Context, eng *budget.Engagement, grant *budget.Grant) error {
	if r == nil || r.db == nil {
		return errNilDB
	}
	if eng == nil {
		return budget.ErrNilEngagement
	}
	approvals, err := json.Marshal(eng.Approvals)
	if err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `
UPDATE engagements SET
	amount = $2,
	description = $3,
	supplier = $4,
	quote_reference = $5,
	invoice_number = $6,
	engagement_date = $7,
	status = $8,
	approvals = $9,
	updated_at = $10
WHERE id = $1`,
		eng.ID, eng.Amount, eng.Description, eng.Supplier, eng.QuoteReference, eng.InvoiceNumber,
		eng.Date, string(eng.Status), approvals, eng.UpdatedAt.UTC(),
	)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		_ = tx.Rollback()
		return budget.ErrEngagementNotFound
	}
	if grant != nil {
		if err := writeGrant(ctx, tx, grant); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// GetPayment loads a payment.
func (r *Repository) GetPayment(ctx context.Context, id string) (*budget.Payment, error) {
	if r == nil || r.db == nil {
		return nil, errNilDB
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+paymentColumns+`
FROM payments
WHERE id = $1`, id)
	payment, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, budget.ErrPaymentNotFound
		}
		return nil, err
	}
	return payment, nil
}

// ListPayments lists payments matching filter.
func (r *Repository) ListPayments(ctx context.Context, filter budget.PaymentFilter) ([]*budget.Payment, error) {
	if r == nil || r.db == nil {
		return nil, errNilDB
	}
	var (
		where []string
		args  []any
	)
	if filter.GrantID != "" {
		args = append(args, filter.GrantID)
		where = append(where, fmt.Sprintf("grant_id = $%d", len(args)))
	}
	if filter.EngagementID != "" {
		args = append(args, filter.EngagementID)
		where = append(where, fmt.Sprintf("engagement_id = $%d", len(args)))
	}
	query := "SELECT " + paymentColumns + "\nFROM payments"
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	query += "\nORDER BY created_at ASC, id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*budget.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, payment)
	}
	return out, rows.Err()
}

// SavePayment upserts a payment.
func (r *Repository) SavePayment(ctx context.Context, payment *budget.Payment) error {
	if r == nil || r.db == nil {
		return errNilDB
	}
	if payment == nil {
		return budget.ErrNilPayment
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO payments (
	id, engagement_id, grant_id, budget_line_id, sub_budget_line_id, amount,
	status, reference, payment_date, created_at, updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)
ON CONFLICT (id)
DO UPDATE SET
	amount = EXCLUDED.amount,
	status = EXCLUDED.status,
	reference = EXCLUDED.reference,
	payment_date = EXCLUDED.payment_date,
	updated_at = EXCLUDED.updated_at`,
		payment.ID, payment.EngagementID, payment.GrantID, payment.BudgetLineID, payment.SubBudgetLineID,
		payment.Amount, string(payment.Status), payment.Reference, payment.Date,
		payment.CreatedAt.UTC(), payment.UpdatedAt.UTC(),
	)
	return err
}

func writeGrant(ctx context.Context, tx execer, grant *budget.Grant) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO grants (
	id, code, name, donor, total_amount, planned_amount, currency, status,
	start_date, end_date, created_at, updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
)
ON CONFLICT (id)
DO UPDATE SET
	code = EXCLUDED.code,
	name = EXCLUDED.name,
	donor = EXCLUDED.donor,
	total_amount = EXCLUDED.total_amount,
	planned_amount = EXCLUDED.planned_amount,
	currency = EXCLUDED.currency,
	status = EXCLUDED.status,
	start_date = EXCLUDED.start_date,
	end_date = EXCLUDED.end_date,
	updated_at = EXCLUDED.updated_at`,
		grant.ID, grant.Code, grant.Name, grant.Donor, grant.TotalAmount, grant.PlannedAmount,
		string(grant.Currency), string(grant.Status), nullableTime(grant.StartDate), nullableTime(grant.EndDate),
		grant.CreatedAt.UTC(), grant.UpdatedAt.UTC(),
	)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sub_budget_lines WHERE grant_id = $1`, grant.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM budget_lines WHERE grant_id = $1`, grant.ID); err != nil {
		return err
	}
	for i, line := range grant.Lines {
		_, err := tx.ExecContext(ctx, `
INSERT INTO budget_lines (
	id, grant_id, code, name, position, planned_amount, notified_amount,
	engaged_amount, available_amount
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			line.ID, grant.ID, line.Code, line.Name, i, line.PlannedAmount, line.NotifiedAmount,
			line.EngagedAmount, line.AvailableAmount)
		if err != nil {
			return err
		}
		for j, sub := range line.SubLines {
			_, err := tx.ExecContext(ctx, `
INSERT INTO sub_budget_lines (
	id, budget_line_id, grant_id, code, name, position, planned_amount,
	notified_amount, engaged_amount, available_amount
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
				sub.ID, line.ID, grant.ID, sub.Code, sub.Name, j, sub.PlannedAmount,
				sub.NotifiedAmount, sub.EngagedAmount, sub.AvailableAmount)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Repository) loadLines(ctx context.Context, grant *budget.Grant) error {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, code, name, planned_amount, notified_amount, engaged_amount, available_amount
FROM budget_lines
WHERE grant_id = $1
ORDER BY position ASC`, grant.ID)
	if err != nil {
		return err
	}
	lines := []budget.BudgetLine{}
	index := make(map[string]int)
	for rows.Next() {
		line := budget.BudgetLine{GrantID: grant.ID}
		if err := rows.Scan(&line.ID, &line.Code, &line.Name, &line.PlannedAmount,
			&line.NotifiedAmount, &line.EngagedAmount, &line.AvailableAmount); err != nil {
			rows.Close()
			return err
		}
		index[line.ID] = len(lines)
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	subRows, err := r.db.QueryContext(ctx, `
SELECT id, budget_line_id, code, name, planned_amount, notified_amount, engaged_amount, available_amount
FROM sub_budget_lines
WHERE grant_id = $1
ORDER BY budget_line_id ASC, position ASC`, grant.ID)
	if err != nil {
		return err
	}
	defer subRows.Close()
	for subRows.Next() {
		sub := budget.SubBudgetLine{GrantID: grant.ID}
		if err := subRows.Scan(&sub.ID, &sub.BudgetLineID, &sub.Code, &sub.Name, &sub.PlannedAmount,
			&sub.NotifiedAmount, &sub.EngagedAmount, &sub.AvailableAmount); err != nil {
			return err
		}
		i, ok := index[sub.BudgetLineID]
		if !ok {
			continue
		}
		lines[i].SubLines = append(lines[i].SubLines, sub)
	}
	if err := subRows.Err(); err != nil {
		return err
	}
	grant.Lines = lines
	return nil
}

func scanGrant(row scanner) (*budget.Grant, error) {
	var (
		grant      budget.Grant
		donor      sql.NullString
		currency   string
		status     string
		start, end sql.NullTime
	)
	if err := row.Scan(&grant.ID, &grant.Code, &grant.Name, &donor, &grant.TotalAmount, &grant.PlannedAmount,
		&currency, &status, &start, &end, &grant.CreatedAt, &grant.UpdatedAt); err != nil {
		return nil, err
	}
	grant.Donor = donor.String
	grant.Currency = budget.Currency(currency)
	grant.Status = budget.GrantStatus(status)
	if start.Valid {
		grant.StartDate = start.Time.UTC()
	}
	if end.Valid {
		grant.EndDate = end.Time.UTC()
	}
	grant.CreatedAt = grant.CreatedAt.UTC()
	grant.UpdatedAt = grant.UpdatedAt.UTC()
	return &grant, nil
}

const engagementColumns = `id, engagement_number, grant_id, budget_line_id, sub_budget_line_id, amount,
	description, supplier, quote_reference, invoice_number, engagement_date,
	status, approvals, created_by, created_at, updated_at`

func scanEngagement(row scanner) (*budget.Engagement, error) {
	var (
		eng       budget.Engagement
		quote     sql.NullString
		invoice   sql.NullString
		createdBy sql.NullString
		status    string
		approvals []byte
		date      time.Time
	)
	if err := row.Scan(&eng.ID, &eng.Number, &eng.GrantID, &eng.BudgetLineID, &eng.SubBudgetLineID, &eng.Amount,
		&eng.Description, &eng.Supplier, &quote, &invoice, &date,
		&status, &approvals, &createdBy, &eng.CreatedAt, &eng.UpdatedAt); err != nil {
		return nil, err
	}
	eng.QuoteReference = quote.String
	eng.InvoiceNumber = invoice.String
	eng.CreatedBy = createdBy.String
	eng.Date = date.Format(budget.DateLayout)
	eng.Status = budget.EngagementStatus(status)
	if len(approvals) > 0 {
		if err := json.Unmarshal(approvals, &eng.Approvals); err != nil {
			return nil, fmt.Errorf("decode approvals of %s: %w", eng.ID, err)
		}
	}
	eng.CreatedAt = eng.CreatedAt.UTC()
	eng.UpdatedAt = eng.UpdatedAt.UTC()
	return &eng, nil
}

const paymentColumns = `id, engagement_id, grant_id, budget_line_id, sub_budget_line_id, amount,
	status, reference, payment_date, created_at, updated_at`

func scanPayment(row scanner) (*budget.Payment, error) {
	var (
		payment   budget.Payment
		status    string
		reference sql.NullString
		date      time.Time
	)
	if err := row.Scan(&payment.ID, &payment.EngagementID, &payment.GrantID, &payment.BudgetLineID,
		&payment.SubBudgetLineID, &payment.Amount, &status, &reference, &date,
		&payment.CreatedAt, &payment.UpdatedAt); err != nil {
		return nil, err
	}
	payment.Status = budget.PaymentStatus(status)
	payment.Reference = reference.String
	payment.Date = date.Format(budget.DateLayout)
	payment.CreatedAt = payment.CreatedAt.UTC()
	payment.UpdatedAt = payment.UpdatedAt.UTC()
	return &payment, nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
