package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

type payrollRepository struct {
	db *database.DB
}

func NewPayrollRepository(db *database.DB) payroll.PayrollRepository {
	return &payrollRepository{db: db}
}

const runColumns = `
	id, company_id, month, year, status, total_gross, total_net, item_count,
	rate_table_version, created_by, approved_by, created_at, approved_at,
	paid_at, cancelled_at, updated_at`

const itemColumns = `
	id, run_id, company_id, employee_id, employee_name, currency, base_salary,
	overtime, bonus, allowances, gross_pay, tax, statutory_contribution,
	contribution_scheme, other_deductions, net_pay, notes, created_at, updated_at`

func scanRun(row pgx.Row) (payroll.Run, error) {
	var r payroll.Run
	err := row.Scan(
		&r.ID, &r.CompanyID, &r.Month, &r.Year, &r.Status, &r.TotalGross, &r.TotalNet, &r.ItemCount,
		&r.RateTableVersion, &r.CreatedBy, &r.ApprovedBy, &r.CreatedAt, &r.ApprovedAt,
		&r.PaidAt, &r.CancelledAt, &r.UpdatedAt,
	)
	return r, err
}

func scanItem(row pgx.Row) (payroll.Item, error) {
	var i payroll.Item
	err := row.Scan(
		&i.ID, &i.RunID, &i.CompanyID, &i.EmployeeID, &i.EmployeeName, &i.Currency, &i.BaseSalary,
		&i.Overtime, &i.Bonus, &i.Allowances, &i.GrossPay, &i.Tax, &i.StatutoryContribution,
		&i.ContributionScheme, &i.OtherDeductions, &i.NetPay, &i.Notes, &i.CreatedAt, &i.UpdatedAt,
	)
	return i, err
}

// ========== RUNS ==========

func (r *payrollRepository) CreateRun(ctx context.Context, run payroll.Run) (payroll.Run, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO payroll_runs (
			id, company_id, month, year, status, total_gross, total_net, item_count,
			rate_table_version, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + runColumns

	created, err := scanRun(q.QueryRow(ctx, query,
		run.ID, run.CompanyID, run.Month, run.Year, run.Status, run.TotalGross, run.TotalNet, run.ItemCount,
		run.RateTableVersion, run.CreatedBy, run.CreatedAt, run.UpdatedAt,
	))
	if err != nil {
		return payroll.Run{}, classifyError("create payroll run", err)
	}
	return created, nil
}

func (r *payrollRepository) GetRunByID(ctx context.Context, id string, companyID string) (payroll.Run, error) {
	return r.getRun(ctx, id, companyID, "")
}

func (r *payrollRepository) GetRunForUpdate(ctx context.Context, id string, companyID string) (payroll.Run, error) {
	// NO KEY UPDATE still lets items insert against the run's primary key.
	return r.getRun(ctx, id, companyID, "FOR NO KEY UPDATE")
}

func (r *payrollRepository) getRun(ctx context.Context, id, companyID, lock string) (payroll.Run, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + runColumns + ` FROM payroll_runs WHERE id = $1 AND company_id = $2 ` + lock

	run, err := scanRun(q.QueryRow(ctx, query, id, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.Run{}, payroll.ErrRunNotFound
		}
		return payroll.Run{}, classifyError("get payroll run", err)
	}
	return run, nil
}

func (r *payrollRepository) ListRuns(ctx context.Context, companyID string, filter payroll.RunFilter) ([]payroll.Run, int64, error) {
	q := GetQuerier(ctx, r.db)

	baseQuery := `
		FROM payroll_runs
		WHERE company_id = $1
	`
	args := []any{companyID}
	argIdx := 2

	if filter.Year != nil {
		baseQuery += fmt.Sprintf(" AND year = $%d", argIdx)
		args = append(args, *filter.Year)
		argIdx++
	}
	if filter.Status != nil {
		baseQuery += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, *filter.Status)
		argIdx++
	}

	// Count query
	var totalCount int64
	if err := q.QueryRow(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, classifyError("count payroll runs", err)
	}

	// Pagination
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	offset := (filter.Page - 1) * filter.Limit

	selectQuery := fmt.Sprintf(`
		SELECT %s
		%s
		ORDER BY year DESC, month DESC, created_at DESC
		LIMIT $%d OFFSET $%d
	`, runColumns, baseQuery, argIdx, argIdx+1)
	args = append(args, filter.Limit, offset)

	rows, err := q.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, classifyError("list payroll runs", err)
	}
	defer rows.Close()

	runs := make([]payroll.Run, 0, filter.Limit)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan payroll run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, classifyError("list payroll runs", err)
	}

	return runs, totalCount, nil
}

func (r *payrollRepository) UpdateRunStatus(ctx context.Context, run payroll.Run) (payroll.Run, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE payroll_runs
		SET status = $1, approved_by = $2, approved_at = $3, paid_at = $4,
			cancelled_at = $5, updated_at = $6
		WHERE id = $7 AND company_id = $8
		RETURNING ` + runColumns

	updated, err := scanRun(q.QueryRow(ctx, query,
		run.Status, run.ApprovedBy, run.ApprovedAt, run.PaidAt,
		run.CancelledAt, run.UpdatedAt, run.ID, run.CompanyID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.Run{}, payroll.ErrRunNotFound
		}
		return payroll.Run{}, classifyError("update payroll run status", err)
	}
	return updated, nil
}

func (r *payrollRepository) RefreshRunTotals(ctx context.Context, runID string, updatedAt time.Time) (payroll.Run, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE payroll_runs pr
		SET total_gross = t.gross, total_net = t.net, item_count = t.cnt, updated_at = $2
		FROM (
			SELECT COALESCE(SUM(gross_pay), 0) AS gross,
				   COALESCE(SUM(net_pay), 0) AS net,
				   COUNT(*) AS cnt
			FROM payroll_items
			WHERE run_id = $1
		) t
		WHERE pr.id = $1
		RETURNING ` + runColumns

	run, err := scanRun(q.QueryRow(ctx, query, runID, updatedAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.Run{}, payroll.ErrRunNotFound
		}
		return payroll.Run{}, classifyError("refresh payroll run totals", err)
	}
	return run, nil
}

// ========== ITEMS ==========

var itemCopyColumns = []string{
	"id", "run_id", "company_id", "employee_id", "employee_name", "currency", "base_salary",
	"overtime", "bonus", "allowances", "gross_pay", "tax", "statutory_contribution",
	"contribution_scheme", "other_deductions", "net_pay", "notes", "created_at", "updated_at",
}

func (r *payrollRepository) CreateItems(ctx context.Context, items []payroll.Item) error {
	if len(items) == 0 {
		return nil
	}
	q := GetQuerier(ctx, r.db)

	rows := make([][]any, 0, len(items))
	for _, it := range items {
		ids, err := uuids(it.ID, it.RunID, it.CompanyID, it.EmployeeID)
		if err != nil {
			return fmt.Errorf("failed to encode payroll item %s: %w", it.ID, err)
		}
		amounts, err := numerics(
			it.BaseSalary, it.Overtime, it.Bonus, it.Allowances, it.GrossPay,
			it.Tax, it.StatutoryContribution, it.OtherDeductions, it.NetPay,
		)
		if err != nil {
			return fmt.Errorf("failed to encode payroll item %s: %w", it.ID, err)
		}
		rows = append(rows, []any{
			ids[0], ids[1], ids[2], ids[3], it.EmployeeName, it.Currency, amounts[0],
			amounts[1], amounts[2], amounts[3], amounts[4], amounts[5], amounts[6],
			string(it.ContributionScheme), amounts[7], amounts[8], it.Notes, it.CreatedAt, it.UpdatedAt,
		})
	}

	n, err := q.CopyFrom(ctx, pgx.Identifier{"payroll_items"}, itemCopyColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return classifyError("copy payroll items", err)
	}
	if int(n) != len(items) {
		return payroll.NewPersistenceError("copy payroll items", fmt.Errorf("copied %d of %d rows", n, len(items)))
	}
	return nil
}

func (r *payrollRepository) GetItemByID(ctx context.Context, id string, companyID string) (payroll.Item, error) {
	return r.getItem(ctx, id, companyID, "")
}

func (r *payrollRepository) GetItemForUpdate(ctx context.Context, id string, companyID string) (payroll.Item, error) {
	return r.getItem(ctx, id, companyID, "FOR UPDATE")
}

func (r *payrollRepository) getItem(ctx context.Context, id, companyID, lock string) (payroll.Item, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + itemColumns + ` FROM payroll_items WHERE id = $1 AND company_id = $2 ` + lock

	item, err := scanItem(q.QueryRow(ctx, query, id, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.Item{}, payroll.ErrItemNotFound
		}
		return payroll.Item{}, classifyError("get payroll item", err)
	}
	return item, nil
}

func (r *payrollRepository) ListItemsByRun(ctx context.Context, runID string) ([]payroll.Item, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + itemColumns + ` FROM payroll_items WHERE run_id = $1 ORDER BY employee_name, id`

	rows, err := q.Query(ctx, query, runID)
	if err != nil {
		return nil, classifyError("list payroll items", err)
	}
	defer rows.Close()

	items := make([]payroll.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payroll item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError("list payroll items", err)
	}
	return items, nil
}

func (r *payrollRepository) UpdateItem(ctx context.Context, item payroll.Item) (payroll.Item, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE payroll_items
		SET overtime = $1, bonus = $2, allowances = $3, gross_pay = $4, tax = $5,
			statutory_contribution = $6, contribution_scheme = $7, other_deductions = $8,
			net_pay = $9, notes = $10, updated_at = $11
		WHERE id = $12 AND company_id = $13
		RETURNING ` + itemColumns

	updated, err := scanItem(q.QueryRow(ctx, query,
		item.Overtime, item.Bonus, item.Allowances, item.GrossPay, item.Tax,
		item.StatutoryContribution, item.ContributionScheme, item.OtherDeductions,
		item.NetPay, item.Notes, item.UpdatedAt,
		item.ID, item.CompanyID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.Item{}, payroll.ErrItemNotFound
		}
		return payroll.Item{}, classifyError("update payroll item", err)
	}
	return updated, nil
}

// ========== AGGREGATIONS ==========

func (r *payrollRepository) SummarizeYear(ctx context.Context, companyID string, year int) ([]payroll.CurrencyTotals, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT pi.currency,
			   COALESCE(SUM(pi.gross_pay), 0),
			   COALESCE(SUM(pi.tax), 0),
			   COALESCE(SUM(pi.statutory_contribution), 0),
			   COALESCE(SUM(pi.net_pay), 0),
			   COUNT(*)
		FROM payroll_items pi
		JOIN payroll_runs pr ON pr.id = pi.run_id
		WHERE pr.company_id = $1 AND pr.year = $2 AND pr.status <> 'CANCELLED'
		GROUP BY pi.currency
		ORDER BY pi.currency
	`

	rows, err := q.Query(ctx, query, companyID, year)
	if err != nil {
		return nil, classifyError("summarize payroll year", err)
	}
	defer rows.Close()

	totals := make([]payroll.CurrencyTotals, 0)
	for rows.Next() {
		var t payroll.CurrencyTotals
		if err := rows.Scan(&t.Currency, &t.Gross, &t.Tax, &t.Statutory, &t.Net, &t.Count); err != nil {
			return nil, fmt.Errorf("failed to scan payroll summary: %w", err)
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError("summarize payroll year", err)
	}
	return totals, nil
}

// ========== HELPERS ==========

// CopyFrom encodes in binary, so ids and amounts go over as native pgx types.
func uuids(values ...string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, len(values))
	for i, v := range values {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("invalid uuid %q: %w", v, err)
		}
		out[i] = id
	}
	return out, nil
}

func numerics(values ...decimal.Decimal) ([]pgtype.Numeric, error) {
	out := make([]pgtype.Numeric, len(values))
	for i, v := range values {
		if err := out[i].Scan(v.String()); err != nil {
			return nil, err
		}
	}
	return out, nil
}
