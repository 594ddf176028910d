package reports

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Completed is the only sales status aggregated into reports.
const completedStatus = "completed"

// defaultCurrency is used when a tenant has no currency configured.
const defaultCurrency = "IDR"

// Repository issues the read-only aggregation queries. Every method takes
// the tenant id, date window and branch predicate explicitly; nothing is
// read from ambient state. All money columns are scanned through ::text
// into fixed-point decimals.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a reports repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func parseAmount(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}

// RevenueTotals sums completed sales inside the window.
func (r *Repository) RevenueTotals(ctx context.Context, tenantID string, window DateWindow, branches BranchPredicate) (RevenueTotals, error) {
	if r == nil || r.pool == nil {
		return RevenueTotals{}, fmt.Errorf("reports repo not initialised")
	}
	query := `
SELECT COUNT(*),
       COUNT(DISTINCT st.customer_id),
       COALESCE(SUM(st.total), 0)::text,
       COALESCE(SUM(st.subtotal), 0)::text,
       COALESCE(SUM(st.discount), 0)::text,
       COALESCE(SUM(st.tax), 0)::text,
       COALESCE(AVG(st.total), 0)::text
FROM sales_transactions st
WHERE st.tenant_id = $1 AND st.status = $2 AND st.occurred_at BETWEEN $3 AND $4`
	args := []any{tenantID, completedStatus, window.Start, window.End}
	clause, extra := branches.Clause("st.branch_id", len(args)+1)
	query += clause
	args = append(args, extra...)

	var totals RevenueTotals
	var gross, net, discount, tax, average string
	if err := r.pool.QueryRow(ctx, query, args...).Scan(
		&totals.Transactions, &totals.Customers, &gross, &net, &discount, &tax, &average,
	); err != nil {
		return RevenueTotals{}, fmt.Errorf("reports: revenue totals: %w", err)
	}
	var err error
	if totals.Gross, err = parseAmount(gross); err != nil {
		return RevenueTotals{}, fmt.Errorf("reports: revenue totals: %w", err)
	}
	if totals.Net, err = parseAmount(net); err != nil {
		return RevenueTotals{}, fmt.Errorf("reports: revenue totals: %w", err)
	}
	if totals.Discount, err = parseAmount(discount); err != nil {
		return RevenueTotals{}, fmt.Errorf("reports: revenue totals: %w", err)
	}
	if totals.Tax, err = parseAmount(tax); err != nil {
		return RevenueTotals{}, fmt.Errorf("reports: revenue totals: %w", err)
	}
	if totals.Average, err = parseAmount(average); err != nil {
		return RevenueTotals{}, fmt.Errorf("reports: revenue totals: %w", err)
	}
	return totals, nil
}

// RevenueByGroup buckets completed sales along the group-by dimension.
func (r *Repository) RevenueByGroup(ctx context.Context, tenantID string, window DateWindow, branches BranchPredicate, groupBy GroupBy) ([]RevenueBucket, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("reports repo not initialised")
	}
	keyExpr := groupBy.KeyExpr("st", "b")
	labelExpr := groupBy.LabelExpr("st", "b")
	query := fmt.Sprintf(`
SELECT %s AS bucket_key,
       %s AS bucket_label,
       COUNT(*),
       COUNT(DISTINCT st.customer_id),
       COALESCE(SUM(st.total), 0)::text,
       COALESCE(SUM(st.subtotal), 0)::text,
       COALESCE(SUM(st.discount), 0)::text,
       COALESCE(SUM(st.tax), 0)::text,
       COALESCE(AVG(st.total), 0)::text
FROM sales_transactions st
JOIN branches b ON b.id = st.branch_id AND b.tenant_id = st.tenant_id
WHERE st.tenant_id = $1 AND st.status = $2 AND st.occurred_at BETWEEN $3 AND $4`, keyExpr, labelExpr)
	args := []any{tenantID, completedStatus, window.Start, window.End}
	clause, extra := branches.Clause("st.branch_id", len(args)+1)
	query += clause
	args = append(args, extra...)
	query += "\nGROUP BY 1, 2\nORDER BY 1"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("reports: revenue by %s: %w", groupBy, err)
	}
	defer rows.Close()
	var buckets []RevenueBucket
	for rows.Next() {
		var b RevenueBucket
		var gross, net, discount, tax, average string
		if err := rows.Scan(&b.Key, &b.Label, &b.Revenue.Transactions, &b.Revenue.Customers, &gross, &net, &discount, &tax, &average); err != nil {
			return nil, fmt.Errorf("reports: revenue by %s: %w", groupBy, err)
		}
		if b.Revenue.Gross, err = parseAmount(gross); err != nil {
			return nil, err
		}
		if b.Revenue.Net, err = parseAmount(net); err != nil {
			return nil, err
		}
		if b.Revenue.Discount, err = parseAmount(discount); err != nil {
			return nil, err
		}
		if b.Revenue.Tax, err = parseAmount(tax); err != nil {
			return nil, err
		}
		if b.Revenue.Average, err = parseAmount(average); err != nil {
			return nil, err
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

// COGSTotal sums quantity times product cost over line items of completed
// sales inside the window.
func (r *Repository) COGSTotal(ctx context.Context, tenantID string, window DateWindow, branches BranchPredicate) (decimal.Decimal, error) {
	if r == nil || r.pool == nil {
		return decimal.Zero, fmt.Errorf("reports repo not initialised")
	}
	query := `
SELECT COALESCE(SUM(li.quantity * p.cost), 0)::text
FROM sales_line_items li
JOIN sales_transactions st ON st.id = li.transaction_id AND st.tenant_id = li.tenant_id
JOIN products p ON p.id = li.product_id AND p.tenant_id = li.tenant_id
WHERE li.tenant_id = $1 AND st.status = $2 AND st.occurred_at BETWEEN $3 AND $4`
	args := []any{tenantID, completedStatus, window.Start, window.End}
	clause, extra := branches.Clause("st.branch_id", len(args)+1)
	query += clause
	args = append(args, extra...)

	var raw string
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&raw); err != nil {
		return decimal.Zero, fmt.Errorf("reports: cogs total: %w", err)
	}
	total, err := parseAmount(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("reports: cogs total: %w", err)
	}
	return total, nil
}

// ExpensesByCategory sums posted expense ledger rows per category.
func (r *Repository) ExpensesByCategory(ctx context.Context, tenantID string, window DateWindow, branches BranchPredicate) ([]ExpenseCategoryTotal, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("reports repo not initialised")
	}
	query := `
SELECT lt.category, COALESCE(SUM(lt.amount), 0)::text
FROM ledger_transactions lt
WHERE lt.tenant_id = $1 AND lt.type = 'expense' AND lt.status = 'posted'
  AND lt.occurred_on BETWEEN $2 AND $3`
	args := []any{tenantID, window.Start, window.End}
	clause, extra := branches.Clause("lt.branch_id", len(args)+1)
	query += clause
	args = append(args, extra...)
	query += "\nGROUP BY lt.category\nORDER BY 2 DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("reports: expenses by category: %w", err)
	}
	defer rows.Close()
	var totals []ExpenseCategoryTotal
	for rows.Next() {
		var t ExpenseCategoryTotal
		var raw string
		if err := rows.Scan(&t.Category, &raw); err != nil {
			return nil, fmt.Errorf("reports: expenses by category: %w", err)
		}
		if t.Amount, err = parseAmount(raw); err != nil {
			return nil, fmt.Errorf("reports: expenses by category: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// InterBranchTotals sums paid inter-branch invoices by direction. A branch
// is earning when it sent the invoice and paying when it received it.
func (r *Repository) InterBranchTotals(ctx context.Context, tenantID string, window DateWindow, branches BranchPredicate) (InterBranchTotals, error) {
	if r == nil || r.pool == nil {
		return InterBranchTotals{}, fmt.Errorf("reports repo not initialised")
	}
	totals := InterBranchTotals{Income: decimal.Zero, Expense: decimal.Zero}
	income, err := r.interBranchSum(ctx, tenantID, window, branches, "from_branch_id", []string{"paid"})
	if err != nil {
		return InterBranchTotals{}, err
	}
	expense, err := r.interBranchSum(ctx, tenantID, window, branches, "to_branch_id", []string{"paid"})
	if err != nil {
		return InterBranchTotals{}, err
	}
	totals.Income = income
	totals.Expense = expense
	return totals, nil
}

func (r *Repository) interBranchSum(ctx context.Context, tenantID string, window DateWindow, branches BranchPredicate, directionColumn string, statuses []string) (decimal.Decimal, error) {
	query := `
SELECT COALESCE(SUM(ib.amount), 0)::text
FROM inter_branch_invoices ib
WHERE ib.tenant_id = $1 AND ib.status = ANY($2) AND ib.issued_on BETWEEN $3 AND $4`
	args := []any{tenantID, statuses, window.Start, window.End}
	clause, extra := branches.Clause("ib."+directionColumn, len(args)+1)
	query += clause
	args = append(args, extra...)

	var raw string
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&raw); err != nil {
		return decimal.Zero, fmt.Errorf("reports: inter-branch sum: %w", err)
	}
	sum, err := parseAmount(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("reports: inter-branch sum: %w", err)
	}
	return sum, nil
}

// SettlementBreakdown groups inter-branch invoices by status for the
// settlement-summary report. A filtered branch sees invoices it sent and
// invoices it received.
func (r *Repository) SettlementBreakdown(ctx context.Context, tenantID string, window DateWindow, branches BranchPredicate) ([]SettlementStatusTotal, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("reports repo not initialised")
	}
	query := `
SELECT ib.status, COUNT(*), COALESCE(SUM(ib.amount), 0)::text
FROM inter_branch_invoices ib
WHERE ib.tenant_id = $1 AND ib.issued_on BETWEEN $2 AND $3`
	args := []any{tenantID, window.Start, window.End}
	clause, extra := branches.ClauseEither("ib.from_branch_id", "ib.to_branch_id", len(args)+1)
	query += clause
	args = append(args, extra...)
	query += "\nGROUP BY ib.status\nORDER BY ib.status"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("reports: settlement breakdown: %w", err)
	}
	defer rows.Close()
	var breakdown []SettlementStatusTotal
	for rows.Next() {
		var row SettlementStatusTotal
		var raw string
		if err := rows.Scan(&row.Status, &row.Count, &raw); err != nil {
			return nil, fmt.Errorf("reports: settlement breakdown: %w", err)
		}
		if row.Amount, err = parseAmount(raw); err != nil {
			return nil, fmt.Errorf("reports: settlement breakdown: %w", err)
		}
		breakdown = append(breakdown, row)
	}
	return breakdown, rows.Err()
}

// PaymentMethodTotals slices completed sales by payment method. The
// percentage column is derived later; zero rows mean an empty breakdown.
func (r *Repository) PaymentMethodTotals(ctx context.Context, tenantID string, window DateWindow, branches BranchPredicate) ([]PaymentMethodTotal, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("reports repo not initialised")
	}
	query := `
SELECT st.payment_method, COUNT(*), COALESCE(SUM(st.total), 0)::text
FROM sales_transactions st
WHERE st.tenant_id = $1 AND st.status = $2 AND st.occurred_at BETWEEN $3 AND $4`
	args := []any{tenantID, completedStatus, window.Start, window.End}
	clause, extra := branches.Clause("st.branch_id", len(args)+1)
	query += clause
	args = append(args, extra...)
	query += "\nGROUP BY st.payment_method\nORDER BY 3 DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("reports: payment method totals: %w", err)
	}
	defer rows.Close()
	var totals []PaymentMethodTotal
	for rows.Next() {
		var t PaymentMethodTotal
		var raw string
		if err := rows.Scan(&t.Method, &t.Count, &raw); err != nil {
			return nil, fmt.Errorf("reports: payment method totals: %w", err)
		}
		if t.Amount, err = parseAmount(raw); err != nil {
			return nil, fmt.Errorf("reports: payment method totals: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// TopBranches ranks branches by summed completed revenue, capped to limit.
func (r *Repository) TopBranches(ctx context.Context, tenantID string, window DateWindow, branches BranchPredicate, limit int) ([]TopRevenueRow, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("reports repo not initialised")
	}
	query := `
SELECT st.branch_id, b.name, COALESCE(SUM(st.total), 0)::text, COUNT(*)
FROM sales_transactions st
JOIN branches b ON b.id = st.branch_id AND b.tenant_id = st.tenant_id
WHERE st.tenant_id = $1 AND st.status = $2 AND st.occurred_at BETWEEN $3 AND $4`
	args := []any{tenantID, completedStatus, window.Start, window.End}
	clause, extra := branches.Clause("st.branch_id", len(args)+1)
	query += clause
	args = append(args, extra...)
	args = append(args, limit)
	query += fmt.Sprintf("\nGROUP BY st.branch_id, b.name\nORDER BY SUM(st.total) DESC\nLIMIT $%d", len(args))
	return r.topRows(ctx, query, args, "top branches")
}

// TopCategories ranks product categories by summed completed revenue.
func (r *Repository) TopCategories(ctx context.Context, tenantID string, window DateWindow, branches BranchPredicate, limit int) ([]TopRevenueRow, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("reports repo not initialised")
	}
	query := `
SELECT p.category, p.category, COALESCE(SUM(li.quantity * li.unit_price), 0)::text, COUNT(DISTINCT st.id)
FROM sales_line_items li
JOIN sales_transactions st ON st.id = li.transaction_id AND st.tenant_id = li.tenant_id
JOIN products p ON p.id = li.product_id AND p.tenant_id = li.tenant_id
WHERE li.tenant_id = $1 AND st.status = $2 AND st.occurred_at BETWEEN $3 AND $4`
	args := []any{tenantID, completedStatus, window.Start, window.End}
	clause, extra := branches.Clause("st.branch_id", len(args)+1)
	query += clause
	args = append(args, extra...)
	args = append(args, limit)
	query += fmt.Sprintf("\nGROUP BY p.category\nORDER BY SUM(li.quantity * li.unit_price) DESC\nLIMIT $%d", len(args))
	return r.topRows(ctx, query, args, "top categories")
}

func (r *Repository) topRows(ctx context.Context, query string, args []any, label string) ([]TopRevenueRow, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("reports: %s: %w", label, err)
	}
	defer rows.Close()
	var ranked []TopRevenueRow
	for rows.Next() {
		var row TopRevenueRow
		var raw string
		if err := rows.Scan(&row.Key, &row.Label, &raw, &row.Transactions); err != nil {
			return nil, fmt.Errorf("reports: %s: %w", label, err)
		}
		if row.Revenue, err = parseAmount(raw); err != nil {
			return nil, fmt.Errorf("reports: %s: %w", label, err)
		}
		ranked = append(ranked, row)
	}
	return ranked, rows.Err()
}

// BalanceSheetTotals gathers the current-asset and liability proxy values.
func (r *Repository) BalanceSheetTotals(ctx context.Context, tenantID string, window DateWindow, branches BranchPredicate) (BalanceSheetTotals, error) {
	if r == nil || r.pool == nil {
		return BalanceSheetTotals{}, fmt.Errorf("reports repo not initialised")
	}
	var totals BalanceSheetTotals
	var err error

	inventoryQuery := `
SELECT COALESCE(SUM(p.stock * p.cost), 0)::text
FROM products p
JOIN branches b ON b.id = p.branch_id AND b.tenant_id = p.tenant_id
WHERE p.tenant_id = $1 AND p.active AND b.active`
	inventoryArgs := []any{tenantID}
	clause, extra := branches.Clause("p.branch_id", len(inventoryArgs)+1)
	inventoryQuery += clause
	inventoryArgs = append(inventoryArgs, extra...)
	if totals.InventoryValue, err = r.scanSum(ctx, inventoryQuery, inventoryArgs, "inventory value"); err != nil {
		return BalanceSheetTotals{}, err
	}

	cashQuery := `
SELECT COALESCE(SUM(lt.amount), 0)::text
FROM ledger_transactions lt
WHERE lt.tenant_id = $1 AND lt.type = 'income' AND lt.status = 'posted'
  AND lt.category IN ('cash', 'bank_transfer')
  AND lt.occurred_on BETWEEN $2 AND $3`
	cashArgs := []any{tenantID, window.Start, window.End}
	clause, extra = branches.Clause("lt.branch_id", len(cashArgs)+1)
	cashQuery += clause
	cashArgs = append(cashArgs, extra...)
	if totals.CashAndBank, err = r.scanSum(ctx, cashQuery, cashArgs, "cash and bank"); err != nil {
		return BalanceSheetTotals{}, err
	}

	outstanding := []string{"sent", "viewed", "overdue"}
	if totals.InterBranchReceivable, err = r.interBranchSum(ctx, tenantID, window, branches, "from_branch_id", outstanding); err != nil {
		return BalanceSheetTotals{}, err
	}
	if totals.InterBranchPayable, err = r.interBranchSum(ctx, tenantID, window, branches, "to_branch_id", outstanding); err != nil {
		return BalanceSheetTotals{}, err
	}

	apQuery := `
SELECT COALESCE(SUM(lt.amount), 0)::text
FROM ledger_transactions lt
WHERE lt.tenant_id = $1 AND lt.type = 'expense' AND lt.status = 'posted'
  AND lt.category = 'accounts_payable'
  AND lt.occurred_on BETWEEN $2 AND $3`
	apArgs := []any{tenantID, window.Start, window.End}
	clause, extra = branches.Clause("lt.branch_id", len(apArgs)+1)
	apQuery += clause
	apArgs = append(apArgs, extra...)
	if totals.AccountsPayable, err = r.scanSum(ctx, apQuery, apArgs, "accounts payable"); err != nil {
		return BalanceSheetTotals{}, err
	}

	return totals, nil
}

func (r *Repository) scanSum(ctx context.Context, query string, args []any, label string) (decimal.Decimal, error) {
	var raw string
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&raw); err != nil {
		return decimal.Zero, fmt.Errorf("reports: %s: %w", label, err)
	}
	sum, err := parseAmount(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("reports: %s: %w", label, err)
	}
	return sum, nil
}

// RecentTransactions returns the most recent completed sales, newest
// first, capped to limit. Used only when includeDetails is requested.
func (r *Repository) RecentTransactions(ctx context.Context, tenantID string, window DateWindow, branches BranchPredicate, limit int) ([]TransactionDetail, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("reports repo not initialised")
	}
	query := `
SELECT st.id, st.branch_id, COALESCE(st.customer_id, ''), st.payment_method,
       st.subtotal::text, st.discount::text, st.tax::text, st.total::text, st.occurred_at
FROM sales_transactions st
WHERE st.tenant_id = $1 AND st.status = $2 AND st.occurred_at BETWEEN $3 AND $4`
	args := []any{tenantID, completedStatus, window.Start, window.End}
	clause, extra := branches.Clause("st.branch_id", len(args)+1)
	query += clause
	args = append(args, extra...)
	args = append(args, limit)
	query += fmt.Sprintf("\nORDER BY st.occurred_at DESC\nLIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("reports: recent transactions: %w", err)
	}
	defer rows.Close()
	var details []TransactionDetail
	for rows.Next() {
		var d TransactionDetail
		var subtotal, discount, tax, total string
		if err := rows.Scan(&d.ID, &d.BranchID, &d.CustomerID, &d.PaymentMethod, &subtotal, &discount, &tax, &total, &d.OccurredAt); err != nil {
			return nil, fmt.Errorf("reports: recent transactions: %w", err)
		}
		if d.Subtotal, err = parseAmount(subtotal); err != nil {
			return nil, err
		}
		if d.Discount, err = parseAmount(discount); err != nil {
			return nil, err
		}
		if d.Tax, err = parseAmount(tax); err != nil {
			return nil, err
		}
		if d.Total, err = parseAmount(total); err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

// ActiveBranchIDs lists the tenant's active branch ids.
func (r *Repository) ActiveBranchIDs(ctx context.Context, tenantID string) ([]string, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("reports repo not initialised")
	}
	const query = `SELECT id FROM branches WHERE tenant_id = $1 AND active ORDER BY name`
	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("reports: active branches: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("reports: active branches: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// TenantCurrency resolves the tenant's currency code, falling back to the
// default when the tenant row is missing.
func (r *Repository) TenantCurrency(ctx context.Context, tenantID string) (string, error) {
	if r == nil || r.pool == nil {
		return "", fmt.Errorf("reports repo not initialised")
	}
	const query = `SELECT currency FROM tenants WHERE id = $1`
	var currency string
	if err := r.pool.QueryRow(ctx, query, tenantID).Scan(&currency); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return defaultCurrency, nil
		}
		return "", fmt.Errorf("reports: tenant currency: %w", err)
	}
	if currency == "" {
		return defaultCurrency, nil
	}
	return currency, nil
}
