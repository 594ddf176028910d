package reports

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReportType enumerates the consolidated report families.
type ReportType string

// Supported values for the consolidated endpoint.
const (
	ReportProfitLoss   ReportType = "profit-loss"
	ReportBalanceSheet ReportType = "balance-sheet"
	ReportCashFlow     ReportType = "cash-flow"
	ReportInterBranch  ReportType = "inter-branch"
)

// FinancialReportType enumerates the consolidated-financial endpoint variants.
type FinancialReportType string

// Supported values for the consolidated-financial endpoint.
const (
	FinancialSummary    FinancialReportType = "summary"
	FinancialProfitLoss FinancialReportType = "p&l"
	FinancialCashFlow   FinancialReportType = "cashflow"
	FinancialBalance    FinancialReportType = "balance"
	FinancialComparison FinancialReportType = "branch_comparison"
)

// DateWindow is an inclusive pair of instants every aggregator binds to
// its own timestamp column.
type DateWindow struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w DateWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// RevenueTotals holds the flat sums produced by the revenue aggregator.
type RevenueTotals struct {
	Transactions int64           `json:"totalTransactions"`
	Customers    int64           `json:"uniqueCustomers"`
	Gross        decimal.Decimal `json:"grossRevenue"`
	Net          decimal.Decimal `json:"netRevenue"`
	Discount     decimal.Decimal `json:"totalDiscount"`
	Tax          decimal.Decimal `json:"totalTax"`
	Average      decimal.Decimal `json:"averageTransaction"`
}

// RevenueBucket is a revenue aggregate keyed by a group-by dimension value.
type RevenueBucket struct {
	Key     string        `json:"key"`
	Label   string        `json:"label"`
	Revenue RevenueTotals `json:"revenue"`
}

// ExpenseCategoryTotal is the per-category sum from the expense aggregator.
type ExpenseCategoryTotal struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

// InterBranchTotals carries paid invoice sums split by direction.
type InterBranchTotals struct {
	Income  decimal.Decimal `json:"interBranchIncome"`
	Expense decimal.Decimal `json:"interBranchExpense"`
}

// SettlementStatusTotal is one row of the settlement-summary breakdown.
type SettlementStatusTotal struct {
	Status string          `json:"status"`
	Count  int64           `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// PaymentMethodTotal is the per-method slice of completed sales.
// Percentage is filled in by the calculator, not the repository.
type PaymentMethodTotal struct {
	Method     string          `json:"method"`
	Count      int64           `json:"count"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage decimal.Decimal `json:"percentage"`
}

// TopRevenueRow ranks a branch or product category by summed revenue.
type TopRevenueRow struct {
	Key          string          `json:"key"`
	Label        string          `json:"label"`
	Revenue      decimal.Decimal `json:"revenue"`
	Transactions int64           `json:"transactions"`
}

// BalanceSheetTotals holds the proxy values backing the balance-sheet
// report. Equity is derived, never read.
type BalanceSheetTotals struct {
	InventoryValue        decimal.Decimal
	CashAndBank           decimal.Decimal
	InterBranchReceivable decimal.Decimal
	AccountsPayable       decimal.Decimal
	InterBranchPayable    decimal.Decimal
}

// TransactionDetail is a raw sales row appended when includeDetails is set.
type TransactionDetail struct {
	ID            string          `json:"id"`
	BranchID      string          `json:"branchId"`
	CustomerID    string          `json:"customerId,omitempty"`
	PaymentMethod string          `json:"paymentMethod"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	Tax           decimal.Decimal `json:"tax"`
	Total         decimal.Decimal `json:"total"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

// Identity describes the requester recorded in report metadata. It is
// supplied by the session layer, never looked up ambiently.
type Identity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Metadata is the trailer block attached to every report result.
type Metadata struct {
	ReportType  string     `json:"reportType"`
	Period      string     `json:"period,omitempty"`
	StartDate   *time.Time `json:"startDate,omitempty"`
	EndDate     *time.Time `json:"endDate,omitempty"`
	GeneratedAt time.Time  `json:"generatedAt"`
	GeneratedBy Identity   `json:"generatedBy"`
	Currency    string     `json:"currency"`
}
