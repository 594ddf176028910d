package reports

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// ProfitLossSummary is the derived P&L block.
type ProfitLossSummary struct {
	RevenueTotals
	TotalCOGS          decimal.Decimal `json:"totalCOGS"`
	GrossProfit        decimal.Decimal `json:"grossProfit"`
	TotalExpenses      decimal.Decimal `json:"totalExpenses"`
	OperatingProfit    decimal.Decimal `json:"operatingProfit"`
	InterBranchIncome  decimal.Decimal `json:"interBranchIncome"`
	InterBranchExpense decimal.Decimal `json:"interBranchExpense"`
	NetProfit          decimal.Decimal `json:"netProfit"`
	ProfitMargin       decimal.Decimal `json:"profitMargin"`
}

// BuildProfitLoss combines aggregator outputs into the P&L summary.
// The margin is defined as zero when net revenue is zero.
func BuildProfitLoss(revenue RevenueTotals, cogs decimal.Decimal, expenses []ExpenseCategoryTotal, interBranch InterBranchTotals) ProfitLossSummary {
	totalExpenses := SumExpenses(expenses)
	grossProfit := revenue.Net.Sub(cogs)
	operatingProfit := grossProfit.Sub(totalExpenses)
	netProfit := operatingProfit.Add(interBranch.Income).Sub(interBranch.Expense)
	margin := decimal.Zero
	if !revenue.Net.IsZero() {
		margin = netProfit.Div(revenue.Net).Mul(hundred)
	}
	return ProfitLossSummary{
		RevenueTotals:      revenue,
		TotalCOGS:          cogs,
		GrossProfit:        grossProfit,
		TotalExpenses:      totalExpenses,
		OperatingProfit:    operatingProfit,
		InterBranchIncome:  interBranch.Income,
		InterBranchExpense: interBranch.Expense,
		NetProfit:          netProfit,
		ProfitMargin:       margin,
	}
}

// SumExpenses totals the per-category expense sums.
func SumExpenses(expenses []ExpenseCategoryTotal) decimal.Decimal {
	total := decimal.Zero
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total
}

// CashFlowSummary is the derived cash-flow block.
type CashFlowSummary struct {
	TotalInflow  decimal.Decimal `json:"totalInflow"`
	TotalOutflow decimal.Decimal `json:"totalOutflow"`
	NetCashFlow  decimal.Decimal `json:"netCashFlow"`
}

// BuildCashFlow nets payment inflows against expense outflows.
func BuildCashFlow(payments []PaymentMethodTotal, expenses []ExpenseCategoryTotal) CashFlowSummary {
	inflow := decimal.Zero
	for _, p := range payments {
		inflow = inflow.Add(p.Amount)
	}
	outflow := SumExpenses(expenses)
	return CashFlowSummary{
		TotalInflow:  inflow,
		TotalOutflow: outflow,
		NetCashFlow:  inflow.Sub(outflow),
	}
}

// ApplyPaymentPercentages fills each row's share of the transaction
// count. An empty breakdown stays empty; a zero denominator yields zero.
func ApplyPaymentPercentages(rows []PaymentMethodTotal) []PaymentMethodTotal {
	var total int64
	for _, row := range rows {
		total += row.Count
	}
	if total == 0 {
		return rows
	}
	denominator := decimal.NewFromInt(total)
	out := make([]PaymentMethodTotal, len(rows))
	for i, row := range rows {
		row.Percentage = decimal.NewFromInt(row.Count).Div(denominator).Mul(hundred)
		out[i] = row
	}
	return out
}

// ComparisonSummary is the tenant-wide rollup over branch buckets.
type ComparisonSummary struct {
	BranchCount         int64           `json:"branchCount"`
	TotalRevenue        decimal.Decimal `json:"totalRevenue"`
	TotalTransactions   int64           `json:"totalTransactions"`
	AvgRevenuePerBranch decimal.Decimal `json:"averageRevenuePerBranch"`
}

// BuildComparison rolls branch buckets up into the tenant summary. The
// average is zero when there are no branches.
func BuildComparison(buckets []RevenueBucket) ComparisonSummary {
	summary := ComparisonSummary{
		BranchCount:         int64(len(buckets)),
		TotalRevenue:        decimal.Zero,
		AvgRevenuePerBranch: decimal.Zero,
	}
	for _, b := range buckets {
		summary.TotalRevenue = summary.TotalRevenue.Add(b.Revenue.Gross)
		summary.TotalTransactions += b.Revenue.Transactions
	}
	if summary.BranchCount > 0 {
		summary.AvgRevenuePerBranch = summary.TotalRevenue.Div(decimal.NewFromInt(summary.BranchCount))
	}
	return summary
}

// BalanceSheetSummary is the derived balance-sheet block. Equity is
// computed as assets minus liabilities, which makes the balance check
// hold by construction; the check is kept for payload compatibility.
type BalanceSheetSummary struct {
	InventoryValue        decimal.Decimal `json:"inventoryValue"`
	CashAndBank           decimal.Decimal `json:"cashAndBank"`
	InterBranchReceivable decimal.Decimal `json:"interBranchReceivables"`
	TotalAssets           decimal.Decimal `json:"totalAssets"`
	AccountsPayable       decimal.Decimal `json:"accountsPayable"`
	InterBranchPayable    decimal.Decimal `json:"interBranchPayables"`
	TotalLiabilities      decimal.Decimal `json:"totalLiabilities"`
	Equity                decimal.Decimal `json:"equity"`
	BalanceCheck          bool            `json:"balanceCheck"`
}

var balanceEpsilon = decimal.NewFromFloat(0.01)

// BuildBalanceSheet derives totals, equity and the balance check.
func BuildBalanceSheet(t BalanceSheetTotals) BalanceSheetSummary {
	assets := t.InventoryValue.Add(t.CashAndBank).Add(t.InterBranchReceivable)
	liabilities := t.AccountsPayable.Add(t.InterBranchPayable)
	equity := assets.Sub(liabilities)
	diff := assets.Sub(liabilities.Add(equity)).Abs()
	return BalanceSheetSummary{
		InventoryValue:        t.InventoryValue,
		CashAndBank:           t.CashAndBank,
		InterBranchReceivable: t.InterBranchReceivable,
		TotalAssets:           assets,
		AccountsPayable:       t.AccountsPayable,
		InterBranchPayable:    t.InterBranchPayable,
		TotalLiabilities:      liabilities,
		Equity:                equity,
		BalanceCheck:          diff.LessThanOrEqual(balanceEpsilon),
	}
}

// Growth returns the percentage change from previous to current, defined
// as zero when the previous value is zero.
func Growth(current, previous decimal.Decimal) decimal.Decimal {
	if previous.IsZero() {
		return decimal.Zero
	}
	return current.Sub(previous).Div(previous).Mul(hundred)
}

// CountGrowth is Growth over integer counts.
func CountGrowth(current, previous int64) decimal.Decimal {
	return Growth(decimal.NewFromInt(current), decimal.NewFromInt(previous))
}
