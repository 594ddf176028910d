package reports

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

type mockRepo struct {
	revenue      RevenueTotals
	revenueByDay map[string]RevenueTotals
	revenueErr   error
	revenueCalls int

	buckets     []RevenueBucket
	bucketCalls int
	lastGroupBy GroupBy

	cogs     decimal.Decimal
	expenses []ExpenseCategoryTotal

	interBranch InterBranchTotals
	settlement  []SettlementStatusTotal

	payments   []PaymentMethodTotal
	topBr      []TopRevenueRow
	topCat     []TopRevenueRow
	balances   BalanceSheetTotals
	details    []TransactionDetail
	detailCall int

	currency      string
	currencyCalls int
}

func (m *mockRepo) RevenueTotals(ctx context.Context, tenantID string, window DateWindow, branches BranchPredicate) (RevenueTotals, error) {
	m.revenueCalls++
	if m.revenueErr != nil {
		return RevenueTotals{}, m.revenueErr
	}
	if m.revenueByDay != nil {
		return m.revenueByDay[window.Start.Format("2006-01-02")], nil
	}
	return m.revenue, nil
}

func (m *mockRepo) RevenueByGroup(ctx context.Context, tenantID string, window DateWindow, branches BranchPredicate, groupBy GroupBy) ([]RevenueBucket, error) {
	m.bucketCalls++
	m.lastGroupBy = groupBy
	return m.buckets, nil
}

func (m *mockRepo) COGSTotal(ctx context.Context, tenantID string, window DateWindow, branches BranchPredicate) (decimal.Decimal, error) {
	return m.cogs, nil
}

func (m *mockRepo) ExpensesByCategory(ctx context.Context, tenantID string, window DateWindow, branches BranchPredicate) ([]ExpenseCategoryTotal, error) {
	return m.expenses, nil
}

func (m *mockRepo) InterBranchTotals(ctx context.Context, tenantID string, window DateWindow, branches BranchPredicate) (InterBranchTotals, error) {
	return m.interBranch, nil
}

func (m *mockRepo) SettlementBreakdown(ctx context.Context, tenantID string, window DateWindow, branches BranchPredicate) ([]SettlementStatusTotal, error) {
	return m.settlement, nil
}

func (m *mockRepo) PaymentMethodTotals(ctx context.Context, tenantID string, window DateWindow, branches BranchPredicate) ([]PaymentMethodTotal, error) {
	return m.payments, nil
}

func (m *mockRepo) TopBranches(ctx context.Context, tenantID string, window DateWindow, branches BranchPredicate, limit int) ([]TopRevenueRow, error) {
	return m.topBr, nil
}

func (m *mockRepo) TopCategories(ctx context.Context, tenantID string, window DateWindow, branches BranchPredicate, limit int) ([]TopRevenueRow, error) {
	return m.topCat, nil
}

func (m *mockRepo) BalanceSheetTotals(ctx context.Context, tenantID string, window DateWindow, branches BranchPredicate) (BalanceSheetTotals, error) {
	return m.balances, nil
}

func (m *mockRepo) RecentTransactions(ctx context.Context, tenantID string, window DateWindow, branches BranchPredicate, limit int) ([]TransactionDetail, error) {
	m.detailCall++
	return m.details, nil
}

func (m *mockRepo) TenantCurrency(ctx context.Context, tenantID string) (string, error) {
	m.currencyCalls++
	if m.currency == "" {
		return "IDR", nil
	}
	return m.currency, nil
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		revenue: RevenueTotals{
			Transactions: 10,
			Customers:    7,
			Gross:        dec("1100"),
			Net:          dec("1000"),
			Discount:     dec("60"),
			Tax:          dec("40"),
			Average:      dec("110"),
		},
		cogs:        dec("400"),
		expenses:    []ExpenseCategoryTotal{{Category: "rent", Amount: dec("150")}},
		interBranch: InterBranchTotals{Income: dec("30"), Expense: dec("10")},
		payments: []PaymentMethodTotal{
			{Method: "cash", Count: 6, Amount: dec("600")},
			{Method: "card", Count: 4, Amount: dec("500")},
		},
		topBr:    []TopRevenueRow{{Key: "b1", Label: "Central", Revenue: dec("700"), Transactions: 6}},
		topCat:   []TopRevenueRow{{Key: "beverages", Label: "beverages", Revenue: dec("300"), Transactions: 5}},
		buckets:  []RevenueBucket{{Key: "b1", Label: "Central", Revenue: RevenueTotals{Gross: dec("1100"), Transactions: 10}}},
		details:  []TransactionDetail{{ID: "tx1", BranchID: "b1", Total: dec("110")}},
		currency: "IDR",
	}
}

func testRequest() Request {
	window, _ := ResolveWindow(PeriodMonth, "", "", testNow)
	return Request{
		Type:    ReportProfitLoss,
		Period:  PeriodMonth,
		Window:  window,
		GroupBy: GroupByBranch,
	}
}

func TestConsolidatedProfitLoss(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil)
	svc.WithNow(func() time.Time { return testNow })

	result, err := svc.Consolidated(context.Background(), "t1", testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	summary, ok := result.Summary.(ProfitLossSummary)
	if !ok {
		t.Fatalf("summary type %T", result.Summary)
	}
	if !summary.GrossProfit.Equal(dec("600")) {
		t.Fatalf("gross profit = %s", summary.GrossProfit)
	}
	if !summary.NetProfit.Equal(dec("470")) {
		t.Fatalf("net profit = %s", summary.NetProfit)
	}
	if result.Breakdowns == nil || len(result.Breakdowns.PaymentMethods) != 2 {
		t.Fatal("missing payment breakdown")
	}
	if !result.Breakdowns.PaymentMethods[0].Percentage.Equal(dec("60")) {
		t.Fatalf("cash percentage = %s", result.Breakdowns.PaymentMethods[0].Percentage)
	}
	if len(result.Details) != 0 {
		t.Fatal("details attached without includeDetails")
	}
	if repo.detailCall != 0 {
		t.Fatal("detail query ran without includeDetails")
	}
	if result.Metadata.Currency != "IDR" {
		t.Fatalf("currency = %q", result.Metadata.Currency)
	}
	if !result.Metadata.GeneratedAt.Equal(testNow) {
		t.Fatalf("generatedAt = %v", result.Metadata.GeneratedAt)
	}
	if result.Metadata.StartDate != nil {
		t.Fatal("startDate set for keyword period")
	}
}

func TestConsolidatedIncludesDetails(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil)
	req := testRequest()
	req.IncludeDetails = true

	result, err := svc.Consolidated(context.Background(), "t1", req)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Details) != 1 || result.Details[0].ID != "tx1" {
		t.Fatalf("details = %v", result.Details)
	}
}

func TestConsolidatedExplicitRangeMetadata(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil)
	req := testRequest()
	req.ExplicitRange = true

	result, err := svc.Consolidated(context.Background(), "t1", req)
	if err != nil {
		t.Fatal(err)
	}
	if result.Metadata.StartDate == nil || result.Metadata.EndDate == nil {
		t.Fatal("explicit range dates missing from metadata")
	}
}

func TestConsolidatedInvalidType(t *testing.T) {
	svc := NewService(newMockRepo(), nil)
	req := testRequest()
	req.Type = ReportType("trial-balance")
	if _, err := svc.Consolidated(context.Background(), "t1", req); !errors.Is(err, ErrInvalidReportType) {
		t.Fatalf("err = %v, want ErrInvalidReportType", err)
	}
}

func TestConsolidatedAggregatorFailure(t *testing.T) {
	repo := newMockRepo()
	repo.revenueErr = errors.New("connection refused")
	svc := NewService(repo, nil)

	_, err := svc.Consolidated(context.Background(), "t1", testRequest())
	if !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("err = %v, want ErrDataUnavailable", err)
	}
}

func TestConsolidatedBalanceSheet(t *testing.T) {
	repo := newMockRepo()
	repo.balances = BalanceSheetTotals{
		InventoryValue:        dec("500"),
		CashAndBank:           dec("200"),
		InterBranchReceivable: dec("100"),
		AccountsPayable:       dec("150"),
		InterBranchPayable:    dec("50"),
	}
	svc := NewService(repo, nil)
	req := testRequest()
	req.Type = ReportBalanceSheet

	result, err := svc.Consolidated(context.Background(), "t1", req)
	if err != nil {
		t.Fatal(err)
	}
	summary := result.Summary.(BalanceSheetSummary)
	if !summary.Equity.Equal(dec("600")) || !summary.BalanceCheck {
		t.Fatalf("summary = %+v", summary)
	}
}

func newCachedService(t *testing.T, repo ReportRepository) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	svc := NewService(repo, NewCache(client, time.Minute))
	svc.WithNow(func() time.Time { return testNow })
	return svc
}

func TestFinancialCaches(t *testing.T) {
	repo := newMockRepo()
	svc := newCachedService(t, repo)
	ctx := context.Background()
	req := testRequest()

	if _, err := svc.Financial(ctx, "t1", FinancialSummary, req); err != nil {
		t.Fatal(err)
	}
	first := repo.revenueCalls

	if _, err := svc.Financial(ctx, "t1", FinancialSummary, req); err != nil {
		t.Fatal(err)
	}
	if repo.revenueCalls != first {
		t.Fatalf("second call hit repository, calls %d -> %d", first, repo.revenueCalls)
	}
}

func TestFinancialCachedResultReflectsEachRequester(t *testing.T) {
	repo := newMockRepo()
	svc := newCachedService(t, repo)
	ctx := context.Background()

	first := testRequest()
	first.Requester = Identity{ID: "u1", Name: "Ana", Email: "ana@example.com"}
	if _, err := svc.Financial(ctx, "t1", FinancialSummary, first); err != nil {
		t.Fatal(err)
	}
	builds := repo.revenueCalls

	second := testRequest()
	second.Requester = Identity{ID: "u2", Name: "Bima", Email: "bima@example.com"}
	result, err := svc.Financial(ctx, "t1", FinancialSummary, second)
	if err != nil {
		t.Fatal(err)
	}
	if repo.revenueCalls != builds {
		t.Fatalf("second requester rebuilt the report, calls %d -> %d", builds, repo.revenueCalls)
	}
	// The cached payload must never carry the identity that populated it.
	if result.Metadata.GeneratedBy != second.Requester {
		t.Fatalf("generatedBy = %+v, want %+v", result.Metadata.GeneratedBy, second.Requester)
	}
}

func TestFinancialCacheKeyVariesByWindow(t *testing.T) {
	repo := newMockRepo()
	svc := newCachedService(t, repo)
	ctx := context.Background()

	req := testRequest()
	if _, err := svc.Financial(ctx, "t1", FinancialSummary, req); err != nil {
		t.Fatal(err)
	}
	first := repo.revenueCalls

	other := req
	other.Window, _ = ResolveWindow(PeriodWeek, "", "", testNow)
	if _, err := svc.Financial(ctx, "t1", FinancialSummary, other); err != nil {
		t.Fatal(err)
	}
	if repo.revenueCalls == first {
		t.Fatal("different window reused cached payload")
	}
}

func TestFinancialBuildErrorAborts(t *testing.T) {
	repo := newMockRepo()
	repo.revenueErr = errors.New("boom")
	svc := newCachedService(t, repo)

	_, err := svc.Financial(context.Background(), "t1", FinancialSummary, testRequest())
	if !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("err = %v, want ErrDataUnavailable", err)
	}
}

func TestFinancialComparison(t *testing.T) {
	repo := newMockRepo()
	repo.buckets = []RevenueBucket{
		{Key: "b1", Revenue: RevenueTotals{Gross: dec("100"), Transactions: 4}},
		{Key: "b2", Revenue: RevenueTotals{Gross: dec("300"), Transactions: 6}},
	}
	svc := NewService(repo, nil)

	result, err := svc.Financial(context.Background(), "t1", FinancialComparison, testRequest())
	if err != nil {
		t.Fatal(err)
	}
	summary := result.Summary.(ComparisonSummary)
	if summary.BranchCount != 2 || !summary.AvgRevenuePerBranch.Equal(dec("200")) {
		t.Fatalf("summary = %+v", summary)
	}
	if repo.lastGroupBy != GroupByBranch {
		t.Fatalf("comparison grouped by %q", repo.lastGroupBy)
	}
}

func TestFinancialInvalidType(t *testing.T) {
	svc := NewService(newMockRepo(), nil)
	if _, err := svc.Financial(context.Background(), "t1", FinancialReportType("weekly"), testRequest()); !errors.Is(err, ErrInvalidReportType) {
		t.Fatalf("err = %v, want ErrInvalidReportType", err)
	}
}

func TestDailySales(t *testing.T) {
	repo := newMockRepo()
	repo.revenueByDay = map[string]RevenueTotals{
		"2026-08-18": {Transactions: 4, Gross: dec("100")},
		"2026-08-17": {Transactions: 2, Gross: dec("50")},
	}
	svc := NewService(repo, nil)
	svc.WithNow(func() time.Time { return testNow })

	result, err := svc.DailySales(context.Background(), "t1", DailySummaryRequest{
		BranchID: "b1",
		Date:     time.Date(2026, 8, 18, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}
	summary := result.Summary.(DailySalesSummary)
	if summary.Date != "2026-08-18" || summary.BranchID != "b1" {
		t.Fatalf("summary = %+v", summary)
	}
	if !summary.RevenueGrowth.Equal(dec("100")) {
		t.Fatalf("revenue growth = %s", summary.RevenueGrowth)
	}
	if !summary.TransactionGrowth.Equal(dec("100")) {
		t.Fatalf("transaction growth = %s", summary.TransactionGrowth)
	}
	if result.Metadata.Period != "2026-08-18" {
		t.Fatalf("metadata period = %q", result.Metadata.Period)
	}
}

func TestDailySalesRequiresBranch(t *testing.T) {
	svc := NewService(newMockRepo(), nil)
	_, err := svc.DailySales(context.Background(), "t1", DailySummaryRequest{Date: testNow})
	if !errors.Is(err, ErrInvalidBranchFilter) {
		t.Fatalf("err = %v, want ErrInvalidBranchFilter", err)
	}
}
