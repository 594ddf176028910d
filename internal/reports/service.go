package reports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Caps applied to breakdown and detail arrays.
const (
	topLimit    = 10
	detailLimit = 100
)

// ReportRepository abstracts the aggregation queries required by the
// service. Aggregators are mutually independent reads, so the service is
// free to issue them concurrently.
type ReportRepository interface {
	RevenueTotals(ctx context.Context, tenantID string, window DateWindow, branches BranchPredicate) (RevenueTotals, error)
	RevenueByGroup(ctx context.Context, tenantID string, window DateWindow, branches BranchPredicate, groupBy GroupBy) ([]RevenueBucket, error)
	COGSTotal(ctx context.Context, tenantID string, window DateWindow, branches BranchPredicate) (decimal.Decimal, error)
	ExpensesByCategory(ctx context.Context, tenantID string, window DateWindow, branches BranchPredicate) ([]ExpenseCategoryTotal, error)
	InterBranchTotals(ctx context.Context, tenantID string, window DateWindow, branches BranchPredicate) (InterBranchTotals, error)
	SettlementBreakdown(ctx context.Context, tenantID string, window DateWindow, branches BranchPredicate) ([]SettlementStatusTotal, error)
	PaymentMethodTotals(ctx context.Context, tenantID string, window DateWindow, branches BranchPredicate) ([]PaymentMethodTotal, error)
	TopBranches(ctx context.Context, tenantID string, window DateWindow, branches BranchPredicate, limit int) ([]TopRevenueRow, error)
	TopCategories(ctx context.Context, tenantID string, window DateWindow, branches BranchPredicate, limit int) ([]TopRevenueRow, error)
	BalanceSheetTotals(ctx context.Context, tenantID string, window DateWindow, branches BranchPredicate) (BalanceSheetTotals, error)
	RecentTransactions(ctx context.Context, tenantID string, window DateWindow, branches BranchPredicate, limit int) ([]TransactionDetail, error)
	TenantCurrency(ctx context.Context, tenantID string) (string, error)
}

// Request carries the resolved filters for one consolidated report build.
type Request struct {
	Type           ReportType
	Period         string
	Window         DateWindow
	ExplicitRange  bool
	Branches       BranchPredicate
	GroupBy        GroupBy
	IncludeDetails bool
	Requester      Identity
}

// Breakdowns holds the optional arrays attached next to the summary.
type Breakdowns struct {
	Groups            []RevenueBucket         `json:"groups,omitempty"`
	Branches          []RevenueBucket         `json:"branches,omitempty"`
	ExpenseCategories []ExpenseCategoryTotal  `json:"expenseCategories,omitempty"`
	PaymentMethods    []PaymentMethodTotal    `json:"paymentMethods,omitempty"`
	TopBranches       []TopRevenueRow         `json:"topBranches,omitempty"`
	TopCategories     []TopRevenueRow         `json:"topCategories,omitempty"`
	Settlement        []SettlementStatusTotal `json:"settlement,omitempty"`
}

// Result is the assembled report payload. It is never persisted.
type Result struct {
	Summary    any                 `json:"summary"`
	Breakdowns *Breakdowns         `json:"breakdowns,omitempty"`
	Details    []TransactionDetail `json:"details,omitempty"`
	Metadata   Metadata            `json:"metadata"`
}

// Service runs the consolidated report pipeline: aggregators fan out
// concurrently, join, then the calculator and assembler run.
type Service struct {
	repo  ReportRepository
	cache *Cache
	now   func() time.Time
}

// NewService constructs a report service. cache may be nil.
func NewService(repo ReportRepository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache, now: time.Now}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// wrapDataErr maps storage failures onto the data-unavailable taxonomy
// while leaving cancellation errors recognisable for timeout mapping.
func wrapDataErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrDataUnavailable, err)
}

// Consolidated builds one of the consolidated report families. The whole
// request aborts on any aggregator failure; no partial report is returned.
func (s *Service) Consolidated(ctx context.Context, tenantID string, req Request) (*Result, error) {
	if s == nil || s.repo == nil {
		return nil, errors.New("reports: service not initialised")
	}
	result, err := s.build(ctx, tenantID, req)
	if err != nil {
		return nil, err
	}
	if err := s.attachMetadata(ctx, tenantID, req, result); err != nil {
		return nil, err
	}
	return result, nil
}

// build assembles the summary, breakdowns and optional details without
// metadata. Cached payloads go through build only, so a cache entry never
// carries one requester's identity to another.
func (s *Service) build(ctx context.Context, tenantID string, req Request) (*Result, error) {
	var (
		result *Result
		err    error
	)
	switch req.Type {
	case ReportProfitLoss:
		result, err = s.buildProfitLoss(ctx, tenantID, req)
	case ReportBalanceSheet:
		result, err = s.buildBalanceSheet(ctx, tenantID, req)
	case ReportCashFlow:
		result, err = s.buildCashFlow(ctx, tenantID, req)
	case ReportInterBranch:
		result, err = s.buildInterBranch(ctx, tenantID, req)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidReportType, req.Type)
	}
	if err != nil {
		return nil, err
	}
	if req.IncludeDetails {
		details, err := s.repo.RecentTransactions(ctx, tenantID, req.Window, req.Branches, detailLimit)
		if err != nil {
			return nil, wrapDataErr(err)
		}
		result.Details = details
	}
	return result, nil
}

// Financial builds the consolidated-financial report variants, caching
// the computed payload. Cache failures degrade to a direct build.
// Metadata is attached per request, after any cache fetch.
func (s *Service) Financial(ctx context.Context, tenantID string, reportType FinancialReportType, req Request) (*Result, error) {
	if s == nil || s.repo == nil {
		return nil, errors.New("reports: service not initialised")
	}
	var mapped ReportType
	switch reportType {
	case FinancialProfitLoss, FinancialSummary:
		mapped = ReportProfitLoss
	case FinancialCashFlow:
		mapped = ReportCashFlow
	case FinancialBalance:
		mapped = ReportBalanceSheet
	case FinancialComparison:
		return s.branchComparison(ctx, tenantID, req)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidReportType, reportType)
	}
	req.Type = mapped

	if s.cache == nil {
		return s.Consolidated(ctx, tenantID, req)
	}
	keyBase := reportCacheKey(tenantID, string(reportType), req.Window, req.Branches, string(req.GroupBy), fmt.Sprintf("details=%t", req.IncludeDetails))
	key, err := s.cache.BuildKey(ctx, keyBase...)
	if err != nil {
		return s.Consolidated(ctx, tenantID, req)
	}
	var cached Result
	err = s.cache.FetchJSON(ctx, key, &cached, func(ctx context.Context) (interface{}, error) {
		built, err := s.build(ctx, tenantID, req)
		if err != nil {
			return nil, err
		}
		return built, nil
	})
	if err != nil {
		// A build error must abort; a pure cache transport error falls
		// back to a direct build.
		if errors.Is(err, ErrDataUnavailable) || errors.Is(err, ErrInvalidReportType) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return s.Consolidated(ctx, tenantID, req)
	}
	if err := s.attachMetadata(ctx, tenantID, req, &cached); err != nil {
		return nil, err
	}
	return &cached, nil
}

func (s *Service) buildProfitLoss(ctx context.Context, tenantID string, req Request) (*Result, error) {
	var (
		revenue     RevenueTotals
		cogs        decimal.Decimal
		expenses    []ExpenseCategoryTotal
		interBranch InterBranchTotals
		payments    []PaymentMethodTotal
		branches    []TopRevenueRow
		categories  []TopRevenueRow
		groups      []RevenueBucket
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		revenue, err = s.repo.RevenueTotals(gctx, tenantID, req.Window, req.Branches)
		return err
	})
	g.Go(func() error {
		var err error
		cogs, err = s.repo.COGSTotal(gctx, tenantID, req.Window, req.Branches)
		return err
	})
	g.Go(func() error {
		var err error
		expenses, err = s.repo.ExpensesByCategory(gctx, tenantID, req.Window, req.Branches)
		return err
	})
	g.Go(func() error {
		var err error
		interBranch, err = s.repo.InterBranchTotals(gctx, tenantID, req.Window, req.Branches)
		return err
	})
	g.Go(func() error {
		var err error
		payments, err = s.repo.PaymentMethodTotals(gctx, tenantID, req.Window, req.Branches)
		return err
	})
	g.Go(func() error {
		var err error
		branches, err = s.repo.TopBranches(gctx, tenantID, req.Window, req.Branches, topLimit)
		return err
	})
	g.Go(func() error {
		var err error
		categories, err = s.repo.TopCategories(gctx, tenantID, req.Window, req.Branches, topLimit)
		return err
	})
	g.Go(func() error {
		var err error
		groups, err = s.repo.RevenueByGroup(gctx, tenantID, req.Window, req.Branches, req.GroupBy)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, wrapDataErr(err)
	}
	summary := BuildProfitLoss(revenue, cogs, expenses, interBranch)
	return &Result{
		Summary: summary,
		Breakdowns: &Breakdowns{
			Groups:            groups,
			ExpenseCategories: expenses,
			PaymentMethods:    ApplyPaymentPercentages(payments),
			TopBranches:       branches,
			TopCategories:     categories,
		},
	}, nil
}

func (s *Service) buildBalanceSheet(ctx context.Context, tenantID string, req Request) (*Result, error) {
	totals, err := s.repo.BalanceSheetTotals(ctx, tenantID, req.Window, req.Branches)
	if err != nil {
		return nil, wrapDataErr(err)
	}
	return &Result{Summary: BuildBalanceSheet(totals)}, nil
}

func (s *Service) buildCashFlow(ctx context.Context, tenantID string, req Request) (*Result, error) {
	var (
		payments []PaymentMethodTotal
		expenses []ExpenseCategoryTotal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		payments, err = s.repo.PaymentMethodTotals(gctx, tenantID, req.Window, req.Branches)
		return err
	})
	g.Go(func() error {
		var err error
		expenses, err = s.repo.ExpensesByCategory(gctx, tenantID, req.Window, req.Branches)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, wrapDataErr(err)
	}
	return &Result{
		Summary: BuildCashFlow(payments, expenses),
		Breakdowns: &Breakdowns{
			PaymentMethods:    ApplyPaymentPercentages(payments),
			ExpenseCategories: expenses,
		},
	}, nil
}

func (s *Service) buildInterBranch(ctx context.Context, tenantID string, req Request) (*Result, error) {
	var (
		totals     InterBranchTotals
		settlement []SettlementStatusTotal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		totals, err = s.repo.InterBranchTotals(gctx, tenantID, req.Window, req.Branches)
		return err
	})
	g.Go(func() error {
		var err error
		settlement, err = s.repo.SettlementBreakdown(gctx, tenantID, req.Window, req.Branches)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, wrapDataErr(err)
	}
	return &Result{
		Summary:    totals,
		Breakdowns: &Breakdowns{Settlement: settlement},
	}, nil
}

func (s *Service) branchComparison(ctx context.Context, tenantID string, req Request) (*Result, error) {
	buckets, err := s.repo.RevenueByGroup(ctx, tenantID, req.Window, req.Branches, GroupByBranch)
	if err != nil {
		return nil, wrapDataErr(err)
	}
	result := &Result{
		Summary:    BuildComparison(buckets),
		Breakdowns: &Breakdowns{Branches: buckets},
	}
	req.Type = ReportType(FinancialComparison)
	if err := s.attachMetadata(ctx, tenantID, req, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) attachMetadata(ctx context.Context, tenantID string, req Request, result *Result) error {
	currency, err := s.repo.TenantCurrency(ctx, tenantID)
	if err != nil {
		return wrapDataErr(err)
	}
	meta := Metadata{
		ReportType:  string(req.Type),
		Period:      req.Period,
		GeneratedAt: s.now().UTC(),
		GeneratedBy: req.Requester,
		Currency:    currency,
	}
	if req.ExplicitRange {
		start, end := req.Window.Start, req.Window.End
		meta.StartDate = &start
		meta.EndDate = &end
	}
	result.Metadata = meta
	return nil
}
