package reports

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// DailySummaryRequest carries the parameters for one daily sales summary.
type DailySummaryRequest struct {
	BranchID       string
	Date           time.Time
	IncludeDetails bool
	Requester      Identity
}

// DailySalesSummary is the summary block of the daily report, including
// day-over-day growth versus the immediately preceding calendar day.
type DailySalesSummary struct {
	Date     string `json:"date"`
	BranchID string `json:"branchId"`
	RevenueTotals
	TransactionGrowth decimal.Decimal `json:"transactionGrowth"`
	RevenueGrowth     decimal.Decimal `json:"revenueGrowth"`
}

// DailySales builds the daily sales summary for one branch and day.
func (s *Service) DailySales(ctx context.Context, tenantID string, req DailySummaryRequest) (*Result, error) {
	if s == nil || s.repo == nil {
		return nil, errors.New("reports: service not initialised")
	}
	branches, err := BranchSet([]string{req.BranchID})
	if err != nil {
		return nil, err
	}
	window := DayWindow(req.Date)
	previous := DayWindow(req.Date.AddDate(0, 0, -1))

	var (
		today      RevenueTotals
		yesterday  RevenueTotals
		payments   []PaymentMethodTotal
		categories []TopRevenueRow
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		today, err = s.repo.RevenueTotals(gctx, tenantID, window, branches)
		return err
	})
	g.Go(func() error {
		var err error
		yesterday, err = s.repo.RevenueTotals(gctx, tenantID, previous, branches)
		return err
	})
	g.Go(func() error {
		var err error
		payments, err = s.repo.PaymentMethodTotals(gctx, tenantID, window, branches)
		return err
	})
	g.Go(func() error {
		var err error
		categories, err = s.repo.TopCategories(gctx, tenantID, window, branches, topLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, wrapDataErr(err)
	}

	summary := DailySalesSummary{
		Date:              window.Start.Format(dateLayout),
		BranchID:          req.BranchID,
		RevenueTotals:     today,
		TransactionGrowth: CountGrowth(today.Transactions, yesterday.Transactions),
		RevenueGrowth:     Growth(today.Gross, yesterday.Gross),
	}
	result := &Result{
		Summary: summary,
		Breakdowns: &Breakdowns{
			PaymentMethods: ApplyPaymentPercentages(payments),
			TopCategories:  categories,
		},
	}
	if req.IncludeDetails {
		details, err := s.repo.RecentTransactions(ctx, tenantID, window, branches, detailLimit)
		if err != nil {
			return nil, wrapDataErr(err)
		}
		result.Details = details
	}
	serviceReq := Request{
		Type:      ReportType("daily-sales-summary"),
		Period:    window.Start.Format(dateLayout),
		Window:    window,
		Requester: req.Requester,
	}
	if err := s.attachMetadata(ctx, tenantID, serviceReq, result); err != nil {
		return nil, err
	}
	return result, nil
}
