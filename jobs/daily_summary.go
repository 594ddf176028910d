package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/meridian-pos/meridian-pos/internal/jobs"
	"github.com/meridian-pos/meridian-pos/internal/reports"
	"github.com/meridian-pos/meridian-pos/internal/webhooks"
)

// TaskDailySummaryDispatch schedules the daily sales summary fan-out.
const TaskDailySummaryDispatch = "reports:daily_summary_dispatch"

// DailySummaryPayload configures the scope of one dispatch run.
type DailySummaryPayload struct {
	TenantID string `json:"tenant_id"`
	Date     string `json:"date"`
}

// SummaryService builds the daily sales summary report.
type SummaryService interface {
	DailySales(ctx context.Context, tenantID string, req reports.DailySummaryRequest) (*reports.Result, error)
}

// SummaryDispatcher fans a finished summary out to webhook subscribers.
type SummaryDispatcher interface {
	Dispatch(ctx context.Context, tenantID, event string, payload any) error
}

// TenantDirectory lists tenants with at least one active subscriber.
type TenantDirectory interface {
	SubscribedTenants(ctx context.Context, event string) ([]string, error)
}

// BranchDirectory lists the active branches of a tenant.
type BranchDirectory interface {
	ActiveBranchIDs(ctx context.Context, tenantID string) ([]string, error)
}

// DailySummaryJob computes yesterday's sales summary per branch and
// pushes it to every subscribed endpoint.
type DailySummaryJob struct {
	Service    SummaryService
	Dispatcher SummaryDispatcher
	Tenants    TenantDirectory
	Branches   BranchDirectory
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
	clock      func() time.Time
}

// NewDailySummaryJob constructs the job handler.
func NewDailySummaryJob(service SummaryService, dispatcher SummaryDispatcher, tenants TenantDirectory, branches BranchDirectory, logger *slog.Logger, metrics *jobmetrics.Metrics) *DailySummaryJob {
	return &DailySummaryJob{
		Service:    service,
		Dispatcher: dispatcher,
		Tenants:    tenants,
		Branches:   branches,
		Logger:     logger,
		Metrics:    metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// NewDailySummaryTask creates an Asynq task for the dispatch run. An
// empty tenant means every subscribed tenant; an empty date means
// yesterday.
func NewDailySummaryTask(tenantID, date string) (*asynq.Task, error) {
	payload := DailySummaryPayload{TenantID: tenantID, Date: date}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDailySummaryDispatch, body, asynq.Queue(QueueDefault)), nil
}

// Handle executes the dispatch run. Per-tenant failures are logged and
// skipped so one broken tenant never blocks the rest.
func (j *DailySummaryJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Service == nil || j.Dispatcher == nil || j.Tenants == nil || j.Branches == nil {
		return errors.New("daily summary dispatch: dependencies not configured")
	}
	var payload DailySummaryPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskDailySummaryDispatch)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	date, err := j.resolveDate(payload.Date)
	if err != nil {
		resultErr = err
		j.log().Error("resolve date", slog.String("date", payload.Date), slog.Any("error", err))
		return resultErr
	}
	tenants, err := j.resolveTenants(ctx, payload.TenantID)
	if err != nil {
		resultErr = err
		j.log().Error("resolve tenants", slog.Any("error", err))
		return resultErr
	}
	if len(tenants) == 0 {
		j.log().Info("no subscribed tenants", slog.String("date", date.Format("2006-01-02")))
		return resultErr
	}

	start := j.now()
	dispatched := 0
	for _, tenantID := range tenants {
		n, err := j.dispatchTenant(ctx, tenantID, date)
		dispatched += n
		if err != nil {
			resultErr = err
			j.log().Error("dispatch tenant summaries", slog.String("tenant_id", tenantID), slog.Any("error", err))
		}
	}

	j.log().Info("dispatched daily summaries",
		slog.String("date", date.Format("2006-01-02")),
		slog.Int("tenants", len(tenants)),
		slog.Int("summaries", dispatched),
		slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *DailySummaryJob) dispatchTenant(ctx context.Context, tenantID string, date time.Time) (int, error) {
	branchIDs, err := j.Branches.ActiveBranchIDs(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	dispatched := 0
	for _, branchID := range branchIDs {
		result, err := j.Service.DailySales(ctx, tenantID, reports.DailySummaryRequest{
			BranchID:  branchID,
			Date:      date,
			Requester: reports.Identity{ID: "system", Name: "Scheduled Reports"},
		})
		if err != nil {
			return dispatched, fmt.Errorf("branch %s: %w", branchID, err)
		}
		if err := j.Dispatcher.Dispatch(ctx, tenantID, webhooks.EventDailySalesSummary, result); err != nil {
			return dispatched, fmt.Errorf("branch %s: %w", branchID, err)
		}
		dispatched++
	}
	return dispatched, nil
}

func (j *DailySummaryJob) resolveDate(raw string) (time.Time, error) {
	if raw == "" {
		return j.now().AddDate(0, 0, -1).Truncate(24 * time.Hour), nil
	}
	date, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %s", raw)
	}
	return date, nil
}

func (j *DailySummaryJob) resolveTenants(ctx context.Context, tenantID string) ([]string, error) {
	if tenantID != "" && tenantID != "all" {
		return []string{tenantID}, nil
	}
	return j.Tenants.SubscribedTenants(ctx, webhooks.EventDailySalesSummary)
}

func (j *DailySummaryJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return jobmetrics.NewMetrics(nil)
}

func (j *DailySummaryJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskDailySummaryDispatch))
	}
	return slog.Default().With(slog.String("job", TaskDailySummaryDispatch))
}

func (j *DailySummaryJob) now() time.Time {
	if j != nil && j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

// WithClock overrides the internal clock for deterministic tests.
func (j *DailySummaryJob) WithClock(clock func() time.Time) {
	if j != nil && clock != nil {
		j.clock = clock
	}
}
