package reporthttp

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/meridian-pos/meridian-pos/internal/platform/httpx"
	"github.com/meridian-pos/meridian-pos/internal/reports"
	"github.com/meridian-pos/meridian-pos/internal/shared"
	"github.com/meridian-pos/meridian-pos/internal/webhooks"
)

const requestTimeout = 30 * time.Second

// ReportService is the reporting pipeline contract used by the handler.
type ReportService interface {
	Consolidated(ctx context.Context, tenantID string, req reports.Request) (*reports.Result, error)
	Financial(ctx context.Context, tenantID string, reportType reports.FinancialReportType, req reports.Request) (*reports.Result, error)
	DailySales(ctx context.Context, tenantID string, req reports.DailySummaryRequest) (*reports.Result, error)
}

// Dispatcher enqueues webhook deliveries for a finished report payload.
type Dispatcher interface {
	Dispatch(ctx context.Context, tenantID, event string, payload any) error
}

// DispatchLogStore lists prior webhook dispatch attempts.
type DispatchLogStore interface {
	ListLogs(ctx context.Context, tenantID string, page shared.Pagination) ([]webhooks.DispatchLog, int, error)
}

// Handler wires the consolidated reporting endpoints.
type Handler struct {
	logger     *slog.Logger
	service    ReportService
	dispatcher Dispatcher
	logs       DispatchLogStore
	validate   *validator.Validate
	now        func() time.Time
}

// NewHandler constructs the reports HTTP handler. dispatcher and logs
// may be nil when webhook delivery is disabled.
func NewHandler(logger *slog.Logger, service ReportService, dispatcher Dispatcher, logs DispatchLogStore) *Handler {
	return &Handler{
		logger:     logger,
		service:    service,
		dispatcher: dispatcher,
		logs:       logs,
		validate:   validator.New(),
		now:        time.Now,
	}
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

func (h *Handler) handleConsolidated(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	req, err := h.parseRequest(r, identity)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	req.Type = reports.ReportType(strings.TrimSpace(r.URL.Query().Get("reportType")))

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	result, err := h.service.Consolidated(ctx, identity.TenantID, req)
	if err != nil {
		h.logError(r, "build consolidated report", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, result)
}

func (h *Handler) handleConsolidatedFinancial(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	switch format {
	case "", "json", "csv":
	case "pdf":
		httpx.RespondError(w, reports.ErrFormatNotImplemented)
		return
	default:
		httpx.Fail(w, http.StatusBadRequest, httpx.CodeInvalidReportType, "Unsupported format")
		return
	}

	req, err := h.parseRequest(r, identity)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	reportType := reports.FinancialReportType(strings.TrimSpace(r.URL.Query().Get("reportType")))
	if reportType == "" {
		reportType = reports.FinancialSummary
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	result, err := h.service.Financial(ctx, identity.TenantID, reportType, req)
	if err != nil {
		h.logError(r, "build financial report", err)
		httpx.RespondError(w, err)
		return
	}
	if format == "csv" {
		h.serveCSV(w, string(reportType), result)
		return
	}
	httpx.OK(w, result)
}

type dailySummaryRequest struct {
	BranchID       string `json:"branchId" validate:"required"`
	Date           string `json:"date" validate:"required,datetime=2006-01-02"`
	IncludeDetails bool   `json:"includeDetails"`
}

func (h *Handler) handleDailySummary(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())

	var body dailySummaryRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Fail(w, http.StatusBadRequest, httpx.CodeInvalidReportType, "Malformed request body")
		return
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.Fail(w, http.StatusBadRequest, httpx.CodeInvalidReportType, "branchId and date are required")
		return
	}
	date, err := time.ParseInLocation("2006-01-02", body.Date, time.UTC)
	if err != nil {
		httpx.RespondError(w, reports.ErrInvalidPeriod)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	result, err := h.service.DailySales(ctx, identity.TenantID, reports.DailySummaryRequest{
		BranchID:       body.BranchID,
		Date:           date,
		IncludeDetails: body.IncludeDetails,
		Requester:      requester(identity),
	})
	if err != nil {
		h.logError(r, "build daily sales summary", err)
		httpx.RespondError(w, err)
		return
	}

	// The report is already computed; a failed dispatch is logged and
	// never fails the response.
	if h.dispatcher != nil {
		if err := h.dispatcher.Dispatch(ctx, identity.TenantID, webhooks.EventDailySalesSummary, result); err != nil {
			h.logError(r, "dispatch daily sales summary", err)
		}
	}
	httpx.OK(w, result)
}

func (h *Handler) handleDispatchLogs(w http.ResponseWriter, r *http.Request) {
	if h.logs == nil {
		httpx.Fail(w, http.StatusNotImplemented, httpx.CodeNotImplemented, "Webhook dispatch logging is disabled")
		return
	}
	identity := shared.IdentityFromContext(r.Context())
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	pagination := shared.NewPagination(page, limit, 0)

	logs, total, err := h.logs.ListLogs(r.Context(), identity.TenantID, pagination)
	if err != nil {
		h.logError(r, "list dispatch logs", err)
		httpx.RespondError(w, reports.ErrDataUnavailable)
		return
	}
	pagination = shared.NewPagination(pagination.Page, pagination.Limit, total)
	httpx.Page(w, logs, httpx.PageInfo{
		Total:      pagination.Total,
		Page:       pagination.Page,
		Limit:      pagination.Limit,
		TotalPages: pagination.TotalPages,
	})
}

// parseRequest resolves the shared filter parameters: period or explicit
// dates, branch selector, group-by dimension and the details flag.
func (h *Handler) parseRequest(r *http.Request, identity shared.Identity) (reports.Request, error) {
	q := r.URL.Query()
	window, err := reports.ResolveWindow(q.Get("period"), q.Get("startDate"), q.Get("endDate"), h.now())
	if err != nil {
		return reports.Request{}, err
	}
	branches, err := reports.ParseBranchSelector(q.Get("branchIds"))
	if err != nil {
		return reports.Request{}, err
	}
	groupBy, err := reports.ParseGroupBy(q.Get("groupBy"))
	if err != nil {
		return reports.Request{}, err
	}
	return reports.Request{
		Period:         strings.TrimSpace(q.Get("period")),
		Window:         window,
		ExplicitRange:  strings.TrimSpace(q.Get("startDate")) != "",
		Branches:       branches,
		GroupBy:        groupBy,
		IncludeDetails: strings.EqualFold(q.Get("includeDetails"), "true"),
		Requester:      requester(identity),
	}, nil
}

func requester(identity shared.Identity) reports.Identity {
	return reports.Identity{ID: identity.UserID, Name: identity.Name, Email: identity.Email}
}

func (h *Handler) logError(r *http.Request, msg string, err error) {
	if h.logger == nil {
		return
	}
	h.logger.Error(msg, slog.String("path", r.URL.Path), slog.Any("error", err))
}
