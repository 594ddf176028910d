package reporthttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/meridian-pos/meridian-pos/internal/reports"
	"github.com/meridian-pos/meridian-pos/internal/shared"
	"github.com/meridian-pos/meridian-pos/internal/webhooks"
)

type stubService struct {
	result            *reports.Result
	err               error
	consolidatedCalls int
	financialCalls    int
	dailyCalls        int
	lastFinancialType reports.FinancialReportType
}

func (s *stubService) Consolidated(ctx context.Context, tenantID string, req reports.Request) (*reports.Result, error) {
	s.consolidatedCalls++
	return s.result, s.err
}

func (s *stubService) Financial(ctx context.Context, tenantID string, reportType reports.FinancialReportType, req reports.Request) (*reports.Result, error) {
	s.financialCalls++
	s.lastFinancialType = reportType
	return s.result, s.err
}

func (s *stubService) DailySales(ctx context.Context, tenantID string, req reports.DailySummaryRequest) (*reports.Result, error) {
	s.dailyCalls++
	return s.result, s.err
}

type stubDispatcher struct {
	err   error
	calls int
	event string
}

func (s *stubDispatcher) Dispatch(ctx context.Context, tenantID, event string, payload any) error {
	s.calls++
	s.event = event
	return s.err
}

type stubLogStore struct {
	logs  []webhooks.DispatchLog
	total int
}

func (s *stubLogStore) ListLogs(ctx context.Context, tenantID string, page shared.Pagination) ([]webhooks.DispatchLog, int, error) {
	return s.logs, s.total, nil
}

func sampleResult() *reports.Result {
	gross, _ := decimal.NewFromString("1100")
	return &reports.Result{
		Summary: reports.RevenueTotals{Transactions: 10, Gross: gross},
		Metadata: reports.Metadata{
			ReportType:  "profit-loss",
			GeneratedAt: time.Date(2026, 8, 19, 15, 0, 0, 0, time.UTC),
			Currency:    "IDR",
		},
	}
}

func adminIdentity() shared.Identity {
	return shared.Identity{UserID: "u1", Name: "Ana", Email: "ana@example.com", Role: shared.RoleAdmin, TenantID: "t1"}
}

func newTestRouter(t *testing.T, svc *stubService, dispatcher *stubDispatcher, logs DispatchLogStore, identity shared.Identity) http.Handler {
	t.Helper()
	handler := NewHandler(slog.Default(), svc, dispatcher, logs)
	handler.WithNow(func() time.Time { return time.Date(2026, 8, 19, 15, 0, 0, 0, time.UTC) })

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithIdentity(req.Context(), identity)))
		})
	})
	handler.MountRoutes(r)
	return r
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestConsolidatedRejectsAnonymous(t *testing.T) {
	svc := &stubService{result: sampleResult()}
	router := newTestRouter(t, svc, nil, nil, shared.Identity{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/consolidated?reportType=profit-loss&period=month", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeEnvelope(t, rec)
	if body["success"] != false || body["error"] != "UNAUTHORIZED" {
		t.Fatalf("body = %v", body)
	}
	if svc.consolidatedCalls != 0 {
		t.Fatal("service ran for anonymous caller")
	}
}

func TestConsolidatedRejectsCashier(t *testing.T) {
	svc := &stubService{result: sampleResult()}
	identity := adminIdentity()
	identity.Role = shared.RoleCashier
	router := newTestRouter(t, svc, nil, nil, identity)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/consolidated?reportType=profit-loss&period=month", nil))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeEnvelope(t, rec)
	if body["error"] != "FORBIDDEN" || body["message"] != "Insufficient permissions" {
		t.Fatalf("body = %v", body)
	}
	if svc.consolidatedCalls != 0 {
		t.Fatal("service ran before authorization")
	}
}

func TestConsolidatedSuccess(t *testing.T) {
	svc := &stubService{result: sampleResult()}
	router := newTestRouter(t, svc, nil, nil, adminIdentity())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/consolidated?reportType=profit-loss&period=month", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	body := decodeEnvelope(t, rec)
	if body["success"] != true {
		t.Fatalf("body = %v", body)
	}
	if svc.consolidatedCalls != 1 {
		t.Fatalf("service calls = %d", svc.consolidatedCalls)
	}
}

func TestConsolidatedInvalidPeriod(t *testing.T) {
	svc := &stubService{result: sampleResult()}
	router := newTestRouter(t, svc, nil, nil, adminIdentity())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/consolidated?reportType=profit-loss&period=fortnight", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decodeEnvelope(t, rec); body["error"] != "INVALID_REPORT_PERIOD" {
		t.Fatalf("body = %v", body)
	}
	if svc.consolidatedCalls != 0 {
		t.Fatal("service ran with invalid period")
	}
}

func TestFinancialPDFNotImplemented(t *testing.T) {
	svc := &stubService{result: sampleResult()}
	router := newTestRouter(t, svc, nil, nil, adminIdentity())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/consolidated-financial?period=month&format=pdf", nil))

	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decodeEnvelope(t, rec); body["error"] != "NOT_IMPLEMENTED" {
		t.Fatalf("body = %v", body)
	}
	if svc.financialCalls != 0 {
		t.Fatal("report built for unimplemented format")
	}
}

func TestFinancialUnknownFormat(t *testing.T) {
	svc := &stubService{result: sampleResult()}
	router := newTestRouter(t, svc, nil, nil, adminIdentity())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/consolidated-financial?period=month&format=xlsx", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestFinancialDefaultsToSummary(t *testing.T) {
	svc := &stubService{result: sampleResult()}
	router := newTestRouter(t, svc, nil, nil, adminIdentity())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/consolidated-financial?period=month", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	if svc.lastFinancialType != reports.FinancialSummary {
		t.Fatalf("report type = %q", svc.lastFinancialType)
	}
}

func TestFinancialCSVAttachment(t *testing.T) {
	svc := &stubService{result: sampleResult()}
	router := newTestRouter(t, svc, nil, nil, adminIdentity())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/consolidated-financial?period=month&format=csv", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv; charset=utf-8" {
		t.Fatalf("content type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd == "" {
		t.Fatal("missing attachment disposition")
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("Metric,Value")) {
		t.Fatalf("csv body = %s", rec.Body.String())
	}
}

func TestFinancialTimeoutMapsToReportTimeout(t *testing.T) {
	svc := &stubService{err: context.DeadlineExceeded}
	router := newTestRouter(t, svc, nil, nil, adminIdentity())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/consolidated-financial?period=month", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decodeEnvelope(t, rec); body["error"] != "REPORT_TIMEOUT" {
		t.Fatalf("body = %v", body)
	}
}

func TestDailySummaryDispatches(t *testing.T) {
	svc := &stubService{result: sampleResult()}
	dispatcher := &stubDispatcher{}
	router := newTestRouter(t, svc, dispatcher, nil, adminIdentity())

	payload := `{"branchId":"b1","date":"2026-08-18"}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/reports/daily-sales-summary", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	if svc.dailyCalls != 1 {
		t.Fatalf("daily calls = %d", svc.dailyCalls)
	}
	if dispatcher.calls != 1 || dispatcher.event != webhooks.EventDailySalesSummary {
		t.Fatalf("dispatcher calls = %d event = %q", dispatcher.calls, dispatcher.event)
	}
}

func TestDailySummaryDispatchFailureStillSucceeds(t *testing.T) {
	svc := &stubService{result: sampleResult()}
	dispatcher := &stubDispatcher{err: errors.New("endpoint down")}
	router := newTestRouter(t, svc, dispatcher, nil, adminIdentity())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/reports/daily-sales-summary", bytes.NewBufferString(`{"branchId":"b1","date":"2026-08-18"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	if body := decodeEnvelope(t, rec); body["success"] != true {
		t.Fatalf("body = %v", body)
	}
}

func TestDailySummaryValidation(t *testing.T) {
	svc := &stubService{result: sampleResult()}
	router := newTestRouter(t, svc, nil, nil, adminIdentity())

	for _, payload := range []string{`{}`, `{"branchId":"b1"}`, `{"branchId":"b1","date":"18-08-2026"}`, `not json`} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/reports/daily-sales-summary", bytes.NewBufferString(payload))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("payload %q: status = %d", payload, rec.Code)
		}
	}
	if svc.dailyCalls != 0 {
		t.Fatalf("daily calls = %d", svc.dailyCalls)
	}
}

func TestDispatchLogsPagination(t *testing.T) {
	svc := &stubService{result: sampleResult()}
	logs := &stubLogStore{
		logs:  []webhooks.DispatchLog{{ID: "l1", Event: webhooks.EventDailySalesSummary, Status: webhooks.StatusDelivered}},
		total: 41,
	}
	router := newTestRouter(t, svc, nil, logs, adminIdentity())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/daily-sales-summary?page=2&limit=20", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeEnvelope(t, rec)
	pagination, ok := body["pagination"].(map[string]any)
	if !ok {
		t.Fatalf("body = %v", body)
	}
	if pagination["total"] != float64(41) || pagination["totalPages"] != float64(3) {
		t.Fatalf("pagination = %v", pagination)
	}
}
