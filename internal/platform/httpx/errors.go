package httpx

import (
	"context"
	"errors"
	"net/http"

	"github.com/meridian-pos/meridian-pos/internal/reports"
)

// Machine-readable error codes of the reporting taxonomy.
const (
	CodeInvalidPeriod       = "INVALID_REPORT_PERIOD"
	CodeInvalidBranchFilter = "INVALID_BRANCH_FILTER"
	CodeInvalidReportType   = "INVALID_REPORT_TYPE"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeDataUnavailable     = "REPORT_DATA_UNAVAILABLE"
	CodeTimeout             = "REPORT_TIMEOUT"
	CodeNotImplemented      = "NOT_IMPLEMENTED"
	CodeNotFound            = "NOT_FOUND"
	CodeMethodNotAllowed    = "METHOD_NOT_ALLOWED"
	CodeInternal            = "INTERNAL_ERROR"
)

// RespondError maps a domain error onto the taxonomy and writes the
// failure envelope. Internal causes are never leaked to the client; the
// caller is expected to log them server-side.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, reports.ErrInvalidPeriod):
		Fail(w, http.StatusBadRequest, CodeInvalidPeriod, "Invalid report period")
	case errors.Is(err, reports.ErrInvalidBranchFilter):
		Fail(w, http.StatusBadRequest, CodeInvalidBranchFilter, "Invalid branch filter")
	case errors.Is(err, reports.ErrInvalidReportType), errors.Is(err, reports.ErrInvalidGroupBy):
		Fail(w, http.StatusBadRequest, CodeInvalidReportType, "Invalid report type or filter")
	case errors.Is(err, reports.ErrFormatNotImplemented):
		Fail(w, http.StatusNotImplemented, CodeNotImplemented, "Requested format is not implemented")
	case errors.Is(err, context.DeadlineExceeded):
		Fail(w, http.StatusInternalServerError, CodeTimeout, "Report timed out")
	case errors.Is(err, reports.ErrDataUnavailable):
		Fail(w, http.StatusInternalServerError, CodeDataUnavailable, "Report data unavailable")
	default:
		Fail(w, http.StatusInternalServerError, CodeInternal, "Unexpected failure")
	}
}
