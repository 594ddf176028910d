package reports

import "errors"

// Sentinel errors surfaced through the HTTP error taxonomy.
var (
	// ErrInvalidPeriod indicates an unrecognised period keyword or a
	// malformed explicit date range.
	ErrInvalidPeriod = errors.New("invalid report period")
	// ErrInvalidBranchFilter indicates a branch selector that parsed to
	// an empty or malformed id set.
	ErrInvalidBranchFilter = errors.New("invalid branch filter")
	// ErrInvalidReportType indicates an unsupported report type value.
	ErrInvalidReportType = errors.New("invalid report type")
	// ErrInvalidGroupBy indicates an unsupported group-by dimension.
	ErrInvalidGroupBy = errors.New("invalid group by dimension")
	// ErrDataUnavailable indicates the underlying store failed; the whole
	// report is aborted rather than returning silently zeroed aggregates.
	ErrDataUnavailable = errors.New("report data unavailable")
	// ErrFormatNotImplemented indicates a requested output format the
	// engine does not produce (PDF).
	ErrFormatNotImplemented = errors.New("report format not implemented")
)
