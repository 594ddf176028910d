package reporthttp

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	currencyfmt "github.com/meridian-pos/meridian-pos/internal/currency"
	"github.com/meridian-pos/meridian-pos/internal/platform/httpx"
	"github.com/meridian-pos/meridian-pos/internal/reports"
)

func (h *Handler) serveCSV(w http.ResponseWriter, reportType string, result *reports.Result) {
	buf := &bytes.Buffer{}
	if err := WriteResultCSV(buf, reportType, result); err != nil {
		if h.logger != nil {
			h.logger.Error("write report csv", "error", err)
		}
		httpx.Fail(w, http.StatusInternalServerError, httpx.CodeInternal, "Unexpected failure")
		return
	}
	filename := fmt.Sprintf("%s-%s.csv",
		strings.Map(sanitizeFilenameRune, reportType),
		result.Metadata.GeneratedAt.Format("20060102"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if _, err := w.Write(buf.Bytes()); err != nil && h.logger != nil {
		h.logger.Error("stream report csv", "error", err)
	}
}

func sanitizeFilenameRune(r rune) rune {
	switch {
	case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
		return r
	default:
		return '-'
	}
}

// WriteResultCSV flattens the summary block into a Metric/Value table
// with a metadata header. Money values are rounded to the currency's
// minor units here, at presentation time only.
func WriteResultCSV(w io.Writer, reportType string, result *reports.Result) error {
	cw := csv.NewWriter(w)
	code := result.Metadata.Currency
	header := [][]string{
		{"Report", reportType},
		{"Currency", code},
		{"Generated At", result.Metadata.GeneratedAt.UTC().Format(time.RFC3339)},
		{"Generated By", result.Metadata.GeneratedBy.Email},
		{},
		{"Metric", "Value"},
	}
	for _, row := range header {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	for _, pair := range flattenSummary(result.Summary) {
		if err := cw.Write([]string{pair.key, presentValue(code, pair.key, pair.value)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

type summaryPair struct {
	key   string
	value any
}

// flattenSummary works off the JSON form so typed and cache-rehydrated
// summaries render identically. Keys are sorted for a stable layout.
func flattenSummary(summary any) []summaryPair {
	raw, err := json.Marshal(summary)
	if err != nil {
		return nil
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	pairs := make([]summaryPair, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, summaryPair{key: key, value: fields[key]})
	}
	return pairs
}

// moneyKeys names the summary fields that hold currency amounts. Only
// these get minor-unit rounding; other numeric strings (branch ids,
// dates, growth ratios) pass through verbatim.
var moneyKeys = map[string]bool{
	"grossRevenue":            true,
	"netRevenue":              true,
	"totalDiscount":           true,
	"totalTax":                true,
	"averageTransaction":      true,
	"totalCOGS":               true,
	"grossProfit":             true,
	"totalExpenses":           true,
	"operatingProfit":         true,
	"interBranchIncome":       true,
	"interBranchExpense":      true,
	"netProfit":               true,
	"totalInflow":             true,
	"totalOutflow":            true,
	"netCashFlow":             true,
	"totalRevenue":            true,
	"averageRevenuePerBranch": true,
	"inventoryValue":          true,
	"cashAndBank":             true,
	"interBranchReceivables":  true,
	"totalAssets":             true,
	"accountsPayable":         true,
	"interBranchPayables":     true,
	"totalLiabilities":        true,
	"equity":                  true,
	"amount":                  true,
	"revenue":                 true,
	"subtotal":                true,
	"discount":                true,
	"tax":                     true,
	"total":                   true,
}

func presentValue(code, key string, value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case bool:
		return strconv.FormatBool(v)
	case string:
		if moneyKeys[key] {
			if amount, err := decimal.NewFromString(v); err == nil {
				scale := currencyfmt.MinorUnits(code)
				return amount.Round(scale).StringFixed(scale)
			}
		}
		return v
	case float64:
		if v == math.Trunc(v) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
