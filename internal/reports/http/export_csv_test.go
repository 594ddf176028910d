package reporthttp

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-pos/meridian-pos/internal/reports"
)

func csvRows(t *testing.T, raw []byte) [][]string {
	t.Helper()
	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	return rows
}

func findMetric(rows [][]string, key string) (string, bool) {
	for _, row := range rows {
		if len(row) == 2 && row[0] == key {
			return row[1], true
		}
	}
	return "", false
}

func TestWriteResultCSV(t *testing.T) {
	net, _ := decimal.NewFromString("1000.456")
	result := &reports.Result{
		Summary: reports.ProfitLossSummary{
			RevenueTotals: reports.RevenueTotals{Transactions: 10, Net: net},
			NetProfit:     net,
		},
		Metadata: reports.Metadata{
			ReportType:  "p&l",
			GeneratedAt: time.Date(2026, 8, 19, 15, 0, 0, 0, time.UTC),
			GeneratedBy: reports.Identity{Email: "ana@example.com"},
			Currency:    "USD",
		},
	}

	buf := &bytes.Buffer{}
	if err := WriteResultCSV(buf, "p&l", result); err != nil {
		t.Fatal(err)
	}
	rows := csvRows(t, buf.Bytes())

	if rows[0][0] != "Report" || rows[0][1] != "p&l" {
		t.Fatalf("header row = %v", rows[0])
	}
	if value, ok := findMetric(rows, "Currency"); !ok || value != "USD" {
		t.Fatalf("currency row = %q", value)
	}
	// USD money is rounded to two minor units at presentation time.
	if value, ok := findMetric(rows, "netProfit"); !ok || value != "1000.46" {
		t.Fatalf("netProfit = %q", value)
	}
	if value, ok := findMetric(rows, "totalTransactions"); !ok || value != "10" {
		t.Fatalf("totalTransactions = %q", value)
	}
}

func TestWriteResultCSVCacheRehydratedSummary(t *testing.T) {
	// After a cache round trip the summary arrives as a generic map.
	result := &reports.Result{
		Summary: map[string]any{
			"netProfit":         "250.005",
			"totalTransactions": float64(3),
			"balanceCheck":      true,
		},
		Metadata: reports.Metadata{
			GeneratedAt: time.Date(2026, 8, 19, 15, 0, 0, 0, time.UTC),
			Currency:    "USD",
		},
	}

	buf := &bytes.Buffer{}
	if err := WriteResultCSV(buf, "balance", result); err != nil {
		t.Fatal(err)
	}
	rows := csvRows(t, buf.Bytes())

	if value, ok := findMetric(rows, "netProfit"); !ok || value != "250.01" {
		t.Fatalf("netProfit = %q", value)
	}
	if value, ok := findMetric(rows, "balanceCheck"); !ok || value != "true" {
		t.Fatalf("balanceCheck = %q", value)
	}
	if value, ok := findMetric(rows, "totalTransactions"); !ok || value != "3" {
		t.Fatalf("totalTransactions = %q", value)
	}
}

func TestWriteResultCSVLeavesNonMoneyStringsVerbatim(t *testing.T) {
	summary := reports.DailySalesSummary{
		Date:     "2026-08-18",
		BranchID: "42",
		RevenueTotals: reports.RevenueTotals{
			Transactions: 4,
			Gross:        decimal.RequireFromString("100.456"),
		},
		RevenueGrowth: decimal.RequireFromString("12.5"),
	}
	result := &reports.Result{
		Summary: summary,
		Metadata: reports.Metadata{
			GeneratedAt: time.Date(2026, 8, 19, 15, 0, 0, 0, time.UTC),
			Currency:    "USD",
		},
	}

	buf := &bytes.Buffer{}
	if err := WriteResultCSV(buf, "daily-sales-summary", result); err != nil {
		t.Fatal(err)
	}
	rows := csvRows(t, buf.Bytes())

	// A numeric branch id is not money and must not be re-scaled.
	if value, ok := findMetric(rows, "branchId"); !ok || value != "42" {
		t.Fatalf("branchId = %q", value)
	}
	if value, ok := findMetric(rows, "date"); !ok || value != "2026-08-18" {
		t.Fatalf("date = %q", value)
	}
	// Growth is a ratio; it keeps its exact decimal form.
	if value, ok := findMetric(rows, "revenueGrowth"); !ok || value != "12.5" {
		t.Fatalf("revenueGrowth = %q", value)
	}
	if value, ok := findMetric(rows, "grossRevenue"); !ok || value != "100.46" {
		t.Fatalf("grossRevenue = %q", value)
	}
}

func TestSanitizeFilename(t *testing.T) {
	got := strings.Map(sanitizeFilenameRune, "p&l")
	if got != "p-l" {
		t.Fatalf("sanitized = %q", got)
	}
}
