package reports

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Period keywords resolved against "now".
const (
	PeriodToday     = "today"
	PeriodYesterday = "yesterday"
	PeriodWeek      = "week"
	PeriodMonth     = "month"
	PeriodQuarter   = "quarter"
	PeriodYear      = "year"
)

// ResolveWindow turns a period keyword or an explicit date range into an
// inclusive date window. An explicit range always wins over the keyword;
// a partial range or an unknown keyword is a validation error, never a
// silent default.
func ResolveWindow(period, startDate, endDate string, now time.Time) (DateWindow, error) {
	startDate = strings.TrimSpace(startDate)
	endDate = strings.TrimSpace(endDate)
	if startDate != "" || endDate != "" {
		if startDate == "" || endDate == "" {
			return DateWindow{}, fmt.Errorf("%w: startDate and endDate must both be provided", ErrInvalidPeriod)
		}
		start, err := time.ParseInLocation(dateLayout, startDate, time.UTC)
		if err != nil {
			return DateWindow{}, fmt.Errorf("%w: malformed startDate %q", ErrInvalidPeriod, startDate)
		}
		end, err := time.ParseInLocation(dateLayout, endDate, time.UTC)
		if err != nil {
			return DateWindow{}, fmt.Errorf("%w: malformed endDate %q", ErrInvalidPeriod, endDate)
		}
		end = endOfDay(end)
		if end.Before(start) {
			return DateWindow{}, fmt.Errorf("%w: endDate precedes startDate", ErrInvalidPeriod)
		}
		return DateWindow{Start: start, End: end}, nil
	}

	now = now.UTC()
	today := truncateDay(now)
	switch strings.ToLower(strings.TrimSpace(period)) {
	case PeriodToday:
		return DateWindow{Start: today, End: now}, nil
	case PeriodYesterday:
		start := today.AddDate(0, 0, -1)
		return DateWindow{Start: start, End: endOfDay(start)}, nil
	case PeriodWeek:
		return DateWindow{Start: startOfWeek(today), End: now}, nil
	case PeriodMonth:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		return DateWindow{Start: start, End: now}, nil
	case PeriodQuarter:
		month := now.Month() - (now.Month()-1)%3
		start := time.Date(now.Year(), month, 1, 0, 0, 0, 0, time.UTC)
		return DateWindow{Start: start, End: now}, nil
	case PeriodYear:
		start := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		return DateWindow{Start: start, End: now}, nil
	case "":
		return DateWindow{}, fmt.Errorf("%w: period or explicit date range required", ErrInvalidPeriod)
	default:
		return DateWindow{}, fmt.Errorf("%w: unknown period %q", ErrInvalidPeriod, period)
	}
}

// DayWindow returns the inclusive window covering one calendar day.
func DayWindow(day time.Time) DateWindow {
	start := truncateDay(day.UTC())
	return DateWindow{Start: start, End: endOfDay(start)}
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func endOfDay(t time.Time) time.Time {
	return truncateDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// startOfWeek anchors weeks on Monday.
func startOfWeek(day time.Time) time.Time {
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// BranchPredicate restricts aggregation to a branch id set. The zero
// value imposes no restriction. Every aggregator binds the same
// predicate to its own table alias instead of splicing clause text.
type BranchPredicate struct {
	ids []string
}

// AllBranches returns the unrestricted predicate.
func AllBranches() BranchPredicate { return BranchPredicate{} }

// BranchSet builds a predicate for an explicit id set.
func BranchSet(ids []string) (BranchPredicate, error) {
	cleaned := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			return BranchPredicate{}, fmt.Errorf("%w: blank branch id", ErrInvalidBranchFilter)
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		cleaned = append(cleaned, id)
	}
	if len(cleaned) == 0 {
		return BranchPredicate{}, fmt.Errorf("%w: empty branch id set", ErrInvalidBranchFilter)
	}
	return BranchPredicate{ids: cleaned}, nil
}

// ParseBranchSelector accepts "all", an empty selector, a JSON array of
// ids, or a comma separated list.
func ParseBranchSelector(raw string) (BranchPredicate, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "all") {
		return AllBranches(), nil
	}
	if strings.HasPrefix(raw, "[") {
		var ids []string
		if err := json.Unmarshal([]byte(raw), &ids); err != nil {
			return BranchPredicate{}, fmt.Errorf("%w: %v", ErrInvalidBranchFilter, err)
		}
		return BranchSet(ids)
	}
	return BranchSet(strings.Split(raw, ","))
}

// All reports whether the predicate is unrestricted.
func (p BranchPredicate) All() bool { return len(p.ids) == 0 }

// IDs returns the restricted id set, nil when unrestricted.
func (p BranchPredicate) IDs() []string { return p.ids }

// Clause renders the predicate against a branch id column, appending a
// bound parameter at position arg. Unrestricted predicates render empty.
func (p BranchPredicate) Clause(column string, arg int) (string, []any) {
	if p.All() {
		return "", nil
	}
	return fmt.Sprintf(" AND %s = ANY($%d)", column, arg), []any{p.ids}
}

// ClauseEither renders the predicate matching either of two branch id
// columns with a single bound parameter. Used where a row belongs to a
// branch on both sides, such as inter-branch invoices.
func (p BranchPredicate) ClauseEither(columnA, columnB string, arg int) (string, []any) {
	if p.All() {
		return "", nil
	}
	return fmt.Sprintf(" AND (%s = ANY($%d) OR %s = ANY($%d))", columnA, arg, columnB, arg), []any{p.ids}
}

// Token is a stable cache-key fragment for the predicate.
func (p BranchPredicate) Token() string {
	if p.All() {
		return "all"
	}
	return strings.Join(p.ids, ",")
}

// GroupBy is the closed set of bucketing dimensions. Each variant carries
// its own key and label expressions; there is no string-built SQL.
type GroupBy string

// Supported dimensions.
const (
	GroupByBranch GroupBy = "branch"
	GroupByRegion GroupBy = "region"
	GroupByDay    GroupBy = "day"
	GroupByMonth  GroupBy = "month"
)

// ParseGroupBy validates a group-by value, defaulting to branch.
func ParseGroupBy(raw string) (GroupBy, error) {
	switch g := GroupBy(strings.ToLower(strings.TrimSpace(raw))); g {
	case "":
		return GroupByBranch, nil
	case GroupByBranch, GroupByRegion, GroupByDay, GroupByMonth:
		return g, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidGroupBy, raw)
	}
}

// KeyExpr returns the grouping key expression bound to the transaction
// and branch table aliases.
func (g GroupBy) KeyExpr(txAlias, branchAlias string) string {
	switch g {
	case GroupByRegion:
		return branchAlias + ".region"
	case GroupByDay:
		return "to_char(" + txAlias + ".occurred_at, 'YYYY-MM-DD')"
	case GroupByMonth:
		return "to_char(" + txAlias + ".occurred_at, 'YYYY-MM')"
	default:
		return txAlias + ".branch_id"
	}
}

// LabelExpr returns the human readable label expression for the bucket.
func (g GroupBy) LabelExpr(txAlias, branchAlias string) string {
	if g == GroupByBranch {
		return branchAlias + ".name"
	}
	return g.KeyExpr(txAlias, branchAlias)
}
