package normalizer

import (
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var (
	rangeSplit = regexp.MustCompile(`\s*(?:[-–—]|\bto\b|\bthrough\b)\s*`)
	yearExpr   = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	monthExpr  = regexp.MustCompile(`(?i)\b(january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sep|sept|oct|nov|dec)\b`)
)

// parseDateWindow canonicalizes free-text start/end dates. A single date
// yields start == end. The bool reports whether any date parsed at all.
func parseDateWindow(startRaw, endRaw string) (time.Time, time.Time, bool) {
	start, startOK := parseOne(startRaw)
	end, endOK := parseOne(endRaw)

	if !startOK {
		// The start field may hold a range like "March 5-6, 2025".
		if s, e, ok := parseRange(startRaw); ok {
			start, startOK = s, true
			if !endOK {
				end, endOK = e, true
			}
		}
	}

	switch {
	case startOK && endOK:
		if end.Before(start) {
			end = start
		}
		return start, end, true
	case startOK:
		return start, start, true
	case endOK:
		return end, end, true
	default:
		return time.Time{}, time.Time{}, false
	}
}

// parseOne parses a single free-text date to date precision in UTC.
func parseOne(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	t, err := dateparse.ParseAny(raw)
	if err != nil {
		return time.Time{}, false
	}
	return truncateToDate(t), true
}

// parseRange handles US-style ranges where the second half borrows the month
// or year from the first: "March 5-6, 2025", "March 5 - April 2, 2025",
// "March 5, 2025 to March 6, 2025".
func parseRange(raw string) (time.Time, time.Time, bool) {
	parts := rangeSplit.Split(raw, 2)
	if len(parts) != 2 {
		return time.Time{}, time.Time{}, false
	}
	first := strings.TrimSpace(parts[0])
	second := strings.TrimSpace(parts[1])

	year := yearExpr.FindString(second)
	month := monthExpr.FindString(first)

	start, ok := parseWithHints(first, "", year)
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	end, ok := parseWithHints(second, month, "")
	if !ok {
		end = start
	}
	return start, end, true
}

// parseWithHints retries a fragment with month/year context borrowed from
// the other half of a range.
func parseWithHints(fragment, month, year string) (time.Time, bool) {
	// Hinted forms go first: a bare "March 5" can otherwise parse with a
	// zero year on some layouts.
	if year != "" && !yearExpr.MatchString(fragment) {
		if t, ok := parseOne(fragment + ", " + year); ok {
			return t, true
		}
	}
	if month != "" && !monthExpr.MatchString(fragment) {
		if t, ok := parseOne(month + " " + fragment); ok {
			return t, true
		}
	}
	return parseOne(fragment)
}

func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
