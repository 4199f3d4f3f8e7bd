package normalizer

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	feeExpr    = regexp.MustCompile(`\d+(?:\.\d{1,2})?`)
	stateExpr  = regexp.MustCompile(`^([A-Z]{2})(?:\s+\d{5}(?:-\d{4})?)?$`)
	digitsExpr = regexp.MustCompile(`\d`)
)

// parseEntryFee maps the raw fee value to a numeric dollar amount, or nil
// for "free" and anything unparseable.
func parseEntryFee(v any) *float64 {
	switch fee := v.(type) {
	case float64:
		if fee < 0 {
			return nil
		}
		return &fee
	case string:
		s := strings.ToLower(strings.TrimSpace(fee))
		if s == "" || strings.Contains(s, "free") {
			return nil
		}
		m := feeExpr.FindString(s)
		if m == "" {
			return nil
		}
		parsed, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return nil
		}
		return &parsed
	default:
		return nil
	}
}

// splitVenueAddress pulls structured fields out of a combined venue/address
// string when confidently parseable. The raw address text is always retained.
func splitVenueAddress(venue, address string) (string, string, string, string) {
	if address == "" {
		return venue, address, "", ""
	}

	segments := strings.Split(address, ",")
	for i := range segments {
		segments[i] = strings.TrimSpace(segments[i])
	}

	// "Venue Name, 123 Main St, Springfield, IL": a leading segment without
	// digits ahead of a street number is the venue.
	if venue == "" && len(segments) >= 3 &&
		!digitsExpr.MatchString(segments[0]) && digitsExpr.MatchString(segments[1]) {
		venue = segments[0]
		segments = segments[1:]
		address = strings.Join(segments, ", ")
	}

	var city, state string
	if len(segments) >= 2 {
		last := segments[len(segments)-1]
		if m := stateExpr.FindStringSubmatch(last); m != nil {
			state = m[1]
			city = segments[len(segments)-2]
		}
	}
	return venue, address, city, state
}

// categoryVocabulary maps feature keywords to the controlled vocabulary.
// Hints that do not land confidently stay uncategorized.
var categoryVocabulary = []struct {
	keyword  string
	category string
}{
	{"baseball", "Sports Cards"},
	{"football", "Sports Cards"},
	{"basketball", "Sports Cards"},
	{"hockey", "Sports Cards"},
	{"sports card", "Sports Cards"},
	{"sport card", "Sports Cards"},
	{"pokemon", "Trading Card Games"},
	{"pokémon", "Trading Card Games"},
	{"magic", "Trading Card Games"},
	{"yugioh", "Trading Card Games"},
	{"yu-gi-oh", "Trading Card Games"},
	{"tcg", "Trading Card Games"},
	{"autograph", "Memorabilia"},
	{"memorabilia", "Memorabilia"},
	{"signing", "Memorabilia"},
	{"comic", "Comics"},
	{"coin", "Coins & Currency"},
	{"currency", "Coins & Currency"},
	{"stamp", "Stamps"},
	{"toy", "Toys & Collectibles"},
	{"collectible", "Toys & Collectibles"},
	{"vintage", "Vintage"},
}

// mapCategories reduces the candidate's feature hints onto the controlled
// vocabulary, dropping anything unrecognized.
func mapCategories(payload map[string]any) []string {
	hints := collectHints(payload)
	if len(hints) == 0 {
		return nil
	}

	seen := make(map[string]struct{})
	var out []string
	for _, hint := range hints {
		h := strings.ToLower(hint)
		for _, entry := range categoryVocabulary {
			if !strings.Contains(h, entry.keyword) {
				continue
			}
			if _, dup := seen[entry.category]; dup {
				continue
			}
			seen[entry.category] = struct{}{}
			out = append(out, entry.category)
		}
	}
	return out
}

func collectHints(payload map[string]any) []string {
	var hints []string
	for _, key := range []string{"features", "categories", "category", "tags"} {
		switch v := payload[key].(type) {
		case string:
			hints = append(hints, v)
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok {
					hints = append(hints, s)
				}
			}
		}
	}
	return hints
}
