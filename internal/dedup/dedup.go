// Package dedup matches incoming candidates against existing queue rows and
// merges duplicates. The rules are pure functions so they can be exercised
// apart from the store.
package dedup

import (
	"strings"
	"unicode"

	"github.com/cardshowfinder/scraper/internal/pipeline"
)

// titleSimilarityThreshold is the token-overlap ratio at or above which two
// titles count as the same show. Chunk boundaries routinely split one
// listing in two, so containment also counts as a match.
const titleSimilarityThreshold = 0.5

// FindMatch returns the existing row that is the same show as the incoming
// candidate, or nil. Same show means same source (the caller queries by
// source URL), fuzzy title overlap, and overlapping date windows.
func FindMatch(show pipeline.NormalizedShow, existing []pipeline.PendingShow) *pipeline.PendingShow {
	for i := range existing {
		e := &existing[i]
		if !TitlesMatch(show.Name, e.Normalized.Name) {
			continue
		}
		if !datesOverlap(show, e.Normalized) {
			continue
		}
		return e
	}
	return nil
}

// TitlesMatch reports whether two titles plausibly name the same show. The
// comparison is case-insensitive over word tokens.
func TitlesMatch(a, b string) bool {
	ta := tokenize(a)
	tb := tokenize(b)
	if len(ta) == 0 || len(tb) == 0 {
		return false
	}

	shared := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			shared++
		}
	}
	if shared == 0 {
		return false
	}

	smaller := len(ta)
	if len(tb) < smaller {
		smaller = len(tb)
	}
	// Full containment of the smaller title absorbs partial listings split
	// across chunks.
	if shared == smaller {
		return true
	}

	union := len(ta) + len(tb) - shared
	return float64(shared)/float64(union) >= titleSimilarityThreshold
}

func datesOverlap(a, b pipeline.NormalizedShow) bool {
	// A chunk boundary can strand the date text in one fragment, leaving
	// the other partial dateless. An undated window matches anything so the
	// partials still merge into one row.
	if a.StartDate.IsZero() || b.StartDate.IsZero() {
		return true
	}
	return !a.StartDate.After(b.EndDate) && !b.StartDate.After(a.EndDate)
}

func tokenize(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		out[tok] = struct{}{}
	}
	return out
}

// Merge folds the incoming candidate into an existing normalized record.
// Latest field values win; empty incoming fields keep what was there.
func Merge(existing, incoming pipeline.NormalizedShow) pipeline.NormalizedShow {
	merged := existing
	if incoming.Name != "" {
		merged.Name = incoming.Name
	}
	if !incoming.StartDate.IsZero() {
		merged.StartDate = incoming.StartDate
	}
	if !incoming.EndDate.IsZero() {
		merged.EndDate = incoming.EndDate
	}
	if incoming.VenueName != "" {
		merged.VenueName = incoming.VenueName
	}
	if incoming.Address != "" {
		merged.Address = incoming.Address
	}
	if incoming.City != "" {
		merged.City = incoming.City
	}
	if incoming.State != "" {
		merged.State = incoming.State
	}
	if incoming.EntryFee != nil {
		merged.EntryFee = incoming.EntryFee
	}
	if incoming.Description != "" {
		merged.Description = incoming.Description
	}
	if len(incoming.Categories) > 0 {
		merged.Categories = incoming.Categories
	}
	if incoming.Coordinates != nil {
		merged.Coordinates = incoming.Coordinates
	}
	return merged
}
