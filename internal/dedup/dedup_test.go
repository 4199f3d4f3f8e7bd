package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cardshowfinder/scraper/internal/pipeline"
)

func show(name string, start, end time.Time) pipeline.NormalizedShow {
	return pipeline.NormalizedShow{Name: name, StartDate: start, EndDate: end}
}

func row(id, name string, start, end time.Time, status pipeline.ShowStatus) pipeline.PendingShow {
	return pipeline.PendingShow{
		ID:         id,
		Normalized: show(name, start, end),
		Status:     status,
	}
}

func day(d int) time.Time {
	return time.Date(2025, time.March, d, 0, 0, 0, 0, time.UTC)
}

func TestFindMatchSameTitleAndDates(t *testing.T) {
	t.Parallel()

	existing := []pipeline.PendingShow{
		row("a", "Spring Card Expo", day(5), day(5), pipeline.StatusPending),
	}
	got := FindMatch(show("spring card expo", day(5), day(5)), existing)
	require.NotNil(t, got)
	require.Equal(t, "a", got.ID)
}

func TestFindMatchFuzzyTitleOverlap(t *testing.T) {
	t.Parallel()

	existing := []pipeline.PendingShow{
		row("a", "Spring Card Expo 2025", day(5), day(6), pipeline.StatusPending),
	}
	// A partial listing cut off at a chunk boundary keeps only part of the
	// title.
	got := FindMatch(show("Spring Card Expo", day(5), day(5)), existing)
	require.NotNil(t, got)
}

func TestFindMatchRejectsDifferentDates(t *testing.T) {
	t.Parallel()

	existing := []pipeline.PendingShow{
		row("a", "Spring Card Expo", day(5), day(5), pipeline.StatusPending),
	}
	require.Nil(t, FindMatch(show("Spring Card Expo", day(20), day(20)), existing))
}

func TestFindMatchRejectsUnrelatedTitles(t *testing.T) {
	t.Parallel()

	existing := []pipeline.PendingShow{
		row("a", "Coin & Stamp Fair", day(5), day(5), pipeline.StatusPending),
	}
	require.Nil(t, FindMatch(show("Spring Card Expo", day(5), day(5)), existing))
}

func TestFindMatchOverlappingWindows(t *testing.T) {
	t.Parallel()

	existing := []pipeline.PendingShow{
		row("a", "Weekend Card Show", day(5), day(7), pipeline.StatusPending),
	}
	require.NotNil(t, FindMatch(show("Weekend Card Show", day(6), day(8)), existing))
}

func TestFindMatchDatelessPartialMatchesDatedRow(t *testing.T) {
	t.Parallel()

	// A listing split at a chunk boundary can keep the date text in only
	// one fragment; the other partial arrives with zero dates.
	existing := []pipeline.PendingShow{
		row("a", "Spring Card Expo", day(5), day(5), pipeline.StatusPending),
	}
	var undated time.Time
	require.NotNil(t, FindMatch(show("Spring Card Expo", undated, undated), existing))

	// And the reverse order: the dateless partial landed first.
	existing = []pipeline.PendingShow{
		row("a", "Spring Card Expo", undated, undated, pipeline.StatusPending),
	}
	require.NotNil(t, FindMatch(show("Spring Card Expo", day(5), day(5)), existing))
}

func TestMergeLatestFieldsWin(t *testing.T) {
	t.Parallel()

	fee := 5.0
	existing := pipeline.NormalizedShow{
		Name:      "Spring Card Expo",
		StartDate: day(5),
		EndDate:   day(5),
		VenueName: "Old Hall",
		Address:   "123 Main St, Springfield, IL",
		City:      "Springfield",
		State:     "IL",
	}
	incoming := pipeline.NormalizedShow{
		Name:      "Spring Card Expo",
		StartDate: day(5),
		EndDate:   day(6),
		VenueName: "Springfield Convention Center",
		EntryFee:  &fee,
	}

	merged := Merge(existing, incoming)
	require.Equal(t, "Springfield Convention Center", merged.VenueName)
	require.Equal(t, day(6), merged.EndDate)
	require.Equal(t, "123 Main St, Springfield, IL", merged.Address)
	require.Equal(t, "Springfield", merged.City)
	require.NotNil(t, merged.EntryFee)
}

func TestMergeKeepsCoordinatesWhenIncomingHasNone(t *testing.T) {
	t.Parallel()

	existing := pipeline.NormalizedShow{
		Name:        "Spring Card Expo",
		Coordinates: &pipeline.Coordinates{Latitude: 1, Longitude: 2},
	}
	merged := Merge(existing, pipeline.NormalizedShow{Name: "Spring Card Expo"})
	require.NotNil(t, merged.Coordinates)
}
