package normalizer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cardshowfinder/scraper/internal/pipeline"
)

func candidate(payload map[string]any) pipeline.ExtractedCandidate {
	return pipeline.ExtractedCandidate{
		SourceURL:  "https://example.com/shows",
		RawPayload: payload,
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNormalizeSingleDateSetsEndEqualStart(t *testing.T) {
	t.Parallel()

	n := New(zap.NewNop())
	show, err := n.Normalize(candidate(map[string]any{
		"name":      "Spring Card Expo",
		"startDate": "March 5, 2025",
	}))
	require.NoError(t, err)
	require.Equal(t, date(2025, time.March, 5), show.StartDate)
	require.Equal(t, show.StartDate, show.EndDate)
}

func TestNormalizeExplicitEndDate(t *testing.T) {
	t.Parallel()

	n := New(zap.NewNop())
	show, err := n.Normalize(candidate(map[string]any{
		"name":      "Weekend Show",
		"startDate": "2025-03-05",
		"endDate":   "2025-03-06",
	}))
	require.NoError(t, err)
	require.Equal(t, date(2025, time.March, 5), show.StartDate)
	require.Equal(t, date(2025, time.March, 6), show.EndDate)
}

func TestNormalizeDateRangeInStartField(t *testing.T) {
	t.Parallel()

	n := New(zap.NewNop())
	show, err := n.Normalize(candidate(map[string]any{
		"name":      "Two Day Show",
		"startDate": "March 5-6, 2025",
	}))
	require.NoError(t, err)
	require.Equal(t, date(2025, time.March, 5), show.StartDate)
	require.Equal(t, date(2025, time.March, 6), show.EndDate)
}

func TestNormalizeRejectsNamelessDatelessCandidate(t *testing.T) {
	t.Parallel()

	n := New(zap.NewNop())
	_, err := n.Normalize(candidate(map[string]any{
		"venueName": "Community Center",
		"address":   "123 Main St, Springfield, IL",
	}))
	require.Error(t, err)

	var rejected *pipeline.RejectedCandidateError
	require.ErrorAs(t, err, &rejected)
}

func TestNormalizeKeepsNamedShowWithoutDate(t *testing.T) {
	t.Parallel()

	n := New(zap.NewNop())
	show, err := n.Normalize(candidate(map[string]any{
		"name": "Monthly Swap Meet",
	}))
	require.NoError(t, err)
	require.True(t, show.StartDate.IsZero())
}

func TestNormalizeSplitsCombinedVenueAddress(t *testing.T) {
	t.Parallel()

	n := New(zap.NewNop())
	show, err := n.Normalize(candidate(map[string]any{
		"name":      "City Show",
		"startDate": "2025-05-10",
		"address":   "Springfield Convention Center, 123 Main St, Springfield, IL 62701",
	}))
	require.NoError(t, err)
	require.Equal(t, "Springfield Convention Center", show.VenueName)
	require.Equal(t, "123 Main St, Springfield, IL 62701", show.Address)
	require.Equal(t, "Springfield", show.City)
	require.Equal(t, "IL", show.State)
}

func TestNormalizeRetainsUnparseableAddressAsRawText(t *testing.T) {
	t.Parallel()

	n := New(zap.NewNop())
	show, err := n.Normalize(candidate(map[string]any{
		"name":      "Back Room Show",
		"startDate": "2025-05-10",
		"address":   "behind the old fairgrounds near exit 12",
	}))
	require.NoError(t, err)
	require.Equal(t, "behind the old fairgrounds near exit 12", show.Address)
	require.Empty(t, show.City)
	require.Empty(t, show.State)
}

func TestNormalizeEntryFee(t *testing.T) {
	t.Parallel()

	n := New(zap.NewNop())

	tests := []struct {
		name string
		fee  any
		want *float64
	}{
		{name: "numeric", fee: 5.0, want: ptr(5.0)},
		{name: "dollar string", fee: "$5", want: ptr(5.0)},
		{name: "decimal string", fee: "3.50", want: ptr(3.5)},
		{name: "free", fee: "Free admission", want: nil},
		{name: "unparseable", fee: "donations welcome", want: nil},
		{name: "missing", fee: nil, want: nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			show, err := n.Normalize(candidate(map[string]any{
				"name":      "Fee Show",
				"startDate": "2025-05-10",
				"entryFee":  tc.fee,
			}))
			require.NoError(t, err)
			if tc.want == nil {
				require.Nil(t, show.EntryFee)
			} else {
				require.NotNil(t, show.EntryFee)
				require.InDelta(t, *tc.want, *show.EntryFee, 0.001)
			}
		})
	}
}

func TestNormalizeMapsCategoryHints(t *testing.T) {
	t.Parallel()

	n := New(zap.NewNop())
	show, err := n.Normalize(candidate(map[string]any{
		"name":      "Collector Expo",
		"startDate": "2025-05-10",
		"features":  []any{"baseball cards", "Pokemon tournament", "psychic readings"},
	}))
	require.NoError(t, err)
	require.Equal(t, []string{"Sports Cards", "Trading Card Games"}, show.Categories)
}

func TestNormalizeLeavesUnknownHintsUncategorized(t *testing.T) {
	t.Parallel()

	n := New(zap.NewNop())
	show, err := n.Normalize(candidate(map[string]any{
		"name":      "Mystery Expo",
		"startDate": "2025-05-10",
		"features":  []any{"raffle", "food trucks"},
	}))
	require.NoError(t, err)
	require.Empty(t, show.Categories)
}

func ptr(f float64) *float64 { return &f }
