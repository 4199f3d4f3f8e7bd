package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/cardshowfinder/scraper/internal/pipeline"
)

type stubClock struct {
	now time.Time
}

func (c stubClock) Now() time.Time { return c.now }

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func testShow(name string) pipeline.NormalizedShow {
	return pipeline.NormalizedShow{
		Name:      name,
		StartDate: time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC),
		VenueName: "Expo Hall",
		City:      "Springfield",
		State:     "IL",
	}
}

func TestInsertOrMergeInsertsNewCandidate(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Unix(1700000000, 0).UTC()
	store, err := NewPendingStore(mock, stubClock{now: now})
	require.NoError(t, err)

	sourceURL := "https://shows.example.com"

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(sourceURL).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT id, normalized_payload, status").
		WithArgs(sourceURL).
		WillReturnRows(pgxmock.NewRows([]string{"id", "normalized_payload", "status"}))
	mock.ExpectExec("INSERT INTO pending_shows").
		WithArgs(pgxmock.AnyArg(), sourceURL, pgxmock.AnyArg(), pgxmock.AnyArg(), pipeline.StatusPending, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	action, err := store.InsertOrMerge(context.Background(), sourceURL, map[string]any{"name": "Springfield Card Show"}, testShow("Springfield Card Show"))
	require.NoError(t, err)
	require.Equal(t, pipeline.ActionInserted, action)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertOrMergeMergesIntoPendingMatch(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Unix(1700000000, 0).UTC()
	store, err := NewPendingStore(mock, stubClock{now: now})
	require.NoError(t, err)

	sourceURL := "https://shows.example.com"
	existing := testShow("Springfield Card Show")

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(sourceURL).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT id, normalized_payload, status").
		WithArgs(sourceURL).
		WillReturnRows(pgxmock.NewRows([]string{"id", "normalized_payload", "status"}).
			AddRow("row-1", mustJSON(t, existing), pipeline.StatusPending))
	mock.ExpectExec("UPDATE pending_shows").
		WithArgs("row-1", pgxmock.AnyArg(), pgxmock.AnyArg(), now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	incoming := testShow("Springfield Card Show")
	incoming.Address = "100 Fairground Rd"

	action, err := store.InsertOrMerge(context.Background(), sourceURL, map[string]any{"name": "Springfield Card Show"}, incoming)
	require.NoError(t, err)
	require.Equal(t, pipeline.ActionMerged, action)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertOrMergeSkipsDecidedMatch(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Unix(1700000000, 0).UTC()
	store, err := NewPendingStore(mock, stubClock{now: now})
	require.NoError(t, err)

	sourceURL := "https://shows.example.com"
	existing := testShow("Springfield Card Show")

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(sourceURL).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT id, normalized_payload, status").
		WithArgs(sourceURL).
		WillReturnRows(pgxmock.NewRows([]string{"id", "normalized_payload", "status"}).
			AddRow("row-1", mustJSON(t, existing), pipeline.StatusApproved))
	mock.ExpectCommit()

	action, err := store.InsertOrMerge(context.Background(), sourceURL, nil, testShow("Springfield Card Show"))
	require.NoError(t, err)
	require.Equal(t, pipeline.ActionSkipped, action)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetStatusUpdatesRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Unix(1700000000, 0).UTC()
	store, err := NewPendingStore(mock, stubClock{now: now})
	require.NoError(t, err)

	mock.ExpectExec("UPDATE pending_shows").
		WithArgs("row-1", pipeline.StatusApproved, "looks legit", now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.SetStatus(context.Background(), "row-1", pipeline.StatusApproved, "looks legit"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetStatusUnknownID(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewPendingStore(mock, stubClock{now: time.Now().UTC()})
	require.NoError(t, err)

	mock.ExpectExec("UPDATE pending_shows").
		WithArgs("no-such-row", pipeline.StatusRejected, "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = store.SetStatus(context.Background(), "no-such-row", pipeline.StatusRejected, "")
	require.ErrorContains(t, err, "not found")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListByStatusDecodesPayloads(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Unix(1700000000, 0).UTC()
	store, err := NewPendingStore(mock, stubClock{now: now})
	require.NoError(t, err)

	show := testShow("Springfield Card Show")
	rows := pgxmock.NewRows([]string{
		"id", "source_url", "raw_payload", "normalized_payload", "status",
		"created_at", "updated_at", "reviewed_at", "reviewer_notes",
	}).AddRow(
		"row-1", "https://shows.example.com",
		[]byte(`{"name":"Springfield Card Show"}`), mustJSON(t, show),
		pipeline.StatusPending, now, now, nil, "",
	)

	mock.ExpectQuery("SELECT id, source_url, raw_payload").
		WithArgs(pipeline.StatusPending).
		WillReturnRows(rows)

	shows, err := store.ListByStatus(context.Background(), pipeline.StatusPending)
	require.NoError(t, err)
	require.Len(t, shows, 1)
	require.Equal(t, "Springfield Card Show", shows[0].Normalized.Name)
	require.Equal(t, "Springfield Card Show", shows[0].RawPayload["name"])
	require.NoError(t, mock.ExpectationsWereMet())
}

var _ pipeline.PendingStore = (*PendingStore)(nil)
