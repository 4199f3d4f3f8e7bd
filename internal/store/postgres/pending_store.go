package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/cardshowfinder/scraper/internal/dedup"
	"github.com/cardshowfinder/scraper/internal/pipeline"
)

// PendingStore is the durable review queue. InsertOrMerge runs inside one
// transaction holding a per-source advisory lock, so two concurrent cycles
// cannot insert duplicate rows for the same candidate.
type PendingStore struct {
	pool  db
	clock pipeline.Clock
}

// NewPendingStore builds a PendingStore over an existing pool.
func NewPendingStore(pool db, clock pipeline.Clock) (*PendingStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	return &PendingStore{pool: pool, clock: clock}, nil
}

// InsertOrMerge writes one normalized candidate. A match against an existing
// PENDING row merges with latest-field-wins; a match against a decided row
// is a no-op so reviewed items are never resurrected; no match inserts a new
// PENDING row.
func (s *PendingStore) InsertOrMerge(
	ctx context.Context,
	sourceURL string,
	raw map[string]any,
	show pipeline.NormalizedShow,
) (pipeline.MergeAction, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin insert-or-merge: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Serializes queue writes per source across concurrent cycles for the
	// duration of this transaction.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, sourceURL); err != nil {
		return "", fmt.Errorf("acquire source lock: %w", err)
	}

	existing, err := listForSourceTx(ctx, tx, sourceURL)
	if err != nil {
		return "", err
	}

	action := pipeline.ActionInserted
	match := dedup.FindMatch(show, existing)
	switch {
	case match == nil:
		if err := insertTx(ctx, tx, sourceURL, raw, show, s.clock); err != nil {
			return "", err
		}
	case match.Status == pipeline.StatusPending:
		action = pipeline.ActionMerged
		merged := dedup.Merge(match.Normalized, show)
		if err := mergeTx(ctx, tx, match.ID, raw, merged, s.clock); err != nil {
			return "", err
		}
	default:
		// Already APPROVED or REJECTED: leave the decision alone.
		action = pipeline.ActionSkipped
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit insert-or-merge: %w", err)
	}
	return action, nil
}

// ListByStatus returns queue rows in the given review state, oldest first.
func (s *PendingStore) ListByStatus(ctx context.Context, status pipeline.ShowStatus) ([]pipeline.PendingShow, error) {
	query := `
SELECT id, source_url, raw_payload, normalized_payload, status, created_at, updated_at, reviewed_at, reviewer_notes
FROM pending_shows
WHERE status = $1
ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("list pending shows: %w", err)
	}
	defer rows.Close()

	var shows []pipeline.PendingShow
	for rows.Next() {
		var (
			ps             pipeline.PendingShow
			rawJSON        []byte
			normalizedJSON []byte
		)
		if err := rows.Scan(
			&ps.ID,
			&ps.SourceURL,
			&rawJSON,
			&normalizedJSON,
			&ps.Status,
			&ps.CreatedAt,
			&ps.UpdatedAt,
			&ps.ReviewedAt,
			&ps.ReviewerNotes,
		); err != nil {
			return nil, fmt.Errorf("scan pending show: %w", err)
		}
		if err := json.Unmarshal(rawJSON, &ps.RawPayload); err != nil {
			return nil, fmt.Errorf("decode raw payload %s: %w", ps.ID, err)
		}
		if err := json.Unmarshal(normalizedJSON, &ps.Normalized); err != nil {
			return nil, fmt.Errorf("decode normalized payload %s: %w", ps.ID, err)
		}
		shows = append(shows, ps)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending shows: %w", err)
	}
	return shows, nil
}

// SetStatus transitions a row's review state. Invoked only by the external
// review collaborator; the pipeline itself never decides a row.
func (s *PendingStore) SetStatus(ctx context.Context, id string, status pipeline.ShowStatus, reviewerNotes string) error {
	now := s.clock.Now()
	query := `
UPDATE pending_shows
SET status = $2, reviewer_notes = $3, reviewed_at = $4, updated_at = $4
WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, id, status, reviewerNotes, now)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("pending show %s not found", id)
	}
	return nil
}

// ListPendingWithoutCoordinates returns PENDING rows whose normalized
// payload has no coordinates, for the geocode backfill pass.
func (s *PendingStore) ListPendingWithoutCoordinates(ctx context.Context) ([]pipeline.PendingShow, error) {
	query := `
SELECT id, source_url, raw_payload, normalized_payload, status, created_at, updated_at, reviewed_at, reviewer_notes
FROM pending_shows
WHERE status = 'PENDING' AND normalized_payload->'coordinates' IS NULL
ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list ungeocoded shows: %w", err)
	}
	defer rows.Close()

	var shows []pipeline.PendingShow
	for rows.Next() {
		var (
			ps             pipeline.PendingShow
			rawJSON        []byte
			normalizedJSON []byte
		)
		if err := rows.Scan(
			&ps.ID,
			&ps.SourceURL,
			&rawJSON,
			&normalizedJSON,
			&ps.Status,
			&ps.CreatedAt,
			&ps.UpdatedAt,
			&ps.ReviewedAt,
			&ps.ReviewerNotes,
		); err != nil {
			return nil, fmt.Errorf("scan ungeocoded show: %w", err)
		}
		if err := json.Unmarshal(rawJSON, &ps.RawPayload); err != nil {
			return nil, fmt.Errorf("decode raw payload %s: %w", ps.ID, err)
		}
		if err := json.Unmarshal(normalizedJSON, &ps.Normalized); err != nil {
			return nil, fmt.Errorf("decode normalized payload %s: %w", ps.ID, err)
		}
		shows = append(shows, ps)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ungeocoded shows: %w", err)
	}
	return shows, nil
}

// UpdateCoordinates backfills coordinates onto an existing row.
func (s *PendingStore) UpdateCoordinates(ctx context.Context, id string, coords pipeline.Coordinates) error {
	coordsJSON, err := json.Marshal(coords)
	if err != nil {
		return fmt.Errorf("marshal coordinates: %w", err)
	}
	query := `
UPDATE pending_shows
SET normalized_payload = jsonb_set(normalized_payload, '{coordinates}', $2::jsonb),
	updated_at = $3
WHERE id = $1`
	if _, err := s.pool.Exec(ctx, query, id, coordsJSON, s.clock.Now()); err != nil {
		return fmt.Errorf("update coordinates: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *PendingStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func listForSourceTx(ctx context.Context, tx querier, sourceURL string) ([]pipeline.PendingShow, error) {
	query := `
SELECT id, normalized_payload, status
FROM pending_shows
WHERE source_url = $1`

	rows, err := tx.Query(ctx, query, sourceURL)
	if err != nil {
		return nil, fmt.Errorf("list source candidates: %w", err)
	}
	defer rows.Close()

	var shows []pipeline.PendingShow
	for rows.Next() {
		var (
			ps             pipeline.PendingShow
			normalizedJSON []byte
		)
		if err := rows.Scan(&ps.ID, &normalizedJSON, &ps.Status); err != nil {
			return nil, fmt.Errorf("scan source candidate: %w", err)
		}
		if err := json.Unmarshal(normalizedJSON, &ps.Normalized); err != nil {
			return nil, fmt.Errorf("decode candidate payload %s: %w", ps.ID, err)
		}
		shows = append(shows, ps)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate source candidates: %w", err)
	}
	return shows, nil
}

func insertTx(ctx context.Context, tx querier, sourceURL string, raw map[string]any, show pipeline.NormalizedShow, clock pipeline.Clock) error {
	rawJSON, normalizedJSON, err := encodePayloads(raw, show)
	if err != nil {
		return err
	}
	now := clock.Now()
	query := `
INSERT INTO pending_shows (id, source_url, raw_payload, normalized_payload, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)`
	if _, err := tx.Exec(ctx, query, uuid.NewString(), sourceURL, rawJSON, normalizedJSON, pipeline.StatusPending, now); err != nil {
		return fmt.Errorf("insert pending show: %w", err)
	}
	return nil
}

func mergeTx(ctx context.Context, tx querier, id string, raw map[string]any, merged pipeline.NormalizedShow, clock pipeline.Clock) error {
	rawJSON, normalizedJSON, err := encodePayloads(raw, merged)
	if err != nil {
		return err
	}
	query := `
UPDATE pending_shows
SET raw_payload = $2, normalized_payload = $3, updated_at = $4
WHERE id = $1 AND status = 'PENDING'`
	if _, err := tx.Exec(ctx, query, id, rawJSON, normalizedJSON, clock.Now()); err != nil {
		return fmt.Errorf("merge pending show: %w", err)
	}
	return nil
}

func encodePayloads(raw map[string]any, show pipeline.NormalizedShow) ([]byte, []byte, error) {
	if raw == nil {
		raw = map[string]any{}
	}
	rawJSON, err := json.Marshal(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal raw payload: %w", err)
	}
	normalizedJSON, err := json.Marshal(show)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal normalized payload: %w", err)
	}
	return rawJSON, normalizedJSON, nil
}
