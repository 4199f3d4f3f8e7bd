package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cardshowfinder/scraper/internal/pipeline"
)

// SourceStore persists the crawl source catalog. Health updates run as a
// single atomic UPDATE so concurrent cycles never lose writes.
type SourceStore struct {
	pool               db
	decayFactor        int
	attentionThreshold int
}

// NewSourceStore builds a SourceStore over an existing pool.
func NewSourceStore(pool db, decayFactor, attentionThreshold int) (*SourceStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if decayFactor < 0 {
		return nil, fmt.Errorf("decay factor must be >= 0")
	}
	if attentionThreshold <= 0 {
		return nil, fmt.Errorf("attention threshold must be > 0")
	}
	return &SourceStore{
		pool:               pool,
		decayFactor:        decayFactor,
		attentionThreshold: attentionThreshold,
	}, nil
}

// ListEnabled returns enabled sources ordered by priority descending.
// Disabled sources never leave this query, so they are never fetched.
func (s *SourceStore) ListEnabled(ctx context.Context) ([]pipeline.Source, error) {
	query := `
SELECT url, priority_score, enabled, last_success_at, last_error_at, error_streak, needs_attention, updated_at
FROM sources
WHERE enabled
ORDER BY priority_score DESC, url ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list enabled sources: %w", err)
	}
	defer rows.Close()

	var sources []pipeline.Source
	for rows.Next() {
		var src pipeline.Source
		if err := rows.Scan(
			&src.URL,
			&src.PriorityScore,
			&src.Enabled,
			&src.LastSuccessAt,
			&src.LastErrorAt,
			&src.ErrorStreak,
			&src.NeedsAttention,
			&src.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}
	return sources, nil
}

// RecordOutcome applies one cycle's health result. Success resets the error
// streak; failure increments it, decays the priority score, and raises the
// attention flag once the streak crosses the threshold. Sources are never
// disabled automatically.
func (s *SourceStore) RecordOutcome(ctx context.Context, url string, success bool, at time.Time) error {
	if success {
		query := `
UPDATE sources
SET error_streak = 0,
	last_success_at = $2,
	needs_attention = FALSE,
	updated_at = $2
WHERE url = $1`
		if _, err := s.pool.Exec(ctx, query, url, at); err != nil {
			return fmt.Errorf("record source success: %w", err)
		}
		return nil
	}

	query := `
UPDATE sources
SET error_streak = error_streak + 1,
	last_error_at = $2,
	priority_score = GREATEST(0, priority_score - $3 * (error_streak + 1)),
	needs_attention = (error_streak + 1) >= $4,
	updated_at = $2
WHERE url = $1`
	if _, err := s.pool.Exec(ctx, query, url, at, s.decayFactor, s.attentionThreshold); err != nil {
		return fmt.Errorf("record source failure: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *SourceStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}
