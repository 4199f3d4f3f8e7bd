// Package memory provides in-memory store implementations. They back
// dry runs, where nothing may touch the database, and unit tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cardshowfinder/scraper/internal/dedup"
	"github.com/cardshowfinder/scraper/internal/pipeline"
)

// SourceStore keeps the source catalog in a map guarded by a mutex.
type SourceStore struct {
	mu                 sync.Mutex
	sources            map[string]pipeline.Source
	decayFactor        int
	attentionThreshold int
}

// NewSourceStore seeds an in-memory catalog with the given sources.
func NewSourceStore(sources []pipeline.Source, decayFactor, attentionThreshold int) *SourceStore {
	if decayFactor < 0 {
		decayFactor = 0
	}
	if attentionThreshold <= 0 {
		attentionThreshold = 5
	}
	byURL := make(map[string]pipeline.Source, len(sources))
	for _, src := range sources {
		byURL[src.URL] = src
	}
	return &SourceStore{
		sources:            byURL,
		decayFactor:        decayFactor,
		attentionThreshold: attentionThreshold,
	}
}

// ListEnabled returns enabled sources ordered by priority descending,
// URL ascending as the tiebreak.
func (s *SourceStore) ListEnabled(_ context.Context) ([]pipeline.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []pipeline.Source
	for _, src := range s.sources {
		if src.Enabled {
			out = append(out, src)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PriorityScore != out[j].PriorityScore {
			return out[i].PriorityScore > out[j].PriorityScore
		}
		return out[i].URL < out[j].URL
	})
	return out, nil
}

// RecordOutcome mirrors the SQL store's health bookkeeping.
func (s *SourceStore) RecordOutcome(_ context.Context, url string, success bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.sources[url]
	if !ok {
		return fmt.Errorf("source %s not found", url)
	}
	if success {
		src.ErrorStreak = 0
		src.LastSuccessAt = &at
		src.NeedsAttention = false
	} else {
		src.ErrorStreak++
		src.LastErrorAt = &at
		src.PriorityScore = pipeline.DecayPriority(src.PriorityScore, src.ErrorStreak, s.decayFactor)
		src.NeedsAttention = src.ErrorStreak >= s.attentionThreshold
	}
	src.UpdatedAt = at
	s.sources[url] = src
	return nil
}

// Get returns a copy of one source for inspection in tests.
func (s *SourceStore) Get(url string) (pipeline.Source, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.sources[url]
	return src, ok
}

// PendingStore keeps the review queue in memory with the same merge
// semantics as the Postgres store.
type PendingStore struct {
	mu    sync.Mutex
	shows []pipeline.PendingShow
	clock pipeline.Clock
}

// NewPendingStore builds an empty in-memory queue.
func NewPendingStore(clock pipeline.Clock) *PendingStore {
	return &PendingStore{clock: clock}
}

// InsertOrMerge applies one candidate. The mutex serializes writers the way
// the advisory lock does for the SQL store.
func (s *PendingStore) InsertOrMerge(
	_ context.Context,
	sourceURL string,
	raw map[string]any,
	show pipeline.NormalizedShow,
) (pipeline.MergeAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var existing []pipeline.PendingShow
	for _, ps := range s.shows {
		if ps.SourceURL == sourceURL {
			existing = append(existing, ps)
		}
	}

	now := s.clock.Now()
	match := dedup.FindMatch(show, existing)
	switch {
	case match == nil:
		s.shows = append(s.shows, pipeline.PendingShow{
			ID:         uuid.NewString(),
			SourceURL:  sourceURL,
			RawPayload: raw,
			Normalized: show,
			Status:     pipeline.StatusPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
		return pipeline.ActionInserted, nil
	case match.Status == pipeline.StatusPending:
		for i := range s.shows {
			if s.shows[i].ID == match.ID {
				s.shows[i].Normalized = dedup.Merge(s.shows[i].Normalized, show)
				s.shows[i].RawPayload = raw
				s.shows[i].UpdatedAt = now
				break
			}
		}
		return pipeline.ActionMerged, nil
	default:
		return pipeline.ActionSkipped, nil
	}
}

// ListByStatus returns queue rows in the given state, oldest first.
func (s *PendingStore) ListByStatus(_ context.Context, status pipeline.ShowStatus) ([]pipeline.PendingShow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []pipeline.PendingShow
	for _, ps := range s.shows {
		if ps.Status == status {
			out = append(out, ps)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// SetStatus transitions a row's review state.
func (s *PendingStore) SetStatus(_ context.Context, id string, status pipeline.ShowStatus, reviewerNotes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.shows {
		if s.shows[i].ID == id {
			now := s.clock.Now()
			s.shows[i].Status = status
			s.shows[i].ReviewerNotes = reviewerNotes
			s.shows[i].ReviewedAt = &now
			s.shows[i].UpdatedAt = now
			return nil
		}
	}
	return fmt.Errorf("pending show %s not found", id)
}

// All returns a snapshot of every row, for test assertions and dry-run
// summaries.
func (s *PendingStore) All() []pipeline.PendingShow {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]pipeline.PendingShow, len(s.shows))
	copy(out, s.shows)
	return out
}
