package pipeline

import (
	"context"
	"time"
)

// SourceStore persists the crawl source catalog and its health fields.
type SourceStore interface {
	// ListEnabled returns enabled sources ordered by priority descending.
	ListEnabled(ctx context.Context) ([]Source, error)
	// RecordOutcome applies the health update for one cycle as a single
	// atomic read-modify-write: success resets the error streak, failure
	// increments it and decays the priority score.
	RecordOutcome(ctx context.Context, url string, success bool, at time.Time) error
}

// PendingStore is the durable review queue for extracted shows.
type PendingStore interface {
	// InsertOrMerge writes a normalized candidate, merging into an existing
	// PENDING row for the same show and leaving decided rows untouched.
	InsertOrMerge(ctx context.Context, sourceURL string, raw map[string]any, show NormalizedShow) (MergeAction, error)
	// ListByStatus returns queue rows in the given review state.
	ListByStatus(ctx context.Context, status ShowStatus) ([]PendingShow, error)
	// SetStatus transitions a row's review state. Only the external review
	// collaborator calls this.
	SetStatus(ctx context.Context, id string, status ShowStatus, reviewerNotes string) error
}

// Fetcher retrieves the raw HTML for a source URL. One attempt per cycle;
// retries belong to the extraction layer.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Chunker splits raw HTML into bounded-size chunks sized for the extraction
// model.
type Chunker interface {
	Chunk(sourceURL string, html []byte) []RawChunk
}

// Extractor turns one chunk into zero or more unvalidated candidates. An
// empty result is success, not failure.
type Extractor interface {
	Extract(ctx context.Context, chunk RawChunk, sourceHint string) ([]ExtractedCandidate, error)
}

// Normalizer maps a raw candidate onto the canonical show schema.
type Normalizer interface {
	Normalize(candidate ExtractedCandidate) (NormalizedShow, error)
}

// Geocoder resolves a free-text address to coordinates. A nil result with a
// nil error means no confident match; callers persist the show anyway.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*Coordinates, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
