// Package pipeline defines core types shared across the ingestion subsystems.
package pipeline

import (
	"time"
)

// ShowStatus represents the review lifecycle state of a pending show.
type ShowStatus string

// Review states persisted in the pending queue.
const (
	StatusPending  ShowStatus = "PENDING"
	StatusApproved ShowStatus = "APPROVED"
	StatusRejected ShowStatus = "REJECTED"
)

// Source is a seed URL periodically crawled for show listings.
type Source struct {
	URL            string     `json:"url"`
	PriorityScore  int        `json:"priority_score"`
	Enabled        bool       `json:"enabled"`
	LastSuccessAt  *time.Time `json:"last_success_at,omitempty"`
	LastErrorAt    *time.Time `json:"last_error_at,omitempty"`
	ErrorStreak    int        `json:"error_streak"`
	NeedsAttention bool       `json:"needs_attention"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// RawChunk is a bounded-size slice of a source's HTML. Chunks live only for
// the duration of one crawl cycle and are never persisted.
type RawChunk struct {
	SourceURL     string
	HTMLFragment  []byte
	SequenceIndex int
}

// ExtractedCandidate is one unvalidated show record returned by the
// extraction model for a chunk.
type ExtractedCandidate struct {
	SourceURL  string
	RawPayload map[string]any
}

// Coordinates is a resolved geographic point.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// NormalizedShow is a candidate mapped onto the canonical show schema.
// StartDate and EndDate carry date precision only; a single-day show has
// StartDate == EndDate.
type NormalizedShow struct {
	Name        string       `json:"name"`
	StartDate   time.Time    `json:"start_date"`
	EndDate     time.Time    `json:"end_date"`
	VenueName   string       `json:"venue_name,omitempty"`
	Address     string       `json:"address,omitempty"`
	City        string       `json:"city,omitempty"`
	State       string       `json:"state,omitempty"`
	EntryFee    *float64     `json:"entry_fee,omitempty"`
	Description string       `json:"description,omitempty"`
	Categories  []string     `json:"categories,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

// PendingShow is a persisted, human-reviewable record awaiting approval or
// rejection. Rows are retained permanently for audit regardless of terminal
// state.
type PendingShow struct {
	ID            string         `json:"id"`
	SourceURL     string         `json:"source_url"`
	RawPayload    map[string]any `json:"raw_payload"`
	Normalized    NormalizedShow `json:"normalized_payload"`
	Status        ShowStatus     `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	ReviewedAt    *time.Time     `json:"reviewed_at,omitempty"`
	ReviewerNotes string         `json:"reviewer_notes,omitempty"`
}

// MergeAction describes what InsertOrMerge did with a candidate.
type MergeAction string

// Possible outcomes of a queue write.
const (
	ActionInserted MergeAction = "inserted"
	ActionMerged   MergeAction = "merged"
	ActionSkipped  MergeAction = "skipped"
)

// SourceOutcome is the per-source result of one crawl cycle, reported to the
// health tracker and rolled into the run summary.
type SourceOutcome struct {
	SourceURL    string
	Success      bool
	ChunksOK     int
	ChunksFailed int
	Extracted    int
	Inserted     int
	Merged       int
	Skipped      int
	Rejected     int
	Stage        string
	ErrorText    string
}

// Summary aggregates one crawl cycle for operator output.
type Summary struct {
	StartedAt        time.Time
	FinishedAt       time.Time
	Sources          []SourceOutcome
	SourcesSucceeded int
	SourcesFailed    int
	TotalPersisted   int
}
