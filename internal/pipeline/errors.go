package pipeline

import "fmt"

// ConfigError indicates missing or invalid configuration that prevents any
// work from starting. It is the only fatal error class: everything else is
// contained at its own layer.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s", e.Reason)
}

// FetchError is a per-source recoverable failure. The source is skipped for
// the cycle and reported to the health tracker.
type FetchError struct {
	SourceURL string
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.SourceURL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ExtractionError is a per-chunk recoverable failure, including malformed
// model output that could not be salvaged. Sibling chunks are unaffected.
type ExtractionError struct {
	SourceURL  string
	ChunkIndex int
	Err        error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s chunk %d: %v", e.SourceURL, e.ChunkIndex, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// GeocodeError is a per-candidate recoverable failure. The show is persisted
// with null coordinates.
type GeocodeError struct {
	Address string
	Err     error
}

func (e *GeocodeError) Error() string {
	return fmt.Sprintf("geocode %q: %v", e.Address, e.Err)
}

func (e *GeocodeError) Unwrap() error { return e.Err }

// RejectedCandidateError marks a candidate that failed the minimum-viable
// record policy. Rejected candidates are logged and dropped, never queued.
type RejectedCandidateError struct {
	Reason string
}

func (e *RejectedCandidateError) Error() string {
	return fmt.Sprintf("candidate rejected: %s", e.Reason)
}
