// Package orchestrator drives the crawl cycle: it fans sources out to a
// bounded worker pool and walks each source through fetch, chunk, extract,
// normalize, geocode, and persist.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/cardshowfinder/scraper/internal/geocoder"
	"github.com/cardshowfinder/scraper/internal/metrics"
	"github.com/cardshowfinder/scraper/internal/pipeline"
)

// Deps carries the pipeline collaborators. All but Geocoder are required;
// a nil Geocoder disables coordinate resolution.
type Deps struct {
	Sources    pipeline.SourceStore
	Pending    pipeline.PendingStore
	Fetcher    pipeline.Fetcher
	Chunker    pipeline.Chunker
	Extractor  pipeline.Extractor
	Normalizer pipeline.Normalizer
	Geocoder   pipeline.Geocoder
	Clock      pipeline.Clock
	Logger     *zap.Logger
}

// Config bounds the cycle's parallelism and side effects.
type Config struct {
	// SourceConcurrency caps how many sources run at once.
	SourceConcurrency int
	// ChunkConcurrency caps concurrent extraction calls per source.
	ChunkConcurrency int
	// DryRun suppresses health reporting; callers pair it with an
	// in-memory queue so nothing durable changes.
	DryRun bool
}

// Orchestrator owns one crawl cycle at a time. A single failing source or
// chunk never aborts the cycle; failures are contained at their own layer
// and rolled into the summary.
type Orchestrator struct {
	deps Deps
	cfg  Config
}

// New validates the collaborators and returns an Orchestrator.
func New(deps Deps, cfg Config) (*Orchestrator, error) {
	if deps.Sources == nil || deps.Pending == nil || deps.Fetcher == nil ||
		deps.Chunker == nil || deps.Extractor == nil || deps.Normalizer == nil ||
		deps.Clock == nil {
		return nil, &pipeline.ConfigError{Reason: "orchestrator missing a required collaborator"}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.SourceConcurrency <= 0 {
		cfg.SourceConcurrency = 4
	}
	if cfg.ChunkConcurrency <= 0 {
		cfg.ChunkConcurrency = 2
	}
	metrics.Init()
	return &Orchestrator{deps: deps, cfg: cfg}, nil
}

// RunCycle processes every enabled source once and returns the cycle
// summary. The returned error is non-nil only when the cycle could not
// start at all.
func (o *Orchestrator) RunCycle(ctx context.Context) (pipeline.Summary, error) {
	summary := pipeline.Summary{StartedAt: o.deps.Clock.Now()}

	sources, err := o.deps.Sources.ListEnabled(ctx)
	if err != nil {
		return summary, fmt.Errorf("list sources: %w", err)
	}
	o.deps.Logger.Info("starting crawl cycle",
		zap.Int("sources", len(sources)),
		zap.Int("source_concurrency", o.cfg.SourceConcurrency),
	)

	var (
		mu       sync.Mutex
		outcomes []pipeline.SourceOutcome
		wg       sync.WaitGroup
		sem      = make(chan struct{}, o.cfg.SourceConcurrency)
	)

	for _, src := range sources {
		select {
		case <-ctx.Done():
			o.deps.Logger.Warn("crawl cycle canceled", zap.Error(ctx.Err()))
			wg.Wait()
			return o.finish(summary, outcomes), ctx.Err()
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(src pipeline.Source) {
			defer wg.Done()
			defer func() { <-sem }()

			metrics.IncActiveSources()
			defer metrics.DecActiveSources()

			outcome := o.runSource(ctx, src.URL)
			o.report(ctx, outcome)

			mu.Lock()
			outcomes = append(outcomes, outcome)
			mu.Unlock()
		}(src)
	}
	wg.Wait()

	return o.finish(summary, outcomes), nil
}

// RunURL processes a single source URL. The URL does not have to be in the
// catalog, so no health outcome is recorded.
func (o *Orchestrator) RunURL(ctx context.Context, url string) (pipeline.Summary, error) {
	summary := pipeline.Summary{StartedAt: o.deps.Clock.Now()}
	outcome := o.runSource(ctx, url)
	return o.finish(summary, []pipeline.SourceOutcome{outcome}), nil
}

func (o *Orchestrator) report(ctx context.Context, outcome pipeline.SourceOutcome) {
	result := "success"
	if !outcome.Success {
		result = "failure"
	}
	metrics.ObserveSource(outcome.SourceURL, result)

	if o.cfg.DryRun {
		return
	}
	if err := o.deps.Sources.RecordOutcome(ctx, outcome.SourceURL, outcome.Success, o.deps.Clock.Now()); err != nil {
		o.deps.Logger.Error("record source outcome",
			zap.String("url", outcome.SourceURL),
			zap.Error(err),
		)
	}
}

func (o *Orchestrator) finish(summary pipeline.Summary, outcomes []pipeline.SourceOutcome) pipeline.Summary {
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].SourceURL < outcomes[j].SourceURL })
	summary.Sources = outcomes
	for _, oc := range outcomes {
		if oc.Success {
			summary.SourcesSucceeded++
		} else {
			summary.SourcesFailed++
		}
		summary.TotalPersisted += oc.Inserted + oc.Merged
	}
	summary.FinishedAt = o.deps.Clock.Now()
	return summary
}

// runSource walks one source through the full pipeline and returns its
// outcome. Chunk failures are isolated; the source fails only when the
// fetch fails or every chunk fails.
func (o *Orchestrator) runSource(ctx context.Context, url string) pipeline.SourceOutcome {
	outcome := pipeline.SourceOutcome{SourceURL: url}
	logger := o.deps.Logger.With(zap.String("url", url))

	html, err := o.deps.Fetcher.Fetch(ctx, url)
	if err != nil {
		logger.Warn("fetch failed", zap.Error(err))
		outcome.Stage = "fetch"
		outcome.ErrorText = err.Error()
		return outcome
	}

	chunks := o.deps.Chunker.Chunk(url, html)
	logger.Debug("chunked source",
		zap.Int("bytes", len(html)),
		zap.Int("chunks", len(chunks)),
	)
	if len(chunks) == 0 {
		// Fetched fine but nothing extractable on the page.
		outcome.Success = true
		return outcome
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, o.cfg.ChunkConcurrency)
	)
	for _, chunk := range chunks {
		select {
		case <-ctx.Done():
			wg.Wait()
			outcome.Stage = "extract"
			outcome.ErrorText = ctx.Err().Error()
			return outcome
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(chunk pipeline.RawChunk) {
			defer wg.Done()
			defer func() { <-sem }()

			stats := o.runChunk(ctx, logger, chunk, url)

			mu.Lock()
			defer mu.Unlock()
			if stats.failed {
				outcome.ChunksFailed++
			} else {
				outcome.ChunksOK++
			}
			outcome.Extracted += stats.extracted
			outcome.Inserted += stats.inserted
			outcome.Merged += stats.merged
			outcome.Skipped += stats.skipped
			outcome.Rejected += stats.rejected
		}(chunk)
	}
	wg.Wait()

	if outcome.ChunksOK == 0 {
		outcome.Stage = "extract"
		outcome.ErrorText = "all chunks failed extraction"
		return outcome
	}
	outcome.Success = true
	logger.Info("source processed",
		zap.Int("chunks_ok", outcome.ChunksOK),
		zap.Int("chunks_failed", outcome.ChunksFailed),
		zap.Int("inserted", outcome.Inserted),
		zap.Int("merged", outcome.Merged),
		zap.Int("skipped", outcome.Skipped),
		zap.Int("rejected", outcome.Rejected),
	)
	return outcome
}

type chunkStats struct {
	failed    bool
	extracted int
	inserted  int
	merged    int
	skipped   int
	rejected  int
}

// runChunk extracts one chunk and pushes its candidates through normalize,
// geocode, and persist. An extraction failure marks only this chunk.
func (o *Orchestrator) runChunk(ctx context.Context, logger *zap.Logger, chunk pipeline.RawChunk, url string) chunkStats {
	var stats chunkStats

	start := o.deps.Clock.Now()
	candidates, err := o.deps.Extractor.Extract(ctx, chunk, url)
	metrics.ObserveExtraction(url, o.deps.Clock.Now().Sub(start))
	if err != nil {
		logger.Warn("chunk extraction failed",
			zap.Int("chunk", chunk.SequenceIndex),
			zap.Error(err),
		)
		metrics.ObserveChunk(url, "failure")
		stats.failed = true
		return stats
	}
	metrics.ObserveChunk(url, "success")
	stats.extracted = len(candidates)

	for _, candidate := range candidates {
		show, err := o.deps.Normalizer.Normalize(candidate)
		if err != nil {
			stats.rejected++
			logger.Debug("candidate rejected",
				zap.Int("chunk", chunk.SequenceIndex),
				zap.Error(err),
			)
			continue
		}

		o.geocode(ctx, logger, &show)

		action, err := o.deps.Pending.InsertOrMerge(ctx, url, candidate.RawPayload, show)
		if err != nil {
			logger.Error("persist candidate",
				zap.String("show", show.Name),
				zap.Error(err),
			)
			continue
		}
		metrics.ObserveCandidate(string(action))
		switch action {
		case pipeline.ActionInserted:
			stats.inserted++
		case pipeline.ActionMerged:
			stats.merged++
		case pipeline.ActionSkipped:
			stats.skipped++
		}
	}
	return stats
}

// geocode resolves coordinates in place. Lookup failures and low-confidence
// misses leave coordinates nil, falling back to a city centroid when the
// city is known.
func (o *Orchestrator) geocode(ctx context.Context, logger *zap.Logger, show *pipeline.NormalizedShow) {
	if o.deps.Geocoder == nil || show.Coordinates != nil {
		return
	}

	coords, err := o.deps.Geocoder.Geocode(ctx, geocodeQuery(show))
	switch {
	case err != nil:
		logger.Warn("geocode failed", zap.String("show", show.Name), zap.Error(err))
		metrics.ObserveGeocode("error")
	case coords != nil:
		metrics.ObserveGeocode("hit")
		show.Coordinates = coords
		return
	default:
		metrics.ObserveGeocode("miss")
	}

	if c := geocoder.CityCentroid(show.City, show.State); c != nil {
		metrics.ObserveGeocode("centroid")
		show.Coordinates = c
	}
}

func geocodeQuery(show *pipeline.NormalizedShow) string {
	if show.Address != "" {
		return show.Address
	}
	parts := make([]string, 0, 3)
	if show.VenueName != "" {
		parts = append(parts, show.VenueName)
	}
	if show.City != "" {
		parts = append(parts, show.City)
	}
	if show.State != "" {
		parts = append(parts, show.State)
	}
	if len(parts) == 0 {
		return ""
	}
	query := parts[0]
	for _, p := range parts[1:] {
		query += ", " + p
	}
	return query
}
