// Package normalizer maps raw extracted candidates onto the canonical show
// schema.
package normalizer

import (
	"strings"

	"go.uber.org/zap"

	"github.com/cardshowfinder/scraper/internal/pipeline"
)

// Normalizer validates and canonicalizes raw model output. Invalid
// candidates are rejected with a reason, never silently coerced.
type Normalizer struct {
	logger *zap.Logger
}

// New builds a Normalizer.
func New(logger *zap.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// Normalize canonicalizes one candidate. A candidate carrying neither a name
// nor a parseable date fails the minimum-viable-record policy and comes back
// as a *pipeline.RejectedCandidateError.
func (n *Normalizer) Normalize(c pipeline.ExtractedCandidate) (pipeline.NormalizedShow, error) {
	payload := c.RawPayload

	name := strings.TrimSpace(stringField(payload, "name", "title", "showName"))
	startRaw := stringField(payload, "startDate", "start_date", "date", "dates")
	endRaw := stringField(payload, "endDate", "end_date")

	start, end, datesOK := parseDateWindow(startRaw, endRaw)
	if name == "" && !datesOK {
		return pipeline.NormalizedShow{}, &pipeline.RejectedCandidateError{
			Reason: "missing both name and date",
		}
	}

	venue := strings.TrimSpace(stringField(payload, "venueName", "venue", "venue_name"))
	address := strings.TrimSpace(stringField(payload, "address", "location"))
	venue, address, city, state := splitVenueAddress(venue, address)

	show := pipeline.NormalizedShow{
		Name:        name,
		StartDate:   start,
		EndDate:     end,
		VenueName:   venue,
		Address:     address,
		City:        city,
		State:       state,
		EntryFee:    parseEntryFee(payload["entryFee"]),
		Description: strings.TrimSpace(stringField(payload, "description", "details")),
		Categories:  mapCategories(payload),
	}

	n.logger.Debug("candidate normalized",
		zap.String("source_url", c.SourceURL),
		zap.String("name", show.Name),
		zap.Bool("dated", datesOK),
	)
	return show, nil
}

// stringField returns the first present key coerced to a string.
func stringField(payload map[string]any, keys ...string) string {
	for _, k := range keys {
		v, ok := payload[k]
		if !ok || v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
