// Package extractor turns HTML chunks into raw show candidates via the
// Anthropic completion API.
package extractor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cardshowfinder/scraper/internal/pipeline"
)

const defaultSystemPrompt = `You extract card show and collectibles event listings from web page fragments.
Respond with a JSON array only, no prose and no markdown. Each element:
{"name": string, "startDate": string, "endDate": string|null, "venueName": string|null,
"address": string|null, "entryFee": string|number|null, "description": string|null,
"features": [string]|null}
Include only real upcoming or recurring events found in the text. Respond with [] when the fragment contains no events.`

// messageAPI is the slice of the Anthropic client the extractor needs.
// Narrowing it keeps tests off the network.
type messageAPI interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Config controls the extraction calls.
type Config struct {
	Model     string
	MaxTokens int
	// Timeout bounds each chunk call independently; there is no shared
	// budget across chunks.
	Timeout time.Duration
	// RequestsPerSecond caps calls across all chunk workers. Zero disables
	// the limiter.
	RequestsPerSecond float64
	// SystemPrompt overrides the built-in prompt when set.
	SystemPrompt string
}

// Extractor calls the completion endpoint once per chunk and parses the JSON
// it returns, tolerating fencing and truncation.
type Extractor struct {
	api     messageAPI
	cfg     Config
	retry   pipeline.RetryPolicy
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New builds an Extractor backed by the real Anthropic client.
func New(apiKey string, cfg Config, retry pipeline.RetryPolicy, logger *zap.Logger) *Extractor {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return NewWithAPI(&client.Messages, cfg, retry, logger)
}

// NewWithAPI builds an Extractor from an existing message API (primarily for
// testing).
func NewWithAPI(api messageAPI, cfg Config, retry pipeline.RetryPolicy, logger *zap.Logger) *Extractor {
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-20250514"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}
	if retry == nil {
		retry = pipeline.NewExponentialRetryPolicy(0, 0, 0)
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &Extractor{
		api:     api,
		cfg:     cfg,
		retry:   retry,
		limiter: limiter,
		logger:  logger,
	}
}

// Extract sends one chunk to the model and returns the candidates it lists.
// Zero candidates is success. Timeouts and 5xx responses are retried under
// the policy and surface as a per-chunk *pipeline.ExtractionError when the
// policy gives up; the caller moves on to the next chunk.
func (e *Extractor) Extract(ctx context.Context, chunk pipeline.RawChunk, sourceHint string) ([]pipeline.ExtractedCandidate, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, &pipeline.ExtractionError{SourceURL: chunk.SourceURL, ChunkIndex: chunk.SequenceIndex, Err: err}
		}
	}

	prompt := e.buildPrompt(chunk, sourceHint)
	var text string
	err := pipeline.Retry(ctx, e.retry, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()

		resp, err := e.api.New(callCtx, anthropic.MessageNewParams{
			Model:     anthropic.Model(e.cfg.Model),
			MaxTokens: int64(e.cfg.MaxTokens),
			System:    []anthropic.TextBlockParam{{Text: e.cfg.SystemPrompt}},
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if err != nil {
			return fmt.Errorf("completion call: %w", err)
		}
		text = collectText(resp)
		return nil
	})
	if err != nil {
		return nil, &pipeline.ExtractionError{SourceURL: chunk.SourceURL, ChunkIndex: chunk.SequenceIndex, Err: err}
	}

	payloads, err := decodeCandidates(text)
	if err != nil {
		return nil, &pipeline.ExtractionError{SourceURL: chunk.SourceURL, ChunkIndex: chunk.SequenceIndex, Err: err}
	}

	candidates := make([]pipeline.ExtractedCandidate, 0, len(payloads))
	for _, p := range payloads {
		candidates = append(candidates, pipeline.ExtractedCandidate{
			SourceURL:  chunk.SourceURL,
			RawPayload: p,
		})
	}
	e.logger.Debug("chunk extracted",
		zap.String("source_url", chunk.SourceURL),
		zap.Int("chunk_index", chunk.SequenceIndex),
		zap.Int("candidates", len(candidates)),
	)
	return candidates, nil
}

func (e *Extractor) buildPrompt(chunk pipeline.RawChunk, sourceHint string) string {
	var sb strings.Builder
	if sourceHint != "" {
		sb.WriteString("Source context: ")
		sb.WriteString(sourceHint)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Page fragment from ")
	sb.WriteString(chunk.SourceURL)
	sb.WriteString(":\n\n")
	sb.Write(chunk.HTMLFragment)
	return sb.String()
}

func collectText(resp *anthropic.Message) string {
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String()
}
