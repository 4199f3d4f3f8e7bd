// Package chunker splits source HTML into bounded-size chunks sized for the
// extraction model's practical input limit.
package chunker

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/cardshowfinder/scraper/internal/pipeline"
)

// boundaryTolerance is the fraction of maxBytes a hard split may back up to
// find a tag boundary instead of cutting mid-token.
const boundaryTolerance = 8

// Chunker produces ordered chunks, preferring structural block boundaries so
// a single listing is not cut in half. A listing split across chunks anyway
// is absorbed downstream by the deduplicator's merge policy.
type Chunker struct {
	maxBytes int
}

// New builds a Chunker. maxBytes trades extraction-call latency against the
// chance of splitting one listing across chunks; production uses ~25KB.
func New(maxBytes int) *Chunker {
	if maxBytes <= 0 {
		maxBytes = 25 * 1024
	}
	return &Chunker{maxBytes: maxBytes}
}

// Chunk splits html into ordered chunks no larger than maxBytes.
func (c *Chunker) Chunk(sourceURL string, html []byte) []pipeline.RawChunk {
	blocks := c.blocks(html)
	if len(blocks) == 0 {
		return c.assemble(sourceURL, c.hardSplit(html))
	}

	var pieces []string
	var buf strings.Builder
	flush := func() {
		if buf.Len() > 0 {
			pieces = append(pieces, buf.String())
			buf.Reset()
		}
	}

	for _, block := range blocks {
		if len(block) > c.maxBytes {
			flush()
			pieces = append(pieces, c.hardSplit([]byte(block))...)
			continue
		}
		if buf.Len() > 0 && buf.Len()+len(block) > c.maxBytes {
			flush()
		}
		buf.WriteString(block)
	}
	flush()

	return c.assemble(sourceURL, pieces)
}

// blocks walks the document top-down and returns block-level fragments. An
// oversized container is descended into rather than emitted whole, so the
// accumulator sees the smallest pieces that still respect element boundaries.
func (c *Chunker) blocks(html []byte) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil
	}
	var out []string
	c.collect(doc.Find("body").Children(), &out)
	return out
}

func (c *Chunker) collect(sel *goquery.Selection, out *[]string) {
	sel.Each(func(_ int, s *goquery.Selection) {
		h, err := goquery.OuterHtml(s)
		if err != nil || strings.TrimSpace(h) == "" {
			return
		}
		if len(h) <= c.maxBytes || s.Children().Length() == 0 {
			*out = append(*out, h)
			return
		}
		c.collect(s.Children(), out)
	})
}

// hardSplit cuts raw bytes at maxBytes boundaries, backing up within the
// tolerance window to the nearest closing '>' when one exists.
func (c *Chunker) hardSplit(data []byte) []string {
	var pieces []string
	for len(data) > 0 {
		if len(data) <= c.maxBytes {
			pieces = append(pieces, string(data))
			break
		}
		cut := c.maxBytes
		window := c.maxBytes / boundaryTolerance
		if idx := bytes.LastIndexByte(data[:cut], '>'); idx >= cut-window && idx > 0 {
			cut = idx + 1
		}
		pieces = append(pieces, string(data[:cut]))
		data = data[cut:]
	}
	return pieces
}

func (c *Chunker) assemble(sourceURL string, pieces []string) []pipeline.RawChunk {
	chunks := make([]pipeline.RawChunk, 0, len(pieces))
	for _, p := range pieces {
		if strings.TrimSpace(p) == "" {
			continue
		}
		chunks = append(chunks, pipeline.RawChunk{
			SourceURL:     sourceURL,
			HTMLFragment:  []byte(p),
			SequenceIndex: len(chunks),
		})
	}
	return chunks
}
