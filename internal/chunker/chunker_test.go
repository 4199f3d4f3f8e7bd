package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func listingHTML(n int, filler int) string {
	var sb strings.Builder
	sb.WriteString("<html><body>")
	for i := 0; i < n; i++ {
		sb.WriteString(fmt.Sprintf(
			"<div class=\"listing\"><h2>Show %d</h2><p>%s</p></div>",
			i, strings.Repeat("x", filler),
		))
	}
	sb.WriteString("</body></html>")
	return sb.String()
}

func TestChunkRespectsMaxBytes(t *testing.T) {
	t.Parallel()

	c := New(1024)
	chunks := c.Chunk("https://example.com/shows", []byte(listingHTML(20, 200)))
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		require.LessOrEqual(t, len(ch.HTMLFragment), 1024)
	}
}

func TestChunkPreservesOrderAndSource(t *testing.T) {
	t.Parallel()

	c := New(1024)
	chunks := c.Chunk("https://example.com/shows", []byte(listingHTML(10, 200)))
	require.Greater(t, len(chunks), 1)
	for i, ch := range chunks {
		require.Equal(t, i, ch.SequenceIndex)
		require.Equal(t, "https://example.com/shows", ch.SourceURL)
	}
}

func TestChunkSplitsOnBlockBoundaries(t *testing.T) {
	t.Parallel()

	c := New(1024)
	chunks := c.Chunk("https://example.com/shows", []byte(listingHTML(10, 200)))
	for _, ch := range chunks {
		frag := string(ch.HTMLFragment)
		// Block-level splitting keeps each listing div intact.
		require.Equal(t, strings.Count(frag, "<div"), strings.Count(frag, "</div>"))
	}
}

func TestChunkSmallPageIsSingleChunk(t *testing.T) {
	t.Parallel()

	c := New(25 * 1024)
	chunks := c.Chunk("https://example.com/shows", []byte(listingHTML(3, 50)))
	require.Len(t, chunks, 1)
}

func TestChunkOversizedLeafFallsBackToByteSplit(t *testing.T) {
	t.Parallel()

	huge := "<html><body><pre>" + strings.Repeat("y", 5000) + "</pre></body></html>"
	c := New(1024)
	chunks := c.Chunk("https://example.com/shows", []byte(huge))
	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		require.LessOrEqual(t, len(ch.HTMLFragment), 1024)
	}
}

func TestChunkNonHTMLInputStillChunks(t *testing.T) {
	t.Parallel()

	c := New(256)
	chunks := c.Chunk("https://example.com/plain", []byte(strings.Repeat("plain text listing\n", 100)))
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		require.LessOrEqual(t, len(ch.HTMLFragment), 256)
	}
}

func TestChunkLargePageWithManyListings(t *testing.T) {
	t.Parallel()

	// ~120KB page against a 25KB chunker: every listing stays whole inside
	// some chunk.
	page := listingHTML(60, 1900)
	require.Greater(t, len(page), 100*1024)

	c := New(25 * 1024)
	chunks := c.Chunk("https://example.com/big", []byte(page))
	require.GreaterOrEqual(t, len(chunks), 4)

	total := 0
	for _, ch := range chunks {
		total += strings.Count(string(ch.HTMLFragment), "class=\"listing\"")
	}
	require.Equal(t, 60, total)
}
