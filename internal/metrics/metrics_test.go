package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/shows", "example.com"},
		{"standard https", "https://Example.com/shows", "example.com"},
		{"no scheme", "example.com/shows", "example.com"},
		{"just host", "example.com", "example.com"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if scraperSourcesTotal == nil || scraperChunksTotal == nil ||
		scraperCandidatesTotal == nil || scraperGeocodeTotal == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}

	ObserveSource("https://example.com/shows", "success")
	if val := testutil.ToFloat64(scraperSourcesTotal); val != 1 {
		t.Errorf("Expected scraperSourcesTotal to be 1, got %f", val)
	}
}
