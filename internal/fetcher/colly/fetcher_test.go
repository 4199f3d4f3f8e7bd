package collyfetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cardshowfinder/scraper/internal/pipeline"
)

func TestFetchReturnsBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><div>Card Show</div></body></html>"))
	}))
	defer srv.Close()

	f := New(Config{UserAgent: "test-agent", Timeout: 5 * time.Second})
	body, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Contains(t, string(body), "Card Show")
}

func TestFetchServerErrorIsFetchError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := New(Config{Timeout: 5 * time.Second})
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	var fetchErr *pipeline.FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, srv.URL, fetchErr.SourceURL)
}

func TestFetchTimesOut(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	f := New(Config{Timeout: 100 * time.Millisecond})
	start := time.Now()
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	require.Less(t, time.Since(start), 5*time.Second)

	var fetchErr *pipeline.FetchError
	require.ErrorAs(t, err, &fetchErr)
}

func TestFetchHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	f := New(Config{Timeout: 30 * time.Second})
	_, err := f.Fetch(ctx, srv.URL)
	require.Error(t, err)
}
