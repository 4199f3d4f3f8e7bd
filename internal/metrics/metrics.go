// Package metrics exposes Prometheus collectors for the scraper.
package metrics

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scraperSourcesTotal             *prometheus.CounterVec
	scraperChunksTotal              *prometheus.CounterVec
	scraperCandidatesTotal          *prometheus.CounterVec
	scraperGeocodeTotal             *prometheus.CounterVec
	scraperExtractionDurationSecond *prometheus.HistogramVec
	scraperActiveSources            prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		scraperSourcesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_sources_total",
				Help: "Total number of source crawl cycles, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		scraperChunksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_chunks_total",
				Help: "Total number of chunks extracted, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		scraperCandidatesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_candidates_total",
				Help: "Total number of candidates persisted, labeled by queue action.",
			},
			[]string{"action"},
		)

		scraperGeocodeTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_geocode_total",
				Help: "Total number of geocode lookups, labeled by result.",
			},
			[]string{"result"},
		)

		scraperExtractionDurationSecond = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scraper_extraction_duration_seconds",
				Help:    "Histogram of per-chunk extraction latencies.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20},
			},
			[]string{"site"},
		)

		scraperActiveSources = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scraper_active_sources",
				Help: "Number of sources currently being processed.",
			},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveSource records the result of one source's crawl cycle.
func ObserveSource(site, outcome string) {
	scraperSourcesTotal.WithLabelValues(SanitizeSite(site), outcome).Inc()
}

// ObserveChunk records the extraction outcome of one chunk.
func ObserveChunk(site, outcome string) {
	scraperChunksTotal.WithLabelValues(SanitizeSite(site), outcome).Inc()
}

// ObserveCandidate records what the queue did with a persisted candidate.
func ObserveCandidate(action string) {
	scraperCandidatesTotal.WithLabelValues(action).Inc()
}

// ObserveGeocode records a geocode lookup result.
func ObserveGeocode(result string) {
	scraperGeocodeTotal.WithLabelValues(result).Inc()
}

// ObserveExtraction records per-chunk extraction latency.
func ObserveExtraction(site string, duration time.Duration) {
	scraperExtractionDurationSecond.WithLabelValues(SanitizeSite(site)).Observe(duration.Seconds())
}

// IncActiveSources increments the active sources gauge.
func IncActiveSources() {
	scraperActiveSources.Inc()
}

// DecActiveSources decrements the active sources gauge.
func DecActiveSources() {
	scraperActiveSources.Dec()
}
