package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors recorded by the pipeline and the
// HTTP layer. A nil *Metrics is valid and records nothing.
type Metrics struct {
	StageDuration  *prometheus.HistogramVec
	Documents      *prometheus.CounterVec
	RunsBlanked    prometheus.Counter
	RunsSkipped    prometheus.Counter
	StreamsSkipped prometheus.Counter
	PixelsBleached prometheus.Counter
	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
	CacheLookups   *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg. Passing a fresh
// prometheus.NewRegistry keeps tests isolated from the global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pdfscrub",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"stage"}),
		Documents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pdfscrub",
			Name:      "documents_total",
			Help:      "Documents processed, by outcome.",
		}, []string{"outcome"}),
		RunsBlanked: f.NewCounter(prometheus.CounterOpts{
			Namespace: "pdfscrub",
			Name:      "runs_blanked_total",
			Help:      "Text runs replaced by the blanking operator.",
		}),
		RunsSkipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: "pdfscrub",
			Name:      "runs_skipped_total",
			Help:      "Text runs skipped because they could not be decoded.",
		}),
		StreamsSkipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: "pdfscrub",
			Name:      "streams_skipped_total",
			Help:      "Content streams skipped because their filters could not be decoded.",
		}),
		PixelsBleached: f.NewCounter(prometheus.CounterOpts{
			Namespace: "pdfscrub",
			Name:      "pixels_bleached_total",
			Help:      "Pixels turned white by the highlight eraser.",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pdfscrub",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pdfscrub",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pdfscrub",
			Name:      "cache_lookups_total",
			Help:      "Result cache lookups by result (hit, miss, error).",
		}, []string{"result"}),
	}
}

// ObserveStage records the duration of one pipeline stage.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// DocumentDone counts a finished document by outcome ("ok" or an error class).
func (m *Metrics) DocumentDone(outcome string) {
	if m == nil {
		return
	}
	m.Documents.WithLabelValues(outcome).Inc()
}

// AddRedaction records redactor counters.
func (m *Metrics) AddRedaction(blanked, skippedRuns, skippedStreams int) {
	if m == nil {
		return
	}
	m.RunsBlanked.Add(float64(blanked))
	m.RunsSkipped.Add(float64(skippedRuns))
	m.StreamsSkipped.Add(float64(skippedStreams))
}

// AddBleached records the number of pixels whitened.
func (m *Metrics) AddBleached(n int) {
	if m == nil {
		return
	}
	m.PixelsBleached.Add(float64(n))
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(d.Seconds())
}

// CacheLookup counts one cache lookup.
func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}
