package contour

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatsInternal is a private registry, so tests can create as many as they like
type StatsInternal struct {
	Registry *prometheus.Registry

	WWW      *prometheus.CounterVec
	Renders  *prometheus.CounterVec
	Resets   *prometheus.CounterVec
	Frames   prometheus.Counter
	Compute  prometheus.Histogram
	Fetch    prometheus.Histogram
	FetchErr prometheus.Counter
}

func NewStatsInternal() *StatsInternal {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &StatsInternal{
		Registry: reg,
		WWW: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contour",
			Name:      "http_responses_total",
			Help:      "HTTP responses by status code and method",
		}, []string{"code", "method"}),
		Renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contour",
			Name:      "renders_total",
			Help:      "Chart snapshots computed, by chart kind",
		}, []string{"kind"}),
		Resets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contour",
			Name:      "animation_resets_total",
			Help:      "Animations restarted because the geometry changed",
		}, []string{"kind"}),
		Frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "contour",
			Name:      "frames_emitted_total",
			Help:      "Frames sent to rendering surfaces",
		}),
		Compute: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "contour",
			Name:      "compute_seconds",
			Help:      "Time to compute one chart snapshot",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 8),
		}),
		Fetch: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "contour",
			Name:      "fetch_seconds",
			Help:      "Time to refresh all remote series",
			Buckets:   prometheus.DefBuckets,
		}),
		FetchErr: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "contour",
			Name:      "fetch_errors_total",
			Help:      "Remote series that could not be refreshed",
		}),
	}

	reg.MustRegister(s.WWW, s.Renders, s.Resets, s.Frames, s.Compute, s.Fetch, s.FetchErr)
	return s
}

// Handler serves this registry only
func (s *StatsInternal) Handler() http.Handler {
	return promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{Registry: s.Registry})
}

func (s *StatsInternal) RecWWW(code, method string) {
	s.WWW.WithLabelValues(code, method).Inc()
}

func (s *StatsInternal) RecRender(kind string) {
	s.Renders.WithLabelValues(kind).Inc()
}

func (s *StatsInternal) RecReset(kind string) {
	s.Resets.WithLabelValues(kind).Inc()
}

func (s *StatsInternal) RecFrames(n int) {
	s.Frames.Add(float64(n))
}

func (s *StatsInternal) RecComputeTimer(seconds float64) {
	s.Compute.Observe(seconds)
}

func (s *StatsInternal) RecFetchTimer(seconds float64) {
	s.Fetch.Observe(seconds)
}

func (s *StatsInternal) RecFetchError() {
	s.FetchErr.Inc()
}
