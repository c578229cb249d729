// Package metrics records Prometheus metrics for the authorization token
// lifecycle: acquisitions, cache hits, and background refresh outcomes.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	acquisitionsTotal   *prometheus.CounterVec
	acquisitionDuration *prometheus.HistogramVec
	cacheHitsTotal      *prometheus.CounterVec
	refreshTotal        *prometheus.CounterVec

	metricsOnce sync.Once
)

// Init registers the auth metrics with the default Prometheus registry. It is
// called lazily by the record helpers and is safe to call more than once.
func Init() {
	metricsOnce.Do(func() {
		acquisitionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reef_auth_acquisitions_total",
				Help: "Total credential acquisitions, by provider, token kind and outcome",
			},
			[]string{"provider", "kind", "outcome"},
		)

		acquisitionDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reef_auth_acquisition_duration_seconds",
				Help:    "Duration of credential acquisitions in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"provider", "kind"},
		)

		cacheHitsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reef_auth_cache_hits_total",
				Help: "Authorization strings served from cache without network access",
			},
			[]string{"provider", "kind"},
		)

		refreshTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reef_auth_refresh_total",
				Help: "Background refresh attempts, by provider and outcome",
			},
			[]string{"provider", "outcome"},
		)
	})
}

// RecordAcquisition counts one synchronous acquisition and its duration.
func RecordAcquisition(provider, kind string, d time.Duration, err error) {
	Init()
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	acquisitionsTotal.WithLabelValues(provider, kind, outcome).Inc()
	if err == nil {
		acquisitionDuration.WithLabelValues(provider, kind).Observe(d.Seconds())
	}
}

// RecordCacheHit counts one cache hit.
func RecordCacheHit(provider, kind string) {
	Init()
	cacheHitsTotal.WithLabelValues(provider, kind).Inc()
}

// RecordRefresh counts one background refresh attempt.
func RecordRefresh(provider string, err error) {
	Init()
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	refreshTotal.WithLabelValues(provider, outcome).Inc()
}
