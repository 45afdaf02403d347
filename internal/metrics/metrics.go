// Package metrics defines the Prometheus collectors exported by the ingest
// job and the read API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tripfeed"

// Ingest holds the ingestion run collectors.
// A nil *Ingest is valid and records nothing.
type Ingest struct {
	Runs               *prometheus.CounterVec
	ValidationFailures *prometheus.CounterVec
	RowsInserted       prometheus.Counter
	RowsSkipped        prometheus.Counter
	RunDuration        prometheus.Histogram
}

// NewIngest registers the ingestion collectors with reg.
func NewIngest(reg prometheus.Registerer) *Ingest {
	f := promauto.With(reg)
	return &Ingest{
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "runs_total",
			Help:      "Ingestion runs by outcome.",
		}, []string{"outcome"}),
		ValidationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "validation_failures_total",
			Help:      "Rejected runs by failing rule class.",
		}, []string{"kind"}),
		RowsInserted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "rows_inserted_total",
			Help:      "Trip rows written to the store.",
		}),
		RowsSkipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "rows_skipped_total",
			Help:      "Trip rows skipped because their trip_id already existed.",
		}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "run_duration_seconds",
			Help:      "Wall time of ingestion runs, from file found to archived.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// ObserveRun records one finished run. kind is the failure class, empty on success.
func (m *Ingest) ObserveRun(outcome, kind string, inserted, skipped int64, d time.Duration) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(outcome).Inc()
	if kind != "" {
		m.ValidationFailures.WithLabelValues(kind).Inc()
	}
	m.RowsInserted.Add(float64(inserted))
	m.RowsSkipped.Add(float64(skipped))
	m.RunDuration.Observe(d.Seconds())
}

// HTTP holds the read API collectors.
type HTTP struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewHTTP registers the HTTP collectors with reg.
func NewHTTP(reg prometheus.Registerer) *HTTP {
	f := promauto.With(reg)
	return &HTTP{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route pattern and status code.",
		}, []string{"route", "status"}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}
