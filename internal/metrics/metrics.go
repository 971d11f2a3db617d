package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics carries the service's Prometheus instruments.
type Metrics struct {
	JobsStarted      prometheus.Counter
	JobsCompleted    *prometheus.CounterVec
	InferenceLatency prometheus.Histogram
	ShareOutcomes    *prometheus.CounterVec
}

// New registers the instruments on the given registerer. Tests pass a fresh
// registry to avoid cross-test collisions.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		JobsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "tryon_jobs_started_total",
			Help: "Try-on jobs accepted past the quota gate.",
		}),
		JobsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tryon_jobs_completed_total",
			Help: "Terminal try-on jobs by outcome.",
		}, []string{"status", "failure_kind"}),
		InferenceLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tryon_inference_seconds",
			Help:    "Wall time of the external inference call.",
			Buckets: []float64{5, 15, 30, 60, 90, 120, 180, 240},
		}),
		ShareOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tryon_share_total",
			Help: "Share attempts by target and outcome.",
		}, []string{"target", "outcome"}),
	}
}
