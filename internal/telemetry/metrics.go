package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink counts engine activity in Prometheus metrics.
type PromSink struct {
	optimizations *prometheus.CounterVec
	experiments   prometheus.Counter
	conversions   *prometheus.CounterVec
}

func NewPromSink(reg prometheus.Registerer) *PromSink {
	s := &PromSink{
		optimizations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uplift",
			Name:      "optimizations_total",
			Help:      "Optimization calls by phase.",
		}, []string{"phase"}),
		experiments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uplift",
			Name:      "experiments_started_total",
			Help:      "Experiments moved to the running state.",
		}),
		conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uplift",
			Name:      "conversions_total",
			Help:      "Recorded conversion events by experiment.",
		}, []string{"experiment_id"}),
	}
	reg.MustRegister(s.optimizations, s.experiments, s.conversions)
	return s
}

func (s *PromSink) OptimizationStarted(string) {
	s.optimizations.WithLabelValues("started").Inc()
}

func (s *PromSink) OptimizationCompleted(string, int, float64) {
	s.optimizations.WithLabelValues("completed").Inc()
}

func (s *PromSink) ExperimentStarted(string, string) {
	s.experiments.Inc()
}

func (s *PromSink) ConversionRecorded(info ConversionInfo) {
	s.conversions.WithLabelValues(info.ExperimentID).Inc()
}
