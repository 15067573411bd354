package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

type countingSink struct {
	started, completed, experiments, conversions int
}

func (s *countingSink) OptimizationStarted(string)                 { s.started++ }
func (s *countingSink) OptimizationCompleted(string, int, float64) { s.completed++ }
func (s *countingSink) ExperimentStarted(string, string)           { s.experiments++ }
func (s *countingSink) ConversionRecorded(ConversionInfo)          { s.conversions++ }

func TestMultiSinkFansOut(t *testing.T) {
	a := &countingSink{}
	b := &countingSink{}
	m := MultiSink{a, b}

	m.OptimizationStarted("alice")
	m.OptimizationCompleted("alice", 3, 0.5)
	m.ExperimentStarted("exp-1", "hero")
	m.ConversionRecorded(ConversionInfo{UserID: "alice"})

	for _, s := range []*countingSink{a, b} {
		assert.Equal(t, 1, s.started)
		assert.Equal(t, 1, s.completed)
		assert.Equal(t, 1, s.experiments)
		assert.Equal(t, 1, s.conversions)
	}
}

func TestPromSinkCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewPromSink(reg)

	s.OptimizationStarted("alice")
	s.OptimizationStarted("bob")
	s.OptimizationCompleted("alice", 2, 0.6)
	s.ExperimentStarted("exp-1", "hero")
	s.ConversionRecorded(ConversionInfo{ExperimentID: "exp-1"})
	s.ConversionRecorded(ConversionInfo{ExperimentID: "exp-1"})

	assert.Equal(t, 2.0, testutil.ToFloat64(s.optimizations.WithLabelValues("started")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.optimizations.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.experiments))
	assert.Equal(t, 2.0, testutil.ToFloat64(s.conversions.WithLabelValues("exp-1")))
}
