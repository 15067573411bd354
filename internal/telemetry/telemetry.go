package telemetry

import (
	"github.com/sirupsen/logrus"
)

// ConversionInfo describes a recorded conversion for downstream analytics.
type ConversionInfo struct {
	UserID       string
	EventType    string
	ExperimentID string
	VariantID    string
	Value        float64
}

// Sink receives engine lifecycle notifications. Implementations must never
// block the caller for long and must swallow their own delivery failures; the
// engine treats telemetry as best-effort.
type Sink interface {
	OptimizationStarted(userID string)
	OptimizationCompleted(userID string, actionCount int, probability float64)
	ExperimentStarted(experimentID, name string)
	ConversionRecorded(info ConversionInfo)
}

// NopSink discards all notifications.
type NopSink struct{}

func (NopSink) OptimizationStarted(string)                 {}
func (NopSink) OptimizationCompleted(string, int, float64) {}
func (NopSink) ExperimentStarted(string, string)           {}
func (NopSink) ConversionRecorded(ConversionInfo)          {}

// LogSink writes every notification as a structured log line.
type LogSink struct {
	Log *logrus.Logger
}

func NewLogSink(log *logrus.Logger) *LogSink {
	return &LogSink{Log: log}
}

func (s *LogSink) OptimizationStarted(userID string) {
	s.Log.WithField("user_id", userID).Debug("optimization started")
}

func (s *LogSink) OptimizationCompleted(userID string, actionCount int, probability float64) {
	s.Log.WithFields(logrus.Fields{
		"user_id":     userID,
		"actions":     actionCount,
		"probability": probability,
	}).Info("optimization completed")
}

func (s *LogSink) ExperimentStarted(experimentID, name string) {
	s.Log.WithFields(logrus.Fields{
		"experiment_id": experimentID,
		"name":          name,
	}).Info("experiment started")
}

func (s *LogSink) ConversionRecorded(info ConversionInfo) {
	s.Log.WithFields(logrus.Fields{
		"user_id":       info.UserID,
		"event_type":    info.EventType,
		"experiment_id": info.ExperimentID,
		"variant_id":    info.VariantID,
		"value":         info.Value,
	}).Info("conversion recorded")
}

// MultiSink fans notifications out to several sinks.
type MultiSink []Sink

func (m MultiSink) OptimizationStarted(userID string) {
	for _, s := range m {
		s.OptimizationStarted(userID)
	}
}

func (m MultiSink) OptimizationCompleted(userID string, actionCount int, probability float64) {
	for _, s := range m {
		s.OptimizationCompleted(userID, actionCount, probability)
	}
}

func (m MultiSink) ExperimentStarted(experimentID, name string) {
	for _, s := range m {
		s.ExperimentStarted(experimentID, name)
	}
}

func (m MultiSink) ConversionRecorded(info ConversionInfo) {
	for _, s := range m {
		s.ConversionRecorded(info)
	}
}
