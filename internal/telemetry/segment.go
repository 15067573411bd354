package telemetry

import (
	"github.com/segmentio/analytics-go/v3"
	"github.com/sirupsen/logrus"
)

// SegmentSink forwards lifecycle notifications to Segment. Enqueue failures
// are logged and dropped; analytics must never fail the hot path.
type SegmentSink struct {
	client analytics.Client
	log    *logrus.Logger
}

func NewSegmentSink(writeKey string, log *logrus.Logger) *SegmentSink {
	return &SegmentSink{
		client: analytics.New(writeKey),
		log:    log,
	}
}

func (s *SegmentSink) Close() error {
	return s.client.Close()
}

func (s *SegmentSink) track(userID, event string, props analytics.Properties) {
	err := s.client.Enqueue(analytics.Track{
		UserId:     userID,
		Event:      event,
		Properties: props,
	})
	if err != nil {
		s.log.WithError(err).Warn("failed to enqueue analytics event")
	}
}

func (s *SegmentSink) OptimizationStarted(userID string) {
	s.track(userID, "Optimization Started", analytics.NewProperties())
}

func (s *SegmentSink) OptimizationCompleted(userID string, actionCount int, probability float64) {
	s.track(userID, "Optimization Completed", analytics.NewProperties().
		Set("actions", actionCount).
		Set("probability", probability))
}

func (s *SegmentSink) ExperimentStarted(experimentID, name string) {
	s.track("system", "Experiment Started", analytics.NewProperties().
		Set("experiment_id", experimentID).
		Set("name", name))
}

func (s *SegmentSink) ConversionRecorded(info ConversionInfo) {
	s.track(info.UserID, "Conversion Recorded", analytics.NewProperties().
		Set("event_type", info.EventType).
		Set("experiment_id", info.ExperimentID).
		Set("variant_id", info.VariantID).
		Set("value", info.Value))
}
