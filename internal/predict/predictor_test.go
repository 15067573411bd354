package predict

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uplift-labs/uplift/internal/models"
)

func TestPredictEmptySessionIsMidpoint(t *testing.T) {
	p := New()
	pred := p.Predict("alice", models.SessionData{})

	assert.Equal(t, 0.5, pred.Probability)
	assert.Len(t, pred.Factors, 7)
	for _, f := range pred.Factors {
		assert.Zero(t, f.Impact)
	}
	// Nothing observed means minimal confidence.
	assert.InDelta(t, 0.2, pred.Confidence, 1e-9)
}

func TestPredictRichSession(t *testing.T) {
	p := New()
	pred := p.Predict("alice", models.SessionData{
		SessionID:        "s-1",
		TimeOnSite:       8 * time.Minute,
		PagesViewed:      15,
		SearchCount:      5,
		FormInteractions: 5,
		DeviceClass:      "desktop",
		TrafficSource:    "email",
		ReturningVisitor: true,
	})

	assert.Greater(t, pred.Probability, 0.7)
	assert.Less(t, pred.Probability, 1.0)
	assert.Greater(t, pred.Confidence, 0.5)
	assert.Equal(t, "s-1", pred.SessionID)

	require.NotEmpty(t, pred.Recommendations)
	assert.Contains(t, pred.Recommendations[0], "high intent")
}

func TestPredictProbabilityOrdering(t *testing.T) {
	p := New()

	weak := p.Predict("a", models.SessionData{DeviceClass: "mobile"})
	neutral := p.Predict("b", models.SessionData{})
	strong := p.Predict("c", models.SessionData{
		TimeOnSite:       5 * time.Minute,
		PagesViewed:      10,
		ReturningVisitor: true,
	})

	assert.Less(t, weak.Probability, neutral.Probability)
	assert.Greater(t, strong.Probability, neutral.Probability)
}

func TestKneeNormalize(t *testing.T) {
	assert.Equal(t, 0.0, kneeNormalize(0, 100))
	assert.Equal(t, 0.5, kneeNormalize(65, 100))
	assert.Equal(t, 1.0, kneeNormalize(100, 100))
	// Values beyond the plausible range saturate.
	assert.Equal(t, 1.0, kneeNormalize(500, 100))
	// Below the knee the curve is linear toward 0.5.
	assert.InDelta(t, 0.25, kneeNormalize(32.5, 100), 1e-9)
}

func TestDeviceAndSourceImpacts(t *testing.T) {
	assert.Greater(t, deviceImpact("desktop"), deviceImpact("tablet"))
	assert.Less(t, deviceImpact("mobile"), 0.0)
	assert.Zero(t, deviceImpact("smart-fridge"))

	assert.Greater(t, sourceImpact("email"), sourceImpact("organic"))
	assert.Greater(t, sourceImpact("organic"), sourceImpact("direct"))
	assert.Zero(t, sourceImpact("unknown"))
}

func TestRecommendationsTiers(t *testing.T) {
	low := recommendations(0.2, models.SessionData{FormInteractions: 1})
	require.Len(t, low, 1)
	assert.Contains(t, low[0], "low intent")

	moderate := recommendations(0.5, models.SessionData{FormInteractions: 1})
	assert.Contains(t, moderate[0], "moderate intent")

	// No form engagement appends the incentive line.
	high := recommendations(0.8, models.SessionData{})
	require.Len(t, high, 2)
	assert.Contains(t, high[0], "high intent")
	assert.Contains(t, high[1], "incentive")
}

func TestInterventionThresholds(t *testing.T) {
	low := interventions(0.2, models.SessionData{})
	require.Len(t, low, 1)
	assert.Equal(t, models.ActionPopup, low[0].Type)
	assert.Equal(t, "#discount-offer", low[0].Target)

	high := interventions(0.8, models.SessionData{FormInteractions: 2})
	require.Len(t, high, 2)
	assert.Equal(t, "#urgency-banner", high[0].Target)
	assert.Equal(t, 30*time.Second, high[0].Delay)
	assert.Equal(t, "#live-chat-offer", high[1].Target)

	mid := interventions(0.5, models.SessionData{})
	assert.Empty(t, mid)
}
