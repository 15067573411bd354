package affect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uplift-labs/uplift/internal/models"
)

func events(types ...models.BehaviorType) []models.BehaviorEvent {
	out := make([]models.BehaviorEvent, len(types))
	for i, typ := range types {
		out[i] = models.BehaviorEvent{Type: typ, Timestamp: time.Now()}
	}
	return out
}

func TestEstimateEmptyStreamIsNeutral(t *testing.T) {
	e := NewEstimator()
	state := e.Estimate("alice", nil)

	assert.Equal(t, 0.0, state.Valence)
	assert.Equal(t, 0.5, state.Arousal)
	assert.Equal(t, 0.5, state.Dominance)
	assert.Equal(t, baselineConfidence, state.Confidence)
	assert.Empty(t, state.Triggers)
}

func TestEstimateClicksReadPositive(t *testing.T) {
	e := NewEstimator()
	state := e.Estimate("alice", events(models.BehaviorClick, models.BehaviorClick))

	assert.InDelta(t, 0.30, state.Valence, 1e-9)
	assert.InDelta(t, 0.70, state.Arousal, 1e-9)
	assert.InDelta(t, 0.60, state.Dominance, 1e-9)
}

func TestEstimateFormsReadEffortful(t *testing.T) {
	e := NewEstimator()
	state := e.Estimate("alice", events(models.BehaviorForm))

	assert.Less(t, state.Valence, 0.0)
	assert.Greater(t, state.Arousal, 0.5)
	assert.Less(t, state.Dominance, 0.5)
}

func TestLongScrollReadsSettled(t *testing.T) {
	e := NewEstimator()

	short := e.Estimate("alice", []models.BehaviorEvent{
		{Type: models.BehaviorScroll, Duration: time.Second, Timestamp: time.Now()},
	})
	long := e.Estimate("bob", []models.BehaviorEvent{
		{Type: models.BehaviorScroll, Duration: 5 * time.Second, Timestamp: time.Now()},
	})

	assert.Greater(t, long.Valence, short.Valence)
	assert.Less(t, long.Arousal, short.Arousal)
}

func TestConfidenceGrowsWithVolumeAndDiversity(t *testing.T) {
	e := NewEstimator()

	sparse := e.Estimate("alice", events(models.BehaviorClick))
	voluminous := e.Estimate("bob", events(
		models.BehaviorClick, models.BehaviorClick, models.BehaviorClick,
		models.BehaviorClick, models.BehaviorClick, models.BehaviorClick,
	))
	diverse := e.Estimate("carol", events(
		models.BehaviorClick, models.BehaviorScroll, models.BehaviorSearch,
		models.BehaviorPageView, models.BehaviorForm, models.BehaviorFilter,
	))

	assert.Greater(t, voluminous.Confidence, sparse.Confidence)
	assert.Greater(t, diverse.Confidence, voluminous.Confidence)
	assert.LessOrEqual(t, diverse.Confidence, 1.0)
}

func TestConfidenceRewardsRecency(t *testing.T) {
	e := NewEstimator()

	stale := make([]models.BehaviorEvent, 5)
	fresh := make([]models.BehaviorEvent, 5)
	for i := range stale {
		stale[i] = models.BehaviorEvent{Type: models.BehaviorClick, Timestamp: time.Now().Add(-time.Hour)}
		fresh[i] = models.BehaviorEvent{Type: models.BehaviorClick, Timestamp: time.Now()}
	}

	assert.Greater(t,
		e.Estimate("alice", fresh).Confidence,
		e.Estimate("bob", stale).Confidence,
	)
}

func TestTriggers(t *testing.T) {
	e := NewEstimator()

	state := e.Estimate("alice", events(models.BehaviorSearch, models.BehaviorSearch))
	require.Len(t, state.Triggers, 1)
	assert.Contains(t, state.Triggers[0], "goal in mind")

	state = e.Estimate("bob", events(
		models.BehaviorScroll, models.BehaviorScroll, models.BehaviorScroll, models.BehaviorScroll,
	))
	require.Len(t, state.Triggers, 1)
	assert.Contains(t, state.Triggers[0], "unfocused browsing")
}

func TestLastReturnsMostRecentState(t *testing.T) {
	e := NewEstimator()

	_, ok := e.Last("alice")
	assert.False(t, ok)

	first := e.Estimate("alice", events(models.BehaviorForm))
	second := e.Estimate("alice", events(models.BehaviorClick, models.BehaviorClick))

	got, ok := e.Last("alice")
	require.True(t, ok)
	assert.Equal(t, second, got)
	assert.NotEqual(t, first, got)
}
