package segment

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uplift-labs/uplift/internal/models"
	"github.com/uplift-labs/uplift/internal/store"
)

func newTestEngine() *Engine {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return New(store.NewMemoryStore(), log)
}

func events(types ...models.BehaviorType) []models.BehaviorEvent {
	out := make([]models.BehaviorEvent, len(types))
	for i, typ := range types {
		out[i] = models.BehaviorEvent{Type: typ, Timestamp: time.Now()}
	}
	return out
}

func TestClassifyMatchesBehavioralCriteria(t *testing.T) {
	eng := newTestEngine()
	ctx := context.Background()

	require.NoError(t, eng.Register(ctx, &models.UserSegment{
		Name: "searchers",
		Criteria: []models.Criterion{
			{Group: models.CriteriaBehavioral, Field: "search_count", Operator: models.OpGreaterThan, Value: "1"},
		},
	}))

	matched, err := eng.Classify(ctx, "alice",
		events(models.BehaviorSearch, models.BehaviorSearch, models.BehaviorClick),
		models.Demographics{})
	require.NoError(t, err)
	assert.Len(t, matched, 1)

	matched, err = eng.Classify(ctx, "bob", events(models.BehaviorClick), models.Demographics{})
	require.NoError(t, err)
	assert.Empty(t, matched)
}

func TestClassifyWeightedThreshold(t *testing.T) {
	eng := newTestEngine()
	ctx := context.Background()

	// The heavy criterion matches, the light one does not: 2/3 clears the
	// threshold.
	require.NoError(t, eng.Register(ctx, &models.UserSegment{
		Name: "mostly-matching",
		Criteria: []models.Criterion{
			{Group: models.CriteriaBehavioral, Field: "event_count", Operator: models.OpGreaterThan, Value: "0", Weight: 2},
			{Group: models.CriteriaBehavioral, Field: "search_count", Operator: models.OpGreaterThan, Value: "5", Weight: 1},
		},
	}))
	// Reversed weights: 1/3 falls short.
	require.NoError(t, eng.Register(ctx, &models.UserSegment{
		Name: "mostly-missing",
		Criteria: []models.Criterion{
			{Group: models.CriteriaBehavioral, Field: "event_count", Operator: models.OpGreaterThan, Value: "0", Weight: 1},
			{Group: models.CriteriaBehavioral, Field: "search_count", Operator: models.OpGreaterThan, Value: "5", Weight: 2},
		},
	}))

	matched, err := eng.Classify(ctx, "alice", events(models.BehaviorClick), models.Demographics{})
	require.NoError(t, err)
	require.Len(t, matched, 1)

	segments, err := eng.store.ListSegments(ctx)
	require.NoError(t, err)
	for _, seg := range segments {
		if seg.ID == matched[0] {
			assert.Equal(t, "mostly-matching", seg.Name)
		}
	}
}

func TestClassifyDemographics(t *testing.T) {
	eng := newTestEngine()
	ctx := context.Background()

	require.NoError(t, eng.Register(ctx, &models.UserSegment{
		Name: "germans",
		Criteria: []models.Criterion{
			{Group: models.CriteriaDemographic, Field: "location", Operator: models.OpEquals, Value: "Germany"},
		},
	}))

	// Matching is case-insensitive.
	matched, err := eng.Classify(ctx, "alice", nil, models.Demographics{Location: "germany"})
	require.NoError(t, err)
	assert.Len(t, matched, 1)

	// A missing profile degrades to no match, not an error.
	matched, err = eng.Classify(ctx, "bob", nil, models.Demographics{})
	require.NoError(t, err)
	assert.Empty(t, matched)
}

func TestClassifyMalformedNumericValue(t *testing.T) {
	eng := newTestEngine()
	ctx := context.Background()

	require.NoError(t, eng.Register(ctx, &models.UserSegment{
		Name: "broken",
		Criteria: []models.Criterion{
			{Group: models.CriteriaBehavioral, Field: "event_count", Operator: models.OpGreaterThan, Value: "lots"},
		},
	}))

	matched, err := eng.Classify(ctx, "alice", events(models.BehaviorClick), models.Demographics{})
	require.NoError(t, err)
	assert.Empty(t, matched)
}

func TestBuildProfile(t *testing.T) {
	behaviors := []models.BehaviorEvent{
		{Type: models.BehaviorSearch, Value: "trail running shoes", Duration: 2 * time.Second,
			Context: models.BehaviorContext{DeviceClass: "desktop", Browser: "firefox"}},
		{Type: models.BehaviorPageView, Duration: 10 * time.Second,
			Context: models.BehaviorContext{DeviceClass: "desktop", Browser: "firefox"}},
		{Type: models.BehaviorForm, Duration: 5 * time.Second,
			Context: models.BehaviorContext{DeviceClass: "mobile", Browser: "safari"}},
	}

	p := buildProfile(behaviors)
	assert.Equal(t, 3, p.eventCount)
	assert.Equal(t, 1, p.searchCount)
	assert.Equal(t, 1, p.formCount)
	assert.Equal(t, 0, p.filterCount)
	assert.Equal(t, 1, p.pageViews)
	assert.Equal(t, 17*time.Second, p.sessionDuration)
	assert.Equal(t, "desktop", p.deviceClass)
	assert.Equal(t, "firefox", p.browser)
	// "trail" and "shoes" and "running" pass the length filter.
	assert.Contains(t, p.interests, "running")
	assert.Contains(t, p.interests, "shoes")
}

func TestInterestTokensFilterShortWords(t *testing.T) {
	assert.Equal(t, []string{"cheap", "flights", "rome"}, interestTokens("Cheap flights to Rome"))
	assert.Empty(t, interestTokens("a to z"))
}

func TestCompareStringOperators(t *testing.T) {
	assert.True(t, compareString("Desktop", models.Criterion{Operator: models.OpEquals, Value: "desktop"}))
	assert.True(t, compareString("chrome mobile", models.Criterion{Operator: models.OpContains, Value: "chrome"}))
	assert.True(t, compareString("DE", models.Criterion{Operator: models.OpIn, Values: []string{"de", "at", "ch"}}))
	assert.False(t, compareString("", models.Criterion{Operator: models.OpEquals, Value: ""}))
}

func TestSynthesizeEmptyStream(t *testing.T) {
	eng := newTestEngine()
	_, err := eng.Synthesize(context.Background(), nil)
	assert.Error(t, err)
}

func TestSynthesizeBuildsCriteria(t *testing.T) {
	eng := newTestEngine()
	ctx := context.Background()

	behaviors := []models.BehaviorEvent{
		{Type: models.BehaviorSearch, Value: "wireless headphones", Duration: 3 * time.Second,
			Context: models.BehaviorContext{DeviceClass: "desktop", Browser: "chrome"}},
		{Type: models.BehaviorClick, Duration: time.Second,
			Context: models.BehaviorContext{DeviceClass: "desktop", Browser: "chrome"}},
		{Type: models.BehaviorForm, Duration: 8 * time.Second,
			Context: models.BehaviorContext{DeviceClass: "desktop", Browser: "chrome"}},
		{Type: models.BehaviorForm, Duration: 4 * time.Second,
			Context: models.BehaviorContext{DeviceClass: "desktop", Browser: "chrome"}},
	}

	seg, err := eng.Synthesize(ctx, behaviors)
	require.NoError(t, err)
	assert.NotEmpty(t, seg.ID)
	assert.True(t, seg.Synthesized)
	assert.Contains(t, seg.Name, "discovered:")

	fields := map[string]models.Criterion{}
	for _, c := range seg.Criteria {
		fields[c.Field] = c
	}
	assert.Contains(t, fields, "event_count")
	assert.Contains(t, fields, "search_count")
	assert.Contains(t, fields, "form_interactions")
	assert.Equal(t, float64(2), fields["form_interactions"].Weight)
	assert.Equal(t, "desktop", fields["device_class"].Value)
	assert.Equal(t, "chrome", fields["browser"].Value)
	assert.Contains(t, fields, "session_duration_seconds")

	// Two form events must not produce a duplicate criterion.
	formCriteria := 0
	for _, c := range seg.Criteria {
		if c.Field == "form_interactions" {
			formCriteria++
		}
	}
	assert.Equal(t, 1, formCriteria)

	// The stream that produced the segment matches it.
	matched, err := eng.Classify(ctx, "alice", behaviors, models.Demographics{})
	require.NoError(t, err)
	assert.Contains(t, matched, seg.ID)
}

// A segment mined from a filter-heavy stream has to match that same stream,
// since filtering is one of the high-intent event types.
func TestSynthesizeFilterStreamClassifies(t *testing.T) {
	eng := newTestEngine()
	ctx := context.Background()

	behaviors := events(models.BehaviorFilter, models.BehaviorFilter, models.BehaviorFilter)

	seg, err := eng.Synthesize(ctx, behaviors)
	require.NoError(t, err)

	var filterCriterion *models.Criterion
	for i := range seg.Criteria {
		if seg.Criteria[i].Field == "filter_count" {
			filterCriterion = &seg.Criteria[i]
		}
	}
	require.NotNil(t, filterCriterion)
	assert.Equal(t, float64(2), filterCriterion.Weight)

	matched, err := eng.Classify(ctx, "alice", behaviors, models.Demographics{})
	require.NoError(t, err)
	assert.Contains(t, matched, seg.ID)
}

func TestDominantPair(t *testing.T) {
	assert.Equal(t, "search->click", dominantPair(events(
		models.BehaviorSearch, models.BehaviorClick,
		models.BehaviorSearch, models.BehaviorClick,
		models.BehaviorScroll,
	)))
	assert.Equal(t, "click", dominantPair(events(models.BehaviorClick)))
}
