package personalize

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

func newTestEvaluator() (*Evaluator, *store.MemoryStore) {
	st := store.NewMemoryStore()
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewEvaluator(st, log), st
}

func TestSaveEnablesNewRules(t *testing.T) {
	ev, st := newTestEvaluator()
	ctx := context.Background()

	rule := &models.PersonalizationRule{Name: "welcome"}
	require.NoError(t, ev.Save(ctx, rule))
	assert.NotEmpty(t, rule.ID)
	assert.True(t, rule.Enabled)

	rules, err := st.ListRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.True(t, rules[0].Enabled)
}

func TestEvaluateAllConditionsMustHold(t *testing.T) {
	ev, _ := newTestEvaluator()
	ctx := context.Background()

	require.NoError(t, ev.Save(ctx, &models.PersonalizationRule{
		Name: "mobile-germans",
		Conditions: []models.RuleCondition{
			{Type: models.ConditionDevice, Value: "mobile"},
			{Type: models.ConditionLocation, Value: "DE"},
		},
		Actions: []models.Action{
			{Type: models.ActionShow, Target: "#de-banner"},
		},
	}))

	actions, err := ev.Evaluate(ctx, nil, models.SessionData{DeviceClass: "mobile", Country: "de"}, nil)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "#de-banner", actions[0].Target)

	// One failing condition suppresses the whole rule.
	actions, err = ev.Evaluate(ctx, nil, models.SessionData{DeviceClass: "desktop", Country: "de"}, nil)
	require.NoError(t, err)
	assert.Empty(t, actions)
}

func TestEvaluateSegmentAndBehaviorConditions(t *testing.T) {
	ev, _ := newTestEvaluator()
	ctx := context.Background()

	require.NoError(t, ev.Save(ctx, &models.PersonalizationRule{
		Name: "searching-power-users",
		Conditions: []models.RuleCondition{
			{Type: models.ConditionSegment, Value: "seg-power"},
			{Type: models.ConditionBehavior, Value: "search"},
		},
		Actions: []models.Action{
			{Type: models.ActionContentSwap, Target: "#hero", Value: "advanced tips"},
		},
	}))

	behaviors := []models.BehaviorEvent{{Type: models.BehaviorSearch}}

	actions, err := ev.Evaluate(ctx, []string{"seg-power"}, models.SessionData{}, behaviors)
	require.NoError(t, err)
	require.Len(t, actions, 1)

	actions, err = ev.Evaluate(ctx, []string{"seg-other"}, models.SessionData{}, behaviors)
	require.NoError(t, err)
	assert.Empty(t, actions)
}

func TestEvaluateTagsActionSource(t *testing.T) {
	ev, _ := newTestEvaluator()
	ctx := context.Background()

	rule := &models.PersonalizationRule{
		Name:       "tagged",
		Conditions: []models.RuleCondition{{Type: models.ConditionDevice, Value: "mobile"}},
		Actions:    []models.Action{{Type: models.ActionHide, Target: "#sidebar"}},
	}
	require.NoError(t, ev.Save(ctx, rule))

	actions, err := ev.Evaluate(ctx, nil, models.SessionData{DeviceClass: "mobile"}, nil)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "rule:"+rule.ID, actions[0].Source)
}

func TestEvaluatePriorityOrder(t *testing.T) {
	ev, _ := newTestEvaluator()
	ctx := context.Background()

	for _, r := range []*models.PersonalizationRule{
		{Name: "second", Priority: 1,
			Conditions: []models.RuleCondition{{Type: models.ConditionDevice, Value: "mobile"}},
			Actions:    []models.Action{{Type: models.ActionShow, Target: "#second"}}},
		{Name: "first", Priority: 10,
			Conditions: []models.RuleCondition{{Type: models.ConditionDevice, Value: "mobile"}},
			Actions:    []models.Action{{Type: models.ActionShow, Target: "#first"}}},
	} {
		require.NoError(t, ev.Save(ctx, r))
	}

	actions, err := ev.Evaluate(ctx, nil, models.SessionData{DeviceClass: "mobile"}, nil)
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, "#first", actions[0].Target)
	assert.Equal(t, "#second", actions[1].Target)
}

func TestEvaluateSkipsDisabledAndConditionless(t *testing.T) {
	ev, _ := newTestEvaluator()
	ctx := context.Background()

	disabled := &models.PersonalizationRule{
		Name:       "retired",
		Conditions: []models.RuleCondition{{Type: models.ConditionDevice, Value: "mobile"}},
		Actions:    []models.Action{{Type: models.ActionShow, Target: "#old"}},
	}
	require.NoError(t, ev.Save(ctx, disabled))
	require.NoError(t, ev.Disable(ctx, disabled.ID))

	// A rule with no conditions never fires.
	require.NoError(t, ev.Save(ctx, &models.PersonalizationRule{
		Name:    "unconditional",
		Actions: []models.Action{{Type: models.ActionShow, Target: "#everything"}},
	}))

	actions, err := ev.Evaluate(ctx, nil, models.SessionData{DeviceClass: "mobile"}, nil)
	require.NoError(t, err)
	assert.Empty(t, actions)
}

func TestEvaluateCountsMatches(t *testing.T) {
	ev, st := newTestEvaluator()
	ctx := context.Background()

	rule := &models.PersonalizationRule{
		Name:       "counted",
		Conditions: []models.RuleCondition{{Type: models.ConditionDevice, Value: "mobile"}},
		Actions:    []models.Action{{Type: models.ActionShow, Target: "#x"}},
	}
	require.NoError(t, ev.Save(ctx, rule))

	for i := 0; i < 3; i++ {
		_, err := ev.Evaluate(ctx, nil, models.SessionData{DeviceClass: "mobile"}, nil)
		require.NoError(t, err)
	}

	rules, err := st.ListRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, int64(3), rules[0].Matches)
}

func TestTimeConditions(t *testing.T) {
	ev, _ := newTestEvaluator()
	ev.now = func() time.Time {
		return time.Date(2025, 6, 1, 23, 0, 0, 0, time.UTC)
	}

	cases := []struct {
		value string
		want  bool
	}{
		{"23", true},
		{"9", false},
		{"20-24", true},
		{"9-17", false},
		{"22-6", true}, // wraps past midnight
		{"0-6", false},
		{"evening", false},
	}
	for _, tc := range cases {
		got := ev.conditionMatches(
			models.RuleCondition{Type: models.ConditionTime, Value: tc.value},
			nil, nil, models.SessionData{})
		assert.Equal(t, tc.want, got, "hour range %q", tc.value)
	}
}

func TestMatchStringOperators(t *testing.T) {
	assert.True(t, matchString("Mobile", models.RuleCondition{Value: "mobile"}))
	assert.True(t, matchString("news.ycombinator.com", models.RuleCondition{Operator: models.OpContains, Value: "ycombinator"}))
	assert.False(t, matchString("", models.RuleCondition{Value: ""}))
}
