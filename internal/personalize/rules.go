package personalize

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/uplift-labs/uplift/internal/models"
	"github.com/uplift-labs/uplift/internal/store"
)

// Evaluator applies configured personalization rules to a request. Rules run
// in priority order; every condition of a rule must hold for its actions to
// fire.
type Evaluator struct {
	store store.Store
	log   *logrus.Logger
	now   func() time.Time
}

func NewEvaluator(st store.Store, log *logrus.Logger) *Evaluator {
	return &Evaluator{store: st, log: log, now: time.Now}
}

// Save registers a rule, enabled by default.
func (e *Evaluator) Save(ctx context.Context, rule *models.PersonalizationRule) error {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = e.now()
		rule.Enabled = true
	}
	return errors.Wrap(e.store.SaveRule(ctx, rule), "failed to save rule")
}

// Disable retires a rule without deleting it.
func (e *Evaluator) Disable(ctx context.Context, id string) error {
	return e.store.DisableRule(ctx, id)
}

// Evaluate returns the actions of every enabled rule whose conditions all
// match, in priority order. Match counters are updated best-effort.
func (e *Evaluator) Evaluate(ctx context.Context, segmentIDs []string, session models.SessionData, behaviors []models.BehaviorEvent) ([]models.Action, error) {
	rules, err := e.store.ListRules(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list rules")
	}

	segments := map[string]bool{}
	for _, id := range segmentIDs {
		segments[id] = true
	}
	behaviorTypes := map[string]bool{}
	for _, b := range behaviors {
		behaviorTypes[string(b.Type)] = true
	}

	var out []models.Action
	for _, rule := range rules {
		if !rule.Enabled || len(rule.Conditions) == 0 {
			continue
		}
		if !e.ruleMatches(rule, segments, behaviorTypes, session) {
			continue
		}
		for _, action := range rule.Actions {
			action.Source = "rule:" + rule.ID
			out = append(out, action)
		}
		rule.Matches++
		if err := e.store.SaveRule(ctx, rule); err != nil {
			e.log.WithError(err).WithField("rule_id", rule.ID).Warn("failed to update rule counters")
		}
	}
	return out, nil
}

func (e *Evaluator) ruleMatches(rule *models.PersonalizationRule, segments, behaviorTypes map[string]bool, session models.SessionData) bool {
	for _, cond := range rule.Conditions {
		if !e.conditionMatches(cond, segments, behaviorTypes, session) {
			return false
		}
	}
	return true
}

func (e *Evaluator) conditionMatches(cond models.RuleCondition, segments, behaviorTypes map[string]bool, session models.SessionData) bool {
	switch cond.Type {
	case models.ConditionSegment:
		return segments[cond.Value]
	case models.ConditionBehavior:
		return behaviorTypes[cond.Value]
	case models.ConditionDevice:
		return matchString(session.DeviceClass, cond)
	case models.ConditionLocation:
		return matchString(session.Country, cond)
	case models.ConditionReferrer:
		return matchString(session.Referrer, cond)
	case models.ConditionTime:
		return matchHour(e.now().Hour(), cond)
	}
	return false
}

func matchString(got string, cond models.RuleCondition) bool {
	if got == "" {
		return false
	}
	got = strings.ToLower(got)
	want := strings.ToLower(cond.Value)
	switch cond.Operator {
	case models.OpContains:
		return strings.Contains(got, want)
	default:
		return got == want
	}
}

// matchHour interprets the condition value as an hour or an "HH-HH" range in
// the engine's local time.
func matchHour(hour int, cond models.RuleCondition) bool {
	if from, to, ok := strings.Cut(cond.Value, "-"); ok {
		lo, err1 := strconv.Atoi(from)
		hi, err2 := strconv.Atoi(to)
		if err1 != nil || err2 != nil {
			return false
		}
		if lo <= hi {
			return hour >= lo && hour < hi
		}
		// Ranges like 22-6 wrap past midnight.
		return hour >= lo || hour < hi
	}
	want, err := strconv.Atoi(cond.Value)
	return err == nil && hour == want
}
