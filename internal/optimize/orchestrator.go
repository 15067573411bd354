package optimize

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"

	"github.com/uplift-labs/uplift/internal/affect"
	"github.com/uplift-labs/uplift/internal/experiment"
	"github.com/uplift-labs/uplift/internal/models"
	"github.com/uplift-labs/uplift/internal/personalize"
	"github.com/uplift-labs/uplift/internal/predict"
	"github.com/uplift-labs/uplift/internal/segment"
	"github.com/uplift-labs/uplift/internal/store"
	"github.com/uplift-labs/uplift/internal/telemetry"
)

// Request carries everything the caller knows about the user at decision
// time.
type Request struct {
	UserID       string
	Session      models.SessionData
	Behaviors    []models.BehaviorEvent
	Demographics models.Demographics
}

// Orchestrator composes segmentation, experiments, affect estimation, rule
// evaluation and conversion prediction into one per-user decision. It is an
// explicitly constructed object; callers own its lifetime and may run several
// isolated instances side by side.
type Orchestrator struct {
	segments    *segment.Engine
	experiments *experiment.Engine
	estimator   *affect.Estimator
	predictor   *predict.Predictor
	rules       *personalize.Evaluator
	store       store.Store
	sink        telemetry.Sink
	log         *logrus.Logger
	now         func() time.Time
}

func New(st store.Store, sink telemetry.Sink, log *logrus.Logger) *Orchestrator {
	if sink == nil {
		sink = telemetry.NopSink{}
	}
	return &Orchestrator{
		segments:    segment.New(st, log),
		experiments: experiment.New(st, sink, log),
		estimator:   affect.NewEstimator(),
		predictor:   predict.New(),
		rules:       personalize.NewEvaluator(st, log),
		store:       st,
		sink:        sink,
		log:         log,
		now:         time.Now,
	}
}

// Experiments exposes the experiment administration surface.
func (o *Orchestrator) Experiments() *experiment.Engine { return o.experiments }

// Segments exposes segment registration and synthesis.
func (o *Orchestrator) Segments() *segment.Engine { return o.segments }

// Rules exposes personalization-rule administration.
func (o *Orchestrator) Rules() *personalize.Evaluator { return o.rules }

// Optimize is the primary read path, called once per render decision. It is a
// pure computation over its inputs and engine state: the only writes are
// first-time variant assignments and rule counters, and no network calls are
// made here.
func (o *Orchestrator) Optimize(ctx context.Context, req Request) (*models.OptimizationResult, error) {
	o.sink.OptimizationStarted(req.UserID)

	segmentIDs, err := o.segments.Classify(ctx, req.UserID, req.Behaviors, req.Demographics)
	if err != nil {
		return nil, errors.Wrap(err, "segmentation failed")
	}

	variants, variantActions, err := o.lookupVariants(ctx, req.UserID, segmentIDs)
	if err != nil {
		return nil, errors.Wrap(err, "variant lookup failed")
	}

	state := o.estimator.Estimate(req.UserID, req.Behaviors)
	prediction := o.predictor.Predict(req.UserID, req.Session)

	ruleActions, err := o.rules.Evaluate(ctx, segmentIDs, req.Session, req.Behaviors)
	if err != nil {
		// A degraded rule store should not take down the decision; the
		// remaining engines still produce a usable result.
		o.log.WithError(err).Warn("rule evaluation failed")
	}

	target := targetEmotion(state, prediction.Probability)

	var actions []models.Action
	actions = append(actions, variantActions...)
	actions = append(actions, ruleActions...)
	actions = append(actions, affect.SelectIntervention(state, target)...)
	actions = append(actions, prediction.Interventions...)

	result := &models.OptimizationResult{
		UserID:           req.UserID,
		SegmentIDs:       segmentIDs,
		Personalizations: dedupe(actions),
		Prediction:       prediction,
		EmotionalState:   &state,
		TargetEmotion:    target,
		Variants:         variants,
		GeneratedAt:      o.now(),
	}

	o.sink.OptimizationCompleted(req.UserID, len(result.Personalizations), prediction.Probability)
	return result, nil
}

// RecordConversion forwards a conversion event to the experiment engine.
func (o *Orchestrator) RecordConversion(ctx context.Context, userID string, ev models.ConversionEvent) error {
	return o.experiments.RecordConversion(ctx, userID, ev)
}

// lookupVariants resolves the user's variant for every applicable running
// experiment and collects the variant UI changes as personalization actions.
// An experiment with segment rules applies only to users classified into at
// least one of the named segments.
func (o *Orchestrator) lookupVariants(ctx context.Context, userID string, segmentIDs []string) (map[string]string, []models.Action, error) {
	experiments, err := o.store.ListExperiments(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to list experiments")
	}

	inSegment := make(map[string]bool, len(segmentIDs))
	for _, id := range segmentIDs {
		inSegment[id] = true
	}

	variants := make(map[string]string)
	var actions []models.Action
	for _, exp := range experiments {
		if exp.Status != models.StatusRunning {
			continue
		}
		if !applicable(exp.Config.SegmentRules, inSegment) {
			continue
		}
		variantID, ok, err := o.experiments.GetVariant(ctx, userID, exp.ID)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			continue
		}
		variants[exp.ID] = variantID
		for _, v := range exp.Variants {
			if v.ID != variantID {
				continue
			}
			for _, ch := range v.Changes {
				actions = append(actions, models.Action{
					Type:   models.ActionType(ch.Kind),
					Target: ch.Target,
					Value:  ch.Value,
					Source: "experiment:" + exp.ID,
				})
			}
		}
	}
	return variants, actions, nil
}

// applicable reports whether an experiment's segment rules admit the user.
// No rules means the experiment targets everyone.
func applicable(segmentRules []string, inSegment map[string]bool) bool {
	if len(segmentRules) == 0 {
		return true
	}
	for _, id := range segmentRules {
		if inSegment[id] {
			return true
		}
	}
	return false
}

// targetEmotion derives the single emotion to pursue from the current affect
// and conversion probability.
func targetEmotion(state models.EmotionalState, probability float64) models.TargetEmotion {
	switch {
	case probability > 0.7:
		return models.EmotionExcitement
	case state.Valence < -0.2:
		return models.EmotionTrust
	case state.Arousal > 0.7 && probability < 0.4:
		return models.EmotionUrgency
	case state.Dominance < 0.3:
		return models.EmotionConfidence
	default:
		return models.EmotionJoy
	}
}

// dedupe collapses duplicate actions by (type, target), keeping the first
// occurrence so higher-priority sources win.
func dedupe(actions []models.Action) []models.Action {
	seen := make(map[string]bool, len(actions))
	out := make([]models.Action, 0, len(actions))
	for _, a := range actions {
		key := string(a.Type) + "|" + a.Target
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a)
	}
	return out
}
