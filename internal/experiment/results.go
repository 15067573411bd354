package experiment

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/uplift-labs/uplift/internal/models"
	"github.com/uplift-labs/uplift/internal/stats"
)

// Evaluate recomputes the experiment's results: leader, two-proportion z-test
// against the first-declared control, Wilson intervals, and auto-completion
// when every variant has reached the minimum sample size and either the
// result is significant or the configured duration has elapsed. Evaluating an
// already-completed experiment returns its stored results unchanged.
func (e *Engine) Evaluate(ctx context.Context, id string) (*models.ExperimentResults, error) {
	exp, err := e.store.GetExperiment(ctx, id)
	if err != nil {
		return nil, err
	}
	if exp.Status.Terminal() && exp.Results != nil {
		return exp.Results, nil
	}
	if len(exp.Variants) < 2 {
		return nil, errors.New("experiment has no comparable variants")
	}

	aggregates, err := e.store.ReadAggregates(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read aggregates")
	}

	control := aggregates[0]
	leader := control
	for _, row := range aggregates[1:] {
		if row.ConversionRate > leader.ConversionRate {
			leader = row
		}
	}

	// When the control leads, the test still compares it against the best
	// challenger so the p-value reflects the closest race.
	challenger := leader
	if leader.VariantID == control.VariantID {
		for i, row := range aggregates {
			if i == 0 {
				continue
			}
			if challenger.VariantID == control.VariantID || row.ConversionRate > challenger.ConversionRate {
				challenger = row
			}
		}
	}

	results := &models.ExperimentResults{
		ExperimentID: id,
		PValue:       1,
		VariantStats: aggregates,
		EvaluatedAt:  e.now(),
	}
	for _, row := range aggregates {
		lower, upper := stats.WilsonInterval(row.Conversions, row.Impressions, exp.Config.ConfidenceLevel)
		results.Intervals = append(results.Intervals, models.ConfidenceInterval{
			VariantID: row.VariantID,
			Lower:     lower,
			Upper:     upper,
		})
	}

	minSample := int64(exp.Config.MinSampleSize)
	alpha := 1 - exp.Config.ConfidenceLevel

	if control.Impressions >= minSample && challenger.Impressions >= minSample {
		_, p := stats.TwoProportionZTest(
			challenger.Conversions, challenger.Impressions,
			control.Conversions, control.Impressions,
		)
		results.PValue = p
		results.Significant = p < alpha
		// Effect and p-value describe the same pair: when the control leads,
		// the effect is negative.
		results.EffectSize = stats.EffectSize(control.ConversionRate, challenger.ConversionRate)
	}
	// Below the minimum sample size the experiment simply is not yet
	// significant; that is a result, not an error.

	if results.Significant {
		results.WinnerVariantID = leader.VariantID
	}
	results.Recommendation = recommendation(exp, results, leader.VariantID)

	if e.shouldComplete(exp, aggregates, results) {
		results.WinnerVariantID = leader.VariantID
		if err := e.store.UpdateExperimentStatus(ctx, id, models.StatusCompleted); err != nil {
			return nil, errors.Wrap(err, "failed to complete experiment")
		}
	}

	if err := e.store.SaveResults(ctx, id, results); err != nil {
		return nil, errors.Wrap(err, "failed to save results")
	}
	return results, nil
}

// shouldComplete applies the auto-completion rule: every variant at minimum
// sample size, and either a significant result or an expired duration.
func (e *Engine) shouldComplete(exp *models.Experiment, aggregates []models.VariantStats, results *models.ExperimentResults) bool {
	if exp.Status != models.StatusRunning {
		return false
	}
	minSample := int64(exp.Config.MinSampleSize)
	for _, row := range aggregates {
		if row.Impressions < minSample {
			return false
		}
	}
	if results.Significant {
		return true
	}
	if exp.Config.Duration > 0 && exp.StartedAt != nil {
		return e.now().Sub(*exp.StartedAt) >= exp.Config.Duration
	}
	return false
}

func recommendation(exp *models.Experiment, results *models.ExperimentResults, leaderID string) string {
	name := leaderID
	for _, v := range exp.Variants {
		if v.ID == leaderID {
			name = v.Name
			break
		}
	}
	if !results.Significant {
		return "no significant winner yet"
	}
	switch {
	case results.EffectSize > 0.10:
		return fmt.Sprintf("strong winner: %s (%.1f%% lift)", name, results.EffectSize*100)
	case results.EffectSize > 0.05:
		return fmt.Sprintf("moderate winner: %s (%.1f%% lift)", name, results.EffectSize*100)
	default:
		return fmt.Sprintf("weak winner: %s (%.1f%% lift)", name, results.EffectSize*100)
	}
}
