package experiment

import (
	"context"
	"math"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/uplift-labs/uplift/internal/models"
	"github.com/uplift-labs/uplift/internal/store"
	"github.com/uplift-labs/uplift/internal/telemetry"
)

const (
	defaultConfidenceLevel = 0.95
	defaultMinSampleSize   = 100
)

// Engine owns experiment definitions, lifecycle, deterministic bucketing,
// conversion aggregation and significance evaluation.
type Engine struct {
	store store.Store
	sink  telemetry.Sink
	log   *logrus.Logger
	now   func() time.Time
}

func New(st store.Store, sink telemetry.Sink, log *logrus.Logger) *Engine {
	if sink == nil {
		sink = telemetry.NopSink{}
	}
	return &Engine{
		store: st,
		sink:  sink,
		log:   log,
		now:   time.Now,
	}
}

// Create validates the definition and persists it in draft state. Variant
// weights must sum to 100 and a primary metric is required.
func (e *Engine) Create(ctx context.Context, exp *models.Experiment) (string, error) {
	if len(exp.Variants) < 2 {
		return "", &ConfigError{Reason: "need at least 2 variants"}
	}
	if exp.PrimaryMetric == "" {
		return "", &ConfigError{Reason: "missing primary metric"}
	}
	total := 0.0
	for _, v := range exp.Variants {
		total += v.Weight
	}
	if math.Abs(total-100) > 1e-9 {
		return "", &ConfigError{Reason: "variant weights must sum to 100"}
	}

	if exp.ID == "" {
		exp.ID = uuid.NewString()
	}
	for i := range exp.Variants {
		if exp.Variants[i].ID == "" {
			exp.Variants[i].ID = uuid.NewString()
		}
	}
	if exp.Type == "" {
		exp.Type = models.ExperimentSimple
	}
	if exp.Config.ConfidenceLevel == 0 {
		exp.Config.ConfidenceLevel = defaultConfidenceLevel
	}
	if exp.Config.MinSampleSize == 0 {
		exp.Config.MinSampleSize = defaultMinSampleSize
	}
	if exp.Config.TrafficAllocation == 0 {
		exp.Config.TrafficAllocation = 100
	}
	exp.Status = models.StatusDraft
	exp.CreatedAt = e.now()

	if err := e.store.CreateExperiment(ctx, exp); err != nil {
		return "", errors.Wrap(err, "failed to persist experiment")
	}
	return exp.ID, nil
}

func (e *Engine) Start(ctx context.Context, id string) error {
	exp, err := e.transition(ctx, id, models.StatusRunning)
	if err != nil {
		return err
	}
	e.sink.ExperimentStarted(exp.ID, exp.Name)
	return nil
}

func (e *Engine) Pause(ctx context.Context, id string) error {
	_, err := e.transition(ctx, id, models.StatusPaused)
	return err
}

func (e *Engine) Complete(ctx context.Context, id string) error {
	_, err := e.transition(ctx, id, models.StatusCompleted)
	return err
}

func (e *Engine) Archive(ctx context.Context, id string) error {
	_, err := e.transition(ctx, id, models.StatusArchived)
	return err
}

func (e *Engine) transition(ctx context.Context, id string, next models.ExperimentStatus) (*models.Experiment, error) {
	exp, err := e.store.GetExperiment(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exp.Status.CanTransitionTo(next) {
		return nil, &StateError{From: string(exp.Status), To: string(next)}
	}
	if err := e.store.UpdateExperimentStatus(ctx, id, next); err != nil {
		return nil, errors.Wrap(err, "failed to update status")
	}
	exp.Status = next
	return exp, nil
}

// GetVariant returns the variant assigned to the user, performing the
// assignment on first lookup while the experiment is running. The second
// return value is false when the user has no variant: unknown experiment,
// experiment not running, or the user lost the traffic-allocation draw.
func (e *Engine) GetVariant(ctx context.Context, userID, experimentID string) (string, bool, error) {
	// An existing assignment is immutable for the experiment's lifetime and
	// is honored even after the experiment pauses.
	if a, err := e.store.GetAssignment(ctx, userID, experimentID); err == nil {
		return a.VariantID, true, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return "", false, errors.Wrap(err, "failed to read assignment")
	}

	exp, err := e.store.GetExperiment(ctx, experimentID)
	if errors.Is(err, store.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "failed to load experiment")
	}
	if exp.Status != models.StatusRunning || len(exp.Variants) == 0 {
		return "", false, nil
	}
	if !admitted(userID, experimentID, exp.Config.TrafficAllocation) {
		return "", false, nil
	}

	variantID := chooseVariant(exp.Variants, bucketFor(userID, experimentID))
	stored, created, err := e.store.PutAssignment(ctx, models.Assignment{
		UserID:       userID,
		ExperimentID: experimentID,
		VariantID:    variantID,
		AssignedAt:   e.now(),
	})
	if err != nil {
		return "", false, errors.Wrap(err, "failed to save assignment")
	}

	// Impressions are counted exactly once, at assignment time. A lost race
	// means another request already assigned and counted this user.
	if created {
		if err := e.store.RecordImpression(ctx, experimentID, stored.VariantID); err != nil {
			e.log.WithError(err).Warn("failed to record impression")
		}
	}
	return stored.VariantID, true, nil
}

// RecordConversion attributes the event to every non-terminal experiment the
// user is assigned to whose primary metric matches the event type, then
// re-evaluates significance for the touched experiments. Events that match no
// experiment are still appended to the conversion stream.
func (e *Engine) RecordConversion(ctx context.Context, userID string, ev models.ConversionEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = e.now()
	}
	ev.UserID = userID

	experiments, err := e.store.ListExperiments(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to list experiments")
	}

	var touched []*models.Experiment
	for _, exp := range experiments {
		if exp.Status.Terminal() || exp.PrimaryMetric != ev.Type {
			continue
		}
		a, err := e.store.GetAssignment(ctx, userID, exp.ID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return errors.Wrap(err, "failed to read assignment")
		}
		if err := e.store.RecordConversion(ctx, exp.ID, a.VariantID, ev.Value); err != nil {
			return errors.Wrap(err, "failed to record conversion")
		}
		if ev.ExperimentID == "" {
			ev.ExperimentID = exp.ID
			ev.VariantID = a.VariantID
		}
		touched = append(touched, exp)
		e.sink.ConversionRecorded(telemetry.ConversionInfo{
			UserID:       userID,
			EventType:    ev.Type,
			ExperimentID: exp.ID,
			VariantID:    a.VariantID,
			Value:        ev.Value,
		})
	}

	if err := e.store.AppendConversionEvent(ctx, ev); err != nil {
		// The counters already moved; losing the raw event is logged, not
		// propagated, so a degraded store cannot fail the caller.
		e.log.WithError(err).Warn("failed to append conversion event")
	}

	for _, exp := range touched {
		if _, err := e.Evaluate(ctx, exp.ID); err != nil {
			e.log.WithError(err).WithField("experiment_id", exp.ID).Warn("significance evaluation failed")
		}
	}
	return nil
}

// GetResults returns stored results for completed experiments and a fresh
// evaluation otherwise.
func (e *Engine) GetResults(ctx context.Context, id string) (*models.ExperimentResults, error) {
	exp, err := e.store.GetExperiment(ctx, id)
	if err != nil {
		return nil, err
	}
	if exp.Status.Terminal() && exp.Results != nil {
		return exp.Results, nil
	}
	return e.Evaluate(ctx, id)
}

// Sweep re-evaluates every running experiment. It is idempotent; running it
// twice, or from two instances, converges on the same state.
func (e *Engine) Sweep(ctx context.Context) error {
	experiments, err := e.store.ListExperiments(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to list experiments")
	}
	for _, exp := range experiments {
		if exp.Status != models.StatusRunning {
			continue
		}
		if _, err := e.Evaluate(ctx, exp.ID); err != nil {
			e.log.WithError(err).WithField("experiment_id", exp.ID).Warn("sweep evaluation failed")
		}
	}
	return nil
}

// RunSweeper runs Sweep on a fixed interval until the context is canceled.
func (e *Engine) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.Sweep(ctx); err != nil {
				e.log.WithError(err).Warn("sweep failed")
			}
		}
	}
}
