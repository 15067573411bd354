package store

import (
	"context"
	"errors"

	"github.com/uplift-labs/uplift/internal/models"
)

var ErrNotFound = errors.New("not found")

// Store is the persistence collaborator for the engine. Implementations must
// make PutAssignment atomic per (user, experiment) and counter increments
// atomic per variant; everything else is plain CRUD.
type Store interface {
	// Experiment operations
	CreateExperiment(ctx context.Context, exp *models.Experiment) error
	GetExperiment(ctx context.Context, id string) (*models.Experiment, error)
	ListExperiments(ctx context.Context) ([]*models.Experiment, error)
	UpdateExperimentStatus(ctx context.Context, id string, status models.ExperimentStatus) error
	SaveResults(ctx context.Context, id string, results *models.ExperimentResults) error

	// Assignment operations. PutAssignment has first-write-wins semantics:
	// it returns the stored assignment plus whether this call created it.
	// When a concurrent request already assigned the pair, the existing row
	// comes back with created = false.
	PutAssignment(ctx context.Context, a models.Assignment) (models.Assignment, bool, error)
	GetAssignment(ctx context.Context, userID, experimentID string) (*models.Assignment, error)

	// Conversion stream and per-variant aggregates
	AppendConversionEvent(ctx context.Context, ev models.ConversionEvent) error
	ListConversionEvents(ctx context.Context, experimentID string) ([]models.ConversionEvent, error)
	RecordImpression(ctx context.Context, experimentID, variantID string) error
	RecordConversion(ctx context.Context, experimentID, variantID string, value float64) error
	ReadAggregates(ctx context.Context, experimentID string) ([]models.VariantStats, error)

	// Segment operations
	SaveSegment(ctx context.Context, seg *models.UserSegment) error
	ListSegments(ctx context.Context) ([]*models.UserSegment, error)

	// Personalization rules
	SaveRule(ctx context.Context, rule *models.PersonalizationRule) error
	ListRules(ctx context.Context) ([]*models.PersonalizationRule, error)
	DisableRule(ctx context.Context, id string) error

	// Lifecycle
	Close() error
}
