package models

import "time"

type ExperimentStatus string

const (
	StatusDraft     ExperimentStatus = "draft"
	StatusRunning   ExperimentStatus = "running"
	StatusPaused    ExperimentStatus = "paused"
	StatusCompleted ExperimentStatus = "completed"
	StatusArchived  ExperimentStatus = "archived"
)

// Terminal reports whether the status permits no further transitions.
func (s ExperimentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusArchived
}

// CanTransitionTo encodes the lifecycle
// draft -> running <-> paused -> completed|archived.
func (s ExperimentStatus) CanTransitionTo(next ExperimentStatus) bool {
	if s.Terminal() {
		return false
	}
	switch s {
	case StatusDraft:
		return next == StatusRunning || next == StatusArchived
	case StatusRunning:
		return next == StatusPaused || next == StatusCompleted || next == StatusArchived
	case StatusPaused:
		return next == StatusRunning || next == StatusCompleted || next == StatusArchived
	}
	return false
}

type ExperimentType string

const (
	ExperimentSimple          ExperimentType = "simple"
	ExperimentMultivariate    ExperimentType = "multivariate"
	ExperimentPersonalization ExperimentType = "personalization"
	ExperimentAdaptive        ExperimentType = "adaptive"
)

type Experiment struct {
	ID               string
	Name             string
	Status           ExperimentStatus
	Type             ExperimentType
	Variants         []Variant
	PrimaryMetric    string
	SecondaryMetrics []string
	Config           ExperimentConfig
	Results          *ExperimentResults
	CreatedAt        time.Time
	StartedAt        *time.Time
	CompletedAt      *time.Time
}

type ExperimentConfig struct {
	Duration          time.Duration
	MinSampleSize     int
	ConfidenceLevel   float64 // e.g. 0.95
	TrafficAllocation float64 // percent of users admitted, 0-100
	SegmentRules      []string
}

type Variant struct {
	ID      string
	Name    string
	Weight  float64 // traffic share, all weights sum to 100
	Changes []VariantChange
}

// VariantChange is one UI mutation applied when the variant is served.
type VariantChange struct {
	Kind     string // "content", "style", "visibility", "redirect", "popup"
	Target   string // CSS selector or URL
	Value    string
	Position int
}

// VariantStats holds the aggregated counters for one variant. Counters are
// monotonically non-decreasing until an experiment reset.
type VariantStats struct {
	VariantID          string
	Impressions        int64
	Conversions        int64
	Revenue            float64
	ConversionRate     float64
	RevenuePerVisitor  float64
	BounceRate         float64
	AvgSessionDuration float64
}

// Assignment pins a user to a variant for the lifetime of an experiment.
type Assignment struct {
	UserID       string
	ExperimentID string
	VariantID    string
	AssignedAt   time.Time
}

type ExperimentResults struct {
	ExperimentID    string
	WinnerVariantID string
	PValue          float64
	Significant     bool
	EffectSize      float64
	Recommendation  string
	VariantStats    []VariantStats
	Intervals       []ConfidenceInterval
	EvaluatedAt     time.Time
}

// ConfidenceInterval is a Wilson score interval on a variant's conversion rate.
type ConfidenceInterval struct {
	VariantID string
	Lower     float64
	Upper     float64
}
