package models

import "time"

type ActionType string

const (
	ActionContentSwap ActionType = "content-swap"
	ActionStyleChange ActionType = "style-change"
	ActionShow        ActionType = "show"
	ActionHide        ActionType = "hide"
	ActionRedirect    ActionType = "redirect"
	ActionPopup       ActionType = "popup"
)

// Action is one personalization mutation the caller should apply. Source
// records which engine proposed it.
type Action struct {
	Type   ActionType
	Target string
	Value  string
	Delay  time.Duration
	Source string
	Reason string
}

type ConditionType string

const (
	ConditionSegment  ConditionType = "segment"
	ConditionBehavior ConditionType = "behavior"
	ConditionTime     ConditionType = "time"
	ConditionDevice   ConditionType = "device"
	ConditionLocation ConditionType = "location"
	ConditionReferrer ConditionType = "referrer"
)

type RuleCondition struct {
	Type     ConditionType
	Operator CriteriaOperator
	Value    string
}

// PersonalizationRule pairs an ordered condition list with an ordered action
// list. Rules are evaluated per request in priority order and retired by
// disabling, never deleted.
type PersonalizationRule struct {
	ID          string
	Name        string
	Priority    int
	Conditions  []RuleCondition
	Actions     []Action
	Enabled     bool
	Matches     int64
	Conversions int64
	CreatedAt   time.Time
}

// EmotionalState is a valence/arousal/dominance estimate of a user's momentary
// disposition. Recomputed per analysis call; only the latest value per user is
// retained.
type EmotionalState struct {
	Valence    float64 // [-1, 1]
	Arousal    float64 // [0, 1]
	Dominance  float64 // [0, 1]
	Confidence float64 // [0, 1]
	Triggers   []string
}

type TargetEmotion string

const (
	EmotionExcitement TargetEmotion = "excitement"
	EmotionTrust      TargetEmotion = "trust"
	EmotionUrgency    TargetEmotion = "urgency"
	EmotionJoy        TargetEmotion = "joy"
	EmotionConfidence TargetEmotion = "confidence"
)

// PredictionFactor is one weighted input to the conversion probability.
type PredictionFactor struct {
	Name   string
	Impact float64 // roughly [-1, 1]
	Weight float64
}

type ConversionPrediction struct {
	UserID          string
	SessionID       string
	Probability     float64 // (0, 1)
	Confidence      float64 // [0, 1]
	Factors         []PredictionFactor
	Recommendations []string
	Interventions   []Action
}

// OptimizationResult is the composed per-user decision returned by the
// orchestrator.
type OptimizationResult struct {
	UserID           string
	SegmentIDs       []string
	Personalizations []Action
	Prediction       *ConversionPrediction
	EmotionalState   *EmotionalState
	TargetEmotion    TargetEmotion
	Variants         map[string]string // experimentID -> variantID
	GeneratedAt      time.Time
}
