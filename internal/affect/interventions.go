package affect

import (
	"github.com/uplift-labs/uplift/internal/models"
)

// interventionPlans maps each target emotion to a fixed, ordered list of
// personalization actions. The orchestrator picks the target; this package
// only knows how to pursue it.
var interventionPlans = map[models.TargetEmotion][]models.Action{
	models.EmotionTrust: {
		{Type: models.ActionShow, Target: "#testimonials", Source: "affect", Reason: "build trust with social validation"},
		{Type: models.ActionShow, Target: "#security-badges", Source: "affect", Reason: "reassure with security signals"},
	},
	models.EmotionUrgency: {
		{Type: models.ActionShow, Target: "#countdown-timer", Source: "affect", Reason: "make the offer time-bound"},
		{Type: models.ActionContentSwap, Target: "#stock-banner", Value: "Only a few left in stock", Source: "affect", Reason: "scarcity framing"},
	},
	models.EmotionExcitement: {
		{Type: models.ActionStyleChange, Target: ".cta-primary", Value: "pulse", Source: "affect", Reason: "draw the eye to the next step"},
		{Type: models.ActionContentSwap, Target: "#hero-copy", Value: "You're going to love this", Source: "affect", Reason: "amplify momentum"},
	},
	models.EmotionJoy: {
		{Type: models.ActionContentSwap, Target: "#greeting", Value: "Great to see you!", Source: "affect", Reason: "warm, friendly tone"},
		{Type: models.ActionShow, Target: "#community-feed", Source: "affect", Reason: "surface delightful content"},
	},
	models.EmotionConfidence: {
		{Type: models.ActionShow, Target: "#money-back-guarantee", Source: "affect", Reason: "remove perceived risk"},
		{Type: models.ActionContentSwap, Target: "#help-hint", Value: "You can change this anytime", Source: "affect", Reason: "reassure about reversibility"},
	},
}

// SelectIntervention returns the ordered action list for the target emotion.
// Unknown targets yield nothing.
func SelectIntervention(state models.EmotionalState, target models.TargetEmotion) []models.Action {
	plan, ok := interventionPlans[target]
	if !ok {
		return nil
	}
	out := make([]models.Action, len(plan))
	copy(out, plan)
	return out
}
