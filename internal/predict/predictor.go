package predict

import (
	"math"
	"time"

	"github.com/uplift-labs/uplift/internal/models"
)

const (
	// kneePoint marks the share of a factor's plausible range considered
	// "optimal": impact climbs quickly to 0.5 up to the knee, then slowly
	// toward 1 beyond it (diminishing returns).
	kneePoint = 0.65

	// sigmoidSteepness controls how sharply the weighted score maps onto a
	// probability.
	sigmoidSteepness = 4.0
)

// Plausible ranges for the numeric factors.
const (
	maxTimeOnSite  = 10 * time.Minute
	maxPagesViewed = 20
	maxSearches    = 10
	maxFormEvents  = 10
)

var factorWeights = map[string]float64{
	"time-on-site":      0.20,
	"pages-viewed":      0.15,
	"search-activity":   0.15,
	"form-engagement":   0.20,
	"device-type":       0.08,
	"traffic-source":    0.12,
	"returning-visitor": 0.10,
}

// Predictor computes a weighted-factor conversion probability with a
// confidence score, tiered recommendations and threshold interventions.
type Predictor struct{}

func New() *Predictor {
	return &Predictor{}
}

// Predict always returns a probability in (0, 1); an empty session yields the
// sigmoid midpoint since every factor defaults to neutral impact.
func (p *Predictor) Predict(userID string, session models.SessionData) *models.ConversionPrediction {
	factors := []models.PredictionFactor{
		{Name: "time-on-site", Impact: kneeNormalize(session.TimeOnSite.Seconds(), maxTimeOnSite.Seconds())},
		{Name: "pages-viewed", Impact: kneeNormalize(float64(session.PagesViewed), maxPagesViewed)},
		{Name: "search-activity", Impact: kneeNormalize(float64(session.SearchCount), maxSearches)},
		{Name: "form-engagement", Impact: kneeNormalize(float64(session.FormInteractions), maxFormEvents)},
		{Name: "device-type", Impact: deviceImpact(session.DeviceClass)},
		{Name: "traffic-source", Impact: sourceImpact(session.TrafficSource)},
		{Name: "returning-visitor", Impact: returningImpact(session.ReturningVisitor)},
	}

	var weightedSum, totalWeight, quality float64
	available := 0
	for i := range factors {
		factors[i].Weight = factorWeights[factors[i].Name]
		weightedSum += factors[i].Weight * factors[i].Impact
		totalWeight += factors[i].Weight
		if factors[i].Impact != 0 {
			available++
			quality += factors[i].Weight * math.Abs(factors[i].Impact)
		}
	}

	probability := sigmoid(weightedSum / totalWeight * sigmoidSteepness)
	confidence := clamp(0.2+float64(available)/float64(len(factors))*0.4+min(quality, 0.4), 0, 1)

	pred := &models.ConversionPrediction{
		UserID:      userID,
		SessionID:   session.SessionID,
		Probability: probability,
		Confidence:  confidence,
		Factors:     factors,
	}
	pred.Recommendations = recommendations(probability, session)
	pred.Interventions = interventions(probability, session)
	return pred
}

// kneeNormalize maps a value in [0, rangeMax] to [0, 1] with a knee at 65% of
// the range.
func kneeNormalize(value, rangeMax float64) float64 {
	if value <= 0 {
		return 0
	}
	knee := kneePoint * rangeMax
	if value <= knee {
		return 0.5 * value / knee
	}
	excess := (value - knee) / (rangeMax - knee)
	if excess > 1 {
		excess = 1
	}
	return 0.5 + 0.5*excess
}

func deviceImpact(deviceClass string) float64 {
	switch deviceClass {
	case "desktop":
		return 0.3
	case "tablet":
		return 0.1
	case "mobile":
		return -0.1
	}
	return 0
}

func sourceImpact(source string) float64 {
	switch source {
	case "email":
		return 0.5
	case "organic":
		return 0.3
	case "paid":
		return 0.2
	case "referral":
		return 0.15
	case "direct":
		return 0.1
	}
	return 0
}

func returningImpact(returning bool) float64 {
	if returning {
		return 0.5
	}
	return 0
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func recommendations(probability float64, session models.SessionData) []string {
	var out []string
	switch {
	case probability > 0.7:
		out = append(out, "high intent: offer proactive assistance and a streamlined path to checkout")
	case probability >= 0.4:
		out = append(out, "moderate intent: surface social proof and popular choices")
	default:
		out = append(out, "low intent: reduce friction and simplify the page")
	}
	if session.FormInteractions == 0 {
		out = append(out, "no form engagement yet: present an explicit incentive to start")
	}
	return out
}

func interventions(probability float64, session models.SessionData) []models.Action {
	var out []models.Action
	if probability < 0.3 {
		out = append(out, models.Action{
			Type:   models.ActionPopup,
			Target: "#discount-offer",
			Value:  "10% off if you order today",
			Source: "predictor",
			Reason: "low conversion probability",
		})
	}
	if probability > 0.6 {
		out = append(out, models.Action{
			Type:   models.ActionShow,
			Target: "#urgency-banner",
			Delay:  30 * time.Second,
			Source: "predictor",
			Reason: "high probability, nudge toward completion",
		})
	}
	if session.FormInteractions > 0 {
		out = append(out, models.Action{
			Type:   models.ActionShow,
			Target: "#live-chat-offer",
			Delay:  time.Minute,
			Source: "predictor",
			Reason: "user is engaging with forms, offer human help",
		})
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
