package affect

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/uplift-labs/uplift/internal/models"
)

const (
	// recencyWindow is how far back an event still counts as "fresh" for the
	// confidence computation.
	recencyWindow = 5 * time.Minute

	baselineConfidence = 0.1
	recentStateCap     = 4096
)

// delta is one event's contribution to the affect vector.
type delta struct {
	valence   float64
	arousal   float64
	dominance float64
}

// typeDeltas encodes the per-event-type disposition shifts: a click is mildly
// positive and engaging, a long scroll positive and calming, a form
// interaction effortful, a search active and in-control.
var typeDeltas = map[models.BehaviorType]delta{
	models.BehaviorClick:    {valence: 0.30, arousal: 0.20, dominance: 0.10},
	models.BehaviorScroll:   {valence: 0.15, arousal: -0.10},
	models.BehaviorHover:    {arousal: 0.10},
	models.BehaviorForm:     {valence: -0.20, arousal: 0.25, dominance: -0.10},
	models.BehaviorPageView: {valence: 0.10},
	models.BehaviorSearch:   {valence: 0.05, arousal: 0.35, dominance: 0.30},
	models.BehaviorFilter:   {arousal: 0.15, dominance: 0.25},
}

// Estimator converts behavior streams into affect vectors. It keeps only the
// most recent state per user, in a bounded cache.
type Estimator struct {
	recent *lru.Cache[string, models.EmotionalState]
	now    func() time.Time
}

func NewEstimator() *Estimator {
	cache, _ := lru.New[string, models.EmotionalState](recentStateCap)
	return &Estimator{recent: cache, now: time.Now}
}

// Estimate computes the user's current emotional state from the behavior
// stream. With no behaviors the state is neutral at baseline confidence.
func (e *Estimator) Estimate(userID string, behaviors []models.BehaviorEvent) models.EmotionalState {
	state := models.EmotionalState{
		Arousal:    0.5,
		Dominance:  0.5,
		Confidence: baselineConfidence,
	}
	if len(behaviors) == 0 {
		e.recent.Add(userID, state)
		return state
	}

	var sum delta
	types := map[models.BehaviorType]bool{}
	recentCount := 0
	cutoff := e.now().Add(-recencyWindow)

	for _, b := range behaviors {
		d := typeDeltas[b.Type]
		if b.Type == models.BehaviorScroll && b.Duration > 3*time.Second {
			// A long scroll reads as settled, engaged browsing.
			d.valence += 0.10
			d.arousal -= 0.10
		}
		sum.valence += d.valence
		sum.arousal += d.arousal
		sum.dominance += d.dominance
		types[b.Type] = true
		if b.Timestamp.After(cutoff) {
			recentCount++
		}
	}

	n := float64(len(behaviors))
	state.Valence = clamp(sum.valence/n, -1, 1)
	state.Arousal = clamp(0.5+sum.arousal/n, 0, 1)
	state.Dominance = clamp(0.5+sum.dominance/n, 0, 1)

	// Confidence grows with volume, with the diversity of observed event
	// types, and with recency.
	volume := min(0.4, n*0.02)
	diversity := float64(len(types)) / float64(len(typeDeltas)) * 0.3
	recency := float64(recentCount) / n * 0.2
	state.Confidence = clamp(baselineConfidence+volume+diversity+recency, 0, 1)

	state.Triggers = triggers(behaviors)

	e.recent.Add(userID, state)
	return state
}

// Last returns the most recently estimated state for the user, if any.
func (e *Estimator) Last(userID string) (models.EmotionalState, bool) {
	return e.recent.Get(userID)
}

func triggers(behaviors []models.BehaviorEvent) []string {
	counts := map[models.BehaviorType]int{}
	for _, b := range behaviors {
		counts[b.Type]++
	}
	var out []string
	if counts[models.BehaviorSearch] >= 2 {
		out = append(out, "repeated searching suggests the user has a goal in mind")
	}
	if counts[models.BehaviorForm] >= 3 {
		out = append(out, "heavy form interaction suggests friction or hesitation")
	}
	if counts[models.BehaviorScroll] > counts[models.BehaviorClick]*3 && counts[models.BehaviorScroll] > 3 {
		out = append(out, "scrolling without clicking suggests unfocused browsing")
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
