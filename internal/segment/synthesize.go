package segment

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"

	"github.com/uplift-labs/uplift/internal/models"
)

// highIntentTypes are the event kinds that signal purchase intent; segments
// synthesized from a stream containing them carry matching behavioral
// predicates.
var highIntentTypes = map[models.BehaviorType]string{
	models.BehaviorForm:   "form_interactions",
	models.BehaviorSearch: "search_count",
	models.BehaviorFilter: "filter_count",
}

// Synthesize mines a behavior stream for a reusable segment definition:
// the dominant adjacent event pair, high-intent event types, the most common
// device class and browser family, interest tokens from search queries and
// the average session duration. The new segment is registered so subsequent
// Classify calls can match it.
func (e *Engine) Synthesize(ctx context.Context, behaviors []models.BehaviorEvent) (*models.UserSegment, error) {
	if len(behaviors) == 0 {
		return nil, errors.New("cannot synthesize a segment from an empty behavior stream")
	}

	profile := buildProfile(behaviors)
	pattern := dominantPair(behaviors)

	seg := &models.UserSegment{
		Name:        fmt.Sprintf("discovered: %s", pattern),
		Synthesized: true,
	}

	if pattern != "" {
		seg.Criteria = append(seg.Criteria, models.Criterion{
			Group:    models.CriteriaBehavioral,
			Field:    "event_count",
			Operator: models.OpGreaterThan,
			Value:    strconv.Itoa(len(behaviors) / 2),
			Weight:   1,
		})
	}

	for _, b := range behaviors {
		if field, ok := highIntentTypes[b.Type]; ok {
			seg.Criteria = appendUniqueCriterion(seg.Criteria, models.Criterion{
				Group:    models.CriteriaBehavioral,
				Field:    field,
				Operator: models.OpGreaterThan,
				Value:    "0",
				Weight:   2,
			})
		}
	}

	if profile.deviceClass != "" {
		seg.Criteria = append(seg.Criteria, models.Criterion{
			Group:    models.CriteriaTechnographic,
			Field:    "device_class",
			Operator: models.OpEquals,
			Value:    profile.deviceClass,
			Weight:   1,
		})
	}
	if profile.browser != "" {
		seg.Criteria = append(seg.Criteria, models.Criterion{
			Group:    models.CriteriaTechnographic,
			Field:    "browser",
			Operator: models.OpEquals,
			Value:    profile.browser,
			Weight:   1,
		})
	}

	for _, interest := range topInterests(profile.interests, 3) {
		seg.Criteria = append(seg.Criteria, models.Criterion{
			Group:    models.CriteriaPsychographic,
			Field:    "interest",
			Operator: models.OpContains,
			Value:    interest,
			Weight:   1,
		})
	}

	if len(behaviors) > 0 && profile.sessionDuration > 0 {
		avg := profile.sessionDuration.Seconds() / float64(len(behaviors))
		seg.Criteria = append(seg.Criteria, models.Criterion{
			Group:    models.CriteriaBehavioral,
			Field:    "session_duration_seconds",
			Operator: models.OpGreaterThan,
			Value:    strconv.FormatFloat(avg, 'f', 1, 64),
			Weight:   1,
		})
	}

	if err := e.Register(ctx, seg); err != nil {
		return nil, err
	}
	e.log.WithFields(logrus.Fields{
		"segment_id": seg.ID,
		"criteria":   len(seg.Criteria),
	}).Info("synthesized segment")
	return seg, nil
}

// dominantPair returns the most frequent adjacent behavior-type pair, e.g.
// "search->click".
func dominantPair(behaviors []models.BehaviorEvent) string {
	if len(behaviors) < 2 {
		return string(behaviors[0].Type)
	}
	counts := map[string]int{}
	for i := 1; i < len(behaviors); i++ {
		pair := string(behaviors[i-1].Type) + "->" + string(behaviors[i].Type)
		counts[pair]++
	}
	return mostCommon(counts)
}

func appendUniqueCriterion(criteria []models.Criterion, c models.Criterion) []models.Criterion {
	for _, existing := range criteria {
		if existing.Group == c.Group && existing.Field == c.Field {
			return criteria
		}
	}
	return append(criteria, c)
}

func topInterests(interests []string, n int) []string {
	counts := map[string]int{}
	for _, interest := range interests {
		counts[interest]++
	}
	var out []string
	for len(out) < n && len(counts) > 0 {
		best := mostCommon(counts)
		if best == "" {
			break
		}
		out = append(out, best)
		delete(counts, best)
	}
	return out
}
