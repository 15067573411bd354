package segment

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/uplift-labs/uplift/internal/models"
	"github.com/uplift-labs/uplift/internal/store"
)

// matchThreshold is the fraction of the maximum criterion weight a user has
// to score for a segment to apply.
const matchThreshold = 0.6

// Engine classifies users into segments and can synthesize new segments from
// observed behavior patterns.
type Engine struct {
	store store.Store
	log   *logrus.Logger
	now   func() time.Time
}

func New(st store.Store, log *logrus.Logger) *Engine {
	return &Engine{store: st, log: log, now: time.Now}
}

// Classify returns the ids of every known segment the user matches. A
// malformed or missing demographic payload degrades gracefully: the affected
// predicates score zero instead of failing the classification.
func (e *Engine) Classify(ctx context.Context, userID string, behaviors []models.BehaviorEvent, demographics models.Demographics) ([]string, error) {
	segments, err := e.store.ListSegments(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list segments")
	}

	profile := buildProfile(behaviors)
	var matched []string
	for _, seg := range segments {
		if len(seg.Criteria) == 0 {
			continue
		}
		var achieved, max float64
		for _, c := range seg.Criteria {
			weight := c.Weight
			if weight == 0 {
				weight = 1
			}
			max += weight
			if criterionMatches(c, profile, demographics) {
				achieved += weight
			}
		}
		if max > 0 && achieved/max >= matchThreshold {
			matched = append(matched, seg.ID)
		}
	}
	return matched, nil
}

// behaviorProfile is the flattened view of a behavior stream that criteria
// evaluate against.
type behaviorProfile struct {
	eventCount      int
	searchCount     int
	formCount       int
	filterCount     int
	pageViews       int
	sessionDuration time.Duration
	deviceClass     string
	browser         string
	interests       []string
}

func buildProfile(behaviors []models.BehaviorEvent) behaviorProfile {
	p := behaviorProfile{eventCount: len(behaviors)}
	devices := map[string]int{}
	browsers := map[string]int{}

	for _, b := range behaviors {
		p.sessionDuration += b.Duration
		switch b.Type {
		case models.BehaviorSearch:
			p.searchCount++
			p.interests = append(p.interests, interestTokens(b.Value)...)
		case models.BehaviorForm:
			p.formCount++
		case models.BehaviorFilter:
			p.filterCount++
		case models.BehaviorPageView:
			p.pageViews++
		}
		if b.Context.DeviceClass != "" {
			devices[b.Context.DeviceClass]++
		}
		if b.Context.Browser != "" {
			browsers[b.Context.Browser]++
		}
	}
	p.deviceClass = mostCommon(devices)
	p.browser = mostCommon(browsers)
	return p
}

func mostCommon(counts map[string]int) string {
	best, bestCount := "", 0
	for k, n := range counts {
		if n > bestCount || (n == bestCount && k < best) {
			best, bestCount = k, n
		}
	}
	return best
}

// interestTokens extracts coarse interest keywords from a search query.
func interestTokens(query string) []string {
	var out []string
	for _, tok := range strings.Fields(strings.ToLower(query)) {
		if len(tok) > 3 {
			out = append(out, tok)
		}
	}
	return out
}

func criterionMatches(c models.Criterion, profile behaviorProfile, demo models.Demographics) bool {
	switch c.Group {
	case models.CriteriaDemographic:
		return compareString(demographicField(demo, c.Field), c)
	case models.CriteriaTechnographic:
		switch c.Field {
		case "device_class":
			return compareString(profile.deviceClass, c)
		case "browser":
			return compareString(profile.browser, c)
		}
	case models.CriteriaBehavioral:
		switch c.Field {
		case "event_count":
			return compareNumber(float64(profile.eventCount), c)
		case "search_count":
			return compareNumber(float64(profile.searchCount), c)
		case "form_interactions":
			return compareNumber(float64(profile.formCount), c)
		case "filter_count":
			return compareNumber(float64(profile.filterCount), c)
		case "page_views":
			return compareNumber(float64(profile.pageViews), c)
		case "session_duration_seconds":
			return compareNumber(profile.sessionDuration.Seconds(), c)
		}
	case models.CriteriaPsychographic:
		if c.Field == "interest" {
			for _, interest := range profile.interests {
				if compareString(interest, c) {
					return true
				}
			}
		}
	}
	// Unknown group or field scores nothing.
	return false
}

func demographicField(demo models.Demographics, field string) string {
	switch field {
	case "age_range":
		return demo.AgeRange
	case "gender":
		return demo.Gender
	case "location":
		return demo.Location
	case "language":
		return demo.Language
	case "income":
		return demo.Income
	}
	return ""
}

func compareString(got string, c models.Criterion) bool {
	if got == "" {
		return false
	}
	got = strings.ToLower(got)
	switch c.Operator {
	case models.OpEquals:
		return got == strings.ToLower(c.Value)
	case models.OpContains:
		return strings.Contains(got, strings.ToLower(c.Value))
	case models.OpIn:
		for _, v := range c.Values {
			if got == strings.ToLower(v) {
				return true
			}
		}
	}
	return false
}

func compareNumber(got float64, c models.Criterion) bool {
	want, err := strconv.ParseFloat(c.Value, 64)
	if err != nil {
		return false
	}
	switch c.Operator {
	case models.OpEquals:
		return got == want
	case models.OpGreaterThan:
		return got > want
	case models.OpLessThan:
		return got < want
	}
	return false
}

// Register stores a segment definition for future classification.
func (e *Engine) Register(ctx context.Context, seg *models.UserSegment) error {
	if seg.ID == "" {
		seg.ID = uuid.NewString()
	}
	if seg.CreatedAt.IsZero() {
		seg.CreatedAt = e.now()
	}
	seg.UpdatedAt = e.now()
	return errors.Wrap(e.store.SaveSegment(ctx, seg), "failed to save segment")
}
