package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/uplift-labs/uplift/internal/models"
)

// MemoryStore is an in-memory Store used for tests and as a default when no
// database is configured. All methods are safe for concurrent use.
type MemoryStore struct {
	mu          sync.RWMutex
	experiments map[string]*models.Experiment
	assignments map[string]models.Assignment
	counters    map[string]map[string]*variantCounters
	events      []models.ConversionEvent
	segments    map[string]*models.UserSegment
	rules       map[string]*models.PersonalizationRule
}

type variantCounters struct {
	impressions int64
	conversions int64
	revenue     float64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		experiments: make(map[string]*models.Experiment),
		assignments: make(map[string]models.Assignment),
		counters:    make(map[string]map[string]*variantCounters),
		segments:    make(map[string]*models.UserSegment),
		rules:       make(map[string]*models.PersonalizationRule),
	}
}

func assignmentKey(userID, experimentID string) string {
	return userID + "|" + experimentID
}

func (s *MemoryStore) CreateExperiment(ctx context.Context, exp *models.Experiment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *exp
	s.experiments[exp.ID] = &cp
	return nil
}

func (s *MemoryStore) GetExperiment(ctx context.Context, id string) (*models.Experiment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exp, ok := s.experiments[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *exp
	return &cp, nil
}

func (s *MemoryStore) ListExperiments(ctx context.Context) ([]*models.Experiment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Experiment, 0, len(s.experiments))
	for _, exp := range s.experiments {
		cp := *exp
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) UpdateExperimentStatus(ctx context.Context, id string, status models.ExperimentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.experiments[id]
	if !ok {
		return ErrNotFound
	}
	exp.Status = status
	now := time.Now()
	if status == models.StatusRunning && exp.StartedAt == nil {
		exp.StartedAt = &now
	}
	if status.Terminal() && exp.CompletedAt == nil {
		exp.CompletedAt = &now
	}
	return nil
}

func (s *MemoryStore) SaveResults(ctx context.Context, id string, results *models.ExperimentResults) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.experiments[id]
	if !ok {
		return ErrNotFound
	}
	exp.Results = results
	return nil
}

func (s *MemoryStore) PutAssignment(ctx context.Context, a models.Assignment) (models.Assignment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := assignmentKey(a.UserID, a.ExperimentID)
	if existing, ok := s.assignments[key]; ok {
		return existing, false, nil
	}
	s.assignments[key] = a
	return a, true, nil
}

func (s *MemoryStore) GetAssignment(ctx context.Context, userID, experimentID string) (*models.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assignments[assignmentKey(userID, experimentID)]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (s *MemoryStore) AppendConversionEvent(ctx context.Context, ev models.ConversionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *MemoryStore) ListConversionEvents(ctx context.Context, experimentID string) ([]models.ConversionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ConversionEvent
	for _, ev := range s.events {
		if experimentID == "" || ev.ExperimentID == experimentID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *MemoryStore) RecordImpression(ctx context.Context, experimentID, variantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.countersFor(experimentID, variantID).impressions++
	return nil
}

func (s *MemoryStore) RecordConversion(ctx context.Context, experimentID, variantID string, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.countersFor(experimentID, variantID)
	c.conversions++
	c.revenue += value
	return nil
}

// countersFor must be called with the write lock held.
func (s *MemoryStore) countersFor(experimentID, variantID string) *variantCounters {
	byVariant, ok := s.counters[experimentID]
	if !ok {
		byVariant = make(map[string]*variantCounters)
		s.counters[experimentID] = byVariant
	}
	c, ok := byVariant[variantID]
	if !ok {
		c = &variantCounters{}
		byVariant[variantID] = c
	}
	return c
}

// ReadAggregates returns one VariantStats row per declared variant, in
// declaration order, with derived rates recomputed from the raw counters.
func (s *MemoryStore) ReadAggregates(ctx context.Context, experimentID string) ([]models.VariantStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exp, ok := s.experiments[experimentID]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]models.VariantStats, 0, len(exp.Variants))
	for _, v := range exp.Variants {
		stats := models.VariantStats{VariantID: v.ID}
		if c, ok := s.counters[experimentID][v.ID]; ok {
			stats.Impressions = c.impressions
			stats.Conversions = c.conversions
			stats.Revenue = c.revenue
			if c.impressions > 0 {
				stats.ConversionRate = float64(c.conversions) / float64(c.impressions)
				stats.RevenuePerVisitor = c.revenue / float64(c.impressions)
			}
		}
		out = append(out, stats)
	}
	return out, nil
}

func (s *MemoryStore) SaveSegment(ctx context.Context, seg *models.UserSegment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *seg
	s.segments[seg.ID] = &cp
	return nil
}

func (s *MemoryStore) ListSegments(ctx context.Context) ([]*models.UserSegment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.UserSegment, 0, len(s.segments))
	for _, seg := range s.segments {
		cp := *seg
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) SaveRule(ctx context.Context, rule *models.PersonalizationRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rule
	s.rules[rule.ID] = &cp
	return nil
}

func (s *MemoryStore) ListRules(ctx context.Context) ([]*models.PersonalizationRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.PersonalizationRule, 0, len(s.rules))
	for _, rule := range s.rules {
		cp := *rule
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) DisableRule(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rule, ok := s.rules[id]
	if !ok {
		return ErrNotFound
	}
	rule.Enabled = false
	return nil
}

func (s *MemoryStore) Close() error { return nil }
