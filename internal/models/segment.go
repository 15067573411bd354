package models

import "time"

// CriteriaGroup names the predicate families a segment can match on.
type CriteriaGroup string

const (
	CriteriaDemographic   CriteriaGroup = "demographic"
	CriteriaPsychographic CriteriaGroup = "psychographic"
	CriteriaBehavioral    CriteriaGroup = "behavioral"
	CriteriaTechnographic CriteriaGroup = "technographic"
)

type CriteriaOperator string

const (
	OpEquals      CriteriaOperator = "equals"
	OpContains    CriteriaOperator = "contains"
	OpGreaterThan CriteriaOperator = "greater_than"
	OpLessThan    CriteriaOperator = "less_than"
	OpIn          CriteriaOperator = "in"
)

// Criterion is one predicate inside a segment definition.
type Criterion struct {
	Group    CriteriaGroup
	Field    string
	Operator CriteriaOperator
	Value    string
	Values   []string // for OpIn
	Weight   float64
}

// UserSegment is a named group of users matching criteria. Aggregate stats are
// recomputed as the population changes; a segment referenced by an active
// personalization rule is never deleted.
type UserSegment struct {
	ID             string
	Name           string
	Criteria       []Criterion
	Size           int64
	ConversionRate float64
	AvgOrderValue  float64
	LifetimeValue  float64
	Synthesized    bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Demographics is the caller-supplied profile used by segment classification.
// Unknown fields stay zero and simply score nothing.
type Demographics struct {
	AgeRange string
	Gender   string
	Location string
	Language string
	Income   string
}
