package models

import "time"

type BehaviorType string

const (
	BehaviorClick    BehaviorType = "click"
	BehaviorScroll   BehaviorType = "scroll"
	BehaviorHover    BehaviorType = "hover"
	BehaviorForm     BehaviorType = "form-interaction"
	BehaviorPageView BehaviorType = "page-view"
	BehaviorSearch   BehaviorType = "search"
	BehaviorFilter   BehaviorType = "filter"
)

// BehaviorEvent is one observed user interaction. Events are immutable and
// form an append-only stream scoped to a session.
type BehaviorEvent struct {
	Type      BehaviorType
	Target    string
	Timestamp time.Time
	Duration  time.Duration
	Value     string
	Context   BehaviorContext
}

type BehaviorContext struct {
	Page        string
	Viewport    string
	DeviceClass string // "mobile", "tablet", "desktop"
	Browser     string
	Referrer    string
}

// ConversionEvent is a success action attributed to a user/session. Immutable,
// append-only.
type ConversionEvent struct {
	ID           string
	Type         string
	Value        float64
	UserID       string
	SessionID    string
	Timestamp    time.Time
	Page         string
	ExperimentID string
	VariantID    string
	Attributes   map[string]string
}

// SessionData is the caller-supplied snapshot of the current session used by
// the predictor and orchestrator. Zero values mean "unknown".
type SessionData struct {
	SessionID        string
	TimeOnSite       time.Duration
	PagesViewed      int
	SearchCount      int
	FormInteractions int
	DeviceClass      string
	TrafficSource    string // "direct", "organic", "paid", "referral", "email"
	ReturningVisitor bool
	Referrer         string
	Page             string
	Country          string
}
