package segments

import (
	"time"

	"github.com/google/uuid"
	"github.com/matchwell/growth-plane/internal/domain"
)

// Segment is a named audience definition: a criteria expression plus the
// automations to fire on membership transitions.
type Segment struct {
	ID          uuid.UUID        `json:"id" db:"id"`
	Name        string           `json:"name" db:"name"`
	Description string           `json:"description,omitempty" db:"description"`
	Active      bool             `json:"active" db:"active"`
	Criteria    Criteria         `json:"criteria" db:"criteria"`
	Automations AutomationConfig `json:"automations" db:"automations"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at" db:"updated_at"`
}

// Membership is the last known evaluated membership of a person in a
// segment.
type Membership struct {
	PersonID  uuid.UUID `json:"person_id" db:"person_id"`
	SegmentID uuid.UUID `json:"segment_id" db:"segment_id"`
	EnteredAt time.Time `json:"entered_at" db:"entered_at"`
}

// ==========================================
// CRITERIA AST
// ==========================================

// Criteria is a conjunction of independent clauses. Every present clause
// must pass (AND semantics). An empty Criteria matches everyone.
type Criteria struct {
	Features     []FeatureClause   `json:"features,omitempty"`
	Subscription *SubscriptionClause `json:"subscription,omitempty"`
	Events       []EventCountClause  `json:"events,omitempty"`
	Person       *PersonClause       `json:"person,omitempty"`
}

// FeatureField names one field of PersonFeatures a clause can reference.
type FeatureField string

const (
	FieldActiveDays        FeatureField = "active_days"
	FieldCoreActions       FeatureField = "core_actions"
	FieldPricingViews      FeatureField = "pricing_views"
	FieldEmailOpens        FeatureField = "email_opens"
	FieldEmailClicks       FeatureField = "email_clicks"
	FieldDaysSinceActive   FeatureField = "days_since_last_active"
)

// FeatureClause is a min/max/equals threshold on one features field. A
// person with no features row fails every feature clause.
type FeatureClause struct {
	Field  FeatureField `json:"field"`
	Min    *int         `json:"min,omitempty"`
	Max    *int         `json:"max,omitempty"`
	Equals *int         `json:"equals,omitempty"`
}

// SubscriptionClause matches when at least one of the person's subscriptions
// satisfies every present sub-condition. A person with zero subscriptions
// fails the clause.
type SubscriptionClause struct {
	Statuses    []domain.SubscriptionStatus `json:"statuses,omitempty"`
	Plans       []string                    `json:"plans,omitempty"`
	MinMRRCents *int64                      `json:"min_mrr_cents,omitempty"`
	MaxMRRCents *int64                      `json:"max_mrr_cents,omitempty"`
}

// EventCountClause bounds the count of a named event, optionally within a
// trailing day window (WindowDays == 0 means all time).
type EventCountClause struct {
	EventName  string `json:"event_name"`
	WindowDays int    `json:"window_days,omitempty"`
	Min        *int   `json:"min,omitempty"`
	Max        *int   `json:"max,omitempty"`
}

// PersonClause matches on person attributes.
type PersonClause struct {
	HasEmail *bool `json:"has_email,omitempty"`
	HasPhone *bool `json:"has_phone,omitempty"`
}

// ==========================================
// AUTOMATION CONFIGURATION
// ==========================================

// Direction tags a membership transition.
type Direction string

const (
	DirectionEnter Direction = "enter"
	DirectionExit  Direction = "exit"
)

// AudienceAction is what to do to an ad-platform audience member.
type AudienceAction string

const (
	AudienceAdd    AudienceAction = "add"
	AudienceRemove AudienceAction = "remove"
)

// AutomationConfig declares which integrations a segment notifies and on
// which transition. Every automation is independently best-effort.
type AutomationConfig struct {
	EmailAudience *EmailAudienceAutomation `json:"email_audience,omitempty"`
	AdAudience    *AdAudienceAutomation    `json:"ad_audience,omitempty"`
	Webhook       *WebhookAutomation       `json:"webhook,omitempty"`
}

// EmailAudienceAutomation enrolls the person into an email-marketing
// audience. It fires only when On matches the transition direction.
type EmailAudienceAutomation struct {
	On         Direction `json:"on"`
	AudienceID string    `json:"audience_id"`
}

// AdAudienceAutomation adds or removes the person's hashed identifier from
// an ad-platform custom audience when On matches the transition direction.
// Action is independent of direction: "remove on enter" is as valid as
// "remove on exit".
type AdAudienceAutomation struct {
	On         Direction      `json:"on"`
	Action     AudienceAction `json:"action"`
	AudienceID string         `json:"audience_id"`
}

// WebhookAutomation posts a signed transition payload to an operator
// configured URL. A nil On fires on both directions.
type WebhookAutomation struct {
	On      *Direction        `json:"on,omitempty"`
	URL     string            `json:"url"`
	Method  string            `json:"method,omitempty"` // POST (default) or PUT
	Headers map[string]string `json:"headers,omitempty"`
	Secret  string            `json:"secret,omitempty"` // HMAC-SHA256 signing key
}

// Transition is one detected enter/exit, reported by the transition engine.
type Transition struct {
	PersonID  uuid.UUID `json:"person_id"`
	SegmentID uuid.UUID `json:"segment_id"`
	Direction Direction `json:"direction"`
	At        time.Time `json:"at"`
}

// Stats is the dashboard summary for one segment.
type Stats struct {
	SegmentID    uuid.UUID `json:"segment_id"`
	Name         string    `json:"name"`
	MemberCount  int       `json:"member_count"`
	EvaluatedAt  time.Time `json:"evaluated_at"`
	PersonsTotal int       `json:"persons_total"`
}
