package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventSource enumerates the channels an event can originate from.
type EventSource string

const (
	SourceWeb     EventSource = "web"
	SourceApp     EventSource = "app"
	SourceEmail   EventSource = "email"
	SourcePayment EventSource = "payment"
	SourceBooking EventSource = "booking"
	SourceAds     EventSource = "ad"
)

// Event is an immutable, append-only fact about a person's (or anonymous
// actor's) activity. PersonID is nil when the event could not be resolved at
// ingest time; such events remain joinable later through session/device ids.
// Events are never updated after insert.
type Event struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	PersonID  *uuid.UUID      `json:"person_id,omitempty" db:"person_id"`
	Name      string          `json:"name" db:"name"`
	Source    EventSource     `json:"source" db:"source"`
	Props     EventProperties `json:"properties" db:"properties"`
	SessionID string          `json:"session_id,omitempty" db:"session_id"`
	DeviceID  string          `json:"device_id,omitempty" db:"device_id"`
	IPAddress string          `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent string          `json:"user_agent,omitempty" db:"user_agent"`
	// DedupEventID is the external event id shared with the client-side
	// pixel so the ad platform can collapse client and server events into
	// one conversion. Dedup itself is the downstream sink's responsibility.
	DedupEventID string    `json:"dedup_event_id,omitempty" db:"dedup_event_id"`
	OccurredAt   time.Time `json:"occurred_at" db:"occurred_at"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// EventProperties is the typed property payload carried by an event. Known
// fields are modeled; producer-specific leftovers go to Extra.
type EventProperties struct {
	// Attribution holds campaign parameters merged in at ingest time under
	// this reserved field.
	Attribution *Attribution      `json:"attribution,omitempty"`
	Amount      *float64          `json:"amount,omitempty"`
	Currency    string            `json:"currency,omitempty"`
	PageURL     string            `json:"page_url,omitempty"`
	MessageID   string            `json:"message_id,omitempty"`
	PlanName    string            `json:"plan_name,omitempty"`
	Status      string            `json:"status,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// Attribution carries the campaign/click parameters observed with an event.
type Attribution struct {
	Source   string `json:"source,omitempty"`
	Medium   string `json:"medium,omitempty"`
	Campaign string `json:"campaign,omitempty"`
	Content  string `json:"content,omitempty"`
	Term     string `json:"term,omitempty"`
	ClickID  string `json:"click_id,omitempty"`
	BrowserID string `json:"browser_id,omitempty"`
}
