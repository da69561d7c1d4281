package domain

import (
	"time"

	"github.com/google/uuid"
)

// EmailEventType enumerates the delivery/engagement events an ESP reports
// against a sent message.
type EmailEventType string

const (
	EmailDelivered EmailEventType = "delivered"
	EmailOpened    EmailEventType = "opened"
	EmailClicked   EmailEventType = "clicked"
	EmailBounced   EmailEventType = "bounced"
	EmailComplaint EmailEventType = "complaint"
)

// EmailMessage is a sent email keyed by the provider's message id. It is the
// join point between ESP webhook events and a Person.
type EmailMessage struct {
	ID                uuid.UUID  `json:"id" db:"id"`
	ProviderMessageID string     `json:"provider_message_id" db:"provider_message_id"`
	PersonID          *uuid.UUID `json:"person_id,omitempty" db:"person_id"`
	Email             string     `json:"email" db:"email"`
	Subject           string     `json:"subject,omitempty" db:"subject"`
	CampaignName      string     `json:"campaign_name,omitempty" db:"campaign_name"`
	SentAt            time.Time  `json:"sent_at" db:"sent_at"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
}

// EmailEvent is an immutable log entry of a delivery/engagement event against
// an EmailMessage. Entries are write-once; opens and clicks increment the
// derived email-engagement features when the message's person is known.
type EmailEvent struct {
	ID                uuid.UUID      `json:"id" db:"id"`
	ProviderMessageID string         `json:"provider_message_id" db:"provider_message_id"`
	Type              EmailEventType `json:"type" db:"event_type"`
	URL               string         `json:"url,omitempty" db:"url"`
	UserAgent         string         `json:"user_agent,omitempty" db:"user_agent"`
	IPAddress         string         `json:"ip_address,omitempty" db:"ip_address"`
	OccurredAt        time.Time      `json:"occurred_at" db:"occurred_at"`
	CreatedAt         time.Time      `json:"created_at" db:"created_at"`
}
