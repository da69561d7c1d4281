package automation

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/matchwell/growth-plane/internal/domain"
	"github.com/matchwell/growth-plane/internal/segments"
)

// JobKind enumerates the automation integrations.
type JobKind string

const (
	KindEmailAudience JobKind = "email_audience"
	KindAdAudience    JobKind = "ad_audience"
	KindWebhook       JobKind = "webhook"
)

// JobStatus is the queue lifecycle of one job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusRunning    JobStatus = "running"
	StatusDone       JobStatus = "done"
	StatusFailed     JobStatus = "failed"      // retryable, rescheduled
	StatusDeadLetter JobStatus = "dead_letter" // attempts exhausted
)

// Job is one durable automation work item. The payload is self-contained so
// a retry needs no re-reads of person or segment state.
type Job struct {
	ID          uuid.UUID          `json:"id" db:"id"`
	Kind        JobKind            `json:"kind" db:"kind"`
	PersonID    uuid.UUID          `json:"person_id" db:"person_id"`
	SegmentID   uuid.UUID          `json:"segment_id" db:"segment_id"`
	Direction   segments.Direction `json:"direction" db:"direction"`
	Payload     json.RawMessage    `json:"payload" db:"payload"`
	Status      JobStatus          `json:"status" db:"status"`
	Attempts    int                `json:"attempts" db:"attempts"`
	LastError   string             `json:"last_error,omitempty" db:"error_message"`
	ScheduledAt time.Time          `json:"scheduled_at" db:"scheduled_at"`
	CreatedAt   time.Time          `json:"created_at" db:"created_at"`
}

// EmailAudiencePayload is the payload for KindEmailAudience jobs.
type EmailAudiencePayload struct {
	AudienceID string `json:"audience_id"`
	Email      string `json:"email"`
	FirstName  string `json:"first_name,omitempty"`
}

// AdAudiencePayload is the payload for KindAdAudience jobs.
type AdAudiencePayload struct {
	AudienceID string                  `json:"audience_id"`
	Action     segments.AudienceAction `json:"action"`
	Email      string                  `json:"email"`
}

// WebhookPayload is the payload for KindWebhook jobs. Body is what the
// remote endpoint receives; the rest configures delivery.
type WebhookPayload struct {
	URL     string            `json:"url"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Secret  string            `json:"secret,omitempty"`
	Body    WebhookBody       `json:"body"`
}

// WebhookBody is the JSON document posted to the webhook endpoint.
type WebhookBody struct {
	PersonID    uuid.UUID          `json:"person_id"`
	Email       string             `json:"email,omitempty"`
	Phone       string             `json:"phone,omitempty"`
	Name        string             `json:"name,omitempty"`
	Traits      domain.Traits      `json:"traits"`
	SegmentID   uuid.UUID          `json:"segment_id"`
	SegmentName string             `json:"segment_name"`
	Direction   segments.Direction `json:"direction"`
	At          time.Time          `json:"at"`
}
