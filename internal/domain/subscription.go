package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus enumerates the payment processor's subscription states.
type SubscriptionStatus string

const (
	SubscriptionTrialing SubscriptionStatus = "trialing"
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

// Subscription mirrors a payment-processor subscription for a Person. Rows
// are maintained from payment-channel events; the payment processor remains
// the source of truth.
type Subscription struct {
	ID                 uuid.UUID          `json:"id" db:"id"`
	PersonID           uuid.UUID          `json:"person_id" db:"person_id"`
	ExternalID         string             `json:"external_id" db:"external_id"`
	Status             SubscriptionStatus `json:"status" db:"status"`
	PlanName           string             `json:"plan_name" db:"plan_name"`
	MRRCents           int64              `json:"mrr_cents" db:"mrr_cents"`
	CurrentPeriodEndAt *time.Time         `json:"current_period_end_at,omitempty" db:"current_period_end_at"`
	CreatedAt          time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at" db:"updated_at"`
}
