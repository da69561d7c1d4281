package ingest

import (
	"context"

	"github.com/matchwell/growth-plane/internal/domain"
)

// Repository is the append-only event store. No dedup happens here; the
// external dedup id rides along for downstream sinks.
type Repository interface {
	CreateEvent(ctx context.Context, ev *domain.Event) error
}

// SubscriptionStore persists subscription state driven by payment-channel
// lifecycle events.
type SubscriptionStore interface {
	// GetSubscriptionByExternalID returns (nil, nil) when absent.
	GetSubscriptionByExternalID(ctx context.Context, externalID string) (*domain.Subscription, error)
	UpsertSubscription(ctx context.Context, sub *domain.Subscription) error
}
