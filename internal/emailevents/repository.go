package emailevents

import (
	"context"

	"github.com/google/uuid"

	"github.com/matchwell/growth-plane/internal/domain"
)

// Repository persists sent messages and their event log.
type Repository interface {
	// GetMessageByProviderID returns (nil, nil) when no message matches.
	GetMessageByProviderID(ctx context.Context, providerMessageID string) (*domain.EmailMessage, error)
	CreateMessage(ctx context.Context, msg *domain.EmailMessage) error
	// AttachPerson backfills the person link on a message recorded before
	// the recipient was known.
	AttachPerson(ctx context.Context, providerMessageID string, personID uuid.UUID) error
	CreateEvent(ctx context.Context, ev *domain.EmailEvent) error
	ListEventsByMessage(ctx context.Context, providerMessageID string) ([]domain.EmailEvent, error)
}
