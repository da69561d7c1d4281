package emailevents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/matchwell/growth-plane/internal/domain"
	"github.com/matchwell/growth-plane/internal/pkg/logger"
)

// PersonResolver resolves a recipient address to a person, when one exists.
// Satisfied by identity.Service via a thin adapter in cmd wiring.
type PersonResolver interface {
	ResolvePersonByEmail(ctx context.Context, email string) (uuid.UUID, bool, error)
}

// EngagementBumper feeds opens/clicks into the derived features.
// Satisfied by features.Service.
type EngagementBumper interface {
	BumpEmailEngagement(ctx context.Context, personID uuid.UUID, typ domain.EmailEventType) error
}

// ProviderEvent is one normalized-enough webhook event from the ESP. Type is
// the provider's raw event name; the service maps it onto the internal
// event taxonomy.
type ProviderEvent struct {
	Type       string    `json:"type"`
	MessageID  string    `json:"message_id"`
	Recipient  string    `json:"recipient"`
	URL        string    `json:"url,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	IPAddress  string    `json:"ip_address,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Service records sent messages and their delivery/engagement events.
type Service struct {
	repo     Repository
	resolver PersonResolver
	bumper   EngagementBumper
}

// NewService creates the email event service. resolver and bumper may be nil
// in contexts that only record.
func NewService(repo Repository, resolver PersonResolver, bumper EngagementBumper) *Service {
	return &Service{repo: repo, resolver: resolver, bumper: bumper}
}

// RegisterMessage records an outbound send so later webhook events can be
// joined back to the person. Re-registering the same provider message id is
// a no-op.
func (s *Service) RegisterMessage(ctx context.Context, msg *domain.EmailMessage) error {
	if msg.ProviderMessageID == "" {
		return fmt.Errorf("message requires a provider message id")
	}
	existing, err := s.repo.GetMessageByProviderID(ctx, msg.ProviderMessageID)
	if err != nil {
		return fmt.Errorf("lookup message: %w", err)
	}
	if existing != nil {
		return nil
	}
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now().UTC()
	}
	return s.repo.CreateMessage(ctx, msg)
}

// HandleProviderEvent appends one webhook event to the log. Unknown message
// ids still get a message row (recipient-only) so late-arriving sends can be
// joined later. Opens and clicks bump the person's engagement features when
// the recipient resolves.
func (s *Service) HandleProviderEvent(ctx context.Context, ev ProviderEvent) error {
	typ, ok := NormalizeEventType(ev.Type)
	if !ok {
		logger.Debug("ignoring unrecognized email event type", "type", ev.Type)
		return nil
	}
	if ev.MessageID == "" {
		return fmt.Errorf("event requires a message id")
	}
	occurredAt := ev.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	msg, err := s.repo.GetMessageByProviderID(ctx, ev.MessageID)
	if err != nil {
		return fmt.Errorf("lookup message: %w", err)
	}
	if msg == nil {
		msg = &domain.EmailMessage{
			ID:                uuid.New(),
			ProviderMessageID: ev.MessageID,
			Email:             strings.ToLower(strings.TrimSpace(ev.Recipient)),
			SentAt:            occurredAt,
		}
		if err := s.repo.CreateMessage(ctx, msg); err != nil {
			return fmt.Errorf("record message: %w", err)
		}
	}

	personID, known := s.resolveMessagePerson(ctx, msg)

	if err := s.repo.CreateEvent(ctx, &domain.EmailEvent{
		ID:                uuid.New(),
		ProviderMessageID: ev.MessageID,
		Type:              typ,
		URL:               ev.URL,
		UserAgent:         ev.UserAgent,
		IPAddress:         ev.IPAddress,
		OccurredAt:        occurredAt,
	}); err != nil {
		return fmt.Errorf("record event: %w", err)
	}

	if known && s.bumper != nil && (typ == domain.EmailOpened || typ == domain.EmailClicked) {
		if err := s.bumper.BumpEmailEngagement(ctx, personID, typ); err != nil {
			logger.Error("bump email engagement", "person_id", personID, "error", err)
		}
	}
	return nil
}

// resolveMessagePerson returns the message's person, resolving by recipient
// email and backfilling the link when the message predates identification.
func (s *Service) resolveMessagePerson(ctx context.Context, msg *domain.EmailMessage) (uuid.UUID, bool) {
	if msg.PersonID != nil {
		return *msg.PersonID, true
	}
	if s.resolver == nil || msg.Email == "" {
		return uuid.Nil, false
	}
	personID, found, err := s.resolver.ResolvePersonByEmail(ctx, msg.Email)
	if err != nil {
		logger.Error("resolve email recipient", "email", msg.Email, "error", err)
		return uuid.Nil, false
	}
	if !found {
		return uuid.Nil, false
	}
	if err := s.repo.AttachPerson(ctx, msg.ProviderMessageID, personID); err != nil {
		logger.Error("attach person to message", "message_id", msg.ProviderMessageID, "error", err)
	}
	msg.PersonID = &personID
	return personID, true
}

// NormalizeEventType maps provider event names onto the internal taxonomy.
func NormalizeEventType(raw string) (domain.EmailEventType, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "delivery", "delivered":
		return domain.EmailDelivered, true
	case "open", "initial_open", "opened":
		return domain.EmailOpened, true
	case "click", "clicked":
		return domain.EmailClicked, true
	case "bounce", "bounced", "out_of_band":
		return domain.EmailBounced, true
	case "spam_complaint", "complaint":
		return domain.EmailComplaint, true
	default:
		return "", false
	}
}
