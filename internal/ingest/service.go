package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/matchwell/growth-plane/internal/adplatform"
	"github.com/matchwell/growth-plane/internal/domain"
	"github.com/matchwell/growth-plane/internal/identity"
	"github.com/matchwell/growth-plane/internal/pkg/logger"
	"github.com/matchwell/growth-plane/internal/segments"
)

// Resolver is the identity surface the pipeline needs; satisfied by
// identity.Service.
type Resolver interface {
	GetOrCreatePerson(ctx context.Context, in identity.IdentifyInput) (*domain.Person, error)
	ResolvePersonFromExternalID(ctx context.Context, provider domain.IdentityProvider, externalID string) (uuid.UUID, bool, error)
}

// FeatureUpdater runs the on-write feature derivation; satisfied by
// features.Service.
type FeatureUpdater interface {
	IncrementalUpdate(ctx context.Context, personID uuid.UUID, eventName string, occurredAt time.Time) (*domain.PersonFeatures, error)
}

// SegmentEvaluator runs transition detection; satisfied by segments.Service.
type SegmentEvaluator interface {
	EvaluateAfterEvent(ctx context.Context, personID uuid.UUID) ([]segments.Transition, error)
}

// ConversionSender forwards ad-channel conversions; satisfied by
// adplatform.Client.
type ConversionSender interface {
	SendConversion(ctx context.Context, conv adplatform.Conversion) (*adplatform.ConversionResponse, error)
}

// TrackInput is one raw event from any channel. The Source tag decides which
// identifying field resolves the person.
type TrackInput struct {
	Source domain.EventSource `json:"source"`
	Name   string             `json:"name"`

	// Identifying fields, one per channel.
	PersonID          *uuid.UUID `json:"person_id,omitempty"`           // web: already resolved
	ExternalUserID    string     `json:"external_user_id,omitempty"`    // app, booking
	Email             string     `json:"email,omitempty"`               // email channel
	PaymentCustomerID string     `json:"payment_customer_id,omitempty"` // payment channel
	HashedID          string     `json:"hashed_id,omitempty"`           // ad channel

	Props        domain.EventProperties `json:"properties"`
	Attribution  *domain.Attribution    `json:"attribution,omitempty"`
	SessionID    string                 `json:"session_id,omitempty"`
	DeviceID     string                 `json:"device_id,omitempty"`
	IPAddress    string                 `json:"ip_address,omitempty"`
	UserAgent    string                 `json:"user_agent,omitempty"`
	DedupEventID string                 `json:"dedup_event_id,omitempty"`
	OccurredAt   time.Time              `json:"occurred_at"`
}

// Service is the ingestion pipeline.
type Service struct {
	repo        Repository
	subs        SubscriptionStore
	resolver    Resolver
	features    FeatureUpdater
	segments    SegmentEvaluator
	conversions ConversionSender // nil when the ad platform is not configured
}

// NewService wires the pipeline. conversions may be nil.
func NewService(repo Repository, subs SubscriptionStore, resolver Resolver, features FeatureUpdater, segs SegmentEvaluator, conversions ConversionSender) *Service {
	return &Service{
		repo:        repo,
		subs:        subs,
		resolver:    resolver,
		features:    features,
		segments:    segs,
		conversions: conversions,
	}
}

// IngestEvent runs the full pipeline for one event. The event row is
// persisted before any derivation; derivation and downstream forwarding
// never fail the ingest once the row is durable.
func (s *Service) IngestEvent(ctx context.Context, in TrackInput) (*domain.Event, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("event requires a name")
	}
	if in.OccurredAt.IsZero() {
		in.OccurredAt = time.Now().UTC()
	}

	personID, err := s.resolvePerson(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("resolve person: %w", err)
	}

	props := in.Props
	if in.Attribution != nil {
		props.Attribution = in.Attribution
	}

	ev := &domain.Event{
		ID:           uuid.New(),
		PersonID:     personID,
		Name:         in.Name,
		Source:       in.Source,
		Props:        props,
		SessionID:    in.SessionID,
		DeviceID:     in.DeviceID,
		IPAddress:    in.IPAddress,
		UserAgent:    in.UserAgent,
		DedupEventID: in.DedupEventID,
		OccurredAt:   in.OccurredAt,
	}

	if err := s.repo.CreateEvent(ctx, ev); err != nil {
		return nil, fmt.Errorf("persist event: %w", err)
	}

	s.forwardConversion(ctx, ev, in)

	if personID == nil {
		// Unresolved events stay joinable later; nothing to derive yet.
		return ev, nil
	}

	if in.Source == domain.SourcePayment {
		if err := s.applySubscriptionLifecycle(ctx, *personID, ev); err != nil {
			logger.Error("apply subscription lifecycle", "person_id", *personID, "event", ev.Name, "error", err)
		}
	}

	if _, err := s.features.IncrementalUpdate(ctx, *personID, ev.Name, ev.OccurredAt); err != nil {
		logger.Error("incremental feature update", "person_id", *personID, "error", err)
		return ev, nil
	}
	if _, err := s.segments.EvaluateAfterEvent(ctx, *personID); err != nil {
		logger.Error("segment evaluation", "person_id", *personID, "error", err)
	}
	return ev, nil
}

// resolvePerson maps the source's identifying field to a person id, or nil
// when nothing resolves.
func (s *Service) resolvePerson(ctx context.Context, in TrackInput) (*uuid.UUID, error) {
	switch in.Source {
	case domain.SourceWeb:
		if in.PersonID != nil && *in.PersonID != uuid.Nil {
			return in.PersonID, nil
		}
		return nil, nil

	case domain.SourceApp, domain.SourceBooking:
		if in.ExternalUserID == "" {
			return nil, nil
		}
		id, found, err := s.resolver.ResolvePersonFromExternalID(ctx, domain.ProviderApp, in.ExternalUserID)
		if err != nil || !found {
			return nil, err
		}
		return &id, nil

	case domain.SourceEmail:
		if strings.TrimSpace(in.Email) == "" {
			return nil, nil
		}
		p, err := s.resolver.GetOrCreatePerson(ctx, identity.IdentifyInput{Email: in.Email})
		if err != nil {
			return nil, err
		}
		return &p.ID, nil

	case domain.SourcePayment:
		if in.PaymentCustomerID == "" {
			return nil, nil
		}
		id, found, err := s.resolver.ResolvePersonFromExternalID(ctx, domain.ProviderPayment, in.PaymentCustomerID)
		if err != nil || !found {
			return nil, err
		}
		return &id, nil

	case domain.SourceAds:
		if in.HashedID == "" {
			return nil, nil
		}
		id, found, err := s.resolver.ResolvePersonFromExternalID(ctx, domain.ProviderAds, in.HashedID)
		if err != nil || !found {
			return nil, err
		}
		return &id, nil

	default:
		return nil, fmt.Errorf("unknown event source %q", in.Source)
	}
}

// forwardConversion sends ad-channel events carrying a dedup id to the ad
// platform so client pixel and server event collapse into one conversion.
// Best effort: failures are logged, never surfaced.
func (s *Service) forwardConversion(ctx context.Context, ev *domain.Event, in TrackInput) {
	if s.conversions == nil || ev.Source != domain.SourceAds || ev.DedupEventID == "" {
		return
	}

	conv := adplatform.Conversion{
		EventName:  ev.Name,
		EventID:    ev.DedupEventID,
		OccurredAt: ev.OccurredAt,
		Email:      in.Email,
		IPAddress:  ev.IPAddress,
		UserAgent:  ev.UserAgent,
		Currency:   ev.Props.Currency,
	}
	if ev.Props.Amount != nil {
		conv.AmountCents = int64(*ev.Props.Amount * 100)
	}
	if attr := ev.Props.Attribution; attr != nil {
		conv.ClickID = attr.ClickID
		conv.BrowserID = attr.BrowserID
		conv.Campaign = attr.Campaign
	}

	if _, err := s.conversions.SendConversion(ctx, conv); err != nil {
		logger.Error("forward ad conversion", "event", ev.Name, "dedup_event_id", ev.DedupEventID, "error", err)
	}
}

// applySubscriptionLifecycle folds payment lifecycle events into the
// subscription mirror. Non-lifecycle payment events pass through untouched.
func (s *Service) applySubscriptionLifecycle(ctx context.Context, personID uuid.UUID, ev *domain.Event) error {
	var status domain.SubscriptionStatus
	switch ev.Name {
	case "subscription_started":
		status = domain.SubscriptionActive
	case "trial_started":
		status = domain.SubscriptionTrialing
	case "payment_failed":
		status = domain.SubscriptionPastDue
	case "subscription_canceled":
		status = domain.SubscriptionCanceled
	case "subscription_updated":
		status = parseSubscriptionStatus(ev.Props.Status)
		if status == "" {
			status = domain.SubscriptionActive
		}
	default:
		return nil
	}

	externalID := ev.Props.Extra["subscription_id"]
	if externalID == "" {
		return fmt.Errorf("lifecycle event %q missing subscription_id", ev.Name)
	}

	sub, err := s.subs.GetSubscriptionByExternalID(ctx, externalID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if sub == nil {
		sub = &domain.Subscription{
			ID:         uuid.New(),
			PersonID:   personID,
			ExternalID: externalID,
			CreatedAt:  now,
		}
	}
	sub.Status = status
	sub.UpdatedAt = now
	if ev.Props.PlanName != "" {
		sub.PlanName = ev.Props.PlanName
	}
	if ev.Props.Amount != nil {
		sub.MRRCents = int64(*ev.Props.Amount * 100)
	}
	return s.subs.UpsertSubscription(ctx, sub)
}

func parseSubscriptionStatus(raw string) domain.SubscriptionStatus {
	switch domain.SubscriptionStatus(strings.ToLower(raw)) {
	case domain.SubscriptionTrialing, domain.SubscriptionActive,
		domain.SubscriptionPastDue, domain.SubscriptionCanceled:
		return domain.SubscriptionStatus(strings.ToLower(raw))
	}
	return ""
}
