package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/matchwell/growth-plane/internal/domain"
	"github.com/matchwell/growth-plane/internal/pkg/logger"
)

// Service implements identity resolution. All public methods are safe for
// concurrent use if the underlying repository is concurrency-safe.
type Service struct {
	repo Repository
}

// NewService creates an identity service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// IdentifyInput holds the fields the marketplace supplies on identify.
type IdentifyInput struct {
	Email  string        `json:"email,omitempty"`
	Phone  string        `json:"phone,omitempty"`
	Name   string        `json:"name,omitempty"`
	Traits domain.Traits `json:"traits"`
}

// GetOrCreatePerson resolves or creates the canonical person for the given
// attributes. If an email is supplied and a person with that email exists,
// the supplied traits are merged into the existing trait map (new keys win)
// and the updated person is returned. Otherwise a new person is created.
// Re-identifying with the same email is idempotent.
func (s *Service) GetOrCreatePerson(ctx context.Context, in IdentifyInput) (*domain.Person, error) {
	email := normalizeEmail(in.Email)

	if email != "" {
		existing, err := s.repo.GetPersonByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("lookup person by email: %w", err)
		}
		if existing != nil {
			// Merge is idempotent, so re-identifying with identical data
			// rewrites the same values.
			existing.Traits = existing.Traits.Merge(in.Traits)
			if in.Phone != "" {
				existing.Phone = in.Phone
			}
			if in.Name != "" {
				existing.Name = in.Name
			}
			existing.UpdatedAt = time.Now().UTC()
			if err := s.repo.UpdatePerson(ctx, existing); err != nil {
				return nil, fmt.Errorf("update person: %w", err)
			}
			return existing, nil
		}
	}

	now := time.Now().UTC()
	p := &domain.Person{
		ID:        uuid.New(),
		Email:     email,
		Phone:     in.Phone,
		Name:      in.Name,
		Traits:    in.Traits,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreatePerson(ctx, p); err != nil {
		return nil, fmt.Errorf("create person: %w", err)
	}
	logger.Info("person created", "person_id", p.ID, "email", p.Email)
	return p, nil
}

// LinkStatus tags the outcome of a LinkIdentity call.
type LinkStatus string

const (
	// LinkCreated means the (provider, external id) pair was unlinked and a
	// new link was created for the requested person.
	LinkCreated LinkStatus = "linked"
	// AlreadyLinkedToSelf means the pair was already linked to the requested
	// person; the call was a no-op.
	AlreadyLinkedToSelf LinkStatus = "already_linked_to_self"
	// ConflictWithOtherPerson means the pair is linked to a different person.
	// No link is created and no merge is attempted; PersonID carries the
	// existing link's owner so the caller can decide what to do.
	ConflictWithOtherPerson LinkStatus = "conflict_with_other_person"
)

// LinkOutcome is the tagged result of LinkIdentity. PersonID is always the id
// that (provider, externalID) resolves to after the call.
type LinkOutcome struct {
	Status   LinkStatus `json:"status"`
	PersonID uuid.UUID  `json:"person_id"`
}

// LinkIdentity associates an external provider id with a person. The
// (provider, externalID) pair is unique: if it is already linked to a
// different person, the existing link wins and a conflict outcome is
// returned. Conflicts are surfaced in logs, never auto-merged.
func (s *Service) LinkIdentity(ctx context.Context, personID uuid.UUID, provider domain.IdentityProvider, externalID string, metadata map[string]string) (LinkOutcome, error) {
	existing, err := s.repo.GetLink(ctx, provider, externalID)
	if err != nil {
		return LinkOutcome{}, fmt.Errorf("lookup link: %w", err)
	}
	if existing != nil {
		if existing.PersonID == personID {
			return LinkOutcome{Status: AlreadyLinkedToSelf, PersonID: personID}, nil
		}
		logger.Warn("identity link conflict",
			"provider", string(provider),
			"external_id", externalID,
			"requested_person", personID,
			"existing_person", existing.PersonID)
		return LinkOutcome{Status: ConflictWithOtherPerson, PersonID: existing.PersonID}, nil
	}

	link := &domain.IdentityLink{
		PersonID:   personID,
		Provider:   provider,
		ExternalID: externalID,
		Metadata:   metadata,
		LinkedAt:   time.Now().UTC(),
	}
	if err := s.repo.CreateLink(ctx, link); err != nil {
		return LinkOutcome{}, fmt.Errorf("create link: %w", err)
	}
	return LinkOutcome{Status: LinkCreated, PersonID: personID}, nil
}

// ResolvePersonFromExternalID returns the person id linked to the given
// external id, or uuid.Nil and false when unlinked. Pure lookup, no side
// effects.
func (s *Service) ResolvePersonFromExternalID(ctx context.Context, provider domain.IdentityProvider, externalID string) (uuid.UUID, bool, error) {
	link, err := s.repo.GetLink(ctx, provider, externalID)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("lookup link: %w", err)
	}
	if link == nil {
		return uuid.Nil, false, nil
	}
	return link.PersonID, true, nil
}

// IdentityRecord is one linked external identity, for diagnostics/export.
type IdentityRecord struct {
	ExternalID string            `json:"external_id"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	LinkedAt   time.Time         `json:"linked_at"`
}

// GetPersonIdentities returns the person's linked identities keyed by
// provider. Returns an empty map for a person with no links.
func (s *Service) GetPersonIdentities(ctx context.Context, personID uuid.UUID) (map[domain.IdentityProvider]IdentityRecord, error) {
	links, err := s.repo.ListLinks(ctx, personID)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	out := make(map[domain.IdentityProvider]IdentityRecord, len(links))
	for _, l := range links {
		out[l.Provider] = IdentityRecord{
			ExternalID: l.ExternalID,
			Metadata:   l.Metadata,
			LinkedAt:   l.LinkedAt,
		}
	}
	return out, nil
}

// GetPerson returns a person by id, or nil if absent.
func (s *Service) GetPerson(ctx context.Context, id uuid.UUID) (*domain.Person, error) {
	return s.repo.GetPerson(ctx, id)
}

// GetPersonByEmail returns the person with the given email, or nil.
func (s *Service) GetPersonByEmail(ctx context.Context, email string) (*domain.Person, error) {
	return s.repo.GetPersonByEmail(ctx, normalizeEmail(email))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
