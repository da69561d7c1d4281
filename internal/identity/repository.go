package identity

import (
	"context"

	"github.com/google/uuid"
	"github.com/matchwell/growth-plane/internal/domain"
)

// Repository defines the data access contract for persons and identity links.
// Implementations must be safe for concurrent use.
//
// Lookup methods return (nil, nil) when the row does not exist; errors are
// reserved for storage failures.
type Repository interface {
	// GetPerson returns a person by id, or nil if absent.
	GetPerson(ctx context.Context, id uuid.UUID) (*domain.Person, error)

	// GetPersonByEmail returns the person with the given email, or nil.
	GetPersonByEmail(ctx context.Context, email string) (*domain.Person, error)

	// CreatePerson inserts a new person.
	CreatePerson(ctx context.Context, p *domain.Person) error

	// UpdatePerson persists mutable person fields (phone, name, traits).
	UpdatePerson(ctx context.Context, p *domain.Person) error

	// GetLink returns the link for (provider, externalID), or nil.
	GetLink(ctx context.Context, provider domain.IdentityProvider, externalID string) (*domain.IdentityLink, error)

	// CreateLink inserts a new identity link.
	CreateLink(ctx context.Context, l *domain.IdentityLink) error

	// ListLinks returns all links for a person.
	ListLinks(ctx context.Context, personID uuid.UUID) ([]domain.IdentityLink, error)

	// ListPersonIDs returns every person id. O(persons); back-office use only.
	ListPersonIDs(ctx context.Context) ([]uuid.UUID, error)
}
