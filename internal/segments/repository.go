package segments

import (
	"context"

	"github.com/google/uuid"
	"github.com/matchwell/growth-plane/internal/domain"
)

// Repository defines segment and membership persistence. Lookup methods
// return (nil, nil) for absent rows. Implementations must be safe for
// concurrent use.
type Repository interface {
	// GetSegment returns a segment by id, or nil.
	GetSegment(ctx context.Context, id uuid.UUID) (*Segment, error)

	// ListSegments returns all segments, active and inactive.
	ListSegments(ctx context.Context) ([]Segment, error)

	// ListActiveSegments returns only active segments.
	ListActiveSegments(ctx context.Context) ([]Segment, error)

	// CreateSegment inserts a new segment.
	CreateSegment(ctx context.Context, s *Segment) error

	// UpdateSegment persists segment changes.
	UpdateSegment(ctx context.Context, s *Segment) error

	// ListMemberships returns the segment ids the person was last known to
	// be a member of.
	ListMemberships(ctx context.Context, personID uuid.UUID) ([]uuid.UUID, error)

	// AddMembership records a gained membership. Inserting an existing pair
	// must be a no-op (idempotent re-evaluation).
	AddMembership(ctx context.Context, m *Membership) error

	// RemoveMembership deletes a lost membership. Removing an absent pair
	// must be a no-op.
	RemoveMembership(ctx context.Context, personID, segmentID uuid.UUID) error
}

// ProfileReader loads the per-person data criteria evaluation runs over.
// Implemented by the postgres repository layer; services compose it with
// Repository.
type ProfileReader interface {
	// GetPerson returns a person by id, or nil.
	GetPerson(ctx context.Context, id uuid.UUID) (*domain.Person, error)

	// GetFeatures returns the person's features row, or nil.
	GetFeatures(ctx context.Context, personID uuid.UUID) (*domain.PersonFeatures, error)

	// ListSubscriptions returns the person's subscriptions.
	ListSubscriptions(ctx context.Context, personID uuid.UUID) ([]domain.Subscription, error)

	// CountEventsNamed counts the person's events with the given name inside
	// the trailing window (windowDays <= 0 means all time).
	CountEventsNamed(ctx context.Context, personID uuid.UUID, name string, windowDays int) (int, error)

	// ListPersonIDs returns every person id (segment statistics only).
	ListPersonIDs(ctx context.Context) ([]uuid.UUID, error)
}

// AutomationTrigger fires the configured automations for one transition.
// Implementations are best-effort: the transition engine logs and swallows
// returned errors.
type AutomationTrigger interface {
	TriggerSegmentAutomations(ctx context.Context, person *domain.Person, seg *Segment, dir Direction) error
}
