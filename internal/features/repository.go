package features

import (
	"context"

	"github.com/google/uuid"
	"github.com/matchwell/growth-plane/internal/domain"
)

// Repository defines the data access the feature engine needs. Event and
// EmailEvent reads are aggregations over immutable history; the features row
// is the only thing written. Implementations must be safe for concurrent use.
type Repository interface {
	// ListEventsByPerson returns all events for a person, any order.
	ListEventsByPerson(ctx context.Context, personID uuid.UUID) ([]domain.Event, error)

	// CountDistinctEventDays returns the number of distinct UTC calendar
	// dates on which the person has at least one event.
	CountDistinctEventDays(ctx context.Context, personID uuid.UUID) (int, error)

	// CountEmailEvents counts EmailEvent rows of the given type joined
	// through EmailMessage to the person.
	CountEmailEvents(ctx context.Context, personID uuid.UUID, typ domain.EmailEventType) (int, error)

	// GetFeatures returns the person's features row, or nil if absent.
	GetFeatures(ctx context.Context, personID uuid.UUID) (*domain.PersonFeatures, error)

	// UpsertFeatures writes the features row for f.PersonID.
	UpsertFeatures(ctx context.Context, f *domain.PersonFeatures) error

	// ListActivePersonIDs returns ids of persons with at least one event in
	// the trailing window of days (days <= 0 means all time).
	ListActivePersonIDs(ctx context.Context, days int) ([]uuid.UUID, error)
}
