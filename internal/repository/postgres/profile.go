package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/matchwell/growth-plane/internal/domain"
)

// ProfileStore implements segments.ProfileReader: the per-person reads the
// criteria interpreter evaluates over. Composes the other repos' tables.
type ProfileStore struct {
	db       *sql.DB
	persons  *PersonRepo
	features *FeatureRepo
	subs     *SubscriptionRepo
}

// NewProfileStore creates a Postgres-backed profile reader.
func NewProfileStore(db *sql.DB) *ProfileStore {
	return &ProfileStore{
		db:       db,
		persons:  NewPersonRepo(db),
		features: NewFeatureRepo(db),
		subs:     NewSubscriptionRepo(db),
	}
}

func (r *ProfileStore) GetPerson(ctx context.Context, id uuid.UUID) (*domain.Person, error) {
	return r.persons.GetPerson(ctx, id)
}

func (r *ProfileStore) GetFeatures(ctx context.Context, personID uuid.UUID) (*domain.PersonFeatures, error) {
	return r.features.GetFeatures(ctx, personID)
}

func (r *ProfileStore) ListSubscriptions(ctx context.Context, personID uuid.UUID) ([]domain.Subscription, error) {
	return r.subs.ListSubscriptions(ctx, personID)
}

func (r *ProfileStore) CountEventsNamed(ctx context.Context, personID uuid.UUID, name string, windowDays int) (int, error) {
	q := `SELECT COUNT(*) FROM growth_events WHERE person_id = $1 AND name = $2`
	args := []interface{}{personID, name}
	if windowDays > 0 {
		q += ` AND occurred_at >= NOW() - ($3 * INTERVAL '1 day')`
		args = append(args, windowDays)
	}

	var n int
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events named: %w", err)
	}
	return n, nil
}

func (r *ProfileStore) ListPersonIDs(ctx context.Context) ([]uuid.UUID, error) {
	return r.persons.ListPersonIDs(ctx)
}
