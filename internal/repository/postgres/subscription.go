package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/matchwell/growth-plane/internal/domain"
)

// SubscriptionRepo implements ingest.SubscriptionStore and the subscription
// reads the profile store needs.
type SubscriptionRepo struct{ db *sql.DB }

// NewSubscriptionRepo creates a Postgres-backed subscription repository.
func NewSubscriptionRepo(db *sql.DB) *SubscriptionRepo { return &SubscriptionRepo{db: db} }

const subscriptionColumns = `id, person_id, external_id, status, COALESCE(plan_name,''), mrr_cents, current_period_end_at, created_at, updated_at`

func scanSubscription(row interface{ Scan(...interface{}) error }) (*domain.Subscription, error) {
	s := &domain.Subscription{}
	err := row.Scan(&s.ID, &s.PersonID, &s.ExternalID, &s.Status, &s.PlanName,
		&s.MRRCents, &s.CurrentPeriodEndAt, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *SubscriptionRepo) GetSubscriptionByExternalID(ctx context.Context, externalID string) (*domain.Subscription, error) {
	s, err := scanSubscription(r.db.QueryRowContext(ctx, `
		SELECT `+subscriptionColumns+` FROM growth_subscriptions WHERE external_id = $1
	`, externalID))
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return s, nil
}

func (r *SubscriptionRepo) UpsertSubscription(ctx context.Context, sub *domain.Subscription) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO growth_subscriptions
			(id, person_id, external_id, status, plan_name, mrr_cents,
			 current_period_end_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5,''), $6, $7, NOW(), NOW())
		ON CONFLICT (external_id) DO UPDATE SET
			status = EXCLUDED.status,
			plan_name = COALESCE(EXCLUDED.plan_name, growth_subscriptions.plan_name),
			mrr_cents = EXCLUDED.mrr_cents,
			current_period_end_at = EXCLUDED.current_period_end_at,
			updated_at = NOW()
	`, sub.ID, sub.PersonID, sub.ExternalID, sub.Status, sub.PlanName,
		sub.MRRCents, sub.CurrentPeriodEndAt)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

func (r *SubscriptionRepo) ListSubscriptions(ctx context.Context, personID uuid.UUID) ([]domain.Subscription, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+subscriptionColumns+` FROM growth_subscriptions
		WHERE person_id = $1
		ORDER BY created_at ASC
	`, personID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var out []domain.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}
