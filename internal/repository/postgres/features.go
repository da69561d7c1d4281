package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/matchwell/growth-plane/internal/domain"
)

// FeatureRepo implements features.Repository: aggregations over the event
// history plus the derived features row.
type FeatureRepo struct{ db *sql.DB }

// NewFeatureRepo creates a Postgres-backed feature repository.
func NewFeatureRepo(db *sql.DB) *FeatureRepo { return &FeatureRepo{db: db} }

func (r *FeatureRepo) ListEventsByPerson(ctx context.Context, personID uuid.UUID) ([]domain.Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, person_id, name, source, properties,
		       COALESCE(session_id,''), COALESCE(device_id,''),
		       COALESCE(ip_address,''), COALESCE(user_agent,''),
		       COALESCE(dedup_event_id,''), occurred_at, created_at
		FROM growth_events
		WHERE person_id = $1
		ORDER BY occurred_at ASC
	`, personID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		var ev domain.Event
		var props []byte
		if err := rows.Scan(&ev.ID, &ev.PersonID, &ev.Name, &ev.Source, &props,
			&ev.SessionID, &ev.DeviceID, &ev.IPAddress, &ev.UserAgent,
			&ev.DedupEventID, &ev.OccurredAt, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if len(props) > 0 {
			if err := json.Unmarshal(props, &ev.Props); err != nil {
				return nil, fmt.Errorf("decode event properties: %w", err)
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (r *FeatureRepo) CountDistinctEventDays(ctx context.Context, personID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT DATE(occurred_at AT TIME ZONE 'UTC'))
		FROM growth_events
		WHERE person_id = $1
	`, personID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count event days: %w", err)
	}
	return n, nil
}

func (r *FeatureRepo) CountEmailEvents(ctx context.Context, personID uuid.UUID, typ domain.EmailEventType) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM growth_email_events e
		JOIN growth_email_messages m ON m.provider_message_id = e.provider_message_id
		WHERE m.person_id = $1 AND e.event_type = $2
	`, personID, typ).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count email events: %w", err)
	}
	return n, nil
}

func (r *FeatureRepo) GetFeatures(ctx context.Context, personID uuid.UUID) (*domain.PersonFeatures, error) {
	f := &domain.PersonFeatures{}
	err := r.db.QueryRowContext(ctx, `
		SELECT person_id, active_days, core_actions, pricing_views,
		       email_opens, email_clicks, last_active_at, computed_at
		FROM growth_person_features
		WHERE person_id = $1
	`, personID).Scan(&f.PersonID, &f.ActiveDays, &f.CoreActions, &f.PricingViews,
		&f.EmailOpens, &f.EmailClicks, &f.LastActiveAt, &f.ComputedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get features: %w", err)
	}
	return f, nil
}

func (r *FeatureRepo) UpsertFeatures(ctx context.Context, f *domain.PersonFeatures) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO growth_person_features
			(person_id, active_days, core_actions, pricing_views,
			 email_opens, email_clicks, last_active_at, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (person_id) DO UPDATE SET
			active_days = EXCLUDED.active_days,
			core_actions = EXCLUDED.core_actions,
			pricing_views = EXCLUDED.pricing_views,
			email_opens = EXCLUDED.email_opens,
			email_clicks = EXCLUDED.email_clicks,
			last_active_at = EXCLUDED.last_active_at,
			computed_at = EXCLUDED.computed_at
	`, f.PersonID, f.ActiveDays, f.CoreActions, f.PricingViews,
		f.EmailOpens, f.EmailClicks, f.LastActiveAt, f.ComputedAt)
	if err != nil {
		return fmt.Errorf("upsert features: %w", err)
	}
	return nil
}

func (r *FeatureRepo) ListActivePersonIDs(ctx context.Context, days int) ([]uuid.UUID, error) {
	q := `
		SELECT DISTINCT person_id FROM growth_events
		WHERE person_id IS NOT NULL`
	args := []interface{}{}
	if days > 0 {
		q += ` AND occurred_at >= NOW() - ($1 * INTERVAL '1 day')`
		args = append(args, days)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list active persons: %w", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan person id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
