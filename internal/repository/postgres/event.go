package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/matchwell/growth-plane/internal/domain"
)

// EventRepo implements ingest.Repository: the append-only event store.
type EventRepo struct{ db *sql.DB }

// NewEventRepo creates a Postgres-backed event store.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

func (r *EventRepo) CreateEvent(ctx context.Context, ev *domain.Event) error {
	props, err := json.Marshal(ev.Props)
	if err != nil {
		return fmt.Errorf("encode event properties: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO growth_events
			(id, person_id, name, source, properties, session_id, device_id,
			 ip_address, user_agent, dedup_event_id, occurred_at, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6,''), NULLIF($7,''),
		        NULLIF($8,''), NULLIF($9,''), NULLIF($10,''), $11, NOW())
	`, ev.ID, ev.PersonID, ev.Name, ev.Source, props, ev.SessionID, ev.DeviceID,
		ev.IPAddress, ev.UserAgent, ev.DedupEventID, ev.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}
