package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/matchwell/growth-plane/internal/domain"
)

// EmailRepo implements emailevents.Repository: sent messages plus their
// append-only event log.
type EmailRepo struct{ db *sql.DB }

// NewEmailRepo creates a Postgres-backed email message repository.
func NewEmailRepo(db *sql.DB) *EmailRepo { return &EmailRepo{db: db} }

func (r *EmailRepo) GetMessageByProviderID(ctx context.Context, providerMessageID string) (*domain.EmailMessage, error) {
	m := &domain.EmailMessage{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, provider_message_id, person_id, COALESCE(email,''),
		       COALESCE(subject,''), COALESCE(campaign_name,''), sent_at, created_at
		FROM growth_email_messages
		WHERE provider_message_id = $1
	`, providerMessageID).Scan(&m.ID, &m.ProviderMessageID, &m.PersonID, &m.Email,
		&m.Subject, &m.CampaignName, &m.SentAt, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

func (r *EmailRepo) CreateMessage(ctx context.Context, msg *domain.EmailMessage) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO growth_email_messages
			(id, provider_message_id, person_id, email, subject, campaign_name, sent_at, created_at)
		VALUES ($1, $2, $3, NULLIF($4,''), NULLIF($5,''), NULLIF($6,''), $7, NOW())
		ON CONFLICT (provider_message_id) DO NOTHING
	`, msg.ID, msg.ProviderMessageID, msg.PersonID, msg.Email, msg.Subject,
		msg.CampaignName, msg.SentAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (r *EmailRepo) AttachPerson(ctx context.Context, providerMessageID string, personID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE growth_email_messages
		SET person_id = $2
		WHERE provider_message_id = $1 AND person_id IS NULL
	`, providerMessageID, personID)
	if err != nil {
		return fmt.Errorf("attach person: %w", err)
	}
	return nil
}

func (r *EmailRepo) CreateEvent(ctx context.Context, ev *domain.EmailEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO growth_email_events
			(id, provider_message_id, event_type, url, user_agent, ip_address, occurred_at, created_at)
		VALUES ($1, $2, $3, NULLIF($4,''), NULLIF($5,''), NULLIF($6,''), $7, NOW())
	`, ev.ID, ev.ProviderMessageID, ev.Type, ev.URL, ev.UserAgent, ev.IPAddress, ev.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert email event: %w", err)
	}
	return nil
}

func (r *EmailRepo) ListEventsByMessage(ctx context.Context, providerMessageID string) ([]domain.EmailEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, provider_message_id, event_type, COALESCE(url,''),
		       COALESCE(user_agent,''), COALESCE(ip_address,''), occurred_at, created_at
		FROM growth_email_events
		WHERE provider_message_id = $1
		ORDER BY occurred_at ASC
	`, providerMessageID)
	if err != nil {
		return nil, fmt.Errorf("list email events: %w", err)
	}
	defer rows.Close()

	var out []domain.EmailEvent
	for rows.Next() {
		var ev domain.EmailEvent
		if err := rows.Scan(&ev.ID, &ev.ProviderMessageID, &ev.Type, &ev.URL,
			&ev.UserAgent, &ev.IPAddress, &ev.OccurredAt, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan email event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
