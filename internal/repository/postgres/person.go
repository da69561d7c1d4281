package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/matchwell/growth-plane/internal/domain"
)

// PersonRepo implements identity.Repository against PostgreSQL.
type PersonRepo struct{ db *sql.DB }

// NewPersonRepo creates a Postgres-backed person repository.
func NewPersonRepo(db *sql.DB) *PersonRepo { return &PersonRepo{db: db} }

const personColumns = `id, COALESCE(email,''), COALESCE(phone,''), COALESCE(name,''), traits, created_at, updated_at`

func scanPerson(row interface{ Scan(...interface{}) error }) (*domain.Person, error) {
	p := &domain.Person{}
	var traits []byte
	err := row.Scan(&p.ID, &p.Email, &p.Phone, &p.Name, &traits, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(traits) > 0 {
		if err := json.Unmarshal(traits, &p.Traits); err != nil {
			return nil, fmt.Errorf("decode traits: %w", err)
		}
	}
	return p, nil
}

func (r *PersonRepo) GetPerson(ctx context.Context, id uuid.UUID) (*domain.Person, error) {
	p, err := scanPerson(r.db.QueryRowContext(ctx, `
		SELECT `+personColumns+` FROM growth_persons WHERE id = $1
	`, id))
	if err != nil {
		return nil, fmt.Errorf("get person: %w", err)
	}
	return p, nil
}

func (r *PersonRepo) GetPersonByEmail(ctx context.Context, email string) (*domain.Person, error) {
	p, err := scanPerson(r.db.QueryRowContext(ctx, `
		SELECT `+personColumns+` FROM growth_persons WHERE email = $1
	`, email))
	if err != nil {
		return nil, fmt.Errorf("get person by email: %w", err)
	}
	return p, nil
}

func (r *PersonRepo) CreatePerson(ctx context.Context, p *domain.Person) error {
	traits, err := json.Marshal(p.Traits)
	if err != nil {
		return fmt.Errorf("encode traits: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO growth_persons (id, email, phone, name, traits, created_at, updated_at)
		VALUES ($1, NULLIF($2,''), NULLIF($3,''), NULLIF($4,''), $5, NOW(), NOW())
	`, p.ID, p.Email, p.Phone, p.Name, traits)
	if err != nil {
		return fmt.Errorf("create person: %w", err)
	}
	return nil
}

func (r *PersonRepo) UpdatePerson(ctx context.Context, p *domain.Person) error {
	traits, err := json.Marshal(p.Traits)
	if err != nil {
		return fmt.Errorf("encode traits: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE growth_persons
		SET email = NULLIF($2,''), phone = NULLIF($3,''), name = NULLIF($4,''),
		    traits = $5, updated_at = NOW()
		WHERE id = $1
	`, p.ID, p.Email, p.Phone, p.Name, traits)
	if err != nil {
		return fmt.Errorf("update person: %w", err)
	}
	return nil
}

func (r *PersonRepo) GetLink(ctx context.Context, provider domain.IdentityProvider, externalID string) (*domain.IdentityLink, error) {
	l := &domain.IdentityLink{}
	var metadata []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT person_id, provider, external_id, metadata, linked_at
		FROM growth_identity_links
		WHERE provider = $1 AND external_id = $2
	`, provider, externalID).Scan(&l.PersonID, &l.Provider, &l.ExternalID, &metadata, &l.LinkedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get link: %w", err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &l.Metadata); err != nil {
			return nil, fmt.Errorf("decode link metadata: %w", err)
		}
	}
	return l, nil
}

func (r *PersonRepo) CreateLink(ctx context.Context, l *domain.IdentityLink) error {
	metadata, err := json.Marshal(l.Metadata)
	if err != nil {
		return fmt.Errorf("encode link metadata: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO growth_identity_links (person_id, provider, external_id, metadata, linked_at)
		VALUES ($1, $2, $3, $4, NOW())
	`, l.PersonID, l.Provider, l.ExternalID, metadata)
	if err != nil {
		return fmt.Errorf("create link: %w", err)
	}
	return nil
}

func (r *PersonRepo) ListLinks(ctx context.Context, personID uuid.UUID) ([]domain.IdentityLink, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT person_id, provider, external_id, metadata, linked_at
		FROM growth_identity_links
		WHERE person_id = $1
		ORDER BY linked_at ASC
	`, personID)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	defer rows.Close()

	var out []domain.IdentityLink
	for rows.Next() {
		var l domain.IdentityLink
		var metadata []byte
		if err := rows.Scan(&l.PersonID, &l.Provider, &l.ExternalID, &metadata, &l.LinkedAt); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &l.Metadata); err != nil {
				return nil, fmt.Errorf("decode link metadata: %w", err)
			}
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *PersonRepo) ListPersonIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM growth_persons ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list person ids: %w", err)
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
