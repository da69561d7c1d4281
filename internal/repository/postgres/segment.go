package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/matchwell/growth-plane/internal/segments"
)

// SegmentRepo implements segments.Repository. Criteria and automation
// configuration live as JSONB documents.
type SegmentRepo struct{ db *sql.DB }

// NewSegmentRepo creates a Postgres-backed segment repository.
func NewSegmentRepo(db *sql.DB) *SegmentRepo { return &SegmentRepo{db: db} }

func scanSegment(row interface{ Scan(...interface{}) error }) (*segments.Segment, error) {
	s := &segments.Segment{}
	var criteria, automations []byte
	err := row.Scan(&s.ID, &s.Name, &s.Description, &s.Active,
		&criteria, &automations, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(criteria) > 0 {
		if err := json.Unmarshal(criteria, &s.Criteria); err != nil {
			return nil, fmt.Errorf("decode criteria: %w", err)
		}
	}
	if len(automations) > 0 {
		if err := json.Unmarshal(automations, &s.Automations); err != nil {
			return nil, fmt.Errorf("decode automations: %w", err)
		}
	}
	return s, nil
}

const segmentColumns = `id, name, COALESCE(description,''), active, criteria, automations, created_at, updated_at`

func (r *SegmentRepo) GetSegment(ctx context.Context, id uuid.UUID) (*segments.Segment, error) {
	s, err := scanSegment(r.db.QueryRowContext(ctx, `
		SELECT `+segmentColumns+` FROM growth_segments WHERE id = $1
	`, id))
	if err != nil {
		return nil, fmt.Errorf("get segment: %w", err)
	}
	return s, nil
}

func (r *SegmentRepo) listSegments(ctx context.Context, onlyActive bool) ([]segments.Segment, error) {
	q := `SELECT ` + segmentColumns + ` FROM growth_segments`
	if onlyActive {
		q += ` WHERE active`
	}
	q += ` ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer rows.Close()

	var out []segments.Segment
	for rows.Next() {
		s, err := scanSegment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *SegmentRepo) ListSegments(ctx context.Context) ([]segments.Segment, error) {
	return r.listSegments(ctx, false)
}

func (r *SegmentRepo) ListActiveSegments(ctx context.Context) ([]segments.Segment, error) {
	return r.listSegments(ctx, true)
}

func (r *SegmentRepo) CreateSegment(ctx context.Context, s *segments.Segment) error {
	criteria, err := json.Marshal(s.Criteria)
	if err != nil {
		return fmt.Errorf("encode criteria: %w", err)
	}
	automations, err := json.Marshal(s.Automations)
	if err != nil {
		return fmt.Errorf("encode automations: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO growth_segments
			(id, name, description, active, criteria, automations, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3,''), $4, $5, $6, NOW(), NOW())
	`, s.ID, s.Name, s.Description, s.Active, criteria, automations)
	if err != nil {
		return fmt.Errorf("create segment: %w", err)
	}
	return nil
}

func (r *SegmentRepo) UpdateSegment(ctx context.Context, s *segments.Segment) error {
	criteria, err := json.Marshal(s.Criteria)
	if err != nil {
		return fmt.Errorf("encode criteria: %w", err)
	}
	automations, err := json.Marshal(s.Automations)
	if err != nil {
		return fmt.Errorf("encode automations: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE growth_segments
		SET name = $2, description = NULLIF($3,''), active = $4,
		    criteria = $5, automations = $6, updated_at = NOW()
		WHERE id = $1
	`, s.ID, s.Name, s.Description, s.Active, criteria, automations)
	if err != nil {
		return fmt.Errorf("update segment: %w", err)
	}
	return nil
}

func (r *SegmentRepo) ListMemberships(ctx context.Context, personID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT segment_id FROM growth_segment_memberships WHERE person_id = $1
	`, personID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *SegmentRepo) AddMembership(ctx context.Context, m *segments.Membership) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO growth_segment_memberships (person_id, segment_id, entered_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (person_id, segment_id) DO NOTHING
	`, m.PersonID, m.SegmentID, m.EnteredAt)
	if err != nil {
		return fmt.Errorf("add membership: %w", err)
	}
	return nil
}

func (r *SegmentRepo) RemoveMembership(ctx context.Context, personID, segmentID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM growth_segment_memberships WHERE person_id = $1 AND segment_id = $2
	`, personID, segmentID)
	if err != nil {
		return fmt.Errorf("remove membership: %w", err)
	}
	return nil
}
