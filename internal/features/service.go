package features

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/matchwell/growth-plane/internal/domain"
	"github.com/matchwell/growth-plane/internal/pkg/logger"
)

// Service computes and maintains PersonFeatures rows.
type Service struct {
	repo Repository
}

// NewService creates a feature engine backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ComputePersonFeatures recomputes all features from scratch by scanning the
// person's event history and email-engagement events, then upserts the row.
// Idempotent: the same history always converges to the same values.
func (s *Service) ComputePersonFeatures(ctx context.Context, personID uuid.UUID) (*domain.PersonFeatures, error) {
	events, err := s.repo.ListEventsByPerson(ctx, personID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	f := &domain.PersonFeatures{PersonID: personID}
	days := make(map[string]bool)
	for _, ev := range events {
		days[ev.OccurredAt.UTC().Format("2006-01-02")] = true
		if IsCoreAction(ev.Name) {
			f.CoreActions++
		}
		if IsPricingView(ev.Name) {
			f.PricingViews++
		}
		if f.LastActiveAt == nil || ev.OccurredAt.After(*f.LastActiveAt) {
			ts := ev.OccurredAt
			f.LastActiveAt = &ts
		}
	}
	f.ActiveDays = len(days)

	if f.EmailOpens, err = s.repo.CountEmailEvents(ctx, personID, domain.EmailOpened); err != nil {
		return nil, fmt.Errorf("count opens: %w", err)
	}
	if f.EmailClicks, err = s.repo.CountEmailEvents(ctx, personID, domain.EmailClicked); err != nil {
		return nil, fmt.Errorf("count clicks: %w", err)
	}

	f.ComputedAt = time.Now().UTC()
	if err := s.repo.UpsertFeatures(ctx, f); err != nil {
		return nil, fmt.Errorf("upsert features: %w", err)
	}
	return f, nil
}

// IncrementalUpdate is the cheap on-write path after a single new event. It
// bumps the core-action/pricing-view counters when the name matches the
// respective allow-list and advances last-active. The active-day count is
// recomputed fully from storage: a new event may or may not land on an
// already-counted day, so there is no safe local increment for it.
func (s *Service) IncrementalUpdate(ctx context.Context, personID uuid.UUID, eventName string, occurredAt time.Time) (*domain.PersonFeatures, error) {
	f, err := s.repo.GetFeatures(ctx, personID)
	if err != nil {
		return nil, fmt.Errorf("get features: %w", err)
	}
	if f == nil {
		// First event for this person: the full recompute already covers it.
		return s.ComputePersonFeatures(ctx, personID)
	}

	if IsCoreAction(eventName) {
		f.CoreActions++
	}
	if IsPricingView(eventName) {
		f.PricingViews++
	}
	if f.LastActiveAt == nil || occurredAt.After(*f.LastActiveAt) {
		ts := occurredAt
		f.LastActiveAt = &ts
	}
	if f.ActiveDays, err = s.repo.CountDistinctEventDays(ctx, personID); err != nil {
		return nil, fmt.Errorf("count active days: %w", err)
	}

	f.ComputedAt = time.Now().UTC()
	if err := s.repo.UpsertFeatures(ctx, f); err != nil {
		return nil, fmt.Errorf("upsert features: %w", err)
	}
	return f, nil
}

// BumpEmailEngagement increments the open or click counter after a new email
// engagement event. Other types are ignored.
func (s *Service) BumpEmailEngagement(ctx context.Context, personID uuid.UUID, typ domain.EmailEventType) error {
	if typ != domain.EmailOpened && typ != domain.EmailClicked {
		return nil
	}
	f, err := s.repo.GetFeatures(ctx, personID)
	if err != nil {
		return fmt.Errorf("get features: %w", err)
	}
	if f == nil {
		_, err := s.ComputePersonFeatures(ctx, personID)
		return err
	}
	switch typ {
	case domain.EmailOpened:
		f.EmailOpens++
	case domain.EmailClicked:
		f.EmailClicks++
	}
	f.ComputedAt = time.Now().UTC()
	if err := s.repo.UpsertFeatures(ctx, f); err != nil {
		return fmt.Errorf("upsert features: %w", err)
	}
	return nil
}

// GetFeatures returns the stored features row, or nil if never computed.
func (s *Service) GetFeatures(ctx context.Context, personID uuid.UUID) (*domain.PersonFeatures, error) {
	return s.repo.GetFeatures(ctx, personID)
}

// BatchResult summarizes a batch recompute run.
type BatchResult struct {
	Computed int
	Failed   int
}

// BatchCompute recomputes features for an explicit list of person ids.
// Per-person failures are logged and counted; one bad record never aborts
// the batch.
func (s *Service) BatchCompute(ctx context.Context, personIDs []uuid.UUID) BatchResult {
	var res BatchResult
	for _, id := range personIDs {
		if ctx.Err() != nil {
			break
		}
		if _, err := s.ComputePersonFeatures(ctx, id); err != nil {
			logger.Error("feature recompute failed", "person_id", id, "error", err)
			res.Failed++
			continue
		}
		res.Computed++
	}
	return res
}

// BatchComputeActiveWindow recomputes features for every person with any
// event in the trailing window of days.
func (s *Service) BatchComputeActiveWindow(ctx context.Context, days int) (BatchResult, error) {
	ids, err := s.repo.ListActivePersonIDs(ctx, days)
	if err != nil {
		return BatchResult{}, fmt.Errorf("list active persons: %w", err)
	}
	return s.BatchCompute(ctx, ids), nil
}
