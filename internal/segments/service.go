package segments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/matchwell/growth-plane/internal/pkg/logger"
)

// Service evaluates segment criteria and detects membership transitions.
type Service struct {
	repo     Repository
	profiles ProfileReader
	trigger  AutomationTrigger // may be nil (evaluation without side effects)
}

// NewService creates a segment engine. trigger may be nil, in which case
// transitions are persisted but no automations fire.
func NewService(repo Repository, profiles ProfileReader, trigger AutomationTrigger) *Service {
	return &Service{repo: repo, profiles: profiles, trigger: trigger}
}

// loadSnapshot gathers everything the interpreter needs for the given
// criteria sets. Event counts are fetched only for the clauses that appear.
func (s *Service) loadSnapshot(ctx context.Context, personID uuid.UUID, criteriaSets ...Criteria) (Snapshot, error) {
	snap := Snapshot{Now: time.Now().UTC()}

	var err error
	if snap.Person, err = s.profiles.GetPerson(ctx, personID); err != nil {
		return snap, fmt.Errorf("get person: %w", err)
	}
	if snap.Features, err = s.profiles.GetFeatures(ctx, personID); err != nil {
		return snap, fmt.Errorf("get features: %w", err)
	}
	if snap.Subscriptions, err = s.profiles.ListSubscriptions(ctx, personID); err != nil {
		return snap, fmt.Errorf("list subscriptions: %w", err)
	}

	snap.EventCounts = make(map[EventCountKey]int)
	for _, c := range criteriaSets {
		for _, ec := range c.Events {
			key := EventCountKey{Name: ec.EventName, WindowDays: ec.WindowDays}
			if _, done := snap.EventCounts[key]; done {
				continue
			}
			n, err := s.profiles.CountEventsNamed(ctx, personID, ec.EventName, ec.WindowDays)
			if err != nil {
				return snap, fmt.Errorf("count events %q: %w", ec.EventName, err)
			}
			snap.EventCounts[key] = n
		}
	}
	return snap, nil
}

// EvaluateMembership reports whether the person currently matches the
// criteria. Pure evaluation over loaded state, no side effects.
func (s *Service) EvaluateMembership(ctx context.Context, personID uuid.UUID, c Criteria) (bool, error) {
	snap, err := s.loadSnapshot(ctx, personID, c)
	if err != nil {
		return false, err
	}
	return Matches(snap, c), nil
}

// GetPersonSegments evaluates every active segment against the person and
// returns the ids of all matching segments.
func (s *Service) GetPersonSegments(ctx context.Context, personID uuid.UUID) ([]uuid.UUID, error) {
	active, err := s.repo.ListActiveSegments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active segments: %w", err)
	}

	criteriaSets := make([]Criteria, len(active))
	for i, seg := range active {
		criteriaSets[i] = seg.Criteria
	}
	snap, err := s.loadSnapshot(ctx, personID, criteriaSets...)
	if err != nil {
		return nil, err
	}

	var matching []uuid.UUID
	for _, seg := range active {
		if Matches(snap, seg.Criteria) {
			matching = append(matching, seg.ID)
		}
	}
	return matching, nil
}

// EvaluateAfterEvent is the transition detector: it diffs current membership
// against the stored membership rows and, for each difference, updates the
// row first and then fires the segment's automations. Membership persistence
// is never blocked by automation failures; a duplicate evaluation with
// unchanged features produces an empty diff and fires nothing.
func (s *Service) EvaluateAfterEvent(ctx context.Context, personID uuid.UUID) ([]Transition, error) {
	current, err := s.GetPersonSegments(ctx, personID)
	if err != nil {
		return nil, err
	}
	previous, err := s.repo.ListMemberships(ctx, personID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}

	currentSet := toSet(current)
	previousSet := toSet(previous)
	now := time.Now().UTC()

	var transitions []Transition

	for _, segID := range current {
		if previousSet[segID] {
			continue
		}
		// Entered: persist membership before any side effect so a retried
		// automation sees consistent state.
		if err := s.repo.AddMembership(ctx, &Membership{PersonID: personID, SegmentID: segID, EnteredAt: now}); err != nil {
			return transitions, fmt.Errorf("add membership %s: %w", segID, err)
		}
		transitions = append(transitions, Transition{PersonID: personID, SegmentID: segID, Direction: DirectionEnter, At: now})
		s.fireAutomations(ctx, personID, segID, DirectionEnter)
	}

	for _, segID := range previous {
		if currentSet[segID] {
			continue
		}
		if err := s.repo.RemoveMembership(ctx, personID, segID); err != nil {
			return transitions, fmt.Errorf("remove membership %s: %w", segID, err)
		}
		transitions = append(transitions, Transition{PersonID: personID, SegmentID: segID, Direction: DirectionExit, At: now})
		s.fireAutomations(ctx, personID, segID, DirectionExit)
	}

	return transitions, nil
}

// fireAutomations triggers one segment's automations, catching all failures
// so sibling segments and membership state are unaffected.
func (s *Service) fireAutomations(ctx context.Context, personID, segID uuid.UUID, dir Direction) {
	if s.trigger == nil {
		return
	}
	seg, err := s.repo.GetSegment(ctx, segID)
	if err != nil || seg == nil {
		logger.Error("segment load for automation failed", "segment_id", segID, "error", err)
		return
	}
	person, err := s.profiles.GetPerson(ctx, personID)
	if err != nil || person == nil {
		logger.Error("person load for automation failed", "person_id", personID, "error", err)
		return
	}
	if err := s.trigger.TriggerSegmentAutomations(ctx, person, seg, dir); err != nil {
		logger.Error("segment automation failed",
			"segment_id", segID, "person_id", personID, "direction", string(dir), "error", err)
	}
}

// BatchEvaluate runs transition detection for a list of persons, isolating
// per-person failures.
func (s *Service) BatchEvaluate(ctx context.Context, personIDs []uuid.UUID) (evaluated, failed int) {
	for _, id := range personIDs {
		if ctx.Err() != nil {
			break
		}
		if _, err := s.EvaluateAfterEvent(ctx, id); err != nil {
			logger.Error("segment evaluation failed", "person_id", id, "error", err)
			failed++
			continue
		}
		evaluated++
	}
	return evaluated, failed
}

// GetSegmentStats counts current members by re-evaluating the segment's
// criteria against every person. O(persons); intended for dashboards, not
// the hot path.
func (s *Service) GetSegmentStats(ctx context.Context, segmentID uuid.UUID) (*Stats, error) {
	seg, err := s.repo.GetSegment(ctx, segmentID)
	if err != nil {
		return nil, fmt.Errorf("get segment: %w", err)
	}
	if seg == nil {
		return nil, nil
	}

	ids, err := s.profiles.ListPersonIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}

	stats := &Stats{
		SegmentID:    seg.ID,
		Name:         seg.Name,
		PersonsTotal: len(ids),
		EvaluatedAt:  time.Now().UTC(),
	}
	for _, id := range ids {
		match, err := s.EvaluateMembership(ctx, id, seg.Criteria)
		if err != nil {
			logger.Error("stats evaluation failed", "person_id", id, "segment_id", segmentID, "error", err)
			continue
		}
		if match {
			stats.MemberCount++
		}
	}
	return stats, nil
}

// Repo exposes the underlying repository for handlers that manage segment
// definitions directly.
func (s *Service) Repo() Repository { return s.repo }

func toSet(ids []uuid.UUID) map[uuid.UUID]bool {
	set := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
