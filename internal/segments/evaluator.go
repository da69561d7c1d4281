package segments

import (
	"time"

	"github.com/matchwell/growth-plane/internal/domain"
)

// Snapshot is everything the interpreter needs about one person, loaded up
// front so evaluation itself is a pure function.
type Snapshot struct {
	Person        *domain.Person
	Features      *domain.PersonFeatures
	Subscriptions []domain.Subscription
	// EventCounts holds the pre-fetched counts for the event-count clauses
	// under evaluation, keyed by (name, window).
	EventCounts map[EventCountKey]int
	Now         time.Time
}

// EventCountKey identifies one event-count aggregation.
type EventCountKey struct {
	Name       string
	WindowDays int
}

// Matches evaluates the criteria against the snapshot. Pure, no side
// effects. All present clauses must pass.
func Matches(snap Snapshot, c Criteria) bool {
	for _, fc := range c.Features {
		if !matchFeature(snap, fc) {
			return false
		}
	}
	if c.Subscription != nil && !matchSubscription(snap.Subscriptions, *c.Subscription) {
		return false
	}
	for _, ec := range c.Events {
		if !matchEventCount(snap, ec) {
			return false
		}
	}
	if c.Person != nil && !matchPerson(snap.Person, *c.Person) {
		return false
	}
	return true
}

func matchFeature(snap Snapshot, fc FeatureClause) bool {
	if snap.Features == nil {
		return false
	}
	f := snap.Features

	var v int
	switch fc.Field {
	case FieldActiveDays:
		v = f.ActiveDays
	case FieldCoreActions:
		v = f.CoreActions
	case FieldPricingViews:
		v = f.PricingViews
	case FieldEmailOpens:
		v = f.EmailOpens
	case FieldEmailClicks:
		v = f.EmailClicks
	case FieldDaysSinceActive:
		if f.LastActiveAt == nil {
			return false
		}
		v = int(snap.Now.Sub(*f.LastActiveAt).Hours() / 24)
	default:
		return false
	}

	if fc.Min != nil && v < *fc.Min {
		return false
	}
	if fc.Max != nil && v > *fc.Max {
		return false
	}
	if fc.Equals != nil && v != *fc.Equals {
		return false
	}
	return true
}

// matchSubscription passes when at least one subscription satisfies every
// present sub-condition.
func matchSubscription(subs []domain.Subscription, sc SubscriptionClause) bool {
	for _, sub := range subs {
		if len(sc.Statuses) > 0 && !containsStatus(sc.Statuses, sub.Status) {
			continue
		}
		if len(sc.Plans) > 0 && !containsString(sc.Plans, sub.PlanName) {
			continue
		}
		if sc.MinMRRCents != nil && sub.MRRCents < *sc.MinMRRCents {
			continue
		}
		if sc.MaxMRRCents != nil && sub.MRRCents > *sc.MaxMRRCents {
			continue
		}
		return true
	}
	return false
}

func matchEventCount(snap Snapshot, ec EventCountClause) bool {
	count := snap.EventCounts[EventCountKey{Name: ec.EventName, WindowDays: ec.WindowDays}]
	if ec.Min != nil && count < *ec.Min {
		return false
	}
	if ec.Max != nil && count > *ec.Max {
		return false
	}
	return true
}

func matchPerson(p *domain.Person, pc PersonClause) bool {
	if p == nil {
		return false
	}
	if pc.HasEmail != nil && (p.Email != "") != *pc.HasEmail {
		return false
	}
	if pc.HasPhone != nil && (p.Phone != "") != *pc.HasPhone {
		return false
	}
	return true
}

func containsStatus(haystack []domain.SubscriptionStatus, needle domain.SubscriptionStatus) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
