package segments

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/matchwell/growth-plane/internal/domain"
)

func intp(v int) *int       { return &v }
func int64p(v int64) *int64 { return &v }
func boolp(v bool) *bool    { return &v }

func baseSnapshot() Snapshot {
	last := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	return Snapshot{
		Person: &domain.Person{
			ID:    uuid.New(),
			Email: "someone@example.com",
		},
		Features: &domain.PersonFeatures{
			ActiveDays:   5,
			CoreActions:  3,
			PricingViews: 2,
			EmailOpens:   10,
			EmailClicks:  1,
			LastActiveAt: &last,
		},
		Subscriptions: []domain.Subscription{
			{Status: domain.SubscriptionActive, PlanName: "plus", MRRCents: 2900},
		},
		EventCounts: map[EventCountKey]int{
			{Name: "date_request_created", WindowDays: 30}: 4,
			{Name: "pricing_view", WindowDays: 0}:          2,
		},
		Now: time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC),
	}
}

func TestEmptyCriteriaMatchesEveryone(t *testing.T) {
	if !Matches(baseSnapshot(), Criteria{}) {
		t.Error("empty criteria must match")
	}
}

func TestFeatureThresholds(t *testing.T) {
	snap := baseSnapshot()

	cases := []struct {
		name   string
		clause FeatureClause
		want   bool
	}{
		{"min pass", FeatureClause{Field: FieldCoreActions, Min: intp(3)}, true},
		{"min fail", FeatureClause{Field: FieldCoreActions, Min: intp(4)}, false},
		{"max pass", FeatureClause{Field: FieldPricingViews, Max: intp(2)}, true},
		{"max fail", FeatureClause{Field: FieldPricingViews, Max: intp(1)}, false},
		{"equals pass", FeatureClause{Field: FieldActiveDays, Equals: intp(5)}, true},
		{"equals fail", FeatureClause{Field: FieldActiveDays, Equals: intp(6)}, false},
		{"days since active", FeatureClause{Field: FieldDaysSinceActive, Max: intp(7)}, true},
		{"days since active fail", FeatureClause{Field: FieldDaysSinceActive, Min: intp(30)}, false},
	}
	for _, tc := range cases {
		got := Matches(snap, Criteria{Features: []FeatureClause{tc.clause}})
		if got != tc.want {
			t.Errorf("%s: want %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestMissingFeaturesRowFailsFeatureClauses(t *testing.T) {
	snap := baseSnapshot()
	snap.Features = nil
	c := Criteria{Features: []FeatureClause{{Field: FieldCoreActions, Min: intp(0)}}}
	if Matches(snap, c) {
		t.Error("missing features row must fail any feature clause")
	}
}

func TestSubscriptionClause(t *testing.T) {
	snap := baseSnapshot()

	pass := Criteria{Subscription: &SubscriptionClause{
		Statuses:    []domain.SubscriptionStatus{domain.SubscriptionActive, domain.SubscriptionTrialing},
		Plans:       []string{"plus"},
		MinMRRCents: int64p(1000),
	}}
	if !Matches(snap, pass) {
		t.Error("matching subscription must pass")
	}

	// All sub-conditions must hold on the SAME subscription.
	snap.Subscriptions = []domain.Subscription{
		{Status: domain.SubscriptionActive, PlanName: "basic", MRRCents: 900},
		{Status: domain.SubscriptionCanceled, PlanName: "plus", MRRCents: 2900},
	}
	if Matches(snap, pass) {
		t.Error("sub-conditions satisfied only across different subscriptions must fail")
	}

	snap.Subscriptions = nil
	if Matches(snap, pass) {
		t.Error("zero subscriptions must fail the clause")
	}
}

func TestEventCountClause(t *testing.T) {
	snap := baseSnapshot()

	if !Matches(snap, Criteria{Events: []EventCountClause{
		{EventName: "date_request_created", WindowDays: 30, Min: intp(3)},
	}}) {
		t.Error("windowed event count min must pass")
	}
	if Matches(snap, Criteria{Events: []EventCountClause{
		{EventName: "date_request_created", WindowDays: 30, Max: intp(3)},
	}}) {
		t.Error("windowed event count above max must fail")
	}
	// Unknown events count as zero.
	if Matches(snap, Criteria{Events: []EventCountClause{
		{EventName: "never_seen", Min: intp(1)},
	}}) {
		t.Error("absent event count must fail a min clause")
	}
}

func TestPersonClause(t *testing.T) {
	snap := baseSnapshot()

	if !Matches(snap, Criteria{Person: &PersonClause{HasEmail: boolp(true), HasPhone: boolp(false)}}) {
		t.Error("person attribute clause must pass")
	}
	if Matches(snap, Criteria{Person: &PersonClause{HasPhone: boolp(true)}}) {
		t.Error("has-phone on a phoneless person must fail")
	}
}

func TestConjunctionSemantics(t *testing.T) {
	snap := baseSnapshot()
	c := Criteria{
		Features: []FeatureClause{{Field: FieldCoreActions, Min: intp(3)}},
		Events:   []EventCountClause{{EventName: "pricing_view", Min: intp(5)}},
	}
	if Matches(snap, c) {
		t.Error("one failing clause must fail the conjunction")
	}
}
