package features_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/matchwell/growth-plane/internal/domain"
	"github.com/matchwell/growth-plane/internal/features"
)

// memRepo is an in-memory feature repository for unit testing.
type memRepo struct {
	mu          sync.Mutex
	events      []domain.Event
	emailEvents map[uuid.UUID]map[domain.EmailEventType]int
	rows        map[uuid.UUID]*domain.PersonFeatures
}

func newMemRepo() *memRepo {
	return &memRepo{
		emailEvents: make(map[uuid.UUID]map[domain.EmailEventType]int),
		rows:        make(map[uuid.UUID]*domain.PersonFeatures),
	}
}

func (m *memRepo) addEvent(personID uuid.UUID, name string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, domain.Event{
		ID: uuid.New(), PersonID: &personID, Name: name,
		Source: domain.SourceWeb, OccurredAt: at,
	})
}

func (m *memRepo) ListEventsByPerson(_ context.Context, personID uuid.UUID) ([]domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Event
	for _, ev := range m.events {
		if ev.PersonID != nil && *ev.PersonID == personID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *memRepo) CountDistinctEventDays(_ context.Context, personID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	days := make(map[string]bool)
	for _, ev := range m.events {
		if ev.PersonID != nil && *ev.PersonID == personID {
			days[ev.OccurredAt.UTC().Format("2006-01-02")] = true
		}
	}
	return len(days), nil
}

func (m *memRepo) CountEmailEvents(_ context.Context, personID uuid.UUID, typ domain.EmailEventType) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.emailEvents[personID][typ], nil
}

func (m *memRepo) GetFeatures(_ context.Context, personID uuid.UUID) (*domain.PersonFeatures, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.rows[personID]
	if !ok {
		return nil, nil
	}
	cp := *f
	return &cp, nil
}

func (m *memRepo) UpsertFeatures(_ context.Context, f *domain.PersonFeatures) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *f
	m.rows[f.PersonID] = &cp
	return nil
}

func (m *memRepo) ListActivePersonIDs(_ context.Context, _ int) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[uuid.UUID]bool)
	var out []uuid.UUID
	for _, ev := range m.events {
		if ev.PersonID != nil && !seen[*ev.PersonID] {
			seen[*ev.PersonID] = true
			out = append(out, *ev.PersonID)
		}
	}
	return out, nil
}

func day(d int, hour int) time.Time {
	return time.Date(2026, 8, d, hour, 0, 0, 0, time.UTC)
}

func TestComputePersonFeatures(t *testing.T) {
	repo := newMemRepo()
	svc := features.NewService(repo)
	personID := uuid.New()

	// Three distinct calendar days, two core actions, one pricing view.
	repo.addEvent(personID, "pricing_view", day(1, 9))
	repo.addEvent(personID, "message_sent", day(1, 17))
	repo.addEvent(personID, "profile_completed", day(2, 12))
	repo.addEvent(personID, "page_view", day(3, 8))
	repo.emailEvents[personID] = map[domain.EmailEventType]int{
		domain.EmailOpened:  4,
		domain.EmailClicked: 1,
	}

	f, err := svc.ComputePersonFeatures(context.Background(), personID)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if f.ActiveDays != 3 {
		t.Errorf("active days: want 3, got %d", f.ActiveDays)
	}
	if f.CoreActions != 2 {
		t.Errorf("core actions: want 2, got %d", f.CoreActions)
	}
	if f.PricingViews != 1 {
		t.Errorf("pricing views: want 1, got %d", f.PricingViews)
	}
	if f.EmailOpens != 4 || f.EmailClicks != 1 {
		t.Errorf("email engagement: want 4/1, got %d/%d", f.EmailOpens, f.EmailClicks)
	}
	if f.LastActiveAt == nil || !f.LastActiveAt.Equal(day(3, 8)) {
		t.Errorf("last active: want %v, got %v", day(3, 8), f.LastActiveAt)
	}
}

func TestComputeNoQualifyingEvents(t *testing.T) {
	repo := newMemRepo()
	svc := features.NewService(repo)
	personID := uuid.New()
	repo.addEvent(personID, "page_view", day(5, 10))

	f, err := svc.ComputePersonFeatures(context.Background(), personID)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if f.CoreActions != 0 {
		t.Errorf("core actions: want 0, got %d", f.CoreActions)
	}
	if f.ActiveDays != 1 {
		t.Errorf("active days: want 1, got %d", f.ActiveDays)
	}
}

// Incremental updates after each event must agree with one full recompute
// over the whole sequence.
func TestIncrementalMatchesFullRecompute(t *testing.T) {
	type step struct {
		name string
		at   time.Time
	}
	seq := []step{
		{"pricing_view", day(1, 9)},
		{"message_sent", day(1, 10)},
		{"message_sent", day(1, 11)},
		{"payment_completed", day(2, 9)},
		{"page_view", day(2, 15)},
		{"pricing_page_viewed", day(4, 20)},
	}

	incRepo := newMemRepo()
	incSvc := features.NewService(incRepo)
	personID := uuid.New()

	ctx := context.Background()
	for _, st := range seq {
		incRepo.addEvent(personID, st.name, st.at)
		if _, err := incSvc.IncrementalUpdate(ctx, personID, st.name, st.at); err != nil {
			t.Fatalf("incremental update: %v", err)
		}
	}
	inc, _ := incSvc.GetFeatures(ctx, personID)

	fullRepo := newMemRepo()
	fullSvc := features.NewService(fullRepo)
	for _, st := range seq {
		fullRepo.addEvent(personID, st.name, st.at)
	}
	full, err := fullSvc.ComputePersonFeatures(ctx, personID)
	if err != nil {
		t.Fatalf("full recompute: %v", err)
	}

	if inc.CoreActions != full.CoreActions {
		t.Errorf("core actions diverged: inc=%d full=%d", inc.CoreActions, full.CoreActions)
	}
	if inc.PricingViews != full.PricingViews {
		t.Errorf("pricing views diverged: inc=%d full=%d", inc.PricingViews, full.PricingViews)
	}
	if inc.ActiveDays != full.ActiveDays {
		t.Errorf("active days diverged: inc=%d full=%d", inc.ActiveDays, full.ActiveDays)
	}
	if !inc.LastActiveAt.Equal(*full.LastActiveAt) {
		t.Errorf("last active diverged: inc=%v full=%v", inc.LastActiveAt, full.LastActiveAt)
	}
}

func TestBumpEmailEngagement(t *testing.T) {
	repo := newMemRepo()
	svc := features.NewService(repo)
	personID := uuid.New()
	repo.addEvent(personID, "page_view", day(1, 9))

	ctx := context.Background()
	if _, err := svc.ComputePersonFeatures(ctx, personID); err != nil {
		t.Fatalf("compute: %v", err)
	}
	if err := svc.BumpEmailEngagement(ctx, personID, domain.EmailOpened); err != nil {
		t.Fatalf("bump open: %v", err)
	}
	if err := svc.BumpEmailEngagement(ctx, personID, domain.EmailBounced); err != nil {
		t.Fatalf("bump bounce: %v", err)
	}

	f, _ := svc.GetFeatures(ctx, personID)
	if f.EmailOpens != 1 {
		t.Errorf("email opens: want 1, got %d", f.EmailOpens)
	}
	if f.EmailClicks != 0 {
		t.Errorf("email clicks: want 0, got %d", f.EmailClicks)
	}
}

// failingRepo wraps memRepo and fails event listing for one person, to prove
// batch isolation.
type failingRepo struct {
	*memRepo
	failFor uuid.UUID
}

func (f *failingRepo) ListEventsByPerson(ctx context.Context, personID uuid.UUID) ([]domain.Event, error) {
	if personID == f.failFor {
		return nil, context.DeadlineExceeded
	}
	return f.memRepo.ListEventsByPerson(ctx, personID)
}

func TestBatchComputeIsolatesFailures(t *testing.T) {
	base := newMemRepo()
	good1, bad, good2 := uuid.New(), uuid.New(), uuid.New()
	base.addEvent(good1, "message_sent", day(1, 9))
	base.addEvent(bad, "message_sent", day(1, 9))
	base.addEvent(good2, "message_sent", day(1, 9))

	svc := features.NewService(&failingRepo{memRepo: base, failFor: bad})
	res := svc.BatchCompute(context.Background(), []uuid.UUID{good1, bad, good2})
	if res.Computed != 2 {
		t.Errorf("computed: want 2, got %d", res.Computed)
	}
	if res.Failed != 1 {
		t.Errorf("failed: want 1, got %d", res.Failed)
	}
}
