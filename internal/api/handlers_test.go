package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchwell/growth-plane/internal/domain"
	"github.com/matchwell/growth-plane/internal/emailevents"
	"github.com/matchwell/growth-plane/internal/features"
	"github.com/matchwell/growth-plane/internal/identity"
	"github.com/matchwell/growth-plane/internal/ingest"
	"github.com/matchwell/growth-plane/internal/segments"
)

// memStore backs every repository interface for end-to-end handler tests.
type memStore struct {
	mu          sync.Mutex
	persons     map[uuid.UUID]*domain.Person
	links       map[string]*domain.IdentityLink
	events      []domain.Event
	featureRows map[uuid.UUID]*domain.PersonFeatures
	segments    map[uuid.UUID]*segments.Segment
	memberships map[uuid.UUID]map[uuid.UUID]bool
	subs        map[string]*domain.Subscription
	messages    map[string]*domain.EmailMessage
	emailEvents []domain.EmailEvent
}

func newMemStore() *memStore {
	return &memStore{
		persons:     make(map[uuid.UUID]*domain.Person),
		links:       make(map[string]*domain.IdentityLink),
		featureRows: make(map[uuid.UUID]*domain.PersonFeatures),
		segments:    make(map[uuid.UUID]*segments.Segment),
		memberships: make(map[uuid.UUID]map[uuid.UUID]bool),
		subs:        make(map[string]*domain.Subscription),
		messages:    make(map[string]*domain.EmailMessage),
	}
}

func linkKey(provider domain.IdentityProvider, externalID string) string {
	return string(provider) + ":" + externalID
}

// identity.Repository

func (m *memStore) GetPerson(_ context.Context, id uuid.UUID) (*domain.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.persons[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) GetPersonByEmail(_ context.Context, email string) (*domain.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.persons {
		if p.Email == email {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) CreatePerson(_ context.Context, p *domain.Person) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.persons[p.ID] = &cp
	return nil
}

func (m *memStore) UpdatePerson(_ context.Context, p *domain.Person) error {
	return m.CreatePerson(context.Background(), p)
}

func (m *memStore) GetLink(_ context.Context, provider domain.IdentityProvider, externalID string) (*domain.IdentityLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.links[linkKey(provider, externalID)]; ok {
		cp := *l
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) CreateLink(_ context.Context, l *domain.IdentityLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *l
	m.links[linkKey(l.Provider, l.ExternalID)] = &cp
	return nil
}

func (m *memStore) ListLinks(_ context.Context, personID uuid.UUID) ([]domain.IdentityLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.IdentityLink
	for _, l := range m.links {
		if l.PersonID == personID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (m *memStore) ListPersonIDs(_ context.Context) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]uuid.UUID, 0, len(m.persons))
	for id := range m.persons {
		out = append(out, id)
	}
	return out, nil
}

// ingest.Repository

func (m *memStore) CreateEvent(_ context.Context, ev *domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *ev)
	return nil
}

// ingest.SubscriptionStore

func (m *memStore) GetSubscriptionByExternalID(_ context.Context, externalID string) (*domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.subs[externalID]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) UpsertSubscription(_ context.Context, sub *domain.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sub
	m.subs[sub.ExternalID] = &cp
	return nil
}

// features.Repository

func (m *memStore) ListEventsByPerson(_ context.Context, personID uuid.UUID) ([]domain.Event, error) {
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

func (m *memStore) CountDistinctEventDays(_ context.Context, personID uuid.UUID) (int, error) {
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

func (m *memStore) CountEmailEvents(_ context.Context, personID uuid.UUID, typ domain.EmailEventType) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, ev := range m.emailEvents {
		msg, ok := m.messages[ev.ProviderMessageID]
		if ok && msg.PersonID != nil && *msg.PersonID == personID && ev.Type == typ {
			n++
		}
	}
	return n, nil
}

func (m *memStore) GetFeatures(_ context.Context, personID uuid.UUID) (*domain.PersonFeatures, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.featureRows[personID]; ok {
		cp := *f
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) UpsertFeatures(_ context.Context, f *domain.PersonFeatures) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *f
	m.featureRows[f.PersonID] = &cp
	return nil
}

func (m *memStore) ListActivePersonIDs(_ context.Context, days int) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	seen := make(map[uuid.UUID]bool)
	var out []uuid.UUID
	for _, ev := range m.events {
		if ev.PersonID == nil || seen[*ev.PersonID] {
			continue
		}
		if days > 0 && ev.OccurredAt.Before(cutoff) {
			continue
		}
		seen[*ev.PersonID] = true
		out = append(out, *ev.PersonID)
	}
	return out, nil
}

// segments.Repository

func (m *memStore) GetSegment(_ context.Context, id uuid.UUID) (*segments.Segment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.segments[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) ListSegments(_ context.Context) ([]segments.Segment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []segments.Segment
	for _, s := range m.segments {
		out = append(out, *s)
	}
	return out, nil
}

func (m *memStore) ListActiveSegments(_ context.Context) ([]segments.Segment, error) {
	all, _ := m.ListSegments(context.Background())
	var out []segments.Segment
	for _, s := range all {
		if s.Active {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) CreateSegment(_ context.Context, s *segments.Segment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.segments[s.ID] = &cp
	return nil
}

func (m *memStore) UpdateSegment(_ context.Context, s *segments.Segment) error {
	return m.CreateSegment(context.Background(), s)
}

func (m *memStore) ListMemberships(_ context.Context, personID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []uuid.UUID
	for segID := range m.memberships[personID] {
		out = append(out, segID)
	}
	return out, nil
}

func (m *memStore) AddMembership(_ context.Context, mem *segments.Membership) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.memberships[mem.PersonID] == nil {
		m.memberships[mem.PersonID] = make(map[uuid.UUID]bool)
	}
	m.memberships[mem.PersonID][mem.SegmentID] = true
	return nil
}

func (m *memStore) RemoveMembership(_ context.Context, personID, segmentID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.memberships[personID], segmentID)
	return nil
}

// segments.ProfileReader extras

func (m *memStore) ListSubscriptions(_ context.Context, personID uuid.UUID) ([]domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Subscription
	for _, s := range m.subs {
		if s.PersonID == personID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memStore) CountEventsNamed(_ context.Context, personID uuid.UUID, name string, windowDays int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().UTC().AddDate(0, 0, -windowDays)
	n := 0
	for _, ev := range m.events {
		if ev.PersonID == nil || *ev.PersonID != personID || ev.Name != name {
			continue
		}
		if windowDays > 0 && ev.OccurredAt.Before(cutoff) {
			continue
		}
		n++
	}
	return n, nil
}

// emailevents.Repository

func (m *memStore) GetMessageByProviderID(_ context.Context, id string) (*domain.EmailMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg, ok := m.messages[id]; ok {
		cp := *msg
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) CreateMessage(_ context.Context, msg *domain.EmailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *msg
	m.messages[msg.ProviderMessageID] = &cp
	return nil
}

func (m *memStore) AttachPerson(_ context.Context, id string, personID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg, ok := m.messages[id]; ok {
		msg.PersonID = &personID
	}
	return nil
}

func (m *memStore) CreateEmailEvent(ev *domain.EmailEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emailEvents = append(m.emailEvents, *ev)
}

func (m *memStore) ListEventsByMessage(_ context.Context, id string) ([]domain.EmailEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.EmailEvent
	for _, ev := range m.emailEvents {
		if ev.ProviderMessageID == id {
			out = append(out, ev)
		}
	}
	return out, nil
}

// emailStore adapts memStore to emailevents.Repository (CreateEvent clashes
// with the event-store method name).
type emailStore struct{ *memStore }

func (e emailStore) CreateEvent(_ context.Context, ev *domain.EmailEvent) error {
	e.memStore.CreateEmailEvent(ev)
	return nil
}

type emailResolver struct{ id *identity.Service }

func (r emailResolver) ResolvePersonByEmail(ctx context.Context, email string) (uuid.UUID, bool, error) {
	p, err := r.id.GetPersonByEmail(ctx, email)
	if err != nil || p == nil {
		return uuid.Nil, false, err
	}
	return p.ID, true, nil
}

func newTestRouter(t *testing.T) (*memStore, http.Handler) {
	t.Helper()
	store := newMemStore()

	idSvc := identity.NewService(store)
	featSvc := features.NewService(store)
	segSvc := segments.NewService(store, store, nil)
	ingestSvc := ingest.NewService(store, store, idSvc, featSvc, segSvc, nil)
	emailSvc := emailevents.NewService(emailStore{store}, emailResolver{idSvc}, featSvc)

	h := NewHandlers(idSvc, ingestSvc, featSvc, segSvc, emailSvc, nil)
	return store, SetupRoutes(h, nil)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	_, router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestIdentifyThenProfile(t *testing.T) {
	_, router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/identify", map[string]interface{}{
		"email": "ana@example.com",
		"name":  "Ana",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var person domain.Person
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &person))
	assert.Equal(t, "ana@example.com", person.Email)

	rec = doJSON(t, router, http.MethodGet, "/api/persons/"+person.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var profile struct {
		Person   domain.Person `json:"person"`
		Segments []uuid.UUID   `json:"segments"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	assert.Equal(t, person.ID, profile.Person.ID)
	assert.Empty(t, profile.Segments)
}

func TestGetPersonNotFound(t *testing.T) {
	_, router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/api/persons/"+uuid.New().String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/persons/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrackWebEventDerivesFeatures(t *testing.T) {
	store, router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/identify", map[string]interface{}{"email": "ana@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	var person domain.Person
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &person))

	rec = doJSON(t, router, http.MethodPost, "/api/track/web", map[string]interface{}{
		"name":      "pricing_view",
		"person_id": person.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	f := store.featureRows[person.ID]
	require.NotNil(t, f)
	assert.Equal(t, 1, f.PricingViews)
	assert.Equal(t, 1, f.ActiveDays)
}

func TestTrackRejectsMissingSource(t *testing.T) {
	_, router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodPost, "/api/track", map[string]interface{}{"name": "pricing_view"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/track/fax", map[string]interface{}{"name": "pricing_view"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSegmentLifecycleOverHTTP(t *testing.T) {
	store, router := newTestRouter(t)

	// Create the segment: three or more core actions.
	rec := doJSON(t, router, http.MethodPost, "/api/segments", map[string]interface{}{
		"name":   "engaged-members",
		"active": true,
		"criteria": map[string]interface{}{
			"features": []map[string]interface{}{
				{"field": "core_actions", "min": 3},
			},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var seg segments.Segment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &seg))
	require.NotEqual(t, uuid.Nil, seg.ID)

	rec = doJSON(t, router, http.MethodPost, "/api/identify", map[string]interface{}{"email": "ana@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	var person domain.Person
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &person))

	// Two core actions: not yet a member.
	for i := 0; i < 2; i++ {
		rec = doJSON(t, router, http.MethodPost, "/api/track/web", map[string]interface{}{
			"name": "message_sent", "person_id": person.ID,
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	assert.False(t, store.memberships[person.ID][seg.ID])

	// Third core action crosses the threshold.
	rec = doJSON(t, router, http.MethodPost, "/api/track/web", map[string]interface{}{
		"name": "payment_completed", "person_id": person.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, store.memberships[person.ID][seg.ID])

	rec = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/persons/%s/segments", person.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), seg.ID.String())

	rec = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/segments/%s/stats", seg.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"member_count":1`)
}

func TestEmailWebhookBumpsEngagement(t *testing.T) {
	store, router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/identify", map[string]interface{}{"email": "ana@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	var person domain.Person
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &person))

	rec = doJSON(t, router, http.MethodPost, "/webhooks/email", []map[string]interface{}{
		{"type": "open", "message_id": "mid-1", "recipient": "ana@example.com"},
		{"type": "unknown_kind", "message_id": "mid-1"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"received":2`)

	f := store.featureRows[person.ID]
	require.NotNil(t, f)
	assert.Equal(t, 1, f.EmailOpens)
}

func TestSegmentNotFoundPaths(t *testing.T) {
	_, router := newTestRouter(t)
	id := uuid.New().String()
	assert.Equal(t, http.StatusNotFound, doJSON(t, router, http.MethodGet, "/api/segments/"+id, nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, router, http.MethodGet, "/api/segments/"+id+"/stats", nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, router, http.MethodPut, "/api/segments/"+id, map[string]interface{}{"name": "x"}).Code)
}
