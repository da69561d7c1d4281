package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/matchwell/growth-plane/internal/domain"
	"github.com/matchwell/growth-plane/internal/emailevents"
	"github.com/matchwell/growth-plane/internal/identity"
	"github.com/matchwell/growth-plane/internal/ingest"
	"github.com/matchwell/growth-plane/internal/pkg/httputil"
	"github.com/matchwell/growth-plane/internal/segments"
)

// FeatureReader serves the profile endpoint's features block.
type FeatureReader interface {
	GetFeatures(ctx context.Context, personID uuid.UUID) (*domain.PersonFeatures, error)
}

// QueueStats exposes the automation queue depth for the health endpoint.
type QueueStats interface {
	PendingCount(ctx context.Context) (int, error)
}

// Handlers holds the HTTP handlers and their service dependencies.
type Handlers struct {
	identity *identity.Service
	ingest   *ingest.Service
	features FeatureReader
	segments *segments.Service
	email    *emailevents.Service
	queue    QueueStats // may be nil
}

// NewHandlers creates the handler set.
func NewHandlers(idSvc *identity.Service, ingestSvc *ingest.Service, features FeatureReader, segSvc *segments.Service, emailSvc *emailevents.Service, queue QueueStats) *Handlers {
	return &Handlers{
		identity: idSvc,
		ingest:   ingestSvc,
		features: features,
		segments: segSvc,
		email:    emailSvc,
		queue:    queue,
	}
}

// HealthCheck reports service liveness and queue depth.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}
	if h.queue != nil {
		if pending, err := h.queue.PendingCount(r.Context()); err == nil {
			resp["automation_jobs_pending"] = pending
		}
	}
	httputil.OK(w, resp)
}

// Identify resolves or creates a person from supplied attributes.
func (h *Handlers) Identify(w http.ResponseWriter, r *http.Request) {
	var in identity.IdentifyInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	person, err := h.identity.GetOrCreatePerson(r.Context(), in)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, person)
}

type linkRequest struct {
	PersonID   uuid.UUID               `json:"person_id"`
	Provider   domain.IdentityProvider `json:"provider"`
	ExternalID string                  `json:"external_id"`
	Metadata   map[string]string       `json:"metadata,omitempty"`
}

// LinkIdentity attaches an external id to a person and reports the outcome,
// including conflicts with another person's existing link.
func (h *Handlers) LinkIdentity(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.PersonID == uuid.Nil || req.Provider == "" || req.ExternalID == "" {
		httputil.BadRequest(w, "person_id, provider and external_id are required")
		return
	}
	outcome, err := h.identity.LinkIdentity(r.Context(), req.PersonID, req.Provider, req.ExternalID, req.Metadata)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, outcome)
}

// Track ingests one event with an explicit source tag.
func (h *Handlers) Track(w http.ResponseWriter, r *http.Request) {
	var in ingest.TrackInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	if in.Source == "" {
		httputil.BadRequest(w, "source is required")
		return
	}
	h.trackWith(w, r, in, h.ingest.IngestEvent)
}

func (h *Handlers) trackWith(w http.ResponseWriter, r *http.Request, in ingest.TrackInput, fn func(context.Context, ingest.TrackInput) (*domain.Event, error)) {
	ev, err := fn(r.Context(), in)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.Created(w, ev)
}

// TrackSource ingests one event for the channel in the URL.
func (h *Handlers) TrackSource(w http.ResponseWriter, r *http.Request) {
	var in ingest.TrackInput
	if !httputil.Decode(w, r, &in) {
		return
	}

	switch chi.URLParam(r, "source") {
	case "web":
		h.trackWith(w, r, in, h.ingest.TrackWebEvent)
	case "app":
		h.trackWith(w, r, in, h.ingest.TrackAppEvent)
	case "email":
		h.trackWith(w, r, in, h.ingest.TrackEmailEvent)
	case "payment":
		h.trackWith(w, r, in, h.ingest.TrackPaymentEvent)
	case "booking":
		h.trackWith(w, r, in, h.ingest.TrackBookingEvent)
	default:
		httputil.BadRequest(w, "unknown source")
	}
}

// EmailWebhook receives a batch of ESP events. Always 200 on parse success
// so the ESP does not retry events we chose to skip.
func (h *Handlers) EmailWebhook(w http.ResponseWriter, r *http.Request) {
	var events []emailevents.ProviderEvent
	if !httputil.Decode(w, r, &events) {
		return
	}
	accepted := 0
	for _, ev := range events {
		if err := h.email.HandleProviderEvent(r.Context(), ev); err == nil {
			accepted++
		}
	}
	httputil.OK(w, map[string]int{"received": len(events), "accepted": accepted})
}

// personProfile is the combined profile response.
type personProfile struct {
	Person     *domain.Person                                       `json:"person"`
	Identities map[domain.IdentityProvider]identity.IdentityRecord `json:"identities"`
	Features   *domain.PersonFeatures                               `json:"features,omitempty"`
	Segments   []uuid.UUID                                          `json:"segments"`
}

// GetPerson returns the person with identities, features and segments.
func (h *Handlers) GetPerson(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.BadRequest(w, "invalid person id")
		return
	}
	person, err := h.identity.GetPerson(r.Context(), id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if person == nil {
		httputil.NotFound(w, "person not found")
		return
	}

	profile := personProfile{Person: person, Segments: []uuid.UUID{}}
	if ids, err := h.identity.GetPersonIdentities(r.Context(), id); err == nil {
		profile.Identities = ids
	}
	if f, err := h.features.GetFeatures(r.Context(), id); err == nil {
		profile.Features = f
	}
	if segs, err := h.segments.GetPersonSegments(r.Context(), id); err == nil && segs != nil {
		profile.Segments = segs
	}
	httputil.OK(w, profile)
}

// GetPersonSegments returns the ids of segments the person currently matches.
func (h *Handlers) GetPersonSegments(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.BadRequest(w, "invalid person id")
		return
	}
	segs, err := h.segments.GetPersonSegments(r.Context(), id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if segs == nil {
		segs = []uuid.UUID{}
	}
	httputil.OK(w, map[string]interface{}{"person_id": id, "segments": segs})
}

// ListSegments returns every segment.
func (h *Handlers) ListSegments(w http.ResponseWriter, r *http.Request) {
	segs, err := h.segments.Repo().ListSegments(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, segs)
}

// CreateSegment inserts a new segment definition.
func (h *Handlers) CreateSegment(w http.ResponseWriter, r *http.Request) {
	var seg segments.Segment
	if !httputil.Decode(w, r, &seg) {
		return
	}
	if seg.Name == "" {
		httputil.BadRequest(w, "name is required")
		return
	}
	if seg.ID == uuid.Nil {
		seg.ID = uuid.New()
	}
	now := time.Now().UTC()
	seg.CreatedAt = now
	seg.UpdatedAt = now
	if err := h.segments.Repo().CreateSegment(r.Context(), &seg); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.Created(w, seg)
}

// GetSegment returns one segment definition.
func (h *Handlers) GetSegment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.BadRequest(w, "invalid segment id")
		return
	}
	seg, err := h.segments.Repo().GetSegment(r.Context(), id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if seg == nil {
		httputil.NotFound(w, "segment not found")
		return
	}
	httputil.OK(w, seg)
}

// UpdateSegment replaces a segment definition.
func (h *Handlers) UpdateSegment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.BadRequest(w, "invalid segment id")
		return
	}
	existing, err := h.segments.Repo().GetSegment(r.Context(), id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if existing == nil {
		httputil.NotFound(w, "segment not found")
		return
	}

	var seg segments.Segment
	if !httputil.Decode(w, r, &seg) {
		return
	}
	seg.ID = id
	seg.CreatedAt = existing.CreatedAt
	seg.UpdatedAt = time.Now().UTC()
	if err := h.segments.Repo().UpdateSegment(r.Context(), &seg); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, seg)
}

// GetSegmentStats re-evaluates the segment against every person. Dashboard
// use; O(persons).
func (h *Handlers) GetSegmentStats(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.BadRequest(w, "invalid segment id")
		return
	}
	stats, err := h.segments.GetSegmentStats(r.Context(), id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if stats == nil {
		httputil.NotFound(w, "segment not found")
		return
	}
	httputil.OK(w, stats)
}
