package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes builds the router.
func SetupRoutes(h *Handlers, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check (no auth required)
	r.Get("/health", h.HealthCheck)

	// ESP webhook intake lives outside /api: the provider posts here.
	r.Post("/webhooks/email", h.EmailWebhook)

	r.Route("/api", func(r chi.Router) {
		r.Post("/identify", h.Identify)
		r.Post("/identity/link", h.LinkIdentity)

		r.Post("/track", h.Track)
		r.Post("/track/{source}", h.TrackSource)

		r.Route("/persons/{id}", func(r chi.Router) {
			r.Get("/", h.GetPerson)
			r.Get("/segments", h.GetPersonSegments)
		})

		r.Route("/segments", func(r chi.Router) {
			r.Get("/", h.ListSegments)
			r.Post("/", h.CreateSegment)
			r.Get("/{id}", h.GetSegment)
			r.Put("/{id}", h.UpdateSegment)
			r.Get("/{id}/stats", h.GetSegmentStats)
		})
	})

	return r
}
