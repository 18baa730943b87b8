package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"meeting-sidekick/internal/observability"
)

// NewRouter constructs the HTTP router for the service.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(observability.RequestLogger)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Post("/sessions", h.CreateSession)
		r.Delete("/sessions/current", h.EndCurrentSession)

		r.Get("/recordings", h.ListRecordings)
		r.Route("/recordings/{sessionID}", func(r chi.Router) {
			r.Get("/", h.GetRecording)
			r.Delete("/", h.DeleteRecording)

			r.Get("/audio", h.GetAudio)
			r.Put("/audio", h.PutAudio)
			r.Put("/audio/chunks/{index}", h.PutChunk)
			r.Post("/audio/finalize", h.Finalize)

			r.Post("/transcribe", h.StartTranscription)
			r.Post("/export", h.StartExport)
		})

		r.Get("/jobs/{jobID}", h.GetJob)
		r.Get("/templates", h.ListTemplates)
	})

	return r
}
