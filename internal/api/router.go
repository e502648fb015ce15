package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Get("/stats", s.handleDeviceStats)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)

				// Remote actions
				r.Group(func(r chi.Router) {
					r.Use(s.rateLimitMiddleware)
					r.Post("/sound", s.handlePlaySound)
					r.Put("/lost-mode", s.handleLostMode)
					r.Post("/wipe", s.handleWipe)
				})
			})
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", s.handleListNotifications)
			r.Delete("/{id}", s.handleDismissNotification)
		})

		r.Get(wsRoute(s.wsCfg.Path), s.handleWebSocket)
	})

	return r
}

// wsRoute returns the WebSocket route relative to /api/v1.
func wsRoute(path string) string {
	if path == "" {
		return "/ws"
	}
	return path
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
