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
	r.Use(s.bodySizeLimitMiddleware)

	r.Get("/", s.handleRoot)

	// Device WebSocket. Devices are trusted by network placement; only
	// the admin routes carry token auth.
	r.Get("/ws", s.handleDeviceWebSocket)

	r.Route("/api", func(r chi.Router) {
		// No auth required
		r.Get("/health", s.handleHealth)
		r.Get("/info", s.handleInfo)
		r.Post("/auth/login", s.handleLogin)

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/status", s.handleStatus)
			r.Get("/client", s.handleListClients)
			r.Post("/client", s.handleClientAction)
			r.Get("/config", s.handleGetConfig)
			r.Post("/config", s.handleSaveConfig)
			r.Get("/release", s.handleRelease)
		})
	})

	return r
}

// handleRoot serves the landing page.
func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	//nolint:errcheck // Best-effort write to response
	w.Write([]byte("<head><title>Voice Gateway</title></head>"))
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

// handleInfo returns server identification for the admin UI.
func (s *Server) handleInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"gateway": map[string]any{
			"version": s.version,
		},
	})
}
