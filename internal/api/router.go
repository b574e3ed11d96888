package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/tieline-bridge/internal/auth"
)

// defaultWSPath is used when the WebSocket path is not configured.
const defaultWSPath = "/ws"

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
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		r.Route("/codec", func(r chi.Router) {
			// Reads stay open so browser overlays can poll them
			r.Get("/state", s.handleGetState)
			r.Get("/overlay", s.handleGetOverlay)
			r.Get("/audio", s.handleGetAudio)

			// Control endpoints
			r.Group(func(r chi.Router) {
				r.Use(s.authMiddleware)

				r.With(s.requirePermission(auth.PermCodecControl)).Post("/mute", s.handleMute)
				r.With(s.requirePermission(auth.PermCodecControl)).Post("/profiles/{id}/activate", s.handleActivateProfile)
				r.With(s.requirePermission(auth.PermCodecControl)).Post("/connect", s.handleConnect)
				r.With(s.requirePermission(auth.PermCodecControl)).Post("/disconnect", s.handleDisconnect)
				r.With(s.requirePermission(auth.PermCodecReboot)).Post("/reboot", s.handleReboot)
			})
		})

		// WebSocket is read-only: clients can only subscribe to broadcasts
		r.Get(s.wsPath(), s.handleWebSocket)
	})

	return r
}

// wsPath returns the configured WebSocket route.
func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return defaultWSPath
	}
	return s.wsCfg.Path
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"status":  "ok",
		"version": s.version,
		"codec": map[string]any{
			"connected": s.codec.IsConnected(),
			"polling":   s.codec.IsPolling(),
		},
	}

	if s.health != nil {
		status, reason := s.health.Status()
		bridge := map[string]any{
			"status":         status,
			"uptime_seconds": int64(s.health.Uptime() / time.Second),
			"statistics":     s.health.Statistics(),
		}
		if reason != "" {
			bridge["reason"] = reason
		}
		resp["bridge"] = bridge
	}

	writeJSON(w, http.StatusOK, resp)
}
