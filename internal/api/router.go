package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-hotel/internal/auth"
)

// healthCheckTimeout bounds each component check in GET /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)
		r.Post("/auth/login", s.handleLogin)

		// Browsers cannot set headers on a WebSocket upgrade; the handler
		// authenticates with a ticket instead.
		r.Get("/ws", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/auth/me", s.handleMe)
			r.Post("/auth/ws-ticket", s.handleWSTicket)
			r.Post("/auth/password", s.handleChangePassword)

			r.Route("/rooms", func(r chi.Router) {
				r.With(s.requirePermission(auth.PermRoomRead)).Get("/", s.handleListRooms)
				r.With(s.requirePermission(auth.PermRoomManage)).Post("/", s.handleCreateRoom)
				r.With(s.requirePermission(auth.PermRoomRead)).Get("/{id}", s.handleGetRoom)
				r.With(s.requirePermission(auth.PermRoomUpdateStatus)).Put("/{id}/status", s.handleSetRoomStatus)
			})

			r.Route("/breakers", func(r chi.Router) {
				r.With(s.requirePermission(auth.PermBreakerRead)).Get("/", s.handleListBreakers)
				r.With(s.requirePermission(auth.PermBreakerManage)).Post("/", s.handleCreateBreaker)
				r.With(s.requirePermission(auth.PermBreakerRead)).Get("/stats", s.handleBreakerStats)
				r.With(s.requirePermission(auth.PermBreakerControl)).Post("/sync", s.handleSyncAll)

				r.Route("/{id}", func(r chi.Router) {
					r.With(s.requirePermission(auth.PermBreakerRead)).Get("/", s.handleGetBreaker)
					r.With(s.requirePermission(auth.PermBreakerManage)).Patch("/", s.handleUpdateBreaker)
					r.With(s.requirePermission(auth.PermBreakerManage)).Delete("/", s.handleDeactivateBreaker)
					r.With(s.requirePermission(auth.PermBreakerControl)).Post("/on", s.handleBreakerOn)
					r.With(s.requirePermission(auth.PermBreakerControl)).Post("/off", s.handleBreakerOff)
					r.With(s.requirePermission(auth.PermBreakerControl)).Post("/sync", s.handleSyncBreaker)
				})
			})

			r.Group(func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermBreakerRead))
				r.Get("/activity", s.handleListActivity)
				r.Get("/activity/export", s.handleExportActivity)
				r.Get("/queue", s.handleListQueue)
			})

			r.Route("/hub", func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermHubConfigure))
				r.Get("/config", s.handleGetHubConfig)
				r.Put("/config", s.handlePutHubConfig)
				r.Post("/test", s.handleTestHub)
				r.Get("/entities", s.handleListHubEntities)
			})

			r.With(s.requirePermission(auth.PermAuditRead)).Get("/audit", s.handleListAuditLogs)

			r.Route("/users", func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermUserManage))
				r.Get("/", s.handleListUsers)
				r.Post("/", s.handleCreateUser)
				r.Get("/{id}", s.handleGetUser)
				r.Patch("/{id}", s.handleUpdateUser)
			})
		})
	})

	return r
}

// handleHealth reports overall status plus each registered component.
// Any failing component makes the response 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	components := make(map[string]string, len(s.health))
	healthy := true
	for name, hc := range s.health {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := hc.HealthCheck(ctx)
		cancel()
		if err != nil {
			healthy = false
			components[name] = err.Error()
			continue
		}
		components[name] = "ok"
	}

	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":     status,
		"version":    s.version,
		"components": components,
	})
}
