package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/nerrad567/gray-logic-hotel/internal/audit"
	"github.com/nerrad567/gray-logic-hotel/internal/gateway"
)

// defaultEntityDomain is the hub entity domain that breakers live in.
const defaultEntityDomain = "switch"

type putHubConfigRequest struct {
	BaseURL string `json:"base_url"`
	Token   string `json:"token"`
}

// hubConfigResponse never carries the token.
type hubConfigResponse struct {
	Configured bool               `json:"configured"`
	Config     *gateway.HubConfig `json:"config,omitempty"`
}

// handleGetHubConfig reports the active hub settings. A missing
// configuration is a normal state here, not an error.
func (s *Server) handleGetHubConfig(w http.ResponseWriter, r *http.Request) {
	if s.hubSettings == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "hub settings not available")
		return
	}

	cfg, err := s.hubSettings.Active(r.Context())
	if errors.Is(err, gateway.ErrNotConfigured) {
		writeJSON(w, http.StatusOK, hubConfigResponse{})
		return
	}
	if err != nil {
		s.writeServiceError(w, "get hub config", err)
		return
	}
	writeJSON(w, http.StatusOK, hubConfigResponse{Configured: true, Config: cfg})
}

// handlePutHubConfig replaces the active hub settings. The client drops its
// cached credentials so the next call uses the new ones.
func (s *Server) handlePutHubConfig(w http.ResponseWriter, r *http.Request) {
	if s.hubSettings == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "hub settings not available")
		return
	}

	var req putHubConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.BaseURL) == "" || strings.TrimSpace(req.Token) == "" {
		writeBadRequest(w, "base_url and token are required")
		return
	}

	cfg, err := s.hubSettings.Save(r.Context(), req.BaseURL, strings.TrimSpace(req.Token), callerID(r))
	if err != nil {
		s.writeServiceError(w, "save hub config", err)
		return
	}
	if s.hubClient != nil {
		s.hubClient.Reset()
	}

	s.auditLog(r, audit.ActionConfigure, audit.EntityHub, cfg.ID, map[string]any{
		"base_url": cfg.BaseURL,
	})
	writeJSON(w, http.StatusOK, hubConfigResponse{Configured: true, Config: cfg})
}

// handleTestHub checks that the stored settings reach the hub.
func (s *Server) handleTestHub(w http.ResponseWriter, r *http.Request) {
	if s.hubClient == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "hub client not available")
		return
	}

	info, err := s.hubClient.TestConnection(r.Context())
	if err != nil {
		s.writeServiceError(w, "test hub", err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// handleListHubEntities lists hub entities in ?domain= (default "switch"),
// for picking an entity when registering a breaker.
func (s *Server) handleListHubEntities(w http.ResponseWriter, r *http.Request) {
	if s.hubClient == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "hub client not available")
		return
	}

	domain := r.URL.Query().Get("domain")
	if domain == "" {
		domain = defaultEntityDomain
	}

	entities, err := s.hubClient.ListEntities(r.Context(), domain)
	if err != nil {
		s.writeServiceError(w, "list hub entities", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entities": entities,
		"count":    len(entities),
	})
}
