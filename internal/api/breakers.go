package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-hotel/internal/audit"
	"github.com/nerrad567/gray-logic-hotel/internal/breaker"
	"github.com/nerrad567/gray-logic-hotel/internal/gateway"
)

type createBreakerRequest struct {
	EntityID           string `json:"entity_id"`
	Name               string `json:"name"`
	RoomID             string `json:"room_id,omitempty"`
	AutoControlEnabled *bool  `json:"auto_control_enabled,omitempty"`
}

type updateBreakerRequest struct {
	Name               *string `json:"name,omitempty"`
	RoomID             *string `json:"room_id,omitempty"`
	AutoControlEnabled *bool   `json:"auto_control_enabled,omitempty"`
}

// breakerView adds the derived alert flag to a breaker.
type breakerView struct {
	breaker.Breaker
	InAlert bool `json:"in_alert"`
}

// commandResponse is returned by the on/off endpoints.
type commandResponse struct {
	Success  bool                  `json:"success"`
	Breaker  *breakerView          `json:"breaker,omitempty"`
	Item     breaker.QueueItem     `json:"queue_item"`
	Activity breaker.ActivityEntry `json:"activity"`
	Error    string                `json:"error,omitempty"`
}

func (s *Server) view(b *breaker.Breaker) *breakerView {
	return &breakerView{Breaker: *b, InAlert: b.InAlert(s.breakers.AlertThreshold())}
}

// handleListBreakers returns breakers.
//
// Query parameters: room_id, auto (true for auto-controlled only),
// include_inactive, alert (true for breakers at or over the error threshold).
func (s *Server) handleListBreakers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := breaker.Filter{RoomID: q.Get("room_id")}
	filter.IncludeInactive, _ = strconv.ParseBool(q.Get("include_inactive")) //nolint:errcheck // absent means false
	filter.AutoOnly, _ = strconv.ParseBool(q.Get("auto"))                    //nolint:errcheck // absent means false
	alertOnly, _ := strconv.ParseBool(q.Get("alert"))                        //nolint:errcheck // absent means false

	list, err := s.breakers.List(r.Context(), filter, alertOnly)
	if err != nil {
		s.writeServiceError(w, "list breakers", err)
		return
	}

	views := make([]*breakerView, 0, len(list))
	for i := range list {
		views = append(views, s.view(&list[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"breakers": views,
		"count":    len(views),
	})
}

func (s *Server) handleCreateBreaker(w http.ResponseWriter, r *http.Request) {
	var req createBreakerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	auto := true
	if req.AutoControlEnabled != nil {
		auto = *req.AutoControlEnabled
	}
	b, err := s.breakers.Create(r.Context(), breaker.CreateRequest{
		EntityID:           req.EntityID,
		Name:               req.Name,
		RoomID:             req.RoomID,
		AutoControlEnabled: auto,
	})
	if err != nil {
		s.writeServiceError(w, "create breaker", err)
		return
	}

	s.auditLog(r, audit.ActionCreate, audit.EntityBreaker, b.ID, map[string]any{
		"entity_id": b.EntityID,
		"room_id":   b.RoomID,
	})
	writeJSON(w, http.StatusCreated, s.view(b))
}

func (s *Server) handleGetBreaker(w http.ResponseWriter, r *http.Request) {
	b, err := s.breakers.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, "get breaker", err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(b))
}

func (s *Server) handleUpdateBreaker(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateBreakerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	b, err := s.breakers.Update(r.Context(), id, breaker.UpdateRequest{
		Name:               req.Name,
		RoomID:             req.RoomID,
		AutoControlEnabled: req.AutoControlEnabled,
	})
	if err != nil {
		s.writeServiceError(w, "update breaker", err)
		return
	}

	details := map[string]any{}
	if req.Name != nil {
		details["name"] = *req.Name
	}
	if req.RoomID != nil {
		details["room_id"] = *req.RoomID
	}
	if req.AutoControlEnabled != nil {
		details["auto_control_enabled"] = *req.AutoControlEnabled
	}
	s.auditLog(r, audit.ActionUpdate, audit.EntityBreaker, id, details)
	writeJSON(w, http.StatusOK, s.view(b))
}

// handleDeactivateBreaker soft-deletes a breaker and cancels its pending work.
func (s *Server) handleDeactivateBreaker(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.breakers.Deactivate(r.Context(), id); err != nil {
		s.writeServiceError(w, "deactivate breaker", err)
		return
	}
	s.auditLog(r, audit.ActionDeactivate, audit.EntityBreaker, id, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBreakerOn(w http.ResponseWriter, r *http.Request) {
	s.controlBreaker(w, r, breaker.StateOn)
}

func (s *Server) handleBreakerOff(w http.ResponseWriter, r *http.Request) {
	s.controlBreaker(w, r, breaker.StateOff)
}

// controlBreaker queues a manual command and executes it inline. A hub
// failure still leaves an activity entry and a queue item that the drain
// job retries, so the 502 body carries both.
func (s *Server) controlBreaker(w http.ResponseWriter, r *http.Request, target breaker.State) {
	id := chi.URLParam(r, "id")

	item, err := s.breakers.RequestControl(r.Context(), id, target, callerID(r))
	if err != nil {
		s.writeServiceError(w, "queue command", err)
		return
	}

	result, err := s.reconciler.Execute(r.Context(), item.ID)
	if err != nil {
		s.writeServiceError(w, "execute command", err)
		return
	}

	s.auditLog(r, audit.ActionCommand, audit.EntityBreaker, id, map[string]any{
		"target":        target,
		"queue_item_id": item.ID,
		"outcome":       result.Activity.Outcome,
	})

	resp := commandResponse{
		Success:  result.Err == nil,
		Item:     result.Item,
		Activity: result.Activity,
	}
	if b, err := s.breakers.Get(r.Context(), id); err == nil {
		resp.Breaker = s.view(b)
	}
	if result.Err != nil {
		resp.Error = result.Err.Error()
		writeJSON(w, commandFailureStatus(result.Err), resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// commandFailureStatus is 424 when the hub is not usable at all and 502 for
// a failed call.
func commandFailureStatus(err error) int {
	if errors.Is(err, gateway.ErrNotConfigured) || errors.Is(err, gateway.ErrDecryption) {
		return http.StatusFailedDependency
	}
	return http.StatusBadGateway
}

// handleSyncBreaker polls one breaker's live state.
func (s *Server) handleSyncBreaker(w http.ResponseWriter, r *http.Request) {
	b, err := s.reconciler.SyncOne(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, "sync breaker", err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(b))
}

// handleSyncAll runs a full state sync now. A sync already in progress is
// reported as skipped rather than queued.
func (s *Server) handleSyncAll(w http.ResponseWriter, r *http.Request) {
	report, err := s.reconciler.SyncStates(r.Context())
	if err != nil {
		s.writeServiceError(w, "sync breakers", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleBreakerStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.breakers.Stats(r.Context())
	if err != nil {
		s.writeServiceError(w, "breaker stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
