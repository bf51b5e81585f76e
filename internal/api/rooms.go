package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-hotel/internal/audit"
	"github.com/nerrad567/gray-logic-hotel/internal/room"
)

type createRoomRequest struct {
	Number        string     `json:"number"`
	Floor         int        `json:"floor"`
	Type          string     `json:"type"`
	Status        string     `json:"status,omitempty"`
	CheckoutDueAt *time.Time `json:"checkout_due_at,omitempty"`
}

type setRoomStatusRequest struct {
	Status string `json:"status"`
	// CheckoutDueAt is recorded before the status change when present;
	// ClearCheckoutDue removes it.
	CheckoutDueAt    *time.Time `json:"checkout_due_at,omitempty"`
	ClearCheckoutDue bool       `json:"clear_checkout_due,omitempty"`
}

// handleListRooms returns rooms, optionally filtered by ?status= and ?floor=.
func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	var filter room.Filter
	q := r.URL.Query()
	if v := q.Get("status"); v != "" {
		st, err := room.ParseStatus(v)
		if err != nil {
			s.writeServiceError(w, "list rooms", err)
			return
		}
		filter.Status = st
	}
	if v := q.Get("floor"); v != "" {
		floor, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "floor must be an integer")
			return
		}
		filter.Floor = &floor
	}

	rooms, err := s.rooms.List(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, "list rooms", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"rooms": rooms,
		"count": len(rooms),
	})
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	rm := &room.Room{
		Number:        req.Number,
		Floor:         req.Floor,
		Type:          req.Type,
		CheckoutDueAt: req.CheckoutDueAt,
	}
	if req.Status != "" {
		st, err := room.ParseStatus(req.Status)
		if err != nil {
			s.writeServiceError(w, "create room", err)
			return
		}
		rm.Status = st
	}

	if err := s.rooms.Create(r.Context(), rm); err != nil {
		s.writeServiceError(w, "create room", err)
		return
	}
	writeJSON(w, http.StatusCreated, rm)
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	rm, err := s.rooms.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, "get room", err)
		return
	}
	writeJSON(w, http.StatusOK, rm)
}

// handleSetRoomStatus changes a room's status. The breaker automation
// reacts through the room service's listeners, not through this handler.
func (s *Server) handleSetRoomStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req setRoomStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	status, err := room.ParseStatus(req.Status)
	if err != nil {
		s.writeServiceError(w, "set room status", err)
		return
	}

	before, err := s.rooms.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, "set room status", err)
		return
	}

	if req.CheckoutDueAt != nil || req.ClearCheckoutDue {
		if err := s.rooms.SetCheckoutDue(r.Context(), id, req.CheckoutDueAt); err != nil {
			s.writeServiceError(w, "set checkout due", err)
			return
		}
	}

	rm, err := s.rooms.SetStatus(r.Context(), id, status, "api")
	if err != nil {
		s.writeServiceError(w, "set room status", err)
		return
	}

	if before.Status != rm.Status {
		s.auditLog(r, audit.ActionStatus, audit.EntityRoom, id, map[string]any{
			"from": before.Status,
			"to":   rm.Status,
		})
	}
	writeJSON(w, http.StatusOK, rm)
}
