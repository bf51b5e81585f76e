package api

import (
	"net/http"

	"github.com/nerrad567/gray-logic-hotel/internal/breaker"
)

// handleListQueue returns command queue items, newest first.
//
// Query parameters: breaker_id, status, limit (default 50, max 500), offset.
func (s *Server) handleListQueue(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := breaker.QueueFilter{BreakerID: q.Get("breaker_id")}
	if v := q.Get("status"); v != "" {
		st, err := breaker.ParseQueueStatus(v)
		if err != nil {
			s.writeServiceError(w, "list queue", err)
			return
		}
		filter.Status = st
	}
	filter.Limit, filter.Offset = pageParams(r)

	items, total, err := s.breakers.Queue().List(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, "list queue", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":  items,
		"total":  total,
		"offset": filter.Offset,
	})
}
