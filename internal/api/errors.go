package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/gray-logic-hotel/internal/auth"
	"github.com/nerrad567/gray-logic-hotel/internal/breaker"
	"github.com/nerrad567/gray-logic-hotel/internal/gateway"
	"github.com/nerrad567/gray-logic-hotel/internal/room"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeUnauthorized     = "unauthorised"
	ErrCodeForbidden        = "forbidden"
	ErrCodeConflict         = "conflict"
	ErrCodeInternal         = "internal_error"
	ErrCodeValidation       = "validation_error"
	ErrCodeHubNotConfigured = "hub_not_configured"
	ErrCodeHubError         = "hub_error"
	ErrCodeUnavailable      = "service_unavailable"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, ErrCodeForbidden, message)
}

func writeConflict(w http.ResponseWriter, message string) {
	writeError(w, http.StatusConflict, ErrCodeConflict, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeServiceError maps a domain error to its HTTP status. Anything it does
// not recognise is logged and reported as 500 without leaking details.
func (s *Server) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, breaker.ErrBreakerNotFound),
		errors.Is(err, breaker.ErrQueueItemNotFound),
		errors.Is(err, room.ErrRoomNotFound),
		errors.Is(err, auth.ErrUserNotFound):
		writeNotFound(w, err.Error())

	case errors.Is(err, breaker.ErrBreakerExists),
		errors.Is(err, breaker.ErrRoomHasBreaker),
		errors.Is(err, breaker.ErrBreakerInactive),
		errors.Is(err, breaker.ErrNotClaimable),
		errors.Is(err, room.ErrRoomExists),
		errors.Is(err, auth.ErrUsernameExists):
		writeConflict(w, err.Error())

	case errors.Is(err, breaker.ErrInvalidValue),
		errors.Is(err, room.ErrInvalidStatus),
		errors.Is(err, room.ErrInvalidNumber),
		errors.Is(err, gateway.ErrInvalidConfig),
		errors.Is(err, auth.ErrInvalidRole),
		errors.Is(err, auth.ErrInvalidUsername),
		errors.Is(err, auth.ErrPasswordTooShort):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())

	case errors.Is(err, gateway.ErrNotConfigured),
		errors.Is(err, gateway.ErrDecryption):
		writeError(w, http.StatusFailedDependency, ErrCodeHubNotConfigured, err.Error())

	case isHubError(err):
		writeError(w, http.StatusBadGateway, ErrCodeHubError, err.Error())

	default:
		s.logger.Error(op+" failed", "error", err)
		writeInternalError(w, op+" failed")
	}
}

// isHubError reports whether err came out of the gateway.
func isHubError(err error) bool {
	var gwErr *gateway.Error
	return errors.As(err, &gwErr) ||
		errors.Is(err, gateway.ErrConnection) ||
		errors.Is(err, gateway.ErrAuthentication) ||
		errors.Is(err, gateway.ErrTimeout) ||
		errors.Is(err, gateway.ErrAPI)
}
