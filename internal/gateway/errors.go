package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured is returned when no active hub configuration exists.
	ErrNotConfigured = errors.New("gateway: hub not configured")

	// ErrDecryption is returned when the stored token cannot be decrypted,
	// usually because HOTELCORE_SECRET_KEY changed.
	ErrDecryption = errors.New("gateway: token decryption failed")

	// ErrConnection covers DNS, refused connections and resets.
	ErrConnection = errors.New("gateway: connection failed")

	// ErrAuthentication is returned for 401 and 403 responses.
	ErrAuthentication = errors.New("gateway: authentication rejected")

	// ErrTimeout is returned when a call exceeds its deadline.
	ErrTimeout = errors.New("gateway: timeout")

	// ErrAPI is returned for any other non-2xx response.
	ErrAPI = errors.New("gateway: hub api error")

	// ErrInvalidConfig is returned when saving an unusable hub configuration.
	ErrInvalidConfig = errors.New("gateway: invalid hub configuration")
)

// Error describes a failed hub call.
type Error struct {
	Op         string // get_state, invoke, test_connection, list_entities
	EntityID   string
	StatusCode int // zero when no response was received
	Attempts   int
	Err        error
}

func (e *Error) Error() string {
	msg := "gateway: " + e.Op
	if e.EntityID != "" {
		msg += " " + e.EntityID
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	return msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Timeout reports whether the call ran out of time.
func (e *Error) Timeout() bool { return errors.Is(e.Err, ErrTimeout) }

// ConfigurationError reports whether the hub cannot be used at all, as
// opposed to one call failing.
func (e *Error) ConfigurationError() bool {
	return errors.Is(e.Err, ErrNotConfigured) || errors.Is(e.Err, ErrDecryption)
}

// retryable reports whether another attempt could succeed.
func (e *Error) retryable() bool {
	return !e.ConfigurationError() && !errors.Is(e.Err, ErrAuthentication)
}
