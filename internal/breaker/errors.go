package breaker

import (
	"context"
	"errors"
)

var (
	// ErrBreakerNotFound is returned when a breaker ID does not exist.
	ErrBreakerNotFound = errors.New("breaker: not found")

	// ErrBreakerExists is returned when the hub entity is already registered.
	ErrBreakerExists = errors.New("breaker: entity already registered")

	// ErrRoomHasBreaker is returned when a room already has an active breaker.
	ErrRoomHasBreaker = errors.New("breaker: room already has an active breaker")

	// ErrBreakerInactive is returned when controlling a deactivated breaker.
	ErrBreakerInactive = errors.New("breaker: inactive")

	// ErrQueueItemNotFound is returned when a queue item ID does not exist.
	ErrQueueItemNotFound = errors.New("breaker: queue item not found")

	// ErrNotClaimable is returned when a queue item is no longer pending.
	ErrNotClaimable = errors.New("breaker: queue item not claimable")

	// ErrInvalidValue is returned for unknown enum values and bad input.
	ErrInvalidValue = errors.New("breaker: invalid value")
)

// isTimeout reports whether err came from a deadline. Gateway errors
// expose Timeout(); a bare context deadline counts too.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// isConfigurationError reports whether err means the hub is not usable at
// all (no configuration, undecryptable token) rather than one breaker
// misbehaving.
func isConfigurationError(err error) bool {
	var c interface{ ConfigurationError() bool }
	return errors.As(err, &c) && c.ConfigurationError()
}

// outcomeFor classifies a hub call result.
func outcomeFor(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case isTimeout(err):
		return OutcomeTimeout
	default:
		return OutcomeFailed
	}
}
