package breaker

import (
	"context"

	"github.com/nerrad567/gray-logic-hotel/internal/room"
)

// Logger defines the logging interface used by Service and Reconciler.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Gateway talks to the home-automation hub. Implemented by gateway.Client.
type Gateway interface {
	// GetState returns the live state. A missing entity is StateUnavailable
	// with a nil error.
	GetState(ctx context.Context, entityID string) (State, error)
	// Invoke runs turn_on or turn_off, retrying internally.
	Invoke(ctx context.Context, entityID string, action Action) error
}

// RoomStatusLookup reads a room's current status. Implemented by room.Service.
type RoomStatusLookup interface {
	Status(ctx context.Context, roomID string) (room.Status, error)
}

// Notifier receives breaker events for fan-out. Implementations must not
// block for long; they run inline with the reconciler.
type Notifier interface {
	BreakerStateChanged(ctx context.Context, b Breaker, previous State)
	// BreakerAlert fires once, when the error streak reaches the threshold.
	BreakerAlert(ctx context.Context, b Breaker)
	CommandExecuted(ctx context.Context, entry ActivityEntry)
}

type noopNotifier struct{}

func (noopNotifier) BreakerStateChanged(context.Context, Breaker, State) {}
func (noopNotifier) BreakerAlert(context.Context, Breaker)               {}
func (noopNotifier) CommandExecuted(context.Context, ActivityEntry)      {}

// Metrics records time-series points. Implemented by the InfluxDB client.
type Metrics interface {
	RecordAction(breakerID string, action Action, outcome Outcome, responseMs int64)
	RecordState(breakerID string, state State, available bool)
}

type noopMetrics struct{}

func (noopMetrics) RecordAction(string, Action, Outcome, int64) {}
func (noopMetrics) RecordState(string, State, bool)             {}

// Lease guards the queue drain across processes. Implemented by
// redislock.Locker.
type Lease interface {
	// TryAcquire returns acquired=false when another holder owns the lease.
	TryAcquire(ctx context.Context) (release func(context.Context) error, acquired bool, err error)
}
