// Package notify fans breaker and room events out to live subscribers.
//
// The Dispatcher is registered as the breaker reconciler's Notifier and as
// a room status listener. Each event goes to the WebSocket hub (dashboards)
// and, when configured, to MQTT (building systems). Delivery is best
// effort: a failed publish is logged and never fails the operation that
// raised the event.
package notify

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-hotel/internal/breaker"
	"github.com/nerrad567/gray-logic-hotel/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-hotel/internal/room"
)

// WebSocket event types.
const (
	EventBreakerStateChanged    = "breaker.state_changed"
	EventBreakerAlert           = "breaker.alert"
	EventBreakerCommandExecuted = "breaker.command_executed"
	EventRoomStatusChanged      = "room.status_changed"
)

// Broadcaster delivers an event to every connected WebSocket client.
type Broadcaster interface {
	Broadcast(eventType string, payload any)
}

// Publisher sends a JSON message to an MQTT topic.
type Publisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// Logger is the logging interface used by the dispatcher.
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

// StateChange is the payload of breaker.state_changed and of the retained
// MQTT state message.
type StateChange struct {
	BreakerID     string        `json:"breaker_id"`
	EntityID      string        `json:"entity_id"`
	RoomID        string        `json:"room_id,omitempty"`
	State         breaker.State `json:"state"`
	PreviousState breaker.State `json:"previous_state"`
	IsAvailable   bool          `json:"is_available"`
	Timestamp     time.Time     `json:"timestamp"`
}

// Alert is the payload of breaker.alert.
type Alert struct {
	BreakerID         string    `json:"breaker_id"`
	EntityID          string    `json:"entity_id"`
	RoomID            string    `json:"room_id,omitempty"`
	ConsecutiveErrors int       `json:"consecutive_errors"`
	LastError         string    `json:"last_error,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// RoomChange is the payload of room.status_changed.
type RoomChange struct {
	RoomID    string      `json:"room_id"`
	From      room.Status `json:"from"`
	To        room.Status `json:"to"`
	Timestamp time.Time   `json:"timestamp"`
}

// Dispatcher implements breaker.Notifier and room.StatusListener.
type Dispatcher struct {
	ws     Broadcaster
	mqtt   Publisher
	logger Logger
	now    func() time.Time
}

// NewDispatcher creates a Dispatcher. Either sink may be nil.
func NewDispatcher(ws Broadcaster, pub Publisher) *Dispatcher {
	return &Dispatcher{
		ws:     ws,
		mqtt:   pub,
		logger: noopLogger{},
		now:    time.Now,
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	if logger != nil {
		d.logger = logger
	}
}

// BreakerStateChanged implements breaker.Notifier.
func (d *Dispatcher) BreakerStateChanged(_ context.Context, b breaker.Breaker, previous breaker.State) {
	event := StateChange{
		BreakerID:     b.ID,
		EntityID:      b.EntityID,
		RoomID:        b.RoomID,
		State:         b.CurrentState,
		PreviousState: previous,
		IsAvailable:   b.IsAvailable,
		Timestamp:     d.now().UTC(),
	}
	d.broadcast(EventBreakerStateChanged, event)
	d.publish(mqtt.Topics{}.BreakerState(b.ID), event, true)
}

// BreakerAlert implements breaker.Notifier.
func (d *Dispatcher) BreakerAlert(_ context.Context, b breaker.Breaker) {
	event := Alert{
		BreakerID:         b.ID,
		EntityID:          b.EntityID,
		RoomID:            b.RoomID,
		ConsecutiveErrors: b.ConsecutiveErrors,
		LastError:         b.LastError,
		Timestamp:         d.now().UTC(),
	}
	d.broadcast(EventBreakerAlert, event)
	d.publish(mqtt.Topics{}.BreakerAlert(b.ID), event, false)
}

// CommandExecuted implements breaker.Notifier. Commands are dashboard-only.
func (d *Dispatcher) CommandExecuted(_ context.Context, entry breaker.ActivityEntry) {
	d.broadcast(EventBreakerCommandExecuted, entry)
}

// OnRoomStatusChange implements room.StatusListener. It never fails.
func (d *Dispatcher) OnRoomStatusChange(_ context.Context, roomID string, from, to room.Status) error {
	d.broadcast(EventRoomStatusChanged, RoomChange{
		RoomID:    roomID,
		From:      from,
		To:        to,
		Timestamp: d.now().UTC(),
	})
	return nil
}

func (d *Dispatcher) broadcast(eventType string, payload any) {
	if d.ws != nil {
		d.ws.Broadcast(eventType, payload)
	}
}

func (d *Dispatcher) publish(topic string, payload any, retained bool) {
	if d.mqtt == nil {
		return
	}
	if err := d.mqtt.PublishJSON(topic, payload, retained); err != nil {
		d.logger.Warn("mqtt publish failed", "topic", topic, "error", err)
	}
}

var (
	_ breaker.Notifier    = (*Dispatcher)(nil)
	_ room.StatusListener = (*Dispatcher)(nil)
)
