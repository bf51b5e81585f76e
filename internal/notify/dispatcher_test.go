package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-hotel/internal/breaker"
	"github.com/nerrad567/gray-logic-hotel/internal/room"
)

type sentEvent struct {
	eventType string
	payload   any
}

type fakeHub struct {
	mu     sync.Mutex
	events []sentEvent
}

func (h *fakeHub) Broadcast(eventType string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, sentEvent{eventType, payload})
}

type published struct {
	topic    string
	payload  any
	retained bool
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *fakePublisher) PublishJSON(topic string, v any, retained bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{topic, v, retained})
	return p.err
}

type countingLogger struct {
	noopLogger
	warns int
}

func (l *countingLogger) Warn(string, ...any) { l.warns++ }

var fixedNow = time.Date(2026, 10, 1, 14, 0, 0, 0, time.UTC)

func newTestDispatcher(pub Publisher) (*Dispatcher, *fakeHub) {
	hub := &fakeHub{}
	d := NewDispatcher(hub, pub)
	d.now = func() time.Time { return fixedNow }
	return d, hub
}

func TestDispatcher_StateChange(t *testing.T) {
	pub := &fakePublisher{}
	d, hub := newTestDispatcher(pub)

	b := breaker.Breaker{ID: "brk-1", EntityID: "switch.room_101", RoomID: "room-1", CurrentState: breaker.StateOn, IsAvailable: true}
	d.BreakerStateChanged(context.Background(), b, breaker.StateOff)

	want := StateChange{
		BreakerID: "brk-1", EntityID: "switch.room_101", RoomID: "room-1",
		State: breaker.StateOn, PreviousState: breaker.StateOff, IsAvailable: true, Timestamp: fixedNow,
	}
	require.Len(t, hub.events, 1)
	assert.Equal(t, EventBreakerStateChanged, hub.events[0].eventType)
	assert.Equal(t, want, hub.events[0].payload)

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, published{"hotel/breaker/brk-1/state", want, true}, pub.msgs[0])
}

func TestDispatcher_Alert(t *testing.T) {
	pub := &fakePublisher{}
	d, hub := newTestDispatcher(pub)

	b := breaker.Breaker{ID: "brk-1", EntityID: "switch.room_101", ConsecutiveErrors: 3, LastError: "hub returned 500"}
	d.BreakerAlert(context.Background(), b)

	require.Len(t, hub.events, 1)
	assert.Equal(t, EventBreakerAlert, hub.events[0].eventType)
	alert, ok := hub.events[0].payload.(Alert)
	require.True(t, ok)
	assert.Equal(t, 3, alert.ConsecutiveErrors)

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "hotel/breaker/brk-1/alert", pub.msgs[0].topic)
	assert.False(t, pub.msgs[0].retained)
}

func TestDispatcher_CommandAndRoomAreWebSocketOnly(t *testing.T) {
	pub := &fakePublisher{}
	d, hub := newTestDispatcher(pub)
	ctx := context.Background()

	d.CommandExecuted(ctx, breaker.ActivityEntry{ID: "bal-1", Action: breaker.ActionTurnOn})
	require.NoError(t, d.OnRoomStatusChange(ctx, "room-1", room.StatusAvailable, room.StatusOccupied))

	require.Len(t, hub.events, 2)
	assert.Equal(t, EventBreakerCommandExecuted, hub.events[0].eventType)
	assert.Equal(t, EventRoomStatusChanged, hub.events[1].eventType)
	assert.Equal(t, RoomChange{RoomID: "room-1", From: room.StatusAvailable, To: room.StatusOccupied, Timestamp: fixedNow}, hub.events[1].payload)
	assert.Empty(t, pub.msgs)
}

func TestDispatcher_PublishFailureIsLogged(t *testing.T) {
	pub := &fakePublisher{err: errors.New("not connected")}
	d, hub := newTestDispatcher(pub)
	logger := &countingLogger{}
	d.SetLogger(logger)

	d.BreakerStateChanged(context.Background(), breaker.Breaker{ID: "brk-1"}, breaker.StateOff)

	assert.Len(t, hub.events, 1, "websocket delivery is unaffected")
	assert.Equal(t, 1, logger.warns)
}

func TestDispatcher_NilSinks(t *testing.T) {
	d := NewDispatcher(nil, nil)
	ctx := context.Background()

	assert.NotPanics(t, func() {
		d.BreakerStateChanged(ctx, breaker.Breaker{ID: "brk-1"}, breaker.StateOff)
		d.BreakerAlert(ctx, breaker.Breaker{ID: "brk-1"})
		d.CommandExecuted(ctx, breaker.ActivityEntry{})
		_ = d.OnRoomStatusChange(ctx, "room-1", room.StatusAvailable, room.StatusCleaning)
	})
}
