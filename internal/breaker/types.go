package breaker

import (
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-hotel/internal/room"
)

// normalise lower-cases raw and maps "-" and spaces to "_" so enum parsing
// accepts any casing and separator.
func normalise(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	return strings.NewReplacer("-", "_", " ", "_").Replace(s)
}

// State is the power state of a breaker as last seen on the hub.
type State string

const (
	StateOn          State = "on"
	StateOff         State = "off"
	StateUnavailable State = "unavailable"
)

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	return s == StateOn || s == StateOff || s == StateUnavailable
}

// Commandable reports whether s can be the target of a command.
func (s State) Commandable() bool {
	return s == StateOn || s == StateOff
}

// ParseState parses a state name.
func ParseState(raw string) (State, error) {
	s := State(normalise(raw))
	if !s.Valid() {
		return "", fmt.Errorf("%w: state %q", ErrInvalidValue, raw)
	}
	return s, nil
}

// TriggerOrigin records what caused a command or activity entry.
type TriggerOrigin string

const (
	OriginAuto   TriggerOrigin = "auto"
	OriginManual TriggerOrigin = "manual"
	OriginSystem TriggerOrigin = "system"
)

// Valid reports whether o is a known origin.
func (o TriggerOrigin) Valid() bool {
	return o == OriginAuto || o == OriginManual || o == OriginSystem
}

// ParseTriggerOrigin parses an origin name.
func ParseTriggerOrigin(raw string) (TriggerOrigin, error) {
	o := TriggerOrigin(normalise(raw))
	if !o.Valid() {
		return "", fmt.Errorf("%w: trigger origin %q", ErrInvalidValue, raw)
	}
	return o, nil
}

// Action is what was attempted against the hub.
type Action string

const (
	ActionTurnOn     Action = "turn_on"
	ActionTurnOff    Action = "turn_off"
	ActionStatusSync Action = "status_sync"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	return a == ActionTurnOn || a == ActionTurnOff || a == ActionStatusSync
}

// ParseAction parses an action name.
func ParseAction(raw string) (Action, error) {
	a := Action(normalise(raw))
	if !a.Valid() {
		return "", fmt.Errorf("%w: action %q", ErrInvalidValue, raw)
	}
	return a, nil
}

// Outcome is the result of one hub call.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
	OutcomeTimeout Outcome = "timeout"
)

// Valid reports whether o is a known outcome.
func (o Outcome) Valid() bool {
	return o == OutcomeSuccess || o == OutcomeFailed || o == OutcomeTimeout
}

// ParseOutcome parses an outcome name.
func ParseOutcome(raw string) (Outcome, error) {
	o := Outcome(normalise(raw))
	if !o.Valid() {
		return "", fmt.Errorf("%w: outcome %q", ErrInvalidValue, raw)
	}
	return o, nil
}

// QueueStatus is the lifecycle position of a queue item.
//
//	pending -> processing -> completed
//	                      -> failed (retries exhausted)
//	                      -> pending (retry)
//	pending -> cancelled (superseded or breaker deactivated)
type QueueStatus string

const (
	QueuePending    QueueStatus = "pending"
	QueueProcessing QueueStatus = "processing"
	QueueCompleted  QueueStatus = "completed"
	QueueFailed     QueueStatus = "failed"
	QueueCancelled  QueueStatus = "cancelled"
)

// Valid reports whether s is a known queue status.
func (s QueueStatus) Valid() bool {
	switch s {
	case QueuePending, QueueProcessing, QueueCompleted, QueueFailed, QueueCancelled:
		return true
	}
	return false
}

// Terminal reports whether s is a final state.
func (s QueueStatus) Terminal() bool {
	return s == QueueCompleted || s == QueueFailed || s == QueueCancelled
}

// ParseQueueStatus parses a queue status name.
func ParseQueueStatus(raw string) (QueueStatus, error) {
	s := QueueStatus(normalise(raw))
	if !s.Valid() {
		return "", fmt.Errorf("%w: queue status %q", ErrInvalidValue, raw)
	}
	return s, nil
}

// Breaker is one switchable circuit exposed by the hub.
type Breaker struct {
	ID                 string     `json:"id"`
	EntityID           string     `json:"entity_id"`
	Name               string     `json:"name"`
	RoomID             string     `json:"room_id,omitempty"`
	AutoControlEnabled bool       `json:"auto_control_enabled"`
	CurrentState       State      `json:"current_state"`
	IsAvailable        bool       `json:"is_available"`
	LastSyncAt         *time.Time `json:"last_sync_at,omitempty"`
	ConsecutiveErrors  int        `json:"consecutive_errors"`
	LastError          string     `json:"last_error,omitempty"`
	IsActive           bool       `json:"is_active"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// InAlert reports whether the breaker's error streak has reached threshold.
func (b *Breaker) InAlert(threshold int) bool {
	return threshold > 0 && b.ConsecutiveErrors >= threshold
}

// Filter narrows breaker listings.
type Filter struct {
	IncludeInactive bool
	RoomID          string
	AutoOnly        bool
	// MinErrors, when > 0, keeps only breakers with at least this many
	// consecutive errors.
	MinErrors int
}

// QueueItem is one desired state change waiting for, or done with, execution.
type QueueItem struct {
	ID          string        `json:"id"`
	BreakerID   string        `json:"breaker_id"`
	Target      State         `json:"target_state"`
	Origin      TriggerOrigin `json:"trigger_origin"`
	UserID      string        `json:"user_id,omitempty"`
	Priority    int           `json:"priority"`
	RetryCount  int           `json:"retry_count"`
	MaxRetries  int           `json:"max_retries"`
	ScheduledAt time.Time     `json:"scheduled_at"`
	Status      QueueStatus   `json:"status"`
	Error       string        `json:"error_message,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

// QueueFilter narrows queue listings.
type QueueFilter struct {
	BreakerID string
	Status    QueueStatus
	Limit     int
	Offset    int
}

// ActivityEntry is an immutable record of one hub interaction.
type ActivityEntry struct {
	ID               string        `json:"id"`
	BreakerID        string        `json:"breaker_id"`
	QueueItemID      string        `json:"queue_item_id,omitempty"`
	Action           Action        `json:"action"`
	Origin           TriggerOrigin `json:"trigger_origin"`
	UserID           string        `json:"user_id,omitempty"`
	RoomStatusBefore room.Status   `json:"room_status_before,omitempty"`
	RoomStatusAfter  room.Status   `json:"room_status_after,omitempty"`
	Outcome          Outcome       `json:"outcome"`
	Error            string        `json:"error_message,omitempty"`
	ResponseMs       int64         `json:"response_ms"`
	CreatedAt        time.Time     `json:"created_at"`
}

// ActivityFilter narrows activity listings. Since and Until bound
// created_at (inclusive, exclusive).
type ActivityFilter struct {
	BreakerID string
	Action    Action
	Origin    TriggerOrigin
	Outcome   Outcome
	Since     *time.Time
	Until     *time.Time
	Limit     int
	Offset    int
}
