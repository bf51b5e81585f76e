package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-hotel/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-hotel/internal/room"
)

const (
	ingestSource  = "mqtt"
	ingestTimeout = 10 * time.Second
)

// StatusSetter is the part of room.Service the ingester needs.
type StatusSetter interface {
	SetStatus(ctx context.Context, id string, status room.Status, source string) (*room.Room, error)
}

// StatusIngester applies room status reports arriving on
// hotel/room/{id}/status.
type StatusIngester struct {
	rooms  StatusSetter
	logger Logger
}

// NewStatusIngester creates an ingester that updates rooms.
func NewStatusIngester(rooms StatusSetter) *StatusIngester {
	return &StatusIngester{rooms: rooms, logger: noopLogger{}}
}

// SetLogger sets the logger for the ingester.
func (i *StatusIngester) SetLogger(logger Logger) {
	if logger != nil {
		i.logger = logger
	}
}

type statusMessage struct {
	Status string `json:"status"`
}

// Handle is an mqtt.MessageHandler.
func (i *StatusIngester) Handle(topic string, payload []byte) error {
	roomID, ok := mqtt.RoomIDFromTopic(topic)
	if !ok {
		return fmt.Errorf("unexpected topic %q", topic)
	}

	var msg statusMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("decoding room status: %w", err)
	}
	status, err := room.ParseStatus(msg.Status)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
	defer cancel()

	if _, err := i.rooms.SetStatus(ctx, roomID, status, ingestSource); err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			i.logger.Warn("room status for unknown room", "room_id", roomID)
			return nil
		}
		return fmt.Errorf("setting room %s status: %w", roomID, err)
	}
	i.logger.Debug("room status ingested", "room_id", roomID, "status", string(status))
	return nil
}
