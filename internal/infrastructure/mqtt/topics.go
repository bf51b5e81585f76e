package mqtt

import "strings"

// TopicPrefix roots every Hotel Core topic.
const TopicPrefix = "hotel"

// Topics builds Hotel Core topic names.
type Topics struct{}

// RoomStatus is where an external system reports a room's status.
// Payload: {"status":"occupied"}.
func (Topics) RoomStatus(roomID string) string {
	return TopicPrefix + "/room/" + roomID + "/status"
}

// AllRoomStatus matches RoomStatus for every room.
func (Topics) AllRoomStatus() string {
	return TopicPrefix + "/room/+/status"
}

// BreakerState carries a breaker's retained state.
func (Topics) BreakerState(breakerID string) string {
	return TopicPrefix + "/breaker/" + breakerID + "/state"
}

// BreakerAlert carries alert events for one breaker.
func (Topics) BreakerAlert(breakerID string) string {
	return TopicPrefix + "/breaker/" + breakerID + "/alert"
}

// SystemStatus carries Hotel Core's online/offline status.
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// RoomIDFromTopic extracts {id} from hotel/room/{id}/status.
func RoomIDFromTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != TopicPrefix || parts[1] != "room" || parts[3] != "status" || parts[2] == "" {
		return "", false
	}
	return parts[2], true
}
