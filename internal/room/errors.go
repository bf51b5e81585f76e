package room

import "errors"

var (
	// ErrRoomNotFound is returned when a room ID or number does not exist.
	ErrRoomNotFound = errors.New("room: not found")

	// ErrRoomExists is returned when the room number is already taken.
	ErrRoomExists = errors.New("room: number already exists")

	// ErrInvalidStatus is returned for an unknown status string.
	ErrInvalidStatus = errors.New("room: invalid status")

	// ErrInvalidNumber is returned for an empty or oversized room number.
	ErrInvalidNumber = errors.New("room: invalid number")
)
