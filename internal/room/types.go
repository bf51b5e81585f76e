package room

import (
	"fmt"
	"strings"
	"time"
)

// Status is the occupancy state of a room.
type Status string

const (
	StatusAvailable        Status = "available"
	StatusOccupied         Status = "occupied"
	StatusCleaning         Status = "cleaning"
	StatusReserved         Status = "reserved"
	StatusOutOfService     Status = "out_of_service"
	StatusOccupiedOvertime Status = "occupied_overtime"
)

// AllStatuses lists every valid status in display order.
var AllStatuses = []Status{
	StatusAvailable,
	StatusOccupied,
	StatusCleaning,
	StatusReserved,
	StatusOutOfService,
	StatusOccupiedOvertime,
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

func (s Status) String() string { return string(s) }

// ParseStatus accepts any casing and either "-" or "_" as separator,
// so "Out-Of-Service" parses to StatusOutOfService.
func ParseStatus(raw string) (Status, error) {
	norm := strings.ToLower(strings.TrimSpace(raw))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	s := Status(norm)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return s, nil
}

// Room is a bookable hotel room.
type Room struct {
	ID            string     `json:"id"`
	Number        string     `json:"number"`
	Floor         int        `json:"floor"`
	Type          string     `json:"type"`
	Status        Status     `json:"status"`
	CheckoutDueAt *time.Time `json:"checkout_due_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Status Status
	Floor  *int
}
