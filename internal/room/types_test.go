package room

import (
	"errors"
	"testing"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{"available", StatusAvailable, false},
		{"OCCUPIED", StatusOccupied, false},
		{" Cleaning ", StatusCleaning, false},
		{"out-of-service", StatusOutOfService, false},
		{"Out_Of_Service", StatusOutOfService, false},
		{"occupied-overtime", StatusOccupiedOvertime, false},
		{"checked_out", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStatus(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidStatus) {
					t.Errorf("ParseStatus(%q) error = %v, want ErrInvalidStatus", tt.in, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseStatus(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestStatus_Valid(t *testing.T) {
	for _, s := range AllStatuses {
		if !s.Valid() {
			t.Errorf("%q should be valid", s)
		}
	}
	if Status("vacant").Valid() {
		t.Error("unknown status should be invalid")
	}
}
