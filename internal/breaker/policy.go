package breaker

import "github.com/nerrad567/gray-logic-hotel/internal/room"

// TargetState returns the power state a room in status s should have.
// Only occupied and cleaning rooms are powered.
func TargetState(s room.Status) State {
	switch s {
	case room.StatusOccupied, room.StatusCleaning:
		return StateOn
	default:
		return StateOff
	}
}

// ActionFor maps a commanded state to the hub service that reaches it.
func ActionFor(target State) Action {
	if target == StateOn {
		return ActionTurnOn
	}
	return ActionTurnOff
}
