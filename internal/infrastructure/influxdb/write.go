package influxdb

import "github.com/nerrad567/gray-logic-hotel/internal/breaker"

const (
	measurementActions = "breaker_actions"
	measurementState   = "breaker_state"
)

// BreakerMetrics implements breaker.Metrics on top of a Client.
type BreakerMetrics struct {
	client *Client
}

// NewBreakerMetrics returns a breaker.Metrics writing through client.
func NewBreakerMetrics(client *Client) *BreakerMetrics {
	return &BreakerMetrics{client: client}
}

// RecordAction writes one hub call with its latency.
func (m *BreakerMetrics) RecordAction(breakerID string, action breaker.Action, outcome breaker.Outcome, responseMs int64) {
	m.client.WritePoint(measurementActions,
		map[string]string{
			"breaker_id": breakerID,
			"action":     string(action),
			"outcome":    string(outcome),
		},
		map[string]any{"response_ms": responseMs},
	)
}

// RecordState writes a breaker's position after a sync or command.
func (m *BreakerMetrics) RecordState(breakerID string, state breaker.State, available bool) {
	m.client.WritePoint(measurementState,
		map[string]string{"breaker_id": breakerID},
		map[string]any{
			"on":        boolToInt(state == breaker.StateOn),
			"available": boolToInt(available),
		},
	)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ breaker.Metrics = (*BreakerMetrics)(nil)
