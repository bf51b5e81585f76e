// Package breaker keeps each room's smart breaker in step with the room's
// status.
//
// Room status changes are turned into queued ON/OFF commands
// (Service.OnRoomStatusChange). The Reconciler drains due commands through
// the hub Gateway, polls live state, and records every attempt in the
// append-only activity log.
//
// Commands are durable rows in breaker_control_queue. Enqueueing a new
// command for a breaker cancels any older pending command for it, so only
// the latest intent runs. Claims are conditional updates, so two drains
// can never execute the same row.
//
// A breaker whose consecutive error count reaches the alert threshold is
// reported once through Notifier.BreakerAlert and stays flagged in
// statistics until a call succeeds.
package breaker
