// Package room is the status authority for hotel rooms.
//
// A room's status decides whether its breaker should be powered. Status
// changes go through Service.SetStatus, which persists the change and then
// notifies every registered StatusListener synchronously.
//
// # Thread Safety
//
// SQLiteRepository and Service are safe for concurrent use.
package room
