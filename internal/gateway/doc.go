// Package gateway talks to the building's device hub over its REST API.
//
// The hub exposes switch entities ("switch.room_101") whose state can be
// read and which accept turn_on/turn_off service calls. The hub URL and
// access token are stored in the hub_config table, the token encrypted with
// [secrets.Box], so an administrator can rotate them without a restart.
//
// # Errors
//
// Every failure is returned as *[Error], which unwraps to one of the
// sentinels (ErrNotConfigured, ErrDecryption, ErrConnection,
// ErrAuthentication, ErrTimeout, ErrAPI). A 404 on a state read is not an
// error: the entity is reported unavailable.
//
// # Retries
//
// Invoke retries connection failures, timeouts and non-2xx responses up to
// MaxAttempts with a linear backoff. Authentication and configuration
// failures are returned immediately.
//
// # Thread Safety
//
// A Client is safe for concurrent use. All calls share one rate limiter.
package gateway
