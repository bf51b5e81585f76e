// Package auth provides staff authentication and authorisation for Hotel Core.
//
// Five roles map to a static permission table (no database lookup):
//
//	admin         everything, including hub settings and staff accounts
//	manager       rooms, breakers, audit
//	receptionist  room status, breaker read
//	housekeeping  room status
//	maintenance   breaker read and manual control
//
// Passwords are hashed with Argon2id. Login issues a short-lived HS256
// access token carrying the role, validated by signature only.
package auth
