// Package api implements the admin REST API and WebSocket server for Hotel Core.
//
// This package provides:
//   - REST endpoints for rooms, breakers, the command queue, activity and audit
//   - hub connection settings (URL and encrypted token)
//   - a WebSocket hub pushing breaker and room events to staff screens
//   - JWT authentication with role permissions and ticket-based WebSocket auth
//
// # Error mapping
//
// Domain errors map to HTTP statuses in one place (writeServiceError):
// not-found errors are 404, conflicts 409, a missing or undecryptable hub
// configuration 424 hub_not_configured, and any other hub failure 502
// hub_error.
//
// # Security
//
// Every route except /health and /auth/login requires a bearer token.
// WebSocket connections authenticate with a single-use ticket from
// POST /auth/ws-ticket so the token never appears in a URL.
package api
