// Package api implements the HTTP REST API and WebSocket server for the
// find-my core.
//
// This package provides:
//   - REST endpoints to list, filter, and inspect the device fleet
//   - Remote action endpoints (play sound, lost mode, wipe), rate limited per IP
//   - A short-lived notification feed describing completed actions
//   - A WebSocket hub streaming fleet snapshots and notifications
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Live Updates
//
// A WebSocket client that subscribes to the "devices" channel holds its own
// fleet subscription. It receives the current fleet at once and every later
// snapshot as a "devices.updated" event. The simulation loop therefore runs
// only while at least one client (or other listener) is watching.
//
// # Errors
//
// Errors use a structured body {status, code, message}. An unknown device
// is 404, a malformed body or query is 400, a throttled action is 429, and
// anything else is 500.
package api
