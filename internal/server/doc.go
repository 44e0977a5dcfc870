// Package server implements the HTTP server using Echo framework.
//
// Routes: station write API (check-in, weight, inspection), roster management,
// event state snapshot, WebSocket subscription, health/metrics/version.
// Handlers split by concern: handlers_api.go, handlers_ws.go, handlers_health.go.
package server
