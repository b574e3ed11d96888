// Package api implements the HTTP REST API and WebSocket server for the codec bridge.
//
// This package provides:
//   - Read endpoints for the reconciled codec state, the overlay export and
//     the device's audio statistics
//   - Control endpoints (mute, profile, reboot, connect, disconnect) that run
//     through the same command path as MQTT commands
//   - A read-only WebSocket hub that relays codec.state events
//   - Middleware stack (request ID, logging, recovery, CORS, body limit, JWT)
//
// # Routes
//
//	GET  /api/v1/health
//	GET  /api/v1/codec/state
//	GET  /api/v1/codec/overlay
//	GET  /api/v1/codec/audio
//	POST /api/v1/codec/mute                   {"channel": "tx", "mute": true}
//	POST /api/v1/codec/profiles/{id}/activate
//	POST /api/v1/codec/reboot
//	POST /api/v1/codec/connect
//	POST /api/v1/codec/disconnect
//	GET  /api/v1/ws
//
// # Security
//
// Control endpoints require an HS256 bearer token when a JWT secret is
// configured. Operators may control the codec; only admins may reboot it.
// Read endpoints and the WebSocket stay open for browser overlays.
package api
