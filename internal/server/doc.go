// Package server provides the HTTP server for the analysis dashboard and API.
//
// It handles all HTTP concerns of the watcher:
//
//   - Dashboard serving: the embedded HTML page at "/"
//   - REST API: job snapshots under "/api/analyses" and the trigger, retry
//     and stop actions
//   - Live updates: Server-Sent Events at "/api/sse" and a WebSocket at
//     "/api/ws"
//
// Errors use the inspection portal's envelope, {"error": {"code", "message"}}.
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
package server
