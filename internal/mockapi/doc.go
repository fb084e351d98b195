// Package mockapi is a local stand-in for the inspection portal REST API.
//
// It serves the endpoints the watcher depends on under /api:
//
//   - POST /api/auth/login: HS256 access token for any email and a password
//     of at least 8 characters
//   - GET /api/evidences/{id}: evidence detail (bearer token required)
//   - POST /api/evidences/{id}/analyze: start a simulated analysis (bearer
//     token required)
//   - GET /api/health
//
// Evidence records live in a [Repository]: [MemoryRepository] for throwaway
// runs or [SQLiteRepository] to keep state across restarts. A started
// analysis stays processing for Config.ProcessingTime, then completes with a
// generated issue, or fails for ids listed in Config.FailEvidences.
package mockapi
