// Package api is the HTTP client for the inspection portal REST API.
//
// It covers the two endpoints the analysis tracker depends on, plus login:
//
//   - POST {base}/evidences/{id}/analyze: start or restart an analysis job
//   - GET {base}/evidences/{id}: evidence detail with status and issues
//   - POST {base}/auth/login: obtain a bearer token
//
// Failed calls return an [*Error] carrying the portal's machine-readable code.
// [UserMessage] turns any error into operator-facing text.
package api
