// Package inspectwatch tracks the AI analysis of construction-site evidence
// photos held by an inspection portal, and serves a live dashboard of the
// tracked analyses.
//
// An analysis is asynchronous on the server: a trigger request starts it and
// the client polls the evidence until its status is completed or error.
// inspectwatch runs that loop for you, with a bounded number of status checks
// per polling session, and reports every change.
//
// # Quick Start
//
// Watch a set of evidence photos and serve the dashboard until SIGINT/SIGTERM:
//
//	tg, _ := inspectwatch.NewTarget("evi_123", inspectwatch.WithAutoTrigger())
//	w, _ := inspectwatch.New(
//	    inspectwatch.WithTarget(tg),
//	    inspectwatch.WithBaseURL("https://portal.example.com/api"),
//	    inspectwatch.WithToken(os.Getenv("PORTAL_TOKEN")),
//	)
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	w.Start(ctx) // blocks until context is cancelled
//
// For a single photo, [Watch] triggers the analysis and blocks until it
// finishes:
//
//	js, err := inspectwatch.Watch(ctx, "evi_123",
//	    inspectwatch.WithBaseURL("https://portal.example.com/api"),
//	    inspectwatch.WithCredentials(email, password),
//	)
//
// # Targets
//
// Targets are evidence photos, created with [NewTarget] or in batches with
// [NewTargetGrid]:
//
//	targets, err := inspectwatch.NewTargetGrid("Tower A",
//	    inspectwatch.WithIDTemplate("evi_towera_{{.floor}}"),
//	    inspectwatch.WithDimensions(map[string][]string{"floor": {"f1", "f2"}}),
//	)
//
// A whole project can be watched with [WithProject]; its evidence photos are
// listed from the portal each time the watcher starts.
//
// # Dashboard
//
// The dashboard lists every target with its status, polling progress and
// detected issues. Operators can trigger, retry and stop analyses from it.
// Updates are pushed over Server-Sent Events (/api/sse) and WebSocket
// (/api/ws).
//
// # Architecture
//
// inspectwatch consists of several internal packages (under internal/):
//
//   - internal/poller: generic polling engine with bounded sessions
//   - internal/analysis: per-evidence analysis state machine
//   - internal/api: inspection portal REST client
//   - internal/store: in-memory job store with pub/sub
//   - internal/server: dashboard HTTP server
//   - internal/mockapi: mock inspection portal for local runs
//   - dashboard: embedded web UI assets
//
// The internal packages are not part of the public API and may change
// without notice.
package inspectwatch
