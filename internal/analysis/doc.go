// Package analysis tracks the asynchronous analysis job of one evidence item.
//
// A [Tracker] triggers the job through the inspection API and then polls the
// evidence until the server reports a terminal status or the attempt ceiling
// is reached. Every expected failure is reported as data: the tracker's
// LastError field and the Config.OnError callback, which also receives the
// [FailureKind]. Only malformed evidence ids are rejected with an error at
// construction time.
//
// State machine:
//
//	pending ──trigger──▶ processing ──poll──▶ completed
//	                         │        └─────▶ error ──retry──▶ processing
//	                         └─max attempts─▶ processing (timed out, LastError set)
//
// Polling runs only while the status is processing. A timed out job keeps the
// processing status so that it can be told apart from a job the server
// reported as failed; triggering it again restarts polling.
package analysis
