// Package poller provides the generic polling engine used by inspectwatch.
//
// A [Poller] repeatedly invokes a probe function at a fixed interval until a
// caller-supplied stop condition is met, a maximum number of attempts is
// reached, or the caller stops it. It knows nothing about what it polls.
//
// The main components are:
//
//   - [Poller]: the engine, one instance per polled subject
//   - [Config]: probe, interval, attempt ceiling, stop condition and callbacks
//   - [Outcome]: tagged result delivered when a session terminates
//   - [Session]: read-only view of the current or last polling session
//
// Each activation creates a new session tagged with a UUID. Probes within a
// session never overlap, and results that arrive after the session was stopped
// or replaced are discarded.
//
// Users of the inspectwatch library should not need to interact with this
// package directly.
package poller
