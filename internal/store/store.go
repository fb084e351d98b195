package store

import (
	"time"

	"github.com/jpalmerr/inspectwatch/internal/api"
)

// Job is the stored snapshot of one evidence item's analysis.
//
// Job is the storage representation used by the REST API, SSE and WebSocket
// streams. It is decoupled from the tracker's internal types so that the wire
// format can evolve independently.
type Job struct {
	// EvidenceID is the key of the job.
	EvidenceID string `json:"evidence_id"`

	// Name is the display name; it defaults to the evidence id.
	Name string `json:"name"`

	// Labels contains key-value metadata for grouping and filtering.
	Labels map[string]string `json:"labels"`

	// Status is one of pending, processing, completed or error.
	Status string `json:"status"`

	IsTriggering    bool `json:"is_triggering"`
	IsPolling       bool `json:"is_polling"`
	PollingAttempts int  `json:"polling_attempts"`
	MaxAttempts     int  `json:"max_attempts"`

	// IssuesCount and Issues come from the last fetched evidence detail.
	IssuesCount int         `json:"issues_count"`
	Issues      []api.Issue `json:"issues"`

	// UpdatedAt is the time of the last state change.
	UpdatedAt time.Time `json:"updated_at"`

	// LastError is the operator-facing message of the last failure.
	// nil indicates no error.
	LastError *string `json:"last_error"`
}

// Store defines the interface for storing and subscribing to job updates.
//
// Store implementations must be safe for concurrent access. The pub/sub
// mechanism allows real-time updates to be pushed to connected clients
// (Server-Sent Events and WebSocket).
type Store interface {
	// Update stores a job snapshot and notifies all subscribers.
	// Jobs are keyed by EvidenceID, so later updates replace earlier ones.
	Update(job Job)

	// Get returns the job stored for evidenceID.
	Get(evidenceID string) (Job, bool)

	// GetAll returns all stored jobs ordered by evidence id.
	// The returned slice is a snapshot; modifications do not affect the store.
	GetAll() []Job

	// Subscribe returns a channel that receives job updates.
	// The returned channel has a buffer; slow consumers may miss updates.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan Job

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan Job)
}
