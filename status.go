package inspectwatch

import "time"

// Status represents the state of an evidence item's analysis.
//
// Status is a string type that holds one of four predefined values:
// [StatusPending], [StatusProcessing], [StatusCompleted] or [StatusError].
type Status string

const (
	// StatusPending indicates no analysis has run yet.
	StatusPending Status = "pending"

	// StatusProcessing indicates the analysis is running on the server.
	StatusProcessing Status = "processing"

	// StatusCompleted indicates the analysis finished and its issues are available.
	StatusCompleted Status = "completed"

	// StatusError indicates the analysis failed on the server.
	StatusError Status = "error"
)

// String returns the string representation of the status.
// This implements the fmt.Stringer interface.
func (s Status) String() string {
	return string(s)
}

// Terminal reports whether s ends an analysis.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Location is a bounding box within the evidence photo, in relative units.
type Location struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Issue is a construction defect detected by the analysis.
type Issue struct {
	ID          string
	Type        string
	Description string

	// Confidence is in [0, 1].
	Confidence float64

	// Severity is one of low, medium, high or critical. May be empty.
	Severity string

	Location *Location
}

// JobStatus is a point-in-time view of one tracked analysis.
//
// JobStatus values are passed to callbacks registered with
// [WithStatusCallback] and returned by [Watch] and [Watcher.Jobs]. Maps and
// slices are copies; modifying them does not affect the watcher.
type JobStatus struct {
	// EvidenceID identifies the evidence photo.
	EvidenceID string

	// Name is the display name of the target.
	Name string

	// Labels contains the key-value metadata of the target.
	Labels map[string]string

	// Status is the last known server-side status.
	Status Status

	// IsTriggering is true while the trigger request is in flight.
	IsTriggering bool

	// IsPolling is true while a polling session is active.
	IsPolling bool

	// PollingAttempts is the number of status checks of the current or
	// last polling session.
	PollingAttempts int

	// MaxAttempts bounds the status checks of one polling session.
	MaxAttempts int

	// LastError is the operator-facing message of the last failure.
	// Empty indicates no error.
	LastError string

	// Issues are the defects reported by the last fetched evidence detail.
	Issues []Issue

	// UpdatedAt is the time of the last state change.
	UpdatedAt time.Time
}

// Progress returns the fraction of the polling budget used, in [0, 1].
func (j JobStatus) Progress() float64 {
	if j.MaxAttempts <= 0 {
		return 0
	}
	p := float64(j.PollingAttempts) / float64(j.MaxAttempts)
	if p > 1 {
		return 1
	}
	return p
}
