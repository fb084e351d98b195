package inspectwatch

import (
	"github.com/jpalmerr/inspectwatch/internal/analysis"
)

// Target is an evidence photo whose analysis is tracked by a [Watcher].
//
// Target is immutable after creation via [NewTarget]. All fields are
// private with getter methods that return copies of mutable data (maps).
//
// Targets are configured using the functional options pattern with
// [TargetOption] functions such as [WithName], [WithLabels] and
// [WithAutoTrigger].
type Target struct {
	evidenceID  string
	name        string
	labels      map[string]string
	autoTrigger bool
}

// EvidenceID returns the id of the evidence photo.
func (t Target) EvidenceID() string {
	return t.evidenceID
}

// Name returns the target's display name.
// Defaults to the evidence id when not set via [WithName].
func (t Target) Name() string {
	return t.name
}

// Labels returns a copy of the target's labels.
// Labels are key-value metadata used for grouping targets in the dashboard.
func (t Target) Labels() map[string]string {
	return copyMap(t.labels)
}

// AutoTrigger reports whether the analysis is triggered on start when the
// evidence has not been analysed yet.
func (t Target) AutoTrigger() bool {
	return t.autoTrigger
}

// NewTarget creates a [Target] for the evidence with the given id.
//
// The id must be non-empty and usable as a URL path segment.
//
// Example:
//
//	tg, err := inspectwatch.NewTarget("evi_123",
//	    inspectwatch.WithName("Level 2 stairwell"),
//	    inspectwatch.WithLabels("project", "prj_001"),
//	    inspectwatch.WithAutoTrigger(),
//	)
func NewTarget(evidenceID string, opts ...TargetOption) (Target, error) {
	if err := analysis.ValidateEvidenceID(evidenceID); err != nil {
		return Target{}, err
	}

	cfg := &targetConfig{
		labels: make(map[string]string),
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Target{}, err
		}
	}

	name := cfg.name
	if name == "" {
		name = evidenceID
	}

	return Target{
		evidenceID:  evidenceID,
		name:        name,
		labels:      cfg.labels,
		autoTrigger: cfg.autoTrigger,
	}, nil
}

// copyMap returns a shallow copy of the map.
func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
