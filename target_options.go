package inspectwatch

import (
	"errors"
	"strings"
)

// targetConfig holds mutable state during target construction.
type targetConfig struct {
	name        string
	labels      map[string]string
	autoTrigger bool
}

// TargetOption is a function that configures a [Target] during construction.
//
// Options return an error if validation fails.
//
// Built-in options: [WithName], [WithLabels], [WithAutoTrigger].
type TargetOption func(*targetConfig) error

// WithName sets the display name shown in the dashboard and logs.
//
// Returns an error if the name is blank.
func WithName(name string) TargetOption {
	return func(cfg *targetConfig) error {
		if strings.TrimSpace(name) == "" {
			return errors.New("target name cannot be blank")
		}
		cfg.name = name
		return nil
	}
}

// WithLabels adds metadata labels to the target for grouping and filtering.
//
// Accepts variadic key-value pairs. The number of arguments must be even.
//
// Example:
//
//	tg, err := inspectwatch.NewTarget("evi_123",
//	    inspectwatch.WithLabels("project", "prj_001", "floor", "2"),
//	)
//
// Returns an error if an odd number of arguments is provided.
func WithLabels(keyValues ...string) TargetOption {
	return func(cfg *targetConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithLabels requires an even number of arguments (key-value pairs)")
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.labels[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithAutoTrigger requests an analysis when the watcher starts and the
// evidence is still pending.
func WithAutoTrigger() TargetOption {
	return func(cfg *targetConfig) error {
		cfg.autoTrigger = true
		return nil
	}
}
