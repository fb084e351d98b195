package inspectwatch

import (
	"errors"
	"fmt"
)

// gridConfig holds configuration during target grid construction.
type gridConfig struct {
	idTemplate   string
	dimensions   map[string][]string
	staticLabels map[string]string
	autoTrigger  bool
}

// GridOption configures target grid generation.
// GridOption implements the functional options pattern for [NewTargetGrid].
type GridOption func(*gridConfig) error

// WithIDTemplate sets the evidence id template.
// The template uses Go's text/template syntax with dimension keys as variables.
//
// Example:
//
//	WithIDTemplate("evi_{{.site}}_{{.floor}}")
//
// Returns an error if the template string is empty.
func WithIDTemplate(tmpl string) GridOption {
	return func(cfg *gridConfig) error {
		if tmpl == "" {
			return errors.New("id template required")
		}
		cfg.idTemplate = tmpl
		return nil
	}
}

// WithDimensions sets the dimension values for cartesian product expansion.
// Each key becomes a template variable and a label of the generated targets.
//
// Returns an error if the map is empty, any dimension has no values,
// or any value is an empty string.
func WithDimensions(dims map[string][]string) GridOption {
	return func(cfg *gridConfig) error {
		if len(dims) == 0 {
			return errors.New("at least one dimension required")
		}
		for k, vals := range dims {
			if len(vals) == 0 {
				return fmt.Errorf("dimension '%s' has no values", k)
			}
			for i, v := range vals {
				if v == "" {
					return fmt.Errorf("dimension '%s' contains empty value at index %d", k, i)
				}
			}
		}
		cfg.dimensions = dims
		return nil
	}
}

// WithGridLabels adds static labels to all generated targets.
//
// Accepts variadic key-value pairs. The number of arguments must be even.
func WithGridLabels(keyValues ...string) GridOption {
	return func(cfg *gridConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithGridLabels requires an even number of arguments (key-value pairs)")
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.staticLabels[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithGridAutoTrigger applies [WithAutoTrigger] to all generated targets.
func WithGridAutoTrigger() GridOption {
	return func(cfg *gridConfig) error {
		cfg.autoTrigger = true
		return nil
	}
}
