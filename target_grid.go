package inspectwatch

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/template"
)

// NewTargetGrid creates one target per combination of dimension values.
//
// Evidence ids are rendered from a text/template in which every dimension
// key is a variable. Missing template keys cause an error. Use it to watch a
// batch of photos whose ids follow a naming scheme, such as every capture of
// several floors of a site.
//
// Each target is named "Base Name (val1/val2)" (values ordered by key) and
// labelled with its dimension values. Static labels from [WithGridLabels]
// take precedence over dimension labels on collision.
//
// Example:
//
//	targets, err := inspectwatch.NewTargetGrid("Tower A",
//	    inspectwatch.WithIDTemplate("evi_towera_{{.floor}}_{{.side}}"),
//	    inspectwatch.WithDimensions(map[string][]string{
//	        "floor": {"f1", "f2"},
//	        "side":  {"north", "south"},
//	    }),
//	)
//	// Returns 4 targets, usable with WithTargets(targets...)
func NewTargetGrid(baseName string, opts ...GridOption) ([]Target, error) {
	if strings.TrimSpace(baseName) == "" {
		return nil, errors.New("base name cannot be empty")
	}

	cfg := &gridConfig{
		staticLabels: make(map[string]string),
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.idTemplate == "" {
		return nil, errors.New("id template required")
	}
	if len(cfg.dimensions) == 0 {
		return nil, errors.New("at least one dimension required")
	}

	tmpl, err := template.New("id").Option("missingkey=error").Parse(cfg.idTemplate)
	if err != nil {
		return nil, fmt.Errorf("invalid id template: %w", err)
	}

	combos := cartesianProduct(cfg.dimensions)
	targets := make([]Target, 0, len(combos))
	seen := make(map[string]bool, len(combos))

	for _, combo := range combos {
		var buf strings.Builder
		if err := tmpl.Execute(&buf, combo); err != nil {
			return nil, fmt.Errorf("template execution failed: %w", err)
		}
		id := buf.String()
		if seen[id] {
			return nil, fmt.Errorf("id template produces duplicate id %q", id)
		}
		seen[id] = true

		labels := make(map[string]string, len(combo)+len(cfg.staticLabels))
		for k, v := range combo {
			labels[k] = v
		}
		for k, v := range cfg.staticLabels {
			labels[k] = v
		}

		tgOpts := []TargetOption{
			WithName(gridTargetName(baseName, combo)),
			WithLabels(sortedPairs(labels)...),
		}
		if cfg.autoTrigger {
			tgOpts = append(tgOpts, WithAutoTrigger())
		}

		tg, err := NewTarget(id, tgOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create target %q: %w", id, err)
		}
		targets = append(targets, tg)
	}

	return targets, nil
}

// cartesianProduct returns every combination of dimension values. Keys are
// iterated in sorted order and values keep their slice order, so the result
// is deterministic. The last key varies fastest.
func cartesianProduct(dims map[string][]string) []map[string]string {
	if len(dims) == 0 {
		return nil
	}

	keys := sortedKeys(dims)
	for _, k := range keys {
		if len(dims[k]) == 0 {
			return nil
		}
	}

	result := []map[string]string{{}}
	for _, k := range keys {
		next := make([]map[string]string, 0, len(result)*len(dims[k]))
		for _, combo := range result {
			for _, v := range dims[k] {
				c := make(map[string]string, len(combo)+1)
				for ck, cv := range combo {
					c[ck] = cv
				}
				c[k] = v
				next = append(next, c)
			}
		}
		result = next
	}
	return result
}

// gridTargetName formats "Base (v1/v2)" with values ordered by key.
func gridTargetName(baseName string, combo map[string]string) string {
	keys := sortedKeys(combo)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = combo[k]
	}
	return fmt.Sprintf("%s (%s)", baseName, strings.Join(parts, "/"))
}

// sortedPairs flattens m into key-value pairs ordered by key.
func sortedPairs(m map[string]string) []string {
	pairs := make([]string, 0, len(m)*2)
	for _, k := range sortedKeys(m) {
		pairs = append(pairs, k, m[k])
	}
	return pairs
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
