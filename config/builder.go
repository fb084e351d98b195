package config

import (
	"fmt"
	"sort"

	"github.com/jpalmerr/inspectwatch"
)

// BuildTargets converts parsed configuration into SDK Target objects.
//
// It processes both direct targets and grids, returning a combined slice in
// file order. Grid dimensions are expanded via cartesian product.
func BuildTargets(cfg *Config) ([]inspectwatch.Target, error) {
	var targets []inspectwatch.Target

	for i, tc := range cfg.Targets {
		tg, err := buildTarget(tc)
		if err != nil {
			return nil, fmt.Errorf("targets[%d]: %w", i, err)
		}
		targets = append(targets, tg)
	}

	for _, gc := range cfg.Grids {
		gridTargets, err := buildGridTargets(gc)
		if err != nil {
			return nil, err
		}
		targets = append(targets, gridTargets...)
	}

	return targets, nil
}

// buildTarget converts a single TargetConfig to an SDK Target.
func buildTarget(tc TargetConfig) (inspectwatch.Target, error) {
	var opts []inspectwatch.TargetOption

	if tc.Name != "" {
		opts = append(opts, inspectwatch.WithName(tc.Name))
	}

	if len(tc.Labels) > 0 {
		opts = append(opts, inspectwatch.WithLabels(mapToKeyValuePairs(tc.Labels)...))
	}

	if tc.AutoTrigger {
		opts = append(opts, inspectwatch.WithAutoTrigger())
	}

	return inspectwatch.NewTarget(tc.EvidenceID, opts...)
}

func buildGridTargets(gc GridConfig) ([]inspectwatch.Target, error) {
	opts := []inspectwatch.GridOption{
		inspectwatch.WithIDTemplate(gc.IDTemplate),
		inspectwatch.WithDimensions(gc.Dimensions),
	}
	if len(gc.Labels) > 0 {
		opts = append(opts, inspectwatch.WithGridLabels(mapToKeyValuePairs(gc.Labels)...))
	}
	if gc.AutoTrigger {
		opts = append(opts, inspectwatch.WithGridAutoTrigger())
	}

	targets, err := inspectwatch.NewTargetGrid(gc.Name, opts...)
	if err != nil {
		return nil, fmt.Errorf("grid (%s): %w", gc.Name, err)
	}
	return targets, nil
}

// WatcherOptions converts the connection and polling settings and the
// projects into watcher options. Targets are not included; pass the result of
// [BuildTargets] with [inspectwatch.WithTargets].
func WatcherOptions(cfg *Config) []inspectwatch.Option {
	opts := []inspectwatch.Option{
		inspectwatch.WithBaseURL(cfg.BaseURL),
		inspectwatch.WithPort(cfg.Port),
		inspectwatch.WithPollingInterval(cfg.PollInterval.Duration()),
		inspectwatch.WithMaxAttempts(cfg.MaxAttempts),
	}

	if cfg.Title != "" {
		opts = append(opts, inspectwatch.WithTitle(cfg.Title))
	}
	if cfg.Token != "" {
		opts = append(opts, inspectwatch.WithToken(cfg.Token))
	}
	if cfg.Email != "" {
		opts = append(opts, inspectwatch.WithCredentials(cfg.Email, cfg.Password))
	}
	if cfg.RequestTimeout != 0 {
		opts = append(opts, inspectwatch.WithRequestTimeout(cfg.RequestTimeout.Duration()))
	}
	if cfg.MaxConcurrency > 0 {
		opts = append(opts, inspectwatch.WithMaxConcurrency(cfg.MaxConcurrency))
	}
	for _, pc := range cfg.Projects {
		opts = append(opts, inspectwatch.WithProject(pc.ProjectID, projectTargetOptions(pc)...))
	}

	return opts
}

// projectTargetOptions converts the per-photo settings of a project.
func projectTargetOptions(pc ProjectConfig) []inspectwatch.TargetOption {
	var opts []inspectwatch.TargetOption
	if pc.Name != "" {
		opts = append(opts, inspectwatch.WithName(pc.Name))
	}
	if len(pc.Labels) > 0 {
		opts = append(opts, inspectwatch.WithLabels(mapToKeyValuePairs(pc.Labels)...))
	}
	if pc.AutoTrigger {
		opts = append(opts, inspectwatch.WithAutoTrigger())
	}
	return opts
}

// mapToKeyValuePairs converts a map to a sorted slice of key-value pairs.
func mapToKeyValuePairs(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(m)*2)
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return pairs
}
