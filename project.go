package inspectwatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jpalmerr/inspectwatch/internal/analysis"
	"github.com/jpalmerr/inspectwatch/internal/api"
)

// projectSource is a project whose evidence photos are listed when the
// watcher starts.
type projectSource struct {
	id     string
	target targetConfig
}

// WithProject watches every evidence photo of a project.
//
// The evidences are listed from the API when [Watcher.Start] runs, so photos
// uploaded before each start are picked up. The target options apply to every
// listed photo: a name from [WithName] becomes "Name (evidence id)", and each
// target carries a "project" label unless [WithLabels] sets one. An evidence
// photo that is also added with [WithTarget] keeps its explicit target.
//
// Example:
//
//	w, err := inspectwatch.New(
//	    inspectwatch.WithProject("prj_001",
//	        inspectwatch.WithName("Tower A"),
//	        inspectwatch.WithAutoTrigger(),
//	    ),
//	    inspectwatch.WithToken(token),
//	)
//
// Returns an error if the project id is empty or not usable as a URL path
// segment, if the project is added twice or if a target option is invalid.
func WithProject(projectID string, opts ...TargetOption) Option {
	return func(cfg *watcherConfig) error {
		if strings.TrimSpace(projectID) == "" || strings.ContainsAny(projectID, "/?# \t\r\n") {
			return fmt.Errorf("invalid project id %q", projectID)
		}
		for _, p := range cfg.projects {
			if p.id == projectID {
				return fmt.Errorf("duplicate project: %q", projectID)
			}
		}

		tc := targetConfig{labels: make(map[string]string)}
		for _, opt := range opts {
			if err := opt(&tc); err != nil {
				return fmt.Errorf("project %s: %w", projectID, err)
			}
		}
		if _, ok := tc.labels["project"]; !ok {
			tc.labels["project"] = projectID
		}

		cfg.projects = append(cfg.projects, projectSource{id: projectID, target: tc})
		return nil
	}
}

// targetFor builds the target of one listed evidence photo.
func (p projectSource) targetFor(evidenceID string) (Target, error) {
	if err := analysis.ValidateEvidenceID(evidenceID); err != nil {
		return Target{}, err
	}
	name := evidenceID
	if p.target.name != "" {
		name = fmt.Sprintf("%s (%s)", p.target.name, evidenceID)
	}
	return Target{
		evidenceID:  evidenceID,
		name:        name,
		labels:      copyMap(p.target.labels),
		autoTrigger: p.target.autoTrigger,
	}, nil
}

// projectLister is the part of the API client used to expand projects.
type projectLister interface {
	ListProjectEvidences(ctx context.Context, projectID string) ([]api.Evidence, error)
}

// resolveTargets returns the explicit targets followed by the evidences of
// every project, in listing order. Evidences that are already watched are
// skipped and ids the API should never return are logged and skipped.
func (w *Watcher) resolveTargets(ctx context.Context, client projectLister) ([]Target, error) {
	targets := append([]Target(nil), w.cfg.targets...)

	seen := make(map[string]bool, len(targets))
	for _, tg := range targets {
		seen[tg.evidenceID] = true
	}

	for _, p := range w.cfg.projects {
		evidences, err := client.ListProjectEvidences(ctx, p.id)
		if err != nil {
			return nil, fmt.Errorf("failed to list evidences of project %s: %w", p.id, err)
		}

		added := 0
		for _, e := range evidences {
			if seen[e.ID] {
				continue
			}
			tg, err := p.targetFor(e.ID)
			if err != nil {
				w.logger.Warn("skipping evidence", "project_id", p.id, "error", err.Error())
				continue
			}
			seen[e.ID] = true
			targets = append(targets, tg)
			added++
		}
		w.logger.Info("project listed", "project_id", p.id, "evidence_count", len(evidences), "added", added)
	}

	if len(targets) == 0 {
		return nil, errors.New("no evidence to watch: the configured projects are empty")
	}
	return targets, nil
}
