package inspectwatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/jpalmerr/inspectwatch/internal/analysis"
	"github.com/jpalmerr/inspectwatch/internal/api"
)

var (
	// ErrAnalysisFailed is returned by [Watch] when the server reports the
	// analysis as failed.
	ErrAnalysisFailed = errors.New("analysis failed")

	// ErrTimeout is returned by [Watch] when the polling budget runs out
	// before the analysis finishes.
	ErrTimeout = errors.New("analysis did not finish in time")

	// ErrNotAccepted is returned by [Watch] when the server answers the
	// trigger without starting the analysis.
	ErrNotAccepted = errors.New("analysis was not accepted")
)

// Watch triggers the analysis of one evidence photo and blocks until it
// finishes, the polling budget runs out or ctx is cancelled.
//
// Watch accepts the same options as [New]; targets, projects, the port and
// the title are ignored. When the evidence is already processing, Watch only
// polls.
// Status callbacks fire on every change, as they do for a [Watcher].
//
// The returned [JobStatus] is the last known state, also on error. A failed
// analysis returns [ErrAnalysisFailed] and a timeout returns [ErrTimeout].
//
// Example:
//
//	js, err := inspectwatch.Watch(ctx, "evi_123",
//	    inspectwatch.WithBaseURL("https://portal.example.com/api"),
//	    inspectwatch.WithToken(token),
//	)
func Watch(ctx context.Context, evidenceID string, opts ...Option) (JobStatus, error) {
	tg, err := NewTarget(evidenceID)
	if err != nil {
		return JobStatus{}, err
	}
	cfg, err := newConfig(opts)
	if err != nil {
		return JobStatus{}, err
	}

	client, err := cfg.apiClient(ctx)
	if err != nil {
		return JobStatus{}, err
	}
	defer client.Close()

	current, err := client.GetEvidence(ctx, evidenceID)
	if err != nil {
		return JobStatus{}, fmt.Errorf("failed to load evidence %s: %w", evidenceID, err)
	}

	done := make(chan error, 1)
	finish := func(err error) {
		select {
		case done <- err:
		default:
		}
	}

	tr, err := analysis.New(ctx, evidenceID, current.Status, client, analysis.Config{
		Interval:        cfg.pollingInterval,
		MaxAttempts:     cfg.maxAttempts,
		InitialEvidence: &current,
		OnComplete: func(api.EvidenceDetail) {
			finish(nil)
		},
		OnError: func(kind analysis.FailureKind, _ string) {
			// status check failures are retried by the next probe and
			// trigger failures are returned by TriggerAnalysis
			switch kind {
			case analysis.FailureAnalysis:
				finish(ErrAnalysisFailed)
			case analysis.FailureTimeout:
				finish(ErrTimeout)
			}
		},
		OnChange: func(job analysis.Job) {
			js := toJobStatus(tg, job)
			for _, cb := range cfg.statusCallbacks {
				invokeCallbackSafe(cb, js, cfg.logger)
			}
		},
		Logger: cfg.logger,
	})
	if err != nil {
		return JobStatus{}, err
	}
	defer tr.Close()

	if current.Status != api.StatusProcessing {
		if err := tr.TriggerAnalysis(ctx); err != nil {
			return toJobStatus(tg, tr.Snapshot()), err
		}

		select {
		case err := <-done:
			return toJobStatus(tg, tr.Snapshot()), err
		default:
		}
		if job := tr.Snapshot(); !job.IsPolling && job.PollingAttempts == 0 && ctx.Err() == nil {
			return toJobStatus(tg, job), ErrNotAccepted
		}
	}

	select {
	case err := <-done:
		return toJobStatus(tg, tr.Snapshot()), err
	case <-ctx.Done():
		return toJobStatus(tg, tr.Snapshot()), ctx.Err()
	}
}
