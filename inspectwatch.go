package inspectwatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jpalmerr/inspectwatch/dashboard"
	"github.com/jpalmerr/inspectwatch/internal/analysis"
	"github.com/jpalmerr/inspectwatch/internal/api"
	"github.com/jpalmerr/inspectwatch/internal/server"
	"github.com/jpalmerr/inspectwatch/internal/store"
)

const (
	defaultBaseURL         = "http://localhost:3001/api"
	defaultPollingInterval = 5 * time.Second
	defaultMaxAttempts     = 60
	defaultPort            = 8080
	defaultMaxConcurrency  = 10
)

var (
	// ErrUnknownTarget is returned by actions on an evidence id that is not
	// watched.
	ErrUnknownTarget = errors.New("unknown target")

	// ErrNotRunning is returned by actions while the watcher is not started.
	ErrNotRunning = errors.New("watcher is not running")
)

// Watcher is the main orchestrator for analysis tracking and dashboard serving.
//
// Watcher keeps one analysis tracker per [Target], publishes every change to
// the dashboard and to status callbacks, and serves a live dashboard from
// which an operator can trigger, retry and stop analyses. It is created using
// [New] with functional options and started with [Watcher.Start].
//
// The typical lifecycle is:
//
//	w, err := inspectwatch.New(
//	    inspectwatch.WithTarget(tg),
//	    inspectwatch.WithBaseURL("https://portal.example.com/api"),
//	    inspectwatch.WithToken(token),
//	)
//	if err != nil {
//	    slog.Error("failed to create watcher", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	w.Start(ctx) // blocks until context cancelled
type Watcher struct {
	cfg    watcherConfig
	logger *slog.Logger

	mu       sync.RWMutex
	running  bool
	trackers map[string]*analysis.Tracker
	// targets are the explicit targets plus the evidences listed for each
	// project by the last Start.
	targets []Target

	// publishMu orders store updates so that a stale snapshot never
	// replaces a newer one.
	publishMu sync.Mutex
}

// New creates a new [Watcher] instance with the given options.
//
// At least one target must be configured via [WithTarget], [WithTargets] or
// [WithProject].
// Other options have sensible defaults:
//   - Base URL: http://localhost:3001/api
//   - Polling interval: 5 seconds
//   - Max attempts: 60
//   - Request timeout: 30 seconds
//   - Port: 8080
//
// Returns an error if no targets are configured, if an evidence id is
// watched twice or if any option is invalid.
func New(opts ...Option) (*Watcher, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}

	if len(cfg.targets) == 0 && len(cfg.projects) == 0 {
		return nil, errors.New("at least one target or project is required")
	}

	seen := make(map[string]bool, len(cfg.targets))
	for _, tg := range cfg.targets {
		if seen[tg.evidenceID] {
			return nil, fmt.Errorf("duplicate target: %q", tg.evidenceID)
		}
		seen[tg.evidenceID] = true
	}

	return &Watcher{
		cfg:     *cfg,
		logger:  cfg.logger,
		targets: cfg.targets,
	}, nil
}

// newConfig applies opts on top of the defaults.
func newConfig(opts []Option) (*watcherConfig, error) {
	cfg := &watcherConfig{
		targets:         []Target{},
		baseURL:         defaultBaseURL,
		pollingInterval: defaultPollingInterval,
		maxAttempts:     defaultMaxAttempts,
		requestTimeout:  api.DefaultTimeout,
		port:            defaultPort,
		maxConcurrency:  defaultMaxConcurrency,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	// default to slog.Default() if no logger provided
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	return cfg, nil
}

// apiClient builds the API client and logs in when credentials are set.
func (cfg *watcherConfig) apiClient(ctx context.Context) (*api.Client, error) {
	opts := []api.ClientOption{
		api.WithToken(cfg.token),
		api.WithTimeout(cfg.requestTimeout),
	}
	if cfg.httpClient != nil {
		opts = append(opts, api.WithHTTPClient(cfg.httpClient))
	}

	client, err := api.NewClient(cfg.baseURL, opts...)
	if err != nil {
		return nil, err
	}

	if cfg.token == "" && cfg.email != "" {
		resp, err := client.Login(ctx, cfg.email, cfg.password)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to log in as %s: %w", cfg.email, err)
		}
		cfg.logger.Info("logged in", "user_id", resp.User.ID, "email", resp.User.Email)
	}
	return client, nil
}

// Start begins tracking every target and serving the dashboard.
//
// Start is a blocking call that runs until the provided context is cancelled.
// During execution:
//
//   - The evidences of every project are listed and added as targets
//   - The current state of every target is loaded from the API
//   - Targets that are already processing are polled right away
//   - Pending targets created with [WithAutoTrigger] are triggered
//   - The HTTP server starts on the configured port
//
// A target whose state cannot be loaded starts as pending with the failure
// recorded in its last error.
//
// Returns nil on graceful shutdown. Returns an error if login or a project
// listing fails, if the HTTP server fails to start or if the watcher is
// already running.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("watcher is already running")
	}
	w.running = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	w.logger.Info("inspectwatch starting",
		"target_count", len(w.cfg.targets),
		"project_count", len(w.cfg.projects),
		"base_url", w.cfg.baseURL,
	)
	w.logger.Info("polling configured",
		"interval", w.cfg.pollingInterval.String(),
		"max_attempts", w.cfg.maxAttempts,
	)
	w.logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", w.cfg.port))

	// check if context already cancelled
	if ctx.Err() != nil {
		return nil
	}

	client, err := w.cfg.apiClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	targets, err := w.resolveTargets(ctx, client)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.targets = targets
	w.mu.Unlock()

	jobs := store.NewMemoryStore()

	trackCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := w.startTrackers(ctx, trackCtx, client, jobs, targets); err != nil {
		return err
	}
	defer w.closeTrackers()

	httpServer := server.NewServer(jobs, w, w.cfg.port, dashboard.Assets, w.cfg.title, w.logger)
	if err := httpServer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	w.autoTrigger(ctx, targets)

	<-ctx.Done()
	w.logger.Info("inspectwatch stopped")
	return nil
}

// startTrackers loads the state of every target and creates its tracker.
// seedCtx bounds the initial loads; trackCtx bounds the trackers' lifetime.
func (w *Watcher) startTrackers(seedCtx, trackCtx context.Context, client *api.Client, jobs *store.MemoryStore, targets []Target) error {
	trackers := make([]*analysis.Tracker, len(targets))

	g, gctx := errgroup.WithContext(seedCtx)
	g.SetLimit(w.cfg.maxConcurrency)
	for i, tg := range targets {
		g.Go(func() error {
			tr, err := w.newTracker(gctx, trackCtx, client, jobs, tg)
			if err != nil {
				return fmt.Errorf("failed to track %s: %w", tg.evidenceID, err)
			}
			trackers[i] = tr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, tr := range trackers {
			if tr != nil {
				tr.Close()
			}
		}
		return err
	}

	byID := make(map[string]*analysis.Tracker, len(trackers))
	for i, tr := range trackers {
		byID[tr.EvidenceID()] = tr
		w.publish(jobs, targets[i], tr.Snapshot())
	}

	w.mu.Lock()
	w.trackers = byID
	w.mu.Unlock()
	return nil
}

func (w *Watcher) newTracker(seedCtx, trackCtx context.Context, client *api.Client, jobs *store.MemoryStore, tg Target) (*analysis.Tracker, error) {
	id := tg.evidenceID
	status := api.StatusPending

	var (
		seed    *api.EvidenceDetail
		seedErr string
	)
	detail, err := client.GetEvidence(seedCtx, id)
	if err != nil {
		w.logger.Warn("failed to load evidence", "evidence_id", id, "error", err.Error())
		seedErr = api.UserMessage(err)
	} else {
		status = detail.Status
		seed = &detail
	}

	return analysis.New(trackCtx, id, status, client, analysis.Config{
		Interval:        w.cfg.pollingInterval,
		MaxAttempts:     w.cfg.maxAttempts,
		InitialEvidence: seed,
		InitialError:    seedErr,
		OnChange: func(job analysis.Job) {
			w.publish(jobs, tg, job)
		},
		OnComplete: func(e api.EvidenceDetail) {
			w.logger.Info("analysis completed", "evidence_id", id, "issues_count", len(e.Issues))
		},
		OnError: func(kind analysis.FailureKind, msg string) {
			w.logger.Warn("analysis problem", "evidence_id", id, "kind", string(kind), "message", msg)
		},
		Logger: w.logger,
	})
}

// autoTrigger starts the analysis of pending targets created with
// WithAutoTrigger. Failures are recorded on the job and logged.
func (w *Watcher) autoTrigger(ctx context.Context, targets []Target) {
	var g errgroup.Group
	g.SetLimit(w.cfg.maxConcurrency)

	for _, tg := range targets {
		if !tg.autoTrigger {
			continue
		}
		tr, err := w.tracker(tg.evidenceID)
		if err != nil {
			continue
		}
		if tr.Snapshot().Status != api.StatusPending {
			continue
		}
		g.Go(func() error {
			if err := tr.TriggerAnalysis(ctx); err != nil {
				w.logger.Warn("auto trigger failed", "evidence_id", tg.evidenceID, "error", err.Error())
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (w *Watcher) closeTrackers() {
	w.mu.Lock()
	trackers := w.trackers
	w.trackers = nil
	w.mu.Unlock()

	for _, tr := range trackers {
		tr.Close()
	}
}

// publish stores job and invokes the status callbacks. Snapshots older than
// the stored one are dropped.
func (w *Watcher) publish(jobs *store.MemoryStore, tg Target, job analysis.Job) {
	w.publishMu.Lock()
	if prev, ok := jobs.Get(tg.evidenceID); ok && job.UpdatedAt.Before(prev.UpdatedAt) {
		w.publishMu.Unlock()
		return
	}
	jobs.Update(toStoreJob(tg, job))
	w.publishMu.Unlock()

	if len(w.cfg.statusCallbacks) > 0 {
		js := toJobStatus(tg, job)
		for _, cb := range w.cfg.statusCallbacks {
			invokeCallbackSafe(cb, js, w.logger)
		}
	}
}

func (w *Watcher) tracker(evidenceID string) (*analysis.Tracker, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.trackers == nil {
		return nil, ErrNotRunning
	}
	tr, ok := w.trackers[evidenceID]
	if !ok {
		return nil, &api.Error{
			Code:    api.CodeNotFound,
			Message: fmt.Sprintf("evidence %s is not watched", evidenceID),
			Err:     ErrUnknownTarget,
		}
	}
	return tr, nil
}

// Trigger starts the analysis of a watched evidence photo and polls until it
// finishes. A trigger while the analysis is running is rejected with an
// ALREADY_PROCESSING error.
func (w *Watcher) Trigger(ctx context.Context, evidenceID string) error {
	tr, err := w.tracker(evidenceID)
	if err != nil {
		return err
	}
	return tr.TriggerAnalysis(ctx)
}

// Retry clears the last error of a watched evidence photo and triggers its
// analysis again.
func (w *Watcher) Retry(ctx context.Context, evidenceID string) error {
	tr, err := w.tracker(evidenceID)
	if err != nil {
		return err
	}
	return tr.RetryAnalysis(ctx)
}

// Stop ends the polling of a watched evidence photo. The analysis keeps
// running on the server.
func (w *Watcher) Stop(evidenceID string) error {
	tr, err := w.tracker(evidenceID)
	if err != nil {
		return err
	}
	tr.StopPolling()
	return nil
}

// Jobs returns the current state of every target, explicit targets first and
// then project evidences in listing order.
// Returns nil while the watcher is not running.
func (w *Watcher) Jobs() []JobStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.trackers == nil {
		return nil
	}
	result := make([]JobStatus, 0, len(w.targets))
	for _, tg := range w.targets {
		if tr, ok := w.trackers[tg.evidenceID]; ok {
			result = append(result, toJobStatus(tg, tr.Snapshot()))
		}
	}
	return result
}

// Targets returns a copy of the watched targets. Project evidences are
// included once Start has listed them.
func (w *Watcher) Targets() []Target {
	w.mu.RLock()
	defer w.mu.RUnlock()
	cp := make([]Target, len(w.targets))
	copy(cp, w.targets)
	return cp
}

// Port returns the configured HTTP port for the dashboard server.
func (w *Watcher) Port() int {
	return w.cfg.port
}

// PollingInterval returns the configured interval between status checks.
func (w *Watcher) PollingInterval() time.Duration {
	return w.cfg.pollingInterval
}

// MaxAttempts returns the configured status-check budget of a polling session.
func (w *Watcher) MaxAttempts() int {
	return w.cfg.maxAttempts
}

// BaseURL returns the configured API root.
func (w *Watcher) BaseURL() string {
	return w.cfg.baseURL
}

// toStoreJob converts a tracker snapshot to its stored form.
func toStoreJob(tg Target, job analysis.Job) store.Job {
	var lastErr *string
	if job.LastError != "" {
		s := job.LastError
		lastErr = &s
	}

	var (
		issues []api.Issue
		count  int
	)
	if job.Evidence != nil {
		issues = job.Evidence.Issues
		count = job.Evidence.IssuesCount
	}

	return store.Job{
		EvidenceID:      tg.evidenceID,
		Name:            tg.name,
		Labels:          tg.labels,
		Status:          job.Status.String(),
		IsTriggering:    job.IsTriggering,
		IsPolling:       job.IsPolling,
		PollingAttempts: job.PollingAttempts,
		MaxAttempts:     job.MaxAttempts,
		IssuesCount:     count,
		Issues:          issues,
		UpdatedAt:       job.UpdatedAt,
		LastError:       lastErr,
	}
}

// toJobStatus converts a tracker snapshot to the public type.
// Maps and slices are copied.
func toJobStatus(tg Target, job analysis.Job) JobStatus {
	js := JobStatus{
		EvidenceID:      tg.evidenceID,
		Name:            tg.name,
		Labels:          copyMap(tg.labels),
		Status:          Status(job.Status),
		IsTriggering:    job.IsTriggering,
		IsPolling:       job.IsPolling,
		PollingAttempts: job.PollingAttempts,
		MaxAttempts:     job.MaxAttempts,
		LastError:       job.LastError,
		UpdatedAt:       job.UpdatedAt,
	}
	if job.Evidence != nil {
		js.Issues = make([]Issue, len(job.Evidence.Issues))
		for i, issue := range job.Evidence.Issues {
			js.Issues[i] = Issue{
				ID:          issue.ID,
				Type:        issue.Type,
				Description: issue.Description,
				Confidence:  issue.Confidence,
				Severity:    string(issue.Severity),
			}
			if issue.Location != nil {
				loc := Location(*issue.Location)
				js.Issues[i].Location = &loc
			}
		}
	}
	return js
}

// invokeCallbackSafe calls a status callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(JobStatus), js JobStatus, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("status callback panicked",
				"panic", r,
				"evidence_id", js.EvidenceID,
				"correlation_id", uuid.NewString(),
			)
		}
	}()
	cb(js)
}
