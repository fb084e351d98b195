package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/inspectwatch/internal/api"
	"github.com/jpalmerr/inspectwatch/internal/poller"
)

// Operator-facing messages stored in Job.LastError.
const (
	MsgAnalysisFailed    = "The analysis failed. Retry to run it again."
	MsgTimeout           = "The analysis took too long to finish."
	MsgStatusCheckFailed = "Could not check the analysis status."
)

const maxEvidenceIDLength = 128

// FailureKind tells apart the failures reported through Config.OnError.
type FailureKind string

const (
	// FailureTrigger is a trigger the server or the tracker refused.
	FailureTrigger FailureKind = "trigger"
	// FailureStatusCheck is a failed status probe. Polling goes on.
	FailureStatusCheck FailureKind = "status_check"
	// FailureAnalysis is an analysis the server reported as failed.
	FailureAnalysis FailureKind = "analysis"
	// FailureTimeout is a polling session that ran out of attempts.
	FailureTimeout FailureKind = "timeout"
)

// Terminal reports whether the failure ends the analysis attempt.
func (k FailureKind) Terminal() bool {
	return k == FailureAnalysis || k == FailureTimeout
}

var (
	// ErrInvalidEvidenceID is returned by New for an empty or malformed id.
	ErrInvalidEvidenceID = errors.New("invalid evidence id")

	// ErrClosed is returned by operations on a closed Tracker.
	ErrClosed = errors.New("tracker is closed")
)

// Client is the subset of the inspection API the tracker depends on.
// *api.Client satisfies it.
type Client interface {
	AnalyzeEvidence(ctx context.Context, evidenceID string) (api.AnalyzeResponse, error)
	GetEvidence(ctx context.Context, evidenceID string) (api.EvidenceDetail, error)
}

// Config holds the optional settings of a Tracker.
type Config struct {
	// Interval is the time between status probes. Defaults to 5s.
	Interval time.Duration

	// MaxAttempts bounds the probes of one polling session. Defaults to 60.
	MaxAttempts int

	// OnComplete is called with the fetched evidence when the analysis
	// completes.
	OnComplete func(evidence api.EvidenceDetail)

	// OnError is called with the kind and the operator-facing message of
	// every failure.
	OnError func(kind FailureKind, message string)

	// OnChange is called with a fresh snapshot after every observable state
	// change.
	OnChange func(job Job)

	// InitialEvidence and InitialError seed the snapshot of a tracker
	// created from a previously fetched state. InitialError is cleared by
	// the next trigger.
	InitialEvidence *api.EvidenceDetail
	InitialError    string

	Logger *slog.Logger
}

// Job is a point-in-time view of a Tracker.
type Job struct {
	EvidenceID      string
	Status          api.AnalysisStatus
	IsTriggering    bool
	LastError       string
	PollingAttempts int
	MaxAttempts     int
	IsPolling       bool
	Evidence        *api.EvidenceDetail
	UpdatedAt       time.Time
}

// Progress returns PollingAttempts / MaxAttempts in [0, 1].
func (j Job) Progress() float64 {
	if j.MaxAttempts <= 0 {
		return 0
	}
	p := float64(j.PollingAttempts) / float64(j.MaxAttempts)
	if p > 1 {
		return 1
	}
	return p
}

// Tracker owns the analysis state of a single evidence item.
//
// All methods are safe for concurrent use. Callbacks are invoked without any
// tracker lock held and may call back into the tracker.
type Tracker struct {
	evidenceID string
	client     Client
	cfg        Config
	logger     *slog.Logger
	engine     *poller.Poller[api.EvidenceDetail]

	mu         sync.Mutex
	status     api.AnalysisStatus
	triggering bool
	lastError  string
	evidence   *api.EvidenceDetail
	updatedAt  time.Time
	closed     bool
}

// ValidateEvidenceID reports whether id can be used in an API path.
func ValidateEvidenceID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("%w: empty", ErrInvalidEvidenceID)
	case len(id) > maxEvidenceIDLength:
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidEvidenceID, maxEvidenceIDLength)
	case strings.ContainsAny(id, "/?# \t\r\n"):
		return fmt.Errorf("%w: %q contains a reserved character", ErrInvalidEvidenceID, id)
	}
	return nil
}

// New creates a Tracker for evidenceID starting from initialStatus.
//
// An empty initialStatus means pending. When it is processing, polling starts
// right away. ctx bounds the lifetime of every polling session; cancel it or
// call Close to release the tracker.
func New(ctx context.Context, evidenceID string, initialStatus api.AnalysisStatus, client Client, cfg Config) (*Tracker, error) {
	if err := ValidateEvidenceID(evidenceID); err != nil {
		return nil, err
	}
	if client == nil {
		return nil, errors.New("client is required")
	}
	if initialStatus == "" {
		initialStatus = api.StatusPending
	}
	if !initialStatus.Valid() {
		return nil, fmt.Errorf("unknown initial status %q", initialStatus)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("evidence_id", evidenceID)

	t := &Tracker{
		evidenceID: evidenceID,
		client:     client,
		cfg:        cfg,
		logger:     logger,
		status:     initialStatus,
		lastError:  cfg.InitialError,
		updatedAt:  time.Now(),
	}
	if cfg.InitialEvidence != nil {
		e := *cfg.InitialEvidence
		t.evidence = &e
	}

	engine, err := poller.New(poller.Config[api.EvidenceDetail]{
		Probe:         t.probe,
		StopCondition: func(e api.EvidenceDetail) bool { return e.Status.Terminal() },
		Interval:      cfg.Interval,
		MaxAttempts:   cfg.MaxAttempts,
		OnValue:       t.handleValue,
		OnComplete:    t.handleComplete,
		OnError:       t.handleProbeError,
		Context:       ctx,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create poller: %w", err)
	}
	t.engine = engine

	if initialStatus == api.StatusProcessing {
		t.engine.SetEnabled(true)
	}
	return t, nil
}

// EvidenceID returns the id the tracker is bound to.
func (t *Tracker) EvidenceID() string {
	return t.evidenceID
}

// Snapshot returns the current state.
func (t *Tracker) Snapshot() Job {
	session := t.engine.Session()

	t.mu.Lock()
	defer t.mu.Unlock()

	var evidence *api.EvidenceDetail
	if t.evidence != nil {
		e := *t.evidence
		evidence = &e
	}
	return Job{
		EvidenceID:      t.evidenceID,
		Status:          t.status,
		IsTriggering:    t.triggering,
		LastError:       t.lastError,
		PollingAttempts: session.Attempts,
		MaxAttempts:     t.engine.MaxAttempts(),
		IsPolling:       session.Active,
		Evidence:        evidence,
		UpdatedAt:       t.updatedAt,
	}
}

// TriggerAnalysis starts the analysis job and, once the server accepts it,
// polls until it finishes.
//
// A failed trigger leaves the status unchanged, stores the operator-facing
// message in LastError, calls OnError and returns the API error. A trigger
// issued while another is in flight or while polling is active is rejected
// with an ALREADY_PROCESSING error, reported the same way, and does not reach
// the server.
func (t *Tracker) TriggerAnalysis(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	if t.busy() {
		t.mu.Unlock()
		return t.reject()
	}
	t.triggering = true
	t.lastError = ""
	t.touch()
	t.mu.Unlock()
	t.notify()

	defer func() {
		t.mu.Lock()
		t.triggering = false
		t.touch()
		t.mu.Unlock()
		t.notify()
	}()

	resp, err := t.client.AnalyzeEvidence(ctx, t.evidenceID)
	if err != nil {
		msg := api.UserMessage(err)
		t.logger.Warn("failed to trigger analysis", "error", err.Error())
		t.fail(FailureTrigger, msg)
		return fmt.Errorf("failed to trigger analysis of %s: %w", t.evidenceID, err)
	}
	if !resp.Accepted() {
		t.logger.Warn("trigger not accepted", "trigger_status", resp.Status)
		return nil
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	t.status = api.StatusProcessing
	t.touch()
	// SetEnabled alone would not restart a session that timed out, since the
	// status was processing already. Both run under t.mu so that the end of
	// a previous session cannot disable the new one.
	t.engine.SetEnabled(true)
	t.engine.Start()
	t.mu.Unlock()

	t.logger.Info("analysis triggered", "trigger_status", resp.Status)
	return nil
}

// RetryAnalysis clears LastError and re-runs the trigger path. It is meant
// for jobs in the error state. A retry refused because the job is busy
// records the refusal in LastError.
func (t *Tracker) RetryAnalysis(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	if t.busy() {
		t.mu.Unlock()
		return t.reject()
	}
	t.lastError = ""
	t.touch()
	t.mu.Unlock()
	t.notify()

	return t.TriggerAnalysis(ctx)
}

// StopPolling ends the active polling session, if any. The status is left as
// it is.
func (t *Tracker) StopPolling() {
	t.engine.SetEnabled(false)
	t.engine.Stop()

	t.mu.Lock()
	t.touch()
	t.mu.Unlock()
	t.notify()
}

// Close stops polling for good. Later triggers return ErrClosed.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()

	t.engine.SetEnabled(false)
	t.engine.Stop()
}

func (t *Tracker) probe(ctx context.Context) (api.EvidenceDetail, error) {
	return t.client.GetEvidence(ctx, t.evidenceID)
}

// handleValue mirrors the server status. It only sees results of the
// current session.
func (t *Tracker) handleValue(e api.EvidenceDetail) {
	t.mu.Lock()
	t.status = e.Status
	t.evidence = &e
	t.touch()
	t.mu.Unlock()
	t.notify()
}

func (t *Tracker) handleProbeError(err error) {
	t.logger.Warn("status check failed", "error", err.Error())
	t.fail(FailureStatusCheck, MsgStatusCheckFailed)
}

// handleComplete ignores the outcome of a session that a later trigger has
// already replaced.
func (t *Tracker) handleComplete(o poller.Outcome[api.EvidenceDetail]) {
	t.mu.Lock()
	if t.engine.Session().ID != o.SessionID {
		t.mu.Unlock()
		t.logger.Debug("ignoring outcome of replaced polling session", "session_id", o.SessionID)
		return
	}
	if o.Reason != poller.ReasonMaxAttempts {
		t.engine.SetEnabled(false)
	}
	t.touch()
	t.mu.Unlock()

	t.logger.Info("polling finished",
		"session_id", o.SessionID,
		"reason", o.Reason.String(),
		"attempts", o.Attempts,
	)

	if o.Reason == poller.ReasonMaxAttempts {
		t.fail(FailureTimeout, MsgTimeout)
		return
	}

	switch o.Value.Status {
	case api.StatusCompleted:
		t.notify()
		if t.cfg.OnComplete != nil {
			t.invoke("on_complete", func() { t.cfg.OnComplete(o.Value) })
		}
	case api.StatusError:
		t.fail(FailureAnalysis, MsgAnalysisFailed)
	}
}

// busy must be called with t.mu held.
func (t *Tracker) busy() bool {
	return t.triggering || t.engine.Active()
}

// reject reports a trigger refused locally like one the server refused.
func (t *Tracker) reject() error {
	err := &api.Error{
		Code:    api.CodeAlreadyProcessing,
		Message: "analysis is already running for this evidence",
	}
	t.logger.Warn("trigger rejected", "error", err.Error())
	t.fail(FailureTrigger, api.UserMessage(err))
	return err
}

// fail records msg as the last error, publishes the change and calls OnError.
func (t *Tracker) fail(kind FailureKind, msg string) {
	t.mu.Lock()
	t.lastError = msg
	t.touch()
	t.mu.Unlock()
	t.notify()

	if t.cfg.OnError != nil {
		t.invoke("on_error", func() { t.cfg.OnError(kind, msg) })
	}
}

// touch must be called with t.mu held.
func (t *Tracker) touch() {
	t.updatedAt = time.Now()
}

func (t *Tracker) notify() {
	if t.cfg.OnChange == nil {
		return
	}
	job := t.Snapshot()
	t.invoke("on_change", func() { t.cfg.OnChange(job) })
}

func (t *Tracker) invoke(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("tracker callback panic",
				"callback", name,
				"correlation_id", uuid.NewString(),
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	fn()
}
