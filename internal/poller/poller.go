package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultInterval is the time between probes when Config.Interval is zero.
	DefaultInterval = 5 * time.Second

	// DefaultMaxAttempts is the probe ceiling when Config.MaxAttempts is zero.
	// Together with DefaultInterval it gives a five minute polling window.
	DefaultMaxAttempts = 60
)

// Reason names why a polling session terminated on its own.
type Reason string

const (
	// ReasonConditionMet means the stop condition accepted the latest value.
	ReasonConditionMet Reason = "condition-met"

	// ReasonMaxAttempts means the session issued MaxAttempts probes without
	// the stop condition being met.
	ReasonMaxAttempts Reason = "max-attempts"
)

// String returns the string representation of the reason.
func (r Reason) String() string {
	return string(r)
}

// Outcome is delivered to Config.OnComplete when a session terminates because
// of its stop condition or its attempt ceiling. Sessions ended by [Poller.Stop]
// produce no outcome.
type Outcome[T any] struct {
	// SessionID identifies the session that produced the outcome.
	SessionID string

	// Reason is either ReasonConditionMet or ReasonMaxAttempts.
	Reason Reason

	// Value is the most recent successful probe result. It is the zero value
	// when HasValue is false.
	Value T

	// HasValue reports whether any probe of the session succeeded.
	HasValue bool

	// Attempts is the number of probes the session issued.
	Attempts int
}

// Session is a point-in-time view of a polling session.
type Session struct {
	ID        string
	Attempts  int
	Active    bool
	StartedAt time.Time
}

// Config describes what a [Poller] probes and how often.
type Config[T any] struct {
	// Probe fetches the latest value. The context is cancelled when the
	// session is stopped, so network probes should honour it. Required.
	Probe func(ctx context.Context) (T, error)

	// StopCondition reports whether a value is terminal. Required.
	StopCondition func(value T) bool

	// Interval is the time between successive probes. Defaults to 5s.
	Interval time.Duration

	// MaxAttempts bounds the number of probes per session. Defaults to 60.
	MaxAttempts int

	// OnValue is called with every accepted probe result, before the stop
	// condition is evaluated. Optional.
	OnValue func(value T)

	// OnComplete is called once when a session terminates on its own. Optional.
	OnComplete func(outcome Outcome[T])

	// OnError is called for every failed probe. Failures are not terminal.
	// Optional.
	OnError func(err error)

	// Context is the parent of every session context. When it is cancelled
	// the active session ends without an outcome. Defaults to
	// context.Background().
	Context context.Context

	// Logger receives session lifecycle and panic logs. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// session is the private state of one activation.
type session[T any] struct {
	id        string
	ctx       context.Context
	cancel    context.CancelFunc
	startedAt time.Time
	attempts  int
	latest    T
	hasLatest bool
}

// Poller repeatedly probes a single subject.
//
// At most one session is active at a time and at most one probe is in flight
// per session. Probes run on a dedicated goroutine per session; callbacks run
// on that goroutine outside the poller's lock, so they may call back into the
// poller (for example to Stop it).
//
// All methods are safe for concurrent use.
type Poller[T any] struct {
	cfg    Config[T]
	logger *slog.Logger

	mu      sync.Mutex
	current *session[T] // active session, nil when idle
	last    *session[T] // most recent session, active or finished
	enabled bool
}

// New creates a [Poller] from cfg, applying defaults for zero values.
//
// The poller is idle until [Poller.Start] is called or it is enabled with
// [Poller.SetEnabled].
func New[T any](cfg Config[T]) (*Poller[T], error) {
	if cfg.Probe == nil {
		return nil, errors.New("probe function is required")
	}
	if cfg.StopCondition == nil {
		return nil, errors.New("stop condition is required")
	}
	if cfg.Interval < 0 {
		return nil, fmt.Errorf("interval must not be negative, got %s", cfg.Interval)
	}
	if cfg.MaxAttempts < 0 {
		return nil, fmt.Errorf("max attempts must not be negative, got %d", cfg.MaxAttempts)
	}
	if cfg.Interval == 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Context == nil {
		cfg.Context = context.Background()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Poller[T]{cfg: cfg, logger: logger}, nil
}

// Interval returns the configured time between probes.
func (p *Poller[T]) Interval() time.Duration {
	return p.cfg.Interval
}

// MaxAttempts returns the configured probe ceiling per session.
func (p *Poller[T]) MaxAttempts() int {
	return p.cfg.MaxAttempts
}

// Start activates a new session.
//
// If a session is already active, Start is a no-op: the attempt counter is
// not reset and no second probe stream is spawned. Otherwise the attempt
// counter and latest value are reset, the first probe is issued immediately
// and subsequent probes follow every Interval until the session terminates.
// Start does nothing once the parent context is done.
func (p *Poller[T]) Start() {
	p.mu.Lock()
	if p.current != nil {
		p.mu.Unlock()
		return
	}
	if p.cfg.Context.Err() != nil {
		p.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(p.cfg.Context)
	s := &session[T]{
		id:        uuid.NewString(),
		ctx:       ctx,
		cancel:    cancel,
		startedAt: time.Now(),
	}
	p.current = s
	p.last = s
	p.mu.Unlock()

	p.logger.Debug("polling session started",
		"session_id", s.id,
		"interval", p.cfg.Interval.String(),
		"max_attempts", p.cfg.MaxAttempts,
	)

	go p.run(s)
}

// Stop ends the active session immediately.
//
// Stop is safe to call when no session is active. An in-flight probe is
// cancelled through its context; whatever it returns is discarded, so it
// cannot update the latest value, fire callbacks or schedule another probe.
func (p *Poller[T]) Stop() {
	p.mu.Lock()
	s := p.current
	p.current = nil
	p.mu.Unlock()

	if s == nil {
		return
	}
	s.cancel()
	p.logger.Debug("polling session stopped", "session_id", s.id)
}

// SetEnabled binds the session lifetime to an external condition.
//
// Only transitions matter: false to true starts a session when none is
// active, true to false stops the active one. Repeating the current value
// does nothing. A poller starts out disabled.
func (p *Poller[T]) SetEnabled(enabled bool) {
	p.mu.Lock()
	if p.enabled == enabled {
		p.mu.Unlock()
		return
	}
	p.enabled = enabled
	active := p.current != nil
	p.mu.Unlock()

	switch {
	case enabled && !active:
		p.Start()
	case !enabled && active:
		p.Stop()
	}
}

// Enabled reports the last value passed to SetEnabled.
func (p *Poller[T]) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

// Active reports whether a session is running (a probe is in flight or the
// next one is scheduled).
func (p *Poller[T]) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil
}

// Attempts returns the number of probes issued by the current session, or by
// the most recent one when idle. The count is reset only by the next Start,
// so it is zero before the first session alone.
func (p *Poller[T]) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return 0
	}
	return p.last.attempts
}

// Latest returns the most recent successful probe result of the current or
// most recent session.
func (p *Poller[T]) Latest() (T, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		var zero T
		return zero, false
	}
	return p.last.latest, p.last.hasLatest
}

// Session returns a view of the current or most recent session. The zero
// Session is returned before the first activation.
func (p *Poller[T]) Session() Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return Session{}
	}
	return Session{
		ID:        p.last.id,
		Attempts:  p.last.attempts,
		Active:    p.current == p.last,
		StartedAt: p.last.startedAt,
	}
}

// run drives one session: probe now, then once per tick. Probes are issued
// from this goroutine only, so they never overlap. A tick that fires while a
// probe is still running is coalesced by the ticker.
func (p *Poller[T]) run(s *session[T]) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	defer p.release(s)

	for {
		if !p.cycle(s) {
			return
		}

		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// cycle issues one probe and handles its result. It returns false when the
// session is over.
func (p *Poller[T]) cycle(s *session[T]) bool {
	p.mu.Lock()
	if p.current != s {
		p.mu.Unlock()
		return false
	}
	s.attempts++
	attempt := s.attempts
	p.mu.Unlock()

	value, err := p.safeProbe(s.ctx)

	p.mu.Lock()
	if p.current != s || s.ctx.Err() != nil {
		p.mu.Unlock()
		p.logger.Debug("discarding stale probe result",
			"session_id", s.id,
			"attempt", attempt,
		)
		return false
	}
	if err == nil {
		s.latest = value
		s.hasLatest = true
	}
	p.mu.Unlock()

	var reason Reason
	if err != nil {
		p.logger.Debug("probe failed",
			"session_id", s.id,
			"attempt", attempt,
			"error", err.Error(),
		)
		if p.cfg.OnError != nil && p.isCurrent(s) {
			p.invoke("on_error", func() { p.cfg.OnError(err) })
		}
	} else {
		if p.cfg.OnValue != nil && p.isCurrent(s) {
			p.invoke("on_value", func() { p.cfg.OnValue(value) })
		}
		if p.safeCondition(value) {
			reason = ReasonConditionMet
		}
	}

	if reason == "" && attempt >= p.cfg.MaxAttempts {
		reason = ReasonMaxAttempts
	}
	if reason == "" {
		return true
	}

	outcome, ok := p.finish(s, reason)
	if !ok {
		return false
	}

	p.logger.Debug("polling session completed",
		"session_id", s.id,
		"reason", reason.String(),
		"attempts", outcome.Attempts,
	)

	if p.cfg.OnComplete != nil {
		p.invoke("on_complete", func() { p.cfg.OnComplete(outcome) })
	}
	return false
}

// finish ends s if it is still the active session and builds its outcome.
func (p *Poller[T]) finish(s *session[T], reason Reason) (Outcome[T], bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != s {
		return Outcome[T]{}, false
	}
	p.current = nil
	s.cancel()

	return Outcome[T]{
		SessionID: s.id,
		Reason:    reason,
		Value:     s.latest,
		HasValue:  s.hasLatest,
		Attempts:  s.attempts,
	}, true
}

// release clears s when its goroutine exits while it is still registered as
// active, which happens when the parent context is cancelled.
func (p *Poller[T]) release(s *session[T]) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == s {
		p.current = nil
	}
	s.cancel()
}

func (p *Poller[T]) isCurrent(s *session[T]) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current == s
}

// safeProbe calls the probe with panic recovery. A panic is logged with a
// correlation ID and reported as an ordinary probe failure.
func (p *Poller[T]) safeProbe(ctx context.Context) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			p.logger.Error("probe panic",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("probe panic (correlation_id: %s)", correlationID)
		}
	}()
	return p.cfg.Probe(ctx)
}

// safeCondition evaluates the stop condition; a panic counts as "not met".
func (p *Poller[T]) safeCondition(value T) (met bool) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("stop condition panic",
				"correlation_id", uuid.NewString(),
				"panic", fmt.Sprintf("%v", r),
			)
			met = false
		}
	}()
	return p.cfg.StopCondition(value)
}

// invoke runs a callback with panic recovery so that a misbehaving callback
// cannot kill the session goroutine.
func (p *Poller[T]) invoke(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("poller callback panic",
				"callback", name,
				"correlation_id", uuid.NewString(),
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	fn()
}
