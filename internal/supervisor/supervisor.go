package supervisor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/rmckenny/shadowsync/internal/netlink"
	"github.com/rmckenny/shadowsync/internal/readiness"
)

// ErrStopped is returned by Run when the context is cancelled.
var ErrStopped = errors.New("supervisor: stopped")

// Session is the broker session as the supervisor sees it. The agent
// implements it over the mqtt client, folding topic handlers into
// Subscribe so the supervisor never touches topics.
type Session interface {
	// Connect establishes the broker session. One attempt, no internal
	// retry.
	Connect(ctx context.Context) error

	// IsConnected reports the current session state.
	IsConnected() bool

	// Subscribe registers the steady-state topic set on the live
	// session.
	Subscribe(ctx context.Context) error
}

// Logger is the subset of the logging interface the supervisor needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config tunes the supervisor's timing.
type Config struct {
	// RetryInterval is the delay after a failed bring-up attempt.
	// The stack holds position and retries the same layer.
	RetryInterval time.Duration

	// TickInterval is the steady-state revalidation cadence.
	TickInterval time.Duration

	// SessionProbeThreshold is how many consecutive session connect
	// failures are tolerated before the lower layers are actively
	// probed for liveness.
	SessionProbeThreshold int
}

const (
	defaultRetryInterval         = 30 * time.Second
	defaultTickInterval          = time.Second
	defaultSessionProbeThreshold = 3
)

// Stats counts supervisor outcomes. Failures never escalate past the
// supervisor, so the counters are the only trace of a flaky layer.
type Stats struct {
	LinkFailures      uint64
	BearerFailures    uint64
	SessionFailures   uint64
	SubscribeFailures uint64
	Reentries         uint64
}

// Supervisor drives the connectivity stack to the Subscribed steady
// state and keeps it there.
//
// The decision of what to do next (Next) is pure and clock-injected;
// all I/O happens in execute. Run alternates the two until its context
// is cancelled. The supervisor is the only writer of retry timing; the
// readiness flags are shared with disconnect callbacks and publish
// triage, which may clear them at any time.
type Supervisor struct {
	cfg     Config
	flags   *readiness.Flags
	link    netlink.Link
	bearer  netlink.Bearer
	session Session

	policy backoff.BackOff
	clock  func() time.Time
	logger Logger

	// notBefore gates retries; zero means no delay pending.
	notBefore time.Time

	// sessionFailures counts consecutive session connect failures for
	// the lower-layer probe.
	sessionFailures int

	statsMu sync.Mutex
	stats   Stats
}

// New creates a supervisor over the given layers. Defaults are applied
// for any zero Config field.
func New(cfg Config, flags *readiness.Flags, link netlink.Link, bearer netlink.Bearer, session Session) *Supervisor {
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = defaultRetryInterval
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}
	if cfg.SessionProbeThreshold <= 0 {
		cfg.SessionProbeThreshold = defaultSessionProbeThreshold
	}

	return &Supervisor{
		cfg:     cfg,
		flags:   flags,
		link:    link,
		bearer:  bearer,
		session: session,
		policy:  backoff.NewConstantBackOff(cfg.RetryInterval),
		clock:   time.Now,
		logger:  noopLogger{},
	}
}

// SetLogger attaches a logger. Call before Run.
func (s *Supervisor) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetBackOff replaces the retry policy. The default is a constant
// delay of Config.RetryInterval. Call before Run.
func (s *Supervisor) SetBackOff(policy backoff.BackOff) {
	if policy != nil {
		s.policy = policy
	}
}

// Next returns the single step due at the given instant. It performs
// no I/O and no flag mutation.
func (s *Supervisor) Next(now time.Time) Action {
	if !s.notBefore.IsZero() && now.Before(s.notBefore) {
		return ActionWait
	}
	return actionForState(stateFromFlags(s.flags.Snapshot()))
}

// Run drives the stack until ctx is cancelled. It always returns
// ErrStopped wrapping the context error.
func (s *Supervisor) Run(ctx context.Context) error {
	s.logger.Info("connectivity supervisor started",
		"retry_interval", s.cfg.RetryInterval,
		"tick_interval", s.cfg.TickInterval)

	for {
		if err := ctx.Err(); err != nil {
			return errors.Join(ErrStopped, err)
		}

		now := s.clock()
		switch action := s.Next(now); action {
		case ActionWait:
			s.sleep(ctx, s.notBefore.Sub(now))
		case ActionRevalidate:
			s.revalidate()
			s.sleep(ctx, s.cfg.TickInterval)
		default:
			s.execute(ctx, action)
		}
	}
}

// Stats returns a copy of the failure counters.
func (s *Supervisor) Stats() Stats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

// execute performs the I/O for one action and updates flags and retry
// timing from the outcome.
func (s *Supervisor) execute(ctx context.Context, action Action) {
	switch action {
	case ActionBringUpLink:
		if err := s.link.BringUp(ctx); err != nil {
			s.fail(action, err, func(st *Stats) { st.LinkFailures++ })
			return
		}
		s.logger.Info("link up")
		s.flags.Set(readiness.Link)
		s.succeed()

	case ActionBringUpBearer:
		if err := s.bearer.BringUp(ctx); err != nil {
			s.fail(action, err, func(st *Stats) { st.BearerFailures++ })
			return
		}
		s.logger.Info("bearer up")
		s.flags.Set(readiness.Bearer)
		s.succeed()

	case ActionConnectSession:
		if err := s.session.Connect(ctx); err != nil {
			s.sessionFailures++
			s.fail(action, err, func(st *Stats) { st.SessionFailures++ })
			if s.sessionFailures >= s.cfg.SessionProbeThreshold {
				s.probeLowerLayers()
			}
			return
		}
		s.logger.Info("session connected")
		s.sessionFailures = 0
		s.flags.Set(readiness.Session)
		s.succeed()

	case ActionSubscribe:
		if err := s.session.Subscribe(ctx); err != nil {
			// A failed subscribe leaves the session in an unknown
			// state; reconnect rather than resubscribe blind.
			s.flags.Clear(readiness.Session)
			s.fail(action, err, func(st *Stats) { st.SubscribeFailures++ })
			return
		}
		s.logger.Info("topic set subscribed, steady state reached")
		s.flags.Set(readiness.Subscribed)
		s.succeed()
	}
}

// revalidate is the steady-state tick. It cascades any flag another
// goroutine cleared, and verifies session liveness itself since the
// session is the only layer with a cheap local check.
func (s *Supervisor) revalidate() {
	snap := s.flags.Snapshot()
	switch {
	case snap&readiness.Link == 0:
		s.reenter(readiness.Link, "link lost")
	case snap&readiness.Bearer == 0:
		s.reenter(readiness.Bearer, "bearer lost")
	case snap&readiness.Session == 0:
		s.reenter(readiness.Session, "session lost")
	default:
		if !s.session.IsConnected() {
			s.reenter(readiness.Session, "session dead on liveness check")
		}
	}
}

// reenter cascade-clears from the lost layer so the next decision
// resumes at the highest state the remaining flags support.
func (s *Supervisor) reenter(from readiness.Flag, reason string) {
	s.logger.Warn("leaving steady state", "reason", reason, "cleared_from", from.String())
	s.flags.ClearFrom(from)
	s.statsMu.Lock()
	s.stats.Reentries++
	s.statsMu.Unlock()
}

// probeLowerLayers actively checks link and bearer after repeated
// session failures. Session connect errors cannot distinguish a broker
// problem from a dead network underneath, so the probe clears the
// deepest layer that is actually down.
func (s *Supervisor) probeLowerLayers() {
	s.sessionFailures = 0
	if !s.link.IsUp() {
		s.logger.Warn("probe found link down")
		s.flags.ClearFrom(readiness.Link)
		return
	}
	if !s.bearer.IsUp() {
		s.logger.Warn("probe found bearer down")
		s.flags.ClearFrom(readiness.Bearer)
		return
	}
	s.logger.Debug("probe found lower layers healthy, session retry continues")
}

// fail records a bring-up failure and arms the retry delay.
func (s *Supervisor) fail(action Action, err error, count func(*Stats)) {
	delay := s.policy.NextBackOff()
	s.notBefore = s.clock().Add(delay)
	s.logger.Warn("bring-up step failed",
		"action", action.String(),
		"retry_in", delay,
		"error", err)
	s.statsMu.Lock()
	count(&s.stats)
	s.statsMu.Unlock()
}

// succeed clears the retry delay and resets the backoff policy.
func (s *Supervisor) succeed() {
	s.notBefore = time.Time{}
	s.policy.Reset()
}

// sleep blocks for d or until ctx is cancelled.
func (s *Supervisor) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
