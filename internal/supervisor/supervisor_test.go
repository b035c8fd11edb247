package supervisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rmckenny/shadowsync/internal/readiness"
)

// fakeClock is a manually advanced clock for driving Next.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// fakeLayer implements both netlink.Link and netlink.Bearer.
type fakeLayer struct {
	up       bool
	err      error
	bringUps int
}

func (l *fakeLayer) BringUp(ctx context.Context) error {
	l.bringUps++
	if l.err != nil {
		return l.err
	}
	l.up = true
	return nil
}

func (l *fakeLayer) IsUp() bool { return l.up }

// fakeSession implements Session.
type fakeSession struct {
	connected    bool
	connectErr   error
	subscribeErr error
	connects     int
	subscribes   int
}

func (s *fakeSession) Connect(ctx context.Context) error {
	s.connects++
	if s.connectErr != nil {
		return s.connectErr
	}
	s.connected = true
	return nil
}

func (s *fakeSession) IsConnected() bool { return s.connected }

func (s *fakeSession) Subscribe(ctx context.Context) error {
	s.subscribes++
	return s.subscribeErr
}

// harness bundles a supervisor with its fakes and clock.
type harness struct {
	sup     *Supervisor
	clock   *fakeClock
	flags   *readiness.Flags
	link    *fakeLayer
	bearer  *fakeLayer
	session *fakeSession
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:   &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		flags:   readiness.NewFlags(),
		link:    &fakeLayer{},
		bearer:  &fakeLayer{},
		session: &fakeSession{},
	}
	h.sup = New(Config{
		RetryInterval:         30 * time.Second,
		TickInterval:          time.Second,
		SessionProbeThreshold: 3,
	}, h.flags, h.link, h.bearer, h.session)
	h.sup.clock = h.clock.Now
	return h
}

// step takes one decision and executes it, returning the action taken.
func (h *harness) step(t *testing.T) Action {
	t.Helper()
	action := h.sup.Next(h.clock.now)
	switch action {
	case ActionWait:
	case ActionRevalidate:
		h.sup.revalidate()
	default:
		h.sup.execute(context.Background(), action)
	}
	return action
}

func TestStateFromFlags(t *testing.T) {
	tests := []struct {
		name string
		snap readiness.Flag
		want State
	}{
		{"nothing up", 0, StateLinkDown},
		{"link only", readiness.Link, StateLinkUp},
		{"link and bearer", readiness.Link | readiness.Bearer, StateBearerUp},
		{"session up", readiness.Link | readiness.Bearer | readiness.Session, StateSessionUp},
		{"steady state", readiness.AllLayers, StateSubscribed},
		{"lower flag dominates", readiness.Bearer | readiness.Session | readiness.Subscribed, StateLinkDown},
		{"bearer gone under session", readiness.Link | readiness.Session, StateLinkUp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stateFromFlags(tt.snap); got != tt.want {
				t.Errorf("stateFromFlags(%v) = %v, want %v", tt.snap, got, tt.want)
			}
		})
	}
}

func TestColdStartToSteadyState(t *testing.T) {
	h := newHarness(t)

	want := []Action{ActionBringUpLink, ActionBringUpBearer, ActionConnectSession, ActionSubscribe}
	for i, w := range want {
		if got := h.step(t); got != w {
			t.Fatalf("step %d: action = %v, want %v", i, got, w)
		}
	}

	if !h.flags.All(readiness.AllLayers) {
		t.Errorf("flags after cold start = %v, want all set", h.flags.Snapshot())
	}
	if got := h.sup.Next(h.clock.now); got != ActionRevalidate {
		t.Errorf("steady-state action = %v, want %v", got, ActionRevalidate)
	}
}

func TestLinkFailureHoldsPositionAndRetries(t *testing.T) {
	h := newHarness(t)
	h.link.err = errors.New("no ap found")

	if got := h.step(t); got != ActionBringUpLink {
		t.Fatalf("first action = %v, want %v", got, ActionBringUpLink)
	}

	// Delay armed: nothing due until the retry interval elapses.
	if got := h.sup.Next(h.clock.now); got != ActionWait {
		t.Errorf("action during backoff = %v, want %v", got, ActionWait)
	}
	h.clock.Advance(29 * time.Second)
	if got := h.sup.Next(h.clock.now); got != ActionWait {
		t.Errorf("action at 29s = %v, want %v", got, ActionWait)
	}

	// After the interval the same layer is retried.
	h.clock.Advance(2 * time.Second)
	h.link.err = nil
	if got := h.step(t); got != ActionBringUpLink {
		t.Errorf("action after backoff = %v, want %v", got, ActionBringUpLink)
	}
	if !h.flags.All(readiness.Link) {
		t.Error("link flag should be set after successful retry")
	}
	if h.link.bringUps != 2 {
		t.Errorf("link bring-ups = %d, want 2", h.link.bringUps)
	}
	if h.sup.Stats().LinkFailures != 1 {
		t.Errorf("link failures = %d, want 1", h.sup.Stats().LinkFailures)
	}
}

func TestSessionFailureKeepsLowerLayers(t *testing.T) {
	h := newHarness(t)
	h.step(t) // link
	h.step(t) // bearer
	h.session.connectErr = errors.New("broker unreachable")

	if got := h.step(t); got != ActionConnectSession {
		t.Fatalf("action = %v, want %v", got, ActionConnectSession)
	}

	if !h.flags.All(readiness.Link | readiness.Bearer) {
		t.Error("session failure must not clear link or bearer")
	}
	h.clock.Advance(31 * time.Second)
	if got := h.sup.Next(h.clock.now); got != ActionConnectSession {
		t.Errorf("retry action = %v, want session retry, not lower layer", got)
	}
}

func TestRepeatedSessionFailureProbesLowerLayers(t *testing.T) {
	h := newHarness(t)
	h.step(t) // link
	h.step(t) // bearer
	h.session.connectErr = errors.New("broker unreachable")

	// Bearer silently died; the probe should find it on the third
	// consecutive failure.
	h.bearer.up = false

	for i := 0; i < 3; i++ {
		if got := h.step(t); got != ActionConnectSession {
			t.Fatalf("attempt %d: action = %v, want %v", i, got, ActionConnectSession)
		}
		h.clock.Advance(31 * time.Second)
	}

	if h.flags.All(readiness.Bearer) {
		t.Error("probe should have cleared the dead bearer flag")
	}
	if !h.flags.All(readiness.Link) {
		t.Error("probe must not clear the healthy link flag")
	}
	if got := h.sup.Next(h.clock.now); got != ActionBringUpBearer {
		t.Errorf("action after probe = %v, want %v", got, ActionBringUpBearer)
	}
}

func TestSubscribeFailureReconnectsSession(t *testing.T) {
	h := newHarness(t)
	h.step(t) // link
	h.step(t) // bearer
	h.step(t) // session
	h.session.subscribeErr = errors.New("suback error")

	if got := h.step(t); got != ActionSubscribe {
		t.Fatalf("action = %v, want %v", got, ActionSubscribe)
	}

	if h.flags.All(readiness.Session) {
		t.Error("subscribe failure should clear the session flag")
	}
	if !h.flags.All(readiness.Link | readiness.Bearer) {
		t.Error("subscribe failure must not clear link or bearer")
	}
	h.clock.Advance(31 * time.Second)
	if got := h.sup.Next(h.clock.now); got != ActionConnectSession {
		t.Errorf("action after subscribe failure = %v, want %v", got, ActionConnectSession)
	}
}

func TestRevalidateCascadesExternallyClearedFlag(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 4; i++ {
		h.step(t)
	}

	// Publish triage in another goroutine proved the link dead.
	h.flags.Clear(readiness.Link)
	h.link.up = false

	if got := h.step(t); got != ActionRevalidate {
		t.Fatalf("action = %v, want %v", got, ActionRevalidate)
	}

	if got := h.flags.Snapshot(); got != 0 {
		t.Errorf("flags after cascade = %v, want none", got)
	}
	if got := h.sup.Next(h.clock.now); got != ActionBringUpLink {
		t.Errorf("re-entry action = %v, want %v", got, ActionBringUpLink)
	}
	if h.sup.Stats().Reentries != 1 {
		t.Errorf("reentries = %d, want 1", h.sup.Stats().Reentries)
	}
}

func TestRevalidateDetectsDeadSession(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 4; i++ {
		h.step(t)
	}

	// The session dropped without a disconnect callback firing.
	h.session.connected = false

	if got := h.step(t); got != ActionRevalidate {
		t.Fatalf("action = %v, want %v", got, ActionRevalidate)
	}

	if !h.flags.All(readiness.Link | readiness.Bearer) {
		t.Error("dead session must not clear link or bearer")
	}
	if h.flags.All(readiness.Session) || h.flags.All(readiness.Subscribed) {
		t.Error("dead session should clear session and subscribed")
	}
	if got := h.sup.Next(h.clock.now); got != ActionConnectSession {
		t.Errorf("re-entry action = %v, want %v", got, ActionConnectSession)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	h := newHarness(t)
	h.sup.clock = time.Now

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- h.sup.Run(ctx)
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, ErrStopped) {
			t.Errorf("Run() returned %v, want %v", err, ErrStopped)
		}
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() returned %v, want context.Canceled in chain", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestSuccessResetsBackoff(t *testing.T) {
	h := newHarness(t)
	h.link.err = errors.New("transient")

	h.step(t)
	h.clock.Advance(31 * time.Second)
	h.link.err = nil
	h.step(t)

	// No pending delay after success: bearer attempt is immediately due.
	if got := h.sup.Next(h.clock.now); got != ActionBringUpBearer {
		t.Errorf("action after recovery = %v, want %v", got, ActionBringUpBearer)
	}
}
