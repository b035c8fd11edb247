package readiness

import (
	"testing"
	"time"
)

func TestSetAndAll(t *testing.T) {
	f := NewFlags()

	if f.All(Link) {
		t.Error("new tracker should have no flags set")
	}

	f.Set(Link)
	f.Set(Bearer)

	if !f.All(Link | Bearer) {
		t.Error("Link|Bearer should be satisfied after setting both")
	}
	if f.All(Link | Bearer | Session) {
		t.Error("Session should not be satisfied")
	}
}

func TestSetIsIdempotent(t *testing.T) {
	f := NewFlags()

	f.Set(Link)
	f.Set(Link)

	if got := f.Snapshot(); got != Link {
		t.Errorf("Snapshot() = %v, want %v", got, Link)
	}
}

func TestClearLeavesDependents(t *testing.T) {
	f := NewFlags()
	f.Set(Link)
	f.Set(Bearer)
	f.Set(Session)

	f.Clear(Bearer)

	if f.All(Bearer) {
		t.Error("Bearer should be cleared")
	}
	if !f.All(Link) {
		t.Error("Clear(Bearer) must not touch Link")
	}
	if !f.All(Session) {
		t.Error("Clear(Bearer) must not touch Session")
	}
}

func TestClearFromCascades(t *testing.T) {
	tests := []struct {
		name  string
		clear Flag
		want  Flag
	}{
		{"from link", Link, 0},
		{"from bearer", Bearer, Link},
		{"from session", Session, Link | Bearer},
		{"from subscribed", Subscribed, Link | Bearer | Session},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFlags()
			f.Set(AllLayers)

			f.ClearFrom(tt.clear)

			if got := f.Snapshot(); got != tt.want {
				t.Errorf("Snapshot() after ClearFrom(%v) = %v, want %v", tt.clear, got, tt.want)
			}
		})
	}
}

func TestWaitAllAlreadySatisfied(t *testing.T) {
	f := NewFlags()
	f.Set(Link | Bearer)

	if !f.WaitAll(Link|Bearer, 10*time.Millisecond) {
		t.Error("WaitAll should return immediately when mask is already satisfied")
	}
}

func TestWaitAllTimeout(t *testing.T) {
	f := NewFlags()
	f.Set(Link)

	start := time.Now()
	if f.WaitAll(Link|Session, 20*time.Millisecond) {
		t.Error("WaitAll should time out when mask is unsatisfied")
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("WaitAll returned after %v, want at least 20ms", elapsed)
	}

	// Timing out must not disturb state.
	if got := f.Snapshot(); got != Link {
		t.Errorf("Snapshot() after timed-out wait = %v, want %v", got, Link)
	}
}

func TestWaitAllWakesOnSet(t *testing.T) {
	f := NewFlags()
	f.Set(Link)

	done := make(chan bool, 1)
	go func() {
		done <- f.WaitAll(Link|Bearer|Session, 2*time.Second)
	}()

	// Satisfy the mask in two steps from another goroutine.
	time.Sleep(5 * time.Millisecond)
	f.Set(Bearer)
	time.Sleep(5 * time.Millisecond)
	f.Set(Session)

	select {
	case ok := <-done:
		if !ok {
			t.Error("WaitAll returned false, want true after mask satisfied")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WaitAll did not wake after flags were set")
	}
}

func TestFlagString(t *testing.T) {
	tests := []struct {
		flag Flag
		want string
	}{
		{0, "none"},
		{Link, "link"},
		{Session, "session"},
		{Link | Bearer, "link|bearer"},
		{AllLayers, "link|bearer|session|subscribed"},
	}

	for _, tt := range tests {
		if got := tt.flag.String(); got != tt.want {
			t.Errorf("Flag(%d).String() = %q, want %q", tt.flag, got, tt.want)
		}
	}
}
