package readiness

import (
	"strings"
	"sync"
	"time"
)

// Flag identifies one connectivity layer.
type Flag uint8

const (
	// Link is layer-2 attachment (WiFi association, modem registration).
	Link Flag = 1 << iota

	// Bearer is a usable data path (IP acquired, PDP context active).
	Bearer

	// Session is an established broker session.
	Session

	// Subscribed means the steady-state topic set is subscribed.
	Subscribed
)

// AllLayers is the full readiness mask.
const AllLayers = Link | Bearer | Session | Subscribed

// String returns the flag names for logging, lowest layer first.
func (f Flag) String() string {
	if f == 0 {
		return "none"
	}
	var parts []string
	if f&Link != 0 {
		parts = append(parts, "link")
	}
	if f&Bearer != 0 {
		parts = append(parts, "bearer")
	}
	if f&Session != 0 {
		parts = append(parts, "session")
	}
	if f&Subscribed != 0 {
		parts = append(parts, "subscribed")
	}
	return strings.Join(parts, "|")
}

// dependents returns the mask of flags that depend on f, excluding f
// itself. The dependency order is fixed: Link ← Bearer ← Session ←
// Subscribed.
func dependents(f Flag) Flag {
	switch {
	case f&Link != 0:
		return Bearer | Session | Subscribed
	case f&Bearer != 0:
		return Session | Subscribed
	case f&Session != 0:
		return Subscribed
	default:
		return 0
	}
}

// Flags tracks which connectivity layers are currently ready.
//
// Set, Clear and ClearFrom are called by whichever loop proves a layer
// alive or dead (the supervisor, the mqtt disconnect callback). Readers
// gate their work on All or block on WaitAll. All methods are safe for
// concurrent use.
//
// Clearing one flag never implicitly clears another; a caller that knows
// a layer loss invalidates the layers above it uses ClearFrom.
type Flags struct {
	mu      sync.Mutex
	current Flag

	// changed is closed and replaced on every state change so that
	// WaitAll callers wake without polling.
	changed chan struct{}
}

// NewFlags returns a tracker with no layers ready.
func NewFlags() *Flags {
	return &Flags{changed: make(chan struct{})}
}

// Set marks the given flag(s) ready.
func (f *Flags) Set(flag Flag) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current&flag == flag {
		return
	}
	f.current |= flag
	f.broadcast()
}

// Clear marks the given flag(s) not ready. Dependent flags are left
// untouched.
func (f *Flags) Clear(flag Flag) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current&flag == 0 {
		return
	}
	f.current &^= flag
	f.broadcast()
}

// ClearFrom clears the given flag and every flag that depends on it.
// Clearing Link therefore also clears Bearer, Session and Subscribed.
func (f *Flags) ClearFrom(flag Flag) {
	f.mu.Lock()
	defer f.mu.Unlock()
	mask := flag | dependents(flag)
	if f.current&mask == 0 {
		return
	}
	f.current &^= mask
	f.broadcast()
}

// All reports whether every flag in mask is currently ready.
func (f *Flags) All(mask Flag) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current&mask == mask
}

// Snapshot returns the current flag set.
func (f *Flags) Snapshot() Flag {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// WaitAll blocks until every flag in mask is ready or the timeout
// elapses. It returns true when the mask was satisfied and false on
// timeout. Waiting has no side effects on the flag state.
func (f *Flags) WaitAll(mask Flag, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		f.mu.Lock()
		if f.current&mask == mask {
			f.mu.Unlock()
			return true
		}
		ch := f.changed
		f.mu.Unlock()

		select {
		case <-ch:
		case <-deadline.C:
			return false
		}
	}
}

// broadcast wakes all WaitAll callers. Callers must hold f.mu.
func (f *Flags) broadcast() {
	close(f.changed)
	f.changed = make(chan struct{})
}
