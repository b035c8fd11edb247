package telemetry

import (
	"sync"
	"time"

	"github.com/rmckenny/shadowsync/internal/readiness"
)

// Controller decides when a periodic publish is due. It is shared by
// the telemetry cadence (60s default) and the shadow reported cadence
// (30s default); each gets its own instance.
//
// The controller never publishes anything itself. The owning loop calls
// Tick each pass, performs the publish when Tick reports true, and
// calls MarkPublished only on success. A failed publish therefore stays
// due and is retried on the next check, bounding data staleness at one
// interval once connectivity returns.
type Controller struct {
	interval time.Duration
	flags    *readiness.Flags
	mask     readiness.Flag

	mu            sync.Mutex
	lastPublished time.Time
}

// NewController creates a cadence controller gated on the given
// readiness mask. A zero lastPublished means the first publish is due
// as soon as the mask is satisfied.
func NewController(interval time.Duration, flags *readiness.Flags, mask readiness.Flag) *Controller {
	return &Controller{interval: interval, flags: flags, mask: mask}
}

// Tick reports whether a publish is due at the given instant: the
// interval has elapsed since the last successful publish and every
// readiness flag in the mask is set.
func (c *Controller) Tick(now time.Time) bool {
	if !c.flags.All(c.mask) {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastPublished.IsZero() {
		return true
	}
	return now.Sub(c.lastPublished) >= c.interval
}

// MarkPublished records a successful publish. Never call it for a
// failed attempt.
func (c *Controller) MarkPublished(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastPublished = now
}

// LastPublished returns the time of the last successful publish, zero
// if none has happened yet.
func (c *Controller) LastPublished() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPublished
}
