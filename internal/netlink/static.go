package netlink

import "context"

// StaticLink is an always-up link for deployments on wired or otherwise
// externally managed networks, and for tests.
type StaticLink struct{}

// BringUp is a no-op.
func (StaticLink) BringUp(ctx context.Context) error { return nil }

// IsUp always reports true.
func (StaticLink) IsUp() bool { return true }

// StaticBearer is an always-up bearer paired with StaticLink.
type StaticBearer struct{}

// BringUp is a no-op.
func (StaticBearer) BringUp(ctx context.Context) error { return nil }

// IsUp always reports true.
func (StaticBearer) IsUp() bool { return true }

// StaticSignal reports a fixed signal strength for transports that have
// no meaningful RSSI.
type StaticSignal struct {
	DBm int
}

// SignalStrength returns the configured value.
func (s StaticSignal) SignalStrength() (int, error) { return s.DBm, nil }
