package netlink

import (
	"context"
	"fmt"
)

// WiFiDriver abstracts the platform WiFi stack. Association internals
// (scanning, auth handshake, DHCP) live behind this interface; the agent
// only needs join/observe semantics.
type WiFiDriver interface {
	// Join associates with the configured access point and blocks until
	// the association completes or ctx is done.
	Join(ctx context.Context) error

	// Associated reports whether the station is currently associated.
	Associated() bool

	// HasIP reports whether an IP lease is held.
	HasIP() bool

	// RSSI returns the current received signal strength in dBm.
	RSSI() (int, error)
}

// WiFiLink brings up WiFi association as the link layer.
type WiFiLink struct {
	driver WiFiDriver
}

// NewWiFiLink returns a Link backed by the given driver.
func NewWiFiLink(driver WiFiDriver) *WiFiLink {
	return &WiFiLink{driver: driver}
}

// BringUp associates with the access point.
func (l *WiFiLink) BringUp(ctx context.Context) error {
	if l.driver.Associated() {
		return nil
	}
	if err := l.driver.Join(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrLinkUnavailable, err)
	}
	return nil
}

// IsUp reports the association state.
func (l *WiFiLink) IsUp() bool {
	return l.driver.Associated()
}

// WiFiBearer treats the DHCP lease as the data path. On WiFi the lease
// normally arrives with the association, so BringUp is a check rather
// than an activation.
type WiFiBearer struct {
	driver WiFiDriver
}

// NewWiFiBearer returns a Bearer backed by the given driver.
func NewWiFiBearer(driver WiFiDriver) *WiFiBearer {
	return &WiFiBearer{driver: driver}
}

// BringUp verifies an IP lease is held.
func (b *WiFiBearer) BringUp(ctx context.Context) error {
	if b.driver.HasIP() {
		return nil
	}
	return fmt.Errorf("%w: no ip lease", ErrBearerUnavailable)
}

// IsUp reports whether an IP lease is held.
func (b *WiFiBearer) IsUp() bool {
	return b.driver.HasIP()
}

// WiFiSignal reads RSSI from the driver.
type WiFiSignal struct {
	driver WiFiDriver
}

// NewWiFiSignal returns a SignalSource backed by the given driver.
func NewWiFiSignal(driver WiFiDriver) *WiFiSignal {
	return &WiFiSignal{driver: driver}
}

// SignalStrength returns the current RSSI in dBm.
func (s *WiFiSignal) SignalStrength() (int, error) {
	rssi, err := s.driver.RSSI()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrNoSignal, err)
	}
	return rssi, nil
}
