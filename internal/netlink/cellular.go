package netlink

import (
	"context"
	"fmt"
	"time"
)

// Modem abstracts a cellular modem's control channel. Implementations
// translate these calls into AT commands on the serial link; the agent
// never sees the wire protocol.
type Modem interface {
	// Registered reports whether the modem is registered on the
	// cellular network (home or roaming).
	Registered() (bool, error)

	// Attach activates a PDP context for the given APN.
	Attach(ctx context.Context, apn string) error

	// Attached reports whether a PDP context is currently active.
	Attached() (bool, error)

	// SignalStrength returns the reported RSSI in dBm.
	SignalStrength() (int, error)
}

// registrationPollInterval is how often BringUp re-checks network
// registration while waiting for the modem to find a cell.
const registrationPollInterval = 2 * time.Second

// CellularLink treats network registration as the link layer. The modem
// registers autonomously once powered; BringUp polls until it has.
type CellularLink struct {
	modem        Modem
	pollInterval time.Duration
}

// NewCellularLink returns a Link backed by the given modem.
func NewCellularLink(modem Modem) *CellularLink {
	return &CellularLink{modem: modem, pollInterval: registrationPollInterval}
}

// BringUp waits for network registration. It returns when the modem is
// registered, the context is cancelled, or the modem reports an error.
func (l *CellularLink) BringUp(ctx context.Context) error {
	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		registered, err := l.modem.Registered()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrLinkUnavailable, err)
		}
		if registered {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrLinkUnavailable, ctx.Err())
		case <-ticker.C:
		}
	}
}

// IsUp reports the registration state. A modem read error counts as
// down; the supervisor treats that the same as losing the cell.
func (l *CellularLink) IsUp() bool {
	registered, err := l.modem.Registered()
	return err == nil && registered
}

// CellularBearer activates a PDP context as the data path.
type CellularBearer struct {
	modem Modem
	apn   string
}

// NewCellularBearer returns a Bearer that attaches to the given APN.
func NewCellularBearer(modem Modem, apn string) *CellularBearer {
	return &CellularBearer{modem: modem, apn: apn}
}

// BringUp activates the PDP context.
func (b *CellularBearer) BringUp(ctx context.Context) error {
	attached, err := b.modem.Attached()
	if err == nil && attached {
		return nil
	}
	if err := b.modem.Attach(ctx, b.apn); err != nil {
		return fmt.Errorf("%w: apn %q: %w", ErrBearerUnavailable, b.apn, err)
	}
	return nil
}

// IsUp reports whether the PDP context is active.
func (b *CellularBearer) IsUp() bool {
	attached, err := b.modem.Attached()
	return err == nil && attached
}

// CellularSignal reads RSSI from the modem.
type CellularSignal struct {
	modem Modem
}

// NewCellularSignal returns a SignalSource backed by the given modem.
func NewCellularSignal(modem Modem) *CellularSignal {
	return &CellularSignal{modem: modem}
}

// SignalStrength returns the modem-reported RSSI in dBm.
func (s *CellularSignal) SignalStrength() (int, error) {
	rssi, err := s.modem.SignalStrength()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrNoSignal, err)
	}
	return rssi, nil
}
