package netlink

import "context"

// Link is layer-2 attachment to a network: WiFi association or cellular
// network registration. The supervisor brings the link up before anything
// else and uses IsUp to prove it alive when higher layers keep failing.
type Link interface {
	// BringUp establishes the attachment. It blocks until the link is
	// usable, the context is cancelled, or the attempt fails. A failure
	// is not fatal; the supervisor retries with backoff.
	BringUp(ctx context.Context) error

	// IsUp reports the current attachment state without side effects.
	IsUp() bool
}

// Bearer is a usable data path on top of an established Link: an IP
// lease on WiFi, an active PDP context on cellular.
type Bearer interface {
	// BringUp activates the data path. Callers must only invoke it
	// after the Link is up.
	BringUp(ctx context.Context) error

	// IsUp reports whether the data path is currently active.
	IsUp() bool
}

// SignalSource reports received signal strength in dBm. The telemetry
// sampler and the shadow reported state both read it.
type SignalSource interface {
	SignalStrength() (int, error)
}
