package netlink

import "errors"

var (
	// ErrLinkUnavailable is returned when the link layer cannot be
	// established or has been lost.
	ErrLinkUnavailable = errors.New("netlink: link unavailable")

	// ErrBearerUnavailable is returned when the data path cannot be
	// activated or has been lost.
	ErrBearerUnavailable = errors.New("netlink: bearer unavailable")

	// ErrNoSignal is returned when signal strength cannot be read.
	ErrNoSignal = errors.New("netlink: no signal reading")
)
