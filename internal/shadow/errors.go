package shadow

import "errors"

var (
	// ErrNotInitialised is returned when the reconciler is used before
	// Init has bound it to a thing.
	ErrNotInitialised = errors.New("shadow: reconciler not initialised")

	// ErrMalformedDocument is returned when an inbound shadow document
	// cannot be decoded. Such documents are dropped, never retried.
	ErrMalformedDocument = errors.New("shadow: malformed document")

	// ErrPublishFailed is returned when a shadow publish does not
	// reach the broker. The cadence controller re-proposes it.
	ErrPublishFailed = errors.New("shadow: publish failed")

	// ErrUnsupportedValue is returned when an attribute value is not a
	// bool, integer or string.
	ErrUnsupportedValue = errors.New("shadow: unsupported attribute value")

	// ErrStoreFailed is returned when last-applied persistence fails.
	ErrStoreFailed = errors.New("shadow: state store failed")
)
