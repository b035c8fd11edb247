// Package readiness tracks which connectivity layers of the device are
// currently usable.
//
// The agent's connectivity is a strict stack:
//
//	Link → Bearer → Session → Subscribed
//
// Each layer is represented by one Flag bit. The connectivity supervisor
// sets a flag when it proves the layer alive and clears it (or cascades
// with ClearFrom) when the layer is proven dead. Producers such as the
// telemetry loop gate their work on the flags rather than probing the
// network themselves.
//
// The tracker is deliberately dumb: it stores bits and wakes waiters. All
// policy about when flags change lives in the supervisor.
package readiness
