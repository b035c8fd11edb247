// Package agent assembles the shadowsync device process.
//
// It owns the pieces the other packages deliberately do not know about
// each other:
//
//   - the readiness flags shared by the supervisor, the cadence
//     controllers and publish-failure triage
//   - the broker session, implementing supervisor.Session over the
//     mqtt client with the steady-state topic set folded in
//   - the bounded inbound router that moves messages off the transport
//     callback onto a single dispatch goroutine
//   - the publish loop driving the telemetry and shadow cadences
//   - the device identity derived from the MAC address
//
// The application plugs in at the edges: an actuation callback for
// desired-state changes, a command handler for the command topic, and
// UpdateReported for its own state. Everything else is wiring.
package agent
