// Package shadow synchronises device state with the broker's shadow
// document service.
//
// The shadow splits state into two sections. The device owns "reported"
// (what it is actually doing) and the cloud owns "desired" (what it
// should be doing). When they differ the broker pushes a delta to the
// device, which actuates the change and reports back.
//
//	cloud writes desired ──► broker computes delta ──► device actuates
//	device publishes reported ──► broker stores it  ◄── cloud reads
//
// # Idempotence
//
// Broker redelivery means the same delta can arrive more than once. The
// reconciler diffs every delta against the last-applied desired state
// and only actuates attributes whose value actually changed, so a
// replay is a no-op. Last-applied state is persisted (SQLite) so the
// guarantee survives a restart.
//
// # Wire formats
//
//	reported publish: {"state":{"reported":{...,"timestamp":<int>}}}
//	delta consumed:   {"state":{<attr>:<value>,...}}
//
// Attribute values are booleans, integers, floats or strings. Malformed
// documents are logged and dropped.
package shadow
