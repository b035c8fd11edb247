// Package supervisor owns the device's connectivity lifecycle.
//
// The connectivity stack is brought up strictly in order:
//
//	link → bearer → session → subscribed
//
// and the supervisor's state is always derived from the readiness flags
// rather than stored. That makes the machine self-healing: any goroutine
// that proves a layer dead (the mqtt disconnect callback, publish-failure
// triage) just clears the flag, and the supervisor's next decision resumes
// bring-up at the right layer.
//
// # Decision vs execution
//
// Next(now) is a pure function of the flags and the pending retry delay;
// execute does the I/O. Run alternates the two. Tests drive Next with a
// fake clock and never need a real network.
//
// # Failure policy
//
// A failed step never clears layers below it: losing the broker does not
// mean the network is gone. After a configurable number of consecutive
// session failures the supervisor actively probes link and bearer and
// clears the deepest dead layer, which is the only downward path besides
// an explicit disconnect signal. Retries are paced by a constant backoff
// by default (cenkalti/backoff, pluggable) with no retry cap; connectivity
// failures are logged and counted, never fatal.
package supervisor
