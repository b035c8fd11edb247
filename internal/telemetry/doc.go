// Package telemetry produces the device's periodic sensor readings and
// decides when they are due.
//
// The cadence controller separates "is a publish due" from the publish
// itself. Only a successful publish advances the cadence, so a reading
// lost to a connectivity gap is re-proposed on the next check and
// server-side staleness is bounded by one interval once the link
// recovers. Readiness gating keeps the loop from attempting publishes
// the session cannot deliver.
//
// The sampler owns the heartbeat counter and the telemetry payload:
//
//	{"device_id":...,"mac_address":...,"timestamp":...,
//	 "signal_strength":...,"heartbeat":...,"sensors":{"D0":...,"D3":...}}
package telemetry
