// Package engine wires the core components into one running process:
// telemetry flows through the normalizer into the estimator, the detector
// scans on its period, the optimizer runs as a rolling-horizon job, and
// the reconciler answers live delay reports synchronously.
//
// Component coupling is explicit typed channels, not listener callbacks:
// state updates fan out to an aggregate stream plus per-train subscriber
// channels, and conflicts fan out to all subscribers.
package engine
