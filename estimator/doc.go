// Package estimator fuses normalized telemetry readings into one
// confidence-weighted position/velocity state per train.
//
// Fusion is a scalar Kalman-style update: each reading pulls the current
// estimate toward its measurement with a gain derived from the estimate's
// uncertainty and the reading's source noise. Satellite positions are the
// continuous tracking signal; occupancy and station readings act as
// occasional ground-truth corrections. One train's fusion never blocks
// another's.
package estimator
