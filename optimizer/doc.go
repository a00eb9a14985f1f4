// Package optimizer builds train timetables over a rolling horizon.
//
// The pipeline has three stages: a genetic search over randomized
// per-train schedules, a constraint-repair pass that resolves platform
// over-allocations the search left behind, and a discrete-event replay
// that scores the repaired timetable (average delay, on-time ratio,
// residual conflicts).
//
// The search is stochastic but takes an injectable *rand.Rand so tests
// can pin a seed. Every returned result carries its residual conflict
// count; callers must check it before trusting a schedule as safe.
package optimizer
