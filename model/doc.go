// Package model defines the domain types shared across the engine:
// trains, routes, stations, schedules, fused train states, normalized
// telemetry readings, and detected conflicts.
//
// It also provides:
//   - Network: immutable route/station/section reference data with
//     YAML loading and validation
//   - Store: the per-train sharded registry of TrainStates and
//     Schedules that all components operate against
package model
