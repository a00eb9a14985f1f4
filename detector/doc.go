// Package detector periodically scans fused train states and schedules
// for rule violations: converging paths, platform over-allocation, delay
// cascades onto higher-priority trains, and safety-distance breaches.
//
// Each cycle runs against a fixed snapshot of the store so in-flight
// fusion updates cannot produce phantom conflicts. Detection is read-only;
// its only side effect is emitting Conflict events.
package detector
