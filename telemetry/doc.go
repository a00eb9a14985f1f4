// Package telemetry normalizes raw train telemetry into scored readings.
//
// Three inbound shapes are accepted: satellite positions, track-occupancy
// signals, and station check-in events. Each is converted into a common
// Reading with a quality score in [0,1]; malformed input is never rejected,
// it just scores low and is discounted by downstream fusion.
//
// The package also carries a GTFS-RT adapter that decodes VehiclePositions
// and TripUpdates feeds into the raw shapes, so a live feed can drive the
// pipeline.
package telemetry
