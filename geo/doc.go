// Package geo provides distance and projection helpers used by the
// estimator, the conflict detector, and route travel-time math.
//
// All distances are kilometers, all coordinates are WGS84 lat/lon.
package geo
