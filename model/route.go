package model

import (
	"math"
	"time"
)

// RouteStation is one stop along a route with its cumulative distance
// from the route origin.
type RouteStation struct {
	Code         string      `yaml:"code" validate:"required"`
	DistanceKM   float64     `yaml:"distanceKm" validate:"gte=0"`
	AllowedTypes []TrainType `yaml:"allowedTypes"`
}

// Allows reports whether the station accepts the given train type.
// An empty AllowedTypes list accepts every type.
func (rs *RouteStation) Allows(t TrainType) bool {
	if len(rs.AllowedTypes) == 0 {
		return true
	}
	for _, a := range rs.AllowedTypes {
		if a == t {
			return true
		}
	}
	return false
}

// MaintenanceWindow marks a period during which the route is unavailable.
type MaintenanceWindow struct {
	From time.Time `yaml:"from" validate:"required"`
	To   time.Time `yaml:"to" validate:"required,gtfield=From"`
}

// Route is immutable reference data: an ordered station sequence with
// per-station cumulative distances, loaded once per optimization run.
type Route struct {
	ID          string              `yaml:"id" validate:"required"`
	Name        string              `yaml:"name"`
	Stations    []RouteStation      `yaml:"stations" validate:"required,min=2,dive"`
	TotalKM     float64             `yaml:"totalKm" validate:"gte=0"`
	MaxSpeedKmh float64             `yaml:"maxSpeedKmh" validate:"gt=0"`
	Electrified bool                `yaml:"electrified"`
	Gauge       string              `yaml:"gauge"`
	Maintenance []MaintenanceWindow `yaml:"maintenance" validate:"dive"`
}

// StationIndex returns the position of a station code on the route, or -1.
func (r *Route) StationIndex(code string) int {
	for i, s := range r.Stations {
		if s.Code == code {
			return i
		}
	}
	return -1
}

// HopKM returns the distance between two stations by route index.
func (r *Route) HopKM(fromIdx, toIdx int) float64 {
	if fromIdx < 0 || toIdx < 0 || fromIdx >= len(r.Stations) || toIdx >= len(r.Stations) {
		return 0
	}
	return math.Abs(r.Stations[toIdx].DistanceKM - r.Stations[fromIdx].DistanceKM)
}

// TravelTime returns the running time between two stations at the given
// speed, capped by the route speed limit.
func (r *Route) TravelTime(fromIdx, toIdx int, speedKmh float64) time.Duration {
	if speedKmh <= 0 {
		return 0
	}
	if r.MaxSpeedKmh > 0 && speedKmh > r.MaxSpeedKmh {
		speedKmh = r.MaxSpeedKmh
	}
	hours := r.HopKM(fromIdx, toIdx) / speedKmh
	return time.Duration(hours * float64(time.Hour))
}

// AvailableAt reports whether the route is outside all maintenance windows.
func (r *Route) AvailableAt(at time.Time) bool {
	for _, w := range r.Maintenance {
		if !at.Before(w.From) && at.Before(w.To) {
			return false
		}
	}
	return true
}

// NextAvailable returns the earliest instant at or after at that lies
// outside every maintenance window. Windows may abut or overlap, so the
// scan repeats until no window contains the candidate.
func (r *Route) NextAvailable(at time.Time) time.Time {
	for moved := true; moved; {
		moved = false
		for _, w := range r.Maintenance {
			if !at.Before(w.From) && at.Before(w.To) {
				at = w.To
				moved = true
			}
		}
	}
	return at
}
