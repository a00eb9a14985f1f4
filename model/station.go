package model

import (
	"sort"
	"time"
)

// PlatformOccupancy records one train's hold on a platform for a time window.
type PlatformOccupancy struct {
	TrainID   string    `json:"trainId"`
	Platform  int       `json:"platform"`
	Arrival   time.Time `json:"arrival"`
	Departure time.Time `json:"departure"`
}

// Station is a named location on the network with a fixed platform count.
// Immutable reference data; occupancy is derived from the live
// timetable, not stored here.
type Station struct {
	Code      string  `yaml:"code" validate:"required"`
	Name      string  `yaml:"name"`
	Lat       float64 `yaml:"lat" validate:"gte=-90,lte=90"`
	Lon       float64 `yaml:"lon" validate:"gte=-180,lte=180"`
	Platforms int     `yaml:"platforms" validate:"gte=1"`
}

// StationOccupancy derives the platform holds at one station from a set
// of schedules, in arrival order with ties broken by train ID. Only
// halting entries occupy a platform.
func StationOccupancy(schedules map[string]*Schedule, stationCode string) []PlatformOccupancy {
	var out []PlatformOccupancy
	for id, sched := range schedules {
		if sched == nil {
			continue
		}
		for _, e := range sched.Entries {
			if e.StationCode != stationCode || !e.IsHalt {
				continue
			}
			out = append(out, PlatformOccupancy{
				TrainID:   id,
				Platform:  e.Platform,
				Arrival:   e.Arrival,
				Departure: e.Departure,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Arrival.Equal(out[j].Arrival) {
			return out[i].Arrival.Before(out[j].Arrival)
		}
		return out[i].TrainID < out[j].TrainID
	})
	return out
}

// Section is a track segment with a reference position, used by the
// estimator to anchor occupancy readings.
type Section struct {
	ID      string  `yaml:"id" validate:"required"`
	RouteID string  `yaml:"routeId"`
	Lat     float64 `yaml:"lat" validate:"gte=-90,lte=90"`
	Lon     float64 `yaml:"lon" validate:"gte=-180,lte=180"`
}
