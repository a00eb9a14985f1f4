package model

import (
	"testing"
	"time"
)

func TestTrainTypePriority(t *testing.T) {
	tests := []struct {
		tt       TrainType
		priority int
		dwell    time.Duration
	}{
		{tt: TrainFlagship, priority: 1, dwell: 2 * time.Minute},
		{tt: TrainExpress, priority: 2, dwell: 3 * time.Minute},
		{tt: TrainPassenger, priority: 3, dwell: 5 * time.Minute},
		{tt: TrainFreight, priority: 4, dwell: 10 * time.Minute},
		{tt: TrainType("maglev"), priority: 5, dwell: 5 * time.Minute},
	}
	for _, tt := range tests {
		if got := tt.tt.Priority(); got != tt.priority {
			t.Errorf("%s: expected priority %d, got %d", tt.tt, tt.priority, got)
		}
		if got := tt.tt.HaltDuration(); got != tt.dwell {
			t.Errorf("%s: expected dwell %s, got %s", tt.tt, tt.dwell, got)
		}
		if got := tt.tt.PriorityWeight(); got != float64(6-tt.priority) {
			t.Errorf("%s: expected weight %f, got %f", tt.tt, float64(6-tt.priority), got)
		}
	}
}

func TestEffectivePriority(t *testing.T) {
	explicit := &Train{Type: TrainFreight, Priority: 1}
	if got := explicit.EffectivePriority(); got != 1 {
		t.Errorf("explicit priority should win, got %d", got)
	}
	implicit := &Train{Type: TrainFreight}
	if got := implicit.EffectivePriority(); got != 4 {
		t.Errorf("type default should apply, got %d", got)
	}
}

func TestRouteStationAllows(t *testing.T) {
	open := RouteStation{Code: "A"}
	if !open.Allows(TrainFreight) {
		t.Error("empty allow list should accept every type")
	}
	restricted := RouteStation{Code: "B", AllowedTypes: []TrainType{TrainExpress, TrainFlagship}}
	if restricted.Allows(TrainFreight) {
		t.Error("freight should be excluded")
	}
	if !restricted.Allows(TrainExpress) {
		t.Error("express should be accepted")
	}
}

func TestRouteTravelTime(t *testing.T) {
	r := &Route{
		ID:          "R1",
		MaxSpeedKmh: 100,
		Stations: []RouteStation{
			{Code: "A", DistanceKM: 0},
			{Code: "B", DistanceKM: 50},
		},
	}
	if got := r.TravelTime(0, 1, 100); got != 30*time.Minute {
		t.Errorf("expected 30m at 100 km/h, got %s", got)
	}
	// Train speed above the line limit is capped.
	if got := r.TravelTime(0, 1, 200); got != 30*time.Minute {
		t.Errorf("expected the line limit to cap speed, got %s", got)
	}
	if got := r.TravelTime(0, 1, 0); got != 0 {
		t.Errorf("zero speed should yield zero, got %s", got)
	}
}

func TestRouteAvailableAt(t *testing.T) {
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	r := &Route{Maintenance: []MaintenanceWindow{{From: from, To: from.Add(2 * time.Hour)}}}
	if r.AvailableAt(from.Add(time.Hour)) {
		t.Error("route should be unavailable inside the window")
	}
	if !r.AvailableAt(from.Add(3 * time.Hour)) {
		t.Error("route should be available after the window")
	}
	if !r.AvailableAt(from.Add(-time.Minute)) {
		t.Error("route should be available before the window")
	}
}

func TestRouteNextAvailable(t *testing.T) {
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	r := &Route{Maintenance: []MaintenanceWindow{
		{From: from, To: from.Add(2 * time.Hour)},
		{From: from.Add(2 * time.Hour), To: from.Add(3 * time.Hour)},
	}}

	// Inside the first window: skip both abutting windows.
	if got := r.NextAvailable(from.Add(time.Hour)); !got.Equal(from.Add(3 * time.Hour)) {
		t.Errorf("expected %v, got %v", from.Add(3*time.Hour), got)
	}
	// Already clear instants pass through untouched.
	open := from.Add(4 * time.Hour)
	if got := r.NextAvailable(open); !got.Equal(open) {
		t.Errorf("expected %v, got %v", open, got)
	}
	before := from.Add(-time.Minute)
	if got := r.NextAvailable(before); !got.Equal(before) {
		t.Errorf("expected %v, got %v", before, got)
	}
}

func TestTrainTypeValid(t *testing.T) {
	for _, known := range []TrainType{TrainFlagship, TrainExpress, TrainPassenger, TrainFreight} {
		if !known.Valid() {
			t.Errorf("%s should be valid", known)
		}
	}
	if TrainType("maglev").Valid() {
		t.Error("unknown type should be invalid")
	}
	if TrainType("").Valid() {
		t.Error("empty type should be invalid")
	}
}
