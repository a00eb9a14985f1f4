package model

import "time"

// TrainType categorizes trains in priority order; lower Priority() values
// take precedence when schedules collide.
type TrainType string

const (
	TrainFlagship  TrainType = "flagship"
	TrainExpress   TrainType = "express"
	TrainPassenger TrainType = "passenger"
	TrainFreight   TrainType = "freight"
)

// Priority returns the numeric precedence of the type (1 = highest).
// Unknown types rank below freight.
func (t TrainType) Priority() int {
	switch t {
	case TrainFlagship:
		return 1
	case TrainExpress:
		return 2
	case TrainPassenger:
		return 3
	case TrainFreight:
		return 4
	}
	return 5
}

// PriorityWeight is the per-minute delay penalty multiplier used by the
// optimizer fitness function. Highest-precedence trains cost most.
func (t TrainType) PriorityWeight() float64 {
	return float64(6 - t.Priority())
}

// HaltDuration returns the standard dwell time for a scheduled halt.
func (t TrainType) HaltDuration() time.Duration {
	switch t {
	case TrainFlagship:
		return 2 * time.Minute
	case TrainExpress:
		return 3 * time.Minute
	case TrainPassenger:
		return 5 * time.Minute
	case TrainFreight:
		return 10 * time.Minute
	}
	return 5 * time.Minute
}

// Valid reports whether t is one of the known train types.
func (t TrainType) Valid() bool {
	return t == TrainFlagship || t == TrainExpress || t == TrainPassenger || t == TrainFreight
}

// TrainStatus tracks a train's lifecycle within the engine.
type TrainStatus string

const (
	StatusRegistered TrainStatus = "registered"
	StatusRunning    TrainStatus = "running"
	StatusDelayed    TrainStatus = "delayed"
	StatusCompleted  TrainStatus = "completed"
	StatusCancelled  TrainStatus = "cancelled"
)

// Train is immutable reference data for a registered service. Live
// state (fused position, schedule, accumulated delay, status) lives in
// the Store so readers never race the reconciler.
type Train struct {
	ID          string        `yaml:"id" validate:"required"`
	Name        string        `yaml:"name"`
	Type        TrainType     `yaml:"type" validate:"required,oneof=flagship express passenger freight"`
	Priority    int           `yaml:"priority" validate:"gte=1,lte=5"`
	MaxSpeedKmh float64       `yaml:"maxSpeedKmh" validate:"gt=0"`
	MaxHalts    int           `yaml:"maxHalts" validate:"gte=0"`
	MaxDelay    time.Duration `yaml:"maxDelay"`
	RouteID     string        `yaml:"routeId" validate:"required"`
	Origin      string        `yaml:"origin" validate:"required"`
	Destination string        `yaml:"destination" validate:"required"`
	DriverRef   string        `yaml:"driverRef"`
}

// EffectivePriority returns the explicit priority when set, else the
// type default.
func (t *Train) EffectivePriority() int {
	if t.Priority > 0 {
		return t.Priority
	}
	return t.Type.Priority()
}
