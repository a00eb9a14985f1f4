package engine

import (
	"time"
)

// Status is the system status query result: live counts plus the active
// constraint parameters, so operators can see what rules are in force.
type Status struct {
	ActiveSchedules   int           `json:"activeSchedules"`
	TrackedTrains     int           `json:"trackedTrains"`
	LastStateUpdate   time.Time     `json:"lastStateUpdate"`
	LastOptimized     time.Time     `json:"lastOptimized"`
	Horizon           time.Duration `json:"horizon"`
	OptimizerInterval time.Duration `json:"optimizerInterval"`
	DetectorInterval  time.Duration `json:"detectorInterval"`
	SafetyDistanceKM  float64       `json:"safetyDistanceKm"`
	PlatformCapacity  int           `json:"platformCapacity"`
	ConvergenceMargin time.Duration `json:"convergenceMargin"`
}

// Status reports the engine's current operating picture.
func (e *Engine) Status() Status {
	e.mu.Lock()
	lastOptimized := e.lastOptimized
	e.mu.Unlock()
	return Status{
		ActiveSchedules:   e.store.ActiveScheduleCount(),
		TrackedTrains:     len(e.store.StatesSnapshot()),
		LastStateUpdate:   e.store.LastUpdate(),
		LastOptimized:     lastOptimized,
		Horizon:           e.cfg.Optimizer.Horizon,
		OptimizerInterval: e.cfg.Optimizer.Interval,
		DetectorInterval:  e.cfg.Detector.Interval,
		SafetyDistanceKM:  e.cfg.Detector.SafetyDistanceKM,
		PlatformCapacity:  e.cfg.Detector.PlatformCapacity,
		ConvergenceMargin: e.cfg.Detector.ConvergenceMargin,
	}
}
