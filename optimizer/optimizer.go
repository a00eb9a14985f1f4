package optimizer

import (
	"context"
	"math/rand"
	"time"

	"github.com/theoremus-urban-solutions/railopt/config"
	"github.com/theoremus-urban-solutions/railopt/model"
)

// Metrics summarizes a timetable's quality after discrete-event replay.
type Metrics struct {
	AverageDelay  time.Duration `json:"averageDelay"`
	OnTimePercent float64       `json:"onTimePercent"`
	ConflictCount int           `json:"conflictCount"`
}

// Result is a complete optimization outcome. ConflictCount > 0 marks the
// result as best-effort rather than fully feasible.
type Result struct {
	Schedules   map[string]*model.Schedule `json:"schedules"`
	Metrics     Metrics                    `json:"metrics"`
	GeneratedAt time.Time                  `json:"generatedAt"`
	Horizon     time.Duration              `json:"horizon"`
}

// Optimizer searches for low-delay feasible timetables.
type Optimizer struct {
	cfg config.OptimizerConfig
	det config.DetectorConfig
	net *model.Network
	rng *rand.Rand
}

// New creates an optimizer. rng is the injectable random source for the
// genetic search; nil seeds from the wall clock.
func New(cfg config.OptimizerConfig, det config.DetectorConfig, net *model.Network, rng *rand.Rand) *Optimizer {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Optimizer{cfg: cfg, det: det, net: net, rng: rng}
}

// Optimize produces a best-effort timetable for the given trains starting
// at horizonStart. It always returns a fully-formed result; an infeasible
// outcome is reported through Metrics.ConflictCount, never as an error.
// ctx cancellation stops the search early with the best individual so far.
func (o *Optimizer) Optimize(ctx context.Context, trains []*model.Train, horizonStart time.Time) Result {
	res := Result{
		Schedules:   map[string]*model.Schedule{},
		GeneratedAt: time.Now(),
		Horizon:     o.cfg.Horizon,
	}
	if len(trains) == 0 {
		return res
	}

	best := o.evolve(ctx, trains, horizonStart)
	o.repair(best)
	res.Schedules = best
	res.Metrics = o.evaluate(best)
	return res
}

// capacityAt returns the platform capacity for a station, falling back to
// the configured default for stations without reference data.
func (o *Optimizer) capacityAt(stationCode string) int {
	if st, err := o.net.Station(stationCode); err == nil && st.Platforms > 0 {
		return st.Platforms
	}
	return o.det.PlatformCapacity
}
