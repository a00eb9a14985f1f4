package reconciler

import (
	"errors"
	"fmt"
	"time"

	"github.com/theoremus-urban-solutions/railopt/config"
	"github.com/theoremus-urban-solutions/railopt/geo"
	"github.com/theoremus-urban-solutions/railopt/model"
)

// ErrNoSchedule reports that the named train has no schedule to shift.
var ErrNoSchedule = errors.New("no schedule for train")

// Update is the result of one reconciliation: the shifted schedule, the
// repaired schedules of affected trains (only those actually changed),
// the processing latency, and a short human-readable explanation.
type Update struct {
	Schedule    *model.Schedule            `json:"schedule"`
	Affected    map[string]*model.Schedule `json:"affected"`
	Latency     time.Duration              `json:"latency"`
	Explanation string                     `json:"explanation"`
}

// Reconciler performs local schedule surgery through the store's
// per-train locks. Concurrent calls on disjoint train sets run in
// parallel; calls touching the same train serialize.
type Reconciler struct {
	cfg   config.OptimizerConfig
	store *model.Store
	net   *model.Network
}

// New creates a reconciler.
func New(cfg config.OptimizerConfig, store *model.Store, net *model.Network) *Reconciler {
	return &Reconciler{cfg: cfg, store: store, net: net}
}

// ApplyDelay right-shifts the reporting train's remaining schedule by
// delay and locally repairs each affected train's schedule where the
// shift introduced a new overlap. A strictly higher-priority affected
// train is never delayed on behalf of a lower-priority one.
//
// position is the train's current fused location; it determines which
// entries count as remaining. A zero position shifts the whole schedule.
func (r *Reconciler) ApplyDelay(trainID string, position model.TrainState, delay time.Duration, affected []string) (Update, error) {
	start := time.Now()
	if delay < 0 {
		delay = 0
	}

	train, err := r.net.Train(trainID)
	if err != nil {
		return Update{}, err
	}

	var upd Update
	var applyErr error
	pushed := map[string]time.Duration{}
	all := append([]string{trainID}, affected...)
	r.store.WithSchedules(all, func(schedules map[string]*model.Schedule) {
		sched := schedules[trainID]
		if sched == nil {
			applyErr = fmt.Errorf("%s: %w", trainID, ErrNoSchedule)
			return
		}
		fromIdx := r.remainingFrom(train.RouteID, sched, position)
		sched.ShiftFrom(fromIdx, delay)
		sched.TotalDelay += delay

		upd.Schedule = sched.Clone()
		upd.Affected = map[string]*model.Schedule{}
		for _, id := range affected {
			if id == trainID || schedules[id] == nil {
				continue
			}
			if push := r.repairAffected(train, sched, id, schedules[id]); push > 0 {
				upd.Affected[id] = schedules[id].Clone()
				pushed[id] = push
			}
		}
	})
	if applyErr != nil {
		return Update{}, applyErr
	}

	// Accumulated delay and status live in the store under the same
	// per-train slot lock the schedule uses, so they must be applied
	// after WithSchedules returns.
	if total := r.store.AddDelay(trainID, delay); total > 0 {
		r.store.SetStatus(trainID, model.StatusDelayed)
	}
	for id, push := range pushed {
		r.store.AddDelay(id, push)
		r.store.SetStatus(id, model.StatusDelayed)
	}

	upd.Latency = time.Since(start)
	upd.Explanation = fmt.Sprintf(
		"applied %s delay to train %s; %d affected trains checked, %d rescheduled; priority-based resequencing applied",
		delay.Round(time.Second), trainID, len(affected), len(upd.Affected))
	return upd, nil
}

// remainingFrom locates the first schedule entry still ahead of the
// train's current position along its route.
func (r *Reconciler) remainingFrom(routeID string, sched *model.Schedule, position model.TrainState) int {
	if position.Lat == 0 && position.Lon == 0 {
		return 0
	}
	route, err := r.net.Route(routeID)
	if err != nil {
		return 0
	}
	waypoints := r.net.RouteWaypoints(routeID)
	if len(waypoints) < 2 || len(waypoints) != len(route.Stations) {
		return 0
	}
	curKM := geo.DistanceAlongKM(waypoints, position.Lat, position.Lon)

	cum := make(map[string]float64, len(waypoints))
	acc := 0.0
	for i, rs := range route.Stations {
		if i > 0 {
			acc += geo.HaversineKM(waypoints[i-1][0], waypoints[i-1][1], waypoints[i][0], waypoints[i][1])
		}
		cum[rs.Code] = acc
	}
	for i, e := range sched.Entries {
		if km, ok := cum[e.StationCode]; ok && km > curKM {
			return i
		}
	}
	return len(sched.Entries)
}

// repairAffected pushes the affected train's overlapping stops past the
// shifted train's windows. Returns the total push applied, zero when
// nothing changed.
func (r *Reconciler) repairAffected(shiftedTrain *model.Train, shifted *model.Schedule, affectedID string, affectedSched *model.Schedule) time.Duration {
	affectedTrain, err := r.net.Train(affectedID)
	if err != nil {
		return 0
	}
	// Never delay a strictly higher-priority train to benefit a
	// lower-priority one.
	if affectedTrain.EffectivePriority() < shiftedTrain.EffectivePriority() {
		return 0
	}

	var pushed time.Duration
	for i := 0; i < len(affectedSched.Entries); i++ {
		ae := &affectedSched.Entries[i]
		if !ae.IsHalt {
			continue
		}
		j := shifted.EntryAt(ae.StationCode)
		if j < 0 || !shifted.Entries[j].IsHalt {
			continue
		}
		se := shifted.Entries[j]
		if !model.Overlaps(ae.Arrival, ae.Departure.Add(r.cfg.HeadwayBuffer), se.Arrival, se.Departure.Add(r.cfg.HeadwayBuffer)) {
			continue
		}
		push := se.Departure.Add(r.cfg.HeadwayBuffer).Sub(ae.Arrival)
		if push <= 0 {
			continue
		}
		affectedSched.ShiftFrom(i, push)
		affectedSched.TotalDelay += push
		pushed += push
	}
	return pushed
}
