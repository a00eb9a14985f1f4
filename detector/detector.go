package detector

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync/atomic"
	"time"

	"github.com/theoremus-urban-solutions/railopt/config"
	"github.com/theoremus-urban-solutions/railopt/geo"
	"github.com/theoremus-urban-solutions/railopt/model"
)

// Detector runs the four-check conflict scan on a fixed period.
type Detector struct {
	cfg       config.DetectorConfig
	store     *model.Store
	network   *model.Network
	conflicts chan<- model.Conflict

	running atomic.Bool
}

// New creates a detector. conflicts may be nil; sends never block.
func New(cfg config.DetectorConfig, store *model.Store, network *model.Network, conflicts chan<- model.Conflict) *Detector {
	return &Detector{cfg: cfg, store: store, network: network, conflicts: conflicts}
}

// Run executes detection cycles on the configured interval until ctx is
// done. A cycle that overruns its period causes the next tick to be
// skipped rather than queued.
func (d *Detector) Run(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !d.running.CompareAndSwap(false, true) {
				log.Printf("detector: cycle overrun, skipping tick")
				continue
			}
			for _, c := range d.Detect(time.Now()) {
				d.emit(c)
			}
			d.running.Store(false)
		}
	}
}

func (d *Detector) emit(c model.Conflict) {
	if d.conflicts == nil {
		return
	}
	select {
	case d.conflicts <- c:
	default:
		log.Printf("detector: conflict channel full, dropping %s", c.Type)
	}
}

// Detect runs all four checks against one consistent snapshot of the
// store. It never mutates schedules or states.
func (d *Detector) Detect(now time.Time) []model.Conflict {
	states := d.store.StatesSnapshot()

	var out []model.Conflict
	out = append(out, d.convergingPaths(states, now)...)
	out = append(out, d.resourceOverAllocation(states, now)...)
	out = append(out, d.delayBubbleUp(states, now)...)
	out = append(out, d.safetyDistance(states, now)...)
	return out
}

// sortedIDs gives the checks a stable pair iteration order.
func sortedIDs(states map[string]model.TrainState) []string {
	ids := make([]string, 0, len(states))
	for id := range states {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// convergingPaths flags train pairs whose estimated arrivals at a shared
// future station fall inside the safety margin.
func (d *Detector) convergingPaths(states map[string]model.TrainState, now time.Time) []model.Conflict {
	ids := sortedIDs(states)
	var out []model.Conflict
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			a, okA := d.futureETAs(ids[i], states[ids[i]])
			b, okB := d.futureETAs(ids[j], states[ids[j]])
			if !okA || !okB {
				continue
			}
			code, etaA, etaB, found := firstSharedPoint(a, b)
			if !found {
				continue
			}
			gap := etaA - etaB
			if gap < 0 {
				gap = -gap
			}
			if gap >= d.cfg.ConvergenceMargin {
				continue
			}
			first, second := d.orderByPriority(ids[i], ids[j])
			out = append(out, model.NewConflict(
				model.ConflictConverging,
				model.SeverityHigh,
				[]string{ids[i], ids[j]},
				code,
				fmt.Sprintf("trains %s and %s reach %s within %s of each other; %s should pass before %s",
					ids[i], ids[j], code, gap.Round(time.Second), first, second),
				"sequence by priority",
				now,
			))
		}
	}
	return out
}

// trainETA maps future station codes to estimated time to reach them.
type trainETA struct {
	order []string
	eta   map[string]time.Duration
}

// futureETAs projects a train onto its route and estimates the running
// time to every remaining station at the current fused speed.
func (d *Detector) futureETAs(trainID string, st model.TrainState) (trainETA, bool) {
	if st.SpeedKmh < 1 {
		return trainETA{}, false
	}
	train, err := d.network.Train(trainID)
	if err != nil {
		return trainETA{}, false
	}
	route, err := d.network.Route(train.RouteID)
	if err != nil {
		return trainETA{}, false
	}
	waypoints := d.network.RouteWaypoints(route.ID)
	if len(waypoints) < 2 || len(waypoints) != len(route.Stations) {
		return trainETA{}, false
	}
	curKM := geo.DistanceAlongKM(waypoints, st.Lat, st.Lon)

	res := trainETA{eta: map[string]time.Duration{}}
	cum := 0.0
	for k := 1; k < len(waypoints); k++ {
		cum += geo.HaversineKM(waypoints[k-1][0], waypoints[k-1][1], waypoints[k][0], waypoints[k][1])
		if cum <= curKM {
			continue
		}
		code := route.Stations[k].Code
		hours := (cum - curKM) / st.SpeedKmh
		res.order = append(res.order, code)
		res.eta[code] = time.Duration(hours * float64(time.Hour))
	}
	return res, len(res.order) > 0
}

// firstSharedPoint returns the earliest station (in the first train's
// travel order) that appears in both futures.
func firstSharedPoint(a, b trainETA) (code string, etaA, etaB time.Duration, found bool) {
	for _, c := range a.order {
		if eb, ok := b.eta[c]; ok {
			return c, a.eta[c], eb, true
		}
	}
	return "", 0, 0, false
}

func (d *Detector) orderByPriority(idA, idB string) (first, second string) {
	pa, pb := 99, 99
	if t, err := d.network.Train(idA); err == nil {
		pa = t.EffectivePriority()
	}
	if t, err := d.network.Train(idB); err == nil {
		pb = t.EffectivePriority()
	}
	if pb < pa {
		return idB, idA
	}
	return idA, idB
}

// resourceOverAllocation groups near-stationary trains by station and
// coarse time bucket, flagging stations holding more trains than platforms.
func (d *Detector) resourceOverAllocation(states map[string]model.TrainState, now time.Time) []model.Conflict {
	type key struct {
		station string
		bucket  int64
	}
	groups := map[key][]string{}
	for _, id := range sortedIDs(states) {
		st := states[id]
		if st.SpeedKmh >= d.cfg.StationarySpeed {
			continue
		}
		code, ok := d.nearestStation(st.Lat, st.Lon)
		if !ok {
			continue
		}
		bucket := st.UpdatedAt.Truncate(d.cfg.StationBucket).Unix()
		k := key{station: code, bucket: bucket}
		groups[k] = append(groups[k], id)
	}

	keys := make([]key, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].station != keys[j].station {
			return keys[i].station < keys[j].station
		}
		return keys[i].bucket < keys[j].bucket
	})

	var out []model.Conflict
	for _, k := range keys {
		trains := groups[k]
		capacity := d.cfg.PlatformCapacity
		if st, err := d.network.Station(k.station); err == nil && st.Platforms > 0 {
			capacity = st.Platforms
		}
		if len(trains) <= capacity {
			continue
		}
		out = append(out, model.NewConflict(
			model.ConflictResource,
			model.SeverityMedium,
			trains,
			k.station,
			fmt.Sprintf("%d trains at %s exceed %d platforms", len(trains), k.station, capacity),
			"stagger arrivals",
			now,
		))
	}
	return out
}

func (d *Detector) nearestStation(lat, lon float64) (string, bool) {
	best := ""
	bestKM := d.cfg.StationRadiusKM
	for _, st := range d.network.Stations() {
		km := geo.HaversineKM(lat, lon, st.Lat, st.Lon)
		if km <= bestKM {
			best = st.Code
			bestKM = km
		}
	}
	return best, best != ""
}

// delayBubbleUp flags delayed trains that causally affect a strictly
// higher-priority train through a shared downstream station.
func (d *Detector) delayBubbleUp(states map[string]model.TrainState, now time.Time) []model.Conflict {
	ids := sortedIDs(states)
	var out []model.Conflict
	for _, id := range ids {
		delay := d.store.Delay(id)
		if delay <= 0 {
			continue
		}
		train, err := d.network.Train(id)
		if err != nil {
			continue
		}
		downstream := d.downstreamStations(id, states[id])
		if len(downstream) == 0 {
			continue
		}
		for _, otherID := range ids {
			if otherID == id {
				continue
			}
			other, err := d.network.Train(otherID)
			if err != nil || other.EffectivePriority() >= train.EffectivePriority() {
				continue
			}
			shared := ""
			for code := range d.downstreamStations(otherID, states[otherID]) {
				if downstream[code] {
					shared = code
					break
				}
			}
			if shared == "" {
				continue
			}
			out = append(out, model.NewConflict(
				model.ConflictDelayCascade,
				model.SeverityHigh,
				[]string{id, otherID},
				shared,
				fmt.Sprintf("delay of %s on %s propagates to higher-priority %s at %s",
					delay.Round(time.Minute), id, otherID, shared),
				"priority resequencing",
				now,
			))
		}
	}
	return out
}

// downstreamStations returns the station codes still ahead of the train,
// keyed for membership tests and ordered for iteration.
func (d *Detector) downstreamStations(trainID string, st model.TrainState) map[string]bool {
	eta, ok := d.futureETAsAnySpeed(trainID, st)
	if !ok {
		return nil
	}
	set := make(map[string]bool, len(eta.order))
	for _, c := range eta.order {
		set[c] = true
	}
	return set
}

// futureETAsAnySpeed is futureETAs without the minimum-speed guard, used
// where only the station set matters, not the timing.
func (d *Detector) futureETAsAnySpeed(trainID string, st model.TrainState) (trainETA, bool) {
	speed := st.SpeedKmh
	if speed < 1 {
		st.SpeedKmh = 1
	}
	return d.futureETAs(trainID, st)
}

// safetyDistance flags pairs closer than the minimum separation. A pair
// exactly at the threshold is compliant.
func (d *Detector) safetyDistance(states map[string]model.TrainState, now time.Time) []model.Conflict {
	ids := sortedIDs(states)
	var out []model.Conflict
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			a, b := states[ids[i]], states[ids[j]]
			km := geo.HaversineKM(a.Lat, a.Lon, b.Lat, b.Lon)
			if km >= d.cfg.SafetyDistanceKM {
				continue
			}
			out = append(out, model.NewConflict(
				model.ConflictSafetyDistance,
				model.SeverityCritical,
				[]string{ids[i], ids[j]},
				fmt.Sprintf("%.4f,%.4f", a.Lat, a.Lon),
				fmt.Sprintf("trains %s and %s are %.3f km apart, below the %.1f km minimum",
					ids[i], ids[j], km, d.cfg.SafetyDistanceKM),
				"emergency halt",
				now,
			))
		}
	}
	return out
}
