package optimizer

import (
	"sort"
	"time"
)

// violation is one schedule entry that could not be placed on any
// platform of its station. needed is the wait until a platform frees.
type violation struct {
	station  string
	trainID  string
	entryIdx int
	needed   time.Duration
}

// findViolations counts unplaceable entries without touching the genome.
func (o *Optimizer) findViolations(g genome) []violation {
	return o.assignPlatforms(g, false)
}

// assignPlatforms walks every station's halting entries in arrival order
// (ties broken by train priority) and greedily assigns platforms. When
// mutate is true, successful placements are written back as platform
// numbers. Entries that find no free platform are returned as violations.
func (o *Optimizer) assignPlatforms(g genome, mutate bool) []violation {
	type stopRef struct {
		trainID  string
		idx      int
		priority int
	}
	byStation := map[string][]stopRef{}
	for id, sched := range g {
		priority := 9
		if t, err := o.net.Train(id); err == nil {
			priority = t.EffectivePriority()
		}
		for i := range sched.Entries {
			if !sched.Entries[i].IsHalt {
				continue
			}
			code := sched.Entries[i].StationCode
			byStation[code] = append(byStation[code], stopRef{trainID: id, idx: i, priority: priority})
		}
	}

	stations := make([]string, 0, len(byStation))
	for code := range byStation {
		stations = append(stations, code)
	}
	sort.Strings(stations)

	var out []violation
	for _, code := range stations {
		stops := byStation[code]
		sort.Slice(stops, func(i, j int) bool {
			ei := g[stops[i].trainID].Entries[stops[i].idx]
			ej := g[stops[j].trainID].Entries[stops[j].idx]
			if !ei.Arrival.Equal(ej.Arrival) {
				return ei.Arrival.Before(ej.Arrival)
			}
			if stops[i].priority != stops[j].priority {
				return stops[i].priority < stops[j].priority
			}
			return stops[i].trainID < stops[j].trainID
		})

		capacity := o.capacityAt(code)
		free := make([]time.Time, capacity)
		for _, s := range stops {
			entry := &g[s.trainID].Entries[s.idx]
			best := -1
			for p := 0; p < capacity; p++ {
				if !free[p].After(entry.Arrival) {
					if best < 0 || free[p].After(free[best]) {
						best = p // tightest fit keeps earlier platforms open
					}
				}
			}
			if best < 0 {
				earliest := free[0]
				for p := 1; p < capacity; p++ {
					if free[p].Before(earliest) {
						earliest = free[p]
					}
				}
				out = append(out, violation{
					station:  code,
					trainID:  s.trainID,
					entryIdx: s.idx,
					needed:   earliest.Sub(entry.Arrival),
				})
				continue
			}
			free[best] = entry.Departure.Add(o.cfg.HeadwayBuffer)
			if mutate {
				entry.Platform = best + 1
			}
		}
	}
	return out
}

// repair runs the detect-then-patch loop: each pass right-shifts the
// violating (lower-priority latecomer) train past the congestion, and the
// loop continues while the violation count strictly decreases. Running
// repair on an already-clean genome is a no-op.
func (o *Optimizer) repair(g genome) {
	prev := -1
	for attempt := 0; attempt < o.cfg.RepairAttempts; attempt++ {
		violations := o.assignPlatforms(g, true)
		if len(violations) == 0 {
			return
		}
		if prev >= 0 && len(violations) >= prev {
			return
		}
		prev = len(violations)

		for _, v := range violations {
			sched := g[v.trainID]
			shift := v.needed
			if shift <= 0 {
				shift = o.cfg.HeadwayBuffer
			}
			sched.ShiftFrom(v.entryIdx, shift)
			// A shift may land the stop inside a maintenance window;
			// push it past the window end.
			if t, err := o.net.Train(v.trainID); err == nil {
				if route, err := o.net.Route(t.RouteID); err == nil {
					arr := sched.Entries[v.entryIdx].Arrival
					if next := route.NextAvailable(arr); next.After(arr) {
						extra := next.Sub(arr)
						sched.ShiftFrom(v.entryIdx, extra)
						shift += extra
					}
				}
			}
			sched.TotalDelay += shift
		}
	}
}
