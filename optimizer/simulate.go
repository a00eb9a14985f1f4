package optimizer

import (
	"sort"
	"time"
)

// simEvent is one arrival or departure in the chronological replay.
type simEvent struct {
	at      time.Time
	arrival bool
	trainID string
	station string
}

// evaluate replays the timetable as a chronological event stream and
// computes aggregate metrics. Residual conflicts are instants where a
// station holds more halting trains than it has platforms.
func (o *Optimizer) evaluate(g genome) Metrics {
	var m Metrics
	if len(g) == 0 {
		return m
	}

	var events []simEvent
	for id, sched := range g {
		for _, e := range sched.Entries {
			if !e.IsHalt {
				continue
			}
			events = append(events, simEvent{at: e.Arrival, arrival: true, trainID: id, station: e.StationCode})
			events = append(events, simEvent{at: e.Departure, arrival: false, trainID: id, station: e.StationCode})
		}
	}
	sort.Slice(events, func(i, j int) bool {
		if !events[i].at.Equal(events[j].at) {
			return events[i].at.Before(events[j].at)
		}
		// Departures release platforms before simultaneous arrivals claim them.
		if events[i].arrival != events[j].arrival {
			return !events[i].arrival
		}
		return events[i].trainID < events[j].trainID
	})

	occupancy := map[string]int{}
	for _, ev := range events {
		if ev.arrival {
			occupancy[ev.station]++
			if occupancy[ev.station] > o.capacityAt(ev.station) {
				m.ConflictCount++
			}
		} else if occupancy[ev.station] > 0 {
			occupancy[ev.station]--
		}
	}

	var totalDelay time.Duration
	onTime := 0
	for _, sched := range g {
		totalDelay += sched.TotalDelay
		if sched.TotalDelay <= o.cfg.OnTimeThreshold {
			onTime++
		}
	}
	m.AverageDelay = totalDelay / time.Duration(len(g))
	m.OnTimePercent = float64(onTime) / float64(len(g)) * 100
	return m
}
