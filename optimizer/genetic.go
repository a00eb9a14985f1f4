package optimizer

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/theoremus-urban-solutions/railopt/model"
)

// genome is one candidate timetable: a schedule per train.
type genome map[string]*model.Schedule

func cloneGenome(g genome) genome {
	out := make(genome, len(g))
	for id, s := range g {
		out[id] = s.Clone()
	}
	return out
}

// evolve runs the genetic search and returns the best individual found
// within the generation cap, the convergence window, or ctx cancellation,
// whichever comes first.
func (o *Optimizer) evolve(ctx context.Context, trains []*model.Train, horizonStart time.Time) genome {
	pop := make([]genome, o.cfg.PopulationSize)
	for i := range pop {
		pop[i] = o.randomGenome(trains, horizonStart)
	}

	fitnesses := make([]float64, len(pop))
	for i, g := range pop {
		fitnesses[i] = o.fitness(g, trains)
	}

	const convergenceWindow = 10
	bestFit := math.MaxFloat64
	stale := 0

	for gen := 0; gen < o.cfg.Generations; gen++ {
		select {
		case <-ctx.Done():
			return pop[bestIndex(fitnesses)]
		default:
		}

		bi := bestIndex(fitnesses)
		if fitnesses[bi] < bestFit-1e-9 {
			bestFit = fitnesses[bi]
			stale = 0
		} else {
			stale++
			if stale >= convergenceWindow {
				break
			}
		}

		next := make([]genome, 0, len(pop))
		next = append(next, cloneGenome(pop[bi])) // elitism
		for len(next) < len(pop) {
			p1 := pop[o.tournament(fitnesses)]
			p2 := pop[o.tournament(fitnesses)]
			child := o.crossover(p1, p2)
			o.mutate(child, trains, horizonStart)
			next = append(next, child)
		}
		pop = next
		for i, g := range pop {
			fitnesses[i] = o.fitness(g, trains)
		}
	}
	return pop[bestIndex(fitnesses)]
}

func bestIndex(fitnesses []float64) int {
	best := 0
	for i, f := range fitnesses {
		if f < fitnesses[best] {
			best = i
		}
	}
	return best
}

// tournament picks the fittest of TournamentSize random individuals.
func (o *Optimizer) tournament(fitnesses []float64) int {
	best := o.rng.Intn(len(fitnesses))
	for k := 1; k < o.cfg.TournamentSize; k++ {
		c := o.rng.Intn(len(fitnesses))
		if fitnesses[c] < fitnesses[best] {
			best = c
		}
	}
	return best
}

// crossover is single-point across the sorted train axis: the child takes
// the first parent's schedules up to the split and the second's after.
func (o *Optimizer) crossover(p1, p2 genome) genome {
	if o.rng.Float64() >= o.cfg.CrossoverRate {
		return cloneGenome(p1)
	}
	ids := make([]string, 0, len(p1))
	for id := range p1 {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	split := o.rng.Intn(len(ids) + 1)

	child := make(genome, len(ids))
	for i, id := range ids {
		src := p1
		if i >= split {
			src = p2
		}
		child[id] = src[id].Clone()
	}
	return child
}

// mutate applies a random time shift to one station stop of one train,
// propagated downstream so entries stay ordered.
func (o *Optimizer) mutate(g genome, trains []*model.Train, horizonStart time.Time) {
	if o.rng.Float64() >= o.cfg.MutationRate {
		return
	}
	t := trains[o.rng.Intn(len(trains))]
	sched := g[t.ID]
	if sched == nil || len(sched.Entries) == 0 {
		return
	}
	idx := o.rng.Intn(len(sched.Entries))
	shift := time.Duration((o.rng.Float64()*2 - 1) * float64(10*time.Minute))

	// Keep the shifted arrival after the previous departure and the
	// journey start inside the horizon.
	if idx > 0 {
		earliest := sched.Entries[idx-1].Departure
		if sched.Entries[idx].Arrival.Add(shift).Before(earliest) {
			shift = earliest.Sub(sched.Entries[idx].Arrival)
		}
	} else if sched.Entries[0].Arrival.Add(shift).Before(horizonStart) {
		shift = horizonStart.Sub(sched.Entries[0].Arrival)
	}
	sched.ShiftFrom(idx, shift)
	if route, err := o.net.Route(t.RouteID); err == nil {
		arr := sched.Entries[idx].Arrival
		if next := route.NextAvailable(arr); next.After(arr) {
			sched.ShiftFrom(idx, next.Sub(arr))
		}
	}
	o.recomputeDelay(t, sched, horizonStart)
}

// randomGenome builds one random feasible schedule per train: a departure
// in the first hour of the horizon, halts chosen greedily within the
// train's budget, and running times at the allowed line speed.
func (o *Optimizer) randomGenome(trains []*model.Train, horizonStart time.Time) genome {
	g := make(genome, len(trains))
	for _, t := range trains {
		g[t.ID] = o.randomSchedule(t, horizonStart)
	}
	return g
}

func (o *Optimizer) randomSchedule(t *model.Train, horizonStart time.Time) *model.Schedule {
	route, err := o.net.Route(t.RouteID)
	if err != nil {
		return &model.Schedule{TrainID: t.ID, GeneratedAt: horizonStart}
	}
	from := route.StationIndex(t.Origin)
	to := route.StationIndex(t.Destination)
	if from < 0 || to < 0 || from == to {
		from, to = 0, len(route.Stations)-1
	}
	step := 1
	if to < from {
		step = -1
	}

	depart := route.NextAvailable(horizonStart.Add(time.Duration(o.rng.Float64() * float64(time.Hour))))
	sched := &model.Schedule{TrainID: t.ID, GeneratedAt: horizonStart}
	haltsLeft := t.MaxHalts
	cursor := depart
	speed := t.MaxSpeedKmh

	for i := from; ; i += step {
		rs := route.Stations[i]
		isEnd := i == from || i == to
		halt := isEnd
		if !halt && haltsLeft > 0 && rs.Allows(t.Type) && o.rng.Float64() < o.cfg.HaltProbability {
			halt = true
			haltsLeft--
		}

		entry := model.ScheduleEntry{
			StationCode: rs.Code,
			Arrival:     cursor,
			Departure:   cursor,
			IsHalt:      halt,
		}
		if halt {
			entry.HaltDuration = t.Type.HaltDuration()
			entry.Departure = entry.Arrival.Add(entry.HaltDuration)
		}
		sched.Entries = append(sched.Entries, entry)

		if i == to {
			break
		}
		cursor = entry.Departure.Add(route.TravelTime(i, i+step, speed))
	}
	o.recomputeDelay(t, sched, horizonStart)
	return sched
}

// recomputeDelay sets TotalDelay to the schedule's lateness against the
// train's fastest possible journey departing at the horizon start.
func (o *Optimizer) recomputeDelay(t *model.Train, sched *model.Schedule, horizonStart time.Time) {
	if len(sched.Entries) == 0 {
		sched.TotalDelay = 0
		return
	}
	baseline := horizonStart.Add(o.minimalJourney(t))
	delay := sched.FinalArrival().Sub(baseline)
	if delay < 0 {
		delay = 0
	}
	sched.TotalDelay = delay
}

// minimalJourney is the fastest origin-to-destination running time with
// halts only at the endpoints.
func (o *Optimizer) minimalJourney(t *model.Train) time.Duration {
	route, err := o.net.Route(t.RouteID)
	if err != nil {
		return 0
	}
	from := route.StationIndex(t.Origin)
	to := route.StationIndex(t.Destination)
	if from < 0 || to < 0 || from == to {
		from, to = 0, len(route.Stations)-1
	}
	run := route.TravelTime(from, to, t.MaxSpeedKmh)
	return run + t.Type.HaltDuration()
}

// fitness is the weighted delay sum plus a heavy penalty per constraint
// violation, so infeasibility dominates the objective.
func (o *Optimizer) fitness(g genome, trains []*model.Train) float64 {
	total := 0.0
	for _, t := range trains {
		sched := g[t.ID]
		if sched == nil {
			continue
		}
		total += sched.TotalDelay.Minutes() * t.Type.PriorityWeight()
	}
	total += float64(len(o.findViolations(g))) * o.cfg.ConflictPenalty
	return total
}
