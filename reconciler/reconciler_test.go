package reconciler

import (
	"errors"
	"testing"
	"time"

	"github.com/theoremus-urban-solutions/railopt/config"
	"github.com/theoremus-urban-solutions/railopt/model"
)

var day = time.Date(2025, 6, 1, 6, 0, 0, 0, time.UTC)

func testNetwork() *model.Network {
	stations := []*model.Station{
		{Code: "SOF", Name: "Sofia", Lat: 42.712, Lon: 23.321, Platforms: 4},
		{Code: "VAK", Name: "Vakarel", Lat: 42.551, Lon: 23.690, Platforms: 2},
		{Code: "PDV", Name: "Plovdiv", Lat: 42.133, Lon: 24.750, Platforms: 5},
	}
	routes := []*model.Route{{
		ID:          "R1",
		MaxSpeedKmh: 160,
		Stations: []model.RouteStation{
			{Code: "SOF", DistanceKM: 0},
			{Code: "VAK", DistanceKM: 34},
			{Code: "PDV", DistanceKM: 156},
		},
	}}
	trains := []*model.Train{
		{ID: "EXP-1", Type: model.TrainExpress, Priority: 2, MaxSpeedKmh: 140, RouteID: "R1", Origin: "SOF", Destination: "PDV"},
		{ID: "PAS-2", Type: model.TrainPassenger, Priority: 3, MaxSpeedKmh: 100, RouteID: "R1", Origin: "SOF", Destination: "PDV"},
		{ID: "FRT-3", Type: model.TrainFreight, Priority: 4, MaxSpeedKmh: 80, RouteID: "R1", Origin: "SOF", Destination: "PDV"},
	}
	return model.NewNetwork(trains, routes, stations, nil)
}

// journey builds a three-stop schedule departing at start with the given
// dwell at each station.
func journey(trainID string, start time.Time, dwell time.Duration) *model.Schedule {
	sched := &model.Schedule{TrainID: trainID}
	cursor := start
	for _, code := range []string{"SOF", "VAK", "PDV"} {
		sched.Entries = append(sched.Entries, model.ScheduleEntry{
			StationCode:  code,
			Arrival:      cursor,
			Departure:    cursor.Add(dwell),
			IsHalt:       true,
			HaltDuration: dwell,
		})
		cursor = cursor.Add(dwell + 30*time.Minute)
	}
	return sched
}

func newFixture() (*Reconciler, *model.Store, *model.Network) {
	net := testNetwork()
	store := model.NewStore()
	return New(config.Default().Optimizer, store, net), store, net
}

func TestApplyDelayShiftsRemainingEntries(t *testing.T) {
	r, store, _ := newFixture()
	store.SetSchedule(journey("EXP-1", day, 3*time.Minute))

	upd, err := r.ApplyDelay("EXP-1", model.TrainState{}, 15*time.Minute, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, e := range upd.Schedule.Entries {
		want := journey("EXP-1", day.Add(15*time.Minute), 3*time.Minute).Entries[i]
		if !e.Arrival.Equal(want.Arrival) || !e.Departure.Equal(want.Departure) {
			t.Errorf("entry %d not shifted by 15m: %+v", i, e)
		}
	}
	if upd.Schedule.TotalDelay != 15*time.Minute {
		t.Errorf("expected 15m total delay, got %s", upd.Schedule.TotalDelay)
	}
	if upd.Latency < 0 {
		t.Errorf("negative latency %s", upd.Latency)
	}
}

func TestApplyDelayAccumulates(t *testing.T) {
	r, store, _ := newFixture()
	store.SetSchedule(journey("EXP-1", day, 3*time.Minute))

	if _, err := r.ApplyDelay("EXP-1", model.TrainState{}, 10*time.Minute, nil); err != nil {
		t.Fatal(err)
	}
	upd, err := r.ApplyDelay("EXP-1", model.TrainState{}, 5*time.Minute, nil)
	if err != nil {
		t.Fatal(err)
	}

	if upd.Schedule.TotalDelay != 15*time.Minute {
		t.Errorf("delays should accumulate to 15m, got %s", upd.Schedule.TotalDelay)
	}
	if got := store.Delay("EXP-1"); got != 15*time.Minute {
		t.Errorf("live delay should accumulate to 15m, got %s", got)
	}
	if got := store.Status("EXP-1"); got != model.StatusDelayed {
		t.Errorf("expected delayed status, got %s", got)
	}
}

func TestApplyDelayPositionLimitsShift(t *testing.T) {
	r, store, _ := newFixture()
	store.SetSchedule(journey("EXP-1", day, 3*time.Minute))
	baseline := journey("EXP-1", day, 3*time.Minute)

	// Between SOF and VAK: the SOF entry is already behind the train.
	position := model.TrainState{TrainID: "EXP-1", Lat: 42.63, Lon: 23.50}
	upd, err := r.ApplyDelay("EXP-1", position, 15*time.Minute, nil)
	if err != nil {
		t.Fatal(err)
	}

	if !upd.Schedule.Entries[0].Arrival.Equal(baseline.Entries[0].Arrival) {
		t.Error("passed stop should not be rewritten")
	}
	for i := 1; i < len(upd.Schedule.Entries); i++ {
		want := baseline.Entries[i].Arrival.Add(15 * time.Minute)
		if !upd.Schedule.Entries[i].Arrival.Equal(want) {
			t.Errorf("remaining entry %d should shift, got %v want %v", i, upd.Schedule.Entries[i].Arrival, want)
		}
	}
}

func TestApplyDelayPushesLowerPriorityOnOverlap(t *testing.T) {
	r, store, _ := newFixture()
	// The freight reaches VAK 20 minutes after the express; a 20-minute
	// express delay lands both in the same window.
	store.SetSchedule(journey("EXP-1", day, 3*time.Minute))
	store.SetSchedule(journey("FRT-3", day.Add(20*time.Minute), 3*time.Minute))

	upd, err := r.ApplyDelay("EXP-1", model.TrainState{}, 20*time.Minute, []string{"FRT-3"})
	if err != nil {
		t.Fatal(err)
	}

	frt, ok := upd.Affected["FRT-3"]
	if !ok {
		t.Fatal("overlapping lower-priority train should be rescheduled")
	}
	if frt.TotalDelay <= 0 {
		t.Errorf("pushed train should accrue delay, got %s", frt.TotalDelay)
	}

	// The push must clear every shared window including the headway buffer.
	exp, _ := store.Schedule("EXP-1")
	for i, fe := range frt.Entries {
		j := exp.EntryAt(fe.StationCode)
		if j < 0 {
			continue
		}
		ee := exp.Entries[j]
		buf := config.Default().Optimizer.HeadwayBuffer
		if model.Overlaps(fe.Arrival, fe.Departure.Add(buf), ee.Arrival, ee.Departure.Add(buf)) {
			t.Errorf("entry %d at %s still overlaps after repair", i, fe.StationCode)
		}
	}

	if store.Delay("FRT-3") <= 0 {
		t.Error("pushed train should carry the accrued delay")
	}
	if got := store.Status("FRT-3"); got != model.StatusDelayed {
		t.Errorf("pushed train should be marked delayed, got %s", got)
	}
}

func TestApplyDelayNeverPushesHigherPriority(t *testing.T) {
	r, store, _ := newFixture()
	store.SetSchedule(journey("FRT-3", day, 3*time.Minute))
	store.SetSchedule(journey("EXP-1", day.Add(20*time.Minute), 3*time.Minute))
	expBefore, _ := store.Schedule("EXP-1")
	expBefore = expBefore.Clone()

	upd, err := r.ApplyDelay("FRT-3", model.TrainState{}, 20*time.Minute, []string{"EXP-1"})
	if err != nil {
		t.Fatal(err)
	}

	if len(upd.Affected) != 0 {
		t.Errorf("higher-priority train must never be delayed, got %v", upd.Affected)
	}
	expAfter, _ := store.Schedule("EXP-1")
	for i := range expAfter.Entries {
		if !expAfter.Entries[i].Arrival.Equal(expBefore.Entries[i].Arrival) {
			t.Errorf("express entry %d was rewritten", i)
		}
	}
	if got := store.Delay("EXP-1"); got != 0 {
		t.Errorf("express should keep zero delay, got %s", got)
	}
}

func TestApplyDelayLeavesUnrelatedTrainsAlone(t *testing.T) {
	r, store, _ := newFixture()
	store.SetSchedule(journey("EXP-1", day, 3*time.Minute))
	// Far outside any window the express occupies.
	store.SetSchedule(journey("PAS-2", day.Add(3*time.Hour), 3*time.Minute))
	pasBefore, _ := store.Schedule("PAS-2")
	pasBefore = pasBefore.Clone()

	upd, err := r.ApplyDelay("EXP-1", model.TrainState{}, 10*time.Minute, []string{"PAS-2"})
	if err != nil {
		t.Fatal(err)
	}

	if len(upd.Affected) != 0 {
		t.Errorf("non-overlapping train should be untouched, got %v", upd.Affected)
	}
	pasAfter, _ := store.Schedule("PAS-2")
	for i := range pasAfter.Entries {
		if !pasAfter.Entries[i].Arrival.Equal(pasBefore.Entries[i].Arrival) {
			t.Errorf("passenger entry %d was rewritten", i)
		}
	}
}

func TestApplyDelayUnknownTrain(t *testing.T) {
	r, _, _ := newFixture()
	if _, err := r.ApplyDelay("NOPE", model.TrainState{}, time.Minute, nil); !errors.Is(err, model.ErrTrainNotFound) {
		t.Errorf("expected ErrTrainNotFound, got %v", err)
	}
}

func TestApplyDelayNoSchedule(t *testing.T) {
	r, _, _ := newFixture()
	if _, err := r.ApplyDelay("EXP-1", model.TrainState{}, time.Minute, nil); !errors.Is(err, ErrNoSchedule) {
		t.Errorf("expected ErrNoSchedule, got %v", err)
	}
}
