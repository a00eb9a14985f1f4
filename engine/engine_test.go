package engine

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/theoremus-urban-solutions/railopt/config"
	"github.com/theoremus-urban-solutions/railopt/model"
	"github.com/theoremus-urban-solutions/railopt/optimizer"
	"github.com/theoremus-urban-solutions/railopt/telemetry"
)

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
		{ID: "T1", Type: model.TrainExpress, MaxSpeedKmh: 140, MaxHalts: 1, RouteID: "R1", Origin: "SOF", Destination: "PDV"},
		{ID: "T2", Type: model.TrainPassenger, MaxSpeedKmh: 100, MaxHalts: 2, RouteID: "R1", Origin: "SOF", Destination: "PDV"},
	}
	return model.NewNetwork(trains, routes, stations, nil)
}

func newTestEngine() *Engine {
	cfg := config.Default()
	cfg.Optimizer.PopulationSize = 12
	cfg.Optimizer.Generations = 10
	net := testNetwork()
	opt := optimizer.New(cfg.Optimizer, cfg.Detector, net, rand.New(rand.NewSource(42)))
	return New(cfg, net, opt)
}

func TestIngestPositionProducesState(t *testing.T) {
	eng := newTestEngine()
	eng.IngestPosition(telemetry.RawPosition{
		TrainID: "T1", Lat: 42.70, Lon: 23.33, SpeedKmh: 80, AccuracyM: 5, Timestamp: time.Now(),
	})

	st, ok := eng.Store().State("T1")
	if !ok {
		t.Fatal("expected fused state after ingest")
	}
	if st.Confidence <= 0 || st.Confidence > 1 {
		t.Errorf("confidence out of range: %f", st.Confidence)
	}
}

func TestBroadcastDeliversStates(t *testing.T) {
	eng := newTestEngine()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go eng.Run(ctx)

	all := eng.Broadcaster().SubscribeStates()
	one := eng.Broadcaster().SubscribeTrain("T1")

	eng.IngestPosition(telemetry.RawPosition{
		TrainID: "T1", Lat: 42.70, Lon: 23.33, SpeedKmh: 80, AccuracyM: 5, Timestamp: time.Now(),
	})

	for name, ch := range map[string]<-chan model.TrainState{"aggregate": all, "per-train": one} {
		select {
		case st := <-ch:
			if st.TrainID != "T1" {
				t.Errorf("%s: expected T1, got %s", name, st.TrainID)
			}
		case <-time.After(2 * time.Second):
			t.Errorf("%s: no state delivered", name)
		}
	}
}

func TestOptimizeCommitsSchedules(t *testing.T) {
	eng := newTestEngine()
	res := eng.Optimize(context.Background())

	if len(res.Schedules) != 2 {
		t.Fatalf("expected 2 schedules, got %d", len(res.Schedules))
	}
	if eng.Store().ActiveScheduleCount() != 2 {
		t.Errorf("expected 2 committed schedules, got %d", eng.Store().ActiveScheduleCount())
	}
	status := eng.Status()
	if status.LastOptimized.IsZero() {
		t.Error("status should record the optimization time")
	}
	if status.ActiveSchedules != 2 {
		t.Errorf("status reports %d active schedules", status.ActiveSchedules)
	}
}

func TestOptimizeReappliesLiveDelay(t *testing.T) {
	eng := newTestEngine()
	eng.Store().AddDelay("T1", 10*time.Minute)

	res := eng.Optimize(context.Background())

	committed, ok := eng.Store().Schedule("T1")
	if !ok {
		t.Fatal("expected committed schedule")
	}
	want := res.Schedules["T1"].FinalArrival().Add(10 * time.Minute)
	if !committed.FinalArrival().Equal(want) {
		t.Errorf("live delay not reapplied: committed %v, want %v", committed.FinalArrival(), want)
	}
}

func TestReportDelay(t *testing.T) {
	eng := newTestEngine()
	eng.Optimize(context.Background())

	upd, err := eng.ReportDelay("T1", 5*time.Minute, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if upd.Schedule.TotalDelay < 5*time.Minute {
		t.Errorf("expected at least 5m delay on the shifted schedule, got %s", upd.Schedule.TotalDelay)
	}

	if _, err := eng.ReportDelay("NOPE", time.Minute, nil); !errors.Is(err, model.ErrTrainNotFound) {
		t.Errorf("expected ErrTrainNotFound, got %v", err)
	}
}

// Delay reports, detection cycles, and status queries share live state;
// run them together so the race detector can see any unguarded access.
func TestReportDelayConcurrentWithDetection(t *testing.T) {
	eng := newTestEngine()
	eng.Optimize(context.Background())
	eng.IngestPosition(telemetry.RawPosition{
		TrainID: "T1", Lat: 42.70, Lon: 23.33, SpeedKmh: 80, AccuracyM: 5, Timestamp: time.Now(),
	})
	eng.IngestPosition(telemetry.RawPosition{
		TrainID: "T2", Lat: 42.60, Lon: 23.50, SpeedKmh: 60, AccuracyM: 5, Timestamp: time.Now(),
	})

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			if _, err := eng.ReportDelay("T1", time.Minute, []string{"T2"}); err != nil {
				t.Errorf("report delay: %v", err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			eng.DetectConflicts()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			eng.Optimize(context.Background())
			eng.Status()
		}
	}()
	wg.Wait()

	if got := eng.Store().Delay("T1"); got != 20*time.Minute {
		t.Errorf("expected 20m accumulated delay, got %s", got)
	}
	if got := eng.Store().Status("T1"); got != model.StatusDelayed {
		t.Errorf("expected delayed status, got %s", got)
	}
}

func TestScenario(t *testing.T) {
	eng := newTestEngine()
	eng.Optimize(context.Background())

	res, err := eng.Scenario(context.Background(), "T1", 10*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Schedules) != 2 {
		t.Errorf("expected 2 scenario schedules, got %d", len(res.Schedules))
	}

	// Scenario analysis is read-only against the live timetable.
	live, _ := eng.Store().Schedule("T1")
	if live.FinalArrival().Equal(res.Schedules["T1"].FinalArrival()) {
		t.Error("scenario schedule should differ from the live one")
	}
}

func TestScenarioTimeout(t *testing.T) {
	eng := newTestEngine()
	eng.cfg.Optimizer.ScenarioTimeout = time.Nanosecond
	eng.Optimize(context.Background())

	_, err := eng.Scenario(context.Background(), "T1", 10*time.Minute)
	if !errors.Is(err, optimizer.ErrScenarioTimeout) {
		t.Errorf("expected ErrScenarioTimeout, got %v", err)
	}
}
