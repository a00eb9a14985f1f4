package estimator

import (
	"math"
	"testing"
	"time"

	"github.com/theoremus-urban-solutions/railopt/config"
	"github.com/theoremus-urban-solutions/railopt/model"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testNetwork() *model.Network {
	stations := []*model.Station{
		{Code: "SOF", Name: "Sofia", Lat: 42.712, Lon: 23.321, Platforms: 4},
		{Code: "VAK", Name: "Vakarel", Lat: 42.551, Lon: 23.690, Platforms: 2},
	}
	routes := []*model.Route{{
		ID:          "R1",
		MaxSpeedKmh: 160,
		Stations: []model.RouteStation{
			{Code: "SOF", DistanceKM: 0},
			{Code: "VAK", DistanceKM: 34},
		},
	}}
	trains := []*model.Train{{
		ID: "T1", Type: model.TrainExpress, MaxSpeedKmh: 140, RouteID: "R1", Origin: "SOF", Destination: "VAK",
	}}
	sections := []*model.Section{{ID: "S1", RouteID: "R1", Lat: 42.6, Lon: 23.5}}
	return model.NewNetwork(trains, routes, stations, sections)
}

func newTestEstimator(store *model.Store) *Estimator {
	cfg := config.Default()
	return New(cfg.Estimator, cfg.Telemetry.BufferWindow, store, testNetwork(), nil)
}

func positionReading(ts time.Time, lat, lon, speed, quality float64) model.Reading {
	return model.Reading{
		Source: model.SourcePosition, TrainID: "T1", Timestamp: ts,
		Lat: lat, Lon: lon, SpeedKmh: speed, HeadingDeg: 120, Quality: quality,
	}
}

func TestFusionPullsTowardReadings(t *testing.T) {
	store := model.NewStore()
	e := newTestEstimator(store)

	e.Ingest(positionReading(t0, 42.70, 23.33, 80, 1.0))
	e.Ingest(positionReading(t0.Add(10*time.Second), 42.69, 23.35, 85, 1.0))

	st, ok := store.State("T1")
	if !ok {
		t.Fatal("expected fused state for T1")
	}
	if st.Lat < 42.68 || st.Lat > 42.71 {
		t.Errorf("fused lat %f not between the readings", st.Lat)
	}
	if st.SpeedKmh < 70 || st.SpeedKmh > 90 {
		t.Errorf("fused speed %f not near the readings", st.SpeedKmh)
	}
	if st.HeadingDeg != 120 {
		t.Errorf("expected heading 120, got %f", st.HeadingDeg)
	}
	if !st.UpdatedAt.Equal(t0.Add(10 * time.Second)) {
		t.Errorf("expected newest reading timestamp, got %v", st.UpdatedAt)
	}
}

func TestFusionOrderInsensitiveGivenTimestamps(t *testing.T) {
	readings := []model.Reading{
		positionReading(t0, 42.70, 23.33, 80, 1.0),
		positionReading(t0.Add(20*time.Second), 42.68, 23.37, 90, 0.8),
		{Source: model.SourceOccupancy, TrainID: "T1", Timestamp: t0.Add(40 * time.Second),
			SectionID: "S1", Occupied: true, Quality: 0.9},
		positionReading(t0.Add(time.Minute), 42.66, 23.41, 95, 1.0),
	}

	fuseAll := func(order []int) model.TrainState {
		store := model.NewStore()
		e := newTestEstimator(store)
		for _, i := range order {
			e.Ingest(readings[i])
		}
		st, _ := store.State("T1")
		return st
	}

	inOrder := fuseAll([]int{0, 1, 2, 3})
	shuffled := fuseAll([]int{3, 1, 0, 2})

	if inOrder != shuffled {
		t.Errorf("fusion diverged across arrival orders:\n in-order: %+v\n shuffled: %+v", inOrder, shuffled)
	}
}

func TestConfidenceBounds(t *testing.T) {
	qualities := [][]float64{
		{1.0},
		{0.1},
		{0.0},
		{1.0, 1.0, 1.0, 1.0, 1.0},
		{0.1, 0.9, 0.3, 1.0},
	}
	for _, qs := range qualities {
		store := model.NewStore()
		e := newTestEstimator(store)
		for i, q := range qs {
			e.Ingest(positionReading(t0.Add(time.Duration(i)*time.Second), 42.7, 23.33, 60, q))
		}
		st, _ := store.State("T1")
		if st.Confidence < 0 || st.Confidence > 1 {
			t.Errorf("confidence %f out of [0,1] for qualities %v", st.Confidence, qs)
		}
	}
}

func TestConfidenceGrowsWithReadings(t *testing.T) {
	store := model.NewStore()
	e := newTestEstimator(store)

	e.Ingest(positionReading(t0, 42.7, 23.33, 60, 1.0))
	first, _ := store.State("T1")

	e.Ingest(positionReading(t0.Add(5*time.Second), 42.7, 23.33, 60, 1.0))
	second, _ := store.State("T1")

	if second.Confidence <= first.Confidence {
		t.Errorf("confidence should grow with corroborating readings: %f then %f", first.Confidence, second.Confidence)
	}
}

func TestHeadingDerivedFromTrack(t *testing.T) {
	store := model.NewStore()
	e := newTestEstimator(store)

	// Two fixes moving due east with no reported compass course.
	e.Ingest(model.Reading{
		Source: model.SourcePosition, TrainID: "T1", Timestamp: t0,
		Lat: 42.70, Lon: 23.33, SpeedKmh: 80, Quality: 1.0,
	})
	e.Ingest(model.Reading{
		Source: model.SourcePosition, TrainID: "T1", Timestamp: t0.Add(10 * time.Second),
		Lat: 42.70, Lon: 23.35, SpeedKmh: 80, Quality: 1.0,
	})

	st, ok := store.State("T1")
	if !ok {
		t.Fatal("expected fused state for T1")
	}
	if math.Abs(st.HeadingDeg-90) > 1 {
		t.Errorf("eastbound track should yield heading near 90, got %f", st.HeadingDeg)
	}
}

func TestStationArrivalZeroesSpeed(t *testing.T) {
	store := model.NewStore()
	e := newTestEstimator(store)

	e.Ingest(positionReading(t0, 42.555, 23.685, 80, 1.0))
	e.Ingest(model.Reading{
		Source: model.SourceStation, TrainID: "T1", Timestamp: t0.Add(time.Minute),
		StationCode: "VAK", EventKind: model.EventArrival, Quality: 1.0,
	})

	st, _ := store.State("T1")
	if st.SpeedKmh != 0 {
		t.Errorf("arrival event should zero fused speed, got %f", st.SpeedKmh)
	}
}

func TestOccupancyCorrectionRules(t *testing.T) {
	tests := []struct {
		name      string
		reading   model.Reading
		expectFix bool
	}{
		{
			name: "occupied known section corrects position",
			reading: model.Reading{Source: model.SourceOccupancy, TrainID: "T1", Timestamp: t0,
				SectionID: "S1", Occupied: true, Quality: 1.0},
			expectFix: true,
		},
		{
			name: "free section is ignored",
			reading: model.Reading{Source: model.SourceOccupancy, TrainID: "T1", Timestamp: t0,
				SectionID: "S1", Occupied: false, Quality: 1.0},
			expectFix: false,
		},
		{
			name: "unknown section is ignored",
			reading: model.Reading{Source: model.SourceOccupancy, TrainID: "T1", Timestamp: t0,
				SectionID: "S-MISSING", Occupied: true, Quality: 1.0},
			expectFix: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := model.NewStore()
			e := newTestEstimator(store)
			e.Ingest(tt.reading)
			st, _ := store.State("T1")
			gotFix := st.Lat != 0 || st.Lon != 0
			if gotFix != tt.expectFix {
				t.Errorf("expectFix=%v but state position is (%f, %f)", tt.expectFix, st.Lat, st.Lon)
			}
			if tt.expectFix && (math.Abs(st.Lat-42.6) > 0.01 || math.Abs(st.Lon-23.5) > 0.01) {
				t.Errorf("position should anchor near the section reference, got (%f, %f)", st.Lat, st.Lon)
			}
		})
	}
}

func TestBufferPrunesOldReadings(t *testing.T) {
	store := model.NewStore()
	e := newTestEstimator(store)

	// An ancient reading far away, then a fresh burst somewhere else:
	// the ancient one must fall out of the 5-minute window.
	e.Ingest(positionReading(t0.Add(-time.Hour), 10.0, 10.0, 50, 1.0))
	for i := 0; i < 5; i++ {
		e.Ingest(positionReading(t0.Add(time.Duration(i)*time.Second), 42.7, 23.33, 60, 1.0))
	}

	st, _ := store.State("T1")
	if math.Abs(st.Lat-42.7) > 0.05 {
		t.Errorf("stale reading should have been pruned, fused lat %f", st.Lat)
	}
}

func TestDeactivateDropsState(t *testing.T) {
	store := model.NewStore()
	e := newTestEstimator(store)
	e.Ingest(positionReading(t0, 42.7, 23.33, 60, 1.0))
	e.Deactivate("T1")
	if _, ok := store.State("T1"); ok {
		t.Error("state should be dropped on deactivation")
	}
}

func TestUnattributedReadingDropped(t *testing.T) {
	store := model.NewStore()
	e := newTestEstimator(store)
	e.Ingest(model.Reading{Source: model.SourcePosition, Timestamp: t0, Lat: 42.7, Lon: 23.3, Quality: 1.0})
	if len(store.StatesSnapshot()) != 0 {
		t.Error("reading without train identity must not create state")
	}
}
