package estimator

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/theoremus-urban-solutions/railopt/config"
	"github.com/theoremus-urban-solutions/railopt/geo"
	"github.com/theoremus-urban-solutions/railopt/model"
)

// Estimator maintains one fusion state per train. Readings enter through
// Ingest and the fused TrainState is written to the store and emitted on
// the updates channel after every fusion.
type Estimator struct {
	cfg     config.EstimatorConfig
	window  time.Duration
	store   *model.Store
	network *model.Network
	updates chan<- model.TrainState

	mu     sync.RWMutex
	trains map[string]*trainBuffer
}

type trainBuffer struct {
	mu     sync.Mutex
	buffer []model.Reading
}

// New creates an estimator. updates may be nil when no broadcast is wired;
// sends never block; if the channel is full the event is dropped.
func New(cfg config.EstimatorConfig, bufferWindow time.Duration, store *model.Store, network *model.Network, updates chan<- model.TrainState) *Estimator {
	return &Estimator{
		cfg:     cfg,
		window:  bufferWindow,
		store:   store,
		network: network,
		updates: updates,
		trains:  map[string]*trainBuffer{},
	}
}

// Ingest merges one reading into the train's sliding window and re-fuses.
// Readings without a train identity cannot be attributed and are dropped.
// Never returns an error: low-quality input is discounted, not rejected.
func (e *Estimator) Ingest(r model.Reading) {
	if r.TrainID == "" {
		return
	}
	tb := e.trainFor(r.TrainID)
	tb.mu.Lock()
	tb.buffer = append(tb.buffer, r)
	tb.prune(e.window)
	sort.SliceStable(tb.buffer, func(i, j int) bool {
		return tb.buffer[i].Timestamp.Before(tb.buffer[j].Timestamp)
	})
	state := e.fuse(r.TrainID, tb.buffer)
	tb.mu.Unlock()

	e.store.SetState(state)
	if e.updates != nil {
		select {
		case e.updates <- state:
		default:
			log.Printf("estimator: update channel full, dropping event for %s", state.TrainID)
		}
	}
}

// Deactivate discards a retired train's reading buffer and stored state.
func (e *Estimator) Deactivate(trainID string) {
	e.mu.Lock()
	delete(e.trains, trainID)
	e.mu.Unlock()
	e.store.RemoveTrain(trainID)
}

func (e *Estimator) trainFor(id string) *trainBuffer {
	e.mu.RLock()
	tb, ok := e.trains[id]
	e.mu.RUnlock()
	if ok {
		return tb
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if tb, ok = e.trains[id]; ok {
		return tb
	}
	tb = &trainBuffer{}
	e.trains[id] = tb
	return tb
}

// prune drops readings older than the window, anchored to the newest
// timestamp in the buffer so replayed history fuses deterministically.
func (tb *trainBuffer) prune(window time.Duration) {
	var newest time.Time
	for _, r := range tb.buffer {
		if r.Timestamp.After(newest) {
			newest = r.Timestamp
		}
	}
	cutoff := newest.Add(-window)
	kept := tb.buffer[:0]
	for _, r := range tb.buffer {
		if !r.Timestamp.Before(cutoff) {
			kept = append(kept, r)
		}
	}
	tb.buffer = kept
}

// fuse replays the sorted window from the seed state. Recomputing from
// scratch keeps the result a pure function of the reading set, so two
// arrival orders of the same readings converge on the same state.
func (e *Estimator) fuse(trainID string, window []model.Reading) model.TrainState {
	posVar := e.cfg.InitialPosUncertKM
	velVar := e.cfg.InitialVelUncertKmh
	var lat, lon, speed, heading float64
	var hasFix bool
	var prevLat, prevLon float64
	var hasPrevPos bool
	var last time.Time

	for _, r := range window {
		noise := e.sourceNoise(r.Source)
		q := r.Quality
		if q < 0.05 {
			q = 0.05
		}
		noise /= q

		if fixLat, fixLon, ok := e.fixFor(r); ok {
			if !hasFix {
				lat, lon = fixLat, fixLon
				hasFix = true
			}
			w := posVar / (posVar + noise)
			lat += w * (fixLat - lat)
			lon += w * (fixLon - lon)
			posVar *= 1 - w
		}

		switch r.Source {
		case model.SourcePosition:
			w := velVar / (velVar + noise)
			speed += w * (r.SpeedKmh - speed)
			velVar *= 1 - w
			if r.SpeedKmh > 1 {
				switch {
				case r.HeadingDeg != 0:
					heading = r.HeadingDeg
				case hasPrevPos && (r.Lat != prevLat || r.Lon != prevLon):
					// Receivers that report no compass course still
					// give a track from consecutive fixes.
					heading = geo.BearingDeg(prevLat, prevLon, r.Lat, r.Lon)
				}
			}
			if r.Lat != 0 || r.Lon != 0 {
				prevLat, prevLon = r.Lat, r.Lon
				hasPrevPos = true
			}
		case model.SourceStation:
			if r.EventKind == model.EventArrival || r.EventKind == model.EventDeparture {
				speed = 0
				w := velVar / (velVar + noise)
				velVar *= 1 - w
			}
		}
		if r.Timestamp.After(last) {
			last = r.Timestamp
		}
	}

	return model.TrainState{
		TrainID:    trainID,
		Lat:        lat,
		Lon:        lon,
		SpeedKmh:   speed,
		HeadingDeg: heading,
		Confidence: e.confidence(posVar, velVar),
		UpdatedAt:  last,
	}
}

// fixFor extracts a position measurement from a reading, if it carries one.
// Occupancy readings only anchor position when the section is reported
// occupied and has a known reference position; station events anchor to
// the station's location.
func (e *Estimator) fixFor(r model.Reading) (float64, float64, bool) {
	switch r.Source {
	case model.SourcePosition:
		if r.Lat == 0 && r.Lon == 0 {
			return 0, 0, false
		}
		return r.Lat, r.Lon, true
	case model.SourceOccupancy:
		if !r.Occupied || e.network == nil {
			return 0, 0, false
		}
		sec, ok := e.network.Section(r.SectionID)
		if !ok {
			return 0, 0, false
		}
		return sec.Lat, sec.Lon, true
	case model.SourceStation:
		if e.network == nil {
			return 0, 0, false
		}
		st, err := e.network.Station(r.StationCode)
		if err != nil {
			return 0, 0, false
		}
		return st.Lat, st.Lon, true
	}
	return 0, 0, false
}

func (e *Estimator) sourceNoise(src model.ReadingSource) float64 {
	switch src {
	case model.SourcePosition:
		return e.cfg.PositionNoiseKM
	case model.SourceOccupancy:
		return e.cfg.OccupancyNoiseKM
	default:
		return e.cfg.StationNoiseKM
	}
}

// confidence averages the normalized position and velocity certainties,
// clamped to [0,1].
func (e *Estimator) confidence(posVar, velVar float64) float64 {
	pc := 1 - posVar/e.cfg.InitialPosUncertKM
	vc := 1 - velVar/e.cfg.InitialVelUncertKmh
	c := (pc + vc) / 2
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
