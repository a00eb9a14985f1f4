package engine

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/theoremus-urban-solutions/railopt/config"
	"github.com/theoremus-urban-solutions/railopt/detector"
	"github.com/theoremus-urban-solutions/railopt/estimator"
	"github.com/theoremus-urban-solutions/railopt/model"
	"github.com/theoremus-urban-solutions/railopt/optimizer"
	"github.com/theoremus-urban-solutions/railopt/reconciler"
	"github.com/theoremus-urban-solutions/railopt/telemetry"
)

// Engine owns the process-lifetime state and the component pipeline.
type Engine struct {
	cfg config.AppConfig
	net *model.Network

	store      *model.Store
	normalizer *telemetry.Normalizer
	estimator  *estimator.Estimator
	detector   *detector.Detector
	optimizer  *optimizer.Optimizer
	reconciler *reconciler.Reconciler

	stateCh    chan model.TrainState
	conflictCh chan model.Conflict
	broadcast  *Broadcaster

	mu            sync.Mutex
	lastOptimized time.Time
}

// New builds an engine around the given reference network. rng may be nil
// outside of tests.
func New(cfg config.AppConfig, net *model.Network, opt *optimizer.Optimizer) *Engine {
	store := model.NewStore()
	stateCh := make(chan model.TrainState, 256)
	conflictCh := make(chan model.Conflict, 64)
	if opt == nil {
		opt = optimizer.New(cfg.Optimizer, cfg.Detector, net, nil)
	}
	return &Engine{
		cfg:        cfg,
		net:        net,
		store:      store,
		normalizer: telemetry.NewNormalizer(cfg.Telemetry, nil),
		estimator:  estimator.New(cfg.Estimator, cfg.Telemetry.BufferWindow, store, net, stateCh),
		detector:   detector.New(cfg.Detector, store, net, conflictCh),
		optimizer:  opt,
		reconciler: reconciler.New(cfg.Optimizer, store, net),
		stateCh:    stateCh,
		conflictCh: conflictCh,
		broadcast:  NewBroadcaster(),
	}
}

// Store exposes the shared state registry (read paths for the HTTP surface).
func (e *Engine) Store() *model.Store { return e.store }

// Network exposes the reference data.
func (e *Engine) Network() *model.Network { return e.net }

// Broadcaster exposes the subscription fan-out.
func (e *Engine) Broadcaster() *Broadcaster { return e.broadcast }

// Run starts the background loops and blocks until ctx is done.
func (e *Engine) Run(ctx context.Context) {
	go e.broadcast.fanOut(ctx, e.stateCh, e.conflictCh)
	go e.detector.Run(ctx)
	go e.optimizeLoop(ctx)
	if e.cfg.Feed.VehiclePositionsURL != "" || e.cfg.Feed.TripUpdatesURL != "" {
		go e.feedLoop(ctx)
	}
	<-ctx.Done()
}

// IngestPosition normalizes and fuses one satellite report.
func (e *Engine) IngestPosition(raw telemetry.RawPosition) {
	e.estimator.Ingest(e.normalizer.Position(raw))
}

// IngestOccupancy normalizes and fuses one track-circuit report.
func (e *Engine) IngestOccupancy(raw telemetry.RawOccupancy) {
	e.estimator.Ingest(e.normalizer.Occupancy(raw))
}

// IngestStationEvent normalizes and fuses one station check-in report.
func (e *Engine) IngestStationEvent(raw telemetry.RawStationEvent) {
	e.estimator.Ingest(e.normalizer.StationEvent(raw))
}

// DetectConflicts runs one on-demand detection cycle against the current
// snapshot. Read-only; the periodic detector loop is unaffected.
func (e *Engine) DetectConflicts() []model.Conflict {
	return e.detector.Detect(time.Now())
}

// Optimize runs one full optimization pass and commits the result. Any
// delay the reconciler applied while the pass was running is reapplied to
// the fresh schedule, so live delay reports are never silently dropped by
// a concurrent optimization.
func (e *Engine) Optimize(ctx context.Context) optimizer.Result {
	trains := e.net.Trains()
	res := e.optimizer.Optimize(ctx, trains, time.Now())
	for id, sched := range res.Schedules {
		committed := sched
		if d := e.store.Delay(id); d > 0 {
			committed = sched.Clone()
			committed.ShiftFrom(0, d)
			committed.TotalDelay += d
		}
		e.store.SetSchedule(committed)
	}
	e.mu.Lock()
	e.lastOptimized = res.GeneratedAt
	e.mu.Unlock()
	log.Printf("engine: optimized %d schedules, avg delay %s, %d residual conflicts",
		len(res.Schedules), res.Metrics.AverageDelay.Round(time.Second), res.Metrics.ConflictCount)
	return res
}

// ReportDelay runs the reconciler for a live delay event. The train's
// current fused position decides which schedule entries still shift.
func (e *Engine) ReportDelay(trainID string, delay time.Duration, affected []string) (reconciler.Update, error) {
	position, _ := e.store.State(trainID)
	return e.reconciler.ApplyDelay(trainID, position, delay, affected)
}

// Scenario runs a time-boxed what-if analysis of a hypothetical delay
// against the current schedules. Fails closed on timeout.
func (e *Engine) Scenario(ctx context.Context, trainID string, delay time.Duration) (optimizer.ScenarioResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Optimizer.ScenarioTimeout)
	defer cancel()

	type outcome struct {
		res optimizer.ScenarioResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := e.optimizer.EvaluateScenario(ctx, e.store.SchedulesSnapshot(), trainID, delay)
		done <- outcome{res, err}
	}()
	select {
	case <-ctx.Done():
		return optimizer.ScenarioResult{}, optimizer.ErrScenarioTimeout
	case o := <-done:
		return o.res, o.err
	}
}

func (e *Engine) optimizeLoop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.Optimizer.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Optimize(ctx)
		}
	}
}

func (e *Engine) feedLoop(ctx context.Context) {
	interval := e.cfg.Feed.PollInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	adapter := telemetry.NewFeedAdapter(interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if positions, err := adapter.FetchPositions(e.cfg.Feed.VehiclePositionsURL); err != nil {
				log.Printf("engine: vehicle positions fetch failed: %v", err)
			} else {
				for _, p := range positions {
					e.IngestPosition(p)
				}
			}
			if events, err := adapter.FetchStationEvents(e.cfg.Feed.TripUpdatesURL); err != nil {
				log.Printf("engine: trip updates fetch failed: %v", err)
			} else {
				for _, ev := range events {
					e.IngestStationEvent(ev)
				}
			}
		}
	}
}
