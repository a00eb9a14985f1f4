package telemetry

import (
	"time"

	"github.com/google/uuid"

	"github.com/theoremus-urban-solutions/railopt/config"
	"github.com/theoremus-urban-solutions/railopt/model"
)

// RawPosition is a satellite position report as received off the wire.
type RawPosition struct {
	TrainID    string    `json:"trainId"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	SpeedKmh   float64   `json:"speedKmh"`
	HeadingDeg float64   `json:"headingDeg"`
	AccuracyM  float64   `json:"accuracyM"`
	Timestamp  time.Time `json:"timestamp"`
}

// RawOccupancy is a track-circuit occupancy report.
type RawOccupancy struct {
	SectionID   string    `json:"sectionId"`
	Occupied    bool      `json:"occupied"`
	TrainID     string    `json:"detectedTrainId"`
	SignalState string    `json:"signalState"` // "proceed", "caution", "danger", or "" when unknown
	Timestamp   time.Time `json:"timestamp"`
}

// RawStationEvent is a station check-in report.
type RawStationEvent struct {
	StationCode  string                 `json:"stationCode"`
	TrainID      string                 `json:"trainId"`
	EventKind    model.StationEventKind `json:"eventKind"`
	Platform     int                    `json:"platform"`
	DelayMinutes int                    `json:"delayMinutes"`
	Passengers   int                    `json:"passengers"`
	ReportedBy   string                 `json:"reportedBy"`
	Timestamp    time.Time              `json:"timestamp"`
}

// Normalizer converts raw reports into scored readings. It never blocks
// and never fails; bad input produces a low-quality reading instead of
// an error.
type Normalizer struct {
	cfg config.TelemetryConfig
	now func() time.Time
}

// NewNormalizer builds a normalizer with the given tuning. nowFn is
// injectable for tests; nil means time.Now.
func NewNormalizer(cfg config.TelemetryConfig, nowFn func() time.Time) *Normalizer {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Normalizer{cfg: cfg, now: nowFn}
}

// Position normalizes a satellite position report.
//
// Quality starts at 1.0 and is degraded for a wide accuracy radius
// (>10m x0.8, >50m x0.6), implausible speed (x0.5), and stale readings
// (x0.7), with a floor of 0.1.
func (n *Normalizer) Position(raw RawPosition) model.Reading {
	now := n.now()
	ts := raw.Timestamp
	if ts.IsZero() {
		ts = now
	}

	q := 1.0
	if raw.AccuracyM > 50 {
		q *= 0.6
	} else if raw.AccuracyM > 10 {
		q *= 0.8
	}
	if raw.SpeedKmh > n.cfg.MaxPlausibleSpeed || raw.SpeedKmh < 0 {
		q *= 0.5
	}
	if now.Sub(ts) > n.cfg.StaleAfter {
		q *= 0.7
	}
	if raw.TrainID == "" || raw.Lat < -90 || raw.Lat > 90 || raw.Lon < -180 || raw.Lon > 180 {
		q *= 0.5
	}
	if q < 0.1 {
		q = 0.1
	}

	return model.Reading{
		ID:         uuid.NewString(),
		Source:     model.SourcePosition,
		TrainID:    raw.TrainID,
		Timestamp:  ts,
		Quality:    q,
		Lat:        raw.Lat,
		Lon:        raw.Lon,
		SpeedKmh:   raw.SpeedKmh,
		HeadingDeg: raw.HeadingDeg,
		AccuracyM:  raw.AccuracyM,
	}
}

// Occupancy normalizes a track-circuit report.
//
// Quality drops to 0.3 for an unknown signal state and to 0.5 when the
// occupancy flag contradicts the signal (occupied track showing proceed).
func (n *Normalizer) Occupancy(raw RawOccupancy) model.Reading {
	ts := raw.Timestamp
	if ts.IsZero() {
		ts = n.now()
	}

	q := 1.0
	switch raw.SignalState {
	case "proceed", "caution", "danger":
		if raw.Occupied && raw.SignalState == "proceed" {
			q = 0.5
		}
	default:
		q = 0.3
	}
	if raw.SectionID == "" {
		q = minFloat(q, 0.3)
	}

	return model.Reading{
		ID:          uuid.NewString(),
		Source:      model.SourceOccupancy,
		TrainID:     raw.TrainID,
		Timestamp:   ts,
		Quality:     q,
		SectionID:   raw.SectionID,
		Occupied:    raw.Occupied,
		SignalState: raw.SignalState,
	}
}

// StationEvent normalizes a station check-in report.
//
// Quality drops to 0.5 for a missing event kind or train identity, 0.7
// for an implausible delay, and 0.8 when no reporting official is
// attached.
func (n *Normalizer) StationEvent(raw RawStationEvent) model.Reading {
	ts := raw.Timestamp
	if ts.IsZero() {
		ts = n.now()
	}

	q := 1.0
	if raw.EventKind == "" || raw.TrainID == "" {
		q = 0.5
	} else if time.Duration(raw.DelayMinutes)*time.Minute > n.cfg.MaxPlausibleDelay {
		q = 0.7
	} else if raw.ReportedBy == "" {
		q = 0.8
	}

	return model.Reading{
		ID:           uuid.NewString(),
		Source:       model.SourceStation,
		TrainID:      raw.TrainID,
		Timestamp:    ts,
		Quality:      q,
		StationCode:  raw.StationCode,
		EventKind:    raw.EventKind,
		Platform:     raw.Platform,
		DelayMinutes: raw.DelayMinutes,
		Passengers:   raw.Passengers,
		ReportedBy:   raw.ReportedBy,
	}
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
