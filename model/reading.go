package model

import "time"

// ReadingSource identifies which telemetry channel produced a reading.
type ReadingSource string

const (
	SourcePosition  ReadingSource = "position"
	SourceOccupancy ReadingSource = "occupancy"
	SourceStation   ReadingSource = "station"
)

// StationEventKind is the reported event type of a station-event reading.
type StationEventKind string

const (
	EventArrival   StationEventKind = "arrival"
	EventDeparture StationEventKind = "departure"
	EventPassThru  StationEventKind = "pass-through"
)

// Reading is one normalized telemetry sample. Readings are ephemeral: they
// live in a short per-train sliding buffer and are discarded after fusion.
type Reading struct {
	ID        string
	Source    ReadingSource
	TrainID   string
	Timestamp time.Time
	Quality   float64 // [0,1]

	// Positional payload.
	Lat        float64
	Lon        float64
	SpeedKmh   float64
	HeadingDeg float64
	AccuracyM  float64

	// Occupancy payload.
	SectionID   string
	Occupied    bool
	SignalState string

	// Station-event payload.
	StationCode  string
	EventKind    StationEventKind
	Platform     int
	DelayMinutes int
	Passengers   int
	ReportedBy   string
}

// TrainState is the estimator's fused output for one train: a single
// best-estimate position/velocity with a scalar trust score.
type TrainState struct {
	TrainID    string    `json:"trainId"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	SpeedKmh   float64   `json:"speedKmh"`
	HeadingDeg float64   `json:"headingDeg"`
	Confidence float64   `json:"confidence"` // [0,1]
	UpdatedAt  time.Time `json:"updatedAt"`
}
