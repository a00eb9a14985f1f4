package config

import "time"

// ServerConfig contains the HTTP surface configuration.
type ServerConfig struct {
	Port           int      `yaml:"port" validate:"gt=0"`
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

// TelemetryConfig tunes reading normalization and buffering.
type TelemetryConfig struct {
	BufferWindow      time.Duration `yaml:"bufferWindow" validate:"gt=0"`
	MaxPlausibleSpeed float64       `yaml:"maxPlausibleSpeedKmh" validate:"gt=0"`
	StaleAfter        time.Duration `yaml:"staleAfter" validate:"gt=0"`
	MaxPlausibleDelay time.Duration `yaml:"maxPlausibleDelay" validate:"gt=0"`
}

// EstimatorConfig tunes the per-source fusion trust model.
type EstimatorConfig struct {
	PositionNoiseKM     float64 `yaml:"positionNoiseKm" validate:"gt=0"`
	OccupancyNoiseKM    float64 `yaml:"occupancyNoiseKm" validate:"gt=0"`
	StationNoiseKM      float64 `yaml:"stationNoiseKm" validate:"gt=0"`
	InitialPosUncertKM  float64 `yaml:"initialPosUncertaintyKm" validate:"gt=0"`
	InitialVelUncertKmh float64 `yaml:"initialVelUncertaintyKmh" validate:"gt=0"`
}

// DetectorConfig tunes the conflict scan thresholds.
type DetectorConfig struct {
	Interval          time.Duration `yaml:"interval" validate:"gt=0"`
	ConvergenceMargin time.Duration `yaml:"convergenceMargin" validate:"gt=0"`
	SafetyDistanceKM  float64       `yaml:"safetyDistanceKm" validate:"gt=0"`
	PlatformCapacity  int           `yaml:"platformCapacity" validate:"gte=1"`
	StationBucket     time.Duration `yaml:"stationBucket" validate:"gt=0"`
	StationRadiusKM   float64       `yaml:"stationRadiusKm" validate:"gt=0"`
	StationarySpeed   float64       `yaml:"stationarySpeedKmh" validate:"gte=0"`
}

// OptimizerConfig tunes the heuristic search and repair pipeline.
type OptimizerConfig struct {
	Horizon         time.Duration `yaml:"horizon" validate:"gt=0"`
	Interval        time.Duration `yaml:"interval" validate:"gt=0"`
	PopulationSize  int           `yaml:"populationSize" validate:"gte=2"`
	Generations     int           `yaml:"generations" validate:"gte=1"`
	TournamentSize  int           `yaml:"tournamentSize" validate:"gte=2"`
	CrossoverRate   float64       `yaml:"crossoverRate" validate:"gte=0,lte=1"`
	MutationRate    float64       `yaml:"mutationRate" validate:"gte=0,lte=1"`
	HaltProbability float64       `yaml:"haltProbability" validate:"gte=0,lte=1"`
	ConflictPenalty float64       `yaml:"conflictPenalty" validate:"gt=0"`
	RepairAttempts  int           `yaml:"repairAttempts" validate:"gte=1"`
	OnTimeThreshold time.Duration `yaml:"onTimeThreshold" validate:"gt=0"`
	HeadwayBuffer   time.Duration `yaml:"headwayBuffer" validate:"gte=0"`
	ScenarioTimeout time.Duration `yaml:"scenarioTimeout" validate:"gt=0"`
}

// FeedConfig points the GTFS-RT ingest adapter at live feeds. Optional.
type FeedConfig struct {
	VehiclePositionsURL string        `yaml:"vehiclePositionsURL" validate:"omitempty,url"`
	TripUpdatesURL      string        `yaml:"tripUpdatesURL" validate:"omitempty,url"`
	PollInterval        time.Duration `yaml:"pollInterval" validate:"gte=0"`
}

// AppConfig is the root configuration structure.
type AppConfig struct {
	Server      ServerConfig    `yaml:"server" validate:"required"`
	NetworkFile string          `yaml:"networkFile"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Estimator   EstimatorConfig `yaml:"estimator"`
	Detector    DetectorConfig  `yaml:"detector"`
	Optimizer   OptimizerConfig `yaml:"optimizer"`
	Feed        FeedConfig      `yaml:"feed"`
}
