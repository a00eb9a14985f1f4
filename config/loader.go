package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Default returns the reference engine tuning. Load starts from these
// values so a config file only has to name what it changes.
func Default() AppConfig {
	return AppConfig{
		Server: ServerConfig{Port: 16282},
		Telemetry: TelemetryConfig{
			BufferWindow:      5 * time.Minute,
			MaxPlausibleSpeed: 200,
			StaleAfter:        30 * time.Second,
			MaxPlausibleDelay: 8 * time.Hour,
		},
		Estimator: EstimatorConfig{
			PositionNoiseKM:     3,
			OccupancyNoiseKM:    50,
			StationNoiseKM:      100,
			InitialPosUncertKM:  100,
			InitialVelUncertKmh: 50,
		},
		Detector: DetectorConfig{
			Interval:          5 * time.Second,
			ConvergenceMargin: 5 * time.Minute,
			SafetyDistanceKM:  2,
			PlatformCapacity:  2,
			StationBucket:     10 * time.Minute,
			StationRadiusKM:   1,
			StationarySpeed:   5,
		},
		Optimizer: OptimizerConfig{
			Horizon:         4 * time.Hour,
			Interval:        15 * time.Minute,
			PopulationSize:  40,
			Generations:     100,
			TournamentSize:  3,
			CrossoverRate:   0.8,
			MutationRate:    0.15,
			HaltProbability: 0.3,
			ConflictPenalty: 10000,
			RepairAttempts:  25,
			OnTimeThreshold: 5 * time.Minute,
			HeadwayBuffer:   2 * time.Minute,
			ScenarioTimeout: 30 * time.Second,
		},
	}
}

// Load reads config.yml from the first path that exists, overlays it on
// Default, and validates the result. A missing file yields the defaults.
func Load(paths ...string) (AppConfig, error) {
	cfg := Default()
	if len(paths) == 0 {
		paths = []string{"config.yml", "./testdata/config.yml"}
	}
	var data []byte
	var err error
	for _, p := range paths {
		data, err = os.ReadFile(p)
		if err == nil {
			break
		}
	}
	if data != nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
