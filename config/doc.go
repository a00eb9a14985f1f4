// Package config handles engine configuration loading and validation.
//
// Configuration is loaded from config.yml and validated using struct tags.
// Every operational constant of the engine (detection thresholds, fusion
// noise figures, optimizer search parameters, timeouts) is a tunable here
// rather than a hard-coded law.
package config
