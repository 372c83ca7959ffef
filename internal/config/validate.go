package config

import (
	"errors"
	"fmt"
)

// Validation range constants.
const (
	minStorageDays   = 1
	minRemoteWorkers = 1
	maxRemoteWorkers = 64
)

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"auto": true,
	"text": true,
	"json": true,
}

var validDBEngines = map[string]bool{
	"sqlite": true,
}

// Validate checks all configuration values and returns every error found,
// not just the first, so an operator sees a complete report in one pass.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.TargetDir == "" {
		errs = append(errs, errors.New("target_dir: must not be empty"))
	}

	if cfg.BucketName == "" {
		errs = append(errs, errors.New("bucket_name: must not be empty"))
	}

	if cfg.DynamoTable == "" {
		errs = append(errs, errors.New("dynamo_table: must not be empty"))
	}

	if cfg.MinStorageDays < minStorageDays {
		errs = append(errs, fmt.Errorf("min_storage_days: must be >= %d, got %d", minStorageDays, cfg.MinStorageDays))
	}

	if cfg.RemoteWorkers != 0 && (cfg.RemoteWorkers < minRemoteWorkers || cfg.RemoteWorkers > maxRemoteWorkers) {
		errs = append(errs, fmt.Errorf("remote_workers: must be between %d and %d, got %d",
			minRemoteWorkers, maxRemoteWorkers, cfg.RemoteWorkers))
	}

	if !validLogLevels[cfg.LogLevel] {
		errs = append(errs, fmt.Errorf("log_level: must be one of debug, info, warn, error; got %q", cfg.LogLevel))
	}

	if !validLogFormats[cfg.LogFormat] {
		errs = append(errs, fmt.Errorf("log_format: must be one of auto, text, json; got %q", cfg.LogFormat))
	}

	if !validDBEngines[cfg.DB.Engine] {
		errs = append(errs, fmt.Errorf("db.engine: unsupported engine %q", cfg.DB.Engine))
	}

	return errors.Join(errs...)
}
