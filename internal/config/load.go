package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// CLIOverrides holds values bound to cobra flags. Pointer/zero-value
// fields distinguish "flag not set" from "flag set to the zero value" so
// Resolve can apply the CLI > env > file > default precedence chain
// correctly (sync-algorithm.md §6's flag set).
type CLIOverrides struct {
	ConfigPath     string
	TargetDir      string
	BucketName     string
	DynamoTable    string
	Filters        []string // nil/empty means "--filter" was never passed
	MinStorageDays *int
	DryRun         *bool
	LogLevel       string
	DBPath         string
}

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config.
func Load(path string, logger *slog.Logger) (*Config, error) {
	logger.Debug("config: loading file", "path", path)

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns a
// Config populated with defaults. Supports the zero-config first run. The
// file layer is not validated on its own: Resolve validates once env and
// CLI overrides have been applied, so a file may leave fields to them.
func LoadOrDefault(path string, logger *slog.Logger) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logger.Debug("config: file not found, using defaults", "path", path)
		return DefaultConfig(), nil
	}

	logger.Debug("config: loading file", "path", path)

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return cfg, nil
}

// ResolveConfigPath determines the config file path using CLI > env >
// platform default precedence.
func ResolveConfigPath(env EnvOverrides, cli CLIOverrides, logger *slog.Logger) string {
	path := DefaultConfigPath()
	source := "default"

	if env.ConfigPath != "" {
		path = env.ConfigPath
		source = "env"
	}

	if cli.ConfigPath != "" {
		path = cli.ConfigPath
		source = "cli"
	}

	logger.Debug("config: path resolved", "path", path, "source", source)

	return path
}

// Resolve applies the four-layer override chain (defaults -> config file
// -> environment -> CLI flags) and returns the final Config the engine
// consumes (sync-algorithm.md §6).
func Resolve(env EnvOverrides, cli CLIOverrides, logger *slog.Logger) (*Config, error) {
	path := ResolveConfigPath(env, cli, logger)

	cfg, err := LoadOrDefault(path, logger)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg, env, logger)
	applyCLIOverrides(cfg, cli, logger)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: resolved validation failed: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config, env EnvOverrides, logger *slog.Logger) {
	if env.TargetDir != "" {
		cfg.TargetDir = env.TargetDir
	}

	if env.BucketName != "" {
		cfg.BucketName = env.BucketName
	}

	if env.DynamoTable != "" {
		cfg.DynamoTable = env.DynamoTable
	}

	if env.Filter != "" {
		delim := env.FilterDelimiter
		if delim == "" {
			delim = defaultFilterDelimiter
		}

		cfg.Filters = strings.Split(env.Filter, delim)
	}

	if env.MinStorageDuration != "" {
		v, err := strconv.Atoi(env.MinStorageDuration)
		if err != nil {
			logger.Warn("config: ignoring malformed env min_storage_duration override", "value", env.MinStorageDuration)
		} else {
			cfg.MinStorageDays = v
		}
	}

	if env.DryRun != "" {
		v, err := strconv.ParseBool(env.DryRun)
		if err != nil {
			logger.Warn("config: ignoring malformed env dry_run override", "value", env.DryRun)
		} else {
			cfg.DryRun = v
		}
	}

	if env.LogLevel != "" {
		cfg.LogLevel = env.LogLevel
	}

	if env.DBPath != "" {
		cfg.DB.Path = env.DBPath
	}
}

func applyCLIOverrides(cfg *Config, cli CLIOverrides, logger *slog.Logger) {
	if cli.TargetDir != "" {
		cfg.TargetDir = cli.TargetDir
	}

	if cli.BucketName != "" {
		cfg.BucketName = cli.BucketName
	}

	if cli.DynamoTable != "" {
		cfg.DynamoTable = cli.DynamoTable
	}

	if len(cli.Filters) > 0 {
		cfg.Filters = cli.Filters
	}

	if cli.MinStorageDays != nil {
		cfg.MinStorageDays = *cli.MinStorageDays
	}

	if cli.DryRun != nil {
		cfg.DryRun = *cli.DryRun
	}

	if cli.LogLevel != "" {
		cfg.LogLevel = cli.LogLevel
	}

	if cli.DBPath != "" {
		cfg.DB.Path = cli.DBPath
	}

	logger.Debug("config: resolved", "target_dir", cfg.TargetDir, "dry_run", cfg.DryRun)
}
