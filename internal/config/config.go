// Package config implements TOML configuration loading, environment
// overrides, and validation for the backup engine's flag set
// (sync-algorithm.md §6).
package config

// Config is the engine's fully resolved configuration: the object the
// engine consumes once CLI flags, environment overrides, the config
// file, and defaults have been layered (sync-algorithm.md §6: "the
// engine consumes a fully resolved configuration object" — everything
// upstream of that, CLI parsing and env/file loading, lives here).
type Config struct {
	TargetDir          string   `toml:"target_dir"`
	BucketName         string   `toml:"bucket_name"`
	DynamoTable        string   `toml:"dynamo_table"`
	Filters            []string `toml:"filters"`
	DryRun             bool     `toml:"dry_run"`
	MinStorageDays     int      `toml:"min_storage_days"`
	LogLevel           string   `toml:"log_level"`
	LogFormat          string   `toml:"log_format"`
	RemoteWorkers      int      `toml:"remote_workers"`
	HashWorkers        int      `toml:"hash_workers"`

	DB DBConfig `toml:"db"`
}

// DBConfig resolves the LocalIndex connection. Engine selects the driver
// ("sqlite" is the only one this module implements); the remaining fields
// are carried for parity with sync-algorithm.md §6's flag set and future
// non-SQLite drivers.
type DBConfig struct {
	Engine   string `toml:"engine"`
	Path     string `toml:"path"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Host     string `toml:"host"`
	Name     string `toml:"name"`
}
