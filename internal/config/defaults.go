package config

// Default values for configuration options: the "layer 0" of the
// four-layer override chain, chosen to work without any config file.
const (
	defaultMinStorageDays = 90
	defaultLogLevel       = "info"
	defaultLogFormat      = "auto"
	defaultRemoteWorkers  = 8
	defaultDBEngine       = "sqlite"
)

// DefaultConfig returns a Config populated with all default values. Used
// both as the starting point for TOML decoding (so unset fields retain
// defaults) and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		MinStorageDays: defaultMinStorageDays,
		LogLevel:       defaultLogLevel,
		LogFormat:      defaultLogFormat,
		RemoteWorkers:  defaultRemoteWorkers,
		DB: DBConfig{
			Engine: defaultDBEngine,
			Path:   DefaultDBPath(),
		},
	}
}
