package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.TargetDir = "/data"
	cfg.BucketName = "bucket"
	cfg.DynamoTable = "table"

	return cfg
}

func TestValidate_Valid(t *testing.T) {
	require.NoError(t, Validate(validConfig()))
}

func TestValidate_AccumulatesAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.TargetDir = ""
	cfg.LogLevel = "verbose"
	cfg.MinStorageDays = 0

	err := Validate(cfg)
	require.Error(t, err)
	assert.ErrorContains(t, err, "target_dir")
	assert.ErrorContains(t, err, "log_level")
	assert.ErrorContains(t, err, "min_storage_days")
}

func TestValidate_UnsupportedDBEngine(t *testing.T) {
	cfg := validConfig()
	cfg.DB.Engine = "postgres"

	err := Validate(cfg)
	require.Error(t, err)
	assert.ErrorContains(t, err, "db.engine")
}
