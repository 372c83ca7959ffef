package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/tonimelisma/coldbackup/internal/blobstore"
	"github.com/tonimelisma/coldbackup/internal/config"
	"github.com/tonimelisma/coldbackup/internal/engine"
	"github.com/tonimelisma/coldbackup/internal/localindex"
	"github.com/tonimelisma/coldbackup/internal/remoteindex"
)

// buildEngine constructs an Engine wired to live SQLite/S3/DynamoDB drivers
// from the resolved configuration. The returned closer must be called once
// the engine is no longer needed to release the LocalIndex connection.
func buildEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger) (eng *engine.Engine, closer func() error, err error) {
	local, err := localindex.Open(cfg.DB.Path, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("opening local index: %w", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		local.Close()
		return nil, nil, fmt.Errorf("loading AWS config: %w", err)
	}

	blobs := blobstore.NewS3Store(s3.NewFromConfig(awsCfg), cfg.BucketName, logger)
	remote := remoteindex.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.DynamoTable, logger)

	eng, err = engine.New(engine.Config{
		Local:              local,
		Remote:             remote,
		Blobs:              blobs,
		TargetDir:          cfg.TargetDir,
		Filters:            cfg.Filters,
		MinStorageDuration: time.Duration(cfg.MinStorageDays) * 24 * time.Hour,
		RemoteWorkers:      cfg.RemoteWorkers,
		HashWorkers:        cfg.HashWorkers,
		DryRun:             cfg.DryRun,
		Logger:             logger,
	})
	if err != nil {
		local.Close()
		return nil, nil, fmt.Errorf("constructing engine: %w", err)
	}

	return eng, local.Close, nil
}
