package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/coldbackup/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath         string
	flagTargetDir          string
	flagBucketName         string
	flagDynamoTable        string
	flagFilters            []string
	flagMinStorageDuration int
	flagDryRun             bool
	flagLogLevel           string
	flagDBPath             string
	flagJSON               bool
)

// CLIContext bundles resolved config and logger. Created once in
// PersistentPreRunE; eliminates redundant config/logger construction in
// RunE handlers.
type CLIContext struct {
	Cfg    *config.Config
	Logger *slog.Logger
}

type cliContextKey struct{}

// cliContextFrom extracts the CLIContext from the command's context.
func cliContextFrom(ctx context.Context) *CLIContext {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok {
		return nil
	}

	return cc
}

// mustCLIContext extracts the CLIContext or panics with an actionable
// message. Panics here are always programmer errors — PersistentPreRunE
// guarantees the context is populated before any RunE executes.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc := cliContextFrom(ctx)
	if cc == nil {
		panic("BUG: CLIContext not found in context — PersistentPreRunE must run before RunE")
	}

	return cc
}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "coldbackup",
		Short:   "Content-addressed cold-storage backup engine",
		Long:    "Reconciles a local directory tree against a content-addressed remote index and cold object store.",
		Version: version,
		// Silence Cobra's default error/usage printing — we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadConfig(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flagTargetDir, "target-dir", "", "directory to reconcile")
	cmd.PersistentFlags().StringVar(&flagBucketName, "bucket-name", "", "BlobStore bucket name")
	cmd.PersistentFlags().StringVar(&flagDynamoTable, "dynamo-table", "", "RemoteIndex table name")
	cmd.PersistentFlags().StringArrayVar(&flagFilters, "filter", nil, "regex of paths to exclude (repeatable)")
	cmd.PersistentFlags().IntVar(&flagMinStorageDuration, "min-storage-duration", 0, "minimum days a blob is kept before it may be reaped")
	cmd.PersistentFlags().BoolVar(&flagDryRun, "dry-run", false, "preview actions without mutating any store")
	cmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&flagDBPath, "db-path", "", "LocalIndex SQLite database path")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")

	cmd.AddCommand(newBackupCmd())
	cmd.AddCommand(newRestoreCmd())
	cmd.AddCommand(newCleanCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}

// loadConfig resolves the effective configuration from the four-layer
// override chain and stores the result in the command's context.
func loadConfig(cmd *cobra.Command) error {
	logger := buildLogger("")

	cli := config.CLIOverrides{
		ConfigPath:  flagConfigPath,
		TargetDir:   flagTargetDir,
		BucketName:  flagBucketName,
		DynamoTable: flagDynamoTable,
		Filters:     flagFilters,
		LogLevel:    flagLogLevel,
		DBPath:      flagDBPath,
	}

	if cmd.Flags().Changed("dry-run") {
		cli.DryRun = &flagDryRun
	}

	if cmd.Flags().Changed("min-storage-duration") {
		cli.MinStorageDays = &flagMinStorageDuration
	}

	env := config.ReadEnvOverrides()

	cfg, err := config.Resolve(env, cli, logger)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	finalLogger := buildLogger(cfg.LogLevel)
	cc := &CLIContext{Cfg: cfg, Logger: finalLogger}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cc))

	return nil
}

// buildLogger creates an slog.Logger at the given level string (empty
// defaults to "warn", matching a pre-config bootstrap logger).
func buildLogger(levelStr string) *slog.Logger {
	level := slog.LevelWarn

	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
