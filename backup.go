package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/coldbackup/internal/config"
	"github.com/tonimelisma/coldbackup/internal/watch"
)

// newBackupCmd builds the "backup" subcommand: one reconciliation cycle
// between TargetDir and the remote index/blob store, or a continuous
// watch loop with --watch.
func newBackupCmd() *cobra.Command {
	var watchMode bool

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Reconcile the target directory against the remote store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			if err := config.Validate(cc.Cfg); err != nil {
				return err
			}

			cleanup, err := writePIDFile(pidFilePath(cc.Cfg))
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := shutdownContext(cmd.Context(), cc.Logger)

			eng, closer, err := buildEngine(ctx, cc.Cfg, cc.Logger)
			if err != nil {
				return err
			}
			defer closer()

			if watchMode {
				w := watch.New(cc.Cfg.TargetDir, cc.Logger)

				return w.Run(ctx, func(triggerCtx context.Context) error {
					report, err := eng.Backup(triggerCtx)
					if err != nil {
						return err
					}

					printReport(cmd.OutOrStdout(), report, flagJSON)

					return nil
				})
			}

			report, err := eng.Backup(ctx)
			if err != nil {
				return fmt.Errorf("backup: %w", err)
			}

			printReport(cmd.OutOrStdout(), report, flagJSON)

			if report.Failed > 0 {
				return fmt.Errorf("backup completed with %d failed path(s)", report.Failed)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&watchMode, "watch", false, "run continuously, triggering a backup cycle on filesystem changes")

	return cmd
}

// pidFilePath derives the single-instance lock path from the LocalIndex
// database path so concurrent runs against the same database collide.
func pidFilePath(cfg *config.Config) string {
	dir := filepath.Dir(cfg.DB.Path)
	return filepath.Join(dir, "coldbackup.pid")
}
