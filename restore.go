package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newRestoreCmd builds the "restore" subcommand: reconstructs the live
// tree from the remote index/blob store into a destination directory.
func newRestoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Reconstruct the live tree into --target-dir",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			if cc.Cfg.TargetDir == "" {
				return fmt.Errorf("--target-dir is required")
			}

			ctx := shutdownContext(cmd.Context(), cc.Logger)

			eng, closer, err := buildEngine(ctx, cc.Cfg, cc.Logger)
			if err != nil {
				return err
			}
			defer closer()

			report, err := eng.Restore(ctx, cc.Cfg.TargetDir)
			if err != nil {
				return fmt.Errorf("restore: %w", err)
			}

			printReport(cmd.OutOrStdout(), report, flagJSON)

			if report.Failed > 0 {
				return fmt.Errorf("restore completed with %d failed path(s)", report.Failed)
			}

			return nil
		},
	}

	return cmd
}
