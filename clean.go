package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newCleanCmd builds the "clean" subcommand: a standalone reap pass over
// RemoteIndex records whose retention window has elapsed, independent of
// a backup cycle.
func newCleanCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Reap expired, empty remote index records",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

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

			report, err := eng.Clean(ctx, force)
			if err != nil {
				return fmt.Errorf("clean: %w", err)
			}

			printReport(cmd.OutOrStdout(), report, flagJSON)

			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "reap empty records regardless of retention window (bypasses early-deletion protection)")

	return cmd
}
