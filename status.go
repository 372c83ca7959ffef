package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/coldbackup/internal/engine"
)

// newStatusCmd builds the "status" subcommand: a read-only summary of
// LocalIndex and RemoteIndex record counts, or with --verbose a full
// listing of RemoteIndex records.
func newStatusCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report local and remote index summary counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			ctx := shutdownContext(cmd.Context(), cc.Logger)

			eng, closer, err := buildEngine(ctx, cc.Cfg, cc.Logger)
			if err != nil {
				return err
			}
			defer closer()

			summary, err := eng.Status(ctx)
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}

			if !verbose {
				return printStatusSummary(cmd, summary)
			}

			records, err := eng.ListRecords(ctx)
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}

			return printStatusVerbose(cmd, summary, records)
		},
	}

	cmd.Flags().BoolVar(&verbose, "verbose", false, "also list every remote hash record")

	return cmd
}

func printStatusSummary(cmd *cobra.Command, summary *engine.StatusSummary) error {
	if flagJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "local paths:           %d\n", summary.LocalPaths)
	fmt.Fprintf(w, "remote hash records:   %d\n", summary.RemoteHashes)
	fmt.Fprintf(w, "remote live paths:     %d\n", summary.RemoteLivePaths)
	fmt.Fprintf(w, "remote empty records:  %d\n", summary.RemoteEmptyCount)

	return nil
}

func printStatusVerbose(cmd *cobra.Command, summary *engine.StatusSummary, records []*engine.RemoteHashRecord) error {
	if flagJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Summary *engine.StatusSummary      `json:"summary"`
			Records []*engine.RemoteHashRecord `json:"records"`
		}{summary, records})
	}

	if err := printStatusSummary(cmd, summary); err != nil {
		return err
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Hash < records[j].Hash })

	headers := []string{"hash", "live paths", "expiration"}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{r.Hash, strconv.Itoa(len(r.FileNames)), formatTime(r.Expiration)})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w)
	printTable(w, headers, rows)

	return nil
}
