package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/tonimelisma/coldbackup/internal/engine"
)

// jsonReport is the --json wire shape for a RunReport: errors are
// flattened to strings since PathError.Err may not be JSON-serializable.
type jsonReport struct {
	CycleID          string   `json:"cycle_id"`
	Kind             string   `json:"kind"`
	DryRun           bool     `json:"dry_run"`
	Duration         string   `json:"duration"`
	Succeeded        int      `json:"succeeded"`
	Failed           int      `json:"failed"`
	Reaped           int      `json:"reaped"`
	BytesTransferred int64    `json:"bytes_transferred"`
	Errors           []string `json:"errors,omitempty"`
}

// printReport writes a RunReport in text or JSON form depending on asJSON.
func printReport(w io.Writer, report *engine.RunReport, asJSON bool) {
	if asJSON {
		printReportJSON(w, report)
		return
	}

	printReportText(w, report)
}

func printReportText(w io.Writer, report *engine.RunReport) {
	fmt.Fprintf(w, "%s cycle %s: %d succeeded, %d failed, %d reaped, %s transferred (%s)\n",
		report.Kind, report.CycleID, report.Succeeded, report.Failed, report.Reaped,
		formatSize(report.BytesTransferred), report.Duration)

	if report.DryRun {
		fmt.Fprintln(w, "(dry run: no store was mutated)")
	}

	for _, e := range report.Errors {
		fmt.Fprintf(w, "  %s [%s]: %v\n", e.Path, e.Tier, e.Err)
	}
}

func printReportJSON(w io.Writer, report *engine.RunReport) {
	jr := jsonReport{
		CycleID:          report.CycleID,
		Kind:             string(report.Kind),
		DryRun:           report.DryRun,
		Duration:         report.Duration.String(),
		Succeeded:        report.Succeeded,
		Failed:           report.Failed,
		Reaped:           report.Reaped,
		BytesTransferred: report.BytesTransferred,
	}

	for _, e := range report.Errors {
		jr.Errors = append(jr.Errors, fmt.Sprintf("%s [%s]: %v", e.Path, e.Tier, e.Err))
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(jr)
}
