package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrowdale/sweeper/internal/cutoff"
	"github.com/harrowdale/sweeper/internal/report"
)

var identifyOutput string

var identifyCmd = &cobra.Command{
	Use:   "identify",
	Short: "Compute and verify per-entity deletion cutoffs",
	Long: `Compute a safe primary-key deletion cutoff for each entity class and
write a JSON cutoff report.

Three cutoffs are produced:
  reading    Metering rows older than the reading retention window
  contact    Deactivated accounts with no activity inside the window
  community  Closed or decommissioned communities, stale for the window

Each cutoff is re-verified by counting rows at or below it that still
fall inside the retention window; any violation marks the entry unsafe
and the report REQUIRES_REVIEW. A query failure on one entity defaults
that entity to a zero cutoff and does not abort the others.

Examples:
  sweeper identify --database tenancy
  sweeper identify --database tenancy --output /var/lib/sweeper/cutoffs.json`,
	RunE: runIdentify,
}

func init() {
	identifyCmd.Flags().StringVarP(&identifyOutput, "output", "o", "", "Report output path (default: cutoff_report_<timestamp>.json)")
	rootCmd.AddCommand(identifyCmd)
}

func runIdentify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, log, conn, err := setup(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	rep := cutoff.New(conn, cfg, log).GenerateReport(ctx)

	path := identifyOutput
	if path == "" {
		path = report.DefaultFilename(time.Now())
	}
	if err := rep.Save(path); err != nil {
		return err
	}

	fmt.Printf("Cutoff report written to %s\n", path)
	fmt.Printf("Status: %s\n", rep.SafetyStatus)
	for _, entity := range []string{report.EntityReading, report.EntityContact, report.EntityCommunity} {
		e := rep.Cutoffs[entity]
		fmt.Printf("  %-10s cutoff=%d  est_deletions=%d  safe=%v\n",
			entity, e.CutoffID, e.EstimatedDeletions, e.IsSafe)
	}
	if rep.RequiresReview() {
		fmt.Println("One or more cutoffs failed verification; review before deleting.")
	}
	return nil
}
