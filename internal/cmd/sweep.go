package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harrowdale/sweeper/internal/cutoff"
	"github.com/harrowdale/sweeper/internal/deleter"
	"github.com/harrowdale/sweeper/internal/report"
	"github.com/harrowdale/sweeper/internal/schedule"
)

var (
	sweepSchedule string
	sweepDryRun   bool
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run a full identify-then-delete cycle, optionally on a schedule",
	Long: `Run the two phases back to back: compute fresh cutoffs, then delete
against them. A cycle whose report comes out REQUIRES_REVIEW stops after
the identify phase; sweep never forces past a failed safety check.

With --schedule, the cycle repeats on a standard five-field cron
expression until the process receives SIGINT or SIGTERM. A cycle that
outlasts its interval suppresses the overlapping fire.

Examples:
  sweeper sweep --database tenancy
  sweeper sweep --database tenancy --schedule "0 2 * * 0"
  sweeper sweep --database tenancy --dry-run`,
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().StringVar(&sweepSchedule, "schedule", "", "Cron expression; empty runs one cycle and exits")
	sweepCmd.Flags().BoolVarP(&sweepDryRun, "dry-run", "n", false, "Preview deletions without executing them")
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, log, conn, err := setup(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	cycle := func(ctx context.Context) error {
		rep := cutoff.New(conn, cfg, log).GenerateReport(ctx)
		if err := rep.Save(report.DefaultFilename(rep.GeneratedAt)); err != nil {
			return err
		}
		if rep.RequiresReview() {
			log.WithField("status", rep.SafetyStatus).
				Warn("report requires review; skipping delete phase")
			return nil
		}

		release, err := deleter.AcquireRunLock(cfg.Deletion.LockFile)
		if err != nil {
			return err
		}
		defer release()

		d := deleter.New(conn, cfg, log, deleter.Options{DryRun: sweepDryRun})
		return d.Run(ctx, rep)
	}

	if sweepSchedule == "" {
		return cycle(ctx)
	}

	runner, err := schedule.New(sweepSchedule, log, cycle)
	if err != nil {
		return err
	}
	runner.Run(ctx)
	return nil
}
