package cmd

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrowdale/sweeper/internal/deleter"
	"github.com/harrowdale/sweeper/internal/report"
)

var (
	deleteReportPath string
	deleteTable      string
	deleteBatchSize  int
	deleteDelay      string
	deleteDryRun     bool
	deleteForce      bool
)

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Execute the deletions certified by a cutoff report",
	Long: `Delete eligible rows in dependency order, in audited batches.

Requires a cutoff report produced by "identify". Tables are processed
children-before-parents so no foreign-key reference is ever orphaned.
Every batch runs in its own transaction and appends one row to the
deletion_log audit table; an interrupted run resumes where it stopped.

A report marked REQUIRES_REVIEW is refused unless --force is passed.
SIGINT and SIGTERM stop the run cleanly between batches; the in-flight
batch always commits.

Examples:
  sweeper delete --database tenancy --report cutoffs.json --dry-run
  sweeper delete --database tenancy --report cutoffs.json
  sweeper delete --database tenancy --report cutoffs.json --table reading
  sweeper delete --database tenancy --report cutoffs.json --batch-size 200 --delay 500ms`,
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().StringVarP(&deleteReportPath, "report", "r", "", "Path to the cutoff report (required)")
	deleteCmd.Flags().StringVarP(&deleteTable, "table", "t", "", "Process only this table")
	deleteCmd.Flags().IntVar(&deleteBatchSize, "batch-size", 0, "Override the per-table batch sizes")
	deleteCmd.Flags().StringVar(&deleteDelay, "delay", "", "Inter-batch delay (e.g., 500ms)")
	deleteCmd.Flags().BoolVarP(&deleteDryRun, "dry-run", "n", false, "Preview without deleting or writing audit rows")
	deleteCmd.Flags().BoolVar(&deleteForce, "force", false, "Proceed despite a REQUIRES_REVIEW report")
	_ = deleteCmd.MarkFlagRequired("report")
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, log, conn, err := setup(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if deleteDelay != "" {
		if _, err := time.ParseDuration(deleteDelay); err != nil {
			return fmt.Errorf("invalid --delay %q: %w", deleteDelay, err)
		}
		cfg.Deletion.DelayStr = deleteDelay
	}

	rep, err := report.Load(deleteReportPath)
	if err != nil {
		return err
	}
	log.WithFields(map[string]interface{}{
		"report": deleteReportPath,
		"run_id": rep.RunID,
		"status": rep.SafetyStatus,
	}).Info("loaded cutoff report")

	if !deleteDryRun {
		release, err := deleter.AcquireRunLock(cfg.Deletion.LockFile)
		if err != nil {
			return err
		}
		defer release()
	}

	d := deleter.New(conn, cfg, log, deleter.Options{
		DryRun:    deleteDryRun,
		BatchSize: deleteBatchSize,
		Force:     deleteForce,
	})

	if deleteTable != "" {
		target, err := deleter.ParseTarget(deleteTable)
		if err != nil {
			return err
		}
		res, err := d.RunTable(ctx, rep, target)
		if err != nil {
			return err
		}
		printResult(res)
		return nil
	}

	if err := d.Run(ctx, rep); err != nil {
		return err
	}
	if ctx.Err() != nil {
		fmt.Println("Run interrupted; re-run the same command to resume.")
	}
	return nil
}

func printResult(res deleter.TableResult) {
	if res.Interrupted {
		fmt.Printf("%s: interrupted at ID %d after deleting %d rows; re-run to resume\n",
			res.Table, res.LastProcessedID, res.TotalDeleted)
		return
	}
	fmt.Printf("%s: deleted %d rows in %d batches\n", res.Table, res.TotalDeleted, res.Batches)
}
