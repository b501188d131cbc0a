package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harrowdale/sweeper/internal/deleter"
)

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show per-table deletion progress from the audit trail",
	Long: `Summarize the deletion_log audit table: batches run, rows deleted,
resume position, and timing per table.

Example:
  sweeper progress --database tenancy`,
	RunE: runProgress,
}

func init() {
	rootCmd.AddCommand(progressCmd)
}

func runProgress(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, log, conn, err := setup(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	d := deleter.New(conn, cfg, log, deleter.Options{})
	rows, err := d.Progress(ctx)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Println("No deletion batches logged yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TABLE\tBATCHES\tDELETED\tRESUME ID\tLAST BATCH\tAVG MS")
	for _, r := range rows {
		last := "-"
		if r.LastBatch.Valid {
			last = r.LastBatch.Time.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\t%.0f\n",
			r.TableName, r.Batches, r.TotalDeleted, r.ProgressID, last, r.AvgTimeMS)
	}
	return w.Flush()
}
