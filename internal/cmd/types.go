package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harrowdale/sweeper/internal/cutoff"
)

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "Survey contact types before trusting the community cutoff",
	Long: `Survey the contact_type table: every type with its usage count,
the types whose names suggest closure or decommissioning, the types that
look like communities, and the count of window-stale contacts per type.

Run this before the first identify/delete cycle on a new database to
confirm that 'Closed' and the ZY prefix really mark decommissioned
communities there.

Example:
  sweeper types --database tenancy`,
	RunE: runTypes,
}

func init() {
	rootCmd.AddCommand(typesCmd)
}

func runTypes(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, _, conn, err := setup(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	survey, err := cutoff.SurveyContactTypes(ctx, conn, cfg.Retention.AccountYears)
	if err != nil {
		return fmt.Errorf("surveying contact types: %w", err)
	}

	printTypeCounts("ALL CONTACT TYPES", survey.AllTypes)
	printTypeCounts("CLOSED-LOOKING TYPES", survey.ClosedTypes)
	printTypeCounts("COMMUNITY-LOOKING TYPES", survey.CommunityTypes)

	fmt.Printf("\nSTALE CONTACTS BY TYPE (>%d years since last update)\n", cfg.Retention.AccountYears)
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tSTALE\tOLDEST UPDATE\tNEWEST UPDATE")
	for _, s := range survey.StaleByType {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
			s.Name, s.StaleCount,
			s.OldestUpdate.Format("2006-01-02"), s.NewestUpdate.Format("2006-01-02"))
	}
	return w.Flush()
}

func printTypeCounts(title string, counts []cutoff.TypeCount) {
	fmt.Printf("\n%s\n", title)
	if len(counts) == 0 {
		fmt.Println("  (none)")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tCONTACTS")
	for _, c := range counts {
		fmt.Fprintf(w, "%d\t%s\t%d\n", c.TypeID, c.Name, c.Count)
	}
	w.Flush()
}
