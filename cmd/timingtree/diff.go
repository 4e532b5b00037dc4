package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/timingtree/pkg/report"
	"github.com/ethpandaops/timingtree/pkg/timingdb"
)

var diffCmd = &cobra.Command{
	Use:   "diff <log>",
	Short: "Compare the region trees of a log with the stored ones",
	Args:  cobra.ExactArgs(1),
	RunE:  runDiff,
}

func init() {
	rootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
	stored, err := loadDatabase(cmd.Context())
	if err != nil {
		return err
	}

	incoming, err := timingdb.FromLog(newExtractor(), args[0])
	if err != nil {
		return err
	}

	if incoming.NTables() != stored.NTables() {
		return fmt.Errorf("log has %d tables, store has %d: %w",
			incoming.NTables(), stored.NTables(), timingdb.ErrTableCountMismatch)
	}

	out := cmd.OutOrStdout()

	for i := range stored.Roots {
		fmt.Fprintf(out, "table %d: new in log\n", i)
		fmt.Fprint(out, report.DiffText(incoming.Roots[i].Difference(stored.Roots[i])))
		fmt.Fprintf(out, "table %d: missing from log\n", i)
		fmt.Fprint(out, report.DiffText(stored.Roots[i].Difference(incoming.Roots[i])))
	}

	return nil
}
