package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/timingtree/pkg/config"
	"github.com/ethpandaops/timingtree/pkg/report"
)

var (
	showTable    int
	showColumn   string
	showMarkdown bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the region tree of a stored table",
	Args:  cobra.NoArgs,
	RunE:  runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().IntVar(&showTable, "table", 0, "Table index")
	showCmd.Flags().StringVar(&showColumn, "column", config.DefaultSeriesColumn,
		"Column shown next to each region")
	showCmd.Flags().BoolVar(&showMarkdown, "markdown", false, "Render as markdown")
}

func runShow(cmd *cobra.Command, _ []string) error {
	db, err := loadDatabase(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if showMarkdown {
		md, err := report.TreeMarkdown(db, showTable, showColumn)
		if err != nil {
			return err
		}

		fmt.Fprint(out, md)

		return nil
	}

	root, data, err := db.Table(showTable)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "table %d of %d, %d samples\n", showTable, db.NTables(), db.NSamples())
	fmt.Fprint(out, report.TreeText(root, data, showColumn))

	return nil
}
