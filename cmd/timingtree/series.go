package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/timingtree/pkg/config"
	"github.com/ethpandaops/timingtree/pkg/report"
	"github.com/ethpandaops/timingtree/pkg/timingdb"
)

var (
	seriesTable    int
	seriesColumn   string
	seriesMarkdown bool
)

var seriesCmd = &cobra.Command{
	Use:   "series <timer>",
	Short: "Print the history of one timer",
	Args:  cobra.ExactArgs(1),
	RunE:  runSeries,
}

func init() {
	rootCmd.AddCommand(seriesCmd)
	seriesCmd.Flags().IntVar(&seriesTable, "table", 0, "Table index")
	seriesCmd.Flags().StringVar(&seriesColumn, "column", config.DefaultSeriesColumn, "Column to extract")
	seriesCmd.Flags().BoolVar(&seriesMarkdown, "markdown", false, "Render as markdown")
}

func runSeries(cmd *cobra.Command, args []string) error {
	db, err := loadDatabase(cmd.Context())
	if err != nil {
		return err
	}

	points, err := db.ExtractSeries(seriesTable, args[0], seriesColumn)
	if err != nil {
		return err
	}

	summary := timingdb.Summarize(points)
	out := cmd.OutOrStdout()

	if seriesMarkdown {
		fmt.Fprint(out, report.SeriesMarkdown(args[0], seriesColumn, points, summary))

		return nil
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	return enc.Encode(map[string]any{
		"points":  points,
		"summary": summary,
	})
}
