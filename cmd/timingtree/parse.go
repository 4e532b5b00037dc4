package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/timingtree/pkg/config"
	"github.com/ethpandaops/timingtree/pkg/report"
	"github.com/ethpandaops/timingtree/pkg/timing"
)

var (
	parseColumn string
	parseJSON   bool
)

var parseCmd = &cobra.Command{
	Use:   "parse <log>",
	Short: "Parse one model log and print its timer trees",
	Args:  cobra.ExactArgs(1),
	RunE:  runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)
	parseCmd.Flags().StringVar(&parseColumn, "column", config.DefaultSeriesColumn,
		"Column shown next to each region")
	parseCmd.Flags().BoolVar(&parseJSON, "json", false,
		"Print the run metadata and trees as JSON")
}

func runParse(cmd *cobra.Command, args []string) error {
	tables, meta, err := newExtractor().ExtractFile(args[0])
	if err != nil {
		return err
	}

	roots := make([]*timing.Node, len(tables))

	out := cmd.OutOrStdout()

	if !parseJSON {
		fmt.Fprintf(out, "finish %s  revision %s  branch %s  tables %d\n",
			meta.FinishTime, meta.Revision, meta.Branch, meta.NTables)
	}

	for i, t := range tables {
		root, data := timing.Build(t, meta.FinishTime)
		roots[i] = root

		if parseJSON {
			continue
		}

		fmt.Fprintf(out, "\ntable %d (line %d, %d regions)\n", i, t.Line, len(t.Rows))
		fmt.Fprint(out, report.TreeText(root, data, parseColumn))
	}

	if !parseJSON {
		return nil
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	return enc.Encode(map[string]any{
		"meta":  meta,
		"trees": roots,
	})
}
