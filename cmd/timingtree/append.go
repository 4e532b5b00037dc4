package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/timingtree/pkg/history"
)

var appendOverwrite bool

var appendCmd = &cobra.Command{
	Use:   "append <log>...",
	Short: "Append model logs to the timing database",
	Long: `Parse the given logs and merge their samples into the timing database in
finish time order. Samples already present are skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAppend,
}

func init() {
	rootCmd.AddCommand(appendCmd)
	appendCmd.Flags().BoolVar(&appendOverwrite, "overwrite", false,
		"Replace the database with the single given log")
}

func runAppend(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var opts []history.Option

	store, err := openIndex(ctx)
	if err != nil {
		return err
	}

	if store != nil {
		defer func() { _ = store.Stop() }()

		opts = append(opts, history.WithIndex(store, cfg.Index.Store))
	}

	appender, err := history.NewAppender(log, databaseConfig(), newExtractor(), opts...)
	if err != nil {
		return fmt.Errorf("creating appender: %w", err)
	}

	if appendOverwrite {
		if len(args) != 1 {
			return fmt.Errorf("--overwrite takes exactly one log")
		}

		db, err := appender.Overwrite(ctx, args[0])
		if err != nil {
			return err
		}

		log.WithField("tables", db.NTables()).Info("Database overwritten")

		return nil
	}

	res, err := appender.Append(ctx, args...)
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"added":    res.Added,
		"skipped":  res.Skipped,
		"diverged": res.Diverged,
		"backups":  len(res.Backups),
	}).Info("Append completed")

	return nil
}
