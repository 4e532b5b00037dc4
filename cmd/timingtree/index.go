package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/timingtree/pkg/indexstore"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Sync the stored samples into the SQL index",
	Args:  cobra.NoArgs,
	RunE:  runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, _ []string) error {
	if !cfg.Index.Enabled {
		return fmt.Errorf("index is not enabled in config (index.enabled)")
	}

	ctx := cmd.Context()

	db, err := loadDatabase(ctx)
	if err != nil {
		return err
	}

	store, err := openIndex(ctx)
	if err != nil {
		return err
	}

	defer func() { _ = store.Stop() }()

	n, err := indexstore.Sync(ctx, log, store, cfg.Index.Store, db)
	if err != nil {
		return fmt.Errorf("indexing samples: %w", err)
	}

	log.WithField("indexed", n).Info("Index sync completed")

	return nil
}
