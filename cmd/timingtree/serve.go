package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/timingtree/pkg/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the query API server",
	Long:  `Serve the timing database over HTTP, reloading it periodically.`,
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	// Set up context with signal handling.
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var opts []api.Option

	store, err := openIndex(ctx)
	if err != nil {
		return err
	}

	if store != nil {
		defer func() { _ = store.Stop() }()

		opts = append(opts, api.WithIndex(store, cfg.Index.Store))
	}

	reader, base := storageReader()
	srv := api.NewServer(log, &cfg.API, reader, base, opts...)

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting api server: %w", err)
	}

	// Wait for shutdown signal.
	sig := <-sigCh
	log.WithField("signal", sig).Info("Shutting down API server")
	cancel()

	if err := srv.Stop(); err != nil {
		return fmt.Errorf("stopping api server: %w", err)
	}

	return nil
}
