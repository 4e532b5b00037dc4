package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/timingtree/pkg/timingdb"
	"github.com/ethpandaops/timingtree/pkg/upload"
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload the timing database to remote storage",
	Long:  `Upload the persisted timing database to S3-compatible storage using the config file settings.`,
	Args:  cobra.NoArgs,
	RunE:  runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, _ []string) error {
	if !cfg.Upload.S3.Enabled {
		return fmt.Errorf("S3 upload is not configured or not enabled in config")
	}

	ctx := cmd.Context()
	base := databaseConfig().Path

	db, err := timingdb.LoadFile(ctx, base)
	if err != nil {
		return fmt.Errorf("loading timing database %s: %w", base, err)
	}

	uploader, err := upload.NewS3Uploader(log, &cfg.Upload.S3)
	if err != nil {
		return fmt.Errorf("creating S3 uploader: %w", err)
	}

	if err := uploader.Preflight(ctx); err != nil {
		return fmt.Errorf("S3 preflight check failed: %w", err)
	}

	log.WithField("database", base).Info("Uploading timing database")

	if _, err := uploader.UploadDatabase(ctx, base, db.NTables()); err != nil {
		return fmt.Errorf("uploading timing database: %w", err)
	}

	return nil
}
