package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/timingtree/pkg/config"
	"github.com/ethpandaops/timingtree/pkg/indexstore"
	"github.com/ethpandaops/timingtree/pkg/logtable"
	"github.com/ethpandaops/timingtree/pkg/storage"
	"github.com/ethpandaops/timingtree/pkg/timingdb"
)

var (
	// Version information set at build time.
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	cfgFiles []string
	logLevel string
	log      *logrus.Logger
	cfg      *config.Config
)

func main() {
	log = logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Fatal("Failed to execute command")
	}
}

var rootCmd = &cobra.Command{
	Use:   "timingtree",
	Short: "Performance history of model timer reports",
	Long: `Timingtree extracts the hierarchical timer tables printed at the end of a
model run, turns them into region trees and keeps a persisted history of
samples that can be queried, reported and served over HTTP.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFiles...)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("validating config: %w", err)
		}

		cfg = loaded

		lvl := cfg.Global.LogLevel
		if cmd.Flags().Changed("log-level") {
			lvl = logLevel
		}

		level, err := logrus.ParseLevel(lvl)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", lvl, err)
		}

		log.SetLevel(level)

		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("timingtree %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&cfgFiles, "config", nil,
		"config file path (repeat to merge several files)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", config.DefaultLogLevel,
		"log level ("+strings.Join(logLevels(), ", ")+")")
	rootCmd.PersistentFlags().StringVar(&databasePath, "database", "",
		"base path of the timing database (overrides database.path)")

	rootCmd.AddCommand(versionCmd)
}

var databasePath string

func logLevels() []string {
	levels := make([]string, 0, len(logrus.AllLevels))
	for _, level := range logrus.AllLevels {
		levels = append(levels, level.String())
	}

	return levels
}

// databaseConfig returns the database section with CLI overrides applied.
func databaseConfig() *config.DatabaseConfig {
	db := cfg.Database
	if databasePath != "" {
		db.Path = databasePath
	}

	return &db
}

func newExtractor() *logtable.Extractor {
	return logtable.NewExtractor(log, logtable.Options{
		MinRows:      cfg.Parser.MinRows,
		IndentWidth:  cfg.Parser.IndentWidth,
		IndentMarker: cfg.Parser.IndentMarker,
		HeaderLabels: cfg.Parser.HeaderLabels,
	})
}

// storageReader returns the reader and base name the database is loaded
// from. With S3 storage enabled the objects are keyed by the basename of
// the database path, matching the upload layout.
func storageReader() (storage.Reader, string) {
	base := databaseConfig().Path

	if cfg.Storage.S3.Enabled {
		return storage.NewS3Reader(&cfg.Storage.S3), filepath.Base(base)
	}

	return storage.NewLocalReader(""), base
}

func loadDatabase(ctx context.Context) (*timingdb.Database, error) {
	reader, base := storageReader()

	db, err := timingdb.Load(ctx, reader, base)
	if err != nil {
		return nil, fmt.Errorf("loading timing database %s: %w", base, err)
	}

	return db, nil
}

// openIndex starts the configured index store, or returns nil when
// indexing is disabled.
func openIndex(ctx context.Context) (indexstore.Store, error) {
	if !cfg.Index.Enabled {
		return nil, nil
	}

	store := indexstore.NewStore(log, &cfg.Index)
	if err := store.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting index store: %w", err)
	}

	return store, nil
}
