package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long:  `Print the configuration after merging config files, environment overrides and defaults.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		effective := *cfg
		effective.Database = *databaseConfig()

		mask(&effective.Index.Postgres.Password)
		mask(&effective.Storage.S3.SecretAccessKey)
		mask(&effective.Upload.S3.SecretAccessKey)

		out, err := yaml.Marshal(&effective)
		if err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}

		_, err = cmd.OutOrStdout().Write(out)

		return err
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}

// mask hides a configured secret.
func mask(s *string) {
	if *s != "" {
		*s = "********"
	}
}
