package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/wikisync/wikisync/internal/config"
)

var configFormat string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the merged configuration with secrets hidden",
	Long: `Load and merge every --config file, apply WIKISYNC_* environment
overrides and defaults, validate the result, and print it.

The Confluence token is never printed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		switch strings.ToLower(configFormat) {
		case config.FormatYAML, "yml", config.FormatTOML, config.FormatJSON:
		default:
			return fmt.Errorf("unknown --format %q (want yaml, toml or json)", configFormat)
		}
		if err := requireConfig(cmd); err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Redacted().Encode(cmd.OutOrStdout(), configFormat); err != nil {
			return &runError{err}
		}
		return nil
	},
}

func init() {
	configShowCmd.Flags().StringVarP(&configFormat, "format", "f", config.FormatYAML, "output format: yaml, toml or json")
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
