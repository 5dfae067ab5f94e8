// Package cli defines Cobra command definitions for the bankctl CLI.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bank-assistant/internal/config"
)

var (
	configPath string
	version    = "dev" // set via ldflags at build time
)

var rootCmd = &cobra.Command{
	Use:   "bankctl",
	Short: "Local driver for the banking assistant",
	Long: `bankctl runs the banking assistant against a local SQLite database.
It can create and seed the database, hold an interactive chat session
through the same pipeline the hosted API uses, and print stored history.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Path to the bankctl YAML config")

	rootCmd.AddCommand(setupDBCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(historyCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.ReadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", configPath, err)
	}
	return cfg, nil
}
