package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/reefdb/reef-go-sdk/cmd/reefauth/commands"
	"github.com/reefdb/reef-go-sdk/internal/config"
	"github.com/reefdb/reef-go-sdk/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Global flags
	var (
		configFile string
		debug      bool
		noColor    bool
	)

	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "reefauth",
		Short: "Inspect and exercise ReefDB authorization providers",
		Long: `reefauth acquires authorization tokens and request signatures the same
way the driver does, so provider configuration can be verified before an
application depends on it.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg.Path = configFile
			cfg.Logger = logging.New(os.Stderr, debug)
			cfg.NoColor = noColor
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "reefauth.yaml", "Config file path")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable decorated output")

	rootCmd.AddCommand(
		commands.NewLoginCommand(cfg),
		commands.NewTokenCommand(cfg),
		commands.NewVerifyCommand(cfg),
	)

	return rootCmd.Execute()
}
