package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reefdb/reef-go-sdk/internal/config"
	"github.com/reefdb/reef-go-sdk/internal/logging"
	"github.com/reefdb/reef-go-sdk/pkg/auth"
	"github.com/reefdb/reef-go-sdk/pkg/auth/session"
)

func NewLoginCommand(cfg *config.Config) *cobra.Command {
	var show bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to an on-premises store",
		Long: `Perform the bootstrap login against the store's security service using
the session provider from the configuration file. The password is read from
the ` + passwordEnvVar + ` environment variable or prompted for.

Examples:
  reefauth login                # Log in and confirm the token was issued
  reefauth login --show         # Also print the bearer token`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return err
			}
			if cfg.Definition.Provider.Type != config.TypeSession {
				return &auth.ConfigError{
					Field:   "provider.type",
					Message: "login requires a session provider configuration",
				}
			}

			provider, err := buildProvider(cfg)
			if err != nil {
				return err
			}
			sp := provider.(*session.Provider)
			defer sp.Close()

			if !sp.IsSecure() {
				fmt.Printf("%s store is not secured, no login required\n",
					statusGlyph(cfg, true))
				return nil
			}

			bearer, err := sp.Login(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("%s logged in to %s\n", statusGlyph(cfg, true), sp.Endpoint())
			if show {
				fmt.Println(bearer)
			} else {
				fmt.Printf("token: %s\n", logging.Secret(bearer))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&show, "show", false, "Print the bearer token")
	return cmd
}
