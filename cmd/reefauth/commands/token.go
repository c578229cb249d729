package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reefdb/reef-go-sdk/internal/config"
)

func NewTokenCommand(cfg *config.Config) *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Acquire an authorization string",
		Long: `Acquire the authorization string the driver would attach to a request
and print it to stdout. For federated providers --kind selects between the
data-plane and administrative token.

Examples:
  reefauth token                 # Data-plane authorization string
  reefauth token --kind admin    # Administrative token (federated only)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return err
			}
			req, err := requestForKind(kind)
			if err != nil {
				return err
			}

			provider, err := buildProvider(cfg)
			if err != nil {
				return err
			}
			defer provider.Close()

			authString, err := provider.AuthorizationString(context.Background(), req)
			if err != nil {
				return err
			}
			if authString == "" {
				fmt.Printf("%s store is not secured, no authorization needed\n",
					statusGlyph(cfg, true))
				return nil
			}
			fmt.Println(authString)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "data", "Token kind: data or admin")
	return cmd
}
