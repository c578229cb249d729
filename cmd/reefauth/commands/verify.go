package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reefdb/reef-go-sdk/internal/config"
	"github.com/reefdb/reef-go-sdk/pkg/auth"
	"github.com/reefdb/reef-go-sdk/pkg/auth/federated"
)

func NewVerifyCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify the provider configuration",
		Long: `Check that the configured provider can actually authorize requests: the
federated provider runs scope discovery against the identity broker, the
cloud provider generates a request signature, and the session provider
performs a login.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return err
			}
			switch cfg.Definition.Provider.Type {
			case config.TypeFederated:
				return verifyFederated(cfg)
			default:
				return verifyByAcquisition(cfg)
			}
		},
	}
	return cmd
}

// verifyFederated reports the scopes discovered for the OAuth client, which
// determine what the provider will be able to do.
func verifyFederated(cfg *config.Config) error {
	bc, err := brokerConfig(cfg, cfg.Definition.Provider.Federated)
	if err != nil {
		return err
	}
	broker, err := federated.NewBroker(bc)
	if err != nil {
		return err
	}

	scopes, err := broker.DiscoverScopes(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("%s data-plane scope: %s\n",
		statusGlyph(cfg, scopes.DataPlane != ""), valueOr(scopes.DataPlane, "not granted"))
	fmt.Printf("%s administrative scope: %s\n",
		statusGlyph(cfg, scopes.Administrative != ""), valueOr(scopes.Administrative, "not granted"))
	if scopes.DataPlane == "" {
		return &auth.AuthError{
			Provider: "federated",
			Message:  "the OAuth client has no data-plane scope and cannot serve requests",
		}
	}
	return nil
}

func verifyByAcquisition(cfg *config.Config) error {
	provider, err := buildProvider(cfg)
	if err != nil {
		return err
	}
	defer provider.Close()

	if _, err := provider.AuthorizationString(context.Background(),
		&auth.Request{Op: auth.OpGet}); err != nil {
		return err
	}
	fmt.Printf("%s %s provider is able to authorize requests\n",
		statusGlyph(cfg, true), cfg.Definition.Provider.Type)
	return nil
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
