package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/opengovern/tentacles"
	"github.com/opengovern/tentacles/adapters"
	"github.com/opengovern/tentacles/auth"
	"github.com/opengovern/tentacles/tokenstore"
)

// authorizer is implemented by the interactive OAuth strategies.
type authorizer interface {
	Authorize(ctx context.Context, p auth.Prompter) error
}

// authorizeCmd returns the command running a provider's OAuth flow and
// persisting the resulting token.
func authorizeCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authorize <provider>",
		Short: "Run a provider's OAuth flow and store the token",
		Long: `Run the interactive OAuth flow for hubspot, linear or salesforce and save the
token in the configured token store (token_backend), so later clients start
authenticated.

Salesforce configured for the JWT bearer flow is authorized without a prompt.

Examples:
  tentacles authorize hubspot
  tentacles authorize salesforce -c tentacles.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := g.settings()
			if err != nil {
				return err
			}
			store, closeStore, err := tokenstore.Open(settings)
			if err != nil {
				return err
			}
			defer closeStore()

			prompter := auth.ConsolePrompter{In: os.Stdin, Out: cmd.OutOrStdout()}
			return authorize(cmd.Context(), args[0], adapters.Options{
				Settings: settings,
				Store:    store,
				Logger:   g.logger(),
			}, prompter, cmd.OutOrStdout())
		},
	}
	return cmd
}

func authorize(ctx context.Context, provider string, o adapters.Options, p auth.Prompter, out io.Writer) error {
	a, err := strategyFor(ctx, provider, o)
	if err != nil {
		return err
	}
	switch s := a.(type) {
	case authorizer:
		if err := s.Authorize(ctx, p); err != nil {
			return err
		}
	case tentacles.Authenticator:
		if err := s.EnsureValidToken(ctx); err != nil {
			return err
		}
	}
	logger := o.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger.WithField("provider", provider).Info("authorization stored")
	fmt.Fprintf(out, "%s authorized\n", provider)
	return nil
}

// strategyFor builds the provider's client and returns its auth strategy.
func strategyFor(ctx context.Context, provider string, o adapters.Options) (interface{}, error) {
	switch provider {
	case adapters.HubSpotName:
		h, err := adapters.NewHubSpot(ctx, o)
		if err != nil {
			return nil, err
		}
		return h.OAuth, nil
	case adapters.LinearName:
		l, err := adapters.NewLinear(ctx, o)
		if err != nil {
			return nil, err
		}
		if l.OAuth == nil {
			return nil, tentacles.NewError(tentacles.ErrConfiguration, "linear is configured with an API key, nothing to authorize")
		}
		return l.OAuth, nil
	case adapters.SalesforceName:
		sf, err := adapters.NewSalesforce(ctx, o)
		if err != nil {
			return nil, err
		}
		return sf.Auth, nil
	default:
		return nil, tentacles.NewError(tentacles.ErrConfiguration, "provider %q has no OAuth flow", provider)
	}
}
