package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/opengovern/tentacles"
	"github.com/opengovern/tentacles/adapters"
	"github.com/opengovern/tentacles/webhook"
)

// serveCmd returns the command running one provider's webhook listener.
func serveCmd(g *globals) *cobra.Command {
	var provider, addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a provider's webhooks",
		Long: `Serve one provider's signed webhooks on webhook.path and Prometheus metrics on /metrics.

The webhook secret comes from the provider's webhook_secret setting or
TENTACLES_<PROVIDER>_WEBHOOK_SECRET.

Examples:
  tentacles serve --provider linear
  tentacles serve -c tentacles.yaml --provider stripe --addr :9000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := g.settings()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, settings, provider, addr, g.logger())
		},
	}

	cmd.Flags().StringVarP(&provider, "provider", "p", "", "provider whose webhooks to serve ("+strings.Join(adapters.WebhookProviders(), ", ")+")")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides webhook.addr")
	return cmd
}

// newListener builds the listener for provider with a logging default handler
// and /metrics mounted next to the webhook route.
func newListener(settings *tentacles.Settings, provider, addr string, logger logrus.FieldLogger) (*webhook.Listener, error) {
	if provider == "" {
		provider = settings.Webhook.Provider
	}
	if addr == "" {
		addr = settings.Webhook.Addr
	}

	registry := prometheus.NewRegistry()
	metrics, err := tentacles.NewMetrics(registry)
	if err != nil {
		return nil, err
	}

	engine, lc, err := adapters.NewWebhook(provider, adapters.Options{
		Settings: settings,
		Logger:   logger,
		Metrics:  metrics,
	})
	if err != nil {
		return nil, err
	}
	engine.SetDefault(func(_ context.Context, ev *webhook.Event) (interface{}, error) {
		logger.WithFields(logrus.Fields{"event_type": ev.Type, "event_id": ev.ID}).Info("webhook received")
		return nil, nil
	})

	lc.Addr = addr
	lc.Path = settings.Webhook.Path
	listener := webhook.NewListener(engine, lc)
	listener.Router().Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return listener, nil
}

func serve(ctx context.Context, settings *tentacles.Settings, provider, addr string, logger logrus.FieldLogger) error {
	listener, err := newListener(settings, provider, addr, logger)
	if err != nil {
		return err
	}
	return listener.Run(ctx)
}
