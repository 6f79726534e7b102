// Package adapters holds the provider tentacles. Each one is a thin
// configuration of the shared client: base URL, auth strategy, rate-limit
// windows, pagination, error translation, resources and, where the provider
// sends them, a webhook engine.
package adapters

import (
	"net/http"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/opengovern/tentacles"
	"github.com/opengovern/tentacles/tokenstore"
	"github.com/opengovern/tentacles/webhook"
)

// Options carries what every tentacle constructor shares. The zero value
// uses DefaultSettings, no token persistence and the logrus standard logger.
type Options struct {
	Settings   *tentacles.Settings
	Store      tokenstore.Store
	HTTPClient *http.Client
	Logger     logrus.FieldLogger
	Metrics    *tentacles.Metrics
}

func (o Options) settings() *tentacles.Settings {
	if o.Settings == nil {
		return tentacles.DefaultSettings()
	}
	return o.Settings
}

func (o Options) logger() logrus.FieldLogger {
	if o.Logger == nil {
		return logrus.StandardLogger()
	}
	return o.Logger
}

// newClient applies the provider's settings overrides to cfg and builds the client.
func (o Options) newClient(cfg tentacles.ProviderConfig, a tentacles.Authenticator) (*tentacles.Client, error) {
	s := o.settings()
	ps := s.Provider(cfg.Name)
	if ps.BaseURL != "" {
		cfg.BaseURL = ps.BaseURL
	}
	if ps.Limits != nil {
		cfg.Limits = *ps.Limits
	}
	if ps.MaxRetries > 0 {
		cfg.MaxRetries = ps.MaxRetries
	}
	s.Apply(&cfg)

	opts := []tentacles.Option{tentacles.WithLogger(o.logger())}
	if o.HTTPClient != nil {
		opts = append(opts, tentacles.WithHTTPClient(o.HTTPClient))
	}
	if o.Metrics != nil {
		opts = append(opts, tentacles.WithMetrics(o.Metrics))
	}
	return tentacles.NewClient(cfg, a, opts...)
}

// newEngine fills the secret, logger and metrics of cfg from o.
func (o Options) newEngine(cfg webhook.Config) (*webhook.Engine, error) {
	if cfg.Secret == "" {
		cfg.Secret = o.settings().Provider(cfg.Provider).WebhookSecret
	}
	if cfg.Logger == nil {
		cfg.Logger = o.logger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = o.Metrics
	}
	return webhook.NewEngine(cfg)
}

// WebhookFactory builds a provider's webhook engine and the listener
// configuration matching its signature header.
type WebhookFactory func(o Options) (*webhook.Engine, webhook.ListenerConfig, error)

var webhookFactories = map[string]WebhookFactory{
	StripeName: NewStripeWebhook,
	CertnName:  NewCertnWebhook,
	LinearName: NewLinearWebhook,
}

// NewWebhook builds the webhook engine for a provider by name.
func NewWebhook(provider string, o Options) (*webhook.Engine, webhook.ListenerConfig, error) {
	f, ok := webhookFactories[provider]
	if !ok {
		return nil, webhook.ListenerConfig{}, tentacles.NewError(tentacles.ErrConfiguration,
			"no webhook support for provider %q", provider)
	}
	return f(o)
}

// WebhookProviders lists the providers NewWebhook accepts.
func WebhookProviders() []string {
	names := make([]string, 0, len(webhookFactories))
	for name := range webhookFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
