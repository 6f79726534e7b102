package adapters

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opengovern/tentacles"
	"github.com/opengovern/tentacles/mock"
	"github.com/opengovern/tentacles/tokenstore"
)

// testOptions routes every call through tr and configures the given providers.
func testOptions(t *testing.T, tr *mock.Transport, providers map[string]tentacles.ProviderSettings) Options {
	t.Helper()
	s := tentacles.DefaultSettings()
	for name, ps := range providers {
		s.Providers[name] = ps
	}
	logger, _ := test.NewNullLogger()
	return Options{Settings: s, HTTPClient: tr.Client(), Logger: logger}
}

// storedToken returns a memory store already holding a valid token for service.
func storedToken(t *testing.T, service, instanceURL string) tokenstore.Store {
	t.Helper()
	store := tokenstore.New(tokenstore.NewMemoryBackend(), nil)
	require.NoError(t, store.Save(context.Background(), service, &tokenstore.Token{
		AccessToken:  service + "-token",
		RefreshToken: "rt",
		Expiry:       time.Now().Add(time.Hour).Unix(),
		InstanceURL:  instanceURL,
	}))
	return store
}

func decodeJSON(t *testing.T, data []byte) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestWebhookProviders(t *testing.T) {
	assert.Equal(t, []string{"certn", "linear", "stripe"}, WebhookProviders())
}

func TestNewWebhookUnknownProvider(t *testing.T) {
	_, _, err := NewWebhook("myspace", Options{})
	assert.ErrorIs(t, err, tentacles.ErrConfiguration)
}

func TestNewWebhookUsesConfiguredSecret(t *testing.T) {
	o := testOptions(t, mock.NewTransport(), map[string]tentacles.ProviderSettings{
		CertnName: {WebhookSecret: "certn-secret"},
	})
	engine, lc, err := NewWebhook(CertnName, o)
	require.NoError(t, err)
	assert.Equal(t, CertnSignatureHeader, lc.SignatureHeader)
	assert.Equal(t, CertnName, engine.Provider())

	_, err = engine.Process(context.Background(), []byte(`{"id":"a1"}`), "0000")
	assert.ErrorIs(t, err, tentacles.ErrAuthentication)
}

func TestProviderSettingsOverrideDefaults(t *testing.T) {
	tr := mock.NewTransport()
	o := testOptions(t, tr, map[string]tentacles.ProviderSettings{
		OpenAIName: {
			APIKey:  "sk-test",
			BaseURL: "https://proxy.example.test/openai",
			Limits:  &tentacles.Limits{Read: []tentacles.Window{{Name: "tight", Limit: 1, Duration: time.Hour}}},
		},
	})
	ai, err := NewOpenAI(o)
	require.NoError(t, err)

	_, err = ai.Models.List(context.Background(), tentacles.ListOptions{})
	require.NoError(t, err)
	assert.Contains(t, tr.Calls()[0].URL, "https://proxy.example.test/openai/models")
	assert.Equal(t, 1, ai.RateLimiter().Usage("tight", time.Hour))
	assert.Zero(t, ai.RateLimiter().Usage("minute", time.Minute), "default window replaced")
}
