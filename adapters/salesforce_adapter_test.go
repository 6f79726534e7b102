package adapters

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opengovern/tentacles"
	"github.com/opengovern/tentacles/auth"
	"github.com/opengovern/tentacles/mock"
)

func TestNewSalesforceRequiresClientID(t *testing.T) {
	t.Setenv("TENTACLES_SALESFORCE_CLIENT_ID", "")
	_, err := NewSalesforce(context.Background(), Options{})
	assert.ErrorIs(t, err, tentacles.ErrConfiguration)
}

func TestSalesforceImplicitUsesInstanceURL(t *testing.T) {
	tr := mock.NewTransport(mock.Reply{Body: `{"totalSize":1,"records":[{"Id":"001"}]}`})
	o := testOptions(t, tr, map[string]tentacles.ProviderSettings{
		SalesforceName: {ClientID: "consumer", RedirectURI: "https://localhost/callback"},
	})
	o.Store = storedToken(t, SalesforceName, "https://na1.example.test")

	sf, err := NewSalesforce(context.Background(), o)
	require.NoError(t, err)
	assert.IsType(t, &auth.Implicit{}, sf.Auth)

	_, err = sf.Query(context.Background(), "SELECT Id FROM Account")
	require.NoError(t, err)

	u, err := url.Parse(tr.Calls()[0].URL)
	require.NoError(t, err)
	assert.Equal(t, "na1.example.test", u.Host)
	assert.Equal(t, "/services/data/v61.0/query", u.Path)
	assert.Equal(t, "SELECT Id FROM Account", u.Query().Get("q"))
	assert.Equal(t, "Bearer salesforce-token", tr.Calls()[0].Header.Get("Authorization"))
}

func TestSalesforceAccountsAndVersionOverride(t *testing.T) {
	tr := mock.NewTransport()
	o := testOptions(t, tr, map[string]tentacles.ProviderSettings{
		SalesforceName: {
			ClientID:    "consumer",
			RedirectURI: "https://localhost/callback",
			Extra:       map[string]string{"api_version": "v59.0"},
		},
	})
	o.Store = storedToken(t, SalesforceName, "https://na1.example.test/")

	sf, err := NewSalesforce(context.Background(), o)
	require.NoError(t, err)

	_, err = sf.Accounts.Update(context.Background(), "001xx", map[string]interface{}{"Name": "Acme"})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPatch, tr.Calls()[0].Method)
	assert.Equal(t, "https://na1.example.test/services/data/v59.0/sobjects/Account/001xx", tr.Calls()[0].URL)
}

func TestSalesforceEmptyQuery(t *testing.T) {
	tr := mock.NewTransport()
	o := testOptions(t, tr, map[string]tentacles.ProviderSettings{
		SalesforceName: {ClientID: "consumer", RedirectURI: "https://localhost/callback"},
	})
	sf, err := NewSalesforce(context.Background(), o)
	require.NoError(t, err)

	_, err = sf.Query(context.Background(), "  ")
	assert.ErrorIs(t, err, tentacles.ErrValidation)
	assert.Zero(t, tr.CallCount())
}

func TestSalesforceJWTBearerFirstCall(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	keyFile := filepath.Join(t.TempDir(), "server.key")
	require.NoError(t, os.WriteFile(keyFile,
		pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}), 0o600))

	tr := mock.NewTransport(
		mock.Reply{Body: `{"access_token":"jwt-token","instance_url":"https://na7.example.test"}`},
		mock.Reply{Body: `{"totalSize":0,"records":[]}`},
	)
	o := testOptions(t, tr, map[string]tentacles.ProviderSettings{
		SalesforceName: {
			ClientID: "consumer",
			Extra: map[string]string{
				"private_key_file": keyFile,
				"username":         "integration@example.test",
				"login_url":        "https://test.example.test/",
			},
		},
	})

	sf, err := NewSalesforce(context.Background(), o)
	require.NoError(t, err)
	assert.IsType(t, &auth.JWTBearer{}, sf.Auth)

	_, err = sf.Query(context.Background(), "SELECT Id FROM Account")
	require.NoError(t, err)

	calls := tr.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "https://test.example.test/services/oauth2/token", calls[0].URL)
	form, err := url.ParseQuery(string(calls[0].Body))
	require.NoError(t, err)
	assert.Equal(t, "urn:ietf:params:oauth:grant-type:jwt-bearer", form.Get("grant_type"))

	assert.Contains(t, calls[1].URL, "https://na7.example.test/services/data/v61.0/query?")
	assert.Equal(t, "Bearer jwt-token", calls[1].Header.Get("Authorization"))
}

func TestSalesforceBadKeyFile(t *testing.T) {
	o := testOptions(t, mock.NewTransport(), map[string]tentacles.ProviderSettings{
		SalesforceName: {
			ClientID: "consumer",
			Extra:    map[string]string{"private_key_file": filepath.Join(t.TempDir(), "nope.key"), "username": "u"},
		},
	})
	_, err := NewSalesforce(context.Background(), o)
	assert.ErrorIs(t, err, tentacles.ErrConfiguration)
}
