package auth

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/opengovern/tentacles"
	"github.com/opengovern/tentacles/tokenstore"
)

func newTestImplicit(t *testing.T, tokenURL string, store tokenstore.Store) *Implicit {
	t.Helper()
	logger, _ := test.NewNullLogger()
	i, err := NewImplicit(context.Background(), ImplicitConfig{
		Service:     "salesforce",
		ClientID:    "consumer-key",
		AuthURL:     "https://login.example.test/services/oauth2/authorize",
		TokenURL:    tokenURL,
		RedirectURL: "https://localhost/callback",
		Store:       store,
		Logger:      logger,
	})
	require.NoError(t, err)
	return i
}

func TestNewImplicitRequiresClientAndRedirect(t *testing.T) {
	_, err := NewImplicit(context.Background(), ImplicitConfig{ClientID: "id"})
	assert.ErrorIs(t, err, tentacles.ErrAuthentication)
}

func TestImplicitAuthURLAsksForToken(t *testing.T) {
	i := newTestImplicit(t, "", nil)
	u, err := url.Parse(i.AuthURL(""))
	require.NoError(t, err)
	assert.Equal(t, "token", u.Query().Get("response_type"))
	assert.Equal(t, "consumer-key", u.Query().Get("client_id"))
	assert.Equal(t, "https://localhost/callback", u.Query().Get("redirect_uri"))
}

func TestTokensFromRedirectFragment(t *testing.T) {
	i := newTestImplicit(t, "", nil)
	redirect := "https://localhost/callback#access_token=00Dxx%21abc&refresh_token=rt&" +
		"instance_url=https%3A%2F%2Fna1.example.test&issued_at=1700000000000&token_type=Bearer"

	require.NoError(t, i.TokensFromRedirect(context.Background(), redirect))

	tok := i.Token()
	require.NotNil(t, tok)
	assert.Equal(t, "00Dxx!abc", tok.AccessToken)
	assert.Equal(t, "rt", tok.RefreshToken)
	assert.Equal(t, time.UnixMilli(1_700_000_000_000).Add(DefaultTokenLifetime), tok.Expiry)
	assert.Equal(t, "https://na1.example.test", i.InstanceURL())
}

func TestTokensFromRedirectErrors(t *testing.T) {
	i := newTestImplicit(t, "", nil)

	err := i.TokensFromRedirect(context.Background(), "https://localhost/callback#instance_url=x")
	assert.ErrorIs(t, err, tentacles.ErrAuthentication)
	assert.Contains(t, err.Error(), "no access token")

	err = i.TokensFromRedirect(context.Background(), "https://localhost/callback#error=access_denied&error_description=end-user+denied")
	assert.ErrorIs(t, err, tentacles.ErrAuthentication)
	assert.Contains(t, err.Error(), "end-user denied")
	assert.Nil(t, i.Token())
}

func TestImplicitExpiredWithoutRefreshTokenFails(t *testing.T) {
	i := newTestImplicit(t, "", nil)
	i.state.now = func() time.Time { return time.UnixMilli(1_700_000_000_000).Add(2 * time.Hour) }
	require.NoError(t, i.TokensFromRedirect(context.Background(),
		"https://localhost/callback#access_token=at&issued_at=1700000000000"))

	_, err := i.AuthHeaders(context.Background())
	assert.ErrorIs(t, err, tentacles.ErrAuthentication)
}

func TestImplicitRefreshUpdatesInstanceURL(t *testing.T) {
	ts := newTokenServer(t)
	ts.reply = func(url.Values) map[string]interface{} {
		return map[string]interface{}{"access_token": "new", "instance_url": "https://na2.example.test"}
	}
	i := newTestImplicit(t, ts.URL, nil)
	i.state.set(&oauth2.Token{AccessToken: "old", RefreshToken: "rt", Expiry: time.Now().Add(-time.Minute)})

	headers, err := i.AuthHeaders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer new", headers["Authorization"])
	assert.Equal(t, "https://na2.example.test", i.InstanceURL())
	assert.Equal(t, "rt", i.Token().RefreshToken)
	assert.Equal(t, "consumer-key", ts.lastForm().Get("client_id"))
	assert.Empty(t, ts.lastForm().Get("client_secret"))
}

func TestImplicitPersistsInstanceURL(t *testing.T) {
	store := tokenstore.New(tokenstore.NewMemoryBackend(), nil)
	first := newTestImplicit(t, "", store)
	require.NoError(t, first.TokensFromRedirect(context.Background(),
		"https://localhost/callback#access_token=at&instance_url=https%3A%2F%2Fna1.example.test"))

	second := newTestImplicit(t, "", store)
	assert.Equal(t, "https://na1.example.test", second.InstanceURL())
	assert.Equal(t, "at", second.Token().AccessToken)

	second.Clear(context.Background())
	assert.Empty(t, second.InstanceURL())
	assert.Nil(t, second.Token())
}

func TestImplicitAuthorize(t *testing.T) {
	i := newTestImplicit(t, "", nil)
	err := i.Authorize(context.Background(), PromptFunc(func(_ context.Context, authURL string) (string, error) {
		assert.Contains(t, authURL, "response_type=token")
		return "https://localhost/callback#access_token=prompted", nil
	}))
	require.NoError(t, err)
	assert.Equal(t, "prompted", i.Token().AccessToken)
}
