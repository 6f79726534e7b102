package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opengovern/tentacles"
)

func TestAPIKeyFromEnvironment(t *testing.T) {
	t.Setenv("TENTACLES_TEST_KEY", "sk_env")

	a, err := NewBearerKey("", "TENTACLES_TEST_KEY")
	require.NoError(t, err)
	headers, err := a.AuthHeaders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Authorization": "Bearer sk_env"}, headers)
}

func TestAPIKeyExplicitKeyWins(t *testing.T) {
	t.Setenv("TENTACLES_TEST_KEY", "sk_env")

	a, err := NewBearerKey("sk_explicit", "TENTACLES_TEST_KEY")
	require.NoError(t, err)
	headers, _ := a.AuthHeaders(context.Background())
	assert.Equal(t, "Bearer sk_explicit", headers["Authorization"])
}

func TestAPIKeyMissingFailsFast(t *testing.T) {
	t.Setenv("TENTACLES_TEST_KEY", "")

	_, err := NewBearerKey("", "TENTACLES_TEST_KEY")
	require.Error(t, err)
	assert.ErrorIs(t, err, tentacles.ErrAuthentication)
	assert.Contains(t, err.Error(), "TENTACLES_TEST_KEY")

	_, err = NewAPIKey(APIKeyConfig{})
	assert.ErrorIs(t, err, tentacles.ErrAuthentication)
}

func TestAPIKeyCustomHeaderAndExtras(t *testing.T) {
	a, err := NewAPIKey(APIKeyConfig{
		Key:    "k",
		Header: "x-api-key",
		Extra:  map[string]string{"anthropic-version": "2023-06-01"},
	})
	require.NoError(t, err)

	headers, _ := a.AuthHeaders(context.Background())
	assert.Equal(t, map[string]string{"x-api-key": "k", "anthropic-version": "2023-06-01"}, headers)

	headers["x-api-key"] = "mutated"
	again, _ := a.AuthHeaders(context.Background())
	assert.Equal(t, "k", again["x-api-key"])
}

func TestAPIKeyQueryOnly(t *testing.T) {
	a, err := NewAPIKey(APIKeyConfig{Key: "k", QueryParam: "key"})
	require.NoError(t, err)

	headers, _ := a.AuthHeaders(context.Background())
	assert.Empty(t, headers)
	query, _ := a.AuthQuery(context.Background())
	assert.Equal(t, map[string]string{"key": "k"}, query)
}

func TestAPIKeyCannotRefresh(t *testing.T) {
	a, err := NewBearerKey("k", "")
	require.NoError(t, err)
	assert.NoError(t, a.EnsureValidToken(context.Background()))
	assert.ErrorIs(t, a.Refresh(context.Background()), tentacles.ErrAuthentication)
}
