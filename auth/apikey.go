package auth

import (
	"context"
	"os"

	"github.com/opengovern/tentacles"
)

// Compile-time interface checks.
var (
	_ tentacles.Authenticator      = (*APIKey)(nil)
	_ tentacles.QueryAuthenticator = (*APIKey)(nil)
)

type APIKeyConfig struct {
	// Key is used when set, otherwise the EnvVar environment variable.
	Key    string
	EnvVar string
	// Header defaults to Authorization. Leave empty with QueryParam set to
	// send the key only in the query string.
	Header string
	// Prefix is prepended to the key, e.g. "Bearer ".
	Prefix     string
	QueryParam string
	// Extra headers sent on every request, e.g. an API version pin.
	Extra map[string]string
}

// APIKey authenticates with a static key. It has no refresh semantics.
type APIKey struct {
	headers map[string]string
	query   map[string]string
}

// NewAPIKey resolves the key and fails fast when none is available.
func NewAPIKey(cfg APIKeyConfig) (*APIKey, error) {
	key := cfg.Key
	if key == "" && cfg.EnvVar != "" {
		key = os.Getenv(cfg.EnvVar)
	}
	if key == "" {
		if cfg.EnvVar != "" {
			return nil, tentacles.NewError(tentacles.ErrAuthentication, "no API key provided and %s is not set", cfg.EnvVar)
		}
		return nil, tentacles.NewError(tentacles.ErrAuthentication, "no API key provided")
	}

	a := &APIKey{headers: map[string]string{}, query: map[string]string{}}
	if cfg.QueryParam != "" {
		a.query[cfg.QueryParam] = key
	}
	if cfg.Header != "" || cfg.QueryParam == "" {
		header := cfg.Header
		if header == "" {
			header = "Authorization"
		}
		a.headers[header] = cfg.Prefix + key
	}
	for k, v := range cfg.Extra {
		a.headers[k] = v
	}
	return a, nil
}

// NewBearerKey is the common "Authorization: Bearer <key>" shape.
func NewBearerKey(key, envVar string) (*APIKey, error) {
	return NewAPIKey(APIKeyConfig{Key: key, EnvVar: envVar, Prefix: "Bearer "})
}

func (a *APIKey) AuthHeaders(context.Context) (map[string]string, error) {
	out := make(map[string]string, len(a.headers))
	for k, v := range a.headers {
		out[k] = v
	}
	return out, nil
}

func (a *APIKey) AuthQuery(context.Context) (map[string]string, error) {
	return a.query, nil
}

func (a *APIKey) EnsureValidToken(context.Context) error { return nil }

// Refresh always fails: a rejected key cannot be renewed, so the client
// surfaces the 401 instead of retrying.
func (a *APIKey) Refresh(context.Context) error {
	return tentacles.NewError(tentacles.ErrAuthentication, "API key rejected by provider")
}
