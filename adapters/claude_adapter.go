package adapters

import (
	"context"
	"time"

	"github.com/opengovern/tentacles"
	"github.com/opengovern/tentacles/auth"
)

const (
	ClaudeName       = "claude"
	ClaudeBaseURL    = "https://api.anthropic.com/v1"
	ClaudeAPIVersion = "2023-06-01"

	ClaudeDefaultMaxRequests = 50
	ClaudeDefaultWindow      = 60 * time.Second
)

func ClaudeLimits() tentacles.Limits {
	return tentacles.Limits{
		Read: []tentacles.Window{{Name: "minute", Limit: ClaudeDefaultMaxRequests, Duration: ClaudeDefaultWindow}},
	}
}

// Claude talks to the Messages API. 429s beyond the local window surface as
// rate-limit errors carrying Retry-After.
type Claude struct {
	*tentacles.Client
	Messages *tentacles.Resource
	Models   *tentacles.Resource
}

// NewClaude reads the key from settings or ANTHROPIC_API_KEY. The API version
// can be pinned with the provider's extra "api_version".
func NewClaude(o Options) (*Claude, error) {
	ps := o.settings().Provider(ClaudeName)
	version := ClaudeAPIVersion
	if v := ps.Extra["api_version"]; v != "" {
		version = v
	}
	key, err := auth.NewAPIKey(auth.APIKeyConfig{
		Key:    ps.APIKey,
		EnvVar: "ANTHROPIC_API_KEY",
		Header: "x-api-key",
		Extra:  map[string]string{"anthropic-version": version},
	})
	if err != nil {
		return nil, err
	}
	client, err := o.newClient(tentacles.ProviderConfig{
		Name:    ClaudeName,
		BaseURL: ClaudeBaseURL,
		Limits:  ClaudeLimits(),
	}, key)
	if err != nil {
		return nil, err
	}
	return &Claude{
		Client:   client,
		Messages: tentacles.NewResource(client, tentacles.ResourceConfig{Path: "/messages"}),
		Models:   tentacles.NewResource(client, tentacles.ResourceConfig{Path: "/models", CacheReads: true}),
	}, nil
}

// CreateMessage posts to /messages, e.g.
// {"model": "...", "max_tokens": 256, "messages": [{"role": "user", "content": "hi"}]}.
func (c *Claude) CreateMessage(ctx context.Context, body map[string]interface{}) (*tentacles.Response, error) {
	return c.Messages.Create(ctx, body)
}
