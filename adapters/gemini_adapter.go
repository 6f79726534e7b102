package adapters

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/opengovern/tentacles"
	"github.com/opengovern/tentacles/auth"
)

const (
	GeminiName               = "gemini"
	GeminiBaseURL            = "https://generativelanguage.googleapis.com/v1beta"
	GeminiDefaultModel       = "gemini-1.5-flash"
	GeminiDefaultMaxRequests = 60
	GeminiDefaultWindow      = 60 * time.Second
)

func GeminiLimits() tentacles.Limits {
	return tentacles.Limits{
		Read: []tentacles.Window{{Name: "minute", Limit: GeminiDefaultMaxRequests, Duration: GeminiDefaultWindow}},
	}
}

type Gemini struct {
	*tentacles.Client
	Models *tentacles.Resource
	model  string
}

// NewGemini reads the key from settings or GEMINI_API_KEY. The provider's
// extra "model" replaces GeminiDefaultModel.
func NewGemini(o Options) (*Gemini, error) {
	ps := o.settings().Provider(GeminiName)
	key, err := auth.NewAPIKey(auth.APIKeyConfig{
		Key:    ps.APIKey,
		EnvVar: "GEMINI_API_KEY",
		Header: "x-goog-api-key",
	})
	if err != nil {
		return nil, err
	}
	client, err := o.newClient(tentacles.ProviderConfig{
		Name:    GeminiName,
		BaseURL: GeminiBaseURL,
		Limits:  GeminiLimits(),
	}, key)
	if err != nil {
		return nil, err
	}
	model := GeminiDefaultModel
	if m := ps.Extra["model"]; m != "" {
		model = m
	}
	return &Gemini{
		Client: client,
		Models: tentacles.NewResource(client, tentacles.ResourceConfig{Path: "/models", CacheReads: true}),
		model:  model,
	}, nil
}

// GenerateContent calls models/{model}:generateContent. An empty model uses
// the configured default.
func (g *Gemini) GenerateContent(ctx context.Context, model string, body map[string]interface{}) (*tentacles.Response, error) {
	if model == "" {
		model = g.model
	}
	return g.Do(ctx, &tentacles.Request{
		Method:   http.MethodPost,
		Endpoint: "/models/" + url.PathEscape(model) + ":generateContent",
		Body:     body,
	})
}
