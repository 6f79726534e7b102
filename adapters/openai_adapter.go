package adapters

import (
	"context"
	"time"

	"github.com/opengovern/tentacles"
	"github.com/opengovern/tentacles/auth"
)

const (
	OpenAIName               = "openai"
	OpenAIBaseURL            = "https://api.openai.com/v1"
	OpenAIDefaultMaxRequests = 60
	OpenAIDefaultWindow      = 60 * time.Second // 60 requests per 60 seconds
)

func OpenAILimits() tentacles.Limits {
	return tentacles.Limits{
		Read: []tentacles.Window{{Name: "minute", Limit: OpenAIDefaultMaxRequests, Duration: OpenAIDefaultWindow}},
	}
}

type OpenAI struct {
	*tentacles.Client
	Completions *tentacles.Resource
	Models      *tentacles.Resource
}

// NewOpenAI reads the key from settings or OPENAI_API_KEY.
func NewOpenAI(o Options) (*OpenAI, error) {
	ps := o.settings().Provider(OpenAIName)
	key, err := auth.NewBearerKey(ps.APIKey, "OPENAI_API_KEY")
	if err != nil {
		return nil, err
	}
	client, err := o.newClient(tentacles.ProviderConfig{
		Name:    OpenAIName,
		BaseURL: OpenAIBaseURL,
		Limits:  OpenAILimits(),
		Translator: tentacles.StatusTranslator{
			Provider:          OpenAIName,
			RetryAfterHeaders: []string{"retry-after", "x-ratelimit-reset-requests"},
		},
	}, key)
	if err != nil {
		return nil, err
	}
	return &OpenAI{
		Client:      client,
		Completions: tentacles.NewResource(client, tentacles.ResourceConfig{Path: "/chat/completions"}),
		Models:      tentacles.NewResource(client, tentacles.ResourceConfig{Path: "/models", CacheReads: true}),
	}, nil
}

// ChatCompletion posts a chat completion request, e.g.
// {"model": "gpt-4o-mini", "messages": [{"role": "user", "content": "hi"}]}.
func (o *OpenAI) ChatCompletion(ctx context.Context, body map[string]interface{}) (*tentacles.Response, error) {
	return o.Completions.Create(ctx, body)
}
