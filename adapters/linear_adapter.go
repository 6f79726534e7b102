package adapters

import (
	"context"
	"time"

	"github.com/opengovern/tentacles"
	"github.com/opengovern/tentacles/auth"
	"github.com/opengovern/tentacles/webhook"
)

const (
	LinearName            = "linear"
	LinearBaseURL         = "https://api.linear.app/graphql"
	LinearAuthURL         = "https://linear.app/oauth/authorize"
	LinearTokenURL        = "https://api.linear.app/oauth/token"
	LinearSignatureHeader = "Linear-Signature"

	LinearDefaultMinuteMaxRequests = 240
	LinearDefaultDayMaxRequests    = 14400
)

var LinearDefaultScopes = []string{"read", "write", "issues:create"}

// LinearIssueFields is the issue selection used by every issue operation.
const LinearIssueFields = `title
description
state {
  id
  name
}
assignee {
  id
  name
}`

func LinearLimits() tentacles.Limits {
	return tentacles.Limits{
		Read: []tentacles.Window{
			{Name: "minute", Limit: LinearDefaultMinuteMaxRequests, Duration: time.Minute},
			{Name: "day", Limit: LinearDefaultDayMaxRequests, Duration: 24 * time.Hour},
		},
	}
}

// LinearFields selects the Linear-specific fields per resource type.
var LinearFields = tentacles.FieldsFunc(func(resourceType string) string {
	if resourceType == "issue" {
		return LinearIssueFields
	}
	return ""
})

// Linear speaks GraphQL; Issues maps CRUD onto issue queries and mutations.
type Linear struct {
	*tentacles.GraphQLClient
	// OAuth is set when the client authenticates with the authorization-code flow.
	OAuth  *auth.AuthorizationCode
	Issues *tentacles.Resource
}

// NewLinear uses the personal API key when one is configured (sent raw in
// Authorization) and the OAuth flow otherwise.
func NewLinear(ctx context.Context, o Options) (*Linear, error) {
	ps := o.settings().Provider(LinearName)

	var a tentacles.Authenticator
	var oauth *auth.AuthorizationCode
	key, keyErr := auth.NewAPIKey(auth.APIKeyConfig{Key: ps.APIKey, EnvVar: "LINEAR_API_KEY"})
	switch {
	case keyErr == nil:
		a = key
	case ps.ClientID != "":
		scopes := ps.Scopes
		if len(scopes) == 0 {
			scopes = LinearDefaultScopes
		}
		var err error
		oauth, err = auth.NewAuthorizationCode(ctx, auth.AuthorizationCodeConfig{
			Service:      LinearName,
			ClientID:     ps.ClientID,
			ClientSecret: ps.ClientSecret,
			AuthURL:      LinearAuthURL,
			TokenURL:     LinearTokenURL,
			RedirectURL:  ps.RedirectURI,
			Scopes:       scopes,
			Store:        o.Store,
			HTTPClient:   o.HTTPClient,
			Logger:       o.Logger,
		})
		if err != nil {
			return nil, err
		}
		a = oauth
	default:
		return nil, keyErr
	}

	client, err := o.newClient(tentacles.ProviderConfig{
		Name:       LinearName,
		BaseURL:    LinearBaseURL,
		Limits:     LinearLimits(),
		Pagination: tentacles.PaginationRelay,
		Translator: tentacles.GraphQLTranslator{Provider: LinearName},
	}, a)
	if err != nil {
		return nil, err
	}
	gql := tentacles.NewGraphQLClient(client, LinearFields)
	return &Linear{
		GraphQLClient: gql,
		OAuth:         oauth,
		Issues:        tentacles.NewResource(gql, tentacles.ResourceConfig{Path: "issue"}),
	}, nil
}

// NewLinearWebhook dispatches on "{type}.{action}", e.g. "issue.create".
func NewLinearWebhook(o Options) (*webhook.Engine, webhook.ListenerConfig, error) {
	engine, err := o.newEngine(webhook.Config{
		Provider:  LinearName,
		EventType: webhook.CompositeEventType("type", "action"),
		Validate:  validateLinearPayload,
	})
	if err != nil {
		return nil, webhook.ListenerConfig{}, err
	}
	return engine, webhook.ListenerConfig{SignatureHeader: LinearSignatureHeader, Logger: o.logger()}, nil
}

var (
	linearActions = map[string]bool{"create": true, "update": true, "remove": true, "restore": true}
	linearTypes   = map[string]bool{
		"Issue": true, "Comment": true, "Project": true, "Cycle": true, "Reaction": true,
		"IssueLabel": true, "IssueAttachment": true, "ProjectUpdate": true, "Document": true, "User": true,
	}
)

func validateLinearPayload(payload map[string]interface{}) error {
	if err := webhook.RequireFields("action", "type", "data")(payload); err != nil {
		return err
	}
	if action, _ := payload["action"].(string); !linearActions[action] {
		return tentacles.NewError(tentacles.ErrValidation, "unknown Linear webhook action %q", action)
	}
	if typ, _ := payload["type"].(string); !linearTypes[typ] {
		return tentacles.NewError(tentacles.ErrValidation, "unknown Linear webhook type %q", typ)
	}
	return nil
}
