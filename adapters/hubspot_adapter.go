package adapters

import (
	"context"
	"net/http"
	"time"

	"github.com/opengovern/tentacles"
	"github.com/opengovern/tentacles/auth"
)

const (
	HubSpotName     = "hubspot"
	HubSpotBaseURL  = "https://api.hubapi.com"
	HubSpotAuthURL  = "https://app.hubspot.com/oauth/authorize"
	HubSpotTokenURL = "https://api.hubapi.com/oauth/v1/token"

	// 100 requests per 10 seconds for OAuth apps.
	HubSpotDefaultMaxRequests = 100
	HubSpotDefaultWindow      = 10 * time.Second
)

var HubSpotDefaultScopes = []string{"crm.objects.contacts.write", "oauth", "crm.objects.contacts.read"}

func HubSpotLimits() tentacles.Limits {
	return tentacles.Limits{
		Read: []tentacles.Window{{Name: "ten_seconds", Limit: HubSpotDefaultMaxRequests, Duration: HubSpotDefaultWindow}},
	}
}

// HubSpot exposes the CRM v3 objects over the authorization-code flow.
type HubSpot struct {
	*tentacles.Client
	OAuth *auth.AuthorizationCode

	Contacts *tentacles.Resource
	Deals    *tentacles.Resource
	Tasks    *tentacles.Resource
	Notes    *tentacles.Resource
}

// NewHubSpot needs client_id, client_secret and redirect_uri. A token saved by
// an earlier session is picked up from the store; otherwise run
// OAuth.Authorize before the first call.
func NewHubSpot(ctx context.Context, o Options) (*HubSpot, error) {
	ps := o.settings().Provider(HubSpotName)
	if err := ps.Require(HubSpotName, "client_id", "client_secret", "redirect_uri"); err != nil {
		return nil, err
	}
	scopes := ps.Scopes
	if len(scopes) == 0 {
		scopes = HubSpotDefaultScopes
	}
	oauth, err := auth.NewAuthorizationCode(ctx, auth.AuthorizationCodeConfig{
		Service:      HubSpotName,
		ClientID:     ps.ClientID,
		ClientSecret: ps.ClientSecret,
		AuthURL:      HubSpotAuthURL,
		TokenURL:     HubSpotTokenURL,
		RedirectURL:  ps.RedirectURI,
		Scopes:       scopes,
		Store:        o.Store,
		HTTPClient:   o.HTTPClient,
		Logger:       o.Logger,
	})
	if err != nil {
		return nil, err
	}
	client, err := o.newClient(tentacles.ProviderConfig{
		Name:       HubSpotName,
		BaseURL:    HubSpotBaseURL,
		Limits:     HubSpotLimits(),
		Pagination: hubSpotPagination,
	}, oauth)
	if err != nil {
		return nil, err
	}

	object := func(name string) *tentacles.Resource {
		return tentacles.NewResource(client, tentacles.ResourceConfig{
			Path:         "/crm/v3/objects/" + name,
			UpdateMethod: http.MethodPatch,
			Mapper:       hubSpotProperties{},
		})
	}
	return &HubSpot{
		Client:   client,
		OAuth:    oauth,
		Contacts: object("contacts"),
		Deals:    object("deals"),
		Tasks:    object("tasks"),
		Notes:    object("notes"),
	}, nil
}

// hubSpotPagination pages with limit and an opaque "after" cursor.
var hubSpotPagination = tentacles.PaginationFunc(func(p tentacles.PageRequest) (map[string]interface{}, error) {
	params, err := tentacles.PaginationCursor.Params(p)
	if err != nil {
		return nil, err
	}
	out := map[string]interface{}{"limit": params["limit"]}
	if p.StartingAfter != "" {
		out["after"] = p.StartingAfter
	}
	return out, nil
})

// hubSpotProperties wraps flat bodies in the {"properties": {...}} envelope.
type hubSpotProperties struct{}

func (hubSpotProperties) MapFields(body map[string]interface{}) map[string]interface{} {
	if _, ok := body["properties"]; ok {
		return body
	}
	return map[string]interface{}{"properties": body}
}
