package adapters

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/opengovern/tentacles"
	"github.com/opengovern/tentacles/auth"
)

const (
	SalesforceName       = "salesforce"
	SalesforceLoginURL   = "https://login.salesforce.com"
	SalesforceAPIVersion = "v61.0"

	// Depends on the org's edition; override through the provider's limits.
	SalesforceDefaultDayMaxRequests = 100000
)

func SalesforceLimits() tentacles.Limits {
	return tentacles.Limits{
		Read: []tentacles.Window{{Name: "day", Limit: SalesforceDefaultDayMaxRequests, Duration: 24 * time.Hour}},
	}
}

// SalesforceAuth is either *auth.Implicit or *auth.JWTBearer.
type SalesforceAuth interface {
	tentacles.Authenticator
	tentacles.InstanceURLProvider
}

// Salesforce calls {instance_url}/services/data/{version}.
type Salesforce struct {
	*tentacles.Client
	Auth     SalesforceAuth
	Accounts *tentacles.Resource
}

// NewSalesforce picks the JWT bearer flow when the provider's extra settings
// carry "private_key_file" and "username", and the implicit flow otherwise.
// Recognised extras: api_version, login_url, private_key_password.
func NewSalesforce(ctx context.Context, o Options) (*Salesforce, error) {
	ps := o.settings().Provider(SalesforceName)
	if err := ps.Require(SalesforceName, "client_id"); err != nil {
		return nil, err
	}
	loginURL := strings.TrimRight(ps.Extra["login_url"], "/")
	if loginURL == "" {
		loginURL = SalesforceLoginURL
	}
	version := ps.Extra["api_version"]
	if version == "" {
		version = SalesforceAPIVersion
	}

	var a SalesforceAuth
	if keyFile := ps.Extra["private_key_file"]; keyFile != "" && ps.Extra["username"] != "" {
		key, err := auth.LoadPrivateKey(keyFile, ps.Extra["private_key_password"])
		if err != nil {
			return nil, tentacles.WrapError(tentacles.ErrConfiguration, err, "salesforce private key")
		}
		a, err = auth.NewJWTBearer(ctx, auth.JWTBearerConfig{
			Service:    SalesforceName,
			ClientID:   ps.ClientID,
			Subject:    ps.Extra["username"],
			Audience:   loginURL,
			TokenURL:   loginURL + "/services/oauth2/token",
			PrivateKey: key,
			Store:      o.Store,
			HTTPClient: o.HTTPClient,
			Logger:     o.Logger,
		})
		if err != nil {
			return nil, err
		}
	} else {
		implicit, err := auth.NewImplicit(ctx, auth.ImplicitConfig{
			Service:      SalesforceName,
			ClientID:     ps.ClientID,
			ClientSecret: ps.ClientSecret,
			AuthURL:      loginURL + "/services/oauth2/authorize",
			TokenURL:     loginURL + "/services/oauth2/token",
			RedirectURL:  ps.RedirectURI,
			Scopes:       ps.Scopes,
			Store:        o.Store,
			HTTPClient:   o.HTTPClient,
			Logger:       o.Logger,
		})
		if err != nil {
			return nil, err
		}
		a = implicit
	}

	client, err := o.newClient(tentacles.ProviderConfig{
		Name:     SalesforceName,
		BasePath: "/services/data/" + version,
		Limits:   SalesforceLimits(),
	}, a)
	if err != nil {
		return nil, err
	}
	return &Salesforce{
		Client: client,
		Auth:   a,
		Accounts: tentacles.NewResource(client, tentacles.ResourceConfig{
			Path:         "/sobjects/Account",
			UpdateMethod: http.MethodPatch,
		}),
	}, nil
}

// Query runs a SOQL query, e.g. "SELECT Id, Name FROM Account LIMIT 10".
func (s *Salesforce) Query(ctx context.Context, soql string) (*tentacles.Response, error) {
	if strings.TrimSpace(soql) == "" {
		return nil, tentacles.NewError(tentacles.ErrValidation, "empty SOQL query")
	}
	return s.Do(ctx, &tentacles.Request{
		Method:   http.MethodGet,
		Endpoint: "/query",
		Params:   map[string]interface{}{"q": soql},
	})
}
