package auth

import (
	"context"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/opengovern/tentacles"
	"github.com/opengovern/tentacles/internal"
	"github.com/opengovern/tentacles/tokenstore"
)

// Compile-time interface checks.
var (
	_ tentacles.Authenticator       = (*Implicit)(nil)
	_ tentacles.InstanceURLProvider = (*Implicit)(nil)
)

type ImplicitConfig struct {
	Service      string
	ClientID     string
	ClientSecret string
	AuthURL      string
	// TokenURL is used for refresh-token grants when the provider issued a refresh token.
	TokenURL    string
	RedirectURL string
	Scopes      []string

	Store      tokenstore.Store
	HTTPClient *http.Client
	Logger     logrus.FieldLogger
}

// Implicit implements the OAuth2 implicit flow, where tokens come back in the
// redirect URL fragment together with the instance URL to call.
type Implicit struct {
	cfg     ImplicitConfig
	oauth   *oauth2.Config
	hc      *http.Client
	logger  logrus.FieldLogger
	state   *tokenState
	persist persistence
}

func NewImplicit(ctx context.Context, cfg ImplicitConfig) (*Implicit, error) {
	if cfg.ClientID == "" || cfg.RedirectURL == "" {
		return nil, &tentacles.Error{Kind: tentacles.ErrAuthentication, Provider: cfg.Service,
			Message: "client_id and redirect_uri are required"}
	}
	logger := defaultLogger(cfg.Logger).WithField("service", cfg.Service)
	i := &Implicit{
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID:    cfg.ClientID,
			RedirectURL: cfg.RedirectURL,
			Scopes:      cfg.Scopes,
			Endpoint:    oauth2.Endpoint{AuthURL: cfg.AuthURL, TokenURL: cfg.TokenURL},
		},
		hc:      defaultHTTPClient(cfg.HTTPClient),
		logger:  logger,
		state:   newTokenState(),
		persist: persistence{service: cfg.Service, store: cfg.Store, logger: logger},
	}
	i.persist.load(ctx, i.state)
	return i, nil
}

// AuthURL is the authorization URL with response_type=token.
func (i *Implicit) AuthURL(state string) string {
	return i.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("response_type", "token"))
}

// TokensFromRedirect reads access_token, refresh_token, instance_url and
// issued_at (epoch ms) from the redirect URL fragment. The token is valid for
// DefaultTokenLifetime from issued_at.
func (i *Implicit) TokensFromRedirect(ctx context.Context, redirectURL string) error {
	u, err := url.Parse(redirectURL)
	if err != nil {
		return tentacles.WrapError(tentacles.ErrAuthentication, err, "parse redirect URL")
	}
	fragment, err := url.ParseQuery(u.Fragment)
	if err != nil {
		return tentacles.WrapError(tentacles.ErrAuthentication, err, "parse redirect URL fragment")
	}
	if e := fragment.Get("error"); e != "" {
		return &tentacles.Error{Kind: tentacles.ErrAuthentication, Provider: i.cfg.Service,
			Code: e, Message: "authorization denied: " + fragment.Get("error_description")}
	}
	access := fragment.Get("access_token")
	if access == "" {
		return &tentacles.Error{Kind: tentacles.ErrAuthentication, Provider: i.cfg.Service,
			Message: "no access token found in the redirect URL fragment"}
	}

	issuedAt := internal.ParseMillis(fragment.Get("issued_at"), i.state.now())
	i.state.mu.Lock()
	i.state.token = &oauth2.Token{
		AccessToken:  access,
		TokenType:    fragment.Get("token_type"),
		RefreshToken: fragment.Get("refresh_token"),
		Expiry:       issuedAt.Add(DefaultTokenLifetime),
	}
	i.state.instanceURL = fragment.Get("instance_url")
	i.state.mu.Unlock()

	i.persist.save(ctx, i.state)
	i.logger.Info("implicit grant tokens received")
	return nil
}

// Authorize runs the interactive implicit flow.
func (i *Implicit) Authorize(ctx context.Context, p Prompter) error {
	redirect, err := p.Prompt(ctx, i.AuthURL(""))
	if err != nil {
		return tentacles.WrapError(tentacles.ErrAuthentication, err, "authorization prompt")
	}
	return i.TokensFromRedirect(ctx, redirect)
}

func (i *Implicit) InstanceURL() string {
	i.state.mu.RLock()
	defer i.state.mu.RUnlock()
	return i.state.instanceURL
}

func (i *Implicit) Refresh(ctx context.Context) error {
	return i.state.force(ctx, i.refreshGrant)
}

func (i *Implicit) refreshGrant(ctx context.Context) error {
	refreshToken := i.state.refreshToken()
	if refreshToken == "" || i.cfg.TokenURL == "" {
		return &tentacles.Error{Kind: tentacles.ErrAuthentication, Provider: i.cfg.Service,
			Message: "token expired and no refresh token available, authorize again"}
	}
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", i.cfg.ClientID)
	if i.cfg.ClientSecret != "" {
		form.Set("client_secret", i.cfg.ClientSecret)
	}
	form.Set("refresh_token", refreshToken)

	tr, err := requestToken(ctx, i.hc, i.cfg.Service, i.cfg.TokenURL, form)
	if err != nil {
		return err
	}
	now := i.state.now()
	tok := tr.toToken(i.state.get(), now)
	if tr.IssuedAt != "" && tr.expiresIn() == 0 {
		tok.Expiry = internal.ParseMillis(tr.IssuedAt, now).Add(DefaultTokenLifetime)
	}

	i.state.mu.Lock()
	i.state.token = tok
	if tr.InstanceURL != "" {
		i.state.instanceURL = tr.InstanceURL
	}
	i.state.mu.Unlock()

	i.persist.save(ctx, i.state)
	i.logger.Debug("access token refreshed")
	return nil
}

func (i *Implicit) EnsureValidToken(ctx context.Context) error {
	if !i.state.hasCredential() {
		return &tentacles.Error{Kind: tentacles.ErrAuthentication, Provider: i.cfg.Service,
			Message: "not authenticated, run the authorization flow first"}
	}
	return i.state.ensure(ctx, i.refreshGrant)
}

func (i *Implicit) AuthHeaders(ctx context.Context) (map[string]string, error) {
	if err := i.EnsureValidToken(ctx); err != nil {
		return nil, err
	}
	return i.state.bearerHeaders()
}

func (i *Implicit) Token() *oauth2.Token {
	return i.state.get()
}

func (i *Implicit) Clear(ctx context.Context) {
	i.state.clear()
	i.persist.remove(ctx)
}
