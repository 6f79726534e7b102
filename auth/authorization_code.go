package auth

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/opengovern/tentacles"
	"github.com/opengovern/tentacles/tokenstore"
)

// Compile-time interface check.
var _ tentacles.Authenticator = (*AuthorizationCode)(nil)

type AuthorizationCodeConfig struct {
	// Service names the persisted token, e.g. "hubspot".
	Service      string
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	RedirectURL  string
	Scopes       []string

	Store      tokenstore.Store
	HTTPClient *http.Client
	Logger     logrus.FieldLogger
	// Refresher replaces the refresh-token grant when set.
	Refresher RefreshFunc
}

// AuthorizationCode implements the OAuth2 authorization-code flow.
type AuthorizationCode struct {
	cfg     AuthorizationCodeConfig
	oauth   *oauth2.Config
	hc      *http.Client
	logger  logrus.FieldLogger
	state   *tokenState
	persist persistence
}

// NewAuthorizationCode validates cfg and warm-starts from the token store.
func NewAuthorizationCode(ctx context.Context, cfg AuthorizationCodeConfig) (*AuthorizationCode, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RedirectURL == "" {
		return nil, &tentacles.Error{Kind: tentacles.ErrAuthentication, Provider: cfg.Service,
			Message: "client_id, client_secret and redirect_uri are required"}
	}
	if cfg.TokenURL == "" {
		return nil, &tentacles.Error{Kind: tentacles.ErrConfiguration, Provider: cfg.Service, Message: "token URL is required"}
	}

	logger := defaultLogger(cfg.Logger).WithField("service", cfg.Service)
	a := &AuthorizationCode{
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     oauth2.Endpoint{AuthURL: cfg.AuthURL, TokenURL: cfg.TokenURL},
		},
		hc:      defaultHTTPClient(cfg.HTTPClient),
		logger:  logger,
		state:   newTokenState(),
		persist: persistence{service: cfg.Service, store: cfg.Store, logger: logger},
	}
	a.persist.load(ctx, a.state)
	return a, nil
}

// AuthCodeURL is the URL the user opens to grant access.
func (a *AuthorizationCode) AuthCodeURL(state string) string {
	return a.oauth.AuthCodeURL(state)
}

// CodeFromRedirect extracts the authorization code from the redirect URL's query string.
func (a *AuthorizationCode) CodeFromRedirect(redirectURL string) (string, error) {
	u, err := url.Parse(redirectURL)
	if err != nil {
		return "", tentacles.WrapError(tentacles.ErrAuthentication, err, "parse redirect URL")
	}
	q := u.Query()
	if e := q.Get("error"); e != "" {
		return "", &tentacles.Error{Kind: tentacles.ErrAuthentication, Provider: a.cfg.Service,
			Code: e, Message: "authorization denied: " + q.Get("error_description")}
	}
	code := q.Get("code")
	if code == "" {
		return "", &tentacles.Error{Kind: tentacles.ErrAuthentication, Provider: a.cfg.Service,
			Message: "no authorization code in redirect URL"}
	}
	return code, nil
}

// Exchange trades an authorization code for tokens.
func (a *AuthorizationCode) Exchange(ctx context.Context, code string) error {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", a.cfg.ClientID)
	form.Set("client_secret", a.cfg.ClientSecret)
	form.Set("redirect_uri", a.cfg.RedirectURL)
	form.Set("code", code)

	tr, err := requestToken(ctx, a.hc, a.cfg.Service, a.cfg.TokenURL, form)
	if err != nil {
		return err
	}
	a.state.set(tr.toToken(a.state.get(), a.state.now()))
	a.persist.save(ctx, a.state)
	a.logger.Info("authorization code exchanged")
	return nil
}

// Authorize runs the interactive flow: show the URL, wait for the redirect,
// exchange the code. No lock is held while the prompt waits.
func (a *AuthorizationCode) Authorize(ctx context.Context, p Prompter) error {
	redirect, err := p.Prompt(ctx, a.AuthCodeURL(""))
	if err != nil {
		return tentacles.WrapError(tentacles.ErrAuthentication, err, "authorization prompt")
	}
	code, err := a.CodeFromRedirect(redirect)
	if err != nil {
		return err
	}
	return a.Exchange(ctx, code)
}

// Refresh forces a new access token.
func (a *AuthorizationCode) Refresh(ctx context.Context) error {
	return a.state.force(ctx, a.refresher())
}

func (a *AuthorizationCode) refresher() RefreshFunc {
	if a.cfg.Refresher != nil {
		return a.cfg.Refresher
	}
	return a.refreshGrant
}

func (a *AuthorizationCode) refreshGrant(ctx context.Context) error {
	refreshToken := a.state.refreshToken()
	if refreshToken == "" {
		return &tentacles.Error{Kind: tentacles.ErrAuthentication, Provider: a.cfg.Service,
			Message: "no refresh token available, authorize first"}
	}
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", a.cfg.ClientID)
	form.Set("client_secret", a.cfg.ClientSecret)
	form.Set("redirect_uri", a.cfg.RedirectURL)
	form.Set("refresh_token", refreshToken)

	tr, err := requestToken(ctx, a.hc, a.cfg.Service, a.cfg.TokenURL, form)
	if err != nil {
		return err
	}
	a.state.set(tr.toToken(a.state.get(), a.state.now()))
	a.persist.save(ctx, a.state)
	a.logger.Debug("access token refreshed")
	return nil
}

func (a *AuthorizationCode) EnsureValidToken(ctx context.Context) error {
	if !a.state.hasCredential() {
		return &tentacles.Error{Kind: tentacles.ErrAuthentication, Provider: a.cfg.Service,
			Message: "not authenticated, run the authorization flow first"}
	}
	return a.state.ensure(ctx, a.refresher())
}

func (a *AuthorizationCode) AuthHeaders(ctx context.Context) (map[string]string, error) {
	if err := a.EnsureValidToken(ctx); err != nil {
		return nil, err
	}
	return a.state.bearerHeaders()
}

// Token returns a copy of the current credential, or nil.
func (a *AuthorizationCode) Token() *oauth2.Token {
	return a.state.get()
}

// SetToken installs a credential obtained elsewhere and persists it.
func (a *AuthorizationCode) SetToken(ctx context.Context, tok *oauth2.Token) {
	a.state.set(tok)
	a.persist.save(ctx, a.state)
}

// Clear drops the credential and its persisted copy.
func (a *AuthorizationCode) Clear(ctx context.Context) {
	a.state.clear()
	a.persist.remove(ctx)
}

// setClock is used by tests.
func (a *AuthorizationCode) setClock(now func() time.Time) {
	a.state.now = now
}
