// Package auth implements the credential strategies tentacles authenticate
// with: static API keys, the OAuth2 authorization-code and implicit flows and
// the OAuth2 JWT-bearer grant. Every strategy satisfies tentacles.Authenticator.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/opengovern/tentacles"
	"github.com/opengovern/tentacles/tokenstore"
)

// DefaultTokenLifetime applies when a token response carries no expires_in.
const DefaultTokenLifetime = 3600 * time.Second

// RefreshFunc obtains a fresh credential.
type RefreshFunc func(ctx context.Context) error

// tokenState is the credential one strategy owns plus the machinery to refresh
// it at most once for any number of concurrent callers.
type tokenState struct {
	mu          sync.RWMutex
	token       *oauth2.Token
	instanceURL string
	group       singleflight.Group
	now         func() time.Time
}

func newTokenState() *tokenState {
	return &tokenState{now: time.Now}
}

func (s *tokenState) get() *oauth2.Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == nil {
		return nil
	}
	tok := *s.token
	return &tok
}

func (s *tokenState) set(tok *oauth2.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = tok
}

func (s *tokenState) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = nil
	s.instanceURL = ""
}

func (s *tokenState) refreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == nil {
		return ""
	}
	return s.token.RefreshToken
}

// expired reports now >= expiry. A token without an access token is expired;
// a token without an expiry never is.
func (s *tokenState) expired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == nil || s.token.AccessToken == "" {
		return true
	}
	if s.token.Expiry.IsZero() {
		return false
	}
	return !s.now().Before(s.token.Expiry)
}

func (s *tokenState) hasCredential() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != nil && (s.token.AccessToken != "" || s.token.RefreshToken != "")
}

// ensure runs refresh once when the token is expired. Concurrent callers share
// the single in-flight refresh.
func (s *tokenState) ensure(ctx context.Context, refresh RefreshFunc) error {
	if !s.expired() {
		return nil
	}
	_, err, _ := s.group.Do("refresh", func() (interface{}, error) {
		if !s.expired() {
			return nil, nil
		}
		return nil, refresh(ctx)
	})
	return err
}

// force runs refresh even if the token looks valid, still coalescing callers.
func (s *tokenState) force(ctx context.Context, refresh RefreshFunc) error {
	_, err, _ := s.group.Do("refresh", func() (interface{}, error) {
		return nil, refresh(ctx)
	})
	return err
}

func (s *tokenState) bearerHeaders() (map[string]string, error) {
	tok := s.get()
	if tok == nil || tok.AccessToken == "" {
		return nil, tentacles.NewError(tentacles.ErrAuthentication, "not authenticated")
	}
	tokenType := tok.Type()
	return map[string]string{"Authorization": tokenType + " " + tok.AccessToken}, nil
}

// tokenResponse is the JSON an OAuth2 token endpoint answers with.
type tokenResponse struct {
	AccessToken  string      `json:"access_token"`
	TokenType    string      `json:"token_type"`
	RefreshToken string      `json:"refresh_token,omitempty"`
	ExpiresIn    interface{} `json:"expires_in,omitempty"`
	InstanceURL  string      `json:"instance_url,omitempty"`
	IssuedAt     string      `json:"issued_at,omitempty"`
}

func (tr *tokenResponse) expiresIn() time.Duration {
	switch v := tr.ExpiresIn.(type) {
	case float64:
		if v > 0 {
			return time.Duration(v) * time.Second
		}
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return 0
}

// toToken builds the new credential, keeping previous's refresh token when the
// response omits one.
func (tr *tokenResponse) toToken(previous *oauth2.Token, now time.Time) *oauth2.Token {
	lifetime := tr.expiresIn()
	if lifetime == 0 {
		lifetime = DefaultTokenLifetime
	}
	tok := &oauth2.Token{
		AccessToken:  tr.AccessToken,
		TokenType:    tr.TokenType,
		RefreshToken: tr.RefreshToken,
		Expiry:       now.Add(lifetime),
	}
	if tok.RefreshToken == "" && previous != nil {
		tok.RefreshToken = previous.RefreshToken
	}
	return tok
}

// requestToken POSTs form to tokenURL. Any non-200 answer is an
// authentication error carrying the response body.
func requestToken(ctx context.Context, hc *http.Client, provider, tokenURL string, form url.Values) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, tentacles.WrapError(tentacles.ErrConfiguration, err, "build token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return nil, &tentacles.Error{Kind: tentacles.ErrAuthentication, Provider: provider, Message: "token request failed", Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, &tentacles.Error{
			Kind:       tentacles.ErrAuthentication,
			Provider:   provider,
			StatusCode: resp.StatusCode,
			Message:    "token request failed: " + strings.TrimSpace(string(body)),
			Body:       body,
		}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, &tentacles.Error{Kind: tentacles.ErrAuthentication, Provider: provider, Message: "parse token response", Body: body, Err: err}
	}
	if tr.AccessToken == "" {
		return nil, &tentacles.Error{Kind: tentacles.ErrAuthentication, Provider: provider, Message: "token response has no access_token", Body: body}
	}
	return &tr, nil
}

// persistence wires a strategy to an optional token store. Every operation is
// best-effort: failures are logged, never returned.
type persistence struct {
	service string
	store   tokenstore.Store
	logger  logrus.FieldLogger
}

func (p persistence) load(ctx context.Context, s *tokenState) {
	if p.store == nil {
		return
	}
	stored, err := p.store.Load(ctx, p.service)
	if err != nil {
		if !errors.Is(err, tokenstore.ErrNotFound) {
			p.logger.WithError(err).WithField("service", p.service).Warn("ignoring unreadable stored token")
		}
		return
	}
	s.mu.Lock()
	s.token = &oauth2.Token{
		AccessToken:  stored.AccessToken,
		RefreshToken: stored.RefreshToken,
		Expiry:       stored.ExpiryTime(),
	}
	s.instanceURL = stored.InstanceURL
	s.mu.Unlock()
	p.logger.WithField("service", p.service).Debug("loaded stored token")
}

func (p persistence) save(ctx context.Context, s *tokenState) {
	if p.store == nil {
		return
	}
	s.mu.RLock()
	if s.token == nil {
		s.mu.RUnlock()
		return
	}
	stored := &tokenstore.Token{
		AccessToken:  s.token.AccessToken,
		RefreshToken: s.token.RefreshToken,
		InstanceURL:  s.instanceURL,
	}
	if !s.token.Expiry.IsZero() {
		stored.Expiry = s.token.Expiry.Unix()
	}
	s.mu.RUnlock()

	if err := p.store.Save(ctx, p.service, stored); err != nil {
		p.logger.WithError(err).WithField("service", p.service).Warn("failed to persist token")
	}
}

func (p persistence) remove(ctx context.Context) {
	if p.store == nil {
		return
	}
	if err := p.store.Delete(ctx, p.service); err != nil {
		p.logger.WithError(err).WithField("service", p.service).Warn("failed to delete stored token")
	}
}

func defaultHTTPClient(hc *http.Client) *http.Client {
	if hc != nil {
		return hc
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func defaultLogger(l logrus.FieldLogger) logrus.FieldLogger {
	if l != nil {
		return l
	}
	return logrus.StandardLogger()
}
