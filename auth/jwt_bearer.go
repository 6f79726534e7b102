package auth

import (
	"context"
	"crypto/rsa"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/pkcs12"
	"golang.org/x/oauth2"

	"github.com/opengovern/tentacles"
	"github.com/opengovern/tentacles/tokenstore"
)

// Compile-time interface checks.
var (
	_ tentacles.Authenticator       = (*JWTBearer)(nil)
	_ tentacles.InstanceURLProvider = (*JWTBearer)(nil)
)

const jwtBearerGrant = "urn:ietf:params:oauth:grant-type:jwt-bearer"

type JWTBearerConfig struct {
	Service string
	// ClientID is the assertion issuer.
	ClientID string
	// Subject is the user the token acts for.
	Subject string
	// Audience is the authorization server, e.g. https://login.salesforce.com.
	Audience   string
	TokenURL   string
	PrivateKey *rsa.PrivateKey

	Store      tokenstore.Store
	HTTPClient *http.Client
	Logger     logrus.FieldLogger
}

// JWTBearer obtains tokens non-interactively by signing an RS256 assertion
// (RFC 7523). Refreshing simply signs a new assertion.
type JWTBearer struct {
	cfg     JWTBearerConfig
	hc      *http.Client
	logger  logrus.FieldLogger
	state   *tokenState
	persist persistence
}

func NewJWTBearer(ctx context.Context, cfg JWTBearerConfig) (*JWTBearer, error) {
	if cfg.ClientID == "" || cfg.Subject == "" || cfg.TokenURL == "" || cfg.PrivateKey == nil {
		return nil, &tentacles.Error{Kind: tentacles.ErrConfiguration, Provider: cfg.Service,
			Message: "client id, subject, token URL and private key are required"}
	}
	if cfg.Audience == "" {
		cfg.Audience = cfg.TokenURL
	}
	logger := defaultLogger(cfg.Logger).WithField("service", cfg.Service)
	j := &JWTBearer{
		cfg:     cfg,
		hc:      defaultHTTPClient(cfg.HTTPClient),
		logger:  logger,
		state:   newTokenState(),
		persist: persistence{service: cfg.Service, store: cfg.Store, logger: logger},
	}
	j.persist.load(ctx, j.state)
	return j, nil
}

// assertion builds the signed JWT sent as the grant's assertion parameter.
func (j *JWTBearer) assertion(now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"iss": j.cfg.ClientID,
		"sub": j.cfg.Subject,
		"aud": j.cfg.Audience,
		"jti": uuid.NewString(),
		"exp": now.Add(3 * time.Minute).Unix(),
		"iat": now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(j.cfg.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}
	return signed, nil
}

func (j *JWTBearer) Refresh(ctx context.Context) error {
	return j.state.force(ctx, j.grant)
}

func (j *JWTBearer) grant(ctx context.Context) error {
	now := j.state.now()
	assertion, err := j.assertion(now)
	if err != nil {
		return tentacles.WrapError(tentacles.ErrAuthentication, err, "build assertion")
	}
	form := url.Values{}
	form.Set("grant_type", jwtBearerGrant)
	form.Set("assertion", assertion)

	tr, err := requestToken(ctx, j.hc, j.cfg.Service, j.cfg.TokenURL, form)
	if err != nil {
		return err
	}
	j.state.mu.Lock()
	j.state.token = tr.toToken(nil, now)
	if tr.InstanceURL != "" {
		j.state.instanceURL = tr.InstanceURL
	}
	j.state.mu.Unlock()

	j.persist.save(ctx, j.state)
	j.logger.Debug("jwt bearer token issued")
	return nil
}

func (j *JWTBearer) EnsureValidToken(ctx context.Context) error {
	return j.state.ensure(ctx, j.grant)
}

func (j *JWTBearer) AuthHeaders(ctx context.Context) (map[string]string, error) {
	if err := j.EnsureValidToken(ctx); err != nil {
		return nil, err
	}
	return j.state.bearerHeaders()
}

func (j *JWTBearer) InstanceURL() string {
	j.state.mu.RLock()
	defer j.state.mu.RUnlock()
	return j.state.instanceURL
}

func (j *JWTBearer) Token() *oauth2.Token {
	return j.state.get()
}

// LoadPrivateKey reads an RSA key from a PEM file, or from a PKCS#12 bundle
// when password is non-empty.
func LoadPrivateKey(path, password string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	if password == "" {
		key, err := jwt.ParseRSAPrivateKeyFromPEM(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse PEM key: %w", err)
		}
		return key, nil
	}

	privateKey, _, err := pkcs12.Decode(data, password)
	if err != nil {
		return nil, fmt.Errorf("failed to decode pkcs12: %w", err)
	}
	rsaKey, ok := privateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not RSA")
	}
	return rsaKey, nil
}
