// client.go
// ---------
// The client.go file contains the core Client struct and its methods.
// A Client is the base of every tentacle: one per provider account.
//
// Key functionalities include:
// - Initializing a client with NewClient()
// - Making requests via client.Do() or client.Request()
// - Serving repeated reads from the response cache
// - Exposing the pagination strategy resources build their list calls with
//
// The Client relies on a RateLimiter and a RequestExecutor to handle rate
// limiting, authentication refresh and retries, so every provider behaves the
// same way.
package tentacles

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Client struct {
	mu          sync.Mutex
	config      ProviderConfig
	auth        Authenticator
	httpClient  *http.Client
	rateLimiter *RateLimiter
	cache       *ResponseCache
	executor    *RequestExecutor
	logger      logrus.FieldLogger
	metrics     *Metrics

	Debug bool // If true, log request decisions at debug level
}

// NewClient builds a client for one provider. auth may be nil for
// unauthenticated APIs.
func NewClient(config ProviderConfig, auth Authenticator, opts ...Option) (*Client, error) {
	config = config.withDefaults()
	if err := validateLimits(config.Limits); err != nil {
		return nil, err
	}

	c := &Client{
		config:      config,
		auth:        auth,
		rateLimiter: NewRateLimiter(),
		logger:      logrus.StandardLogger(),
	}
	if config.CacheSize > 0 {
		c.cache = NewResponseCache(config.CacheSize, config.CacheTTL)
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: config.Timeout}
	}
	c.executor = NewRequestExecutor(c)
	return c, nil
}

func validateLimits(l Limits) error {
	for _, w := range append(append([]Window{}, l.Read...), l.Write...) {
		if w.Name == "" {
			return NewError(ErrConfiguration, "rate limit window needs a name")
		}
		if w.Limit > 0 && w.Duration <= 0 {
			return NewError(ErrConfiguration, "rate limit window %q has limit %d but no duration", w.Name, w.Limit)
		}
	}
	return nil
}

// SetDebug enables or disables debug logging for the client.
func (c *Client) SetDebug(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Debug = enabled
}

func (c *Client) Name() string { return c.config.Name }

func (c *Client) Pagination() PaginationStrategy { return c.config.Pagination }

func (c *Client) Authenticator() Authenticator { return c.auth }

func (c *Client) RateLimiter() *RateLimiter { return c.rateLimiter }

// Request is the keyword-style entry point: a call with query parameters and no body.
func (c *Client) Request(ctx context.Context, method, endpoint string, useCache bool, params map[string]interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: method, Endpoint: endpoint, UseCache: useCache, Params: params})
}

// Do sends req through cache, auth, rate limiting and error translation.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	req.Method = strings.ToUpper(req.Method)

	cacheable := req.UseCache && req.IsRead() && c.cache.Enabled()
	var key string
	if cacheable {
		key = CacheKey(req.Method, req.Endpoint, req.Params)
		if resp, ok := c.cache.Get(key); ok {
			c.metrics.ObserveCache(c.config.Name, true)
			c.debugf("cache hit for %s", key)
			return resp, nil
		}
		c.metrics.ObserveCache(c.config.Name, false)
	}

	log := c.logger.WithFields(logrus.Fields{
		"provider":   c.config.Name,
		"method":     req.Method,
		"endpoint":   req.Endpoint,
		"request_id": uuid.NewString(),
	})
	resp, err := c.executor.ExecuteWithRetry(ctx, req, log)
	if err != nil {
		log.WithError(err).Warn("provider request failed")
		return resp, err
	}

	if cacheable {
		c.cache.Set(key, resp)
	}
	return resp, nil
}

// ClearCache drops every cached response.
func (c *Client) ClearCache() {
	if c.cache != nil {
		c.cache.Clear()
	}
}

func (c *Client) CacheStats() CacheStats {
	if c.cache == nil {
		return CacheStats{}
	}
	return c.cache.Stats()
}

// buildHTTPRequest resolves auth headers, merges headers and encodes the body.
func (c *Client) buildHTTPRequest(ctx context.Context, req *Request) (*http.Request, error) {
	headers := map[string]string{}
	query := url.Values{}
	if c.auth != nil {
		authHeaders, err := c.auth.AuthHeaders(ctx)
		if err != nil {
			return nil, asAuthError(c.config.Name, err)
		}
		for k, v := range authHeaders {
			headers[k] = v
		}
		if qa, ok := c.auth.(QueryAuthenticator); ok {
			authQuery, err := qa.AuthQuery(ctx)
			if err != nil {
				return nil, asAuthError(c.config.Name, err)
			}
			for k, v := range authQuery {
				query.Set(k, v)
			}
		}
	}
	// After auth: an instance URL may only be known once a token was issued.
	fullURL, err := c.resolveURL(req.Endpoint)
	if err != nil {
		return nil, err
	}

	for k, v := range c.config.DefaultHeaders {
		if _, ok := headers[k]; !ok {
			headers[k] = v
		}
	}
	for k, v := range req.Headers {
		headers[k] = v
	}

	encodeQuery(query, req.Params)
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(fullURL, "?") {
			sep = "&"
		}
		fullURL += sep + query.Encode()
	}

	body, err := encodeBody(req.Body, headers["Content-Type"])
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, fullURL, body)
	if err != nil {
		return nil, WrapError(ErrValidation, err, "build request for %s", req.Endpoint)
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}
	return httpReq, nil
}

func (c *Client) resolveURL(endpoint string) (string, error) {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint, nil
	}
	base := c.config.BaseURL
	if ip, ok := c.auth.(InstanceURLProvider); ok && ip.InstanceURL() != "" {
		base = strings.TrimRight(ip.InstanceURL(), "/") + c.config.BasePath
	}
	if base == "" {
		return "", NewError(ErrConfiguration, "%s: no base URL configured", c.config.Name)
	}
	if endpoint == "" {
		return base, nil
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(endpoint, "/"), nil
}

// send issues the call and normalizes the response.
func (c *Client) send(httpReq *http.Request) (*Response, error) {
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Headers:    normalizeHeaders(resp.Header),
		Data:       data,
	}, nil
}

func encodeQuery(q url.Values, params map[string]interface{}) {
	for k, v := range params {
		switch val := v.(type) {
		case nil:
		case []string:
			for _, s := range val {
				q.Add(k, s)
			}
		case []interface{}:
			for _, item := range val {
				q.Add(k, fmt.Sprint(item))
			}
		default:
			q.Set(k, fmt.Sprint(val))
		}
	}
}

func encodeBody(body interface{}, contentType string) (io.Reader, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return bytes.NewReader(b), nil
	case json.RawMessage:
		return bytes.NewReader(b), nil
	case string:
		return strings.NewReader(b), nil
	}

	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") {
		m, ok := body.(map[string]interface{})
		if !ok {
			return nil, NewError(ErrValidation, "form bodies must be a map, got %T", body)
		}
		form := url.Values{}
		encodeForm(form, "", m)
		return strings.NewReader(form.Encode()), nil
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, WrapError(ErrValidation, err, "encode request body")
	}
	return bytes.NewReader(raw), nil
}

// encodeForm flattens nested maps into bracketed keys, e.g. metadata[plan]=pro.
func encodeForm(form url.Values, prefix string, m map[string]interface{}) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		name := k
		if prefix != "" {
			name = prefix + "[" + k + "]"
		}
		switch v := m[k].(type) {
		case map[string]interface{}:
			encodeForm(form, name, v)
		case []interface{}:
			for i, item := range v {
				form.Add(fmt.Sprintf("%s[%d]", name, i), fmt.Sprint(item))
			}
		case nil:
		default:
			form.Set(name, fmt.Sprint(v))
		}
	}
}

func asAuthError(provider string, err error) error {
	if KindOf(err) != nil {
		return err
	}
	return &Error{Kind: ErrAuthentication, Provider: provider, Message: "obtain credentials", Err: err}
}

// debugf logs at debug level if Debug mode is enabled.
func (c *Client) debugf(format string, args ...interface{}) {
	c.mu.Lock()
	debug := c.Debug
	c.mu.Unlock()
	if debug {
		c.logger.WithField("provider", c.config.Name).Debugf(format, args...)
	}
}
