// config.go
// ----------
// This file defines the ProviderConfig structure, which describes how the base
// client talks to one provider: where it lives, which rate-limit windows apply
// to reads and writes, how responses are cached, how pages are requested and
// how failures are translated.
//
// Zero values pick the defaults (cache of 100 entries for 10 minutes,
// offset/limit pagination, status-code translation, no retries).
package tentacles

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultTimeout     = 30 * time.Second
	DefaultBaseBackoff = time.Second
	maxBackoff         = 30 * time.Second
)

// ProviderConfig allows per-provider customization of the request pipeline.
type ProviderConfig struct {
	Name    string
	BaseURL string
	// BasePath is appended to an authenticator-supplied instance URL.
	BasePath string

	Limits Limits

	CacheSize int           // 0 means DefaultCacheSize, negative disables caching
	CacheTTL  time.Duration // 0 means DefaultCacheTTL

	Pagination PaginationStrategy
	Translator ErrorTranslator

	// DefaultHeaders are sent on every request; caller headers win.
	DefaultHeaders map[string]string

	MaxRetries  int           // Retries on transport errors, 429 and 5xx. 0 disables.
	BaseBackoff time.Duration // Initial backoff duration for exponential backoff
	Timeout     time.Duration
}

func (c ProviderConfig) withDefaults() ProviderConfig {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.CacheSize == 0 {
		c.CacheSize = DefaultCacheSize
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.Pagination == nil {
		c.Pagination = PaginationOffsetLimit
	}
	if c.Translator == nil {
		c.Translator = StatusTranslator{Provider: c.Name}
	}
	if c.BaseBackoff == 0 {
		c.BaseBackoff = DefaultBaseBackoff
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.DefaultHeaders == nil {
		c.DefaultHeaders = map[string]string{}
	}
	if _, ok := c.DefaultHeaders["Content-Type"]; !ok {
		c.DefaultHeaders["Content-Type"] = "application/json"
	}
	return c
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for provider calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger. The default is the logrus standard logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics records request, cache and rate-limit metrics on m.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithRateLimiter shares a limiter between clients of the same provider account.
func WithRateLimiter(r *RateLimiter) Option {
	return func(c *Client) { c.rateLimiter = r }
}
