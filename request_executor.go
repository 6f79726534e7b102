package tentacles

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/opengovern/tentacles/internal"
	"github.com/sirupsen/logrus"
)

// RequestExecutor handles the per-call loop: auth, rate limiting, the single
// refresh-and-retry on 401, optional backoff retries and error translation.
type RequestExecutor struct {
	client *Client
}

func NewRequestExecutor(client *Client) *RequestExecutor {
	return &RequestExecutor{client: client}
}

func (re *RequestExecutor) ExecuteWithRetry(ctx context.Context, req *Request, log logrus.FieldLogger) (*Response, error) {
	c := re.client
	cfg := c.config
	windows := cfg.Limits.For(!req.IsRead())

	refreshed := false
	attempts := 0
	for {
		httpReq, err := c.buildHTTPRequest(ctx, req)
		if err != nil {
			return nil, err
		}

		waited, err := c.rateLimiter.WaitIfNeeded(ctx, windows...)
		if err != nil {
			return nil, &Error{Kind: ErrAPI, Provider: cfg.Name, Message: "waiting for rate limiter", Err: err}
		}
		c.metrics.ObserveRateLimitWait(cfg.Name, waited)
		if waited > 0 {
			c.debugf("waited %v on rate limiter before %s %s", waited, req.Method, req.Endpoint)
		}

		start := time.Now()
		resp, err := c.send(httpReq)
		if err != nil {
			c.metrics.ObserveRequest(cfg.Name, req.Method, 0, time.Since(start))
			if ctx.Err() == nil && attempts < cfg.MaxRetries {
				wait := re.calculateBackoff(cfg.BaseBackoff, attempts)
				log.WithError(err).Debugf("transport error, retrying in %v (attempt %d/%d)", wait, attempts+1, cfg.MaxRetries)
				if err := sleepCtx(ctx, wait); err != nil {
					return nil, &Error{Kind: ErrAPI, Provider: cfg.Name, Message: "request cancelled", Err: err}
				}
				attempts++
				continue
			}
			return nil, &Error{Kind: ErrAPI, Provider: cfg.Name, Message: "transport failure", Err: err}
		}
		c.metrics.ObserveRequest(cfg.Name, req.Method, resp.StatusCode, time.Since(start))

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if attempts > 0 || refreshed {
				log.Debugf("request succeeded after %d retries", attempts)
			}
			return resp, nil
		}

		if resp.StatusCode == http.StatusUnauthorized && c.auth != nil && !refreshed {
			refreshed = true
			log.Info("received 401, refreshing credentials and retrying once")
			if err := c.auth.Refresh(ctx); err != nil {
				return nil, asAuthError(cfg.Name, err)
			}
			continue
		}

		if (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500) && attempts < cfg.MaxRetries {
			wait := re.calculateBackoff(cfg.BaseBackoff, attempts)
			if ra := internal.ParseRetryAfter(resp.Headers["retry-after"], time.Now()); ra > 0 {
				wait = ra
			}
			log.Debugf("status %d, retrying in %v (attempt %d/%d)", resp.StatusCode, wait, attempts+1, cfg.MaxRetries)
			if err := sleepCtx(ctx, wait); err != nil {
				return nil, &Error{Kind: ErrAPI, Provider: cfg.Name, Message: "request cancelled", Err: err}
			}
			attempts++
			continue
		}

		terr := cfg.Translator.Translate(resp)
		if terr == nil {
			terr = &Error{Kind: KindForStatus(resp.StatusCode), Provider: cfg.Name, StatusCode: resp.StatusCode, Body: resp.Data}
		}
		var e *Error
		if !errors.As(terr, &e) {
			terr = &Error{Kind: KindForStatus(resp.StatusCode), Provider: cfg.Name, StatusCode: resp.StatusCode, Body: resp.Data, Err: terr}
		}
		return resp, terr
	}
}

func (re *RequestExecutor) calculateBackoff(base time.Duration, attempt int) time.Duration {
	backoff := base * (1 << attempt) // base * 2^attempt
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	return backoff
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
