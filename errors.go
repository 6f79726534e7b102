// errors.go
// ---------
// Error taxonomy shared by every tentacle. Transport failures are always
// translated into one of these kinds at the client boundary, so callers only
// ever need errors.Is against the Err* sentinels below.
package tentacles

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	ErrAuthentication = errors.New("authentication error")
	ErrValidation     = errors.New("validation error")
	ErrNotFound       = errors.New("resource not found")
	ErrRateLimit      = errors.New("rate limit exceeded")
	ErrAPI            = errors.New("api error")
	ErrConfiguration  = errors.New("configuration error")
	ErrWebhook        = errors.New("webhook error")
)

// Error carries the kind plus whatever the provider told us about the failure.
type Error struct {
	Kind       error
	Provider   string
	StatusCode int
	// Code is a provider-specific error code, e.g. Stripe's "card_declined".
	Code       string
	Message    string
	Body       []byte
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	prefix := e.Kind.Error()
	if e.Provider != "" {
		prefix = e.Provider + ": " + prefix
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %s", prefix, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s: %s", prefix, msg)
}

// Is matches the kind sentinel so errors.Is(err, ErrNotFound) works through wrapping.
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds an *Error of the given kind.
func NewError(kind error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError builds an *Error of the given kind around cause.
func WrapError(kind error, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

// KindForStatus maps an HTTP status code onto the taxonomy.
func KindForStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return ErrAuthentication
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return ErrValidation
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusTooManyRequests:
		return ErrRateLimit
	default:
		return ErrAPI
	}
}

// KindOf returns the kind sentinel of err, or nil when err is not part of the taxonomy.
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return nil
}
