// Package webhook verifies signed webhook deliveries and dispatches them to
// handlers by event type, optionally behind an HTTP listener.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/opengovern/tentacles"
)

// Event is one verified, parsed delivery.
type Event struct {
	ID      string
	Type    string
	Payload map[string]interface{}
	Raw     []byte
}

// Handler processes one event. Its result is returned from Process.
type Handler func(ctx context.Context, ev *Event) (interface{}, error)

// ValidateFunc rejects malformed payloads before dispatch.
type ValidateFunc func(payload map[string]interface{}) error

type Config struct {
	Provider string
	Secret   string
	// RequireSignature rejects deliveries without a signature when a secret is set.
	RequireSignature bool

	EventType EventTypeFunc
	Validate  ValidateFunc
	// Verify defaults to Verify (hex HMAC-SHA256 of the raw body).
	Verify VerifyFunc
	// Default handles event types nobody registered for.
	Default Handler

	Logger  logrus.FieldLogger
	Metrics *tentacles.Metrics
}

// Result describes what Process did with a delivery.
type Result struct {
	EventID   string
	EventType string
	// Handled is false when the default handler ran.
	Handled bool
	Output  interface{}
}

type Engine struct {
	mu       sync.RWMutex
	cfg      Config
	handlers map[string]Handler
	fallback Handler
	logger   logrus.FieldLogger
}

func NewEngine(cfg Config) (*Engine, error) {
	if cfg.EventType == nil {
		return nil, tentacles.NewError(tentacles.ErrConfiguration, "webhook engine for %q needs an event type rule", cfg.Provider)
	}
	if cfg.Verify == nil {
		cfg.Verify = Verify
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	e := &Engine{
		cfg:      cfg,
		handlers: make(map[string]Handler),
		logger:   logger.WithField("provider", cfg.Provider),
	}
	e.fallback = cfg.Default
	if e.fallback == nil {
		e.fallback = e.logUnhandled
	}
	return e, nil
}

// Register sets the handler for eventType, replacing any earlier one.
func (e *Engine) Register(eventType string, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[eventType] = h
}

// On returns a function registering its argument for eventType.
func (e *Engine) On(eventType string) func(Handler) {
	return func(h Handler) { e.Register(eventType, h) }
}

func (e *Engine) SetDefault(h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fallback = h
}

func (e *Engine) SetSecret(secret string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.Secret = secret
}

func (e *Engine) Provider() string { return e.cfg.Provider }

// Process verifies raw against signature, parses it and dispatches the event.
// Signature and payload problems come back as authentication or validation
// errors; a failing or panicking handler comes back as a webhook error.
func (e *Engine) Process(ctx context.Context, raw []byte, signature string) (*Result, error) {
	e.mu.RLock()
	secret := e.cfg.Secret
	e.mu.RUnlock()

	if secret != "" {
		if signature == "" && e.cfg.RequireSignature {
			e.cfg.Metrics.ObserveWebhook(e.cfg.Provider, "", "rejected")
			return nil, signatureError("missing signature")
		}
		if signature != "" {
			if err := e.cfg.Verify(raw, signature, secret); err != nil {
				e.cfg.Metrics.ObserveWebhook(e.cfg.Provider, "", "rejected")
				return nil, err
			}
		}
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil || payload == nil {
		e.cfg.Metrics.ObserveWebhook(e.cfg.Provider, "", "invalid")
		return nil, &tentacles.Error{Kind: tentacles.ErrValidation, Provider: e.cfg.Provider, Message: "payload is not a JSON object", Err: err}
	}
	if e.cfg.Validate != nil {
		if err := e.cfg.Validate(payload); err != nil {
			e.cfg.Metrics.ObserveWebhook(e.cfg.Provider, "", "invalid")
			return nil, asValidation(e.cfg.Provider, err)
		}
	}
	eventType, err := e.cfg.EventType(payload)
	if err != nil {
		e.cfg.Metrics.ObserveWebhook(e.cfg.Provider, "", "invalid")
		return nil, asValidation(e.cfg.Provider, err)
	}

	e.mu.RLock()
	h, handled := e.handlers[eventType]
	if !handled {
		h = e.fallback
	}
	e.mu.RUnlock()

	ev := &Event{ID: uuid.NewString(), Type: eventType, Payload: payload, Raw: raw}
	log := e.logger.WithFields(logrus.Fields{"event_type": eventType, "event_id": ev.ID})

	out, err := invoke(ctx, h, ev)
	if err != nil {
		log.WithError(err).Error("webhook handler failed")
		e.cfg.Metrics.ObserveWebhook(e.cfg.Provider, eventType, "failed")
		return nil, &tentacles.Error{Kind: tentacles.ErrWebhook, Provider: e.cfg.Provider,
			Message: fmt.Sprintf("handler for %s failed", eventType), Err: err}
	}

	outcome := "handled"
	if !handled {
		outcome = "unhandled"
	}
	e.cfg.Metrics.ObserveWebhook(e.cfg.Provider, eventType, outcome)
	log.Debug("webhook event dispatched")
	return &Result{EventID: ev.ID, EventType: eventType, Handled: handled, Output: out}, nil
}

// invoke runs h and turns a panic into an error.
func invoke(ctx context.Context, h Handler, ev *Event) (out interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h(ctx, ev)
}

func (e *Engine) logUnhandled(_ context.Context, ev *Event) (interface{}, error) {
	e.logger.WithField("event_type", ev.Type).Info("unhandled webhook event")
	return map[string]interface{}{"status": "unhandled", "event_type": ev.Type}, nil
}

func asValidation(provider string, err error) error {
	var te *tentacles.Error
	if errors.As(err, &te) {
		if te.Provider == "" {
			te.Provider = provider
		}
		return te
	}
	return &tentacles.Error{Kind: tentacles.ErrValidation, Provider: provider, Message: "invalid payload", Err: err}
}
