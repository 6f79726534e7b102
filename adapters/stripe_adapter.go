package adapters

import (
	"crypto/hmac"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/opengovern/tentacles"
	"github.com/opengovern/tentacles/auth"
	"github.com/opengovern/tentacles/webhook"
)

const (
	StripeName            = "stripe"
	StripeBaseURL         = "https://api.stripe.com/v1"
	StripeSignatureHeader = "Stripe-Signature"

	// Live-mode limits: 100 read and 100 write operations per second.
	StripeDefaultReadMaxRequests  = 100
	StripeDefaultWriteMaxRequests = 100

	// StripeSignatureTolerance bounds the age of a signed delivery.
	StripeSignatureTolerance = 5 * time.Minute
)

// StripeLimits are the default read and write windows.
func StripeLimits() tentacles.Limits {
	return tentacles.Limits{
		Read:  []tentacles.Window{{Name: "read", Limit: StripeDefaultReadMaxRequests, Duration: time.Second}},
		Write: []tentacles.Window{{Name: "write", Limit: StripeDefaultWriteMaxRequests, Duration: time.Second}},
	}
}

// Stripe talks to the Stripe REST API with form-encoded bodies and cursor pagination.
type Stripe struct {
	*tentacles.Client
	Customers *tentacles.Resource
}

// NewStripe authenticates with the secret key from settings or STRIPE_API_KEY.
func NewStripe(o Options) (*Stripe, error) {
	ps := o.settings().Provider(StripeName)
	key, err := auth.NewBearerKey(ps.APIKey, "STRIPE_API_KEY")
	if err != nil {
		return nil, err
	}
	client, err := o.newClient(tentacles.ProviderConfig{
		Name:       StripeName,
		BaseURL:    StripeBaseURL,
		Limits:     StripeLimits(),
		Pagination: tentacles.PaginationCursor,
		Translator: stripeTranslator{},
		DefaultHeaders: map[string]string{
			"Content-Type": "application/x-www-form-urlencoded",
		},
	}, key)
	if err != nil {
		return nil, err
	}
	return &Stripe{
		Client: client,
		Customers: tentacles.NewResource(client, tentacles.ResourceConfig{
			Path:         "/customers",
			UpdateMethod: http.MethodPost,
		}),
	}, nil
}

// stripeTranslator treats 402 (card declined and friends) as a validation failure.
type stripeTranslator struct{}

func (stripeTranslator) Translate(resp *tentacles.Response) error {
	err := tentacles.StatusTranslator{Provider: StripeName}.Translate(resp)
	if resp.StatusCode == http.StatusPaymentRequired {
		if te, ok := err.(*tentacles.Error); ok {
			te.Kind = tentacles.ErrValidation
		}
	}
	return err
}

// NewStripeWebhook dispatches on the event's "type", e.g. "customer.created".
func NewStripeWebhook(o Options) (*webhook.Engine, webhook.ListenerConfig, error) {
	engine, err := o.newEngine(webhook.Config{
		Provider:  StripeName,
		EventType: webhook.FieldEventType("type"),
		Validate:  webhook.RequireFields("id", "type"),
		Verify:    VerifyStripeSignature,
	})
	if err != nil {
		return nil, webhook.ListenerConfig{}, err
	}
	return engine, webhook.ListenerConfig{SignatureHeader: StripeSignatureHeader, Logger: o.logger()}, nil
}

// VerifyStripeSignature checks a "t=<unix>,v1=<hex>" header, where v1 is the
// HMAC-SHA256 of "<t>.<payload>". A bare hex signature is checked over the
// payload alone.
func VerifyStripeSignature(payload []byte, header, secret string) error {
	return verifyStripeSignature(payload, header, secret, time.Now())
}

func verifyStripeSignature(payload []byte, header, secret string, now time.Time) error {
	if !strings.Contains(header, "=") {
		return webhook.Verify(payload, header, secret)
	}

	var timestamp string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			timestamp = v
		case "v1":
			signatures = append(signatures, v)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return stripeSignatureError("malformed Stripe-Signature header")
	}
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return stripeSignatureError("malformed Stripe-Signature timestamp")
	}
	if age := now.Sub(time.Unix(ts, 0)); age > StripeSignatureTolerance || age < -StripeSignatureTolerance {
		return stripeSignatureError("Stripe-Signature timestamp outside tolerance")
	}

	expected := webhook.Sign([]byte(timestamp+"."+string(payload)), secret)
	for _, sig := range signatures {
		if hmac.Equal([]byte(expected), []byte(sig)) {
			return nil
		}
	}
	return stripeSignatureError("signature mismatch")
}

func stripeSignatureError(msg string) error {
	return &tentacles.Error{Kind: tentacles.ErrAuthentication, Provider: StripeName, Message: msg, Err: webhook.ErrInvalidSignature}
}
