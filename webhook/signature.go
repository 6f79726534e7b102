package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/opengovern/tentacles"
)

// ErrInvalidSignature is wrapped by every signature failure. Such failures are
// also of kind tentacles.ErrAuthentication.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// VerifyFunc checks signature against the raw, unparsed request body.
type VerifyFunc func(payload []byte, signature, secret string) error

// Sign returns the hex HMAC-SHA256 of payload under secret.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(strings.Trim(secret, `"`)))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares signature with Sign(payload, secret) in constant time. The
// comparison is case-sensitive; surrounding quotes on signature or secret are
// ignored.
func Verify(payload []byte, signature, secret string) error {
	expected := Sign(payload, secret)
	given := strings.Trim(strings.TrimSpace(signature), `"`)
	if !hmac.Equal([]byte(expected), []byte(given)) {
		return signatureError("signature mismatch")
	}
	return nil
}

func signatureError(msg string) error {
	return &tentacles.Error{Kind: tentacles.ErrAuthentication, Message: msg, Err: ErrInvalidSignature}
}
