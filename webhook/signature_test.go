package webhook

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opengovern/tentacles"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"order.created"}`)
	sig := Sign(payload, "whsec")

	assert.Len(t, sig, 64)
	require.NoError(t, Verify(payload, sig, "whsec"))
	require.NoError(t, Verify(payload, `"`+sig+`"`, `"whsec"`), "quotes are ignored")
}

func TestVerifyRejectsAnySingleByteChange(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"order.created"}`)
	sig := Sign(payload, "whsec")

	for i := range payload {
		mutated := append([]byte(nil), payload...)
		mutated[i] ^= 0x01
		err := Verify(mutated, sig, "whsec")
		require.Error(t, err, "byte %d", i)
		assert.ErrorIs(t, err, ErrInvalidSignature)
		assert.ErrorIs(t, err, tentacles.ErrAuthentication)
	}
	assert.Error(t, Verify(payload, sig, "other-secret"))
	assert.Error(t, Verify(payload, "", "whsec"))
}

func TestVerifyRejectsAnySignatureChange(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"order.created"}`)
	sig := Sign(payload, "whsec")

	for i := range sig {
		for _, mutated := range []string{
			sig[:i] + string(sig[i]^0x01) + sig[i+1:],
			sig[:i] + strings.ToUpper(sig[i:i+1]) + sig[i+1:],
		} {
			if mutated == sig {
				continue
			}
			err := Verify(payload, mutated, "whsec")
			assert.ErrorIs(t, err, ErrInvalidSignature, "byte %d: %s", i, mutated)
		}
	}
	assert.ErrorIs(t, Verify(payload, strings.ToUpper(sig), "whsec"), ErrInvalidSignature)
	assert.ErrorIs(t, Verify(payload, sig[:len(sig)-1], "whsec"), ErrInvalidSignature)
}
