package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opengovern/tentacles"
)

func TestFieldEventType(t *testing.T) {
	get := FieldEventType("type")

	typ, err := get(map[string]interface{}{"type": "invoice.paid"})
	require.NoError(t, err)
	assert.Equal(t, "invoice.paid", typ)

	for _, payload := range []map[string]interface{}{{}, {"type": ""}, {"type": 42}} {
		_, err := get(payload)
		assert.ErrorIs(t, err, tentacles.ErrValidation)
	}
}

func TestFlagEventType(t *testing.T) {
	ordered := FlagEventType("request_", "request_softcheck", "request_equifax")

	typ, err := ordered(map[string]interface{}{"request_equifax": true, "request_softcheck": true})
	require.NoError(t, err)
	assert.Equal(t, "request_softcheck", typ, "names fix the scan order")

	typ, err = ordered(map[string]interface{}{"request_softcheck": false, "request_equifax": "true"})
	require.NoError(t, err)
	assert.Equal(t, UnknownEvent, typ, "only boolean true counts")

	sorted := FlagEventType("request_")
	typ, err = sorted(map[string]interface{}{"request_zeta": true, "request_alpha": true, "other": true})
	require.NoError(t, err)
	assert.Equal(t, "request_alpha", typ)
}

func TestCompositeEventType(t *testing.T) {
	get := CompositeEventType("type", "action")

	typ, err := get(map[string]interface{}{"type": "Issue", "action": "create"})
	require.NoError(t, err)
	assert.Equal(t, "issue.create", typ)

	_, err = get(map[string]interface{}{"type": "Issue"})
	assert.ErrorIs(t, err, tentacles.ErrValidation)
}

func TestRequireFields(t *testing.T) {
	validate := RequireFields("id", "type")
	assert.NoError(t, validate(map[string]interface{}{"id": nil, "type": "x"}))

	err := validate(map[string]interface{}{"other": 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, tentacles.ErrValidation)
	assert.Contains(t, err.Error(), "id, type")
}
