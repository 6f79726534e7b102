package tentacles

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesKindThroughWrapping(t *testing.T) {
	err := fmt.Errorf("listing customers: %w", &Error{Kind: ErrNotFound, Provider: "stripe", StatusCode: 404, Message: "No such customer"})

	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, errors.Is(err, ErrAPI))
	assert.Equal(t, ErrNotFound, KindOf(err))
	assert.Nil(t, KindOf(errors.New("plain")))
}

func TestErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := WrapError(ErrAPI, cause, "transport failure")
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrAPI)
	assert.Equal(t, "api error: transport failure", err.Error())
}

func TestErrorMessage(t *testing.T) {
	e := &Error{Kind: ErrRateLimit, Provider: "openai", StatusCode: 429, Message: "slow down"}
	assert.Equal(t, "openai: rate limit exceeded (status 429): slow down", e.Error())
}

func TestKindForStatus(t *testing.T) {
	assert.Equal(t, ErrAuthentication, KindForStatus(http.StatusUnauthorized))
	assert.Equal(t, ErrAuthentication, KindForStatus(http.StatusForbidden))
	assert.Equal(t, ErrValidation, KindForStatus(http.StatusBadRequest))
	assert.Equal(t, ErrValidation, KindForStatus(http.StatusUnprocessableEntity))
	assert.Equal(t, ErrNotFound, KindForStatus(http.StatusNotFound))
	assert.Equal(t, ErrRateLimit, KindForStatus(http.StatusTooManyRequests))
	assert.Equal(t, ErrAPI, KindForStatus(http.StatusInternalServerError))
	assert.Equal(t, ErrAPI, KindForStatus(http.StatusConflict))
}
