package tokenstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opengovern/tentacles"
)

func TestCodecRoundTripPlaintext(t *testing.T) {
	backend := NewMemoryBackend()
	store := New(backend, nil)
	tok := &Token{AccessToken: "at", RefreshToken: "rt", Expiry: 1_700_003_600, InstanceURL: "https://na1.example.test"}

	require.NoError(t, store.Save(context.Background(), "salesforce", tok))
	raw, err := backend.Get(context.Background(), "salesforce")
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"access_token":"at"`)

	got, err := store.Load(context.Background(), "salesforce")
	require.NoError(t, err)
	assert.Equal(t, tok, got)
	assert.Equal(t, time.Unix(1_700_003_600, 0), got.ExpiryTime())
}

func TestCodecSealsTokens(t *testing.T) {
	sealer, err := NewSealer("correct horse battery staple")
	require.NoError(t, err)
	backend, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)
	store := New(backend, sealer)

	require.NoError(t, store.Save(context.Background(), "hubspot", &Token{AccessToken: "secret-access"}))

	raw, err := backend.Get(context.Background(), "hubspot")
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret-access")

	got, err := store.Load(context.Background(), "hubspot")
	require.NoError(t, err)
	assert.Equal(t, "secret-access", got.AccessToken)
}

func TestCodecWrongKeyIsCorrupt(t *testing.T) {
	backend := NewMemoryBackend()
	right, err := NewSealer("right")
	require.NoError(t, err)
	wrong, err := NewSealer("wrong")
	require.NoError(t, err)

	require.NoError(t, New(backend, right).Save(context.Background(), "linear", &Token{AccessToken: "at"}))
	_, err = New(backend, wrong).Load(context.Background(), "linear")
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestCodecCorruptData(t *testing.T) {
	backend := NewMemoryBackend()
	require.NoError(t, backend.Put(context.Background(), "plain", []byte("{not json")))
	require.NoError(t, backend.Put(context.Background(), "sealed", []byte("short")))

	_, err := New(backend, nil).Load(context.Background(), "plain")
	assert.ErrorIs(t, err, ErrCorrupt)

	sealer, err := NewSealer("k")
	require.NoError(t, err)
	_, err = New(backend, sealer).Load(context.Background(), "sealed")
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestCodecMissingAndDelete(t *testing.T) {
	store := New(NewMemoryBackend(), nil)
	_, err := store.Load(context.Background(), "nothing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(context.Background(), "x", &Token{AccessToken: "at"}))
	require.NoError(t, store.Delete(context.Background(), "x"))
	_, err = store.Load(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSealerNonceDiffers(t *testing.T) {
	s, err := NewSealer("k")
	require.NoError(t, err)
	a, err := s.Seal([]byte("same"))
	require.NoError(t, err)
	b, err := s.Seal([]byte("same"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	_, err = NewSealer("")
	assert.Error(t, err)
}

func TestZeroExpiry(t *testing.T) {
	assert.True(t, (&Token{}).ExpiryTime().IsZero())
}

func TestOpenSelectsBackend(t *testing.T) {
	s := tentacles.DefaultSettings()
	s.TokenBackend = "memory"
	store, closeFn, err := Open(s)
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &MemoryBackend{}, store.(*Codec).backend)

	s = tentacles.DefaultSettings()
	s.TokenDir = t.TempDir()
	s.EncryptionKey = "k"
	store, closeFn, err = Open(s)
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &FileBackend{}, store.(*Codec).backend)
	assert.NotNil(t, store.(*Codec).sealer)

	s = tentacles.DefaultSettings()
	s.TokenBackend = "sqlite"
	s.SQLitePath = ":memory:"
	store, closeFn, err = Open(s)
	require.NoError(t, err)
	defer closeFn()
	require.NoError(t, store.Save(context.Background(), "svc", &Token{AccessToken: "at"}))
}

func TestOpenRejectsBadSettings(t *testing.T) {
	s := tentacles.DefaultSettings()
	s.TokenBackend = "etcd"
	_, _, err := Open(s)
	assert.ErrorIs(t, err, tentacles.ErrConfiguration)

	s = tentacles.DefaultSettings()
	s.TokenBackend = "redis"
	_, _, err = Open(s)
	assert.ErrorIs(t, err, tentacles.ErrConfiguration)
}
