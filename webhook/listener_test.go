package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestListener(t *testing.T, e *Engine, cfg ListenerConfig) *Listener {
	t.Helper()
	if cfg.Logger == nil {
		logger, _ := test.NewNullLogger()
		cfg.Logger = logger
	}
	if cfg.SignatureHeader == "" {
		cfg.SignatureHeader = "Test-Signature"
	}
	return NewListener(e, cfg)
}

func post(t *testing.T, h http.Handler, path string, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	if signature != "" {
		req.Header.Set("Test-Signature", signature)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestListenerAcceptsSignedDelivery(t *testing.T) {
	e := newTestEngine(t, Config{Secret: "whsec"})
	e.Register("ping", func(context.Context, *Event) (interface{}, error) { return nil, nil })
	l := newTestListener(t, e, ListenerConfig{})

	body := []byte(`{"type":"ping"}`)
	rec := post(t, l.Handler(), "/webhook", body, Sign(body, "whsec"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, map[string]interface{}{"status": "ok", "event_type": "ping", "handled": true}, resp)
}

func TestListenerStatusCodes(t *testing.T) {
	e := newTestEngine(t, Config{Secret: "whsec"})
	e.Register("fail", func(context.Context, *Event) (interface{}, error) { return nil, errors.New("db down") })
	l := newTestListener(t, e, ListenerConfig{Path: "/hooks/test"})

	bad := []byte(`{"type":"ping"}`)
	assert.Equal(t, http.StatusBadRequest, post(t, l.Handler(), "/hooks/test", bad, "deadbeef").Code)

	notJSON := []byte(`nope`)
	assert.Equal(t, http.StatusBadRequest, post(t, l.Handler(), "/hooks/test", notJSON, Sign(notJSON, "whsec")).Code)

	failing := []byte(`{"type":"fail"}`)
	assert.Equal(t, http.StatusInternalServerError, post(t, l.Handler(), "/hooks/test", failing, Sign(failing, "whsec")).Code)

	assert.Equal(t, http.StatusNotFound, post(t, l.Handler(), "/webhook", bad, "").Code)

	rec := httptest.NewRecorder()
	l.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hooks/test", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestListenerLimitsBodySize(t *testing.T) {
	e := newTestEngine(t, Config{})
	l := newTestListener(t, e, ListenerConfig{MaxBodyBytes: 16})

	body := []byte(`{"type":"ping","padding":"` + strings.Repeat("x", 64) + `"}`)
	assert.Equal(t, http.StatusBadRequest, post(t, l.Handler(), "/webhook", body, "").Code)
}

func TestListenerRouterAcceptsExtraRoutes(t *testing.T) {
	l := newTestListener(t, newTestEngine(t, Config{}), ListenerConfig{})
	l.Router().HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	l.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

type fakeTunnel struct {
	url    string
	closed int32
}

func (f *fakeTunnel) URL() string { return f.url }

func (f *fakeTunnel) Close() error {
	atomic.AddInt32(&f.closed, 1)
	return nil
}

func TestListenerRunServesAndShutsDown(t *testing.T) {
	e := newTestEngine(t, Config{})
	var handled int32
	e.Register("ping", func(context.Context, *Event) (interface{}, error) {
		atomic.AddInt32(&handled, 1)
		return nil, nil
	})

	tunnel := &fakeTunnel{url: "https://abc.tunnel.test"}
	var openedFor string
	l := newTestListener(t, e, ListenerConfig{
		Addr: "127.0.0.1:0",
		Tunnel: func(_ context.Context, localAddr string) (Tunnel, error) {
			openedFor = localAddr
			return tunnel, nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	select {
	case <-l.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("listener never became ready")
	}
	assert.Equal(t, l.Addr(), openedFor)
	assert.Equal(t, "https://abc.tunnel.test", l.TunnelURL())

	resp, err := http.Post("http://"+l.Addr()+"/webhook", "application/json", strings.NewReader(`{"type":"ping"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&handled))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop")
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&tunnel.closed))
	assert.Empty(t, l.TunnelURL())
}

func TestListenerServesWithoutTunnel(t *testing.T) {
	l := newTestListener(t, newTestEngine(t, Config{}), ListenerConfig{
		Addr: "127.0.0.1:0",
		Tunnel: func(context.Context, string) (Tunnel, error) {
			return nil, errors.New("no tunnel binary")
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	<-l.Ready()
	assert.Empty(t, l.TunnelURL())

	cancel()
	assert.NoError(t, <-done)
}

func TestListenerRunFailsOnBusyAddress(t *testing.T) {
	busy := httptest.NewServer(http.NotFoundHandler())
	defer busy.Close()

	l := newTestListener(t, newTestEngine(t, Config{}), ListenerConfig{Addr: strings.TrimPrefix(busy.URL, "http://")})
	assert.Error(t, l.Run(context.Background()))
}
