package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/opengovern/tentacles"
)

const (
	DefaultMaxBodyBytes    = 1 << 20
	DefaultShutdownTimeout = 10 * time.Second
)

// Tunnel is a public URL forwarding to the local listener.
type Tunnel interface {
	URL() string
	Close() error
}

// TunnelOpener establishes a tunnel to localAddr.
type TunnelOpener func(ctx context.Context, localAddr string) (Tunnel, error)

type ListenerConfig struct {
	Addr string
	Path string
	// SignatureHeader is provider-specific, e.g. Certn-Signature.
	SignatureHeader string
	MaxBodyBytes    int64
	ShutdownTimeout time.Duration
	Tunnel          TunnelOpener
	Logger          logrus.FieldLogger
}

// Listener exposes an Engine on a single POST path.
type Listener struct {
	engine *Engine
	cfg    ListenerConfig
	router *mux.Router
	logger logrus.FieldLogger

	mu     sync.Mutex
	addr   string
	tunnel Tunnel
	ready  chan struct{}
}

func NewListener(engine *Engine, cfg ListenerConfig) *Listener {
	if cfg.Addr == "" {
		cfg.Addr = ":8000"
	}
	if cfg.Path == "" {
		cfg.Path = "/webhook"
	}
	if cfg.SignatureHeader == "" {
		cfg.SignatureHeader = "X-Signature"
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	l := &Listener{
		engine: engine,
		cfg:    cfg,
		router: mux.NewRouter(),
		logger: logger.WithField("provider", engine.Provider()),
		ready:  make(chan struct{}),
	}
	l.RegisterRoutes(l.router)
	return l
}

// RegisterRoutes mounts the webhook route on r.
func (l *Listener) RegisterRoutes(r *mux.Router) {
	r.HandleFunc(l.cfg.Path, l.handleWebhook).Methods(http.MethodPost)
}

func (l *Listener) Handler() http.Handler { return l.router }

// Router exposes the listener's router so callers can mount extra routes
// (metrics, health) before Run.
func (l *Listener) Router() *mux.Router { return l.router }

// Ready is closed once the listener accepts connections.
func (l *Listener) Ready() <-chan struct{} { return l.ready }

// Addr is the bound address, valid after Ready.
func (l *Listener) Addr() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.addr
}

// TunnelURL is the public URL, empty when no tunnel is open.
func (l *Listener) TunnelURL() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.tunnel == nil {
		return ""
	}
	return l.tunnel.URL()
}

// Run serves until ctx is done, then stops accepting, lets in-flight
// deliveries finish and closes the tunnel.
func (l *Listener) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", l.cfg.Addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: l.router, ReadHeaderTimeout: 10 * time.Second}

	l.mu.Lock()
	l.addr = ln.Addr().String()
	l.mu.Unlock()

	if l.cfg.Tunnel != nil {
		t, err := l.cfg.Tunnel(ctx, l.addr)
		if err != nil {
			l.logger.WithError(err).Warn("could not open tunnel, serving locally only")
		} else {
			l.mu.Lock()
			l.tunnel = t
			l.mu.Unlock()
			l.logger.WithField("url", t.URL()+l.cfg.Path).Info("webhook tunnel open")
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), l.cfg.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		l.closeTunnel()
		l.logger.Info("webhook listener stopped")
		return err
	})

	l.logger.WithFields(logrus.Fields{"addr": l.addr, "path": l.cfg.Path}).Info("webhook listener started")
	close(l.ready)
	return g.Wait()
}

func (l *Listener) closeTunnel() {
	l.mu.Lock()
	t := l.tunnel
	l.tunnel = nil
	l.mu.Unlock()
	if t != nil {
		if err := t.Close(); err != nil {
			l.logger.WithError(err).Warn("closing tunnel")
		}
	}
}

func (l *Listener) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, l.cfg.MaxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}

	res, err := l.engine.Process(r.Context(), body, r.Header.Get(l.cfg.SignatureHeader))
	if err != nil {
		status := http.StatusInternalServerError
		switch tentacles.KindOf(err) {
		case tentacles.ErrAuthentication, tentacles.ErrValidation:
			status = http.StatusBadRequest
		}
		l.logger.WithError(err).WithField("status", status).Warn("webhook delivery rejected")
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"event_type": res.EventType,
		"handled":    res.Handled,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
