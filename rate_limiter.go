// rate_limiter.go
// ----------------
// This file defines the RateLimiter type, a client-side sliding-window limiter.
// Each limiter tracks any number of named windows, each an ordered list of
// admission timestamps. A provider configures one or more windows per
// operation class (for example a per-minute and a per-day window, or separate
// read and write windows).
//
// Responsibilities:
// - Pruning timestamps that fell out of a window before every capacity check.
// - Blocking the caller until every window it names has a free slot.
// - Admitting waiters on the same windows in arrival order, letting other
//   operation classes proceed, and never double-booking the last slot.
package tentacles

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Window is a named sliding interval admitting at most Limit requests per Duration.
// A Limit of zero or less means unlimited.
type Window struct {
	Name     string        `yaml:"name"`
	Limit    int           `yaml:"limit"`
	Duration time.Duration `yaml:"duration"`
}

// Limits groups the windows a provider applies per operation class.
type Limits struct {
	Read  []Window `yaml:"read"`
	Write []Window `yaml:"write"`
}

// For returns the windows that apply to a read or a write. Writes fall back to
// the read windows when no write windows are configured.
func (l Limits) For(write bool) []Window {
	if write && len(l.Write) > 0 {
		return l.Write
	}
	return l.Read
}

type RateLimiter struct {
	// mu guards windows and queues and is never held while sleeping.
	mu      sync.Mutex
	windows map[string][]time.Time
	// queues holds one single-slot channel per distinct window set (one per
	// operation class). Waiters on a set are admitted in arrival order while
	// other classes proceed independently.
	queues map[string]chan struct{}
	now    func() time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		windows: make(map[string][]time.Time),
		queues:  make(map[string]chan struct{}),
		now:     time.Now,
	}
}

func (r *RateLimiter) queue(windows []Window) chan struct{} {
	names := make([]string, len(windows))
	for i, w := range windows {
		names[i] = w.Name
	}
	key := strings.Join(names, "\x00")

	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.queues[key]
	if !ok {
		q = make(chan struct{}, 1)
		r.queues[key] = q
	}
	return q
}

// WaitIfNeeded blocks until every given window has room, then records one
// admission in each of them. It returns how long the caller was held back.
// A cancelled ctx aborts the wait and records nothing.
func (r *RateLimiter) WaitIfNeeded(ctx context.Context, windows ...Window) (time.Duration, error) {
	q := r.queue(windows)
	select {
	case q <- struct{}{}:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	defer func() { <-q }()

	var waited time.Duration
	for {
		wait := r.tryAdmit(windows)
		if wait <= 0 {
			return waited, nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return waited, ctx.Err()
		}
		waited += wait
	}
}

// tryAdmit records an admission in every window when all of them have room and
// otherwise returns how long until they might. Check and record happen under
// one lock, so classes sharing a window never double-book its last slot.
func (r *RateLimiter) tryAdmit(windows []Window) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var wait time.Duration
	for _, w := range windows {
		if d := r.required(w, now); d > wait {
			wait = d
		}
	}
	if wait > 0 {
		return wait
	}
	for _, w := range windows {
		if w.Limit > 0 && w.Duration > 0 {
			r.windows[w.Name] = append(r.windows[w.Name], now)
		}
	}
	return 0
}

// required prunes the window and returns how long until it has a free slot.
// Must be called with mu held.
func (r *RateLimiter) required(w Window, now time.Time) time.Duration {
	if w.Limit <= 0 || w.Duration <= 0 {
		return 0
	}
	ts := prune(r.windows[w.Name], now.Add(-w.Duration))
	r.windows[w.Name] = ts
	if len(ts) < w.Limit {
		return 0
	}
	// The slot frees up once the entry Limit positions from the end leaves the window.
	oldest := ts[len(ts)-w.Limit]
	return w.Duration - now.Sub(oldest)
}

func prune(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	return ts[i:]
}

// Usage reports how many admissions window name currently holds within d.
func (r *RateLimiter) Usage(name string, d time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := prune(r.windows[name], r.now().Add(-d))
	r.windows[name] = ts
	return len(ts)
}

// Reset forgets every recorded admission.
func (r *RateLimiter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.windows = make(map[string][]time.Time)
}
