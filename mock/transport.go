// Package mock provides a scripted HTTP transport and a counting
// authenticator for exercising clients without a network.
package mock

import (
	"bytes"
	"io"
	"net/http"
	"sync"
)

// Reply is one scripted response.
type Reply struct {
	StatusCode int
	Headers    map[string]string
	Body       string
	// Err makes the round trip fail instead.
	Err error
}

// Call records a request the transport served.
type Call struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Transport answers requests from a script. Once the script is exhausted the
// last reply repeats; with an empty script every request gets 200 {"success":true}.
// If RequestsUntilRateLimit is positive, requests beyond it get a 429.
type Transport struct {
	RequestsUntilRateLimit int

	mu      sync.Mutex
	replies []Reply
	calls   []Call
}

func NewTransport(replies ...Reply) *Transport {
	return &Transport{replies: replies}
}

// Client returns an *http.Client using t.
func (t *Transport) Client() *http.Client {
	return &http.Client{Transport: t}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
		req.Body.Close()
	}

	t.mu.Lock()
	t.calls = append(t.calls, Call{Method: req.Method, URL: req.URL.String(), Header: req.Header.Clone(), Body: body})
	n := len(t.calls)
	reply := Reply{StatusCode: http.StatusOK, Body: `{"success":true}`}
	if len(t.replies) > 0 {
		idx := n - 1
		if idx >= len(t.replies) {
			idx = len(t.replies) - 1
		}
		reply = t.replies[idx]
	}
	if t.RequestsUntilRateLimit > 0 && n > t.RequestsUntilRateLimit {
		reply = Reply{StatusCode: http.StatusTooManyRequests, Body: `{"error":"Rate limited"}`}
	}
	t.mu.Unlock()

	if reply.Err != nil {
		return nil, reply.Err
	}
	status := reply.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	h := http.Header{}
	for k, v := range reply.Headers {
		h.Set(k, v)
	}
	if h.Get("Content-Type") == "" {
		h.Set("Content-Type", "application/json")
	}
	return &http.Response{
		StatusCode: status,
		Header:     h,
		Body:       io.NopCloser(bytes.NewBufferString(reply.Body)),
		Request:    req,
	}, nil
}

// Calls returns a copy of every request served so far.
func (t *Transport) Calls() []Call {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Call(nil), t.calls...)
}

func (t *Transport) CallCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}
