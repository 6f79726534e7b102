package tentacles

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Request is one call against a provider. It is built per call and never persisted.
type Request struct {
	Method   string
	Endpoint string
	// Params are sent as the query string for reads and deletes.
	Params  map[string]interface{}
	Body    interface{}
	Headers map[string]string
	// UseCache allows a GET to be served from the response cache.
	UseCache bool
}

// IsRead reports whether the request is a read (and therefore cacheable).
func (r *Request) IsRead() bool {
	m := strings.ToUpper(r.Method)
	return m == http.MethodGet || m == http.MethodHead
}

type Response struct {
	StatusCode int
	// Headers are lower-cased, first value only.
	Headers map[string]string
	Data    []byte
}

// clone copies r deeply enough that changes to the copy's headers or body
// never reach r.
func (r *Response) clone() *Response {
	if r == nil {
		return nil
	}
	out := *r
	if r.Headers != nil {
		out.Headers = make(map[string]string, len(r.Headers))
		for k, v := range r.Headers {
			out.Headers[k] = v
		}
	}
	if r.Data != nil {
		out.Data = append([]byte(nil), r.Data...)
	}
	return &out
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v interface{}) error {
	if len(r.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return WrapError(ErrAPI, err, "decode response body")
	}
	return nil
}

// Map decodes the body as a JSON object.
func (r *Response) Map() (map[string]interface{}, error) {
	out := map[string]interface{}{}
	if err := r.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func normalizeHeaders(h http.Header) map[string]string {
	headers := make(map[string]string, len(h))
	for k, vals := range h {
		if len(vals) > 0 {
			headers[strings.ToLower(k)] = vals[0]
		}
	}
	return headers
}
