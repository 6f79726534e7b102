package tentacles

import (
	"encoding/json"
	"strings"
	"time"
	"unicode"

	"github.com/opengovern/tentacles/internal"
)

// StatusTranslator is the default ErrorTranslator. It picks the kind from the
// status code and lifts a message and provider error code out of common JSON
// error shapes.
type StatusTranslator struct {
	Provider string
	// RetryAfterHeaders are consulted in order for 429 responses.
	RetryAfterHeaders []string
}

func (t StatusTranslator) Translate(resp *Response) error {
	e := &Error{
		Kind:       KindForStatus(resp.StatusCode),
		Provider:   t.Provider,
		StatusCode: resp.StatusCode,
		Body:       resp.Data,
	}
	e.Code, e.Message = extractProviderError(resp.Data)
	if e.Message == "" {
		e.Message = strings.TrimSpace(string(resp.Data))
	}
	if e.Message == "" {
		e.Message = "request failed"
	}

	if e.Kind == ErrRateLimit {
		headers := t.RetryAfterHeaders
		if len(headers) == 0 {
			headers = []string{"retry-after"}
		}
		for _, h := range headers {
			if d := internal.ParseRetryAfter(resp.Headers[h], time.Now()); d > 0 {
				e.RetryAfter = d
				break
			}
		}
	}
	return e
}

// extractProviderError understands {"error": {"message","code","type"}},
// {"error": "..."}, {"message": "..."}, [{"errorCode","message"}] and
// {"errors": [{"message"}]}.
func extractProviderError(body []byte) (code, message string) {
	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return "", ""
	}
	if arr, ok := v.([]interface{}); ok && len(arr) > 0 {
		v = arr[0]
	}
	obj, ok := v.(map[string]interface{})
	if !ok {
		return "", ""
	}

	code = firstString(obj, "code", "errorCode", "category", "type")
	message = firstString(obj, "message", "error_description", "detail")

	switch inner := obj["error"].(type) {
	case string:
		if message == "" {
			message = inner
		} else if code == "" {
			code = inner
		}
	case map[string]interface{}:
		if c := firstString(inner, "code", "type"); c != "" {
			code = c
		}
		if m := firstString(inner, "message"); m != "" {
			message = m
		}
	}
	if errs, ok := obj["errors"].([]interface{}); ok && len(errs) > 0 && message == "" {
		if first, ok := errs[0].(map[string]interface{}); ok {
			message = firstString(first, "message")
		}
	}
	return code, message
}

func firstString(obj map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// IdentityMapper leaves body keys untouched.
type IdentityMapper struct{}

func (IdentityMapper) MapFields(body map[string]interface{}) map[string]interface{} {
	return body
}

// CamelCaseMapper rewrites top-level snake_case keys into camelCase.
type CamelCaseMapper struct{}

func (CamelCaseMapper) MapFields(body map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(body))
	for k, v := range body {
		out[SnakeToCamel(k)] = v
	}
	return out
}

// SnakeToCamel converts "first_name" into "firstName".
func SnakeToCamel(s string) string {
	parts := strings.Split(s, "_")
	var b strings.Builder
	b.WriteString(parts[0])
	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		r := []rune(p)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}
