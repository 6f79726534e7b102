package webhook

import (
	"sort"
	"strings"

	"github.com/opengovern/tentacles"
)

// UnknownEvent is reported by FlagEventType when no flag is set.
const UnknownEvent = "unknown"

// EventTypeFunc derives the event type from a parsed payload.
type EventTypeFunc func(payload map[string]interface{}) (string, error)

// FieldEventType reads the event type from a string field, e.g. Stripe's "type".
func FieldEventType(field string) EventTypeFunc {
	return func(payload map[string]interface{}) (string, error) {
		v, ok := payload[field].(string)
		if !ok || v == "" {
			return "", tentacles.NewError(tentacles.ErrValidation, "payload has no %q field", field)
		}
		return v, nil
	}
}

// FlagEventType reports the first boolean field with the given prefix that is
// true. names fixes the scan order; without it fields are scanned in sorted
// order. UnknownEvent is returned when none is set.
func FlagEventType(prefix string, names ...string) EventTypeFunc {
	return func(payload map[string]interface{}) (string, error) {
		keys := names
		if len(keys) == 0 {
			for k := range payload {
				if strings.HasPrefix(k, prefix) {
					keys = append(keys, k)
				}
			}
			sort.Strings(keys)
		}
		for _, k := range keys {
			if set, ok := payload[k].(bool); ok && set {
				return k, nil
			}
		}
		return UnknownEvent, nil
	}
}

// CompositeEventType builds "{lower(type)}.{action}" from discriminated payloads
// such as Linear's {"type": "Issue", "action": "create"}.
func CompositeEventType(typeField, actionField string) EventTypeFunc {
	return func(payload map[string]interface{}) (string, error) {
		typ, _ := payload[typeField].(string)
		action, _ := payload[actionField].(string)
		if typ == "" || action == "" {
			return "", tentacles.NewError(tentacles.ErrValidation, "payload needs both %q and %q", typeField, actionField)
		}
		return strings.ToLower(typ) + "." + action, nil
	}
}

// RequireFields is a payload validator rejecting payloads missing any field.
func RequireFields(fields ...string) ValidateFunc {
	return func(payload map[string]interface{}) error {
		var missing []string
		for _, f := range fields {
			if _, ok := payload[f]; !ok {
				missing = append(missing, f)
			}
		}
		if len(missing) > 0 {
			return tentacles.NewError(tentacles.ErrValidation, "payload missing %s", strings.Join(missing, ", "))
		}
		return nil
	}
}
