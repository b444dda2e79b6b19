package apperr

import (
	"encoding/json"
	"fmt"

	"github.com/mamadbah2/milkmatrix/pkg/clients/supabase"
)

// FallbackMessage is shown when nothing readable can be derived from an error.
const FallbackMessage = "An unknown error occurred"

// Normalize turns any error shaped value into a message for display. It never panics.
func Normalize(v any) (msg string) {
	defer func() {
		if recover() != nil {
			msg = FallbackMessage
		}
	}()

	switch t := v.(type) {
	case nil:
		return FallbackMessage
	case string:
		return t
	case *Error:
		if t == nil {
			return FallbackMessage
		}
		return t.Error()
	case *supabase.AuthError:
		if t == nil {
			return FallbackMessage
		}
		return t.Error()
	case error:
		if m := t.Error(); m != "" {
			return m
		}
	case map[string]any:
		if m, ok := fromFields(t); ok {
			return m
		}
	case map[string]string:
		for _, key := range []string{"message", "error", "details"} {
			if t[key] != "" {
				return t[key]
			}
		}
	case fmt.Stringer:
		if m := t.String(); m != "" {
			return m
		}
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return FallbackMessage
	}
	return string(raw)
}

// fromFields probes the loosely typed error shapes returned by REST backends.
func fromFields(fields map[string]any) (string, bool) {
	if m, ok := fields["message"].(string); ok && m != "" {
		return m, true
	}
	if m, ok := fields["error"].(string); ok && m != "" {
		return m, true
	}

	details, ok := fields["details"]
	if !ok || details == nil {
		return "", false
	}
	if m, ok := details.(string); ok {
		return m, m != ""
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return FallbackMessage, true
	}
	return string(raw), true
}
