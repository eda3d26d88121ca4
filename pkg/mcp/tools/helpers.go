package tools

import (
	"encoding/json"
	"fmt"
	"strings"
)

// trimString removes leading and trailing whitespace from a string.
func trimString(s string) string {
	return strings.TrimSpace(s)
}

// extractArrayParam returns args[key] as an array. Some clients send arrays
// as JSON-encoded strings; those are decoded. A missing key returns def.
func extractArrayParam(args map[string]any, key string, def []any) ([]any, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return def, nil
	}

	switch v := raw.(type) {
	case []any:
		return v, nil
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, nil
	case string:
		var parsed []any
		if err := json.Unmarshal([]byte(v), &parsed); err != nil {
			return nil, fmt.Errorf("parameter %q could not be parsed as an array; send a native JSON array", key)
		}
		return parsed, nil
	default:
		return nil, fmt.Errorf("parameter %q must be an array, got %T", key, raw)
	}
}

// extractStringSlice returns args[key] as a list of strings.
func extractStringSlice(args map[string]any, key string) ([]string, error) {
	items, err := extractArrayParam(args, key, nil)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("parameter %q element %d must be a string, got %T", key, i, item)
		}
		out = append(out, s)
	}
	return out, nil
}
