package dispatch

import (
	"fmt"
)

// RequireString extracts a mandatory string argument.
func RequireString(args map[string]interface{}, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing required argument: %s", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("argument %s must be a non-empty string", key)
	}
	return s, nil
}

// OptionalString extracts a string argument, falling back to def.
func OptionalString(args map[string]interface{}, key, def string) string {
	if s, ok := args[key].(string); ok && s != "" {
		return s
	}
	return def
}

// OptionalBool extracts a boolean argument, falling back to def.
func OptionalBool(args map[string]interface{}, key string, def bool) bool {
	if b, ok := args[key].(bool); ok {
		return b
	}
	return def
}

// OptionalInt extracts an integer argument, falling back to def. JSON
// numbers decode as float64, so both forms are accepted.
func OptionalInt(args map[string]interface{}, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}

// OptionalFloat extracts a numeric argument, falling back to def.
func OptionalFloat(args map[string]interface{}, key string, def float64) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return def
	}
}
