package tools

// stringParam reads an optional string parameter, falling back when the
// key is absent. Type mismatches never reach here; validation runs first.
func stringParam(params map[string]any, key, fallback string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return fallback
}

// intParam reads an optional numeric parameter as an int. JSON decoding
// delivers numbers as float64, Go callers may pass ints.
func intParam(params map[string]any, key string, fallback int) int {
	switch v := params[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case float32:
		return int(v)
	case int32:
		return int(v)
	default:
		return fallback
	}
}
