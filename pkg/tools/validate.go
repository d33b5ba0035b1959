package tools

import "fmt"

// validateParams checks supplied parameters against the tool's declared
// schema: required parameters must be present, declared names must match
// their type, enum values must be members. Parameters the tool never
// declared pass through untouched so newer callers keep working against
// older tools.
func validateParams(info ToolInfo, params map[string]any) error {
	declared := make(map[string]ToolParameter, len(info.Parameters))
	for _, p := range info.Parameters {
		declared[p.Name] = p
	}

	for _, p := range info.Parameters {
		if !p.Required {
			continue
		}
		if _, ok := params[p.Name]; !ok {
			return fmt.Errorf("Missing required parameter: %s", p.Name)
		}
	}

	for name, value := range params {
		p, ok := declared[name]
		if !ok {
			continue
		}

		switch p.Type {
		case "string":
			if _, ok := value.(string); !ok {
				return fmt.Errorf("Parameter '%s' must be a string", name)
			}
		case "number":
			if !isNumber(value) {
				return fmt.Errorf("Parameter '%s' must be a number", name)
			}
		case "boolean":
			if _, ok := value.(bool); !ok {
				return fmt.Errorf("Parameter '%s' must be a boolean", name)
			}
		case "array":
			if _, ok := value.([]any); !ok {
				return fmt.Errorf("Parameter '%s' must be an array", name)
			}
		case "object":
			if _, ok := value.(map[string]any); !ok {
				return fmt.Errorf("Parameter '%s' must be an object", name)
			}
		}

		if len(p.Enum) > 0 {
			if !enumContains(p.Enum, value) {
				return fmt.Errorf("Parameter '%s' must be one of: %v", name, p.Enum)
			}
		}
	}

	return nil
}

// isNumber accepts the numeric types JSON decoding and Go callers
// produce. Booleans are not numbers.
func isNumber(v any) bool {
	switch v.(type) {
	case float64, float32, int, int32, int64:
		return true
	default:
		return false
	}
}

func enumContains(enum []string, value any) bool {
	s, ok := value.(string)
	if !ok {
		return false
	}
	for _, e := range enum {
		if e == s {
			return true
		}
	}
	return false
}
