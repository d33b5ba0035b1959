package llms

import (
	"encoding/json"
	"fmt"
)

// parseToolArguments decodes a wire-dialect arguments payload into a map.
// Providers disagree on the shape: OpenAI sends a JSON object encoded as a
// string, Ollama sends either an object or a string. Anything unparseable is
// preserved under a "raw" key so the tool layer can still see it.
func parseToolArguments(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return parseToolArgumentsString(s)
	}

	return map[string]any{"raw": string(raw)}
}

// parseToolArgumentsString decodes a JSON-object string, falling back to
// {"raw": s} when it does not parse.
func parseToolArgumentsString(s string) map[string]any {
	if s == "" {
		return map[string]any{}
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err == nil {
		return obj
	}
	return map[string]any{"raw": s}
}

// encodeToolArguments renders an arguments map as the JSON string the
// OpenAI dialect expects.
func encodeToolArguments(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf(`{"raw": %q}`, fmt.Sprint(args))
	}
	return string(data)
}

// syntheticCallID names tool calls on dialects whose wire carries none.
func syntheticCallID(n int) string {
	return fmt.Sprintf("call_%d", n)
}
