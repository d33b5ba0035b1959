package llms

import (
	"encoding/json"
	"testing"
)

func TestParseToolArguments(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want map[string]any
	}{
		{
			name: "object",
			raw:  `{"city": "Berlin", "days": 3}`,
			want: map[string]any{"city": "Berlin", "days": float64(3)},
		},
		{
			name: "json string containing object",
			raw:  `"{\"city\": \"Berlin\"}"`,
			want: map[string]any{"city": "Berlin"},
		},
		{
			name: "json string with invalid payload",
			raw:  `"not json at all"`,
			want: map[string]any{"raw": "not json at all"},
		},
		{
			name: "unparseable value",
			raw:  `[1, 2]`,
			want: map[string]any{"raw": "[1, 2]"},
		},
		{
			name: "empty",
			raw:  ``,
			want: map[string]any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseToolArguments(json.RawMessage(tt.raw))
			if len(got) != len(tt.want) {
				t.Fatalf("parseToolArguments(%q) = %v, want %v", tt.raw, got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("parseToolArguments(%q)[%s] = %v, want %v", tt.raw, k, got[k], v)
				}
			}
		})
	}
}

func TestEncodeToolArguments(t *testing.T) {
	if got := encodeToolArguments(nil); got != "{}" {
		t.Errorf("encodeToolArguments(nil) = %q, want {}", got)
	}

	got := encodeToolArguments(map[string]any{"expression": "2+2"})
	var decoded map[string]any
	if err := json.Unmarshal([]byte(got), &decoded); err != nil {
		t.Fatalf("encodeToolArguments produced invalid JSON: %v", err)
	}
	if decoded["expression"] != "2+2" {
		t.Errorf("round-tripped arguments = %v, want expression=2+2", decoded)
	}
}

func TestSyntheticCallID(t *testing.T) {
	if got := syntheticCallID(0); got != "call_0" {
		t.Errorf("syntheticCallID(0) = %q, want call_0", got)
	}
	if got := syntheticCallID(2); got != "call_2" {
		t.Errorf("syntheticCallID(2) = %q, want call_2", got)
	}
}
