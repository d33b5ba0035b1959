package tools

import (
	"testing"
)

func validationInfo() ToolInfo {
	return ToolInfo{
		Name: "probe",
		Parameters: []ToolParameter{
			{Name: "query", Type: "string", Required: true},
			{Name: "limit", Type: "number"},
			{Name: "strict", Type: "boolean"},
			{Name: "tags", Type: "array"},
			{Name: "filters", Type: "object"},
			{Name: "mode", Type: "string", Enum: []string{"fast", "slow"}},
		},
	}
}

func TestValidateParamsRequiredMissing(t *testing.T) {
	err := validateParams(validationInfo(), map[string]any{"limit": 3})
	if err == nil {
		t.Fatal("expected error for missing required parameter")
	}
	if got := err.Error(); got != "Missing required parameter: query" {
		t.Errorf("unexpected message: %q", got)
	}
}

func TestValidateParamsTypeMismatches(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]any
		want   string
	}{
		{
			name:   "string gets number",
			params: map[string]any{"query": 42},
			want:   "Parameter 'query' must be a string",
		},
		{
			name:   "number gets string",
			params: map[string]any{"query": "q", "limit": "5"},
			want:   "Parameter 'limit' must be a number",
		},
		{
			name:   "number gets bool",
			params: map[string]any{"query": "q", "limit": true},
			want:   "Parameter 'limit' must be a number",
		},
		{
			name:   "boolean gets string",
			params: map[string]any{"query": "q", "strict": "true"},
			want:   "Parameter 'strict' must be a boolean",
		},
		{
			name:   "array gets object",
			params: map[string]any{"query": "q", "tags": map[string]any{}},
			want:   "Parameter 'tags' must be an array",
		},
		{
			name:   "object gets array",
			params: map[string]any{"query": "q", "filters": []any{}},
			want:   "Parameter 'filters' must be an object",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateParams(validationInfo(), tt.params)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if got := err.Error(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidateParamsAcceptsIntAndFloatNumbers(t *testing.T) {
	for _, limit := range []any{5, int64(5), float64(5.5), float32(2)} {
		err := validateParams(validationInfo(), map[string]any{"query": "q", "limit": limit})
		if err != nil {
			t.Errorf("limit %T rejected: %v", limit, err)
		}
	}
}

func TestValidateParamsEnum(t *testing.T) {
	err := validateParams(validationInfo(), map[string]any{"query": "q", "mode": "fast"})
	if err != nil {
		t.Fatalf("enum member rejected: %v", err)
	}

	err = validateParams(validationInfo(), map[string]any{"query": "q", "mode": "warp"})
	if err == nil {
		t.Fatal("expected enum violation")
	}
	if got := err.Error(); got != "Parameter 'mode' must be one of: [fast slow]" {
		t.Errorf("unexpected message: %q", got)
	}
}

func TestValidateParamsIgnoresUndeclared(t *testing.T) {
	err := validateParams(validationInfo(), map[string]any{
		"query":   "q",
		"verbose": true,
		"depth":   12,
	})
	if err != nil {
		t.Errorf("undeclared parameters should pass through: %v", err)
	}
}

func TestValidateParamsUnknownTypePasses(t *testing.T) {
	info := ToolInfo{
		Name:       "probe",
		Parameters: []ToolParameter{{Name: "count", Type: "integer"}},
	}
	if err := validateParams(info, map[string]any{"count": 3}); err != nil {
		t.Errorf("undeclared type check should pass: %v", err)
	}
}
