// Copyright 2025 The mrvn authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"testing"
)

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("MRVN_TEST_KEY", "sk-12345")
	t.Setenv("MRVN_TEST_PORT", "9090")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"braced", "${MRVN_TEST_KEY}", "sk-12345"},
		{"simple", "$MRVN_TEST_KEY", "sk-12345"},
		{"with_default_set", "${MRVN_TEST_KEY:-fallback}", "sk-12345"},
		{"with_default_unset", "${MRVN_TEST_MISSING:-fallback}", "fallback"},
		{"unset_braced", "${MRVN_TEST_MISSING}", ""},
		{"embedded", "key=${MRVN_TEST_KEY}!", "key=sk-12345!"},
		{"no_vars", "plain text", "plain text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := expandEnvVars(tt.in); got != tt.want {
				t.Errorf("expandEnvVars(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExpandEnvVarsInDataRetypes(t *testing.T) {
	t.Setenv("MRVN_TEST_PORT", "9090")
	t.Setenv("MRVN_TEST_FLAG", "true")

	data := map[string]interface{}{
		"port":    "${MRVN_TEST_PORT}",
		"enabled": "${MRVN_TEST_FLAG}",
		"nested": []interface{}{
			"${MRVN_TEST_PORT}",
		},
		"untouched": "hello",
	}

	out := ExpandEnvVarsInData(data).(map[string]interface{})

	if got, ok := out["port"].(int); !ok || got != 9090 {
		t.Errorf("port = %v (%T), want int 9090", out["port"], out["port"])
	}
	if got, ok := out["enabled"].(bool); !ok || !got {
		t.Errorf("enabled = %v (%T), want bool true", out["enabled"], out["enabled"])
	}
	nested := out["nested"].([]interface{})
	if got, ok := nested[0].(int); !ok || got != 9090 {
		t.Errorf("nested[0] = %v (%T), want int 9090", nested[0], nested[0])
	}
	if out["untouched"] != "hello" {
		t.Errorf("untouched = %v, want hello", out["untouched"])
	}
}

func TestParseExpandsEnvInYAML(t *testing.T) {
	t.Setenv("MRVN_TEST_DB_PASSWORD", "hunter2")

	yaml := `
database:
  driver: postgres
  database: mrvn
  username: mrvn
  password: ${MRVN_TEST_DB_PASSWORD}
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Database.Password != "hunter2" {
		t.Errorf("Password = %q, want expanded value", cfg.Database.Password)
	}
}
