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

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"

	"github.com/mrvn-ai/mrvn/pkg/config"
)

// SchemaCmd prints the JSON Schema for config files, for editor
// completion and config validation in CI.
type SchemaCmd struct {
	Compact bool `short:"c" help:"Compact JSON output (no indentation)."`
}

func (c *SchemaCmd) Run(cli *CLI) error {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		// Inline definitions instead of emitting $ref, so the schema
		// works in tools that do not resolve references.
		DoNotReference: true,
	}

	schema := reflector.Reflect(&config.Config{})
	schema.ID = "https://mrvn.ai/schemas/config.json"
	schema.Title = "mrvn Configuration Schema"
	schema.Description = "Configuration schema for the mrvn agent platform"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	schema.Examples = []interface{}{
		map[string]interface{}{
			"server": map[string]interface{}{
				"port": 8080,
			},
			"database": map[string]interface{}{
				"driver":   "sqlite",
				"database": "mrvn.db",
			},
			"agents": map[string]interface{}{
				"assistant": map[string]interface{}{
					"provider":      "anthropic",
					"model_name":    "claude-sonnet-4-20250514",
					"api_key":       "${ANTHROPIC_API_KEY}",
					"system_prompt": "You are a helpful assistant.",
				},
			},
		},
	}

	encoder := json.NewEncoder(os.Stdout)
	if !c.Compact {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(schema); err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}
	return nil
}
