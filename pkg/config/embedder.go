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
	"fmt"
)

// EmbedderProvider identifies an embedding encoder backend.
type EmbedderProvider string

const (
	EmbedderOpenAI EmbedderProvider = "openai"
	EmbedderOllama EmbedderProvider = "ollama"
	EmbedderGemini EmbedderProvider = "gemini"
)

// EmbedderConfig configures the text embedding encoder.
type EmbedderConfig struct {
	// Provider selects the encoder backend (openai, ollama, gemini).
	Provider EmbedderProvider `yaml:"provider,omitempty" json:"provider,omitempty"`

	// Model names the embedding model.
	Model string `yaml:"model,omitempty" json:"model,omitempty"`

	// APIKey authenticates against hosted encoders.
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty"`

	// BaseURL overrides the encoder endpoint.
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty"`

	// Dimension of produced vectors.
	Dimension int `yaml:"dimension,omitempty" json:"dimension,omitempty"`

	// Timeout is the per-request timeout in seconds.
	Timeout int `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// SetDefaults fills provider-appropriate defaults.
func (c *EmbedderConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = EmbedderOllama
	}
	if c.Model == "" {
		switch c.Provider {
		case EmbedderOpenAI:
			c.Model = "text-embedding-3-small"
		case EmbedderOllama:
			c.Model = "all-minilm"
		case EmbedderGemini:
			c.Model = "text-embedding-004"
		}
	}
	if c.BaseURL == "" {
		switch c.Provider {
		case EmbedderOpenAI:
			c.BaseURL = "https://api.openai.com"
		case EmbedderOllama:
			c.BaseURL = "http://localhost:11434"
		}
	}
	if c.APIKey == "" {
		c.APIKey = GetProviderAPIKey(string(c.Provider))
	}
	if c.Dimension == 0 {
		c.Dimension = 384
	}
	if c.Timeout <= 0 {
		c.Timeout = 60
	}
}

// Validate checks the encoder configuration.
func (c *EmbedderConfig) Validate() error {
	switch c.Provider {
	case EmbedderOpenAI, EmbedderOllama, EmbedderGemini:
	default:
		return fmt.Errorf("invalid embedder provider %q (valid: openai, ollama, gemini)", c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("embedder model is required")
	}
	if c.APIKey == "" && c.Provider != EmbedderOllama {
		return fmt.Errorf("api_key is required for embedder provider %q", c.Provider)
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("embedder dimension must be positive, got %d", c.Dimension)
	}
	return nil
}
