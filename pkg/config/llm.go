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

// LLMProvider identifies an LLM provider adapter.
type LLMProvider string

const (
	ProviderAnthropic LLMProvider = "anthropic"
	ProviderOpenAI    LLMProvider = "openai"
	ProviderGemini    LLMProvider = "gemini"
	ProviderOllama    LLMProvider = "ollama"
	// ProviderVLLM is served by the OpenAI-compatible adapter.
	ProviderVLLM LLMProvider = "vllm"
)

// LLMConfig configures one LLM provider connection.
type LLMConfig struct {
	// Provider selects the adapter (anthropic, openai, gemini, ollama, vllm).
	Provider LLMProvider `yaml:"provider" json:"provider"`

	// Model is the provider-side model name.
	Model string `yaml:"model,omitempty" json:"model,omitempty"`

	// APIKey authenticates against the provider. Ollama needs none.
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty"`

	// BaseURL overrides the provider endpoint. Required for self-hosted
	// OpenAI-compatible servers, optional elsewhere.
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty"`

	// Timeout is the per-request timeout in seconds.
	Timeout int `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// MaxRetries bounds transport-level retries.
	MaxRetries int `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`

	// RetryDelay is the base backoff delay in seconds.
	RetryDelay int `yaml:"retry_delay,omitempty" json:"retry_delay,omitempty"`
}

func defaultModelFor(p LLMProvider) string {
	switch p {
	case ProviderAnthropic:
		return "claude-sonnet-4-20250514"
	case ProviderOpenAI, ProviderVLLM:
		return "gpt-4o"
	case ProviderGemini:
		return "gemini-2.0-flash"
	case ProviderOllama:
		return "llama3.2"
	default:
		return ""
	}
}

func defaultHostFor(p LLMProvider) string {
	switch p {
	case ProviderAnthropic:
		return "https://api.anthropic.com"
	case ProviderOpenAI, ProviderVLLM:
		return "https://api.openai.com"
	case ProviderGemini:
		return "https://generativelanguage.googleapis.com"
	case ProviderOllama:
		return "http://localhost:11434"
	default:
		return ""
	}
}

// SetDefaults fills unset fields with provider-appropriate defaults. The API
// key falls back to the conventional environment variable for the provider.
func (c *LLMConfig) SetDefaults() {
	if c.Model == "" {
		c.Model = defaultModelFor(c.Provider)
	}
	if c.BaseURL == "" {
		c.BaseURL = defaultHostFor(c.Provider)
	}
	if c.APIKey == "" {
		c.APIKey = GetProviderAPIKey(string(c.Provider))
	}
	if c.Timeout <= 0 {
		c.Timeout = 120
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 2
	}
}

// Validate checks the configuration for use.
func (c *LLMConfig) Validate() error {
	switch c.Provider {
	case ProviderAnthropic, ProviderOpenAI, ProviderGemini, ProviderOllama, ProviderVLLM:
	default:
		return fmt.Errorf("invalid provider %q (valid: anthropic, openai, gemini, ollama, vllm)", c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	// Local runtimes authenticate nothing.
	if c.APIKey == "" && c.Provider != ProviderOllama && c.Provider != ProviderVLLM {
		return fmt.Errorf("api_key is required for provider %q", c.Provider)
	}
	return nil
}
