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

// ToolProfile names a predefined tool set an agent starts from.
type ToolProfile string

const (
	ProfileMinimal   ToolProfile = "minimal"
	ProfileCoding    ToolProfile = "coding"
	ProfileMessaging ToolProfile = "messaging"
	ProfileFull      ToolProfile = "full"
)

// AgentConfig describes one agent: which model it talks to, how it is rate
// limited, which tools it may use, and how its memory search behaves. It is
// a value object resolved once per turn.
type AgentConfig struct {
	// ID identifies the agent for rate limiting and memory partitioning.
	ID int64 `yaml:"id" json:"id"`

	// Name is the addressable agent name. Filled from the config map key.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// Provider selects the LLM adapter.
	Provider LLMProvider `yaml:"provider" json:"provider"`

	// ModelName is the provider-side model identifier.
	ModelName string `yaml:"model_name,omitempty" json:"model_name,omitempty"`

	// BaseURL overrides the provider endpoint.
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty"`

	// APIKey authenticates against the provider.
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty"`

	// SystemPrompt is prepended to every turn unless overridden per call.
	SystemPrompt string `yaml:"system_prompt,omitempty" json:"system_prompt,omitempty"`

	// Temperature for generation, in [0, 2].
	Temperature float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`

	// MaxTokens bounds generated output length. Must be positive.
	MaxTokens int `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`

	// StopSequences stop generation when emitted.
	StopSequences []string `yaml:"stop_sequences,omitempty" json:"stop_sequences,omitempty"`

	// RateLimitEnabled turns on the sliding-window limiter for this agent.
	RateLimitEnabled bool `yaml:"rate_limit_enabled,omitempty" json:"rate_limit_enabled,omitempty"`

	// RateLimitRPM is the window budget. Zero means unlimited.
	RateLimitRPM int `yaml:"rate_limit_rpm,omitempty" json:"rate_limit_rpm,omitempty"`

	// ToolProfile picks the base tool set (minimal, coding, messaging, full).
	ToolProfile ToolProfile `yaml:"tool_profile,omitempty" json:"tool_profile,omitempty"`

	// ToolsAllow adds named tools on top of the profile.
	ToolsAllow []string `yaml:"tools_allow,omitempty" json:"tools_allow,omitempty"`

	// ToolsDeny removes named tools. Deny wins over profile and allow.
	ToolsDeny []string `yaml:"tools_deny,omitempty" json:"tools_deny,omitempty"`

	// MemorySearchEnabled exposes memory_search to this agent.
	MemorySearchEnabled bool `yaml:"memory_search_enabled,omitempty" json:"memory_search_enabled,omitempty"`

	// MemorySearch tunes hybrid retrieval for this agent.
	MemorySearch SearchConfig `yaml:"memory_search_config,omitempty" json:"memory_search_config,omitempty"`
}

// LLM builds the provider connection config for this agent.
func (a *AgentConfig) LLM() *LLMConfig {
	cfg := &LLMConfig{
		Provider: a.Provider,
		Model:    a.ModelName,
		APIKey:   a.APIKey,
		BaseURL:  a.BaseURL,
	}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults fills unset fields.
func (a *AgentConfig) SetDefaults() {
	if a.ModelName == "" {
		a.ModelName = defaultModelFor(a.Provider)
	}
	if a.Temperature == 0 {
		a.Temperature = 0.7
	}
	if a.MaxTokens == 0 {
		a.MaxTokens = 4096
	}
	if a.ToolProfile == "" {
		a.ToolProfile = ProfileMinimal
	}
	a.MemorySearch.SetDefaults()
}

// Validate checks the agent definition.
func (a *AgentConfig) Validate() error {
	if err := a.LLM().Validate(); err != nil {
		return err
	}
	if a.Temperature < 0 || a.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %g", a.Temperature)
	}
	if a.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", a.MaxTokens)
	}
	if a.RateLimitRPM < 0 {
		return fmt.Errorf("rate_limit_rpm must not be negative, got %d", a.RateLimitRPM)
	}
	switch a.ToolProfile {
	case ProfileMinimal, ProfileCoding, ProfileMessaging, ProfileFull:
	default:
		return fmt.Errorf("invalid tool_profile %q (valid: minimal, coding, messaging, full)", a.ToolProfile)
	}
	return a.MemorySearch.Validate()
}
