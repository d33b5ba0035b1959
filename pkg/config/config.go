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

// Package config defines the configuration model: one struct per concern,
// each with SetDefaults and Validate, loaded from YAML with environment
// variable expansion.
package config

import (
	"fmt"
	"sort"
)

// ObservabilityConfig configures metrics and tracing.
type ObservabilityConfig struct {
	// MetricsEnabled exposes Prometheus metrics on /metrics.
	MetricsEnabled bool `yaml:"metrics_enabled,omitempty" json:"metrics_enabled,omitempty"`

	// TracingEnabled turns on span export.
	TracingEnabled bool `yaml:"tracing_enabled,omitempty" json:"tracing_enabled,omitempty"`

	// TracingExporter: otlp or stdout.
	TracingExporter string `yaml:"tracing_exporter,omitempty" json:"tracing_exporter,omitempty"`

	// OTLPEndpoint is the collector address for the otlp exporter.
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty" json:"otlp_endpoint,omitempty"`

	// ServiceName reported on exported telemetry.
	ServiceName string `yaml:"service_name,omitempty" json:"service_name,omitempty"`
}

func (c *ObservabilityConfig) SetDefaults() {
	if c.TracingExporter == "" {
		c.TracingExporter = "stdout"
	}
	if c.OTLPEndpoint == "" {
		c.OTLPEndpoint = "localhost:4317"
	}
	if c.ServiceName == "" {
		c.ServiceName = "mrvn"
	}
}

func (c *ObservabilityConfig) Validate() error {
	switch c.TracingExporter {
	case "otlp", "stdout":
	default:
		return fmt.Errorf("invalid tracing_exporter %q (valid: otlp, stdout)", c.TracingExporter)
	}
	return nil
}

// Config is the root configuration document.
type Config struct {
	Logging       LoggingConfig          `yaml:"logging,omitempty" json:"logging,omitempty"`
	Server        ServerConfig           `yaml:"server,omitempty" json:"server,omitempty"`
	Database      DatabaseConfig         `yaml:"database,omitempty" json:"database,omitempty"`
	Embedder      EmbedderConfig         `yaml:"embedder,omitempty" json:"embedder,omitempty"`
	Memory        MemoryConfig           `yaml:"memory,omitempty" json:"memory,omitempty"`
	RateLimit     RateLimitConfig        `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty"`
	Tools         ToolsConfig            `yaml:"tools,omitempty" json:"tools,omitempty"`
	Observability ObservabilityConfig    `yaml:"observability,omitempty" json:"observability,omitempty"`
	Agents        map[string]*AgentConfig `yaml:"agents,omitempty" json:"agents,omitempty"`
}

// SetDefaults fills every section, propagates fleet-wide defaults into
// agents, and assigns agent names from their map keys.
func (c *Config) SetDefaults() {
	c.Logging.SetDefaults()
	c.Server.SetDefaults()
	c.Database.SetDefaults()
	c.Embedder.SetDefaults()

	// An absent memory.search section means search is on with stock tuning.
	if c.Memory.Search == (SearchConfig{}) {
		c.Memory.Search.Enabled = true
		c.Memory.Search.SessionMemory = true
	}
	// pgvector lives inside the relational database, so it is only the
	// default when that database is postgres. Other drivers get the
	// embedded chromem store.
	if c.Memory.Backend == "" && c.Database.Driver != DriverPostgres {
		c.Memory.Backend = BackendChromem
	}
	c.Memory.SetDefaults()

	c.RateLimit.SetDefaults()
	c.Tools.SetDefaults()
	c.Observability.SetDefaults()

	if c.Agents == nil {
		c.Agents = make(map[string]*AgentConfig)
	}

	// Deterministic ID assignment: sorted by name, skipping taken IDs.
	names := make([]string, 0, len(c.Agents))
	taken := make(map[int64]bool, len(c.Agents))
	for name, agent := range c.Agents {
		names = append(names, name)
		if agent.ID != 0 {
			taken[agent.ID] = true
		}
	}
	sort.Strings(names)
	var nextID int64 = 1
	for _, name := range names {
		agent := c.Agents[name]
		if agent.Name == "" {
			agent.Name = name
		}
		if agent.ID == 0 {
			for taken[nextID] {
				nextID++
			}
			agent.ID = nextID
			taken[nextID] = true
		}

		// Fleet-wide rate limit unless the agent configured its own.
		if !agent.RateLimitEnabled && c.RateLimit.Enabled {
			agent.RateLimitEnabled = true
			if agent.RateLimitRPM == 0 {
				agent.RateLimitRPM = c.RateLimit.RPM
			}
		}

		// Agents without their own search tuning inherit the fleet's.
		if agent.MemorySearch == (SearchConfig{}) {
			agent.MemorySearch = c.Memory.Search
		}

		agent.SetDefaults()
	}
}

// Validate checks the whole document.
func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Embedder.Validate(); err != nil {
		return fmt.Errorf("embedder: %w", err)
	}
	if err := c.Memory.Validate(); err != nil {
		return fmt.Errorf("memory: %w", err)
	}
	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("rate_limit: %w", err)
	}
	if err := c.Tools.Validate(); err != nil {
		return fmt.Errorf("tools: %w", err)
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("observability: %w", err)
	}

	ids := make(map[int64]string, len(c.Agents))
	for name, agent := range c.Agents {
		if err := agent.Validate(); err != nil {
			return fmt.Errorf("agent %q: %w", name, err)
		}
		if other, dup := ids[agent.ID]; dup {
			return fmt.Errorf("agents %q and %q share id %d", other, name, agent.ID)
		}
		ids[agent.ID] = name
	}
	return nil
}

// Agent returns the named agent or an error listing what exists.
func (c *Config) Agent(name string) (*AgentConfig, error) {
	if agent, ok := c.Agents[name]; ok {
		return agent, nil
	}
	names := make([]string, 0, len(c.Agents))
	for n := range c.Agents {
		names = append(names, n)
	}
	return nil, fmt.Errorf("unknown agent %q (configured: %v)", name, names)
}
