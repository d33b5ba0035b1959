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

// VectorConfig configures the non-SQL vector store backends.
type VectorConfig struct {
	// Host of the qdrant server.
	Host string `yaml:"host,omitempty" json:"host,omitempty"`

	// Port of the qdrant gRPC endpoint.
	Port int `yaml:"port,omitempty" json:"port,omitempty"`

	// APIKey for qdrant cloud deployments.
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty"`

	// UseTLS enables TLS towards qdrant.
	UseTLS bool `yaml:"use_tls,omitempty" json:"use_tls,omitempty"`

	// CollectionPrefix namespaces collections, one per agent.
	CollectionPrefix string `yaml:"collection_prefix,omitempty" json:"collection_prefix,omitempty"`

	// Path is the chromem persistence directory. Empty means in-memory.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	// Dimension of stored vectors.
	Dimension int `yaml:"dimension,omitempty" json:"dimension,omitempty"`
}

func (c *VectorConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.CollectionPrefix == "" {
		c.CollectionPrefix = "mrvn"
	}
	if c.Dimension == 0 {
		c.Dimension = 384
	}
}

func (c *VectorConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid vector store port %d", c.Port)
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("vector dimension must be positive, got %d", c.Dimension)
	}
	return nil
}
