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

// SearchType selects the retrieval pipeline.
type SearchType string

const (
	SearchHybrid SearchType = "hybrid"
	SearchVector SearchType = "vector"
	SearchText   SearchType = "text"
)

// HybridWeights weights the two retrieval legs when merging.
type HybridWeights struct {
	Vector float64 `yaml:"vector,omitempty" json:"vector,omitempty"`
	Text   float64 `yaml:"text,omitempty" json:"text,omitempty"`
}

// SearchConfig tunes hybrid memory search for one agent.
type SearchConfig struct {
	// Enabled turns memory search on. Disabled search returns nothing.
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// SessionMemory scopes text search to the current session when set.
	SessionMemory bool `yaml:"session_memory,omitempty" json:"session_memory,omitempty"`

	// ChunkSize bounds indexed chunk length in tokens.
	ChunkSize int `yaml:"chunk_size,omitempty" json:"chunk_size,omitempty"`

	// ChunkOverlap is the token overlap between consecutive chunks.
	ChunkOverlap int `yaml:"chunk_overlap,omitempty" json:"chunk_overlap,omitempty"`

	// MaxResults caps returned results.
	MaxResults int `yaml:"max_results,omitempty" json:"max_results,omitempty"`

	// MinScore drops weaker matches.
	MinScore float64 `yaml:"min_score,omitempty" json:"min_score,omitempty"`

	// HybridWeights weights vector vs text scores in hybrid mode.
	HybridWeights HybridWeights `yaml:"hybrid_weights,omitempty" json:"hybrid_weights,omitempty"`

	// EmbeddingModel names the encoder model; part of the cache key.
	EmbeddingModel string `yaml:"embedding_model,omitempty" json:"embedding_model,omitempty"`

	// EfSearch is the HNSW ef_search applied for each vector query.
	EfSearch int `yaml:"ef_search,omitempty" json:"ef_search,omitempty"`

	// SearchType picks the pipeline (hybrid, vector, text).
	SearchType SearchType `yaml:"search_type,omitempty" json:"search_type,omitempty"`
}

// SetDefaults fills the documented defaults.
func (c *SearchConfig) SetDefaults() {
	if c.ChunkSize == 0 {
		c.ChunkSize = 400
	}
	if c.ChunkOverlap == 0 {
		c.ChunkOverlap = 80
	}
	if c.MaxResults == 0 {
		c.MaxResults = 6
	}
	if c.MinScore == 0 {
		c.MinScore = 0.35
	}
	if c.HybridWeights.Vector == 0 && c.HybridWeights.Text == 0 {
		c.HybridWeights = HybridWeights{Vector: 0.7, Text: 0.3}
	}
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = "all-MiniLM-L6-v2"
	}
	if c.EfSearch == 0 {
		c.EfSearch = 100
	}
	if c.SearchType == "" {
		c.SearchType = SearchHybrid
	}
}

// Validate checks the tuning parameters.
func (c *SearchConfig) Validate() error {
	if c.MaxResults < 0 {
		return fmt.Errorf("max_results must not be negative, got %d", c.MaxResults)
	}
	if c.MinScore < 0 || c.MinScore > 1 {
		return fmt.Errorf("min_score must be between 0 and 1, got %g", c.MinScore)
	}
	if c.ChunkOverlap >= c.ChunkSize && c.ChunkSize > 0 {
		return fmt.Errorf("chunk_overlap (%d) must be smaller than chunk_size (%d)", c.ChunkOverlap, c.ChunkSize)
	}
	if c.EfSearch < 0 {
		return fmt.Errorf("ef_search must not be negative, got %d", c.EfSearch)
	}
	return nil
}

// MemoryBackend identifies the chunk store implementation.
type MemoryBackend string

const (
	// BackendPgvector stores chunks in Postgres with the pgvector extension.
	BackendPgvector MemoryBackend = "pgvector"
	// BackendQdrant stores chunks in a Qdrant collection per agent.
	BackendQdrant MemoryBackend = "qdrant"
	// BackendChromem stores chunks in an embedded chromem-go store.
	BackendChromem MemoryBackend = "chromem"
)

// MemoryConfig configures the memory subsystem: where chunks live and how
// search behaves by default.
type MemoryConfig struct {
	// Backend selects the chunk store (pgvector, qdrant, chromem).
	Backend MemoryBackend `yaml:"backend,omitempty" json:"backend,omitempty"`

	// Vector configures the qdrant/chromem backends.
	Vector VectorConfig `yaml:"vector,omitempty" json:"vector,omitempty"`

	// Search provides fleet-wide search defaults; agents override per agent.
	Search SearchConfig `yaml:"search,omitempty" json:"search,omitempty"`
}

func (c *MemoryConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = BackendPgvector
	}
	c.Vector.SetDefaults()
	c.Search.SetDefaults()
}

func (c *MemoryConfig) Validate() error {
	switch c.Backend {
	case BackendPgvector, BackendQdrant, BackendChromem:
	default:
		return fmt.Errorf("invalid memory backend %q (valid: pgvector, qdrant, chromem)", c.Backend)
	}
	if err := c.Vector.Validate(); err != nil {
		return err
	}
	return c.Search.Validate()
}
