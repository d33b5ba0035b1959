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

package memory

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/mrvn-ai/mrvn/pkg/config"
	"github.com/mrvn-ai/mrvn/pkg/vector"
)

// ChunkHit is one scored chunk from a vector search.
type ChunkHit struct {
	Source   ChunkSource
	SourceID int64
	Text     string
	Score    float64
}

// ChunkStore persists embedding chunks and answers similarity queries.
// Upsert keeps at most one chunk per (agent, source, source id): an
// unchanged content hash is a no-op, a changed one replaces the stored
// text and embedding.
type ChunkStore interface {
	Upsert(ctx context.Context, chunk *Chunk) (*Chunk, error)
	Query(ctx context.Context, agentID int64, embedding []float32, topK, efSearch int) ([]ChunkHit, error)
	Close() error
}

// NewChunkStore creates the chunk store for the configured backend.
// pgvector stores chunks in the relational database and requires the
// postgres driver; qdrant and chromem go through the vector package.
func NewChunkStore(ctx context.Context, cfg *config.MemoryConfig, pool *config.DBPool, dbCfg *config.DatabaseConfig) (ChunkStore, error) {
	switch cfg.Backend {
	case config.BackendPgvector:
		if dbCfg.Driver != config.DriverPostgres {
			return nil, fmt.Errorf("pgvector backend requires the postgres driver, have %s", dbCfg.Driver)
		}
		db, err := pool.Get(ctx, dbCfg)
		if err != nil {
			return nil, err
		}
		return NewPgChunkStore(db), nil
	default:
		store, err := vector.New(cfg.Backend, &cfg.Vector)
		if err != nil {
			return nil, err
		}
		return NewVectorChunkStore(store), nil
	}
}

// VectorChunkStore adapts a vector.Store to the chunk schema. Chunks are
// keyed "<source>:<source_id>" inside a per-agent collection, and a
// content hash map makes unchanged re-upserts cheap.
type VectorChunkStore struct {
	store vector.Store

	mu     sync.RWMutex
	hashes map[string]string
}

// NewVectorChunkStore wraps a vector store.
func NewVectorChunkStore(store vector.Store) *VectorChunkStore {
	return &VectorChunkStore{
		store:  store,
		hashes: make(map[string]string),
	}
}

func collectionName(agentID int64) string {
	return fmt.Sprintf("agent_%d", agentID)
}

func chunkKey(source ChunkSource, sourceID int64) string {
	return fmt.Sprintf("%s:%d", source, sourceID)
}

func (s *VectorChunkStore) Upsert(ctx context.Context, chunk *Chunk) (*Chunk, error) {
	key := chunkKey(chunk.Source, chunk.SourceID)
	cacheKey := collectionName(chunk.AgentID) + ":" + key

	s.mu.RLock()
	prev, seen := s.hashes[cacheKey]
	s.mu.RUnlock()
	if seen && prev == chunk.ContentHash {
		return chunk, nil
	}

	metadata := map[string]any{
		"source":          string(chunk.Source),
		"source_id":       chunk.SourceID,
		"content_hash":    chunk.ContentHash,
		"embedding_model": chunk.EmbeddingModel,
	}
	err := s.store.Upsert(ctx, collectionName(chunk.AgentID), key, chunk.Embedding, chunk.Text, metadata)
	if err != nil {
		return nil, fmt.Errorf("upsert chunk %s: %w", key, err)
	}

	s.mu.Lock()
	s.hashes[cacheKey] = chunk.ContentHash
	s.mu.Unlock()
	return chunk, nil
}

func (s *VectorChunkStore) Query(ctx context.Context, agentID int64, embedding []float32, topK, efSearch int) ([]ChunkHit, error) {
	results, err := s.store.Search(ctx, collectionName(agentID), embedding, vector.SearchParams{
		TopK:     topK,
		EfSearch: efSearch,
	})
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}

	hits := make([]ChunkHit, 0, len(results))
	for _, r := range results {
		source, rawID, ok := strings.Cut(r.ID, ":")
		if !ok {
			continue
		}
		sourceID, err := strconv.ParseInt(rawID, 10, 64)
		if err != nil {
			continue
		}
		hits = append(hits, ChunkHit{
			Source:   ChunkSource(source),
			SourceID: sourceID,
			Text:     r.Content,
			Score:    float64(r.Score),
		})
	}
	return hits, nil
}

func (s *VectorChunkStore) Close() error {
	return s.store.Close()
}
