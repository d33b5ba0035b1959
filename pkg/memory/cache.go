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
	"database/sql"
	"errors"
	"fmt"

	"github.com/mrvn-ai/mrvn/pkg/config"
)

// EmbeddingCache stores computed embeddings keyed by model name and
// content hash, so re-indexing unchanged text never calls the encoder.
type EmbeddingCache struct {
	db     *sql.DB
	driver config.DatabaseDriver
}

// NewEmbeddingCache wraps an open database handle.
func NewEmbeddingCache(db *sql.DB, driver config.DatabaseDriver) *EmbeddingCache {
	return &EmbeddingCache{db: db, driver: driver}
}

// Get returns the cached embedding for (model, hash), or nil on a miss.
func (c *EmbeddingCache) Get(ctx context.Context, model, hash string) ([]float32, error) {
	query := rebind(c.driver,
		`SELECT embedding FROM embedding_cache WHERE embedding_model = ? AND content_hash = ?`)

	var raw string
	err := c.db.QueryRowContext(ctx, query, model, hash).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("embedding cache get: %w", err)
	}
	return decodeVector(raw)
}

// Put stores an embedding. Concurrent writers racing on the same key are
// harmless since the value is identical, so duplicates are ignored.
func (c *EmbeddingCache) Put(ctx context.Context, model, hash string, embedding []float32) error {
	var query string
	switch c.driver {
	case config.DriverPostgres:
		query = `INSERT INTO embedding_cache (embedding_model, content_hash, embedding) VALUES (?, ?, ?)
			 ON CONFLICT (embedding_model, content_hash) DO NOTHING`
	case config.DriverMySQL:
		query = `INSERT IGNORE INTO embedding_cache (embedding_model, content_hash, embedding) VALUES (?, ?, ?)`
	default:
		query = `INSERT OR IGNORE INTO embedding_cache (embedding_model, content_hash, embedding) VALUES (?, ?, ?)`
	}

	_, err := c.db.ExecContext(ctx, rebind(c.driver, query), model, hash, encodeVector(embedding))
	if err != nil {
		return fmt.Errorf("embedding cache put: %w", err)
	}
	return nil
}
