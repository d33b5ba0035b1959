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
	"log/slog"
	"time"
)

// PgChunkStore keeps embedding chunks in the memory_chunks table, list
// partitioned by agent and indexed with pgvector HNSW. It only works on
// postgres and writes $n placeholders directly.
type PgChunkStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPgChunkStore wraps an open postgres handle. The schema must already
// be migrated and the pgvector extension installed.
func NewPgChunkStore(db *sql.DB) *PgChunkStore {
	return &PgChunkStore{
		db:     db,
		logger: slog.With("component", "memory"),
	}
}

// Upsert keeps one chunk per (agent, source, source id). The lookup and
// write are separate statements, so two writers racing on a brand new
// key can both insert; the newest row wins at query time and the next
// upsert converges on one of them.
func (s *PgChunkStore) Upsert(ctx context.Context, chunk *Chunk) (*Chunk, error) {
	var (
		id   int64
		hash string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, content_hash FROM memory_chunks WHERE agent_id = $1 AND source = $2 AND source_id = $3`,
		chunk.AgentID, chunk.Source, chunk.SourceID).Scan(&id, &hash)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		err = s.db.QueryRowContext(ctx,
			`INSERT INTO memory_chunks (agent_id, source, source_id, text, embedding, embedding_model, content_hash)
			 VALUES ($1, $2, $3, $4, $5::vector, $6, $7) RETURNING id`,
			chunk.AgentID, chunk.Source, chunk.SourceID, chunk.Text,
			encodeVector(chunk.Embedding), chunk.EmbeddingModel, chunk.ContentHash).Scan(&chunk.ID)
		if err != nil {
			return nil, fmt.Errorf("insert chunk: %w", err)
		}
		return chunk, nil
	case err != nil:
		return nil, fmt.Errorf("lookup chunk: %w", err)
	}

	chunk.ID = id
	if hash == chunk.ContentHash {
		return chunk, nil
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE memory_chunks SET text = $1, embedding = $2::vector, content_hash = $3, updated_at = $4
		 WHERE id = $5 AND agent_id = $6`,
		chunk.Text, encodeVector(chunk.Embedding), chunk.ContentHash, time.Now().UTC(), id, chunk.AgentID)
	if err != nil {
		return nil, fmt.Errorf("update chunk: %w", err)
	}
	return chunk, nil
}

// Query returns the agent's nearest chunks by cosine distance, scored as
// 1 - distance. SET LOCAL needs the query on the same connection, so the
// ef_search override and the scan run inside one transaction.
func (s *PgChunkStore) Query(ctx context.Context, agentID int64, embedding []float32, topK, efSearch int) ([]ChunkHit, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer tx.Rollback()

	if efSearch > 0 {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", efSearch)); err != nil {
			return nil, fmt.Errorf("set ef_search: %w", err)
		}
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT source, source_id, text, 1 - (embedding <=> $1::vector) AS score
		 FROM memory_chunks
		 WHERE agent_id = $2
		 ORDER BY embedding <=> $1::vector
		 LIMIT $3`,
		encodeVector(embedding), agentID, topK)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var hits []ChunkHit
	for rows.Next() {
		var h ChunkHit
		if err := rows.Scan(&h.Source, &h.SourceID, &h.Text, &h.Score); err != nil {
			return nil, fmt.Errorf("scan chunk hit: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return hits, tx.Commit()
}

// EnsureAgentPartition creates the list partition for one agent. It is
// an admin operation for before an agent's first messages arrive: once
// rows for the agent sit in the default partition, postgres rejects the
// new partition and the rows have to be moved by hand.
func (s *PgChunkStore) EnsureAgentPartition(ctx context.Context, agentID int64) error {
	stmt := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS memory_chunks_agent_%d PARTITION OF memory_chunks FOR VALUES IN (%d)`,
		agentID, agentID)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create partition for agent %d: %w", agentID, err)
	}
	s.logger.Info("Ensured agent partition", "agent", agentID)
	return nil
}

// Close is a no-op; the database handle is shared and owned by the pool.
func (s *PgChunkStore) Close() error {
	return nil
}

var (
	_ ChunkStore = (*PgChunkStore)(nil)
	_ ChunkStore = (*VectorChunkStore)(nil)
)
