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
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testChunk() *Chunk {
	return &Chunk{
		AgentID:        1,
		Source:         SourceMessage,
		SourceID:       10,
		Text:           "the blue whale is the largest animal",
		Embedding:      []float32{0.1, 0.2, 0.3},
		EmbeddingModel: "all-MiniLM-L6-v2",
		ContentHash:    ContentHash("the blue whale is the largest animal"),
	}
}

func TestPgChunkStoreUpsert(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts new chunk", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		chunk := testChunk()
		mock.ExpectQuery("SELECT id, content_hash FROM memory_chunks").
			WithArgs(int64(1), "message", int64(10)).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery("INSERT INTO memory_chunks").
			WithArgs(int64(1), "message", int64(10), chunk.Text,
				encodeVector(chunk.Embedding), chunk.EmbeddingModel, chunk.ContentHash).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

		saved, err := NewPgChunkStore(db).Upsert(ctx, chunk)
		require.NoError(t, err)
		assert.Equal(t, int64(42), saved.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("skips unchanged content", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		chunk := testChunk()
		mock.ExpectQuery("SELECT id, content_hash FROM memory_chunks").
			WithArgs(int64(1), "message", int64(10)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "content_hash"}).
				AddRow(42, chunk.ContentHash))

		saved, err := NewPgChunkStore(db).Upsert(ctx, chunk)
		require.NoError(t, err)
		assert.Equal(t, int64(42), saved.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("replaces changed content", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		chunk := testChunk()
		mock.ExpectQuery("SELECT id, content_hash FROM memory_chunks").
			WithArgs(int64(1), "message", int64(10)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "content_hash"}).
				AddRow(42, "stale-hash"))
		mock.ExpectExec("UPDATE memory_chunks SET").
			WithArgs(chunk.Text, encodeVector(chunk.Embedding), chunk.ContentHash,
				sqlmock.AnyArg(), int64(42), int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		saved, err := NewPgChunkStore(db).Upsert(ctx, chunk)
		require.NoError(t, err)
		assert.Equal(t, int64(42), saved.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("propagates lookup failures", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("SELECT id, content_hash FROM memory_chunks").
			WillReturnError(assert.AnError)

		_, err = NewPgChunkStore(db).Upsert(ctx, testChunk())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "lookup chunk")
	})
}

func TestPgChunkStoreQuery(t *testing.T) {
	ctx := context.Background()
	vec := []float32{0.1, 0.2, 0.3}

	t.Run("sets ef_search inside the transaction", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec("SET LOCAL hnsw.ef_search = 100").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT source, source_id, text, 1").
			WithArgs(encodeVector(vec), int64(7), 4).
			WillReturnRows(sqlmock.NewRows([]string{"source", "source_id", "text", "score"}).
				AddRow("message", 11, "blue whale", 0.93).
				AddRow("summary", 3, "ocean recap", 0.52))
		mock.ExpectCommit()

		hits, err := NewPgChunkStore(db).Query(ctx, 7, vec, 4, 100)
		require.NoError(t, err)
		require.Len(t, hits, 2)
		assert.Equal(t, SourceMessage, hits[0].Source)
		assert.Equal(t, int64(11), hits[0].SourceID)
		assert.Equal(t, "blue whale", hits[0].Text)
		assert.InDelta(t, 0.93, hits[0].Score, 1e-9)
		assert.Equal(t, SourceSummary, hits[1].Source)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("skips ef_search override when zero", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT source, source_id, text, 1").
			WithArgs(encodeVector(vec), int64(7), 4).
			WillReturnRows(sqlmock.NewRows([]string{"source", "source_id", "text", "score"}))
		mock.ExpectCommit()

		hits, err := NewPgChunkStore(db).Query(ctx, 7, vec, 4, 0)
		require.NoError(t, err)
		assert.Empty(t, hits)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgChunkStoreEnsureAgentPartition(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS memory_chunks_agent_9 PARTITION OF memory_chunks").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, NewPgChunkStore(db).EnsureAgentPartition(context.Background(), 9))
	assert.NoError(t, mock.ExpectationsWereMet())
}
