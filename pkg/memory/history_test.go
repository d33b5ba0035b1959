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
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrvn-ai/mrvn/pkg/config"
)

// newTestDB opens a migrated sqlite database in a temp dir. The sqlite3
// driver registers through the config package's pool imports.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "mrvn.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, Migrate(context.Background(), db, config.DriverSQLite))
	return db
}

func TestHistorySessionLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewHistoryStore(newTestDB(t), config.DriverSQLite)

	sess, err := store.CreateSession(ctx, 7, map[string]any{"channel": "discord"})
	require.NoError(t, err)
	assert.Greater(t, sess.ID, int64(0))
	assert.True(t, sess.IsActive)

	got, err := store.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.AgentID)
	assert.Equal(t, "discord", got.Metadata["channel"])
	assert.WithinDuration(t, time.Now().UTC(), got.CreatedAt, 5*time.Second)

	require.NoError(t, store.CloseSession(ctx, sess.ID))
	got, err = store.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	_, err = store.GetSession(ctx, 9999)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, store.CloseSession(ctx, 9999), ErrSessionNotFound)
}

func TestHistoryAppendAndListMessages(t *testing.T) {
	ctx := context.Background()
	store := NewHistoryStore(newTestDB(t), config.DriverSQLite)

	sess, err := store.CreateSession(ctx, 1, nil)
	require.NoError(t, err)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var ids []int64
	for i, m := range []Message{
		{SessionID: sess.ID, Role: "user", Content: "what is the tallest mountain", InputTokens: 12},
		{SessionID: sess.ID, Role: "assistant", Content: "calling a tool", ToolCallID: "call_1", ToolName: "web_search"},
		{SessionID: sess.ID, Role: "tool", Content: "Mount Everest, 8849m", ToolCallID: "call_1", ToolName: "web_search"},
	} {
		m.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		saved, err := store.AppendMessage(ctx, &m)
		require.NoError(t, err)
		ids = append(ids, saved.ID)
	}
	assert.Less(t, ids[0], ids[1])
	assert.Less(t, ids[1], ids[2])

	msgs, err := store.Messages(ctx, sess.ID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "call_1", msgs[1].ToolCallID)
	assert.Equal(t, "web_search", msgs[2].ToolName)
	assert.Equal(t, 12, msgs[0].InputTokens)

	limited, err := store.Messages(ctx, sess.ID, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, msgs[0].ID, limited[0].ID)
}

func TestHistorySearchMessages(t *testing.T) {
	ctx := context.Background()
	store := NewHistoryStore(newTestDB(t), config.DriverSQLite)

	sessA, err := store.CreateSession(ctx, 7, nil)
	require.NoError(t, err)
	sessB, err := store.CreateSession(ctx, 7, nil)
	require.NoError(t, err)
	other, err := store.CreateSession(ctx, 8, nil)
	require.NoError(t, err)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	seed := []struct {
		session int64
		content string
	}{
		{sessA.ID, "the Gopher mascot is blue"},
		{sessA.ID, "rust has a crab"},
		{sessB.ID, "gopher plushies everywhere"},
		{other.ID, "a gopher for another agent"},
	}
	for i, m := range seed {
		_, err := store.AppendMessage(ctx, &Message{
			SessionID: m.session,
			Role:      "user",
			Content:   m.content,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	t.Run("agent scope spans sessions", func(t *testing.T) {
		msgs, err := store.SearchMessages(ctx, 7, 0, []string{"gopher"}, 10)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		// Newest first.
		assert.Equal(t, "gopher plushies everywhere", msgs[0].Content)
		assert.Equal(t, "the Gopher mascot is blue", msgs[1].Content)
	})

	t.Run("session scope wins over agent scope", func(t *testing.T) {
		msgs, err := store.SearchMessages(ctx, 7, sessA.ID, []string{"gopher"}, 10)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, sessA.ID, msgs[0].SessionID)
	})

	t.Run("any token matches", func(t *testing.T) {
		msgs, err := store.SearchMessages(ctx, 7, 0, []string{"crab", "mascot"}, 10)
		require.NoError(t, err)
		assert.Len(t, msgs, 2)
	})

	t.Run("limit caps results", func(t *testing.T) {
		msgs, err := store.SearchMessages(ctx, 7, 0, []string{"gopher"}, 1)
		require.NoError(t, err)
		assert.Len(t, msgs, 1)
	})

	t.Run("no tokens yields nothing", func(t *testing.T) {
		msgs, err := store.SearchMessages(ctx, 7, 0, nil, 10)
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})
}

func TestHistorySearchSummaries(t *testing.T) {
	ctx := context.Background()
	store := NewHistoryStore(newTestDB(t), config.DriverSQLite)

	sess, err := store.CreateSession(ctx, 7, nil)
	require.NoError(t, err)
	other, err := store.CreateSession(ctx, 8, nil)
	require.NoError(t, err)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, s := range []struct {
		session int64
		text    string
	}{
		{sess.ID, "User asked about Whale Migration routes"},
		{sess.ID, "Planning a trip to the mountains"},
		{other.ID, "whale migration for another agent"},
	} {
		_, err := store.SaveSummary(ctx, &Summary{
			SessionID:          s.session,
			Summary:            s.text,
			MessagesSummarized: 10,
			CreatedAt:          base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	sums, err := store.SearchSummaries(ctx, 7, 0, "whale migration", 10)
	require.NoError(t, err)
	require.Len(t, sums, 1)
	assert.Equal(t, "User asked about Whale Migration routes", sums[0].Summary)
	assert.Equal(t, 10, sums[0].MessagesSummarized)

	sums, err = store.SearchSummaries(ctx, 7, other.ID, "whale", 10)
	require.NoError(t, err)
	require.Len(t, sums, 1)
	assert.Equal(t, other.ID, sums[0].SessionID)
}
