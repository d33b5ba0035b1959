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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mrvn-ai/mrvn/pkg/config"
)

// ErrSessionNotFound is returned when a session id does not exist.
var ErrSessionNotFound = errors.New("session not found")

// HistoryStore persists sessions, messages, and conversation summaries
// in the relational database. Text search reads from it directly.
type HistoryStore struct {
	db     *sql.DB
	driver config.DatabaseDriver
	logger *slog.Logger
}

// NewHistoryStore wraps an open database handle. The schema must already
// be migrated (see Migrate).
func NewHistoryStore(db *sql.DB, driver config.DatabaseDriver) *HistoryStore {
	return &HistoryStore{
		db:     db,
		driver: driver,
		logger: slog.With("component", "memory"),
	}
}

// CreateSession opens a new conversation session for an agent.
func (s *HistoryStore) CreateSession(ctx context.Context, agentID int64, metadata map[string]any) (*Session, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal session metadata: %w", err)
	}

	now := time.Now().UTC()
	id, err := s.insert(ctx,
		`INSERT INTO sessions (agent_id, is_active, metadata, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		agentID, true, string(raw), now, now)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.logger.Debug("Created session", "session", id, "agent", agentID)
	return &Session{
		ID:        id,
		AgentID:   agentID,
		IsActive:  true,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetSession loads one session by id.
func (s *HistoryStore) GetSession(ctx context.Context, id int64) (*Session, error) {
	query := rebind(s.driver,
		`SELECT id, agent_id, is_active, metadata, created_at, updated_at FROM sessions WHERE id = ?`)

	var (
		sess Session
		raw  string
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&sess.ID, &sess.AgentID, &sess.IsActive, &raw, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %d: %w", id, err)
	}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &sess.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal session metadata: %w", err)
		}
	}
	return &sess, nil
}

// CloseSession marks a session inactive.
func (s *HistoryStore) CloseSession(ctx context.Context, id int64) error {
	query := rebind(s.driver, `UPDATE sessions SET is_active = ?, updated_at = ? WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query, false, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("close session %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// AppendMessage persists one message and fills in its id.
func (s *HistoryStore) AppendMessage(ctx context.Context, msg *Message) (*Message, error) {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	id, err := s.insert(ctx,
		`INSERT INTO messages (session_id, role, content, tool_call_id, tool_name, input_tokens, output_tokens, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.SessionID, msg.Role, msg.Content, msg.ToolCallID, msg.ToolName,
		msg.InputTokens, msg.OutputTokens, msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	msg.ID = id
	return msg, nil
}

// Messages returns a session's messages oldest first. limit <= 0 returns
// all of them.
func (s *HistoryStore) Messages(ctx context.Context, sessionID int64, limit int) ([]Message, error) {
	query := `SELECT id, session_id, role, content, tool_call_id, tool_name, input_tokens, output_tokens, created_at
		 FROM messages WHERE session_id = ? ORDER BY created_at, id`
	args := []any{sessionID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, rebind(s.driver, query), args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// SaveSummary persists one conversation summary and fills in its id.
func (s *HistoryStore) SaveSummary(ctx context.Context, sum *Summary) (*Summary, error) {
	if sum.CreatedAt.IsZero() {
		sum.CreatedAt = time.Now().UTC()
	}
	id, err := s.insert(ctx,
		`INSERT INTO summaries (session_id, summary, messages_summarized, created_at) VALUES (?, ?, ?, ?)`,
		sum.SessionID, sum.Summary, sum.MessagesSummarized, sum.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("save summary: %w", err)
	}
	sum.ID = id
	return sum, nil
}

// SearchMessages returns messages containing ANY of the given tokens,
// newest first. A sessionID > 0 scopes to that session, otherwise an
// agentID > 0 scopes to the agent's sessions.
func (s *HistoryStore) SearchMessages(ctx context.Context, agentID, sessionID int64, tokens []string, limit int) ([]Message, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	var (
		wheres []string
		args   []any
	)
	switch {
	case sessionID > 0:
		wheres = append(wheres, "m.session_id = ?")
		args = append(args, sessionID)
	case agentID > 0:
		wheres = append(wheres, "s.agent_id = ?")
		args = append(args, agentID)
	}

	likes := make([]string, len(tokens))
	for i, tok := range tokens {
		likes[i] = "LOWER(m.content) LIKE ?"
		args = append(args, "%"+strings.ToLower(tok)+"%")
	}
	wheres = append(wheres, "("+strings.Join(likes, " OR ")+")")

	query := `SELECT m.id, m.session_id, m.role, m.content, m.tool_call_id, m.tool_name, m.input_tokens, m.output_tokens, m.created_at
		 FROM messages m
		 JOIN sessions s ON s.id = m.session_id
		 WHERE ` + strings.Join(wheres, " AND ") + `
		 ORDER BY m.created_at DESC, m.id DESC
		 LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, rebind(s.driver, query), args...)
	if err != nil {
		return nil, fmt.Errorf("search messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// SearchSummaries returns summaries containing the whole query string,
// newest first, with the same scoping rules as SearchMessages.
func (s *HistoryStore) SearchSummaries(ctx context.Context, agentID, sessionID int64, query string, limit int) ([]Summary, error) {
	var (
		wheres []string
		args   []any
	)
	switch {
	case sessionID > 0:
		wheres = append(wheres, "sm.session_id = ?")
		args = append(args, sessionID)
	case agentID > 0:
		wheres = append(wheres, "s.agent_id = ?")
		args = append(args, agentID)
	}
	wheres = append(wheres, "LOWER(sm.summary) LIKE ?")
	args = append(args, "%"+strings.ToLower(query)+"%")

	stmt := `SELECT sm.id, sm.session_id, sm.summary, sm.messages_summarized, sm.created_at
		 FROM summaries sm
		 JOIN sessions s ON s.id = sm.session_id
		 WHERE ` + strings.Join(wheres, " AND ") + `
		 ORDER BY sm.created_at DESC, sm.id DESC
		 LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, rebind(s.driver, stmt), args...)
	if err != nil {
		return nil, fmt.Errorf("search summaries: %w", err)
	}
	defer rows.Close()

	var sums []Summary
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.ID, &sum.SessionID, &sum.Summary, &sum.MessagesSummarized, &sum.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		sums = append(sums, sum)
	}
	return sums, rows.Err()
}

// insert runs an INSERT and returns the new row id, papering over the
// postgres RETURNING vs LastInsertId split.
func (s *HistoryStore) insert(ctx context.Context, query string, args ...any) (int64, error) {
	if s.driver == config.DriverPostgres {
		var id int64
		err := s.db.QueryRowContext(ctx, rebind(s.driver, query+" RETURNING id"), args...).Scan(&id)
		return id, err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.ToolCallID, &m.ToolName,
			&m.InputTokens, &m.OutputTokens, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
