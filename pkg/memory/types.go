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

// Package memory indexes conversation history and summaries into a
// partitioned chunk store and answers vector, text, and hybrid queries
// over them. Embeddings are cached globally by content hash so repeated
// text never hits the encoder twice.
package memory

import (
	"time"

	"github.com/mrvn-ai/mrvn/pkg/config"
)

// ChunkSource identifies what a stored chunk was derived from.
type ChunkSource string

const (
	SourceMessage ChunkSource = "message"
	SourceSummary ChunkSource = "summary"
	SourceFile    ChunkSource = "file"
)

// Chunk is one embedded unit of memory. (AgentID, Source, SourceID) is
// unique; re-indexing the same source with changed text replaces the
// embedding in place.
type Chunk struct {
	ID             int64
	AgentID        int64
	Source         ChunkSource
	SourceID       int64
	Text           string
	Embedding      []float32
	EmbeddingModel string
	ContentHash    string
}

// SearchResult is one scored hit from any search mode. Exactly one of
// MessageID and SummaryID is set, matching Source.
type SearchResult struct {
	Content   string         `json:"content"`
	Score     float64        `json:"score"`
	Source    string         `json:"source"`
	MessageID int64          `json:"message_id,omitempty"`
	SummaryID int64          `json:"summary_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// SearchOptions scope a query to an agent and optionally a session.
type SearchOptions struct {
	AgentID    int64
	SessionID  int64
	Type       config.SearchType
	MaxResults int
}

// Session is one conversation thread owned by an agent.
type Session struct {
	ID        int64          `json:"id"`
	AgentID   int64          `json:"agent_id"`
	IsActive  bool           `json:"is_active"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Message is one persisted conversation entry.
type Message struct {
	ID           int64     `json:"id"`
	SessionID    int64     `json:"session_id"`
	Role         string    `json:"role"`
	Content      string    `json:"content"`
	ToolCallID   string    `json:"tool_call_id,omitempty"`
	ToolName     string    `json:"tool_name,omitempty"`
	InputTokens  int       `json:"input_tokens,omitempty"`
	OutputTokens int       `json:"output_tokens,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Summary condenses a span of older messages so long sessions keep
// their context reachable.
type Summary struct {
	ID                 int64     `json:"id"`
	SessionID          int64     `json:"session_id"`
	Summary            string    `json:"summary"`
	MessagesSummarized int       `json:"messages_summarized"`
	CreatedAt          time.Time `json:"created_at"`
}
