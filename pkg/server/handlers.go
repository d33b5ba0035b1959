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

package server

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mrvn-ai/mrvn/pkg/agent"
	"github.com/mrvn-ai/mrvn/pkg/auth"
	"github.com/mrvn-ai/mrvn/pkg/config"
	"github.com/mrvn-ai/mrvn/pkg/llms"
	"github.com/mrvn-ai/mrvn/pkg/memory"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the chat API request body. EnableTools and
// SystemPrompt are pointers so an absent field and an explicit value
// stay distinguishable: enable_tools defaults to true, and an empty
// system_prompt suppresses the agent's configured prompt.
type chatRequest struct {
	Message             string        `json:"message"`
	ConversationHistory []chatMessage `json:"conversation_history"`
	EnableTools         *bool         `json:"enable_tools"`
	ToolNames           []string      `json:"tool_names"`
	SystemPrompt        *string       `json:"system_prompt"`
}

type chatResponse struct {
	Content      string          `json:"content"`
	Agent        string          `json:"agent"`
	Model        string          `json:"model"`
	StopReason   string          `json:"stop_reason"`
	InputTokens  int             `json:"input_tokens"`
	OutputTokens int             `json:"output_tokens"`
	ToolCalls    []llms.ToolCall `json:"tool_calls"`
	History      []llms.Message  `json:"history"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "agent")
	cfg, err := s.config().Agent(name)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	messages := make([]llms.Message, 0, len(req.ConversationHistory)+1)
	for _, m := range req.ConversationHistory {
		switch m.Role {
		case "system":
			messages = append(messages, llms.System(m.Content))
		case "assistant":
			messages = append(messages, llms.Assistant(m.Content))
		default:
			messages = append(messages, llms.User(m.Content))
		}
	}
	messages = append(messages, llms.User(req.Message))

	var opts []agent.RunOption
	if req.EnableTools != nil {
		opts = append(opts, agent.WithEnableTools(*req.EnableTools))
	}
	if len(req.ToolNames) > 0 {
		opts = append(opts, agent.WithToolNames(req.ToolNames...))
	}
	if req.SystemPrompt != nil {
		opts = append(opts, agent.WithSystemPrompt(*req.SystemPrompt))
	}

	logger := s.logger
	if claims := auth.GetClaims(r); claims != nil {
		logger = logger.With("user", claims.Subject)
	}

	response, history, err := s.runner.Run(r.Context(), cfg, messages, opts...)
	if err != nil {
		logger.Error("Chat failed", "agent", name, "error", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to process chat request")
		return
	}

	model := response.Model
	if model == "" {
		model = cfg.ModelName
	}
	stopReason := string(response.StopReason)
	if stopReason == "" {
		stopReason = "unknown"
	}
	toolCalls := response.ToolCalls
	if toolCalls == nil {
		toolCalls = []llms.ToolCall{}
	}

	logger.Info("Chat completed",
		"agent", name,
		"stop_reason", stopReason,
		"input_tokens", response.InputTokens,
		"output_tokens", response.OutputTokens)

	s.writeJSON(w, http.StatusOK, chatResponse{
		Content:      response.Content,
		Agent:        name,
		Model:        model,
		StopReason:   stopReason,
		InputTokens:  response.InputTokens,
		OutputTokens: response.OutputTokens,
		ToolCalls:    toolCalls,
		History:      history,
	})
}

// memorySearchRequest is the memory search API request body. The agent
// name rides in the body because search spans sessions, not a single
// conversation URL.
type memorySearchRequest struct {
	Agent      string `json:"agent"`
	Query      string `json:"query"`
	SearchType string `json:"search_type"`
	MaxResults int    `json:"max_results"`
	SessionID  int64  `json:"session_id"`
}

type memorySearchResponse struct {
	Query      string                `json:"query"`
	SearchType string                `json:"search_type"`
	Results    []memory.SearchResult `json:"results"`
	Count      int                   `json:"count"`
}

func (s *Server) handleMemorySearch(w http.ResponseWriter, r *http.Request) {
	var req memorySearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.Agent == "" {
		s.writeError(w, http.StatusBadRequest, "agent is required")
		return
	}

	cfg, err := s.config().Agent(req.Agent)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if !cfg.MemorySearchEnabled || s.memory == nil {
		s.writeError(w, http.StatusBadRequest, "Memory search is not enabled for this agent")
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		s.writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	searchType := config.SearchType(req.SearchType)
	switch searchType {
	case "":
		searchType = config.SearchHybrid
	case config.SearchHybrid, config.SearchVector, config.SearchText:
	default:
		s.writeError(w, http.StatusBadRequest, "search_type must be one of hybrid, vector, text")
		return
	}

	maxResults := req.MaxResults
	if maxResults == 0 {
		maxResults = 5
	}
	if maxResults < 1 || maxResults > 10 {
		s.writeError(w, http.StatusBadRequest, "max_results must be between 1 and 10")
		return
	}

	if req.SessionID != 0 && s.sessions != nil {
		session, err := s.sessions.GetSession(r.Context(), req.SessionID)
		if errors.Is(err, memory.ErrSessionNotFound) {
			s.writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		if err != nil {
			s.logger.Error("Session lookup failed", "session_id", req.SessionID, "error", err)
			s.writeError(w, http.StatusInternalServerError, "Failed to perform memory search")
			return
		}
		if session.AgentID != cfg.ID {
			s.writeError(w, http.StatusNotFound, "Session not found")
			return
		}
	}

	results, err := s.memory.Search(r.Context(), req.Query, memory.SearchOptions{
		AgentID:    cfg.ID,
		SessionID:  req.SessionID,
		Type:       searchType,
		MaxResults: maxResults,
	})
	if err != nil {
		s.logger.Error("Memory search failed", "agent", req.Agent, "error", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to perform memory search")
		return
	}

	if results == nil {
		results = []memory.SearchResult{}
	}
	for i := range results {
		results[i].Score = math.Round(results[i].Score*1000) / 1000
	}

	s.writeJSON(w, http.StatusOK, memorySearchResponse{
		Query:      req.Query,
		SearchType: string(searchType),
		Results:    results,
		Count:      len(results),
	})
}

type toolListing struct {
	Name            string         `json:"name"`
	Description     string         `json:"description"`
	InputSchema     map[string]any `json:"input_schema"`
	RequireApproval bool           `json:"require_approval"`
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	all := s.runner.Tools().All()
	listings := make([]toolListing, 0, len(all))
	for _, t := range all {
		info := t.GetInfo()
		listings = append(listings, toolListing{
			Name:            info.Name,
			Description:     info.Description,
			InputSchema:     info.JSONSchema(),
			RequireApproval: info.RequireApproval,
		})
	}
	s.writeJSON(w, http.StatusOK, listings)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
