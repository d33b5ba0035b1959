package tools

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/mrvn-ai/mrvn/pkg/config"
	"github.com/mrvn-ai/mrvn/pkg/memory"
)

// MemorySearcher is the slice of the memory service the tool needs.
type MemorySearcher interface {
	Search(ctx context.Context, query string, opts memory.SearchOptions) ([]memory.SearchResult, error)
}

// MemorySearchTool exposes long-term memory retrieval to the model.
type MemorySearchTool struct {
	searcher  MemorySearcher
	agentID   int64
	sessionID int64
}

// NewMemorySearchTool creates a memory_search tool bound to one agent and
// session. A nil searcher is allowed; executions then report that memory
// search is not configured.
func NewMemorySearchTool(searcher MemorySearcher, agentID, sessionID int64) *MemorySearchTool {
	return &MemorySearchTool{
		searcher:  searcher,
		agentID:   agentID,
		sessionID: sessionID,
	}
}

func (t *MemorySearchTool) GetName() string { return "memory_search" }

func (t *MemorySearchTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        "memory_search",
		Description: "Search long-term memory for relevant past conversations and facts.",
		Parameters: []ToolParameter{
			{
				Name:        "query",
				Type:        "string",
				Description: "What to look for in memory.",
				Required:    true,
			},
			{
				Name:        "search_type",
				Type:        "string",
				Description: "Retrieval mode.",
				Required:    false,
				Default:     "hybrid",
				Enum:        []string{"hybrid", "vector", "text"},
			},
			{
				Name:        "max_results",
				Type:        "number",
				Description: "Maximum number of memories to return (1-10).",
				Required:    false,
				Default:     5,
			},
		},
		AllowInSandbox: true,
	}
}

func (t *MemorySearchTool) Execute(ctx context.Context, params map[string]any) (*ToolResult, error) {
	if t.searcher == nil {
		return NewErrorResult("memory search is not configured"), nil
	}

	query := stringParam(params, "query", "")
	searchType := stringParam(params, "search_type", "hybrid")
	maxResults := intParam(params, "max_results", 5)
	if maxResults < 1 {
		maxResults = 1
	}
	if maxResults > 10 {
		maxResults = 10
	}

	results, err := t.searcher.Search(ctx, query, memory.SearchOptions{
		AgentID:    t.agentID,
		SessionID:  t.sessionID,
		Type:       config.SearchType(searchType),
		MaxResults: maxResults,
	})
	if err != nil {
		return nil, err
	}

	if len(results) == 0 {
		return NewSuccessResult("No relevant memories found.", map[string]any{
			"query":   query,
			"results": []any{},
			"count":   0,
		}), nil
	}

	formatted := make([]map[string]any, 0, len(results))
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d relevant memories:", len(results))
	for i, r := range results {
		snippet := r.Content
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		fmt.Fprintf(&sb, "\n%d. [%s] (score: %.3f)", i+1, r.Source, r.Score)
		fmt.Fprintf(&sb, "\n   %s...", snippet)

		formatted = append(formatted, map[string]any{
			"content":  r.Content,
			"score":    math.Round(r.Score*1000) / 1000,
			"source":   r.Source,
			"metadata": r.Metadata,
		})
	}

	return NewSuccessResult(sb.String(), map[string]any{
		"query":   query,
		"results": formatted,
		"count":   len(formatted),
	}), nil
}
