package tools

import (
	"context"
	"fmt"
)

// WebSearchTool is a placeholder until a search backend is wired in.
// It keeps the tool name stable in agent profiles so configs written now
// survive the real implementation.
type WebSearchTool struct{}

// NewWebSearchTool creates the web_search tool.
func NewWebSearchTool() *WebSearchTool {
	return &WebSearchTool{}
}

func (t *WebSearchTool) GetName() string { return "web_search" }

func (t *WebSearchTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        "web_search",
		Description: "Search the web for information on a given query.",
		Parameters: []ToolParameter{
			{
				Name:        "query",
				Type:        "string",
				Description: "The search query.",
				Required:    true,
			},
			{
				Name:        "num_results",
				Type:        "number",
				Description: "Number of results to return (1-10).",
				Required:    false,
				Default:     5,
			},
		},
		AllowInSandbox: true,
	}
}

func (t *WebSearchTool) Execute(ctx context.Context, params map[string]any) (*ToolResult, error) {
	query := stringParam(params, "query", "")
	numResults := intParam(params, "num_results", 5)

	return NewSuccessResult(
		fmt.Sprintf("Web search for '%s' is not yet implemented.", query),
		map[string]any{
			"query":       query,
			"num_results": numResults,
			"results":     []any{},
			"note":        "This is a placeholder. Configure a search API to enable.",
		},
	), nil
}
