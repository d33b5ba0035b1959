// Package tools holds the registry of callable tools, validates call
// parameters against each tool's declared schema, and ships the built-in
// tool set (datetime, calculator, web search, memory search) plus a
// source for tools discovered from MCP servers.
package tools

import (
	"context"

	"github.com/mrvn-ai/mrvn/pkg/llms"
)

// ToolStatus is the outcome class of a tool execution.
type ToolStatus string

const (
	StatusSuccess          ToolStatus = "success"
	StatusError            ToolStatus = "error"
	StatusPending          ToolStatus = "pending"
	StatusApprovalRequired ToolStatus = "approval_required"
)

// ToolResult is what a tool execution hands back to the agent loop.
// Output is the text the model sees; Data carries structured fields for
// API callers.
type ToolResult struct {
	Status ToolStatus     `json:"status"`
	Output string         `json:"output"`
	Data   map[string]any `json:"data,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// NewSuccessResult creates a success result.
func NewSuccessResult(output string, data map[string]any) *ToolResult {
	if data == nil {
		data = map[string]any{}
	}
	return &ToolResult{Status: StatusSuccess, Output: output, Data: data}
}

// NewErrorResult creates an error result.
func NewErrorResult(message string) *ToolResult {
	return &ToolResult{Status: StatusError, Error: message, Data: map[string]any{}}
}

// ToolParameter declares one parameter of a tool.
type ToolParameter struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Required    bool     `json:"required"`
	Default     any      `json:"default,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// ToolInfo describes a tool: identity, parameters, and security posture.
type ToolInfo struct {
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Parameters      []ToolParameter `json:"parameters,omitempty"`
	RequireApproval bool            `json:"require_approval,omitempty"`
	AllowInSandbox  bool            `json:"allow_in_sandbox,omitempty"`
	ServerURL       string          `json:"server_url,omitempty"`
}

// JSONSchema renders the parameter list as a JSON Schema object, the
// shape every provider dialect starts from.
func (i ToolInfo) JSONSchema() map[string]any {
	properties := map[string]any{}
	required := []string{}

	for _, p := range i.Parameters {
		prop := map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

// LLMDefinition renders the tool for submission to a provider adapter.
func (i ToolInfo) LLMDefinition() llms.ToolDefinition {
	return llms.ToolDefinition{
		Name:        i.Name,
		Description: i.Description,
		Parameters:  i.JSONSchema(),
	}
}

// Tool is one callable capability. Execute reports tool-level failures
// through the returned error; the registry converts those into error
// results so the agent loop only ever sees a ToolResult.
type Tool interface {
	GetInfo() ToolInfo
	GetName() string
	Execute(ctx context.Context, params map[string]any) (*ToolResult, error)
}

// ToolSource discovers tools from an external system, such as an MCP
// server.
type ToolSource interface {
	GetName() string
	GetType() string
	DiscoverTools(ctx context.Context) error
	ListTools() []ToolInfo
	GetTool(name string) (Tool, bool)
}
