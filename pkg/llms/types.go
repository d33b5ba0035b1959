// Package llms defines the canonical conversation model and the provider
// adapters that translate it to each LLM vendor's wire dialect. Nothing
// outside this package sees provider-specific types.
package llms

import (
	"context"
	"fmt"
)

// ============================================================================
// CANONICAL CONVERSATION MODEL
// ============================================================================

// Role identifies who produced a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry in a conversation history. Messages are treated as
// immutable once appended to a history.
type Message struct {
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// ToolCallID links a tool-role message back to the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
	// Name carries the tool name on tool-role messages.
	Name string `json:"name,omitempty"`
}

// System creates a system message.
func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// User creates a user message.
func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Assistant creates an assistant message, optionally carrying tool calls.
func Assistant(content string, toolCalls ...ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: toolCalls}
}

// ToolResultMessage creates a tool-role message answering a prior call.
// name may be empty when the provider dialect does not need it.
func ToolResultMessage(toolCallID, content, name string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: toolCallID, Name: name}
}

// ToolCall is a request by the model to invoke a named tool.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// StopReason says why the model stopped generating.
type StopReason string

const (
	StopEndTurn      StopReason = "end_turn"
	StopMaxTokens    StopReason = "max_tokens"
	StopToolUse      StopReason = "tool_use"
	StopStopSequence StopReason = "stop_sequence"
	// StopError marks a response synthesized from a transport or decode
	// failure. Content carries the error text.
	StopError StopReason = "error"
)

// LLMResponse is the provider-neutral result of one generation call.
type LLMResponse struct {
	Content      string     `json:"content"`
	StopReason   StopReason `json:"stop_reason"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"`
	InputTokens  int        `json:"input_tokens"`
	OutputTokens int        `json:"output_tokens"`
	Model        string     `json:"model"`
}

// HasToolCalls reports whether the model asked for tool invocations.
func (r *LLMResponse) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}

// ErrorResponse builds the in-band response for a failed provider call.
// Adapters never hand transport errors to the caller directly.
func ErrorResponse(model string, err error) *LLMResponse {
	return &LLMResponse{
		Content:    fmt.Sprintf("Error: %v", err),
		StopReason: StopError,
		Model:      model,
	}
}

// ============================================================================
// PROVIDER CONTRACT
// ============================================================================

// ToolDefinition is the neutral description of a callable tool handed to a
// provider. Parameters is a JSON schema object; each adapter reshapes it to
// its own dialect.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// GenerateOptions carries the per-turn generation parameters.
type GenerateOptions struct {
	SystemPrompt  string
	Tools         []ToolDefinition
	Temperature   float64
	MaxTokens     int
	StopSequences []string
}

// Provider generates model responses for a conversation. Generate never
// returns an error: failures come back as an LLMResponse with StopError so
// the tool loop can surface them as a terminal response.
type Provider interface {
	Generate(ctx context.Context, messages []Message, opts GenerateOptions) *LLMResponse
	Model() string
	Close() error
}
