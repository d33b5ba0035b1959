package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mrvn-ai/mrvn/pkg/config"
	"github.com/mrvn-ai/mrvn/pkg/httpclient"
)

// ============================================================================
// ANTHROPIC PROVIDER
// Wire contract: https://docs.anthropic.com/en/api/messages
// ============================================================================

const anthropicVersion = "2023-06-01"

// AnthropicProvider speaks the Anthropic Messages API.
type AnthropicProvider struct {
	config     *config.LLMConfig
	httpClient *httpclient.Client
}

var _ Provider = (*AnthropicProvider)(nil)

// ============================================================================
// REQUEST/RESPONSE TYPES
// ============================================================================

// AnthropicRequest is the Messages API request payload.
type AnthropicRequest struct {
	Model         string             `json:"model"`
	Messages      []AnthropicMessage `json:"messages"`
	MaxTokens     int                `json:"max_tokens"`
	Temperature   float64            `json:"temperature"`
	System        string             `json:"system,omitempty"`
	StopSequences []string           `json:"stop_sequences,omitempty"`
	Tools         []AnthropicTool    `json:"tools,omitempty"`
}

// AnthropicMessage holds either a plain string or a content block list.
type AnthropicMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

// AnthropicContent is one typed content block.
type AnthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`

	// tool_use fields
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input *map[string]any `json:"input,omitempty"`

	// tool_result fields
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
}

// AnthropicTool declares a callable tool with its input schema.
type AnthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// AnthropicResponse is the Messages API response payload.
type AnthropicResponse struct {
	ID         string             `json:"id"`
	Model      string             `json:"model"`
	Content    []AnthropicContent `json:"content"`
	StopReason string             `json:"stop_reason"`
	Usage      AnthropicUsage     `json:"usage"`
	Error      *AnthropicError    `json:"error,omitempty"`
}

// AnthropicUsage counts tokens per request.
type AnthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// AnthropicError is the API error envelope.
type AnthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ============================================================================
// PROVIDER IMPLEMENTATION
// ============================================================================

// NewAnthropicProvider creates an Anthropic adapter from configuration.
func NewAnthropicProvider(cfg *config.LLMConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}

	return &AnthropicProvider{
		config:     cfg,
		httpClient: newHTTPClient(cfg, httpclient.ParseAnthropicHeaders),
	}, nil
}

// Model returns the configured model name.
func (p *AnthropicProvider) Model() string {
	return p.config.Model
}

// Close releases provider resources.
func (p *AnthropicProvider) Close() error {
	return nil
}

// Generate runs one Messages API call.
func (p *AnthropicProvider) Generate(ctx context.Context, messages []Message, opts GenerateOptions) *LLMResponse {
	req := p.buildRequest(messages, opts)

	apiResp, err := p.makeRequest(ctx, req)
	if err != nil {
		return ErrorResponse(p.config.Model, err)
	}
	return p.parseResponse(apiResp)
}

// ============================================================================
// HELPERS
// ============================================================================

// buildRequest translates the canonical history into the Anthropic dialect.
// System content is lifted into the top-level system field; tool results ride
// in user-role messages as tool_result blocks.
func (p *AnthropicProvider) buildRequest(messages []Message, opts GenerateOptions) *AnthropicRequest {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		// The Messages API rejects requests without max_tokens.
		maxTokens = 4096
	}

	var systemParts []string
	if opts.SystemPrompt != "" {
		systemParts = append(systemParts, opts.SystemPrompt)
	}

	var wireMessages []AnthropicMessage
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			systemParts = append(systemParts, msg.Content)

		case RoleAssistant:
			var blocks []AnthropicContent
			if msg.Content != "" {
				blocks = append(blocks, AnthropicContent{Type: "text", Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				input := tc.Arguments
				if input == nil {
					input = map[string]any{}
				}
				blocks = append(blocks, AnthropicContent{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  tc.Name,
					Input: &input,
				})
			}
			wireMessages = append(wireMessages, AnthropicMessage{Role: "assistant", Content: blocks})

		case RoleTool:
			wireMessages = append(wireMessages, AnthropicMessage{
				Role: "user",
				Content: []AnthropicContent{{
					Type:      "tool_result",
					ToolUseID: msg.ToolCallID,
					Content:   msg.Content,
				}},
			})

		default:
			wireMessages = append(wireMessages, AnthropicMessage{Role: "user", Content: msg.Content})
		}
	}

	req := &AnthropicRequest{
		Model:         p.config.Model,
		Messages:      wireMessages,
		MaxTokens:     maxTokens,
		Temperature:   opts.Temperature,
		System:        strings.Join(systemParts, "\n\n"),
		StopSequences: opts.StopSequences,
	}

	for _, tool := range opts.Tools {
		req.Tools = append(req.Tools, AnthropicTool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.Parameters,
		})
	}

	return req
}

func (p *AnthropicProvider) makeRequest(ctx context.Context, req *AnthropicRequest) (*AnthropicResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.config.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.config.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("Anthropic API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error *AnthropicError `json:"error"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != nil {
			return nil, fmt.Errorf("Anthropic API error (HTTP %d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("Anthropic API error (HTTP %d): %s", resp.StatusCode, string(respBody))
	}

	var apiResp AnthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse Anthropic response: %w", err)
	}
	if apiResp.Error != nil {
		return nil, fmt.Errorf("Anthropic API error: %s", apiResp.Error.Message)
	}
	return &apiResp, nil
}

var anthropicStopReasons = map[string]StopReason{
	"end_turn":      StopEndTurn,
	"max_tokens":    StopMaxTokens,
	"tool_use":      StopToolUse,
	"stop_sequence": StopStopSequence,
}

// parseResponse translates the wire response back to the canonical model.
func (p *AnthropicProvider) parseResponse(resp *AnthropicResponse) *LLMResponse {
	var textParts []string
	var toolCalls []ToolCall

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			textParts = append(textParts, block.Text)
		case "tool_use":
			args := map[string]any{}
			if block.Input != nil {
				args = *block.Input
			}
			toolCalls = append(toolCalls, ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: args,
			})
		}
	}

	stopReason, ok := anthropicStopReasons[resp.StopReason]
	if !ok {
		stopReason = StopEndTurn
	}
	if len(toolCalls) > 0 {
		stopReason = StopToolUse
	}

	model := resp.Model
	if model == "" {
		model = p.config.Model
	}

	return &LLMResponse{
		Content:      strings.Join(textParts, ""),
		StopReason:   stopReason,
		ToolCalls:    toolCalls,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		Model:        model,
	}
}
