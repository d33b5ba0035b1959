package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/mrvn-ai/mrvn/pkg/config"
	"github.com/mrvn-ai/mrvn/pkg/httpclient"
)

// ============================================================================
// OPENAI PROVIDER
// Also backs any OpenAI-compatible endpoint (vLLM, LM Studio, llama.cpp
// server) via base_url; vllm is registered as an alias in the factory.
// ============================================================================

// OpenAIProvider speaks the Chat Completions API.
type OpenAIProvider struct {
	config     *config.LLMConfig
	httpClient *httpclient.Client
}

var _ Provider = (*OpenAIProvider)(nil)

// ============================================================================
// REQUEST/RESPONSE TYPES
// ============================================================================

// OpenAIRequest is the Chat Completions request payload.
type OpenAIRequest struct {
	Model       string          `json:"model"`
	Messages    []OpenAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Stop        []string        `json:"stop,omitempty"`
	Tools       []OpenAITool    `json:"tools,omitempty"`
}

// OpenAIMessage is one chat message on the wire.
type OpenAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []OpenAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	Name       string           `json:"name,omitempty"`
}

// OpenAIToolCall carries arguments as a JSON-encoded string.
type OpenAIToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// OpenAITool wraps a function declaration.
type OpenAITool struct {
	Type     string         `json:"type"`
	Function OpenAIFunction `json:"function"`
}

// OpenAIFunction declares a callable function with its parameter schema.
type OpenAIFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// OpenAIResponse is the Chat Completions response payload.
type OpenAIResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Choices []OpenAIChoice `json:"choices"`
	Usage   OpenAIUsage    `json:"usage"`
	Error   *OpenAIError   `json:"error,omitempty"`
}

// OpenAIChoice is one completion candidate.
type OpenAIChoice struct {
	Message      OpenAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

// OpenAIUsage counts tokens per request.
type OpenAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// OpenAIError is the API error envelope.
type OpenAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code,omitempty"`
}

// ============================================================================
// PROVIDER IMPLEMENTATION
// ============================================================================

// NewOpenAIProvider creates an OpenAI-compatible adapter from configuration.
// Self-hosted endpoints often run without auth, so a missing key becomes a
// placeholder instead of an error.
func NewOpenAIProvider(cfg *config.LLMConfig) (*OpenAIProvider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.APIKey == "" {
		cfg.APIKey = "dummy"
	}

	return &OpenAIProvider{
		config:     cfg,
		httpClient: newHTTPClient(cfg, httpclient.ParseOpenAIHeaders),
	}, nil
}

// Model returns the configured model name.
func (p *OpenAIProvider) Model() string {
	return p.config.Model
}

// Close releases provider resources.
func (p *OpenAIProvider) Close() error {
	return nil
}

// Generate runs one Chat Completions call.
func (p *OpenAIProvider) Generate(ctx context.Context, messages []Message, opts GenerateOptions) *LLMResponse {
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

// buildRequest translates the canonical history into the OpenAI dialect.
// The system prompt stays in-band as the first message; tool arguments are
// serialized to JSON strings.
func (p *OpenAIProvider) buildRequest(messages []Message, opts GenerateOptions) *OpenAIRequest {
	var wireMessages []OpenAIMessage
	if opts.SystemPrompt != "" {
		wireMessages = append(wireMessages, OpenAIMessage{Role: "system", Content: opts.SystemPrompt})
	}

	for _, msg := range messages {
		wireMsg := OpenAIMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
		if msg.Role == RoleTool {
			wireMsg.ToolCallID = msg.ToolCallID
			wireMsg.Name = msg.Name
		}
		for _, tc := range msg.ToolCalls {
			wireCall := OpenAIToolCall{ID: tc.ID, Type: "function"}
			wireCall.Function.Name = tc.Name
			wireCall.Function.Arguments = encodeToolArguments(tc.Arguments)
			wireMsg.ToolCalls = append(wireMsg.ToolCalls, wireCall)
		}
		wireMessages = append(wireMessages, wireMsg)
	}

	req := &OpenAIRequest{
		Model:       p.config.Model,
		Messages:    wireMessages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Stop:        opts.StopSequences,
	}

	for _, tool := range opts.Tools {
		req.Tools = append(req.Tools, OpenAITool{
			Type: "function",
			Function: OpenAIFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}

	return req
}

func (p *OpenAIProvider) makeRequest(ctx context.Context, req *OpenAIRequest) (*OpenAIResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.config.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("OpenAI API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error *OpenAIError `json:"error"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != nil {
			return nil, fmt.Errorf("OpenAI API error (HTTP %d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("OpenAI API error (HTTP %d): %s", resp.StatusCode, string(respBody))
	}

	var apiResp OpenAIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse OpenAI response: %w", err)
	}
	if apiResp.Error != nil {
		return nil, fmt.Errorf("OpenAI API error: %s", apiResp.Error.Message)
	}
	if len(apiResp.Choices) == 0 {
		return nil, fmt.Errorf("OpenAI response contained no choices")
	}
	return &apiResp, nil
}

var openAIFinishReasons = map[string]StopReason{
	"stop":          StopEndTurn,
	"length":        StopMaxTokens,
	"tool_calls":    StopToolUse,
	"function_call": StopToolUse,
}

// parseResponse translates the wire response back to the canonical model.
// Tool arguments arrive as JSON strings and are decoded here; undecodable
// strings are preserved under a raw key rather than dropped.
func (p *OpenAIProvider) parseResponse(resp *OpenAIResponse) *LLMResponse {
	choice := resp.Choices[0]

	var toolCalls []ToolCall
	for _, tc := range choice.Message.ToolCalls {
		toolCalls = append(toolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: parseToolArgumentsString(tc.Function.Arguments),
		})
	}

	stopReason, ok := openAIFinishReasons[choice.FinishReason]
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
		Content:      choice.Message.Content,
		StopReason:   stopReason,
		ToolCalls:    toolCalls,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		Model:        model,
	}
}
