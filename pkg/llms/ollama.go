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
// OLLAMA PROVIDER
// Wire contract: https://github.com/ollama/ollama/blob/main/docs/api.md
// ============================================================================

// OllamaProvider speaks the Ollama /api/chat endpoint.
type OllamaProvider struct {
	config     *config.LLMConfig
	httpClient *httpclient.Client
}

var _ Provider = (*OllamaProvider)(nil)

// ============================================================================
// REQUEST/RESPONSE TYPES
// ============================================================================

// OllamaRequest is the /api/chat request payload.
type OllamaRequest struct {
	Model    string          `json:"model"`
	Messages []OllamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *OllamaOptions  `json:"options,omitempty"`
	Tools    []OllamaTool    `json:"tools,omitempty"`
}

// OllamaMessage is one chat message on the wire.
type OllamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []OllamaToolCall `json:"tool_calls,omitempty"`
	ToolName  string           `json:"tool_name,omitempty"`
}

// OllamaToolCall wraps one function invocation.
type OllamaToolCall struct {
	Function OllamaFunctionCall `json:"function"`
}

// OllamaFunctionCall keeps arguments raw: Ollama emits objects, but some
// models return JSON-encoded strings instead.
type OllamaFunctionCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// OllamaOptions maps sampling parameters to Ollama's names.
type OllamaOptions struct {
	Temperature float64  `json:"temperature,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// OllamaTool declares a callable tool in the OpenAI function shape.
type OllamaTool struct {
	Type     string         `json:"type"`
	Function OllamaFunction `json:"function"`
}

// OllamaFunction declares one callable function.
type OllamaFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// OllamaResponse is the /api/chat response payload.
type OllamaResponse struct {
	Model           string        `json:"model"`
	Message         OllamaMessage `json:"message"`
	Done            bool          `json:"done"`
	DoneReason      string        `json:"done_reason"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
	Error           string        `json:"error,omitempty"`
}

// ============================================================================
// PROVIDER IMPLEMENTATION
// ============================================================================

// NewOllamaProvider creates an Ollama adapter from configuration. Local
// daemons need no API key.
func NewOllamaProvider(cfg *config.LLMConfig) (*OllamaProvider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}

	return &OllamaProvider{
		config:     cfg,
		httpClient: newHTTPClient(cfg, nil),
	}, nil
}

// Model returns the configured model name.
func (p *OllamaProvider) Model() string {
	return p.config.Model
}

// Close releases provider resources.
func (p *OllamaProvider) Close() error {
	return nil
}

// Generate runs one /api/chat call.
func (p *OllamaProvider) Generate(ctx context.Context, messages []Message, opts GenerateOptions) *LLMResponse {
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

// buildRequest translates the canonical history into the Ollama dialect.
// The system prompt stays in-band as the first message; sampling parameters
// ride in the options object.
func (p *OllamaProvider) buildRequest(messages []Message, opts GenerateOptions) *OllamaRequest {
	var wireMessages []OllamaMessage
	if opts.SystemPrompt != "" {
		wireMessages = append(wireMessages, OllamaMessage{Role: "system", Content: opts.SystemPrompt})
	}

	for _, msg := range messages {
		wireMsg := OllamaMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
		if msg.Role == RoleTool {
			wireMsg.ToolName = msg.Name
		}
		for _, tc := range msg.ToolCalls {
			raw, err := json.Marshal(tc.Arguments)
			if err != nil {
				raw = []byte("{}")
			}
			wireMsg.ToolCalls = append(wireMsg.ToolCalls, OllamaToolCall{
				Function: OllamaFunctionCall{Name: tc.Name, Arguments: raw},
			})
		}
		wireMessages = append(wireMessages, wireMsg)
	}

	req := &OllamaRequest{
		Model:    p.config.Model,
		Messages: wireMessages,
		Stream:   false,
		Options: &OllamaOptions{
			Temperature: opts.Temperature,
			NumPredict:  opts.MaxTokens,
			Stop:        opts.StopSequences,
		},
	}

	for _, tool := range opts.Tools {
		req.Tools = append(req.Tools, OllamaTool{
			Type: "function",
			Function: OllamaFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}

	return req
}

func (p *OllamaProvider) makeRequest(ctx context.Context, req *OllamaRequest) (*OllamaResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.config.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("Ollama API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("Ollama API error (HTTP %d): %s", resp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("Ollama API error (HTTP %d): %s", resp.StatusCode, string(respBody))
	}

	var apiResp OllamaResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse Ollama response: %w", err)
	}
	if apiResp.Error != "" {
		return nil, fmt.Errorf("Ollama API error: %s", apiResp.Error)
	}
	return &apiResp, nil
}

// parseResponse translates the wire response back to the canonical model.
// Ollama assigns no call IDs, so they are synthesized from the call index.
func (p *OllamaProvider) parseResponse(resp *OllamaResponse) *LLMResponse {
	var toolCalls []ToolCall
	for i, tc := range resp.Message.ToolCalls {
		toolCalls = append(toolCalls, ToolCall{
			ID:        syntheticCallID(i),
			Name:      tc.Function.Name,
			Arguments: parseToolArguments(tc.Function.Arguments),
		})
	}

	stopReason := StopEndTurn
	if resp.DoneReason == "length" {
		stopReason = StopMaxTokens
	}
	if len(toolCalls) > 0 {
		stopReason = StopToolUse
	}

	model := resp.Model
	if model == "" {
		model = p.config.Model
	}

	return &LLMResponse{
		Content:      resp.Message.Content,
		StopReason:   stopReason,
		ToolCalls:    toolCalls,
		InputTokens:  resp.PromptEvalCount,
		OutputTokens: resp.EvalCount,
		Model:        model,
	}
}
