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
// GEMINI PROVIDER
// Wire contract: https://ai.google.dev/api/generate-content
// ============================================================================

// GeminiProvider speaks the Gemini generateContent API.
type GeminiProvider struct {
	config     *config.LLMConfig
	httpClient *httpclient.Client
}

var _ Provider = (*GeminiProvider)(nil)

// ============================================================================
// REQUEST/RESPONSE TYPES
// ============================================================================

// GeminiRequest is the generateContent request payload.
type GeminiRequest struct {
	Contents          []GeminiContent         `json:"contents"`
	SystemInstruction *GeminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *GeminiGenerationConfig `json:"generationConfig,omitempty"`
	Tools             []GeminiToolList        `json:"tools,omitempty"`
}

// GeminiContent is one turn: a role plus its parts.
type GeminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []GeminiPart `json:"parts"`
}

// GeminiPart is a single content part. Parts are polymorphic (text,
// functionCall, functionResponse), so a map keeps the shape flexible.
type GeminiPart map[string]interface{}

// GeminiGenerationConfig tunes sampling for one request.
type GeminiGenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

// GeminiToolList is the envelope around function declarations.
type GeminiToolList struct {
	FunctionDeclarations []GeminiFunctionDeclaration `json:"functionDeclarations"`
}

// GeminiFunctionDeclaration declares one callable function.
type GeminiFunctionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// GeminiResponse is the generateContent response payload.
type GeminiResponse struct {
	Candidates    []GeminiCandidate   `json:"candidates"`
	UsageMetadata GeminiUsageMetadata `json:"usageMetadata"`
	Error         *GeminiError        `json:"error,omitempty"`
}

// GeminiCandidate is one completion candidate.
type GeminiCandidate struct {
	Content      GeminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

// GeminiUsageMetadata counts tokens per request.
type GeminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// GeminiError is the API error envelope.
type GeminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// ============================================================================
// PROVIDER IMPLEMENTATION
// ============================================================================

// NewGeminiProvider creates a Gemini adapter from configuration.
func NewGeminiProvider(cfg *config.LLMConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com"
	}

	return &GeminiProvider{
		config:     cfg,
		httpClient: newHTTPClient(cfg, httpclient.ParseGeminiHeaders),
	}, nil
}

// Model returns the configured model name.
func (p *GeminiProvider) Model() string {
	return p.config.Model
}

// Close releases provider resources.
func (p *GeminiProvider) Close() error {
	return nil
}

// Generate runs one generateContent call.
func (p *GeminiProvider) Generate(ctx context.Context, messages []Message, opts GenerateOptions) *LLMResponse {
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

// buildRequest translates the canonical history into the Gemini dialect.
// Assistant turns become role "model"; system content is lifted into
// systemInstruction; tool results become user-role functionResponse parts
// keyed by tool name.
func (p *GeminiProvider) buildRequest(messages []Message, opts GenerateOptions) *GeminiRequest {
	var systemParts []string
	if opts.SystemPrompt != "" {
		systemParts = append(systemParts, opts.SystemPrompt)
	}

	var contents []GeminiContent
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			systemParts = append(systemParts, msg.Content)

		case RoleAssistant:
			var parts []GeminiPart
			if msg.Content != "" {
				parts = append(parts, GeminiPart{"text": msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				args := tc.Arguments
				if args == nil {
					args = map[string]any{}
				}
				parts = append(parts, GeminiPart{
					"functionCall": map[string]interface{}{
						"name": tc.Name,
						"args": args,
					},
				})
			}
			contents = append(contents, GeminiContent{Role: "model", Parts: parts})

		case RoleTool:
			contents = append(contents, GeminiContent{
				Role: "user",
				Parts: []GeminiPart{{
					"functionResponse": map[string]interface{}{
						"name": msg.Name,
						"response": map[string]interface{}{
							"content": msg.Content,
						},
					},
				}},
			})

		default:
			contents = append(contents, GeminiContent{
				Role:  "user",
				Parts: []GeminiPart{{"text": msg.Content}},
			})
		}
	}

	genConfig := &GeminiGenerationConfig{
		MaxOutputTokens: opts.MaxTokens,
		StopSequences:   opts.StopSequences,
	}
	if opts.Temperature != 0 {
		temp := opts.Temperature
		genConfig.Temperature = &temp
	}

	req := &GeminiRequest{
		Contents:         contents,
		GenerationConfig: genConfig,
	}

	if len(systemParts) > 0 {
		req.SystemInstruction = &GeminiContent{
			Parts: []GeminiPart{{"text": strings.Join(systemParts, "\n\n")}},
		}
	}

	if len(opts.Tools) > 0 {
		declarations := make([]GeminiFunctionDeclaration, 0, len(opts.Tools))
		for _, tool := range opts.Tools {
			declarations = append(declarations, GeminiFunctionDeclaration{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			})
		}
		req.Tools = []GeminiToolList{{FunctionDeclarations: declarations}}
	}

	return req
}

func (p *GeminiProvider) makeRequest(ctx context.Context, req *GeminiRequest) (*GeminiResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		p.config.BaseURL, p.config.Model, p.config.APIKey)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("Gemini API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error *GeminiError `json:"error"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != nil {
			return nil, fmt.Errorf("Gemini API error (HTTP %d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("Gemini API error (HTTP %d): %s", resp.StatusCode, string(respBody))
	}

	var apiResp GeminiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse Gemini response: %w", err)
	}
	if apiResp.Error != nil {
		return nil, fmt.Errorf("Gemini API error: %s", apiResp.Error.Message)
	}
	if len(apiResp.Candidates) == 0 {
		return nil, fmt.Errorf("Gemini response contained no candidates")
	}
	return &apiResp, nil
}

// parseResponse translates the wire response back to the canonical model.
// Call IDs are taken from the wire when Gemini supplies them and
// synthesized from the part index when it does not.
func (p *GeminiProvider) parseResponse(resp *GeminiResponse) *LLMResponse {
	candidate := resp.Candidates[0]

	var textParts []string
	var toolCalls []ToolCall

	for _, part := range candidate.Content.Parts {
		if text, ok := part["text"].(string); ok {
			textParts = append(textParts, text)
			continue
		}
		if fc, ok := part["functionCall"].(map[string]interface{}); ok {
			name, _ := fc["name"].(string)
			args, _ := fc["args"].(map[string]interface{})
			if args == nil {
				args = map[string]any{}
			}
			// Newer API revisions attach an id for parallel calling;
			// keep it when present, synthesize otherwise.
			id, _ := fc["id"].(string)
			if id == "" {
				id = syntheticCallID(len(toolCalls))
			}
			toolCalls = append(toolCalls, ToolCall{
				ID:        id,
				Name:      name,
				Arguments: args,
			})
		}
	}

	stopReason := StopEndTurn
	if strings.Contains(strings.ToUpper(candidate.FinishReason), "MAX") {
		stopReason = StopMaxTokens
	}
	if len(toolCalls) > 0 {
		stopReason = StopToolUse
	}

	return &LLMResponse{
		Content:      strings.Join(textParts, ""),
		StopReason:   stopReason,
		ToolCalls:    toolCalls,
		InputTokens:  resp.UsageMetadata.PromptTokenCount,
		OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
		Model:        p.config.Model,
	}
}
