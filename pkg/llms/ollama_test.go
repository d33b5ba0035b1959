package llms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mrvn-ai/mrvn/pkg/config"
)

func ollamaTestServer(t *testing.T, captured *map[string]any, resp OllamaResponse) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("request path = %s, want /api/chat", r.URL.Path)
		}
		if captured != nil {
			if err := json.NewDecoder(r.Body).Decode(captured); err != nil {
				t.Errorf("failed to decode request body: %v", err)
			}
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func ollamaTextResponse(content, doneReason string) OllamaResponse {
	return OllamaResponse{
		Model:      "test-model",
		Message:    OllamaMessage{Role: "assistant", Content: content},
		Done:       true,
		DoneReason: doneReason,
	}
}

func TestOllamaRequestShape(t *testing.T) {
	var captured map[string]any
	server := ollamaTestServer(t, &captured, ollamaTextResponse("ok", "stop"))
	defer server.Close()

	p, err := NewOllamaProvider(testConfig(config.ProviderOllama, server.URL))
	if err != nil {
		t.Fatalf("NewOllamaProvider: %v", err)
	}
	defer p.Close()

	history := []Message{
		User("what time is it?"),
		Assistant("", ToolCall{
			ID:        "call_0",
			Name:      "get_datetime",
			Arguments: map[string]any{},
		}),
		ToolResultMessage("call_0", "noon", "get_datetime"),
	}
	opts := GenerateOptions{
		SystemPrompt:  "be brief",
		Temperature:   0.3,
		MaxTokens:     512,
		StopSequences: []string{"DONE"},
		Tools: []ToolDefinition{{
			Name:        "get_datetime",
			Description: "current time",
			Parameters:  map[string]any{"type": "object"},
		}},
	}

	resp := p.Generate(context.Background(), history, opts)
	if resp.StopReason == StopError {
		t.Fatalf("Generate returned error response: %s", resp.Content)
	}

	if captured["stream"] != false {
		t.Errorf("stream = %v, want false", captured["stream"])
	}

	messages := captured["messages"].([]interface{})
	if len(messages) != 4 {
		t.Fatalf("wire messages = %d, want 4 (system prepended)", len(messages))
	}
	system := messages[0].(map[string]any)
	if system["role"] != "system" || system["content"] != "be brief" {
		t.Errorf("first message = %v, want system prompt", system)
	}

	toolMsg := messages[3].(map[string]any)
	if toolMsg["role"] != "tool" || toolMsg["content"] != "noon" || toolMsg["tool_name"] != "get_datetime" {
		t.Errorf("tool message = %v", toolMsg)
	}

	options := captured["options"].(map[string]any)
	if options["temperature"] != 0.3 {
		t.Errorf("options.temperature = %v, want 0.3", options["temperature"])
	}
	if options["num_predict"] != float64(512) {
		t.Errorf("options.num_predict = %v, want 512", options["num_predict"])
	}
	stop := options["stop"].([]interface{})
	if len(stop) != 1 || stop[0] != "DONE" {
		t.Errorf("options.stop = %v, want [DONE]", stop)
	}

	tools := captured["tools"].([]interface{})
	tool := tools[0].(map[string]any)
	if tool["type"] != "function" {
		t.Errorf("tool type = %v, want function", tool["type"])
	}
	fn := tool["function"].(map[string]any)
	if fn["name"] != "get_datetime" {
		t.Errorf("tool function = %v", fn)
	}
}

func TestOllamaParseResponse(t *testing.T) {
	server := ollamaTestServer(t, nil, OllamaResponse{
		Model: "llama3.2",
		Message: OllamaMessage{
			Role:    "assistant",
			Content: "",
			ToolCalls: []OllamaToolCall{
				{Function: OllamaFunctionCall{
					Name:      "calculator",
					Arguments: json.RawMessage(`{"expression": "5-2"}`),
				}},
				{Function: OllamaFunctionCall{
					Name:      "get_datetime",
					Arguments: json.RawMessage(`"{\"timezone\": \"UTC\"}"`),
				}},
			},
		},
		Done:            true,
		DoneReason:      "stop",
		PromptEvalCount: 30,
		EvalCount:       11,
	})
	defer server.Close()

	p, err := NewOllamaProvider(testConfig(config.ProviderOllama, server.URL))
	if err != nil {
		t.Fatalf("NewOllamaProvider: %v", err)
	}
	defer p.Close()

	resp := p.Generate(context.Background(), []Message{User("5-2?")}, GenerateOptions{})

	if resp.StopReason != StopToolUse {
		t.Errorf("StopReason = %v, want %v when calls present", resp.StopReason, StopToolUse)
	}
	if len(resp.ToolCalls) != 2 {
		t.Fatalf("ToolCalls = %d, want 2", len(resp.ToolCalls))
	}
	if resp.ToolCalls[0].ID != "call_0" || resp.ToolCalls[1].ID != "call_1" {
		t.Errorf("synthesized IDs = %q, %q, want call_0, call_1",
			resp.ToolCalls[0].ID, resp.ToolCalls[1].ID)
	}
	if resp.ToolCalls[0].Arguments["expression"] != "5-2" {
		t.Errorf("object arguments = %v", resp.ToolCalls[0].Arguments)
	}
	if resp.ToolCalls[1].Arguments["timezone"] != "UTC" {
		t.Errorf("string-encoded arguments = %v", resp.ToolCalls[1].Arguments)
	}
	if resp.InputTokens != 30 || resp.OutputTokens != 11 {
		t.Errorf("tokens = %d/%d, want 30/11", resp.InputTokens, resp.OutputTokens)
	}
	if resp.Model != "llama3.2" {
		t.Errorf("Model = %q", resp.Model)
	}
}

func TestOllamaDoneReasons(t *testing.T) {
	tests := []struct {
		wire string
		want StopReason
	}{
		{"stop", StopEndTurn},
		{"length", StopMaxTokens},
		{"", StopEndTurn},
	}

	for _, tt := range tests {
		name := tt.wire
		if name == "" {
			name = "empty"
		}
		t.Run(name, func(t *testing.T) {
			server := ollamaTestServer(t, nil, ollamaTextResponse("done", tt.wire))
			defer server.Close()

			p, err := NewOllamaProvider(testConfig(config.ProviderOllama, server.URL))
			if err != nil {
				t.Fatalf("NewOllamaProvider: %v", err)
			}
			defer p.Close()

			resp := p.Generate(context.Background(), []Message{User("hi")}, GenerateOptions{})
			if resp.StopReason != tt.want {
				t.Errorf("done_reason %q mapped to %v, want %v", tt.wire, resp.StopReason, tt.want)
			}
		})
	}
}

func TestOllamaErrorResponses(t *testing.T) {
	t.Run("error field", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error": "model 'missing' not found"}`))
		}))
		defer server.Close()

		p, err := NewOllamaProvider(testConfig(config.ProviderOllama, server.URL))
		if err != nil {
			t.Fatalf("NewOllamaProvider: %v", err)
		}
		defer p.Close()

		resp := p.Generate(context.Background(), []Message{User("hi")}, GenerateOptions{})
		if resp.StopReason != StopError {
			t.Fatalf("StopReason = %v, want %v", resp.StopReason, StopError)
		}
		if !strings.Contains(resp.Content, "not found") {
			t.Errorf("Content = %q, want daemon message included", resp.Content)
		}
	})

	t.Run("connection refused", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close()

		p, err := NewOllamaProvider(testConfig(config.ProviderOllama, server.URL))
		if err != nil {
			t.Fatalf("NewOllamaProvider: %v", err)
		}
		defer p.Close()

		resp := p.Generate(context.Background(), []Message{User("hi")}, GenerateOptions{})
		if resp.StopReason != StopError {
			t.Errorf("StopReason = %v, want %v", resp.StopReason, StopError)
		}
		if !strings.HasPrefix(resp.Content, "Error: ") {
			t.Errorf("Content = %q, want Error: prefix", resp.Content)
		}
	})
}
