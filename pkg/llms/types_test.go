package llms

import (
	"errors"
	"testing"
)

func TestMessageConstructors(t *testing.T) {
	sys := System("be brief")
	if sys.Role != RoleSystem || sys.Content != "be brief" {
		t.Errorf("System() = %+v, want system role with content", sys)
	}

	usr := User("hello")
	if usr.Role != RoleUser || usr.Content != "hello" {
		t.Errorf("User() = %+v, want user role with content", usr)
	}

	asst := Assistant("thinking", ToolCall{ID: "call_0", Name: "calculator"})
	if asst.Role != RoleAssistant {
		t.Errorf("Assistant() role = %v, want %v", asst.Role, RoleAssistant)
	}
	if len(asst.ToolCalls) != 1 || asst.ToolCalls[0].Name != "calculator" {
		t.Errorf("Assistant() tool calls = %+v, want one calculator call", asst.ToolCalls)
	}

	result := ToolResultMessage("call_0", "42", "calculator")
	if result.Role != RoleTool {
		t.Errorf("ToolResultMessage() role = %v, want %v", result.Role, RoleTool)
	}
	if result.ToolCallID != "call_0" || result.Name != "calculator" || result.Content != "42" {
		t.Errorf("ToolResultMessage() = %+v, want call_0/calculator/42", result)
	}
}

func TestHasToolCalls(t *testing.T) {
	resp := &LLMResponse{Content: "done", StopReason: StopEndTurn}
	if resp.HasToolCalls() {
		t.Error("HasToolCalls() = true for response without tool calls")
	}

	resp.ToolCalls = []ToolCall{{ID: "call_0", Name: "get_datetime"}}
	if !resp.HasToolCalls() {
		t.Error("HasToolCalls() = false for response with tool calls")
	}
}

func TestErrorResponse(t *testing.T) {
	resp := ErrorResponse("test-model", errors.New("connection refused"))

	if resp.StopReason != StopError {
		t.Errorf("StopReason = %v, want %v", resp.StopReason, StopError)
	}
	if resp.Content != "Error: connection refused" {
		t.Errorf("Content = %q, want error-prefixed message", resp.Content)
	}
	if resp.Model != "test-model" {
		t.Errorf("Model = %q, want test-model", resp.Model)
	}
	if resp.InputTokens != 0 || resp.OutputTokens != 0 {
		t.Errorf("token counts = %d/%d, want 0/0", resp.InputTokens, resp.OutputTokens)
	}
}
