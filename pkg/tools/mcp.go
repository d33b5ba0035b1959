package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mrvn-ai/mrvn/pkg/config"
	"github.com/mrvn-ai/mrvn/pkg/httpclient"
)

const (
	mcpProtocolVersion = "2024-11-05"
	mcpClientName      = "mrvn"
	mcpClientVersion   = "1.0.0"

	// mcpSSETimeout bounds how long we wait for a complete JSON-RPC
	// message on an event stream.
	mcpSSETimeout = 5 * time.Minute
)

// MCPSource discovers tools from one MCP server and exposes them through
// the Tool interface. stdio servers are driven by the mcp-go client; sse
// and streamable-http servers speak plain JSON-RPC over the retrying HTTP
// client. Discovered tool names are prefixed with the server name
// (server__tool) so multiple servers never collide in the registry.
type MCPSource struct {
	cfg    config.MCPServerConfig
	logger *slog.Logger

	mu    sync.Mutex
	stdio *client.Client
	http  *httpclient.Client
	tools map[string]Tool

	sessionMu sync.RWMutex
	sessionID string
}

// NewMCPSource creates a source for one configured MCP server. No
// connection is made until DiscoverTools.
func NewMCPSource(cfg config.MCPServerConfig) *MCPSource {
	cfg.SetDefaults()
	return &MCPSource{
		cfg:    cfg,
		logger: slog.With("component", "mcp", "server", cfg.Name),
		tools:  make(map[string]Tool),
	}
}

func (s *MCPSource) GetName() string { return s.cfg.Name }

func (s *MCPSource) GetType() string { return "mcp" }

// DiscoverTools connects to the server, performs the MCP handshake, and
// replaces the source's tool set with whatever tools/list returns.
func (s *MCPSource) DiscoverTools(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.Transport == config.MCPTransportStdio {
		return s.discoverStdio(ctx)
	}
	return s.discoverHTTP(ctx)
}

// ListTools returns the discovered tools in name order.
func (s *MCPSource) ListTools() []ToolInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.tools))
	for name := range s.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	infos := make([]ToolInfo, 0, len(names))
	for _, name := range names {
		infos = append(infos, s.tools[name].GetInfo())
	}
	return infos
}

// GetTool returns a discovered tool by its prefixed name.
func (s *MCPSource) GetTool(name string) (Tool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tools[name]
	return t, ok
}

// Close shuts down the stdio subprocess if one is running.
func (s *MCPSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.stdio != nil {
		err = s.stdio.Close()
		s.stdio = nil
	}
	s.http = nil
	s.tools = make(map[string]Tool)
	return err
}

func (s *MCPSource) discoverStdio(ctx context.Context) error {
	mcpClient, err := client.NewStdioMCPClient(s.cfg.Command, nil, s.cfg.Args...)
	if err != nil {
		return fmt.Errorf("create mcp client: %w", err)
	}
	if err := mcpClient.Start(ctx); err != nil {
		return fmt.Errorf("start mcp client: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    mcpClientName,
		Version: mcpClientVersion,
	}
	initReq.Params.ProtocolVersion = mcpProtocolVersion
	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		mcpClient.Close()
		return fmt.Errorf("initialize mcp server: %w", err)
	}

	listResp, err := mcpClient.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		mcpClient.Close()
		return fmt.Errorf("list mcp tools: %w", err)
	}

	tools := make(map[string]Tool, len(listResp.Tools))
	for _, mt := range listResp.Tools {
		info := s.buildToolInfo(mt.Name, mt.Description, convertStdioSchema(mt.InputSchema))
		tools[info.Name] = &MCPTool{source: s, remoteName: mt.Name, info: info, stdio: true}
	}

	s.stdio = mcpClient
	s.tools = tools
	s.logger.Info("Connected to MCP server",
		"transport", "stdio",
		"command", s.cfg.Command,
		"tools", len(tools))
	return nil
}

func (s *MCPSource) discoverHTTP(ctx context.Context) error {
	if s.cfg.URL == "" {
		return fmt.Errorf("mcp server %s has no url configured", s.cfg.Name)
	}

	s.http = httpclient.New(
		httpclient.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
		httpclient.WithMaxRetries(3),
		httpclient.WithBaseDelay(2*time.Second),
		httpclient.WithLogger(s.logger),
	)

	initResp, err := s.rpc(ctx, "initialize", map[string]any{
		"protocolVersion": mcpProtocolVersion,
		"clientInfo": map[string]any{
			"name":    mcpClientName,
			"version": mcpClientVersion,
		},
		"capabilities": map[string]any{},
	})
	if err != nil {
		return fmt.Errorf("initialize mcp server: %w", err)
	}
	if initResp.Error != nil {
		return fmt.Errorf("initialize mcp server: %s", initResp.Error.Message)
	}

	listResp, err := s.rpc(ctx, "tools/list", map[string]any{})
	if err != nil {
		return fmt.Errorf("list mcp tools: %w", err)
	}
	if listResp.Error != nil {
		return fmt.Errorf("list mcp tools: %s", listResp.Error.Message)
	}

	resultMap, ok := listResp.Result.(map[string]any)
	if !ok {
		return fmt.Errorf("unexpected tools/list result from %s", s.cfg.Name)
	}
	rawTools, ok := resultMap["tools"].([]any)
	if !ok {
		return fmt.Errorf("tools/list response from %s has no tools", s.cfg.Name)
	}

	tools := make(map[string]Tool, len(rawTools))
	for _, raw := range rawTools {
		tm, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name := getString(tm, "name")
		if name == "" {
			continue
		}
		schema, _ := tm["inputSchema"].(map[string]any)
		info := s.buildToolInfo(name, getString(tm, "description"), schema)
		tools[info.Name] = &MCPTool{source: s, remoteName: name, info: info}
	}

	s.tools = tools
	s.logger.Info("Connected to MCP server",
		"transport", string(s.cfg.Transport),
		"url", s.cfg.URL,
		"tools", len(tools))
	return nil
}

// buildToolInfo translates an MCP input schema into declared parameters.
// Properties are listed alphabetically so discovery order never leaks
// into provider payloads.
func (s *MCPSource) buildToolInfo(name, description string, schema map[string]any) ToolInfo {
	info := ToolInfo{
		Name:        s.cfg.Name + "__" + name,
		Description: description,
		ServerURL:   s.cfg.URL,
	}

	properties, _ := schema["properties"].(map[string]any)
	propNames := make([]string, 0, len(properties))
	for propName := range properties {
		propNames = append(propNames, propName)
	}
	sort.Strings(propNames)

	for _, propName := range propNames {
		prop, ok := properties[propName].(map[string]any)
		if !ok {
			continue
		}
		param := ToolParameter{
			Name:        propName,
			Type:        getString(prop, "type"),
			Description: getString(prop, "description"),
			Required:    isRequired(schema, propName),
		}
		if enum, ok := prop["enum"].([]any); ok {
			for _, v := range enum {
				if sv, ok := v.(string); ok {
					param.Enum = append(param.Enum, sv)
				}
			}
		}
		if def, ok := prop["default"]; ok {
			param.Default = def
		}
		info.Parameters = append(info.Parameters, param)
	}
	return info
}

// rpc sends one JSON-RPC request and decodes the response, following the
// mcp-session-id header and falling back to SSE framing when the server
// answers with an event stream.
func (s *MCPSource) rpc(ctx context.Context, method string, params any) (*jsonRPCResponse, error) {
	body, err := json.Marshal(jsonRPCRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")

	s.sessionMu.RLock()
	sessionID := s.sessionID
	s.sessionMu.RUnlock()
	if sessionID != "" {
		req.Header.Set("mcp-session-id", sessionID)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if id := resp.Header.Get("mcp-session-id"); id != "" {
		s.sessionMu.Lock()
		s.sessionID = id
		s.sessionMu.Unlock()
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		return readSSEResponse(resp.Body, mcpSSETimeout)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var rpcResp jsonRPCResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &rpcResp, nil
}

type jsonRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type jsonRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Result  any           `json:"result,omitempty"`
	Error   *jsonRPCError `json:"error,omitempty"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// readSSEResponse extracts the first complete JSON-RPC message from an
// event stream. Data lines accumulate until a blank line ends the event.
func readSSEResponse(body io.Reader, timeout time.Duration) (*jsonRPCResponse, error) {
	type result struct {
		resp *jsonRPCResponse
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		reader := bufio.NewReader(body)
		var data strings.Builder

		flush := func() *jsonRPCResponse {
			if data.Len() == 0 {
				return nil
			}
			var resp jsonRPCResponse
			if err := json.Unmarshal([]byte(data.String()), &resp); err != nil {
				data.Reset()
				return nil
			}
			return &resp
		}

		for {
			line, err := reader.ReadString('\n')
			trimmed := strings.TrimSpace(line)
			if trimmed == "" {
				if resp := flush(); resp != nil {
					ch <- result{resp: resp}
					return
				}
			} else if strings.HasPrefix(trimmed, "data:") {
				data.WriteString(strings.TrimSpace(strings.TrimPrefix(trimmed, "data:")))
			}
			if err != nil {
				if resp := flush(); resp != nil {
					ch <- result{resp: resp}
					return
				}
				ch <- result{err: fmt.Errorf("event stream ended without a complete message")}
				return
			}
		}
	}()

	select {
	case res := <-ch:
		return res.resp, res.err
	case <-time.After(timeout):
		return nil, fmt.Errorf("timed out reading event stream after %v", timeout)
	}
}

// MCPTool is one remote tool exposed by an MCPSource.
type MCPTool struct {
	source     *MCPSource
	remoteName string
	info       ToolInfo
	stdio      bool
}

func (t *MCPTool) GetInfo() ToolInfo { return t.info }

func (t *MCPTool) GetName() string { return t.info.Name }

// Execute forwards the call to the remote server. Server-reported tool
// failures come back as error results; transport failures are returned
// as errors for the registry to capture.
func (t *MCPTool) Execute(ctx context.Context, params map[string]any) (*ToolResult, error) {
	if t.stdio {
		return t.executeStdio(ctx, params)
	}
	return t.executeHTTP(ctx, params)
}

func (t *MCPTool) executeStdio(ctx context.Context, params map[string]any) (*ToolResult, error) {
	t.source.mu.Lock()
	mcpClient := t.source.stdio
	t.source.mu.Unlock()
	if mcpClient == nil {
		return nil, fmt.Errorf("mcp server %s is not connected", t.source.cfg.Name)
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = t.remoteName
	req.Params.Arguments = params

	resp, err := mcpClient.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("mcp call failed: %w", err)
	}

	texts := make([]string, 0, len(resp.Content))
	for _, content := range resp.Content {
		if tc, ok := content.(mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	if resp.IsError {
		return NewErrorResult(firstOr(texts, "unknown error")), nil
	}
	return t.successResult(texts), nil
}

func (t *MCPTool) executeHTTP(ctx context.Context, params map[string]any) (*ToolResult, error) {
	resp, err := t.source.rpc(ctx, "tools/call", map[string]any{
		"name":      t.remoteName,
		"arguments": params,
	})
	if err != nil {
		return nil, fmt.Errorf("mcp call failed: %w", err)
	}
	if resp.Error != nil {
		return NewErrorResult(resp.Error.Message), nil
	}

	resultMap, ok := resp.Result.(map[string]any)
	if !ok {
		return NewSuccessResult(fmt.Sprintf("%v", resp.Result), nil), nil
	}

	var texts []string
	if content, ok := resultMap["content"].([]any); ok {
		for _, c := range content {
			cm, ok := c.(map[string]any)
			if !ok {
				continue
			}
			if cm["type"] == "text" {
				if text, ok := cm["text"].(string); ok {
					texts = append(texts, text)
				}
			}
		}
	}
	if isError, _ := resultMap["isError"].(bool); isError {
		return NewErrorResult(firstOr(texts, "unknown error")), nil
	}
	return t.successResult(texts), nil
}

func (t *MCPTool) successResult(texts []string) *ToolResult {
	return NewSuccessResult(strings.Join(texts, "\n"), map[string]any{
		"server": t.source.cfg.Name,
		"tool":   t.remoteName,
	})
}

func firstOr(texts []string, fallback string) string {
	if len(texts) > 0 {
		return texts[0]
	}
	return fallback
}

func getString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func isRequired(schema map[string]any, name string) bool {
	required, ok := schema["required"].([]any)
	if !ok {
		return false
	}
	for _, v := range required {
		if v == name {
			return true
		}
	}
	return false
}

func convertStdioSchema(schema mcp.ToolInputSchema) map[string]any {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	return result
}

var (
	_ Tool       = (*MCPTool)(nil)
	_ ToolSource = (*MCPSource)(nil)
)
