// Copyright 2025 The mrvn authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
)

// MCPTransport identifies how an MCP server is reached.
type MCPTransport string

const (
	MCPTransportSSE   MCPTransport = "sse"
	MCPTransportHTTP  MCPTransport = "streamable-http"
	MCPTransportStdio MCPTransport = "stdio"
)

// MCPServerConfig describes one external MCP tool server whose tools join
// the registry.
type MCPServerConfig struct {
	// Name prefixes discovered tool names (name__tool).
	Name string `yaml:"name" json:"name"`

	// URL of the server for sse/streamable-http transports.
	URL string `yaml:"url,omitempty" json:"url,omitempty"`

	// Command to launch for the stdio transport.
	Command string `yaml:"command,omitempty" json:"command,omitempty"`

	// Args for the stdio command.
	Args []string `yaml:"args,omitempty" json:"args,omitempty"`

	// Transport: sse, streamable-http, stdio.
	Transport MCPTransport `yaml:"transport,omitempty" json:"transport,omitempty"`
}

func (c *MCPServerConfig) SetDefaults() {
	if c.Transport == "" {
		if c.Command != "" {
			c.Transport = MCPTransportStdio
		} else {
			c.Transport = MCPTransportHTTP
		}
	}
}

func (c *MCPServerConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("mcp server name is required")
	}
	switch c.Transport {
	case MCPTransportSSE, MCPTransportHTTP:
		if c.URL == "" {
			return fmt.Errorf("mcp server %q requires url for transport %q", c.Name, c.Transport)
		}
	case MCPTransportStdio:
		if c.Command == "" {
			return fmt.Errorf("mcp server %q requires command for stdio transport", c.Name)
		}
	default:
		return fmt.Errorf("invalid mcp transport %q (valid: sse, streamable-http, stdio)", c.Transport)
	}
	return nil
}

// ToolsConfig configures the tool registry.
type ToolsConfig struct {
	// MCPServers lists external MCP servers to discover tools from.
	MCPServers []MCPServerConfig `yaml:"mcp_servers,omitempty" json:"mcp_servers,omitempty"`
}

func (c *ToolsConfig) SetDefaults() {
	for i := range c.MCPServers {
		c.MCPServers[i].SetDefaults()
	}
}

func (c *ToolsConfig) Validate() error {
	seen := make(map[string]bool)
	for i := range c.MCPServers {
		s := &c.MCPServers[i]
		if err := s.Validate(); err != nil {
			return err
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate mcp server name %q", s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}
