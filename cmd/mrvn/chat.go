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

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"golang.org/x/term"

	"github.com/mrvn-ai/mrvn/pkg/agent"
	"github.com/mrvn-ai/mrvn/pkg/config"
	"github.com/mrvn-ai/mrvn/pkg/llms"
	"github.com/mrvn-ai/mrvn/pkg/memory"
)

// ChatCmd chats with one configured agent from the terminal. The
// conversation is persisted as a session and indexed into memory, so
// later chats can find it through memory_search.
type ChatCmd struct {
	Agent   string `arg:"" optional:"" help:"Agent name from the config. May be omitted when only one agent is configured."`
	NoTools bool   `name:"no-tools" help:"Disable tool calling for this chat."`
}

func (c *ChatCmd) Run(cli *CLI) error {
	ctx := context.Background()

	cfg, loader, err := loadConfig(ctx, cli)
	if err != nil {
		return err
	}
	defer loader.Close()

	if err := initLogging(cli, &cfg.Logging); err != nil {
		return err
	}

	agentCfg, err := c.pickAgent(cfg)
	if err != nil {
		return err
	}

	// memory_search is bound to the agent but not to this session, so
	// the model recalls earlier conversations rather than the one it
	// already has in context.
	rt, err := buildRuntime(ctx, cfg, agentCfg.ID, 0)
	if err != nil {
		return err
	}
	defer rt.Close()

	session, err := rt.history.CreateSession(ctx, agentCfg.ID, map[string]any{"channel": "cli"})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	defer func() {
		if err := rt.history.CloseSession(context.Background(), session.ID); err != nil {
			slog.Warn("Session close failed", "session", session.ID, "error", err)
		}
	}()

	var runOpts []agent.RunOption
	if c.NoTools {
		runOpts = append(runOpts, agent.WithEnableTools(false))
	}

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	if interactive {
		fmt.Printf("\nChat with %s (%s/%s), session %d\n", agentCfg.Name, agentCfg.Provider, agentCfg.ModelName, session.ID)
		fmt.Println("Commands: /quit or /exit to end, /clear to reset context.")
		fmt.Println()
	}

	reader := bufio.NewReader(os.Stdin)
	var history []llms.Message

	for {
		if interactive {
			fmt.Print("You: ")
		}

		line, err := reader.ReadString('\n')
		if err == io.EOF {
			fmt.Println()
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			switch input {
			case "/quit", "/exit":
				fmt.Println("Chat session ended")
				return nil
			case "/clear":
				history = nil
				fmt.Println("Conversation context cleared")
			default:
				fmt.Printf("Unknown command: %s\n", input)
			}
			continue
		}

		c.persist(ctx, rt, session, agentCfg.ID, string(llms.RoleUser), input)

		reply, updated, err := rt.runner.Chat(ctx, agentCfg, input, history, runOpts...)
		if err != nil {
			fmt.Printf("Error: %v\n\n", err)
			continue
		}
		history = updated

		fmt.Printf("\n%s: %s\n\n", agentCfg.Name, reply)

		c.persist(ctx, rt, session, agentCfg.ID, string(llms.RoleAssistant), reply)
	}

	fmt.Println("Chat session ended")
	return nil
}

// pickAgent resolves the agent argument, falling back to the only
// configured agent when the argument is omitted.
func (c *ChatCmd) pickAgent(cfg *config.Config) (*config.AgentConfig, error) {
	if c.Agent != "" {
		return cfg.Agent(c.Agent)
	}
	if len(cfg.Agents) == 1 {
		for _, a := range cfg.Agents {
			return a, nil
		}
	}

	names := make([]string, 0, len(cfg.Agents))
	for name := range cfg.Agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return nil, fmt.Errorf("choose an agent: %v", names)
}

// persist appends one message to the session and indexes it for memory
// search. Failures are logged; the chat keeps going.
func (c *ChatCmd) persist(ctx context.Context, rt *runtime, session *memory.Session, agentID int64, role, content string) {
	msg, err := rt.history.AppendMessage(ctx, &memory.Message{
		SessionID: session.ID,
		Role:      role,
		Content:   content,
	})
	if err != nil {
		slog.Warn("Message persist failed", "session", session.ID, "error", err)
		return
	}
	if _, err := rt.memory.IndexMessage(ctx, agentID, msg); err != nil {
		slog.Warn("Message index failed", "message", msg.ID, "error", err)
	}
}
