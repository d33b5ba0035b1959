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
	"context"
	"fmt"
	"log/slog"

	"github.com/mrvn-ai/mrvn/pkg/agent"
	"github.com/mrvn-ai/mrvn/pkg/config"
	"github.com/mrvn-ai/mrvn/pkg/config/provider"
	"github.com/mrvn-ai/mrvn/pkg/embedder"
	"github.com/mrvn-ai/mrvn/pkg/memory"
	"github.com/mrvn-ai/mrvn/pkg/ratelimit"
	"github.com/mrvn-ai/mrvn/pkg/tools"
)

// loadConfig resolves the --config source and loads the full document.
// The caller owns the returned loader and must Close it.
func loadConfig(ctx context.Context, cli *CLI, opts ...config.LoaderOption) (*config.Config, *config.Loader, error) {
	if cli.Config == "" {
		return nil, nil, fmt.Errorf("--config is required (a YAML file, or a consul://, etcd://, zk:// URI)")
	}

	p, err := provider.New(cli.Config)
	if err != nil {
		return nil, nil, err
	}
	loader := config.NewLoader(p, opts...)
	cfg, err := loader.Load(ctx)
	if err != nil {
		loader.Close()
		return nil, nil, err
	}

	slog.Info("Loaded configuration", "source", cli.Config, "agents", len(cfg.Agents))
	return cfg, loader, nil
}

// runtime bundles the stack behind the serve and chat commands: the
// database, the memory search pipeline, the tool registry, and the
// agent runner.
type runtime struct {
	pool    *config.DBPool
	embed   embedder.Embedder
	chunks  memory.ChunkStore
	history *memory.HistoryStore
	memory  *memory.Service
	sources []*tools.MCPSource
	runner  *agent.Runner
}

// buildRuntime connects the database, runs migrations, and assembles
// everything above it. The memory_search builtin is bound to agentID and
// sessionID; zero values leave it unscoped, which is what serve wants
// since the HTTP API carries explicit scope per request.
func buildRuntime(ctx context.Context, cfg *config.Config, agentID, sessionID int64) (*runtime, error) {
	rt := &runtime{pool: config.NewDBPool()}

	db, err := rt.pool.Get(ctx, &cfg.Database)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := memory.Migrate(ctx, db, cfg.Database.Driver); err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	rt.history = memory.NewHistoryStore(db, cfg.Database.Driver)
	cache := memory.NewEmbeddingCache(db, cfg.Database.Driver)

	// A missing encoder is not fatal: vector search degrades to empty
	// results while text search keeps working.
	var encoder memory.Encoder
	if enc, err := embedder.New(&cfg.Embedder); err != nil {
		slog.Warn("Embedder unavailable, vector search disabled",
			"provider", cfg.Embedder.Provider, "error", err)
	} else {
		rt.embed = enc
		encoder = enc
	}

	rt.chunks, err = memory.NewChunkStore(ctx, &cfg.Memory, rt.pool, &cfg.Database)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to create chunk store: %w", err)
	}

	rt.memory = memory.NewService(cfg.Memory.Search, encoder, cache, rt.chunks, rt.history)

	registry := tools.NewRegistry()
	if err := tools.RegisterBuiltins(registry, rt.memory, agentID, sessionID); err != nil {
		rt.Close()
		return nil, err
	}
	for _, mcpCfg := range cfg.Tools.MCPServers {
		src := tools.NewMCPSource(mcpCfg)
		if err := registry.RegisterSource(ctx, src); err != nil {
			// External servers may be down; start without their tools.
			slog.Warn("MCP discovery failed", "server", mcpCfg.Name, "error", err)
			_ = src.Close()
			continue
		}
		rt.sources = append(rt.sources, src)
	}

	rt.runner = agent.NewRunner(registry, ratelimit.NewRegistry())
	return rt, nil
}

// Close releases everything buildRuntime opened, in dependency order.
func (rt *runtime) Close() {
	for _, src := range rt.sources {
		if err := src.Close(); err != nil {
			slog.Warn("MCP source close failed", "server", src.GetName(), "error", err)
		}
	}
	if rt.embed != nil {
		if err := rt.embed.Close(); err != nil {
			slog.Warn("Embedder close failed", "error", err)
		}
	}
	if rt.chunks != nil {
		if err := rt.chunks.Close(); err != nil {
			slog.Warn("Chunk store close failed", "error", err)
		}
	}
	if err := rt.pool.Close(); err != nil {
		slog.Warn("Database close failed", "error", err)
	}
}
