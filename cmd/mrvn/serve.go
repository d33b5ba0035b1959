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
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/mrvn-ai/mrvn/pkg/config"
	"github.com/mrvn-ai/mrvn/pkg/observability"
	"github.com/mrvn-ai/mrvn/pkg/server"
)

// ServeCmd starts the HTTP API server.
type ServeCmd struct {
	Host  string `help:"Bind host, overriding the config file."`
	Port  int    `help:"Listen port, overriding the config file."`
	Watch bool   `help:"Watch the config source and apply agent changes on reload."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("Shutting down...")
		cancel()
	}()

	// Reloads only swap agent definitions; srv is assigned before Watch
	// starts, so the callback never sees it nil.
	var srv *server.Server
	cfg, loader, err := loadConfig(ctx, cli, config.WithOnChange(func(next *config.Config) {
		if srv != nil {
			srv.UpdateConfig(next)
		}
	}))
	if err != nil {
		return err
	}
	defer loader.Close()

	if err := initLogging(cli, &cfg.Logging); err != nil {
		return err
	}

	if c.Host != "" {
		cfg.Server.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	obs := observability.NewManager(cfg.Observability)
	if err := obs.Start(ctx); err != nil {
		return fmt.Errorf("failed to start observability: %w", err)
	}
	defer func() {
		if err := obs.Shutdown(context.Background()); err != nil {
			slog.Warn("Observability shutdown failed", "error", err)
		}
	}()

	rt, err := buildRuntime(ctx, cfg, 0, 0)
	if err != nil {
		return err
	}
	defer rt.Close()

	srv, err = server.New(ctx, server.Options{
		Config:        cfg,
		Runner:        rt.runner,
		Memory:        rt.memory,
		Sessions:      rt.history,
		Observability: obs,
	})
	if err != nil {
		return err
	}

	if c.Watch {
		go func() {
			if err := loader.Watch(ctx); err != nil && ctx.Err() == nil {
				slog.Error("Config watch error", "error", err)
			}
		}()
	}

	printStartup(cfg)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown failed", "error", err)
		}
	}()

	// Blocks until Shutdown; a clean stop returns nil.
	return srv.Start()
}

func printStartup(cfg *config.Config) {
	addr := cfg.Server.Address()

	fmt.Printf("\nmrvn server ready\n")
	fmt.Printf("   Health:   http://%s/healthz\n", addr)
	if cfg.Observability.MetricsEnabled {
		fmt.Printf("   Metrics:  http://%s/metrics\n", addr)
	}
	fmt.Printf("   Tools:    http://%s/v1/tools\n", addr)
	if cfg.Server.Auth.Enabled {
		fmt.Printf("   Auth:     enabled\n")
	}
	fmt.Printf("   Database: %s (%s)\n", cfg.Database.Driver, cfg.Database.Database)
	fmt.Printf("   Memory:   %s backend\n", cfg.Memory.Backend)

	fmt.Println("\n   Agents:")
	names := make([]string, 0, len(cfg.Agents))
	for name := range cfg.Agents {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("     - http://%s/v1/agents/%s/chat\n", addr, name)
	}
	fmt.Println("\nPress Ctrl+C to stop")
}
