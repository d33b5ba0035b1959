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

// Package server exposes the agent platform over HTTP: chat with a
// configured agent, search its memory, list the registered tools, plus
// health and metrics endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/mrvn-ai/mrvn/pkg/agent"
	"github.com/mrvn-ai/mrvn/pkg/auth"
	"github.com/mrvn-ai/mrvn/pkg/config"
	"github.com/mrvn-ai/mrvn/pkg/logger"
	"github.com/mrvn-ai/mrvn/pkg/memory"
	"github.com/mrvn-ai/mrvn/pkg/observability"
)

// Searcher answers memory searches for the API.
type Searcher interface {
	Search(ctx context.Context, query string, opts memory.SearchOptions) ([]memory.SearchResult, error)
}

// SessionStore resolves session IDs so searches stay scoped to sessions
// that exist and belong to the requested agent.
type SessionStore interface {
	GetSession(ctx context.Context, id int64) (*memory.Session, error)
}

// Options carries the server's collaborators. Config and Runner are
// required; the rest may be nil, disabling the endpoints they back.
type Options struct {
	Config        *config.Config
	Runner        *agent.Runner
	Memory        Searcher
	Sessions      SessionStore
	Observability *observability.Manager
}

// Server is the HTTP front end. Build with New, run with Start, stop
// with Shutdown.
type Server struct {
	cfg        atomic.Pointer[config.Config]
	runner     *agent.Runner
	memory     Searcher
	sessions   SessionStore
	obs        *observability.Manager
	validator  *auth.Validator
	logger     *slog.Logger
	handler    http.Handler
	httpServer *http.Server
}

// New assembles the router and, when auth is enabled, the token
// validator. ctx governs the validator's JWKS refresh; cancel it when
// the server is done.
func New(ctx context.Context, opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if opts.Runner == nil {
		return nil, fmt.Errorf("runner is required")
	}

	s := &Server{
		runner:   opts.Runner,
		memory:   opts.Memory,
		sessions: opts.Sessions,
		obs:      opts.Observability,
		logger:   logger.GetLogger("server"),
	}
	s.cfg.Store(opts.Config)

	if opts.Config.Server.Auth.Enabled {
		validator, err := auth.NewValidator(ctx, opts.Config.Server.Auth)
		if err != nil {
			return nil, fmt.Errorf("auth setup failed: %w", err)
		}
		s.validator = validator
		s.logger.Info("Authentication enabled")
	}

	s.handler = s.routes()
	s.httpServer = &http.Server{
		Addr:         opts.Config.Server.Address(),
		Handler:      s.handler,
		ReadTimeout:  time.Duration(opts.Config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(opts.Config.Server.WriteTimeout) * time.Second,
	}

	return s, nil
}

// Handler returns the assembled router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// UpdateConfig swaps the configuration used to resolve agents, so config
// reloads reach new requests without a restart. The listen address,
// timeouts, and auth settings stay as they were at construction.
func (s *Server) UpdateConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	s.cfg.Store(cfg)
	s.logger.Info("Configuration updated", "agents", len(cfg.Agents))
}

func (s *Server) config() *config.Config {
	return s.cfg.Load()
}

// Start listens and serves until Shutdown is called. A clean shutdown
// returns nil.
func (s *Server) Start() error {
	s.logger.Info("HTTP server starting", "address", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("HTTP server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}
