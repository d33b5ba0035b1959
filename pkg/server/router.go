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

package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mrvn-ai/mrvn/pkg/observability"
)

// routes assembles the router. Middleware order: logging, then metrics
// and tracing, then auth. Health and metrics stay outside the auth
// group so probes and scrapers need no token.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(s.loggingMiddleware)
	r.Use(observability.HTTPMiddleware)

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", s.metricsHandler().ServeHTTP)

	r.Group(func(r chi.Router) {
		if s.validator != nil {
			r.Use(s.validator.Middleware)
		}

		r.Get("/v1/tools", s.handleListTools)
		r.Post("/v1/memory/search", s.handleMemorySearch)
		r.Route("/v1/agents/{agent}", func(r chi.Router) {
			r.Post("/chat", s.handleChat)
		})
	})

	return r
}

func (s *Server) metricsHandler() http.Handler {
	if s.obs != nil {
		return s.obs.MetricsHandler()
	}
	return observability.NoopMetrics{}.Handler()
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.logger.Info("Request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
