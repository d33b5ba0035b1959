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

package observability

import (
	"context"
	"net/http"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/mrvn-ai/mrvn/pkg/config"
)

// Manager owns the lifecycle of the configured telemetry backends.
type Manager struct {
	cfg config.ObservabilityConfig

	mu             sync.RWMutex
	metrics        *OTelMetrics
	tracerProvider trace.TracerProvider
}

// NewManager builds a Manager for cfg. Nothing starts until Start.
func NewManager(cfg config.ObservabilityConfig) *Manager {
	return &Manager{cfg: cfg}
}

// Start initializes tracing and metrics per the config and installs the
// metrics recorder globally.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tp, err := InitTracer(ctx, m.cfg)
	if err != nil {
		return err
	}
	m.tracerProvider = tp

	if m.cfg.MetricsEnabled {
		metrics, err := NewOTelMetrics(m.cfg.ServiceName)
		if err != nil {
			return err
		}
		m.metrics = metrics
		SetGlobalMetrics(metrics)
	}

	return nil
}

// MetricsHandler returns the /metrics endpoint, or a 503 responder when
// metrics are disabled.
func (m *Manager) MetricsHandler() http.Handler {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.metrics == nil {
		return NoopMetrics{}.Handler()
	}
	return m.metrics.Handler()
}

// Tracer returns a named tracer from this manager's provider.
func (m *Manager) Tracer(name string) trace.Tracer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.tracerProvider == nil {
		return GetTracer(name)
	}
	return m.tracerProvider.Tracer(name)
}

// Shutdown flushes exporters and restores the no-op global recorder.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	if m.metrics != nil {
		SetGlobalMetrics(nil)
		if err := m.metrics.Shutdown(ctx); err != nil {
			firstErr = err
		}
		m.metrics = nil
	}

	if sd, ok := m.tracerProvider.(interface{ Shutdown(context.Context) error }); ok {
		if err := sd.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	m.tracerProvider = nil

	return firstErr
}
