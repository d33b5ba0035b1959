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

// Package observability wires OpenTelemetry metrics and tracing into the
// platform. Metrics are exported through the Prometheus exporter and served
// on /metrics; traces go to an OTLP collector or stdout.
//
// Instrumented packages record through the process-global Metrics, which
// defaults to a no-op until a Manager installs the real recorder. That keeps
// the hot paths free of nil checks and makes telemetry strictly opt-in.
package observability

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Metrics records the platform's domain measurements. Implementations must
// be safe for concurrent use.
type Metrics interface {
	// RecordLLMRequest counts one provider round trip with its token usage.
	RecordLLMRequest(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, stopReason string)

	// RecordToolExecution counts one tool call with its outcome status.
	RecordToolExecution(ctx context.Context, tool string, duration time.Duration, status string)

	// RecordMemorySearch counts one memory query by search type.
	RecordMemorySearch(ctx context.Context, searchType string, duration time.Duration, results int)

	// RecordRateLimitWait observes time spent blocked on the limiter.
	RecordRateLimitWait(ctx context.Context, agent string, wait time.Duration)

	// RecordHTTPRequest observes one served API request.
	RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration)
}

// NoopMetrics discards every measurement.
type NoopMetrics struct{}

func (NoopMetrics) RecordLLMRequest(context.Context, string, time.Duration, int, int, string) {}
func (NoopMetrics) RecordToolExecution(context.Context, string, time.Duration, string)       {}
func (NoopMetrics) RecordMemorySearch(context.Context, string, time.Duration, int)           {}
func (NoopMetrics) RecordRateLimitWait(context.Context, string, time.Duration)               {}
func (NoopMetrics) RecordHTTPRequest(context.Context, string, string, int, time.Duration)    {}

// Handler reports that metrics are not enabled.
func (NoopMetrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("metrics not enabled\n"))
	})
}

var (
	metricsMu     sync.RWMutex
	globalMetrics Metrics = NoopMetrics{}
)

// SetGlobalMetrics installs the process-wide recorder.
func SetGlobalMetrics(m Metrics) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	if m == nil {
		m = NoopMetrics{}
	}
	globalMetrics = m
}

// GetGlobalMetrics returns the installed recorder, never nil.
func GetGlobalMetrics() Metrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return globalMetrics
}

// GetTracer returns a named tracer from the global provider. Until a Manager
// installs a real provider this yields no-op spans.
func GetTracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
