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
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// OTelMetrics implements Metrics on an OpenTelemetry meter whose reader is
// the Prometheus exporter. Every instrument lands in the dedicated registry
// returned alongside it, so tests and multiple managers never collide on the
// default registerer.
type OTelMetrics struct {
	provider *sdkmetric.MeterProvider
	registry *prometheus.Registry

	llmRequests    metric.Int64Counter
	llmTokens      metric.Int64Counter
	llmDuration    metric.Float64Histogram
	toolExecutions metric.Int64Counter
	toolDuration   metric.Float64Histogram
	memorySearches metric.Int64Counter
	memoryDuration metric.Float64Histogram
	memoryResults  metric.Int64Histogram
	limiterWait    metric.Float64Histogram
	httpRequests   metric.Int64Counter
	httpDuration   metric.Float64Histogram
}

// NewOTelMetrics builds the full instrument set on a fresh meter provider.
func NewOTelMetrics(serviceName string) (*OTelMetrics, error) {
	registry := prometheus.NewRegistry()

	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter(serviceName)

	m := &OTelMetrics{provider: provider, registry: registry}

	m.llmRequests, err = meter.Int64Counter(
		"mrvn_llm_requests_total",
		metric.WithDescription("Provider round trips, by model and stop reason"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm requests counter: %w", err)
	}

	m.llmTokens, err = meter.Int64Counter(
		"mrvn_llm_tokens_total",
		metric.WithDescription("Tokens exchanged with providers, by direction"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm tokens counter: %w", err)
	}

	m.llmDuration, err = meter.Float64Histogram(
		"mrvn_llm_request_duration_seconds",
		metric.WithDescription("Provider round trip duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm duration histogram: %w", err)
	}

	m.toolExecutions, err = meter.Int64Counter(
		"mrvn_tool_executions_total",
		metric.WithDescription("Tool calls, by tool and result status"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool executions counter: %w", err)
	}

	m.toolDuration, err = meter.Float64Histogram(
		"mrvn_tool_execution_duration_seconds",
		metric.WithDescription("Tool execution duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool duration histogram: %w", err)
	}

	m.memorySearches, err = meter.Int64Counter(
		"mrvn_memory_search_total",
		metric.WithDescription("Memory searches, by search type"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory search counter: %w", err)
	}

	m.memoryDuration, err = meter.Float64Histogram(
		"mrvn_memory_search_duration_seconds",
		metric.WithDescription("Memory search duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory duration histogram: %w", err)
	}

	m.memoryResults, err = meter.Int64Histogram(
		"mrvn_memory_search_results",
		metric.WithDescription("Results returned per memory search"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory results histogram: %w", err)
	}

	m.limiterWait, err = meter.Float64Histogram(
		"mrvn_rate_limit_wait_seconds",
		metric.WithDescription("Time spent blocked on the rate limiter"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit wait histogram: %w", err)
	}

	m.httpRequests, err = meter.Int64Counter(
		"mrvn_http_requests_total",
		metric.WithDescription("API requests, by method, route, and status"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http requests counter: %w", err)
	}

	m.httpDuration, err = meter.Float64Histogram(
		"mrvn_http_request_duration_seconds",
		metric.WithDescription("API request duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http duration histogram: %w", err)
	}

	return m, nil
}

func (m *OTelMetrics) RecordLLMRequest(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, stopReason string) {
	attrs := metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("stop_reason", stopReason),
	)
	m.llmRequests.Add(ctx, 1, attrs)
	m.llmDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("model", model)))

	m.llmTokens.Add(ctx, int64(inputTokens), metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("direction", "input"),
	))
	m.llmTokens.Add(ctx, int64(outputTokens), metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("direction", "output"),
	))
}

func (m *OTelMetrics) RecordToolExecution(ctx context.Context, tool string, duration time.Duration, status string) {
	m.toolExecutions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("status", status),
	))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("tool", tool)))
}

func (m *OTelMetrics) RecordMemorySearch(ctx context.Context, searchType string, duration time.Duration, results int) {
	attrs := metric.WithAttributes(attribute.String("type", searchType))
	m.memorySearches.Add(ctx, 1, attrs)
	m.memoryDuration.Record(ctx, duration.Seconds(), attrs)
	m.memoryResults.Record(ctx, int64(results), attrs)
}

func (m *OTelMetrics) RecordRateLimitWait(ctx context.Context, agent string, wait time.Duration) {
	m.limiterWait.Record(ctx, wait.Seconds(), metric.WithAttributes(attribute.String("agent", agent)))
}

func (m *OTelMetrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	m.httpRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String("status", strconv.Itoa(status)),
	))
	m.httpDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
	))
}

// Handler serves the Prometheus scrape endpoint for this instance's registry.
func (m *OTelMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes and stops the meter provider.
func (m *OTelMetrics) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}
