package agent

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mrvn-ai/mrvn/pkg/config"
	"github.com/mrvn-ai/mrvn/pkg/llms"
	"github.com/mrvn-ai/mrvn/pkg/observability"
	"github.com/mrvn-ai/mrvn/pkg/tools"
)

// startTurnSpan opens the span covering one whole Run, tool loop included.
func startTurnSpan(ctx context.Context, cfg *config.AgentConfig) (context.Context, trace.Span) {
	return observability.GetTracer("mrvn.agent").Start(ctx, "agent.turn",
		trace.WithAttributes(
			attribute.String("agent.name", cfg.Name),
			attribute.String("agent.model", cfg.ModelName),
		),
	)
}

// generate runs one provider round trip under its own span and records the
// duration and token usage.
func (r *Runner) generate(ctx context.Context, provider llms.Provider, messages []llms.Message, opts llms.GenerateOptions) *llms.LLMResponse {
	ctx, span := observability.GetTracer("mrvn.agent").Start(ctx, "agent.llm_request",
		trace.WithAttributes(attribute.String("llm.model", provider.Model())),
	)
	defer span.End()

	start := time.Now()
	response := provider.Generate(ctx, messages, opts)

	span.SetAttributes(
		attribute.String("llm.stop_reason", string(response.StopReason)),
		attribute.Int("llm.tokens.input", response.InputTokens),
		attribute.Int("llm.tokens.output", response.OutputTokens),
	)
	observability.GetGlobalMetrics().RecordLLMRequest(ctx, provider.Model(), time.Since(start),
		response.InputTokens, response.OutputTokens, string(response.StopReason))
	return response
}

// timedExecute dispatches one call to the registry and records the outcome.
func (r *Runner) timedExecute(ctx context.Context, call llms.ToolCall) *tools.ToolResult {
	ctx, span := observability.GetTracer("mrvn.agent").Start(ctx, "agent.tool_execution",
		trace.WithAttributes(attribute.String("tool.name", call.Name)),
	)
	defer span.End()

	start := time.Now()
	result := r.tools.Execute(ctx, call.Name, call.Arguments)

	span.SetAttributes(attribute.String("tool.status", string(result.Status)))
	observability.GetGlobalMetrics().RecordToolExecution(ctx, call.Name, time.Since(start), string(result.Status))
	return result
}

func recordRateLimitWait(ctx context.Context, key string, waited time.Duration) {
	observability.GetGlobalMetrics().RecordRateLimitWait(ctx, key, waited)
}
