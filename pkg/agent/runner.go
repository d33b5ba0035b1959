// Package agent drives conversations against an LLM provider with
// automatic tool execution. One Run call is one turn: acquire the agent's
// rate-limit slot, resolve which tools the agent may use, then alternate
// between model generation and tool execution until the model stops
// asking for tools or the iteration budget runs out.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/mrvn-ai/mrvn/pkg/config"
	"github.com/mrvn-ai/mrvn/pkg/llms"
	"github.com/mrvn-ai/mrvn/pkg/ratelimit"
	"github.com/mrvn-ai/mrvn/pkg/tools"
)

// DefaultMaxToolIterations bounds the tool loop when no override is given.
const DefaultMaxToolIterations = 10

// ProviderFactory builds a provider client from connection config.
type ProviderFactory func(cfg *config.LLMConfig) (llms.Provider, error)

// Runner executes agent turns. It is safe for concurrent use; all
// per-turn state lives on the call stack.
type Runner struct {
	tools       *tools.Registry
	limiters    *ratelimit.Registry
	newProvider ProviderFactory
	logger      *slog.Logger
}

// RunnerOption configures a Runner at construction.
type RunnerOption func(*Runner)

// WithProviderFactory replaces the provider constructor, mainly so tests
// can substitute scripted providers.
func WithProviderFactory(f ProviderFactory) RunnerOption {
	return func(r *Runner) { r.newProvider = f }
}

// NewRunner creates a runner that executes tools from registry and
// throttles agents through limiters. A nil registry gets an empty one; a
// nil limiters registry disables rate limiting.
func NewRunner(registry *tools.Registry, limiters *ratelimit.Registry, opts ...RunnerOption) *Runner {
	if registry == nil {
		registry = tools.NewRegistry()
	}
	r := &Runner{
		tools:       registry,
		limiters:    limiters,
		newProvider: llms.NewProvider,
		logger:      slog.With("component", "agent"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Tools returns the registry this runner dispatches to.
func (r *Runner) Tools() *tools.Registry {
	return r.tools
}

// runOptions carries the per-turn overrides.
type runOptions struct {
	systemPrompt  string
	promptIsSet   bool
	enableTools   bool
	toolNames     []string
	maxIterations int
}

// RunOption adjusts a single Run or Chat call.
type RunOption func(*runOptions)

// WithSystemPrompt overrides the agent's configured system prompt for
// this turn. An explicit empty string suppresses the prompt entirely.
func WithSystemPrompt(prompt string) RunOption {
	return func(o *runOptions) {
		o.systemPrompt = prompt
		o.promptIsSet = true
	}
}

// WithEnableTools toggles tool calling for this turn.
func WithEnableTools(enabled bool) RunOption {
	return func(o *runOptions) { o.enableTools = enabled }
}

// WithToolNames narrows this turn's tool set to the named tools. Names
// outside the agent's effective set are dropped, never added.
func WithToolNames(names ...string) RunOption {
	return func(o *runOptions) { o.toolNames = names }
}

// WithMaxToolIterations overrides the tool loop bound for this turn.
func WithMaxToolIterations(n int) RunOption {
	return func(o *runOptions) { o.maxIterations = n }
}

func newRunOptions(opts []RunOption) runOptions {
	options := runOptions{
		enableTools:   true,
		maxIterations: DefaultMaxToolIterations,
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// Run executes one turn for the agent described by cfg. It returns the
// final response and the updated history: the input messages plus one
// assistant message per round of tool calls and one tool-role message per
// executed call. The final response itself is not appended; Chat does
// that.
//
// The error return covers failures that prevent the turn from starting
// (unknown provider, canceled rate-limit wait). Provider failures come
// back in-band as a response with StopError, tool failures as error
// results inside the history.
func (r *Runner) Run(ctx context.Context, cfg *config.AgentConfig, messages []llms.Message, opts ...RunOption) (*llms.LLMResponse, []llms.Message, error) {
	options := newRunOptions(opts)

	ctx, span := startTurnSpan(ctx, cfg)
	defer span.End()

	if err := r.acquire(ctx, cfg); err != nil {
		return nil, nil, err
	}

	provider, err := r.newProvider(cfg.LLM())
	if err != nil {
		return nil, nil, fmt.Errorf("agent %q: %w", cfg.Name, err)
	}
	defer provider.Close()

	genOpts := llms.GenerateOptions{
		SystemPrompt:  cfg.SystemPrompt,
		Temperature:   cfg.Temperature,
		MaxTokens:     cfg.MaxTokens,
		StopSequences: cfg.StopSequences,
	}
	if options.promptIsSet {
		genOpts.SystemPrompt = options.systemPrompt
	}

	effective := r.effectiveTools(cfg, options)
	if len(effective) == 0 {
		response := r.generate(ctx, provider, messages, genOpts)
		return response, messages, nil
	}
	genOpts.Tools = r.tools.Definitions(effective)

	allowed := make(map[string]bool, len(effective))
	for _, name := range effective {
		allowed[name] = true
	}

	history := append([]llms.Message(nil), messages...)
	for iteration := 1; iteration <= options.maxIterations; iteration++ {
		r.logger.Debug("Tool iteration", "agent", cfg.Name, "iteration", iteration, "max", options.maxIterations)

		response := r.generate(ctx, provider, history, genOpts)

		// A provider error response is terminal for the turn. Retries,
		// if any, belong to the caller.
		if response.StopReason == llms.StopError || !response.HasToolCalls() {
			return response, history, nil
		}

		history = append(history, llms.Assistant(response.Content, response.ToolCalls...))
		for _, call := range response.ToolCalls {
			result := r.executeCall(ctx, call, allowed)
			history = append(history, llms.ToolResultMessage(call.ID, resultText(result), call.Name))
		}
	}

	// Budget exhausted: one last call without tools, so the model has to
	// answer with what it gathered so far.
	r.logger.Warn("Max tool iterations reached", "agent", cfg.Name, "max", options.maxIterations)
	genOpts.Tools = nil
	response := r.generate(ctx, provider, history, genOpts)
	return response, history, nil
}

// Chat runs one user message through the agent and returns the reply text
// plus the full updated history, including the final assistant message.
func (r *Runner) Chat(ctx context.Context, cfg *config.AgentConfig, userMessage string, history []llms.Message, opts ...RunOption) (string, []llms.Message, error) {
	messages := append(append([]llms.Message(nil), history...), llms.User(userMessage))

	response, updated, err := r.Run(ctx, cfg, messages, opts...)
	if err != nil {
		return "", nil, err
	}

	updated = append(updated, llms.Assistant(response.Content, response.ToolCalls...))
	return response.Content, updated, nil
}

// acquire blocks on the agent's rate limiter until a slot frees up. One
// slot covers the whole turn regardless of how many provider calls the
// tool loop makes.
func (r *Runner) acquire(ctx context.Context, cfg *config.AgentConfig) error {
	if r.limiters == nil || !cfg.RateLimitEnabled || cfg.RateLimitRPM <= 0 {
		return nil
	}

	limiter := r.limiters.GetOrCreate(limiterKey(cfg), cfg.RateLimitRPM)
	waited, err := limiter.AcquireContext(ctx)
	if err != nil {
		return fmt.Errorf("rate limit wait for agent %q: %w", cfg.Name, err)
	}
	if waited > 0 {
		r.logger.Info("Rate limited", "agent", cfg.Name, "waited", waited)
	}
	recordRateLimitWait(ctx, limiterKey(cfg), waited)
	return nil
}

// limiterKey keys limiters by agent ID so renames keep their window.
// Agents without an ID fall back to the name.
func limiterKey(cfg *config.AgentConfig) string {
	if cfg.ID != 0 {
		return strconv.FormatInt(cfg.ID, 10)
	}
	return cfg.Name
}

// executeCall dispatches one tool call. Calls naming a registered tool
// outside the agent's effective set are refused without executing;
// unknown names fall through to the registry's not-found result.
func (r *Runner) executeCall(ctx context.Context, call llms.ToolCall, allowed map[string]bool) *tools.ToolResult {
	if !allowed[call.Name] {
		if _, registered := r.tools.Get(call.Name); registered {
			r.logger.Warn("Refusing disabled tool", "name", call.Name)
			return tools.NewErrorResult(fmt.Sprintf("Tool '%s' is disabled", call.Name))
		}
	}
	return r.timedExecute(ctx, call)
}

// resultText flattens a tool result into the text the model sees. Error
// results surface their message so the model can correct course.
func resultText(result *tools.ToolResult) string {
	if result.Status == tools.StatusError && result.Error != "" {
		return result.Error
	}
	return result.Output
}
