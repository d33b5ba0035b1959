package llms

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mrvn-ai/mrvn/pkg/config"
	"github.com/mrvn-ai/mrvn/pkg/httpclient"
)

// ErrUnknownProvider is returned when a provider name is outside the closed
// variant set.
var ErrUnknownProvider = errors.New("unsupported LLM provider")

// NewProvider builds the adapter for cfg.Provider. The variant set is
// closed; vllm deployments speak the OpenAI dialect and share its adapter.
func NewProvider(cfg *config.LLMConfig) (Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("LLM config cannot be nil")
	}

	switch cfg.Provider {
	case config.ProviderAnthropic:
		return NewAnthropicProvider(cfg)
	case config.ProviderOpenAI, config.ProviderVLLM:
		return NewOpenAIProvider(cfg)
	case config.ProviderGemini:
		return NewGeminiProvider(cfg)
	case config.ProviderOllama:
		return NewOllamaProvider(cfg)
	default:
		return nil, fmt.Errorf("%w: %s (supported: anthropic, openai, gemini, ollama)",
			ErrUnknownProvider, cfg.Provider)
	}
}

// newHTTPClient builds the shared retrying transport for an adapter.
func newHTTPClient(cfg *config.LLMConfig, parser httpclient.HeaderParser) *httpclient.Client {
	return httpclient.New(
		httpclient.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		}),
		httpclient.WithMaxRetries(cfg.MaxRetries),
		httpclient.WithBaseDelay(time.Duration(cfg.RetryDelay)*time.Second),
		httpclient.WithHeaderParser(parser),
	)
}
