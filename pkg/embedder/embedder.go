// Package embedder turns text into vectors for memory search. Three
// encoders are supported: OpenAI and Ollama over their HTTP embedding
// APIs, and Gemini through the genai SDK.
package embedder

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrvn-ai/mrvn/pkg/config"
)

// ErrUnknownEmbedder is returned for provider names outside the
// supported set.
var ErrUnknownEmbedder = errors.New("unknown embedder provider")

// Embedder encodes text into fixed-dimension vectors.
type Embedder interface {
	// Embed encodes one text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch encodes many texts, preserving input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension reports the configured vector width.
	Dimension() int

	// Model names the encoder model; it is part of the embedding cache
	// key, so two encoders with the same model share cached vectors.
	Model() string

	Close() error
}

// New creates the embedder selected by the configuration.
func New(cfg *config.EmbedderConfig) (Embedder, error) {
	switch cfg.Provider {
	case config.EmbedderOpenAI:
		return NewOpenAIEmbedder(cfg)
	case config.EmbedderOllama:
		return NewOllamaEmbedder(cfg)
	case config.EmbedderGemini:
		return NewGeminiEmbedder(cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEmbedder, cfg.Provider)
	}
}
