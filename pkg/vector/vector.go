// Package vector provides the chunk stores behind memory search that are
// not plain SQL: a Qdrant-backed store for deployments with an external
// vector database, and an embedded chromem-go store for zero-dependency
// setups. Both take pre-computed embeddings; encoding happens in the
// embedder package.
package vector

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrvn-ai/mrvn/pkg/config"
)

// ErrUnknownBackend is returned for backends this package does not serve.
var ErrUnknownBackend = errors.New("unknown vector backend")

// Result is one scored hit from a similarity search.
type Result struct {
	// ID is the key the document was upserted under.
	ID string

	// Score is the cosine similarity to the query, higher is closer.
	Score float32

	// Content is the stored chunk text.
	Content string

	// Metadata carries the fields stored alongside the chunk.
	Metadata map[string]any
}

// SearchParams tunes one similarity query.
type SearchParams struct {
	// TopK caps returned results.
	TopK int

	// EfSearch sets the HNSW ef for this query where the backend
	// supports it. Zero keeps the server default.
	EfSearch int

	// Filter restricts hits to documents whose metadata matches every
	// entry. Values are matched as keywords.
	Filter map[string]any
}

// Store is a collection-scoped vector store over pre-computed embeddings.
// Upserting an existing key replaces the stored document.
type Store interface {
	Upsert(ctx context.Context, collection, key string, vec []float32, content string, metadata map[string]any) error
	Search(ctx context.Context, collection string, vec []float32, params SearchParams) ([]Result, error)
	Delete(ctx context.Context, collection, key string) error
	DeleteCollection(ctx context.Context, collection string) error
	Close() error
}

// New creates the vector store for the configured memory backend. The
// pgvector backend lives in the memory package; asking for it here is an
// error.
func New(backend config.MemoryBackend, cfg *config.VectorConfig) (Store, error) {
	switch backend {
	case config.BackendQdrant:
		return NewQdrantStore(cfg)
	case config.BackendChromem:
		return NewChromemStore(cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, backend)
	}
}
