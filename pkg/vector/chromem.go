package vector

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/mrvn-ai/mrvn/pkg/config"
)

// ChromemStore keeps chunks in an embedded chromem-go database. With a
// configured path the store persists to disk; without one everything
// lives in memory. It runs in-process, which makes it the default for
// development and for tests.
type ChromemStore struct {
	db *chromem.DB

	mu          sync.Mutex
	collections map[string]*chromem.Collection

	embeddingFunc chromem.EmbeddingFunc
}

// NewChromemStore opens or creates the embedded store.
func NewChromemStore(cfg *config.VectorConfig) (*ChromemStore, error) {
	var db *chromem.DB
	if cfg.Path != "" {
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("create vector directory: %w", err)
		}
		var err error
		db, err = chromem.NewPersistentDB(filepath.Join(cfg.Path, "vectors.gob"), false)
		if err != nil {
			return nil, fmt.Errorf("open vector database: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	return &ChromemStore{
		db:          db,
		collections: make(map[string]*chromem.Collection),
		// Vectors arrive pre-computed; chromem must never embed.
		embeddingFunc: func(ctx context.Context, text string) ([]float32, error) {
			return nil, fmt.Errorf("chromem store received text without an embedding")
		},
	}, nil
}

func (s *ChromemStore) collection(name string) (*chromem.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if col, ok := s.collections[name]; ok {
		return col, nil
	}
	col, err := s.db.GetOrCreateCollection(name, nil, s.embeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("open collection %s: %w", name, err)
	}
	s.collections[name] = col
	return col, nil
}

func (s *ChromemStore) Upsert(ctx context.Context, collection, key string, vec []float32, content string, metadata map[string]any) error {
	col, err := s.collection(collection)
	if err != nil {
		return err
	}

	// chromem metadata is string-typed.
	strMeta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		strMeta[k] = fmt.Sprint(v)
	}

	doc := chromem.Document{
		ID:        key,
		Content:   content,
		Metadata:  strMeta,
		Embedding: vec,
	}
	if err := col.AddDocuments(ctx, []chromem.Document{doc}, runtime.NumCPU()); err != nil {
		return fmt.Errorf("upsert document %s: %w", key, err)
	}
	return nil
}

func (s *ChromemStore) Search(ctx context.Context, collection string, vec []float32, params SearchParams) ([]Result, error) {
	col, err := s.collection(collection)
	if err != nil {
		return nil, err
	}

	// chromem searches exhaustively, so EfSearch does not apply, and it
	// rejects queries asking for more results than documents stored.
	topK := params.TopK
	if count := col.Count(); count < topK {
		topK = count
	}
	if topK <= 0 {
		return nil, nil
	}

	var where map[string]string
	if len(params.Filter) > 0 {
		where = make(map[string]string, len(params.Filter))
		for k, v := range params.Filter {
			where[k] = fmt.Sprint(v)
		}
	}

	hits, err := col.QueryEmbedding(ctx, vec, topK, where, nil)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", collection, err)
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		metadata := make(map[string]any, len(hit.Metadata))
		for k, v := range hit.Metadata {
			metadata[k] = v
		}
		results = append(results, Result{
			ID:       hit.ID,
			Score:    hit.Similarity,
			Content:  hit.Content,
			Metadata: metadata,
		})
	}
	return results, nil
}

func (s *ChromemStore) Delete(ctx context.Context, collection, key string) error {
	col, err := s.collection(collection)
	if err != nil {
		return err
	}
	if err := col.Delete(ctx, nil, nil, key); err != nil {
		return fmt.Errorf("delete document %s: %w", key, err)
	}
	return nil
}

func (s *ChromemStore) DeleteCollection(ctx context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DeleteCollection(collection); err != nil {
		return fmt.Errorf("delete collection %s: %w", collection, err)
	}
	delete(s.collections, collection)
	return nil
}

func (s *ChromemStore) Close() error { return nil }

var (
	_ Store = (*QdrantStore)(nil)
	_ Store = (*ChromemStore)(nil)
)
