package vector

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/mrvn-ai/mrvn/pkg/config"
)

func newTestStore(t *testing.T) *ChromemStore {
	t.Helper()
	store, err := NewChromemStore(&config.VectorConfig{})
	if err != nil {
		t.Fatalf("NewChromemStore() error = %v", err)
	}
	return store
}

func seedStore(t *testing.T, store *ChromemStore, collection string) {
	t.Helper()
	ctx := context.Background()
	docs := []struct {
		key      string
		vec      []float32
		content  string
		metadata map[string]any
	}{
		{"message:1", []float32{1, 0, 0}, "alpha likes go", map[string]any{"source": "message"}},
		{"message:2", []float32{0, 1, 0}, "beta likes rust", map[string]any{"source": "message"}},
		{"summary:1", []float32{0.8, 0.6, 0}, "early sessions recap", map[string]any{"source": "summary"}},
	}
	for _, d := range docs {
		if err := store.Upsert(ctx, collection, d.key, d.vec, d.content, d.metadata); err != nil {
			t.Fatalf("Upsert(%s) error = %v", d.key, err)
		}
	}
}

func TestChromemSearchRanksBySimilarity(t *testing.T) {
	store := newTestStore(t)
	seedStore(t, store, "agent-1")

	results, err := store.Search(context.Background(), "agent-1", []float32{1, 0, 0}, SearchParams{TopK: 2})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Search() returned %d results, want 2", len(results))
	}
	if results[0].ID != "message:1" || results[1].ID != "summary:1" {
		t.Fatalf("Search() order = [%s %s], want [message:1 summary:1]", results[0].ID, results[1].ID)
	}
	if math.Abs(float64(results[0].Score)-1.0) > 1e-3 {
		t.Errorf("top score = %f, want ~1.0", results[0].Score)
	}
	if math.Abs(float64(results[1].Score)-0.8) > 1e-3 {
		t.Errorf("second score = %f, want ~0.8", results[1].Score)
	}
	if results[0].Content != "alpha likes go" {
		t.Errorf("top content = %q, want %q", results[0].Content, "alpha likes go")
	}
	if results[0].Metadata["source"] != "message" {
		t.Errorf("top metadata source = %v, want message", results[0].Metadata["source"])
	}
}

func TestChromemUpsertReplacesByKey(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, "agent-1", "message:1", []float32{1, 0, 0}, "old text", nil); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := store.Upsert(ctx, "agent-1", "message:1", []float32{0, 1, 0}, "new text", nil); err != nil {
		t.Fatalf("Upsert() replace error = %v", err)
	}

	results, err := store.Search(ctx, "agent-1", []float32{0, 1, 0}, SearchParams{TopK: 5})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Search() returned %d results after replace, want 1", len(results))
	}
	if results[0].Content != "new text" {
		t.Errorf("content = %q, want %q", results[0].Content, "new text")
	}
}

func TestChromemSearchClampsTopK(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, "agent-1", "message:1", []float32{1, 0, 0}, "only one", nil); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	results, err := store.Search(ctx, "agent-1", []float32{1, 0, 0}, SearchParams{TopK: 10})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Search() returned %d results, want 1", len(results))
	}
}

func TestChromemSearchEmptyCollection(t *testing.T) {
	store := newTestStore(t)

	results, err := store.Search(context.Background(), "agent-1", []float32{1, 0, 0}, SearchParams{TopK: 5})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("Search() returned %d results from empty collection, want 0", len(results))
	}
}

func TestChromemSearchFilters(t *testing.T) {
	store := newTestStore(t)
	seedStore(t, store, "agent-1")

	results, err := store.Search(context.Background(), "agent-1", []float32{1, 0, 0}, SearchParams{
		TopK:   3,
		Filter: map[string]any{"source": "summary"},
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Search() returned %d results, want 1", len(results))
	}
	if results[0].ID != "summary:1" {
		t.Errorf("result ID = %s, want summary:1", results[0].ID)
	}
}

func TestChromemCollectionsAreIsolated(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, "agent-1", "message:1", []float32{1, 0, 0}, "for agent one", nil); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	results, err := store.Search(ctx, "agent-2", []float32{1, 0, 0}, SearchParams{TopK: 5})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("agent-2 sees %d results from agent-1, want 0", len(results))
	}
}

func TestChromemDelete(t *testing.T) {
	store := newTestStore(t)
	seedStore(t, store, "agent-1")
	ctx := context.Background()

	if err := store.Delete(ctx, "agent-1", "message:1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	results, err := store.Search(ctx, "agent-1", []float32{1, 0, 0}, SearchParams{TopK: 5})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	for _, r := range results {
		if r.ID == "message:1" {
			t.Fatalf("deleted document still returned: %+v", r)
		}
	}
}

func TestChromemDeleteCollection(t *testing.T) {
	store := newTestStore(t)
	seedStore(t, store, "agent-1")
	ctx := context.Background()

	if err := store.DeleteCollection(ctx, "agent-1"); err != nil {
		t.Fatalf("DeleteCollection() error = %v", err)
	}

	results, err := store.Search(ctx, "agent-1", []float32{1, 0, 0}, SearchParams{TopK: 5})
	if err != nil {
		t.Fatalf("Search() after DeleteCollection error = %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("Search() returned %d results after DeleteCollection, want 0", len(results))
	}
}

func TestChromemPersistsAcrossReopen(t *testing.T) {
	cfg := &config.VectorConfig{Path: t.TempDir()}
	ctx := context.Background()

	store, err := NewChromemStore(cfg)
	if err != nil {
		t.Fatalf("NewChromemStore() error = %v", err)
	}
	if err := store.Upsert(ctx, "agent-1", "message:1", []float32{1, 0, 0}, "remember me", map[string]any{"source": "message"}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := NewChromemStore(cfg)
	if err != nil {
		t.Fatalf("NewChromemStore() reopen error = %v", err)
	}
	results, err := reopened.Search(ctx, "agent-1", []float32{1, 0, 0}, SearchParams{TopK: 1})
	if err != nil {
		t.Fatalf("Search() after reopen error = %v", err)
	}
	if len(results) != 1 || results[0].Content != "remember me" {
		t.Fatalf("Search() after reopen = %+v, want the persisted document", results)
	}
}

func TestNewSelectsBackend(t *testing.T) {
	store, err := New(config.BackendChromem, &config.VectorConfig{})
	if err != nil {
		t.Fatalf("New(chromem) error = %v", err)
	}
	if _, ok := store.(*ChromemStore); !ok {
		t.Fatalf("New(chromem) returned %T, want *ChromemStore", store)
	}
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	for _, backend := range []config.MemoryBackend{"pgvector", "faiss", ""} {
		_, err := New(backend, &config.VectorConfig{})
		if !errors.Is(err, ErrUnknownBackend) {
			t.Errorf("New(%q) error = %v, want ErrUnknownBackend", backend, err)
		}
	}
}
