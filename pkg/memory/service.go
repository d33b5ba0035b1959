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

package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mrvn-ai/mrvn/pkg/config"
	"github.com/mrvn-ai/mrvn/pkg/observability"
)

// Encoder is the slice of the embedder the service needs.
type Encoder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorCache persists computed embeddings across restarts.
type VectorCache interface {
	Get(ctx context.Context, model, hash string) ([]float32, error)
	Put(ctx context.Context, model, hash string, embedding []float32) error
}

// HistorySearcher is the slice of the history store text search reads.
type HistorySearcher interface {
	SearchMessages(ctx context.Context, agentID, sessionID int64, tokens []string, limit int) ([]Message, error)
	SearchSummaries(ctx context.Context, agentID, sessionID int64, query string, limit int) ([]Summary, error)
}

// Service indexes messages and summaries into the chunk store and
// answers vector, text, and hybrid searches over them. A nil encoder is
// a working configuration: indexing and vector search quietly yield
// nothing and only text search stays live.
type Service struct {
	cfg     config.SearchConfig
	encoder Encoder
	cache   VectorCache
	chunks  ChunkStore
	history HistorySearcher
	chunker *Chunker
	logger  *slog.Logger
}

// NewService assembles the search pipeline. Any dependency may be nil;
// the paths needing it degrade to empty results.
func NewService(cfg config.SearchConfig, encoder Encoder, cache VectorCache, chunks ChunkStore, history HistorySearcher) *Service {
	cfg.SetDefaults()
	return &Service{
		cfg:     cfg,
		encoder: encoder,
		cache:   cache,
		chunks:  chunks,
		history: history,
		chunker: NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		logger:  slog.With("component", "memory"),
	}
}

// GetEmbedding returns the embedding for text, serving from the cache
// when the content hash is already known. A nil encoder yields nil with
// no error. Cache failures are logged and bypassed, never fatal.
func (s *Service) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	if s.encoder == nil {
		return nil, nil
	}

	hash := ContentHash(text)
	if s.cache != nil {
		vec, err := s.cache.Get(ctx, s.cfg.EmbeddingModel, hash)
		if err != nil {
			s.logger.Warn("Embedding cache read failed", "error", err)
		} else if vec != nil {
			return vec, nil
		}
	}

	vec, err := s.encoder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed text: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Put(ctx, s.cfg.EmbeddingModel, hash, vec); err != nil {
			s.logger.Warn("Embedding cache write failed", "error", err)
		}
	}
	return vec, nil
}

// IndexMessage embeds a message into the agent's chunk store. Returns
// nil without error when no embedding could be produced.
func (s *Service) IndexMessage(ctx context.Context, agentID int64, msg *Message) (*Chunk, error) {
	return s.index(ctx, agentID, SourceMessage, msg.ID, msg.Content)
}

// IndexSummary embeds a summary into the agent's chunk store.
func (s *Service) IndexSummary(ctx context.Context, agentID int64, sum *Summary) (*Chunk, error) {
	return s.index(ctx, agentID, SourceSummary, sum.ID, sum.Summary)
}

func (s *Service) index(ctx context.Context, agentID int64, source ChunkSource, sourceID int64, text string) (*Chunk, error) {
	if s.chunks == nil {
		return nil, nil
	}

	// The embedded text is token-bounded, the stored row keeps the full
	// text so change detection sees edits past the bound.
	vec, err := s.GetEmbedding(ctx, s.chunker.Truncate(text))
	if err != nil {
		return nil, err
	}
	if vec == nil {
		return nil, nil
	}

	return s.chunks.Upsert(ctx, &Chunk{
		AgentID:        agentID,
		Source:         source,
		SourceID:       sourceID,
		Text:           text,
		Embedding:      vec,
		EmbeddingModel: s.cfg.EmbeddingModel,
		ContentHash:    ContentHash(text),
	})
}

// VectorSearch returns the agent's nearest chunks above the score floor.
// An unavailable encoder degrades to empty results; store failures are
// returned.
func (s *Service) VectorSearch(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	if s.chunks == nil {
		return nil, nil
	}

	vec, err := s.GetEmbedding(ctx, query)
	if err != nil {
		s.logger.Warn("Vector search skipped, encoder unavailable", "error", err)
		return nil, nil
	}
	if vec == nil {
		return nil, nil
	}

	hits, err := s.chunks.Query(ctx, opts.AgentID, vec, s.limit(opts), s.cfg.EfSearch)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		if h.Score < s.cfg.MinScore {
			continue
		}
		r := SearchResult{
			Content: h.Text,
			Score:   h.Score,
			Source:  string(h.Source),
		}
		if h.Source == SourceSummary {
			r.SummaryID = h.SourceID
		} else {
			r.MessageID = h.SourceID
		}
		results = append(results, r)
	}
	return results, nil
}

// TextSearch scores messages and summaries by the share of query words
// they contain. Messages match on any word, summaries on the whole
// query. Session memory narrows the scope to the current session.
func (s *Service) TextSearch(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 || s.history == nil {
		return nil, nil
	}

	limit := s.limit(opts)
	var sessionID int64
	if s.cfg.SessionMemory && opts.SessionID > 0 {
		sessionID = opts.SessionID
	}

	// Overfetch messages; word-share scoring below may drop some.
	msgs, err := s.history.SearchMessages(ctx, opts.AgentID, sessionID, words, limit*2)
	if err != nil {
		return nil, fmt.Errorf("text search messages: %w", err)
	}

	var results []SearchResult
	for _, m := range msgs {
		score := wordShare(m.Content, words)
		if score < s.cfg.MinScore {
			continue
		}
		results = append(results, SearchResult{
			Content:   m.Content,
			Score:     score,
			Source:    string(SourceMessage),
			MessageID: m.ID,
			Metadata: map[string]any{
				"role":    m.Role,
				"created": m.CreatedAt.Format(time.RFC3339),
			},
		})
	}

	sums, err := s.history.SearchSummaries(ctx, opts.AgentID, sessionID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("text search summaries: %w", err)
	}
	for _, sum := range sums {
		score := wordShare(sum.Summary, words)
		if score < s.cfg.MinScore {
			continue
		}
		results = append(results, SearchResult{
			Content:   sum.Summary,
			Score:     score,
			Source:    string(SourceSummary),
			SummaryID: sum.ID,
			Metadata: map[string]any{
				"messages_summarized": sum.MessagesSummarized,
				"created":             sum.CreatedAt.Format(time.RFC3339),
			},
		})
	}

	sortByScore(results)
	return topN(results, limit), nil
}

// HybridSearch runs both legs concurrently and merges them, weighting
// vector and text scores per the configured weights. A hit found by both
// legs keeps the vector result's content and sums the weighted scores.
func (s *Service) HybridSearch(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	if !s.cfg.Enabled {
		return nil, nil
	}

	var vecResults, textResults []SearchResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		vecResults, err = s.VectorSearch(gctx, query, opts)
		return err
	})
	g.Go(func() error {
		var err error
		textResults, err = s.TextSearch(gctx, query, opts)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make([]SearchResult, 0, len(vecResults)+len(textResults))
	index := make(map[string]int, len(vecResults))
	for _, r := range vecResults {
		r.Score *= s.cfg.HybridWeights.Vector
		index[resultKey(r)] = len(merged)
		merged = append(merged, r)
	}
	for _, r := range textResults {
		key := resultKey(r)
		if i, ok := index[key]; ok {
			merged[i].Score += r.Score * s.cfg.HybridWeights.Text
			continue
		}
		r.Score *= s.cfg.HybridWeights.Text
		index[key] = len(merged)
		merged = append(merged, r)
	}

	sortByScore(merged)
	return topN(merged, s.limit(opts)), nil
}

// Search dispatches to the pipeline selected by the options, falling
// back to the configured search type and then to hybrid.
func (s *Service) Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	searchType := opts.Type
	if searchType == "" {
		searchType = s.cfg.SearchType
	}

	start := time.Now()
	results, err := s.dispatch(ctx, searchType, query, opts)
	if err != nil {
		return nil, err
	}
	observability.GetGlobalMetrics().RecordMemorySearch(ctx, string(searchType), time.Since(start), len(results))
	return results, nil
}

func (s *Service) dispatch(ctx context.Context, searchType config.SearchType, query string, opts SearchOptions) ([]SearchResult, error) {
	switch searchType {
	case config.SearchVector:
		return s.VectorSearch(ctx, query, opts)
	case config.SearchText:
		return s.TextSearch(ctx, query, opts)
	default:
		return s.HybridSearch(ctx, query, opts)
	}
}

func (s *Service) limit(opts SearchOptions) int {
	if opts.MaxResults > 0 {
		return opts.MaxResults
	}
	return s.cfg.MaxResults
}

// wordShare is the fraction of words contained in content, compared
// case-insensitively. Every word counts the same; there is no term
// weighting.
func wordShare(content string, words []string) float64 {
	lower := strings.ToLower(content)
	matched := 0
	for _, w := range words {
		if strings.Contains(lower, w) {
			matched++
		}
	}
	return float64(matched) / float64(len(words))
}

func resultKey(r SearchResult) string {
	id := r.MessageID
	if r.Source == string(SourceSummary) {
		id = r.SummaryID
	}
	return fmt.Sprintf("%s:%d", r.Source, id)
}

// sortByScore orders descending and keeps insertion order on ties, so
// vector hits stay ahead of equal-scored text hits after a merge.
func sortByScore(results []SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}

func topN(results []SearchResult, limit int) []SearchResult {
	if limit > 0 && len(results) > limit {
		return results[:limit]
	}
	return results
}
