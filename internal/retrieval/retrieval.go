// Package retrieval fetches the passages most relevant to a query: a
// similarity search that over-fetches, followed by an optional rerank.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"ragchat/internal/domain"
	"ragchat/internal/logger"
	"ragchat/internal/rerank"
)

// overFetch is how many candidates per requested passage the similarity
// stage hands to the reranker.
const overFetch = 2

// Searcher runs a similarity search over one collection.
type Searcher interface {
	SimilaritySearch(ctx context.Context, query string, k int) ([]domain.Passage, error)
}

// Pipeline is safe for concurrent use.
type Pipeline struct {
	reranker rerank.Reranker
	warnOnce sync.Once
}

// New creates a pipeline. A nil reranker keeps similarity order.
func New(reranker rerank.Reranker) *Pipeline {
	return &Pipeline{reranker: reranker}
}

// Retrieve returns at most k passages for query, most relevant first. A nil
// searcher or non-positive k yields no passages. A failing reranker is
// logged and similarity order is used instead.
func (p *Pipeline) Retrieve(ctx context.Context, query string, s Searcher, k int) ([]domain.Passage, error) {
	if s == nil || k <= 0 {
		return nil, nil
	}
	candidates, err := s.SimilaritySearch(ctx, query, overFetch*k)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	if p.reranker == nil {
		p.warnOnce.Do(func() {
			logger.Warn("%v: no reranker configured, using similarity order", domain.ErrRerankerUnavailable)
		})
		return truncate(candidates, k), nil
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Content
	}
	scores, err := p.reranker.Rerank(ctx, query, texts)
	if err == nil && len(scores) != len(candidates) {
		err = fmt.Errorf("%w: got %d scores for %d passages", domain.ErrRerankerUnavailable, len(scores), len(candidates))
	}
	if err != nil {
		logger.Warn("rerank failed, using similarity order: %v", err)
		return truncate(candidates, k), nil
	}

	ranked := make([]domain.Passage, len(candidates))
	copy(ranked, candidates)
	for i := range ranked {
		ranked[i].Score = scores[i]
	}
	// Stable so equal scores keep similarity order.
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	return truncate(ranked, k), nil
}

func truncate(ps []domain.Passage, k int) []domain.Passage {
	if len(ps) > k {
		return ps[:k]
	}
	return ps
}
