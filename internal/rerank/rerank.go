// Package rerank scores (query, passage) pairs with a cross-encoder served by
// a llama.cpp-compatible /v1/rerank endpoint.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ragchat/internal/domain"
)

// Reranker scores passages against a query. Scores are returned in input
// order; higher is more relevant.
type Reranker interface {
	Rerank(ctx context.Context, query string, passages []string) ([]float64, error)
}

// HTTPReranker calls a llama.cpp server started with --reranking.
type HTTPReranker struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewHTTPReranker creates a reranker for the server at baseURL. model may be
// empty when the server hosts a single model.
func NewHTTPReranker(baseURL, model string, timeout time.Duration) *HTTPReranker {
	return &HTTPReranker{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

type rerankRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank returns one score per passage. Any transport or protocol failure
// is reported as domain.ErrRerankerUnavailable.
func (r *HTTPReranker) Rerank(ctx context.Context, query string, passages []string) ([]float64, error) {
	if len(passages) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(rerankRequest{Model: r.model, Query: query, Documents: passages})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRerankerUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: rerank returned %d: %s", domain.ErrRerankerUnavailable, resp.StatusCode, string(respBody))
	}

	var result rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decode rerank response: %v", domain.ErrRerankerUnavailable, err)
	}

	scores := make([]float64, len(passages))
	seen := make([]bool, len(passages))
	for _, res := range result.Results {
		if res.Index < 0 || res.Index >= len(passages) || seen[res.Index] {
			return nil, fmt.Errorf("%w: bad result index %d", domain.ErrRerankerUnavailable, res.Index)
		}
		scores[res.Index] = res.RelevanceScore
		seen[res.Index] = true
	}
	if len(result.Results) != len(passages) {
		return nil, fmt.Errorf("%w: expected %d scores, got %d", domain.ErrRerankerUnavailable, len(passages), len(result.Results))
	}
	return scores, nil
}
