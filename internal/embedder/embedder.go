// Package embedder turns text into unit-length vectors.
package embedder

import (
	"context"
	"math"
	"sync"
	"time"
)

// Embedder computes embeddings with one fixed model.
type Embedder interface {
	// Model returns the model identifier vectors are produced with.
	Model() string
	// Embed returns one vector per text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Factory creates an embedder for a model.
type Factory func(model string) Embedder

// Registry hands out one embedder per model for the life of the process.
// Embedders are created on first use.
type Registry struct {
	mu        sync.Mutex
	factory   Factory
	embedders map[string]Embedder
}

// NewRegistry creates a registry that builds embedders with factory.
func NewRegistry(factory Factory) *Registry {
	return &Registry{factory: factory, embedders: make(map[string]Embedder)}
}

// NewOllamaRegistry creates a registry of Ollama embedders.
func NewOllamaRegistry(baseURL string, timeout time.Duration) *Registry {
	return NewRegistry(func(model string) Embedder {
		return NewOllamaEmbedder(baseURL, model, timeout)
	})
}

// Get returns the embedder for model, creating it on first use.
func (r *Registry) Get(model string) Embedder {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.embedders[model]; ok {
		return e
	}
	e := r.factory(model)
	r.embedders[model] = e
	return e
}

// EmbedSingle embeds one text.
func EmbedSingle(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// Normalize scales v to unit length in place. Zero vectors are left as is.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
	return v
}
