package collection

import (
	"context"
	"fmt"
	"sync"

	"ragchat/internal/domain"
	"ragchat/internal/embedder"
	"ragchat/internal/store"
)

// Handle is an open collection. Handles are shared: the Manager returns the
// same Handle for every open of one collection until it is deleted or the
// Manager is closed.
type Handle struct {
	Collection domain.Collection

	dir      string
	store    store.Store
	embedder embedder.Embedder

	// mu guards store against close while a read is in flight.
	mu     sync.RWMutex
	closed bool
}

// Info summarises a collection's contents.
type Info struct {
	Collection domain.Collection
	Dir        string
	Chunks     int
	Files      []store.FileRecord
}

// Dir returns the collection's storage directory.
func (h *Handle) Dir() string { return h.dir }

// SimilaritySearch embeds query with the collection's model and returns the
// k nearest chunks, most similar first. A nil handle has no context; a handle
// of a deleted collection yields domain.ErrCollectionNotFound.
func (h *Handle) SimilaritySearch(ctx context.Context, query string, k int) ([]domain.Passage, error) {
	if h == nil || k <= 0 {
		return nil, nil
	}
	vec, err := embedder.EmbedSingle(ctx, h.embedder, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return nil, h.gone()
	}
	results, err := h.store.Search(vec, k)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", h.Collection.HashedName, err)
	}
	passages := make([]domain.Passage, 0, len(results))
	for _, r := range results {
		passages = append(passages, domain.Passage{
			Chunk:      r.Chunk,
			Score:      r.Score(),
			Collection: h.Collection.Name,
		})
	}
	return passages, nil
}

// HasFile reports whether content with this sha256 was already ingested.
func (h *Handle) HasFile(hash string) (bool, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return false, h.gone()
	}
	return h.store.HasFile(hash)
}

// Info returns the chunk count and file ledger.
func (h *Handle) Info() (Info, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return Info{}, h.gone()
	}
	n, err := h.store.Count()
	if err != nil {
		return Info{}, fmt.Errorf("count chunks: %w", err)
	}
	files, err := h.store.Files()
	if err != nil {
		return Info{}, fmt.Errorf("list files: %w", err)
	}
	return Info{Collection: h.Collection, Dir: h.dir, Chunks: n, Files: files}, nil
}

func (h *Handle) gone() error {
	return fmt.Errorf("%w: %s", domain.ErrCollectionNotFound, h.Collection.HashedName)
}

func (h *Handle) close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return h.store.Close()
}
