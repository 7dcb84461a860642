package store

import (
	"time"

	"ragchat/internal/domain"
)

// Meta keys recorded in every collection index.
const (
	MetaEmbeddingModel = "embedding_model"
	MetaDimensions     = "dimensions"
)

// FileRecord is one row of the ingested-file ledger.
type FileRecord struct {
	ID        int64
	Name      string
	Hash      string
	SizeBytes int64
	Chunks    int
	IndexedAt time.Time
}

// SearchResult is a chunk with its distance to the query vector.
type SearchResult struct {
	ChunkID  int64
	Chunk    domain.Chunk
	Distance float64
}

// Score converts the L2 distance between two unit vectors into their cosine
// similarity.
func (r SearchResult) Score() float64 {
	return 1 - r.Distance*r.Distance/2
}
