// Package index ingests files into a collection: extract, split, embed and
// store, skipping content the collection already holds.
package index

import (
	"context"
	"fmt"

	"ragchat/internal/chunker"
	"ragchat/internal/collection"
	"ragchat/internal/domain"
	"ragchat/internal/extract"
	"ragchat/internal/logger"
	"ragchat/internal/upload"
)

// ProgressFunc receives the current phase, files stored and files total.
type ProgressFunc func(phase string, done, total int)

// Config holds the indexer configuration.
type Config struct {
	Workers    int
	StagingDir string
}

// Stats reports indexing results.
type Stats struct {
	FilesTotal   int
	FilesIndexed int
	FilesSkipped int
	FilesFailed  int
	ChunksTotal  int
	Failures     []upload.Failure
}

// Indexer adds files to collections.
type Indexer struct {
	manager   *collection.Manager
	extractor *extract.Extractor
	selector  *chunker.Selector
	config    Config
}

// New creates an indexer.
func New(cfg Config, manager *collection.Manager, extractor *extract.Extractor, selector *chunker.Selector) *Indexer {
	return &Indexer{
		manager:   manager,
		extractor: extractor,
		selector:  selector,
		config:    cfg,
	}
}

// Index ingests paths into h. Directories are walked and archives expanded.
// A file that cannot be read, extracted or split is recorded in
// Stats.Failures and the rest continue; collection-level errors abort the
// run and are returned together with the stats so far.
func (idx *Indexer) Index(ctx context.Context, h *collection.Handle, paths []string, onProgress ProgressFunc) (*Stats, error) {
	if h == nil {
		return nil, fmt.Errorf("%w: nil collection", domain.ErrInvalidInput)
	}
	if !idx.manager.Live(h) {
		return nil, fmt.Errorf("%w: %s was deleted", domain.ErrCollectionNotFound, h.Collection.HashedName)
	}

	staged, err := upload.Stage(paths, idx.config.StagingDir)
	defer func() {
		if cerr := staged.Cleanup(); cerr != nil {
			logger.Warn("remove staging dir %s: %v", staged.Dir, cerr)
		}
	}()
	if err != nil {
		return nil, err
	}

	logger.Section("Ingest " + h.Collection.Name)
	logger.Debug("%d file(s) to consider", len(staged.Files))

	stats, err := runPipeline(ctx, staged.Files, h, idx.manager, idx.extractor, idx.selector, idx.config.Workers, onProgress)
	stats.FilesTotal += len(staged.Failures)
	stats.FilesFailed += len(staged.Failures)
	stats.Failures = append(staged.Failures, stats.Failures...)
	return stats, err
}
