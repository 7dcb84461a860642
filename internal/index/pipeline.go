package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"ragchat/internal/chunker"
	"ragchat/internal/collection"
	"ragchat/internal/domain"
	"ragchat/internal/extract"
	"ragchat/internal/logger"
	"ragchat/internal/store"
	"ragchat/internal/upload"
)

// fileWork is a file whose content is not in the collection yet.
type fileWork struct {
	path string
	hash string
	size int64
}

// chunkBatch is the chunks split from a single file.
type chunkBatch struct {
	work   fileWork
	policy string
	chunks []domain.Chunk
}

func runPipeline(
	parent context.Context,
	files []string,
	h *collection.Handle,
	m *collection.Manager,
	ex *extract.Extractor,
	sel *chunker.Selector,
	numWorkers int,
	onProgress ProgressFunc,
) (*Stats, error) {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	stats := &Stats{FilesTotal: len(files)}

	// mu guards the counters written by the worker stages and abortErr.
	var mu sync.Mutex
	var abortErr error
	fail := func(path string, err error) {
		logger.Warn("skipping %s: %v", path, err)
		mu.Lock()
		stats.FilesFailed++
		stats.Failures = append(stats.Failures, upload.Failure{Path: path, Err: err})
		mu.Unlock()
	}
	skip := func(path, reason string) {
		logger.Debug("skip %s: %s", path, reason)
		mu.Lock()
		stats.FilesSkipped++
		mu.Unlock()
	}
	abort := func(err error) {
		mu.Lock()
		if abortErr == nil {
			abortErr = err
		}
		mu.Unlock()
		cancel()
	}

	// Stage 1: Feed
	pathCh := make(chan string)
	go func() {
		defer close(pathCh)
		for _, p := range files {
			select {
			case pathCh <- p:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Stage 2: Hash + check (N workers)
	workCh := make(chan fileWork, numWorkers)
	seen := make(map[string]bool)
	var hashWg sync.WaitGroup
	for range numWorkers {
		hashWg.Add(1)
		go func() {
			defer hashWg.Done()
			for p := range pathCh {
				if ctx.Err() != nil {
					continue
				}
				src, err := os.ReadFile(p)
				if err != nil {
					fail(p, err)
					continue
				}
				sum := sha256.Sum256(src)
				hash := hex.EncodeToString(sum[:])

				done, err := h.HasFile(hash)
				if err != nil {
					abort(err)
					continue
				}
				mu.Lock()
				dup := seen[hash]
				seen[hash] = true
				mu.Unlock()
				if done || dup {
					skip(p, "content already ingested")
					continue
				}

				select {
				case workCh <- fileWork{path: p, hash: hash, size: int64(len(src))}:
				case <-ctx.Done():
				}
			}
		}()
	}
	go func() {
		hashWg.Wait()
		close(workCh)
	}()

	// Stage 3: Extract + split (N workers)
	chunkCh := make(chan chunkBatch, numWorkers)
	var chunkWg sync.WaitGroup
	for range numWorkers {
		chunkWg.Add(1)
		go func() {
			defer chunkWg.Done()
			for w := range workCh {
				if ctx.Err() != nil {
					continue
				}
				text, err := ex.Extract(ctx, w.path)
				if err != nil {
					fail(w.path, err)
					continue
				}
				policy := sel.For(w.path)
				chunks := policy.Chunks(text)
				if len(chunks) == 0 {
					skip(w.path, "no text")
					continue
				}
				select {
				case chunkCh <- chunkBatch{work: w, policy: policy.Name(), chunks: chunks}:
				case <-ctx.Done():
				}
			}
		}()
	}
	go func() {
		chunkWg.Wait()
		close(chunkCh)
	}()

	// Stage 4: Embed + store (1 worker). Draining continues after an abort so
	// the upstream stages can exit.
	for b := range chunkCh {
		if ctx.Err() != nil {
			continue
		}
		rec := store.FileRecord{
			Name:      filepath.Base(b.work.path),
			Hash:      b.work.hash,
			SizeBytes: b.work.size,
		}
		if err := m.AddFile(ctx, h, rec, b.chunks); err != nil {
			abort(err)
			continue
		}
		logger.Debug("%s: %d chunk(s) via %s", rec.Name, len(b.chunks), b.policy)

		mu.Lock()
		stats.FilesIndexed++
		stats.ChunksTotal += len(b.chunks)
		indexed := stats.FilesIndexed
		mu.Unlock()
		if onProgress != nil {
			onProgress("Indexing files...", indexed, stats.FilesTotal)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if abortErr != nil {
		return stats, abortErr
	}
	if err := parent.Err(); err != nil {
		return stats, err
	}
	return stats, nil
}
