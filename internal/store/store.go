// Package store persists one collection's chunks and vectors in a SQLite
// database with the sqlite-vec extension.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"ragchat/internal/domain"
)

func init() {
	sqlite_vec.Auto()
}

// maxK is the largest k sqlite-vec accepts in a KNN query.
const maxK = 4096

// Store provides persistence for a collection's file ledger, chunks and
// embeddings. Chunks are append-only.
type Store interface {
	// HasFile reports whether a file with this content hash was ingested.
	HasFile(hash string) (bool, error)
	// InsertChunks appends chunks and their vectors in one transaction and,
	// when file is non-nil, records it in the ledger. It refuses vectors from
	// a model other than the one the index was first written with.
	InsertChunks(model string, file *FileRecord, chunks []domain.Chunk, vectors [][]float32) error
	// Search finds the k chunks closest to the query vector, nearest first.
	Search(query []float32, k int) ([]SearchResult, error)
	// Count returns the number of stored chunks.
	Count() (int, error)
	// Files lists the ingested-file ledger in ingestion order.
	Files() ([]FileRecord, error)
	// GetMeta returns a metadata value by key, or "" if not set.
	GetMeta(key string) (string, error)
	// SetMeta sets a metadata key-value pair.
	SetMeta(key, value string) error
	// Close closes the underlying database.
	Close() error
}

// SQLiteStore implements Store backed by SQLite + sqlite-vec.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Open creates or opens a SQLite database at the given path and initializes the schema.
func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := Init(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteStore{db: db, path: dbPath}, nil
}

func (s *SQLiteStore) HasFile(hash string) (bool, error) {
	var id int64
	err := s.db.QueryRow("SELECT id FROM files WHERE hash = ?", hash).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (s *SQLiteStore) InsertChunks(model string, file *FileRecord, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("mismatched chunks (%d) and vectors (%d)", len(chunks), len(vectors))
	}
	tx, err := s.db.Begin()
	if err != nil {
		return s.writeErr("begin", err)
	}
	defer tx.Rollback()

	if err := s.bindModel(tx, model); err != nil {
		return err
	}
	if len(vectors) > 0 {
		if err := s.bindDimensions(tx, vectors); err != nil {
			return err
		}
	}

	var fileID sql.NullInt64
	if file != nil {
		res, err := tx.Exec(
			"INSERT INTO files (name, hash, size_bytes) VALUES (?, ?, ?)",
			file.Name, file.Hash, file.SizeBytes,
		)
		if err != nil {
			return s.writeErr("insert file", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return s.writeErr("insert file", err)
		}
		fileID = sql.NullInt64{Int64: id, Valid: true}
		file.ID = id
	}

	chunkStmt, err := tx.Prepare("INSERT INTO chunks (file_id, source_file, position, content) VALUES (?, ?, ?, ?)")
	if err != nil {
		return s.writeErr("prepare chunks", err)
	}
	defer chunkStmt.Close()

	var vecStmt *sql.Stmt
	if len(vectors) > 0 {
		vecStmt, err = tx.Prepare("INSERT INTO vec_chunks (chunk_id, embedding) VALUES (?, ?)")
		if err != nil {
			return s.writeErr("prepare vectors", err)
		}
		defer vecStmt.Close()
	}

	for i, c := range chunks {
		res, err := chunkStmt.Exec(fileID, c.SourceFile, c.Position, c.Content)
		if err != nil {
			return s.writeErr("insert chunk", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return s.writeErr("insert chunk", err)
		}
		blob, err := sqlite_vec.SerializeFloat32(vectors[i])
		if err != nil {
			return fmt.Errorf("serialize embedding for chunk %d: %w", id, err)
		}
		if _, err := vecStmt.Exec(id, blob); err != nil {
			return s.writeErr("insert embedding", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return s.writeErr("commit", err)
	}
	return nil
}

func (s *SQLiteStore) bindModel(tx *sql.Tx, model string) error {
	current, err := getMeta(tx, MetaEmbeddingModel)
	if err != nil {
		return err
	}
	if current == "" {
		return setMeta(tx, MetaEmbeddingModel, model)
	}
	if current != model {
		return &domain.ModelMismatchError{Collection: s.collection(), Want: current, Got: model}
	}
	return nil
}

func (s *SQLiteStore) bindDimensions(tx *sql.Tx, vectors [][]float32) error {
	dims := len(vectors[0])
	for _, v := range vectors {
		if len(v) != dims || dims == 0 {
			return fmt.Errorf("%w: vectors of differing dimension in one batch", domain.ErrInvalidInput)
		}
	}
	current, err := getMeta(tx, MetaDimensions)
	if err != nil {
		return err
	}
	if current == "" {
		if err := initVectors(tx, dims); err != nil {
			return s.writeErr("create vector table", err)
		}
		return setMeta(tx, MetaDimensions, strconv.Itoa(dims))
	}
	if current != strconv.Itoa(dims) {
		return fmt.Errorf("%w: collection %s stores %s-dimensional vectors, got %d",
			domain.ErrEmbeddingModelMismatch, s.collection(), current, dims)
	}
	return nil
}

func (s *SQLiteStore) Search(query []float32, k int) ([]SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}
	if k > maxK {
		k = maxK
	}
	dims, err := s.GetMeta(MetaDimensions)
	if err != nil {
		return nil, err
	}
	if dims == "" {
		return nil, nil
	}
	if dims != strconv.Itoa(len(query)) {
		return nil, fmt.Errorf("%w: query has %d dimensions, collection %s stores %s",
			domain.ErrEmbeddingModelMismatch, len(query), s.collection(), dims)
	}

	blob, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, fmt.Errorf("serialize query embedding: %w", err)
	}
	rows, err := s.db.Query(`
		WITH knn AS (
			SELECT chunk_id, distance
			FROM vec_chunks
			WHERE embedding MATCH ? AND k = ?
		)
		SELECT c.id, c.source_file, c.position, c.content, knn.distance
		FROM knn
		JOIN chunks c ON c.id = knn.chunk_id
		ORDER BY knn.distance, c.id
	`, blob, k)
	if err != nil {
		return nil, fmt.Errorf("knn query: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ChunkID, &r.Chunk.SourceFile, &r.Chunk.Position, &r.Chunk.Content, &r.Distance); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *SQLiteStore) Count() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM chunks").Scan(&n)
	return n, err
}

func (s *SQLiteStore) Files() ([]FileRecord, error) {
	rows, err := s.db.Query(`
		SELECT f.id, f.name, f.hash, f.size_bytes, f.indexed_at, COUNT(c.id)
		FROM files f
		LEFT JOIN chunks c ON c.file_id = f.id
		GROUP BY f.id
		ORDER BY f.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []FileRecord
	for rows.Next() {
		var f FileRecord
		if err := rows.Scan(&f.ID, &f.Name, &f.Hash, &f.SizeBytes, &f.IndexedAt, &f.Chunks); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (s *SQLiteStore) GetMeta(key string) (string, error) {
	return getMeta(s.db, key)
}

func (s *SQLiteStore) SetMeta(key, value string) error {
	return setMeta(s.db, key, value)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) collection() string {
	return filepath.Base(filepath.Dir(s.path))
}

func (s *SQLiteStore) writeErr(op string, err error) error {
	return &domain.StorageWriteError{Op: op, Path: s.path, Err: err}
}

type queryRower interface {
	QueryRow(query string, args ...any) *sql.Row
}

func getMeta(q queryRower, key string) (string, error) {
	var value string
	err := q.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func setMeta(db execer, key, value string) error {
	_, err := db.Exec(
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}
