package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors. Typed errors below wrap or match these so callers can
// branch with errors.Is.
var (
	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedContent indicates a file type that cannot be turned into text.
	ErrUnsupportedContent = errors.New("unsupported content")

	// ErrExtractionFailed indicates the parser for a supported type failed.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrCollectionNotFound indicates no metadata record exists for a hashed name.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrEmbeddingModelMismatch indicates an attempt to write vectors from a
	// different embedding model than the collection was created with.
	ErrEmbeddingModelMismatch = errors.New("embedding model mismatch")

	// ErrRerankerUnavailable indicates no reranking backend could score passages.
	// It is logged, never returned to users.
	ErrRerankerUnavailable = errors.New("reranker unavailable")

	// ErrStorageWrite indicates a disk or database write failed.
	ErrStorageWrite = errors.New("storage write failed")

	// ErrPermissionDenied indicates the caller may not perform the operation.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrContextTooLarge indicates inline context exceeds the token budget.
	ErrContextTooLarge = errors.New("inline context exceeds token budget")
)

// UnsupportedContentError is returned for files that are recognised but not
// supported (SQLite, archives) or not recognised at all.
type UnsupportedContentError struct {
	Path     string
	MIMEType string
	Reason   string
}

func (e *UnsupportedContentError) Error() string {
	return e.Reason
}

// Is reports whether target is ErrUnsupportedContent.
func (e *UnsupportedContentError) Is(target error) bool {
	return target == ErrUnsupportedContent
}

// ExtractionError wraps a parser failure for a single file.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Is reports whether target is ErrExtractionFailed.
func (e *ExtractionError) Is(target error) bool {
	return target == ErrExtractionFailed
}

// StorageWriteError wraps a failed write of index data or metadata.
type StorageWriteError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageWriteError) Unwrap() error { return e.Err }

// Is reports whether target is ErrStorageWrite.
func (e *StorageWriteError) Is(target error) bool {
	return target == ErrStorageWrite
}

// ModelMismatchError reports the model a collection is bound to and the one
// that was offered.
type ModelMismatchError struct {
	Collection string
	Want       string
	Got        string
}

func (e *ModelMismatchError) Error() string {
	return fmt.Sprintf("collection %s is bound to embedding model %q, got %q", e.Collection, e.Want, e.Got)
}

// Is reports whether target is ErrEmbeddingModelMismatch.
func (e *ModelMismatchError) Is(target error) bool {
	return target == ErrEmbeddingModelMismatch
}
