package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	cause := errors.New("disk full")

	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"unsupported", &UnsupportedContentError{Path: "a.db", Reason: "sqlite"}, ErrUnsupportedContent},
		{"extraction", &ExtractionError{Path: "a.pdf", Err: cause}, ErrExtractionFailed},
		{"storage", &StorageWriteError{Op: "write", Path: "x", Err: cause}, ErrStorageWrite},
		{"mismatch", &ModelMismatchError{Collection: "c", Want: "a", Got: "b"}, ErrEmbeddingModelMismatch},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tc.err)
			assert.ErrorIs(t, wrapped, tc.sentinel)
		})
	}
}

func TestWrappingErrorsExposeCause(t *testing.T) {
	cause := errors.New("boom")

	assert.ErrorIs(t, &ExtractionError{Path: "a", Err: cause}, cause)
	assert.ErrorIs(t, &StorageWriteError{Op: "op", Path: "p", Err: cause}, cause)
}

func TestErrorMessages(t *testing.T) {
	err := &ModelMismatchError{Collection: "abc", Want: "bge-m3", Got: "nomic-embed-text"}
	assert.Equal(t, `collection abc is bound to embedding model "bge-m3", got "nomic-embed-text"`, err.Error())

	unsupported := &UnsupportedContentError{Reason: "Unknown file type application/octet-stream."}
	assert.Equal(t, "Unknown file type application/octet-stream.", unsupported.Error())
}

func TestChunkMetadata(t *testing.T) {
	c := Chunk{Content: "x", SourceFile: "a.txt"}
	assert.Equal(t, map[string]string{"source_file": "a.txt"}, c.Metadata())

	c.Position = "abstract"
	assert.Equal(t, "abstract", c.Metadata()["position"])
}
