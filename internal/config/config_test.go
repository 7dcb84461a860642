package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, 2048, cfg.RAG.ChunkSize)
	assert.Equal(t, 5, cfg.RAG.NumDocs)
	assert.Equal(t, "bge-m3", cfg.Embedding.DefaultModel)
	assert.Equal(t, PublicDeleteAny, cfg.Collections.PublicDelete)
	assert.Empty(t, cfg.Reranker.URL)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ragchat.toml")
	content := `
data_dir = "/srv/rag"

[rag]
chunk_size = 512
section_chunk_size = 256
num_docs = 3
max_inline_tokens = 1000

[reranker]
url = "http://localhost:8012"

[collections]
public_delete = "admin"
admins = ["root"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/rag", cfg.DataDir)
	assert.Equal(t, 512, cfg.RAG.ChunkSize)
	assert.Equal(t, 3, cfg.RAG.NumDocs)
	assert.Equal(t, "http://localhost:8012", cfg.Reranker.URL)
	assert.Equal(t, 60*time.Second, cfg.RerankerTimeout())
	assert.Equal(t, "http://localhost:11434", cfg.Embedding.URL)
	assert.True(t, cfg.IsAdmin("root"))
	assert.False(t, cfg.IsAdmin("alice"))
	assert.Equal(t, filepath.Join("/srv/rag", "sessions.db"), cfg.SessionPath())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RAGCHAT_DATA_DIR", "/tmp/elsewhere")
	t.Setenv("RAGCHAT_USER", "alice")
	t.Setenv("RAGCHAT_LLAMA_API", "http://gpu:8080")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/tmp/elsewhere", cfg.DataDir)
	assert.Equal(t, "alice", cfg.User)
	assert.Equal(t, "http://gpu:8080", cfg.Inference.URL)
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir = [unterminated"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"empty data dir", func(c *Config) { c.DataDir = "" }, true},
		{"zero chunk size", func(c *Config) { c.RAG.ChunkSize = 0 }, true},
		{"negative num docs", func(c *Config) { c.RAG.NumDocs = -1 }, true},
		{"zero token budget", func(c *Config) { c.RAG.MaxInlineTokens = 0 }, true},
		{"unknown delete policy", func(c *Config) { c.Collections.PublicDelete = "nobody" }, true},
		{"owner delete policy", func(c *Config) { c.Collections.PublicDelete = PublicDeleteOwner }, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if tc.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Default()
	cfg.User = "bob"
	cfg.RAG.NumDocs = 8

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "bob", loaded.User)
	assert.Equal(t, 8, loaded.RAG.NumDocs)
}
