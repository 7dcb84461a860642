// Package config loads ragchat settings from a TOML file, an optional .env
// file and RAGCHAT_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Public collection delete policies.
const (
	PublicDeleteAny   = "any"
	PublicDeleteOwner = "owner"
	PublicDeleteAdmin = "admin"
)

// EmbeddingConfig configures the embedding backend.
type EmbeddingConfig struct {
	URL          string `toml:"url"`
	DefaultModel string `toml:"default_model"`
	TimeoutSecs  int    `toml:"timeout_secs"`
}

// InferenceConfig configures the llama.cpp-compatible inference server.
type InferenceConfig struct {
	URL   string `toml:"url"`
	Model string `toml:"model"`
	// SystemPrompt replaces the built-in system prompt when set.
	SystemPrompt string `toml:"system_prompt"`
	TimeoutSecs  int    `toml:"timeout_secs"`
}

// RerankerConfig configures the optional reranking backend. An empty URL
// disables reranking.
type RerankerConfig struct {
	URL         string `toml:"url"`
	Model       string `toml:"model"`
	TimeoutSecs int    `toml:"timeout_secs"`
}

// RAGConfig holds chunking and retrieval sizes.
type RAGConfig struct {
	ChunkSize        int `toml:"chunk_size"`
	SectionChunkSize int `toml:"section_chunk_size"`
	NumDocs          int `toml:"num_docs"`
	MaxInlineTokens  int `toml:"max_inline_tokens"`
}

// PDFConfig configures the external PDF-to-text converter.
type PDFConfig struct {
	Command     string `toml:"command"`
	TimeoutSecs int    `toml:"timeout_secs"`
}

// CollectionsConfig holds collection permission settings.
type CollectionsConfig struct {
	PublicDelete string   `toml:"public_delete"`
	Admins       []string `toml:"admins"`
}

// SessionConfig configures pending-upload and history persistence.
type SessionConfig struct {
	Path string `toml:"path"`
}

// Config is the root configuration.
type Config struct {
	DataDir     string            `toml:"data_dir"`
	User        string            `toml:"user"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	Inference   InferenceConfig   `toml:"inference"`
	Reranker    RerankerConfig    `toml:"reranker"`
	RAG         RAGConfig         `toml:"rag"`
	PDF         PDFConfig         `toml:"pdf"`
	Collections CollectionsConfig `toml:"collections"`
	Session     SessionConfig     `toml:"session"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir: "data",
		Embedding: EmbeddingConfig{
			URL:          "http://localhost:11434",
			DefaultModel: "bge-m3",
			TimeoutSecs:  120,
		},
		Inference: InferenceConfig{
			URL:         "http://127.0.0.1:8080",
			Model:       "local",
			TimeoutSecs: 300,
		},
		Reranker: RerankerConfig{
			TimeoutSecs: 60,
		},
		RAG: RAGConfig{
			ChunkSize:        2048,
			SectionChunkSize: 1024,
			NumDocs:          5,
			MaxInlineTokens:  16384,
		},
		PDF: PDFConfig{
			Command:     "pdftotext",
			TimeoutSecs: 300,
		},
		Collections: CollectionsConfig{
			PublicDelete: PublicDeleteAny,
		},
	}
}

// Load reads the TOML file at path on top of the defaults. A missing file is
// not an error. Environment overrides are applied afterwards.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	applyDefaults(cfg)
	applyEnv(cfg)
	return cfg, cfg.Validate()
}

// LoadDefault loads .env if present, then tries ./ragchat.toml and
// ~/.config/ragchat/config.toml. It returns the path that was used, or ""
// when running on defaults.
func LoadDefault() (*Config, string, error) {
	_ = godotenv.Load()

	candidates := []string{"ragchat.toml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "ragchat", "config.toml"))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			cfg, err := Load(p)
			return cfg, p, err
		}
	}
	cfg, err := Load("")
	return cfg, "", err
}

// Save writes cfg as TOML, creating parent directories.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks values that would otherwise fail deep inside a request.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data_dir must not be empty")
	}
	if c.RAG.ChunkSize <= 0 || c.RAG.SectionChunkSize <= 0 {
		return fmt.Errorf("chunk sizes must be positive (chunk_size=%d, section_chunk_size=%d)", c.RAG.ChunkSize, c.RAG.SectionChunkSize)
	}
	if c.RAG.NumDocs <= 0 {
		return fmt.Errorf("num_docs must be positive, got %d", c.RAG.NumDocs)
	}
	if c.RAG.MaxInlineTokens <= 0 {
		return fmt.Errorf("max_inline_tokens must be positive, got %d", c.RAG.MaxInlineTokens)
	}
	switch c.Collections.PublicDelete {
	case PublicDeleteAny, PublicDeleteOwner, PublicDeleteAdmin:
	default:
		return fmt.Errorf("unknown public_delete policy %q", c.Collections.PublicDelete)
	}
	return nil
}

// SessionPath returns the bbolt file used for pending uploads and history.
func (c *Config) SessionPath() string {
	if c.Session.Path != "" {
		return c.Session.Path
	}
	return filepath.Join(c.DataDir, "sessions.db")
}

// IsAdmin reports whether user is listed in collections.admins.
func (c *Config) IsAdmin(user string) bool {
	for _, a := range c.Collections.Admins {
		if a == user {
			return true
		}
	}
	return false
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// EmbeddingTimeout returns the embedding request timeout.
func (c *Config) EmbeddingTimeout() time.Duration { return seconds(c.Embedding.TimeoutSecs) }

// InferenceTimeout returns the inference request timeout.
func (c *Config) InferenceTimeout() time.Duration { return seconds(c.Inference.TimeoutSecs) }

// RerankerTimeout returns the reranker request timeout.
func (c *Config) RerankerTimeout() time.Duration { return seconds(c.Reranker.TimeoutSecs) }

// PDFTimeout returns the PDF conversion timeout.
func (c *Config) PDFTimeout() time.Duration { return seconds(c.PDF.TimeoutSecs) }

// applyDefaults fills zero values left by a partial TOML file.
func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Embedding.URL == "" {
		cfg.Embedding.URL = def.Embedding.URL
	}
	if cfg.Embedding.DefaultModel == "" {
		cfg.Embedding.DefaultModel = def.Embedding.DefaultModel
	}
	if cfg.Embedding.TimeoutSecs == 0 {
		cfg.Embedding.TimeoutSecs = def.Embedding.TimeoutSecs
	}
	if cfg.Inference.URL == "" {
		cfg.Inference.URL = def.Inference.URL
	}
	if cfg.Inference.Model == "" {
		cfg.Inference.Model = def.Inference.Model
	}
	if cfg.Inference.TimeoutSecs == 0 {
		cfg.Inference.TimeoutSecs = def.Inference.TimeoutSecs
	}
	if cfg.Reranker.TimeoutSecs == 0 {
		cfg.Reranker.TimeoutSecs = def.Reranker.TimeoutSecs
	}
	if cfg.PDF.Command == "" {
		cfg.PDF.Command = def.PDF.Command
	}
	if cfg.PDF.TimeoutSecs == 0 {
		cfg.PDF.TimeoutSecs = def.PDF.TimeoutSecs
	}
	if cfg.Collections.PublicDelete == "" {
		cfg.Collections.PublicDelete = def.Collections.PublicDelete
	}
}

func applyEnv(cfg *Config) {
	overrides := []struct {
		key string
		dst *string
	}{
		{"RAGCHAT_DATA_DIR", &cfg.DataDir},
		{"RAGCHAT_USER", &cfg.User},
		{"RAGCHAT_OLLAMA_URL", &cfg.Embedding.URL},
		{"RAGCHAT_LLAMA_API", &cfg.Inference.URL},
		{"RAGCHAT_RERANKER_URL", &cfg.Reranker.URL},
	}
	for _, o := range overrides {
		if v, ok := os.LookupEnv(o.key); ok && v != "" {
			*o.dst = v
		}
	}
}

// StagingDir returns the directory archives are expanded into.
func (c *Config) StagingDir() string {
	return filepath.Join(c.DataDir, "staging")
}
