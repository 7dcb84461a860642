package chunker

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// Grammar ties a tree-sitter language to the query that finds its top-level
// definitions. The query captures the definition as @chunk and, optionally,
// its identifier as @name.
type Grammar struct {
	Name       string
	Language   *sitter.Language
	Query      string
	Extensions []string
}

// Registry resolves file paths to grammars by extension. It is filled once at
// startup and read concurrently by ingestion workers.
type Registry struct {
	mu    sync.RWMutex
	byExt map[string]*Grammar
	names []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byExt: make(map[string]*Grammar)}
}

// Register adds g. Extensions are matched case-insensitively and a later
// registration wins an extension.
func (r *Registry) Register(g *Grammar) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, g.Name)
	for _, ext := range g.Extensions {
		r.byExt[strings.ToLower(strings.TrimPrefix(ext, "."))] = g
	}
}

// Grammar returns the grammar for path, or nil.
func (r *Registry) Grammar(path string) *Grammar {
	if r == nil {
		return nil
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "" {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byExt[ext]
}

// Supports reports whether path has a registered grammar.
func (r *Registry) Supports(path string) bool {
	return r.Grammar(path) != nil
}

// Names returns the registered grammar names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := append([]string(nil), r.names...)
	sort.Strings(out)
	return out
}
