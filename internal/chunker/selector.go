// Package chunker splits extracted text into chunks. The Selector picks a
// policy per file: tree-sitter definitions for code it has a grammar for,
// separator tables for other code, Markdown structure for Markdown and PDF
// text, and a recursive character splitter for everything else.
package chunker

import (
	"path/filepath"
	"strings"

	"ragchat/internal/domain"
	"ragchat/internal/extract"
	"ragchat/internal/logger"
)

// Policy splits the text of one file into ordered, non-empty chunks.
type Policy interface {
	Name() string
	Chunks(text string) []domain.Chunk
}

// Selector chooses a Policy for a file path.
type Selector struct {
	ast              *ASTChunker
	chunkSize        int
	sectionChunkSize int
}

// NewSelector creates a selector. registry may be nil, in which case all
// code goes through separator tables.
func NewSelector(registry *Registry, chunkSize, sectionChunkSize int) *Selector {
	return &Selector{
		ast:              NewASTChunker(registry, chunkSize),
		chunkSize:        chunkSize,
		sectionChunkSize: sectionChunkSize,
	}
}

// For returns the chunking policy for path.
func (s *Selector) For(path string) Policy {
	source := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(path))

	switch {
	case extract.IsSourceCode(path):
		code := &splitterPolicy{name: "code", source: source, splitter: NewCodeSplitter(path, s.chunkSize)}
		if s.ast.registry.Supports(path) {
			return &astPolicy{path: path, ast: s.ast, fallback: code}
		}
		return code
	case ext == ".md":
		return &splitterPolicy{name: "markdown", source: source, splitter: NewMarkdownSplitter(s.chunkSize)}
	case ext == ".pdf":
		return &paperPolicy{
			source:    source,
			sentences: NewSentenceSplitter(s.sectionChunkSize),
			fallback:  &splitterPolicy{name: "markdown", source: source, splitter: NewMarkdownSplitter(s.chunkSize)},
		}
	}
	return &splitterPolicy{name: "text", source: source, splitter: NewRecursiveSplitter(s.chunkSize, DefaultSeparators, false)}
}

type splitterPolicy struct {
	name     string
	source   string
	position string
	splitter Splitter
}

func (p *splitterPolicy) Name() string { return p.name }

func (p *splitterPolicy) Chunks(text string) []domain.Chunk {
	return toChunks(p.splitter.Split(text), p.source, p.position)
}

type astPolicy struct {
	path     string
	ast      *ASTChunker
	fallback Policy
}

func (p *astPolicy) Name() string { return "ast" }

func (p *astPolicy) Chunks(text string) []domain.Chunk {
	chunks, err := p.ast.Chunk(p.path, []byte(text))
	if err != nil {
		logger.Debug("ast chunking failed for %s, using separators: %v", p.path, err)
	}
	if len(chunks) == 0 {
		return p.fallback.Chunks(text)
	}
	return chunks
}

type paperPolicy struct {
	source    string
	sentences *SentenceSplitter
	fallback  Policy
}

func (p *paperPolicy) Name() string { return "paper" }

func (p *paperPolicy) Chunks(text string) []domain.Chunk {
	paper, ok := ParsePaper(text)
	if !ok {
		return p.fallback.Chunks(text)
	}
	chunks := toChunks(p.sentences.Split(paper.Title), p.source, "title")
	chunks = append(chunks, toChunks(p.sentences.Split(paper.Abstract), p.source, "abstract")...)
	for _, sec := range paper.Sections {
		chunks = append(chunks, toChunks(p.sentences.Split(sec.Heading+"\n"+sec.Body), p.source, "section")...)
	}
	return chunks
}

func toChunks(pieces []string, source, position string) []domain.Chunk {
	chunks := make([]domain.Chunk, 0, len(pieces))
	for _, piece := range pieces {
		chunks = append(chunks, domain.Chunk{Content: piece, SourceFile: source, Position: position})
	}
	return chunks
}
