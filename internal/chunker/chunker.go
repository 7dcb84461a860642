package chunker

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"ragchat/internal/domain"
)

// ASTChunker parses source files using tree-sitter and splits them along
// top-level definitions.
type ASTChunker struct {
	registry  *Registry
	chunkSize int
}

// NewASTChunker creates a chunker backed by the given registry.
func NewASTChunker(r *Registry, chunkSize int) *ASTChunker {
	return &ASTChunker{registry: r, chunkSize: chunkSize}
}

// Chunk parses the source and returns one chunk per top-level definition, in
// source order. Text between definitions (comments, imports) is attached to
// the following definition when both fit in one chunk, otherwise it becomes
// a chunk of its own. Oversized pieces are re-split with the language's
// separators. If no grammar is registered for the file or the query matches
// nothing, it returns nil (caller should use fallback).
func (c *ASTChunker) Chunk(path string, src []byte) ([]domain.Chunk, error) {
	g := c.registry.Grammar(path)
	if g == nil {
		return nil, nil
	}

	parser := sitter.NewParser()
	parser.SetLanguage(g.Language)
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	defer tree.Close()

	q, err := sitter.NewQuery([]byte(g.Query), g.Language)
	if err != nil {
		return nil, fmt.Errorf("compile query for %s: %w", g.Name, err)
	}
	defer q.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, tree.RootNode())

	var captures []capture
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		var chunkNode *sitter.Node
		var nameStr string
		for _, cap := range m.Captures {
			switch q.CaptureNameForId(cap.Index) {
			case "chunk":
				chunkNode = cap.Node
			case "name":
				nameStr = cap.Node.Content(src)
			}
		}
		if chunkNode == nil {
			continue
		}
		captures = append(captures, capture{
			name:      nameStr,
			kind:      chunkNode.Type(),
			startByte: chunkNode.StartByte(),
			endByte:   chunkNode.EndByte(),
		})
	}

	// When captures overlap, keep only the outer (larger) node.
	captures = dedup(captures)
	if len(captures) == 0 {
		return nil, nil
	}

	b := &chunkBuilder{
		source:    filepath.Base(path),
		chunkSize: c.chunkSize,
		fallback:  NewCodeSplitter(path, c.chunkSize),
	}
	var prev uint32
	for _, cap := range captures {
		gap := string(src[prev:cap.startByte])
		body := string(src[cap.startByte:cap.endByte])
		if strings.TrimSpace(gap) == "" {
			gap = ""
		} else if runeLen(gap)+runeLen(body) > c.chunkSize {
			b.add(gap, "")
			gap = ""
		}
		b.add(gap+body, cap.position())
		prev = cap.endByte
	}
	b.add(string(src[prev:]), "")
	return b.chunks, nil
}

type chunkBuilder struct {
	source    string
	chunkSize int
	fallback  *RecursiveSplitter
	chunks    []domain.Chunk
}

func (b *chunkBuilder) add(content, position string) {
	content = strings.TrimSpace(content)
	if content == "" {
		return
	}
	if runeLen(content) <= b.chunkSize {
		b.chunks = append(b.chunks, domain.Chunk{Content: content, SourceFile: b.source, Position: position})
		return
	}
	for _, part := range b.fallback.Split(content) {
		b.chunks = append(b.chunks, domain.Chunk{Content: part, SourceFile: b.source, Position: position})
	}
}

// dedup removes captures that are fully contained within a larger capture.
func dedup(caps []capture) []capture {
	if len(caps) <= 1 {
		return caps
	}
	// Sort by start byte ascending, then by size descending (larger first).
	sort.SliceStable(caps, func(i, j int) bool {
		if caps[i].startByte != caps[j].startByte {
			return caps[i].startByte < caps[j].startByte
		}
		return (caps[i].endByte - caps[i].startByte) > (caps[j].endByte - caps[j].startByte)
	})

	result := caps[:1]
	lastEnd := caps[0].endByte
	for _, c := range caps[1:] {
		if c.startByte < lastEnd {
			continue
		}
		result = append(result, c)
		lastEnd = c.endByte
	}
	return result
}

type capture struct {
	name      string
	kind      string
	startByte uint32
	endByte   uint32
}

func (c capture) position() string {
	if c.name == "" {
		return c.kind
	}
	return c.kind + ":" + c.name
}
