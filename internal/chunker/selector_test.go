package chunker_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/chunker"
	"ragchat/internal/chunker/languages"
)

func TestSelector_For(t *testing.T) {
	sel := chunker.NewSelector(languages.NewRegistry(), 2048, 1024)

	tests := []struct {
		path string
		want string
	}{
		{"main.go", "ast"},
		{"pkg/app.py", "ast"},
		{"lib.rs", "ast"},
		{"Main.kt", "code"},
		{"script.lua", "code"},
		{"README.md", "markdown"},
		{"paper.pdf", "paper"},
		{"notes.txt", "text"},
		{"data.csv", "text"},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			assert.Equal(t, tc.want, sel.For(tc.path).Name())
		})
	}
}

func TestSelector_NilRegistryUsesSeparators(t *testing.T) {
	sel := chunker.NewSelector(nil, 2048, 1024)
	assert.Equal(t, "code", sel.For("main.go").Name())
}

func TestSelector_ChunksCarrySourceFile(t *testing.T) {
	sel := chunker.NewSelector(nil, 20, 20)
	chunks := sel.For("/tmp/upload/notes.txt").Chunks("alpha beta gamma delta epsilon zeta eta theta")

	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.Equal(t, "notes.txt", c.SourceFile)
		assert.NotEmpty(t, c.Content)
		assert.LessOrEqual(t, len([]rune(c.Content)), 20)
	}
}

func TestSelector_PaperPositions(t *testing.T) {
	sel := chunker.NewSelector(nil, 2048, 1024)
	text := "A Study of Things\n\n## Abstract\nWe study things.\n\n## 1 Introduction\nThings are everywhere."

	chunks := sel.For("paper.pdf").Chunks(text)
	require.Len(t, chunks, 3)
	assert.Equal(t, "title", chunks[0].Position)
	assert.Equal(t, "A Study of Things", chunks[0].Content)
	assert.Equal(t, "abstract", chunks[1].Position)
	assert.Equal(t, "We study things.", chunks[1].Content)
	assert.Equal(t, "section", chunks[2].Position)
	assert.Equal(t, "1 Introduction\nThings are everywhere.", chunks[2].Content)
}

func TestSelector_PDFWithoutAbstractUsesMarkdown(t *testing.T) {
	sel := chunker.NewSelector(nil, 2048, 1024)
	chunks := sel.For("slides.pdf").Chunks("## Intro\nHello.\n\n## Outro\nBye.")

	require.Len(t, chunks, 1)
	assert.Empty(t, chunks[0].Position)
	assert.Equal(t, "## Intro\nHello.\n\n## Outro\nBye.", chunks[0].Content)
}

const goSource = `package demo

import "fmt"

// Greet says hello.
func Greet(name string) string {
	return fmt.Sprintf("hello %s", name)
}

type Greeter struct {
	Name string
}

func (g Greeter) Hello() string {
	return Greet(g.Name)
}
`

func TestASTChunker_Go(t *testing.T) {
	c := chunker.NewASTChunker(languages.NewRegistry(), 2048)
	chunks, err := c.Chunk("src/demo.go", []byte(goSource))
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, "function_declaration:Greet", chunks[0].Position)
	assert.True(t, strings.HasPrefix(chunks[0].Content, "package demo"))
	assert.Contains(t, chunks[0].Content, "// Greet says hello.")
	assert.Equal(t, "type_declaration:Greeter", chunks[1].Position)
	assert.Equal(t, "method_declaration:Hello", chunks[2].Position)
	for _, ch := range chunks {
		assert.Equal(t, "demo.go", ch.SourceFile)
	}
}

func TestASTChunker_SmallChunkSize(t *testing.T) {
	c := chunker.NewASTChunker(languages.NewRegistry(), 60)
	chunks, err := c.Chunk("demo.go", []byte(goSource))
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	assert.Empty(t, chunks[0].Position)
	assert.True(t, strings.HasPrefix(chunks[0].Content, "package demo"))
	var joined []string
	for _, ch := range chunks {
		assert.NotEmpty(t, ch.Content)
		assert.LessOrEqual(t, len([]rune(ch.Content)), 60)
		joined = append(joined, ch.Content)
	}
	assert.Equal(t, strings.Fields(goSource), strings.Fields(strings.Join(joined, " ")))
}

const pySource = `import os


@cache
def load(path):
    return open(path).read()


class Store:
    def get(self, key):
        return key
`

func TestASTChunker_PythonKeepsOuterDefinitions(t *testing.T) {
	c := chunker.NewASTChunker(languages.NewRegistry(), 2048)
	chunks, err := c.Chunk("store.py", []byte(pySource))
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, "decorated_definition:load", chunks[0].Position)
	assert.Contains(t, chunks[0].Content, "import os")
	assert.Contains(t, chunks[0].Content, "@cache")
	assert.Equal(t, "class_definition:Store", chunks[1].Position)
	assert.Contains(t, chunks[1].Content, "def get")
}

func TestASTChunker_UnknownLanguage(t *testing.T) {
	c := chunker.NewASTChunker(languages.NewRegistry(), 2048)
	chunks, err := c.Chunk("Main.kt", []byte("fun main() {}"))
	assert.NoError(t, err)
	assert.Nil(t, chunks)
}

func TestRegistry_Grammar(t *testing.T) {
	r := languages.NewRegistry()

	g := r.Grammar("x/y/Component.TSX")
	require.NotNil(t, g)
	assert.Equal(t, "typescript", g.Name)

	require.NotNil(t, r.Grammar("a.hpp"))
	assert.Equal(t, "cpp", r.Grammar("a.hpp").Name)
	assert.Nil(t, r.Grammar("a.kt"))
	assert.Nil(t, r.Grammar("Makefile"))
	assert.True(t, r.Supports("lib.rs"))
	assert.Equal(t, []string{"c", "cpp", "go", "java", "javascript", "python", "rust", "typescript"}, r.Names())
}
