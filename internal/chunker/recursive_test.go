package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecursiveSplitter_MergesUpToChunkSize(t *testing.T) {
	s := NewRecursiveSplitter(10, DefaultSeparators, false)
	assert.Equal(t, []string{"aaaa bbbb", "cccc dddd"}, s.Split("aaaa bbbb cccc dddd"))
}

func TestRecursiveSplitter_FallsBackToCharacters(t *testing.T) {
	s := NewRecursiveSplitter(4, DefaultSeparators, false)
	assert.Equal(t, []string{"abcd", "efgh", "ij"}, s.Split("abcdefghij"))
}

func TestRecursiveSplitter_PrefersCoarseSeparators(t *testing.T) {
	s := NewRecursiveSplitter(30, DefaultSeparators, false)
	text := "first paragraph line one\n\nsecond paragraph here"
	assert.Equal(t, []string{"first paragraph line one", "second paragraph here"}, s.Split(text))
}

func TestRecursiveSplitter_Properties(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 200; i++ {
		b.WriteString("lorem ipsum dolor sit amet")
		if i%7 == 0 {
			b.WriteString("\n\n")
		} else {
			b.WriteString(" ")
		}
	}
	text := b.String()

	for _, size := range []int{16, 64, 300} {
		chunks := NewRecursiveSplitter(size, DefaultSeparators, false).Split(text)
		require.NotEmpty(t, chunks)
		for _, c := range chunks {
			assert.NotEmpty(t, c)
			assert.LessOrEqual(t, runeLen(c), size)
		}
		// Nothing lost, nothing duplicated, order kept.
		assert.Equal(t, strings.Fields(text), strings.Fields(strings.Join(chunks, " ")))
	}
}

func TestRecursiveSplitter_CountsCharactersNotBytes(t *testing.T) {
	s := NewRecursiveSplitter(6, DefaultSeparators, false)
	chunks := s.Split("ééééé ééééé")
	assert.Equal(t, []string{"ééééé", "ééééé"}, chunks)
}

func TestRecursiveSplitter_EmptyInput(t *testing.T) {
	s := NewRecursiveSplitter(10, DefaultSeparators, false)
	assert.Empty(t, s.Split(""))
	assert.Empty(t, s.Split("  \n\n  "))
}

func TestMarkdownSplitter_SplitsOnHeadings(t *testing.T) {
	s := NewMarkdownSplitter(20)
	text := "# Title\n\nintro\n## A\n\nbody a\n## B\n\nbody b"
	assert.Equal(t, []string{"# Title\n\nintro", "## A\n\nbody a", "## B\n\nbody b"}, s.Split(text))
}

func TestSeparatorsFor(t *testing.T) {
	assert.Equal(t, "\nfunc ", SeparatorsFor("main.go")[0])
	assert.Equal(t, "\nclass ", SeparatorsFor("app.py")[0])
	assert.Equal(t, "\nfn ", SeparatorsFor("lib.rs")[0])
	assert.Equal(t, cLikeSeparators, SeparatorsFor("prog.f"))
	assert.Equal(t, cLikeSeparators, SeparatorsFor("main.c"))
}

func TestCodeSplitter_KeepsSeparatorWithFollowingPiece(t *testing.T) {
	src := "package x\n\nfunc A() {}\n\nfunc B() {}\n"
	chunks := NewCodeSplitter("x.go", 15).Split(src)
	require.Len(t, chunks, 3)
	assert.Equal(t, "package x", chunks[0])
	assert.Equal(t, "func A() {}", chunks[1])
	assert.Equal(t, "func B() {}", chunks[2])
}
