package chunker

import (
	"regexp"
	"strings"
)

var sentenceEnd = regexp.MustCompile(`[.!?]["')\]]*\s+`)

// SentenceSplitter packs whole sentences into pieces of at most chunkSize
// characters. A sentence longer than that is split by the fallback.
type SentenceSplitter struct {
	chunkSize int
	fallback  *RecursiveSplitter
}

// NewSentenceSplitter creates a sentence splitter.
func NewSentenceSplitter(chunkSize int) *SentenceSplitter {
	return &SentenceSplitter{
		chunkSize: chunkSize,
		fallback:  NewRecursiveSplitter(chunkSize, DefaultSeparators, false),
	}
}

// Split returns the trimmed, non-empty pieces of text in source order.
func (s *SentenceSplitter) Split(text string) []string {
	var out []string
	var b strings.Builder
	size := 0
	flush := func() {
		if piece := strings.TrimSpace(b.String()); piece != "" {
			out = append(out, piece)
		}
		b.Reset()
		size = 0
	}

	for _, sentence := range sentences(text) {
		n := runeLen(strings.TrimSpace(sentence))
		if n == 0 {
			continue
		}
		if n > s.chunkSize {
			flush()
			out = append(out, s.fallback.Split(sentence)...)
			continue
		}
		if size+runeLen(sentence) > s.chunkSize && size > 0 {
			flush()
		}
		b.WriteString(sentence)
		size += runeLen(sentence)
	}
	flush()
	return out
}

// sentences cuts text after every sentence terminator. Each sentence keeps
// its trailing whitespace so concatenation restores the input.
func sentences(text string) []string {
	var out []string
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		out = append(out, text[start:loc[1]])
		start = loc[1]
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}
