package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Splitter turns text into ordered, non-empty pieces.
type Splitter interface {
	Split(text string) []string
}

type separator struct {
	// re is nil for the empty separator, which splits into characters.
	re *regexp.Regexp
}

// split cuts text before every separator match so each separator stays at
// the start of the piece that follows it.
func (s separator) split(text string) []string {
	var out []string
	if s.re == nil {
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}
	start := 0
	for _, loc := range s.re.FindAllStringIndex(text, -1) {
		if loc[0] == loc[1] || loc[0] == start {
			continue
		}
		out = append(out, text[start:loc[0]])
		start = loc[0]
	}
	out = append(out, text[start:])

	pieces := out[:0]
	for _, p := range out {
		if p != "" {
			pieces = append(pieces, p)
		}
	}
	return pieces
}

// RecursiveSplitter splits text on the first separator that occurs in it,
// merges neighbouring pieces up to the chunk size and recurses into pieces
// that are still too large with the remaining separators. Lengths are
// counted in characters. Pieces never overlap.
type RecursiveSplitter struct {
	separators []separator
	chunkSize  int
}

// DefaultSeparators are used for text with no known structure.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// NewRecursiveSplitter creates a splitter. Separators are literal strings
// unless isRegex is set. An empty separator splits into characters.
func NewRecursiveSplitter(chunkSize int, separators []string, isRegex bool) *RecursiveSplitter {
	if len(separators) == 0 {
		separators = DefaultSeparators
	}
	seps := make([]separator, 0, len(separators))
	for _, s := range separators {
		if s == "" {
			seps = append(seps, separator{})
			continue
		}
		pattern := s
		if !isRegex {
			pattern = regexp.QuoteMeta(s)
		}
		seps = append(seps, separator{re: regexp.MustCompile(pattern)})
	}
	return &RecursiveSplitter{separators: seps, chunkSize: chunkSize}
}

// NewMarkdownSplitter splits on headings first, then fences and rules, then
// paragraphs.
func NewMarkdownSplitter(chunkSize int) *RecursiveSplitter {
	return NewRecursiveSplitter(chunkSize, MarkdownSeparators, true)
}

// ChunkSize returns the configured maximum piece length in characters.
func (s *RecursiveSplitter) ChunkSize() int { return s.chunkSize }

// Split returns the trimmed, non-empty pieces of text in source order.
func (s *RecursiveSplitter) Split(text string) []string {
	var out []string
	for _, p := range s.split(text, s.separators) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (s *RecursiveSplitter) split(text string, seps []separator) []string {
	sep := seps[len(seps)-1]
	var rest []separator
	for i, c := range seps {
		if c.re == nil {
			sep = c
			break
		}
		if c.re.MatchString(text) {
			sep = c
			rest = seps[i+1:]
			break
		}
	}

	var final, good []string
	for _, piece := range sep.split(text) {
		if runeLen(piece) < s.chunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			final = append(final, s.merge(good)...)
			good = nil
		}
		if len(rest) == 0 {
			final = append(final, piece)
		} else {
			final = append(final, s.split(piece, rest)...)
		}
	}
	if len(good) > 0 {
		final = append(final, s.merge(good)...)
	}
	return final
}

func (s *RecursiveSplitter) merge(pieces []string) []string {
	var docs, current []string
	total := 0
	flush := func() {
		if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
			docs = append(docs, doc)
		}
		current = nil
		total = 0
	}
	for _, p := range pieces {
		n := runeLen(p)
		if total+n > s.chunkSize && len(current) > 0 {
			flush()
		}
		current = append(current, p)
		total += n
	}
	flush()
	return docs
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
