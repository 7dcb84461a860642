package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentenceSplitter_PacksWholeSentences(t *testing.T) {
	s := NewSentenceSplitter(40)
	got := s.Split("One sentence here. Two sentence here! Three? Four.")
	assert.Equal(t, []string{"One sentence here. Two sentence here!", "Three? Four."}, got)
}

func TestSentenceSplitter_LongSentenceFallsBack(t *testing.T) {
	s := NewSentenceSplitter(20)
	long := strings.Repeat("word ", 12) + "end."
	got := s.Split("Short one. " + long)

	assert.Equal(t, "Short one.", got[0])
	for _, c := range got {
		assert.LessOrEqual(t, runeLen(c), 20)
	}
	assert.Equal(t, strings.Fields("Short one. "+long), strings.Fields(strings.Join(got, " ")))
}

func TestSentences_RoundTrip(t *testing.T) {
	text := "A (b). C \"d.\" E? F"
	assert.Equal(t, text, strings.Join(sentences(text), ""))
	assert.Len(t, sentences(text), 4)
}
