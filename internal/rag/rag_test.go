package rag

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
	"ragchat/internal/llm"
	"ragchat/internal/logger"
	"ragchat/internal/retrieval"
	"ragchat/internal/session"
)

type stubSearcher struct {
	passages []domain.Passage
	err      error
}

func (s *stubSearcher) SimilaritySearch(_ context.Context, _ string, k int) ([]domain.Passage, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(s.passages) > k {
		return s.passages[:k], nil
	}
	return s.passages, nil
}

func newAssembler(t *testing.T, store session.Store) *Assembler {
	t.Helper()
	logger.SetOutput(io.Discard)
	t.Cleanup(func() { logger.SetOutput(os.Stderr) })
	return New(retrieval.New(nil), store, 2)
}

func searcher() *stubSearcher {
	return &stubSearcher{passages: []domain.Passage{
		{Chunk: domain.Chunk{Content: "  alpha body  ", SourceFile: "a.md", Position: "section:Intro"}, Score: 0.9, Collection: "papers"},
		{Chunk: domain.Chunk{Content: "beta body\n", SourceFile: "b.txt"}, Score: 0.8, Collection: "papers"},
		{Chunk: domain.Chunk{Content: "gamma body", SourceFile: "c.txt"}, Score: 0.7, Collection: "papers"},
	}}
}

func TestAssemble_RetrievalBeforeUpload(t *testing.T) {
	store := session.NewMemoryStore()
	require.NoError(t, store.Put("tok", domain.PendingUpload{Contents: "\n uploaded text \n", SourceFilename: "notes.pdf"}))
	a := newAssembler(t, store)

	got, err := a.Assemble(context.Background(), "q", "tok", searcher())
	require.NoError(t, err)

	want := "This is one piece of context:\n  alpha body  \n\nThis is one piece of context:\nbeta body\n\nuploaded text"
	assert.Equal(t, want, got.Text)
	assert.Less(t, strings.LastIndex(got.Text, "beta body"), strings.Index(got.Text, "uploaded text"))
	assert.Equal(t, "uploaded text", got.Upload)
	assert.Equal(t, got.Retrieved+"\n\n"+got.Upload, got.Text)

	require.Len(t, got.Sources, 3)
	assert.Equal(t, Source{SourceFile: "a.md", Position: "section:Intro", Collection: "papers", Score: 0.9}, got.Sources[0])
	assert.Equal(t, "b.txt", got.Sources[1].SourceFile)
	assert.Equal(t, Source{SourceFile: "notes.pdf", Upload: true}, got.Sources[2])
}

func TestAssemble_UploadConsumedOnce(t *testing.T) {
	store := session.NewMemoryStore()
	require.NoError(t, store.Put("tok", domain.PendingUpload{Contents: "uploaded", SourceFilename: "u.txt"}))
	a := newAssembler(t, store)

	first, err := a.Assemble(context.Background(), "q", "tok", nil)
	require.NoError(t, err)
	assert.Equal(t, "uploaded", first.Text)

	second, err := a.Assemble(context.Background(), "q", "tok", nil)
	require.NoError(t, err)
	assert.True(t, second.Empty())
	assert.Empty(t, second.Sources)
}

func TestAssemble_RetrievalErrorKeepsUpload(t *testing.T) {
	store := session.NewMemoryStore()
	require.NoError(t, store.Put("tok", domain.PendingUpload{Contents: "uploaded"}))
	a := newAssembler(t, store)

	boom := errors.New("index unreadable")
	_, err := a.Assemble(context.Background(), "q", "tok", &stubSearcher{err: boom})
	require.ErrorIs(t, err, boom)

	pending, err := store.Get("tok")
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, "uploaded", pending.Contents)
}

func TestAssemble_NothingAvailable(t *testing.T) {
	a := newAssembler(t, session.NewMemoryStore())

	got, err := a.Assemble(context.Background(), "q", "", &stubSearcher{})
	require.NoError(t, err)
	assert.True(t, got.Empty())
	assert.Empty(t, got.Sources)
}

func TestAssemble_OtherTokensUntouched(t *testing.T) {
	store := session.NewMemoryStore()
	require.NoError(t, store.Put("other", domain.PendingUpload{Contents: "theirs"}))
	a := newAssembler(t, store)

	got, err := a.Assemble(context.Background(), "q", "mine", nil)
	require.NoError(t, err)
	assert.True(t, got.Empty())

	pending, err := store.Get("other")
	require.NoError(t, err)
	assert.NotNil(t, pending)
}

func TestBuildMessages(t *testing.T) {
	history := []llm.Message{
		{Role: "user", Content: "earlier"},
		{Role: "assistant", Content: "reply"},
	}

	msgs := BuildMessages(Context{Text: "ctx"}, history, "question?", "")
	require.Len(t, msgs, 6)
	assert.Equal(t, llm.Message{Role: "system", Content: DefaultSystemPrompt}, msgs[0])
	assert.Equal(t, "earlier", msgs[1].Content)
	assert.Equal(t, llm.Message{Role: "user", Content: "This is the context: ctx"}, msgs[3])
	assert.Equal(t, llm.Message{Role: "assistant", Content: "OK"}, msgs[4])
	assert.Equal(t, llm.Message{Role: "user", Content: "question?"}, msgs[5])

	msgs = BuildMessages(Context{}, nil, "question?", "be brief")
	require.Len(t, msgs, 2)
	assert.Equal(t, "be brief", msgs[0].Content)
}

func TestContextExchange_Empty(t *testing.T) {
	assert.Nil(t, ContextExchange("  \n"))
}
