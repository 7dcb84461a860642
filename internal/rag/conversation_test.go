package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
	"ragchat/internal/llm"
	"ragchat/internal/session"
)

type recordingChat struct {
	reply string
	err   error
	got   [][]llm.Message
}

func (r *recordingChat) Chat(_ context.Context, msgs []llm.Message, onDelta func(string)) (string, error) {
	r.got = append(r.got, msgs)
	if r.err != nil {
		return "", r.err
	}
	if onDelta != nil {
		onDelta(r.reply)
	}
	return r.reply, nil
}

func TestConversation_UploadBecomesHistory(t *testing.T) {
	store := session.NewMemoryStore()
	require.NoError(t, store.Put("tok", domain.PendingUpload{Contents: "the upload", SourceFilename: "u.txt"}))
	chat := &recordingChat{reply: "answer one"}
	conv := NewConversation(newAssembler(t, store), store, chat, "sys")

	var streamed string
	ans, err := conv.Ask(context.Background(), "tok", "first?", nil, func(d string) { streamed += d })
	require.NoError(t, err)
	assert.Equal(t, "answer one", ans.Reply)
	assert.Equal(t, "answer one", streamed)
	require.Len(t, ans.Sources, 1)
	assert.True(t, ans.Sources[0].Upload)

	require.Len(t, chat.got[0], 4)
	assert.Equal(t, "This is the context: the upload", chat.got[0][1].Content)

	chat.reply = "answer two"
	_, err = conv.Ask(context.Background(), "tok", "second?", nil, nil)
	require.NoError(t, err)

	// system, context exchange, first turn, second question
	second := chat.got[1]
	require.Len(t, second, 6)
	assert.Equal(t, "This is the context: the upload", second[1].Content)
	assert.Equal(t, "OK", second[2].Content)
	assert.Equal(t, "first?", second[3].Content)
	assert.Equal(t, "answer one", second[4].Content)
	assert.Equal(t, "second?", second[5].Content)

	hist, err := store.History("tok")
	require.NoError(t, err)
	assert.Len(t, hist, 6)

	require.NoError(t, conv.Reset("tok"))
	hist, err = store.History("tok")
	require.NoError(t, err)
	assert.Empty(t, hist)
}

func TestConversation_GenerationFailureKeepsContext(t *testing.T) {
	store := session.NewMemoryStore()
	require.NoError(t, store.Put("tok", domain.PendingUpload{Contents: "the upload"}))
	boom := errors.New("server down")
	conv := NewConversation(newAssembler(t, store), store, &recordingChat{err: boom}, "")

	_, err := conv.Ask(context.Background(), "tok", "q", nil, nil)
	require.ErrorIs(t, err, boom)

	hist, err := store.History("tok")
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "This is the context: the upload", hist[0].Content)

	pending, err := store.Get("tok")
	require.NoError(t, err)
	assert.Nil(t, pending)
}

func TestConversation_EmptyToken(t *testing.T) {
	store := session.NewMemoryStore()
	conv := NewConversation(newAssembler(t, store), store, &recordingChat{}, "")
	_, err := conv.Ask(context.Background(), "", "q", nil, nil)
	assert.ErrorIs(t, err, session.ErrEmptyToken)
}

func TestConversation_RetrievedPassagesStayInTheirTurn(t *testing.T) {
	store := session.NewMemoryStore()
	chat := &recordingChat{reply: "ok"}
	conv := NewConversation(newAssembler(t, store), store, chat, "")
	ctx := context.Background()

	first := &stubSearcher{passages: []domain.Passage{{Chunk: domain.Chunk{Content: "first turn passage", SourceFile: "a.txt"}}}}
	_, err := conv.Ask(ctx, "tok", "one?", first, nil)
	require.NoError(t, err)
	require.Len(t, chat.got[0], 4)
	assert.Contains(t, chat.got[0][1].Content, "first turn passage")

	second := &stubSearcher{passages: []domain.Passage{{Chunk: domain.Chunk{Content: "second turn passage", SourceFile: "b.txt"}}}}
	_, err = conv.Ask(ctx, "tok", "two?", second, nil)
	require.NoError(t, err)

	// system, first question and reply, this turn's context exchange, question
	prompt := chat.got[1]
	require.Len(t, prompt, 6)
	for _, m := range prompt {
		assert.NotContains(t, m.Content, "first turn passage")
	}
	assert.Contains(t, prompt[3].Content, "second turn passage")

	hist, err := store.History("tok")
	require.NoError(t, err)
	assert.Len(t, hist, 4)
}

// sessionHistory lets brokenHistory embed session.History without the
// embedded field's name colliding with its History method.
type sessionHistory = session.History

type brokenHistory struct{ sessionHistory }

func (brokenHistory) History(string) ([]llm.Message, error) { return nil, errors.New("disk gone") }

func TestConversation_HistoryErrorKeepsUpload(t *testing.T) {
	store := session.NewMemoryStore()
	require.NoError(t, store.Put("tok", domain.PendingUpload{Contents: "the upload"}))
	conv := NewConversation(newAssembler(t, store), brokenHistory{store}, &recordingChat{}, "")

	_, err := conv.Ask(context.Background(), "tok", "q", nil, nil)
	require.Error(t, err)

	pending, err := store.Get("tok")
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, "the upload", pending.Contents)
}
