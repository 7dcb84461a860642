package retrieval

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
	"ragchat/internal/logger"
)

type fakeSearcher struct {
	passages []domain.Passage
	err      error
	gotK     int
}

func (f *fakeSearcher) SimilaritySearch(_ context.Context, _ string, k int) ([]domain.Passage, error) {
	f.gotK = k
	if f.err != nil {
		return nil, f.err
	}
	if len(f.passages) > k {
		return f.passages[:k], nil
	}
	return f.passages, nil
}

type fakeReranker struct {
	scores func(passages []string) []float64
	err    error
}

func (f *fakeReranker) Rerank(_ context.Context, _ string, passages []string) ([]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.scores(passages), nil
}

func passages(n int) []domain.Passage {
	out := make([]domain.Passage, n)
	for i := range out {
		out[i] = domain.Passage{
			Chunk: domain.Chunk{Content: fmt.Sprintf("p%d", i), SourceFile: "f.txt"},
			Score: 1 - float64(i)/100,
		}
	}
	return out
}

func contents(ps []domain.Passage) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Content
	}
	return out
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(os.Stderr) })
	return &buf
}

func TestRetrieve_WithoutRerankerIsTopK(t *testing.T) {
	logs := captureLogs(t)
	s := &fakeSearcher{passages: passages(20)}
	p := New(nil)

	got, err := p.Retrieve(context.Background(), "q", s, 5)
	require.NoError(t, err)
	assert.Equal(t, 10, s.gotK, "over-fetches twice the request")
	assert.Equal(t, []string{"p0", "p1", "p2", "p3", "p4"}, contents(got))

	_, err = p.Retrieve(context.Background(), "q", s, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(logs.String(), "[WARN]"), "degradation is logged once")
}

func TestRetrieve_RerankerReorders(t *testing.T) {
	s := &fakeSearcher{passages: passages(6)}
	// Reverse the similarity order.
	r := &fakeReranker{scores: func(ps []string) []float64 {
		out := make([]float64, len(ps))
		for i := range ps {
			out[i] = float64(i)
		}
		return out
	}}

	got, err := New(r).Retrieve(context.Background(), "q", s, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"p5", "p4", "p3"}, contents(got))
	assert.Equal(t, 5.0, got[0].Score)
}

func TestRetrieve_RerankTiesKeepSimilarityOrder(t *testing.T) {
	s := &fakeSearcher{passages: passages(4)}
	r := &fakeReranker{scores: func(ps []string) []float64 { return make([]float64, len(ps)) }}

	got, err := New(r).Retrieve(context.Background(), "q", s, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"p0", "p1"}, contents(got))
}

func TestRetrieve_RerankFailureDegrades(t *testing.T) {
	tests := []struct {
		name string
		r    *fakeReranker
	}{
		{"error", &fakeReranker{err: domain.ErrRerankerUnavailable}},
		{"short", &fakeReranker{scores: func([]string) []float64 { return []float64{1} }}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			logs := captureLogs(t)
			got, err := New(tc.r).Retrieve(context.Background(), "q", &fakeSearcher{passages: passages(8)}, 3)
			require.NoError(t, err)
			assert.Equal(t, []string{"p0", "p1", "p2"}, contents(got))
			assert.Contains(t, logs.String(), "rerank failed")
		})
	}
}

func TestRetrieve_SizeBound(t *testing.T) {
	for _, n := range []int{0, 1, 3, 7, 30} {
		for _, k := range []int{1, 2, 5} {
			got, err := New(nil).Retrieve(context.Background(), "q", &fakeSearcher{passages: passages(n)}, k)
			require.NoError(t, err)
			assert.LessOrEqual(t, len(got), k)
			assert.Equal(t, min(n, k), len(got))
		}
	}
}

func TestRetrieve_NoContext(t *testing.T) {
	got, err := New(nil).Retrieve(context.Background(), "q", nil, 5)
	assert.NoError(t, err)
	assert.Empty(t, got)

	got, err = New(nil).Retrieve(context.Background(), "q", &fakeSearcher{passages: passages(3)}, 0)
	assert.NoError(t, err)
	assert.Empty(t, got)
}

func TestRetrieve_SearchError(t *testing.T) {
	boom := errors.New("index unreadable")
	_, err := New(nil).Retrieve(context.Background(), "q", &fakeSearcher{err: boom}, 5)
	assert.ErrorIs(t, err, boom)
}

func TestRetrieve_Deterministic(t *testing.T) {
	s := &fakeSearcher{passages: passages(10)}
	p := New(nil)
	first, err := p.Retrieve(context.Background(), "q", s, 4)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := p.Retrieve(context.Background(), "q", s, 4)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
