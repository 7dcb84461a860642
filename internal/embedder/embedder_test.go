package embedder

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func TestOllamaEmbedder_Embed(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "/api/embed", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "bge-m3", req.Model)

		resp := embedResponse{}
		for i := range req.Input {
			resp.Embeddings = append(resp.Embeddings, []float32{3, 4, float32(i)})
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "bge-m3", time.Second)
	assert.Equal(t, "bge-m3", e.Model())

	texts := make([]string, batchSize+3)
	for i := range texts {
		texts[i] = "text"
	}
	vecs, err := e.Embed(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, len(texts))
	assert.Equal(t, int32(2), requests.Load())

	for _, v := range vecs {
		assert.InDelta(t, 1.0, norm(v), 1e-6)
	}
	assert.InDelta(t, 0.6, vecs[0][0], 1e-6)
	assert.InDelta(t, 0.8, vecs[0][1], 1e-6)
}

func TestOllamaEmbedder_Empty(t *testing.T) {
	e := NewOllamaEmbedder("http://127.0.0.1:1", "m", time.Second)
	vecs, err := e.Embed(context.Background(), nil)
	assert.NoError(t, err)
	assert.Nil(t, vecs)
}

func TestOllamaEmbedder_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		message string
	}{
		{
			name: "status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "model not found", http.StatusNotFound)
			},
			message: "ollama embed returned 404",
		},
		{
			name: "count",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_ = json.NewEncoder(w).Encode(embedResponse{})
			},
			message: "expected 1 embeddings, got 0",
		},
		{
			name: "body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("not json"))
			},
			message: "decode embed response",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			_, err := EmbedSingle(context.Background(), NewOllamaEmbedder(srv.URL, "m", time.Second), "q")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.message)
		})
	}
}

func TestOllamaEmbedder_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	_, err := NewOllamaEmbedder(srv.URL, "m", 50*time.Millisecond).Embed(context.Background(), []string{"q"})
	assert.Error(t, err)
}

func TestRegistry_ReusesEmbedders(t *testing.T) {
	created := 0
	r := NewRegistry(func(model string) Embedder {
		created++
		return NewOllamaEmbedder("http://unused", model, time.Second)
	})

	a := r.Get("bge-m3")
	b := r.Get("bge-m3")
	c := r.Get("nomic-embed-text")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, "nomic-embed-text", c.Model())
	assert.Equal(t, 2, created)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, []float32{0, 0}, Normalize([]float32{0, 0}))
	v := Normalize([]float32{0, 5})
	assert.InDelta(t, 1.0, v[1], 1e-6)
}

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[{"name":"bge-m3:latest","size":1200000000},{"name":"llama3","size":4700000000}]}`))
	}))
	defer srv.Close()

	models, err := ListModels(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "bge-m3:latest", models[0].Name)
	assert.Equal(t, int64(4700000000), models[1].Size)
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "1.5 GB", FormatSize(1536*1024*1024))
	assert.Equal(t, "512 MB", FormatSize(512*1024*1024))
}
