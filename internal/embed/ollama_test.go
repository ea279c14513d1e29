package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ollamaServer answers /api/embed with [len(text), 0] per input and
// /api/tags with the given models. The first failFirst embed calls get a 503.
func ollamaServer(t *testing.T, failFirst int32, models ...string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n <= failFirst {
			http.Error(w, "loading model", http.StatusServiceUnavailable)
			return
		}
		var req struct {
			Model string `json:"model"`
			Input any    `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var inputs []string
		switch v := req.Input.(type) {
		case string:
			inputs = []string{v}
		case []any:
			for _, s := range v {
				inputs = append(inputs, s.(string))
			}
		}
		resp := ollamaEmbedResponse{Model: req.Model}
		for _, in := range inputs {
			resp.Embeddings = append(resp.Embeddings, []float64{float64(len(in)), 0})
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, _ *http.Request) {
		var tags ollamaTagsResponse
		for _, m := range models {
			tags.Models = append(tags.Models, struct {
				Name string `json:"name"`
			}{Name: m})
		}
		_ = json.NewEncoder(w).Encode(tags)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestOllamaEmbedder_EmbedBatch_NormalizedInOrder(t *testing.T) {
	// Given: a running server
	srv, _ := ollamaServer(t, 0)
	e := NewOllamaEmbedder(OllamaConfig{Host: srv.URL + "/", Timeout: time.Second})
	defer func() { _ = e.Close() }()

	// When: a batch is embedded
	vecs, err := e.EmbedBatch(context.Background(), []string{"ab", "abcd"})

	// Then: each vector is unit length and order is kept
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{1, 0}, vecs[0])
	assert.Equal(t, []float32{1, 0}, vecs[1])
	assert.Equal(t, 2, e.Dimensions())
	assert.Equal(t, DefaultOllamaModel, e.ModelName())
}

func TestOllamaEmbedder_Embed_RetriesOn503(t *testing.T) {
	// Given: a server that is loading the model for the first call
	srv, calls := ollamaServer(t, 1)
	e := NewOllamaEmbedder(OllamaConfig{Host: srv.URL, MaxRetries: 2, Timeout: time.Second})

	// When: a single text is embedded
	vec, err := e.Embed(context.Background(), "query")

	// Then: the retry succeeds
	require.NoError(t, err)
	assert.Len(t, vec, 2)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOllamaEmbedder_BadRequest_NotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()
	e := NewOllamaEmbedder(OllamaConfig{Host: srv.URL, MaxRetries: 3})

	_, err := e.Embed(context.Background(), "x")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Equal(t, int32(1), calls.Load())
}

func TestOllamaEmbedder_Available(t *testing.T) {
	srv, _ := ollamaServer(t, 0, "nomic-embed-text:latest", "llama3:8b")

	tests := []struct {
		model string
		want  bool
	}{
		{"nomic-embed-text", true},
		{"llama3:8b", true},
		{"mxbai-embed-large", false},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			e := NewOllamaEmbedder(OllamaConfig{Host: srv.URL, Model: tt.model})
			assert.Equal(t, tt.want, e.Available(context.Background()))
		})
	}
}

func TestOllamaEmbedder_ClosedOrUnreachable(t *testing.T) {
	e := NewOllamaEmbedder(OllamaConfig{Host: "http://127.0.0.1:1", MaxRetries: 0, Timeout: time.Second})
	assert.False(t, e.Available(context.Background()))
	_, err := e.Embed(context.Background(), "x")
	assert.Error(t, err)

	require.NoError(t, e.Close())
	_, err = e.EmbedBatch(context.Background(), []string{"x"})
	assert.ErrorContains(t, err, "closed")
}
