package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeOpenAI serves /v1/embeddings, returning [len(input), index, 0] per text.
func fakeOpenAI(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		type item struct {
			Object    string    `json:"object"`
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]item, len(req.Input))
		for i, in := range req.Input {
			data[i] = item{Object: "embedding", Embedding: []float32{float32(len(in)), float32(i), 0}, Index: i}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewProvider(t *testing.T) {
	srv := fakeOpenAI(t, http.StatusOK)

	tests := []struct {
		name    string
		cfg     ProviderConfig
		wantErr bool
	}{
		{"openai", ProviderConfig{Provider: "openai", BaseURL: srv.URL + "/v1", Model: "bge", Dimension: 3}, false},
		{"default is openai", ProviderConfig{BaseURL: srv.URL + "/v1", Model: "bge", Dimension: 3}, false},
		{"openai without base url", ProviderConfig{Provider: "openai", Model: "bge", Dimension: 3}, true},
		{"openai without dimension", ProviderConfig{Provider: "openai", BaseURL: srv.URL, Model: "bge"}, true},
		{"unknown provider", ProviderConfig{Provider: "word2vec"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.cfg, zap.NewNop())
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			defer p.Close()
			assert.Equal(t, 3, p.Dimension())
		})
	}
}

func TestOpenAIProvider_EmbedDocuments(t *testing.T) {
	srv := fakeOpenAI(t, http.StatusOK)
	p, err := NewProvider(ProviderConfig{BaseURL: srv.URL + "/v1", Model: "bge", Dimension: 3}, nil)
	require.NoError(t, err)

	vectors, err := p.EmbedDocuments(context.Background(), []string{"a", "bbb"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{1, 0, 0}, vectors[0])
	assert.Equal(t, []float32{3, 1, 0}, vectors[1])

	_, err = p.EmbedDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestOpenAIProvider_ServerError(t *testing.T) {
	srv := fakeOpenAI(t, http.StatusInternalServerError)
	p, err := NewOpenAIProvider(OpenAIConfig{BaseURL: srv.URL + "/v1", Model: "bge", Dimension: 3})
	require.NoError(t, err)

	_, err = p.EmbedDocuments(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, ErrEmbeddingFailed)

	_, err = p.EmbedQuery(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyInput)
}
