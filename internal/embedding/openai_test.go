package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func embeddingsServer(t *testing.T, status int, vec []float32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/embeddings"))

		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"upstream exploded","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  req["model"],
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": vec},
			},
		})
	}))
}

func TestOpenAIProvider_Embed(t *testing.T) {
	srv := embeddingsServer(t, http.StatusOK, []float32{0.25, -0.5, 1})
	defer srv.Close()

	p, err := NewOpenAIProvider(OpenAIConfig{APIKey: "test", BaseURL: srv.URL + "/v1", Model: "nomic-embed-text"})
	require.NoError(t, err)

	vec, err := p.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, -0.5, 1}, vec)
	assert.Equal(t, "nomic-embed-text", p.Model())
	// Only text-embedding-3 models accept a dimension.
	assert.Equal(t, 0, p.Dimensions())
}

func TestOpenAIProvider_UpstreamError(t *testing.T) {
	srv := embeddingsServer(t, http.StatusInternalServerError, nil)
	defer srv.Close()

	p, err := NewOpenAIProvider(OpenAIConfig{APIKey: "test", BaseURL: srv.URL + "/v1", Model: "text-embedding-3-small", Dimensions: 512})
	require.NoError(t, err)
	assert.Equal(t, 512, p.Dimensions())

	_, err = p.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestTruncator(t *testing.T) {
	tr, err := NewTruncator(3)
	require.NoError(t, err)

	short, err := tr.Truncate("hi")
	require.NoError(t, err)
	assert.Equal(t, "hi", short)

	long := "the quick brown fox jumps over the lazy dog"
	cut, err := tr.Truncate(long)
	require.NoError(t, err)
	assert.NotEqual(t, long, cut)
	assert.True(t, strings.HasPrefix(long, cut))

	unlimited, err := NewTruncator(0)
	require.NoError(t, err)
	same, err := unlimited.Truncate(long)
	require.NoError(t, err)
	assert.Equal(t, long, same)
}
