package embedders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dev1505/docqa/internal/config"
)

func testEmbedder(serverURL string) *GeminiEmbedder {
	e := NewGeminiEmbedder(config.GeminiConfig{
		APIKey:     "test-key",
		Model:      "text-embedding-004",
		VectorSize: 4,
	})
	e.baseURL = serverURL
	return e
}

func TestEmbed(t *testing.T) {
	t.Run("sends the embedContent request and decodes the vector", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/text-embedding-004:embedContent", r.URL.Path)
			assert.Equal(t, "test-key", r.URL.Query().Get("key"))

			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "RETRIEVAL_DOCUMENT", body["taskType"])
			assert.Equal(t, float64(4), body["outputDimensionality"])

			json.NewEncoder(w).Encode(map[string]any{
				"embedding": map[string]any{"values": []float32{0.1, 0.2, 0.3, 0.4}},
			})
		}))
		defer srv.Close()

		vector, err := testEmbedder(srv.URL).Embed(context.Background(), "some chunk text")
		require.NoError(t, err)
		assert.Equal(t, []float32{0.1, 0.2, 0.3, 0.4}, vector)
	})

	t.Run("empty text rejected before any request", func(t *testing.T) {
		_, err := testEmbedder("http://127.0.0.1:1").Embed(context.Background(), "")
		assert.Error(t, err)
	})

	t.Run("non-200 is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "quota exceeded", http.StatusTooManyRequests)
		}))
		defer srv.Close()

		_, err := testEmbedder(srv.URL).Embed(context.Background(), "text")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "429")
	})

	t.Run("empty embedding is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{"embedding":{"values":[]}}`))
		}))
		defer srv.Close()

		_, err := testEmbedder(srv.URL).Embed(context.Background(), "text")
		assert.Error(t, err)
	})
}

func TestDimension(t *testing.T) {
	e := NewGeminiEmbedder(config.GeminiConfig{VectorSize: 384})
	assert.Equal(t, 384, e.Dimension())
}
