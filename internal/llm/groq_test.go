package llm

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

func testGroqClient(serverURL string) *Client {
	c := NewClient(config.GroqConfig{
		APIKey:       "test-key",
		Model:        "llama-3.1-8b-instant",
		RateLimitRPS: 100,
	})
	c.baseURL = serverURL
	return c
}

func TestComplete(t *testing.T) {
	t.Run("sends both prompts and returns the first choice", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/chat/completions", r.URL.Path)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

			var req chatRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "llama-3.1-8b-instant", req.Model)
			assert.Zero(t, req.Temperature)
			require.Len(t, req.Messages, 2)
			assert.Equal(t, "system", req.Messages[0].Role)
			assert.Equal(t, "instructions", req.Messages[0].Content)
			assert.Equal(t, "user", req.Messages[1].Role)
			assert.Equal(t, "question with context", req.Messages[1].Content)

			w.Write([]byte(`{"choices":[{"message":{"content":"grounded answer"}}]}`))
		}))
		defer srv.Close()

		answer, err := testGroqClient(srv.URL).Complete(context.Background(), "instructions", "question with context")
		require.NoError(t, err)
		assert.Equal(t, "grounded answer", answer)
	})

	t.Run("non-200 is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "model overloaded", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, err := testGroqClient(srv.URL).Complete(context.Background(), "s", "u")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "503")
	})

	t.Run("empty choices is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{"choices":[]}`))
		}))
		defer srv.Close()

		_, err := testGroqClient(srv.URL).Complete(context.Background(), "s", "u")
		assert.Error(t, err)
	})

	t.Run("cancelled context aborts the rate limit wait", func(t *testing.T) {
		c := testGroqClient("http://127.0.0.1:1")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := c.Complete(ctx, "s", "u")
		assert.Error(t, err)
	})
}
