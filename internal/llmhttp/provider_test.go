package llmhttp_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/softnix/agentic-core/internal/llmhttp"
	"github.com/softnix/agentic-core/internal/planner"
)

func TestGenerateReturnsContentAndUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"role": "assistant", "content": `{"done":true}`}}},
			"usage":   map[string]any{"prompt_tokens": 5, "completion_tokens": 7, "total_tokens": 12},
		})
	}))
	defer srv.Close()

	p := llmhttp.New(llmhttp.Config{APIKey: "test-key", BaseURL: srv.URL, Model: "test-model"})
	content, usage, err := p.Generate([]planner.Message{{Role: "user", Content: "hi"}}, "", 100)
	require.NoError(t, err)
	require.Equal(t, `{"done":true}`, content)
	require.Equal(t, 12, usage.TotalTokens)
}

func TestGenerateClassifiesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("rate limited"))
	}))
	defer srv.Close()

	p := llmhttp.New(llmhttp.Config{BaseURL: srv.URL, Model: "test-model"})
	_, _, err := p.Generate([]planner.Message{{Role: "user", Content: "hi"}}, "", 100)
	require.Error(t, err)
	require.Contains(t, err.Error(), "429")
}
