package websearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTavilySearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/search", r.URL.Path)

		var req tavilySearchRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-key", req.APIKey)
		assert.Equal(t, "minimum wage 2026", req.Query)
		assert.Equal(t, 5, req.MaxResults)
		assert.Equal(t, "advanced", req.SearchDepth)
		assert.True(t, req.IncludeAnswer)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"answer":"The minimum wage rises in January 2026.","results":[]}`))
	}))
	defer srv.Close()

	client := NewTavilyClient("test-key")
	client.BaseURL = srv.URL

	answer, err := client.Search(context.Background(), "minimum wage 2026")

	assert.NoError(t, err)
	assert.Equal(t, "The minimum wage rises in January 2026.", answer)
}

func TestTavilySearchErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer srv.Close()

	client := NewTavilyClient("test-key")
	client.BaseURL = srv.URL

	_, err := client.Search(context.Background(), "q")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
