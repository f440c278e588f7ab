package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"law-of-the-land-be/pkg/llm"

	"github.com/stretchr/testify/assert"
)

func TestOllamaChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req ollamaChatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3", req.Model)
		assert.False(t, req.Stream)

		// System instruction prepended, then the history
		assert.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "be brief", req.Messages[0].Content)
		assert.Equal(t, "user", req.Messages[1].Role)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"llama3","message":{"role":"assistant","content":"hi"},"done":true}`))
	}))
	defer srv.Close()

	provider := NewOllamaProvider(srv.URL, "llama3")
	reply, err := provider.Chat(
		context.Background(),
		[]llm.Message{{Role: "user", Content: "hello"}},
		llm.WithSystemInstruction("be brief"),
	)

	assert.NoError(t, err)
	assert.Equal(t, "hi", reply)
}

func TestOllamaChatMapsModelRole(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaChatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "assistant", req.Messages[1].Role)

		w.Write([]byte(`{"message":{"role":"assistant","content":"ok"},"done":true}`))
	}))
	defer srv.Close()

	provider := NewOllamaProvider(srv.URL, "llama3")
	_, err := provider.Chat(context.Background(), []llm.Message{
		{Role: "user", Content: "q"},
		{Role: "model", Content: "a"},
	})

	assert.NoError(t, err)
}

func TestOllamaChatStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaChatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Write([]byte(`{"message":{"role":"assistant","content":"Per "},"done":false}` + "\n"))
		w.Write([]byte(`{"message":{"role":"assistant","content":"Article 1."},"done":false}` + "\n"))
		w.Write([]byte(`{"message":{"role":"assistant","content":""},"done":true}` + "\n"))
	}))
	defer srv.Close()

	provider := NewOllamaProvider(srv.URL, "llama3")
	stream, err := provider.ChatStream(context.Background(), []llm.Message{{Role: "user", Content: "q"}})
	assert.NoError(t, err)

	var deltas []string
	var done bool
	for chunk := range stream {
		assert.NoError(t, chunk.Err)
		if chunk.Delta != "" {
			deltas = append(deltas, chunk.Delta)
		}
		done = chunk.Done
	}

	assert.True(t, done)
	assert.Equal(t, []string{"Per ", "Article 1."}, deltas)
}

func TestOllamaChatStreamMissingDoneMarker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":{"role":"assistant","content":"partial"},"done":false}` + "\n"))
	}))
	defer srv.Close()

	provider := NewOllamaProvider(srv.URL, "llama3")
	stream, err := provider.ChatStream(context.Background(), []llm.Message{{Role: "user", Content: "q"}})
	assert.NoError(t, err)

	var last llm.StreamChunk
	for chunk := range stream {
		last = chunk
	}

	assert.Error(t, last.Err)
	assert.False(t, last.Done)
}

func TestOllamaChatErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"model not found"}`))
	}))
	defer srv.Close()

	provider := NewOllamaProvider(srv.URL, "missing")
	_, err := provider.Chat(context.Background(), []llm.Message{{Role: "user", Content: "q"}})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "model not found")
}
