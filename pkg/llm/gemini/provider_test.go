package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"law-of-the-land-be/pkg/llm"

	"github.com/stretchr/testify/assert"
)

func TestGeminiChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.0-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		var req geminiRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Contents, 2)
		assert.Equal(t, "user", req.Contents[0].Role)
		assert.Equal(t, "model", req.Contents[1].Role) // assistant mapped
		assert.NotNil(t, req.SystemInstruction)
		assert.Equal(t, "be brief", req.SystemInstruction.Parts[0].Text)
		assert.NotNil(t, req.GenerationConfig)
		assert.Equal(t, 0.2, req.GenerationConfig.Temperature)
		assert.Equal(t, 8192, req.GenerationConfig.MaxOutputTokens)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Per "},{"text":"Article 1."}],"role":"model"}}]}`))
	}))
	defer srv.Close()

	provider := NewGeminiProvider("test-key", "gemini-2.0-flash")
	provider.BaseURL = srv.URL

	reply, err := provider.Chat(
		context.Background(),
		[]llm.Message{
			{Role: "user", Content: "q"},
			{Role: "assistant", Content: "a"},
		},
		llm.WithSystemInstruction("be brief"),
		llm.WithTemperature(0.2),
		llm.WithMaxTokens(8192),
	)

	assert.NoError(t, err)
	assert.Equal(t, "Per Article 1.", reply)
}

func TestGeminiChatStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.0-flash:streamGenerateContent", r.URL.Path)
		assert.Equal(t, "sse", r.URL.Query().Get("alt"))

		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"Per \"}]}}]}\n\n"))
		w.Write([]byte("data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"Article 1.\"}]}}]}\n\n"))
	}))
	defer srv.Close()

	provider := NewGeminiProvider("test-key", "gemini-2.0-flash")
	provider.BaseURL = srv.URL

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

func TestGeminiChatErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"message":"API key not valid"}}`))
	}))
	defer srv.Close()

	provider := NewGeminiProvider("bad-key", "gemini-2.0-flash")
	provider.BaseURL = srv.URL

	_, err := provider.Chat(context.Background(), []llm.Message{{Role: "user", Content: "q"}})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
