package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTavilyBaseURL = "https://api.tavily.com"

// Searcher answers a query with a synthesized snippet from the live web.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

type TavilyClient struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
}

var _ Searcher = &TavilyClient{}

func NewTavilyClient(apiKey string) *TavilyClient {
	return &TavilyClient{
		APIKey:  apiKey,
		BaseURL: defaultTavilyBaseURL,
		Client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type tavilySearchRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	MaxResults    int    `json:"max_results"`
	SearchDepth   string `json:"search_depth"`
	IncludeAnswer bool   `json:"include_answer"`
}

type tavilySearchResponse struct {
	Answer string `json:"answer"`
}

func (t *TavilyClient) Search(ctx context.Context, query string) (string, error) {
	payload := tavilySearchRequest{
		APIKey:        t.APIKey,
		Query:         query,
		MaxResults:    5,
		SearchDepth:   "advanced",
		IncludeAnswer: true,
	}
	payloadJson, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", t.BaseURL+"/search", bytes.NewBuffer(payloadJson))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("tavily request failed: %w", err)
	}
	defer resp.Body.Close()

	resBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf(
			"status error, got status %d. with response body %s",
			resp.StatusCode,
			string(resBody),
		)
	}

	var searchRes tavilySearchResponse
	if err := json.Unmarshal(resBody, &searchRes); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	return searchRes.Answer, nil
}
