package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultGroundXBaseURL = "https://api.groundx.ai"

type GroundXClient struct {
	APIKey   string
	BucketID int
	BaseURL  string
	Client   *http.Client
}

var _ Retriever = &GroundXClient{}

func NewGroundXClient(apiKey string, bucketID int) *GroundXClient {
	return &GroundXClient{
		APIKey:   apiKey,
		BucketID: bucketID,
		BaseURL:  defaultGroundXBaseURL,
		Client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type groundxSearchRequest struct {
	Query string `json:"query"`
}

type groundxSearchResponse struct {
	Search struct {
		Text string `json:"text"`
	} `json:"search"`
}

func (g *GroundXClient) Search(ctx context.Context, query string) (Result, error) {
	payload := groundxSearchRequest{Query: query}
	payloadJson, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/search/%d", g.BaseURL, g.BucketID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payloadJson))
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-API-Key", g.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.Client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("groundx request failed: %w", err)
	}
	defer resp.Body.Close()

	resBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf(
			"status error, got status %d. with response body %s",
			resp.StatusCode,
			string(resBody),
		)
	}

	var searchRes groundxSearchResponse
	if err := json.Unmarshal(resBody, &searchRes); err != nil {
		return Result{}, fmt.Errorf("unmarshal response: %w", err)
	}

	return Result{Text: searchRes.Search.Text}, nil
}
