package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const DefaultYieldsURL = "https://yields.llama.fi/pools"

// Pool is one raw record from the yield index.
type Pool struct {
	Pool    string  `json:"pool"`
	Chain   string  `json:"chain"`
	Project string  `json:"project"`
	Symbol  string  `json:"symbol"`
	TVLUsd  float64 `json:"tvlUsd"`
	APY     float64 `json:"apy"`
}

type llamaResponse struct {
	Status string `json:"status"`
	Data   []Pool `json:"data"`
}

// LlamaClient fetches pools from the DefiLlama yields API.
type LlamaClient struct {
	baseURL string
	client  *http.Client
}

func NewLlamaClient(baseURL string) *LlamaClient {
	if baseURL == "" {
		baseURL = DefaultYieldsURL
	}
	return &LlamaClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// FetchPools returns every pool the index currently lists.
func (c *LlamaClient) FetchPools(ctx context.Context) ([]Pool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch pools: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("yields API status %d: %s", resp.StatusCode, string(body))
	}

	var result llamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode pools: %w", err)
	}
	if result.Status != "" && result.Status != "success" {
		return nil, fmt.Errorf("yields API status %q", result.Status)
	}
	return result.Data, nil
}
