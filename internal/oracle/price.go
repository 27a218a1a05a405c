package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const DefaultPriceURL = "https://api.coingecko.com/api/v3"

// PriceClient reads the native gas token price from CoinGecko.
type PriceClient struct {
	baseURL string
	coinID  string
	client  *http.Client
}

func NewPriceClient(baseURL string) *PriceClient {
	if baseURL == "" {
		baseURL = DefaultPriceURL
	}
	return &PriceClient{
		baseURL: baseURL,
		coinID:  "ethereum",
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// NativePriceUSD returns the USD price of the native gas token.
func (c *PriceClient) NativePriceUSD(ctx context.Context) (float64, error) {
	url := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd", c.baseURL, c.coinID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch price: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("price API status %d", resp.StatusCode)
	}

	var body map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode price: %w", err)
	}
	price := body[c.coinID]["usd"]
	if price <= 0 {
		return 0, fmt.Errorf("no price for %s", c.coinID)
	}
	return price, nil
}
