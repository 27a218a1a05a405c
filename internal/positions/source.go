// Package positions reads a wallet's yield positions and idle stablecoin
// balances.
package positions

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/web3-frozen/stable-yield/internal/protocol"
	"github.com/web3-frozen/stable-yield/internal/yield"
)

// Source provides a wallet's positions and idle balances.
type Source interface {
	FetchPositions(ctx context.Context, address string) ([]yield.Position, error)
	FetchBalances(ctx context.Context, address string) ([]yield.Balance, error)
}

// HTTPSource talks to a unified-balance provider over JSON.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

func NewHTTPSource(baseURL string) *HTTPSource {
	return &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *HTTPSource) FetchPositions(ctx context.Context, address string) ([]yield.Position, error) {
	var out []yield.Position
	if err := s.get(ctx, address, "positions", &out); err != nil {
		return nil, yield.NewSourceError("position provider", err)
	}
	return out, nil
}

// FetchBalances returns supported stablecoin balances only.
func (s *HTTPSource) FetchBalances(ctx context.Context, address string) ([]yield.Balance, error) {
	var all []yield.Balance
	if err := s.get(ctx, address, "balances", &all); err != nil {
		return nil, yield.NewSourceError("balance provider", err)
	}
	out := make([]yield.Balance, 0, len(all))
	for _, b := range all {
		if isStablecoin(b.Token) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *HTTPSource) get(ctx context.Context, address, resource string, dst any) error {
	u := fmt.Sprintf("%s/v1/wallets/%s/%s", s.baseURL, url.PathEscape(address), resource)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", resource, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s status %d", resource, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", resource, err)
	}
	return nil
}

func isStablecoin(t yield.Token) bool {
	for _, s := range protocol.Stablecoins() {
		if s == t {
			return true
		}
	}
	return false
}

// IdleBalance sums the USD value of idle balances as a 2dp string.
// Unparseable values count as zero.
func IdleBalance(balances []yield.Balance) string {
	values := make([]string, 0, len(balances))
	for _, b := range balances {
		values = append(values, b.TotalValueUSD)
	}
	return yield.SumMoney(values...).StringFixed(2)
}
