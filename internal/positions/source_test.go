package positions

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/web3-frozen/stable-yield/internal/yield"
)

func TestHTTPSourceFetchPositions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/wallets/0xabc/positions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`[{"protocol":"aave","chainId":1,"token":"USDC","depositedAmount":"1000","currentValue":"1010.50","apy":4.5}]`))
	}))
	defer srv.Close()

	got, err := NewHTTPSource(srv.URL+"/").FetchPositions(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("FetchPositions: %v", err)
	}
	if len(got) != 1 || got[0].Key() != "aave-1-USDC" || got[0].CurrentValue != "1010.50" {
		t.Fatalf("positions = %+v", got)
	}
}

func TestHTTPSourceFiltersBalances(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"token":"USDC","totalAmount":"500","totalValueUsd":"500.00"},
			{"token":"WETH","totalAmount":"1","totalValueUsd":"3000.00"},
			{"token":"DAI","totalAmount":"250.5","totalValueUsd":"250.50"}
		]`))
	}))
	defer srv.Close()

	got, err := NewHTTPSource(srv.URL).FetchBalances(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("FetchBalances: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("balances = %+v, want USDC and DAI", got)
	}
	if idle := IdleBalance(got); idle != "750.50" {
		t.Errorf("IdleBalance = %s, want 750.50", idle)
	}
}

func TestHTTPSourceErrorIsSourceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewHTTPSource(srv.URL).FetchPositions(context.Background(), "0xabc")
	if !errors.Is(err, yield.ErrDataSource) {
		t.Fatalf("err = %v, want data source error", err)
	}
}

func TestIdleBalance(t *testing.T) {
	tests := []struct {
		name     string
		balances []yield.Balance
		want     string
	}{
		{"empty", nil, "0.00"},
		{"sum", []yield.Balance{{TotalValueUSD: "1.10"}, {TotalValueUSD: "2.205"}}, "3.31"},
		{"bad value skipped", []yield.Balance{{TotalValueUSD: "x"}, {TotalValueUSD: "5"}}, "5.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IdleBalance(tt.balances); got != tt.want {
				t.Errorf("IdleBalance = %s, want %s", got, tt.want)
			}
		})
	}
}
