package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/web3-frozen/stable-yield/internal/yield"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func rpcServer(t *testing.T, result string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result})
	}))
}

func TestRPCClientGasPrice(t *testing.T) {
	srv := rpcServer(t, "0x3b9aca00")
	defer srv.Close()

	got, err := NewRPCClient(srv.URL).GasPrice(context.Background())
	if err != nil {
		t.Fatalf("GasPrice: %v", err)
	}
	if got.Cmp(big.NewInt(1_000_000_000)) != 0 {
		t.Errorf("GasPrice = %s, want 1000000000", got)
	}
}

func TestRPCClientFallsBackToSecondURL(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()
	up := rpcServer(t, "0x64")
	defer up.Close()

	got, err := NewRPCClient(down.URL, up.URL).GasPrice(context.Background())
	if err != nil {
		t.Fatalf("GasPrice: %v", err)
	}
	if got.Int64() != 100 {
		t.Errorf("GasPrice = %s, want 100", got)
	}
}

func TestRPCClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"boom"}}`))
	}))
	defer srv.Close()

	if _, err := NewRPCClient(srv.URL).GasPrice(context.Background()); err == nil {
		t.Fatal("expected rpc error")
	}
	if _, err := NewRPCClient().GasPrice(context.Background()); err == nil {
		t.Fatal("expected error with no endpoints")
	}
}

func TestPriceClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("ids") != "ethereum" {
			t.Errorf("ids = %q", r.URL.Query().Get("ids"))
		}
		_, _ = w.Write([]byte(`{"ethereum":{"usd":2500.5}}`))
	}))
	defer srv.Close()

	got, err := NewPriceClient(srv.URL).NativePriceUSD(context.Background())
	if err != nil {
		t.Fatalf("NativePriceUSD: %v", err)
	}
	if got != 2500.5 {
		t.Errorf("price = %v", got)
	}
}

type fakeGas struct {
	price *big.Int
	err   error
	calls atomic.Int32
}

func (f *fakeGas) GasPrice(context.Context) (*big.Int, error) {
	f.calls.Add(1)
	return f.price, f.err
}

type fakePrice struct {
	price float64
	err   error
}

func (f fakePrice) NativePriceUSD(context.Context) (float64, error) { return f.price, f.err }

func TestQuoteAddsPriorityFee(t *testing.T) {
	gas := &fakeGas{price: big.NewInt(10_000_000_000)}
	o := New(map[yield.Chain]GasPricer{yield.Ethereum: gas}, fakePrice{price: 2000}, testLogger())

	q := o.Quote(context.Background(), yield.Ethereum)
	if got := q.GasPrice(yield.Ethereum); got.Cmp(big.NewInt(12_000_000_000)) != 0 {
		t.Errorf("gas = %s, want 12 gwei", got)
	}
	if q.NativePrice() != 2000 {
		t.Errorf("native = %v", q.NativePrice())
	}
}

func TestQuoteFallsBackToDefaults(t *testing.T) {
	gas := &fakeGas{err: errors.New("rpc down")}
	o := New(map[yield.Chain]GasPricer{yield.Ethereum: gas}, fakePrice{err: errors.New("down")}, testLogger())

	q := o.Quote(context.Background(), yield.Ethereum, yield.Base)
	if got := q.GasPrice(yield.Ethereum); got.Cmp(yield.DefaultGasPriceWei) != 0 {
		t.Errorf("failed chain gas = %s, want default", got)
	}
	if got := q.GasPrice(yield.Base); got.Cmp(yield.DefaultGasPriceWei) != 0 {
		t.Errorf("unconfigured chain gas = %s, want default", got)
	}
	if q.NativePrice() != yield.DefaultNativePriceUSD {
		t.Errorf("native = %v, want default", q.NativePrice())
	}
}

func TestQuoteCaches(t *testing.T) {
	gas := &fakeGas{price: big.NewInt(1)}
	o := New(map[yield.Chain]GasPricer{yield.Polygon: gas}, nil, testLogger())
	now := time.Now()
	o.now = func() time.Time { return now }
	ctx := context.Background()

	o.Quote(ctx, yield.Polygon)
	o.Quote(ctx, yield.Polygon)
	if n := gas.calls.Load(); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
	now = now.Add(DefaultCacheTTL)
	o.Quote(ctx, yield.Polygon)
	if n := gas.calls.Load(); n != 2 {
		t.Errorf("calls after ttl = %d, want 2", n)
	}
}
