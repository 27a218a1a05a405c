package yield

import (
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"testing"
)

func TestMoney(t *testing.T) {
	tests := []struct {
		input float64
		want  string
	}{
		{0, "0.00"},
		{5, "5.00"},
		{2.5, "2.50"},
		{104.99999999999997, "105.00"},
		{82.49999999999997, "82.50"},
		{1234.567, "1234.57"},
		{-3.2, "-3.20"},
	}
	for _, tt := range tests {
		if got := Money(tt.input); got != tt.want {
			t.Errorf("Money(%v) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestParseAmount(t *testing.T) {
	if _, err := ParseAmount("12.5"); err != nil {
		t.Fatalf("ParseAmount: %v", err)
	}
	for _, bad := range []string{"", "abc", "-1"} {
		_, err := ParseAmount(bad)
		if !errors.Is(err, ErrValidation) {
			t.Errorf("ParseAmount(%q) err = %v, want validation error", bad, err)
		}
	}
}

func TestSumMoney(t *testing.T) {
	got := SumMoney("22.50", "5.25", "bogus", "0.25")
	if got.StringFixed(2) != "28.00" {
		t.Errorf("SumMoney = %s, want 28.00", got.StringFixed(2))
	}
}

func TestBaseUnits(t *testing.T) {
	tests := []struct {
		amount   string
		decimals int32
		want     string
	}{
		{"100.50", 6, "100500000"},
		{"1", 18, "1000000000000000000"},
		{"0.1234567", 6, "123456"},
	}
	for _, tt := range tests {
		got, err := ToBaseUnits(tt.amount, tt.decimals)
		if err != nil {
			t.Fatalf("ToBaseUnits(%q): %v", tt.amount, err)
		}
		if got.String() != tt.want {
			t.Errorf("ToBaseUnits(%q, %d) = %s, want %s", tt.amount, tt.decimals, got, tt.want)
		}
	}
}

func TestParseChain(t *testing.T) {
	tests := []struct {
		name string
		want Chain
		ok   bool
	}{
		{"Ethereum", Ethereum, true},
		{"arbitrum", Arbitrum, true},
		{"Base", Base, true},
		{"Arbitrum Nova", 0, false},
		{"Solana", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseChain(tt.name)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseChain(%q) = %v, %v, want %v, %v", tt.name, got, ok, tt.want, tt.ok)
		}
	}
}

func TestErrorCategories(t *testing.T) {
	insufficient := NewInsufficientBalanceError(USDC, "500", "100")
	wrapped := fmt.Errorf("execute: %w", insufficient)

	if !errors.Is(wrapped, ErrInsufficientBalance) {
		t.Error("wrapped insufficient balance error should match sentinel")
	}
	if errors.Is(wrapped, ErrExecution) {
		t.Error("insufficient balance should not match execution sentinel")
	}
	if got := StatusCode(wrapped); got != http.StatusConflict {
		t.Errorf("StatusCode = %d, want %d", got, http.StatusConflict)
	}

	exec := NewExecutionError("deposit", "0xabc", Polygon, errors.New("reverted"))
	var e *Error
	if !errors.As(fmt.Errorf("rebalance: %w", exec), &e) {
		t.Fatal("errors.As should find *Error")
	}
	if e.TxHash != "0xabc" || e.ChainID != Polygon {
		t.Errorf("tx = %q on %v, want 0xabc on polygon", e.TxHash, e.ChainID)
	}
	if got := UserMessage(exec); got != "Transaction failed: deposit failed (tx 0xabc on polygon)" {
		t.Errorf("UserMessage = %q", got)
	}

	if got := StatusCode(errors.New("boom")); got != http.StatusInternalServerError {
		t.Errorf("StatusCode(plain) = %d, want 500", got)
	}
	if got := UserMessage(errors.New("boom")); got != "internal error" {
		t.Errorf("UserMessage(plain) = %q", got)
	}
}

func TestGasQuoteDefaults(t *testing.T) {
	var q GasQuote
	if q.GasPrice(Ethereum).Cmp(DefaultGasPriceWei) != 0 {
		t.Errorf("GasPrice default = %s, want %s", q.GasPrice(Ethereum), DefaultGasPriceWei)
	}
	if q.NativePrice() != DefaultNativePriceUSD {
		t.Errorf("NativePrice default = %v", q.NativePrice())
	}

	q = GasQuote{GasPrices: map[Chain]*big.Int{Polygon: big.NewInt(30)}, NativePriceUSD: 2500}
	if q.GasPrice(Polygon).Int64() != 30 {
		t.Errorf("GasPrice(polygon) = %s, want 30", q.GasPrice(Polygon))
	}
}

func TestAllPassed(t *testing.T) {
	if AllPassed(nil) {
		t.Error("AllPassed(nil) should be false")
	}
	checks := []GuardrailCheck{{Passed: true}, {Passed: true}}
	if !AllPassed(checks) {
		t.Error("AllPassed should be true")
	}
	checks = append(checks, GuardrailCheck{Passed: false})
	if AllPassed(checks) {
		t.Error("AllPassed should be false with a failing check")
	}
}
