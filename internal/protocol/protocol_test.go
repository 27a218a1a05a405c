package protocol

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/web3-frozen/stable-yield/internal/yield"
)

const recipient = "0x1111111111111111111111111111111111111111"

func TestSelector(t *testing.T) {
	tests := []struct {
		signature string
		want      string
	}{
		{"supply(address,uint256,address,uint16)", "617ba037"},
		{"withdraw(address,uint256,address)", "69328dec"},
		{"approve(address,uint256)", "095ea7b3"},
		{"transfer(address,uint256)", "a9059cbb"},
		{"balanceOf(address)", "70a08231"},
	}
	for _, tt := range tests {
		if got := hex.EncodeToString(Selector(tt.signature)); got != tt.want {
			t.Errorf("Selector(%q) = %s, want %s", tt.signature, got, tt.want)
		}
	}
}

func TestMatchProtocol(t *testing.T) {
	tests := []struct {
		project string
		want    yield.Protocol
		ok      bool
	}{
		{"aave-v3", yield.Aave, true},
		{"AAVE-V2", yield.Aave, true},
		{"compound-v3", yield.Compound, true},
		{"yearn-finance", yield.Yearn, true},
		{"curve-dex", yield.Curve, true},
		{"beefy", yield.Beefy, true},
		{"morpho-blue", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := MatchProtocol(tt.project)
		if got != tt.want || ok != tt.ok {
			t.Errorf("MatchProtocol(%q) = %q, %v, want %q, %v", tt.project, got, ok, tt.want, tt.ok)
		}
	}
}

func TestMatchStablecoin(t *testing.T) {
	tests := []struct {
		symbol string
		want   yield.Token
		ok     bool
	}{
		{"USDC", yield.USDC, true},
		{"usdc.e", yield.USDC, true},
		{"USDC-USDT", yield.USDC, true},
		{"aUSDT", yield.USDT, true},
		{"DAI", yield.DAI, true},
		{"WETH", "", false},
		{"FRAX", "", false},
	}
	for _, tt := range tests {
		got, ok := MatchStablecoin(tt.symbol)
		if got != tt.want || ok != tt.ok {
			t.Errorf("MatchStablecoin(%q) = %q, %v, want %q, %v", tt.symbol, got, ok, tt.want, tt.ok)
		}
	}
}

func TestRegistry(t *testing.T) {
	all := All()
	if len(all) != 5 {
		t.Fatalf("len(All) = %d, want 5", len(all))
	}
	for _, c := range all {
		if !c.Audited {
			t.Errorf("%s should be audited", c.Protocol)
		}
		for chain, addr := range c.Contracts {
			if !IsAddress(addr) {
				t.Errorf("%s on %s has invalid address %q", c.Protocol, chain, addr)
			}
		}
	}
	if _, ok := ContractAddress(yield.Beefy, yield.Base); ok {
		t.Error("beefy should have no base deployment")
	}
	if addr, ok := ContractAddress(yield.Aave, yield.Arbitrum); !ok || addr != "0x794a61358D6845594F94dc1DB02A252b5b4814aD" {
		t.Errorf("aave arbitrum = %q, %v", addr, ok)
	}
	if Decimals(yield.DAI) != 18 || Decimals(yield.USDC) != 6 {
		t.Error("unexpected token decimals")
	}
	for _, token := range Stablecoins() {
		for _, chain := range Chains() {
			if addr, ok := TokenAddress(token, chain); !ok || !IsAddress(addr) {
				t.Errorf("token %s on %s = %q, %v", token, chain, addr, ok)
			}
		}
	}
}

func TestAdapters(t *testing.T) {
	tests := []struct {
		protocol     yield.Protocol
		chain        yield.Chain
		depositFn    string
		withdrawFn   string
		depositWords int
		withdrawWord int
	}{
		{yield.Aave, yield.Ethereum, "supply", "withdraw", 4, 3},
		{yield.Compound, yield.Base, "supply", "withdraw", 2, 2},
		{yield.Yearn, yield.Arbitrum, "deposit", "withdraw", 2, 2},
		{yield.Beefy, yield.Polygon, "deposit", "withdraw", 2, 2},
		{yield.Curve, yield.Ethereum, "add_liquidity", "remove_liquidity", 3, 3},
	}
	for _, tt := range tests {
		t.Run(string(tt.protocol), func(t *testing.T) {
			a, err := AdapterFor(tt.protocol)
			if err != nil {
				t.Fatalf("AdapterFor: %v", err)
			}
			if a.Protocol() != tt.protocol {
				t.Errorf("Protocol() = %q, want %q", a.Protocol(), tt.protocol)
			}
			req := Request{Chain: tt.chain, Token: yield.USDC, Amount: "100.5", Recipient: recipient}

			dep, err := a.BuildDeposit(req)
			if err != nil {
				t.Fatalf("BuildDeposit: %v", err)
			}
			if dep.Function != tt.depositFn {
				t.Errorf("deposit function = %q, want %q", dep.Function, tt.depositFn)
			}
			if want := 2 + 2*(4+32*tt.depositWords); len(dep.Data) != want {
				t.Errorf("deposit calldata length = %d, want %d", len(dep.Data), want)
			}
			if dep.BaseAmount != "100500000" {
				t.Errorf("BaseAmount = %q, want 100500000", dep.BaseAmount)
			}
			if addr, _ := ContractAddress(tt.protocol, tt.chain); dep.To != addr {
				t.Errorf("To = %q, want %q", dep.To, addr)
			}

			wd, err := a.BuildWithdraw(req)
			if err != nil {
				t.Fatalf("BuildWithdraw: %v", err)
			}
			if wd.Function != tt.withdrawFn {
				t.Errorf("withdraw function = %q, want %q", wd.Function, tt.withdrawFn)
			}
			if want := 2 + 2*(4+32*tt.withdrawWord); len(wd.Data) != want {
				t.Errorf("withdraw calldata length = %d, want %d", len(wd.Data), want)
			}
		})
	}
}

func TestAaveSupplyEncoding(t *testing.T) {
	a, _ := AdapterFor(yield.Aave)
	call, err := a.BuildDeposit(Request{Chain: yield.Ethereum, Token: yield.USDC, Amount: "1", Recipient: recipient})
	if err != nil {
		t.Fatalf("BuildDeposit: %v", err)
	}
	data := strings.TrimPrefix(call.Data, "0x")
	if !strings.HasPrefix(data, "617ba037") {
		t.Errorf("selector = %s, want 617ba037", data[:8])
	}
	asset := data[8 : 8+64]
	if !strings.HasSuffix(asset, strings.ToLower("A0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")) {
		t.Errorf("asset word = %s", asset)
	}
	amount := data[8+64 : 8+128]
	if !strings.HasSuffix(amount, "0f4240") { // 1_000_000
		t.Errorf("amount word = %s", amount)
	}
}

func TestAdapterErrors(t *testing.T) {
	if _, err := AdapterFor("morpho"); !errors.Is(err, yield.ErrValidation) {
		t.Errorf("AdapterFor(morpho) err = %v, want validation error", err)
	}

	a, _ := AdapterFor(yield.Beefy)
	tests := []struct {
		name string
		req  Request
	}{
		{"undeployed chain", Request{Chain: yield.Base, Token: yield.USDC, Amount: "1", Recipient: recipient}},
		{"bad recipient", Request{Chain: yield.Polygon, Token: yield.USDC, Amount: "1", Recipient: "0x12"}},
		{"bad amount", Request{Chain: yield.Polygon, Token: yield.USDC, Amount: "abc", Recipient: recipient}},
		{"zero amount", Request{Chain: yield.Polygon, Token: yield.USDC, Amount: "0.0000001", Recipient: recipient}},
	}
	for _, tt := range tests {
		if _, err := a.BuildDeposit(tt.req); !errors.Is(err, yield.ErrValidation) {
			t.Errorf("%s: err = %v, want validation error", tt.name, err)
		}
	}
}
