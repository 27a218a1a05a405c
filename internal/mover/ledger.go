package mover

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3-frozen/stable-yield/internal/protocol"
	"github.com/web3-frozen/stable-yield/internal/yield"
)

var (
	daysPerYear = decimal.NewFromInt(365)
	hundred     = decimal.NewFromInt(100)
	dayMillis   = decimal.NewFromInt(int64(24 * time.Hour / time.Millisecond))
)

type holding struct {
	protocol  yield.Protocol
	chain     yield.Chain
	token     yield.Token
	principal decimal.Decimal
	apy       float64
	since     time.Time
	contract  string
}

// earned is simple-interest yield accrued since the last principal change.
func (h *holding) earned(now time.Time) decimal.Decimal {
	elapsed := now.Sub(h.since).Milliseconds()
	if elapsed <= 0 {
		return decimal.Zero
	}
	days := decimal.NewFromInt(elapsed).Div(dayMillis)
	return h.principal.Mul(decimal.NewFromFloat(h.apy)).Div(hundred).Div(daysPerYear).Mul(days)
}

// Ledger tracks one wallet's idle balances per token and chain plus its
// protocol positions. Principal is kept at cent precision so a position's
// reported amount can always be withdrawn in full. It is safe for concurrent
// use.
type Ledger struct {
	mu       sync.Mutex
	balances map[yield.Token]map[yield.Chain]decimal.Decimal
	holdings map[string]*holding
	now      func() time.Time
}

func NewLedger(now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		balances: make(map[yield.Token]map[yield.Chain]decimal.Decimal),
		holdings: make(map[string]*holding),
		now:      now,
	}
}

// Credit adds idle funds.
func (l *Ledger) Credit(token yield.Token, chain yield.Chain, amount decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(token, chain, amount)
}

func (l *Ledger) credit(token yield.Token, chain yield.Chain, amount decimal.Decimal) {
	if l.balances[token] == nil {
		l.balances[token] = make(map[yield.Chain]decimal.Decimal)
	}
	l.balances[token][chain] = l.balances[token][chain].Add(amount)
}

// Open records a position without touching idle balances. since is when the
// principal was deposited.
func (l *Ledger) Open(p yield.Protocol, chain yield.Chain, token yield.Token, principal decimal.Decimal, apy float64, since time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	contract, _ := protocol.ContractAddress(p, chain)
	l.holdings[yield.PositionKey(p, chain, token)] = &holding{
		protocol: p, chain: chain, token: token,
		principal: principal.Round(2), apy: apy, since: since, contract: contract,
	}
}

// Withdraw removes amount of principal from a position and credits it, plus
// all yield accrued so far, to the idle balance on the position's chain. A
// full withdrawal closes the position.
func (l *Ledger) Withdraw(p yield.Protocol, chain yield.Chain, token yield.Token, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := yield.PositionKey(p, chain, token)
	h, ok := l.holdings[key]
	if !ok {
		return yield.NewInsufficientBalanceError(token, amount.StringFixed(2), "0.00")
	}
	if amount.GreaterThan(h.principal) {
		return yield.NewInsufficientBalanceError(token, amount.StringFixed(2), h.principal.StringFixed(2))
	}

	now := l.now()
	l.credit(token, chain, amount.Add(h.earned(now)).Round(2))
	if amount.Equal(h.principal) {
		delete(l.holdings, key)
		return nil
	}
	h.principal = h.principal.Sub(amount)
	h.since = now
	return nil
}

// Deposit moves amount of idle token from source to a position on target.
// Depositing into an existing position realizes its accrued yield into
// principal and adopts the new APY.
func (l *Ledger) Deposit(p yield.Protocol, source, target yield.Chain, token yield.Token, amount decimal.Decimal, apy float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	available := l.balances[token][source]
	if amount.GreaterThan(available) {
		return yield.NewInsufficientBalanceError(token, amount.StringFixed(2), available.StringFixed(2))
	}
	l.credit(token, source, amount.Neg())

	now := l.now()
	key := yield.PositionKey(p, target, token)
	if h, ok := l.holdings[key]; ok {
		h.principal = h.principal.Add(h.earned(now)).Add(amount).Round(2)
		h.apy = apy
		h.since = now
		return nil
	}
	contract, _ := protocol.ContractAddress(p, target)
	l.holdings[key] = &holding{
		protocol: p, chain: target, token: token,
		principal: amount, apy: apy, since: now, contract: contract,
	}
	return nil
}

// Positions returns open positions with yield accrued up to now.
func (l *Ledger) Positions() []yield.Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	out := make([]yield.Position, 0, len(l.holdings))
	for _, h := range l.holdings {
		earned := h.earned(now)
		out = append(out, yield.Position{
			Protocol:         h.protocol,
			Chain:            h.chain,
			Token:            h.token,
			DepositedAmount:  h.principal.StringFixed(2),
			CurrentValue:     h.principal.Add(earned).StringFixed(2),
			APY:              h.apy,
			EarnedYield:      earned.StringFixed(2),
			DepositTimestamp: h.since.UnixMilli(),
			ContractAddress:  h.contract,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Balances returns idle balances per token, valued 1:1 in USD.
func (l *Ledger) Balances() []yield.Balance {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []yield.Balance
	for _, token := range protocol.Stablecoins() {
		perChain := l.balances[token]
		if len(perChain) == 0 {
			continue
		}
		total := decimal.Zero
		var breakdown []yield.ChainBalance
		for _, c := range protocol.Chains() {
			amt, ok := perChain[c]
			if !ok || amt.IsZero() {
				continue
			}
			total = total.Add(amt)
			breakdown = append(breakdown, yield.ChainBalance{
				Chain:    c,
				Amount:   amt.StringFixed(2),
				ValueUSD: amt.StringFixed(2),
			})
		}
		if total.IsZero() {
			continue
		}
		out = append(out, yield.Balance{
			Token:         token,
			TotalAmount:   total.StringFixed(2),
			TotalValueUSD: total.StringFixed(2),
			Breakdown:     breakdown,
		})
	}
	return out
}

// LedgerBook holds one Ledger per wallet, creating and seeding them on first
// use.
type LedgerBook struct {
	mu      sync.Mutex
	ledgers map[string]*Ledger
	seed    func(*Ledger)
	now     func() time.Time
}

// NewLedgerBook creates a book. seed may be nil.
func NewLedgerBook(seed func(*Ledger), now func() time.Time) *LedgerBook {
	return &LedgerBook{ledgers: make(map[string]*Ledger), seed: seed, now: now}
}

func (b *LedgerBook) Ledger(address string) *Ledger {
	b.mu.Lock()
	defer b.mu.Unlock()
	if l, ok := b.ledgers[address]; ok {
		return l
	}
	l := NewLedger(b.now)
	if b.seed != nil {
		b.seed(l)
	}
	b.ledgers[address] = l
	return l
}

// DemoSeed funds a wallet with idle stablecoins and two positions aged 30
// days.
func DemoSeed(l *Ledger) {
	l.Credit(yield.USDC, yield.Ethereum, decimal.NewFromInt(12_500))
	l.Credit(yield.USDT, yield.Polygon, decimal.NewFromInt(5_000))
	l.Credit(yield.DAI, yield.Arbitrum, decimal.NewFromInt(2_500))

	since := l.now().Add(-30 * 24 * time.Hour)
	l.Open(yield.Aave, yield.Ethereum, yield.USDC, decimal.NewFromInt(10_000), 3.2, since)
	l.Open(yield.Compound, yield.Polygon, yield.USDT, decimal.NewFromInt(4_000), 2.8, since)
}
