// Package yield holds the domain model shared by the catalog, the decision
// engine, the mover and the HTTP surface.
package yield

import (
	"fmt"
	"math/big"
	"strings"
)

// Protocol identifies a supported lending or vault protocol.
type Protocol string

const (
	Aave     Protocol = "aave"
	Compound Protocol = "compound"
	Yearn    Protocol = "yearn"
	Curve    Protocol = "curve"
	Beefy    Protocol = "beefy"
)

// Chain is an EVM chain id.
type Chain int64

const (
	Ethereum Chain = 1
	Optimism Chain = 10
	Polygon  Chain = 137
	Base     Chain = 8453
	Arbitrum Chain = 42161
)

var chainNames = map[Chain]string{
	Ethereum: "ethereum",
	Optimism: "optimism",
	Polygon:  "polygon",
	Base:     "base",
	Arbitrum: "arbitrum",
}

func (c Chain) String() string {
	if n, ok := chainNames[c]; ok {
		return n
	}
	return fmt.Sprintf("chain-%d", int64(c))
}

// ParseChain resolves a chain by exact (case-insensitive) name.
func ParseChain(name string) (Chain, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for c, n := range chainNames {
		if n == name {
			return c, true
		}
	}
	return 0, false
}

// Token is a supported stablecoin symbol.
type Token string

const (
	USDC Token = "USDC"
	USDT Token = "USDT"
	DAI  Token = "DAI"
)

// OpportunityMetadata carries the trust signals used by ranking.
type OpportunityMetadata struct {
	AuditStatus        bool `json:"auditStatus"`
	TimeInMarket       int  `json:"timeInMarket"`
	HistoricalExploits int  `json:"historicalExploits"`
}

// Opportunity is an immutable snapshot of a place to deposit a stablecoin.
type Opportunity struct {
	ID               string              `json:"id"`
	Protocol         Protocol            `json:"protocol"`
	Chain            Chain               `json:"chainId"`
	Token            Token               `json:"token"`
	APY              float64             `json:"apy"`
	TVL              float64             `json:"tvl"`
	RiskScore        int                 `json:"riskScore"`
	ContractAddress  string              `json:"contractAddress"`
	DepositFunction  string              `json:"depositFunction"`
	WithdrawFunction string              `json:"withdrawFunction"`
	LastUpdated      int64               `json:"lastUpdated"`
	Metadata         OpportunityMetadata `json:"metadata"`
}

// Position is a user's existing stake. Amounts are decimal strings.
type Position struct {
	Protocol         Protocol `json:"protocol"`
	Chain            Chain    `json:"chainId"`
	Token            Token    `json:"token"`
	DepositedAmount  string   `json:"depositedAmount"`
	CurrentValue     string   `json:"currentValue"`
	APY              float64  `json:"apy"`
	EarnedYield      string   `json:"earnedYield"`
	DepositTimestamp int64    `json:"depositTimestamp"`
	ContractAddress  string   `json:"contractAddress"`
}

// Key identifies a position by protocol, chain and token.
func (p Position) Key() string {
	return PositionKey(p.Protocol, p.Chain, p.Token)
}

func PositionKey(p Protocol, c Chain, t Token) string {
	return fmt.Sprintf("%s-%d-%s", p, int64(c), t)
}

// ChainBalance is one chain's share of a token balance.
type ChainBalance struct {
	Chain    Chain  `json:"chainId"`
	Amount   string `json:"amount"`
	ValueUSD string `json:"valueUsd"`
}

// Balance is an idle (undeposited) stablecoin balance aggregated across chains.
type Balance struct {
	Token         Token          `json:"token"`
	TotalAmount   string         `json:"totalAmount"`
	TotalValueUSD string         `json:"totalValueUsd"`
	Breakdown     []ChainBalance `json:"perChainBreakdown"`
}

type IntentStatus string

const (
	StatusPending   IntentStatus = "pending"
	StatusApproved  IntentStatus = "approved"
	StatusExecuting IntentStatus = "executing"
	StatusCompleted IntentStatus = "completed"
	StatusFailed    IntentStatus = "failed"
)

// Rule names a guardrail check.
type Rule string

const (
	RuleMaxSlippage           Rule = "MAX_SLIPPAGE"
	RuleGasCeiling            Rule = "GAS_CEILING"
	RuleMinAPYDelta           Rule = "MIN_APY_DELTA"
	RuleProtocolBlacklist     Rule = "PROTOCOL_BLACKLIST"
	RuleMinBreakEvenDays      Rule = "MIN_BREAKEVEN_DAYS"
	RuleMaxProtocolAllocation Rule = "MAX_PROTOCOL_ALLOCATION"
)

// GuardrailCheck is the outcome of one rule against a proposed move.
type GuardrailCheck struct {
	Rule      Rule   `json:"rule"`
	Passed    bool   `json:"passed"`
	Value     string `json:"value"`
	Threshold string `json:"threshold"`
	Message   string `json:"message"`
}

type MoveFrom struct {
	PositionID      string   `json:"positionId"`
	Chain           Chain    `json:"chainId"`
	Protocol        Protocol `json:"protocol"`
	Token           Token    `json:"token"`
	Amount          string   `json:"amount"`
	APY             float64  `json:"apy"`
	ContractAddress string   `json:"contractAddress"`
}

type MoveTo struct {
	OpportunityID   string   `json:"opportunityId"`
	Chain           Chain    `json:"chainId"`
	Protocol        Protocol `json:"protocol"`
	ExpectedAPY     float64  `json:"expectedAPY"`
	ContractAddress string   `json:"contractAddress"`
}

// CostEstimate holds USD-equivalent costs as 2dp strings. GasWei is the
// integer wei estimate compared against the gas ceiling, GasWeiUSD prices it
// at the observed native token price, and SlippagePct is the slippage rate in
// percent.
type CostEstimate struct {
	GasFee       string  `json:"gasFee"`
	BridgeFee    string  `json:"bridgeFee"`
	Slippage     string  `json:"slippage"`
	TotalCostUSD string  `json:"totalCostUSD"`
	GasWei       string  `json:"gasWei"`
	GasWeiUSD    string  `json:"gasWeiUSD"`
	SlippagePct  float64 `json:"slippagePct"`
}

// BreakEvenNever marks a move whose yield gain never repays its cost.
const BreakEvenNever = -1

type NetBenefit struct {
	YearlyGainUSD    string `json:"yearlyGainUSD"`
	NetYearlyGainUSD string `json:"netYearlyGainUSD"`
	BreakEvenDays    int    `json:"breakEvenDays"`
}

// Intent is a candidate move from a position to an opportunity. Intents are
// never mutated after synthesis; a new decision needs a new intent.
type Intent struct {
	ID               string           `json:"id"`
	From             MoveFrom         `json:"from"`
	To               MoveTo           `json:"to"`
	EstimatedCost    CostEstimate     `json:"estimatedCost"`
	NetBenefit       NetBenefit       `json:"netBenefit"`
	GuardrailsStatus []GuardrailCheck `json:"guardrailsStatus"`
	Status           IntentStatus     `json:"status"`
}

// AllPassed reports whether every guardrail check passed.
func AllPassed(checks []GuardrailCheck) bool {
	for _, c := range checks {
		if !c.Passed {
			return false
		}
	}
	return len(checks) > 0
}

// IdleSuggestion points idle balance at an opportunity. It is informational
// and never executed as an intent.
type IdleSuggestion struct {
	Opportunity        Opportunity      `json:"opportunity"`
	Amount             string           `json:"amount"`
	ProjectedYearlyUSD string           `json:"projectedYearlyUSD"`
	GuardrailsStatus   []GuardrailCheck `json:"guardrailsStatus"`
}

// Analysis is the full result of one analysis run. It replaces any prior
// analysis wholesale.
type Analysis struct {
	CurrentPositions   []Position       `json:"currentPositions"`
	Opportunities      []Opportunity    `json:"opportunities"`
	RebalanceIntents   []Intent         `json:"rebalanceIntents"`
	IdleBalance        string           `json:"idleBalance"`
	IdleSuggestions    []IdleSuggestion `json:"idleSuggestions"`
	TotalCurrentAPY    float64          `json:"totalCurrentAPY"`
	TotalProjectedAPY  float64          `json:"totalProjectedAPY"`
	TotalCostUSD       string           `json:"totalCostUSD"`
	TotalYearlyGainUSD string           `json:"totalYearlyGainUSD"`
	NetYearlyGainUSD   string           `json:"netYearlyGainUSD"`
	RecommendedActions int              `json:"recommendedActions"`
	Timestamp          int64            `json:"timestamp"`
}

// Intent returns the approved intent with the given id.
func (a Analysis) Intent(id string) (Intent, bool) {
	for _, in := range a.RebalanceIntents {
		if in.ID == id {
			return in, true
		}
	}
	return Intent{}, false
}

// DefaultGasPriceWei is used when no gas price could be observed for a chain.
var DefaultGasPriceWei = big.NewInt(50_000_000_000)

// DefaultNativePriceUSD is used when the price feed is unavailable.
const DefaultNativePriceUSD = 3000.0

// GasQuote is a point-in-time snapshot of gas prices and the native token
// price, gathered once per analysis so cost estimation stays pure.
type GasQuote struct {
	GasPrices      map[Chain]*big.Int
	NativePriceUSD float64
}

// GasPrice returns the observed gas price for c or the default.
func (q GasQuote) GasPrice(c Chain) *big.Int {
	if p, ok := q.GasPrices[c]; ok && p != nil && p.Sign() > 0 {
		return p
	}
	return DefaultGasPriceWei
}

// NativePrice returns the native token price or the default.
func (q GasQuote) NativePrice() float64 {
	if q.NativePriceUSD > 0 {
		return q.NativePriceUSD
	}
	return DefaultNativePriceUSD
}
