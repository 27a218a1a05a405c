package catalog

import (
	"fmt"
	"time"

	"github.com/web3-frozen/stable-yield/internal/protocol"
	"github.com/web3-frozen/stable-yield/internal/yield"
)

const (
	MinTVLUsd = 100_000

	// Until pool age and incident history are sourced, every pool is treated
	// as a year old with a clean record.
	defaultTimeInMarket = 365
)

// Normalize maps raw pools to opportunities, dropping pools whose protocol,
// chain, deployment or token is unsupported, and pools below the liquidity
// or yield floor.
func Normalize(pools []Pool, now time.Time) []yield.Opportunity {
	out := make([]yield.Opportunity, 0, len(pools))
	for _, p := range pools {
		o, ok := normalizePool(p, now)
		if ok {
			out = append(out, o)
		}
	}
	return out
}

func normalizePool(p Pool, now time.Time) (yield.Opportunity, bool) {
	proto, ok := protocol.MatchProtocol(p.Project)
	if !ok {
		return yield.Opportunity{}, false
	}
	chain, ok := yield.ParseChain(p.Chain)
	if !ok {
		return yield.Opportunity{}, false
	}
	contract, ok := protocol.ContractAddress(proto, chain)
	if !ok {
		return yield.Opportunity{}, false
	}
	token, ok := protocol.MatchStablecoin(p.Symbol)
	if !ok {
		return yield.Opportunity{}, false
	}
	if p.TVLUsd < MinTVLUsd || !(p.APY > 0) {
		return yield.Opportunity{}, false
	}

	cfg, _ := protocol.Lookup(proto)
	return yield.Opportunity{
		ID:               fmt.Sprintf("%s-%d-%s-%s", proto, int64(chain), p.Symbol, p.Pool),
		Protocol:         proto,
		Chain:            chain,
		Token:            token,
		APY:              p.APY,
		TVL:              p.TVLUsd,
		RiskScore:        cfg.RiskScore,
		ContractAddress:  contract,
		DepositFunction:  cfg.DepositFunction,
		WithdrawFunction: cfg.WithdrawFunction,
		LastUpdated:      now.UnixMilli(),
		Metadata: yield.OpportunityMetadata{
			AuditStatus:  cfg.Audited,
			TimeInMarket: defaultTimeInMarket,
		},
	}, true
}
