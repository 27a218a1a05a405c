// Package engine turns positions, opportunities and a guardrails policy into
// a ranked, filtered rebalance analysis.
package engine

import (
	"math"
	"sort"

	"github.com/web3-frozen/stable-yield/internal/yield"
)

const (
	// Liquidity confidence saturates at this TVL.
	fullConfidenceTVL = 1_000_000
	auditBonus        = 2.0
)

// Score is the risk- and liquidity-adjusted attractiveness of o.
func Score(o yield.Opportunity) float64 {
	s := o.APY * (1 - float64(o.RiskScore)/10) * math.Min(o.TVL/fullConfidenceTVL, 1)
	if o.Metadata.AuditStatus {
		s += auditBonus
	}
	return s
}

// Rank returns a copy of opps ordered by descending score. Ties keep their
// input order.
func Rank(opps []yield.Opportunity) []yield.Opportunity {
	out := make([]yield.Opportunity, len(opps))
	copy(out, opps)
	sort.SliceStable(out, func(i, j int) bool {
		return Score(out[i]) > Score(out[j])
	})
	return out
}
