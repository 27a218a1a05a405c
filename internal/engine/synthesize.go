package engine

import (
	"math"

	"github.com/web3-frozen/stable-yield/internal/guardrails"
	"github.com/web3-frozen/stable-yield/internal/yield"
)

// MaxCandidatesPerPosition bounds intent fan-out per position.
const MaxCandidatesPerPosition = 3

// Synthesize pairs each position with up to MaxCandidatesPerPosition ranked
// opportunities in the same token that pay strictly more and differ in
// protocol or chain. Every intent carries its guardrail results; failing
// intents are kept so callers can show why they were blocked.
func Synthesize(positions []yield.Position, ranked []yield.Opportunity, q yield.GasQuote, cfg guardrails.Config) []yield.Intent {
	var intents []yield.Intent
	for _, pos := range positions {
		amount, err := yield.AmountFloat(pos.DepositedAmount)
		if err != nil || amount <= 0 {
			continue
		}
		n := 0
		for _, opp := range ranked {
			if n == MaxCandidatesPerPosition {
				break
			}
			if !isCandidate(pos, opp) {
				continue
			}
			intents = append(intents, buildIntent(pos, amount, opp, q, cfg))
			n++
		}
	}
	return intents
}

func isCandidate(pos yield.Position, opp yield.Opportunity) bool {
	if opp.Token != pos.Token || opp.APY <= pos.APY {
		return false
	}
	return opp.Protocol != pos.Protocol || opp.Chain != pos.Chain
}

func buildIntent(pos yield.Position, amount float64, opp yield.Opportunity, q yield.GasQuote, cfg guardrails.Config) yield.Intent {
	cost := EstimateCost(pos.Chain, opp.Chain, amount, q)
	gain := amount * (opp.APY - pos.APY) / 100

	in := yield.Intent{
		ID: pos.Key() + "-to-" + opp.ID,
		From: yield.MoveFrom{
			PositionID:      pos.Key(),
			Chain:           pos.Chain,
			Protocol:        pos.Protocol,
			Token:           pos.Token,
			Amount:          pos.DepositedAmount,
			APY:             pos.APY,
			ContractAddress: pos.ContractAddress,
		},
		To: yield.MoveTo{
			OpportunityID:   opp.ID,
			Chain:           opp.Chain,
			Protocol:        opp.Protocol,
			ExpectedAPY:     opp.APY,
			ContractAddress: opp.ContractAddress,
		},
		EstimatedCost: cost.Estimate(),
		NetBenefit: yield.NetBenefit{
			YearlyGainUSD:    yield.Money(gain),
			NetYearlyGainUSD: yield.Money(gain - cost.TotalUSD()),
			BreakEvenDays:    BreakEvenDays(cost.TotalUSD(), gain),
		},
		Status: yield.StatusPending,
	}
	in.GuardrailsStatus = guardrails.Evaluate(in, cfg)
	if yield.AllPassed(in.GuardrailsStatus) {
		in.Status = yield.StatusApproved
	}
	return in
}

// BreakEvenDays is the number of days of extra yield needed to repay cost,
// or yield.BreakEvenNever when the move gains nothing.
func BreakEvenDays(costUSD, yearlyGainUSD float64) int {
	if yearlyGainUSD <= 0 {
		return yield.BreakEvenNever
	}
	days := math.Ceil(costUSD / yearlyGainUSD * 365)
	if days > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(days)
}
