package guardrails

import (
	"fmt"
	"math"
	"strconv"

	"github.com/web3-frozen/stable-yield/internal/yield"
)

// Evaluate runs every intent-level rule against in. All rules always run so a
// blocked intent lists every reason. A rule that cannot be computed fails
// with an explanatory message.
func Evaluate(in yield.Intent, cfg Config) []yield.GuardrailCheck {
	return []yield.GuardrailCheck{
		checkSlippage(in.EstimatedCost.SlippagePct, cfg.MaxSlippage),
		checkGas(in.EstimatedCost.GasWei, cfg.GasCeiling),
		checkAPYDelta(in.To.ExpectedAPY, in.From.APY, cfg.MinAPYDelta),
		checkBlacklist(in.To.Protocol, cfg),
		checkBreakEven(in.NetBenefit.BreakEvenDays, cfg.MinBreakEvenDays),
	}
}

// EvaluateOpportunity screens an opportunity before any intent exists.
// allocationPct is the share of the portfolio the protocol would hold.
func EvaluateOpportunity(opp yield.Opportunity, currentAPY, allocationPct float64, cfg Config) []yield.GuardrailCheck {
	return []yield.GuardrailCheck{
		checkAPYDelta(opp.APY, currentAPY, cfg.MinAPYDelta),
		checkAllocation(allocationPct, cfg.MaxSingleProtocolAllocation),
		checkBlacklist(opp.Protocol, cfg),
	}
}

func checkSlippage(actual, max float64) yield.GuardrailCheck {
	return yield.GuardrailCheck{
		Rule:      yield.RuleMaxSlippage,
		Passed:    actual <= max,
		Value:     pct(actual),
		Threshold: pct(max),
		Message:   fmt.Sprintf("Slippage: %s%% (max: %s%%)", pct(actual), pct(max)),
	}
}

func checkGas(gasWei, ceiling string) yield.GuardrailCheck {
	c := yield.GuardrailCheck{Rule: yield.RuleGasCeiling, Value: gasWei, Threshold: ceiling}
	fee, ok := parseWei(gasWei)
	if !ok {
		c.Message = fmt.Sprintf("Gas fee unavailable: %q is not a wei amount", gasWei)
		return c
	}
	limit, ok := parseWei(ceiling)
	if !ok {
		c.Message = fmt.Sprintf("Gas ceiling unavailable: %q is not a wei amount", ceiling)
		return c
	}
	c.Passed = fee.Cmp(limit) <= 0
	c.Message = fmt.Sprintf("Gas fee: %s wei (max: %s wei)", fee, limit)
	return c
}

func checkAPYDelta(targetAPY, referenceAPY, min float64) yield.GuardrailCheck {
	// Rounded so 6.1-5.1 compares equal to 1.0.
	delta := math.Round((targetAPY-referenceAPY)*1e6) / 1e6
	return yield.GuardrailCheck{
		Rule:      yield.RuleMinAPYDelta,
		Passed:    delta >= min,
		Value:     strconv.FormatFloat(delta, 'f', 2, 64),
		Threshold: pct(min),
		Message:   fmt.Sprintf("APY improvement: %.2f%% (min: %s%%)", delta, pct(min)),
	}
}

func checkBlacklist(p yield.Protocol, cfg Config) yield.GuardrailCheck {
	c := yield.GuardrailCheck{
		Rule:      yield.RuleProtocolBlacklist,
		Passed:    !cfg.IsBlacklisted(p),
		Value:     string(p),
		Threshold: fmt.Sprint(cfg.BlacklistedProtocols),
		Message:   "Protocol is allowed",
	}
	if !c.Passed {
		c.Message = fmt.Sprintf("Protocol %s is blacklisted", p)
	}
	return c
}

func checkBreakEven(days, max int) yield.GuardrailCheck {
	c := yield.GuardrailCheck{
		Rule:      yield.RuleMinBreakEvenDays,
		Value:     strconv.Itoa(days),
		Threshold: strconv.Itoa(max),
	}
	if days < 0 {
		c.Value = "never"
		c.Message = fmt.Sprintf("Break-even unreachable: no yield improvement (max: %d days)", max)
		return c
	}
	c.Passed = days <= max
	c.Message = fmt.Sprintf("Break-even in %d days (max: %d days)", days, max)
	return c
}

func checkAllocation(actual, max float64) yield.GuardrailCheck {
	return yield.GuardrailCheck{
		Rule:      yield.RuleMaxProtocolAllocation,
		Passed:    actual <= max,
		Value:     strconv.FormatFloat(actual, 'f', 2, 64),
		Threshold: pct(max),
		Message:   fmt.Sprintf("Protocol allocation: %.2f%% (max: %s%%)", actual, pct(max)),
	}
}

func pct(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
