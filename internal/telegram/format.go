package telegram

import (
	"fmt"
	"strings"

	"github.com/web3-frozen/stable-yield/internal/yield"
)

const maxDigestIntents = 3

// FormatIntentAlert renders a new approved intent for a watched wallet.
func FormatIntentAlert(address string, in yield.Intent) string {
	breakEven := fmt.Sprintf("%d days", in.NetBenefit.BreakEvenDays)
	if in.NetBenefit.BreakEvenDays == yield.BreakEvenNever {
		breakEven = "never"
	}
	return fmt.Sprintf("💡 <b>Rebalance opportunity</b>\n"+
		"Wallet: <code>%s</code>\n\n"+
		"Move %s %s\n"+
		"From: %s on %s (%.2f%%)\n"+
		"To:   %s on %s (%.2f%%)\n\n"+
		"Yearly gain: %s\n"+
		"Cost:        %s\n"+
		"Net gain:    %s\n"+
		"Break-even:  %s\n\n"+
		"Intent: <code>%s</code>",
		address,
		formatUSD(in.From.Amount), in.From.Token,
		in.From.Protocol, in.From.Chain, in.From.APY,
		in.To.Protocol, in.To.Chain, in.To.ExpectedAPY,
		formatUSD(in.NetBenefit.YearlyGainUSD),
		formatUSD(in.EstimatedCost.TotalCostUSD),
		formatUSD(in.NetBenefit.NetYearlyGainUSD),
		breakEven,
		in.ID)
}

// FormatDigest summarizes an analysis for a wallet.
func FormatDigest(address string, a yield.Analysis) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 <b>Yield report</b>\nWallet: <code>%s</code>\n\n", address)
	fmt.Fprintf(&sb, "Positions:     %d\n", len(a.CurrentPositions))
	fmt.Fprintf(&sb, "Idle balance:  %s\n", formatUSD(a.IdleBalance))
	fmt.Fprintf(&sb, "Current APY:   %.2f%%\n", a.TotalCurrentAPY)
	fmt.Fprintf(&sb, "Projected APY: %.2f%%\n", a.TotalProjectedAPY)

	if a.RecommendedActions == 0 {
		sb.WriteString("\n✅ No rebalance passes your guardrails right now.")
	} else {
		fmt.Fprintf(&sb, "\n%d recommended move(s), net %s/yr:\n", a.RecommendedActions, formatUSD(a.NetYearlyGainUSD))
		for i, in := range a.RebalanceIntents {
			if i == maxDigestIntents {
				fmt.Fprintf(&sb, "…and %d more\n", len(a.RebalanceIntents)-maxDigestIntents)
				break
			}
			fmt.Fprintf(&sb, "• %s/%s → %s/%s: +%s/yr\n",
				in.From.Protocol, in.From.Chain, in.To.Protocol, in.To.Chain,
				formatUSD(in.NetBenefit.NetYearlyGainUSD))
		}
	}

	if len(a.IdleSuggestions) > 0 {
		s := a.IdleSuggestions[0]
		fmt.Fprintf(&sb, "\n💤 Idle funds: put %s into %s on %s (%.2f%%) for ~%s/yr",
			formatUSD(s.Amount), s.Opportunity.Protocol, s.Opportunity.Chain, s.Opportunity.APY,
			formatUSD(s.ProjectedYearlyUSD))
	}
	return sb.String()
}

// formatUSD renders a 2dp money string with thousands separators.
func formatUSD(s string) string {
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	out := "$" + addCommas(s)
	if neg {
		return "-" + out
	}
	return out
}

func addCommas(s string) string {
	parts := strings.SplitN(s, ".", 2)
	intPart := parts[0]
	n := len(intPart)
	if n <= 3 {
		if len(parts) == 2 {
			return intPart + "." + parts[1]
		}
		return intPart
	}
	var result []byte
	for i, c := range intPart {
		if i > 0 && (n-i)%3 == 0 {
			result = append(result, ',')
		}
		result = append(result, byte(c))
	}
	if len(parts) == 2 {
		return string(result) + "." + parts[1]
	}
	return string(result)
}
