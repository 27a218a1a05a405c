package engine

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3-frozen/stable-yield/internal/guardrails"
	"github.com/web3-frozen/stable-yield/internal/metrics"
	"github.com/web3-frozen/stable-yield/internal/yield"
)

const (
	TopOpportunities   = 10
	MaxIdleSuggestions = 3
)

// OpportunitySource returns the current opportunity catalog. It never fails;
// an unavailable feed yields stale or empty results.
type OpportunitySource interface {
	Opportunities(ctx context.Context) []yield.Opportunity
}

// GasOracle snapshots gas prices for the given chains. It never fails; missing
// data falls back to defaults.
type GasOracle interface {
	Quote(ctx context.Context, chains ...yield.Chain) yield.GasQuote
}

// Input is everything one analysis run depends on besides the feeds.
type Input struct {
	Positions   []yield.Position
	IdleBalance string
	Guardrails  guardrails.Config
}

// Analyzer orchestrates ranking, synthesis and guardrail filtering.
type Analyzer struct {
	catalog OpportunitySource
	oracle  GasOracle
	logger  *slog.Logger
	now     func() time.Time
}

func NewAnalyzer(catalog OpportunitySource, oracle GasOracle, logger *slog.Logger) *Analyzer {
	return &Analyzer{catalog: catalog, oracle: oracle, logger: logger, now: time.Now}
}

// Analyze produces a full analysis. Given identical inputs and unchanged
// feeds the result is identical apart from Timestamp.
func (a *Analyzer) Analyze(ctx context.Context, in Input) (yield.Analysis, error) {
	start := time.Now()
	idle := decimal.Zero
	if in.IdleBalance != "" {
		var err error
		if idle, err = yield.ParseAmount(in.IdleBalance); err != nil {
			return yield.Analysis{}, err
		}
	}

	ranked := Rank(a.catalog.Opportunities(ctx))
	quote := yield.GasQuote{}
	if a.oracle != nil {
		quote = a.oracle.Quote(ctx, chainsOf(in.Positions, ranked)...)
	}

	all := Synthesize(in.Positions, ranked, quote, in.Guardrails)
	approved := make([]yield.Intent, 0, len(all))
	for _, intent := range all {
		if yield.AllPassed(intent.GuardrailsStatus) {
			approved = append(approved, intent)
		} else {
			for _, c := range intent.GuardrailsStatus {
				if !c.Passed {
					metrics.IntentsBlockedTotal.WithLabelValues(string(c.Rule)).Inc()
				}
			}
		}
	}
	metrics.IntentsSynthesizedTotal.Add(float64(len(all)))
	metrics.IntentsApprovedTotal.Add(float64(len(approved)))

	var costs, gains []string
	for _, intent := range approved {
		costs = append(costs, intent.EstimatedCost.TotalCostUSD)
		gains = append(gains, intent.NetBenefit.YearlyGainUSD)
	}
	totalCost := yield.SumMoney(costs...)
	totalGain := yield.SumMoney(gains...)

	top := ranked
	if len(top) > TopOpportunities {
		top = top[:TopOpportunities]
	}

	positions := make([]yield.Position, len(in.Positions))
	copy(positions, in.Positions)

	analysis := yield.Analysis{
		CurrentPositions:   positions,
		Opportunities:      top,
		RebalanceIntents:   approved,
		IdleBalance:        idle.StringFixed(2),
		IdleSuggestions:    suggestIdle(in.Positions, idle, ranked, in.Guardrails),
		TotalCurrentAPY:    WeightedAPY(in.Positions, nil),
		TotalProjectedAPY:  WeightedAPY(in.Positions, bestReplacements(approved)),
		TotalCostUSD:       totalCost.StringFixed(2),
		TotalYearlyGainUSD: totalGain.StringFixed(2),
		NetYearlyGainUSD:   totalGain.Sub(totalCost).StringFixed(2),
		RecommendedActions: len(approved),
		Timestamp:          a.now().UnixMilli(),
	}

	metrics.AnalysisDuration.Observe(time.Since(start).Seconds())
	a.logger.Info("analysis complete",
		"positions", len(in.Positions),
		"opportunities", len(ranked),
		"intents", len(all),
		"approved", len(approved),
	)
	return analysis, nil
}

// WeightedAPY is the currentValue-weighted APY of positions. replacements
// maps a position key to a substitute APY. Zero-value positions are ignored
// and an empty portfolio yields 0.
func WeightedAPY(positions []yield.Position, replacements map[string]float64) float64 {
	var weighted, total float64
	for _, p := range positions {
		v, err := yield.AmountFloat(p.CurrentValue)
		if err != nil || v <= 0 {
			continue
		}
		apy := p.APY
		if r, ok := replacements[p.Key()]; ok {
			apy = r
		}
		weighted += v * apy
		total += v
	}
	if total == 0 {
		return 0
	}
	return weighted / total
}

// bestReplacements maps each source position to the highest APY offered by
// its approved intents.
func bestReplacements(approved []yield.Intent) map[string]float64 {
	best := make(map[string]float64)
	for _, in := range approved {
		if cur, ok := best[in.From.PositionID]; !ok || in.To.ExpectedAPY > cur {
			best[in.From.PositionID] = in.To.ExpectedAPY
		}
	}
	return best
}

// suggestIdle spreads idle balance greedily over the best-ranked protocols,
// capping each at the allocation limit and assuming idle funds earn 0%.
func suggestIdle(positions []yield.Position, idle decimal.Decimal, ranked []yield.Opportunity, cfg guardrails.Config) []yield.IdleSuggestion {
	if !idle.IsPositive() {
		return nil
	}
	idleUSD, _ := idle.Float64()

	held := make(map[yield.Protocol]float64)
	portfolio := 0.0
	for _, p := range positions {
		v, err := yield.AmountFloat(p.CurrentValue)
		if err != nil {
			continue
		}
		held[p.Protocol] += v
		portfolio += v
	}
	total := portfolio + idleUSD

	var out []yield.IdleSuggestion
	used := make(map[yield.Protocol]bool)
	remaining := idleUSD
	for _, opp := range ranked {
		if len(out) == MaxIdleSuggestions || remaining <= 0 {
			break
		}
		if used[opp.Protocol] {
			continue
		}
		room := cfg.MaxSingleProtocolAllocation/100*total - held[opp.Protocol]
		amount := math.Min(remaining, room)
		if amount <= 0 {
			continue
		}
		allocation := math.Round((held[opp.Protocol]+amount)/total*100*1e6) / 1e6
		checks := guardrails.EvaluateOpportunity(opp, 0, allocation, cfg)
		if !yield.AllPassed(checks) {
			continue
		}
		out = append(out, yield.IdleSuggestion{
			Opportunity:        opp,
			Amount:             yield.Money(amount),
			ProjectedYearlyUSD: yield.Money(amount * opp.APY / 100),
			GuardrailsStatus:   checks,
		})
		used[opp.Protocol] = true
		remaining -= amount
	}
	return out
}

func chainsOf(positions []yield.Position, opps []yield.Opportunity) []yield.Chain {
	seen := make(map[yield.Chain]bool)
	var chains []yield.Chain
	add := func(c yield.Chain) {
		if !seen[c] {
			seen[c] = true
			chains = append(chains, c)
		}
	}
	for _, p := range positions {
		add(p.Chain)
	}
	for _, o := range opps {
		add(o.Chain)
	}
	return chains
}
