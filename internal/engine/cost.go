package engine

import (
	"math/big"

	"github.com/web3-frozen/stable-yield/internal/yield"
)

const (
	sameChainGasUSD  = 5.0
	crossChainGasUSD = 15.0
	bridgeFeePct     = 0.1
	slippagePct      = 0.05

	withdrawGasUnits = 200_000
	bridgeGasUnits   = 150_000
	depositGasUnits  = 250_000
)

// Cost is an unrounded cost estimate. Rounding happens once in Estimate.
type Cost struct {
	GasUSD      float64
	BridgeUSD   float64
	SlippageUSD float64
	GasWei      *big.Int
	NativeUSD   float64
}

func (c Cost) TotalUSD() float64 {
	return c.GasUSD + c.BridgeUSD + c.SlippageUSD
}

// EstimateCost prices moving amount (USD) from one chain to another. Gas wei
// covers withdraw and bridge on the source chain and deposit on the target.
func EstimateCost(from, to yield.Chain, amount float64, q yield.GasQuote) Cost {
	c := Cost{
		GasUSD:      sameChainGasUSD,
		SlippageUSD: amount * slippagePct / 100,
		NativeUSD:   q.NativePrice(),
	}
	srcUnits := int64(withdrawGasUnits)
	if from != to {
		c.GasUSD = crossChainGasUSD
		c.BridgeUSD = amount * bridgeFeePct / 100
		srcUnits += bridgeGasUnits
	}
	src := new(big.Int).Mul(big.NewInt(srcUnits), q.GasPrice(from))
	dst := new(big.Int).Mul(big.NewInt(depositGasUnits), q.GasPrice(to))
	c.GasWei = src.Add(src, dst)
	return c
}

// Estimate renders c at the money boundary.
func (c Cost) Estimate() yield.CostEstimate {
	gasWei, gasWeiUSD := "0", 0.0
	if c.GasWei != nil {
		gasWei = c.GasWei.String()
		eth, _ := new(big.Float).Quo(new(big.Float).SetInt(c.GasWei), big.NewFloat(1e18)).Float64()
		gasWeiUSD = eth * c.NativeUSD
	}
	return yield.CostEstimate{
		GasFee:       yield.Money(c.GasUSD),
		BridgeFee:    yield.Money(c.BridgeUSD),
		Slippage:     yield.Money(c.SlippageUSD),
		TotalCostUSD: yield.Money(c.TotalUSD()),
		GasWei:       gasWei,
		GasWeiUSD:    yield.Money(gasWeiUSD),
		SlippagePct:  slippagePct,
	}
}
