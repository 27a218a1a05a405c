package protocol

import "github.com/web3-frozen/stable-yield/internal/yield"

const (
	curveAddLiquiditySig    = "add_liquidity(uint256[2],uint256)"
	curveRemoveLiquiditySig = "remove_liquidity(uint256,uint256[2])"
)

// curveAdapter targets a two-coin stable pool with the stablecoin in slot 0.
// Minimum amounts are zero; slippage is gated by guardrails before this runs.
type curveAdapter struct{}

func (curveAdapter) Protocol() yield.Protocol { return yield.Curve }

func (curveAdapter) BuildDeposit(req Request) (Call, error) {
	r, err := resolve(yield.Curve, req)
	if err != nil {
		return Call{}, err
	}
	data := encodeCall(curveAddLiquiditySig,
		encodeUint256(r.units), encodeUint256(zero), // amounts[2]
		encodeUint256(zero), // min_mint_amount
	)
	return r.call(req.Chain, "add_liquidity", data), nil
}

func (curveAdapter) BuildWithdraw(req Request) (Call, error) {
	r, err := resolve(yield.Curve, req)
	if err != nil {
		return Call{}, err
	}
	data := encodeCall(curveRemoveLiquiditySig,
		encodeUint256(r.units),
		encodeUint256(zero), encodeUint256(zero), // min_amounts[2]
	)
	return r.call(req.Chain, "remove_liquidity", data), nil
}
