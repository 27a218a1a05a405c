package protocol

import (
	"math/big"

	"github.com/web3-frozen/stable-yield/internal/yield"
)

const (
	compoundSupplySig   = "supply(address,uint256)"
	compoundWithdrawSig = "withdraw(address,uint256)"
)

var zero = big.NewInt(0)

// compoundAdapter targets a Compound III (Comet) market. Comet credits the
// caller, so the recipient is not encoded.
type compoundAdapter struct{}

func (compoundAdapter) Protocol() yield.Protocol { return yield.Compound }

func (compoundAdapter) BuildDeposit(req Request) (Call, error) {
	r, err := resolve(yield.Compound, req)
	if err != nil {
		return Call{}, err
	}
	data := encodeCall(compoundSupplySig, encodeAddress(r.asset), encodeUint256(r.units))
	return r.call(req.Chain, "supply", data), nil
}

func (compoundAdapter) BuildWithdraw(req Request) (Call, error) {
	r, err := resolve(yield.Compound, req)
	if err != nil {
		return Call{}, err
	}
	data := encodeCall(compoundWithdrawSig, encodeAddress(r.asset), encodeUint256(r.units))
	return r.call(req.Chain, "withdraw", data), nil
}
