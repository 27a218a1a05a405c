package protocol

import "github.com/web3-frozen/stable-yield/internal/yield"

const (
	aaveSupplySig   = "supply(address,uint256,address,uint16)"
	aaveWithdrawSig = "withdraw(address,uint256,address)"
)

// aaveAdapter targets the Aave V3 Pool.
type aaveAdapter struct{}

func (aaveAdapter) Protocol() yield.Protocol { return yield.Aave }

func (aaveAdapter) BuildDeposit(req Request) (Call, error) {
	r, err := resolve(yield.Aave, req)
	if err != nil {
		return Call{}, err
	}
	data := encodeCall(aaveSupplySig,
		encodeAddress(r.asset),
		encodeUint256(r.units),
		encodeAddress(req.Recipient),
		encodeUint256(zero), // referralCode
	)
	return r.call(req.Chain, "supply", data), nil
}

func (aaveAdapter) BuildWithdraw(req Request) (Call, error) {
	r, err := resolve(yield.Aave, req)
	if err != nil {
		return Call{}, err
	}
	data := encodeCall(aaveWithdrawSig,
		encodeAddress(r.asset),
		encodeUint256(r.units),
		encodeAddress(req.Recipient),
	)
	return r.call(req.Chain, "withdraw", data), nil
}
