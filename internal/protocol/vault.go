package protocol

import "github.com/web3-frozen/stable-yield/internal/yield"

const (
	vaultDepositSig  = "deposit(uint256,address)"
	vaultWithdrawSig = "withdraw(uint256,address)"
)

// vaultAdapter covers share vaults (Yearn, Beefy) that take an amount and a
// recipient for both directions.
type vaultAdapter struct {
	protocol yield.Protocol
}

func (v vaultAdapter) Protocol() yield.Protocol { return v.protocol }

func (v vaultAdapter) BuildDeposit(req Request) (Call, error) {
	r, err := resolve(v.protocol, req)
	if err != nil {
		return Call{}, err
	}
	data := encodeCall(vaultDepositSig, encodeUint256(r.units), encodeAddress(req.Recipient))
	return r.call(req.Chain, "deposit", data), nil
}

func (v vaultAdapter) BuildWithdraw(req Request) (Call, error) {
	r, err := resolve(v.protocol, req)
	if err != nil {
		return Call{}, err
	}
	data := encodeCall(vaultWithdrawSig, encodeUint256(r.units), encodeAddress(req.Recipient))
	return r.call(req.Chain, "withdraw", data), nil
}
