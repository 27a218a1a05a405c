package protocol

import (
	"fmt"
	"math/big"

	"github.com/web3-frozen/stable-yield/internal/yield"
)

// Request is the uniform input to every adapter.
type Request struct {
	Chain     yield.Chain `json:"chainId"`
	Token     yield.Token `json:"token"`
	Amount    string      `json:"amount"`
	Recipient string      `json:"recipient"`
}

// Call is an encoded contract call ready for submission.
type Call struct {
	To         string      `json:"to"`
	Chain      yield.Chain `json:"chainId"`
	Function   string      `json:"function"`
	Data       string      `json:"data"`
	BaseAmount string      `json:"baseAmount"`
}

// Adapter builds deposit and withdraw calls for one protocol. Adding a
// protocol means adding one Adapter and registering it below.
type Adapter interface {
	Protocol() yield.Protocol
	BuildDeposit(req Request) (Call, error)
	BuildWithdraw(req Request) (Call, error)
}

var adapters = map[yield.Protocol]Adapter{
	yield.Aave:     aaveAdapter{},
	yield.Compound: compoundAdapter{},
	yield.Yearn:    vaultAdapter{protocol: yield.Yearn},
	yield.Beefy:    vaultAdapter{protocol: yield.Beefy},
	yield.Curve:    curveAdapter{},
}

// AdapterFor returns the adapter registered for p.
func AdapterFor(p yield.Protocol) (Adapter, error) {
	a, ok := adapters[p]
	if !ok {
		return nil, yield.NewValidationError(fmt.Sprintf("unsupported protocol %q", p), nil)
	}
	return a, nil
}

// resolved holds what every adapter needs after validating a request.
type resolved struct {
	contract string
	asset    string
	units    *big.Int
}

func resolve(p yield.Protocol, req Request) (resolved, error) {
	contract, ok := ContractAddress(p, req.Chain)
	if !ok {
		return resolved{}, yield.NewValidationError(fmt.Sprintf("%s is not deployed on %s", p, req.Chain), nil)
	}
	asset, ok := TokenAddress(req.Token, req.Chain)
	if !ok {
		return resolved{}, yield.NewValidationError(fmt.Sprintf("%s is not supported on %s", req.Token, req.Chain), nil)
	}
	if !IsAddress(req.Recipient) {
		return resolved{}, yield.NewValidationError(fmt.Sprintf("invalid recipient %q", req.Recipient), nil)
	}
	units, err := yield.ToBaseUnits(req.Amount, Decimals(req.Token))
	if err != nil {
		return resolved{}, err
	}
	if units.Sign() == 0 {
		return resolved{}, yield.NewValidationError("amount must be positive", nil)
	}
	return resolved{contract: contract, asset: asset, units: units}, nil
}

func (r resolved) call(chain yield.Chain, function string, data []byte) Call {
	return Call{
		To:         r.contract,
		Chain:      chain,
		Function:   function,
		Data:       HexEncode(data),
		BaseAmount: r.units.String(),
	}
}
