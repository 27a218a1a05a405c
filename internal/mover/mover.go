// Package mover executes approved rebalance intents: withdraw from the source
// position, wait for settlement, then deposit (bridging when chains differ).
package mover

import (
	"context"
	"errors"

	"github.com/web3-frozen/stable-yield/internal/protocol"
	"github.com/web3-frozen/stable-yield/internal/yield"
)

// WithdrawRequest pulls Amount of Token out of a protocol on Chain.
type WithdrawRequest struct {
	Address  string         `json:"address"`
	Protocol yield.Protocol `json:"protocol"`
	Chain    yield.Chain    `json:"chainId"`
	Token    yield.Token    `json:"token"`
	Amount   string         `json:"amount"`
	Call     protocol.Call  `json:"call"`
}

// DepositRequest puts Amount of Token into a protocol on Chain. When
// SourceChain differs the funds are bridged first.
type DepositRequest struct {
	Address         string         `json:"address"`
	Protocol        yield.Protocol `json:"protocol"`
	SourceChain     yield.Chain    `json:"sourceChainId"`
	Chain           yield.Chain    `json:"chainId"`
	Token           yield.Token    `json:"token"`
	Amount          string         `json:"amount"`
	APY             float64        `json:"apy"`
	ContractAddress string         `json:"contractAddress"`
	Call            protocol.Call  `json:"call"`
}

func (r DepositRequest) CrossChain() bool { return r.SourceChain != r.Chain }

// TxResult identifies a submitted transaction.
type TxResult struct {
	TxHash  string      `json:"txHash"`
	ChainID yield.Chain `json:"chainId"`
}

// Mover submits the on-chain side of a rebalance.
type Mover interface {
	ExecuteWithdraw(ctx context.Context, req WithdrawRequest) (TxResult, error)
	ExecuteDeposit(ctx context.Context, req DepositRequest) (TxResult, error)
}

// ErrNoSigner is returned by ReadOnly for every move.
var ErrNoSigner = errors.New("no transaction signer configured")

// ReadOnly is the Mover for deployments that read live wallets but hold no
// signing key. Every move fails before anything is submitted.
type ReadOnly struct{}

func (ReadOnly) ExecuteWithdraw(context.Context, WithdrawRequest) (TxResult, error) {
	return TxResult{}, ErrNoSigner
}

func (ReadOnly) ExecuteDeposit(context.Context, DepositRequest) (TxResult, error) {
	return TxResult{}, ErrNoSigner
}
