package mover

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/web3-frozen/stable-yield/internal/yield"
)

// Simulator is a Mover and position source backed by in-memory ledgers. It
// lets the full analyze, propose and execute loop run without a chain.
type Simulator struct {
	book    *LedgerBook
	latency time.Duration
	logger  *slog.Logger
}

func NewSimulator(book *LedgerBook, logger *slog.Logger) *Simulator {
	return &Simulator{book: book, logger: logger}
}

// SetLatency makes every simulated transaction take d.
func (s *Simulator) SetLatency(d time.Duration) { s.latency = d }

func (s *Simulator) ExecuteWithdraw(ctx context.Context, req WithdrawRequest) (TxResult, error) {
	amount, err := yield.ParseAmount(req.Amount)
	if err != nil {
		return TxResult{}, err
	}
	if err := wait(ctx, s.latency); err != nil {
		return TxResult{}, err
	}
	if err := s.book.Ledger(req.Address).Withdraw(req.Protocol, req.Chain, req.Token, amount); err != nil {
		return TxResult{}, err
	}
	tx := TxResult{TxHash: txHash(), ChainID: req.Chain}
	s.logger.Info("simulated withdraw", "address", req.Address, "protocol", req.Protocol, "chain", req.Chain.String(), "amount", req.Amount, "tx", tx.TxHash)
	return tx, nil
}

func (s *Simulator) ExecuteDeposit(ctx context.Context, req DepositRequest) (TxResult, error) {
	amount, err := yield.ParseAmount(req.Amount)
	if err != nil {
		return TxResult{}, err
	}
	if err := wait(ctx, s.latency); err != nil {
		return TxResult{}, err
	}
	if req.CrossChain() {
		if err := wait(ctx, s.latency); err != nil {
			return TxResult{}, err
		}
	}
	if err := s.book.Ledger(req.Address).Deposit(req.Protocol, req.SourceChain, req.Chain, req.Token, amount, req.APY); err != nil {
		return TxResult{}, err
	}
	tx := TxResult{TxHash: txHash(), ChainID: req.Chain}
	s.logger.Info("simulated deposit", "address", req.Address, "protocol", req.Protocol, "chain", req.Chain.String(), "bridged", req.CrossChain(), "amount", req.Amount, "tx", tx.TxHash)
	return tx, nil
}

func (s *Simulator) FetchPositions(_ context.Context, address string) ([]yield.Position, error) {
	return s.book.Ledger(address).Positions(), nil
}

func (s *Simulator) FetchBalances(_ context.Context, address string) ([]yield.Balance, error) {
	return s.book.Ledger(address).Balances(), nil
}

func txHash() string {
	var b [32]byte
	_, _ = rand.Read(b[:])
	return "0x" + hex.EncodeToString(b[:])
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
