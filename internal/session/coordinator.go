// Package session coordinates per-wallet analysis runs and the proposal
// flow that turns an approved intent into an execution.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/web3-frozen/stable-yield/internal/engine"
	"github.com/web3-frozen/stable-yield/internal/guardrails"
	"github.com/web3-frozen/stable-yield/internal/mover"
	"github.com/web3-frozen/stable-yield/internal/positions"
	"github.com/web3-frozen/stable-yield/internal/protocol"
	"github.com/web3-frozen/stable-yield/internal/yield"
)

// Store persists per-wallet state. Implemented by store.Store.
type Store interface {
	GetGuardrails(ctx context.Context, address string) (guardrails.Config, bool, error)
	SaveAnalysis(ctx context.Context, address string, a yield.Analysis) error
}

// Coordinator runs analyses and proposals for many wallets.
type Coordinator struct {
	analyzer *engine.Analyzer
	source   positions.Source
	executor *mover.Executor
	store    Store
	defaults guardrails.Config
	logger   *slog.Logger

	group singleflight.Group

	mu     sync.RWMutex
	latest map[string]yield.Analysis

	proposals *proposalBook
}

// NewCoordinator creates a Coordinator. store may be nil, in which case every
// wallet uses defaults and nothing is persisted.
func NewCoordinator(analyzer *engine.Analyzer, source positions.Source, executor *mover.Executor, store Store, defaults guardrails.Config, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		analyzer:  analyzer,
		source:    source,
		executor:  executor,
		store:     store,
		defaults:  defaults,
		logger:    logger,
		latest:    make(map[string]yield.Analysis),
		proposals: newProposalBook(DefaultProposalTimeout),
	}
}

// NormalizeAddress validates a wallet address and lower-cases it.
func NormalizeAddress(address string) (string, error) {
	a := strings.ToLower(strings.TrimSpace(address))
	if !protocol.IsAddress(a) {
		return "", yield.NewValidationError(fmt.Sprintf("invalid address %q", address), nil)
	}
	return a, nil
}

// Guardrails returns the wallet's policy, or the defaults when none is saved.
func (c *Coordinator) Guardrails(ctx context.Context, address string) (guardrails.Config, error) {
	if c.store == nil {
		return c.defaults, nil
	}
	cfg, ok, err := c.store.GetGuardrails(ctx, address)
	if err != nil {
		return guardrails.Config{}, fmt.Errorf("load guardrails: %w", err)
	}
	if !ok {
		return c.defaults, nil
	}
	return cfg, nil
}

// Analyze runs a fresh analysis for address. Concurrent calls for the same
// address share one run.
func (c *Coordinator) Analyze(ctx context.Context, address string) (yield.Analysis, error) {
	address, err := NormalizeAddress(address)
	if err != nil {
		return yield.Analysis{}, err
	}
	v, err, shared := c.group.Do(address, func() (any, error) {
		return c.analyze(ctx, address)
	})
	if err != nil {
		return yield.Analysis{}, err
	}
	if shared {
		c.logger.Debug("joined in-flight analysis", "address", address)
	}
	return v.(yield.Analysis), nil
}

func (c *Coordinator) analyze(ctx context.Context, address string) (yield.Analysis, error) {
	held, err := c.source.FetchPositions(ctx, address)
	if err != nil {
		return yield.Analysis{}, err
	}
	balances, err := c.source.FetchBalances(ctx, address)
	if err != nil {
		return yield.Analysis{}, err
	}
	cfg, err := c.Guardrails(ctx, address)
	if err != nil {
		return yield.Analysis{}, err
	}

	a, err := c.analyzer.Analyze(ctx, engine.Input{
		Positions:   held,
		IdleBalance: positions.IdleBalance(balances),
		Guardrails:  cfg,
	})
	if err != nil {
		return yield.Analysis{}, err
	}

	c.mu.Lock()
	c.latest[address] = a
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.SaveAnalysis(ctx, address, a); err != nil {
			c.logger.Warn("failed to persist analysis", "address", address, "error", err)
		}
	}
	return a, nil
}

// Latest returns the most recent analysis for address.
func (c *Coordinator) Latest(address string) (yield.Analysis, bool) {
	address, err := NormalizeAddress(address)
	if err != nil {
		return yield.Analysis{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.latest[address]
	return a, ok
}

func (c *Coordinator) forget(address string) {
	c.mu.Lock()
	delete(c.latest, address)
	c.mu.Unlock()
}

// Positions and Balances expose the wallet source to the HTTP layer.
func (c *Coordinator) Positions(ctx context.Context, address string) ([]yield.Position, error) {
	address, err := NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	return c.source.FetchPositions(ctx, address)
}

func (c *Coordinator) Balances(ctx context.Context, address string) ([]yield.Balance, error) {
	address, err := NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	return c.source.FetchBalances(ctx, address)
}
