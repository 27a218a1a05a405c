package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3-frozen/stable-yield/internal/engine"
	"github.com/web3-frozen/stable-yield/internal/guardrails"
	"github.com/web3-frozen/stable-yield/internal/mover"
	"github.com/web3-frozen/stable-yield/internal/yield"
)

const wallet = "0x2222222222222222222222222222222222222222"

const intentID = "aave-1-USDC-to-compound-1-USDC-p1"

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

type staticCatalog []yield.Opportunity

func (s staticCatalog) Opportunities(context.Context) []yield.Opportunity { return s }

var catalog = staticCatalog{{
	ID:              "compound-1-USDC-p1",
	Protocol:        yield.Compound,
	Chain:           yield.Ethereum,
	Token:           yield.USDC,
	APY:             8,
	TVL:             5_000_000,
	RiskScore:       3,
	ContractAddress: "0xc3d688B66703497DAA19211EEdff47f25384cdc3",
	Metadata:        yield.OpportunityMetadata{AuditStatus: true, TimeInMarket: 365},
}}

type countingSource struct {
	inner   *mover.Simulator
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (s *countingSource) FetchPositions(ctx context.Context, address string) ([]yield.Position, error) {
	s.calls.Add(1)
	if s.entered != nil {
		s.entered <- struct{}{}
		<-s.release
	}
	return s.inner.FetchPositions(ctx, address)
}

func (s *countingSource) FetchBalances(ctx context.Context, address string) ([]yield.Balance, error) {
	return s.inner.FetchBalances(ctx, address)
}

type memStore struct {
	mu       sync.Mutex
	cfg      map[string]guardrails.Config
	analyses map[string]yield.Analysis
}

func newMemStore() *memStore {
	return &memStore{cfg: map[string]guardrails.Config{}, analyses: map[string]yield.Analysis{}}
}

func (m *memStore) GetGuardrails(_ context.Context, address string) (guardrails.Config, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cfg[address]
	return c, ok, nil
}

func (m *memStore) SaveAnalysis(_ context.Context, address string, a yield.Analysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.analyses[address] = a
	return nil
}

func setup(t *testing.T) (*Coordinator, *countingSource, *memStore, *mover.LedgerBook) {
	t.Helper()
	book := mover.NewLedgerBook(func(l *mover.Ledger) {
		l.Open(yield.Aave, yield.Ethereum, yield.USDC, decimal.NewFromInt(10_000), 3, time.Now())
		l.Credit(yield.USDC, yield.Ethereum, decimal.NewFromInt(500))
	}, nil)
	sim := mover.NewSimulator(book, testLogger())
	src := &countingSource{inner: sim}
	exec := mover.NewExecutor(sim, src, 0, testLogger())
	store := newMemStore()
	analyzer := engine.NewAnalyzer(catalog, nil, testLogger())
	return NewCoordinator(analyzer, src, exec, store, guardrails.Defaults(), testLogger()), src, store, book
}

func TestAnalyzeProducesApprovedIntent(t *testing.T) {
	c, _, store, _ := setup(t)

	a, err := c.Analyze(context.Background(), wallet)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if _, ok := a.Intent(intentID); !ok {
		t.Fatalf("intent %s missing: %+v", intentID, a.RebalanceIntents)
	}
	if a.IdleBalance != "500.00" {
		t.Errorf("IdleBalance = %s", a.IdleBalance)
	}
	if _, ok := c.Latest(wallet); !ok {
		t.Error("Latest not recorded")
	}
	if _, ok := store.analyses[wallet]; !ok {
		t.Error("analysis not persisted")
	}
}

func TestAnalyzeUsesStoredGuardrails(t *testing.T) {
	c, _, store, _ := setup(t)
	cfg := guardrails.Defaults()
	cfg.BlacklistedProtocols = []yield.Protocol{yield.Compound}
	store.cfg[wallet] = cfg

	a, err := c.Analyze(context.Background(), wallet)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(a.RebalanceIntents) != 0 {
		t.Errorf("blacklisted target still approved: %+v", a.RebalanceIntents)
	}
}

func TestAnalyzeRejectsBadAddress(t *testing.T) {
	c, _, _, _ := setup(t)
	if _, err := c.Analyze(context.Background(), "0xnope"); !errors.Is(err, yield.ErrValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
}

func TestAnalyzeSharesInFlightRun(t *testing.T) {
	c, src, _, _ := setup(t)
	src.entered = make(chan struct{}, 2)
	src.release = make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Analyze(context.Background(), wallet); err != nil {
				t.Errorf("Analyze: %v", err)
			}
		}()
	}
	<-src.entered
	time.Sleep(50 * time.Millisecond)
	close(src.release)
	wg.Wait()

	if n := src.calls.Load(); n != 1 {
		t.Errorf("position fetches = %d, want 1", n)
	}
}

func TestProposeRequiresAnalysis(t *testing.T) {
	c, _, _, _ := setup(t)
	if _, err := c.Propose(context.Background(), wallet, intentID); !errors.Is(err, yield.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestProposeApproveExecutes(t *testing.T) {
	c, _, _, book := setup(t)
	ctx := context.Background()
	if _, err := c.Analyze(ctx, wallet); err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	p, err := c.Propose(ctx, wallet, intentID)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if p.Decision != DecisionPending {
		t.Fatalf("decision = %s", p.Decision)
	}
	if _, err := c.Propose(ctx, wallet, intentID); !errors.Is(err, yield.ErrConflict) {
		t.Fatalf("duplicate propose err = %v, want conflict", err)
	}

	got, err := c.Decide(ctx, p.ID, true)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if got.Decision != DecisionApproved || got.Execution == nil || got.Execution.Status != yield.StatusCompleted {
		t.Fatalf("proposal = %+v", got)
	}
	pos := book.Ledger(wallet).Positions()
	if len(pos) != 1 || pos[0].Protocol != yield.Compound {
		t.Errorf("positions after execute = %+v", pos)
	}
	if _, ok := c.Latest(wallet); ok {
		t.Error("stale analysis kept after execution")
	}
	if _, err := c.Decide(ctx, p.ID, true); !errors.Is(err, yield.ErrConflict) {
		t.Errorf("second decide err = %v, want conflict", err)
	}
}

func TestAwaitReturnsDecision(t *testing.T) {
	c, _, _, _ := setup(t)
	ctx := context.Background()
	if _, err := c.Analyze(ctx, wallet); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	p, err := c.Propose(ctx, wallet, intentID)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		_, _ = c.Decide(ctx, p.ID, false)
	}()
	d, err := c.Await(ctx, p.ID)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if d != DecisionRejected {
		t.Errorf("decision = %s, want rejected", d)
	}
}

func TestAwaitExpires(t *testing.T) {
	c, _, _, _ := setup(t)
	c.SetProposalTimeout(30 * time.Millisecond)
	ctx := context.Background()
	if _, err := c.Analyze(ctx, wallet); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	p, err := c.Propose(ctx, wallet, intentID)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}

	d, err := c.Await(ctx, p.ID)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if d != DecisionExpired {
		t.Fatalf("decision = %s, want expired", d)
	}
	if _, err := c.Decide(ctx, p.ID, true); !errors.Is(err, yield.ErrConflict) {
		t.Errorf("decide after expiry err = %v, want conflict", err)
	}
}

func TestDecideRecordsRefusedExecution(t *testing.T) {
	c, _, _, book := setup(t)
	ctx := context.Background()
	if _, err := c.Analyze(ctx, wallet); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	p, err := c.Propose(ctx, wallet, intentID)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	// The position shrinks after the analysis, so the move no longer fits.
	if err := book.Ledger(wallet).Withdraw(yield.Aave, yield.Ethereum, yield.USDC, decimal.NewFromInt(1)); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}

	got, err := c.Decide(ctx, p.ID, true)
	if !errors.Is(err, yield.ErrInsufficientBalance) {
		t.Fatalf("Decide err = %v, want insufficient balance", err)
	}
	if got.Decision != DecisionFailed || got.Error == "" || got.Execution != nil {
		t.Fatalf("returned proposal = %+v", got)
	}

	stored, err := c.Get(p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Decision != DecisionFailed || stored.Error != got.Error || stored.DecidedAt == nil {
		t.Errorf("stored proposal = %+v", stored)
	}
	if _, err := c.Decide(ctx, p.ID, false); !errors.Is(err, yield.ErrConflict) {
		t.Errorf("decide after failure err = %v, want conflict", err)
	}
	d, err := c.Await(ctx, p.ID)
	if err != nil || d != DecisionFailed {
		t.Errorf("Await = %s, %v; want failed", d, err)
	}
	if len(book.Ledger(wallet).Positions()) != 1 {
		t.Errorf("positions changed: %+v", book.Ledger(wallet).Positions())
	}
}

func TestProposeDropsOldDecidedProposals(t *testing.T) {
	c, _, _, _ := setup(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.proposals.now = func() time.Time { return now }

	if _, err := c.Analyze(ctx, wallet); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	old, err := c.Propose(ctx, wallet, intentID)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if _, err := c.Decide(ctx, old.ID, false); err != nil {
		t.Fatalf("Decide: %v", err)
	}
	// Left to expire without a decision.
	stale, err := c.Propose(ctx, wallet, intentID)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}

	now = now.Add(30 * time.Minute)
	recent, err := c.Propose(ctx, wallet, intentID)
	if err != nil {
		t.Fatalf("Propose after expiry: %v", err)
	}
	if _, err := c.Get(old.ID); err != nil {
		t.Errorf("proposal inside retention dropped: %v", err)
	}

	// The stale proposal was marked expired by the sweep at +30m.
	now = now.Add(proposalRetention + time.Minute)
	if _, err := c.Propose(ctx, wallet, intentID); err != nil {
		t.Fatalf("Propose: %v", err)
	}
	for _, id := range []string{old.ID, stale.ID} {
		if _, err := c.Get(id); !errors.Is(err, yield.ErrNotFound) {
			t.Errorf("Get(%s) err = %v, want not found", id, err)
		}
	}
	if _, err := c.Get(recent.ID); err != nil {
		t.Errorf("recent proposal dropped: %v", err)
	}
}
