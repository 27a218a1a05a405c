package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/web3-frozen/stable-yield/internal/metrics"
	"github.com/web3-frozen/stable-yield/internal/mover"
	"github.com/web3-frozen/stable-yield/internal/yield"
)

const (
	DefaultProposalTimeout = 2 * time.Minute

	// Decided proposals stay readable this long before they are dropped.
	proposalRetention = time.Hour
)

type Decision string

const (
	DecisionPending  Decision = "pending"
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
	DecisionExpired  Decision = "expired"
	// DecisionFailed is an approval whose execution was refused before any
	// transaction was sent.
	DecisionFailed Decision = "failed"
)

// Proposal asks the wallet owner to confirm one approved intent.
type Proposal struct {
	ID        string           `json:"id"`
	Address   string           `json:"address"`
	Intent    yield.Intent     `json:"intent"`
	Decision  Decision         `json:"decision"`
	CreatedAt time.Time        `json:"createdAt"`
	ExpiresAt time.Time        `json:"expiresAt"`
	DecidedAt *time.Time       `json:"decidedAt,omitempty"`
	Execution *mover.Execution `json:"execution,omitempty"`
	Error     string           `json:"error,omitempty"`
}

type proposalEntry struct {
	Proposal
	done chan struct{}
}

type proposalBook struct {
	mu      sync.Mutex
	entries map[string]*proposalEntry
	timeout time.Duration
	now     func() time.Time
}

func newProposalBook(timeout time.Duration) *proposalBook {
	return &proposalBook{
		entries: make(map[string]*proposalEntry),
		timeout: timeout,
		now:     time.Now,
	}
}

// resolve closes a pending entry. Callers hold b.mu.
func (b *proposalBook) resolve(e *proposalEntry, d Decision) {
	now := b.now()
	e.Decision = d
	e.DecidedAt = &now
	close(e.done)
	metrics.ProposalsTotal.WithLabelValues(string(d)).Inc()
}

// expireLocked marks e expired if its deadline passed. Callers hold b.mu.
func (b *proposalBook) expireLocked(e *proposalEntry) {
	if e.Decision == DecisionPending && !b.now().Before(e.ExpiresAt) {
		b.resolve(e, DecisionExpired)
	}
}

// pruneLocked drops proposals decided longer ago than the retention window.
// Callers hold b.mu.
func (b *proposalBook) pruneLocked() {
	cutoff := b.now().Add(-proposalRetention)
	for id, e := range b.entries {
		b.expireLocked(e)
		if e.DecidedAt != nil && e.DecidedAt.Before(cutoff) {
			delete(b.entries, id)
		}
	}
}

// SetProposalTimeout changes how long new proposals wait for a decision.
func (c *Coordinator) SetProposalTimeout(d time.Duration) {
	c.proposals.mu.Lock()
	c.proposals.timeout = d
	c.proposals.mu.Unlock()
}

// Propose registers a pending decision for an approved intent of the
// address's latest analysis.
func (c *Coordinator) Propose(_ context.Context, address, intentID string) (Proposal, error) {
	address, err := NormalizeAddress(address)
	if err != nil {
		return Proposal{}, err
	}
	a, ok := c.Latest(address)
	if !ok {
		return Proposal{}, yield.NewNotFoundError("no analysis for " + address + "; run analyze first")
	}
	intent, ok := a.Intent(intentID)
	if !ok {
		return Proposal{}, yield.NewNotFoundError(fmt.Sprintf("intent %s is not an approved intent of the latest analysis", intentID))
	}

	b := c.proposals
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pruneLocked()
	for _, e := range b.entries {
		if e.Address == address && e.Intent.ID == intentID && e.Decision == DecisionPending {
			return Proposal{}, yield.NewConflictError("a proposal for " + intentID + " is already pending")
		}
	}
	now := b.now()
	e := &proposalEntry{
		Proposal: Proposal{
			ID:        uuid.NewString(),
			Address:   address,
			Intent:    intent,
			Decision:  DecisionPending,
			CreatedAt: now,
			ExpiresAt: now.Add(b.timeout),
		},
		done: make(chan struct{}),
	}
	b.entries[e.ID] = e
	c.logger.Info("proposal created", "proposal_id", e.ID, "address", address, "intent_id", intentID)
	return e.Proposal, nil
}

// Get returns a proposal by id.
func (c *Coordinator) Get(id string) (Proposal, error) {
	b := c.proposals
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[id]
	if !ok {
		return Proposal{}, yield.NewNotFoundError("proposal " + id + " not found")
	}
	b.expireLocked(e)
	return e.Proposal, nil
}

// Decide resolves a pending proposal. Approval executes the intent and
// attaches the execution record; a failed execution is reported on the
// record, not as an error. When the executor refuses the move before
// sending anything, the proposal ends as failed and the error is returned.
func (c *Coordinator) Decide(ctx context.Context, id string, approve bool) (Proposal, error) {
	b := c.proposals
	b.mu.Lock()
	e, ok := b.entries[id]
	if !ok {
		b.mu.Unlock()
		return Proposal{}, yield.NewNotFoundError("proposal " + id + " not found")
	}
	b.expireLocked(e)
	if e.Decision != DecisionPending {
		d := e.Decision
		b.mu.Unlock()
		return Proposal{}, yield.NewConflictError(fmt.Sprintf("proposal %s is already %s", id, d))
	}
	if !approve {
		b.resolve(e, DecisionRejected)
		p := e.Proposal
		b.mu.Unlock()
		c.logger.Info("proposal rejected", "proposal_id", id)
		return p, nil
	}
	b.resolve(e, DecisionApproved)
	p := e.Proposal
	b.mu.Unlock()

	c.logger.Info("proposal approved", "proposal_id", id, "intent_id", p.Intent.ID)
	// A started move must not be abandoned when the caller goes away.
	exec, err := c.executor.Execute(context.WithoutCancel(ctx), p.Intent, p.Address)
	if exec.ID == "" && err != nil {
		b.mu.Lock()
		e.Decision = DecisionFailed
		e.Error = err.Error()
		p = e.Proposal
		b.mu.Unlock()
		metrics.ProposalsTotal.WithLabelValues(string(DecisionFailed)).Inc()
		c.logger.Warn("approved proposal not executed", "proposal_id", id, "error", err)
		return p, err
	}
	// Positions changed; intents of the old analysis no longer apply.
	c.forget(p.Address)

	b.mu.Lock()
	e.Execution = &exec
	p = e.Proposal
	b.mu.Unlock()
	return p, nil
}

// Await blocks until the proposal is decided or expires, or ctx ends.
func (c *Coordinator) Await(ctx context.Context, id string) (Decision, error) {
	b := c.proposals
	b.mu.Lock()
	e, ok := b.entries[id]
	if !ok {
		b.mu.Unlock()
		return "", yield.NewNotFoundError("proposal " + id + " not found")
	}
	b.expireLocked(e)
	wait := e.ExpiresAt.Sub(b.now())
	done := e.done
	b.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.expireLocked(e)
	return e.Decision, nil
}
