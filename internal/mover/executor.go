package mover

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/web3-frozen/stable-yield/internal/metrics"
	"github.com/web3-frozen/stable-yield/internal/positions"
	"github.com/web3-frozen/stable-yield/internal/protocol"
	"github.com/web3-frozen/stable-yield/internal/yield"
)

const DefaultSettleDelay = 3 * time.Second

// Execution records one attempt to carry out an intent.
type Execution struct {
	ID         string             `json:"id"`
	IntentID   string             `json:"intentId"`
	Address    string             `json:"address"`
	Token      yield.Token        `json:"token"`
	Amount     string             `json:"amount"`
	Status     yield.IntentStatus `json:"status"`
	WithdrawTx *TxResult          `json:"withdrawTx,omitempty"`
	DepositTx  *TxResult          `json:"depositTx,omitempty"`
	Error      string             `json:"error,omitempty"`
	StartedAt  time.Time          `json:"startedAt"`
	FinishedAt *time.Time         `json:"finishedAt,omitempty"`
	Intent     yield.Intent       `json:"intent"`
}

// Executor runs approved intents through a Mover. There is no retry: a
// failed step ends the execution.
type Executor struct {
	mover    Mover
	source   positions.Source
	settle   time.Duration
	logger   *slog.Logger
	observer func(Execution)
	now      func() time.Time
}

func NewExecutor(m Mover, source positions.Source, settle time.Duration, logger *slog.Logger) *Executor {
	return &Executor{mover: m, source: source, settle: settle, logger: logger, now: time.Now}
}

// OnStatus registers fn to receive the execution on every status change.
func (e *Executor) OnStatus(fn func(Execution)) { e.observer = fn }

// Execute withdraws the intent's amount from its source position, waits the
// settle delay and deposits into the target. Validation failures, including
// a balance below the intent amount, return before any transaction is sent.
// Once a step fails the returned Execution is marked failed alongside an
// execution error.
func (e *Executor) Execute(ctx context.Context, intent yield.Intent, address string) (Execution, error) {
	if intent.Status != yield.StatusApproved {
		return Execution{}, yield.NewConflictError(fmt.Sprintf("intent %s is %s, not approved", intent.ID, intent.Status))
	}
	amount, err := yield.ParseAmount(intent.From.Amount)
	if err != nil {
		return Execution{}, err
	}
	if err := e.checkBalance(ctx, intent, address); err != nil {
		return Execution{}, err
	}

	token := intent.From.Token
	req := protocol.Request{Chain: intent.From.Chain, Token: token, Amount: intent.From.Amount, Recipient: address}
	withdrawCall, err := buildCall(intent.From.Protocol, req, false)
	if err != nil {
		return Execution{}, err
	}
	req.Chain = intent.To.Chain
	depositCall, err := buildCall(intent.To.Protocol, req, true)
	if err != nil {
		return Execution{}, err
	}

	exec := Execution{
		ID:        uuid.NewString(),
		IntentID:  intent.ID,
		Address:   address,
		Token:     token,
		Amount:    amount.StringFixed(2),
		Status:    yield.StatusExecuting,
		StartedAt: e.now(),
		Intent:    intent,
	}
	e.notify(exec)
	log := e.logger.With("execution_id", exec.ID, "intent_id", intent.ID, "address", address)
	log.Info("execution started", "from", intent.From.PositionID, "to", intent.To.OpportunityID, "amount", exec.Amount)

	wtx, err := e.mover.ExecuteWithdraw(ctx, WithdrawRequest{
		Address:  address,
		Protocol: intent.From.Protocol,
		Chain:    intent.From.Chain,
		Token:    token,
		Amount:   intent.From.Amount,
		Call:     withdrawCall,
	})
	if err != nil {
		return e.fail(log, exec, yield.NewExecutionError("withdraw", "", intent.From.Chain, err))
	}
	exec.WithdrawTx = &wtx
	log.Info("withdraw confirmed", "tx", wtx.TxHash, "chain", wtx.ChainID.String())

	if err := wait(ctx, e.settle); err != nil {
		return e.fail(log, exec, yield.NewExecutionError("settle", wtx.TxHash, wtx.ChainID, err))
	}

	dtx, err := e.mover.ExecuteDeposit(ctx, DepositRequest{
		Address:         address,
		Protocol:        intent.To.Protocol,
		SourceChain:     intent.From.Chain,
		Chain:           intent.To.Chain,
		Token:           token,
		Amount:          intent.From.Amount,
		APY:             intent.To.ExpectedAPY,
		ContractAddress: intent.To.ContractAddress,
		Call:            depositCall,
	})
	if err != nil {
		return e.fail(log, exec, yield.NewExecutionError("deposit", wtx.TxHash, wtx.ChainID, err))
	}
	exec.DepositTx = &dtx

	exec.Status = yield.StatusCompleted
	finished := e.now()
	exec.FinishedAt = &finished
	metrics.ExecutionsTotal.WithLabelValues(string(exec.Status)).Inc()
	e.notify(exec)
	log.Info("execution completed", "withdraw_tx", wtx.TxHash, "deposit_tx", dtx.TxHash)
	return exec, nil
}

func (e *Executor) checkBalance(ctx context.Context, intent yield.Intent, address string) error {
	amount, _ := yield.ParseAmount(intent.From.Amount)
	held, err := e.source.FetchPositions(ctx, address)
	if err != nil {
		return err
	}
	available := "0.00"
	for _, p := range held {
		if p.Key() != intent.From.PositionID {
			continue
		}
		principal, err := yield.ParseAmount(p.DepositedAmount)
		if err != nil {
			return err
		}
		if !amount.GreaterThan(principal) {
			return nil
		}
		available = principal.StringFixed(2)
	}
	return yield.NewInsufficientBalanceError(intent.From.Token, amount.StringFixed(2), available)
}

func (e *Executor) fail(log *slog.Logger, exec Execution, err error) (Execution, error) {
	exec.Status = yield.StatusFailed
	exec.Error = err.Error()
	finished := e.now()
	exec.FinishedAt = &finished
	metrics.ExecutionsTotal.WithLabelValues(string(exec.Status)).Inc()
	e.notify(exec)
	log.Error("execution failed", "error", err)
	return exec, err
}

func (e *Executor) notify(exec Execution) {
	if e.observer != nil {
		e.observer(exec)
	}
}

func buildCall(p yield.Protocol, req protocol.Request, deposit bool) (protocol.Call, error) {
	a, err := protocol.AdapterFor(p)
	if err != nil {
		return protocol.Call{}, err
	}
	if deposit {
		return a.BuildDeposit(req)
	}
	return a.BuildWithdraw(req)
}
