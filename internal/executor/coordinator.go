// Package executor drives the transaction lifecycle for ready orders. Each
// execution attempt runs in its own Coordinator state machine; the Dispatcher
// bounds concurrency and guarantees at most one active coordinator per order
// id through the Arena.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/sentinelmarkets/sentinel-keeper/internal/domain"
)

// State is a coordinator lifecycle state.
type State string

const (
	StateReady      State = "ready"
	StateBuilding   State = "building"
	StateSubmitted  State = "submitted"
	StateConfirming State = "confirming"
	StateConfirmed  State = "confirmed"
	StateFailed     State = "failed"
	StateTimedOut   State = "timed_out"
)

// validTransitions defines the allowed lifecycle edges. Confirming loops back
// to Submitted on a fee-escalation resubmit.
var validTransitions = map[State][]State{
	StateReady:      {StateBuilding},
	StateBuilding:   {StateSubmitted, StateFailed},
	StateSubmitted:  {StateConfirming, StateSubmitted, StateFailed},
	StateConfirming: {StateConfirmed, StateFailed, StateTimedOut, StateSubmitted},
}

// canTransition reports whether from → to is an allowed edge.
func canTransition(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Policy holds the coordinator's retry and fee-escalation parameters.
type Policy struct {
	// ConfirmTimeout bounds each confirmation wait.
	ConfirmTimeout time.Duration
	// MaxAttempts caps submissions per trigger event, including the first.
	MaxAttempts int
	// FeeBumpBps is the escalation step applied to the previous fee on each
	// resubmit, in basis points (1250 = +12.5%).
	FeeBumpBps int64
	// MaxGasPriceWei caps EVM gas price escalation. Nil disables the ceiling.
	MaxGasPriceWei *big.Int
	// MaxPriorityFeeMicroLamports caps SVM priority-fee escalation. Zero
	// disables the ceiling.
	MaxPriorityFeeMicroLamports uint64
}

// DefaultPolicy mirrors the configuration defaults.
func DefaultPolicy() Policy {
	return Policy{
		ConfirmTimeout: 60 * time.Second,
		MaxAttempts:    3,
		FeeBumpBps:     1250,
	}
}

// Coordinator executes exactly one order once. It is single-use: Run may be
// called once, and the struct holds only attempt-local state that is
// discarded afterwards.
type Coordinator struct {
	client domain.ChainClient
	vault  string
	order  domain.Order
	price  *big.Int // oracle price observed at dispatch
	policy Policy
	logger *slog.Logger

	state    State
	attempts int
}

// NewCoordinator prepares a coordinator for one execution attempt of the
// given order. price is the oracle price that made the order ready.
func NewCoordinator(client domain.ChainClient, vault string, order domain.Order, price *big.Int, policy Policy, logger *slog.Logger) *Coordinator {
	if policy.ConfirmTimeout <= 0 {
		policy.ConfirmTimeout = DefaultPolicy().ConfirmTimeout
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultPolicy().MaxAttempts
	}
	if policy.FeeBumpBps <= 0 {
		policy.FeeBumpBps = DefaultPolicy().FeeBumpBps
	}
	return &Coordinator{
		client: client,
		vault:  vault,
		order:  order,
		price:  price,
		policy: policy,
		state:  StateReady,
		logger: logger.With(
			slog.String("component", "coordinator"),
			slog.Uint64("order_id", order.ID),
			slog.String("kind", order.Kind.String()),
		),
	}
}

// State returns the coordinator's current state.
func (c *Coordinator) State() State {
	return c.state
}

func (c *Coordinator) transition(to State) {
	if !canTransition(c.state, to) {
		// Invariant violation in our own sequencing; keep going but shout.
		c.logger.Error("invalid coordinator transition",
			slog.String("from", string(c.state)),
			slog.String("to", string(to)),
		)
	}
	c.state = to
}

// Run drives the order to a terminal outcome and returns its execution
// record. When ctx is cancelled mid-confirmation the on-chain outcome is
// unknown: Run returns the context error with ok=false and no terminal
// record is produced; resolution defers to the next poll cycle.
func (c *Coordinator) Run(ctx context.Context) (rec domain.ExecutionRecord, ok bool, err error) {
	rec = domain.ExecutionRecord{
		ID:          uuid.New().String(),
		OrderID:     c.order.ID,
		OrderKind:   c.order.Kind,
		Chain:       c.client.ChainName(),
		Keeper:      c.client.KeeperAddress(),
		PriceAtExec: c.price,
		SubmittedAt: time.Now().UTC(),
	}

	// BUILDING: compute the execution call and cost it. A failure here means
	// the order is not actually executable (e.g. simulated revert); that is
	// a local, unretried failure.
	c.transition(StateBuilding)
	req, err := c.client.BuildExecution(ctx, c.vault, c.order.ID)
	if err != nil {
		return c.fail(rec, fmt.Errorf("build execution: %w", err)), true, nil
	}
	if _, err := c.client.EstimateCost(ctx, req); err != nil {
		return c.fail(rec, fmt.Errorf("estimate: %w", err)), true, nil
	}

	fee, err := c.client.SuggestFee(ctx)
	if err != nil {
		return c.fail(rec, fmt.Errorf("suggest fee: %w", err)), true, nil
	}

	for {
		c.attempts++
		rec.Attempts = c.attempts

		c.transition(StateSubmitted)
		handle, err := c.client.ExecuteOrder(ctx, c.vault, c.order.ID, fee)
		if err != nil {
			if ctx.Err() != nil {
				return rec, false, ctx.Err()
			}
			if errors.Is(err, domain.ErrFeeTooLow) {
				if next, escErr := c.escalate(fee); escErr != nil {
					return c.fail(rec, escErr), true, nil
				} else if c.attempts < c.policy.MaxAttempts {
					c.logger.Warn("submission rejected for low fee, escalating",
						slog.Int("attempt", c.attempts),
					)
					fee = next
					continue
				}
				return c.fail(rec, fmt.Errorf("retry cap reached: %w", err)), true, nil
			}
			return c.fail(rec, fmt.Errorf("submit: %w", err)), true, nil
		}
		rec.TxHash = handle
		c.logger.Info("transaction submitted",
			slog.String("tx", string(handle)),
			slog.Int("attempt", c.attempts),
		)

		c.transition(StateConfirming)
		receipt, err := c.client.WaitForTransaction(ctx, handle, c.policy.ConfirmTimeout)
		switch {
		case err == nil:
			c.transition(StateConfirmed)
			rec.Status = domain.ExecConfirmed
			rec.ResourceUsed = receipt.ResourceUsed
			rec.AmountOut = receipt.AmountOut
			rec.CompletedAt = time.Now().UTC()
			c.logger.Info("order executed",
				slog.String("tx", string(handle)),
				slog.Uint64("resource_used", receipt.ResourceUsed),
			)
			return rec, true, nil

		case ctx.Err() != nil:
			// Cancelled wait: on-chain state unknown, not a failure.
			return rec, false, ctx.Err()

		case errors.Is(err, domain.ErrTxTimeout):
			c.transition(StateTimedOut)
			rec.Status = domain.ExecTimedOut
			rec.Reason = err.Error()
			rec.CompletedAt = time.Now().UTC()
			c.logger.Warn("confirmation timed out, deferring to next cycle",
				slog.String("tx", string(handle)),
			)
			return rec, true, nil

		case errors.Is(err, domain.ErrFeeTooLow):
			// Unlikely to be included at this fee: replace-and-resubmit.
			if next, escErr := c.escalate(fee); escErr != nil {
				return c.fail(rec, escErr), true, nil
			} else if c.attempts < c.policy.MaxAttempts {
				c.logger.Warn("fee too low for inclusion, escalating",
					slog.Int("attempt", c.attempts),
				)
				fee = next
				continue
			}
			return c.fail(rec, fmt.Errorf("retry cap reached: %w", err)), true, nil

		default:
			return c.fail(rec, err), true, nil
		}
	}
}

// fail moves the coordinator to FAILED and finalizes the record.
func (c *Coordinator) fail(rec domain.ExecutionRecord, err error) domain.ExecutionRecord {
	c.transition(StateFailed)
	rec.Status = domain.ExecFailed
	rec.Reason = err.Error()
	rec.CompletedAt = time.Now().UTC()
	c.logger.Error("execution failed",
		slog.Int("attempts", c.attempts),
		slog.String("error", err.Error()),
	)
	return rec
}

// escalate returns the fee bumped by FeeBumpBps, enforcing the configured
// ceilings. It returns domain.ErrFeeCeiling (wrapped) when the bumped fee
// would exceed a ceiling.
func (c *Coordinator) escalate(fee domain.FeeOverride) (domain.FeeOverride, error) {
	bump := big.NewInt(10000 + c.policy.FeeBumpBps)

	next := fee
	if fee.GasPriceWei != nil {
		gp := new(big.Int).Mul(fee.GasPriceWei, bump)
		gp.Div(gp, big.NewInt(10000))
		if c.policy.MaxGasPriceWei != nil && gp.Cmp(c.policy.MaxGasPriceWei) > 0 {
			return fee, fmt.Errorf("gas price %s: %w", gp, domain.ErrFeeCeiling)
		}
		next.GasPriceWei = gp
	}
	if fee.PriorityFeeMicroLamports > 0 {
		pf := fee.PriorityFeeMicroLamports * uint64(10000+c.policy.FeeBumpBps) / 10000
		if c.policy.MaxPriorityFeeMicroLamports > 0 && pf > c.policy.MaxPriorityFeeMicroLamports {
			return fee, fmt.Errorf("priority fee %d: %w", pf, domain.ErrFeeCeiling)
		}
		next.PriorityFeeMicroLamports = pf
	}
	return next, nil
}
