package domain

import (
	"context"
	"math/big"
	"time"
)

// ExecutionStatus is the terminal outcome of one execution attempt.
type ExecutionStatus string

const (
	ExecConfirmed ExecutionStatus = "confirmed"
	ExecFailed    ExecutionStatus = "failed"
	ExecTimedOut  ExecutionStatus = "timed_out"
)

// ExecutionRecord captures the terminal outcome of a coordinator run. Records
// are emitted for observability and optionally persisted through an
// ExecutionStore.
type ExecutionRecord struct {
	ID           string // attempt uuid
	OrderID      uint64
	OrderKind    OrderKind
	Chain        string
	Keeper       string // executing account address
	TxHash       TxHandle
	Status       ExecutionStatus
	Attempts     int // submission attempts, including fee escalations
	ResourceUsed uint64
	AmountOut    *big.Int
	PriceAtExec  *big.Int // oracle price observed at dispatch, PriceScale
	Reason       string   // failure reason when Status != confirmed
	SubmittedAt  time.Time
	CompletedAt  time.Time
}

// ExecutionStore persists execution records. Implementations must be safe for
// concurrent use by multiple coordinators.
type ExecutionStore interface {
	Insert(ctx context.Context, rec ExecutionRecord) error
	// RecentByOrder returns up to limit records for an order, newest first.
	RecentByOrder(ctx context.Context, orderID uint64, limit int) ([]ExecutionRecord, error)
}
