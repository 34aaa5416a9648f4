// Package domain defines the chain-agnostic types shared across the keeper:
// the on-chain order model, the chain client contract, execution records, and
// the error taxonomy. Implementations live in internal/chain, internal/store,
// and internal/cache.
package domain

import (
	"math/big"
	"time"
)

// PriceScale is the fixed-point scale used for all prices (target and oracle).
// A price of 2000.5 is represented as 2000.5 * 1e18. Comparisons are exact
// integer arithmetic; prices must never pass through a float.
var PriceScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// OrderKind mirrors the on-chain order-type enum.
type OrderKind uint8

const (
	KindStopLoss OrderKind = iota
	KindTakeProfit
	KindTWAP
)

// String returns the lowercase name used in logs and metrics labels.
func (k OrderKind) String() string {
	switch k {
	case KindStopLoss:
		return "stop_loss"
	case KindTakeProfit:
		return "take_profit"
	case KindTWAP:
		return "twap"
	default:
		return "unknown"
	}
}

// OrderState mirrors the on-chain order-state enum. Transitions are monotonic:
// Open is the only non-terminal state.
type OrderState uint8

const (
	StateOpen OrderState = iota
	StateExecuted
	StateCancelled
	StateExpired
)

func (s OrderState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateExecuted:
		return "executed"
	case StateCancelled:
		return "cancelled"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state admits no further transitions.
func (s OrderState) Terminal() bool {
	return s != StateOpen
}

// Trigger holds the conditions under which an order becomes executable.
type Trigger struct {
	// Oracle is the address of the price source (aggregator contract on EVM,
	// price account on SVM).
	Oracle string
	// TargetPrice is the trigger price at PriceScale. For TWAP orders a zero
	// target means no price condition.
	TargetPrice *big.Int
	// Deadline is the absolute expiry timestamp on the chain clock.
	Deadline time.Time
}

// Execution holds the swap parameters for an order.
type Execution struct {
	InputToken      string
	OutputToken     string
	InputAmount     *big.Int
	MinOutputAmount *big.Int
	SlippageBps     uint16
}

// Order is a read snapshot of an on-chain order. The canonical copy lives
// on-chain; the keeper never mutates these fields locally. State changes are
// only observed by re-reading the chain.
type Order struct {
	ID        uint64
	Owner     string
	Kind      OrderKind
	State     OrderState
	Trigger   Trigger
	Execution Execution
	CreatedAt time.Time
}

// Expired reports whether the order's deadline has passed at the given chain
// time. Expired orders are never dispatched for execution, regardless of
// price.
func (o Order) Expired(now time.Time) bool {
	return !o.Trigger.Deadline.IsZero() && now.After(o.Trigger.Deadline)
}
