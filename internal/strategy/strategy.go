// Package strategy implements the trigger-evaluation strategies that decide
// whether an open order is ready to execute at the current oracle price. One
// variant exists per order kind; selection is a pure dispatch table so the
// scheduler can evaluate many orders concurrently without shared state.
package strategy

import (
	"fmt"
	"math/big"
	"time"

	"github.com/sentinelmarkets/sentinel-keeper/internal/domain"
)

// Strategy decides readiness for one order kind. Implementations are
// stateless and safe for concurrent use.
type Strategy interface {
	Name() string
	// ShouldExecute reports whether the order is ready at the given oracle
	// price (domain.PriceScale) and chain time. Every variant refuses
	// readiness once the deadline has passed: expiry takes precedence over
	// any price condition.
	ShouldExecute(order domain.Order, currentPrice *big.Int, now time.Time) bool
}

// Table maps order kinds to their strategy variant. New kinds require a new
// variant and a table entry; there is no runtime type inspection.
type Table struct {
	byKind map[domain.OrderKind]Strategy
}

// NewTable builds the dispatch table. twap configures the time-slicing policy
// for TWAP orders.
func NewTable(twap TWAPConfig) *Table {
	return &Table{
		byKind: map[domain.OrderKind]Strategy{
			domain.KindStopLoss:   StopLoss{},
			domain.KindTakeProfit: TakeProfit{},
			domain.KindTWAP:       NewTWAP(twap),
		},
	}
}

// ForKind returns the strategy for the given order kind.
func (t *Table) ForKind(kind domain.OrderKind) (Strategy, error) {
	s, ok := t.byKind[kind]
	if !ok {
		return nil, fmt.Errorf("strategy: no variant for order kind %d", kind)
	}
	return s, nil
}
