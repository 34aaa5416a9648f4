package strategy

import (
	"math/big"
	"time"

	"github.com/sentinelmarkets/sentinel-keeper/internal/domain"
)

// TWAPConfig is the slicing policy for TWAP orders. The execution window
// (created_at to deadline) is divided into Slices equal intervals; one
// execution is due each time a slice boundary is crossed. The policy is a
// configuration input, not a property of the on-chain order.
type TWAPConfig struct {
	// Slices is the number of equal time slices in the order's window.
	Slices int
}

// DefaultTWAPSlices is used when the configured slice count is not positive.
const DefaultTWAPSlices = 4

// TWAP triggers on a time schedule rather than a price level. A non-zero
// target price acts as a floor: the slice is skipped while the oracle price
// is below it.
type TWAP struct {
	slices int64
}

// NewTWAP builds a TWAP strategy from the given policy.
func NewTWAP(cfg TWAPConfig) TWAP {
	n := int64(cfg.Slices)
	if n <= 0 {
		n = DefaultTWAPSlices
	}
	return TWAP{slices: n}
}

// Name implements Strategy.
func (TWAP) Name() string { return "twap" }

// ShouldExecute reports readiness when at least one slice boundary of the
// order's window has been crossed and any price floor holds. Expiry takes
// precedence: past-deadline orders are never ready even mid-slice.
func (t TWAP) ShouldExecute(order domain.Order, currentPrice *big.Int, now time.Time) bool {
	if order.Expired(now) {
		return false
	}

	window := order.Trigger.Deadline.Sub(order.CreatedAt)
	if window <= 0 {
		return false
	}
	sliceDur := window / time.Duration(t.slices)
	if sliceDur <= 0 {
		return false
	}
	if now.Sub(order.CreatedAt) < sliceDur {
		// First boundary not reached yet.
		return false
	}

	// Optional price floor.
	if tp := order.Trigger.TargetPrice; tp != nil && tp.Sign() > 0 {
		if currentPrice == nil || currentPrice.Cmp(tp) < 0 {
			return false
		}
	}
	return true
}
