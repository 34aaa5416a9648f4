package strategy

import (
	"math/big"
	"time"

	"github.com/sentinelmarkets/sentinel-keeper/internal/domain"
)

// TakeProfit triggers when the oracle price rises to or above the target.
type TakeProfit struct{}

// Name implements Strategy.
func (TakeProfit) Name() string { return "take_profit" }

// ShouldExecute reports readiness when current_price >= target_price and the
// deadline has not passed.
func (TakeProfit) ShouldExecute(order domain.Order, currentPrice *big.Int, now time.Time) bool {
	if order.Expired(now) {
		return false
	}
	if currentPrice == nil || order.Trigger.TargetPrice == nil {
		return false
	}
	return currentPrice.Cmp(order.Trigger.TargetPrice) >= 0
}
