package strategy

import (
	"math/big"
	"time"

	"github.com/sentinelmarkets/sentinel-keeper/internal/domain"
)

// StopLoss triggers when the oracle price falls to or below the target.
type StopLoss struct{}

// Name implements Strategy.
func (StopLoss) Name() string { return "stop_loss" }

// ShouldExecute reports readiness when current_price <= target_price and the
// deadline has not passed. The comparison is exact big.Int arithmetic at the
// oracle's fixed-point scale.
func (StopLoss) ShouldExecute(order domain.Order, currentPrice *big.Int, now time.Time) bool {
	if order.Expired(now) {
		return false
	}
	if currentPrice == nil || order.Trigger.TargetPrice == nil {
		return false
	}
	return currentPrice.Cmp(order.Trigger.TargetPrice) <= 0
}
