package strategy

import (
	"math/big"
	"testing"
	"time"

	"github.com/sentinelmarkets/sentinel-keeper/internal/domain"
)

// scale converts a whole-number price to 1e18 fixed point.
func scale(v int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(v), domain.PriceScale)
}

func priceOrder(kind domain.OrderKind, target *big.Int, deadline time.Time) domain.Order {
	return domain.Order{
		ID:    1,
		Kind:  kind,
		State: domain.StateOpen,
		Trigger: domain.Trigger{
			Oracle:      "oracle-a",
			TargetPrice: target,
			Deadline:    deadline,
		},
	}
}

func TestStopLossTrigger(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)

	tests := []struct {
		name     string
		price    *big.Int
		target   *big.Int
		deadline time.Time
		want     bool
	}{
		{"price above target", scale(2_100), scale(2_000), future, false},
		{"price exactly at target", scale(2_000), scale(2_000), future, true},
		{"price below target", scale(1_999), scale(2_000), future, true},
		{"one wei above target", new(big.Int).Add(scale(2_000), big.NewInt(1)), scale(2_000), future, false},
		{"expired despite trigger", scale(1_500), scale(2_000), now.Add(-time.Second), false},
		{"no deadline", scale(1_500), scale(2_000), time.Time{}, true},
		{"missing price", nil, scale(2_000), future, false},
	}

	var s StopLoss
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := priceOrder(domain.KindStopLoss, tt.target, tt.deadline)
			if got := s.ShouldExecute(order, tt.price, now); got != tt.want {
				t.Errorf("ShouldExecute() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTakeProfitTrigger(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)

	tests := []struct {
		name   string
		price  *big.Int
		target *big.Int
		want   bool
	}{
		{"price below target", scale(2_900), scale(3_000), false},
		{"price exactly at target", scale(3_000), scale(3_000), true},
		{"price above target", scale(3_001), scale(3_000), true},
		{"one wei below target", new(big.Int).Sub(scale(3_000), big.NewInt(1)), scale(3_000), false},
	}

	var s TakeProfit
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := priceOrder(domain.KindTakeProfit, tt.target, future)
			if got := s.ShouldExecute(order, tt.price, now); got != tt.want {
				t.Errorf("ShouldExecute() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTakeProfitExpiryPrecedence(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	order := priceOrder(domain.KindTakeProfit, scale(3_000), now.Add(-time.Minute))

	var s TakeProfit
	if s.ShouldExecute(order, scale(5_000), now) {
		t.Error("expired order must not trigger even with the price condition met")
	}
}

func TestTWAPSliceSchedule(t *testing.T) {
	created := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	deadline := created.Add(4 * time.Hour) // 4 slices of 1h each

	order := domain.Order{
		ID:        2,
		Kind:      domain.KindTWAP,
		State:     domain.StateOpen,
		CreatedAt: created,
		Trigger: domain.Trigger{
			TargetPrice: big.NewInt(0), // no price floor
			Deadline:    deadline,
		},
	}

	s := NewTWAP(TWAPConfig{Slices: 4})

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"before first boundary", created.Add(30 * time.Minute), false},
		{"just before first boundary", created.Add(time.Hour - time.Second), false},
		{"at first boundary", created.Add(time.Hour), true},
		{"mid window", created.Add(2*time.Hour + 30*time.Minute), true},
		{"past deadline", deadline.Add(time.Second), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.ShouldExecute(order, nil, tt.now); got != tt.want {
				t.Errorf("ShouldExecute(now=%s) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestTWAPPriceFloor(t *testing.T) {
	created := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	deadline := created.Add(4 * time.Hour)
	now := created.Add(2 * time.Hour)

	order := domain.Order{
		ID:        3,
		Kind:      domain.KindTWAP,
		State:     domain.StateOpen,
		CreatedAt: created,
		Trigger: domain.Trigger{
			TargetPrice: scale(2_000),
			Deadline:    deadline,
		},
	}

	s := NewTWAP(TWAPConfig{Slices: 4})

	if s.ShouldExecute(order, scale(1_999), now) {
		t.Error("slice due but price below floor must not trigger")
	}
	if !s.ShouldExecute(order, scale(2_000), now) {
		t.Error("slice due with price at floor must trigger")
	}
	if s.ShouldExecute(order, nil, now) {
		t.Error("slice due with no price and a floor set must not trigger")
	}
}

func TestTableForKind(t *testing.T) {
	table := NewTable(TWAPConfig{Slices: 4})

	for _, kind := range []domain.OrderKind{domain.KindStopLoss, domain.KindTakeProfit, domain.KindTWAP} {
		strat, err := table.ForKind(kind)
		if err != nil {
			t.Fatalf("ForKind(%s) returned error: %v", kind, err)
		}
		if strat.Name() != kind.String() {
			t.Errorf("ForKind(%s).Name() = %s, want %s", kind, strat.Name(), kind)
		}
	}

	if _, err := table.ForKind(domain.OrderKind(99)); err == nil {
		t.Error("ForKind(unknown) should return an error")
	}
}
