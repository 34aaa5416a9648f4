package svm

import (
	"encoding/binary"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/sentinelmarkets/sentinel-keeper/internal/domain"
)

// buildOrderAccount assembles raw order account bytes with the given fields.
func buildOrderAccount(t *testing.T, orderID uint64, kind, state byte, target *big.Int, deadline int64) []byte {
	t.Helper()
	data := make([]byte, orderAccountSize)
	copy(data, orderDiscriminator[:])

	for i := 0; i < 32; i++ {
		data[offVault+i] = 0x11
		data[offOwner+i] = 0x22
		data[offOracle+i] = 0x33
		data[offInputMint+i] = 0x44
		data[offOutputMint+i] = 0x55
	}

	binary.LittleEndian.PutUint64(data[offOrderID:], orderID)
	data[offKind] = kind
	data[offState] = state

	tb := target.Bytes()
	if len(tb) > 16 {
		t.Fatalf("target price does not fit u128")
	}
	for i, b := range tb {
		data[offTarget+len(tb)-1-i] = b
	}

	binary.LittleEndian.PutUint64(data[offDeadline:], uint64(deadline))
	binary.LittleEndian.PutUint64(data[offInputAmt:], 1_000_000)
	binary.LittleEndian.PutUint64(data[offMinOutAmt:], 990_000)
	binary.LittleEndian.PutUint16(data[offSlippage:], 100)
	binary.LittleEndian.PutUint64(data[offCreatedAt:], uint64(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC).Unix()))
	return data
}

func TestDecodeOrderAccount(t *testing.T) {
	target := new(big.Int).Mul(big.NewInt(2_000), domain.PriceScale)
	deadline := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	data := buildOrderAccount(t, 42, byte(domain.KindTakeProfit), byte(domain.StateOpen), target, deadline.Unix())

	order, err := decodeOrderAccount(data)
	if err != nil {
		t.Fatalf("decodeOrderAccount() error: %v", err)
	}

	if order.ID != 42 {
		t.Errorf("ID = %d, want 42", order.ID)
	}
	if order.Kind != domain.KindTakeProfit {
		t.Errorf("Kind = %s, want take_profit", order.Kind)
	}
	if order.State != domain.StateOpen {
		t.Errorf("State = %s, want open", order.State)
	}
	if order.Trigger.TargetPrice.Cmp(target) != 0 {
		t.Errorf("TargetPrice = %s, want %s", order.Trigger.TargetPrice, target)
	}
	if !order.Trigger.Deadline.Equal(deadline) {
		t.Errorf("Deadline = %s, want %s", order.Trigger.Deadline, deadline)
	}
	if order.Execution.InputAmount.Int64() != 1_000_000 {
		t.Errorf("InputAmount = %s, want 1000000", order.Execution.InputAmount)
	}
	if order.Execution.SlippageBps != 100 {
		t.Errorf("SlippageBps = %d, want 100", order.Execution.SlippageBps)
	}
}

func TestDecodeOrderAccountZeroDeadline(t *testing.T) {
	data := buildOrderAccount(t, 7, byte(domain.KindStopLoss), byte(domain.StateOpen), big.NewInt(1), 0)

	order, err := decodeOrderAccount(data)
	if err != nil {
		t.Fatalf("decodeOrderAccount() error: %v", err)
	}
	if !order.Trigger.Deadline.IsZero() {
		t.Errorf("Deadline = %s, want zero time for no deadline", order.Trigger.Deadline)
	}
	if order.Expired(time.Now().Add(100 * 365 * 24 * time.Hour)) {
		t.Error("order without deadline must never expire")
	}
}

func TestDecodeOrderAccountRejectsWrongDiscriminator(t *testing.T) {
	data := buildOrderAccount(t, 1, 0, 0, big.NewInt(1), 0)
	copy(data, vaultDiscriminator[:])

	if _, err := decodeOrderAccount(data); err == nil {
		t.Error("expected an error for a non-order discriminator")
	}
}

func buildOracleAccount(price int64, expo int32, publishTime int64) []byte {
	data := make([]byte, oracleAccountSize)
	binary.LittleEndian.PutUint64(data[0:], uint64(price))
	binary.LittleEndian.PutUint32(data[8:], uint32(expo))
	binary.LittleEndian.PutUint64(data[20:], uint64(publishTime))
	return data
}

func TestDecodeOracleAccountNormalizesTo1e18(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		price int64
		expo  int32
		want  *big.Int
	}{
		// 2000.50 with expo -2 -> 2000.5 * 1e18
		{"negative expo", 200_050, -2, new(big.Int).Mul(big.NewInt(200_050), exp10(16))},
		// whole number with expo 0
		{"zero expo", 7, 0, new(big.Int).Mul(big.NewInt(7), exp10(18))},
		// 1234 with expo -8 (typical oracle scale)
		{"expo -8", 123_400_000_000, -8, new(big.Int).Mul(big.NewInt(1_234), exp10(18))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := buildOracleAccount(tt.price, tt.expo, now.Add(-time.Minute).Unix())
			got, err := decodeOracleAccount(data, now, time.Hour)
			if err != nil {
				t.Fatalf("decodeOracleAccount() error: %v", err)
			}
			if got.Cmp(tt.want) != 0 {
				t.Errorf("price = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDecodeOracleAccountRejectsStaleAndNonPositive(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	stale := buildOracleAccount(100, -2, now.Add(-2*time.Hour).Unix())
	if _, err := decodeOracleAccount(stale, now, time.Hour); !errors.Is(err, domain.ErrPriceUnavailable) {
		t.Errorf("stale quote error = %v, want ErrPriceUnavailable", err)
	}

	negative := buildOracleAccount(-5, -2, now.Unix())
	if _, err := decodeOracleAccount(negative, now, time.Hour); !errors.Is(err, domain.ErrPriceUnavailable) {
		t.Errorf("negative quote error = %v, want ErrPriceUnavailable", err)
	}

	zero := buildOracleAccount(0, -2, now.Unix())
	if _, err := decodeOracleAccount(zero, now, time.Hour); !errors.Is(err, domain.ErrPriceUnavailable) {
		t.Errorf("zero quote error = %v, want ErrPriceUnavailable", err)
	}
}

func exp10(n int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil)
}
