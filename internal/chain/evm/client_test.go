package evm

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/sentinelmarkets/sentinel-keeper/internal/domain"
)

func TestScaleTo1e18(t *testing.T) {
	tests := []struct {
		name     string
		answer   *big.Int
		decimals uint8
		want     *big.Int
	}{
		// Chainlink USD feeds report 8 decimals: 2000.50 -> 200050000000.
		{"8 decimals", big.NewInt(200_050_000_000), 8, mustBig("2000500000000000000000")},
		{"18 decimals passthrough", mustBig("1500000000000000000"), 18, mustBig("1500000000000000000")},
		{"0 decimals", big.NewInt(3), 0, mustBig("3000000000000000000")},
		{"20 decimals scales down", mustBig("150000000000000000000"), 20, mustBig("1500000000000000000")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scaleTo1e18(tt.answer, tt.decimals); got.Cmp(tt.want) != 0 {
				t.Errorf("scaleTo1e18(%s, %d) = %s, want %s", tt.answer, tt.decimals, got, tt.want)
			}
		})
	}
}

func mustBig(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad big int literal " + s)
	}
	return v
}

func TestToDomainOrderDeadlines(t *testing.T) {
	vo := sampleVaultOrder()
	vo.Trigger.Deadline = big.NewInt(0)

	order := toDomainOrder(vo)
	if !order.Trigger.Deadline.IsZero() {
		t.Errorf("zero on-chain deadline mapped to %s, want zero time", order.Trigger.Deadline)
	}
	if order.Expired(time.Now()) {
		t.Error("order without deadline must not be expired")
	}

	when := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	vo.Trigger.Deadline = big.NewInt(when.Unix())
	order = toDomainOrder(vo)
	if !order.Trigger.Deadline.Equal(when) {
		t.Errorf("deadline = %s, want %s", order.Trigger.Deadline, when)
	}
}

func TestToDomainOrderFields(t *testing.T) {
	vo := sampleVaultOrder()
	order := toDomainOrder(vo)

	if order.ID != 42 {
		t.Errorf("ID = %d, want 42", order.ID)
	}
	if order.Trigger.TargetPrice.Cmp(mustBig("2000000000000000000000")) != 0 {
		t.Errorf("TargetPrice = %s", order.Trigger.TargetPrice)
	}
	if order.Execution.SlippageBps != 50 {
		t.Errorf("SlippageBps = %d, want 50", order.Execution.SlippageBps)
	}
}

func sampleVaultOrder() vaultOrder {
	vo := vaultOrder{
		Id:        big.NewInt(42),
		Owner:     common.HexToAddress("0x01"),
		Kind:      1,
		State:     0,
		CreatedAt: big.NewInt(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC).Unix()),
	}
	vo.Trigger.Oracle = common.HexToAddress("0x02")
	vo.Trigger.TargetPrice = mustBig("2000000000000000000000")
	vo.Trigger.Deadline = big.NewInt(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC).Unix())
	vo.Execution.InputToken = common.HexToAddress("0x03")
	vo.Execution.OutputToken = common.HexToAddress("0x04")
	vo.Execution.InputAmount = big.NewInt(1_000_000)
	vo.Execution.MinOutputAmount = big.NewInt(990_000)
	vo.Execution.SlippageBps = big.NewInt(50)
	return vo
}

func TestSubmitErrorClassification(t *testing.T) {
	tests := []struct {
		msg         string
		underpriced bool
		nonce       bool
		revert      bool
	}{
		{"replacement transaction underpriced", true, false, false},
		{"max fee per gas less than block base fee", true, false, false},
		{"nonce too low", false, true, false},
		{"execution reverted: order not executable", false, false, true},
		{"connection refused", false, false, false},
	}
	for _, tt := range tests {
		err := errors.New(tt.msg)
		if got := isUnderpriced(err); got != tt.underpriced {
			t.Errorf("isUnderpriced(%q) = %v, want %v", tt.msg, got, tt.underpriced)
		}
		if got := isNonceError(err); got != tt.nonce {
			t.Errorf("isNonceError(%q) = %v, want %v", tt.msg, got, tt.nonce)
		}
		if got := isRevert(err); got != tt.revert {
			t.Errorf("isRevert(%q) = %v, want %v", tt.msg, got, tt.revert)
		}
	}
}

func TestReceiptConversionSkipsTopiclessLogs(t *testing.T) {
	c := &Client{}
	receipt := &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		BlockNumber: big.NewInt(123),
		GasUsed:     21_000,
		Logs: []*types.Log{
			{Topics: nil}, // LOG0, no event signature
			{Topics: []common.Hash{common.HexToHash("0xabc")}},
		},
	}

	rec, err := c.toDomainReceipt("0xhash", receipt)
	if err != nil {
		t.Fatalf("toDomainReceipt() error: %v", err)
	}
	if !rec.Success {
		t.Error("Success = false, want true")
	}
	if rec.BlockNumber != 123 || rec.ResourceUsed != 21_000 {
		t.Errorf("block = %d, gas = %d", rec.BlockNumber, rec.ResourceUsed)
	}
	if len(rec.Logs) != 1 {
		t.Fatalf("Logs = %v, want the one topicful entry", rec.Logs)
	}
}

func TestReceiptConversionRevertedTx(t *testing.T) {
	c := &Client{}
	receipt := &types.Receipt{
		Status:      types.ReceiptStatusFailed,
		BlockNumber: big.NewInt(7),
	}

	rec, err := c.toDomainReceipt("0xhash", receipt)
	if !errors.Is(err, domain.ErrTxFailed) {
		t.Fatalf("error = %v, want ErrTxFailed", err)
	}
	if rec.Success {
		t.Error("Success = true for a reverted transaction")
	}
}

func TestVaultABIPacksExecuteOrder(t *testing.T) {
	data, err := vaultABI.Pack("executeOrder", big.NewInt(7))
	if err != nil {
		t.Fatalf("Pack(executeOrder) error: %v", err)
	}
	// 4-byte selector plus one uint256 argument.
	if len(data) != 36 {
		t.Errorf("packed call is %d bytes, want 36", len(data))
	}
}
