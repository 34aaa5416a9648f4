package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/sentinelmarkets/sentinel-keeper/internal/domain"
)

// fakeClient is a scriptable domain.ChainClient for coordinator tests. Only
// the function fields a test sets are exercised; the rest return zero values.
type fakeClient struct {
	buildFn    func(ctx context.Context, vault string, orderID uint64) (domain.TxRequest, error)
	estimateFn func(ctx context.Context, req domain.TxRequest) (uint64, error)
	suggestFn  func(ctx context.Context) (domain.FeeOverride, error)
	executeFn  func(ctx context.Context, vault string, orderID uint64, fee domain.FeeOverride) (domain.TxHandle, error)
	waitFn     func(ctx context.Context, h domain.TxHandle, timeout time.Duration) (domain.Receipt, error)

	executeCalls []domain.FeeOverride
}

func (f *fakeClient) Connect(context.Context) error    { return nil }
func (f *fakeClient) Disconnect(context.Context) error { return nil }
func (f *fakeClient) IsConnected(context.Context) bool { return true }
func (f *fakeClient) ChainID() string                  { return "1" }
func (f *fakeClient) ChainName() string                { return "testchain" }
func (f *fakeClient) KeeperAddress() string            { return "0xkeeper" }
func (f *fakeClient) BlockNumber(context.Context) (uint64, error) {
	return 100, nil
}
func (f *fakeClient) ChainTime(context.Context) (time.Time, error) {
	return time.Now(), nil
}

func (f *fakeClient) GetPrice(context.Context, string) (*big.Int, error) {
	return nil, domain.ErrPriceUnavailable
}
func (f *fakeClient) GetOraclePrice(context.Context, string) (*big.Int, error) {
	return nil, domain.ErrPriceUnavailable
}
func (f *fakeClient) GetActiveOrders(context.Context, string) ([]domain.Order, error) {
	return nil, nil
}
func (f *fakeClient) GetOrder(context.Context, string, uint64) (domain.Order, error) {
	return domain.Order{}, domain.ErrNotFound
}
func (f *fakeClient) GetBalance(context.Context, string, string) (domain.Balance, error) {
	return domain.Balance{}, nil
}
func (f *fakeClient) GetVaultBalance(context.Context, string, string) (domain.Balance, error) {
	return domain.Balance{}, nil
}
func (f *fakeClient) SendTransaction(context.Context, domain.TxRequest, domain.FeeOverride) (domain.TxHandle, error) {
	return "", nil
}

func (f *fakeClient) BuildExecution(ctx context.Context, vault string, orderID uint64) (domain.TxRequest, error) {
	if f.buildFn != nil {
		return f.buildFn(ctx, vault, orderID)
	}
	return domain.TxRequest{To: "0xvault"}, nil
}

func (f *fakeClient) EstimateCost(ctx context.Context, req domain.TxRequest) (uint64, error) {
	if f.estimateFn != nil {
		return f.estimateFn(ctx, req)
	}
	return 21_000, nil
}

func (f *fakeClient) SuggestFee(ctx context.Context) (domain.FeeOverride, error) {
	if f.suggestFn != nil {
		return f.suggestFn(ctx)
	}
	return domain.FeeOverride{GasPriceWei: big.NewInt(10_000)}, nil
}

func (f *fakeClient) ExecuteOrder(ctx context.Context, vault string, orderID uint64, fee domain.FeeOverride) (domain.TxHandle, error) {
	f.executeCalls = append(f.executeCalls, fee)
	if f.executeFn != nil {
		return f.executeFn(ctx, vault, orderID, fee)
	}
	return "0xtx", nil
}

func (f *fakeClient) WaitForTransaction(ctx context.Context, h domain.TxHandle, timeout time.Duration) (domain.Receipt, error) {
	if f.waitFn != nil {
		return f.waitFn(ctx, h, timeout)
	}
	return domain.Receipt{Handle: h, Success: true, ResourceUsed: 21_000}, nil
}

var _ domain.ChainClient = (*fakeClient)(nil)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOrder() domain.Order {
	return domain.Order{
		ID:   42,
		Kind: domain.KindStopLoss,
		Trigger: domain.Trigger{
			Oracle:      "0xoracle",
			TargetPrice: big.NewInt(2_000),
		},
	}
}

func TestCoordinatorConfirmsFirstAttempt(t *testing.T) {
	client := &fakeClient{}
	coord := NewCoordinator(client, "0xvault", testOrder(), big.NewInt(1_900), DefaultPolicy(), testLogger())

	rec, ok, err := coord.Run(context.Background())
	if err != nil || !ok {
		t.Fatalf("Run() = ok=%v err=%v, want terminal success", ok, err)
	}
	if rec.Status != domain.ExecConfirmed {
		t.Errorf("status = %s, want %s", rec.Status, domain.ExecConfirmed)
	}
	if rec.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", rec.Attempts)
	}
	if rec.TxHash != "0xtx" {
		t.Errorf("tx hash = %s, want 0xtx", rec.TxHash)
	}
	if coord.State() != StateConfirmed {
		t.Errorf("state = %s, want %s", coord.State(), StateConfirmed)
	}
}

func TestCoordinatorEscalatesOnUnderpricedSubmit(t *testing.T) {
	rejections := 2
	client := &fakeClient{}
	client.executeFn = func(_ context.Context, _ string, _ uint64, fee domain.FeeOverride) (domain.TxHandle, error) {
		if len(client.executeCalls) <= rejections {
			return "", domain.ErrFeeTooLow
		}
		return "0xtx", nil
	}

	coord := NewCoordinator(client, "0xvault", testOrder(), big.NewInt(1_900), DefaultPolicy(), testLogger())
	rec, ok, err := coord.Run(context.Background())
	if err != nil || !ok {
		t.Fatalf("Run() = ok=%v err=%v, want terminal success", ok, err)
	}
	if rec.Status != domain.ExecConfirmed {
		t.Fatalf("status = %s, want %s", rec.Status, domain.ExecConfirmed)
	}
	if rec.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", rec.Attempts)
	}

	// Base 10000 wei, +12.5% per rejection: 10000 -> 11250 -> 12656.
	wantFees := []int64{10_000, 11_250, 12_656}
	if len(client.executeCalls) != len(wantFees) {
		t.Fatalf("submissions = %d, want %d", len(client.executeCalls), len(wantFees))
	}
	for i, want := range wantFees {
		if got := client.executeCalls[i].GasPriceWei.Int64(); got != want {
			t.Errorf("submission %d gas price = %d, want %d", i, got, want)
		}
	}
}

func TestCoordinatorRetryCapFails(t *testing.T) {
	client := &fakeClient{}
	client.executeFn = func(context.Context, string, uint64, domain.FeeOverride) (domain.TxHandle, error) {
		return "", domain.ErrFeeTooLow
	}

	coord := NewCoordinator(client, "0xvault", testOrder(), nil, DefaultPolicy(), testLogger())
	rec, ok, err := coord.Run(context.Background())
	if err != nil || !ok {
		t.Fatalf("Run() = ok=%v err=%v, want terminal outcome", ok, err)
	}
	if rec.Status != domain.ExecFailed {
		t.Errorf("status = %s, want %s", rec.Status, domain.ExecFailed)
	}
	if rec.Attempts != 3 {
		t.Errorf("attempts = %d, want 3 (the cap)", rec.Attempts)
	}
	if !strings.Contains(rec.Reason, "retry cap") {
		t.Errorf("reason = %q, want retry cap mention", rec.Reason)
	}
}

func TestCoordinatorConfirmationTimeoutIsTerminal(t *testing.T) {
	client := &fakeClient{}
	client.waitFn = func(_ context.Context, h domain.TxHandle, _ time.Duration) (domain.Receipt, error) {
		return domain.Receipt{Handle: h}, domain.ErrTxTimeout
	}

	coord := NewCoordinator(client, "0xvault", testOrder(), nil, DefaultPolicy(), testLogger())
	rec, ok, err := coord.Run(context.Background())
	if err != nil || !ok {
		t.Fatalf("Run() = ok=%v err=%v, want terminal outcome", ok, err)
	}
	if rec.Status != domain.ExecTimedOut {
		t.Errorf("status = %s, want %s", rec.Status, domain.ExecTimedOut)
	}
	if coord.State() != StateTimedOut {
		t.Errorf("state = %s, want %s", coord.State(), StateTimedOut)
	}
}

func TestCoordinatorCancelledWaitIsNotTerminal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := &fakeClient{}
	client.waitFn = func(ctx context.Context, h domain.TxHandle, _ time.Duration) (domain.Receipt, error) {
		cancel()
		return domain.Receipt{Handle: h}, ctx.Err()
	}

	coord := NewCoordinator(client, "0xvault", testOrder(), nil, DefaultPolicy(), testLogger())
	_, ok, err := coord.Run(ctx)
	if ok {
		t.Fatal("cancelled confirmation wait must not produce a terminal record")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestCoordinatorFeeCeilingStopsEscalation(t *testing.T) {
	client := &fakeClient{}
	client.executeFn = func(context.Context, string, uint64, domain.FeeOverride) (domain.TxHandle, error) {
		return "", domain.ErrFeeTooLow
	}

	policy := DefaultPolicy()
	policy.MaxGasPriceWei = big.NewInt(11_000) // first bump (11250) exceeds it

	coord := NewCoordinator(client, "0xvault", testOrder(), nil, policy, testLogger())
	rec, ok, err := coord.Run(context.Background())
	if err != nil || !ok {
		t.Fatalf("Run() = ok=%v err=%v, want terminal outcome", ok, err)
	}
	if rec.Status != domain.ExecFailed {
		t.Errorf("status = %s, want %s", rec.Status, domain.ExecFailed)
	}
	if rec.Attempts != 1 {
		t.Errorf("attempts = %d, want 1 (ceiling blocks the resubmit)", rec.Attempts)
	}
}

func TestCoordinatorBuildFailureIsNotRetried(t *testing.T) {
	client := &fakeClient{}
	client.estimateFn = func(context.Context, domain.TxRequest) (uint64, error) {
		return 0, domain.ErrExecution
	}

	coord := NewCoordinator(client, "0xvault", testOrder(), nil, DefaultPolicy(), testLogger())
	rec, ok, err := coord.Run(context.Background())
	if err != nil || !ok {
		t.Fatalf("Run() = ok=%v err=%v, want terminal outcome", ok, err)
	}
	if rec.Status != domain.ExecFailed {
		t.Errorf("status = %s, want %s", rec.Status, domain.ExecFailed)
	}
	if len(client.executeCalls) != 0 {
		t.Errorf("ExecuteOrder called %d times after a failed estimate, want 0", len(client.executeCalls))
	}
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateReady, StateBuilding, true},
		{StateBuilding, StateSubmitted, true},
		{StateSubmitted, StateConfirming, true},
		{StateConfirming, StateSubmitted, true}, // fee-escalation resubmit
		{StateConfirming, StateConfirmed, true},
		{StateConfirming, StateTimedOut, true},
		{StateConfirmed, StateSubmitted, false},
		{StateReady, StateConfirmed, false},
		{StateTimedOut, StateConfirming, false},
	}
	for _, tt := range tests {
		if got := canTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("canTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
