package domain

import (
	"context"
	"math/big"
	"time"
)

// TxHandle identifies a submitted transaction: a 0x hash on EVM chains, a
// base58 signature on SVM chains.
type TxHandle string

// Receipt is the normalized confirmation result for a transaction.
type Receipt struct {
	Handle TxHandle
	// Success is false when the transaction confirmed but reverted/failed.
	Success bool
	// BlockNumber is the block (EVM) or slot (SVM) of inclusion.
	BlockNumber uint64
	// ResourceUsed is gas used on EVM, compute units consumed on SVM.
	ResourceUsed uint64
	// AmountOut is the output amount decoded from execution logs, when the
	// chain exposes it. Nil when unknown.
	AmountOut *big.Int
	// Logs carries raw event/log lines for diagnostics.
	Logs []string
}

// Balance is an exact token balance: raw integer base units plus the token's
// decimal count. No float conversion happens inside the keeper.
type Balance struct {
	Amount   *big.Int
	Decimals uint8
}

// FeeOverride carries chain-specific fee parameters for a submission attempt.
// The zero value means "use the chain's current estimate".
type FeeOverride struct {
	// GasPriceWei overrides the gas price on EVM chains.
	GasPriceWei *big.Int
	// PriorityFeeMicroLamports overrides the priority fee on SVM chains.
	PriorityFeeMicroLamports uint64
}

// TxRequest is the minimal raw-transaction surface the coordinator needs to
// build and cost a call without chain-specific knowledge.
type TxRequest struct {
	To    string
	Data  []byte
	Value *big.Int
}

// ChainClient is the uniform capability set a chain backend must provide for
// the keeper to operate on it. Implementations own their connection handle
// and signing material exclusively and serialize submissions for the signing
// account internally.
type ChainClient interface {
	// Connect establishes the RPC connection. It returns
	// ErrConnectionFailed (wrapped) when the endpoint is unreachable.
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsConnected(ctx context.Context) bool

	// GetPrice returns the current price for a "BASE/QUOTE" pair at
	// PriceScale. It returns ErrPriceUnavailable when no live quote exists;
	// it never silently returns a stale or default value.
	GetPrice(ctx context.Context, pair string) (*big.Int, error)
	// GetOraclePrice reads a specific oracle contract/account, normalized to
	// PriceScale.
	GetOraclePrice(ctx context.Context, oracle string) (*big.Int, error)

	// GetActiveOrders lists the vault's orders whose on-chain state is Open.
	// Discovery (contract call vs. derived-address scan) is backend-specific.
	GetActiveOrders(ctx context.Context, vault string) ([]Order, error)
	// GetOrder fetches one order by id. Returns ErrNotFound when absent.
	GetOrder(ctx context.Context, vault string, orderID uint64) (Order, error)
	// BuildExecution builds (without submitting) the raw call that executes
	// an order, for cost estimation by the coordinator.
	BuildExecution(ctx context.Context, vault string, orderID uint64) (TxRequest, error)
	// ExecuteOrder submits the execution transaction for an order and returns
	// its handle. Submission success does not imply on-chain success.
	// ErrExecution (wrapped) is returned only for failures detected before or
	// during submission.
	ExecuteOrder(ctx context.Context, vault string, orderID uint64, fee FeeOverride) (TxHandle, error)

	// GetBalance returns the balance of an address. Empty token means the
	// native asset.
	GetBalance(ctx context.Context, address, token string) (Balance, error)
	GetVaultBalance(ctx context.Context, vault, token string) (Balance, error)

	// SuggestFee returns the chain's current fee estimate as an explicit
	// override, used as the base for escalation.
	SuggestFee(ctx context.Context) (FeeOverride, error)
	// SendTransaction submits a raw call built from req.
	SendTransaction(ctx context.Context, req TxRequest, fee FeeOverride) (TxHandle, error)
	// EstimateCost estimates gas (EVM) or compute units (SVM) for req,
	// surfacing simulation reverts as ErrExecution.
	EstimateCost(ctx context.Context, req TxRequest) (uint64, error)
	// WaitForTransaction blocks until the handle confirms or the timeout
	// elapses. ErrTxTimeout on timeout, ErrTxFailed on confirmed failure.
	// A context cancellation is returned as the context's error, never as a
	// terminal transaction outcome.
	WaitForTransaction(ctx context.Context, h TxHandle, timeout time.Duration) (Receipt, error)

	// ChainID is the numeric id for EVM chains or the cluster name for SVM.
	ChainID() string
	ChainName() string
	// BlockNumber returns the current block (EVM) or slot (SVM) height.
	BlockNumber(ctx context.Context) (uint64, error)
	// ChainTime returns the chain clock used for deadline checks.
	ChainTime(ctx context.Context) (time.Time, error)
	// KeeperAddress is the signing account's address on this chain.
	KeeperAddress() string
}

// OrderLocker guards an order against concurrent execution by multiple keeper
// replicas. Acquire returns an unlock func on success and ErrLockHeld when
// another replica holds the lock. A nil OrderLocker disables cross-replica
// locking; the in-process arena still applies.
type OrderLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}
