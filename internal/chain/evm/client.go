// Package evm implements the domain.ChainClient contract for EVM-compatible
// chains (Ethereum mainnet and L2s). Orders are read through the vault
// contract, prices through Chainlink-style aggregator feeds, and execution
// transactions are nonce-sequenced and signed with the keeper's key.
package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/sentinelmarkets/sentinel-keeper/internal/domain"
)

const (
	// defaultGasLimit is used when estimation is skipped or fails upstream.
	defaultGasLimit = 500_000
	// receiptPollInterval is the confirmation polling cadence.
	receiptPollInterval = 2 * time.Second
	// defaultMaxPriceAge is how old an aggregator round may be before the
	// quote is treated as unavailable rather than returned silently.
	defaultMaxPriceAge = time.Hour
)

// ClientConfig holds connection and signing parameters for the EVM client.
type ClientConfig struct {
	RPCURL     string
	ChainID    int64
	ChainName  string
	PrivateKey *ecdsa.PrivateKey
	// PairFeeds maps "BASE/QUOTE" pair symbols to aggregator addresses for
	// GetPrice lookups.
	PairFeeds map[string]string
	// Relay, when non-nil, routes execution transactions through a private
	// relay instead of the public mempool.
	Relay *RelayClient
	// MaxPriceAge is the oldest aggregator round accepted as a live quote.
	MaxPriceAge time.Duration
}

// Client is the EVM implementation of domain.ChainClient.
type Client struct {
	cfg     ClientConfig
	address common.Address
	logger  *slog.Logger

	eth *ethclient.Client

	// nonce sequencing for the keeper account. All submissions for the
	// signing key go through sendMu so concurrent coordinators cannot race
	// the counter.
	sendMu sync.Mutex
	nonce  uint64
}

// New creates an EVM client. Call Connect before use.
func New(cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	if cfg.PrivateKey == nil {
		return nil, fmt.Errorf("evm: private key required")
	}
	name := cfg.ChainName
	if name == "" {
		name = "evm"
	}
	cfg.ChainName = name
	if cfg.MaxPriceAge <= 0 {
		cfg.MaxPriceAge = defaultMaxPriceAge
	}
	return &Client{
		cfg:     cfg,
		address: ethcrypto.PubkeyToAddress(cfg.PrivateKey.PublicKey),
		logger:  logger.With(slog.String("component", "evm_client"), slog.String("chain", name)),
	}, nil
}

// Connect dials the RPC endpoint, verifies the chain id, and initializes the
// nonce counter from the pending state.
func (c *Client) Connect(ctx context.Context) error {
	eth, err := ethclient.DialContext(ctx, c.cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("evm: dial %s: %w: %v", c.cfg.RPCURL, domain.ErrConnectionFailed, err)
	}

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return fmt.Errorf("evm: chain id: %w: %v", domain.ErrConnectionFailed, err)
	}
	if chainID.Int64() != c.cfg.ChainID {
		eth.Close()
		return fmt.Errorf("evm: endpoint reports chain %d, configured %d: %w", chainID.Int64(), c.cfg.ChainID, domain.ErrConnectionFailed)
	}

	nonce, err := eth.PendingNonceAt(ctx, c.address)
	if err != nil {
		eth.Close()
		return fmt.Errorf("evm: pending nonce: %w: %v", domain.ErrConnectionFailed, err)
	}

	c.eth = eth
	c.nonce = nonce
	c.logger.Info("connected",
		slog.String("rpc", c.cfg.RPCURL),
		slog.String("keeper", c.address.Hex()),
		slog.Uint64("nonce", nonce),
	)
	return nil
}

// Disconnect closes the RPC connection.
func (c *Client) Disconnect(_ context.Context) error {
	if c.eth != nil {
		c.eth.Close()
		c.eth = nil
	}
	return nil
}

// IsConnected reports whether the endpoint answers a height query.
func (c *Client) IsConnected(ctx context.Context) bool {
	if c.eth == nil {
		return false
	}
	_, err := c.eth.BlockNumber(ctx)
	return err == nil
}

// GetPrice resolves a pair symbol through the configured feed map and reads
// the aggregator.
func (c *Client) GetPrice(ctx context.Context, pair string) (*big.Int, error) {
	feed, ok := c.cfg.PairFeeds[pair]
	if !ok {
		return nil, fmt.Errorf("evm: no feed configured for %s: %w", pair, domain.ErrPriceUnavailable)
	}
	return c.GetOraclePrice(ctx, feed)
}

// GetOraclePrice reads latestRoundData from a Chainlink-style aggregator and
// normalizes the answer to domain.PriceScale. Non-positive or stale answers
// are reported as unavailable, never returned.
func (c *Client) GetOraclePrice(ctx context.Context, oracle string) (*big.Int, error) {
	if c.eth == nil {
		return nil, domain.ErrNotConnected
	}
	addr := common.HexToAddress(oracle)

	out, err := c.viewCall(ctx, aggregatorABI, addr, "latestRoundData")
	if err != nil {
		return nil, fmt.Errorf("evm: oracle %s: %w: %v", oracle, domain.ErrPriceUnavailable, err)
	}
	answer := *abi.ConvertType(out[1], new(*big.Int)).(**big.Int)
	updatedAt := *abi.ConvertType(out[3], new(*big.Int)).(**big.Int)

	if answer == nil || answer.Sign() <= 0 {
		return nil, fmt.Errorf("evm: oracle %s returned non-positive answer: %w", oracle, domain.ErrPriceUnavailable)
	}
	if updatedAt != nil && updatedAt.Sign() > 0 {
		age := time.Since(time.Unix(updatedAt.Int64(), 0))
		if age > c.cfg.MaxPriceAge {
			return nil, fmt.Errorf("evm: oracle %s quote is %s old: %w", oracle, age.Round(time.Second), domain.ErrPriceUnavailable)
		}
	}

	decOut, err := c.viewCall(ctx, aggregatorABI, addr, "decimals")
	if err != nil {
		return nil, fmt.Errorf("evm: oracle %s decimals: %w: %v", oracle, domain.ErrPriceUnavailable, err)
	}
	decimals := *abi.ConvertType(decOut[0], new(uint8)).(*uint8)

	return scaleTo1e18(answer, decimals), nil
}

// scaleTo1e18 rescales an integer price from the feed's decimals to 1e18.
// Exact integer arithmetic only.
func scaleTo1e18(answer *big.Int, decimals uint8) *big.Int {
	price := new(big.Int).Set(answer)
	switch {
	case decimals < 18:
		exp := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(18-decimals)), nil)
		price.Mul(price, exp)
	case decimals > 18:
		exp := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals-18)), nil)
		price.Div(price, exp)
	}
	return price
}

// GetActiveOrders calls vault.getActiveOrders and converts the result. Only
// open orders are returned, whatever the contract sends back.
func (c *Client) GetActiveOrders(ctx context.Context, vault string) ([]domain.Order, error) {
	if c.eth == nil {
		return nil, domain.ErrNotConnected
	}

	out, err := c.viewCall(ctx, vaultABI, common.HexToAddress(vault), "getActiveOrders")
	if err != nil {
		return nil, fmt.Errorf("evm: getActiveOrders: %w: %v", domain.ErrConnectionFailed, err)
	}
	raw := *abi.ConvertType(out[0], new([]vaultOrder)).(*[]vaultOrder)

	orders := make([]domain.Order, 0, len(raw))
	for _, vo := range raw {
		order := toDomainOrder(vo)
		if order.State != domain.StateOpen {
			continue
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// GetOrder fetches one order by id.
func (c *Client) GetOrder(ctx context.Context, vault string, orderID uint64) (domain.Order, error) {
	if c.eth == nil {
		return domain.Order{}, domain.ErrNotConnected
	}

	out, err := c.viewCall(ctx, vaultABI, common.HexToAddress(vault), "getOrder", new(big.Int).SetUint64(orderID))
	if err != nil {
		if isRevert(err) {
			return domain.Order{}, fmt.Errorf("evm: order %d: %w", orderID, domain.ErrNotFound)
		}
		return domain.Order{}, fmt.Errorf("evm: getOrder %d: %w: %v", orderID, domain.ErrConnectionFailed, err)
	}
	vo := *abi.ConvertType(out[0], new(vaultOrder)).(*vaultOrder)
	return toDomainOrder(vo), nil
}

func toDomainOrder(vo vaultOrder) domain.Order {
	// A zero on-chain deadline means "no deadline" and maps to the zero time.
	var deadline time.Time
	if vo.Trigger.Deadline.Sign() > 0 {
		deadline = time.Unix(vo.Trigger.Deadline.Int64(), 0).UTC()
	}
	return domain.Order{
		ID:    vo.Id.Uint64(),
		Owner: vo.Owner.Hex(),
		Kind:  domain.OrderKind(vo.Kind),
		State: domain.OrderState(vo.State),
		Trigger: domain.Trigger{
			Oracle:      vo.Trigger.Oracle.Hex(),
			TargetPrice: vo.Trigger.TargetPrice,
			Deadline:    deadline,
		},
		Execution: domain.Execution{
			InputToken:      vo.Execution.InputToken.Hex(),
			OutputToken:     vo.Execution.OutputToken.Hex(),
			InputAmount:     vo.Execution.InputAmount,
			MinOutputAmount: vo.Execution.MinOutputAmount,
			SlippageBps:     uint16(vo.Execution.SlippageBps.Uint64()),
		},
		CreatedAt: time.Unix(vo.CreatedAt.Int64(), 0).UTC(),
	}
}

// BuildExecution packs the executeOrder call without submitting it.
func (c *Client) BuildExecution(_ context.Context, vault string, orderID uint64) (domain.TxRequest, error) {
	data, err := vaultABI.Pack("executeOrder", new(big.Int).SetUint64(orderID))
	if err != nil {
		return domain.TxRequest{}, fmt.Errorf("evm: pack executeOrder: %w: %v", domain.ErrExecution, err)
	}
	return domain.TxRequest{To: vault, Data: data}, nil
}

// ExecuteOrder builds and submits the execution transaction. Submission
// success only means the transaction was accepted by the node (or relay),
// not that it will succeed on-chain.
func (c *Client) ExecuteOrder(ctx context.Context, vault string, orderID uint64, fee domain.FeeOverride) (domain.TxHandle, error) {
	req, err := c.BuildExecution(ctx, vault, orderID)
	if err != nil {
		return "", err
	}
	return c.SendTransaction(ctx, req, fee)
}

// GetBalance returns the exact balance of an address. An empty token means
// the native asset (18 decimals).
func (c *Client) GetBalance(ctx context.Context, address, token string) (domain.Balance, error) {
	if c.eth == nil {
		return domain.Balance{}, domain.ErrNotConnected
	}
	addr := common.HexToAddress(address)

	if token == "" {
		wei, err := c.eth.BalanceAt(ctx, addr, nil)
		if err != nil {
			return domain.Balance{}, fmt.Errorf("evm: balance of %s: %w: %v", address, domain.ErrConnectionFailed, err)
		}
		return domain.Balance{Amount: wei, Decimals: 18}, nil
	}

	tokenAddr := common.HexToAddress(token)
	out, err := c.viewCall(ctx, erc20ABI, tokenAddr, "balanceOf", addr)
	if err != nil {
		return domain.Balance{}, fmt.Errorf("evm: balanceOf %s: %w: %v", token, domain.ErrConnectionFailed, err)
	}
	amount := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)

	decOut, err := c.viewCall(ctx, erc20ABI, tokenAddr, "decimals")
	if err != nil {
		return domain.Balance{}, fmt.Errorf("evm: token decimals %s: %w: %v", token, domain.ErrConnectionFailed, err)
	}
	decimals := *abi.ConvertType(decOut[0], new(uint8)).(*uint8)

	return domain.Balance{Amount: amount, Decimals: decimals}, nil
}

// GetVaultBalance returns the balance held by the vault contract.
func (c *Client) GetVaultBalance(ctx context.Context, vault, token string) (domain.Balance, error) {
	return c.GetBalance(ctx, vault, token)
}

// SuggestFee returns the node's current gas price estimate.
func (c *Client) SuggestFee(ctx context.Context) (domain.FeeOverride, error) {
	if c.eth == nil {
		return domain.FeeOverride{}, domain.ErrNotConnected
	}
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return domain.FeeOverride{}, fmt.Errorf("evm: suggest gas price: %w: %v", domain.ErrConnectionFailed, err)
	}
	return domain.FeeOverride{GasPriceWei: gasPrice}, nil
}

// EstimateCost estimates gas for the request. A simulation revert surfaces
// as domain.ErrExecution: the call is not actually executable.
func (c *Client) EstimateCost(ctx context.Context, req domain.TxRequest) (uint64, error) {
	if c.eth == nil {
		return 0, domain.ErrNotConnected
	}
	to := common.HexToAddress(req.To)
	gas, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{
		From:  c.address,
		To:    &to,
		Data:  req.Data,
		Value: req.Value,
	})
	if err != nil {
		return 0, fmt.Errorf("evm: estimate gas: %w: %v", domain.ErrExecution, err)
	}
	return gas, nil
}

// SendTransaction signs and submits a raw call. Submissions for the keeper
// account are serialized so the nonce sequence stays consistent across
// concurrent coordinators.
func (c *Client) SendTransaction(ctx context.Context, req domain.TxRequest, fee domain.FeeOverride) (domain.TxHandle, error) {
	if c.eth == nil {
		return "", domain.ErrNotConnected
	}

	gasPrice := fee.GasPriceWei
	if gasPrice == nil {
		suggested, err := c.SuggestFee(ctx)
		if err != nil {
			return "", err
		}
		gasPrice = suggested.GasPriceWei
	}

	gasLimit, err := c.EstimateCost(ctx, req)
	if err != nil {
		gasLimit = defaultGasLimit
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	to := common.HexToAddress(req.To)
	value := req.Value
	if value == nil {
		value = big.NewInt(0)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    c.nonce,
		To:       &to,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     req.Data,
	})

	signer := types.LatestSignerForChainID(big.NewInt(c.cfg.ChainID))
	signed, err := types.SignTx(tx, signer, c.cfg.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("evm: sign tx: %w: %v", domain.ErrExecution, err)
	}

	if c.cfg.Relay != nil {
		handle, err := c.cfg.Relay.SendPrivate(ctx, signed)
		if err != nil {
			return "", err
		}
		c.nonce++
		return handle, nil
	}

	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		if isNonceError(err) {
			// Resync from pending state so the next attempt uses a fresh nonce.
			if n, nerr := c.eth.PendingNonceAt(ctx, c.address); nerr == nil {
				c.nonce = n
			}
		}
		if isUnderpriced(err) {
			return "", fmt.Errorf("evm: send tx: %w: %v", domain.ErrFeeTooLow, err)
		}
		return "", fmt.Errorf("evm: send tx: %w: %v", domain.ErrExecution, err)
	}
	c.nonce++

	return domain.TxHandle(signed.Hash().Hex()), nil
}

// WaitForTransaction polls for the receipt until confirmation or timeout.
func (c *Client) WaitForTransaction(ctx context.Context, h domain.TxHandle, timeout time.Duration) (domain.Receipt, error) {
	if c.eth == nil {
		return domain.Receipt{}, domain.ErrNotConnected
	}

	hash := common.HexToHash(string(h))
	deadline := time.Now().Add(timeout)

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.eth.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return c.toDomainReceipt(h, receipt)
		}
		if ctx.Err() != nil {
			return domain.Receipt{}, ctx.Err()
		}
		if time.Now().After(deadline) {
			return domain.Receipt{}, fmt.Errorf("evm: tx %s unconfirmed after %s: %w", h, timeout, domain.ErrTxTimeout)
		}

		select {
		case <-ctx.Done():
			return domain.Receipt{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) toDomainReceipt(h domain.TxHandle, receipt *types.Receipt) (domain.Receipt, error) {
	out := domain.Receipt{
		Handle:       h,
		Success:      receipt.Status == types.ReceiptStatusSuccessful,
		BlockNumber:  receipt.BlockNumber.Uint64(),
		ResourceUsed: receipt.GasUsed,
	}
	for _, l := range receipt.Logs {
		// LOG0 entries carry no topics; there is no signature to report.
		if len(l.Topics) == 0 {
			continue
		}
		out.Logs = append(out.Logs, l.Topics[0].Hex())
	}
	if !out.Success {
		return out, fmt.Errorf("evm: tx %s reverted in block %d: %w", h, out.BlockNumber, domain.ErrTxFailed)
	}
	return out, nil
}

// ChainID returns the configured chain id as a string.
func (c *Client) ChainID() string {
	return strconv.FormatInt(c.cfg.ChainID, 10)
}

// ChainName returns the human-readable chain name.
func (c *Client) ChainName() string {
	return c.cfg.ChainName
}

// BlockNumber returns the latest block height.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	if c.eth == nil {
		return 0, domain.ErrNotConnected
	}
	n, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("evm: block number: %w: %v", domain.ErrConnectionFailed, err)
	}
	return n, nil
}

// ChainTime returns the latest block's timestamp, the clock used for
// deadline checks.
func (c *Client) ChainTime(ctx context.Context) (time.Time, error) {
	if c.eth == nil {
		return time.Time{}, domain.ErrNotConnected
	}
	header, err := c.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("evm: latest header: %w: %v", domain.ErrConnectionFailed, err)
	}
	return time.Unix(int64(header.Time), 0).UTC(), nil
}

// KeeperAddress returns the signing account's address.
func (c *Client) KeeperAddress() string {
	return c.address.Hex()
}

// viewCall performs an eth_call against a contract and unpacks the result.
func (c *Client) viewCall(ctx context.Context, contractABI abi.ABI, to common.Address, method string, args ...any) ([]any, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	res, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	out, err := contractABI.Unpack(method, res)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return out, nil
}

func isUnderpriced(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "underpriced") ||
		strings.Contains(msg, "fee too low") ||
		strings.Contains(msg, "max fee per gas less than block base fee")
}

func isNonceError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "nonce too low") || strings.Contains(msg, "nonce too high")
}

func isRevert(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "revert") || strings.Contains(msg, "execution reverted")
}

// Compile-time contract check.
var _ domain.ChainClient = (*Client)(nil)
