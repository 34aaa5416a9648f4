package svm

import (
	"context"
	"crypto/ed25519"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/url"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sentinelmarkets/sentinel-keeper/internal/domain"
)

const (
	defaultComputeUnitLimit = 400_000
	defaultMinPriorityFee   = 1_000 // micro-lamports per compute unit
	defaultMaxPriceAge      = time.Hour
	nativeDecimals          = 9
	statusPollInterval      = 2 * time.Second
)

// ClientConfig configures the SVM backend.
type ClientConfig struct {
	// RPCURL is the HTTP JSON-RPC endpoint.
	RPCURL string
	// WSURL is the websocket endpoint for signature subscriptions. Empty
	// derives it from RPCURL (http -> ws).
	WSURL string
	// Cluster names the chain for ChainID ("mainnet-beta", "devnet", ...).
	Cluster string
	// ChainName is the display name used in logs and records.
	ChainName string
	// ProgramID is the vault program's address.
	ProgramID string
	// Key signs and pays for every keeper transaction.
	Key ed25519.PrivateKey
	// PairFeeds maps "BASE/QUOTE" pairs to oracle price accounts.
	PairFeeds map[string]string
	// ComputeUnitLimit caps each transaction's compute budget.
	ComputeUnitLimit uint32
	// MinPriorityFee floors SuggestFee, in micro-lamports per compute unit.
	MinPriorityFee uint64
	// MaxPriceAge rejects oracle quotes older than this.
	MaxPriceAge time.Duration
}

// Client implements domain.ChainClient against a Solana-style endpoint.
type Client struct {
	cfg       ClientConfig
	rpc       *rpcClient
	program   [32]byte
	keeperPK  [32]byte
	logger    *slog.Logger
	connected atomic.Bool

	mu sync.Mutex
	// orderAccounts maps order id to the order account address, populated by
	// scans so execution can target the account without re-deriving it.
	orderAccounts map[uint64]string
	// pendingExec maps built call data to its account list, bridging
	// BuildExecution to EstimateCost and SendTransaction.
	pendingExec map[string][]accountMeta
	// lastValid maps a submitted signature to the blockhash expiry height.
	lastValid map[string]uint64
}

var _ domain.ChainClient = (*Client)(nil)

// NewClient creates an SVM chain client. The connection is not established
// until Connect.
func NewClient(cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, errors.New("svm: rpc url is required")
	}
	if len(cfg.Key) != ed25519.PrivateKeySize {
		return nil, errors.New("svm: invalid keeper key")
	}
	if cfg.ComputeUnitLimit == 0 {
		cfg.ComputeUnitLimit = defaultComputeUnitLimit
	}
	if cfg.MinPriorityFee == 0 {
		cfg.MinPriorityFee = defaultMinPriorityFee
	}
	if cfg.MaxPriceAge == 0 {
		cfg.MaxPriceAge = defaultMaxPriceAge
	}

	program, err := decodePubkey(cfg.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("svm: program id: %w", err)
	}

	var keeperPK [32]byte
	copy(keeperPK[:], cfg.Key.Public().(ed25519.PublicKey))

	return &Client{
		cfg:           cfg,
		rpc:           newRPCClient(cfg.RPCURL),
		program:       program,
		keeperPK:      keeperPK,
		logger:        logger.With(slog.String("component", "svm_client")),
		orderAccounts: make(map[uint64]string),
		pendingExec:   make(map[string][]accountMeta),
		lastValid:     make(map[string]uint64),
	}, nil
}

// Connect verifies the endpoint answers and records the cluster version.
func (c *Client) Connect(ctx context.Context) error {
	var version struct {
		SolanaCore string `json:"solana-core"`
	}
	if err := c.rpc.call(ctx, "getVersion", nil, &version); err != nil {
		return fmt.Errorf("svm: connect: %w", err)
	}
	c.connected.Store(true)
	c.logger.Info("connected",
		slog.String("cluster", c.cfg.Cluster),
		slog.String("version", version.SolanaCore),
		slog.String("keeper", c.KeeperAddress()),
	)
	return nil
}

func (c *Client) Disconnect(ctx context.Context) error {
	c.connected.Store(false)
	return nil
}

func (c *Client) IsConnected(ctx context.Context) bool {
	return c.connected.Load()
}

func (c *Client) ChainID() string   { return c.cfg.Cluster }
func (c *Client) ChainName() string { return c.cfg.ChainName }

func (c *Client) KeeperAddress() string {
	return base58Encode(c.keeperPK[:])
}

// BlockNumber returns the current slot.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var slot uint64
	if err := c.rpc.call(ctx, "getSlot", []any{map[string]any{"commitment": "confirmed"}}, &slot); err != nil {
		return 0, err
	}
	return slot, nil
}

// ChainTime returns the cluster's estimated time for the current slot.
func (c *Client) ChainTime(ctx context.Context) (time.Time, error) {
	slot, err := c.BlockNumber(ctx)
	if err != nil {
		return time.Time{}, err
	}
	var unix *int64
	if err := c.rpc.call(ctx, "getBlockTime", []any{slot}, &unix); err != nil {
		return time.Time{}, err
	}
	if unix == nil {
		return time.Time{}, fmt.Errorf("svm: no block time for slot %d", slot)
	}
	return time.Unix(*unix, 0).UTC(), nil
}

// GetPrice resolves a "BASE/QUOTE" pair through the configured feed map.
func (c *Client) GetPrice(ctx context.Context, pair string) (*big.Int, error) {
	oracle, ok := c.cfg.PairFeeds[pair]
	if !ok {
		return nil, fmt.Errorf("svm: no oracle feed configured for %s: %w", pair, domain.ErrPriceUnavailable)
	}
	return c.GetOraclePrice(ctx, oracle)
}

// GetOraclePrice reads one oracle price account, normalized to 1e18.
func (c *Client) GetOraclePrice(ctx context.Context, oracle string) (*big.Int, error) {
	var resp contextValue[*accountInfo]
	params := []any{oracle, map[string]any{"encoding": "base64", "commitment": "confirmed"}}
	if err := c.rpc.call(ctx, "getAccountInfo", params, &resp); err != nil {
		return nil, err
	}
	if resp.Value == nil {
		return nil, fmt.Errorf("svm: oracle account %s not found: %w", oracle, domain.ErrPriceUnavailable)
	}
	data, err := decodeAccountData(resp.Value.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPriceUnavailable, err)
	}
	return decodeOracleAccount(data, time.Now(), c.cfg.MaxPriceAge)
}

// GetActiveOrders scans the program's order accounts belonging to the vault
// and returns those still open. The scan also refreshes the order id to
// account address map used by execution.
func (c *Client) GetActiveOrders(ctx context.Context, vault string) ([]domain.Order, error) {
	accounts, err := c.scanOrders(ctx, vault, nil)
	if err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(accounts))
	for _, acc := range accounts {
		data, err := decodeAccountData(acc.Account.Data)
		if err != nil {
			c.logger.Warn("skipping undecodable order account",
				slog.String("account", acc.Pubkey),
				slog.String("error", err.Error()),
			)
			continue
		}
		order, err := decodeOrderAccount(data)
		if err != nil {
			c.logger.Warn("skipping malformed order account",
				slog.String("account", acc.Pubkey),
				slog.String("error", err.Error()),
			)
			continue
		}

		c.mu.Lock()
		c.orderAccounts[order.ID] = acc.Pubkey
		c.mu.Unlock()

		if order.State == domain.StateOpen {
			orders = append(orders, order)
		}
	}
	return orders, nil
}

// GetOrder fetches a single order by id via a filtered scan.
func (c *Client) GetOrder(ctx context.Context, vault string, orderID uint64) (domain.Order, error) {
	var idBytes [8]byte
	binary.LittleEndian.PutUint64(idBytes[:], orderID)
	idFilter := map[string]any{
		"memcmp": map[string]any{"offset": offOrderID, "bytes": base58Encode(idBytes[:])},
	}

	accounts, err := c.scanOrders(ctx, vault, []any{idFilter})
	if err != nil {
		return domain.Order{}, err
	}
	if len(accounts) == 0 {
		return domain.Order{}, fmt.Errorf("svm: order %d: %w", orderID, domain.ErrNotFound)
	}

	data, err := decodeAccountData(accounts[0].Account.Data)
	if err != nil {
		return domain.Order{}, err
	}
	order, err := decodeOrderAccount(data)
	if err != nil {
		return domain.Order{}, err
	}

	c.mu.Lock()
	c.orderAccounts[order.ID] = accounts[0].Pubkey
	c.mu.Unlock()
	return order, nil
}

// scanOrders runs getProgramAccounts with the order discriminator and vault
// filters plus any extras.
func (c *Client) scanOrders(ctx context.Context, vault string, extra []any) ([]programAccount, error) {
	filters := []any{
		map[string]any{"dataSize": orderAccountSize},
		map[string]any{"memcmp": map[string]any{"offset": 0, "bytes": base58Encode(orderDiscriminator[:])}},
		map[string]any{"memcmp": map[string]any{"offset": offVault, "bytes": vault}},
	}
	filters = append(filters, extra...)

	var accounts []programAccount
	params := []any{c.cfg.ProgramID, map[string]any{
		"encoding":   "base64",
		"commitment": "confirmed",
		"filters":    filters,
	}}
	if err := c.rpc.call(ctx, "getProgramAccounts", params, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// BuildExecution builds the execute_order call data and stashes its account
// list for EstimateCost and SendTransaction.
func (c *Client) BuildExecution(ctx context.Context, vault string, orderID uint64) (domain.TxRequest, error) {
	metas, data, err := c.executionCall(ctx, vault, orderID)
	if err != nil {
		return domain.TxRequest{}, err
	}

	c.mu.Lock()
	c.pendingExec[string(data)] = metas
	c.mu.Unlock()

	return domain.TxRequest{To: c.cfg.ProgramID, Data: data}, nil
}

// executionCall resolves the account list and instruction data for executing
// one order.
func (c *Client) executionCall(ctx context.Context, vault string, orderID uint64) ([]accountMeta, []byte, error) {
	// GetOrder refreshes the account address cache and yields the oracle the
	// execution instruction must reference.
	order, err := c.GetOrder(ctx, vault, orderID)
	if err != nil {
		return nil, nil, err
	}

	c.mu.Lock()
	orderAddr := c.orderAccounts[orderID]
	c.mu.Unlock()

	orderPK, err := decodePubkey(orderAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("svm: order account: %w", err)
	}
	vaultPK, err := decodePubkey(vault)
	if err != nil {
		return nil, nil, fmt.Errorf("svm: vault account: %w", err)
	}
	oraclePK, err := decodePubkey(order.Trigger.Oracle)
	if err != nil {
		return nil, nil, fmt.Errorf("svm: oracle account: %w", err)
	}

	data := make([]byte, 16)
	copy(data, executeOrderDiscriminator[:])
	binary.LittleEndian.PutUint64(data[8:], orderID)

	metas := []accountMeta{
		{pubkey: orderPK, writable: true},
		{pubkey: vaultPK, writable: true},
		{pubkey: oraclePK},
		{pubkey: c.keeperPK, signer: true, writable: true},
	}
	return metas, data, nil
}

// ExecuteOrder submits the execution transaction with the given fee override.
func (c *Client) ExecuteOrder(ctx context.Context, vault string, orderID uint64, fee domain.FeeOverride) (domain.TxHandle, error) {
	metas, data, err := c.executionCall(ctx, vault, orderID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrExecution, err)
	}
	ins := instruction{program: c.program, accounts: metas, data: data}
	return c.submit(ctx, []instruction{ins}, fee)
}

// SendTransaction submits a raw call. When the call data was produced by
// BuildExecution, the stashed account list is attached; otherwise the keeper
// is the only account.
func (c *Client) SendTransaction(ctx context.Context, req domain.TxRequest, fee domain.FeeOverride) (domain.TxHandle, error) {
	program, err := decodePubkey(req.To)
	if err != nil {
		return "", fmt.Errorf("svm: target program: %w: %v", domain.ErrExecution, err)
	}

	c.mu.Lock()
	metas := c.pendingExec[string(req.Data)]
	c.mu.Unlock()
	if metas == nil {
		metas = []accountMeta{{pubkey: c.keeperPK, signer: true, writable: true}}
	}

	ins := instruction{program: program, accounts: metas, data: req.Data}
	return c.submit(ctx, []instruction{ins}, fee)
}

// submit prepends the compute-budget instructions, signs with a fresh
// blockhash and sends the transaction.
func (c *Client) submit(ctx context.Context, instrs []instruction, fee domain.FeeOverride) (domain.TxHandle, error) {
	priority := fee.PriorityFeeMicroLamports
	if priority == 0 {
		suggested, err := c.SuggestFee(ctx)
		if err != nil {
			return "", fmt.Errorf("%w: %v", domain.ErrExecution, err)
		}
		priority = suggested.PriorityFeeMicroLamports
	}

	full := make([]instruction, 0, len(instrs)+2)
	full = append(full, setComputeUnitLimit(c.cfg.ComputeUnitLimit), setComputeUnitPrice(priority))
	full = append(full, instrs...)

	var bh contextValue[blockhashResult]
	if err := c.rpc.call(ctx, "getLatestBlockhash", []any{map[string]any{"commitment": "confirmed"}}, &bh); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrExecution, err)
	}
	blockhash, err := decodePubkey(bh.Value.Blockhash)
	if err != nil {
		return "", fmt.Errorf("svm: blockhash: %w: %v", domain.ErrExecution, err)
	}

	message, err := buildMessage(c.keeperPK, blockhash, full)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrExecution, err)
	}
	wire, signature := signTransaction(c.cfg.Key, message)

	var returned string
	params := []any{encodeTransaction(wire), map[string]any{
		"encoding":            "base64",
		"skipPreflight":       false,
		"preflightCommitment": "confirmed",
	}}
	if err := c.rpc.call(ctx, "sendTransaction", params, &returned); err != nil {
		return "", c.mapSubmitError(err)
	}

	c.mu.Lock()
	c.lastValid[signature] = bh.Value.LastValidBlockHeight
	c.mu.Unlock()

	c.logger.Debug("transaction submitted",
		slog.String("signature", signature),
		slog.Uint64("priority_fee", priority),
	)
	return domain.TxHandle(signature), nil
}

// mapSubmitError translates RPC submit failures into the domain taxonomy.
func (c *Client) mapSubmitError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "insufficient funds for fee") ||
		strings.Contains(msg, "would exceed max") ||
		strings.Contains(msg, "fee too low"):
		return fmt.Errorf("%w: %v", domain.ErrFeeTooLow, err)
	case strings.Contains(msg, "custom program error") ||
		strings.Contains(msg, "instructionerror"):
		return fmt.Errorf("%w: %v", domain.ErrExecution, err)
	default:
		return fmt.Errorf("%w: %v", domain.ErrExecution, err)
	}
}

// SuggestFee derives a priority fee from recent cluster prioritization fees:
// the median of non-zero samples, floored at the configured minimum.
func (c *Client) SuggestFee(ctx context.Context) (domain.FeeOverride, error) {
	var fees []prioritizationFee
	if err := c.rpc.call(ctx, "getRecentPrioritizationFees", []any{[]string{}}, &fees); err != nil {
		return domain.FeeOverride{}, err
	}

	samples := make([]uint64, 0, len(fees))
	for _, f := range fees {
		if f.PrioritizationFee > 0 {
			samples = append(samples, f.PrioritizationFee)
		}
	}

	fee := c.cfg.MinPriorityFee
	if len(samples) > 0 {
		sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
		if median := samples[len(samples)/2]; median > fee {
			fee = median
		}
	}
	return domain.FeeOverride{PriorityFeeMicroLamports: fee}, nil
}

// EstimateCost simulates the call and returns compute units consumed.
// Simulation failures surface as ErrExecution with the program logs attached.
func (c *Client) EstimateCost(ctx context.Context, req domain.TxRequest) (uint64, error) {
	program, err := decodePubkey(req.To)
	if err != nil {
		return 0, fmt.Errorf("svm: target program: %w: %v", domain.ErrExecution, err)
	}

	c.mu.Lock()
	metas := c.pendingExec[string(req.Data)]
	c.mu.Unlock()
	if metas == nil {
		metas = []accountMeta{{pubkey: c.keeperPK, signer: true, writable: true}}
	}

	instrs := []instruction{
		setComputeUnitLimit(c.cfg.ComputeUnitLimit),
		{program: program, accounts: metas, data: req.Data},
	}
	message, err := buildMessage(c.keeperPK, [32]byte{}, instrs)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrExecution, err)
	}
	wire, _ := signTransaction(c.cfg.Key, message)

	var resp contextValue[simulateResult]
	params := []any{encodeTransaction(wire), map[string]any{
		"encoding":               "base64",
		"sigVerify":              false,
		"replaceRecentBlockhash": true,
		"commitment":             "confirmed",
	}}
	if err := c.rpc.call(ctx, "simulateTransaction", params, &resp); err != nil {
		return 0, err
	}
	if len(resp.Value.Err) > 0 && string(resp.Value.Err) != "null" {
		return 0, fmt.Errorf("svm: simulation failed: %s (logs: %s): %w",
			resp.Value.Err, strings.Join(resp.Value.Logs, "; "), domain.ErrExecution)
	}
	return resp.Value.UnitsConsumed, nil
}

// WaitForTransaction blocks until the signature confirms, the blockhash
// expires, or the timeout elapses. Blockhash expiry without inclusion is
// reported as ErrFeeTooLow so the caller resubmits with a higher priority
// fee; a plain timeout is ErrTxTimeout.
func (c *Client) WaitForTransaction(ctx context.Context, h domain.TxHandle, timeout time.Duration) (domain.Receipt, error) {
	signature := string(h)
	deadline := time.Now().Add(timeout)

	c.mu.Lock()
	lastValid := c.lastValid[signature]
	delete(c.lastValid, signature)
	c.mu.Unlock()

	done := make(chan struct{})
	wsConfirm := make(chan error, 1)
	go c.watchSignature(ctx, signature, done, wsConfirm)
	defer close(done)

	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()

	for {
		receipt, finished, err := c.checkStatus(ctx, signature)
		if finished {
			return receipt, err
		}

		if lastValid > 0 {
			height, err := c.blockHeight(ctx)
			if err == nil && height > lastValid {
				// One more status check: the tx may have landed in the last
				// slots before expiry.
				if receipt, finished, err := c.checkStatus(ctx, signature); finished {
					return receipt, err
				}
				return domain.Receipt{Handle: h}, fmt.Errorf("svm: blockhash expired before inclusion: %w", domain.ErrFeeTooLow)
			}
		}

		if time.Now().After(deadline) {
			return domain.Receipt{Handle: h}, fmt.Errorf("svm: no confirmation within %s: %w", timeout, domain.ErrTxTimeout)
		}

		select {
		case <-ctx.Done():
			return domain.Receipt{Handle: h}, ctx.Err()
		case <-wsConfirm:
			// Subscription fired; loop to read the authoritative status.
		case <-ticker.C:
		}
	}
}

// checkStatus reads the signature status once. finished is true when the
// transaction reached a confirmed commitment.
func (c *Client) checkStatus(ctx context.Context, signature string) (domain.Receipt, bool, error) {
	var resp contextValue[[]*signatureStatus]
	params := []any{[]string{signature}, map[string]any{"searchTransactionHistory": true}}
	if err := c.rpc.call(ctx, "getSignatureStatuses", params, &resp); err != nil {
		return domain.Receipt{}, false, nil // transient; keep polling
	}
	if len(resp.Value) == 0 || resp.Value[0] == nil {
		return domain.Receipt{}, false, nil
	}

	status := resp.Value[0]
	if status.ConfirmationStatus != "confirmed" && status.ConfirmationStatus != "finalized" {
		return domain.Receipt{}, false, nil
	}

	receipt := domain.Receipt{
		Handle:      domain.TxHandle(signature),
		Success:     len(status.Err) == 0 || string(status.Err) == "null",
		BlockNumber: status.Slot,
	}
	c.fillReceiptMeta(ctx, signature, &receipt)

	if !receipt.Success {
		return receipt, true, fmt.Errorf("svm: transaction failed: %s: %w", status.Err, domain.ErrTxFailed)
	}
	return receipt, true, nil
}

// fillReceiptMeta enriches the receipt with compute units and logs. Best
// effort: a missing transaction record leaves the receipt as-is.
func (c *Client) fillReceiptMeta(ctx context.Context, signature string, receipt *domain.Receipt) {
	var tx *struct {
		Slot uint64 `json:"slot"`
		Meta *struct {
			LogMessages          []string `json:"logMessages"`
			ComputeUnitsConsumed uint64   `json:"computeUnitsConsumed"`
		} `json:"meta"`
	}
	params := []any{signature, map[string]any{"encoding": "json", "commitment": "confirmed", "maxSupportedTransactionVersion": 0}}
	if err := c.rpc.call(ctx, "getTransaction", params, &tx); err != nil || tx == nil || tx.Meta == nil {
		return
	}
	receipt.ResourceUsed = tx.Meta.ComputeUnitsConsumed
	receipt.Logs = tx.Meta.LogMessages
}

func (c *Client) blockHeight(ctx context.Context) (uint64, error) {
	var height uint64
	err := c.rpc.call(ctx, "getBlockHeight", []any{map[string]any{"commitment": "confirmed"}}, &height)
	return height, err
}

// watchSignature runs a signatureSubscribe over websocket and pokes confirm
// when the notification arrives. Failures are silent; the status poll loop is
// the source of truth.
func (c *Client) watchSignature(ctx context.Context, signature string, done <-chan struct{}, confirm chan<- error) {
	wsURL := c.cfg.WSURL
	if wsURL == "" {
		wsURL = deriveWSURL(c.cfg.RPCURL)
	}
	if wsURL == "" {
		return
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "signatureSubscribe",
		"params":  []any{signature, map[string]any{"commitment": "confirmed"}},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return
	}

	go func() {
		select {
		case <-done:
		case <-ctx.Done():
		}
		conn.Close()
	}()

	for {
		var msg struct {
			Method string `json:"method"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Method == "signatureNotification" {
			select {
			case confirm <- nil:
			default:
			}
			return
		}
	}
}

// deriveWSURL converts an HTTP RPC endpoint to its websocket counterpart.
func deriveWSURL(rpcURL string) string {
	u, err := url.Parse(rpcURL)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return ""
	}
	return u.String()
}

// GetBalance returns a lamport balance for the native asset or the summed
// SPL token balance for a mint.
func (c *Client) GetBalance(ctx context.Context, address, token string) (domain.Balance, error) {
	if token == "" {
		var resp contextValue[uint64]
		params := []any{address, map[string]any{"commitment": "confirmed"}}
		if err := c.rpc.call(ctx, "getBalance", params, &resp); err != nil {
			return domain.Balance{}, err
		}
		return domain.Balance{Amount: new(big.Int).SetUint64(resp.Value), Decimals: nativeDecimals}, nil
	}

	var resp contextValue[[]tokenAccount]
	params := []any{address, map[string]any{"mint": token}, map[string]any{"encoding": "jsonParsed", "commitment": "confirmed"}}
	if err := c.rpc.call(ctx, "getTokenAccountsByOwner", params, &resp); err != nil {
		return domain.Balance{}, err
	}

	total := new(big.Int)
	var decimals uint8
	for _, acc := range resp.Value {
		amount := acc.Account.Data.Parsed.Info.TokenAmount
		v, ok := new(big.Int).SetString(amount.Amount, 10)
		if !ok {
			return domain.Balance{}, fmt.Errorf("svm: unparseable token amount %q", amount.Amount)
		}
		total.Add(total, v)
		decimals = amount.Decimals
	}
	return domain.Balance{Amount: total, Decimals: decimals}, nil
}

// GetVaultBalance reads the vault account's holdings of a token.
func (c *Client) GetVaultBalance(ctx context.Context, vault, token string) (domain.Balance, error) {
	return c.GetBalance(ctx, vault, token)
}
