package evm

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/sentinelmarkets/sentinel-keeper/internal/domain"
)

// RelayClient submits signed transactions through a Flashbots-compatible
// private relay instead of the public mempool, shielding executions from
// front-running. Requests are authenticated with an X-Flashbots-Signature
// header: the keeper key signs the keccak hash of the request body.
type RelayClient struct {
	url        string
	signingKey *ecdsa.PrivateKey
	httpClient *http.Client
}

// NewRelayClient creates a relay client for the given endpoint, signing
// requests with the keeper's key.
func NewRelayClient(url string, signingKey *ecdsa.PrivateKey) *RelayClient {
	return &RelayClient{
		url:        url,
		signingKey: signingKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type relayRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type relayResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SendPrivate submits a signed transaction via eth_sendPrivateTransaction.
// Confirmation waiting is unchanged: the caller polls the public chain for
// the receipt as usual.
func (r *RelayClient) SendPrivate(ctx context.Context, tx *types.Transaction) (domain.TxHandle, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("evm: relay encode tx: %w: %v", domain.ErrExecution, err)
	}

	body, err := json.Marshal(relayRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "eth_sendPrivateTransaction",
		Params: []any{map[string]any{
			"tx": fmt.Sprintf("0x%x", raw),
		}},
	})
	if err != nil {
		return "", fmt.Errorf("evm: relay marshal request: %w: %v", domain.ErrExecution, err)
	}

	sigHeader, err := r.signRequest(body)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("evm: relay request: %w: %v", domain.ErrExecution, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Flashbots-Signature", sigHeader)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("evm: relay send: %w: %v", domain.ErrConnectionFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("evm: relay read response: %w: %v", domain.ErrConnectionFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("evm: relay status %d: %s: %w", resp.StatusCode, string(respBody), domain.ErrExecution)
	}

	var rpcResp relayResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return "", fmt.Errorf("evm: relay decode response: %w: %v", domain.ErrExecution, err)
	}
	if rpcResp.Error != nil {
		return "", fmt.Errorf("evm: relay rejected: %s: %w", rpcResp.Error.Message, domain.ErrExecution)
	}

	return domain.TxHandle(tx.Hash().Hex()), nil
}

// signRequest produces the Flashbots request signature: an EIP-191 personal
// signature over the hex-encoded keccak hash of the body.
func (r *RelayClient) signRequest(body []byte) (string, error) {
	hashed := ethcrypto.Keccak256Hash(body).Hex()
	sig, err := ethcrypto.Sign(accounts.TextHash([]byte(hashed)), r.signingKey)
	if err != nil {
		return "", fmt.Errorf("evm: sign relay request: %w: %v", domain.ErrExecution, err)
	}
	addr := ethcrypto.PubkeyToAddress(r.signingKey.PublicKey)
	return fmt.Sprintf("%s:0x%x", addr.Hex(), sig), nil
}
