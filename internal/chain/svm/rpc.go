// Package svm implements the domain.ChainClient contract for Solana-style
// chains. The vault is an on-chain program; orders live in derived accounts
// discovered by program-account scans, prices in oracle accounts, and
// transactions are blockhash-sequenced with a compute-unit budget and
// priority fee.
//
// The RPC layer is a hand-rolled JSON-RPC client: the keeper needs a dozen
// methods, not a full SDK.
package svm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/sentinelmarkets/sentinel-keeper/internal/domain"
)

// rpcClient speaks JSON-RPC 2.0 to a Solana endpoint.
type rpcClient struct {
	url        string
	httpClient *http.Client
	nextID     atomic.Uint64
}

func newRPCClient(url string) *rpcClient {
	return &rpcClient{
		url:        url,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// call invokes one RPC method and unmarshals the result into out.
func (c *rpcClient) call(ctx context.Context, method string, params []any, out any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("svm: marshal %s: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("svm: request %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("svm: %s: %w: %v", method, domain.ErrConnectionFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("svm: read %s response: %w: %v", method, domain.ErrConnectionFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("svm: %s status %d: %w", method, resp.StatusCode, domain.ErrConnectionFailed)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return fmt.Errorf("svm: decode %s response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("svm: %s: %w", method, rpcResp.Error)
	}
	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("svm: unmarshal %s result: %w", method, err)
		}
	}
	return nil
}

// Result envelopes for the methods the keeper uses.

type contextValue[T any] struct {
	Value T `json:"value"`
}

type accountInfo struct {
	Data     []string `json:"data"` // [base64 payload, "base64"]
	Owner    string   `json:"owner"`
	Lamports uint64   `json:"lamports"`
}

type programAccount struct {
	Pubkey  string      `json:"pubkey"`
	Account accountInfo `json:"account"`
}

type blockhashResult struct {
	Blockhash            string `json:"blockhash"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

type signatureStatus struct {
	ConfirmationStatus string          `json:"confirmationStatus"`
	Err                json.RawMessage `json:"err"`
	Slot               uint64          `json:"slot"`
}

type simulateResult struct {
	Err           json.RawMessage `json:"err"`
	Logs          []string        `json:"logs"`
	UnitsConsumed uint64          `json:"unitsConsumed"`
}

type prioritizationFee struct {
	Slot              uint64 `json:"slot"`
	PrioritizationFee uint64 `json:"prioritizationFee"`
}

type tokenAmount struct {
	Amount   string `json:"amount"`
	Decimals uint8  `json:"decimals"`
}

type tokenAccount struct {
	Account struct {
		Data struct {
			Parsed struct {
				Info struct {
					TokenAmount tokenAmount `json:"tokenAmount"`
				} `json:"info"`
			} `json:"parsed"`
		} `json:"data"`
	} `json:"account"`
}
