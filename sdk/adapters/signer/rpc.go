package signer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/walrusagents/blobflow/sdk/log"

	"github.com/cenkalti/backoff/v4"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	submitMethod = "ledger_executeTransaction"

	// CodeAlreadyCertified is the JSON-RPC error code the ledger uses when a
	// certificate for the blob already exists.
	CodeAlreadyCertified = -32010
)

// RPCConfig configures RPCSubmitter.
type RPCConfig struct {
	Addr       string
	Timeout    time.Duration
	MaxRetries uint64
	HTTPClient *http.Client
	Logger     log.Logger
}

// RPCSubmitter posts signed transactions to a JSON-RPC 2.0 endpoint.
type RPCSubmitter struct {
	addr    string
	http    *http.Client
	retries uint64
	logger  log.Logger
	nextID  atomic.Uint64
}

var _ Submitter = (*RPCSubmitter)(nil)

func NewRPCSubmitter(cfg RPCConfig) (*RPCSubmitter, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("ledger rpc address is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNoopLogger()
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &RPCSubmitter{
		addr:    strings.TrimRight(cfg.Addr, "/"),
		http:    hc,
		retries: cfg.MaxRetries,
		logger:  cfg.Logger,
	}, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string { return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message) }

type rpcResponse struct {
	Result *struct {
		Digest string `json:"digest"`
	} `json:"result"`
	Error *rpcError `json:"error"`
}

// Submit sends tx once, retrying only transport failures and 5xx answers.
func (r *RPCSubmitter) Submit(ctx context.Context, tx SignedTx) (string, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      r.nextID.Add(1),
		Method:  submitMethod,
		Params:  []any{tx},
	})
	if err != nil {
		return "", fmt.Errorf("encode rpc request: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxElapsedTime = time.Minute

	var digest string
	err = backoff.RetryNotify(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.addr, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := r.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusInternalServerError {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
			return fmt.Errorf("ledger rpc %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		}
		var out rpcResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode rpc response: %w", err))
		}
		if out.Error != nil {
			if out.Error.Code == CodeAlreadyCertified {
				return backoff.Permanent(fmt.Errorf("%w: %s", ErrAlreadyCertified, out.Error.Message))
			}
			return backoff.Permanent(out.Error)
		}
		if out.Result == nil {
			return backoff.Permanent(fmt.Errorf("rpc response has neither result nor error"))
		}
		digest = out.Result.Digest
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(b, r.retries), ctx), func(err error, d time.Duration) {
		r.logger.Warn(ctx, "Retrying transaction submission", "kind", tx.Kind, "backoff", d, "error", err)
	})
	if err != nil {
		return "", err
	}
	return digest, nil
}
