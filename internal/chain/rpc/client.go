// Package rpc is a JSON-RPC client for the Starknet node API, limited to the
// calls the registry integration needs.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"

	"starkshield/internal/platform/metrics"
	"starkshield/internal/platform/tracer"
	dErrors "starkshield/pkg/domain-errors"
	"starkshield/pkg/platform/circuit"
)

// BlockLatest is the block tag used for view calls.
const BlockLatest = "latest"

// Starknet node error code for an unknown transaction hash.
const codeTxnHashNotFound = 29

// Client calls a Starknet node. Transport failures trip a circuit breaker so a
// dead endpoint fails fast.
type Client struct {
	rpc     jsonrpc.RPCClient
	breaker *circuit.Breaker
	logger  *slog.Logger
	tracer  tracer.Tracer
	metrics *metrics.Metrics
	timeout time.Duration
}

type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(c *Client) {
		c.tracer = t
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

// WithTimeout bounds each HTTP round trip. Default is 15s.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func New(url string, opts ...Option) *Client {
	c := &Client{
		breaker: circuit.New("starknet-rpc"),
		logger:  slog.Default(),
		tracer:  tracer.NewNoop(),
		timeout: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.rpc = jsonrpc.NewClientWithOpts(url, &jsonrpc.RPCClientOpts{
		HTTPClient: &http.Client{Timeout: c.timeout},
	})
	return c
}

// FunctionCall is the request object of starknet_call.
type FunctionCall struct {
	ContractAddress    string   `json:"contract_address"`
	EntryPointSelector string   `json:"entry_point_selector"`
	Calldata           []string `json:"calldata"`
}

// Call runs a view entry point at the latest block and returns the raw result felts.
func (c *Client) Call(ctx context.Context, contract, entrypoint string, calldata []string) ([]string, error) {
	if calldata == nil {
		calldata = []string{}
	}
	req := FunctionCall{
		ContractAddress:    contract,
		EntryPointSelector: Selector(entrypoint),
		Calldata:           calldata,
	}
	var out []string
	if err := c.do(ctx, "starknet_call", entrypoint, []any{req, BlockLatest}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ChainID returns the node's chain identifier as hex.
func (c *Client) ChainID(ctx context.Context) (string, error) {
	var out string
	if err := c.do(ctx, "starknet_chainId", "", []any{}, &out); err != nil {
		return "", err
	}
	return out, nil
}

// Receipt is the subset of a transaction receipt used to track acceptance.
type Receipt struct {
	TransactionHash string `json:"transaction_hash"`
	FinalityStatus  string `json:"finality_status"`
	ExecutionStatus string `json:"execution_status"`
	RevertReason    string `json:"revert_reason,omitempty"`
	BlockNumber     uint64 `json:"block_number,omitempty"`
}

// Accepted reports whether the transaction reached L2 or L1 finality.
func (r *Receipt) Accepted() bool {
	return r.FinalityStatus == "ACCEPTED_ON_L2" || r.FinalityStatus == "ACCEPTED_ON_L1"
}

// Reverted reports whether execution failed.
func (r *Receipt) Reverted() bool {
	return r.ExecutionStatus == "REVERTED"
}

// TransactionReceipt fetches a receipt. An unknown hash yields a not_found error.
func (c *Client) TransactionReceipt(ctx context.Context, hash string) (*Receipt, error) {
	var out Receipt
	err := c.do(ctx, "starknet_getTransactionReceipt", "", []any{hash}, &out)
	if err != nil {
		var rpcErr *jsonrpc.RPCError
		if errors.As(err, &rpcErr) && rpcErr.Code == codeTxnHashNotFound {
			return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("transaction %s not found", hash))
		}
		return nil, err
	}
	return &out, nil
}

// WaitForTransaction polls the receipt until the transaction is accepted. A
// reverted transaction is an error.
func (c *Client) WaitForTransaction(ctx context.Context, hash string, interval time.Duration) (*Receipt, error) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		receipt, err := c.TransactionReceipt(ctx, hash)
		switch {
		case err != nil && !dErrors.HasCode(err, dErrors.CodeNotFound):
			return nil, err
		case err == nil && receipt.Reverted():
			return receipt, dErrors.New(dErrors.CodeChainQuery,
				fmt.Sprintf("transaction %s reverted: %s", hash, receipt.RevertReason))
		case err == nil && receipt.Accepted():
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, dErrors.Wrap(ctx.Err(), dErrors.CodeChainQuery,
				fmt.Sprintf("waiting for transaction %s: %v", hash, ctx.Err()))
		case <-ticker.C:
		}
	}
}

func (c *Client) do(ctx context.Context, method, label string, params []any, out any) (err error) {
	metricLabel := method
	if label != "" {
		metricLabel = label
	}
	ctx, span := c.tracer.Start(ctx, tracer.SpanChainCall, tracer.String(tracer.AttrMethod, metricLabel))
	defer func() { span.End(err) }()

	if !c.breaker.Allow() {
		c.metrics.IncChainQuery(metricLabel, "breaker_open")
		return dErrors.Wrap(circuit.ErrOpen, dErrors.CodeChainQuery,
			fmt.Sprintf("%s: %s circuit is open", metricLabel, c.breaker.Name()))
	}

	var raw json.RawMessage
	callErr := c.rpc.CallForInto(ctx, &raw, method, params)

	var rpcErr *jsonrpc.RPCError
	switch {
	case callErr == nil:
		c.recordSuccess(ctx)
	case errors.As(callErr, &rpcErr):
		// The node answered; only the call itself failed.
		c.recordSuccess(ctx)
		c.metrics.IncChainQuery(metricLabel, "rpc_error")
		return dErrors.Wrap(callErr, dErrors.CodeChainQuery,
			fmt.Sprintf("%s: node error %d: %s", metricLabel, rpcErr.Code, rpcErr.Message))
	default:
		if change := c.breaker.RecordFailure(); change.Opened {
			c.logger.WarnContext(ctx, "rpc circuit opened", "breaker", c.breaker.Name(), "error", callErr)
		}
		c.metrics.IncChainQuery(metricLabel, "transport_error")
		return dErrors.Wrap(callErr, dErrors.CodeChainQuery, fmt.Sprintf("%s: %v", metricLabel, callErr))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		c.metrics.IncChainQuery(metricLabel, "decode_error")
		return dErrors.Wrap(err, dErrors.CodeDecoding, fmt.Sprintf("%s: unexpected result %s", metricLabel, truncate(raw, 80)))
	}
	c.metrics.IncChainQuery(metricLabel, "ok")
	return nil
}

func (c *Client) recordSuccess(ctx context.Context) {
	if change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.InfoContext(ctx, "rpc circuit closed", "breaker", c.breaker.Name())
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
