// Package bridge implements wallet.Wallet against a local wallet bridge that
// speaks the Starknet wallet API over JSON-RPC. Chain reads and transaction
// tracking go through the node.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"

	"starkshield/internal/chain/rpc"
	"starkshield/internal/wallet"
	dErrors "starkshield/pkg/domain-errors"
)

// Wallet API methods used on the bridge.
const (
	MethodRequestChainID = "wallet_requestChainId"
	MethodAddInvoke      = "wallet_addInvokeTransaction"
)

// Node is the subset of the node client the bridge relies on.
type Node interface {
	ChainID(ctx context.Context) (string, error)
	WaitForTransaction(ctx context.Context, hash string, interval time.Duration) (*rpc.Receipt, error)
}

// Wallet talks to the bridge for signing and to the node for chain state.
type Wallet struct {
	bridge       jsonrpc.RPCClient
	node         Node
	logger       *slog.Logger
	pollInterval time.Duration
}

type Option func(*Wallet)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Wallet) {
		w.logger = logger
	}
}

// WithPollInterval sets the receipt polling interval. Default is 3s.
func WithPollInterval(d time.Duration) Option {
	return func(w *Wallet) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

func New(bridgeURL string, node Node, opts ...Option) *Wallet {
	w := &Wallet{
		bridge: jsonrpc.NewClientWithOpts(bridgeURL, &jsonrpc.RPCClientOpts{
			HTTPClient: &http.Client{Timeout: 5 * time.Minute},
		}),
		node:         node,
		logger:       slog.Default(),
		pollInterval: 3 * time.Second,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

var _ wallet.Wallet = (*Wallet)(nil)

// RequestChainID asks the extension behind the bridge. A bridge that does not
// implement the method reports no chain id.
func (w *Wallet) RequestChainID(ctx context.Context) (string, error) {
	var out string
	err := w.bridge.CallForInto(ctx, &out, MethodRequestChainID, []any{})
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) && rpcErr.Code == -32601 {
		w.logger.DebugContext(ctx, "wallet bridge does not report its network")
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", MethodRequestChainID, err)
	}
	return out, nil
}

// ChainID returns the chain of the node the account is bound to.
func (w *Wallet) ChainID(ctx context.Context) (string, error) {
	return w.node.ChainID(ctx)
}

type invokeParams struct {
	Calls []wallet.Call `json:"calls"`
}

type invokeResult struct {
	TransactionHash string `json:"transaction_hash"`
}

// Execute asks the bridge to sign and send calls. The user may reject the request
// in the wallet, which surfaces as an error.
func (w *Wallet) Execute(ctx context.Context, calls []wallet.Call) (string, error) {
	if len(calls) == 0 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "no calls to execute")
	}
	var raw json.RawMessage
	if err := w.bridge.CallForInto(ctx, &raw, MethodAddInvoke, []any{invokeParams{Calls: calls}}); err != nil {
		return "", fmt.Errorf("%s: %w", MethodAddInvoke, err)
	}
	var res invokeResult
	if err := json.Unmarshal(raw, &res); err != nil || res.TransactionHash == "" {
		return "", dErrors.New(dErrors.CodeDecoding, fmt.Sprintf("%s returned no transaction hash", MethodAddInvoke))
	}
	w.logger.InfoContext(ctx, "transaction sent", "tx_hash", res.TransactionHash)
	return res.TransactionHash, nil
}

// WaitForTransaction polls the node until the transaction is accepted.
func (w *Wallet) WaitForTransaction(ctx context.Context, txHash string) error {
	_, err := w.node.WaitForTransaction(ctx, txHash, w.pollInterval)
	return err
}
