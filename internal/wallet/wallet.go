// Package wallet defines the capability a connected wallet must offer and the
// network check that gates submission.
package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	dErrors "starkshield/pkg/domain-errors"
	"starkshield/pkg/felt"
)

//go:generate mockgen -source=wallet.go -destination=mocks/mocks.go -package=mocks

// Call is one contract invocation in a wallet transaction.
type Call struct {
	ContractAddress string   `json:"contract_address"`
	Entrypoint      string   `json:"entry_point"`
	Calldata        []string `json:"calldata"`
}

// Wallet is a connected account able to sign and send transactions.
type Wallet interface {
	// RequestChainID asks the wallet extension which network it is on. An empty
	// result means the extension does not report one.
	RequestChainID(ctx context.Context) (string, error)
	// ChainID returns the chain the account session is bound to.
	ChainID(ctx context.Context) (string, error)
	// Execute signs and sends calls, returning the transaction hash.
	Execute(ctx context.Context, calls []Call) (string, error)
	// WaitForTransaction blocks until the transaction is accepted and fails if it reverted.
	WaitForTransaction(ctx context.Context, txHash string) error
}

// Network identifies the target chain by its hex chain id and its short-string alias.
type Network struct {
	ChainID string
	Alias   string
}

// Sepolia is Starknet Sepolia.
func Sepolia() Network {
	return Network{ChainID: "0x534e5f5345504f4c4941", Alias: "SN_SEPOLIA"}
}

// Matches accepts either encoding. Hex ids compare numerically so leading zeros
// and letter case do not matter.
func (n Network) Matches(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}
	if n.Alias != "" && id == n.Alias {
		return true
	}
	return felt.HasHexPrefix(id) && felt.Equal(id, n.ChainID)
}

func (n Network) String() string {
	if n.Alias == "" {
		return n.ChainID
	}
	return fmt.Sprintf("%s (%s)", n.Alias, n.ChainID)
}

// Source names which of the two wallet checks observed a chain id.
type Source string

const (
	SourceExtension Source = "extension"
	SourceAccount   Source = "account"
)

// MismatchError reports a wallet connected to another chain.
type MismatchError struct {
	Source   Source
	Observed string
	Expected Network
}

func (e *MismatchError) Error() string {
	if e.Source == SourceExtension {
		return fmt.Sprintf("wrong wallet network: extension is on %s, switch the wallet to %s before submitting",
			e.Observed, e.Expected)
	}
	return fmt.Sprintf("wrong network: account is connected to %s, switch the wallet to %s before submitting",
		e.Observed, e.Expected)
}

// NetworkGuard checks both the extension's network and the account's chain
// against the target network.
type NetworkGuard struct {
	network Network
	logger  *slog.Logger
}

type GuardOption func(*NetworkGuard)

func WithLogger(logger *slog.Logger) GuardOption {
	return func(g *NetworkGuard) {
		g.logger = logger
	}
}

func NewNetworkGuard(network Network, opts ...GuardOption) *NetworkGuard {
	g := &NetworkGuard{network: network, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *NetworkGuard) Network() Network {
	return g.network
}

// AssertCorrectNetwork queries the extension first, then the account. A failed
// query blocks submission the same way a mismatch does.
func (g *NetworkGuard) AssertCorrectNetwork(ctx context.Context, w Wallet) error {
	if w == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "wallet is not connected")
	}

	ext, err := w.RequestChainID(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeNetworkMismatch,
			fmt.Sprintf("could not read the wallet extension network: %v", err))
	}
	if ext != "" && !g.network.Matches(ext) {
		return g.mismatch(ctx, SourceExtension, ext)
	}

	acct, err := w.ChainID(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeNetworkMismatch,
			fmt.Sprintf("could not read the account chain id: %v", err))
	}
	if !g.network.Matches(acct) {
		return g.mismatch(ctx, SourceAccount, acct)
	}
	return nil
}

func (g *NetworkGuard) mismatch(ctx context.Context, source Source, observed string) error {
	merr := &MismatchError{Source: source, Observed: observed, Expected: g.network}
	g.logger.WarnContext(ctx, "wallet network mismatch", "source", string(source), "observed", observed, "expected", g.network.ChainID)
	return &dErrors.Error{Code: dErrors.CodeNetworkMismatch, Message: merr.Error(), Err: merr}
}
