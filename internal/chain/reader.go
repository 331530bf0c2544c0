// Package chain reads verification state from the registry contract.
package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"

	dErrors "starkshield/pkg/domain-errors"
	"starkshield/pkg/felt"
)

// Registry entry points.
const (
	MethodIsNullifierUsed       = "is_nullifier_used"
	MethodGetVerificationRecord = "get_verification_record"
	MethodVerifyAndRegister     = "verify_and_register"
)

// Contract is a read handle on a deployed contract. Results may come back in any
// of the shapes the normalizers accept.
type Contract interface {
	Call(ctx context.Context, method string, calldata ...string) (any, error)
}

// ContractFactory produces the contract handle for an address.
type ContractFactory func(address string) Contract

// VerificationRecord projects a registry entry. It is always re-derived from a
// live query.
type VerificationRecord struct {
	Exists             bool
	Nullifier          *big.Int
	AttributeKey       *big.Int
	ThresholdOrSetHash *big.Int
	Timestamp          uint64
	CircuitID          uint8
}

// EmptyRecord is the record of a nullifier the registry does not know.
func EmptyRecord() *VerificationRecord {
	return &VerificationRecord{
		Nullifier:          new(big.Int),
		AttributeKey:       new(big.Int),
		ThresholdOrSetHash: new(big.Int),
	}
}

type recordJSON struct {
	Exists             bool   `json:"exists"`
	Nullifier          string `json:"nullifier"`
	AttributeKey       string `json:"attribute_key"`
	ThresholdOrSetHash string `json:"threshold_or_set_hash"`
	Timestamp          uint64 `json:"timestamp"`
	CircuitID          uint8  `json:"circuit_id"`
}

// MarshalJSON renders the wide integers as hex.
func (r VerificationRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(recordJSON{
		Exists:             r.Exists,
		Nullifier:          felt.Hex(r.Nullifier),
		AttributeKey:       felt.Hex(r.AttributeKey),
		ThresholdOrSetHash: felt.Hex(r.ThresholdOrSetHash),
		Timestamp:          r.Timestamp,
		CircuitID:          r.CircuitID,
	})
}

var u256Limit = new(big.Int).Lsh(big.NewInt(1), 256)

// ParseNullifier reads a nullifier given as hex or decimal.
func ParseNullifier(s string) (*big.Int, error) {
	n, err := felt.ParseInt(s)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("invalid nullifier: %v", err))
	}
	if n.Cmp(u256Limit) >= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "nullifier exceeds 256 bits")
	}
	return n, nil
}

// U256Calldata encodes v as the (low, high) limb pair of a u256 argument.
func U256Calldata(v *big.Int) []string {
	low, high := felt.SplitU256(v)
	return []string{felt.Hex(low), felt.Hex(high)}
}

// Reader answers existence and record queries for nullifiers.
type Reader struct {
	contract Contract
	logger   *slog.Logger
}

type Option func(*Reader)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Reader) {
		r.logger = logger
	}
}

// NewReader obtains the registry handle from factory once and keeps it.
func NewReader(factory ContractFactory, registryAddress string, opts ...Option) *Reader {
	r := &Reader{contract: factory(registryAddress), logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Exists reports whether the registry has recorded nullifier.
func (r *Reader) Exists(ctx context.Context, nullifier *big.Int) (bool, error) {
	if nullifier == nil {
		return false, dErrors.New(dErrors.CodeInvalidInput, "nullifier is required")
	}
	res, err := r.contract.Call(ctx, MethodIsNullifierUsed, U256Calldata(nullifier)...)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeChainQuery,
			fmt.Sprintf("%s failed: %v", MethodIsNullifierUsed, err))
	}
	used, err := DecodeBool(res)
	if err != nil {
		return false, err
	}
	return used, nil
}

// Record fetches the full registry entry. For an unknown nullifier it returns
// EmptyRecord without issuing the record query.
func (r *Reader) Record(ctx context.Context, nullifier *big.Int) (*VerificationRecord, error) {
	exists, err := r.Exists(ctx, nullifier)
	if err != nil {
		return nil, err
	}
	if !exists {
		return EmptyRecord(), nil
	}

	res, err := r.contract.Call(ctx, MethodGetVerificationRecord, U256Calldata(nullifier)...)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeChainQuery,
			fmt.Sprintf("%s failed: %v", MethodGetVerificationRecord, err))
	}
	rec, err := DecodeRecord(res)
	if err != nil {
		r.logger.WarnContext(ctx, "unrecognized verification record", "nullifier", felt.Hex(nullifier), "error", err)
		return nil, err
	}
	return rec, nil
}
