// Package submitter sends a prepared proof span to the registry through a
// connected wallet.
package submitter

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"starkshield/internal/calldata"
	"starkshield/internal/chain"
	"starkshield/internal/platform/metrics"
	"starkshield/internal/platform/tracer"
	"starkshield/internal/predicate"
	"starkshield/internal/wallet"
	dErrors "starkshield/pkg/domain-errors"
)

// SubmitResult describes an accepted registration.
type SubmitResult struct {
	TxHash    string         `json:"tx_hash"`
	CircuitID uint8          `json:"circuit_id"`
	Predicate predicate.Type `json:"predicate"`
	Success   bool           `json:"success"`
}

// NetworkGuard rejects wallets connected to the wrong chain.
type NetworkGuard interface {
	AssertCorrectNetwork(ctx context.Context, w wallet.Wallet) error
}

// Submitter builds the verify_and_register invocation and waits for it to land.
type Submitter struct {
	registry string
	guard    NetworkGuard
	circuits predicate.CircuitIDs
	logger   *slog.Logger
	tracer   tracer.Tracer
	metrics  *metrics.Metrics
}

type Option func(*Submitter)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Submitter) {
		s.logger = logger
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Submitter) {
		s.tracer = t
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Submitter) {
		s.metrics = m
	}
}

func WithCircuitIDs(ids predicate.CircuitIDs) Option {
	return func(s *Submitter) {
		s.circuits = ids
	}
}

func New(registryAddress string, guard NetworkGuard, opts ...Option) *Submitter {
	s := &Submitter{
		registry: registryAddress,
		guard:    guard,
		circuits: predicate.DefaultCircuitIDs(),
		logger:   slog.Default(),
		tracer:   tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Call renders the registry invocation: the circuit id in decimal followed by
// the already length-prefixed proof span.
func (s *Submitter) Call(cd *calldata.Result) (wallet.Call, uint8, error) {
	if cd == nil || len(cd.Calldata) == 0 {
		return wallet.Call{}, 0, dErrors.New(dErrors.CodeInvalidInput, "calldata is required")
	}
	id, err := s.circuits.For(cd.Predicate)
	if err != nil {
		return wallet.Call{}, 0, dErrors.New(dErrors.CodeInvalidInput, err.Error())
	}
	args := make([]string, 0, len(cd.Calldata)+1)
	args = append(args, strconv.FormatUint(uint64(id), 10))
	args = append(args, cd.Hex()...)
	return wallet.Call{
		ContractAddress: s.registry,
		Entrypoint:      chain.MethodVerifyAndRegister,
		Calldata:        args,
	}, id, nil
}

// Submit checks the wallet network before building anything, then sends the
// transaction and waits for acceptance.
func (s *Submitter) Submit(ctx context.Context, w wallet.Wallet, cd *calldata.Result) (_ *SubmitResult, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanSubmit)
	defer func() { span.End(err) }()

	if err = s.guard.AssertCorrectNetwork(ctx, w); err != nil {
		s.metrics.IncSubmission("network_mismatch")
		return nil, err
	}

	call, id, err := s.Call(cd)
	if err != nil {
		s.metrics.IncSubmission("failed")
		return nil, err
	}
	span.SetAttributes(
		tracer.Int(tracer.AttrCircuitID, int(id)),
		tracer.Int(tracer.AttrFelts, len(cd.Calldata)),
	)

	hash, err := w.Execute(ctx, []wallet.Call{call})
	if err != nil {
		s.metrics.IncSubmission("failed")
		return nil, dErrors.Wrap(err, dErrors.CodeStage, fmt.Sprintf("Submission failed: %v", err))
	}
	span.SetAttributes(tracer.String(tracer.AttrTxHash, hash))
	s.logger.InfoContext(ctx, "registration sent", "tx_hash", hash, "predicate", cd.Predicate.String(), "circuit_id", id)

	if err = w.WaitForTransaction(ctx, hash); err != nil {
		s.metrics.IncSubmission("rejected")
		return nil, dErrors.Wrap(err, dErrors.CodeStage, fmt.Sprintf("Transaction %s was not accepted: %v", hash, err))
	}

	s.metrics.IncSubmission("accepted")
	s.logger.InfoContext(ctx, "registration accepted", "tx_hash", hash)
	return &SubmitResult{TxHash: hash, CircuitID: id, Predicate: cd.Predicate, Success: true}, nil
}
