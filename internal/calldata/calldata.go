// Package calldata turns a generated proof into the argument list of the
// registry's verify_and_register entry point.
package calldata

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"starkshield/internal/platform/metrics"
	"starkshield/internal/platform/tracer"
	"starkshield/internal/predicate"
	"starkshield/internal/prover"
	dErrors "starkshield/pkg/domain-errors"
	"starkshield/pkg/felt"
)

// Result is the length-prefixed proof span for one predicate, ready to follow the
// circuit id in verify_and_register.
type Result struct {
	Calldata  []*big.Int
	Predicate predicate.Type
}

// Hex renders the span as 0x-prefixed hex, the form submitted to the wallet.
func (r Result) Hex() []string {
	out := make([]string, len(r.Calldata))
	for i, v := range r.Calldata {
		out[i] = felt.Hex(v)
	}
	return out
}

// Encoder produces full verifier calldata from a proof, its flattened public
// inputs and the verifying key.
type Encoder interface {
	Encode(ctx context.Context, proof, publicInputs, vk []byte) ([]*big.Int, error)
}

// VKProvider loads the verifying key of a predicate.
type VKProvider interface {
	Fetch(ctx context.Context, p predicate.Type) ([]byte, error)
}

// Builder implements proof-to-calldata translation.
type Builder struct {
	vks     VKProvider
	encoder Encoder
	logger  *slog.Logger
	tracer  tracer.Tracer
	metrics *metrics.Metrics
}

type Option func(*Builder)

func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = logger
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(b *Builder) {
		b.tracer = t
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Builder) {
		b.metrics = m
	}
}

func NewBuilder(vks VKProvider, encoder Encoder, opts ...Option) *Builder {
	b := &Builder{
		vks:     vks,
		encoder: encoder,
		logger:  slog.Default(),
		tracer:  tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build flattens the public signals, loads the verifying key, encodes and frames
// the result as a length-prefixed span.
func (b *Builder) Build(ctx context.Context, proof *prover.ProofResult, p predicate.Type) (_ *Result, err error) {
	ctx, span := b.tracer.Start(ctx, tracer.SpanBuildCalldata, tracer.String(tracer.AttrPredicate, p.String()))
	defer func() { span.End(err) }()

	if proof == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "proof result is required")
	}
	if !p.Valid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown predicate %d", int(p)))
	}

	public, err := felt.Flatten(proof.PublicInputs)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, fmt.Sprintf("flatten public inputs: %v", err))
	}

	vk, err := b.vks.Fetch(ctx, p)
	if err != nil {
		return nil, err
	}

	raw, err := b.encoder.Encode(ctx, proof.Proof, public, vk)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStage, fmt.Sprintf("encode calldata: %v", err))
	}

	framed, prefixed := FrameSpan(raw)
	span.SetAttributes(tracer.Int(tracer.AttrFelts, len(framed)), tracer.Bool("span.prefixed_by_encoder", prefixed))
	if prefixed {
		span.AddEvent(tracer.EventLengthPrefixKept, tracer.Int(tracer.AttrFelts, len(framed)))
	} else {
		span.AddEvent(tracer.EventLengthPrefixAdded, tracer.Int(tracer.AttrFelts, len(framed)))
	}
	b.logger.DebugContext(ctx, "calldata built",
		"predicate", p.String(),
		"felts", len(framed),
		"prefixed_by_encoder", prefixed,
	)
	return &Result{Calldata: framed, Predicate: p}, nil
}

// FrameSpan returns calldata as a length-prefixed span. Encoder versions differ on
// whether they emit the prefix, so a sequence whose first element equals the
// count of the remaining elements is taken as already prefixed. The boolean
// reports which case applied. Apply it exactly once per encoder output.
func FrameSpan(calldata []*big.Int) ([]*big.Int, bool) {
	if len(calldata) > 0 && calldata[0] != nil &&
		calldata[0].Cmp(big.NewInt(int64(len(calldata)-1))) == 0 {
		return calldata, true
	}
	out := make([]*big.Int, 0, len(calldata)+1)
	out = append(out, big.NewInt(int64(len(calldata))))
	return append(out, calldata...), false
}
