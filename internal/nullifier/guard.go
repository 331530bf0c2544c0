// Package nullifier checks whether a proof's nullifier is already registered
// before a submission is attempted.
package nullifier

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/big"

	"starkshield/internal/chain"
	"starkshield/internal/platform/metrics"
)

// Status is the result of a reuse check.
type Status string

const (
	StatusUnused Status = "unused"
	StatusUsed   Status = "used"
	// StatusError means the check could not be completed. It blocks submission.
	StatusError Status = "error"
)

// Phase labels when a check ran.
type Phase string

const (
	// PhasePreview runs when a proof becomes ready, so the caller can disable submission early.
	PhasePreview Phase = "preview"
	// PhasePreSubmit runs immediately before the transaction is sent.
	PhasePreSubmit Phase = "pre_submit"
	// PhaseLookup is an ad hoc status query.
	PhaseLookup Phase = "lookup"
)

// Outcome is a first-class guard result. A used nullifier carries the
// registry record so the caller can explain the conflict.
type Outcome struct {
	Status Status
	Record *chain.VerificationRecord
	Err    error
}

// CanSubmit reports whether submission may proceed.
func (o Outcome) CanSubmit() bool {
	return o.Status == StatusUnused
}

func (o Outcome) MarshalJSON() ([]byte, error) {
	out := struct {
		Status Status                    `json:"status"`
		Record *chain.VerificationRecord `json:"record,omitempty"`
		Error  string                    `json:"error,omitempty"`
	}{Status: o.Status, Record: o.Record}
	if o.Err != nil {
		out.Error = o.Err.Error()
	}
	return json.Marshal(out)
}

// RecordReader fetches registry records.
type RecordReader interface {
	Record(ctx context.Context, nullifier *big.Int) (*chain.VerificationRecord, error)
}

// Guard runs reuse checks against the registry.
type Guard struct {
	reader  RecordReader
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Guard)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) {
		g.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Guard) {
		g.metrics = m
	}
}

func NewGuard(reader RecordReader, opts ...Option) *Guard {
	g := &Guard{reader: reader, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CheckReuse runs an ad hoc check.
func (g *Guard) CheckReuse(ctx context.Context, nullifier string) Outcome {
	return g.Check(ctx, PhaseLookup, nullifier)
}

// Check never reports unused unless the registry confirmed it. Malformed input
// and failed queries both yield StatusError.
func (g *Guard) Check(ctx context.Context, phase Phase, nullifier string) Outcome {
	out := g.check(ctx, nullifier)
	g.metrics.IncNullifierCheck(string(phase), string(out.Status))

	switch out.Status {
	case StatusUsed:
		g.logger.InfoContext(ctx, "nullifier already registered", "phase", string(phase), "nullifier", nullifier)
	case StatusError:
		g.logger.WarnContext(ctx, "nullifier check failed", "phase", string(phase), "nullifier", nullifier, "error", out.Err)
	}
	return out
}

func (g *Guard) check(ctx context.Context, nullifier string) Outcome {
	n, err := chain.ParseNullifier(nullifier)
	if err != nil {
		return Outcome{Status: StatusError, Err: err}
	}
	rec, err := g.reader.Record(ctx, n)
	if err != nil {
		return Outcome{Status: StatusError, Err: err}
	}
	if rec == nil {
		return Outcome{Status: StatusError, Err: errNoRecord}
	}
	if !rec.Exists {
		return Outcome{Status: StatusUnused}
	}
	return Outcome{Status: StatusUsed, Record: rec}
}
