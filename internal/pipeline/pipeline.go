// Package pipeline runs a full verification session: validate the credential,
// generate and encode the proof, gate on the nullifier, submit, then record the
// result.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"starkshield/internal/calldata"
	"starkshield/internal/credential"
	"starkshield/internal/events"
	"starkshield/internal/history"
	"starkshield/internal/nullifier"
	"starkshield/internal/orchestrator"
	"starkshield/internal/predicate"
	"starkshield/internal/prover"
	"starkshield/internal/submitter"
	"starkshield/internal/wallet"
	dErrors "starkshield/pkg/domain-errors"
)

// Lifecycle is the proof state machine driven by a session.
type Lifecycle interface {
	GenerateProof(ctx context.Context, c credential.Credential, params credential.Parameters) (*prover.ProofResult, error)
	PrepareCalldata(ctx context.Context, proof *prover.ProofResult, p predicate.Type) (*calldata.Result, error)
	SubmitOnChain(ctx context.Context, w wallet.Wallet, cd *calldata.Result) (*submitter.SubmitResult, error)
	Snapshot() orchestrator.Snapshot
	Reset()
}

// NullifierGuard checks nullifier reuse.
type NullifierGuard interface {
	Check(ctx context.Context, phase nullifier.Phase, n string) nullifier.Outcome
}

// Preview is a proof ready for submission.
type Preview struct {
	RunID         string                  `json:"run_id"`
	Predicate     predicate.Type          `json:"predicate"`
	Proof         *prover.ProofResult     `json:"proof"`
	PublicOutputs predicate.PublicOutputs `json:"public_outputs"`
	Calldata      []string                `json:"calldata"`
	Nullifier     nullifier.Outcome       `json:"nullifier_check"`
}

// SubmitOutcome is the result of a submission attempt. When the pre-submit
// nullifier check does not clear, Result is nil and nothing was sent.
type SubmitOutcome struct {
	Nullifier nullifier.Outcome       `json:"nullifier_check"`
	Result    *submitter.SubmitResult `json:"result,omitempty"`
	Entry     *history.Entry          `json:"entry,omitempty"`
}

// Blocked reports whether the nullifier gate stopped the submission.
func (o SubmitOutcome) Blocked() bool {
	return o.Result == nil
}

// Session sequences one lifecycle with its gates and side effects.
type Session struct {
	lifecycle Lifecycle
	guard     NullifierGuard
	history   history.Store
	events    events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*Session)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

func WithHistory(store history.Store) Option {
	return func(s *Session) {
		s.history = store
	}
}

func WithEvents(p events.Publisher) Option {
	return func(s *Session) {
		s.events = p
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

func New(lifecycle Lifecycle, guard NullifierGuard, opts ...Option) *Session {
	s := &Session{
		lifecycle: lifecycle,
		guard:     guard,
		history:   history.NewMemoryStore(),
		events:    events.NoopPublisher{},
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Prepare validates the credential, generates the proof, builds calldata and
// runs the speculative nullifier check. A session left in a finished or
// previewing state is reset first.
func (s *Session) Prepare(ctx context.Context, doc credential.Document, params credential.Parameters) (*Preview, error) {
	if params == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "proof parameters are required")
	}
	p := params.Predicate()

	if res := credential.Validate(doc, p); !res.Valid {
		return nil, res.Err(p)
	}
	c, err := doc.Credential()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, fmt.Sprintf("decode credential: %v", err))
	}

	if step := s.lifecycle.Snapshot().Step; step != orchestrator.StepIdle && !step.Busy() {
		s.lifecycle.Reset()
	}

	proof, err := s.lifecycle.GenerateProof(ctx, c, params)
	if err != nil {
		return nil, err
	}
	cd, err := s.lifecycle.PrepareCalldata(ctx, proof, p)
	if err != nil {
		return nil, err
	}

	snap := s.lifecycle.Snapshot()
	if snap.PublicOutputs == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "proof has no public outputs")
	}
	outcome := s.guard.Check(ctx, nullifier.PhasePreview, snap.PublicOutputs.Nullifier)

	return &Preview{
		RunID:         snap.RunID,
		Predicate:     p,
		Proof:         proof,
		PublicOutputs: *snap.PublicOutputs,
		Calldata:      cd.Hex(),
		Nullifier:     outcome,
	}, nil
}

// Submit re-checks the nullifier and sends the previewed calldata through w.
// A used or inconclusive check returns a blocked outcome and leaves the
// lifecycle in previewing.
func (s *Session) Submit(ctx context.Context, w wallet.Wallet) (*SubmitOutcome, error) {
	snap := s.lifecycle.Snapshot()
	if snap.Step != orchestrator.StepPreviewing || snap.PublicOutputs == nil {
		return nil, dErrors.New(dErrors.CodeInvalidState,
			fmt.Sprintf("nothing to submit while %s; prepare a proof first", snap.Step))
	}
	outputs := *snap.PublicOutputs

	outcome := s.guard.Check(ctx, nullifier.PhasePreSubmit, outputs.Nullifier)
	if !outcome.CanSubmit() {
		s.logger.InfoContext(ctx, "submission blocked by nullifier check",
			"run_id", snap.RunID, "nullifier", outputs.Nullifier, "status", string(outcome.Status))
		return &SubmitOutcome{Nullifier: outcome}, nil
	}

	res, err := s.lifecycle.SubmitOnChain(ctx, w, snap.Calldata)
	if err != nil {
		return nil, err
	}

	entry := history.NewEntry(res, outputs, s.now())
	if err := s.history.Append(ctx, entry); err != nil {
		s.logger.WarnContext(ctx, "failed to record verification history", "tx_hash", res.TxHash, "error", err)
	}
	s.publish(ctx, snap.RunID, res, outputs)

	return &SubmitOutcome{Nullifier: outcome, Result: res, Entry: &entry}, nil
}

func (s *Session) publish(ctx context.Context, runID string, res *submitter.SubmitResult, outputs predicate.PublicOutputs) {
	ev := events.SubmissionEvent{
		TxHash:       res.TxHash,
		Nullifier:    outputs.Nullifier,
		Predicate:    outputs.Predicate,
		CircuitID:    res.CircuitID,
		AttributeKey: outputs.EchoedAttributeKey,
		Threshold:    outputs.ThresholdOrSetHash(),
		RunID:        runID,
		Timestamp:    s.now().UTC(),
	}
	if err := s.events.PublishSubmission(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "failed to publish submission event", "tx_hash", res.TxHash, "error", err)
	}
}

// Snapshot exposes the lifecycle state.
func (s *Session) Snapshot() orchestrator.Snapshot {
	return s.lifecycle.Snapshot()
}

// Reset discards the current run.
func (s *Session) Reset() {
	s.lifecycle.Reset()
}
