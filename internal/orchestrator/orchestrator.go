// Package orchestrator drives the proof lifecycle:
//
//	idle -> initializing -> generating -> idle (proof held)
//	idle -> calldata -> previewing -> submitting -> complete
//
// Any failure moves the run to error. Reset returns to idle from any step and
// discards results of operations still in flight.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"starkshield/internal/calldata"
	"starkshield/internal/credential"
	"starkshield/internal/platform/metrics"
	"starkshield/internal/platform/tracer"
	"starkshield/internal/predicate"
	"starkshield/internal/prover"
	"starkshield/internal/submitter"
	"starkshield/internal/wallet"
	dErrors "starkshield/pkg/domain-errors"
)

// CalldataBuilder converts a proof into registry calldata.
type CalldataBuilder interface {
	Build(ctx context.Context, proof *prover.ProofResult, p predicate.Type) (*calldata.Result, error)
}

// Submitter sends calldata through a wallet.
type Submitter interface {
	Submit(ctx context.Context, w wallet.Wallet, cd *calldata.Result) (*submitter.SubmitResult, error)
}

// Orchestrator owns one lifecycle at a time. Operations are rejected with
// invalid_state while another is in flight, so callers may share an instance
// across goroutines.
type Orchestrator struct {
	runtime   prover.Runtime
	backend   prover.Backend
	builder   CalldataBuilder
	submitter Submitter
	verifier  prover.Verifier
	mapper    *credential.WitnessMapper
	layouts   predicate.Layouts
	version   string

	logger  *slog.Logger
	tracer  tracer.Tracer
	metrics *metrics.Metrics
	now     func() time.Time
	newID   func() string

	mu    sync.Mutex
	state runState
}

type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(o *Orchestrator) {
		o.tracer = t
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithVerifier enables VerifyProof.
func WithVerifier(v prover.Verifier) Option {
	return func(o *Orchestrator) {
		o.verifier = v
	}
}

func WithWitnessMapper(m *credential.WitnessMapper) Option {
	return func(o *Orchestrator) {
		o.mapper = m
	}
}

// WithLayouts selects the public-signal layout table and version.
func WithLayouts(layouts predicate.Layouts, version string) Option {
	return func(o *Orchestrator) {
		o.layouts = layouts
		o.version = version
	}
}

// WithClock overrides the clock used to measure proving time.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithRunIDs overrides run id generation.
func WithRunIDs(newID func() string) Option {
	return func(o *Orchestrator) {
		o.newID = newID
	}
}

func New(runtime prover.Runtime, backend prover.Backend, builder CalldataBuilder, sub Submitter, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		runtime:   runtime,
		backend:   backend,
		builder:   builder,
		submitter: sub,
		mapper:    credential.NewWitnessMapper(),
		layouts:   predicate.DefaultLayouts(),
		version:   predicate.DefaultLayoutVersion,
		logger:    slog.Default(),
		tracer:    tracer.NewNoop(),
		now:       time.Now,
		newID:     uuid.NewString,
		state:     runState{step: StepIdle},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Step returns the current lifecycle state.
func (o *Orchestrator) Step() Step {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.step
}

// Snapshot returns a copy of the run-scoped state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.snapshot()
}

// PublicOutputs returns the named public signals of the held proof.
func (o *Orchestrator) PublicOutputs() (predicate.PublicOutputs, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.outputs == nil {
		return predicate.PublicOutputs{}, false
	}
	return *o.state.outputs, true
}

// Reset returns to idle and clears every run-scoped result. Operations still in
// flight finish in the background and their results are dropped.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	prev := o.state
	o.state = runState{step: StepIdle, generation: prev.generation + 1}
	o.mu.Unlock()

	o.logger.Info("proof lifecycle reset", "run_id", prev.runID, "from", string(prev.step))
}

// GenerateProof initializes the circuit runtime, executes the circuit against the
// mapped witness inputs and proves the witness. On success the orchestrator is
// idle again and holds the proof.
func (o *Orchestrator) GenerateProof(ctx context.Context, c credential.Credential, params credential.Parameters) (_ *prover.ProofResult, err error) {
	if params == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "proof parameters are required")
	}
	p := params.Predicate()

	run, err := o.begin(StepIdle, StepInitializing, func(s *runState) error {
		s.runID = o.newID()
		s.predicate = p
		s.hasPred = true
		s.clearResults()
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx, span := o.tracer.Start(ctx, tracer.SpanGenerateProof,
		tracer.String(tracer.AttrRunID, run.id),
		tracer.String(tracer.AttrPredicate, p.String()),
	)
	defer func() { span.End(err) }()

	stageErr := func(err error) error {
		return dErrors.Wrap(err, dErrors.CodeStage, fmt.Sprintf("%s proof generation failed: %v", p.Label(), err))
	}

	if err := o.runtime.Init(ctx, p); err != nil {
		return nil, o.fail(ctx, run, string(StepInitializing), stageErr(err))
	}
	if err := o.advance(ctx, run, StepGenerating, nil); err != nil {
		return nil, err
	}

	inputs, err := o.mapper.Map(c, params)
	if err != nil {
		return nil, o.fail(ctx, run, string(StepGenerating), stageErr(err))
	}

	proof, err := o.prove(ctx, p, inputs)
	if err != nil {
		return nil, o.fail(ctx, run, string(StepGenerating), stageErr(err))
	}

	outputs, err := o.parseOutputs(p, proof)
	if err != nil {
		return nil, o.fail(ctx, run, string(StepGenerating), stageErr(err))
	}
	span.SetAttributes(
		tracer.Int(tracer.AttrSignalCount, len(proof.PublicInputs)),
		tracer.String(tracer.AttrNullifier, outputs.Nullifier),
	)

	if err := o.advance(ctx, run, StepIdle, func(s *runState) {
		s.proof = proof
		s.outputs = &outputs
	}); err != nil {
		return nil, err
	}
	return proof, nil
}

func (o *Orchestrator) prove(ctx context.Context, p predicate.Type, inputs *credential.Inputs) (*prover.ProofResult, error) {
	execCtx, execSpan := o.tracer.Start(ctx, tracer.SpanExecute, tracer.String(tracer.AttrPredicate, p.String()))
	witness, err := o.runtime.Execute(execCtx, p, inputs.Merged())
	execSpan.End(err)
	if err != nil {
		return nil, err
	}

	proveCtx, proveSpan := o.tracer.Start(ctx, tracer.SpanProve, tracer.String(tracer.AttrPredicate, p.String()))
	start := o.now()
	proof, err := o.backend.Prove(proveCtx, witness)
	elapsed := o.now().Sub(start)
	proveSpan.SetAttributes(tracer.Duration("proving_time_ms", elapsed))
	proveSpan.End(err)
	if err != nil {
		return nil, err
	}
	if proof == nil {
		return nil, fmt.Errorf("backend returned no proof")
	}
	proof.ProvingTime = elapsed
	o.metrics.ObserveProving(p.String(), elapsed)
	return proof, nil
}

func (o *Orchestrator) parseOutputs(p predicate.Type, proof *prover.ProofResult) (predicate.PublicOutputs, error) {
	layout, err := o.layouts.Lookup(o.version, p)
	if err != nil {
		return predicate.PublicOutputs{}, err
	}
	return layout.Parse(proof.PublicInputs)
}

// PrepareCalldata builds the registry calldata for proof and moves to previewing.
// A nil proof selects the proof held from GenerateProof. The public outputs are
// re-read from whichever proof is encoded.
func (o *Orchestrator) PrepareCalldata(ctx context.Context, proof *prover.ProofResult, p predicate.Type) (*calldata.Result, error) {
	run, err := o.begin(StepIdle, StepCalldata, func(s *runState) error {
		if proof == nil {
			proof = s.proof
		}
		if proof == nil {
			return dErrors.New(dErrors.CodeInvalidState, "no proof to encode; generate a proof first")
		}
		outputs, err := o.parseOutputs(p, proof)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvalidInput, fmt.Sprintf("invalid proof: %v", err))
		}
		if s.runID == "" {
			s.runID = o.newID()
		}
		s.proof = proof
		s.outputs = &outputs
		s.predicate = p
		s.hasPred = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	cd, err := o.builder.Build(ctx, proof, p)
	if err != nil {
		return nil, o.fail(ctx, run, string(StepCalldata), err)
	}
	if err := o.advance(ctx, run, StepPreviewing, func(s *runState) {
		s.calldata = cd
	}); err != nil {
		return nil, err
	}
	return cd, nil
}

// SubmitOnChain sends calldata through w. It is only valid while previewing. A
// nil cd selects the calldata held from PrepareCalldata.
func (o *Orchestrator) SubmitOnChain(ctx context.Context, w wallet.Wallet, cd *calldata.Result) (*submitter.SubmitResult, error) {
	run, err := o.begin(StepPreviewing, StepSubmitting, func(s *runState) error {
		if cd == nil {
			cd = s.calldata
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	res, err := o.submitter.Submit(ctx, w, cd)
	if err != nil {
		return nil, o.fail(ctx, run, string(StepSubmitting), err)
	}
	if err := o.advance(ctx, run, StepComplete, func(s *runState) {
		s.submit = res
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// VerifyProof checks the held proof off-chain. It does not change the step.
func (o *Orchestrator) VerifyProof(ctx context.Context) (bool, error) {
	if o.verifier == nil {
		return false, dErrors.New(dErrors.CodeInvalidState, "no local verifier configured")
	}
	o.mu.Lock()
	proof, p, ok := o.state.proof, o.state.predicate, o.state.hasPred
	o.mu.Unlock()
	if proof == nil || !ok {
		return false, dErrors.New(dErrors.CodeInvalidState, "no proof to verify; generate a proof first")
	}
	valid, err := o.verifier.Verify(ctx, p, proof)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeStage, fmt.Sprintf("Proof verification failed: %v", err))
	}
	return valid, nil
}

type run struct {
	id         string
	generation uint64
	predicate  predicate.Type
}

// begin moves from one step to the next under the lock and returns the run the
// caller now owns. A prepare error leaves the state untouched.
func (o *Orchestrator) begin(from, to Step, prepare func(*runState) error) (run, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.step != from {
		return run{}, dErrors.New(dErrors.CodeInvalidState,
			fmt.Sprintf("cannot move to %s while %s", to, o.state.step))
	}
	if err := prepare(&o.state); err != nil {
		return run{}, err
	}
	o.state.step = to
	r := run{id: o.state.runID, generation: o.state.generation, predicate: o.state.predicate}
	o.logger.Debug("proof lifecycle transition", "run_id", r.id, "predicate", r.predicate.String(), "from", string(from), "to", string(to))
	return r, nil
}

// advance applies a transition only if no reset happened since r began.
func (o *Orchestrator) advance(ctx context.Context, r run, to Step, mutate func(*runState)) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.generation != r.generation {
		return o.stale(ctx, r)
	}
	if mutate != nil {
		mutate(&o.state)
	}
	from := o.state.step
	o.state.step = to
	o.logger.DebugContext(ctx, "proof lifecycle transition", "run_id", r.id, "predicate", r.predicate.String(), "from", string(from), "to", string(to))
	return nil
}

// fail moves the run to error with err's message preserved for display. A run
// that was reset meanwhile is left alone.
func (o *Orchestrator) fail(ctx context.Context, r run, stage string, err error) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.generation != r.generation {
		return o.stale(ctx, r)
	}
	o.state.step = StepError
	o.state.err = err.Error()
	o.metrics.IncStageFailure(stage)
	o.logger.ErrorContext(ctx, "proof lifecycle failed", "run_id", r.id, "predicate", r.predicate.String(), "stage", stage, "error", err)
	return err
}

func (o *Orchestrator) stale(ctx context.Context, r run) error {
	o.logger.InfoContext(ctx, "discarding result of reset run", "run_id", r.id)
	return dErrors.New(dErrors.CodeStaleRun, fmt.Sprintf("run %s was reset; result discarded", r.id))
}
