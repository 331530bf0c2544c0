package pipeline

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"starkshield/internal/calldata"
	"starkshield/internal/chain"
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

type stubRuntime struct{}

func (stubRuntime) Init(context.Context, predicate.Type) error { return nil }

func (stubRuntime) Execute(_ context.Context, p predicate.Type, _ credential.InputMap) (*prover.Witness, error) {
	return &prover.Witness{Predicate: p}, nil
}

type stubBackend struct{}

func (stubBackend) Prove(context.Context, *prover.Witness) (*prover.ProofResult, error) {
	return &prover.ProofResult{
		Proof:        []byte{0xaa},
		PublicInputs: []string{"0x1f2e3d4c", "0x5a6b7c8d", "0x6553f100", "0x12", "0x2a", "0xabc", "0x1f2e3d4c", "0x12"},
	}, nil
}

type stubBuilder struct{}

func (stubBuilder) Build(_ context.Context, _ *prover.ProofResult, p predicate.Type) (*calldata.Result, error) {
	return &calldata.Result{Calldata: []*big.Int{big.NewInt(1), big.NewInt(0xff)}, Predicate: p}, nil
}

type stubSubmitter struct {
	calls int
	err   error
}

func (s *stubSubmitter) Submit(_ context.Context, _ wallet.Wallet, cd *calldata.Result) (*submitter.SubmitResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &submitter.SubmitResult{TxHash: "0xfeed", CircuitID: 0, Predicate: cd.Predicate, Success: true}, nil
}

// registry answers record queries from a scripted sequence of states.
type registry struct {
	states []bool
	err    error
	calls  int
}

func (r *registry) Record(_ context.Context, n *big.Int) (*chain.VerificationRecord, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	used := r.states[min(r.calls, len(r.states))-1]
	if !used {
		return chain.EmptyRecord(), nil
	}
	return &chain.VerificationRecord{Exists: true, Nullifier: n, AttributeKey: big.NewInt(1), ThresholdOrSetHash: big.NewInt(18), Timestamp: 1700000500}, nil
}

type recordingPublisher struct {
	events []events.SubmissionEvent
	err    error
}

func (p *recordingPublisher) PublishSubmission(_ context.Context, ev events.SubmissionEvent) error {
	p.events = append(p.events, ev)
	return p.err
}

func validDocument() credential.Document {
	sig := make([]int, credential.SignatureLength)
	for i := range sig {
		sig[i] = 255 - i
	}
	return credential.Credential{
		SubjectID:      "0x0a1b2c",
		IssuerID:       "0x1f2e3d4c",
		CredentialType: "0x0",
		AttributeKey:   "0x1",
		AttributeValue: "0x19",
		IssuedAt:       "0x65000000",
		ExpiresAt:      "0x7a000000",
		SecretSalt:     "0xdeadbeef",
		Signature:      sig,
		IssuerPubKeyX:  "0x1f2e3d4c",
		IssuerPubKeyY:  "0x5a6b7c8d",
	}.Document()
}

func ageParams() credential.AgeParameters {
	return credential.AgeParameters{Threshold: 18, DappContextID: 42, Timestamp: credential.At(time.Unix(1700000000, 0))}
}

type SessionSuite struct {
	suite.Suite
	registry  *registry
	submitter *stubSubmitter
	orch      *orchestrator.Orchestrator
	store     *history.MemoryStore
	events    *recordingPublisher
	session   *Session
}

func TestSessionSuite(t *testing.T) {
	suite.Run(t, new(SessionSuite))
}

func (s *SessionSuite) SetupTest() {
	s.registry = &registry{states: []bool{false}}
	s.submitter = &stubSubmitter{}
	s.orch = orchestrator.New(stubRuntime{}, stubBackend{}, stubBuilder{}, s.submitter)
	s.store = history.NewMemoryStore()
	s.events = &recordingPublisher{}
	s.session = New(s.orch, nullifier.NewGuard(s.registry),
		WithHistory(s.store),
		WithEvents(s.events),
		WithClock(func() time.Time { return time.UnixMilli(1700000001000) }),
	)
}

func (s *SessionSuite) TestPrepareAndSubmit() {
	ctx := context.Background()
	preview, err := s.session.Prepare(ctx, validDocument(), ageParams())
	s.Require().NoError(err)
	s.Equal(nullifier.StatusUnused, preview.Nullifier.Status)
	s.Equal("0xabc", preview.PublicOutputs.Nullifier)
	s.Equal([]string{"0x1", "0xff"}, preview.Calldata)
	s.NotEmpty(preview.RunID)
	s.Equal(orchestrator.StepPreviewing, s.orch.Step())

	out, err := s.session.Submit(ctx, nil)
	s.Require().NoError(err)
	s.False(out.Blocked())
	s.Equal("0xfeed", out.Result.TxHash)
	s.Equal(orchestrator.StepComplete, s.orch.Step())
	s.Equal(2, s.registry.calls)

	stored, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Require().Len(stored, 1)
	s.Equal(history.Entry{
		TxHash:        "0xfeed",
		Nullifier:     "0xabc",
		PredicateType: predicate.Age,
		Timestamp:     1700000001000,
		AttributeKey:  "0x1",
		Threshold:     "0x12",
	}, stored[0])
	s.Equal(stored[0], *out.Entry)

	s.Require().Len(s.events.events, 1)
	s.Equal(preview.RunID, s.events.events[0].RunID)
	s.Equal("0x12", s.events.events[0].Threshold)
}

// A nullifier registered on both checks never reaches submission and the
// lifecycle stays in previewing.
func (s *SessionSuite) TestUsedNullifierBlocksSubmission() {
	s.registry.states = []bool{true, true}
	ctx := context.Background()

	preview, err := s.session.Prepare(ctx, validDocument(), ageParams())
	s.Require().NoError(err)
	s.Equal(nullifier.StatusUsed, preview.Nullifier.Status)
	s.Require().NotNil(preview.Nullifier.Record)

	out, err := s.session.Submit(ctx, nil)
	s.Require().NoError(err)
	s.True(out.Blocked())
	s.Equal(nullifier.StatusUsed, out.Nullifier.Status)
	s.Equal(uint64(1700000500), out.Nullifier.Record.Timestamp)
	s.Zero(s.submitter.calls)
	s.Equal(orchestrator.StepPreviewing, s.orch.Step())

	stored, _ := s.store.List(ctx)
	s.Empty(stored)
	s.Empty(s.events.events)
}

// The window between preview and submit can see another registration land.
func (s *SessionSuite) TestRegistrationLandingAfterPreviewBlocks() {
	s.registry.states = []bool{false, true}
	ctx := context.Background()

	preview, err := s.session.Prepare(ctx, validDocument(), ageParams())
	s.Require().NoError(err)
	s.True(preview.Nullifier.CanSubmit())

	out, err := s.session.Submit(ctx, nil)
	s.Require().NoError(err)
	s.True(out.Blocked())
	s.Zero(s.submitter.calls)
}

func (s *SessionSuite) TestFailedCheckFailsClosed() {
	ctx := context.Background()
	_, err := s.session.Prepare(ctx, validDocument(), ageParams())
	s.Require().NoError(err)

	s.registry.err = dErrors.New(dErrors.CodeChainQuery, "is_nullifier_used failed: connection refused")
	out, err := s.session.Submit(ctx, nil)
	s.Require().NoError(err)
	s.True(out.Blocked())
	s.Equal(nullifier.StatusError, out.Nullifier.Status)
	s.Zero(s.submitter.calls)
	s.Equal(orchestrator.StepPreviewing, s.orch.Step())
}

func (s *SessionSuite) TestInvalidCredentialNeverStartsARun() {
	doc := validDocument()
	delete(doc, credential.FieldSecretSalt)

	_, err := s.session.Prepare(context.Background(), doc, ageParams())
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	var verr *credential.ValidationError
	s.Require().ErrorAs(err, &verr)
	s.NotEmpty(verr.Errors)
	s.Equal(orchestrator.StepIdle, s.orch.Step())
	s.Zero(s.registry.calls)
}

func (s *SessionSuite) TestSubmitWithoutPreview() {
	_, err := s.session.Submit(context.Background(), nil)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *SessionSuite) TestSubmitFailureSurfacesAndSkipsHistory() {
	ctx := context.Background()
	_, err := s.session.Prepare(ctx, validDocument(), ageParams())
	s.Require().NoError(err)

	s.submitter.err = dErrors.New(dErrors.CodeNetworkMismatch, "wrong network")
	_, err = s.session.Submit(ctx, nil)
	s.True(dErrors.HasCode(err, dErrors.CodeNetworkMismatch))
	s.Equal(orchestrator.StepError, s.orch.Step())
	stored, _ := s.store.List(ctx)
	s.Empty(stored)
}

func (s *SessionSuite) TestPublishFailureDoesNotFailSubmission() {
	s.events.err = errors.New("broker down")
	ctx := context.Background()
	_, err := s.session.Prepare(ctx, validDocument(), ageParams())
	s.Require().NoError(err)

	out, err := s.session.Submit(ctx, nil)
	s.Require().NoError(err)
	s.False(out.Blocked())
}

func (s *SessionSuite) TestPrepareStartsNewRunAfterPreview() {
	ctx := context.Background()
	first, err := s.session.Prepare(ctx, validDocument(), ageParams())
	s.Require().NoError(err)
	second, err := s.session.Prepare(ctx, validDocument(), ageParams())
	s.Require().NoError(err)
	s.NotEqual(first.RunID, second.RunID)
	s.Equal(orchestrator.StepPreviewing, s.orch.Step())
}
