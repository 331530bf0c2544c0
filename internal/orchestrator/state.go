package orchestrator

import (
	"starkshield/internal/calldata"
	"starkshield/internal/predicate"
	"starkshield/internal/prover"
	"starkshield/internal/submitter"
)

// Step is a lifecycle state.
type Step string

const (
	StepIdle         Step = "idle"
	StepInitializing Step = "initializing"
	StepGenerating   Step = "generating"
	StepCalldata     Step = "calldata"
	StepPreviewing   Step = "previewing"
	StepSubmitting   Step = "submitting"
	StepComplete     Step = "complete"
	StepError        Step = "error"
)

// Busy reports whether an operation is in flight.
func (s Step) Busy() bool {
	switch s {
	case StepInitializing, StepGenerating, StepCalldata, StepSubmitting:
		return true
	}
	return false
}

// Terminal reports whether only Reset can leave s.
func (s Step) Terminal() bool {
	return s == StepComplete || s == StepError
}

// Snapshot is a copy of the orchestrator's run-scoped state.
type Snapshot struct {
	Step          Step                     `json:"step"`
	RunID         string                   `json:"run_id,omitempty"`
	Predicate     *predicate.Type          `json:"predicate,omitempty"`
	Proof         *prover.ProofResult      `json:"proof,omitempty"`
	PublicOutputs *predicate.PublicOutputs `json:"public_outputs,omitempty"`
	Calldata      *calldata.Result         `json:"-"`
	Submit        *submitter.SubmitResult  `json:"submit,omitempty"`
	Error         string                   `json:"error,omitempty"`
}

type runState struct {
	step       Step
	runID      string
	generation uint64
	predicate  predicate.Type
	hasPred    bool
	proof      *prover.ProofResult
	outputs    *predicate.PublicOutputs
	calldata   *calldata.Result
	submit     *submitter.SubmitResult
	err        string
}

func (r *runState) clearResults() {
	r.proof = nil
	r.outputs = nil
	r.calldata = nil
	r.submit = nil
	r.err = ""
}

func (r *runState) snapshot() Snapshot {
	s := Snapshot{
		Step:          r.step,
		RunID:         r.runID,
		Proof:         r.proof,
		PublicOutputs: r.outputs,
		Calldata:      r.calldata,
		Submit:        r.submit,
		Error:         r.err,
	}
	if r.hasPred {
		p := r.predicate
		s.Predicate = &p
	}
	return s
}
