// Package prover defines the ports to the circuit-execution runtime and the
// proving backend. Implementations live in subpackages.
package prover

import (
	"context"
	"time"

	"starkshield/internal/credential"
	"starkshield/internal/predicate"
)

// Witness is the compressed witness produced by circuit execution.
type Witness struct {
	Predicate predicate.Type
	Data      []byte
}

// ProofResult is a generated proof with its public signals. It is consumed once by
// the calldata builder and then discarded.
type ProofResult struct {
	Proof        []byte        `json:"proof"`
	PublicInputs []string      `json:"public_inputs"`
	ProvingTime  time.Duration `json:"proving_time"`
}

// Runtime executes a predicate circuit against its inputs.
type Runtime interface {
	// Init loads the runtime for a circuit. Calling it again for a loaded circuit is a no-op.
	Init(ctx context.Context, p predicate.Type) error
	Execute(ctx context.Context, p predicate.Type, inputs credential.InputMap) (*Witness, error)
}

// Backend turns a witness into a proof. Implementations fill Proof and PublicInputs;
// the caller measures ProvingTime.
type Backend interface {
	Prove(ctx context.Context, w *Witness) (*ProofResult, error)
}

// Verifier checks a proof off-chain. It is a sanity check only; the registry
// contract performs the authoritative verification.
type Verifier interface {
	Verify(ctx context.Context, p predicate.Type, proof *ProofResult) (bool, error)
}
