// Package noir adapts the Noir toolchain (nargo for circuit execution, bb for
// UltraHonk proving) to the prover ports.
package noir

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"starkshield/internal/credential"
	"starkshield/internal/platform/toolexec"
	"starkshield/internal/predicate"
	"starkshield/internal/prover"
	"starkshield/pkg/felt"
)

// Config locates the toolchain and the circuit packages. Each circuit lives in
// CircuitsDir/<circuit name> with a Nargo.toml.
type Config struct {
	CircuitsDir string
	NargoBin    string
	BBBin       string
}

// Toolchain implements prover.Runtime, prover.Backend and prover.Verifier.
type Toolchain struct {
	cfg    Config
	runner toolexec.Runner
	logger *slog.Logger

	mu     sync.Mutex
	loaded map[predicate.Type]bool
}

type Option func(*Toolchain)

func WithRunner(r toolexec.Runner) Option {
	return func(t *Toolchain) {
		t.runner = r
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(t *Toolchain) {
		t.logger = logger
	}
}

func New(cfg Config, opts ...Option) *Toolchain {
	if cfg.NargoBin == "" {
		cfg.NargoBin = "nargo"
	}
	if cfg.BBBin == "" {
		cfg.BBBin = "bb"
	}
	t := &Toolchain{
		cfg:    cfg,
		runner: toolexec.ExecRunner{},
		logger: slog.Default(),
		loaded: map[predicate.Type]bool{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

var (
	_ prover.Runtime  = (*Toolchain)(nil)
	_ prover.Backend  = (*Toolchain)(nil)
	_ prover.Verifier = (*Toolchain)(nil)
)

// bb flags selecting UltraHonk with the keccak transcript and zero knowledge,
// which the on-chain verifier expects.
var honkFlags = []string{"--scheme", "ultra_honk", "--oracle_hash", "keccak", "--zk"}

func (t *Toolchain) circuitDir(p predicate.Type) string {
	return filepath.Join(t.cfg.CircuitsDir, p.String())
}

func (t *Toolchain) artifact(p predicate.Type) string {
	return filepath.Join(t.circuitDir(p), "target", p.String()+".json")
}

// Init compiles the circuit when no artifact exists yet.
func (t *Toolchain) Init(ctx context.Context, p predicate.Type) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.loaded[p] {
		return nil
	}

	dir := t.circuitDir(p)
	if _, err := os.Stat(filepath.Join(dir, "Nargo.toml")); err != nil {
		return fmt.Errorf("circuit %s not found in %s: %w", p, t.cfg.CircuitsDir, err)
	}
	if _, err := os.Stat(t.artifact(p)); errors.Is(err, os.ErrNotExist) {
		t.logger.InfoContext(ctx, "compiling circuit", "circuit", p.String())
		if _, err := t.runner.Run(ctx, dir, t.cfg.NargoBin, "compile"); err != nil {
			return fmt.Errorf("compile %s: %w", p, err)
		}
	}
	if _, err := os.Stat(t.artifact(p)); err != nil {
		return fmt.Errorf("circuit artifact for %s: %w", p, err)
	}

	t.loaded[p] = true
	return nil
}

// Execute writes the inputs to a per-call prover file and solves the witness.
func (t *Toolchain) Execute(ctx context.Context, p predicate.Type, inputs credential.InputMap) (*prover.Witness, error) {
	if err := t.Init(ctx, p); err != nil {
		return nil, err
	}
	dir := t.circuitDir(p)

	proverFile, err := os.CreateTemp(dir, "Prover-*.toml")
	if err != nil {
		return nil, fmt.Errorf("create prover file: %w", err)
	}
	defer t.remove(ctx, proverFile.Name())

	if err := toml.NewEncoder(proverFile).Encode(map[string]any(inputs)); err != nil {
		proverFile.Close()
		return nil, fmt.Errorf("encode circuit inputs: %w", err)
	}
	if err := proverFile.Close(); err != nil {
		return nil, fmt.Errorf("write prover file: %w", err)
	}

	name := strings.TrimSuffix(filepath.Base(proverFile.Name()), ".toml")
	witnessName := "witness-" + strings.TrimPrefix(name, "Prover-")
	witnessPath := filepath.Join(dir, "target", witnessName+".gz")
	defer t.remove(ctx, witnessPath)

	if _, err := t.runner.Run(ctx, dir, t.cfg.NargoBin, "execute", "--prover-name", name, witnessName); err != nil {
		return nil, fmt.Errorf("execute %s: %w", p, err)
	}
	data, err := os.ReadFile(witnessPath)
	if err != nil {
		return nil, fmt.Errorf("read witness: %w", err)
	}
	return &prover.Witness{Predicate: p, Data: data}, nil
}

// Prove runs bb in a scratch directory. Scratch clean-up failures are logged and
// never replace the proving outcome.
func (t *Toolchain) Prove(ctx context.Context, w *prover.Witness) (*prover.ProofResult, error) {
	if w == nil {
		return nil, fmt.Errorf("witness is required")
	}
	scratch, err := os.MkdirTemp("", "starkshield-prove-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer t.removeAll(ctx, scratch)

	witnessPath := filepath.Join(scratch, "witness.gz")
	if err := os.WriteFile(witnessPath, w.Data, 0o600); err != nil {
		return nil, fmt.Errorf("write witness: %w", err)
	}

	args := append([]string{"prove", "-b", t.artifact(w.Predicate), "-w", witnessPath, "-o", scratch}, honkFlags...)
	if _, err := t.runner.Run(ctx, scratch, t.cfg.BBBin, args...); err != nil {
		return nil, fmt.Errorf("prove %s: %w", w.Predicate, err)
	}

	proof, err := os.ReadFile(filepath.Join(scratch, "proof"))
	if err != nil {
		return nil, fmt.Errorf("read proof: %w", err)
	}
	raw, err := os.ReadFile(filepath.Join(scratch, "public_inputs"))
	if err != nil {
		return nil, fmt.Errorf("read public inputs: %w", err)
	}
	public, err := felt.Unflatten(raw)
	if err != nil {
		return nil, fmt.Errorf("decode public inputs: %w", err)
	}
	return &prover.ProofResult{Proof: proof, PublicInputs: public}, nil
}

// Verify derives the verifying key from the circuit artifact and checks the proof.
// A proof bb rejects yields false without an error.
func (t *Toolchain) Verify(ctx context.Context, p predicate.Type, proof *prover.ProofResult) (bool, error) {
	if proof == nil {
		return false, fmt.Errorf("proof is required")
	}
	if err := t.Init(ctx, p); err != nil {
		return false, err
	}
	scratch, err := os.MkdirTemp("", "starkshield-verify-*")
	if err != nil {
		return false, fmt.Errorf("create scratch dir: %w", err)
	}
	defer t.removeAll(ctx, scratch)

	public, err := felt.Flatten(proof.PublicInputs)
	if err != nil {
		return false, fmt.Errorf("encode public inputs: %w", err)
	}
	proofPath := filepath.Join(scratch, "proof")
	publicPath := filepath.Join(scratch, "public_inputs")
	if err := os.WriteFile(proofPath, proof.Proof, 0o600); err != nil {
		return false, fmt.Errorf("write proof: %w", err)
	}
	if err := os.WriteFile(publicPath, public, 0o600); err != nil {
		return false, fmt.Errorf("write public inputs: %w", err)
	}

	if _, err := t.runner.Run(ctx, scratch, t.cfg.BBBin,
		"write_vk", "-b", t.artifact(p), "-o", scratch, "--scheme", "ultra_honk", "--oracle_hash", "keccak"); err != nil {
		return false, fmt.Errorf("write verifying key: %w", err)
	}

	args := append([]string{"verify", "-k", filepath.Join(scratch, "vk"), "-p", proofPath, "-i", publicPath}, honkFlags...)
	if _, err := t.runner.Run(ctx, scratch, t.cfg.BBBin, args...); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return false, nil
		}
		return false, fmt.Errorf("verify %s: %w", p, err)
	}
	return true, nil
}

func (t *Toolchain) remove(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		t.logger.WarnContext(ctx, "failed to remove temporary file", "path", path, "error", err)
	}
}

func (t *Toolchain) removeAll(ctx context.Context, path string) {
	if err := os.RemoveAll(path); err != nil {
		t.logger.WarnContext(ctx, "failed to remove scratch dir", "path", path, "error", err)
	}
}
