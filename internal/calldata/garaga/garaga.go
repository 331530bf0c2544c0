// Package garaga adapts the garaga CLI to the calldata encoder port.
package garaga

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"starkshield/internal/calldata"
	"starkshield/internal/platform/toolexec"
	"starkshield/pkg/felt"
)

// System is the garaga proof system matching UltraHonk with the keccak ZK transcript.
const System = "ultra_keccak_zk_honk"

// Encoder runs `garaga calldata` on files written to a scratch directory.
type Encoder struct {
	bin    string
	runner toolexec.Runner
	logger *slog.Logger
}

type Option func(*Encoder)

func WithRunner(r toolexec.Runner) Option {
	return func(e *Encoder) {
		e.runner = r
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Encoder) {
		e.logger = logger
	}
}

func New(bin string, opts ...Option) *Encoder {
	if bin == "" {
		bin = "garaga"
	}
	e := &Encoder{bin: bin, runner: toolexec.ExecRunner{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var _ calldata.Encoder = (*Encoder)(nil)

func (e *Encoder) Encode(ctx context.Context, proof, publicInputs, vk []byte) ([]*big.Int, error) {
	scratch, err := os.MkdirTemp("", "starkshield-calldata-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			e.logger.WarnContext(ctx, "failed to remove scratch dir", "path", scratch, "error", err)
		}
	}()

	files := map[string][]byte{"proof": proof, "public_inputs": publicInputs, "vk": vk}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(scratch, name), data, 0o600); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
	}

	out, err := e.runner.Run(ctx, scratch, e.bin, "calldata",
		"--system", System,
		"--vk", filepath.Join(scratch, "vk"),
		"--proof", filepath.Join(scratch, "proof"),
		"--public-inputs", filepath.Join(scratch, "public_inputs"),
		"--format", "array",
	)
	if err != nil {
		return nil, fmt.Errorf("garaga calldata: %w", err)
	}
	return ParseArray(out)
}

// ParseArray parses garaga's array output: integers in decimal or 0x-hex,
// separated by commas or whitespace, optionally wrapped in brackets.
func ParseArray(out []byte) ([]*big.Int, error) {
	text := strings.TrimSpace(string(out))
	text = strings.TrimPrefix(text, "[")
	text = strings.TrimSuffix(text, "]")

	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\t' || r == '\r'
	})
	if len(fields) == 0 {
		return nil, fmt.Errorf("garaga returned no calldata")
	}
	values := make([]*big.Int, len(fields))
	for i, f := range fields {
		v, err := felt.ParseInt(strings.Trim(f, `"'`))
		if err != nil {
			return nil, fmt.Errorf("calldata element %d: %w", i, err)
		}
		values[i] = v
	}
	return values, nil
}
