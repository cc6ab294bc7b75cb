// Package prover models the arithmetic-circuit toolchain as the opaque
// black box spec.md §1 describes it as: a Prover that generates and
// verifies succinct proofs bound to a block, given a circuit directory and
// the requester's input parameters.
package prover

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pouwchain/pouwchain/internal/chainerrors"
	"github.com/pouwchain/pouwchain/internal/nodelog"
)

var log = nodelog.For("prover")

// Prover generates and checks succinct proofs of correct circuit
// execution, binding each proof to the block that contains it per
// spec.md §4.3 step 4.
type Prover interface {
	// Generate runs the prover over circuitDir with the given parameters,
	// producing a proof blob bound to binding.
	Generate(ctx context.Context, circuitDir, parameters, binding string) ([]byte, error)
	// Verify reports whether blob is a valid proof of circuitDir's
	// execution on parameters, bound to binding.
	Verify(ctx context.Context, circuitDir string, blob []byte, parameters, binding string) (bool, error)
}

// ShellProver shells out to a circuit toolchain binary (e.g. zokrates) in
// a temp working directory scoped to one request, per spec.md §5's
// resource-lifetime requirement that prover temp files are deleted on
// every exit path.
type ShellProver struct {
	// Binary is the toolchain executable name or path, e.g. "zokrates".
	Binary string
}

// NewShellProver returns a ShellProver invoking the named toolchain binary.
func NewShellProver(binary string) *ShellProver {
	return &ShellProver{Binary: binary}
}

func (p *ShellProver) run(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, p.Binary, args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s %v: %s", chainerrors.ErrProverFailure, p.Binary, args, stderr.String())
	}
	return nil
}

// Generate computes a witness and proof for circuitDir, bound to binding,
// in a scoped temp directory that is removed on every exit path.
func (p *ShellProver) Generate(ctx context.Context, circuitDir, parameters, binding string) ([]byte, error) {
	work, err := os.MkdirTemp("", "pouwchain-prove-*")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chainerrors.ErrProverFailure, err)
	}
	defer os.RemoveAll(work)

	program := filepath.Join(circuitDir, "out")
	witness := filepath.Join(work, "witness")
	provingKey := filepath.Join(circuitDir, "proving.key")
	proofPath := filepath.Join(work, "proof.json")

	args := append([]string{"compute-witness", "-i", program, "-o", witness, "-a"}, splitParameters(parameters)...)
	args = append(args, binding)
	if err := p.run(ctx, work, args...); err != nil {
		return nil, err
	}

	if err := p.run(ctx, work,
		"generate-proof", "-i", program, "-p", provingKey, "-w", witness, "-j", proofPath); err != nil {
		return nil, err
	}

	blob, err := os.ReadFile(proofPath)
	if err != nil {
		return nil, fmt.Errorf("%w: reading proof.json: %v", chainerrors.ErrProverFailure, err)
	}
	log.WithField("circuit_dir", circuitDir).Debug("generated proof")
	return blob, nil
}

// Verify shells out to the toolchain's verifier against the proof blob,
// re-supplying the same binding so the tampering check in spec.md §4.4
// step 8 is enforced by the toolchain, not by this wrapper.
func (p *ShellProver) Verify(ctx context.Context, circuitDir string, blob []byte, parameters, binding string) (bool, error) {
	work, err := os.MkdirTemp("", "pouwchain-verify-*")
	if err != nil {
		return false, fmt.Errorf("%w: %v", chainerrors.ErrProverFailure, err)
	}
	defer os.RemoveAll(work)

	proofPath := filepath.Join(work, "proof.json")
	if err := os.WriteFile(proofPath, blob, 0o600); err != nil {
		return false, fmt.Errorf("%w: writing proof.json: %v", chainerrors.ErrProverFailure, err)
	}
	verificationKey := filepath.Join(circuitDir, "verification.key")

	if err := p.run(ctx, work, "verify", "-j", proofPath, "-v", verificationKey); err != nil {
		return false, nil
	}

	var recorded struct {
		Inputs []string `json:"inputs"`
	}
	if err := json.Unmarshal(blob, &recorded); err != nil || len(recorded.Inputs) < 2 {
		return false, nil
	}
	got, okGot := new(big.Int).SetString(recorded.Inputs[len(recorded.Inputs)-2], 0)
	want, okWant := new(big.Int).SetString(binding, 10)
	if !okGot || !okWant || got.Cmp(want) != 0 {
		return false, nil
	}
	return true, nil
}

func splitParameters(parameters string) []string {
	var out []string
	field := ""
	for _, r := range parameters {
		if r == ' ' || r == '\t' {
			if field != "" {
				out = append(out, field)
				field = ""
			}
			continue
		}
		field += string(r)
	}
	if field != "" {
		out = append(out, field)
	}
	return out
}
