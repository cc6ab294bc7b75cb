// Package testprover is an in-memory stand-in for the external circuit
// toolchain, used by the state-machine tests instead of shelling out to a
// real prover binary. It implements the single "multiply" circuit from
// spec.md §8 scenario 3/4 (a*b=c), so that producer and validator tests can
// exercise both the proof-success and prover-failure paths without any
// external dependency.
package testprover

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/pouwchain/pouwchain/internal/chainerrors"
)

// Prover evaluates parameters "a b c" against the constraint a*b=c. It
// never touches a circuit directory's contents; CircuitHash is unused
// beyond routing, matching the real toolchain's opaque-directory contract.
type Prover struct{}

// New returns a ready-to-use in-memory multiply-circuit prover.
func New() *Prover { return &Prover{} }

type blob struct {
	Binding string `json:"binding"`
	A       int64  `json:"a"`
	B       int64  `json:"b"`
	C       int64  `json:"c"`
}

func parse(parameters string) (a, b, c int64, err error) {
	fields := strings.Fields(parameters)
	if len(fields) != 3 {
		return 0, 0, 0, fmt.Errorf("%w: expected 3 parameters, got %d", chainerrors.ErrProverFailure, len(fields))
	}
	nums := make([]int64, 3)
	for i, f := range fields {
		n, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("%w: %v", chainerrors.ErrProverFailure, err)
		}
		nums[i] = n
	}
	return nums[0], nums[1], nums[2], nil
}

// Generate fails with ErrProverFailure whenever a*b != c, standing in for
// a circuit toolchain rejecting an unsatisfiable witness.
func (p *Prover) Generate(_ context.Context, _circuitDir, parameters, binding string) ([]byte, error) {
	a, b, c, err := parse(parameters)
	if err != nil {
		return nil, err
	}
	if a*b != c {
		return nil, fmt.Errorf("%w: witness does not satisfy a*b=c", chainerrors.ErrProverFailure)
	}
	return json.Marshal(blob{Binding: binding, A: a, B: b, C: c})
}

// Verify checks that the blob's recorded constraint still holds and that
// it was bound to the supplied binding, modelling the toolchain's public
// input check from spec.md §4.4 step 8.
func (p *Prover) Verify(_ context.Context, _circuitDir string, blobBytes []byte, parameters, binding string) (bool, error) {
	var b blob
	if err := json.Unmarshal(blobBytes, &b); err != nil {
		return false, nil
	}
	a, bb, c, err := parse(parameters)
	if err != nil {
		return false, nil
	}
	return b.Binding == binding && b.A == a && b.B == bb && b.C == c && a*bb == c, nil
}
