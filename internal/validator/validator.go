// Package validator implements the full consensus check of a candidate
// block against its parent, per spec.md §4.4: five header checks and five
// body checks, first failure rejects.
package validator

import (
	"context"
	"fmt"
	"time"

	"github.com/pouwchain/pouwchain/internal/binding"
	blockpkg "github.com/pouwchain/pouwchain/internal/block"
	"github.com/pouwchain/pouwchain/internal/chainerrors"
	"github.com/pouwchain/pouwchain/internal/circuits"
	"github.com/pouwchain/pouwchain/internal/nodelog"
	"github.com/pouwchain/pouwchain/internal/prover"
	"github.com/pouwchain/pouwchain/internal/statetree"
)

var log = nodelog.For("validator")

// Validator holds the fee schedule and circuit registry needed to re-apply
// a candidate block's transactions and re-check its embedded proofs.
type Validator struct {
	CoinTxFee   int64
	ProofTxFee  int64
	Circuits    *circuits.Registry
	Prover      prover.Prover
	Tolerance   int64 // time_difference_tolerance, ms
	Now         func() int64
}

// New builds a Validator with the given fee schedule, circuit registry and
// prover, defaulting tolerance per spec.md §4.4 check 3 and Now to the wall
// clock in milliseconds.
func New(coinTxFee, proofTxFee int64, reg *circuits.Registry, p prover.Prover, tolerance int64) *Validator {
	if tolerance <= 0 {
		tolerance = 10_000
	}
	return &Validator{
		CoinTxFee:  coinTxFee,
		ProofTxFee: proofTxFee,
		Circuits:   reg,
		Prover:     p,
		Tolerance:  tolerance,
		Now:        func() int64 { return time.Now().UnixMilli() },
	}
}

// Result is the outcome of a successful validation: the resulting state
// tree, and the ids of every transaction the block included (for mempool
// eviction).
type Result struct {
	State      *statetree.StateTree
	IncludedIDs map[[32]byte]struct{}
}

// Validate runs every check in spec.md §4.4 against (parent, candidate) and
// returns the post-application state on success. On failure it returns the
// first violated check's error; the caller is expected to drop the block
// silently and log at verbose level, per spec.md §7.
func (v *Validator) Validate(ctx context.Context, parent, candidate *blockpkg.Block) (*Result, error) {
	ph, ch := &parent.Header, &candidate.Header

	// 1. serial id is exactly parent+1.
	if ch.SerialID != ph.SerialID+1 {
		return nil, fmt.Errorf("%w: candidate serial_id %d, want %d", chainerrors.ErrStaleBlock, ch.SerialID, ph.SerialID+1)
	}
	// 2. prev_block_hash chains to parent's hash.
	if ch.PrevBlockHash != ph.CurrentBlockHash {
		return nil, fmt.Errorf("%w: prev_block_hash does not match parent", chainerrors.ErrStaleBlock)
	}
	// 3. timestamp monotone and within tolerance of now.
	now := v.Now()
	if ch.Timestamp < ph.Timestamp || ch.Timestamp > now+v.Tolerance {
		return nil, fmt.Errorf("%w: timestamp %d out of [%d, %d]", chainerrors.ErrStaleBlock, ch.Timestamp, ph.Timestamp, now+v.Tolerance)
	}
	// 4. difficulty positive.
	if ch.Difficulty < 1 {
		return nil, fmt.Errorf("%w: difficulty %d < 1", chainerrors.ErrBadAmount, ch.Difficulty)
	}
	// 5. header hash matches its own recomputation.
	if ch.ComputeHash() != ch.CurrentBlockHash {
		return nil, fmt.Errorf("%w: header hash does not recompute", chainerrors.ErrHashMismatch)
	}

	// 6. derive the binding tag from the candidate's own body and its own
	// (already decoded) resulting state root, not the parent's — step 9
	// below confirms that declared root actually matches re-application.
	tag := candidate.Binding(ch.StateRootHash)

	// 7. clone parent state, apply coin txs in order.
	parentState, err := parent.State()
	if err != nil {
		return nil, err
	}
	state := parentState.Clone()
	includedIDs := make(map[[32]byte]struct{})
	for _, tx := range candidate.Body.CoinTxs {
		if !tx.Verify() {
			return nil, fmt.Errorf("%w: coin tx %x", chainerrors.ErrBadSignature, tx.ID)
		}
		if err := tx.CheckValidity(); err != nil {
			return nil, err
		}
		if err := state.ApplyCoinTx(tx.From[:], tx.To[:], ch.MinerAddress[:], tx.Amount, v.CoinTxFee); err != nil {
			return nil, err
		}
		includedIDs[tx.ID] = struct{}{}
	}

	// 8. proof txs: verify signature, resolve circuit, apply fee, verify proof.
	for _, tx := range candidate.Body.ProofTxs {
		if !tx.Verify() {
			return nil, fmt.Errorf("%w: proof tx %x", chainerrors.ErrBadSignature, tx.ID)
		}
		if err := tx.CheckValidity(); err != nil {
			return nil, err
		}
		dir, ok := v.Circuits.DirFor(tx.CircuitHash)
		if !ok {
			return nil, fmt.Errorf("%w: %x", chainerrors.ErrUnknownCircuit, tx.CircuitHash)
		}
		if err := state.ApplyProofTx(tx.From[:], ch.MinerAddress[:], tx.Complexity, v.ProofTxFee); err != nil {
			return nil, err
		}
		ok, err := v.Prover.Verify(ctx, dir, tx.Proof, tx.Parameters, tag)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", chainerrors.ErrProverFailure, err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: proof tx %x failed verification", chainerrors.ErrProverFailure, tx.ID)
		}
		includedIDs[tx.ID] = struct{}{}
	}

	// 9. resulting state hash must match the header's state_root_hash.
	if state.Hash() != ch.StateRootHash {
		return nil, fmt.Errorf("%w: recomputed state root", chainerrors.ErrHashMismatch)
	}
	// 10. recomputed tx-list hashes must match the header.
	if candidate.Body.CoinTxsHash() != ch.CoinTxsHash {
		return nil, fmt.Errorf("%w: coin_txs_hash", chainerrors.ErrHashMismatch)
	}
	if candidate.Body.ProofTxsHash() != ch.ProofTxsHash {
		return nil, fmt.Errorf("%w: proof_txs_hash", chainerrors.ErrHashMismatch)
	}

	log.WithField("serial_id", ch.SerialID).Debug("block validated")
	return &Result{State: state, IncludedIDs: includedIDs}, nil
}
