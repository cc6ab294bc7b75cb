// Package producer assembles a new block from an operator-selected subset
// of the mempool, per spec.md §4.3's nine-step pipeline.
package producer

import (
	"context"
	"fmt"
	"time"

	blockpkg "github.com/pouwchain/pouwchain/internal/block"
	"github.com/pouwchain/pouwchain/internal/chainerrors"
	"github.com/pouwchain/pouwchain/internal/circuits"
	"github.com/pouwchain/pouwchain/internal/cointx"
	"github.com/pouwchain/pouwchain/internal/crypto"
	"github.com/pouwchain/pouwchain/internal/nodelog"
	"github.com/pouwchain/pouwchain/internal/prooftx"
	"github.com/pouwchain/pouwchain/internal/prover"
	"github.com/pouwchain/pouwchain/internal/validator"
)

var log = nodelog.For("producer")

// Producer assembles and self-validates candidate blocks.
type Producer struct {
	CoinTxFee  int64
	ProofTxFee int64
	Difficulty int64
	Circuits   *circuits.Registry
	Prover     prover.Prover
	Validator  *validator.Validator
}

// New builds a Producer sharing the fee schedule and circuit registry with
// v, the validator it self-checks drafts against before they're broadcast.
func New(coinTxFee, proofTxFee, difficulty int64, reg *circuits.Registry, p prover.Prover, v *validator.Validator) *Producer {
	return &Producer{
		CoinTxFee:  coinTxFee,
		ProofTxFee: proofTxFee,
		Difficulty: difficulty,
		Circuits:   reg,
		Prover:     p,
		Validator:  v,
	}
}

// Produce runs the full pipeline of spec.md §4.3 steps 1-9: clone parent
// state, apply the selected transactions, derive the binding tag, generate
// a proof for each selected proof tx, finalise body and header, then
// self-validate before returning. A failure at any step aborts the whole
// draft and leaves the mempool untouched, per spec.md §7.
func (p *Producer) Produce(ctx context.Context, parent *blockpkg.Block, miner [crypto.AddressSize]byte,
	coinTxs []*cointx.Transaction, proofTxs []*prooftx.Transaction) (*blockpkg.Block, *validator.Result, error) {

	// 1. clone the tip's state.
	parentState, err := parent.State()
	if err != nil {
		return nil, nil, err
	}
	state := parentState.Clone()

	// 2. apply coin txs.
	for _, tx := range coinTxs {
		if err := state.ApplyCoinTx(tx.From[:], tx.To[:], miner[:], tx.Amount, p.CoinTxFee); err != nil {
			return nil, nil, fmt.Errorf("coin tx %x: %w", tx.ID, err)
		}
	}

	// 3. apply proof txs.
	for _, tx := range proofTxs {
		if err := state.ApplyProofTx(tx.From[:], miner[:], tx.Complexity, p.ProofTxFee); err != nil {
			return nil, nil, fmt.Errorf("proof tx %x: %w", tx.ID, err)
		}
	}

	body := blockpkg.Body{CoinTxs: coinTxs, ProofTxs: proofTxs}

	// 4. compute the block binding from the post-application state and the
	// selected transactions' integrity hashes.
	tag := blockFromParts(body).Binding(state.Hash())

	// 5. generate a proof for each selected proof tx, bound to the tag.
	for _, tx := range proofTxs {
		dir, ok := p.Circuits.DirFor(tx.CircuitHash)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %x", chainerrors.ErrUnknownCircuit, tx.CircuitHash)
		}
		proof, err := p.Prover.Generate(ctx, dir, tx.Parameters, tag)
		if err != nil {
			return nil, nil, fmt.Errorf("proof tx %x: %w", tx.ID, err)
		}
		tx.Proof = proof
	}

	draft := &blockpkg.Block{
		Header: blockpkg.Header{
			SerialID:      parent.Header.SerialID + 1,
			Timestamp:     time.Now().UnixMilli(),
			Difficulty:    p.Difficulty,
			PrevBlockHash: parent.Header.CurrentBlockHash,
			MinerAddress:  miner,
		},
		Body: body,
	}
	// 6-8. finalise body (tx-list and state-root hashes) then header hash.
	draft.FinalizeBody(state)

	// 9. self-validate against the current tip before the caller broadcasts.
	result, err := p.Validator.Validate(ctx, parent, draft)
	if err != nil {
		return nil, nil, fmt.Errorf("self-validation failed: %w", err)
	}

	log.WithField("serial_id", draft.Header.SerialID).
		WithField("coin_txs", len(coinTxs)).
		WithField("proof_txs", len(proofTxs)).
		Info("produced block")
	return draft, result, nil
}

// blockFromParts builds a transient block shell wrapping body, used only to
// reach Body's binding-relevant helpers via Block.Binding before a draft's
// header exists.
func blockFromParts(body blockpkg.Body) *blockpkg.Block {
	return &blockpkg.Block{Body: body}
}
