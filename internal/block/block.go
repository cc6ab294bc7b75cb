package block

import (
	"github.com/pouwchain/pouwchain/internal/binding"
	"github.com/pouwchain/pouwchain/internal/crypto"
	"github.com/pouwchain/pouwchain/internal/statetree"
	"github.com/pouwchain/pouwchain/internal/wirehex"
)

// Block is a finalised header paired with its body. Per spec.md §3's
// lifecycle, a Block only exists in this form once its header hash has
// been computed and its body frozen; a block is never partially
// constructed across a wire boundary.
type Block struct {
	Header Header `json:"header"`
	Body   Body   `json:"body"`
}

// Binding derives this block's own binding integrity tag from its body's
// post-state hash and transaction integrities, per spec.md §4.3 step 4.
// A candidate block under validation and a freshly produced block derive
// the identical value from the identical formula.
func (b *Block) Binding(stateRoot [crypto.HashSize]byte) string {
	return binding.Derive(stateRoot, b.Body.CoinIntegrities(), b.Body.ProofIntegrities())
}

// FinalizeBody fills in the body's hashes on header and snapshots state
// into the body, then finalises the header hash. Called once per block, by
// the producer or genesis.Build, after every transaction has been applied
// to state.
func (b *Block) FinalizeBody(state *statetree.StateTree) {
	b.Body.SnapshotState(state)
	b.Header.CoinTxsHash = b.Body.CoinTxsHash()
	b.Header.ProofTxsHash = b.Body.ProofTxsHash()
	b.Header.StateRootHash = state.Hash()
	b.Header.Finalize()
}

// State reconstructs this block's post-state tree from its body's
// state_tree snapshot, so a validator can clone a parent's resulting
// balances without the node keeping a separate state-tree cache per block.
func (b *Block) State() (*statetree.StateTree, error) {
	state := statetree.New()
	if err := state.LoadEntries(b.Body.StateEntries); err != nil {
		return nil, err
	}
	return state, nil
}

type wire struct {
	Header *Header `json:"header"`
	Body   *Body   `json:"body"`
}

// MarshalJSON encodes the block as {header:{...}, body:{...}}, per
// spec.md §6.
func (b *Block) MarshalJSON() ([]byte, error) {
	return wirehex.Marshal(wire{Header: &b.Header, Body: &b.Body})
}

// UnmarshalJSON decodes the block.
func (b *Block) UnmarshalJSON(data []byte) error {
	w := wire{Header: &b.Header, Body: &b.Body}
	return wirehex.Unmarshal(data, &w)
}
