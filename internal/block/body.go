package block

import (
	"github.com/pouwchain/pouwchain/internal/cointx"
	"github.com/pouwchain/pouwchain/internal/crypto"
	"github.com/pouwchain/pouwchain/internal/prooftx"
	"github.com/pouwchain/pouwchain/internal/statetree"
	"github.com/pouwchain/pouwchain/internal/wirehex"
)

// Body carries a block's ordered transaction lists and the account-balance
// snapshot that results from applying them, per spec.md §3.
type Body struct {
	CoinTxs      []*cointx.Transaction
	ProofTxs     []*prooftx.Transaction
	StateEntries map[string]int64 // addr_hex -> balance, the post-state snapshot
}

// CoinTxsHash returns SHA256(concat(tx.Hash() for tx in CoinTxs)), per
// spec.md §3. Each list is hashed from its own source, per spec.md §9's
// note on avoiding the original's coin/proof list mix-up.
func (b *Body) CoinTxsHash() [crypto.HashSize]byte {
	var buf []byte
	for _, tx := range b.CoinTxs {
		h := tx.Hash()
		buf = append(buf, h[:]...)
	}
	return crypto.Hash(buf)
}

// ProofTxsHash returns SHA256(concat(tx.Hash() for tx in ProofTxs)).
func (b *Body) ProofTxsHash() [crypto.HashSize]byte {
	var buf []byte
	for _, tx := range b.ProofTxs {
		h := tx.Hash()
		buf = append(buf, h[:]...)
	}
	return crypto.Hash(buf)
}

// CoinIntegrities returns tx.Integrity() for every coin tx, in order, for
// use in binding derivation.
func (b *Body) CoinIntegrities() [][crypto.HashSize]byte {
	out := make([][crypto.HashSize]byte, len(b.CoinTxs))
	for i, tx := range b.CoinTxs {
		out[i] = tx.Integrity()
	}
	return out
}

// ProofIntegrities returns tx.Integrity() for every proof tx, in order.
func (b *Body) ProofIntegrities() [][crypto.HashSize]byte {
	out := make([][crypto.HashSize]byte, len(b.ProofTxs))
	for i, tx := range b.ProofTxs {
		out[i] = tx.Integrity()
	}
	return out
}

// SnapshotState records state's current contents into StateEntries, used
// once a producer has finished applying a block's transactions.
func (b *Body) SnapshotState(state *statetree.StateTree) {
	b.StateEntries = state.Entries()
}

type bodyWire struct {
	CoinTxs      []*cointx.Transaction  `json:"coin_txs"`
	ProofTxs     []*prooftx.Transaction `json:"proof_txs"`
	StateTree    map[string]int64       `json:"state_tree"`
}

// MarshalJSON encodes the body per spec.md §6:
// {coin_txs:[...], proof_txs:[...], state_tree:{addr_hex: balance, ...}}.
func (b *Body) MarshalJSON() ([]byte, error) {
	coinTxs := b.CoinTxs
	if coinTxs == nil {
		coinTxs = []*cointx.Transaction{}
	}
	proofTxs := b.ProofTxs
	if proofTxs == nil {
		proofTxs = []*prooftx.Transaction{}
	}
	stateEntries := b.StateEntries
	if stateEntries == nil {
		stateEntries = map[string]int64{}
	}
	return wirehex.Marshal(bodyWire{CoinTxs: coinTxs, ProofTxs: proofTxs, StateTree: stateEntries})
}

// UnmarshalJSON decodes the body.
func (b *Body) UnmarshalJSON(data []byte) error {
	var w bodyWire
	if err := wirehex.Unmarshal(data, &w); err != nil {
		return err
	}
	b.CoinTxs = w.CoinTxs
	b.ProofTxs = w.ProofTxs
	b.StateEntries = w.StateTree
	return nil
}
