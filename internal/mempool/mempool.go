// Package mempool holds the two unordered, id-indexed pools of pending
// transactions described in spec.md §4.7: no ordering guarantees, no
// capacity cap, insert-if-absent semantics.
package mempool

import (
	"sync"

	"github.com/pouwchain/pouwchain/internal/cointx"
	"github.com/pouwchain/pouwchain/internal/crypto"
	"github.com/pouwchain/pouwchain/internal/nodelog"
	"github.com/pouwchain/pouwchain/internal/prooftx"
)

var log = nodelog.For("mempool")

// CoinPool is the pending-coin-transaction pool.
type CoinPool struct {
	mu  sync.RWMutex
	txs map[[crypto.HashSize]byte]*cointx.Transaction
}

// NewCoinPool returns an empty coin transaction pool.
func NewCoinPool() *CoinPool {
	return &CoinPool{txs: make(map[[crypto.HashSize]byte]*cointx.Transaction)}
}

// Insert adds tx if its id is not already present, returning false when it
// was a duplicate (a no-op, not an error, per spec.md §4.5's broadcast
// handling).
func (p *CoinPool) Insert(tx *cointx.Transaction) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.txs[tx.ID]; exists {
		return false
	}
	p.txs[tx.ID] = tx
	log.WithField("tx_id", tx.ID).Debug("inserted coin tx")
	return true
}

// Remove deletes every transaction whose id is in ids, called once a block
// containing them has been accepted.
func (p *CoinPool) Remove(ids map[[crypto.HashSize]byte]struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id := range ids {
		delete(p.txs, id)
	}
}

// All returns every pending coin transaction, in unspecified order.
func (p *CoinPool) All() []*cointx.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*cointx.Transaction, 0, len(p.txs))
	for _, tx := range p.txs {
		out = append(out, tx)
	}
	return out
}

// At returns the transaction at the given enumeration index, for operator
// selection, and whether that index exists. The order matches the same
// call's All but is not guaranteed stable across mutations.
func (p *CoinPool) At(index int) (*cointx.Transaction, bool) {
	all := p.All()
	if index < 0 || index >= len(all) {
		return nil, false
	}
	return all[index], true
}

// Count returns the number of pending coin transactions.
func (p *CoinPool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.txs)
}

// ProofPool is the pending-proof-transaction pool.
type ProofPool struct {
	mu  sync.RWMutex
	txs map[[crypto.HashSize]byte]*prooftx.Transaction
}

// NewProofPool returns an empty proof transaction pool.
func NewProofPool() *ProofPool {
	return &ProofPool{txs: make(map[[crypto.HashSize]byte]*prooftx.Transaction)}
}

// Insert adds tx if its id is not already present.
func (p *ProofPool) Insert(tx *prooftx.Transaction) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.txs[tx.ID]; exists {
		return false
	}
	p.txs[tx.ID] = tx
	log.WithField("tx_id", tx.ID).Debug("inserted proof tx")
	return true
}

// Remove deletes every transaction whose id is in ids.
func (p *ProofPool) Remove(ids map[[crypto.HashSize]byte]struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id := range ids {
		delete(p.txs, id)
	}
}

// All returns every pending proof transaction, in unspecified order.
func (p *ProofPool) All() []*prooftx.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*prooftx.Transaction, 0, len(p.txs))
	for _, tx := range p.txs {
		out = append(out, tx)
	}
	return out
}

// At returns the transaction at the given enumeration index, for operator
// selection, and whether that index exists.
func (p *ProofPool) At(index int) (*prooftx.Transaction, bool) {
	all := p.All()
	if index < 0 || index >= len(all) {
		return nil, false
	}
	return all[index], true
}

// Count returns the number of pending proof transactions.
func (p *ProofPool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.txs)
}
