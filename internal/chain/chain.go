// Package chain holds the replicated, ordered list of accepted blocks
// described in spec.md §3. It does not itself validate a block — that is
// the block validator's job — it only ever appends blocks a caller has
// already accepted.
package chain

import (
	"encoding/hex"
	"errors"
	"sync"

	"github.com/pouwchain/pouwchain/internal/block"
)

// ErrEmptyChain is returned by Tip when no block has been appended yet —
// an assertion-level condition per spec.md §7, since a chain is always
// seeded with a genesis block before any other component touches it.
var ErrEmptyChain = errors.New("chain has no blocks")

// Chain is the in-memory, mutex-guarded ordered list of accepted blocks,
// starting at genesis. Per spec.md §1's non-goals, there is no persistent
// storage and no fork reconciliation beyond the length comparison the sync
// engine performs before pulling.
type Chain struct {
	mu       sync.RWMutex
	blocks   []*block.Block
	byHash   map[[32]byte]*block.Block
}

// New returns an empty chain; callers must Append a genesis block before
// any other component observes it.
func New() *Chain {
	return &Chain{byHash: make(map[[32]byte]*block.Block)}
}

// Append adds b to the chain. The caller is responsible for having
// validated b against the current tip first.
func (c *Chain) Append(b *block.Block) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blocks = append(c.blocks, b)
	c.byHash[b.Header.CurrentBlockHash] = b
}

// Height returns the serial id of the tip, or -1 if the chain is empty.
func (c *Chain) Height() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.blocks) == 0 {
		return -1
	}
	return c.blocks[len(c.blocks)-1].Header.SerialID
}

// Tip returns the latest block, or ErrEmptyChain if none has been
// appended.
func (c *Chain) Tip() (*block.Block, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.blocks) == 0 {
		return nil, ErrEmptyChain
	}
	return c.blocks[len(c.blocks)-1], nil
}

// ByHeight returns the block at the given serial id, and whether it
// exists.
func (c *Chain) ByHeight(id int64) (*block.Block, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if id < 0 || id >= int64(len(c.blocks)) {
		return nil, false
	}
	return c.blocks[id], true
}

// ByHash returns the block with the given current_block_hash, and whether
// it exists.
func (c *Chain) ByHash(hash [32]byte) (*block.Block, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.byHash[hash]
	return b, ok
}

// HashHex is a small convenience for log lines that want a short block
// identifier.
func HashHex(b *block.Block) string {
	return hex.EncodeToString(b.Header.CurrentBlockHash[:])
}
