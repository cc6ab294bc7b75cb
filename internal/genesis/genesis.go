// Package genesis builds the configured first block of the chain, per
// spec.md §6: serial_id 0, no transactions, a pre-funded state tree, and
// current_block_hash computed from its own header.
package genesis

import (
	"fmt"

	"github.com/pouwchain/pouwchain/internal/block"
	"github.com/pouwchain/pouwchain/internal/chainerrors"
	"github.com/pouwchain/pouwchain/internal/statetree"
)

// Build constructs and finalises the genesis block from a funding table
// (addr_hex -> balance), a configured timestamp, and a configured
// difficulty (must be >= 1, per spec.md §4.4 check 4).
func Build(timestamp, difficulty int64, funding map[string]int64) (*block.Block, *statetree.StateTree, error) {
	if difficulty < 1 {
		return nil, nil, fmt.Errorf("%w: genesis difficulty must be >= 1", chainerrors.ErrBadAmount)
	}

	state := statetree.New()
	if err := state.LoadEntries(funding); err != nil {
		return nil, nil, err
	}

	b := &block.Block{
		Header: block.Header{
			SerialID:      0,
			Timestamp:     timestamp,
			Difficulty:    difficulty,
			PrevBlockHash: block.GenesisPrevHash,
		},
	}
	b.FinalizeBody(state)
	return b, state, nil
}
