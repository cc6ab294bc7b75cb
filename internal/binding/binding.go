// Package binding derives the block-binding integrity tag described in
// spec.md §4.3 step 4 and the GLOSSARY: a scalar folding a block's state
// root and every included transaction's integrity hash, passed to the
// prover as a public input so a proof cannot be replayed into a different
// block.
package binding

import (
	"math/big"

	"github.com/pouwchain/pouwchain/internal/crypto"
)

// fieldTrimBytes is the number of leading bytes (16 bits) dropped from the
// raw SHA-256 digest before it is interpreted as a decimal integer, a
// prover-imposed field-size workaround named in spec.md §9 rather than a
// cryptographic choice. Preserved byte-for-byte for compatibility with the
// original toolchain binding.
const fieldTrimBytes = 2

// Derive computes the binding tag for a state root and the ordered
// integrity hashes of a block's coin and proof transactions.
func Derive(stateRoot [crypto.HashSize]byte, coinIntegrities, proofIntegrities [][crypto.HashSize]byte) string {
	var buf []byte
	buf = append(buf, stateRoot[:]...)
	for _, h := range coinIntegrities {
		buf = append(buf, h[:]...)
	}
	for _, h := range proofIntegrities {
		buf = append(buf, h[:]...)
	}
	digest := crypto.Hash(buf)

	trimmed := digest[fieldTrimBytes:]
	return new(big.Int).SetBytes(trimmed).String()
}
