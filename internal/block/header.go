// Package block implements the content-addressed block structure of
// spec.md §3: a header committing to the body's hashes, and a body
// carrying the transaction lists and post-state snapshot.
package block

import (
	"encoding/hex"
	"fmt"

	"github.com/pouwchain/pouwchain/internal/chainerrors"
	"github.com/pouwchain/pouwchain/internal/crypto"
	"github.com/pouwchain/pouwchain/internal/wirehex"
)

// GenesisPrevHash is the literal 32-ASCII-'0'-byte value used as the
// previous-block hash of the genesis block, per spec.md §6.
var GenesisPrevHash = [crypto.HashSize]byte(func() (out [32]byte) {
	for i := range out {
		out[i] = '0'
	}
	return out
}())

// Header is the content-addressed header of a block.
type Header struct {
	SerialID        int64
	Timestamp       int64 // milliseconds
	Difficulty      int64
	PrevBlockHash   [crypto.HashSize]byte
	CoinTxsHash     [crypto.HashSize]byte
	ProofTxsHash    [crypto.HashSize]byte
	StateRootHash   [crypto.HashSize]byte
	MinerAddress    [crypto.AddressSize]byte
	CurrentBlockHash [crypto.HashSize]byte // set by Finalize
}

// ComputeHash recomputes the header hash from its fields, per spec.md §3:
// SHA256("<id>|<ts>|<diff>|<prev_hex>|<coin_hex>|<proof_hex>|<state_hex>|<miner_hex>").
func (h *Header) ComputeHash() [crypto.HashSize]byte {
	return crypto.Hash([]byte(fmt.Sprintf("%d|%d|%d|%s|%s|%s|%s|%s",
		h.SerialID, h.Timestamp, h.Difficulty,
		hex.EncodeToString(h.PrevBlockHash[:]),
		hex.EncodeToString(h.CoinTxsHash[:]),
		hex.EncodeToString(h.ProofTxsHash[:]),
		hex.EncodeToString(h.StateRootHash[:]),
		hex.EncodeToString(h.MinerAddress[:]))))
}

// Finalize computes and stores CurrentBlockHash. Called once, after the
// body hashes are known, when the draft block is ready to traverse the
// wire.
func (h *Header) Finalize() {
	h.CurrentBlockHash = h.ComputeHash()
}

type headerWire struct {
	SerialID         int64  `json:"serial_id"`
	Timestamp        int64  `json:"timestamp"`
	Difficulty       int64  `json:"difficulty"`
	PrevBlockHash    string `json:"prev_block_hash"`
	CoinTxsHash      string `json:"coin_txs_hash"`
	ProofTxsHash     string `json:"proof_txs_hash"`
	StateRootHash    string `json:"state_root_hash"`
	MinerAddress     string `json:"miner_address"`
	CurrentBlockHash string `json:"current_block_hash"`
}

// MarshalJSON encodes the header per spec.md §6.
func (h *Header) MarshalJSON() ([]byte, error) {
	return wirehex.Marshal(headerWire{
		SerialID:         h.SerialID,
		Timestamp:        h.Timestamp,
		Difficulty:       h.Difficulty,
		PrevBlockHash:    hex.EncodeToString(h.PrevBlockHash[:]),
		CoinTxsHash:      hex.EncodeToString(h.CoinTxsHash[:]),
		ProofTxsHash:     hex.EncodeToString(h.ProofTxsHash[:]),
		StateRootHash:    hex.EncodeToString(h.StateRootHash[:]),
		MinerAddress:     hex.EncodeToString(h.MinerAddress[:]),
		CurrentBlockHash: hex.EncodeToString(h.CurrentBlockHash[:]),
	})
}

// UnmarshalJSON decodes the header without recomputing CurrentBlockHash;
// callers that need to trust it must verify it themselves (the validator
// does, per spec.md §4.4 check 5).
func (h *Header) UnmarshalJSON(data []byte) error {
	var w headerWire
	if err := wirehex.Unmarshal(data, &w); err != nil {
		return err
	}
	if err := wirehex.DecodeFixed(w.PrevBlockHash, h.PrevBlockHash[:]); err != nil {
		return fmt.Errorf("%w: prev_block_hash: %v", chainerrors.ErrMalformedMessage, err)
	}
	if err := wirehex.DecodeFixed(w.CoinTxsHash, h.CoinTxsHash[:]); err != nil {
		return fmt.Errorf("%w: coin_txs_hash: %v", chainerrors.ErrMalformedMessage, err)
	}
	if err := wirehex.DecodeFixed(w.ProofTxsHash, h.ProofTxsHash[:]); err != nil {
		return fmt.Errorf("%w: proof_txs_hash: %v", chainerrors.ErrMalformedMessage, err)
	}
	if err := wirehex.DecodeFixed(w.StateRootHash, h.StateRootHash[:]); err != nil {
		return fmt.Errorf("%w: state_root_hash: %v", chainerrors.ErrMalformedMessage, err)
	}
	if err := wirehex.DecodeFixed(w.MinerAddress, h.MinerAddress[:]); err != nil {
		return fmt.Errorf("%w: miner_address: %v", chainerrors.ErrMalformedMessage, err)
	}
	if err := wirehex.DecodeFixed(w.CurrentBlockHash, h.CurrentBlockHash[:]); err != nil {
		return fmt.Errorf("%w: current_block_hash: %v", chainerrors.ErrMalformedMessage, err)
	}
	h.SerialID = w.SerialID
	h.Timestamp = w.Timestamp
	h.Difficulty = w.Difficulty
	return nil
}
