// Package prooftx implements the outsourced-computation request record
// from spec.md §3-4.2: a request to compute a named circuit's output,
// later filled in with a succinct proof by the block producer.
package prooftx

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/pouwchain/pouwchain/internal/chainerrors"
	"github.com/pouwchain/pouwchain/internal/crypto"
	"github.com/pouwchain/pouwchain/internal/wirehex"
)

// Transaction is a signed request to compute CircuitHash on Parameters,
// optionally carrying the proof once a producer has embedded it in a
// block.
type Transaction struct {
	ID          [crypto.HashSize]byte
	From        [crypto.AddressSize]byte
	CircuitHash [crypto.HashSize]byte
	Parameters  string
	Complexity  int64
	Proof       []byte // nil until a producer embeds a generated proof.
	Signature   [crypto.SignatureSize]byte
}

// New builds an unsigned proof request and derives its id from a creation
// timestamp, per spec.md §3.
func New(from [crypto.AddressSize]byte, circuitHash [crypto.HashSize]byte, parameters string, complexity int64) (*Transaction, error) {
	tx := &Transaction{From: from, CircuitHash: circuitHash, Parameters: parameters, Complexity: complexity}
	if err := tx.CheckValidity(); err != nil {
		return nil, err
	}
	tx.ID = crypto.Hash([]byte(fmt.Sprintf("%d|%s|%s|%s",
		creationTimestamp(), hex.EncodeToString(from[:]), hex.EncodeToString(circuitHash[:]), parameters)))
	return tx, nil
}

func creationTimestamp() int64 {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return time.Now().UnixNano() ^ int64(binary.BigEndian.Uint64(b[:]))
}

// CheckValidity enforces the structural invariants named in spec.md §3-4.2:
// positive complexity, well-formed requester address.
func (tx *Transaction) CheckValidity() error {
	if tx.Complexity <= 0 {
		return fmt.Errorf("%w: complexity must be positive, got %d", chainerrors.ErrBadAmount, tx.Complexity)
	}
	if err := crypto.ValidateAddress(tx.From[:]); err != nil {
		return err
	}
	return nil
}

// Hash computes the signed message, independent of Proof so a request can
// be signed before any prover runs: SHA256 over id|from|circuit_hash|
// parameters|complexity.
func (tx *Transaction) Hash() [crypto.HashSize]byte {
	return crypto.Hash([]byte(fmt.Sprintf("%s|%s|%s|%s|%d",
		hex.EncodeToString(tx.ID[:]), hex.EncodeToString(tx.From[:]), hex.EncodeToString(tx.CircuitHash[:]),
		tx.Parameters, tx.Complexity)))
}

// Integrity returns SHA256(hash || signature), independent of Proof, used
// in a block's binding tag.
func (tx *Transaction) Integrity() [crypto.HashSize]byte {
	h := tx.Hash()
	return crypto.Hash(append(h[:], tx.Signature[:]...))
}

// Sign authenticates the request with priv, failing with ErrWrongSigner if
// priv's address does not equal From.
func (tx *Transaction) Sign(priv *crypto.PrivateKey) error {
	if crypto.Address(priv) != tx.From {
		return chainerrors.ErrWrongSigner
	}
	h := tx.Hash()
	tx.Signature = crypto.Sign(priv, h[:])
	return nil
}

// Verify reports whether Signature authenticates Hash() under From.
func (tx *Transaction) Verify() bool {
	h := tx.Hash()
	return crypto.Verify(tx.From[:], h[:], tx.Signature[:])
}

// wireForm is the JSON encoding named in spec.md §6.
type wireForm struct {
	ID          string `json:"id"`
	From        string `json:"from"`
	CircuitHash string `json:"circuit_hash"`
	Parameters  string `json:"parameters"`
	Complexity  int64  `json:"complexity"`
	Proof       string `json:"proof,omitempty"`
	Signature   string `json:"signature"`
}

// MarshalJSON encodes the transaction per spec.md §6's hex-field wire
// format; Proof is omitted until a producer has embedded it.
func (tx *Transaction) MarshalJSON() ([]byte, error) {
	w := wireForm{
		ID:          hex.EncodeToString(tx.ID[:]),
		From:        hex.EncodeToString(tx.From[:]),
		CircuitHash: hex.EncodeToString(tx.CircuitHash[:]),
		Parameters:  tx.Parameters,
		Complexity:  tx.Complexity,
		Signature:   hex.EncodeToString(tx.Signature[:]),
	}
	if tx.Proof != nil {
		w.Proof = hex.EncodeToString(tx.Proof)
	}
	return wirehex.Marshal(w)
}

// UnmarshalJSON decodes the wire form without re-verifying the signature
// or the embedded proof.
func (tx *Transaction) UnmarshalJSON(data []byte) error {
	var w wireForm
	if err := wirehex.Unmarshal(data, &w); err != nil {
		return err
	}
	if err := wirehex.DecodeFixed(w.ID, tx.ID[:]); err != nil {
		return fmt.Errorf("%w: id: %v", chainerrors.ErrMalformedMessage, err)
	}
	if err := wirehex.DecodeFixed(w.From, tx.From[:]); err != nil {
		return fmt.Errorf("%w: from: %v", chainerrors.ErrMalformedMessage, err)
	}
	if err := wirehex.DecodeFixed(w.CircuitHash, tx.CircuitHash[:]); err != nil {
		return fmt.Errorf("%w: circuit_hash: %v", chainerrors.ErrMalformedMessage, err)
	}
	if err := wirehex.DecodeFixed(w.Signature, tx.Signature[:]); err != nil {
		return fmt.Errorf("%w: signature: %v", chainerrors.ErrMalformedMessage, err)
	}
	if w.Proof != "" {
		proof, err := hex.DecodeString(w.Proof)
		if err != nil {
			return fmt.Errorf("%w: proof: %v", chainerrors.ErrMalformedMessage, err)
		}
		tx.Proof = proof
	}
	tx.Parameters = w.Parameters
	tx.Complexity = w.Complexity
	return nil
}
