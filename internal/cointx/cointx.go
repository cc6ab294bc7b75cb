// Package cointx implements the value-transfer transaction record from
// spec.md §3-4.2.
package cointx

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

// Transaction is a signed transfer of amount from From to To.
type Transaction struct {
	ID        [crypto.HashSize]byte
	From      [crypto.AddressSize]byte
	To        [crypto.AddressSize]byte
	Amount    int64
	Signature [crypto.SignatureSize]byte
}

// New builds an unsigned coin transaction and derives its id from a
// creation timestamp, per spec.md §3:
// id = SHA256("<timestamp>|<from_hex>|<to_hex>|<amount>").
func New(from, to [crypto.AddressSize]byte, amount int64) (*Transaction, error) {
	tx := &Transaction{From: from, To: to, Amount: amount}
	if err := tx.CheckValidity(); err != nil {
		return nil, err
	}
	tx.ID = crypto.Hash([]byte(fmt.Sprintf("%d|%s|%s|%d",
		creationTimestamp(), hex.EncodeToString(from[:]), hex.EncodeToString(to[:]), amount)))
	return tx, nil
}

// creationTimestamp gives the id formula enough entropy to disambiguate
// otherwise-identical requests submitted in the same process; it is never
// re-derived or stored, matching spec.md's omission of timestamp from the
// persisted field list.
func creationTimestamp() int64 {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return time.Now().UnixNano() ^ int64(binary.BigEndian.Uint64(b[:]))
}

// CheckValidity enforces spec.md §4.2's structural invariants: positive
// amount, distinct sender/recipient, well-formed addresses.
func (tx *Transaction) CheckValidity() error {
	if tx.Amount <= 0 {
		return fmt.Errorf("%w: %d", chainerrors.ErrBadAmount, tx.Amount)
	}
	if tx.From == tx.To {
		return chainerrors.ErrSelfTransfer
	}
	if err := crypto.ValidateAddress(tx.From[:]); err != nil {
		return err
	}
	if err := crypto.ValidateAddress(tx.To[:]); err != nil {
		return err
	}
	return nil
}

// Hash computes the message that gets signed:
// SHA256("<id>|<from>|<to>|<amount>").
func (tx *Transaction) Hash() [crypto.HashSize]byte {
	return crypto.Hash([]byte(fmt.Sprintf("%s|%s|%s|%d",
		hex.EncodeToString(tx.ID[:]), hex.EncodeToString(tx.From[:]), hex.EncodeToString(tx.To[:]), tx.Amount)))
}

// Integrity returns SHA256(hash || signature), the value folded into a
// block's binding tag.
func (tx *Transaction) Integrity() [crypto.HashSize]byte {
	h := tx.Hash()
	return crypto.Hash(append(h[:], tx.Signature[:]...))
}

// Sign authenticates the transaction with priv, failing with
// ErrWrongSigner if priv's address does not equal From.
func (tx *Transaction) Sign(priv *crypto.PrivateKey) error {
	if crypto.Address(priv) != tx.From {
		return chainerrors.ErrWrongSigner
	}
	h := tx.Hash()
	tx.Signature = crypto.Sign(priv, h[:])
	return nil
}

// Verify reports whether Signature authenticates Hash() under From. It
// does not re-check structural validity; callers call CheckValidity
// separately, per spec.md §4.2 ("decoding does not re-verify").
func (tx *Transaction) Verify() bool {
	h := tx.Hash()
	return crypto.Verify(tx.From[:], h[:], tx.Signature[:])
}

// wireForm is the JSON encoding named in spec.md §6: lowercase hex for
// byte fields, JSON numbers for integers.
type wireForm struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Amount    int64  `json:"amount"`
	Signature string `json:"signature"`
}

// MarshalJSON encodes the transaction per spec.md §6's hex-field wire
// format.
func (tx *Transaction) MarshalJSON() ([]byte, error) {
	return wirehex.Marshal(wireForm{
		ID:        hex.EncodeToString(tx.ID[:]),
		From:      hex.EncodeToString(tx.From[:]),
		To:        hex.EncodeToString(tx.To[:]),
		Amount:    tx.Amount,
		Signature: hex.EncodeToString(tx.Signature[:]),
	})
}

// UnmarshalJSON decodes the wire form without re-verifying the signature,
// per spec.md §4.2.
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
	if err := wirehex.DecodeFixed(w.To, tx.To[:]); err != nil {
		return fmt.Errorf("%w: to: %v", chainerrors.ErrMalformedMessage, err)
	}
	if err := wirehex.DecodeFixed(w.Signature, tx.Signature[:]); err != nil {
		return fmt.Errorf("%w: signature: %v", chainerrors.ErrMalformedMessage, err)
	}
	tx.Amount = w.Amount
	return nil
}
