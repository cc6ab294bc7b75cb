package prooftx

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/pouwchain/pouwchain/internal/chainerrors"
	"github.com/pouwchain/pouwchain/internal/crypto"
)

func newKeyPair(t *testing.T) (*crypto.PrivateKey, [crypto.AddressSize]byte) {
	t.Helper()
	priv, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	return priv, crypto.Address(priv)
}

func TestNewRejectsNonPositiveComplexity(t *testing.T) {
	_, from := newKeyPair(t)
	var circuit [crypto.HashSize]byte
	if _, err := New(from, circuit, "3 4 12", 0); !errors.Is(err, chainerrors.ErrBadAmount) {
		t.Fatalf("New() with zero complexity error = %v, want %v", err, chainerrors.ErrBadAmount)
	}
}

func TestSignAndVerify(t *testing.T) {
	fromKey, from := newKeyPair(t)
	var circuit [crypto.HashSize]byte

	tx, err := New(from, circuit, "3 4 12", 10)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := tx.Sign(fromKey); err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if !tx.Verify() {
		t.Fatal("Verify() = false for a correctly signed tx")
	}
}

func TestVerifySucceedsAfterProofAttached(t *testing.T) {
	// Proof is filled in after signing by the producer; it must not be part
	// of what the signature covers.
	fromKey, from := newKeyPair(t)
	var circuit [crypto.HashSize]byte

	tx, err := New(from, circuit, "3 4 12", 10)
	if err != nil {
		t.Fatal(err)
	}
	if err := tx.Sign(fromKey); err != nil {
		t.Fatal(err)
	}
	tx.Proof = []byte("some proof bytes")
	if !tx.Verify() {
		t.Fatal("Verify() = false after attaching a proof blob, want true (proof is not signed data)")
	}
}

func TestMarshalUnmarshalJSONRoundTrip(t *testing.T) {
	fromKey, from := newKeyPair(t)
	var circuit [crypto.HashSize]byte = crypto.Hash([]byte("multiply"))

	tx, err := New(from, circuit, "3 4 12", 10)
	if err != nil {
		t.Fatal(err)
	}
	if err := tx.Sign(fromKey); err != nil {
		t.Fatal(err)
	}
	tx.Proof = []byte("proof-blob")

	data, err := json.Marshal(tx)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded Transaction
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded.ID != tx.ID || decoded.From != tx.From || decoded.CircuitHash != tx.CircuitHash {
		t.Fatalf("round-tripped tx mismatch: got %+v, want %+v", decoded, tx)
	}
	if !decoded.Verify() {
		t.Fatal("decoded tx does not verify")
	}
}
