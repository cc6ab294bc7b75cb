package cointx

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

func TestNewRejectsNonPositiveAmount(t *testing.T) {
	_, from := newKeyPair(t)
	_, to := newKeyPair(t)
	if _, err := New(from, to, 0); !errors.Is(err, chainerrors.ErrBadAmount) {
		t.Fatalf("New() with zero amount error = %v, want %v", err, chainerrors.ErrBadAmount)
	}
}

func TestNewRejectsSelfTransfer(t *testing.T) {
	_, addr := newKeyPair(t)
	if _, err := New(addr, addr, 10); !errors.Is(err, chainerrors.ErrSelfTransfer) {
		t.Fatalf("New() self-transfer error = %v, want %v", err, chainerrors.ErrSelfTransfer)
	}
}

func TestSignAndVerify(t *testing.T) {
	fromKey, from := newKeyPair(t)
	_, to := newKeyPair(t)

	tx, err := New(from, to, 50)
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

func TestSignRejectsWrongSigner(t *testing.T) {
	_, from := newKeyPair(t)
	_, to := newKeyPair(t)
	wrongKey, _ := newKeyPair(t)

	tx, err := New(from, to, 50)
	if err != nil {
		t.Fatal(err)
	}
	if err := tx.Sign(wrongKey); !errors.Is(err, chainerrors.ErrWrongSigner) {
		t.Fatalf("Sign() with wrong key error = %v, want %v", err, chainerrors.ErrWrongSigner)
	}
}

func TestVerifyFailsOnTamperedAmount(t *testing.T) {
	fromKey, from := newKeyPair(t)
	_, to := newKeyPair(t)

	tx, err := New(from, to, 50)
	if err != nil {
		t.Fatal(err)
	}
	if err := tx.Sign(fromKey); err != nil {
		t.Fatal(err)
	}
	tx.Amount = 5000
	if tx.Verify() {
		t.Fatal("Verify() = true after tampering with amount")
	}
}

func TestMarshalUnmarshalJSONRoundTrip(t *testing.T) {
	fromKey, from := newKeyPair(t)
	_, to := newKeyPair(t)

	tx, err := New(from, to, 77)
	if err != nil {
		t.Fatal(err)
	}
	if err := tx.Sign(fromKey); err != nil {
		t.Fatal(err)
	}

	data, err := json.Marshal(tx)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded Transaction
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded.ID != tx.ID || decoded.From != tx.From || decoded.To != tx.To || decoded.Amount != tx.Amount {
		t.Fatalf("round-tripped tx mismatch: got %+v, want %+v", decoded, tx)
	}
	if !decoded.Verify() {
		t.Fatal("decoded tx does not verify")
	}
}

func TestIntegrityChangesWithSignature(t *testing.T) {
	fromKey, from := newKeyPair(t)
	_, to := newKeyPair(t)

	tx, err := New(from, to, 10)
	if err != nil {
		t.Fatal(err)
	}
	unsigned := tx.Integrity()
	if err := tx.Sign(fromKey); err != nil {
		t.Fatal(err)
	}
	if unsigned == tx.Integrity() {
		t.Fatal("Integrity() unchanged after signing")
	}
}
