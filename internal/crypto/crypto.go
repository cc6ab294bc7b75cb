// Package crypto wraps the primitives the core state machine treats as
// black boxes per spec.md §1: sha256(bytes)->32B, sign(sk,msg)->64B,
// verify(pk,msg,sig)->bool, plus secp256k1 address derivation.
//
// Signatures are the fixed-width 64-byte R||S compact encoding rather than
// ASN.1 DER, matching spec.md's "signature (64B)" field width on both
// CoinTransaction and ProofTransaction.
package crypto

import (
	"crypto/sha256"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // spec.md §3 names this exact construction

	"github.com/pouwchain/pouwchain/internal/chainerrors"
)

// HashSize is the fixed width of every hash used on-chain.
const HashSize = 32

// AddressSize is the width of an on-chain identity: a compressed secp256k1
// public key.
const AddressSize = 33

// SignatureSize is the fixed width of a compact (R||S) ECDSA signature.
const SignatureSize = 64

// Hash computes the canonical SHA-256 digest of b.
func Hash(b []byte) [HashSize]byte {
	return sha256.Sum256(b)
}

// PrivateKey is a secp256k1 signing key.
type PrivateKey = secp256k1.PrivateKey

// GenerateKey produces a new random secp256k1 private key.
func GenerateKey() (*PrivateKey, error) {
	return secp256k1.GeneratePrivateKey()
}

// Address returns the 33-byte compressed public key that identifies the
// holder of priv on-chain.
func Address(priv *PrivateKey) [AddressSize]byte {
	var addr [AddressSize]byte
	copy(addr[:], priv.PubKey().SerializeCompressed())
	return addr
}

// ValidateAddress enforces spec.md §4.1's set() precondition: exactly 33
// bytes, and decodable as a secp256k1 point (set/apply operations take raw
// bytes; this is the shared well-formedness gate used before any of them
// touch the state tree).
func ValidateAddress(addr []byte) error {
	if len(addr) != AddressSize {
		return fmt.Errorf("%w: got %d bytes, want %d", chainerrors.ErrBadAddress, len(addr), AddressSize)
	}
	if _, err := secp256k1.ParsePubKey(addr); err != nil {
		return fmt.Errorf("%w: %v", chainerrors.ErrBadAddress, err)
	}
	return nil
}

// Sign produces a 64-byte compact signature over msg using priv.
func Sign(priv *PrivateKey, msg []byte) [SignatureSize]byte {
	digest := Hash(msg)
	sig := ecdsa.Sign(priv, digest[:])

	var out [SignatureSize]byte
	r := sig.R().Bytes()
	s := sig.S().Bytes()
	copy(out[0:32], r[:])
	copy(out[32:64], s[:])
	return out
}

// Verify reports whether sig authenticates msg under the public key
// encoded in addr (a 33-byte compressed secp256k1 key). A malformed
// address or signature is treated as a verification failure, not an
// error, per spec.md §4.2: "verify() returns false ... otherwise true".
func Verify(addr []byte, msg []byte, sig []byte) bool {
	if len(sig) != SignatureSize {
		return false
	}
	pub, err := secp256k1.ParsePubKey(addr)
	if err != nil {
		return false
	}

	var r, s secp256k1.ModNScalar
	if r.SetByteSlice(sig[0:32]) {
		return false
	}
	if s.SetByteSlice(sig[32:64]) {
		return false
	}

	digest := Hash(msg)
	return ecdsa.NewSignature(&r, &s).Verify(digest[:], pub)
}

// AlternativeIdentity computes RIPEMD160(SHA256(pk)), the 20-byte identity
// spec.md §3 documents as present in the original source but unused
// on-chain. It is kept for compatibility with tooling that still derives
// it, but no validation path in this package consults it.
func AlternativeIdentity(pubKeyCompressed []byte) [20]byte {
	sha := sha256.Sum256(pubKeyCompressed)
	r := ripemd160.New()
	r.Write(sha[:])
	var out [20]byte
	copy(out[:], r.Sum(nil))
	return out
}
