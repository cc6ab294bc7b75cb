// Package chainerrors enumerates the sentinel error kinds shared across the
// node's validation, production, and gossip paths. Call sites wrap these
// with fmt.Errorf("%w: detail", ...) rather than minting ad-hoc errors, so
// callers can classify a failure with errors.Is regardless of which
// subsystem raised it.
package chainerrors

import "errors"

var (
	ErrBadAddress        = errors.New("address is not a well-formed 33-byte compressed key")
	ErrBadHash           = errors.New("hash is not 32 bytes")
	ErrBadAmount         = errors.New("amount must be positive")
	ErrSelfTransfer      = errors.New("sender and recipient must differ")
	ErrWrongSigner       = errors.New("private key does not match the declared sender")
	ErrBadSignature      = errors.New("signature does not verify")
	ErrInsufficientFunds = errors.New("balance would go negative")
	ErrUnknownCircuit    = errors.New("no circuit directory for this circuit hash")
	ErrProverFailure     = errors.New("prover returned an error")
	ErrStaleBlock        = errors.New("block has the wrong parent, id, or timestamp")
	ErrHashMismatch      = errors.New("recomputed hash does not match the recorded one")
	ErrMalformedMessage  = errors.New("wire message is missing required fields")
	ErrUnknownPeer       = errors.New("sender is not a known peer")
	ErrIOFailure         = errors.New("network i/o failed")
	ErrBadValue          = errors.New("state value must be non-negative")
)
