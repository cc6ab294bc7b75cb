// Package statetree implements the replicated account-balance ledger
// described in spec.md §3-4.1: a mapping from 33-byte address to
// non-negative integer balance, with a canonical content hash and the two
// fee-aware apply operations used by the block producer and validator.
package statetree

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pouwchain/pouwchain/internal/chainerrors"
	"github.com/pouwchain/pouwchain/internal/crypto"
)

// StateTree is the account-balance mapping. The zero value is not usable;
// construct one with New.
type StateTree struct {
	mu       sync.RWMutex
	balances map[[crypto.AddressSize]byte]int64
}

// New returns an empty state tree.
func New() *StateTree {
	return &StateTree{balances: make(map[[crypto.AddressSize]byte]int64)}
}

func toKey(addr []byte) ([crypto.AddressSize]byte, error) {
	var key [crypto.AddressSize]byte
	if len(addr) != crypto.AddressSize {
		return key, fmt.Errorf("%w: got %d bytes, want %d", chainerrors.ErrBadAddress, len(addr), crypto.AddressSize)
	}
	copy(key[:], addr)
	return key, nil
}

// Get returns the stored balance for addr, or 0 if addr has never been
// written. A zero balance is indistinguishable from absence, per spec.md
// §3.
func (t *StateTree) Get(addr []byte) int64 {
	key, err := toKey(addr)
	if err != nil {
		return 0
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.balances[key]
}

// Set writes value for addr. A write of 0 still defines the key for
// hashing purposes, per spec.md §3.
func (t *StateTree) Set(addr []byte, value int64) error {
	key, err := toKey(addr)
	if err != nil {
		return err
	}
	if value < 0 {
		return fmt.Errorf("%w: %d", chainerrors.ErrBadValue, value)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.balances[key] = value
	return nil
}

// debit subtracts amount from addr's balance, returning ErrInsufficientFunds
// rather than allowing a negative balance. Caller holds t.mu.
func (t *StateTree) debit(addr [crypto.AddressSize]byte, amount int64) error {
	if t.balances[addr] < amount {
		return fmt.Errorf("%w: address %s has %d, needs %d",
			chainerrors.ErrInsufficientFunds, hex.EncodeToString(addr[:]), t.balances[addr], amount)
	}
	t.balances[addr] -= amount
	return nil
}

func (t *StateTree) credit(addr [crypto.AddressSize]byte, amount int64) {
	t.balances[addr] += amount
}

// ApplyCoinTx debits from by amount+fee and credits to by amount and miner
// by fee, per spec.md §4.1. No change is made if the debit would underflow.
func (t *StateTree) ApplyCoinTx(from, to, miner []byte, amount, fee int64) error {
	fromKey, err := toKey(from)
	if err != nil {
		return err
	}
	toKeyB, err := toKey(to)
	if err != nil {
		return err
	}
	minerKey, err := toKey(miner)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.debit(fromKey, amount+fee); err != nil {
		return err
	}
	t.credit(toKeyB, amount)
	t.credit(minerKey, fee)
	return nil
}

// ApplyProofTx debits from and credits miner by
// price = ceil(complexity / feeDenominator), per spec.md §4.1.
func (t *StateTree) ApplyProofTx(from, miner []byte, complexity, feeDenominator int64) error {
	if feeDenominator <= 0 {
		return fmt.Errorf("%w: fee denominator must be positive", chainerrors.ErrBadAmount)
	}
	price := CeilDiv(complexity, feeDenominator)

	fromKey, err := toKey(from)
	if err != nil {
		return err
	}
	minerKey, err := toKey(miner)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.debit(fromKey, price); err != nil {
		return err
	}
	t.credit(minerKey, price)
	return nil
}

// CeilDiv computes ceil(numerator/denominator) for positive integers, the
// price formula named throughout spec.md §3-4.
func CeilDiv(numerator, denominator int64) int64 {
	return (numerator + denominator - 1) / denominator
}

// Hash returns the SHA-256 digest of the canonical, address-sorted
// serialisation of the tree's contents. Two trees with identical
// key/value content hash identically regardless of insertion order.
func (t *StateTree) Hash() [crypto.HashSize]byte {
	t.mu.RLock()
	defer t.mu.RUnlock()

	keys := make([][crypto.AddressSize]byte, 0, len(t.balances))
	for k := range t.balances {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return string(keys[i][:]) < string(keys[j][:])
	})

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(hex.EncodeToString(k[:]))
		b.WriteByte(':')
		b.WriteString(strconv.FormatInt(t.balances[k], 10))
		b.WriteByte('|')
	}
	return sha256.Sum256([]byte(b.String()))
}

// Clone returns an independent copy of the tree. Callers producing or
// validating blocks must clone the parent's state before applying, so a
// failed draft leaves parent state untouched.
func (t *StateTree) Clone() *StateTree {
	t.mu.RLock()
	defer t.mu.RUnlock()

	clone := New()
	for k, v := range t.balances {
		clone.balances[k] = v
	}
	return clone
}

// Entries returns a snapshot of the tree's address/balance pairs, keyed by
// hex-encoded address, for wire encoding (spec.md §6's state_tree object).
func (t *StateTree) Entries() map[string]int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]int64, len(t.balances))
	for k, v := range t.balances {
		out[hex.EncodeToString(k[:])] = v
	}
	return out
}

// LoadEntries replaces the tree's contents with addr-hex -> balance pairs,
// used to materialise a tree decoded off the wire or from genesis
// configuration.
func (t *StateTree) LoadEntries(entries map[string]int64) error {
	balances := make(map[[crypto.AddressSize]byte]int64, len(entries))
	for hexAddr, v := range entries {
		raw, err := hex.DecodeString(hexAddr)
		if err != nil {
			return fmt.Errorf("%w: %v", chainerrors.ErrBadAddress, err)
		}
		key, err := toKey(raw)
		if err != nil {
			return err
		}
		if v < 0 {
			return fmt.Errorf("%w: %d", chainerrors.ErrBadValue, v)
		}
		balances[key] = v
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.balances = balances
	return nil
}
