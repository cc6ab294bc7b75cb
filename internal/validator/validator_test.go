package validator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"

	blockpkg "github.com/pouwchain/pouwchain/internal/block"
	"github.com/pouwchain/pouwchain/internal/chainerrors"
	"github.com/pouwchain/pouwchain/internal/circuits"
	"github.com/pouwchain/pouwchain/internal/crypto"
	"github.com/pouwchain/pouwchain/internal/genesis"
	"github.com/pouwchain/pouwchain/internal/producer"
	"github.com/pouwchain/pouwchain/internal/prooftx"
	"github.com/pouwchain/pouwchain/internal/prover/testprover"
)

func multiplyCircuit(t *testing.T) (*circuits.Registry, [crypto.HashSize]byte) {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "multiply")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	source := []byte("def main(field a, field b, field c) { assert(a*b == c); return; }")
	if err := os.WriteFile(filepath.Join(dir, "multiply.zok"), source, 0o644); err != nil {
		t.Fatal(err)
	}
	reg, err := circuits.Discover(root)
	if err != nil {
		t.Fatal(err)
	}
	return reg, sha256.Sum256(source)
}

type validatorHarness struct {
	validator   *Validator
	producer    *producer.Producer
	genesis     *blockpkg.Block
	circuitHash [crypto.HashSize]byte
}

func newHarness(t *testing.T) (*validatorHarness, [crypto.AddressSize]byte) {
	t.Helper()
	minerKey, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	miner := crypto.Address(minerKey)

	reg, circuitHash := multiplyCircuit(t)
	prv := testprover.New()
	v := New(1, 2, reg, prv, 0)
	p := producer.New(1, 2, 1, reg, prv, v)

	g, _, err := genesis.Build(0, 1, nil)
	if err != nil {
		t.Fatal(err)
	}

	return &validatorHarness{validator: v, producer: p, genesis: g, circuitHash: circuitHash}, miner
}

// fundRequester replaces the harness genesis with one that gives addr
// enough balance to pay a proof tx's price.
func fundRequester(t *testing.T, h *validatorHarness, addr [crypto.AddressSize]byte) {
	t.Helper()
	g, _, err := genesis.Build(0, 1, map[string]int64{hex.EncodeToString(addr[:]): 100})
	if err != nil {
		t.Fatal(err)
	}
	h.genesis = g
}

func TestValidateAcceptsProducedBlock(t *testing.T) {
	h, miner := newHarness(t)

	draft, result, err := h.producer.Produce(context.Background(), h.genesis, miner, nil, nil)
	if err != nil {
		t.Fatalf("Produce() error = %v", err)
	}
	if result.State.Hash() != draft.Header.StateRootHash {
		t.Fatal("producer result state does not match draft's state root")
	}

	// The producer already self-validates, but re-validating independently
	// confirms the validator accepts its own output deterministically.
	result2, err := h.validator.Validate(context.Background(), h.genesis, draft)
	if err != nil {
		t.Fatalf("Validate() on a freshly produced block error = %v", err)
	}
	if result2.State.Hash() != result.State.Hash() {
		t.Fatal("re-validation produced a different state root")
	}
}

func TestValidateAcceptsProofTx(t *testing.T) {
	h, miner := newHarness(t)

	fromKey, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	from := crypto.Address(fromKey)
	fundRequester(t, h, from)

	tx, err := prooftx.New(from, h.circuitHash, "3 4 12", 9)
	if err != nil {
		t.Fatal(err)
	}
	if err := tx.Sign(fromKey); err != nil {
		t.Fatal(err)
	}

	draft, _, err := h.producer.Produce(context.Background(), h.genesis, miner, nil, []*prooftx.Transaction{tx})
	if err != nil {
		t.Fatalf("Produce() with a proof tx error = %v", err)
	}
	if _, err := h.validator.Validate(context.Background(), h.genesis, draft); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestValidateRejectsUnsatisfiedCircuit(t *testing.T) {
	h, miner := newHarness(t)

	fromKey, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	from := crypto.Address(fromKey)
	fundRequester(t, h, from)

	tx, err := prooftx.New(from, h.circuitHash, "3 4 99", 9) // 3*4 != 99
	if err != nil {
		t.Fatal(err)
	}
	if err := tx.Sign(fromKey); err != nil {
		t.Fatal(err)
	}

	if _, _, err := h.producer.Produce(context.Background(), h.genesis, miner, nil, []*prooftx.Transaction{tx}); err == nil {
		t.Fatal("Produce() with an unsatisfiable witness succeeded, want error")
	}
}

func TestValidateRejectsWrongSerialID(t *testing.T) {
	h, miner := newHarness(t)
	draft, _, err := h.producer.Produce(context.Background(), h.genesis, miner, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	draft.Header.SerialID = 99
	draft.Header.Finalize()

	if _, err := h.validator.Validate(context.Background(), h.genesis, draft); !errors.Is(err, chainerrors.ErrStaleBlock) {
		t.Fatalf("Validate() with wrong serial_id error = %v, want %v", err, chainerrors.ErrStaleBlock)
	}
}

func TestValidateRejectsTamperedStateRoot(t *testing.T) {
	h, miner := newHarness(t)
	draft, _, err := h.producer.Produce(context.Background(), h.genesis, miner, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	draft.Header.StateRootHash = crypto.Hash([]byte("tampered"))
	draft.Header.Finalize()

	if _, err := h.validator.Validate(context.Background(), h.genesis, draft); !errors.Is(err, chainerrors.ErrHashMismatch) {
		t.Fatalf("Validate() with a tampered state root error = %v, want %v", err, chainerrors.ErrHashMismatch)
	}
}

func TestValidateRejectsBadPrevHash(t *testing.T) {
	h, miner := newHarness(t)
	draft, _, err := h.producer.Produce(context.Background(), h.genesis, miner, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	draft.Header.PrevBlockHash = crypto.Hash([]byte("not the parent"))
	draft.Header.Finalize()

	if _, err := h.validator.Validate(context.Background(), h.genesis, draft); !errors.Is(err, chainerrors.ErrStaleBlock) {
		t.Fatalf("Validate() with a bad prev_block_hash error = %v, want %v", err, chainerrors.ErrStaleBlock)
	}
}
