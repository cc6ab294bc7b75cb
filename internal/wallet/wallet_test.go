package wallet

import (
	"context"
	"encoding/hex"
	"net"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pouwchain/pouwchain/internal/chain"
	"github.com/pouwchain/pouwchain/internal/circuits"
	"github.com/pouwchain/pouwchain/internal/crypto"
	"github.com/pouwchain/pouwchain/internal/genesis"
	"github.com/pouwchain/pouwchain/internal/gossip"
	"github.com/pouwchain/pouwchain/internal/mempool"
	"github.com/pouwchain/pouwchain/internal/peertable"
	"github.com/pouwchain/pouwchain/internal/prover/testprover"
	"github.com/pouwchain/pouwchain/internal/rpc"
	"github.com/pouwchain/pouwchain/internal/validator"
)

func newTestNode(t *testing.T, initial map[string]int64) (*gossip.Engine, net.Listener) {
	t.Helper()
	reg, err := circuits.Discover(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	v := validator.New(1, 2, reg, testprover.New(), 0)

	c := chain.New()
	g, _, err := genesis.Build(0, 1, initial)
	if err != nil {
		t.Fatal(err)
	}
	c.Append(g)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	e := gossip.New(9000, c, peertable.New(), mempool.NewCoinPool(), mempool.NewProofPool(), v)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go e.HandleConnection(context.Background(), conn)
		}
	}()
	return e, ln
}

func TestSendCoinsBroadcastsSignedTx(t *testing.T) {
	e, ln := newTestNode(t, nil)
	defer ln.Close()

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	w := New(key, ln.Addr().String(), "", 9001)

	toKey, _ := crypto.GenerateKey()
	to := crypto.Address(toKey)

	tx, err := w.SendCoins(to, 10)
	if err != nil {
		t.Fatalf("SendCoins() error = %v", err)
	}
	if tx.From != w.Address() {
		t.Fatalf("tx.From = %x, want wallet address", tx.From)
	}

	if !waitUntil(t, func() bool { return e.CoinPool.Count() == 1 }) {
		t.Fatalf("CoinPool.Count() = %d, want 1", e.CoinPool.Count())
	}
}

func TestRequestProofBroadcastsSignedTx(t *testing.T) {
	e, ln := newTestNode(t, nil)
	defer ln.Close()

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	w := New(key, ln.Addr().String(), "", 9001)

	var circuitHash [crypto.HashSize]byte
	tx, err := w.RequestProof(circuitHash, "2 3", 1)
	if err != nil {
		t.Fatalf("RequestProof() error = %v", err)
	}
	if tx.From != w.Address() {
		t.Fatalf("tx.From = %x, want wallet address", tx.From)
	}

	if !waitUntil(t, func() bool { return e.ProofPool.Count() == 1 }) {
		t.Fatalf("ProofPool.Count() = %d, want 1", e.ProofPool.Count())
	}
}

func TestBalanceReadsStateTree(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	addr := crypto.Address(key)

	reg, err := circuits.Discover(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	c := chain.New()
	g, _, err := genesis.Build(0, 1, map[string]int64{hex.EncodeToString(addr[:]): 500})
	if err != nil {
		t.Fatal(err)
	}
	c.Append(g)

	s := &rpc.Server{Chain: c, CoinPool: mempool.NewCoinPool(), ProofPool: mempool.NewProofPool(), Circuits: reg}
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	w := New(key, "", srv.URL, 0)
	balance, err := w.Balance()
	if err != nil {
		t.Fatalf("Balance() error = %v", err)
	}
	if balance != 500 {
		t.Fatalf("Balance() = %d, want 500", balance)
	}
}

func TestBalanceWithoutRPCURLFails(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	w := New(key, "", "", 0)
	if _, err := w.Balance(); err == nil {
		t.Fatal("Balance() with no RPC endpoint succeeded, want error")
	}
}

func waitUntil(t *testing.T, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return cond()
}
