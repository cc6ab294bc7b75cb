// Package node wires every component into the running process described in
// spec.md §5: one listener, one handler task per inbound connection, two
// background sync tasks run once at startup, and a lifecycle its caller
// (cmd/pouwchaind's run command) drives through Start/Stop.
package node

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/pouwchain/pouwchain/internal/chain"
	"github.com/pouwchain/pouwchain/internal/chainerrors"
	"github.com/pouwchain/pouwchain/internal/circuits"
	"github.com/pouwchain/pouwchain/internal/cointx"
	"github.com/pouwchain/pouwchain/internal/config"
	"github.com/pouwchain/pouwchain/internal/crypto"
	"github.com/pouwchain/pouwchain/internal/gossip"
	"github.com/pouwchain/pouwchain/internal/mempool"
	"github.com/pouwchain/pouwchain/internal/metrics"
	"github.com/pouwchain/pouwchain/internal/nodelog"
	"github.com/pouwchain/pouwchain/internal/peertable"
	"github.com/pouwchain/pouwchain/internal/prooftx"
	"github.com/pouwchain/pouwchain/internal/producer"
	"github.com/pouwchain/pouwchain/internal/prover"
	syncengine "github.com/pouwchain/pouwchain/internal/sync"
	"github.com/pouwchain/pouwchain/internal/validator"
	"github.com/pouwchain/pouwchain/internal/wire"
)

var log = nodelog.For("node")

// Node owns every piece of process-wide shared state and the goroutines
// operating on it.
type Node struct {
	Config    *config.Config
	Chain     *chain.Chain
	Peers     *peertable.Table
	CoinPool  *mempool.CoinPool
	ProofPool *mempool.ProofPool
	Circuits  *circuits.Registry
	Validator *validator.Validator
	Producer  *producer.Producer
	Gossip    *gossip.Engine
	Sync      *syncengine.Engine

	minerKey *crypto.PrivateKey
	listener net.Listener
	wg       sync.WaitGroup
}

// Options bundles the construction-time dependencies a caller (typically
// cmd/pouwchaind) has already resolved: decoded config, a minted or loaded
// signing key, circuit registry, and prover implementation.
type Options struct {
	Config   *config.Config
	MinerKey *crypto.PrivateKey
	Circuits *circuits.Registry
	Prover   prover.Prover
}

// New builds a Node from an already-loaded genesis block and shared
// dependencies. The chain is seeded with cfg.GenesisBlock as block 0.
func New(opts Options) *Node {
	c := chain.New()
	c.Append(opts.Config.GenesisBlock)

	peers := peertable.New()
	coinPool := mempool.NewCoinPool()
	proofPool := mempool.NewProofPool()

	v := validator.New(opts.Config.CoinTxFee, opts.Config.ProofTxFee, opts.Circuits, opts.Prover, opts.Config.TimeDifferenceTolerance)
	p := producer.New(opts.Config.CoinTxFee, opts.Config.ProofTxFee, opts.Config.Difficulty, opts.Circuits, opts.Prover, v)

	g := gossip.New(opts.Config.ListenPort, c, peers, coinPool, proofPool, v)
	s := syncengine.New(opts.Config.ListenPort, opts.Config.SeedNodes, opts.Config.MaxPeerCount, c, peers, coinPool, proofPool, v)

	return &Node{
		Config:    opts.Config,
		Chain:     c,
		Peers:     peers,
		CoinPool:  coinPool,
		ProofPool: proofPool,
		Circuits:  opts.Circuits,
		Validator: v,
		Producer:  p,
		Gossip:    g,
		Sync:      s,
		minerKey:  opts.MinerKey,
	}
}

// Start opens the listener, spawns the accept loop, and runs the two
// background sync tasks once, per spec.md §5.
func (n *Node) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", n.Config.SelfIPAddress, n.Config.ListenPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: listening on %s: %v", chainerrors.ErrIOFailure, addr, err)
	}
	n.listener = ln
	log.WithField("addr", addr).Info("listening")

	n.wg.Add(1)
	go n.acceptLoop(ctx)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		log.Info("starting peer discovery")
		n.Sync.DiscoverPeers()
		log.Info("starting chain sync")
		n.Sync.SyncChain(ctx)
		metrics.ChainHeight.Set(float64(n.Chain.Height()))
	}()

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		log.Info("starting mempool sync")
		n.Sync.SyncMempool()
	}()

	return nil
}

// acceptLoop is the single listener task of spec.md §5. Where the
// original relies on a self-dial to unblock a blocking accept(), Go's
// net.Listener.Close() cancels an in-flight Accept() directly, so Stop
// uses that instead of the socket trick; every other exit-path guarantee
// (in-flight handlers run to completion, accept loop observes shutdown on
// every wake) still holds.
func (n *Node) acceptLoop(ctx context.Context) {
	defer n.wg.Done()
	for {
		conn, err := n.listener.Accept()
		if err != nil {
			return // listener closed by Stop, or ctx cancelled
		}
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			defer conn.Close()
			n.Gossip.HandleConnection(ctx, conn)
		}()
	}
}

// Stop closes the listener, unblocking the accept loop, and waits for
// every spawned task to finish. In-flight handlers are short-lived and are
// allowed to run to completion, per spec.md §5.
func (n *Node) Stop() {
	if n.listener != nil {
		n.listener.Close()
	}
	n.wg.Wait()
}

// ProduceBlock drives the operator/REPL block-production task of spec.md
// §5: build a block from the given mempool selections, and on success
// append locally and broadcast to every peer.
func (n *Node) ProduceBlock(ctx context.Context, coinTxs []*cointx.Transaction, proofTxs []*prooftx.Transaction) error {
	parent, err := n.Chain.Tip()
	if err != nil {
		return err
	}
	miner := crypto.Address(n.minerKey)

	draft, result, err := n.Producer.Produce(ctx, parent, miner, coinTxs, proofTxs)
	if err != nil {
		return err
	}

	n.Chain.Append(draft)
	n.CoinPool.Remove(result.IncludedIDs)
	n.ProofPool.Remove(result.IncludedIDs)
	metrics.ChainHeight.Set(float64(n.Chain.Height()))
	metrics.BlocksProducedTotal.Inc()

	for _, p := range n.Peers.All() {
		if err := wire.SendOnly(p.Key(), wire.BroadcastBlock{Port: n.Config.ListenPort, Block: draft}); err != nil {
			log.WithField("peer", p.Key()).WithError(err).Debug("broadcast failed")
			n.Peers.RecordFailure(p.IP, p.Port)
		}
	}
	return nil
}

// SubmitCoinTx inserts a locally-originated, already-signed coin tx into
// the mempool and broadcasts it to every known peer.
func (n *Node) SubmitCoinTx(tx *cointx.Transaction) error {
	if !tx.Verify() {
		return chainerrors.ErrBadSignature
	}
	if err := tx.CheckValidity(); err != nil {
		return err
	}
	n.CoinPool.Insert(tx)
	metrics.MempoolCoinTxs.Set(float64(n.CoinPool.Count()))
	for _, p := range n.Peers.All() {
		_ = wire.SendOnly(p.Key(), wire.BroadcastCoinTx{Port: n.Config.ListenPort, Tx: tx})
	}
	return nil
}

// SubmitProofTx inserts a locally-originated, already-signed proof request
// into the mempool and broadcasts it to every known peer.
func (n *Node) SubmitProofTx(tx *prooftx.Transaction) error {
	if !tx.Verify() {
		return chainerrors.ErrBadSignature
	}
	if err := tx.CheckValidity(); err != nil {
		return err
	}
	n.ProofPool.Insert(tx)
	metrics.MempoolProofTxs.Set(float64(n.ProofPool.Count()))
	for _, p := range n.Peers.All() {
		_ = wire.SendOnly(p.Key(), wire.BroadcastProofTx{Port: n.Config.ListenPort, Tx: tx})
	}
	return nil
}
