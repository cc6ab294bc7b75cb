package sync

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pouwchain/pouwchain/internal/chain"
	"github.com/pouwchain/pouwchain/internal/circuits"
	"github.com/pouwchain/pouwchain/internal/cointx"
	"github.com/pouwchain/pouwchain/internal/crypto"
	"github.com/pouwchain/pouwchain/internal/genesis"
	"github.com/pouwchain/pouwchain/internal/gossip"
	"github.com/pouwchain/pouwchain/internal/mempool"
	"github.com/pouwchain/pouwchain/internal/peertable"
	"github.com/pouwchain/pouwchain/internal/producer"
	"github.com/pouwchain/pouwchain/internal/prover/testprover"
	"github.com/pouwchain/pouwchain/internal/validator"
)

// remotePeer wraps a gossip.Engine behind a real listener, standing in for
// another node on the network that the sync engine under test talks to.
type remotePeer struct {
	ln    net.Listener
	chain *chain.Chain
	peers *peertable.Table
	coin  *mempool.CoinPool
	proof *mempool.ProofPool
}

func newRemotePeer(t *testing.T) *remotePeer {
	t.Helper()
	reg, err := circuits.Discover(t.TempDir())
	require.NoError(t, err)
	v := validator.New(1, 2, reg, testprover.New(), 0)
	c := chain.New()
	g, _, err := genesis.Build(0, 1, nil)
	require.NoError(t, err)
	c.Append(g)

	peers := peertable.New()
	coin := mempool.NewCoinPool()
	proof := mempool.NewProofPool()
	e := gossip.New(9500, c, peers, coin, proof, v)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go e.HandleConnection(context.Background(), conn)
		}
	}()
	return &remotePeer{ln: ln, chain: c, peers: peers, coin: coin, proof: proof}
}

func localEngine(t *testing.T, seeds []string) *Engine {
	t.Helper()
	reg, err := circuits.Discover(t.TempDir())
	require.NoError(t, err)
	v := validator.New(1, 2, reg, testprover.New(), 0)
	c := chain.New()
	g, _, err := genesis.Build(0, 1, nil)
	require.NoError(t, err)
	c.Append(g)
	return New(9000, seeds, 10, c, peertable.New(), mempool.NewCoinPool(), mempool.NewProofPool(), v)
}

func TestDiscoverPeersUpsertsSeed(t *testing.T) {
	remote := newRemotePeer(t)
	defer remote.ln.Close()

	e := localEngine(t, []string{remote.ln.Addr().String()})
	e.DiscoverPeers()

	require.Equal(t, 1, e.Peers.Count())
}

func TestSyncChainPullsAheadPeer(t *testing.T) {
	remote := newRemotePeer(t)
	defer remote.ln.Close()

	// advance the remote chain by one empty block so the local node has
	// something to pull.
	tip, err := remote.chain.Tip()
	require.NoError(t, err)
	minerKey, _ := crypto.GenerateKey()
	miner := crypto.Address(minerKey)
	reg, err := circuits.Discover(t.TempDir())
	require.NoError(t, err)
	v := validator.New(1, 2, reg, testprover.New(), 0)
	p := producer.New(1, 2, 1, reg, testprover.New(), v)
	draft, _, err := p.Produce(context.Background(), tip, miner, nil, nil)
	require.NoError(t, err)
	remote.chain.Append(draft)

	e := localEngine(t, nil)
	host, port, err := splitAddr(remote.ln.Addr().String())
	require.NoError(t, err)
	e.Peers.Upsert(host, port, -1)

	e.SyncChain(context.Background())

	require.Equal(t, int64(1), e.Chain.Height())
}

func TestSyncMempoolPullsPendingTxs(t *testing.T) {
	remote := newRemotePeer(t)
	defer remote.ln.Close()

	fromKey, _ := crypto.GenerateKey()
	toKey, _ := crypto.GenerateKey()
	from, to := crypto.Address(fromKey), crypto.Address(toKey)
	tx, err := cointx.New(from, to, 5)
	require.NoError(t, err)
	require.NoError(t, tx.Sign(fromKey))
	remote.coin.Insert(tx)

	e := localEngine(t, nil)
	host, port, err := splitAddr(remote.ln.Addr().String())
	require.NoError(t, err)
	e.Peers.Upsert(host, port, -1)

	e.SyncMempool()

	require.Equal(t, 1, e.CoinPool.Count())
}
