// Package sync implements the startup peer-discovery and longest-chain
// pull described in spec.md §4.6. Time-based waits are used throughout, a
// deliberately coarse strategy the spec notes could be replaced by
// response-counting without changing semantics.
package sync

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/pouwchain/pouwchain/internal/chain"
	"github.com/pouwchain/pouwchain/internal/mempool"
	"github.com/pouwchain/pouwchain/internal/metrics"
	"github.com/pouwchain/pouwchain/internal/nodelog"
	"github.com/pouwchain/pouwchain/internal/peertable"
	"github.com/pouwchain/pouwchain/internal/validator"
	"github.com/pouwchain/pouwchain/internal/wire"
)

var log = nodelog.For("sync")

const (
	peerExchangeWait = 300 * time.Millisecond
	heightQueryWait  = 300 * time.Millisecond
	blockPullSpacing = 200 * time.Millisecond
)

// Engine drives the two background sync tasks of spec.md §5: block sync
// and mempool sync, each run once at startup after the listener is up.
type Engine struct {
	SelfPort   int
	SeedNodes  []string
	MaxPeers   int
	Chain      *chain.Chain
	Peers      *peertable.Table
	CoinPool   *mempool.CoinPool
	ProofPool  *mempool.ProofPool
	Validator  *validator.Validator
}

// New builds a sync Engine over the given shared node state.
func New(selfPort int, seedNodes []string, maxPeers int, c *chain.Chain, peers *peertable.Table,
	coinPool *mempool.CoinPool, proofPool *mempool.ProofPool, v *validator.Validator) *Engine {
	return &Engine{
		SelfPort: selfPort, SeedNodes: seedNodes, MaxPeers: maxPeers,
		Chain: c, Peers: peers, CoinPool: coinPool, ProofPool: proofPool, Validator: v,
	}
}

// DiscoverPeers implements spec.md §4.6 steps 1-2: contact every seed node,
// wait for PEERS responses, then recursively contact newly learned peers
// until max_peer_count is reached.
func (e *Engine) DiscoverPeers() {
	frontier := append([]string{}, e.SeedNodes...)
	visited := make(map[string]bool)

	for len(frontier) > 0 && e.Peers.Count() < e.MaxPeers {
		addr := frontier[0]
		frontier = frontier[1:]
		if visited[addr] {
			continue
		}
		visited[addr] = true

		resp, err := wire.Send(addr, wire.GetPeers{Port: e.SelfPort})
		if err != nil {
			log.WithField("peer", addr).WithError(err).Debug("GET_PEERS failed")
			continue
		}
		peersMsg, ok := resp.(wire.Peers)
		if !ok {
			continue
		}
		for _, p := range peersMsg.PeerAddrs {
			if !visited[p] {
				frontier = append(frontier, p)
			}
		}
		ip, port, err := splitAddr(addr)
		if err == nil {
			e.Peers.Upsert(ip, port, -1)
		}
		time.Sleep(peerExchangeWait)
	}
	metrics.PeerCount.Set(float64(e.Peers.Count()))
}

// SyncChain implements spec.md §4.6 steps 3-5: query every known peer's
// height, pick the one strictly ahead of the local tip, and pull blocks
// sequentially, validating and appending each as it arrives.
func (e *Engine) SyncChain(ctx context.Context) {
	for _, p := range e.Peers.All() {
		resp, err := wire.Send(p.Key(), wire.GetLatestBlockID{Port: e.SelfPort})
		if err != nil {
			log.WithField("peer", p.Key()).WithError(err).Debug("GET_LATEST_BLOCK_ID failed")
			continue
		}
		if latest, ok := resp.(wire.LatestBlockID); ok {
			e.Peers.Upsert(p.IP, p.Port, latest.LatestID)
		}
	}
	time.Sleep(heightQueryWait)

	localHeight := e.Chain.Height()
	best, ok := e.Peers.Best(localHeight)
	if !ok {
		log.Debug("no peer ahead of local tip; nothing to sync")
		return
	}

	log.WithField("peer", best.Key()).WithField("from", localHeight+1).WithField("to", best.LatestBlockID).Info("pulling blocks")
	for id := localHeight + 1; id <= best.LatestBlockID; id++ {
		resp, err := wire.Send(best.Key(), wire.GetBlock{Port: e.SelfPort, BlockID: id})
		if err != nil {
			log.WithField("peer", best.Key()).WithError(err).Warn("GET_BLOCK failed, aborting sync")
			return
		}
		blockMsg, ok := resp.(wire.BlockMsg)
		if !ok || blockMsg.Block == nil {
			log.WithField("peer", best.Key()).Warn("malformed BLOCK response, aborting sync")
			return
		}
		parent, err := e.Chain.Tip()
		if err != nil {
			log.WithError(err).Fatal("local chain has no tip during sync; programmer error")
			return
		}
		result, err := e.Validator.Validate(ctx, parent, blockMsg.Block)
		if err != nil {
			log.WithField("serial_id", id).WithError(err).Warn("synced block failed validation, aborting sync for this peer")
			return
		}
		e.Chain.Append(blockMsg.Block)
		e.CoinPool.Remove(result.IncludedIDs)
		e.ProofPool.Remove(result.IncludedIDs)
		metrics.ChainHeight.Set(float64(e.Chain.Height()))
		time.Sleep(blockPullSpacing)
	}
}

// SyncMempool implements spec.md §4.6 step 6: poll every known peer's
// pending-tx pools to warm the local mempool.
func (e *Engine) SyncMempool() {
	for _, p := range e.Peers.All() {
		if resp, err := wire.Send(p.Key(), wire.GetPendingCoinTxs{Port: e.SelfPort}); err == nil {
			if pending, ok := resp.(wire.PendingCoinTxs); ok {
				for _, tx := range pending.PendingTxs {
					if tx.Verify() {
						e.CoinPool.Insert(tx)
					}
				}
			}
		}
		if resp, err := wire.Send(p.Key(), wire.GetPendingProofTxs{Port: e.SelfPort}); err == nil {
			if pending, ok := resp.(wire.PendingProofTxs); ok {
				for _, tx := range pending.PendingTxs {
					if tx.Verify() {
						e.ProofPool.Insert(tx)
					}
				}
			}
		}
	}
	metrics.MempoolCoinTxs.Set(float64(e.CoinPool.Count()))
	metrics.MempoolProofTxs.Set(float64(e.ProofPool.Count()))
}

func splitAddr(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, err
	}
	return host, port, nil
}
