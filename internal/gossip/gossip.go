// Package gossip dispatches inbound wire messages per spec.md §4.5: peer
// registration on first contact, a peer-table gate on response-typed
// commands, and rebroadcast-excluding-sender for accepted blocks and
// transactions.
package gossip

import (
	"context"
	"net"

	blockpkg "github.com/pouwchain/pouwchain/internal/block"
	"github.com/pouwchain/pouwchain/internal/chain"
	"github.com/pouwchain/pouwchain/internal/cointx"
	"github.com/pouwchain/pouwchain/internal/mempool"
	"github.com/pouwchain/pouwchain/internal/metrics"
	"github.com/pouwchain/pouwchain/internal/nodelog"
	"github.com/pouwchain/pouwchain/internal/peertable"
	"github.com/pouwchain/pouwchain/internal/prooftx"
	"github.com/pouwchain/pouwchain/internal/validator"
	"github.com/pouwchain/pouwchain/internal/wire"
)

var log = nodelog.For("gossip")

// Engine wires the shared node state together to answer and react to
// inbound wire messages.
type Engine struct {
	SelfPort  int
	Chain     *chain.Chain
	Peers     *peertable.Table
	CoinPool  *mempool.CoinPool
	ProofPool *mempool.ProofPool
	Validator *validator.Validator
}

// New constructs a gossip Engine over the given shared state.
func New(selfPort int, c *chain.Chain, peers *peertable.Table, coinPool *mempool.CoinPool, proofPool *mempool.ProofPool, v *validator.Validator) *Engine {
	return &Engine{SelfPort: selfPort, Chain: c, Peers: peers, CoinPool: coinPool, ProofPool: proofPool, Validator: v}
}

// HandleConnection is the per-inbound-connection handler task of spec.md
// §5: read the one message this socket carries, dispatch it, write a
// response if one is owed, then return so the caller can close the socket.
func (e *Engine) HandleConnection(ctx context.Context, conn net.Conn) {
	msg, err := wire.ReadMessage(conn)
	if err != nil {
		log.WithError(err).Debug("dropping malformed inbound message")
		return
	}

	senderIP, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		log.WithError(err).Debug("could not split remote address")
		return
	}
	senderPort := msg.SenderPort()

	isNew := e.Peers.Upsert(senderIP, senderPort, -1)
	if isNew {
		log.WithField("peer", senderIP).WithField("port", senderPort).Info("learned new peer")
		metrics.PeerCount.Set(float64(e.Peers.Count()))
	}

	resp := e.dispatch(ctx, senderIP, senderPort, msg)
	if resp != nil {
		if err := wire.WriteResponse(conn, resp); err != nil {
			log.WithError(err).Debug("failed to write response")
		}
	}
}

// dispatch implements the command table of spec.md §4.5, returning the
// response to write back, or nil for commands that owe no reply.
func (e *Engine) dispatch(ctx context.Context, senderIP string, senderPort int, msg wire.Message) wire.Message {
	metrics.GossipMessagesTotal.WithLabelValues(string(msg.Command())).Inc()
	switch m := msg.(type) {
	case wire.GetPeers:
		addrs := make([]string, 0, e.Peers.Count())
		for _, p := range e.Peers.All() {
			addrs = append(addrs, p.Key())
		}
		return wire.Peers{Port: e.SelfPort, PeerAddrs: addrs}

	case wire.GetLatestBlockID:
		return wire.LatestBlockID{Port: e.SelfPort, LatestID: e.Chain.Height()}

	case wire.GetBlock:
		b, ok := e.Chain.ByHeight(m.BlockID)
		if !ok {
			return nil
		}
		return wire.BlockMsg{Port: e.SelfPort, Block: b}

	case wire.GetPendingCoinTxs:
		return wire.PendingCoinTxs{Port: e.SelfPort, PendingTxs: e.CoinPool.All()}

	case wire.GetPendingProofTxs:
		return wire.PendingProofTxs{Port: e.SelfPort, PendingTxs: e.ProofPool.All()}

	// Response-typed commands are only meaningful as replies to something we
	// asked; if we're receiving one unsolicited, the sender gate in
	// HandleConnection already recorded them, but we still require they be
	// known (non-stranger) before acting, per spec.md §4.5.
	case wire.Peers, wire.LatestBlockID, wire.PendingCoinTxs, wire.PendingProofTxs:
		if !e.Peers.Known(senderIP, senderPort) {
			log.Debug("dropping response-typed message from unknown peer")
			return nil
		}
		return nil

	case wire.BlockMsg:
		if !e.Peers.Known(senderIP, senderPort) {
			log.Debug("dropping BLOCK from unknown peer")
			return nil
		}
		return nil

	case wire.BroadcastBlock:
		e.handleBroadcastBlock(ctx, senderIP, senderPort, m.Block)
		return nil

	case wire.BroadcastCoinTx:
		e.handleBroadcastCoinTx(senderIP, senderPort, m.Tx)
		return nil

	case wire.BroadcastProofTx:
		e.handleBroadcastProofTx(senderIP, senderPort, m.Tx)
		return nil

	default:
		return nil
	}
}

func (e *Engine) handleBroadcastBlock(ctx context.Context, senderIP string, senderPort int, b *blockpkg.Block) {
	parent, err := e.Chain.Tip()
	if err != nil {
		log.WithError(err).Fatal("no tip to validate broadcast block against; programmer error")
		return
	}
	result, err := e.Validator.Validate(ctx, parent, b)
	if err != nil {
		log.WithError(err).Debug("dropping invalid broadcast block")
		return
	}
	e.Chain.Append(b)
	e.CoinPool.Remove(result.IncludedIDs)
	e.ProofPool.Remove(result.IncludedIDs)
	metrics.ChainHeight.Set(float64(e.Chain.Height()))
	log.WithField("serial_id", b.Header.SerialID).Info("accepted broadcast block")

	e.rebroadcastExcept(senderIP, senderPort, wire.BroadcastBlock{Port: e.SelfPort, Block: b})
}

func (e *Engine) handleBroadcastCoinTx(senderIP string, senderPort int, tx *cointx.Transaction) {
	if !tx.Verify() {
		log.Debug("dropping coin tx with bad signature")
		return
	}
	if err := tx.CheckValidity(); err != nil {
		log.WithError(err).Debug("dropping structurally invalid coin tx")
		return
	}
	if !e.CoinPool.Insert(tx) {
		return // duplicate, already seen
	}
	metrics.MempoolCoinTxs.Set(float64(e.CoinPool.Count()))
	e.rebroadcastExcept(senderIP, senderPort, wire.BroadcastCoinTx{Port: e.SelfPort, Tx: tx})
}

func (e *Engine) handleBroadcastProofTx(senderIP string, senderPort int, tx *prooftx.Transaction) {
	if !tx.Verify() {
		log.Debug("dropping proof tx with bad signature")
		return
	}
	if err := tx.CheckValidity(); err != nil {
		log.WithError(err).Debug("dropping structurally invalid proof tx")
		return
	}
	if !e.ProofPool.Insert(tx) {
		return
	}
	metrics.MempoolProofTxs.Set(float64(e.ProofPool.Count()))
	e.rebroadcastExcept(senderIP, senderPort, wire.BroadcastProofTx{Port: e.SelfPort, Tx: tx})
}

func (e *Engine) rebroadcastExcept(excludeIP string, excludePort int, msg wire.Message) {
	for _, p := range e.Peers.All() {
		if p.IP == excludeIP && p.Port == excludePort {
			continue
		}
		if err := wire.SendOnly(p.Key(), msg); err != nil {
			log.WithField("peer", p.Key()).WithError(err).Debug("rebroadcast failed")
			e.Peers.RecordFailure(p.IP, p.Port)
		}
	}
}
