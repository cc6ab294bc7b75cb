// Package metrics exposes the node's Prometheus gauges and counters:
// mempool depth, chain height, peer count, and gossip traffic, the
// supplemented observability surface named in SPEC_FULL.md's Domain Stack.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ChainHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pouwchain",
		Name:      "chain_height",
		Help:      "Serial id of the local chain tip.",
	})

	PeerCount = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pouwchain",
		Name:      "peer_count",
		Help:      "Number of peers in the local peer table.",
	})

	MempoolCoinTxs = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pouwchain",
		Name:      "mempool_coin_txs",
		Help:      "Pending coin transactions.",
	})

	MempoolProofTxs = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pouwchain",
		Name:      "mempool_proof_txs",
		Help:      "Pending proof transactions.",
	})

	GossipMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pouwchain",
		Name:      "gossip_messages_total",
		Help:      "Inbound gossip messages handled, by command.",
	}, []string{"command"})

	BlocksProducedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pouwchain",
		Name:      "blocks_produced_total",
		Help:      "Blocks this node has produced and accepted.",
	})
)

// Handler returns the Prometheus scrape handler, mounted by the node
// runtime's optional RPC task alongside the JSON-RPC façade.
func Handler() http.Handler {
	return promhttp.Handler()
}
