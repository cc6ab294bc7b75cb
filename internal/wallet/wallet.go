// Package wallet builds and submits signed transactions against a running
// node, per SPEC_FULL.md's supplemented wallet-client feature. It is a thin
// client: construction and signing happen locally with internal/crypto and
// internal/cointx/internal/prooftx, submission happens as a broadcast over
// the gossip wire codec (internal/wire), and the JSON-RPC façade
// (internal/rpc) is used only for the read-only balance lookup.
package wallet

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pouwchain/pouwchain/internal/chainerrors"
	"github.com/pouwchain/pouwchain/internal/cointx"
	"github.com/pouwchain/pouwchain/internal/crypto"
	"github.com/pouwchain/pouwchain/internal/prooftx"
	"github.com/pouwchain/pouwchain/internal/wire"
)

// Wallet wraps one signing key and the address of the node it submits
// transactions to.
type Wallet struct {
	key      *crypto.PrivateKey
	nodeAddr string // "ip:port" of the node's gossip listener
	rpcURL   string // base URL of the node's JSON-RPC façade, may be ""
	selfPort int    // our own gossip port to stamp on broadcast envelopes
	client   *http.Client
}

// New builds a wallet client for key, talking to a node at nodeAddr (its
// gossip "ip:port") and, optionally, rpcURL (its JSON-RPC base URL, used
// for balance lookups). selfPort is stamped as the sender port on any wire
// message the wallet sends directly; it must be non-zero for broadcasts,
// since the receiving node decodes port 0 as a missing port and drops the
// message.
func New(key *crypto.PrivateKey, nodeAddr, rpcURL string, selfPort int) *Wallet {
	return &Wallet{key: key, nodeAddr: nodeAddr, rpcURL: rpcURL, selfPort: selfPort, client: &http.Client{}}
}

// Address returns this wallet's on-chain identity.
func (w *Wallet) Address() [crypto.AddressSize]byte {
	return crypto.Address(w.key)
}

// SendCoins builds, signs, and broadcasts a coin transaction moving amount
// from this wallet's address to to.
func (w *Wallet) SendCoins(to [crypto.AddressSize]byte, amount int64) (*cointx.Transaction, error) {
	tx, err := cointx.New(w.Address(), to, amount)
	if err != nil {
		return nil, err
	}
	if err := tx.Sign(w.key); err != nil {
		return nil, err
	}
	if err := wire.SendOnly(w.nodeAddr, wire.BroadcastCoinTx{Port: w.selfPort, Tx: tx}); err != nil {
		return nil, fmt.Errorf("%w: broadcasting coin tx: %v", chainerrors.ErrIOFailure, err)
	}
	return tx, nil
}

// RequestProof builds, signs, and broadcasts a proof transaction asking the
// network to run the circuit identified by circuitHash over parameters, at
// the given complexity.
func (w *Wallet) RequestProof(circuitHash [crypto.HashSize]byte, parameters string, complexity int64) (*prooftx.Transaction, error) {
	tx, err := prooftx.New(w.Address(), circuitHash, parameters, complexity)
	if err != nil {
		return nil, err
	}
	if err := tx.Sign(w.key); err != nil {
		return nil, err
	}
	if err := wire.SendOnly(w.nodeAddr, wire.BroadcastProofTx{Port: w.selfPort, Tx: tx}); err != nil {
		return nil, fmt.Errorf("%w: broadcasting proof tx: %v", chainerrors.ErrIOFailure, err)
	}
	return tx, nil
}

// Balance queries the node's RPC façade for the current chain tip and
// walks its state-tree snapshot for this wallet's balance. It is a
// read-only convenience; a wallet with no rpcURL configured cannot call it.
func (w *Wallet) Balance() (int64, error) {
	if w.rpcURL == "" {
		return 0, fmt.Errorf("wallet has no RPC endpoint configured")
	}
	heightResp, err := w.call("GET_LATEST_BLOCK_ID", nil)
	if err != nil {
		return 0, err
	}
	var height struct {
		LatestID int64 `json:"latest_id"`
	}
	if err := json.Unmarshal(heightResp, &height); err != nil {
		return 0, fmt.Errorf("%w: decoding height: %v", chainerrors.ErrMalformedMessage, err)
	}

	blockResp, err := w.call("GET_BLOCK", map[string]int64{"block_id": height.LatestID})
	if err != nil {
		return 0, err
	}
	var block struct {
		Body struct {
			StateTree map[string]int64 `json:"state_tree"`
		} `json:"body"`
	}
	if err := json.Unmarshal(blockResp, &block); err != nil {
		return 0, fmt.Errorf("%w: decoding block: %v", chainerrors.ErrMalformedMessage, err)
	}

	return block.Body.StateTree[hex.EncodeToString(w.Address()[:])], nil
}

func (w *Wallet) call(method string, params interface{}) (json.RawMessage, error) {
	payload, err := json.Marshal(map[string]interface{}{"id": 1, "method": method, "params": params})
	if err != nil {
		return nil, err
	}
	resp, err := w.client.Post(w.rpcURL+"/rpc", "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: calling %s: %v", chainerrors.ErrIOFailure, method, err)
	}
	defer resp.Body.Close()

	var out struct {
		Result json.RawMessage `json:"result"`
		Error  string          `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decoding %s response: %v", chainerrors.ErrMalformedMessage, method, err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("%s: %s", method, out.Error)
	}
	return out.Result, nil
}
