// Package rpc implements the optional JSON-RPC side channel of spec.md §6:
// POST {id, method, params}, response {result:{...}} or {error:string}.
// Out of scope for core correctness, but wired here as a thin façade over
// the node's read-only state, per SPEC_FULL.md's supplemented features.
package rpc

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/pouwchain/pouwchain/internal/chain"
	"github.com/pouwchain/pouwchain/internal/circuits"
	"github.com/pouwchain/pouwchain/internal/mempool"
	"github.com/pouwchain/pouwchain/internal/metrics"
	"github.com/pouwchain/pouwchain/internal/nodelog"
)

var log = nodelog.For("rpc")

type request struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type response struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Result interface{}     `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Server answers the four read-only methods spec.md §6 names, plus a
// supplemented GET_CIRCUITS listing the locally known circuit hashes.
type Server struct {
	Chain     *chain.Chain
	CoinPool  *mempool.CoinPool
	ProofPool *mempool.ProofPool
	Circuits  *circuits.Registry
}

// Handler returns the HTTP handler to mount, with permissive CORS per
// spec.md §6 ("CORS is permitted").
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/rpc", s.handleRPC).Methods(http.MethodPost)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	return cors.AllowAll().Handler(r)
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, response{Error: "malformed request body"})
		return
	}

	result, err := s.dispatch(req.Method, req.Params)
	if err != nil {
		writeJSON(w, response{ID: req.ID, Error: err.Error()})
		return
	}
	writeJSON(w, response{ID: req.ID, Result: result})
}

func (s *Server) dispatch(method string, params json.RawMessage) (interface{}, error) {
	switch method {
	case "GET_LATEST_BLOCK_ID":
		return map[string]int64{"latest_id": s.Chain.Height()}, nil

	case "GET_BLOCK":
		var p struct {
			BlockID int64 `json:"block_id"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, errMalformedParams
		}
		b, ok := s.Chain.ByHeight(p.BlockID)
		if !ok {
			return nil, errUnknownBlock
		}
		return b, nil

	case "GET_PENDING_COIN_TXS":
		return map[string]interface{}{"pending_txs": s.CoinPool.All()}, nil

	case "GET_PENDING_PROOF_TXS":
		return map[string]interface{}{"pending_txs": s.ProofPool.All()}, nil

	case "GET_CIRCUITS":
		return map[string]interface{}{"circuits": s.Circuits.Hashes()}, nil

	default:
		return nil, errUnknownMethod
	}
}

func writeJSON(w http.ResponseWriter, resp response) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.WithError(err).Warn("failed to encode RPC response")
	}
}

var (
	errMalformedParams = rpcError("malformed params")
	errUnknownBlock    = rpcError("no block with that block_id")
	errUnknownMethod   = rpcError("unknown method")
)

type rpcError string

func (e rpcError) Error() string { return string(e) }

// ListenAddr validates addr is a "host:port" pair before the caller binds
// it, surfacing a clearer startup error than a bare net.Listen failure.
func ListenAddr(addr string) (string, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", err
	}
	if _, err := strconv.Atoi(portStr); err != nil {
		return "", err
	}
	return addr, nil
}
