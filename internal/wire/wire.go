// Package wire implements the JSON message envelope and one-shot TCP
// framing described in spec.md §4.5 and §6: one TCP connection carries one
// message, the sender closes its write half after writing, and the
// receiver reads until EOF. Per spec.md §9's "Dynamic JSON" design note,
// nothing past this package ever sees a raw map — every command decodes
// into its own tagged struct, and an unrecognised command is a decode
// error rather than a pass-through value.
package wire

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/pouwchain/pouwchain/internal/block"
	"github.com/pouwchain/pouwchain/internal/chainerrors"
	"github.com/pouwchain/pouwchain/internal/cointx"
	"github.com/pouwchain/pouwchain/internal/prooftx"
)

// Command is one of the closed set of message tags named in spec.md §4.5.
type Command string

const (
	CmdGetPeers               Command = "GET_PEERS"
	CmdPeers                  Command = "PEERS"
	CmdGetLatestBlockID       Command = "GET_LATEST_BLOCK_ID"
	CmdLatestBlockID          Command = "LATEST_BLOCK_ID"
	CmdGetBlock               Command = "GET_BLOCK"
	CmdBlock                  Command = "BLOCK"
	CmdGetPendingCoinTxs      Command = "GET_PENDING_COIN_TXS"
	CmdPendingCoinTxs         Command = "PENDING_COIN_TXS"
	CmdGetPendingProofTxs     Command = "GET_PENDING_PROOF_TXS"
	CmdPendingProofTxs        Command = "PENDING_PROOF_TXS"
	CmdBroadcastBlock         Command = "BROADCAST_BLOCK"
	CmdBroadcastPendingCoinTx Command = "BROADCAST_PENDING_COIN_TX"
	CmdBroadcastPendingProof  Command = "BROADCAST_PENDING_PROOF_TX"
)

// Message is implemented by every decoded wire variant. Every variant
// carries the sender's advertised listening Port, used to derive its
// canonical peer identity together with the socket's observed IP.
type Message interface {
	Command() Command
	SenderPort() int
}

// GetPeers is an empty request; responders should reply with Peers.
type GetPeers struct{ Port int }

func (m GetPeers) Command() Command { return CmdGetPeers }
func (m GetPeers) SenderPort() int  { return m.Port }

// Peers carries the responder's known peer identities.
type Peers struct {
	Port      int
	PeerAddrs []string
}

func (m Peers) Command() Command { return CmdPeers }
func (m Peers) SenderPort() int  { return m.Port }

// GetLatestBlockID is an empty height query.
type GetLatestBlockID struct{ Port int }

func (m GetLatestBlockID) Command() Command { return CmdGetLatestBlockID }
func (m GetLatestBlockID) SenderPort() int  { return m.Port }

// LatestBlockID reports the responder's tip serial id.
type LatestBlockID struct {
	Port     int
	LatestID int64
}

func (m LatestBlockID) Command() Command { return CmdLatestBlockID }
func (m LatestBlockID) SenderPort() int  { return m.Port }

// GetBlock requests a single block by serial id.
type GetBlock struct {
	Port    int
	BlockID int64
}

func (m GetBlock) Command() Command { return CmdGetBlock }
func (m GetBlock) SenderPort() int  { return m.Port }

// BlockMsg carries one finalised block.
type BlockMsg struct {
	Port  int
	Block *block.Block
}

func (m BlockMsg) Command() Command { return CmdBlock }
func (m BlockMsg) SenderPort() int  { return m.Port }

// GetPendingCoinTxs requests the responder's pending coin-tx pool.
type GetPendingCoinTxs struct{ Port int }

func (m GetPendingCoinTxs) Command() Command { return CmdGetPendingCoinTxs }
func (m GetPendingCoinTxs) SenderPort() int  { return m.Port }

// PendingCoinTxs carries a snapshot of the responder's coin-tx pool.
type PendingCoinTxs struct {
	Port        int
	PendingTxs  []*cointx.Transaction
}

func (m PendingCoinTxs) Command() Command { return CmdPendingCoinTxs }
func (m PendingCoinTxs) SenderPort() int  { return m.Port }

// GetPendingProofTxs requests the responder's pending proof-tx pool.
type GetPendingProofTxs struct{ Port int }

func (m GetPendingProofTxs) Command() Command { return CmdGetPendingProofTxs }
func (m GetPendingProofTxs) SenderPort() int  { return m.Port }

// PendingProofTxs carries a snapshot of the responder's proof-tx pool.
type PendingProofTxs struct {
	Port       int
	PendingTxs []*prooftx.Transaction
}

func (m PendingProofTxs) Command() Command { return CmdPendingProofTxs }
func (m PendingProofTxs) SenderPort() int  { return m.Port }

// BroadcastBlock is unsolicited block gossip.
type BroadcastBlock struct {
	Port  int
	Block *block.Block
}

func (m BroadcastBlock) Command() Command { return CmdBroadcastBlock }
func (m BroadcastBlock) SenderPort() int  { return m.Port }

// BroadcastCoinTx is unsolicited coin-tx gossip.
type BroadcastCoinTx struct {
	Port int
	Tx   *cointx.Transaction
}

func (m BroadcastCoinTx) Command() Command { return CmdBroadcastPendingCoinTx }
func (m BroadcastCoinTx) SenderPort() int  { return m.Port }

// BroadcastProofTx is unsolicited proof-tx gossip.
type BroadcastProofTx struct {
	Port int
	Tx   *prooftx.Transaction
}

func (m BroadcastProofTx) Command() Command { return CmdBroadcastPendingProof }
func (m BroadcastProofTx) SenderPort() int  { return m.Port }

// wireShape is the full set of fields any message might carry, used only
// as the JSON decode target; every exported decode path immediately
// projects it into one of the typed variants above.
type wireShape struct {
	Command    Command                `json:"command"`
	Port       int                    `json:"port"`
	Peers      []string               `json:"peers,omitempty"`
	LatestID   *int64                 `json:"latest_id,omitempty"`
	BlockID    *int64                 `json:"block_id,omitempty"`
	Block      *block.Block           `json:"block,omitempty"`
	PendingTxs json.RawMessage        `json:"pending_txs,omitempty"`
	Tx         json.RawMessage        `json:"tx,omitempty"`
}

// Decode parses a single JSON message and projects it into its typed
// Message variant. An unknown command, or a command missing a required
// field, is ErrMalformedMessage — per spec.md §4.5 this is dropped silently
// by the caller, not escalated.
func Decode(data []byte) (Message, error) {
	var w wireShape
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", chainerrors.ErrMalformedMessage, err)
	}
	if w.Command == "" || w.Port == 0 {
		return nil, fmt.Errorf("%w: missing command or port", chainerrors.ErrMalformedMessage)
	}

	switch w.Command {
	case CmdGetPeers:
		return GetPeers{Port: w.Port}, nil
	case CmdPeers:
		return Peers{Port: w.Port, PeerAddrs: w.Peers}, nil
	case CmdGetLatestBlockID:
		return GetLatestBlockID{Port: w.Port}, nil
	case CmdLatestBlockID:
		if w.LatestID == nil {
			return nil, fmt.Errorf("%w: LATEST_BLOCK_ID missing latest_id", chainerrors.ErrMalformedMessage)
		}
		return LatestBlockID{Port: w.Port, LatestID: *w.LatestID}, nil
	case CmdGetBlock:
		if w.BlockID == nil {
			return nil, fmt.Errorf("%w: GET_BLOCK missing block_id", chainerrors.ErrMalformedMessage)
		}
		return GetBlock{Port: w.Port, BlockID: *w.BlockID}, nil
	case CmdBlock:
		if w.Block == nil {
			return nil, fmt.Errorf("%w: BLOCK missing block", chainerrors.ErrMalformedMessage)
		}
		return BlockMsg{Port: w.Port, Block: w.Block}, nil
	case CmdGetPendingCoinTxs:
		return GetPendingCoinTxs{Port: w.Port}, nil
	case CmdPendingCoinTxs:
		var txs []*cointx.Transaction
		if len(w.PendingTxs) > 0 {
			if err := json.Unmarshal(w.PendingTxs, &txs); err != nil {
				return nil, fmt.Errorf("%w: PENDING_COIN_TXS: %v", chainerrors.ErrMalformedMessage, err)
			}
		}
		return PendingCoinTxs{Port: w.Port, PendingTxs: txs}, nil
	case CmdGetPendingProofTxs:
		return GetPendingProofTxs{Port: w.Port}, nil
	case CmdPendingProofTxs:
		var txs []*prooftx.Transaction
		if len(w.PendingTxs) > 0 {
			if err := json.Unmarshal(w.PendingTxs, &txs); err != nil {
				return nil, fmt.Errorf("%w: PENDING_PROOF_TXS: %v", chainerrors.ErrMalformedMessage, err)
			}
		}
		return PendingProofTxs{Port: w.Port, PendingTxs: txs}, nil
	case CmdBroadcastBlock:
		if w.Block == nil {
			return nil, fmt.Errorf("%w: BROADCAST_BLOCK missing block", chainerrors.ErrMalformedMessage)
		}
		return BroadcastBlock{Port: w.Port, Block: w.Block}, nil
	case CmdBroadcastPendingCoinTx:
		if len(w.Tx) == 0 {
			return nil, fmt.Errorf("%w: BROADCAST_PENDING_COIN_TX missing tx", chainerrors.ErrMalformedMessage)
		}
		var tx cointx.Transaction
		if err := json.Unmarshal(w.Tx, &tx); err != nil {
			return nil, fmt.Errorf("%w: %v", chainerrors.ErrMalformedMessage, err)
		}
		return BroadcastCoinTx{Port: w.Port, Tx: &tx}, nil
	case CmdBroadcastPendingProof:
		if len(w.Tx) == 0 {
			return nil, fmt.Errorf("%w: BROADCAST_PENDING_PROOF_TX missing tx", chainerrors.ErrMalformedMessage)
		}
		var tx prooftx.Transaction
		if err := json.Unmarshal(w.Tx, &tx); err != nil {
			return nil, fmt.Errorf("%w: %v", chainerrors.ErrMalformedMessage, err)
		}
		return BroadcastProofTx{Port: w.Port, Tx: &tx}, nil
	default:
		return nil, fmt.Errorf("%w: unknown command %q", chainerrors.ErrMalformedMessage, w.Command)
	}
}

// Encode serialises a Message to its wire JSON.
func Encode(m Message) ([]byte, error) {
	switch v := m.(type) {
	case GetPeers:
		return json.Marshal(wireShape{Command: v.Command(), Port: v.Port})
	case Peers:
		return json.Marshal(wireShape{Command: v.Command(), Port: v.Port, Peers: v.PeerAddrs})
	case GetLatestBlockID:
		return json.Marshal(wireShape{Command: v.Command(), Port: v.Port})
	case LatestBlockID:
		id := v.LatestID
		return json.Marshal(wireShape{Command: v.Command(), Port: v.Port, LatestID: &id})
	case GetBlock:
		id := v.BlockID
		return json.Marshal(wireShape{Command: v.Command(), Port: v.Port, BlockID: &id})
	case BlockMsg:
		return json.Marshal(struct {
			Command Command      `json:"command"`
			Port    int          `json:"port"`
			Block   *block.Block `json:"block"`
		}{v.Command(), v.Port, v.Block})
	case GetPendingCoinTxs:
		return json.Marshal(wireShape{Command: v.Command(), Port: v.Port})
	case PendingCoinTxs:
		return json.Marshal(struct {
			Command    Command                `json:"command"`
			Port       int                    `json:"port"`
			PendingTxs []*cointx.Transaction `json:"pending_txs"`
		}{v.Command(), v.Port, nonNilCoin(v.PendingTxs)})
	case GetPendingProofTxs:
		return json.Marshal(wireShape{Command: v.Command(), Port: v.Port})
	case PendingProofTxs:
		return json.Marshal(struct {
			Command    Command                 `json:"command"`
			Port       int                     `json:"port"`
			PendingTxs []*prooftx.Transaction `json:"pending_txs"`
		}{v.Command(), v.Port, nonNilProof(v.PendingTxs)})
	case BroadcastBlock:
		return json.Marshal(struct {
			Command Command      `json:"command"`
			Port    int          `json:"port"`
			Block   *block.Block `json:"block"`
		}{v.Command(), v.Port, v.Block})
	case BroadcastCoinTx:
		return json.Marshal(struct {
			Command Command              `json:"command"`
			Port    int                  `json:"port"`
			Tx      *cointx.Transaction `json:"tx"`
		}{v.Command(), v.Port, v.Tx})
	case BroadcastProofTx:
		return json.Marshal(struct {
			Command Command               `json:"command"`
			Port    int                   `json:"port"`
			Tx      *prooftx.Transaction `json:"tx"`
		}{v.Command(), v.Port, v.Tx})
	default:
		return nil, fmt.Errorf("%w: cannot encode unknown message type %T", chainerrors.ErrMalformedMessage, m)
	}
}

func nonNilCoin(txs []*cointx.Transaction) []*cointx.Transaction {
	if txs == nil {
		return []*cointx.Transaction{}
	}
	return txs
}

func nonNilProof(txs []*prooftx.Transaction) []*prooftx.Transaction {
	if txs == nil {
		return []*prooftx.Transaction{}
	}
	return txs
}

// DialTimeout bounds the TCP connect of one outbound message; the write
// and any response read that follow carry no deadline.
const DialTimeout = 3 * time.Second

// Send opens a one-shot TCP connection to addr, writes msg, closes the
// write half, then reads and decodes exactly one response message. Used
// for request/response commands; for fire-and-forget broadcasts callers
// ignore the response or use SendOnly.
func Send(addr string, msg Message) (Message, error) {
	conn, err := net.DialTimeout("tcp", addr, DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: dialing %s: %v", chainerrors.ErrIOFailure, addr, err)
	}
	defer conn.Close()

	if err := writeAndCloseHalf(conn, msg); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(conn)
	if err != nil {
		return nil, fmt.Errorf("%w: reading from %s: %v", chainerrors.ErrIOFailure, addr, err)
	}
	return Decode(body)
}

// SendOnly opens a one-shot TCP connection, writes msg, and closes,
// discarding any response. Used for broadcasts per spec.md §4.5.
func SendOnly(addr string, msg Message) error {
	conn, err := net.DialTimeout("tcp", addr, DialTimeout)
	if err != nil {
		return fmt.Errorf("%w: dialing %s: %v", chainerrors.ErrIOFailure, addr, err)
	}
	defer conn.Close()
	return writeAndCloseHalf(conn, msg)
}

func writeAndCloseHalf(conn net.Conn, msg Message) error {
	data, err := Encode(msg)
	if err != nil {
		return err
	}
	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("%w: writing: %v", chainerrors.ErrIOFailure, err)
	}
	if closer, ok := conn.(interface{ CloseWrite() error }); ok {
		_ = closer.CloseWrite()
	}
	return nil
}

// ReadMessage reads one message from an inbound connection until EOF and
// decodes it, for use by the listener's per-connection handler.
func ReadMessage(conn net.Conn) (Message, error) {
	body, err := io.ReadAll(conn)
	if err != nil {
		return nil, fmt.Errorf("%w: reading inbound message: %v", chainerrors.ErrIOFailure, err)
	}
	return Decode(body)
}

// WriteResponse encodes and writes resp to conn, the reply half of a
// request/response exchange handled by the listener.
func WriteResponse(conn net.Conn, resp Message) error {
	data, err := Encode(resp)
	if err != nil {
		return err
	}
	_, err = conn.Write(data)
	if err != nil {
		return fmt.Errorf("%w: writing response: %v", chainerrors.ErrIOFailure, err)
	}
	return nil
}
