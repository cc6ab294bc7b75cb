// Package config loads the node's JSON configuration file, per spec.md §6:
// listen address, seed peers, peer-table sizing, timestamp tolerance, the
// two fee parameters, and the encoded genesis block.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pouwchain/pouwchain/internal/block"
	"github.com/pouwchain/pouwchain/internal/chainerrors"
)

// Config is the decoded contents of a node's configuration file.
type Config struct {
	SelfIPAddress          string       `json:"self_ip_address"`
	SeedNodes              []string     `json:"seed_nodes"`
	MaxPeerCount           int          `json:"max_peer_count"`
	TimeDifferenceTolerance int64       `json:"time_difference_tolerance"`
	CoinTxFee              int64        `json:"coin_tx_fee"`
	ProofTxFee             int64        `json:"proof_tx_fee"`
	CircuitDirectory       string       `json:"circuit_directory"`
	GenesisBlock           *block.Block `json:"genesis_block"`
	ListenPort             int          `json:"listen_port"`
	RPCAddress             string       `json:"rpc_address"`
	Difficulty             int64        `json:"difficulty"`
}

// defaults mirror the values spec.md §4.4 and §6 call out explicitly.
const (
	DefaultMaxPeerCount            = 8
	DefaultTimeDifferenceTolerance = 10_000
	DefaultDifficulty              = 1
)

// Load reads and decodes a configuration file at path, filling in the
// documented defaults for any omitted sizing fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading config: %v", chainerrors.ErrIOFailure, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: decoding config: %v", chainerrors.ErrMalformedMessage, err)
	}

	if cfg.MaxPeerCount <= 0 {
		cfg.MaxPeerCount = DefaultMaxPeerCount
	}
	if cfg.TimeDifferenceTolerance <= 0 {
		cfg.TimeDifferenceTolerance = DefaultTimeDifferenceTolerance
	}
	if cfg.SelfIPAddress == "" {
		cfg.SelfIPAddress = "127.0.0.1"
	}
	if cfg.Difficulty <= 0 {
		cfg.Difficulty = DefaultDifficulty
	}
	if cfg.GenesisBlock == nil {
		return nil, fmt.Errorf("%w: config is missing genesis_block", chainerrors.ErrMalformedMessage)
	}
	if cfg.CoinTxFee < 0 {
		return nil, fmt.Errorf("%w: coin_tx_fee must be non-negative", chainerrors.ErrBadAmount)
	}
	if cfg.ProofTxFee <= 0 {
		return nil, fmt.Errorf("%w: proof_tx_fee must be positive (it is a divisor)", chainerrors.ErrBadAmount)
	}
	return &cfg, nil
}
