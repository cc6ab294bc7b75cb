package main

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"os"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/pouwchain/pouwchain/internal/crypto"
	"github.com/pouwchain/pouwchain/internal/rpc"
)

// loadOrCreateKey reads a hex-encoded secp256k1 private key from path,
// minting and persisting a fresh one if the file does not yet exist. A
// node's signing key lives for the process lifetime, per spec.md §5.
func loadOrCreateKey(path string) (*crypto.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		raw, err := hex.DecodeString(trimNewline(data))
		if err != nil {
			return nil, fmt.Errorf("decoding key file %s: %w", path, err)
		}
		priv := secp256k1.PrivKeyFromBytes(raw)
		return priv, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading key file %s: %w", path, err)
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	if err := writeKey(path, key); err != nil {
		return nil, err
	}
	return key, nil
}

func writeKey(path string, key *crypto.PrivateKey) error {
	encoded := hex.EncodeToString(key.Serialize())
	return os.WriteFile(path, []byte(encoded+"\n"), 0o600)
}

func trimNewline(b []byte) string {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return string(b)
}

func serveRPC(addr string, server *rpc.Server) error {
	return http.ListenAndServe(addr, server.Handler())
}
