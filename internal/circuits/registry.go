// Package circuits discovers the compiled-circuit directories a prover can
// consume, per spec.md §6's "Circuit directory layout": one subdirectory
// per circuit, identified by the SHA-256 of its source file. Grounded in
// original_source/src/bind_zokrates.py's Zokrates.prepare_circuits, which
// walks a circuit root directory and maps each discovered hash to its
// subfolder path.
package circuits

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pouwchain/pouwchain/internal/chainerrors"
	"github.com/pouwchain/pouwchain/internal/nodelog"
)

var log = nodelog.For("circuits")

// Registry maps a circuit_hash (hex) to the directory containing its
// compiled form, proving key, verification key, and ABI.
type Registry struct {
	mu   sync.RWMutex
	dirs map[string]string
}

// Discover walks root for immediate subdirectories each containing exactly
// one .zok source file, hashes that file, and records the mapping.
// Subfolders that don't fit that shape are skipped with a warning, matching
// the original toolchain's tolerant scan.
func Discover(root string) (*Registry, error) {
	reg := &Registry{dirs: make(map[string]string)}

	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			log.WithField("root", root).Warn("no circuit directory configured; proof txs will all fail with UnknownCircuit")
			return reg, nil
		}
		return nil, fmt.Errorf("%w: reading circuit root: %v", chainerrors.ErrIOFailure, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		sub := filepath.Join(root, entry.Name())
		source, err := findSingleZok(sub)
		if err != nil {
			log.WithField("dir", sub).WithError(err).Warn("skipping circuit subfolder")
			continue
		}
		data, err := os.ReadFile(source)
		if err != nil {
			log.WithField("file", source).WithError(err).Warn("skipping circuit subfolder")
			continue
		}
		digest := sha256.Sum256(data)
		reg.dirs[hex.EncodeToString(digest[:])] = sub
		log.WithField("circuit_hash", hex.EncodeToString(digest[:])).WithField("dir", sub).Debug("registered circuit")
	}
	return reg, nil
}

func findSingleZok(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var found string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".zok") {
			continue
		}
		if found != "" {
			return "", fmt.Errorf("multiple .zok files found")
		}
		found = filepath.Join(dir, e.Name())
	}
	if found == "" {
		return "", fmt.Errorf("no .zok file found")
	}
	return found, nil
}

// DirFor returns the circuit directory for hash, and whether it is known.
func (r *Registry) DirFor(hash [32]byte) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dir, ok := r.dirs[hex.EncodeToString(hash[:])]
	return dir, ok
}

// Hashes returns every known circuit_hash, for the supplemented GET_CIRCUITS
// RPC listing.
func (r *Registry) Hashes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.dirs))
	for h := range r.dirs {
		out = append(out, h)
	}
	return out
}
