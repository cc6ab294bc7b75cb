// Package peertable holds the set of known peers described in spec.md §3:
// identity "<ip>:<port>" plus a last-observed chain height.
package peertable

import (
	"fmt"
	"sync"
)

// Peer is one entry in the table.
type Peer struct {
	IP            string
	Port          int
	LatestBlockID int64
	// FailedSends counts outbound send failures to this peer; it is never
	// reset, and nothing disconnects or evicts a peer based on it. A
	// reputation placeholder, per spec.md §7.
	FailedSends int
}

// Key returns the peer's canonical identity string.
func (p Peer) Key() string {
	return fmt.Sprintf("%s:%d", p.IP, p.Port)
}

// Table is the mutex-guarded, process-wide peer set.
type Table struct {
	mu    sync.RWMutex
	peers map[string]*Peer
}

// New returns an empty peer table.
func New() *Table {
	return &Table{peers: make(map[string]*Peer)}
}

// Upsert records ip:port as known, updating its latest block id if given
// one, and returns whether the peer was previously unknown. Called both on
// explicit peer-exchange and on first contact from an inbound connection,
// per spec.md §4.5.
func (t *Table) Upsert(ip string, port int, latestBlockID int64) (isNew bool) {
	key := fmt.Sprintf("%s:%d", ip, port)
	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.peers[key]; ok {
		if latestBlockID > existing.LatestBlockID {
			existing.LatestBlockID = latestBlockID
		}
		return false
	}
	t.peers[key] = &Peer{IP: ip, Port: port, LatestBlockID: latestBlockID}
	return true
}

// Known reports whether ip:port is in the table, the gate spec.md §4.5
// applies to every response-typed message.
func (t *Table) Known(ip string, port int) bool {
	key := fmt.Sprintf("%s:%d", ip, port)
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.peers[key]
	return ok
}

// RecordFailure increments the failed-send counter for ip:port.
func (t *Table) RecordFailure(ip string, port int) {
	key := fmt.Sprintf("%s:%d", ip, port)
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.peers[key]; ok {
		p.FailedSends++
	}
}

// All returns a snapshot of every known peer.
func (t *Table) All() []Peer {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Peer, 0, len(t.peers))
	for _, p := range t.peers {
		out = append(out, *p)
	}
	return out
}

// Count returns the number of known peers.
func (t *Table) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.peers)
}

// Best returns the peer with the greatest reported height, and true if its
// height strictly exceeds localHeight — the peer selection rule of spec.md
// §4.6 step 4. On a tie among remote peers the first one encountered (map
// iteration order within this snapshot) wins, matching the spec's
// first-wins tie-break.
func (t *Table) Best(localHeight int64) (Peer, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var best Peer
	found := false
	for _, p := range t.peers {
		if p.LatestBlockID > localHeight && (!found || p.LatestBlockID > best.LatestBlockID) {
			best = *p
			found = true
		}
	}
	return best, found
}
