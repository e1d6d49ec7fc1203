// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.
//
// The klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the klaytn library. If not, see <http://www.gnu.org/licenses/>.

package escrow

import (
	"math/big"
	"sync"

	"github.com/clawshake/shake/internal/cachekit"
	"github.com/clawshake/shake/log"
)

var storeLogger = log.NewModuleLogger(log.Store)

// shakeKey adapts a shake id to cachekit.Key.
type shakeKey uint64

func (k shakeKey) ShardIndex(shardMask int) int { return int(uint64(k)) & shardMask }

// Store is the persisted-state contract: three keyed maps (shakes,
// children, remaining) plus the next-id counter. The engine's per-tree
// (or global) lock serializes the handful of reads and writes that make
// up a single operation so that operation is atomic, but a Store
// implementation backing multiple independent root trees is still
// shared across those per-tree locks — a call for one tree and a call
// for another can run concurrently — so any Store implementation must
// still protect its own internal bookkeeping (the maps, the id counter)
// with its own synchronization. memStore does this with a collection-
// level mutex, the same way a shared peer-set guards its own peer map
// with a lock in addition to each peer's individual lock.
type Store interface {
	StoreSnapshotter

	NextID() uint64
	PutShake(s *Shake)
	GetShake(id uint64) (*Shake, bool)
	AllIDs() []uint64

	AppendChild(parentID, childID uint64)
	Children(id uint64) []uint64

	SetRemaining(id uint64, v *big.Int)
	Remaining(id uint64) (*big.Int, bool)
}

// StoreSnapshotter is the commit/rollback pair a Store exposes. The
// Engine does not call Commit or Rollback: each operation's writes land
// in the Store directly, one call at a time, under the engine's tree (or
// global) lock, and a write made before a later failure in the same
// operation is not undone. memStore's implementation is a no-op pair.
type StoreSnapshotter interface {
	Commit() error
	Rollback()
}

// memStore is the default, in-memory Store. A bounded LRU of decoded
// *Shake values sits in front of the authoritative map, the same
// caching-DB shape a trie-backed state database uses in front of its
// underlying storage; unlike that cache, memStore's backing store is
// already the map itself and GetShake never copies, so the LRU holds the
// same *Shake pointers as the map and is not a fast path over a slow one.
//
// mu guards every field below, independent of whatever per-tree or
// global lock the Engine takes: memStore is one shared instance backing
// every root tree, so two concurrent Engine operations on different
// trees still reach these same maps and the same nextID counter. A
// plain sync.Mutex rather than a RWMutex, since GetShake's cache-warming
// write to the hot LRU means even a "read" needs exclusive access.
type memStore struct {
	mu sync.Mutex

	shakes    map[uint64]*Shake
	children  map[uint64][]uint64
	remaining map[uint64]*big.Int
	nextID    uint64

	hot cachekit.Cache
}

// NewMemStore constructs the default in-memory Store, with an LRU of
// the given size caching recently-touched shake records.
func NewMemStore(cacheSize int) Store {
	var hot cachekit.Cache
	if cacheSize > 0 {
		hot, _ = cachekit.New(cachekit.LRUConfig{CacheSize: cacheSize})
	}
	return &memStore{
		shakes:    make(map[uint64]*Shake),
		children:  make(map[uint64][]uint64),
		remaining: make(map[uint64]*big.Int),
		hot:       hot,
	}
}

func (m *memStore) NextID() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	return id
}

func (m *memStore) PutShake(s *Shake) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shakes[s.id] = s
	if m.hot != nil {
		m.hot.Add(shakeKey(s.id), s)
	}
}

func (m *memStore) GetShake(id uint64) (*Shake, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hot != nil {
		if v, ok := m.hot.Get(shakeKey(id)); ok {
			return v.(*Shake), true
		}
	}
	s, ok := m.shakes[id]
	if ok && m.hot != nil {
		m.hot.Add(shakeKey(id), s)
	}
	return s, ok
}

func (m *memStore) AllIDs() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]uint64, 0, len(m.shakes))
	for id := range m.shakes {
		ids = append(ids, id)
	}
	return ids
}

func (m *memStore) AppendChild(parentID, childID uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.children[parentID] = append(m.children[parentID], childID)
}

func (m *memStore) Children(id uint64) []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Defensive copy: callers (subtree walks, queries) must never be
	// able to mutate the adjacency list in place.
	kids := m.children[id]
	out := make([]uint64, len(kids))
	copy(out, kids)
	return out
}

func (m *memStore) SetRemaining(id uint64, v *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remaining[id] = new(big.Int).Set(v)
}

func (m *memStore) Remaining(id uint64) (*big.Int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.remaining[id]
	if !ok {
		return nil, false
	}
	return new(big.Int).Set(v), true
}

func (m *memStore) Commit() error { return nil }
func (m *memStore) Rollback()     { storeLogger.Warn("rollback requested on memStore; no-op by construction") }
