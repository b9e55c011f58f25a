// Package sync provides locking helpers keyed by an arbitrary string, such as a user ID.
package sync

import (
	"hash/maphash"
	"sync"
)

const defaultShards = 64

// KeyedMutex serializes work per key by hashing keys onto a fixed set of mutexes. Two
// different keys may share a shard; the same key always does.
type KeyedMutex struct {
	seed   maphash.Seed
	shards []sync.Mutex
}

// NewKeyedMutex creates a KeyedMutex with n shards (64 when n <= 0).
func NewKeyedMutex(n int) *KeyedMutex {
	if n <= 0 {
		n = defaultShards
	}
	return &KeyedMutex{
		seed:   maphash.MakeSeed(),
		shards: make([]sync.Mutex, n),
	}
}

func (m *KeyedMutex) Lock(key string) {
	m.shardFor(key).Lock()
}

func (m *KeyedMutex) Unlock(key string) {
	m.shardFor(key).Unlock()
}

// Do runs fn while holding the lock for key.
func (m *KeyedMutex) Do(key string, fn func()) {
	mu := m.shardFor(key)
	mu.Lock()
	defer mu.Unlock()
	fn()
}

func (m *KeyedMutex) shardFor(key string) *sync.Mutex {
	if key == "" {
		return &m.shards[0]
	}
	return &m.shards[maphash.String(m.seed, key)%uint64(len(m.shards))]
}
