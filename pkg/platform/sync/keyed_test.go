package sync

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutex_LockUnlock(t *testing.T) {
	m := NewKeyedMutex(0)
	assert.Len(t, m.shards, defaultShards)

	m.Lock("user-1")
	m.Unlock("user-1")

	m.Lock("")
	m.Unlock("")
}

func TestKeyedMutex_SameKeySerializes(t *testing.T) {
	m := NewKeyedMutex(8)
	var (
		inFlight atomic.Int32
		maxSeen  atomic.Int32
		counter  int
		wg       sync.WaitGroup
	)

	for range 100 {
		wg.Go(func() {
			m.Do("user-1", func() {
				n := inFlight.Add(1)
				if n > maxSeen.Load() {
					maxSeen.Store(n)
				}
				counter++
				inFlight.Add(-1)
			})
		})
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
	assert.Equal(t, int32(1), maxSeen.Load())
}

func TestKeyedMutex_SameKeySameShard(t *testing.T) {
	m := NewKeyedMutex(16)
	assert.Same(t, m.shardFor("user-42"), m.shardFor("user-42"))
}

func TestKeyedMutex_HeldLockBlocksSameKey(t *testing.T) {
	m := NewKeyedMutex(4)
	m.Lock("user-1")

	acquired := make(chan struct{})
	go func() {
		m.Lock("user-1")
		close(acquired)
		m.Unlock("user-1")
	}()

	select {
	case <-acquired:
		t.Fatal("lock acquired while held")
	case <-time.After(50 * time.Millisecond):
	}

	m.Unlock("user-1")
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock not released")
	}
}
