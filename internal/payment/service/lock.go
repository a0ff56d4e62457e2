package service

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

// keyedMutex serializes work per registration within one process. Entries
// are reference counted and removed once the last holder unlocks, so the
// map never grows with registration count.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[snowflake.ID]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[snowflake.ID]*keyedLock)}
}

func (k *keyedMutex) Lock(id snowflake.ID) func() {
	k.mu.Lock()
	entry, ok := k.locks[id]
	if !ok {
		entry = &keyedLock{}
		k.locks[id] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}
