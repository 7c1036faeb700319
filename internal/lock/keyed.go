// Package lock provides an in-process exclusive lock keyed by string,
// used to serialize every multi-record mutation of one account while
// leaving different accounts fully independent.
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrTimeout is returned when the lock could not be acquired before the
// context expired.
var ErrTimeout = errors.New("lock acquisition timed out")

type entry struct {
	sem  chan struct{}
	refs int
}

// Keyed is a set of independent mutexes addressed by key. Entries are
// created on first use and removed once the last waiter releases, so the
// map does not grow with the number of accounts ever seen.
type Keyed struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// NewKeyed creates an empty keyed lock set.
func NewKeyed() *Keyed {
	return &Keyed{entries: make(map[string]*entry)}
}

// Acquire blocks until the key's lock is held or ctx expires. On success it
// returns a release function that must be called exactly once; deferring it
// guarantees release on every exit path.
func (k *Keyed) Acquire(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
		return func() {
			<-e.sem
			k.put(key, e)
		}, nil
	case <-ctx.Done():
		k.put(key, e)
		return nil, ErrTimeout
	}
}

func (k *Keyed) put(key string, e *entry) {
	k.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
	k.mu.Unlock()
}
