package locks

import (
	"context"
	"sync"
)

// KeyedMutex is an in-process Locker keyed by application ID. Suitable for
// single-node deployments and tests.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	ch      chan struct{} // holds one token when the lock is free
	waiters int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{
		locks: make(map[string]*entry),
	}
}

func (m *KeyedMutex) Acquire(ctx context.Context, applicationID string) (ReleaseFunc, error) {
	m.mu.Lock()

	e, exists := m.locks[applicationID]
	if !exists {
		e = &entry{ch: make(chan struct{}, 1)}
		e.ch <- struct{}{}
		m.locks[applicationID] = e
	}

	e.waiters++
	m.mu.Unlock()

	select {
	case <-e.ch:
		return func() { m.release(applicationID, e) }, nil
	case <-ctx.Done():
		m.mu.Lock()
		e.waiters--

		if e.waiters == 0 {
			delete(m.locks, applicationID)
		}
		m.mu.Unlock()

		return nil, ErrNotAcquired
	}
}

func (m *KeyedMutex) release(applicationID string, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e.waiters--
	e.ch <- struct{}{}

	if e.waiters == 0 {
		delete(m.locks, applicationID)
	}
}
