package matching

import "sync"

// pairLock serializes work per key. Decision processing locks on the
// canonical unordered-pair key so two concurrent mutual likes cannot both
// miss the other's decision and double-create a match.
type pairLock struct {
	mu    sync.Mutex
	locks map[string]*pairLockEntry
}

type pairLockEntry struct {
	mu   sync.Mutex
	refs int
}

func newPairLock() *pairLock {
	return &pairLock{locks: make(map[string]*pairLockEntry)}
}

// Lock acquires the mutex for key, creating it on first use.
func (p *pairLock) Lock(key string) {
	p.mu.Lock()
	e, ok := p.locks[key]
	if !ok {
		e = &pairLockEntry{}
		p.locks[key] = e
	}
	e.refs++
	p.mu.Unlock()

	e.mu.Lock()
}

// Unlock releases the mutex for key and frees it when no one is waiting.
func (p *pairLock) Unlock(key string) {
	p.mu.Lock()
	e := p.locks[key]
	e.refs--
	if e.refs == 0 {
		delete(p.locks, key)
	}
	p.mu.Unlock()

	e.mu.Unlock()
}
