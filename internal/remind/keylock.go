package remind

import "sync"

// keyLock serializes work per reminder id: a fire and a reschedule of the
// same reminder never interleave, while distinct reminders proceed freely.
type keyLock struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func newKeyLock() *keyLock {
	return &keyLock{locks: make(map[string]*entry)}
}

func (k *keyLock) lock(id string) {
	k.mu.Lock()
	e, ok := k.locks[id]
	if !ok {
		e = &entry{}
		k.locks[id] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
}

func (k *keyLock) unlock(id string) {
	k.mu.Lock()
	e := k.locks[id]
	e.refs--
	if e.refs == 0 {
		delete(k.locks, id)
	}
	k.mu.Unlock()

	e.mu.Unlock()
}
