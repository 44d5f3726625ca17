package service

import "sync"

type creditLock struct {
	mu   sync.Mutex
	refs int
}

// CreditLocks serializes mutating operations per credit inside this process.
// The optimistic version check in the repository is what guards against other
// processes; the in-process lock just keeps our own handlers from burning
// version-conflict retries against each other. Entries are reference-counted
// and dropped once the last holder releases, so the map only ever holds the
// credits with an operation in flight.
type CreditLocks struct {
	mu    sync.Mutex
	locks map[string]*creditLock
}

func NewCreditLocks() *CreditLocks {
	return &CreditLocks{locks: make(map[string]*creditLock)}
}

// Lock acquires the mutex for one credit and returns its unlock function.
func (l *CreditLocks) Lock(id string) func() {
	l.mu.Lock()
	entry, ok := l.locks[id]
	if !ok {
		entry = &creditLock{}
		l.locks[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
