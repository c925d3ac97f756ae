package scoring

import "sync"

// gameLocks hands out one mutex per game and forgets it once nobody holds
// or waits for it.
type gameLocks struct {
	mu    sync.Mutex
	locks map[uint]*gameLock
}

type gameLock struct {
	mu   sync.Mutex
	refs int
}

func newGameLocks() *gameLocks {
	return &gameLocks{locks: make(map[uint]*gameLock)}
}

func (l *gameLocks) lock(gameID uint) (unlock func()) {
	l.mu.Lock()
	entry := l.locks[gameID]
	if entry == nil {
		entry = &gameLock{}
		l.locks[gameID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, gameID)
		}
		l.mu.Unlock()
	}
}
