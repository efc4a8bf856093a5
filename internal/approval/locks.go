package approval

import "sync"

// expenseLocks serializes decide calls per expense id within the process.
// Entries are never removed; the map grows with the number of distinct
// expenses decided on since startup, which is bounded by the working set.
type expenseLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newExpenseLocks() *expenseLocks {
	return &expenseLocks{
		locks: make(map[int64]*sync.Mutex),
	}
}

// get returns the mutex for an expense id, creating it on first use
func (l *expenseLocks) get(expenseID int64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.locks[expenseID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[expenseID] = lock
	}
	return lock
}
