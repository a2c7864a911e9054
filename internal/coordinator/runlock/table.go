// Package runlock provides per-run mutex striping so concurrent RPCs
// against the same run serialize while RPCs against different runs
// proceed independently.
package runlock

import "sync"

// Table hands out one *sync.Mutex per key, created lazily and kept until
// Forget drops it.
type Table struct {
	locks sync.Map // run id -> *sync.Mutex
}

func NewTable() *Table {
	return &Table{}
}

// Lock acquires the mutex for runID, creating it if this is the first time
// the run has been referenced, and returns the unlock function.
func (t *Table) Lock(runID string) (unlock func()) {
	actual, _ := t.locks.LoadOrStore(runID, &sync.Mutex{})
	mu := actual.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Forget drops a run's mutex entry once the run reaches a terminal state,
// so the table doesn't grow unbounded over the process lifetime. Callers
// must not hold the lock when calling Forget.
func (t *Table) Forget(runID string) {
	t.locks.Delete(runID)
}
