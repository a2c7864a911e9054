// Package reorder implements a bounded per-run reorder buffer for
// out-of-order log_metrics batches: points arriving with a
// sequence number ahead of the next expected one are held until the gap
// fills in or the window's max wait elapses, at which point the run's
// gap-filling rule forces the buffer open.
package reorder

import (
	"container/heap"
	"time"
)

// Item is one buffered log_metrics batch awaiting its turn.
type Item struct {
	Sequence int64
	Value    interface{}
	index    int
}

type itemHeap []*Item

func (h itemHeap) Len() int            { return len(h) }
func (h itemHeap) Less(i, j int) bool  { return h[i].Sequence < h[j].Sequence }
func (h itemHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *itemHeap) Push(x interface{}) {
	item := x.(*Item)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *itemHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// Window buffers items for a single run, releasing them to the caller in
// sequence order.
type Window struct {
	heap       itemHeap
	next       int64
	maxSize    int
	maxWait    time.Duration
	oldestSeen time.Time
}

// NewWindow creates a reorder window expecting startSeq next, holding at
// most maxSize items and forcing a gap-skipping release after maxWait.
func NewWindow(startSeq int64, maxSize int, maxWait time.Duration) *Window {
	w := &Window{next: startSeq, maxSize: maxSize, maxWait: maxWait}
	heap.Init(&w.heap)
	return w
}

// Push admits a new item at the given sequence number and returns any
// items now ready for in-order processing, plus whether the size or age
// bound forced a gap-skipping release.
func (w *Window) Push(seq int64, value interface{}) (ready []interface{}, forced bool) {
	now := time.Now()
	if w.heap.Len() == 0 {
		w.oldestSeen = now
	}
	heap.Push(&w.heap, &Item{Sequence: seq, Value: value})

	if w.heap.Len() > w.maxSize || now.Sub(w.oldestSeen) > w.maxWait {
		forced = true
		// A gap can't be filled within the bound available: skip ahead to
		// the lowest sequence actually buffered rather than wait forever.
		if w.heap.Len() > 0 && w.heap[0].Sequence > w.next {
			w.next = w.heap[0].Sequence
		}
	}

	for w.heap.Len() > 0 && w.heap[0].Sequence == w.next {
		item := heap.Pop(&w.heap).(*Item)
		ready = append(ready, item.Value)
		w.next++
	}
	// oldestSeen tracks how long the current gap has been open; it only
	// resets when the buffer drains, not on every push, so maxWait
	// actually bounds wall-clock wait time rather than being continually
	// refreshed by new arrivals.
	if w.heap.Len() == 0 {
		w.oldestSeen = time.Time{}
	}
	return ready, forced
}

// FlushExpired drains the buffer in sequence order if the oldest buffered
// item has waited longer than maxWait, advancing the expected sequence
// past everything released. Called from the coordinator's periodic sweep
// so a gap that never fills cannot hold batches hostage between pushes.
func (w *Window) FlushExpired() []interface{} {
	if w.heap.Len() == 0 || time.Since(w.oldestSeen) <= w.maxWait {
		return nil
	}
	return w.FlushAll()
}

// FlushAll drains the buffer unconditionally in sequence order, used when
// a run reaches a terminal state with batches still buffered.
func (w *Window) FlushAll() []interface{} {
	var released []interface{}
	for w.heap.Len() > 0 {
		item := heap.Pop(&w.heap).(*Item)
		released = append(released, item.Value)
		if item.Sequence >= w.next {
			w.next = item.Sequence + 1
		}
	}
	w.oldestSeen = time.Time{}
	return released
}

// Pending reports how many items are currently buffered awaiting release.
func (w *Window) Pending() int {
	return w.heap.Len()
}

// NextExpected is the sequence number the window is currently waiting on.
func (w *Window) NextExpected() int64 {
	return w.next
}
