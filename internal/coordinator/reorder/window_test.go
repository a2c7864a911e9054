package reorder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWindow_ReleasesInOrder(t *testing.T) {
	w := NewWindow(0, 10, time.Minute)

	ready, forced := w.Push(0, "a")
	assert.False(t, forced)
	assert.Equal(t, []interface{}{"a"}, ready)

	ready, _ = w.Push(2, "c")
	assert.Empty(t, ready)

	ready, _ = w.Push(1, "b")
	assert.Equal(t, []interface{}{"b", "c"}, ready)
	assert.Equal(t, int64(3), w.NextExpected())
}

func TestWindow_ForcesReleaseWhenFull(t *testing.T) {
	w := NewWindow(0, 2, time.Minute)

	_, _ = w.Push(5, "out-of-order")
	_, forced := w.Push(6, "still-out-of-order")
	assert.False(t, forced)

	// Third item exceeds maxSize of 2, forcing a skip past the gap at seq 0.
	ready, forced := w.Push(7, "third")
	assert.True(t, forced)
	assert.NotEmpty(t, ready)
}

func TestWindow_ForcesReleaseAfterMaxWait(t *testing.T) {
	w := NewWindow(0, 100, time.Millisecond)
	_, _ = w.Push(3, "held")
	time.Sleep(2 * time.Millisecond)

	ready, forced := w.Push(4, "next")
	assert.True(t, forced)
	assert.NotEmpty(t, ready)
}

func TestWindow_FlushExpiredDrainsOnlyAfterMaxWait(t *testing.T) {
	w := NewWindow(0, 100, time.Hour)
	_, _ = w.Push(3, "held")
	assert.Nil(t, w.FlushExpired())

	w.maxWait = time.Nanosecond
	time.Sleep(time.Millisecond)
	assert.Equal(t, []interface{}{"held"}, w.FlushExpired())
	assert.Equal(t, int64(4), w.NextExpected())
	assert.Zero(t, w.Pending())
}

func TestWindow_FlushAllReleasesInSequenceOrder(t *testing.T) {
	w := NewWindow(0, 100, time.Hour)
	_, _ = w.Push(5, "b")
	_, _ = w.Push(2, "a")
	_, _ = w.Push(9, "c")

	assert.Equal(t, []interface{}{"a", "b", "c"}, w.FlushAll())
	assert.Equal(t, int64(10), w.NextExpected())
}

func TestWindow_PendingReflectsBufferedCount(t *testing.T) {
	w := NewWindow(0, 10, time.Minute)
	_, _ = w.Push(1, "a")
	_, _ = w.Push(2, "b")
	assert.Equal(t, 2, w.Pending())
}
