// Package taskloop runs named functions on a fixed interval and
// publishes a per-task latency histogram. The heartbeat watchdog is
// registered as one such task.
package taskloop

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type registeredTask struct {
	run      func()
	interval time.Duration
	stop     chan struct{}
}

// Manager runs a set of background tasks, each on its own goroutine and
// interval, until StopAll is called. It is not safe to Register after
// the first call to StopAll.
type Manager struct {
	metricsPrefix string
	mu            sync.Mutex
	tasks         []*registeredTask
	wg            sync.WaitGroup
}

// NewManager creates a Manager whose per-task histograms are named
// "<metricsPrefix><name>_latency_seconds".
func NewManager(metricsPrefix string) *Manager {
	return &Manager{metricsPrefix: metricsPrefix}
}

// Register starts running fn every interval, immediately and then on each
// tick, until the Manager is stopped.
func (m *Manager) Register(name string, interval time.Duration, fn func()) {
	hist := promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    m.metricsPrefix + name + "_latency_seconds",
		Help:    "background task " + name + " latency in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 15),
	})

	t := &registeredTask{run: fn, interval: interval, stop: make(chan struct{})}

	m.mu.Lock()
	m.tasks = append(m.tasks, t)
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		runObserved(t.run, hist)
		for {
			select {
			case <-time.After(t.interval):
				runObserved(t.run, hist)
			case <-t.stop:
				return
			}
		}
	}()
}

func runObserved(fn func(), hist prometheus.Histogram) {
	start := time.Now()
	fn()
	hist.Observe(time.Since(start).Seconds())
}

// StopAll signals every registered task to stop and waits up to timeout
// for them to drain. It returns true if the wait timed out.
func (m *Manager) StopAll(timeout time.Duration) bool {
	m.mu.Lock()
	for _, t := range m.tasks {
		close(t.stop)
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return false
	case <-time.After(timeout):
		return true
	}
}
