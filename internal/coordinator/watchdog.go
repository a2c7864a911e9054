package coordinator

import (
	"github.com/ibusnowden/MLRun/internal/common/kctx"
	"github.com/ibusnowden/MLRun/internal/metadata"
)

// CheckHeartbeats is the watchdog tick body (registered on the taskloop
// manager at WatchdogInterval): every running run whose heartbeat is older
// than the timeout transitions to crashed. The tick schedule rides the
// runtime's monotonic timers, so a wall-clock jump cannot fire spurious
// ticks; the heartbeat comparison itself is wall-clock because that is
// what the store records.
func (c *Coordinator) CheckHeartbeats(ctx *kctx.Context) {
	cutoff := c.clock.Now().Add(-c.cfg.HeartbeatTimeout)
	stale, err := c.store.RunningRunsOlderThan(ctx, cutoff)
	if err != nil {
		ctx.Log.WithError(err).Warn("watchdog could not scan for stale runs")
		return
	}

	for _, runID := range stale {
		c.crashRun(ctx, runID)
	}
}

func (c *Coordinator) crashRun(ctx *kctx.Context, runID string) {
	unlock := c.locks.Lock(runID)
	defer unlock()

	// Re-read under the lock: a heartbeat or finish_run may have raced the
	// scan, in which case the optimistic update below simply misses.
	run, err := c.store.GetRun(ctx, runID)
	if err != nil || run.Status != metadata.RunRunning {
		return
	}
	if run.HeartbeatAt.After(c.clock.Now().Add(-c.cfg.HeartbeatTimeout)) {
		return
	}

	applied, err := c.store.UpdateRunStatus(ctx, runID, metadata.RunRunning, metadata.RunCrashed, nil, nil)
	if err != nil {
		ctx.Log.WithError(err).WithField("run_id", runID).Warn("watchdog failed to mark run crashed")
		return
	}
	if applied {
		// No token is minted here: the one from init_run remains the
		// currently-valid credential for resumption.
		runsCrashed.Inc()
		ctx.Log.WithField("run_id", runID).Warn("run marked crashed after heartbeat timeout")
	}
}

// SweepReorderWindows releases any reorder window whose oldest buffered
// batch has exceeded the max wait, persisting the drained batches in
// sequence order. Registered alongside the watchdog so a gap that never
// fills cannot hold admitted batches past the window's age bound.
func (c *Coordinator) SweepReorderWindows(ctx *kctx.Context) {
	c.mu.Lock()
	type drained struct {
		runID string
		items []interface{}
	}
	var releases []drained
	pending := 0
	for runID, w := range c.windows {
		if items := w.FlushExpired(); len(items) > 0 {
			releases = append(releases, drained{runID: runID, items: items})
		}
		pending += w.Pending()
	}
	reorderDepth.Set(float64(pending))
	c.mu.Unlock()

	for _, r := range releases {
		unlock := c.locks.Lock(r.runID)
		for _, item := range r.items {
			if err := c.persistBatch(ctx, r.runID, item.(bufferedBatch)); err != nil {
				ctx.Log.WithError(err).WithField("run_id", r.runID).Error("failed to persist batch released by window timeout")
			}
		}
		unlock()
	}
}

// SeedCardinality rebuilds the guard's counters by scanning the metrics
// store's summary projection and the metadata store's tag table once at
// boot. A counter rebuilt this way may over-count relative to unmerged
// store state but never under-counts, which is the property that keeps
// growth bounded.
func (c *Coordinator) SeedCardinality(ctx *kctx.Context) error {
	projects, err := c.store.LiveRunProjects(ctx)
	if err != nil {
		return err
	}

	series, err := c.points.AllSeries(ctx)
	if err != nil {
		return err
	}
	byRun := map[string][]string{}
	for _, s := range series {
		byRun[s.RunID] = append(byRun[s.RunID], s.MetricName)
	}
	for runID, names := range byRun {
		projectID, live := projects[runID]
		if !live {
			continue
		}
		c.guard.Seed(runID, projectID, names)
	}

	tagKeys, err := c.store.LiveRunTagKeys(ctx)
	if err != nil {
		return err
	}
	for runID, keys := range tagKeys {
		c.guard.SeedTagKeys(runID, keys)
	}

	ctx.Log.WithField("runs", len(byRun)).Info("cardinality counters seeded from store summaries")
	return nil
}
