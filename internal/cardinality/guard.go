// Package cardinality implements the cardinality guard: in-process
// counters of distinct metric names and tag keys per run, plus distinct
// metric names per project across live runs, used to soft-warn and
// hard-reject log_metrics calls that would otherwise let a single
// misbehaving client explode storage. Counters are not durable and are
// reseeded from the metrics store's summary projection at process start.
package cardinality

import (
	"sync"
	"sync/atomic"
)

// Limits configures the hard caps. Soft warnings fire at the fixed 80%
// fraction of each hard cap; the project metric-name limit is soft-only
// and never rejects.
type Limits struct {
	RunMetricNames     int64
	RunTagKeys         int64
	ProjectMetricNames int64
}

// DefaultLimits are the deploy-overridable defaults.
func DefaultLimits() Limits {
	return Limits{
		RunMetricNames:     10000,
		RunTagKeys:         1000,
		ProjectMetricNames: 80000,
	}
}

// softFraction is the fraction of a hard cap at which warnings start.
const softFraction = 0.8

// Admission is the guard's verdict on one batch's worth of names. Names
// absent from Rejected were admitted; Approaching is set once the run
// crosses the soft threshold, ProjectApproaching once the project does.
type Admission struct {
	Rejected           map[string]bool
	Approaching        bool
	ProjectApproaching bool
}

type counter struct {
	seen  sync.Map // name -> struct{}
	count int64
}

// admit registers name if capacity allows, returning whether the name is
// admitted (previously seen names always are) and whether the counter is
// past its soft threshold. hard <= 0 disables rejection.
func (c *counter) admit(name string, hard int64) (ok, soft bool) {
	if _, seen := c.seen.Load(name); seen {
		return true, c.pastSoft(hard)
	}
	if hard > 0 && atomic.LoadInt64(&c.count) >= hard {
		return false, true
	}
	if _, loaded := c.seen.LoadOrStore(name, struct{}{}); !loaded {
		atomic.AddInt64(&c.count, 1)
	}
	return true, c.pastSoft(hard)
}

func (c *counter) pastSoft(hard int64) bool {
	return hard > 0 && float64(atomic.LoadInt64(&c.count)) >= softFraction*float64(hard)
}

type runCounters struct {
	metricNames counter
	tagKeys     counter
}

// Guard tracks series and tag-key cardinality in memory.
type Guard struct {
	limits Limits

	runs     sync.Map // run id -> *runCounters
	projects sync.Map // project id -> *counter
}

func New(limits Limits) *Guard {
	return &Guard{limits: limits}
}

// AdmitMetricNames decides, name by name, which of a batch's metric names
// may add new series to runID. Names already seen for the run cost
// nothing, so steady-state logging against a fixed set of metrics never
// trips the guard no matter how many points are logged. The project
// counter only ever warns.
func (g *Guard) AdmitMetricNames(runID, projectID string, names []string) Admission {
	rc := g.countersFor(runID)
	pc := g.projectCounterFor(projectID)

	adm := Admission{}
	for _, name := range names {
		ok, soft := rc.metricNames.admit(name, g.limits.RunMetricNames)
		if !ok {
			if adm.Rejected == nil {
				adm.Rejected = map[string]bool{}
			}
			adm.Rejected[name] = true
			continue
		}
		adm.Approaching = adm.Approaching || soft
		pc.admit(name, 0)
		if pc.pastSoft(g.limits.ProjectMetricNames) {
			adm.ProjectApproaching = true
		}
	}
	return adm
}

// AdmitTagKeys decides which tag keys may be newly created for runID.
func (g *Guard) AdmitTagKeys(runID string, keys []string) Admission {
	rc := g.countersFor(runID)

	adm := Admission{}
	for _, key := range keys {
		ok, soft := rc.tagKeys.admit(key, g.limits.RunTagKeys)
		if !ok {
			if adm.Rejected == nil {
				adm.Rejected = map[string]bool{}
			}
			adm.Rejected[key] = true
			continue
		}
		adm.Approaching = adm.Approaching || soft
	}
	return adm
}

// Seed pre-populates a run's known series set without threshold checks,
// used when counters are rebuilt from the summary projection at boot so
// already-logged names are not treated as new — the rebuilt counter must
// never under-count, which would allow unbounded growth.
func (g *Guard) Seed(runID, projectID string, metricNames []string) {
	rc := g.countersFor(runID)
	pc := g.projectCounterFor(projectID)
	for _, name := range metricNames {
		if _, loaded := rc.metricNames.seen.LoadOrStore(name, struct{}{}); !loaded {
			atomic.AddInt64(&rc.metricNames.count, 1)
		}
		pc.admit(name, 0)
	}
}

// SeedTagKeys pre-populates a run's known tag keys, for the same reason.
func (g *Guard) SeedTagKeys(runID string, keys []string) {
	rc := g.countersFor(runID)
	for _, key := range keys {
		if _, loaded := rc.tagKeys.seen.LoadOrStore(key, struct{}{}); !loaded {
			atomic.AddInt64(&rc.tagKeys.count, 1)
		}
	}
}

// Forget drops a run's counters, reclaiming memory once the run reaches a
// terminal state and can no longer log.
func (g *Guard) Forget(runID string) {
	g.runs.Delete(runID)
}

func (g *Guard) countersFor(runID string) *runCounters {
	actual, _ := g.runs.LoadOrStore(runID, &runCounters{})
	return actual.(*runCounters)
}

func (g *Guard) projectCounterFor(projectID string) *counter {
	actual, _ := g.projects.LoadOrStore(projectID, &counter{})
	return actual.(*counter)
}
