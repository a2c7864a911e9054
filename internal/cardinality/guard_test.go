package cardinality

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdmitMetricNames_AllowsWithinLimits(t *testing.T) {
	g := New(Limits{RunMetricNames: 10, RunTagKeys: 10, ProjectMetricNames: 100})
	adm := g.AdmitMetricNames("run-1", "proj-1", []string{"loss", "accuracy"})
	assert.Empty(t, adm.Rejected)
	assert.False(t, adm.Approaching)
}

func TestAdmitMetricNames_RepeatedNamesAreFree(t *testing.T) {
	g := New(Limits{RunMetricNames: 2})
	assert.Empty(t, g.AdmitMetricNames("run-1", "proj-1", []string{"loss"}).Rejected)

	// Logging the same series 1000 more times must never trip a hard
	// limit of 2 distinct names.
	for i := 0; i < 1000; i++ {
		assert.Empty(t, g.AdmitMetricNames("run-1", "proj-1", []string{"loss"}).Rejected)
	}
}

func TestAdmitMetricNames_RejectsOnlyOffendingNames(t *testing.T) {
	g := New(Limits{RunMetricNames: 2})
	assert.Empty(t, g.AdmitMetricNames("run-1", "proj-1", []string{"a", "b"}).Rejected)

	// "a" is already known and stays admitted; only the name that would
	// create a third series is dropped.
	adm := g.AdmitMetricNames("run-1", "proj-1", []string{"a", "c"})
	assert.True(t, adm.Rejected["c"])
	assert.False(t, adm.Rejected["a"])
}

func TestAdmitMetricNames_WarnsAtSoftThreshold(t *testing.T) {
	g := New(Limits{RunMetricNames: 10})
	for i := 0; i < 7; i++ {
		adm := g.AdmitMetricNames("run-1", "proj-1", []string{fmt.Sprintf("m%d", i)})
		assert.False(t, adm.Approaching, "name %d", i)
	}
	// The 8th distinct name reaches 80% of the cap.
	adm := g.AdmitMetricNames("run-1", "proj-1", []string{"m7"})
	assert.Empty(t, adm.Rejected)
	assert.True(t, adm.Approaching)
}

func TestAdmitMetricNames_ProjectLimitNeverRejects(t *testing.T) {
	g := New(Limits{RunMetricNames: 100, ProjectMetricNames: 4})
	for r := 0; r < 3; r++ {
		runID := fmt.Sprintf("run-%d", r)
		adm := g.AdmitMetricNames(runID, "proj-1", []string{fmt.Sprintf("m%d-a", r), fmt.Sprintf("m%d-b", r)})
		assert.Empty(t, adm.Rejected)
	}
	adm := g.AdmitMetricNames("run-9", "proj-1", []string{"overflow"})
	assert.Empty(t, adm.Rejected)
	assert.True(t, adm.ProjectApproaching)
}

func TestAdmitTagKeys_RejectsBeyondHardLimit(t *testing.T) {
	g := New(Limits{RunTagKeys: 2})
	assert.Empty(t, g.AdmitTagKeys("run-1", []string{"env", "arch"}).Rejected)

	adm := g.AdmitTagKeys("run-1", []string{"env", "extra"})
	assert.True(t, adm.Rejected["extra"])
	assert.False(t, adm.Rejected["env"])
}

func TestSeed_PreventsDoubleCountingOnResume(t *testing.T) {
	g := New(Limits{RunMetricNames: 2})
	g.Seed("run-1", "proj-1", []string{"a", "b"})

	// Both series were already known before the process restarted; logging
	// them again must not push the run over its cap of 2.
	adm := g.AdmitMetricNames("run-1", "proj-1", []string{"a", "b"})
	assert.Empty(t, adm.Rejected)

	// A genuinely new third name is still rejected.
	assert.True(t, g.AdmitMetricNames("run-1", "proj-1", []string{"c"}).Rejected["c"])
}

func TestForget_ResetsRunCounters(t *testing.T) {
	g := New(Limits{RunMetricNames: 1})
	assert.Empty(t, g.AdmitMetricNames("run-1", "proj-1", []string{"a"}).Rejected)
	assert.True(t, g.AdmitMetricNames("run-1", "proj-1", []string{"b"}).Rejected["b"])

	g.Forget("run-1")
	assert.Empty(t, g.AdmitMetricNames("run-1", "proj-1", []string{"c"}).Rejected)
}
