package coordinator

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/ibusnowden/MLRun/internal/cardinality"
	"github.com/ibusnowden/MLRun/internal/common/kctx"
	"github.com/ibusnowden/MLRun/internal/common/kerrors"
	"github.com/ibusnowden/MLRun/internal/coordinator/reorder"
	"github.com/ibusnowden/MLRun/internal/ledger"
	"github.com/ibusnowden/MLRun/internal/metadata"
	"github.com/ibusnowden/MLRun/internal/metricstore"
	"github.com/ibusnowden/MLRun/internal/rpc"
)

// fakeStore is an in-memory metadata.Store for coordinator tests.
type fakeStore struct {
	projects map[string]*metadata.Project
	runs     map[string]*metadata.Run
	params   map[string]map[string]metadata.Parameter
	tags     map[string]map[string]string
	now      func() time.Time
}

func newFakeStore(now func() time.Time) *fakeStore {
	return &fakeStore{
		projects: map[string]*metadata.Project{},
		runs:     map[string]*metadata.Run{},
		params:   map[string]map[string]metadata.Parameter{},
		tags:     map[string]map[string]string{},
		now:      now,
	}
}

func (f *fakeStore) CreateProject(ctx *kctx.Context, name string) (*metadata.Project, error) {
	if p, ok := f.projects[name]; ok {
		return p, nil
	}
	p := &metadata.Project{ID: "project-" + name, Name: name, CreatedAt: f.now()}
	f.projects[name] = p
	return p, nil
}

func (f *fakeStore) GetProject(ctx *kctx.Context, name string) (*metadata.Project, error) {
	if p, ok := f.projects[name]; ok {
		return p, nil
	}
	return nil, &kerrors.ErrNotFound{Type: "project", Value: name}
}

func (f *fakeStore) CreateRun(ctx *kctx.Context, run *metadata.Run) error {
	cp := *run
	cp.HeartbeatAt = f.now()
	f.runs[run.ID] = &cp
	return nil
}

func (f *fakeStore) GetRun(ctx *kctx.Context, runID string) (*metadata.Run, error) {
	run, ok := f.runs[runID]
	if !ok {
		return nil, &kerrors.ErrNotFound{Type: "run", Value: runID}
	}
	cp := *run
	return &cp, nil
}

func (f *fakeStore) UpdateRunStatus(ctx *kctx.Context, runID string, expect, next metadata.RunStatus, exitCode *int32, errMsg *string) (bool, error) {
	run, ok := f.runs[runID]
	if !ok || run.Status != expect {
		return false, nil
	}
	run.Status = next
	run.ExitCode = exitCode
	run.Error = errMsg
	return true, nil
}

func (f *fakeStore) TouchHeartbeat(ctx *kctx.Context, runID string) error {
	if run, ok := f.runs[runID]; ok && run.Status == metadata.RunRunning {
		run.HeartbeatAt = f.now()
	}
	return nil
}

func (f *fakeStore) SetResumeToken(ctx *kctx.Context, runID, jti string, expires time.Time) error {
	if run, ok := f.runs[runID]; ok {
		run.ResumeTokenJTI = jti
	}
	return nil
}

func (f *fakeStore) ClearResumeToken(ctx *kctx.Context, runID string) error {
	if run, ok := f.runs[runID]; ok {
		run.ResumeTokenJTI = ""
	}
	return nil
}

func (f *fakeStore) UpsertParam(ctx *kctx.Context, p metadata.Parameter) (bool, string, error) {
	if f.params[p.RunID] == nil {
		f.params[p.RunID] = map[string]metadata.Parameter{}
	}
	if existing, ok := f.params[p.RunID][p.Name]; ok {
		return existing.Value != p.Value, existing.Value, nil
	}
	f.params[p.RunID][p.Name] = p
	return false, p.Value, nil
}

func (f *fakeStore) UpsertTags(ctx *kctx.Context, runID string, tags map[string]string) error {
	if f.tags[runID] == nil {
		f.tags[runID] = map[string]string{}
	}
	for k, v := range tags {
		f.tags[runID][k] = v
	}
	return nil
}

func (f *fakeStore) DeleteTags(ctx *kctx.Context, runID string, keys []string) error {
	for _, k := range keys {
		delete(f.tags[runID], k)
	}
	return nil
}

func (f *fakeStore) ListRuns(ctx *kctx.Context, filters []metadata.Filter, sort metadata.SortOrder, cursor string, limit int) ([]*metadata.Run, string, int64, error) {
	return nil, "", 0, nil
}

func (f *fakeStore) ListParams(ctx *kctx.Context, runID string) ([]metadata.Parameter, error) {
	var out []metadata.Parameter
	for _, p := range f.params[runID] {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeStore) LiveRunProjects(ctx *kctx.Context) (map[string]string, error) {
	out := map[string]string{}
	for id, run := range f.runs {
		if !run.Status.IsTerminal() {
			out[id] = run.ProjectID
		}
	}
	return out, nil
}

func (f *fakeStore) LiveRunTagKeys(ctx *kctx.Context) (map[string][]string, error) {
	out := map[string][]string{}
	for id, run := range f.runs {
		if run.Status.IsTerminal() {
			continue
		}
		for k := range f.tags[id] {
			out[id] = append(out[id], k)
		}
	}
	return out, nil
}

func (f *fakeStore) RunningRunsOlderThan(ctx *kctx.Context, cutoff time.Time) ([]string, error) {
	var ids []string
	for id, run := range f.runs {
		if run.Status == metadata.RunRunning && run.HeartbeatAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// fakePoints records inserted rows in arrival order.
type fakePoints struct {
	rows []metricstore.Point
	fail error
}

func (f *fakePoints) InsertPoints(ctx *kctx.Context, points []metricstore.Point) error {
	if f.fail != nil {
		return f.fail
	}
	f.rows = append(f.rows, points...)
	return nil
}

func (f *fakePoints) AllSeries(ctx *kctx.Context) ([]metricstore.SeriesKey, error) {
	seen := map[metricstore.SeriesKey]bool{}
	var keys []metricstore.SeriesKey
	for _, r := range f.rows {
		k := metricstore.SeriesKey{RunID: r.RunID, MetricName: r.MetricName}
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// fakeLedger mirrors the real ledger's Check/Record split.
type fakeLedger struct {
	hashes map[string]string
}

func newFakeLedger() *fakeLedger { return &fakeLedger{hashes: map[string]string{}} }

func (f *fakeLedger) key(runID, batchID string) string { return runID + "/" + batchID }

func (f *fakeLedger) Check(ctx *kctx.Context, runID, batchID, contentHash string) (ledger.Outcome, error) {
	stored, ok := f.hashes[f.key(runID, batchID)]
	if !ok {
		return ledger.New, nil
	}
	if stored != contentHash {
		return ledger.Conflict, nil
	}
	return ledger.Duplicate, nil
}

func (f *fakeLedger) Record(ctx *kctx.Context, runID, batchID, contentHash string, pointCount int) error {
	if _, ok := f.hashes[f.key(runID, batchID)]; !ok {
		f.hashes[f.key(runID, batchID)] = contentHash
	}
	return nil
}

type fixture struct {
	ctx    *kctx.Context
	c      *Coordinator
	store  *fakeStore
	points *fakePoints
	ledger *fakeLedger
	clock  *clocktesting.FakePassiveClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := clocktesting.NewFakePassiveClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	store := newFakeStore(clk.Now)
	points := &fakePoints{}
	ldg := newFakeLedger()
	guard := cardinality.New(cardinality.DefaultLimits())
	signer := NewTokenSigner([]byte("test-secret"), 7*24*time.Hour)

	c := New(DefaultConfig(), store, points, ldg, guard, signer)
	c.clock = clk

	return &fixture{
		ctx:    kctx.New(context.Background(), logrus.NewEntry(logrus.New())),
		c:      c,
		store:  store,
		points: points,
		ledger: ldg,
		clock:  clk,
	}
}

func (f *fixture) initRun(t *testing.T, project string) *rpc.InitRunResponse {
	t.Helper()
	resp, err := f.c.InitRun(f.ctx, &rpc.InitRunRequest{Project: project})
	require.NoError(t, err)
	return resp
}

func points(name string, stepValues ...float64) []*rpc.MetricPoint {
	var pts []*rpc.MetricPoint
	for i := 0; i+1 < len(stepValues); i += 2 {
		pts = append(pts, &rpc.MetricPoint{Name: name, Step: int64(stepValues[i]), Value: stepValues[i+1]})
	}
	return pts
}

func TestInitRun_CreatesRunningRun(t *testing.T) {
	f := newFixture(t)
	resp := f.initRun(t, "demo")

	assert.NotEmpty(t, resp.RunId)
	assert.NotEmpty(t, resp.ResumeToken)
	assert.False(t, resp.Resumed)

	run, err := f.store.GetRun(f.ctx, resp.RunId)
	require.NoError(t, err)
	assert.Equal(t, metadata.RunRunning, run.Status)
}

func TestInitRun_IsIdempotentWhileRunning(t *testing.T) {
	f := newFixture(t)
	resp := f.initRun(t, "demo")

	again, err := f.c.InitRun(f.ctx, &rpc.InitRunRequest{Project: "demo", RunId: resp.RunId})
	require.NoError(t, err)
	assert.Equal(t, resp.RunId, again.RunId)
	assert.False(t, again.Resumed)
}

func TestInitRun_RejectsTerminalRun(t *testing.T) {
	f := newFixture(t)
	resp := f.initRun(t, "demo")
	_, err := f.c.FinishRun(f.ctx, &rpc.FinishRunRequest{RunId: resp.RunId, Status: "finished"})
	require.NoError(t, err)

	_, err = f.c.InitRun(f.ctx, &rpc.InitRunRequest{Project: "demo", RunId: resp.RunId})
	var precondition *kerrors.ErrFailedPrecondition
	assert.ErrorAs(t, err, &precondition)
}

func TestInitRun_RejectsBadProjectName(t *testing.T) {
	f := newFixture(t)
	_, err := f.c.InitRun(f.ctx, &rpc.InitRunRequest{Project: "Not-Valid!"})
	var invalid *kerrors.ErrInvalidArgument
	assert.ErrorAs(t, err, &invalid)
}

func TestLogMetrics_PersistsPointsAndLedger(t *testing.T) {
	f := newFixture(t)
	resp := f.initRun(t, "demo")

	lm, err := f.c.LogMetrics(f.ctx, &rpc.LogMetricsRequest{
		RunId:   resp.RunId,
		BatchId: "b1",
		Points:  points("loss", 0, 1.0, 1, 0.9),
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, lm.AcceptedCount)
	assert.Zero(t, lm.DeduplicatedCount)
	assert.Empty(t, lm.Warnings)
	assert.Len(t, f.points.rows, 2)
}

func TestLogMetrics_RetryIsDeduplicated(t *testing.T) {
	f := newFixture(t)
	resp := f.initRun(t, "demo")

	req := &rpc.LogMetricsRequest{RunId: resp.RunId, BatchId: "b2", Points: points("loss", 2, 0.8)}
	first, err := f.c.LogMetrics(f.ctx, req)
	require.NoError(t, err)
	assert.EqualValues(t, 1, first.AcceptedCount)

	for i := 0; i < 2; i++ {
		retry, err := f.c.LogMetrics(f.ctx, req)
		require.NoError(t, err)
		assert.Zero(t, retry.AcceptedCount)
		assert.EqualValues(t, 1, retry.DeduplicatedCount)
		assert.Empty(t, retry.Warnings)
	}
	assert.Len(t, f.points.rows, 1)
}

func TestLogMetrics_ReusedBatchIdWithDifferentContentWarns(t *testing.T) {
	f := newFixture(t)
	resp := f.initRun(t, "demo")

	_, err := f.c.LogMetrics(f.ctx, &rpc.LogMetricsRequest{RunId: resp.RunId, BatchId: "b2", Points: points("loss", 2, 0.8)})
	require.NoError(t, err)

	conflicted, err := f.c.LogMetrics(f.ctx, &rpc.LogMetricsRequest{RunId: resp.RunId, BatchId: "b2", Points: points("loss", 2, 0.7)})
	require.NoError(t, err)
	assert.Zero(t, conflicted.AcceptedCount)
	assert.EqualValues(t, 1, conflicted.DeduplicatedCount)
	require.Len(t, conflicted.Warnings, 1)
	assert.Equal(t, rpc.WarnDuplicateBatch, conflicted.Warnings[0].Code)

	// The originally stored value survives.
	assert.Len(t, f.points.rows, 1)
	assert.Equal(t, 0.8, f.points.rows[0].Value)
}

func TestLogMetrics_DropsInvalidPointsWithWarnings(t *testing.T) {
	f := newFixture(t)
	resp := f.initRun(t, "demo")

	lm, err := f.c.LogMetrics(f.ctx, &rpc.LogMetricsRequest{
		RunId:   resp.RunId,
		BatchId: "b3",
		Points: []*rpc.MetricPoint{
			{Name: "loss", Step: 0, Value: 1.0},
			{Name: "loss", Step: -1, Value: 0.5},
			{Name: "_mlrun.internal", Step: 1, Value: 0.5},
			{Name: "9starts-with-digit", Step: 1, Value: 0.5},
		},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, lm.AcceptedCount)

	codes := map[string]bool{}
	for _, w := range lm.Warnings {
		codes[w.Code] = true
	}
	assert.True(t, codes[rpc.WarnStepNegative])
	assert.True(t, codes[rpc.WarnInvalidMetricName])
}

func TestLogMetrics_NonFinitePassThroughSubnormalsFlush(t *testing.T) {
	f := newFixture(t)
	resp := f.initRun(t, "demo")

	lm, err := f.c.LogMetrics(f.ctx, &rpc.LogMetricsRequest{
		RunId:   resp.RunId,
		BatchId: "b4",
		Points: []*rpc.MetricPoint{
			{Name: "weird", Step: 0, Value: math.NaN()},
			{Name: "weird", Step: 1, Value: math.Inf(1)},
			{Name: "weird", Step: 2, Value: 4.9e-324},
		},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 3, lm.AcceptedCount)
	assert.True(t, math.IsNaN(f.points.rows[0].Value))
	assert.True(t, math.IsInf(f.points.rows[1].Value, 1))
	assert.Equal(t, 0.0, f.points.rows[2].Value)
}

func TestLogMetrics_ClampsSkewedTimestamps(t *testing.T) {
	f := newFixture(t)
	resp := f.initRun(t, "demo")

	farPast := f.clock.Now().Add(-48 * time.Hour).UnixMilli()
	lm, err := f.c.LogMetrics(f.ctx, &rpc.LogMetricsRequest{
		RunId:   resp.RunId,
		BatchId: "b5",
		Points:  []*rpc.MetricPoint{{Name: "loss", Step: 0, Value: 1, TimestampMs: farPast}},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, lm.AcceptedCount)
	require.Len(t, lm.Warnings, 1)
	assert.Equal(t, rpc.WarnClockSkew, lm.Warnings[0].Code)

	clamped := f.points.rows[0].WallTime
	assert.True(t, clamped.Equal(f.clock.Now().Add(-24*time.Hour)))
}

func TestLogMetrics_RejectsOversizedBatch(t *testing.T) {
	f := newFixture(t)
	resp := f.initRun(t, "demo")

	tooMany := make([]*rpc.MetricPoint, DefaultConfig().MaxBatchPoints+1)
	for i := range tooMany {
		tooMany[i] = &rpc.MetricPoint{Name: "loss", Step: int64(i), Value: 1}
	}
	_, err := f.c.LogMetrics(f.ctx, &rpc.LogMetricsRequest{RunId: resp.RunId, BatchId: "big", Points: tooMany})
	var invalid *kerrors.ErrInvalidArgument
	assert.ErrorAs(t, err, &invalid)

	// Exactly the cap succeeds.
	exact := tooMany[:DefaultConfig().MaxBatchPoints]
	lm, err := f.c.LogMetrics(f.ctx, &rpc.LogMetricsRequest{RunId: resp.RunId, BatchId: "exact", Points: exact})
	require.NoError(t, err)
	assert.EqualValues(t, len(exact), lm.AcceptedCount)
}

func TestLogMetrics_RejectsNonRunningRun(t *testing.T) {
	f := newFixture(t)
	resp := f.initRun(t, "demo")
	_, err := f.c.FinishRun(f.ctx, &rpc.FinishRunRequest{RunId: resp.RunId, Status: "killed"})
	require.NoError(t, err)

	_, err = f.c.LogMetrics(f.ctx, &rpc.LogMetricsRequest{RunId: resp.RunId, BatchId: "late", Points: points("loss", 0, 1)})
	var precondition *kerrors.ErrFailedPrecondition
	assert.ErrorAs(t, err, &precondition)
}

func TestLogMetrics_CardinalityCapDropsOnlyNewNames(t *testing.T) {
	f := newFixture(t)
	f.c.guard = cardinality.New(cardinality.Limits{RunMetricNames: 2, RunTagKeys: 10, ProjectMetricNames: 100})
	resp := f.initRun(t, "demo")

	_, err := f.c.LogMetrics(f.ctx, &rpc.LogMetricsRequest{
		RunId: resp.RunId, BatchId: "c1",
		Points: append(points("m_a", 0, 1), points("m_b", 0, 1)...),
	})
	require.NoError(t, err)

	lm, err := f.c.LogMetrics(f.ctx, &rpc.LogMetricsRequest{
		RunId: resp.RunId, BatchId: "c2",
		Points: append(points("m_a", 1, 1), points("m_c", 0, 1)...),
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, lm.AcceptedCount)
	require.Len(t, lm.Warnings, 1)
	assert.Equal(t, rpc.WarnCardinalityLimitExceeded, lm.Warnings[0].Code)
}

func TestLogMetrics_SequencedBatchesPersistInOrder(t *testing.T) {
	f := newFixture(t)
	resp := f.initRun(t, "demo")

	// Sequence 1 arrives before sequence 0 and must be buffered.
	lm, err := f.c.LogMetrics(f.ctx, &rpc.LogMetricsRequest{
		RunId: resp.RunId, BatchId: "s1", Sequenced: true, Sequence: 1,
		Points: points("loss", 1, 0.9),
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, lm.AcceptedCount)
	assert.Empty(t, f.points.rows)

	// Sequence 0 releases both in order.
	_, err = f.c.LogMetrics(f.ctx, &rpc.LogMetricsRequest{
		RunId: resp.RunId, BatchId: "s0", Sequenced: true, Sequence: 0,
		Points: points("loss", 0, 1.0),
	})
	require.NoError(t, err)
	require.Len(t, f.points.rows, 2)
	assert.EqualValues(t, 0, f.points.rows[0].Step)
	assert.EqualValues(t, 1, f.points.rows[1].Step)
}

func TestFinishRun_FlushesBufferedBatches(t *testing.T) {
	f := newFixture(t)
	resp := f.initRun(t, "demo")

	_, err := f.c.LogMetrics(f.ctx, &rpc.LogMetricsRequest{
		RunId: resp.RunId, BatchId: "s2", Sequenced: true, Sequence: 2,
		Points: points("loss", 2, 0.8),
	})
	require.NoError(t, err)
	assert.Empty(t, f.points.rows)

	_, err = f.c.FinishRun(f.ctx, &rpc.FinishRunRequest{RunId: resp.RunId, Status: "finished"})
	require.NoError(t, err)
	assert.Len(t, f.points.rows, 1)

	run, err := f.store.GetRun(f.ctx, resp.RunId)
	require.NoError(t, err)
	assert.Equal(t, metadata.RunFinished, run.Status)
}

func TestWatchdog_CrashesStaleRunsAndResumeWorks(t *testing.T) {
	f := newFixture(t)
	resp := f.initRun(t, "demo")

	_, err := f.c.LogMetrics(f.ctx, &rpc.LogMetricsRequest{RunId: resp.RunId, BatchId: "b1", Points: points("loss", 0, 1)})
	require.NoError(t, err)

	// Six minutes of silence, then a watchdog tick.
	f.clock.SetTime(f.clock.Now().Add(6 * time.Minute))
	f.c.CheckHeartbeats(f.ctx)

	run, err := f.store.GetRun(f.ctx, resp.RunId)
	require.NoError(t, err)
	assert.Equal(t, metadata.RunCrashed, run.Status)

	// Logging against a crashed run is rejected.
	_, err = f.c.LogMetrics(f.ctx, &rpc.LogMetricsRequest{RunId: resp.RunId, BatchId: "b9", Points: points("loss", 9, 1)})
	var precondition *kerrors.ErrFailedPrecondition
	assert.ErrorAs(t, err, &precondition)

	// Resuming without a token is rejected.
	_, err = f.c.InitRun(f.ctx, &rpc.InitRunRequest{Project: "demo", RunId: resp.RunId})
	assert.ErrorAs(t, err, &precondition)

	// Resuming with the minted token transitions back to running.
	resumed, err := f.c.InitRun(f.ctx, &rpc.InitRunRequest{Project: "demo", RunId: resp.RunId, ResumeToken: resp.ResumeToken})
	require.NoError(t, err)
	assert.True(t, resumed.Resumed)

	run, err = f.store.GetRun(f.ctx, resp.RunId)
	require.NoError(t, err)
	assert.Equal(t, metadata.RunRunning, run.Status)

	// Replaying the already-sent batch dedups.
	retry, err := f.c.LogMetrics(f.ctx, &rpc.LogMetricsRequest{RunId: resp.RunId, BatchId: "b1", Points: points("loss", 0, 1)})
	require.NoError(t, err)
	assert.EqualValues(t, 1, retry.DeduplicatedCount)

	// The redeemed token is single-use: crash again and try to reuse it.
	f.clock.SetTime(f.clock.Now().Add(6 * time.Minute))
	f.c.CheckHeartbeats(f.ctx)
	_, err = f.c.InitRun(f.ctx, &rpc.InitRunRequest{Project: "demo", RunId: resp.RunId, ResumeToken: resp.ResumeToken})
	assert.ErrorAs(t, err, &precondition)

	// The replacement token from the resume works.
	again, err := f.c.InitRun(f.ctx, &rpc.InitRunRequest{Project: "demo", RunId: resp.RunId, ResumeToken: resumed.ResumeToken})
	require.NoError(t, err)
	assert.True(t, again.Resumed)
}

func TestWatchdog_FreshHeartbeatIsLeftAlone(t *testing.T) {
	f := newFixture(t)
	resp := f.initRun(t, "demo")

	f.clock.SetTime(f.clock.Now().Add(time.Minute))
	require.NoError(t, f.store.TouchHeartbeat(f.ctx, resp.RunId))
	f.c.CheckHeartbeats(f.ctx)

	run, err := f.store.GetRun(f.ctx, resp.RunId)
	require.NoError(t, err)
	assert.Equal(t, metadata.RunRunning, run.Status)
}

func TestLogParams_ConflictRetainsOriginal(t *testing.T) {
	f := newFixture(t)
	resp := f.initRun(t, "demo")

	_, err := f.c.LogParams(f.ctx, &rpc.LogParamsRequest{
		RunId:  resp.RunId,
		Params: []*rpc.Param{{Name: "lr", Value: "0.01", Type: "float"}},
	})
	require.NoError(t, err)

	// Same value: success, no warning.
	lp, err := f.c.LogParams(f.ctx, &rpc.LogParamsRequest{
		RunId:  resp.RunId,
		Params: []*rpc.Param{{Name: "lr", Value: "0.01", Type: "float"}},
	})
	require.NoError(t, err)
	assert.Empty(t, lp.Warnings)

	// Different value: warning, original retained.
	lp, err = f.c.LogParams(f.ctx, &rpc.LogParamsRequest{
		RunId:  resp.RunId,
		Params: []*rpc.Param{{Name: "lr", Value: "0.1", Type: "float"}},
	})
	require.NoError(t, err)
	require.Len(t, lp.Warnings, 1)
	assert.Equal(t, rpc.WarnParamConflict, lp.Warnings[0].Code)
	assert.Equal(t, "0.01", f.store.params[resp.RunId]["lr"].Value)
}

func TestLogParams_RejectsInvalidJson(t *testing.T) {
	f := newFixture(t)
	resp := f.initRun(t, "demo")

	_, err := f.c.LogParams(f.ctx, &rpc.LogParamsRequest{
		RunId:  resp.RunId,
		Params: []*rpc.Param{{Name: "cfg", Value: "{not json", Type: "json"}},
	})
	var invalid *kerrors.ErrInvalidArgument
	assert.ErrorAs(t, err, &invalid)
}

func TestLogTags_UpsertAndDelete(t *testing.T) {
	f := newFixture(t)
	resp := f.initRun(t, "demo")

	_, err := f.c.LogTags(f.ctx, &rpc.LogTagsRequest{
		RunId: resp.RunId,
		Set:   map[string]string{"env": "prod", "arch": "x86"},
	})
	require.NoError(t, err)
	assert.Equal(t, "prod", f.store.tags[resp.RunId]["env"])

	_, err = f.c.LogTags(f.ctx, &rpc.LogTagsRequest{RunId: resp.RunId, RemoveKeys: []string{"env"}})
	require.NoError(t, err)
	_, ok := f.store.tags[resp.RunId]["env"]
	assert.False(t, ok)
}

func TestHeartbeat_OnlyRunningRuns(t *testing.T) {
	f := newFixture(t)
	resp := f.initRun(t, "demo")

	_, err := f.c.Heartbeat(f.ctx, &rpc.HeartbeatRequest{RunId: resp.RunId})
	require.NoError(t, err)

	_, err = f.c.FinishRun(f.ctx, &rpc.FinishRunRequest{RunId: resp.RunId, Status: "finished"})
	require.NoError(t, err)

	_, err = f.c.Heartbeat(f.ctx, &rpc.HeartbeatRequest{RunId: resp.RunId})
	var precondition *kerrors.ErrFailedPrecondition
	assert.ErrorAs(t, err, &precondition)
}

func TestSweepReorderWindows_ReleasesExpiredGaps(t *testing.T) {
	f := newFixture(t)
	resp := f.initRun(t, "demo")
	f.c.cfg.ReorderMaxWait = time.Nanosecond

	// Replace the run's window so its age bound is the shortened one.
	f.c.mu.Lock()
	f.c.windows[resp.RunId] = reorder.NewWindow(0, f.c.cfg.ReorderMaxSize, f.c.cfg.ReorderMaxWait)
	f.c.mu.Unlock()

	_, err := f.c.LogMetrics(f.ctx, &rpc.LogMetricsRequest{
		RunId: resp.RunId, BatchId: "gap", Sequenced: true, Sequence: 5,
		Points: points("loss", 5, 0.5),
	})
	require.NoError(t, err)
	assert.Empty(t, f.points.rows)

	time.Sleep(time.Millisecond)
	f.c.SweepReorderWindows(f.ctx)
	assert.Len(t, f.points.rows, 1)
}

func TestSeedCardinality_RebuildsFromStores(t *testing.T) {
	f := newFixture(t)
	f.c.guard = cardinality.New(cardinality.Limits{RunMetricNames: 2, RunTagKeys: 10, ProjectMetricNames: 100})
	resp := f.initRun(t, "demo")

	_, err := f.c.LogMetrics(f.ctx, &rpc.LogMetricsRequest{
		RunId: resp.RunId, BatchId: "seed",
		Points: append(points("m_a", 0, 1), points("m_b", 0, 1)...),
	})
	require.NoError(t, err)

	// Simulate a process restart: a fresh guard knows nothing.
	f.c.guard = cardinality.New(cardinality.Limits{RunMetricNames: 2, RunTagKeys: 10, ProjectMetricNames: 100})
	require.NoError(t, f.c.SeedCardinality(f.ctx))

	// The two seeded names are re-admitted; a third is rejected.
	lm, err := f.c.LogMetrics(f.ctx, &rpc.LogMetricsRequest{
		RunId: resp.RunId, BatchId: "seed2",
		Points: append(points("m_a", 1, 1), points("m_c", 0, 1)...),
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, lm.AcceptedCount)
	require.Len(t, lm.Warnings, 1)
	assert.Equal(t, rpc.WarnCardinalityLimitExceeded, lm.Warnings[0].Code)
}

func TestPayloadHash_OrderIndependent(t *testing.T) {
	a := []*rpc.MetricPoint{
		{Name: "loss", Step: 0, Value: 1.0, TimestampMs: 10},
		{Name: "loss", Step: 1, Value: 0.9, TimestampMs: 20},
		{Name: "acc", Step: 0, Value: 0.1, TimestampMs: 10},
	}
	b := []*rpc.MetricPoint{a[2], a[0], a[1]}
	assert.Equal(t, payloadHash(a), payloadHash(b))

	c := []*rpc.MetricPoint{a[0], a[1], {Name: "acc", Step: 0, Value: 0.2, TimestampMs: 10}}
	assert.NotEqual(t, payloadHash(a), payloadHash(c))
}

func TestPayloadHash_IdenticalNaNPayloadsHashEqual(t *testing.T) {
	nan1 := []*rpc.MetricPoint{{Name: "x", Step: 0, Value: math.NaN()}}
	nan2 := []*rpc.MetricPoint{{Name: "x", Step: 0, Value: math.NaN()}}
	// The canonical form uses raw value bits, so an identical NaN payload
	// hashes identically across retries.
	assert.Equal(t, payloadHash(nan1), payloadHash(nan2))
}

func TestSanitizePoints_StepZeroAccepted(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	valid, warnings := sanitizePoints([]*rpc.MetricPoint{
		{Name: "loss", Step: 0, Value: 1},
		{Name: "loss", Step: -1, Value: 1},
	}, now)
	assert.Len(t, valid, 1)
	assert.EqualValues(t, 0, valid[0].Step)
	require.Len(t, warnings, 1)
	assert.Equal(t, rpc.WarnStepNegative, warnings[0].Code)
}

func TestDistinctNames(t *testing.T) {
	names := distinctNames(append(points("a", 0, 1, 1, 2), points("b", 0, 1)...))
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestPointSizeGuardsBatchBytes(t *testing.T) {
	f := newFixture(t)
	f.c.cfg.MaxBatchBytes = 64
	resp := f.initRun(t, "demo")

	_, err := f.c.LogMetrics(f.ctx, &rpc.LogMetricsRequest{
		RunId: resp.RunId, BatchId: "fat",
		Points: points(fmt.Sprintf("very-long-metric-name-%060d", 1), 0, 1),
	})
	var invalid *kerrors.ErrInvalidArgument
	assert.ErrorAs(t, err, &invalid)
}
