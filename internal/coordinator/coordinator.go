// Package coordinator implements the ingest coordinator: the single
// writer for run lifecycle, metric batches, parameters, and tags. Every
// mutation funnels through a short-lived per-run lock around the
// ledger-check → cardinality → points-write → ledger-record sequence, so
// client retries and the heartbeat watchdog never interleave torn state.
package coordinator

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"k8s.io/utils/clock"

	"github.com/ibusnowden/MLRun/internal/cardinality"
	"github.com/ibusnowden/MLRun/internal/common/idgen"
	"github.com/ibusnowden/MLRun/internal/common/kctx"
	"github.com/ibusnowden/MLRun/internal/common/kerrors"
	"github.com/ibusnowden/MLRun/internal/coordinator/reorder"
	"github.com/ibusnowden/MLRun/internal/coordinator/runlock"
	"github.com/ibusnowden/MLRun/internal/ledger"
	"github.com/ibusnowden/MLRun/internal/metadata"
	"github.com/ibusnowden/MLRun/internal/metricstore"
	"github.com/ibusnowden/MLRun/internal/rpc"
)

// PointStore is the slice of the metrics store gateway the coordinator
// writes through.
type PointStore interface {
	InsertPoints(ctx *kctx.Context, points []metricstore.Point) error
	AllSeries(ctx *kctx.Context) ([]metricstore.SeriesKey, error)
}

// BatchLedger is the slice of the idempotency ledger the coordinator
// consults and records to.
type BatchLedger interface {
	Check(ctx *kctx.Context, runID, batchID, contentHash string) (ledger.Outcome, error)
	Record(ctx *kctx.Context, runID, batchID, contentHash string, pointCount int) error
}

// Config carries the deploy-overridable knobs. New uses the values as
// given; DefaultConfig returns the standard settings.
type Config struct {
	HeartbeatTimeout time.Duration
	WatchdogInterval time.Duration

	ReorderMaxSize int
	ReorderMaxWait time.Duration

	MaxBatchPoints     int
	MaxBatchBytes      int
	MaxParams          int
	MaxParamValueBytes int
	MaxTagValueBytes   int
}

func DefaultConfig() Config {
	return Config{
		HeartbeatTimeout:   5 * time.Minute,
		WatchdogInterval:   30 * time.Second,
		ReorderMaxSize:     100,
		ReorderMaxWait:     30 * time.Second,
		MaxBatchPoints:     10000,
		MaxBatchBytes:      1 << 20,
		MaxParams:          1000,
		MaxParamValueBytes: 4 << 10,
		MaxTagValueBytes:   1 << 10,
	}
}

// bufferedBatch is a validated, admitted batch parked in a reorder window
// awaiting its sequence turn. The response was already sent; only the
// two-store persistence is deferred.
type bufferedBatch struct {
	batchID     string
	contentHash string
	points      []metricstore.Point
}

// Coordinator owns every write against the two stores.
type Coordinator struct {
	cfg    Config
	store  metadata.Store
	points PointStore
	ledger BatchLedger
	guard  *cardinality.Guard
	signer *TokenSigner
	locks  *runlock.Table
	clock  clock.PassiveClock

	mu      sync.Mutex
	windows map[string]*reorder.Window
}

func New(cfg Config, store metadata.Store, points PointStore, batchLedger BatchLedger, guard *cardinality.Guard, signer *TokenSigner) *Coordinator {
	return &Coordinator{
		cfg:     cfg,
		store:   store,
		points:  points,
		ledger:  batchLedger,
		guard:   guard,
		signer:  signer,
		locks:   runlock.NewTable(),
		clock:   clock.RealClock{},
		windows: map[string]*reorder.Window{},
	}
}

// InitRun creates a run, returns an existing running run idempotently, or
// resumes a crashed run when presented with its currently-valid resume
// token.
func (c *Coordinator) InitRun(ctx *kctx.Context, req *rpc.InitRunRequest) (*rpc.InitRunResponse, error) {
	if err := validateProjectName(req.Project); err != nil {
		return nil, err
	}
	if req.RunId != "" {
		if err := validateIdentifier("run_id", req.RunId); err != nil {
			return nil, err
		}
	}

	project, err := c.store.GetProject(ctx, req.Project)
	if err != nil {
		var notFound *kerrors.ErrNotFound
		if !errors.As(err, &notFound) {
			return nil, err
		}
		project, err = c.store.CreateProject(ctx, req.Project)
		if err != nil {
			return nil, err
		}
	}

	runID := req.RunId
	if runID == "" {
		runID = idgen.NewRunID()
	}

	unlock := c.locks.Lock(runID)
	defer unlock()

	run, err := c.store.GetRun(ctx, runID)
	var notFound *kerrors.ErrNotFound
	switch {
	case errors.As(err, &notFound):
		return c.createRun(ctx, project.ID, runID, req)
	case err != nil:
		return nil, err
	}

	switch {
	case run.Status == metadata.RunRunning:
		// Idempotent re-init of a live run; the prior token is superseded.
		token, err := c.mintToken(ctx, runID, c.nextSequence(runID))
		if err != nil {
			return nil, err
		}
		return &rpc.InitRunResponse{RunId: runID, ResumeToken: token}, nil
	case run.Status == metadata.RunCrashed:
		return c.resumeRun(ctx, run, req)
	default:
		return nil, errors.WithStack(&kerrors.ErrFailedPrecondition{
			Message: fmt.Sprintf("run %q is %s and cannot be re-initialized", runID, run.Status),
		})
	}
}

func (c *Coordinator) createRun(ctx *kctx.Context, projectID, runID string, req *rpc.InitRunRequest) (*rpc.InitRunResponse, error) {
	var parent *string
	if req.ParentRunId != "" {
		parent = &req.ParentRunId
	}
	name := req.Name
	if name == "" {
		name = runID
	}
	run := &metadata.Run{
		ID:          runID,
		ProjectID:   projectID,
		Name:        name,
		Status:      metadata.RunRunning,
		ParentRunID: parent,
		Tags:        req.Tags,
		SystemInfo:  req.SystemInfo,
		CreatedAt:   c.clock.Now().UTC(),
	}
	if err := c.store.CreateRun(ctx, run); err != nil {
		return nil, err
	}
	if len(req.Tags) > 0 {
		c.guard.SeedTagKeys(runID, mapKeys(req.Tags))
		if err := c.store.UpsertTags(ctx, runID, req.Tags); err != nil {
			return nil, err
		}
	}

	c.mu.Lock()
	c.windows[runID] = reorder.NewWindow(0, c.cfg.ReorderMaxSize, c.cfg.ReorderMaxWait)
	c.mu.Unlock()

	token, err := c.mintToken(ctx, runID, 0)
	if err != nil {
		return nil, err
	}
	ctx.Log.WithField("run_id", runID).Info("run created")
	return &rpc.InitRunResponse{RunId: runID, ResumeToken: token}, nil
}

func (c *Coordinator) resumeRun(ctx *kctx.Context, run *metadata.Run, req *rpc.InitRunRequest) (*rpc.InitRunResponse, error) {
	if req.ResumeToken == "" {
		return nil, errors.WithStack(&kerrors.ErrFailedPrecondition{
			Message: fmt.Sprintf("run %q is crashed; resuming requires a resume_token", run.ID),
		})
	}
	tokenRunID, checkpoint, jti, err := c.signer.Verify(req.ResumeToken)
	if err != nil {
		return nil, err
	}
	if tokenRunID != run.ID || jti == "" || jti != run.ResumeTokenJTI {
		// A verified-but-superseded token is rejected even before expiry:
		// only the most recently minted token per run redeems.
		return nil, errors.WithStack(&kerrors.ErrFailedPrecondition{
			Message: "resume token is not the currently valid token for this run",
		})
	}

	applied, err := c.store.UpdateRunStatus(ctx, run.ID, metadata.RunCrashed, metadata.RunRunning, nil, nil)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, errors.WithStack(&kerrors.ErrFailedPrecondition{
			Message: fmt.Sprintf("run %q changed state concurrently; retry init_run", run.ID),
		})
	}
	if err := c.store.TouchHeartbeat(ctx, run.ID); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if _, ok := c.windows[run.ID]; !ok {
		c.windows[run.ID] = reorder.NewWindow(checkpoint, c.cfg.ReorderMaxSize, c.cfg.ReorderMaxWait)
	}
	c.mu.Unlock()

	// Redeeming the token invalidates it; a fresh one is minted at the
	// resumed checkpoint.
	token, err := c.mintToken(ctx, run.ID, checkpoint)
	if err != nil {
		return nil, err
	}
	runsResumed.Inc()
	ctx.Log.WithField("run_id", run.ID).Info("run resumed from crashed state")
	return &rpc.InitRunResponse{RunId: run.ID, ResumeToken: token, Resumed: true}, nil
}

func (c *Coordinator) mintToken(ctx *kctx.Context, runID string, checkpoint int64) (string, error) {
	token, jti, expires, err := c.signer.Mint(runID, checkpoint)
	if err != nil {
		return "", errors.WithStack(err)
	}
	if err := c.store.SetResumeToken(ctx, runID, jti, expires); err != nil {
		return "", err
	}
	return token, nil
}

// LogMetrics ingests one batch: shape limits, run state, idempotency,
// per-point validation, cardinality, then the two-store write (points
// first, ledger second). Sequenced batches may detour through the run's
// reorder window between admission and persistence.
func (c *Coordinator) LogMetrics(ctx *kctx.Context, req *rpc.LogMetricsRequest) (*rpc.LogMetricsResponse, error) {
	if err := validateBatchShape(req, c.cfg.MaxBatchPoints, c.cfg.MaxBatchBytes); err != nil {
		return nil, err
	}

	unlock := c.locks.Lock(req.RunId)
	defer unlock()

	run, err := c.store.GetRun(ctx, req.RunId)
	if err != nil {
		return nil, err
	}
	if !canLogMetrics(run.Status) {
		return nil, errors.WithStack(&kerrors.ErrFailedPrecondition{
			Message: fmt.Sprintf("run %q is %s; only running runs accept metrics", req.RunId, run.Status),
		})
	}

	hash := payloadHash(req.Points)
	outcome, err := c.ledger.Check(ctx, req.RunId, req.BatchId, hash)
	if err != nil {
		return nil, errors.WithStack(&kerrors.ErrUnavailable{Message: "idempotency ledger unavailable"})
	}
	switch outcome {
	case ledger.Duplicate:
		batchesDeduplicated.Inc()
		return &rpc.LogMetricsResponse{DeduplicatedCount: int32(len(req.Points))}, nil
	case ledger.Conflict:
		batchesDeduplicated.Inc()
		return &rpc.LogMetricsResponse{
			DeduplicatedCount: int32(len(req.Points)),
			Warnings: []*rpc.Warning{{
				Code:     rpc.WarnDuplicateBatch,
				Message:  fmt.Sprintf("batch %q was already ingested with different contents; the original data is retained", req.BatchId),
				Severity: rpc.SeverityWarning,
			}},
		}, nil
	}

	now := c.clock.Now().UTC()
	valid, warnings := sanitizePoints(req.Points, now)
	pointsDropped.Add(float64(len(req.Points) - len(valid)))

	// Cardinality admission over the batch's distinct names.
	adm := c.guard.AdmitMetricNames(req.RunId, run.ProjectID, distinctNames(valid))
	if len(adm.Rejected) > 0 {
		kept := valid[:0]
		dropped := 0
		for _, p := range valid {
			if adm.Rejected[p.Name] {
				dropped++
				continue
			}
			kept = append(kept, p)
		}
		valid = kept
		cardinalityRejections.Add(float64(dropped))
		pointsDropped.Add(float64(dropped))
		warnings = append(warnings, &rpc.Warning{
			Code:     rpc.WarnCardinalityLimitExceeded,
			Message:  fmt.Sprintf("%d point(s) dropped: run metric-name cardinality limit reached", dropped),
			Severity: rpc.SeverityWarning,
		})
	} else if adm.Approaching || adm.ProjectApproaching {
		warnings = append(warnings, &rpc.Warning{
			Code:     rpc.WarnCardinalityLimitApproaching,
			Message:  "metric-name cardinality is approaching its limit",
			Severity: rpc.SeverityInfo,
		})
	}

	rows := toStoreRows(req.RunId, run, valid)

	if req.Sequenced {
		if err := c.enqueueSequenced(ctx, req, hash, rows); err != nil {
			return nil, err
		}
	} else if err := c.persistBatch(ctx, req.RunId, bufferedBatch{batchID: req.BatchId, contentHash: hash, points: rows}); err != nil {
		return nil, err
	}

	if err := c.store.TouchHeartbeat(ctx, req.RunId); err != nil {
		ctx.Log.WithError(err).WithField("run_id", req.RunId).Warn("failed to touch heartbeat after ingest")
	}

	pointsAccepted.Add(float64(len(valid)))
	return &rpc.LogMetricsResponse{AcceptedCount: int32(len(valid)), Warnings: warnings}, nil
}

// enqueueSequenced pushes the admitted batch into the run's reorder
// window and persists whatever contiguous prefix the push releases. The
// caller holds the run lock.
func (c *Coordinator) enqueueSequenced(ctx *kctx.Context, req *rpc.LogMetricsRequest, hash string, rows []metricstore.Point) error {
	c.mu.Lock()
	w, ok := c.windows[req.RunId]
	if !ok {
		// First sequenced batch after a restart: anchor at its sequence.
		w = reorder.NewWindow(req.Sequence, c.cfg.ReorderMaxSize, c.cfg.ReorderMaxWait)
		c.windows[req.RunId] = w
	}
	ready, forced := w.Push(req.Sequence, bufferedBatch{batchID: req.BatchId, contentHash: hash, points: rows})
	reorderDepth.Set(float64(w.Pending()))
	c.mu.Unlock()

	if forced {
		ctx.Log.WithField("run_id", req.RunId).Warn("reorder window forced a gap-skipping release")
	}
	for _, item := range ready {
		if err := c.persistBatch(ctx, req.RunId, item.(bufferedBatch)); err != nil {
			return err
		}
	}
	return nil
}

// persistBatch is the two-store write: points append first, then the
// ledger record. If the points write fails the ledger stays untouched and
// the client retry re-attempts cleanly; if the ledger write fails after a
// successful points write, the retry's re-inserted points collapse in the
// store's replacing merge.
func (c *Coordinator) persistBatch(ctx *kctx.Context, runID string, b bufferedBatch) error {
	if err := c.points.InsertPoints(ctx, b.points); err != nil {
		ctx.Log.WithError(err).WithField("run_id", runID).Error("metric points write failed")
		return errors.WithStack(&kerrors.ErrUnavailable{Message: "metrics store unavailable"})
	}
	if err := c.ledger.Record(ctx, runID, b.batchID, b.contentHash, len(b.points)); err != nil {
		ctx.Log.WithError(err).WithField("run_id", runID).Error("ledger record failed after points write")
		return errors.WithStack(&kerrors.ErrUnavailable{Message: "idempotency ledger unavailable"})
	}
	return nil
}

// LogParams writes parameters with first-write-wins semantics; a
// conflicting rewrite degrades to a warning.
func (c *Coordinator) LogParams(ctx *kctx.Context, req *rpc.LogParamsRequest) (*rpc.LogParamsResponse, error) {
	if err := validateIdentifier("run_id", req.RunId); err != nil {
		return nil, err
	}
	if err := validateParams(req.Params, c.cfg.MaxParams, c.cfg.MaxParamValueBytes); err != nil {
		return nil, err
	}

	unlock := c.locks.Lock(req.RunId)
	defer unlock()

	if err := c.requireMutableRun(ctx, req.RunId); err != nil {
		return nil, err
	}

	var warnings []*rpc.Warning
	for _, p := range req.Params {
		conflict, existing, err := c.store.UpsertParam(ctx, metadata.Parameter{
			RunID: req.RunId,
			Name:  p.Name,
			Value: p.Value,
			Type:  metadata.ParamType(p.Type),
		})
		if err != nil {
			return nil, err
		}
		if conflict {
			warnings = append(warnings, &rpc.Warning{
				Code:     rpc.WarnParamConflict,
				Message:  fmt.Sprintf("parameter %q already has value %q; new value ignored", p.Name, existing),
				Severity: rpc.SeverityWarning,
			})
		}
	}
	return &rpc.LogParamsResponse{Warnings: warnings}, nil
}

// LogTags upserts and removes tags; tag-key cardinality is policed the
// same way metric names are.
func (c *Coordinator) LogTags(ctx *kctx.Context, req *rpc.LogTagsRequest) (*rpc.LogTagsResponse, error) {
	if err := validateIdentifier("run_id", req.RunId); err != nil {
		return nil, err
	}
	if err := validateTags(req.Set, c.cfg.MaxTagValueBytes); err != nil {
		return nil, err
	}

	unlock := c.locks.Lock(req.RunId)
	defer unlock()

	if err := c.requireMutableRun(ctx, req.RunId); err != nil {
		return nil, err
	}

	var warnings []*rpc.Warning
	set := req.Set
	if len(set) > 0 {
		adm := c.guard.AdmitTagKeys(req.RunId, mapKeys(set))
		if len(adm.Rejected) > 0 {
			kept := make(map[string]string, len(set))
			for k, v := range set {
				if !adm.Rejected[k] {
					kept[k] = v
				}
			}
			set = kept
			warnings = append(warnings, &rpc.Warning{
				Code:     rpc.WarnCardinalityLimitExceeded,
				Message:  fmt.Sprintf("%d tag(s) dropped: run tag-key cardinality limit reached", len(adm.Rejected)),
				Severity: rpc.SeverityWarning,
			})
		} else if adm.Approaching {
			warnings = append(warnings, &rpc.Warning{
				Code:     rpc.WarnCardinalityLimitApproaching,
				Message:  "tag-key cardinality is approaching its limit",
				Severity: rpc.SeverityInfo,
			})
		}
		if len(set) > 0 {
			if err := c.store.UpsertTags(ctx, req.RunId, set); err != nil {
				return nil, err
			}
		}
	}
	if len(req.RemoveKeys) > 0 {
		if err := c.store.DeleteTags(ctx, req.RunId, req.RemoveKeys); err != nil {
			return nil, err
		}
	}
	return &rpc.LogTagsResponse{Warnings: warnings}, nil
}

// Heartbeat refreshes the run's liveness timestamp.
func (c *Coordinator) Heartbeat(ctx *kctx.Context, req *rpc.HeartbeatRequest) (*rpc.HeartbeatResponse, error) {
	if err := validateIdentifier("run_id", req.RunId); err != nil {
		return nil, err
	}
	run, err := c.store.GetRun(ctx, req.RunId)
	if err != nil {
		return nil, err
	}
	if run.Status != metadata.RunRunning {
		return nil, errors.WithStack(&kerrors.ErrFailedPrecondition{
			Message: fmt.Sprintf("run %q is %s; heartbeats only apply to running runs", req.RunId, run.Status),
		})
	}
	if err := c.store.TouchHeartbeat(ctx, req.RunId); err != nil {
		return nil, err
	}
	return &rpc.HeartbeatResponse{}, nil
}

// FinishRun moves a run to its terminal state, flushing any batches still
// parked in its reorder window first so nothing admitted is lost.
func (c *Coordinator) FinishRun(ctx *kctx.Context, req *rpc.FinishRunRequest) (*rpc.FinishRunResponse, error) {
	if err := validateIdentifier("run_id", req.RunId); err != nil {
		return nil, err
	}
	target := metadata.RunStatus(req.Status)
	switch target {
	case metadata.RunFinished, metadata.RunFailed, metadata.RunKilled:
	default:
		return nil, errors.WithStack(&kerrors.ErrInvalidArgument{
			Name: "status", Value: req.Status,
			Message: "must be one of finished|failed|killed",
		})
	}

	unlock := c.locks.Lock(req.RunId)
	defer unlock()

	run, err := c.store.GetRun(ctx, req.RunId)
	if err != nil {
		return nil, err
	}
	if !canTransition(run.Status, target) {
		return nil, errors.WithStack(&kerrors.ErrFailedPrecondition{
			Message: fmt.Sprintf("run %q cannot move from %s to %s", req.RunId, run.Status, target),
		})
	}

	c.mu.Lock()
	w := c.windows[req.RunId]
	delete(c.windows, req.RunId)
	c.mu.Unlock()
	if w != nil {
		for _, item := range w.FlushAll() {
			if err := c.persistBatch(ctx, req.RunId, item.(bufferedBatch)); err != nil {
				return nil, err
			}
		}
	}

	var exitCode *int32
	if req.HasExitCode {
		exitCode = &req.ExitCode
	}
	var errMsg *string
	if req.Error != "" {
		errMsg = &req.Error
	}
	applied, err := c.store.UpdateRunStatus(ctx, req.RunId, run.Status, target, exitCode, errMsg)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, errors.WithStack(&kerrors.ErrFailedPrecondition{
			Message: fmt.Sprintf("run %q changed state concurrently; fetch it and retry if still applicable", req.RunId),
		})
	}
	if err := c.store.ClearResumeToken(ctx, req.RunId); err != nil {
		return nil, err
	}

	c.guard.Forget(req.RunId)
	ctx.Log.WithField("run_id", req.RunId).WithField("status", string(target)).Info("run finished")
	return &rpc.FinishRunResponse{}, nil
}

func (c *Coordinator) requireMutableRun(ctx *kctx.Context, runID string) error {
	run, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run.Status.IsTerminal() {
		return errors.WithStack(&kerrors.ErrFailedPrecondition{
			Message: fmt.Sprintf("run %q is %s and is immutable", runID, run.Status),
		})
	}
	return nil
}

func (c *Coordinator) nextSequence(runID string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if w, ok := c.windows[runID]; ok {
		return w.NextExpected()
	}
	return 0
}

func distinctNames(points []*rpc.MetricPoint) []string {
	seen := make(map[string]bool, 8)
	var names []string
	for _, p := range points {
		if !seen[p.Name] {
			seen[p.Name] = true
			names = append(names, p.Name)
		}
	}
	return names
}

func mapKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func toStoreRows(runID string, run *metadata.Run, points []*rpc.MetricPoint) []metricstore.Point {
	started := run.CreatedAt
	if run.StartedAt != nil {
		started = *run.StartedAt
	}
	rows := make([]metricstore.Point, len(points))
	for i, p := range points {
		wall := time.UnixMilli(p.TimestampMs).UTC()
		rows[i] = metricstore.Point{
			RunID:        runID,
			MetricName:   p.Name,
			Step:         p.Step,
			Value:        p.Value,
			WallTime:     wall,
			RelativeTime: wall.Sub(started).Seconds(),
		}
	}
	return rows
}
