package query

import (
	"fmt"
	"math"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"

	"github.com/ibusnowden/MLRun/internal/common/kctx"
	"github.com/ibusnowden/MLRun/internal/common/kerrors"
	"github.com/ibusnowden/MLRun/internal/metadata"
	"github.com/ibusnowden/MLRun/internal/metricstore"
	"github.com/ibusnowden/MLRun/internal/rpc"
)

// SeriesReader is the slice of the metrics store gateway the engine reads
// through.
type SeriesReader interface {
	FetchSeries(ctx *kctx.Context, runID, metricName string, r metricstore.SeriesRange) ([]metricstore.Point, error)
	FetchSummary(ctx *kctx.Context, runID string) ([]metricstore.SummaryRow, error)
	MetricNames(ctx *kctx.Context, runID string) ([]string, error)
}

// Limits bound a single fetch request.
const (
	MaxFetchRuns      = 10
	MaxFetchMetrics   = 50
	DefaultMaxPoints  = 1000
	HardCapMaxPoints  = 10000
	DefaultPageSize   = 50
	MaxPageSize       = 500
)

// Engine serves the read-side API. Responses for the metric fetch paths
// are cached for a few seconds keyed on the full request; summaries and
// downsampled series already tolerate seconds of staleness, so a TTL
// cache needs no invalidation hooks.
type Engine struct {
	store  metadata.Store
	series SeriesReader
	cache  *gocache.Cache
}

func NewEngine(store metadata.Store, series SeriesReader, cacheTTL time.Duration) *Engine {
	var c *gocache.Cache
	if cacheTTL > 0 {
		c = gocache.New(cacheTTL, 2*cacheTTL)
	}
	return &Engine{store: store, series: series, cache: c}
}

// ListRuns filters, sorts, and pages runs, projecting only the sections
// the caller asked for.
func (e *Engine) ListRuns(ctx *kctx.Context, req *rpc.ListRunsRequest) (*rpc.ListRunsResponse, error) {
	filters, err := buildFilters(ctx, e.store, req)
	if err != nil {
		return nil, err
	}

	sort := metadata.SortOrder{Field: metadata.SortCreatedAt, Desc: true}
	if req.SortField != "" {
		sort.Field = metadata.SortField(req.SortField)
		sort.Desc = req.SortDescending
	}

	limit := int(req.PageSize)
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	runs, nextCursor, total, err := e.store.ListRuns(ctx, filters, sort, req.PageToken, limit)
	if err != nil {
		return nil, err
	}

	include := map[string]bool{}
	for _, section := range req.Include {
		include[section] = true
	}

	out := make([]*rpc.RunInfo, 0, len(runs))
	for _, run := range runs {
		info, err := e.runInfo(ctx, run, include)
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return &rpc.ListRunsResponse{Runs: out, NextPageToken: nextCursor, TotalEstimated: total}, nil
}

// GetRun returns one run with its full summary.
func (e *Engine) GetRun(ctx *kctx.Context, req *rpc.GetRunRequest) (*rpc.GetRunResponse, error) {
	run, err := e.store.GetRun(ctx, req.RunId)
	if err != nil {
		return nil, err
	}
	info, err := e.runInfo(ctx, run, map[string]bool{"summary": true, "params": true, "tags": true, "system_info": true})
	if err != nil {
		return nil, err
	}
	return &rpc.GetRunResponse{Run: info}, nil
}

// GetMetrics fetches series for up to MaxFetchRuns × MaxFetchMetrics
// pairs, downsampling any series over the point budget. Statistics always
// cover the unsampled range.
func (e *Engine) GetMetrics(ctx *kctx.Context, req *rpc.GetMetricsRequest) (*rpc.GetMetricsResponse, error) {
	if err := validateFetchShape(req.RunIds, req.MetricNames); err != nil {
		return nil, err
	}
	maxPoints, err := resolveMaxPoints(req.MaxPoints)
	if err != nil {
		return nil, err
	}
	method := Method(req.DownsampleMethod)
	switch method {
	case "", MethodLTTB, MethodMinMax, MethodAvg, MethodFirst, MethodLast:
	default:
		return nil, errors.WithStack(&kerrors.ErrInvalidArgument{
			Name: "downsample_method", Value: req.DownsampleMethod,
			Message: "must be one of lttb|min_max|average|first|last",
		})
	}

	cacheKey := fmt.Sprintf("fetch/%v/%v/%v/%v/%d/%s", req.RunIds, req.MetricNames, req.StepRange, req.TimeRange, maxPoints, method)
	if cached, ok := e.cacheGet(cacheKey); ok {
		return cached.(*rpc.GetMetricsResponse), nil
	}

	srange := toSeriesRange(req.StepRange, req.TimeRange)

	resp := &rpc.GetMetricsResponse{}
	for _, runID := range req.RunIds {
		names := req.MetricNames
		if len(names) == 0 {
			all, err := e.series.MetricNames(ctx, runID)
			if err != nil {
				return nil, errors.WithStack(&kerrors.ErrUnavailable{Message: "metrics store unavailable"})
			}
			names = all
			if len(names) > MaxFetchMetrics {
				names = names[:MaxFetchMetrics]
			}
		}
		for _, name := range names {
			points, err := e.series.FetchSeries(ctx, runID, name, srange)
			if err != nil {
				return nil, errors.WithStack(&kerrors.ErrUnavailable{Message: "metrics store unavailable"})
			}
			if len(points) == 0 {
				continue
			}
			stats := ComputeStats(points)
			original := len(points)
			sampled := points
			downsampled := false
			if original > maxPoints {
				sampled = Downsample(points, maxPoints, method)
				downsampled = true
			}
			resp.RunMetrics = append(resp.RunMetrics, &rpc.RunMetrics{
				RunId:              runID,
				Name:               name,
				Points:             toWirePoints(sampled),
				Stats:              &rpc.SeriesStats{Min: stats.Min, Max: stats.Max, Mean: stats.Mean, Last: stats.Last, Count: stats.Count},
				Downsampled:        downsampled,
				OriginalPointCount: int64(original),
			})
		}
	}

	e.cacheSet(cacheKey, resp)
	return resp, nil
}

// CompareRuns aligns the named series onto a common X axis per the
// requested mode, filling positions a run has no observation for with
// explicit gaps.
func (e *Engine) CompareRuns(ctx *kctx.Context, req *rpc.CompareRunsRequest) (*rpc.CompareRunsResponse, error) {
	if err := validateFetchShape(req.RunIds, req.MetricNames); err != nil {
		return nil, err
	}
	if len(req.MetricNames) == 0 {
		return nil, errors.WithStack(&kerrors.ErrInvalidArgument{Name: "metric_names", Message: "at least one metric name is required"})
	}
	mode := AlignmentMode(req.AlignmentMode)
	switch mode {
	case "":
		mode = AlignStep
	case AlignStep, AlignRelativeTime, AlignAbsoluteTime, AlignProgress:
	default:
		return nil, errors.WithStack(&kerrors.ErrInvalidArgument{
			Name: "alignment_mode", Value: req.AlignmentMode,
			Message: "must be one of step|relative_time|absolute_time|progress",
		})
	}
	maxPoints, err := resolveMaxPoints(req.MaxPoints)
	if err != nil {
		return nil, err
	}

	cacheKey := fmt.Sprintf("compare/%v/%v/%s/%d", req.RunIds, req.MetricNames, mode, maxPoints)
	if cached, ok := e.cacheGet(cacheKey); ok {
		return cached.(*rpc.CompareRunsResponse), nil
	}

	fullRange := toSeriesRange(nil, nil)
	var inputs []seriesInput
	for _, runID := range req.RunIds {
		run, err := e.store.GetRun(ctx, runID)
		if err != nil {
			return nil, err
		}
		started := run.CreatedAt
		if run.StartedAt != nil {
			started = *run.StartedAt
		}
		for _, name := range req.MetricNames {
			points, err := e.series.FetchSeries(ctx, runID, name, fullRange)
			if err != nil {
				return nil, errors.WithStack(&kerrors.ErrUnavailable{Message: "metrics store unavailable"})
			}
			inputs = append(inputs, seriesInput{RunID: runID, Name: name, Points: points, StartedAt: started})
		}
	}

	axis, values := Align(inputs, mode, maxPoints)

	resp := &rpc.CompareRunsResponse{Axis: axis}
	for i, in := range inputs {
		series := &rpc.AlignedSeries{RunId: in.RunID, Name: in.Name}
		for j, v := range values[i] {
			series.Points = append(series.Points, &rpc.AlignedPoint{X: axis[j], Value: v.value, Gap: v.gap})
		}
		resp.Series = append(resp.Series, series)
	}

	e.cacheSet(cacheKey, resp)
	return resp, nil
}

func (e *Engine) runInfo(ctx *kctx.Context, run *metadata.Run, include map[string]bool) (*rpc.RunInfo, error) {
	info := &rpc.RunInfo{
		RunId:       run.ID,
		ProjectId:   run.ProjectID,
		Name:        run.Name,
		Status:      string(run.Status),
		CreatedAtMs: run.CreatedAt.UnixMilli(),
	}
	if run.ExitCode != nil {
		info.ExitCode = *run.ExitCode
		info.HasExitCode = true
	}
	if run.Error != nil {
		info.Error = *run.Error
	}
	if run.ParentRunID != nil {
		info.ParentRunId = *run.ParentRunID
	}
	if run.StartedAt != nil {
		info.StartedAtMs = run.StartedAt.UnixMilli()
	}
	if run.FinishedAt != nil {
		info.FinishedAtMs = run.FinishedAt.UnixMilli()
	}
	if !run.HeartbeatAt.IsZero() {
		info.HeartbeatAtMs = run.HeartbeatAt.UnixMilli()
	}
	if include["tags"] {
		info.Tags = run.Tags
	}
	if include["system_info"] {
		info.SystemInfo = run.SystemInfo
	}
	if include["params"] {
		params, err := e.store.ListParams(ctx, run.ID)
		if err != nil {
			return nil, err
		}
		for _, p := range params {
			info.Params = append(info.Params, &rpc.Param{Name: p.Name, Value: p.Value, Type: string(p.Type)})
		}
	}
	if include["summary"] {
		rows, err := e.series.FetchSummary(ctx, run.ID)
		if err != nil {
			return nil, errors.WithStack(&kerrors.ErrUnavailable{Message: "metrics store unavailable"})
		}
		for _, r := range rows {
			info.Summary = append(info.Summary, &rpc.MetricSummary{
				Name:        r.MetricName,
				Min:         r.MinValue,
				Max:         r.MaxValue,
				Last:        r.LastValue,
				LastStep:    r.LastStep,
				Count:       r.Count,
				FirstSeenMs: r.FirstSeen.UnixMilli(),
				LastSeenMs:  r.LastSeen.UnixMilli(),
			})
		}
	}
	return info, nil
}

func (e *Engine) cacheGet(key string) (interface{}, bool) {
	if e.cache == nil {
		return nil, false
	}
	return e.cache.Get(key)
}

func (e *Engine) cacheSet(key string, value interface{}) {
	if e.cache != nil {
		e.cache.Set(key, value, gocache.DefaultExpiration)
	}
}

func validateFetchShape(runIDs, metricNames []string) error {
	if len(runIDs) == 0 {
		return errors.WithStack(&kerrors.ErrInvalidArgument{Name: "run_ids", Message: "at least one run id is required"})
	}
	if len(runIDs) > MaxFetchRuns {
		return errors.WithStack(&kerrors.ErrInvalidArgument{
			Name: "run_ids", Value: len(runIDs),
			Message: fmt.Sprintf("at most %d runs per fetch", MaxFetchRuns),
		})
	}
	if len(metricNames) > MaxFetchMetrics {
		return errors.WithStack(&kerrors.ErrInvalidArgument{
			Name: "metric_names", Value: len(metricNames),
			Message: fmt.Sprintf("at most %d metrics per fetch", MaxFetchMetrics),
		})
	}
	return nil
}

func resolveMaxPoints(requested int32) (int, error) {
	if requested < 0 || requested > HardCapMaxPoints {
		return 0, errors.WithStack(&kerrors.ErrInvalidArgument{
			Name: "max_points", Value: requested,
			Message: fmt.Sprintf("must be between 1 and %d", HardCapMaxPoints),
		})
	}
	if requested == 0 {
		return DefaultMaxPoints, nil
	}
	return int(requested), nil
}

func toSeriesRange(steps *rpc.StepRange, times *rpc.TimeRange) metricstore.SeriesRange {
	r := metricstore.SeriesRange{
		MinStep: 0,
		MaxStep: math.MaxInt64,
		MinTime: time.Unix(0, 0).UTC(),
		MaxTime: time.Date(2200, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if steps != nil {
		r.MinStep = steps.Min
		if steps.Max > 0 {
			r.MaxStep = steps.Max
		}
	}
	if times != nil {
		if times.MinMs > 0 {
			r.MinTime = time.UnixMilli(times.MinMs).UTC()
		}
		if times.MaxMs > 0 {
			r.MaxTime = time.UnixMilli(times.MaxMs).UTC()
		}
	}
	return r
}

func toWirePoints(points []metricstore.Point) []*rpc.SeriesPoint {
	out := make([]*rpc.SeriesPoint, len(points))
	for i, p := range points {
		out[i] = &rpc.SeriesPoint{Step: p.Step, Value: p.Value, TimestampMs: p.WallTime.UnixMilli()}
	}
	return out
}

// buildFilters translates the wire filter into the metadata gateway's
// filter language. The project name scopes everything; an unknown project
// name fails with the store's not-found error.
func buildFilters(ctx *kctx.Context, store metadata.Store, req *rpc.ListRunsRequest) ([]metadata.Filter, error) {
	var filters []metadata.Filter

	if req.Project != "" {
		project, err := store.GetProject(ctx, req.Project)
		if err != nil {
			return nil, err
		}
		filters = append(filters, metadata.Filter{Field: "project_id", Operator: metadata.OpEq, Value: project.ID})
	}

	f := req.Filter
	if f == nil {
		return filters, nil
	}
	if len(f.Statuses) > 0 {
		filters = append(filters, metadata.Filter{Field: "status", Operator: metadata.OpIn, Values: f.Statuses})
	}
	for k, v := range f.Tags {
		filters = append(filters, metadata.Filter{Field: "tag:" + k, Operator: metadata.OpEq, Value: v})
	}
	if f.NameGlob != "" {
		filters = append(filters, metadata.Filter{Field: "name", Operator: metadata.OpContains, Value: f.NameGlob})
	}
	if f.CreatedAfterMs > 0 {
		filters = append(filters, metadata.Filter{Field: "created_at", Operator: metadata.OpGe, Value: time.UnixMilli(f.CreatedAfterMs).UTC().Format(time.RFC3339Nano)})
	}
	if f.CreatedBeforeMs > 0 {
		filters = append(filters, metadata.Filter{Field: "created_at", Operator: metadata.OpLe, Value: time.UnixMilli(f.CreatedBeforeMs).UTC().Format(time.RFC3339Nano)})
	}
	if f.ParentRunId != "" {
		filters = append(filters, metadata.Filter{Field: "parent_run_id", Operator: metadata.OpEq, Value: f.ParentRunId})
	}
	for _, pf := range f.Params {
		filters = append(filters, metadata.Filter{Field: "param:" + pf.Name, Operator: metadata.FilterOp(pf.Operator), Value: pf.Value})
	}
	return filters, nil
}
