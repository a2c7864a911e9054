package rpc

import (
	proto "github.com/gogo/protobuf/proto"
)

// ParamFilter compares a run parameter against a literal. If both the
// stored value and Value parse as numbers the comparison is numeric,
// otherwise lexicographic.
type ParamFilter struct {
	Name     string `protobuf:"bytes,1,opt,name=name,proto3" json:"name"`
	Operator string `protobuf:"bytes,2,opt,name=operator,proto3" json:"operator"`
	Value    string `protobuf:"bytes,3,opt,name=value,proto3" json:"value"`
}

func (m *ParamFilter) Reset()         { *m = ParamFilter{} }
func (m *ParamFilter) String() string { return proto.CompactTextString(m) }
func (*ParamFilter) ProtoMessage()    {}

// RunFilter is the conjunction of run-level predicates list_runs supports.
type RunFilter struct {
	Statuses        []string          `protobuf:"bytes,1,rep,name=statuses,proto3" json:"statuses,omitempty"`
	Tags            map[string]string `protobuf:"bytes,2,rep,name=tags,proto3" json:"tags,omitempty" protobuf_key:"bytes,1,opt,name=key,proto3" protobuf_val:"bytes,2,opt,name=value,proto3"`
	// NameGlob matches runs whose name contains it as a substring (SQL
	// LIKE, so % and _ act as wildcards); * and ? are matched literally.
	NameGlob        string            `protobuf:"bytes,3,opt,name=name_glob,json=nameGlob,proto3" json:"name_glob,omitempty"`
	CreatedAfterMs  int64             `protobuf:"varint,4,opt,name=created_after_ms,json=createdAfterMs,proto3" json:"created_after_ms,omitempty"`
	CreatedBeforeMs int64             `protobuf:"varint,5,opt,name=created_before_ms,json=createdBeforeMs,proto3" json:"created_before_ms,omitempty"`
	ParentRunId     string            `protobuf:"bytes,6,opt,name=parent_run_id,json=parentRunId,proto3" json:"parent_run_id,omitempty"`
	Params          []*ParamFilter    `protobuf:"bytes,7,rep,name=params,proto3" json:"params,omitempty"`
}

func (m *RunFilter) Reset()         { *m = RunFilter{} }
func (m *RunFilter) String() string { return proto.CompactTextString(m) }
func (*RunFilter) ProtoMessage()    {}

type ListRunsRequest struct {
	Project        string     `protobuf:"bytes,1,opt,name=project,proto3" json:"project"`
	Filter         *RunFilter `protobuf:"bytes,2,opt,name=filter,proto3" json:"filter,omitempty"`
	SortField      string     `protobuf:"bytes,3,opt,name=sort_field,json=sortField,proto3" json:"sort_field,omitempty"`
	SortDescending bool       `protobuf:"varint,4,opt,name=sort_descending,json=sortDescending,proto3" json:"sort_descending,omitempty"`
	PageToken      string     `protobuf:"bytes,5,opt,name=page_token,json=pageToken,proto3" json:"page_token,omitempty"`
	PageSize       int32      `protobuf:"varint,6,opt,name=page_size,json=pageSize,proto3" json:"page_size,omitempty"`
	// Include names the optional sections to project into each returned
	// run, among summary|params|tags|system_info.
	Include []string `protobuf:"bytes,7,rep,name=include,proto3" json:"include,omitempty"`
}

func (m *ListRunsRequest) Reset()         { *m = ListRunsRequest{} }
func (m *ListRunsRequest) String() string { return proto.CompactTextString(m) }
func (*ListRunsRequest) ProtoMessage()    {}

// MetricSummary is the per-(run, metric) aggregate row maintained by the
// metrics store's summary projection.
type MetricSummary struct {
	Name        string  `protobuf:"bytes,1,opt,name=name,proto3" json:"name"`
	Min         float64 `protobuf:"fixed64,2,opt,name=min,proto3" json:"min"`
	Max         float64 `protobuf:"fixed64,3,opt,name=max,proto3" json:"max"`
	Last        float64 `protobuf:"fixed64,4,opt,name=last,proto3" json:"last"`
	LastStep    int64   `protobuf:"varint,5,opt,name=last_step,json=lastStep,proto3" json:"last_step"`
	Count       uint64  `protobuf:"varint,6,opt,name=count,proto3" json:"count"`
	FirstSeenMs int64   `protobuf:"varint,7,opt,name=first_seen_ms,json=firstSeenMs,proto3" json:"first_seen_ms"`
	LastSeenMs  int64   `protobuf:"varint,8,opt,name=last_seen_ms,json=lastSeenMs,proto3" json:"last_seen_ms"`
}

func (m *MetricSummary) Reset()         { *m = MetricSummary{} }
func (m *MetricSummary) String() string { return proto.CompactTextString(m) }
func (*MetricSummary) ProtoMessage()    {}

type RunInfo struct {
	RunId       string            `protobuf:"bytes,1,opt,name=run_id,json=runId,proto3" json:"run_id"`
	ProjectId   string            `protobuf:"bytes,2,opt,name=project_id,json=projectId,proto3" json:"project_id"`
	Name        string            `protobuf:"bytes,3,opt,name=name,proto3" json:"name"`
	Status      string            `protobuf:"bytes,4,opt,name=status,proto3" json:"status"`
	ExitCode    int32             `protobuf:"varint,5,opt,name=exit_code,json=exitCode,proto3" json:"exit_code,omitempty"`
	HasExitCode bool              `protobuf:"varint,6,opt,name=has_exit_code,json=hasExitCode,proto3" json:"has_exit_code,omitempty"`
	Error       string            `protobuf:"bytes,7,opt,name=error,proto3" json:"error,omitempty"`
	ParentRunId string            `protobuf:"bytes,8,opt,name=parent_run_id,json=parentRunId,proto3" json:"parent_run_id,omitempty"`
	CreatedAtMs int64             `protobuf:"varint,9,opt,name=created_at_ms,json=createdAtMs,proto3" json:"created_at_ms"`
	StartedAtMs int64             `protobuf:"varint,10,opt,name=started_at_ms,json=startedAtMs,proto3" json:"started_at_ms,omitempty"`
	FinishedAtMs int64            `protobuf:"varint,11,opt,name=finished_at_ms,json=finishedAtMs,proto3" json:"finished_at_ms,omitempty"`
	HeartbeatAtMs int64           `protobuf:"varint,12,opt,name=heartbeat_at_ms,json=heartbeatAtMs,proto3" json:"heartbeat_at_ms,omitempty"`
	Tags        map[string]string `protobuf:"bytes,13,rep,name=tags,proto3" json:"tags,omitempty" protobuf_key:"bytes,1,opt,name=key,proto3" protobuf_val:"bytes,2,opt,name=value,proto3"`
	SystemInfo  map[string]string `protobuf:"bytes,14,rep,name=system_info,json=systemInfo,proto3" json:"system_info,omitempty" protobuf_key:"bytes,1,opt,name=key,proto3" protobuf_val:"bytes,2,opt,name=value,proto3"`
	Params      []*Param          `protobuf:"bytes,15,rep,name=params,proto3" json:"params,omitempty"`
	Summary     []*MetricSummary  `protobuf:"bytes,16,rep,name=summary,proto3" json:"summary,omitempty"`
}

func (m *RunInfo) Reset()         { *m = RunInfo{} }
func (m *RunInfo) String() string { return proto.CompactTextString(m) }
func (*RunInfo) ProtoMessage()    {}

type ListRunsResponse struct {
	Runs           []*RunInfo `protobuf:"bytes,1,rep,name=runs,proto3" json:"runs"`
	NextPageToken  string     `protobuf:"bytes,2,opt,name=next_page_token,json=nextPageToken,proto3" json:"next_page_token,omitempty"`
	TotalEstimated int64      `protobuf:"varint,3,opt,name=total_estimated,json=totalEstimated,proto3" json:"total_estimated"`
}

func (m *ListRunsResponse) Reset()         { *m = ListRunsResponse{} }
func (m *ListRunsResponse) String() string { return proto.CompactTextString(m) }
func (*ListRunsResponse) ProtoMessage()    {}

type GetRunRequest struct {
	RunId string `protobuf:"bytes,1,opt,name=run_id,json=runId,proto3" json:"run_id"`
}

func (m *GetRunRequest) Reset()         { *m = GetRunRequest{} }
func (m *GetRunRequest) String() string { return proto.CompactTextString(m) }
func (*GetRunRequest) ProtoMessage()    {}

type GetRunResponse struct {
	Run *RunInfo `protobuf:"bytes,1,opt,name=run,proto3" json:"run"`
}

func (m *GetRunResponse) Reset()         { *m = GetRunResponse{} }
func (m *GetRunResponse) String() string { return proto.CompactTextString(m) }
func (*GetRunResponse) ProtoMessage()    {}

// StepRange bounds a fetch by step; a nil range means unbounded.
type StepRange struct {
	Min int64 `protobuf:"varint,1,opt,name=min,proto3" json:"min"`
	Max int64 `protobuf:"varint,2,opt,name=max,proto3" json:"max"`
}

func (m *StepRange) Reset()         { *m = StepRange{} }
func (m *StepRange) String() string { return proto.CompactTextString(m) }
func (*StepRange) ProtoMessage()    {}

// TimeRange bounds a fetch by wall-clock time in unix milliseconds; a nil
// range means unbounded.
type TimeRange struct {
	MinMs int64 `protobuf:"varint,1,opt,name=min_ms,json=minMs,proto3" json:"min_ms"`
	MaxMs int64 `protobuf:"varint,2,opt,name=max_ms,json=maxMs,proto3" json:"max_ms"`
}

func (m *TimeRange) Reset()         { *m = TimeRange{} }
func (m *TimeRange) String() string { return proto.CompactTextString(m) }
func (*TimeRange) ProtoMessage()    {}

type GetMetricsRequest struct {
	RunIds           []string   `protobuf:"bytes,1,rep,name=run_ids,json=runIds,proto3" json:"run_ids"`
	MetricNames      []string   `protobuf:"bytes,2,rep,name=metric_names,json=metricNames,proto3" json:"metric_names,omitempty"`
	StepRange        *StepRange `protobuf:"bytes,3,opt,name=step_range,json=stepRange,proto3" json:"step_range,omitempty"`
	TimeRange        *TimeRange `protobuf:"bytes,4,opt,name=time_range,json=timeRange,proto3" json:"time_range,omitempty"`
	MaxPoints        int32      `protobuf:"varint,5,opt,name=max_points,json=maxPoints,proto3" json:"max_points,omitempty"`
	DownsampleMethod string     `protobuf:"bytes,6,opt,name=downsample_method,json=downsampleMethod,proto3" json:"downsample_method,omitempty"`
}

func (m *GetMetricsRequest) Reset()         { *m = GetMetricsRequest{} }
func (m *GetMetricsRequest) String() string { return proto.CompactTextString(m) }
func (*GetMetricsRequest) ProtoMessage()    {}

type SeriesPoint struct {
	Step        int64   `protobuf:"varint,1,opt,name=step,proto3" json:"step"`
	Value       float64 `protobuf:"fixed64,2,opt,name=value,proto3" json:"value"`
	TimestampMs int64   `protobuf:"varint,3,opt,name=timestamp_ms,json=timestampMs,proto3" json:"timestamp_ms"`
}

func (m *SeriesPoint) Reset()         { *m = SeriesPoint{} }
func (m *SeriesPoint) String() string { return proto.CompactTextString(m) }
func (*SeriesPoint) ProtoMessage()    {}

// SeriesStats are computed over the unsampled range, never over the
// downsampled points.
type SeriesStats struct {
	Min   float64 `protobuf:"fixed64,1,opt,name=min,proto3" json:"min"`
	Max   float64 `protobuf:"fixed64,2,opt,name=max,proto3" json:"max"`
	Mean  float64 `protobuf:"fixed64,3,opt,name=mean,proto3" json:"mean"`
	Last  float64 `protobuf:"fixed64,4,opt,name=last,proto3" json:"last"`
	Count int64   `protobuf:"varint,5,opt,name=count,proto3" json:"count"`
}

func (m *SeriesStats) Reset()         { *m = SeriesStats{} }
func (m *SeriesStats) String() string { return proto.CompactTextString(m) }
func (*SeriesStats) ProtoMessage()    {}

type RunMetrics struct {
	RunId              string         `protobuf:"bytes,1,opt,name=run_id,json=runId,proto3" json:"run_id"`
	Name               string         `protobuf:"bytes,2,opt,name=name,proto3" json:"name"`
	Points             []*SeriesPoint `protobuf:"bytes,3,rep,name=points,proto3" json:"points"`
	Stats              *SeriesStats   `protobuf:"bytes,4,opt,name=stats,proto3" json:"stats"`
	Downsampled        bool           `protobuf:"varint,5,opt,name=downsampled,proto3" json:"downsampled"`
	OriginalPointCount int64          `protobuf:"varint,6,opt,name=original_point_count,json=originalPointCount,proto3" json:"original_point_count"`
}

func (m *RunMetrics) Reset()         { *m = RunMetrics{} }
func (m *RunMetrics) String() string { return proto.CompactTextString(m) }
func (*RunMetrics) ProtoMessage()    {}

type GetMetricsResponse struct {
	RunMetrics []*RunMetrics `protobuf:"bytes,1,rep,name=run_metrics,json=runMetrics,proto3" json:"run_metrics"`
}

func (m *GetMetricsResponse) Reset()         { *m = GetMetricsResponse{} }
func (m *GetMetricsResponse) String() string { return proto.CompactTextString(m) }
func (*GetMetricsResponse) ProtoMessage()    {}

type CompareRunsRequest struct {
	RunIds        []string `protobuf:"bytes,1,rep,name=run_ids,json=runIds,proto3" json:"run_ids"`
	MetricNames   []string `protobuf:"bytes,2,rep,name=metric_names,json=metricNames,proto3" json:"metric_names"`
	AlignmentMode string   `protobuf:"bytes,3,opt,name=alignment_mode,json=alignmentMode,proto3" json:"alignment_mode"`
	MaxPoints     int32    `protobuf:"varint,4,opt,name=max_points,json=maxPoints,proto3" json:"max_points,omitempty"`
}

func (m *CompareRunsRequest) Reset()         { *m = CompareRunsRequest{} }
func (m *CompareRunsRequest) String() string { return proto.CompactTextString(m) }
func (*CompareRunsRequest) ProtoMessage()    {}

// AlignedPoint is one sample of an aligned series. Gap marks an X position
// the run has no value for; a gap is distinct from value 0 and is never
// filled by extrapolation.
type AlignedPoint struct {
	X     float64 `protobuf:"fixed64,1,opt,name=x,proto3" json:"x"`
	Value float64 `protobuf:"fixed64,2,opt,name=value,proto3" json:"value"`
	Gap   bool    `protobuf:"varint,3,opt,name=gap,proto3" json:"gap,omitempty"`
}

func (m *AlignedPoint) Reset()         { *m = AlignedPoint{} }
func (m *AlignedPoint) String() string { return proto.CompactTextString(m) }
func (*AlignedPoint) ProtoMessage()    {}

type AlignedSeries struct {
	RunId  string          `protobuf:"bytes,1,opt,name=run_id,json=runId,proto3" json:"run_id"`
	Name   string          `protobuf:"bytes,2,opt,name=name,proto3" json:"name"`
	Points []*AlignedPoint `protobuf:"bytes,3,rep,name=points,proto3" json:"points"`
}

func (m *AlignedSeries) Reset()         { *m = AlignedSeries{} }
func (m *AlignedSeries) String() string { return proto.CompactTextString(m) }
func (*AlignedSeries) ProtoMessage()    {}

type CompareRunsResponse struct {
	Axis   []float64        `protobuf:"fixed64,1,rep,packed,name=axis,proto3" json:"axis"`
	Series []*AlignedSeries `protobuf:"bytes,2,rep,name=series,proto3" json:"series"`
}

func (m *CompareRunsResponse) Reset()         { *m = CompareRunsResponse{} }
func (m *CompareRunsResponse) String() string { return proto.CompactTextString(m) }
func (*CompareRunsResponse) ProtoMessage()    {}
