// Package rpc holds the wire-level request/response types shared by the
// gRPC and HTTP/JSON surfaces, plus the hand-authored service descriptors
// binding them to grpc-go. The message structs follow the gogo/protobuf
// generated-code shape (Reset/String/ProtoMessage plus protobuf field
// tags) so the reflection-based marshaler can encode them without a
// protoc codegen step; the json tags make the same structs the single
// payload definition for the echo surface.
package rpc

import (
	proto "github.com/gogo/protobuf/proto"
)

// Warning is a degraded-but-successful condition attached to a response.
type Warning struct {
	Code     string `protobuf:"bytes,1,opt,name=code,proto3" json:"code"`
	Message  string `protobuf:"bytes,2,opt,name=message,proto3" json:"message"`
	Severity string `protobuf:"bytes,3,opt,name=severity,proto3" json:"severity"`
}

func (m *Warning) Reset()         { *m = Warning{} }
func (m *Warning) String() string { return proto.CompactTextString(m) }
func (*Warning) ProtoMessage()    {}

// Warning codes. These are the complete fixed enum; both surfaces carry
// them verbatim.
const (
	WarnInvalidMetricName           = "INVALID_METRIC_NAME"
	WarnBatchTruncated              = "BATCH_TRUNCATED"
	WarnDuplicateBatch              = "DUPLICATE_BATCH"
	WarnClockSkew                   = "CLOCK_SKEW"
	WarnStepNegative                = "STEP_NEGATIVE"
	WarnCardinalityLimitApproaching = "CARDINALITY_LIMIT_APPROACHING"
	WarnCardinalityLimitExceeded    = "CARDINALITY_LIMIT_EXCEEDED"
	WarnParamConflict               = "PARAM_CONFLICT"
)

// Warning severities.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
)

type InitRunRequest struct {
	Project     string            `protobuf:"bytes,1,opt,name=project,proto3" json:"project"`
	RunId       string            `protobuf:"bytes,2,opt,name=run_id,json=runId,proto3" json:"run_id,omitempty"`
	Name        string            `protobuf:"bytes,3,opt,name=name,proto3" json:"name,omitempty"`
	Tags        map[string]string `protobuf:"bytes,4,rep,name=tags,proto3" json:"tags,omitempty" protobuf_key:"bytes,1,opt,name=key,proto3" protobuf_val:"bytes,2,opt,name=value,proto3"`
	SystemInfo  map[string]string `protobuf:"bytes,5,rep,name=system_info,json=systemInfo,proto3" json:"system_info,omitempty" protobuf_key:"bytes,1,opt,name=key,proto3" protobuf_val:"bytes,2,opt,name=value,proto3"`
	ParentRunId string            `protobuf:"bytes,6,opt,name=parent_run_id,json=parentRunId,proto3" json:"parent_run_id,omitempty"`
	ResumeToken string            `protobuf:"bytes,7,opt,name=resume_token,json=resumeToken,proto3" json:"resume_token,omitempty"`
}

func (m *InitRunRequest) Reset()         { *m = InitRunRequest{} }
func (m *InitRunRequest) String() string { return proto.CompactTextString(m) }
func (*InitRunRequest) ProtoMessage()    {}

type InitRunResponse struct {
	RunId       string `protobuf:"bytes,1,opt,name=run_id,json=runId,proto3" json:"run_id"`
	ResumeToken string `protobuf:"bytes,2,opt,name=resume_token,json=resumeToken,proto3" json:"resume_token"`
	Resumed     bool   `protobuf:"varint,3,opt,name=resumed,proto3" json:"resumed"`
}

func (m *InitRunResponse) Reset()         { *m = InitRunResponse{} }
func (m *InitRunResponse) String() string { return proto.CompactTextString(m) }
func (*InitRunResponse) ProtoMessage()    {}

// MetricPoint is one observation in a LogMetrics batch. Value carries the
// raw IEEE double, NaN and infinities included.
type MetricPoint struct {
	Name        string  `protobuf:"bytes,1,opt,name=name,proto3" json:"name"`
	Step        int64   `protobuf:"varint,2,opt,name=step,proto3" json:"step"`
	Value       float64 `protobuf:"fixed64,3,opt,name=value,proto3" json:"value"`
	TimestampMs int64   `protobuf:"varint,4,opt,name=timestamp_ms,json=timestampMs,proto3" json:"timestamp_ms,omitempty"`
}

func (m *MetricPoint) Reset()         { *m = MetricPoint{} }
func (m *MetricPoint) String() string { return proto.CompactTextString(m) }
func (*MetricPoint) ProtoMessage()    {}

type LogMetricsRequest struct {
	RunId   string         `protobuf:"bytes,1,opt,name=run_id,json=runId,proto3" json:"run_id"`
	BatchId string         `protobuf:"bytes,2,opt,name=batch_id,json=batchId,proto3" json:"batch_id"`
	Points  []*MetricPoint `protobuf:"bytes,3,rep,name=points,proto3" json:"points"`
	// Sequence orders batches within a run for the reorder window; a batch
	// with Sequenced=false bypasses the window entirely.
	Sequence  int64 `protobuf:"varint,4,opt,name=sequence,proto3" json:"sequence,omitempty"`
	Sequenced bool  `protobuf:"varint,5,opt,name=sequenced,proto3" json:"sequenced,omitempty"`
}

func (m *LogMetricsRequest) Reset()         { *m = LogMetricsRequest{} }
func (m *LogMetricsRequest) String() string { return proto.CompactTextString(m) }
func (*LogMetricsRequest) ProtoMessage()    {}

type LogMetricsResponse struct {
	AcceptedCount     int32      `protobuf:"varint,1,opt,name=accepted_count,json=acceptedCount,proto3" json:"accepted_count"`
	DeduplicatedCount int32      `protobuf:"varint,2,opt,name=deduplicated_count,json=deduplicatedCount,proto3" json:"deduplicated_count"`
	Warnings          []*Warning `protobuf:"bytes,3,rep,name=warnings,proto3" json:"warnings"`
}

func (m *LogMetricsResponse) Reset()         { *m = LogMetricsResponse{} }
func (m *LogMetricsResponse) String() string { return proto.CompactTextString(m) }
func (*LogMetricsResponse) ProtoMessage()    {}

// Param is a (name, value, declared type) triple; Type is one of
// string|float|int|bool|json.
type Param struct {
	Name  string `protobuf:"bytes,1,opt,name=name,proto3" json:"name"`
	Value string `protobuf:"bytes,2,opt,name=value,proto3" json:"value"`
	Type  string `protobuf:"bytes,3,opt,name=type,proto3" json:"type"`
}

func (m *Param) Reset()         { *m = Param{} }
func (m *Param) String() string { return proto.CompactTextString(m) }
func (*Param) ProtoMessage()    {}

type LogParamsRequest struct {
	RunId  string   `protobuf:"bytes,1,opt,name=run_id,json=runId,proto3" json:"run_id"`
	Params []*Param `protobuf:"bytes,2,rep,name=params,proto3" json:"params"`
}

func (m *LogParamsRequest) Reset()         { *m = LogParamsRequest{} }
func (m *LogParamsRequest) String() string { return proto.CompactTextString(m) }
func (*LogParamsRequest) ProtoMessage()    {}

type LogParamsResponse struct {
	Warnings []*Warning `protobuf:"bytes,1,rep,name=warnings,proto3" json:"warnings"`
}

func (m *LogParamsResponse) Reset()         { *m = LogParamsResponse{} }
func (m *LogParamsResponse) String() string { return proto.CompactTextString(m) }
func (*LogParamsResponse) ProtoMessage()    {}

type LogTagsRequest struct {
	RunId      string            `protobuf:"bytes,1,opt,name=run_id,json=runId,proto3" json:"run_id"`
	Set        map[string]string `protobuf:"bytes,2,rep,name=set,proto3" json:"set,omitempty" protobuf_key:"bytes,1,opt,name=key,proto3" protobuf_val:"bytes,2,opt,name=value,proto3"`
	RemoveKeys []string          `protobuf:"bytes,3,rep,name=remove_keys,json=removeKeys,proto3" json:"remove_keys,omitempty"`
}

func (m *LogTagsRequest) Reset()         { *m = LogTagsRequest{} }
func (m *LogTagsRequest) String() string { return proto.CompactTextString(m) }
func (*LogTagsRequest) ProtoMessage()    {}

type LogTagsResponse struct {
	Warnings []*Warning `protobuf:"bytes,1,rep,name=warnings,proto3" json:"warnings"`
}

func (m *LogTagsResponse) Reset()         { *m = LogTagsResponse{} }
func (m *LogTagsResponse) String() string { return proto.CompactTextString(m) }
func (*LogTagsResponse) ProtoMessage()    {}

type HeartbeatRequest struct {
	RunId string `protobuf:"bytes,1,opt,name=run_id,json=runId,proto3" json:"run_id"`
}

func (m *HeartbeatRequest) Reset()         { *m = HeartbeatRequest{} }
func (m *HeartbeatRequest) String() string { return proto.CompactTextString(m) }
func (*HeartbeatRequest) ProtoMessage()    {}

type HeartbeatResponse struct{}

func (m *HeartbeatResponse) Reset()         { *m = HeartbeatResponse{} }
func (m *HeartbeatResponse) String() string { return proto.CompactTextString(m) }
func (*HeartbeatResponse) ProtoMessage()    {}

type FinishRunRequest struct {
	RunId string `protobuf:"bytes,1,opt,name=run_id,json=runId,proto3" json:"run_id"`
	// Status must be one of finished|failed|killed; crashed is only ever
	// set by the server's watchdog.
	Status      string `protobuf:"bytes,2,opt,name=status,proto3" json:"status"`
	ExitCode    int32  `protobuf:"varint,3,opt,name=exit_code,json=exitCode,proto3" json:"exit_code,omitempty"`
	HasExitCode bool   `protobuf:"varint,4,opt,name=has_exit_code,json=hasExitCode,proto3" json:"has_exit_code,omitempty"`
	Error       string `protobuf:"bytes,5,opt,name=error,proto3" json:"error,omitempty"`
}

func (m *FinishRunRequest) Reset()         { *m = FinishRunRequest{} }
func (m *FinishRunRequest) String() string { return proto.CompactTextString(m) }
func (*FinishRunRequest) ProtoMessage()    {}

type FinishRunResponse struct{}

func (m *FinishRunResponse) Reset()         { *m = FinishRunResponse{} }
func (m *FinishRunResponse) String() string { return proto.CompactTextString(m) }
func (*FinishRunResponse) ProtoMessage()    {}
