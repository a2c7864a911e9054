// Package apiserver binds the coordinator and query engine to the wire
// service interfaces. Each adapter wraps the incoming context.Context into
// a kctx.Context carrying a request-scoped logger, the one seam between
// transport plumbing and the engines' typed methods.
package apiserver

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/ibusnowden/MLRun/internal/common/kctx"
	"github.com/ibusnowden/MLRun/internal/common/requestid"
	"github.com/ibusnowden/MLRun/internal/coordinator"
	"github.com/ibusnowden/MLRun/internal/rpc"
)

func wrap(ctx context.Context) *kctx.Context {
	entry := logrus.NewEntry(logrus.StandardLogger())
	if id, ok := requestid.FromContext(ctx); ok {
		entry = entry.WithField("request_id", id)
	}
	return kctx.New(ctx, entry)
}

// IngestService exposes the coordinator over gRPC.
type IngestService struct {
	coordinator *coordinator.Coordinator
}

func NewIngestService(c *coordinator.Coordinator) *IngestService {
	return &IngestService{coordinator: c}
}

var _ rpc.IngestServiceServer = (*IngestService)(nil)

func (s *IngestService) InitRun(ctx context.Context, req *rpc.InitRunRequest) (*rpc.InitRunResponse, error) {
	return s.coordinator.InitRun(wrap(ctx), req)
}

func (s *IngestService) LogMetrics(ctx context.Context, req *rpc.LogMetricsRequest) (*rpc.LogMetricsResponse, error) {
	return s.coordinator.LogMetrics(wrap(ctx), req)
}

func (s *IngestService) LogParams(ctx context.Context, req *rpc.LogParamsRequest) (*rpc.LogParamsResponse, error) {
	return s.coordinator.LogParams(wrap(ctx), req)
}

func (s *IngestService) LogTags(ctx context.Context, req *rpc.LogTagsRequest) (*rpc.LogTagsResponse, error) {
	return s.coordinator.LogTags(wrap(ctx), req)
}

func (s *IngestService) Heartbeat(ctx context.Context, req *rpc.HeartbeatRequest) (*rpc.HeartbeatResponse, error) {
	return s.coordinator.Heartbeat(wrap(ctx), req)
}

func (s *IngestService) FinishRun(ctx context.Context, req *rpc.FinishRunRequest) (*rpc.FinishRunResponse, error) {
	return s.coordinator.FinishRun(wrap(ctx), req)
}
