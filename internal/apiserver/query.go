package apiserver

import (
	"context"

	"github.com/ibusnowden/MLRun/internal/query"
	"github.com/ibusnowden/MLRun/internal/rpc"
)

// QueryService exposes the query engine over gRPC.
type QueryService struct {
	engine *query.Engine
}

func NewQueryService(e *query.Engine) *QueryService {
	return &QueryService{engine: e}
}

var _ rpc.QueryServiceServer = (*QueryService)(nil)

func (s *QueryService) ListRuns(ctx context.Context, req *rpc.ListRunsRequest) (*rpc.ListRunsResponse, error) {
	return s.engine.ListRuns(wrap(ctx), req)
}

func (s *QueryService) GetRun(ctx context.Context, req *rpc.GetRunRequest) (*rpc.GetRunResponse, error) {
	return s.engine.GetRun(wrap(ctx), req)
}

func (s *QueryService) GetMetrics(ctx context.Context, req *rpc.GetMetricsRequest) (*rpc.GetMetricsResponse, error) {
	return s.engine.GetMetrics(wrap(ctx), req)
}

func (s *QueryService) CompareRuns(ctx context.Context, req *rpc.CompareRunsRequest) (*rpc.CompareRunsResponse, error) {
	return s.engine.CompareRuns(wrap(ctx), req)
}
