// Package grpcutil builds the gRPC server shared by the ingest and query
// daemons: interceptor chain, keepalive policy, and Prometheus metrics.
// No TLS/OIDC machinery lives here; key issuance is handled upstream of
// these services.
package grpcutil

import (
	"context"
	"runtime/debug"
	"time"

	grpcprometheus "github.com/grpc-ecosystem/go-grpc-middleware/providers/prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"

	"github.com/ibusnowden/MLRun/internal/common/kerrors"
	"github.com/ibusnowden/MLRun/internal/common/requestid"
)

// ServerOptions configures NewServer.
type ServerOptions struct {
	KeepaliveParams            keepalive.ServerParameters
	KeepaliveEnforcementPolicy keepalive.EnforcementPolicy
}

// NewServer constructs a *grpc.Server with the standard interceptor chain:
// request-id tagging, panic recovery, structured logging, and error-code
// mapping. Order matters: error mapping must run inside recovery (so a
// panic is never mistaken for a typed error) and outside logging (so
// logging sees the handler's error before it is mapped to a status).
func NewServer(opts ServerOptions) *grpc.Server {
	srvMetrics := grpcprometheus.NewServerMetrics()
	prometheus.MustRegister(srvMetrics)

	return grpc.NewServer(
		grpc.KeepaliveParams(opts.KeepaliveParams),
		grpc.KeepaliveEnforcementPolicy(opts.KeepaliveEnforcementPolicy),
		grpc.ChainUnaryInterceptor(
			srvMetrics.UnaryServerInterceptor(),
			requestIDUnaryInterceptor(),
			recoveryUnaryInterceptor(),
			kerrors.UnaryServerInterceptor(),
			loggingUnaryInterceptor(),
		),
	)
}

func requestIDUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		ctx = requestid.WithValue(ctx, requestid.New())
		return handler(ctx, req)
	}
}

func recoveryUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				logrus.WithField("method", info.FullMethod).
					WithField("stack", string(debug.Stack())).
					Errorf("panic handling request: %v", r)
				err = &panicError{cause: r}
			}
		}()
		return handler(ctx, req)
	}
}

type panicError struct{ cause interface{} }

func (p *panicError) Error() string { return "internal error" }

func loggingUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		entry := logrus.WithField("method", info.FullMethod).WithField("duration_ms", time.Since(start).Milliseconds())
		if id, ok := requestid.FromContext(ctx); ok {
			entry = entry.WithField("request_id", id)
		}
		if err != nil {
			entry.WithError(err).Warn("rpc failed")
		} else {
			entry.Debug("rpc completed")
		}
		return resp, err
	}
}
