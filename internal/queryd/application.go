// Package queryd wires the query daemon: read-only gateways, the query
// engine, and both server surfaces.
package queryd

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ibusnowden/MLRun/internal/apiserver"
	"github.com/ibusnowden/MLRun/internal/common/dbutil"
	"github.com/ibusnowden/MLRun/internal/common/grpcutil"
	"github.com/ibusnowden/MLRun/internal/common/kconfig"
	"github.com/ibusnowden/MLRun/internal/common/kctx"
	"github.com/ibusnowden/MLRun/internal/common/servehttp"
	"github.com/ibusnowden/MLRun/internal/httpapi"
	"github.com/ibusnowden/MLRun/internal/metadata"
	"github.com/ibusnowden/MLRun/internal/metricstore"
	"github.com/ibusnowden/MLRun/internal/query"
	"github.com/ibusnowden/MLRun/internal/rpc"
)

// Run starts the query daemon and blocks until ctx is cancelled.
func Run(ctx context.Context, cfg kconfig.QueryConfig) error {
	kc := kctx.New(ctx, logrus.NewEntry(logrus.StandardLogger()))

	pool, err := dbutil.OpenPgxPool(ctx, cfg.Postgres.ConnectionString)
	if err != nil {
		return err
	}
	defer pool.Close()

	chConn, err := metricstore.OpenClickHouse(kc, cfg.ClickHouse.Addr, cfg.ClickHouse.Database, cfg.ClickHouse.Username, cfg.ClickHouse.Password)
	if err != nil {
		return err
	}
	defer chConn.Close()

	store := metadata.NewSqlStore(pool)
	series := metricstore.New(chConn)
	engine := query.NewEngine(store, series, cfg.CacheTTL)

	stopMetrics := servehttp.ServeMetrics(cfg.MetricsPort)
	defer stopMetrics()

	grpcServer := grpcutil.NewServer(grpcutil.ServerOptions{})
	rpc.RegisterQueryServiceServer(grpcServer, apiserver.NewQueryService(engine))

	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.BindHost, cfg.GrpcPort))
	if err != nil {
		return errors.WithStack(err)
	}
	go func() {
		kc.Log.WithField("port", cfg.GrpcPort).Info("query grpc server listening")
		if err := grpcServer.Serve(lis); err != nil {
			kc.Log.WithError(err).Error("grpc server stopped")
		}
	}()
	defer grpcServer.GracefulStop()

	e := httpapi.NewServer(cfg.Compression)
	httpapi.RegisterQuery(e, engine)
	go func() {
		kc.Log.WithField("port", cfg.HttpPort).Info("query http server listening")
		if err := e.Start(fmt.Sprintf("%s:%d", cfg.BindHost, cfg.HttpPort)); err != nil {
			kc.Log.WithError(err).Info("http server stopped")
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpapi.Shutdown(shutdownCtx, e)
	}()

	<-ctx.Done()
	kc.Log.Info("query daemon shutting down")
	return nil
}
