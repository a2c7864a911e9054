// Package ingestd wires the ingest daemon: stores, ledger, guard,
// coordinator, background tasks, and both server surfaces — construct
// gateways, mount the services, serve until the root context cancels.
package ingestd

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ibusnowden/MLRun/internal/apiserver"
	"github.com/ibusnowden/MLRun/internal/cardinality"
	"github.com/ibusnowden/MLRun/internal/common/dbutil"
	"github.com/ibusnowden/MLRun/internal/common/grpcutil"
	"github.com/ibusnowden/MLRun/internal/common/kconfig"
	"github.com/ibusnowden/MLRun/internal/common/kctx"
	"github.com/ibusnowden/MLRun/internal/common/servehttp"
	"github.com/ibusnowden/MLRun/internal/common/taskloop"
	"github.com/ibusnowden/MLRun/internal/coordinator"
	"github.com/ibusnowden/MLRun/internal/httpapi"
	"github.com/ibusnowden/MLRun/internal/ledger"
	"github.com/ibusnowden/MLRun/internal/metadata"
	"github.com/ibusnowden/MLRun/internal/metricstore"
	"github.com/ibusnowden/MLRun/internal/rpc"
)

// Run starts the ingest daemon and blocks until ctx is cancelled.
func Run(ctx context.Context, cfg kconfig.IngestConfig) error {
	if cfg.ResumeTokenSecret == "" {
		return errors.New("resumeTokenSecret must be configured")
	}

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
	points := metricstore.New(chConn)
	batchLedger := ledger.NewLedger(pool)
	guard := cardinality.New(cardinality.Limits{
		RunMetricNames:     cfg.Cardinality.RunMetricNames,
		RunTagKeys:         cfg.Cardinality.RunTagKeys,
		ProjectMetricNames: cfg.Cardinality.ProjectMetricNames,
	})
	signer := coordinator.NewTokenSigner([]byte(cfg.ResumeTokenSecret), cfg.ResumeTokenTTL)

	coord := coordinator.New(coordinator.Config{
		HeartbeatTimeout:   cfg.HeartbeatTimeout,
		WatchdogInterval:   cfg.WatchdogInterval,
		ReorderMaxSize:     cfg.Reorder.MaxSize,
		ReorderMaxWait:     cfg.Reorder.MaxWait,
		MaxBatchPoints:     cfg.Batch.MaxPoints,
		MaxBatchBytes:      cfg.Batch.MaxBytes,
		MaxParams:          cfg.Batch.MaxParams,
		MaxParamValueBytes: cfg.Batch.MaxParamValueBytes,
		MaxTagValueBytes:   cfg.Batch.MaxTagValueBytes,
	}, store, points, batchLedger, guard, signer)

	if err := coord.SeedCardinality(kc); err != nil {
		return errors.WithMessage(err, "seeding cardinality counters")
	}

	tasks := taskloop.NewManager("mlrun_ingest_")
	tasks.Register("heartbeat_watchdog", cfg.WatchdogInterval, func() { coord.CheckHeartbeats(kc) })
	tasks.Register("reorder_sweep", 5*time.Second, func() { coord.SweepReorderWindows(kc) })
	tasks.Register("ledger_prune", time.Hour, func() {
		if removed, err := batchLedger.Prune(kc); err != nil {
			kc.Log.WithError(err).Warn("ledger prune failed")
		} else if removed > 0 {
			kc.Log.WithField("removed", removed).Info("pruned expired ledger entries")
		}
	})
	defer tasks.StopAll(5 * time.Second)

	stopMetrics := servehttp.ServeMetrics(cfg.MetricsPort)
	defer stopMetrics()

	grpcServer := grpcutil.NewServer(grpcutil.ServerOptions{})
	rpc.RegisterIngestServiceServer(grpcServer, apiserver.NewIngestService(coord))

	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.BindHost, cfg.GrpcPort))
	if err != nil {
		return errors.WithStack(err)
	}
	go func() {
		kc.Log.WithField("port", cfg.GrpcPort).Info("ingest grpc server listening")
		if err := grpcServer.Serve(lis); err != nil {
			kc.Log.WithError(err).Error("grpc server stopped")
		}
	}()
	defer grpcServer.GracefulStop()

	e := httpapi.NewServer(cfg.Compression)
	httpapi.RegisterIngest(e, coord)
	go func() {
		kc.Log.WithField("port", cfg.HttpPort).Info("ingest http server listening")
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
	kc.Log.Info("ingest daemon shutting down")
	return nil
}
