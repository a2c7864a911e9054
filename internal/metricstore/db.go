package metricstore

import (
	"database/sql"
	"embed"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/ibusnowden/MLRun/internal/common/kctx"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// OpenClickHouse dials the metrics store and verifies the connection
// with a ping before handing it out.
func OpenClickHouse(ctx *kctx.Context, addr, database, username, password string) (clickhouse.Conn, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "could not connect to clickhouse on %s", addr)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, errors.WithMessagef(err, "failed to ping clickhouse at %s", addr)
	}
	return conn, nil
}

// Migrate applies the embedded goose migrations against dsn using the
// "clickhouse" dialect.
func Migrate(dsn string) error {
	db, err := sql.Open("clickhouse", dsn)
	if err != nil {
		return errors.WithMessage(err, "error opening connection to clickhouse")
	}
	defer db.Close()

	goose.SetBaseFS(embeddedMigrations)
	if err := goose.SetDialect("clickhouse"); err != nil {
		return errors.WithMessage(err, "failed to set goose dialect")
	}
	if err := goose.Up(db, "migrations"); err != nil && !errors.Is(err, goose.ErrNoNextVersion) {
		return errors.WithMessage(err, "failed to run metric store migrations")
	}
	return nil
}
