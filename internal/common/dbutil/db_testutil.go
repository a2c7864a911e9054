package dbutil

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid"
	"github.com/pkg/errors"
)

// WithTestDb spins up a throwaway Postgres database, applies migrations,
// and invokes action against a pool connected to it. Tests using this
// helper require a
// reachable local Postgres instance and are meant to be run with the rest
// of the integration suite, not under `go test ./...` on a bare checkout.
func WithTestDb(ctx context.Context, migrations []Migration, action func(pool *pgxpool.Pool) error) error {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	dbName := "test_" + ulid.MustNew(ulid.Now(), entropy).String()
	connStr := "host=localhost port=5432 user=postgres password=psw sslmode=disable"

	admin, err := pgx.Connect(ctx, connStr)
	if err != nil {
		return errors.WithStack(err)
	}
	defer admin.Close(ctx)

	if _, err := admin.Exec(ctx, "CREATE DATABASE "+dbName); err != nil {
		return errors.WithStack(err)
	}
	defer func() {
		_, _ = admin.Exec(ctx, fmt.Sprintf(
			`SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = '%s'`, dbName))
		_, _ = admin.Exec(ctx, "DROP DATABASE "+dbName)
	}()

	pool, err := pgxpool.New(ctx, connStr+" dbname="+dbName)
	if err != nil {
		return errors.WithStack(err)
	}
	defer pool.Close()

	if err := UpdateDatabase(ctx, pool, migrations); err != nil {
		return errors.WithStack(err)
	}
	return action(pool)
}
