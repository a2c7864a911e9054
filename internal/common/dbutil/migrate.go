// Package dbutil opens pool connections and applies embedded SQL
// migrations: a version sequence in the target database tracks which of
// the sorted, numbered migration files have been applied.
package dbutil

import (
	"context"
	"embed"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Migration is one numbered SQL file applied at most once per database.
type Migration struct {
	ID   int
	Name string
	SQL  string
}

// ReadMigrations loads every "<n>_name.sql" file under dir in ascending
// numeric order.
func ReadMigrations(embedded embed.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(embedded, dir)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	migrations := make([]Migration, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		contents, err := fs.ReadFile(embedded, dir+"/"+e.Name())
		if err != nil {
			return nil, errors.WithStack(err)
		}
		idStr := strings.SplitN(e.Name(), "_", 2)[0]
		id, err := strconv.Atoi(idStr)
		if err != nil {
			return nil, errors.Wrapf(err, "migration file %q does not start with a numeric id", e.Name())
		}
		migrations = append(migrations, Migration{ID: id, Name: e.Name(), SQL: string(contents)})
	}
	return migrations, nil
}

// UpdateDatabase applies every migration newer than the database's
// recorded version, inside its own transaction, advancing the version
// sequence as it goes.
func UpdateDatabase(ctx context.Context, pool *pgxpool.Pool, migrations []Migration) error {
	log.Info("applying schema migrations")

	version, err := currentVersion(ctx, pool)
	if err != nil {
		return err
	}
	log.Infof("current schema version %d", version)

	for _, m := range migrations {
		if m.ID <= version {
			continue
		}
		tx, err := pool.Begin(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if _, err := tx.Exec(ctx, m.SQL); err != nil {
			_ = tx.Rollback(ctx)
			return errors.Wrapf(err, "applying migration %s", m.Name)
		}
		if _, err := tx.Exec(ctx, `SELECT setval('schema_version', $1)`, m.ID); err != nil {
			_ = tx.Rollback(ctx)
			return errors.WithStack(err)
		}
		if err := tx.Commit(ctx); err != nil {
			return errors.WithStack(err)
		}
		version = m.ID
		log.Infof("applied migration %s", m.Name)
	}
	return nil
}

func currentVersion(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	if _, err := pool.Exec(ctx, `CREATE SEQUENCE IF NOT EXISTS schema_version START WITH 0 MINVALUE 0`); err != nil {
		return 0, errors.WithStack(err)
	}
	var version int
	if err := pool.QueryRow(ctx, `SELECT last_value FROM schema_version`).Scan(&version); err != nil {
		return 0, errors.WithStack(err)
	}
	return version, nil
}

// OpenPgxPool opens a connection pool against dsn and verifies it with a
// ping.
func OpenPgxPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "opening postgres pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "pinging postgres")
	}
	return pool, nil
}
