package metadata

import (
	"context"
	"embed"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ibusnowden/MLRun/internal/common/dbutil"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrations returns this store's embedded migration set, for callers
// (schema migrators, test helpers) that need the list without opening a
// pool.
func Migrations() ([]dbutil.Migration, error) {
	return dbutil.ReadMigrations(migrationsFS, "migrations")
}

// Migrate brings the metadata database's schema up to date, applying any
// migration newer than its recorded version.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	migrations, err := Migrations()
	if err != nil {
		return err
	}
	return dbutil.UpdateDatabase(ctx, pool, migrations)
}
