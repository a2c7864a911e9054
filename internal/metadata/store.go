package metadata

import (
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/ibusnowden/MLRun/internal/common/kctx"
	"github.com/ibusnowden/MLRun/internal/common/kerrors"
)

// Store is the interface the coordinator and query engine depend on.
// SqlStore is the only production implementation; the interface exists so
// coordinator/query tests can substitute an in-memory fake.
type Store interface {
	CreateProject(ctx *kctx.Context, name string) (*Project, error)
	GetProject(ctx *kctx.Context, name string) (*Project, error)

	CreateRun(ctx *kctx.Context, run *Run) error
	GetRun(ctx *kctx.Context, runID string) (*Run, error)
	// UpdateRunStatus performs an optimistic-concurrency transition: it
	// only applies if the row's current status equals expectCurrent,
	// preventing double-finalization.
	UpdateRunStatus(ctx *kctx.Context, runID string, expectCurrent RunStatus, next RunStatus, exitCode *int32, errMsg *string) (bool, error)
	TouchHeartbeat(ctx *kctx.Context, runID string) error
	SetResumeToken(ctx *kctx.Context, runID, jti string, expires time.Time) error
	ClearResumeToken(ctx *kctx.Context, runID string) error

	UpsertParam(ctx *kctx.Context, p Parameter) (conflict bool, existing string, err error)
	UpsertTags(ctx *kctx.Context, runID string, tags map[string]string) error
	DeleteTags(ctx *kctx.Context, runID string, keys []string) error

	ListRuns(ctx *kctx.Context, filters []Filter, sort SortOrder, cursor string, limit int) (runs []*Run, nextCursor string, estimatedTotal int64, err error)

	// RunningRunsOlderThan returns run ids currently `running` whose
	// heartbeat predates cutoff, for the watchdog.
	RunningRunsOlderThan(ctx *kctx.Context, cutoff time.Time) ([]string, error)

	// ListParams returns every parameter recorded for runID.
	ListParams(ctx *kctx.Context, runID string) ([]Parameter, error)

	// LiveRunProjects maps run id to project id for every non-terminal
	// run, used to rebuild cardinality counters at boot.
	LiveRunProjects(ctx *kctx.Context) (map[string]string, error)

	// LiveRunTagKeys maps run id to its tag keys for every non-terminal
	// run, for the same rebuild.
	LiveRunTagKeys(ctx *kctx.Context) (map[string][]string, error)
}

// NewSqlStore opens a typed gateway over an existing pgx pool. Pool
// lifecycle (creation, close) is the caller's responsibility.
func NewSqlStore(pool *pgxpool.Pool) *SqlStore {
	return &SqlStore{pool: pool}
}

// SqlStore is the Postgres-backed implementation of Store.
type SqlStore struct {
	pool *pgxpool.Pool
}

func wrapNotFound(typ, value string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return &kerrors.ErrNotFound{Type: typ, Value: value}
	}
	return errors.WithStack(err)
}
