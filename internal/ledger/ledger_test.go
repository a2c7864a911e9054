package ledger

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/ibusnowden/MLRun/internal/common/dbutil"
	"github.com/ibusnowden/MLRun/internal/common/kctx"
	"github.com/ibusnowden/MLRun/internal/metadata"
)

func withLedger(t *testing.T, action func(ctx *kctx.Context, l *Ledger, runID string)) {
	ctx := kctx.New(context.Background(), logrus.NewEntry(logrus.New()))

	migrations, err := metadata.Migrations()
	assert.NoError(t, err)

	err = dbutil.WithTestDb(ctx, migrations, func(pool *pgxpool.Pool) error {
		store := metadata.NewSqlStore(pool)
		project, err := store.CreateProject(ctx, "ledger-test")
		if err != nil {
			return err
		}
		run := &metadata.Run{
			ID:        "run-1",
			ProjectID: project.ID,
			Name:      "run-1",
			Status:    metadata.RunRunning,
		}
		if err := store.CreateRun(ctx, run); err != nil {
			return err
		}
		action(ctx, NewLedger(pool), run.ID)
		return nil
	})
	assert.NoError(t, err)
}

func TestCheck_UnseenBatchIsNew(t *testing.T) {
	withLedger(t, func(ctx *kctx.Context, l *Ledger, runID string) {
		outcome, err := l.Check(ctx, runID, "batch-1", "hash-a")
		assert.NoError(t, err)
		assert.Equal(t, New, outcome)
	})
}

func TestCheck_RecordedBatchWithSameContentIsDuplicate(t *testing.T) {
	withLedger(t, func(ctx *kctx.Context, l *Ledger, runID string) {
		err := l.Record(ctx, runID, "batch-1", "hash-a", 10)
		assert.NoError(t, err)

		outcome, err := l.Check(ctx, runID, "batch-1", "hash-a")
		assert.NoError(t, err)
		assert.Equal(t, Duplicate, outcome)
	})
}

func TestCheck_ReusedBatchIdWithDifferentContentIsConflict(t *testing.T) {
	withLedger(t, func(ctx *kctx.Context, l *Ledger, runID string) {
		err := l.Record(ctx, runID, "batch-1", "hash-a", 10)
		assert.NoError(t, err)

		outcome, err := l.Check(ctx, runID, "batch-1", "hash-b")
		assert.NoError(t, err)
		assert.Equal(t, Conflict, outcome)
	})
}

func TestRecord_FirstWriterWinsOnRetry(t *testing.T) {
	withLedger(t, func(ctx *kctx.Context, l *Ledger, runID string) {
		assert.NoError(t, l.Record(ctx, runID, "batch-1", "hash-a", 10))
		// A concurrent retry racing the first Record must not overwrite
		// the original hash.
		assert.NoError(t, l.Record(ctx, runID, "batch-1", "hash-b", 10))

		outcome, err := l.Check(ctx, runID, "batch-1", "hash-a")
		assert.NoError(t, err)
		assert.Equal(t, Duplicate, outcome)
	})
}

func TestPrune_KeepsRecentEntries(t *testing.T) {
	withLedger(t, func(ctx *kctx.Context, l *Ledger, runID string) {
		assert.NoError(t, l.Record(ctx, runID, "batch-1", "hash-a", 10))

		removed, err := l.Prune(ctx)
		assert.NoError(t, err)
		assert.Zero(t, removed)

		outcome, err := l.Check(ctx, runID, "batch-1", "hash-a")
		assert.NoError(t, err)
		assert.Equal(t, Duplicate, outcome)
	})
}
