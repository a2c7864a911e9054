// Package ledger implements the idempotency ledger: a record of every
// log_metrics batch a run has successfully ingested, keyed by the client's
// batch id, so a retried RPC after a dropped response is recognized as a
// duplicate instead of double-applied. It shares the jackc/pgx/v5 pool
// with internal/metadata, since both live in the same database.
//
// The ledger row is written only after the metric points have landed in
// the metrics store — the ledger insert is the linearization point of the
// two-store write. Check therefore only reads; a crash between the points
// write and Record leaves the batch unrecorded, and the client's retry
// re-inserts points the metrics store dedups by (run, name, step).
package ledger

import (
	"time"

	"github.com/avast/retry-go"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/ibusnowden/MLRun/internal/common/kctx"
)

// Outcome classifies a batch id against the ledger.
type Outcome int

const (
	// New means this batch id has not been recorded for this run; the
	// caller should apply the batch and then Record it.
	New Outcome = iota
	// Duplicate means this exact batch (same id, same content hash) was
	// already recorded; the caller must treat the points as already
	// applied and return the original success response.
	Duplicate
	// Conflict means this batch id was already recorded with a different
	// content hash — the client reused an id for different data. The
	// original data is preserved and the retry is reported as benign.
	Conflict
)

// Retention is the minimum time a ledger entry is kept.
const Retention = 24 * time.Hour

// Ledger is the idempotency ledger gateway. Rows expire after the
// retention horizon; a read past expiry treats the batch as New, a
// bounded replay risk the contract accepts.
type Ledger struct {
	pool      *pgxpool.Pool
	retention time.Duration
}

func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool, retention: Retention}
}

// Check classifies batchID against the ledger without writing anything.
// Transient connection errors are retried.
func (l *Ledger) Check(ctx *kctx.Context, runID, batchID, contentHash string) (Outcome, error) {
	var outcome Outcome
	err := retry.Do(
		func() error {
			row := l.pool.QueryRow(ctx, `
				SELECT content_hash FROM ingest_batches
				WHERE run_id = $1 AND client_batch_id = $2 AND received_at > now() - $3::interval`,
				runID, batchID, l.retention.String())

			var storedHash string
			if err := row.Scan(&storedHash); err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					outcome = New
					return nil
				}
				return errors.WithStack(err)
			}
			if storedHash != contentHash {
				outcome = Conflict
			} else {
				outcome = Duplicate
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(50*time.Millisecond),
		retry.RetryIf(isTransient),
	)
	if err != nil {
		return 0, err
	}
	return outcome, nil
}

// Record persists the batch after its points have been written. The first
// writer wins on a concurrent retry; a row already present under the same
// key is left untouched.
func (l *Ledger) Record(ctx *kctx.Context, runID, batchID, contentHash string, pointCount int) error {
	return retry.Do(
		func() error {
			_, err := l.pool.Exec(ctx, `
				INSERT INTO ingest_batches (run_id, client_batch_id, content_hash, point_count, received_at)
				VALUES ($1, $2, $3, $4, now())
				ON CONFLICT (run_id, client_batch_id) DO NOTHING`,
				runID, batchID, contentHash, pointCount)
			return errors.WithStack(err)
		},
		retry.Attempts(3),
		retry.Delay(50*time.Millisecond),
		retry.RetryIf(isTransient),
	)
}

// Prune deletes entries older than the retention horizon, keeping the
// table bounded; registered as a background task on the ingest daemon.
// Returns the number of rows removed.
func (l *Ledger) Prune(ctx *kctx.Context) (int64, error) {
	tag, err := l.pool.Exec(ctx, `DELETE FROM ingest_batches WHERE received_at < now() - $1::interval`, l.retention.String())
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return tag.RowsAffected(), nil
}

func isTransient(err error) bool {
	return !errors.Is(err, pgx.ErrNoRows)
}
