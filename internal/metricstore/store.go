package metricstore

import (
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/pkg/errors"

	"github.com/ibusnowden/MLRun/internal/common/kctx"
)

// Store is the ClickHouse-backed gateway the coordinator writes through and
// the query engine reads through.
type Store struct {
	conn clickhouse.Conn
}

func New(conn clickhouse.Conn) *Store {
	return &Store{conn: conn}
}

// InsertPoints writes a batch of points using the native batch protocol,
// the bulk-insert idiom clickhouse-go/v2 favors over row-by-row Exec
// calls; metric points arrive in large batches, so one PrepareBatch
// round trip amortizes far better than per-row statements. Duplicate
// (run, name, step) rows are tolerated; the replacing merge keeps the row
// with the newest ingest timestamp.
func (s *Store) InsertPoints(ctx *kctx.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO metric_points (run_id, metric_name, step, value, wall_time, relative_time)")
	if err != nil {
		return errors.WithStack(err)
	}
	for _, p := range points {
		if err := batch.Append(p.RunID, p.MetricName, p.Step, p.Value, p.WallTime, p.RelativeTime); err != nil {
			return errors.WithStack(err)
		}
	}
	return errors.WithStack(batch.Send())
}

// SeriesRange bounds a FetchSeries read; zero-valued fields are treated as
// unbounded by the caller filling in sentinels.
type SeriesRange struct {
	MinStep int64
	MaxStep int64
	MinTime time.Time
	MaxTime time.Time
}

// FetchSeries returns every point for runID/metricName within the range,
// ordered by step. FINAL collapses unmerged duplicate rows so the read
// sees the replacing merge's most-recent-wins result regardless of
// background merge progress.
func (s *Store) FetchSeries(ctx *kctx.Context, runID, metricName string, r SeriesRange) ([]Point, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT run_id, metric_name, step, value, wall_time, relative_time
		FROM metric_points FINAL
		WHERE run_id = $1 AND metric_name = $2
		  AND step BETWEEN $3 AND $4
		  AND wall_time BETWEEN $5 AND $6
		ORDER BY step ASC`,
		runID, metricName, r.MinStep, r.MaxStep, r.MinTime, r.MaxTime)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer rows.Close()

	var points []Point
	for rows.Next() {
		var p Point
		if err := rows.Scan(&p.RunID, &p.MetricName, &p.Step, &p.Value, &p.WallTime, &p.RelativeTime); err != nil {
			return nil, errors.WithStack(err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// FetchSummary reads the AggregatingMergeTree projection for every metric
// logged against runID, merging the partial aggregate states with the
// `-Merge` combinator so the query sees one row per metric regardless of
// how many unmerged parts the background merge has not yet collapsed.
func (s *Store) FetchSummary(ctx *kctx.Context, runID string) ([]SummaryRow, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT
			run_id,
			metric_name,
			argMaxMerge(last_value_state) AS last_value,
			maxMerge(last_step_state)     AS last_step,
			minMerge(min_value_state)     AS min_value,
			maxMerge(max_value_state)     AS max_value,
			countMerge(count_state)       AS count,
			minMerge(first_seen_state)    AS first_seen,
			maxMerge(last_seen_state)     AS last_seen
		FROM metric_summary
		WHERE run_id = $1
		GROUP BY run_id, metric_name`, runID)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer rows.Close()

	var summaries []SummaryRow
	for rows.Next() {
		var r SummaryRow
		if err := rows.Scan(&r.RunID, &r.MetricName, &r.LastValue, &r.LastStep, &r.MinValue, &r.MaxValue, &r.Count, &r.FirstSeen, &r.LastSeen); err != nil {
			return nil, errors.WithStack(err)
		}
		summaries = append(summaries, r)
	}
	return summaries, rows.Err()
}

// MetricNames lists the distinct metric names logged for runID, used by
// the query engine to expand a fetch that names no metrics.
func (s *Store) MetricNames(ctx *kctx.Context, runID string) ([]string, error) {
	rows, err := s.conn.Query(ctx, `SELECT DISTINCT metric_name FROM metric_points WHERE run_id = $1 ORDER BY metric_name`, runID)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.WithStack(err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// AllSeries enumerates every (run, metric) pair in the summary projection,
// the one boot-time scan the cardinality guard reseeds from.
func (s *Store) AllSeries(ctx *kctx.Context) ([]SeriesKey, error) {
	rows, err := s.conn.Query(ctx, `SELECT DISTINCT run_id, metric_name FROM metric_summary`)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer rows.Close()

	var series []SeriesKey
	for rows.Next() {
		var k SeriesKey
		if err := rows.Scan(&k.RunID, &k.MetricName); err != nil {
			return nil, errors.WithStack(err)
		}
		series = append(series, k)
	}
	return series, rows.Err()
}
