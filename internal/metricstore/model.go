// Package metricstore implements the metrics store gateway: the
// ClickHouse-backed time-series store for logged metric points and their
// running per-run summary.
package metricstore

import "time"

// Point is one (run, metric, step) observation.
type Point struct {
	RunID        string    `ch:"run_id"`
	MetricName   string    `ch:"metric_name"`
	Step         int64     `ch:"step"`
	Value        float64   `ch:"value"`
	WallTime     time.Time `ch:"wall_time"`
	RelativeTime float64   `ch:"relative_time"`
}

// SummaryRow is one row of the materialized per-run, per-metric summary
// projection (latest value, min, max, count, observation span) that backs
// get_run and list_runs previews without scanning the full point table.
type SummaryRow struct {
	RunID      string    `ch:"run_id"`
	MetricName string    `ch:"metric_name"`
	LastValue  float64   `ch:"last_value"`
	LastStep   int64     `ch:"last_step"`
	MinValue   float64   `ch:"min_value"`
	MaxValue   float64   `ch:"max_value"`
	Count      uint64    `ch:"count"`
	FirstSeen  time.Time `ch:"first_seen"`
	LastSeen   time.Time `ch:"last_seen"`
}

// SeriesKey identifies one logical series, used when rebuilding the
// cardinality guard from the summary projection.
type SeriesKey struct {
	RunID      string `ch:"run_id"`
	MetricName string `ch:"metric_name"`
}
