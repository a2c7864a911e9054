package metadata

import (
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/ibusnowden/MLRun/internal/common/kctx"
)

func (s *SqlStore) CreateProject(ctx *kctx.Context, name string) (*Project, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO projects (id, name, created_at)
		VALUES (gen_random_uuid(), $1, now())
		ON CONFLICT (name) DO UPDATE SET name = excluded.name
		RETURNING id, name, created_at`, name)

	p := &Project{}
	if err := row.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
		return nil, errors.WithStack(err)
	}
	return p, nil
}

func (s *SqlStore) GetProject(ctx *kctx.Context, name string) (*Project, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, created_at, deleted_at
		FROM projects WHERE name = $1 AND deleted_at IS NULL`, name)

	p := &Project{}
	if err := row.Scan(&p.ID, &p.Name, &p.CreatedAt, &p.DeletedAt); err != nil {
		return nil, wrapNotFound("project", name, err)
	}
	return p, nil
}

func (s *SqlStore) CreateRun(ctx *kctx.Context, run *Run) error {
	tags, err := json.Marshal(run.Tags)
	if err != nil {
		return errors.WithStack(err)
	}
	sysInfo, err := json.Marshal(run.SystemInfo)
	if err != nil {
		return errors.WithStack(err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO runs (id, project_id, name, status, parent_run_id, tags, system_info, created_at, started_at, heartbeat_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8, $8)`,
		run.ID, run.ProjectID, run.Name, string(run.Status), run.ParentRunID, tags, sysInfo, run.CreatedAt)
	if err != nil {
		return errors.WithStack(err)
	}
	return nil
}

func (s *SqlStore) GetRun(ctx *kctx.Context, runID string) (*Run, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, project_id, name, status, exit_code, error, parent_run_id, tags, system_info,
		       created_at, started_at, finished_at, heartbeat_at, resume_token_jti
		FROM runs WHERE id = $1`, runID)

	r := &Run{}
	var tags, sysInfo []byte
	var status string
	if err := row.Scan(&r.ID, &r.ProjectID, &r.Name, &status, &r.ExitCode, &r.Error, &r.ParentRunID,
		&tags, &sysInfo, &r.CreatedAt, &r.StartedAt, &r.FinishedAt, &r.HeartbeatAt, &r.ResumeTokenJTI); err != nil {
		return nil, wrapNotFound("run", runID, err)
	}
	r.Status = RunStatus(status)
	_ = json.Unmarshal(tags, &r.Tags)
	_ = json.Unmarshal(sysInfo, &r.SystemInfo)
	return r, nil
}

// UpdateRunStatus applies an optimistic-concurrency UPDATE guarded on the
// current status column; the affected row count tells the caller whether
// the transition actually happened, preventing double-finalization.
func (s *SqlStore) UpdateRunStatus(ctx *kctx.Context, runID string, expectCurrent RunStatus, next RunStatus, exitCode *int32, errMsg *string) (bool, error) {
	now := time.Now().UTC()
	var finishedAt *time.Time
	if next.IsTerminal() || next == RunCrashed {
		finishedAt = &now
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE runs
		SET status = $1, exit_code = $2, error = $3, finished_at = COALESCE($4, finished_at)
		WHERE id = $5 AND status = $6`,
		string(next), exitCode, errMsg, finishedAt, runID, string(expectCurrent))
	if err != nil {
		return false, errors.WithStack(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *SqlStore) TouchHeartbeat(ctx *kctx.Context, runID string) error {
	_, err := s.pool.Exec(ctx, `UPDATE runs SET heartbeat_at = now() WHERE id = $1 AND status = 'running'`, runID)
	return errors.WithStack(err)
}

func (s *SqlStore) SetResumeToken(ctx *kctx.Context, runID, jti string, expires time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE runs SET resume_token_jti = $1, resume_token_expires = $2 WHERE id = $3`, jti, expires, runID)
	return errors.WithStack(err)
}

func (s *SqlStore) ClearResumeToken(ctx *kctx.Context, runID string) error {
	_, err := s.pool.Exec(ctx, `UPDATE runs SET resume_token_jti = NULL, resume_token_expires = NULL WHERE id = $1`, runID)
	return errors.WithStack(err)
}

// UpsertParam implements lazy-create, immutable-after-first-write
// semantics: a second write with a differing value is reported as a
// conflict but never overwrites the stored row.
func (s *SqlStore) UpsertParam(ctx *kctx.Context, p Parameter) (conflict bool, existing string, err error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO parameters (run_id, name, value, value_type)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (run_id, name) DO UPDATE SET value = parameters.value
		RETURNING value`, p.RunID, p.Name, p.Value, string(p.Type))

	if err := row.Scan(&existing); err != nil {
		return false, "", errors.WithStack(err)
	}
	return existing != p.Value, existing, nil
}

func (s *SqlStore) UpsertTags(ctx *kctx.Context, runID string, tags map[string]string) error {
	batch := &pgx.Batch{}
	for k, v := range tags {
		batch.Queue(`
			INSERT INTO tags (run_id, key, value) VALUES ($1, $2, $3)
			ON CONFLICT (run_id, key) DO UPDATE SET value = excluded.value`, runID, k, v)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range tags {
		if _, err := br.Exec(); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

func (s *SqlStore) DeleteTags(ctx *kctx.Context, runID string, keys []string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM tags WHERE run_id = $1 AND key = ANY($2)`, runID, keys)
	return errors.WithStack(err)
}

// ListRuns compiles filters/sort/cursor through the QueryBuilder and scans
// the resulting page. The estimated total uses a separate COUNT query built
// from the same filter clauses so pagination and totals stay consistent
// even though the count ignores the keyset cursor.
func (s *SqlStore) ListRuns(ctx *kctx.Context, filters []Filter, sort SortOrder, cursor string, limit int) ([]*Run, string, int64, error) {
	qb := NewQueryBuilder()
	query, err := qb.ListRuns(filters, sort, cursor, limit)
	if err != nil {
		return nil, "", 0, err
	}

	rows, err := s.pool.Query(ctx, query.Sql, query.Args...)
	if err != nil {
		return nil, "", 0, errors.WithStack(err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r := &Run{}
		var tags, sysInfo []byte
		var status string
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.Name, &status, &r.ExitCode, &r.Error, &r.ParentRunID,
			&tags, &sysInfo, &r.CreatedAt, &r.StartedAt, &r.FinishedAt, &r.HeartbeatAt, &r.ResumeTokenJTI); err != nil {
			return nil, "", 0, errors.WithStack(err)
		}
		r.Status = RunStatus(status)
		_ = json.Unmarshal(tags, &r.Tags)
		_ = json.Unmarshal(sysInfo, &r.SystemInfo)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, "", 0, errors.WithStack(err)
	}

	var nextCursor string
	if len(runs) == limit {
		last := runs[len(runs)-1]
		nextCursor = encodeCursor(cursorSortValue(last, sort.Field), last.ID)
	}

	total, err := s.estimatedRunCount(ctx, filters)
	if err != nil {
		return nil, "", 0, err
	}

	return runs, nextCursor, total, nil
}

func (s *SqlStore) estimatedRunCount(ctx *kctx.Context, filters []Filter) (int64, error) {
	qb := NewQueryBuilder()
	countQuery, err := qb.countRuns(filters)
	if err != nil {
		return 0, err
	}
	var total int64
	if err := s.pool.QueryRow(ctx, countQuery.Sql, countQuery.Args...).Scan(&total); err != nil {
		return 0, errors.WithStack(err)
	}
	return total, nil
}

func (s *SqlStore) ListParams(ctx *kctx.Context, runID string) ([]Parameter, error) {
	rows, err := s.pool.Query(ctx, `SELECT run_id, name, value, value_type FROM parameters WHERE run_id = $1 ORDER BY name`, runID)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer rows.Close()

	var params []Parameter
	for rows.Next() {
		var p Parameter
		var typ string
		if err := rows.Scan(&p.RunID, &p.Name, &p.Value, &typ); err != nil {
			return nil, errors.WithStack(err)
		}
		p.Type = ParamType(typ)
		params = append(params, p)
	}
	return params, rows.Err()
}

func (s *SqlStore) LiveRunProjects(ctx *kctx.Context) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, project_id FROM runs WHERE status IN ('pending', 'running', 'crashed')`)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer rows.Close()

	projects := map[string]string{}
	for rows.Next() {
		var runID, projectID string
		if err := rows.Scan(&runID, &projectID); err != nil {
			return nil, errors.WithStack(err)
		}
		projects[runID] = projectID
	}
	return projects, rows.Err()
}

func (s *SqlStore) LiveRunTagKeys(ctx *kctx.Context) (map[string][]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT t.run_id, t.key FROM tags t
		JOIN runs r ON r.id = t.run_id
		WHERE r.status IN ('pending', 'running', 'crashed')`)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer rows.Close()

	keys := map[string][]string{}
	for rows.Next() {
		var runID, key string
		if err := rows.Scan(&runID, &key); err != nil {
			return nil, errors.WithStack(err)
		}
		keys[runID] = append(keys[runID], key)
	}
	return keys, rows.Err()
}

func (s *SqlStore) RunningRunsOlderThan(ctx *kctx.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM runs WHERE status = 'running' AND heartbeat_at < $1`, cutoff)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.WithStack(err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
