package metadata

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/ibusnowden/MLRun/internal/common/kerrors"
)

// Query is a parameterized SQL statement: the SQL text alongside the
// positional values pgx binds as $1, $2, ... at Query time.
type Query struct {
	Sql  string
	Args []interface{}
}

// QueryBuilder compiles list_runs filters into a parameterized SQL
// statement against the runs table, touching the parameters/tags side
// tables only when a filter actually references them.
type QueryBuilder struct{}

func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{}
}

const (
	paramFieldPrefix = "param:"
	tagFieldPrefix   = "tag:"
)

// ListRuns builds the SELECT for a page of runs. Pagination is keyset-based
// on (sort field, id) rather than OFFSET/LIMIT, so results stay stable as
// new runs are ingested concurrently.
func (qb *QueryBuilder) ListRuns(filters []Filter, sort SortOrder, cursor string, limit int) (*Query, error) {
	sb := strings.Builder{}
	var args []interface{}

	sb.WriteString("SELECT r.id, r.project_id, r.name, r.status, r.exit_code, r.error, r.parent_run_id, ")
	sb.WriteString("r.tags, r.system_info, r.created_at, r.started_at, r.finished_at, r.heartbeat_at, r.resume_token_jti ")
	sb.WriteString("FROM runs r")

	var conds []string
	for _, f := range filters {
		cond, err := qb.filterClause(f, &args)
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
	}

	orderCol, err := sortColumn(sort.Field)
	if err != nil {
		return nil, err
	}
	dir := "ASC"
	cmp := ">"
	if sort.Desc {
		dir = "DESC"
		cmp = "<"
	}

	if cursor != "" {
		afterVal, afterID, err := decodeCursor(cursor)
		if err != nil {
			return nil, err
		}
		args = append(args, afterVal, afterID)
		valIdx := len(args) - 1
		idIdx := len(args)
		// The cursor value travels as text; cast it back to the sort
		// column's type so the row comparison stays typed.
		conds = append(conds, fmt.Sprintf("(%s, r.id) %s ($%d%s, $%d)", orderCol, cmp, valIdx, sortValueCast(sort.Field), idIdx))
	}

	if len(conds) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conds, " AND "))
	}

	// Runs that never started have a null duration and sort last either
	// direction.
	nulls := ""
	if sort.Field == SortDuration {
		nulls = " NULLS LAST"
	}
	sb.WriteString(fmt.Sprintf(" ORDER BY %s %s%s, r.id %s", orderCol, dir, nulls, dir))

	args = append(args, limit)
	sb.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))

	return &Query{Sql: sb.String(), Args: args}, nil
}

// countRuns builds the sibling COUNT(*) query for estimatedRunCount,
// sharing filterClause so the predicate logic never drifts between the
// page query and the total.
func (qb *QueryBuilder) countRuns(filters []Filter) (*Query, error) {
	sb := strings.Builder{}
	var args []interface{}

	sb.WriteString("SELECT count(*) FROM runs r")

	var conds []string
	for _, f := range filters {
		cond, err := qb.filterClause(f, &args)
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
	}
	if len(conds) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conds, " AND "))
	}

	return &Query{Sql: sb.String(), Args: args}, nil
}

func (qb *QueryBuilder) filterClause(f Filter, args *[]interface{}) (string, error) {
	switch {
	case strings.HasPrefix(f.Field, paramFieldPrefix):
		return qb.existsClause("parameters", "name", strings.TrimPrefix(f.Field, paramFieldPrefix), f, args)
	case strings.HasPrefix(f.Field, tagFieldPrefix):
		return qb.existsClause("tags", "key", strings.TrimPrefix(f.Field, tagFieldPrefix), f, args)
	default:
		return qb.columnClause(f, args)
	}
}

// numericLiteral matches the values the filter language treats as
// numbers. Rows and literals that both match compare numerically; any
// other pairing falls back to string comparison.
var numericLiteral = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?([eE][+-]?[0-9]+)?$`)

// existsClause renders a correlated EXISTS subquery against the
// parameters/tags side tables rather than joining them against the main
// result set, so a run matching several filters still scans once. The
// parameters table
// stores values as text, so when the filter literal is numeric the clause
// compares rows with numeric values as doubles and everything else
// lexically.
func (qb *QueryBuilder) existsClause(table, keyColumn, key string, f Filter, args *[]interface{}) (string, error) {
	op, err := sqlOperator(f.Operator)
	if err != nil {
		return "", err
	}
	*args = append(*args, key)
	keyIdx := len(*args)

	var valueCond string
	if f.Operator != OpContains && numericLiteral.MatchString(f.Value) {
		*args = append(*args, f.Value)
		valIdx := len(*args)
		valueCond = fmt.Sprintf(
			`(CASE WHEN t.value ~ '^-?[0-9]+(\.[0-9]+)?([eE][+-]?[0-9]+)?$' THEN t.value::double precision %s $%d::double precision ELSE t.value %s $%d END)`,
			op, valIdx, op, valIdx,
		)
	} else {
		if f.Operator == OpContains {
			*args = append(*args, "%"+f.Value+"%")
		} else {
			*args = append(*args, f.Value)
		}
		valueCond = fmt.Sprintf("t.value %s $%d", op, len(*args))
	}

	return fmt.Sprintf(
		"EXISTS (SELECT 1 FROM %s t WHERE t.run_id = r.id AND t.%s = $%d AND %s)",
		table, keyColumn, keyIdx, valueCond,
	), nil
}

func (qb *QueryBuilder) columnClause(f Filter, args *[]interface{}) (string, error) {
	col, err := runColumn(f.Field)
	if err != nil {
		return "", err
	}
	if f.Operator == OpIn {
		*args = append(*args, f.Values)
		return fmt.Sprintf("%s = ANY($%d)", col, len(*args)), nil
	}
	op, err := sqlOperator(f.Operator)
	if err != nil {
		return "", err
	}
	if f.Operator == OpContains {
		*args = append(*args, "%"+f.Value+"%")
	} else {
		*args = append(*args, f.Value)
	}
	return fmt.Sprintf("%s %s $%d", col, op, len(*args)), nil
}

func runColumn(field string) (string, error) {
	switch field {
	case "name":
		return "r.name", nil
	case "status":
		return "r.status", nil
	case "project_id":
		return "r.project_id", nil
	case "parent_run_id":
		return "r.parent_run_id", nil
	case "created_at":
		return "r.created_at", nil
	default:
		return "", errors.WithStack(&kerrors.ErrInvalidArgument{Name: "filter.field", Value: field, Message: "unknown field"})
	}
}

func sortColumn(field SortField) (string, error) {
	switch field {
	case SortCreatedAt:
		return "r.created_at", nil
	case SortName:
		return "r.name", nil
	case SortStatus:
		return "r.status", nil
	case SortDuration:
		return "COALESCE(r.finished_at, now()) - r.started_at", nil
	default:
		return "", errors.WithStack(&kerrors.ErrInvalidArgument{Name: "sort.field", Value: string(field), Message: "unknown sort field"})
	}
}

func sqlOperator(op FilterOp) (string, error) {
	switch op {
	case OpEq:
		return "=", nil
	case OpNe:
		return "!=", nil
	case OpGt:
		return ">", nil
	case OpGe:
		return ">=", nil
	case OpLt:
		return "<", nil
	case OpLe:
		return "<=", nil
	case OpContains:
		return "LIKE", nil
	default:
		return "", errors.WithStack(&kerrors.ErrInvalidArgument{Name: "filter.operator", Value: string(op), Message: "unknown operator"})
	}
}

// encodeCursor/decodeCursor pack the keyset pagination marker (the sort
// value plus a tiebreaker id) into the opaque cursor string handed back to
// callers, so list_runs never leaks column names or offsets across the
// wire.
func encodeCursor(sortValue string, runID string) string {
	raw := sortValue + "\x00" + runID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(cursor string) (string, string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", "", errors.WithStack(&kerrors.ErrInvalidArgument{Name: "cursor", Value: cursor, Message: "malformed cursor"})
	}
	parts := strings.SplitN(string(raw), "\x00", 2)
	if len(parts) != 2 {
		return "", "", errors.WithStack(&kerrors.ErrInvalidArgument{Name: "cursor", Value: cursor, Message: "malformed cursor"})
	}
	return parts[0], parts[1], nil
}

// cursorSortValue extracts the textual representation of a run's value
// for the given sort field, for use when encoding the next-page cursor.
// Each representation must parse back as a literal of the sort column's
// SQL type (see sortValueCast).
func cursorSortValue(r *Run, field SortField) string {
	switch field {
	case SortName:
		return r.Name
	case SortStatus:
		return string(r.Status)
	case SortDuration:
		end := time.Now()
		if r.FinishedAt != nil {
			end = *r.FinishedAt
		}
		start := r.CreatedAt
		if r.StartedAt != nil {
			start = *r.StartedAt
		}
		return strconv.FormatInt(end.Sub(start).Microseconds(), 10) + " microseconds"
	default:
		return r.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
}

// sortValueCast returns the cast restoring a decoded cursor value to the
// sort column's type.
func sortValueCast(field SortField) string {
	switch field {
	case SortCreatedAt:
		return "::timestamptz"
	case SortDuration:
		return "::interval"
	default:
		return ""
	}
}
