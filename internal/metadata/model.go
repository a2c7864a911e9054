// Package metadata implements the metadata store gateway: typed
// Postgres access to projects, runs, parameters, and tags. Its migrations
// also create the batch idempotency ledger table that package ledger reads
// and writes.
package metadata

import "time"

// RunStatus is one of the six states in the run lifecycle state machine.
type RunStatus string

const (
	RunPending  RunStatus = "pending"
	RunRunning  RunStatus = "running"
	RunFinished RunStatus = "finished"
	RunFailed   RunStatus = "failed"
	RunKilled   RunStatus = "killed"
	RunCrashed  RunStatus = "crashed"
)

// IsTerminal reports whether status is one a run can never leave.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunFinished, RunFailed, RunKilled:
		return true
	default:
		return false
	}
}

// Project is the top-level namespace every run belongs to.
type Project struct {
	ID        string
	Name      string
	CreatedAt time.Time
	DeletedAt *time.Time
}

// Run is one training-job record.
type Run struct {
	ID                 string
	ProjectID          string
	Name               string
	Status             RunStatus
	ExitCode           *int32
	Error              *string
	ParentRunID         *string
	Tags               map[string]string
	SystemInfo         map[string]string
	CreatedAt          time.Time
	StartedAt          *time.Time
	FinishedAt         *time.Time
	HeartbeatAt        time.Time
	ResumeTokenJTI     string
	ResumeTokenExpires *time.Time
}

// ParamType is the declared type tag of a Parameter value.
type ParamType string

const (
	ParamString ParamType = "string"
	ParamFloat  ParamType = "float"
	ParamInt    ParamType = "int"
	ParamBool   ParamType = "bool"
	ParamJSON   ParamType = "json"
)

// Parameter is immutable after its first successful write.
type Parameter struct {
	RunID string
	Name  string
	Value string
	Type  ParamType
}

// Filter is one conjunct of a list_runs query. Values is only
// consulted for OpIn (set membership, e.g. the status-set filter); all
// other operators compare against Value.
type Filter struct {
	Field    string
	Operator FilterOp
	Value    string
	Values   []string
}

// FilterOp enumerates the comparison operators list_runs supports for
// parameter comparisons, plus the structural filters (status set,
// tag-exact-match, name substring, time window, parent reference).
type FilterOp string

const (
	OpEq       FilterOp = "eq"
	OpNe       FilterOp = "ne"
	OpGt       FilterOp = "gt"
	OpGe       FilterOp = "ge"
	OpLt       FilterOp = "lt"
	OpLe       FilterOp = "le"
	OpContains FilterOp = "contains"
	OpIn       FilterOp = "in"
)

// SortField names the sort keys list_runs supports.
type SortField string

const (
	SortCreatedAt SortField = "created_at"
	SortName      SortField = "name"
	SortStatus    SortField = "status"
	SortDuration  SortField = "duration"
)

// SortOrder is a sort field plus direction.
type SortOrder struct {
	Field SortField
	Desc  bool
}
