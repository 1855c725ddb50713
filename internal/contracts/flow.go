package contracts

import (
	"encoding/json"
	"time"

	"github.com/guregu/null/v6"
)

// FlowState is the lifecycle state of a FlowExecution
type FlowState string

const (
	FlowPending   FlowState = "pending"
	FlowRunning   FlowState = "running"
	FlowCompleted FlowState = "completed"
	FlowFailed    FlowState = "failed"
	FlowCancelled FlowState = "cancelled"
)

// IsTerminal reports whether no further transition is possible
func (s FlowState) IsTerminal() bool {
	return s == FlowCompleted || s == FlowFailed || s == FlowCancelled
}

// CanTransitionTo enforces Pending → Running → {Completed | Failed | Cancelled}.
// A pending flow may also be failed or cancelled before it starts.
func (s FlowState) CanTransitionTo(next FlowState) bool {
	switch s {
	case FlowPending:
		return next == FlowRunning || next == FlowFailed || next == FlowCancelled
	case FlowRunning:
		return next == FlowCompleted || next == FlowFailed || next == FlowCancelled
	default:
		return false
	}
}

// JobState is the lifecycle state of a JobExecution
type JobState string

const (
	JobPending   JobState = "pending"
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
	JobSkipped   JobState = "skipped"
)

// IsTerminal reports whether no further transition is possible
func (s JobState) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobSkipped
}

// CanTransitionTo enforces Pending → Running → {Completed | Failed | Skipped}.
// A pending job may be skipped without running.
func (s JobState) CanTransitionTo(next JobState) bool {
	switch s {
	case JobPending:
		return next == JobRunning || next == JobSkipped
	case JobRunning:
		return next == JobCompleted || next == JobFailed || next == JobSkipped
	default:
		return false
	}
}

// FlowExecution is one end-to-end invocation of an ordered stage sequence
// ⭐ SSOT: 진행 상태는 메모리 전역이 아니라 이 레코드로만 조회
type FlowExecution struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	State         FlowState       `json:"state"`
	TotalJobs     int             `json:"total_jobs"`
	CompletedJobs int             `json:"completed_jobs"`
	CurrentJob    string          `json:"current_job,omitempty"`
	Error         string          `json:"error,omitempty"`
	Params        json.RawMessage `json:"params,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	StartedAt     null.Time       `json:"started_at"`
	CompletedAt   null.Time       `json:"completed_at"`

	// Jobs is populated by status reads, not persisted with the flow row
	Jobs []*JobExecution `json:"jobs,omitempty"`
}

// JobExecution is one stage run inside a flow, keyed by (flow id, job name)
type JobExecution struct {
	FlowID      string          `json:"flow_id"`
	Name        string          `json:"name"`
	Stage       Stage           `json:"stage"`
	Seq         int             `json:"seq"`
	State       JobState        `json:"state"`
	StartedAt   null.Time       `json:"started_at"`
	CompletedAt null.Time       `json:"completed_at"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// FlowParams are the inputs recorded with a screener-refresh flow
type FlowParams struct {
	Source          string          `json:"source,omitempty"`
	Symbols         []string        `json:"symbols,omitempty"`
	Date            string          `json:"date,omitempty"`
	MarketCondition MarketCondition `json:"market_condition,omitempty"`
	IncludeScoring  bool            `json:"include_scoring"`
	ConfigHash      string          `json:"config_hash,omitempty"`
}
