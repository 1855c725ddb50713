package repos

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/canslim-screener/internal/contracts"
)

// FlowRepository implements contracts.FlowRepository
// ⭐ SSOT: flow/job 실행 기록 저장은 여기서만
type FlowRepository struct {
	pool *pgxpool.Pool
}

// NewFlowRepository creates a new flow repository
func NewFlowRepository(pool *pgxpool.Pool) *FlowRepository {
	return &FlowRepository{pool: pool}
}

const flowColumns = `
	id, name, state, total_jobs, completed_jobs, current_job, error, params,
	created_at, started_at, completed_at
`

// CreateFlow inserts a new flow row
func (r *FlowRepository) CreateFlow(ctx context.Context, flow *contracts.FlowExecution) error {
	query := `
		INSERT INTO screener.flow_executions (
			id, name, state, total_jobs, completed_jobs, current_job, error, params, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.pool.Exec(ctx, query,
		flow.ID, flow.Name, string(flow.State), flow.TotalJobs, flow.CompletedJobs,
		flow.CurrentJob, flow.Error, nullableJSON(flow.Params), flow.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create flow: %w", err)
	}
	return nil
}

// StartFlow moves a pending flow to running
func (r *FlowRepository) StartFlow(ctx context.Context, id string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE screener.flow_executions
		SET state = $2, started_at = $3
		WHERE id = $1 AND state = $4
	`, id, string(contracts.FlowRunning), at, string(contracts.FlowPending))
	if err != nil {
		return fmt.Errorf("failed to start flow: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.transitionError(ctx, id)
	}
	return nil
}

// AdvanceFlow records progress of a running flow
func (r *FlowRepository) AdvanceFlow(ctx context.Context, id string, completedJobs int, currentJob string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE screener.flow_executions
		SET completed_jobs = $2, current_job = $3
		WHERE id = $1 AND state = $4
	`, id, completedJobs, currentJob, string(contracts.FlowRunning))
	if err != nil {
		return fmt.Errorf("failed to advance flow: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.transitionError(ctx, id)
	}
	return nil
}

// FinishFlow moves the flow to a terminal state when the transition is legal.
// The state guard in the WHERE clause makes concurrent cancel/complete race-safe.
func (r *FlowRepository) FinishFlow(ctx context.Context, id string, state contracts.FlowState, errMsg string, at time.Time) (bool, error) {
	if !state.IsTerminal() {
		return false, fmt.Errorf("%w: %s is not terminal", contracts.ErrInvalidTransition, state)
	}

	var from []string
	for _, s := range []contracts.FlowState{contracts.FlowPending, contracts.FlowRunning} {
		if s.CanTransitionTo(state) {
			from = append(from, string(s))
		}
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE screener.flow_executions
		SET state = $2, error = $3, current_job = '', completed_at = $4
		WHERE id = $1 AND state = ANY($5)
	`, id, string(state), errMsg, at, from)
	if err != nil {
		return false, fmt.Errorf("failed to finish flow: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetFlow(ctx, id); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// GetFlow returns the flow row without jobs
func (r *FlowRepository) GetFlow(ctx context.Context, id string) (*contracts.FlowExecution, error) {
	query := `SELECT ` + flowColumns + ` FROM screener.flow_executions WHERE id = $1`
	flow, err := scanFlow(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", contracts.ErrFlowNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get flow: %w", err)
	}
	return flow, nil
}

// ListRecentFlows returns the most recently created flows first
func (r *FlowRepository) ListRecentFlows(ctx context.Context, limit int) ([]*contracts.FlowExecution, error) {
	query := `SELECT ` + flowColumns + `
		FROM screener.flow_executions
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}
	defer rows.Close()

	var out []*contracts.FlowExecution
	for rows.Next() {
		f, err := scanFlow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flow: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// CreateJob inserts a job row keyed by (flow id, name)
func (r *FlowRepository) CreateJob(ctx context.Context, job *contracts.JobExecution) error {
	query := `
		INSERT INTO screener.job_executions (
			flow_id, name, stage, seq, state, started_at, completed_at, result, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.pool.Exec(ctx, query,
		job.FlowID, job.Name, string(job.Stage), job.Seq, string(job.State),
		job.StartedAt, job.CompletedAt, nullableJSON(job.Result), job.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to create job %s: %w", job.Name, err)
	}
	return nil
}

// UpdateJob replaces the mutable job fields
func (r *FlowRepository) UpdateJob(ctx context.Context, job *contracts.JobExecution) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE screener.job_executions
		SET state = $3, started_at = $4, completed_at = $5, result = $6, error = $7
		WHERE flow_id = $1 AND name = $2
	`, job.FlowID, job.Name, string(job.State), job.StartedAt, job.CompletedAt, nullableJSON(job.Result), job.Error)
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", job.Name, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s/%s not found", job.FlowID, job.Name)
	}
	return nil
}

// ListJobs returns a flow's jobs in sequence order
func (r *FlowRepository) ListJobs(ctx context.Context, flowID string) ([]*contracts.JobExecution, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT flow_id, name, stage, seq, state, started_at, completed_at, result, error
		FROM screener.job_executions
		WHERE flow_id = $1
		ORDER BY seq
	`, flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var out []*contracts.JobExecution
	for rows.Next() {
		var j contracts.JobExecution
		var stage, state string
		var result []byte
		if err := rows.Scan(&j.FlowID, &j.Name, &stage, &j.Seq, &state, &j.StartedAt, &j.CompletedAt, &result, &j.Error); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		j.Stage = contracts.Stage(stage)
		j.State = contracts.JobState(state)
		j.Result = result
		out = append(out, &j)
	}
	return out, rows.Err()
}

// transitionError distinguishes a missing flow from an illegal transition
func (r *FlowRepository) transitionError(ctx context.Context, id string) error {
	flow, err := r.GetFlow(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: flow %s is %s", contracts.ErrInvalidTransition, id, flow.State)
}

func scanFlow(row pgx.Row) (*contracts.FlowExecution, error) {
	var f contracts.FlowExecution
	var state string
	var params []byte
	err := row.Scan(
		&f.ID, &f.Name, &state, &f.TotalJobs, &f.CompletedJobs, &f.CurrentJob, &f.Error, &params,
		&f.CreatedAt, &f.StartedAt, &f.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	f.State = contracts.FlowState(state)
	f.Params = params
	return &f, nil
}

// nullableJSON stores an empty payload as SQL NULL
func nullableJSON(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
