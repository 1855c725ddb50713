package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/guregu/null/v6"

	"github.com/wonny/canslim-screener/internal/contracts"
)

// FlowRepo is an in-memory contracts.FlowRepository
type FlowRepo struct {
	mu    sync.RWMutex
	flows map[string]contracts.FlowExecution
	jobs  map[string][]contracts.JobExecution
}

// NewFlowRepo creates an empty repository
func NewFlowRepo() *FlowRepo {
	return &FlowRepo{
		flows: make(map[string]contracts.FlowExecution),
		jobs:  make(map[string][]contracts.JobExecution),
	}
}

// CreateFlow stores a new flow
func (r *FlowRepo) CreateFlow(ctx context.Context, flow *contracts.FlowExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.flows[flow.ID]; exists {
		return fmt.Errorf("flow %s already exists", flow.ID)
	}
	f := *flow
	f.Jobs = nil
	r.flows[flow.ID] = f
	return nil
}

// StartFlow moves a pending flow to running
func (r *FlowRepo) StartFlow(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.flows[id]
	if !ok {
		return contracts.ErrFlowNotFound
	}
	if f.State != contracts.FlowPending {
		return fmt.Errorf("%w: flow %s is %s", contracts.ErrInvalidTransition, id, f.State)
	}
	f.State = contracts.FlowRunning
	f.StartedAt = null.TimeFrom(at)
	r.flows[id] = f
	return nil
}

// AdvanceFlow records progress while running
func (r *FlowRepo) AdvanceFlow(ctx context.Context, id string, completedJobs int, currentJob string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.flows[id]
	if !ok {
		return contracts.ErrFlowNotFound
	}
	if f.State != contracts.FlowRunning {
		return fmt.Errorf("%w: flow %s is %s", contracts.ErrInvalidTransition, id, f.State)
	}
	f.CompletedJobs = completedJobs
	f.CurrentJob = currentJob
	r.flows[id] = f
	return nil
}

// FinishFlow moves a pending/running flow to a terminal state
func (r *FlowRepo) FinishFlow(ctx context.Context, id string, state contracts.FlowState, errMsg string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.flows[id]
	if !ok {
		return false, contracts.ErrFlowNotFound
	}
	if !f.State.CanTransitionTo(state) || !state.IsTerminal() {
		return false, nil
	}
	f.State = state
	f.Error = errMsg
	f.CurrentJob = ""
	f.CompletedAt = null.TimeFrom(at)
	r.flows[id] = f
	return true, nil
}

// GetFlow returns a flow with its jobs
func (r *FlowRepo) GetFlow(ctx context.Context, id string) (*contracts.FlowExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.flows[id]
	if !ok {
		return nil, contracts.ErrFlowNotFound
	}
	return &f, nil
}

// ListRecentFlows returns the most recently created flows first
func (r *FlowRepo) ListRecentFlows(ctx context.Context, limit int) ([]*contracts.FlowExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*contracts.FlowExecution, 0, len(r.flows))
	for _, f := range r.flows {
		f := f
		out = append(out, &f)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CreateJob stores a new job under its flow
func (r *FlowRepo) CreateJob(ctx context.Context, job *contracts.JobExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.flows[job.FlowID]; !ok {
		return contracts.ErrFlowNotFound
	}
	for _, j := range r.jobs[job.FlowID] {
		if j.Name == job.Name {
			return fmt.Errorf("job %s/%s already exists", job.FlowID, job.Name)
		}
	}
	r.jobs[job.FlowID] = append(r.jobs[job.FlowID], *job)
	return nil
}

// UpdateJob replaces the job keyed by (flow id, name)
func (r *FlowRepo) UpdateJob(ctx context.Context, job *contracts.JobExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	jobs := r.jobs[job.FlowID]
	for i := range jobs {
		if jobs[i].Name == job.Name {
			jobs[i] = *job
			return nil
		}
	}
	return fmt.Errorf("job %s/%s not found", job.FlowID, job.Name)
}

// ListJobs returns a flow's jobs in sequence order
func (r *FlowRepo) ListJobs(ctx context.Context, flowID string) ([]*contracts.JobExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	jobs := r.jobs[flowID]
	out := make([]*contracts.JobExecution, 0, len(jobs))
	for _, j := range jobs {
		j := j
		out = append(out, &j)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}
