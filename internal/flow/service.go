package flow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/canslim-screener/internal/contracts"
	"github.com/wonny/canslim-screener/pkg/logger"
)

// Recent flow list bounds
const (
	DefaultRecentLimit = 10
	MaxRecentLimit     = 100
)

// Service is the API/CLI boundary: start returns immediately, poll reads persisted state
type Service struct {
	orch   *Orchestrator
	flows  contracts.FlowRepository
	logger *logger.Logger
	now    func() time.Time

	wg sync.WaitGroup
}

// NewService creates a flow service
func NewService(orch *Orchestrator, flows contracts.FlowRepository, log *logger.Logger) *Service {
	return &Service{
		orch:   orch,
		flows:  flows,
		logger: log.WithComponent("flow_service"),
		now:    time.Now,
	}
}

// StartRefresh records a screener-refresh flow and runs it in the background.
// The returned id is pollable immediately.
func (s *Service) StartRefresh(ctx context.Context, req RefreshRequest) (string, error) {
	flow, err := s.orch.PrepareRefresh(ctx, req)
	if err != nil {
		return "", err
	}
	s.background(ctx, flow.ID, func(ctx context.Context) error {
		return s.orch.RunRefresh(ctx, flow.ID, req)
	})
	return flow.ID, nil
}

// StartBenchmark records a benchmark-refresh flow and runs it in the background
func (s *Service) StartBenchmark(ctx context.Context, req BenchmarkRequest) (string, error) {
	flow, err := s.orch.PrepareBenchmark(ctx, req)
	if err != nil {
		return "", err
	}
	s.background(ctx, flow.ID, func(ctx context.Context) error {
		return s.orch.RunBenchmark(ctx, flow.ID, req)
	})
	return flow.ID, nil
}

// RunRefresh runs a screener-refresh flow to completion in the caller's goroutine
func (s *Service) RunRefresh(ctx context.Context, req RefreshRequest) (string, error) {
	flow, err := s.orch.PrepareRefresh(ctx, req)
	if err != nil {
		return "", err
	}
	return flow.ID, s.orch.RunRefresh(ctx, flow.ID, req)
}

// RunBenchmark runs a benchmark-refresh flow to completion in the caller's goroutine
func (s *Service) RunBenchmark(ctx context.Context, req BenchmarkRequest) (string, error) {
	flow, err := s.orch.PrepareBenchmark(ctx, req)
	if err != nil {
		return "", err
	}
	return flow.ID, s.orch.RunBenchmark(ctx, flow.ID, req)
}

// background detaches from the request context; the logger is the error sink
func (s *Service) background(ctx context.Context, flowID string, fn func(ctx context.Context) error) {
	bg := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := fn(bg); err != nil {
			s.logger.WithError(err).WithField("flow_id", flowID).Error("Background flow failed")
		}
	}()
}

// Wait blocks until every background flow has returned
func (s *Service) Wait() {
	s.wg.Wait()
}

// Status returns a flow with its jobs
func (s *Service) Status(ctx context.Context, id string) (*contracts.FlowExecution, error) {
	flow, err := s.flows.GetFlow(ctx, id)
	if err != nil {
		return nil, err
	}
	jobs, err := s.flows.ListJobs(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	flow.Jobs = jobs
	return flow, nil
}

// Recent returns the most recent flows with their jobs
func (s *Service) Recent(ctx context.Context, limit int) ([]*contracts.FlowExecution, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}

	flows, err := s.flows.ListRecentFlows(ctx, limit)
	if err != nil {
		return nil, err
	}
	for _, f := range flows {
		jobs, err := s.flows.ListJobs(ctx, f.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list jobs for %s: %w", f.ID, err)
		}
		f.Jobs = jobs
	}
	return flows, nil
}

// Cancel moves a pending or running flow to Cancelled.
// Work already dispatched for the current stage runs to completion.
func (s *Service) Cancel(ctx context.Context, id string) error {
	ok, err := s.flows.FinishFlow(ctx, id, contracts.FlowCancelled, "cancelled by request", s.now())
	if err != nil {
		return err
	}
	if !ok {
		flow, err := s.flows.GetFlow(ctx, id)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: flow %s is already %s", contracts.ErrInvalidTransition, id, flow.State)
	}
	s.logger.WithFields(map[string]interface{}{
		"flow_id": id,
		"state":   string(contracts.FlowCancelled),
	}).Warn("Flow cancel requested")
	return nil
}

// IsNotFound reports whether err means the flow does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, contracts.ErrFlowNotFound)
}
