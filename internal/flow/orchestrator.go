package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/guregu/null/v6"

	"github.com/wonny/canslim-screener/internal/contracts"
	"github.com/wonny/canslim-screener/internal/s0_benchmark"
	"github.com/wonny/canslim-screener/internal/s1_collection"
	"github.com/wonny/canslim-screener/internal/s2_ranking"
	"github.com/wonny/canslim-screener/internal/s3_scoring"
	"github.com/wonny/canslim-screener/pkg/logger"
	"github.com/wonny/canslim-screener/pkg/tracing"
)

// Stage runners. Each sN stage package's *Stage satisfies one of these.
// A nil report is allowed on error.
type (
	BenchmarkRunner interface {
		Execute(ctx context.Context, in s0_benchmark.Input) (*contracts.BenchmarkReport, error)
	}
	CollectionRunner interface {
		Execute(ctx context.Context, in s1_collection.Input) (*contracts.CollectionReport, error)
	}
	RankingRunner interface {
		Execute(ctx context.Context, in s2_ranking.Input) (*contracts.RankingReport, error)
	}
	ScoringRunner interface {
		Execute(ctx context.Context, in s3_scoring.Input) (*contracts.ScoringReport, error)
	}
)

// DefaultTopN is the number of symbols announced after a scored flow
const DefaultTopN = 20

// ErrInvalidRequest marks a flow request rejected before any flow is recorded
var ErrInvalidRequest = errors.New("invalid flow request")

// Stages bundles the stage runners an orchestrator sequences
type Stages struct {
	Benchmark  BenchmarkRunner
	Collection CollectionRunner
	Ranking    RankingRunner
	Scoring    ScoringRunner
}

// Options are optional orchestrator collaborators
type Options struct {
	Publisher  contracts.RankingPublisher // nil disables ranking events
	Tracer     *tracing.Tracer            // nil → noop
	TopN       int
	ConfigHash string
}

// Orchestrator sequences stages for one flow and records every transition
// ⭐ SSOT: flow/job 상태 전이는 여기서만
type Orchestrator struct {
	stages    Stages
	flows     contracts.FlowRepository
	symbols   contracts.ScoredSymbolRepository
	universe  contracts.SymbolUniverseProvider
	publisher contracts.RankingPublisher
	tracer    *tracing.Tracer
	topN      int
	hash      string
	logger    *logger.Logger
	now       func() time.Time
}

// NewOrchestrator creates an orchestrator
func NewOrchestrator(
	stages Stages,
	flows contracts.FlowRepository,
	symbols contracts.ScoredSymbolRepository,
	universe contracts.SymbolUniverseProvider,
	opts Options,
	log *logger.Logger,
) *Orchestrator {
	if opts.Tracer == nil {
		opts.Tracer = tracing.Noop()
	}
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}
	return &Orchestrator{
		stages:    stages,
		flows:     flows,
		symbols:   symbols,
		universe:  universe,
		publisher: opts.Publisher,
		tracer:    opts.Tracer,
		topN:      opts.TopN,
		hash:      opts.ConfigHash,
		logger:    log.WithComponent("flow"),
		now:       time.Now,
	}
}

// RefreshRequest starts a screener-refresh flow.
// Symbols and Source are combined; at least one is required.
type RefreshRequest struct {
	Source          string
	Symbols         []string
	AsOf            time.Time
	MarketCondition contracts.MarketCondition
	IncludeScoring  bool
}

// BenchmarkRequest starts a benchmark-refresh flow
type BenchmarkRequest struct {
	Symbols []string
	AsOf    time.Time
}

// step is one planned job
type step struct {
	stage contracts.Stage
	run   func(ctx context.Context) (contracts.StageReport, error)
}

// PrepareRefresh validates the request and records a pending flow
func (o *Orchestrator) PrepareRefresh(ctx context.Context, req RefreshRequest) (*contracts.FlowExecution, error) {
	if req.AsOf.IsZero() {
		return nil, contracts.ErrAsOfDateRequired
	}
	if req.Source == "" && len(contracts.NormalizeSymbols(req.Symbols)) == 0 {
		return nil, fmt.Errorf("%w: source or symbols required", ErrInvalidRequest)
	}
	if req.IncludeScoring && o.stages.Scoring == nil {
		return nil, fmt.Errorf("%w: scoring stage is not configured", ErrInvalidRequest)
	}

	params := contracts.FlowParams{
		Source:          req.Source,
		Symbols:         contracts.NormalizeSymbols(req.Symbols),
		Date:            contracts.DateKey(req.AsOf),
		MarketCondition: req.MarketCondition,
		IncludeScoring:  req.IncludeScoring,
		ConfigHash:      o.hash,
	}
	return o.createFlow(ctx, contracts.FlowScreenerRefresh, len(o.refreshPlan(req)), params)
}

// PrepareBenchmark records a pending benchmark flow
func (o *Orchestrator) PrepareBenchmark(ctx context.Context, req BenchmarkRequest) (*contracts.FlowExecution, error) {
	params := contracts.FlowParams{
		Symbols:    contracts.NormalizeSymbols(req.Symbols),
		ConfigHash: o.hash,
	}
	if !req.AsOf.IsZero() {
		params.Date = contracts.DateKey(req.AsOf)
	}
	return o.createFlow(ctx, contracts.FlowBenchmarkRefresh, 1, params)
}

func (o *Orchestrator) createFlow(ctx context.Context, name string, totalJobs int, params contracts.FlowParams) (*contracts.FlowExecution, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode flow params: %w", err)
	}

	flow := &contracts.FlowExecution{
		ID:        uuid.NewString(),
		Name:      name,
		State:     contracts.FlowPending,
		TotalJobs: totalJobs,
		Params:    raw,
		CreatedAt: o.now(),
	}
	if err := o.flows.CreateFlow(ctx, flow); err != nil {
		return nil, fmt.Errorf("failed to create flow: %w", err)
	}

	o.logger.WithFields(map[string]interface{}{
		"flow_id":    flow.ID,
		"flow":       name,
		"total_jobs": totalJobs,
		"state":      string(flow.State),
	}).Info("Flow created")
	return flow, nil
}

// RunRefresh executes a prepared screener-refresh flow:
// Collection → Ranking → (Scoring)
func (o *Orchestrator) RunRefresh(ctx context.Context, flowID string, req RefreshRequest) error {
	var onComplete func(ctx context.Context)
	if req.IncludeScoring {
		onComplete = func(ctx context.Context) { o.publishTop(ctx, flowID, req.AsOf) }
	}
	return o.run(ctx, flowID, contracts.FlowScreenerRefresh, o.refreshPlan(req), onComplete)
}

// RunBenchmark executes a prepared benchmark-refresh flow
func (o *Orchestrator) RunBenchmark(ctx context.Context, flowID string, req BenchmarkRequest) error {
	plan := []step{{
		stage: contracts.StageBenchmark,
		run: func(ctx context.Context) (contracts.StageReport, error) {
			rep, err := o.stages.Benchmark.Execute(ctx, s0_benchmark.Input{Symbols: req.Symbols, AsOf: req.AsOf})
			if rep == nil {
				return nil, err
			}
			return rep, err
		},
	}}
	return o.run(ctx, flowID, contracts.FlowBenchmarkRefresh, plan, nil)
}

func (o *Orchestrator) refreshPlan(req RefreshRequest) []step {
	plan := []step{
		{
			stage: contracts.StageCollection,
			run: func(ctx context.Context) (contracts.StageReport, error) {
				symbols, err := o.resolveSymbols(ctx, req)
				if err != nil {
					return nil, err
				}
				rep, err := o.stages.Collection.Execute(ctx, s1_collection.Input{
					Symbols: symbols,
					Source:  req.Source,
					AsOf:    req.AsOf,
				})
				if rep == nil {
					return nil, err
				}
				return rep, err
			},
		},
		{
			stage: contracts.StageRanking,
			run: func(ctx context.Context) (contracts.StageReport, error) {
				rep, err := o.stages.Ranking.Execute(ctx, s2_ranking.Input{AsOf: req.AsOf})
				if rep == nil {
					return nil, err
				}
				return rep, err
			},
		},
	}
	if req.IncludeScoring {
		plan = append(plan, step{
			stage: contracts.StageScoring,
			run: func(ctx context.Context) (contracts.StageReport, error) {
				rep, err := o.stages.Scoring.Execute(ctx, s3_scoring.Input{
					AsOf:            req.AsOf,
					MarketCondition: req.MarketCondition,
				})
				if rep == nil {
					return nil, err
				}
				return rep, err
			},
		})
	}
	return plan
}

// resolveSymbols unions the source's members with the explicit list
func (o *Orchestrator) resolveSymbols(ctx context.Context, req RefreshRequest) ([]string, error) {
	var symbols []string
	if req.Source != "" {
		if o.universe == nil {
			return nil, fmt.Errorf("no universe provider for source %q", req.Source)
		}
		members, err := o.universe.GetSymbols(ctx, req.Source)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve source %q: %w", req.Source, err)
		}
		symbols = append(symbols, members...)
	}
	symbols = append(symbols, req.Symbols...)
	return contracts.NormalizeSymbols(symbols), nil
}

// run drives the state machine. Stages run strictly in sequence; a hard
// failure fails the flow and no later job is created.
// onComplete runs only when the flow ends Completed.
func (o *Orchestrator) run(ctx context.Context, flowID, name string, plan []step, onComplete func(ctx context.Context)) (err error) {
	ctx, span := o.tracer.Start(ctx, "flow."+name, map[string]string{"flow.id": flowID})
	defer func() { tracing.End(span, err) }()

	log := o.logger.WithFields(map[string]interface{}{"flow_id": flowID, "flow": name})

	if err := o.flows.StartFlow(ctx, flowID, o.now()); err != nil {
		err = fmt.Errorf("failed to start flow %s: %w", flowID, err)
		// 시작 전에 취소된 flow는 이미 terminal
		if errors.Is(err, contracts.ErrInvalidTransition) {
			return err
		}
		return o.fail(ctx, flowID, err)
	}
	log.WithField("state", string(contracts.FlowRunning)).Info("Flow started")

	for i, st := range plan {
		cancelled, err := o.isCancelled(ctx, flowID)
		if err != nil {
			return o.fail(ctx, flowID, err)
		}
		if cancelled {
			o.skipRemaining(ctx, flowID, plan[i:], i)
			log.WithField("state", string(contracts.FlowCancelled)).Warn("Flow cancelled, remaining jobs skipped")
			return nil
		}

		if err := o.flows.AdvanceFlow(ctx, flowID, i, st.stage.JobName()); err != nil && !errors.Is(err, contracts.ErrInvalidTransition) {
			return o.fail(ctx, flowID, fmt.Errorf("failed to advance flow: %w", err))
		}

		if err := o.runJob(ctx, flowID, i+1, st); err != nil {
			return o.fail(ctx, flowID, fmt.Errorf("%s: %w", st.stage.JobName(), err))
		}
	}

	if err := o.flows.AdvanceFlow(ctx, flowID, len(plan), ""); err != nil && !errors.Is(err, contracts.ErrInvalidTransition) {
		return o.fail(ctx, flowID, fmt.Errorf("failed to advance flow: %w", err))
	}

	finished, err := o.flows.FinishFlow(ctx, flowID, contracts.FlowCompleted, "", o.now())
	if err != nil {
		return o.fail(ctx, flowID, fmt.Errorf("failed to complete flow %s: %w", flowID, err))
	}
	if !finished {
		// 마지막 stage 실행 중 취소됨
		log.Warn("Flow reached a terminal state before completion")
		return nil
	}

	log.WithField("state", string(contracts.FlowCompleted)).Info("Flow completed")
	if onComplete != nil {
		onComplete(ctx)
	}
	return nil
}

// runJob records one JobExecution around a stage run
func (o *Orchestrator) runJob(ctx context.Context, flowID string, seq int, st step) (err error) {
	ctx, span := o.tracer.Start(ctx, "stage."+st.stage.JobName(), map[string]string{
		"flow.id": flowID,
		"stage":   st.stage.String(),
	})
	defer func() { tracing.End(span, err) }()

	log := o.logger.WithFields(map[string]interface{}{
		"flow_id": flowID,
		"job":     st.stage.JobName(),
		"stage":   st.stage.ShortName(),
	})

	job := &contracts.JobExecution{
		FlowID: flowID,
		Name:   st.stage.JobName(),
		Stage:  st.stage,
		Seq:    seq,
		State:  contracts.JobPending,
	}
	if err := o.flows.CreateJob(ctx, job); err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	job.State = contracts.JobRunning
	job.StartedAt = null.TimeFrom(o.now())
	if err := o.flows.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("failed to start job: %w", err)
	}
	log.WithField("state", string(job.State)).Info("Job started")

	report, runErr := runStage(ctx, st)
	if report != nil {
		job.Result = encodeReport(report)
	}
	job.CompletedAt = null.TimeFrom(o.now())

	if runErr != nil {
		job.State = contracts.JobFailed
		job.Error = runErr.Error()
		if err := o.flows.UpdateJob(ctx, job); err != nil {
			log.WithError(err).Error("Failed to record job failure")
		}
		log.WithError(runErr).WithField("state", string(job.State)).Error("Job failed")
		return runErr
	}

	job.State = contracts.JobCompleted
	if err := o.flows.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	log.WithField("state", string(job.State)).Info("Job completed")
	return nil
}

// runStage turns a stage panic into an error so the job is recorded Failed
func runStage(ctx context.Context, st step) (report contracts.StageReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			report = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return st.run(ctx)
}

// fail marks the flow Failed with the first failing job's error
func (o *Orchestrator) fail(ctx context.Context, flowID string, cause error) error {
	if _, err := o.flows.FinishFlow(ctx, flowID, contracts.FlowFailed, cause.Error(), o.now()); err != nil {
		o.logger.WithError(err).WithField("flow_id", flowID).Error("Failed to record flow failure")
	}
	o.logger.WithFields(map[string]interface{}{
		"flow_id": flowID,
		"state":   string(contracts.FlowFailed),
		"error":   cause.Error(),
	}).Error("Flow failed")
	return cause
}

func (o *Orchestrator) isCancelled(ctx context.Context, flowID string) (bool, error) {
	f, err := o.flows.GetFlow(ctx, flowID)
	if err != nil {
		return false, fmt.Errorf("failed to read flow %s: %w", flowID, err)
	}
	return f.State == contracts.FlowCancelled, nil
}

// skipRemaining records planned jobs that will not run
func (o *Orchestrator) skipRemaining(ctx context.Context, flowID string, rest []step, done int) {
	for i, st := range rest {
		job := &contracts.JobExecution{
			FlowID: flowID,
			Name:   st.stage.JobName(),
			Stage:  st.stage,
			Seq:    done + i + 1,
			State:  contracts.JobSkipped,
		}
		if err := o.flows.CreateJob(ctx, job); err != nil {
			o.logger.WithError(err).WithField("job", job.Name).Warn("Failed to record skipped job")
		}
	}
}

// publishTop announces the top scored symbols. Failures are logged only.
func (o *Orchestrator) publishTop(ctx context.Context, flowID string, asOf time.Time) {
	if o.publisher == nil || o.symbols == nil {
		return
	}
	log := o.logger.WithField("flow_id", flowID)

	top, err := o.symbols.ListByDate(ctx, asOf, o.topN)
	if err != nil {
		log.WithError(err).Warn("Failed to load top rankings")
		return
	}
	if err := o.publisher.PublishRankings(ctx, asOf, top); err != nil {
		log.WithError(err).Warn("Failed to publish rankings")
		return
	}
	log.WithField("count", len(top)).Info("Rankings published")
}

// encodeReport serializes a stage report with its error list capped
func encodeReport(r contracts.StageReport) json.RawMessage {
	raw, err := json.Marshal(r.Capped(contracts.MaxReportedErrors))
	if err != nil {
		return nil
	}
	return raw
}
