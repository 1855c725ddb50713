package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/canslim-screener/internal/contracts"
	"github.com/wonny/canslim-screener/internal/data/memory"
	"github.com/wonny/canslim-screener/internal/external/marketdatatest"
	"github.com/wonny/canslim-screener/internal/s0_benchmark"
	"github.com/wonny/canslim-screener/internal/s1_collection"
	"github.com/wonny/canslim-screener/internal/s2_ranking"
	"github.com/wonny/canslim-screener/internal/s3_scoring"
	"github.com/wonny/canslim-screener/pkg/logger"
)

var asOf = time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu    sync.Mutex
	dates []time.Time
	top   [][]*contracts.ScoredSymbol
}

func (p *recordingPublisher) PublishRankings(ctx context.Context, date time.Time, top []*contracts.ScoredSymbol) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dates = append(p.dates, date)
	p.top = append(p.top, top)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type staticUniverse map[string][]string

func (u staticUniverse) GetSymbols(ctx context.Context, source string) ([]string, error) {
	syms, ok := u[source]
	if !ok {
		return nil, fmt.Errorf("unknown source %q", source)
	}
	return syms, nil
}

type harness struct {
	market    *marketdatatest.Fake
	symbols   *memory.ScoredSymbolRepo
	flows     *memory.FlowRepo
	publisher *recordingPublisher
	orch      *Orchestrator
	service   *Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	h := &harness{
		market:    marketdatatest.New("^GSPC"),
		symbols:   memory.NewScoredSymbolRepo(),
		flows:     memory.NewFlowRepo(),
		publisher: &recordingPublisher{},
	}
	benchmarks := memory.NewBenchmarkRepo()
	snapshots := memory.NewSnapshotRepo()
	require.NoError(t, benchmarks.Upsert(ctx, &contracts.BenchmarkRecord{
		Symbol:              "^GSPC",
		WeightedPerformance: 10,
		RecordedAt:          time.Now(),
	}))

	s := Stages{
		Benchmark: s0_benchmark.NewStage(h.market, benchmarks, snapshots, "^GSPC", logger.Nop()),
		Collection: s1_collection.NewStage(h.market, benchmarks, h.symbols, s1_collection.Config{
			BenchmarkSymbol: "^GSPC",
			Workers:         2,
		}, logger.Nop()),
		Ranking: s2_ranking.NewStage(h.symbols, logger.Nop()),
		Scoring: s3_scoring.NewStage(h.symbols, NewSnapshotCondition(snapshots), logger.Nop()),
	}

	universe := staticUniverse{"test": {"AAPL", "MSFT", "NVDA"}}
	h.orch = NewOrchestrator(s, h.flows, h.symbols, universe, Options{Publisher: h.publisher, TopN: 2}, logger.Nop())
	h.service = NewService(h.orch, h.flows, logger.Nop())
	return h
}

func (h *harness) addSymbol(symbol string, gainPct float64) {
	h.market.Quotes[symbol] = &contracts.Quote{Symbol: symbol, Price: 100, Volume: 1_500_000, High52W: 105}
	h.market.Fundamentals[symbol] = &contracts.Fundamentals{
		Symbol:             symbol,
		QuarterlyEPSGrowth: null.FloatFrom(gainPct),
	}
	h.market.History[symbol] = marketdatatest.TrendBars(300, gainPct)
}

func TestRunRefresh_Completes(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.addSymbol("AAPL", 20)
	h.addSymbol("MSFT", 5)
	h.addSymbol("NVDA", 60)

	id, err := h.service.RunRefresh(ctx, RefreshRequest{Source: "test", AsOf: asOf, IncludeScoring: true})
	require.NoError(t, err)

	flow, err := h.service.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, contracts.FlowCompleted, flow.State)
	assert.Equal(t, 3, flow.TotalJobs)
	assert.Equal(t, 3, flow.CompletedJobs)
	assert.True(t, flow.StartedAt.Valid)
	assert.True(t, flow.CompletedAt.Valid)

	require.Len(t, flow.Jobs, 3)
	for i, name := range []string{"collection", "ranking", "scoring"} {
		assert.Equal(t, name, flow.Jobs[i].Name)
		assert.Equal(t, contracts.JobCompleted, flow.Jobs[i].State)
		assert.NotEmpty(t, flow.Jobs[i].Result)
	}

	var collection contracts.CollectionReport
	require.NoError(t, json.Unmarshal(flow.Jobs[0].Result, &collection))
	assert.Equal(t, 3, collection.Succeeded)

	nvda, err := h.symbols.Get(ctx, "NVDA", asOf)
	require.NoError(t, err)
	assert.True(t, nvda.IsComplete())
	assert.Equal(t, int64(99), nvda.PercentileRank.Int64)

	require.Len(t, h.publisher.top, 1)
	require.Len(t, h.publisher.top[0], 2)
	assert.Equal(t, "NVDA", h.publisher.top[0][0].Symbol)
}

func TestRunRefresh_SecondStageFailureStopsFlow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	// 모든 종목 수집 실패 → ranking 에 후보 없음
	symbols := make([]string, 15)
	for i := range symbols {
		symbols[i] = fmt.Sprintf("BAD%02d", i)
		h.market.Errors[symbols[i]] = errors.New("upstream 502")
	}

	id, err := h.service.RunRefresh(ctx, RefreshRequest{Symbols: symbols, AsOf: asOf, IncludeScoring: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, contracts.ErrNoCandidates)

	flow, err := h.service.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, contracts.FlowFailed, flow.State)
	assert.Contains(t, flow.Error, "ranking")
	assert.Equal(t, 1, flow.CompletedJobs)

	require.Len(t, flow.Jobs, 2)
	assert.Equal(t, contracts.JobCompleted, flow.Jobs[0].State)
	assert.Equal(t, contracts.JobFailed, flow.Jobs[1].State)
	assert.NotEmpty(t, flow.Jobs[1].Error)

	var collection contracts.CollectionReport
	require.NoError(t, json.Unmarshal(flow.Jobs[0].Result, &collection))
	assert.Equal(t, 15, collection.Failed)
	assert.Equal(t, 15, collection.ErrorCount)
	assert.Len(t, collection.Errors, contracts.MaxReportedErrors)

	assert.Empty(t, h.publisher.top)
}

type cancellingCollection struct {
	service *Service
	flowID  func() string
}

func (c cancellingCollection) Execute(ctx context.Context, in s1_collection.Input) (*contracts.CollectionReport, error) {
	if err := c.service.Cancel(ctx, c.flowID()); err != nil {
		return nil, err
	}
	return &contracts.CollectionReport{Processed: len(in.Symbols)}, nil
}

func TestRunRefresh_CancelSkipsRemainingJobs(t *testing.T) {
	ctx := context.Background()
	var flowID string
	h := newHarness(t)
	h.orch.stages.Collection = cancellingCollection{service: h.service, flowID: func() string { return flowID }}

	req := RefreshRequest{Symbols: []string{"AAPL"}, AsOf: asOf, IncludeScoring: true}
	flow, err := h.orch.PrepareRefresh(ctx, req)
	require.NoError(t, err)
	flowID = flow.ID

	require.NoError(t, h.orch.RunRefresh(ctx, flowID, req))

	got, err := h.service.Status(ctx, flowID)
	require.NoError(t, err)
	assert.Equal(t, contracts.FlowCancelled, got.State)
	require.Len(t, got.Jobs, 3)
	assert.Equal(t, contracts.JobCompleted, got.Jobs[0].State)
	assert.Equal(t, contracts.JobSkipped, got.Jobs[1].State)
	assert.Equal(t, contracts.JobSkipped, got.Jobs[2].State)
	assert.Empty(t, h.publisher.top)
}

func TestRunBenchmark(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.market.History["^GSPC"] = marketdatatest.TrendBars(260, 8)

	id, err := h.service.RunBenchmark(ctx, BenchmarkRequest{AsOf: asOf})
	require.NoError(t, err)

	flow, err := h.service.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, contracts.FlowBenchmarkRefresh, flow.Name)
	assert.Equal(t, contracts.FlowCompleted, flow.State)
	require.Len(t, flow.Jobs, 1)
	assert.Equal(t, contracts.StageBenchmark, flow.Jobs[0].Stage)
}

func TestPrepareRefresh_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.orch.PrepareRefresh(ctx, RefreshRequest{Source: "test"})
	assert.ErrorIs(t, err, contracts.ErrAsOfDateRequired)

	_, err = h.orch.PrepareRefresh(ctx, RefreshRequest{AsOf: asOf})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	flow, err := h.orch.PrepareRefresh(ctx, RefreshRequest{Source: "test", AsOf: asOf})
	require.NoError(t, err)
	assert.Equal(t, 2, flow.TotalJobs)
	assert.Equal(t, contracts.FlowPending, flow.State)

	var params contracts.FlowParams
	require.NoError(t, json.Unmarshal(flow.Params, &params))
	assert.Equal(t, "2026-10-16", params.Date)
	assert.False(t, params.IncludeScoring)
}

func TestRunRefresh_UnknownSourceFailsCollection(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	id, err := h.service.RunRefresh(ctx, RefreshRequest{Source: "nowhere", AsOf: asOf})
	require.Error(t, err)

	flow, err := h.service.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, contracts.FlowFailed, flow.State)
	require.Len(t, flow.Jobs, 1)
	assert.Equal(t, contracts.JobFailed, flow.Jobs[0].State)
	assert.Empty(t, flow.Jobs[0].Result)
}

type panickingRanking struct{}

func (panickingRanking) Execute(ctx context.Context, in s2_ranking.Input) (*contracts.RankingReport, error) {
	panic("ranking exploded")
}

func TestRunRefresh_StagePanicFailsJob(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.addSymbol("AAPL", 20)
	h.orch.stages.Ranking = panickingRanking{}

	check := func(t *testing.T, id string) {
		t.Helper()
		flow, err := h.service.Status(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, contracts.FlowFailed, flow.State)
		assert.Contains(t, flow.Error, "ranking")
		require.Len(t, flow.Jobs, 2)
		assert.Equal(t, contracts.JobCompleted, flow.Jobs[0].State)
		assert.Equal(t, contracts.JobFailed, flow.Jobs[1].State)
		assert.Contains(t, flow.Jobs[1].Error, "panic: ranking exploded")
		assert.True(t, flow.Jobs[1].CompletedAt.Valid)
	}

	t.Run("background", func(t *testing.T) {
		id, err := h.service.StartRefresh(ctx, RefreshRequest{Symbols: []string{"AAPL"}, AsOf: asOf})
		require.NoError(t, err)
		h.service.Wait()
		check(t, id)
	})

	t.Run("synchronous", func(t *testing.T) {
		id, err := h.service.RunRefresh(ctx, RefreshRequest{Symbols: []string{"AAPL"}, AsOf: asOf})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "panic")
		check(t, id)
	})
}

// faultyFlows fails selected reads/writes of an otherwise working repository
type faultyFlows struct {
	*memory.FlowRepo
	getErr   error
	startErr error
}

func (f *faultyFlows) GetFlow(ctx context.Context, id string) (*contracts.FlowExecution, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.FlowRepo.GetFlow(ctx, id)
}

func (f *faultyFlows) StartFlow(ctx context.Context, id string, at time.Time) error {
	if f.startErr != nil {
		return f.startErr
	}
	return f.FlowRepo.StartFlow(ctx, id, at)
}

func TestRun_InfrastructureErrorsFailFlow(t *testing.T) {
	tests := []struct {
		name      string
		flows     func(base *memory.FlowRepo) *faultyFlows
		wantError string
	}{
		{
			name: "state read fails",
			flows: func(base *memory.FlowRepo) *faultyFlows {
				return &faultyFlows{FlowRepo: base, getErr: errors.New("connection reset")}
			},
			wantError: "connection reset",
		},
		{
			name: "start fails",
			flows: func(base *memory.FlowRepo) *faultyFlows {
				return &faultyFlows{FlowRepo: base, startErr: errors.New("statement timeout")}
			},
			wantError: "statement timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			h := newHarness(t)
			faulty := tt.flows(h.flows)
			orch := NewOrchestrator(h.orch.stages, faulty, h.symbols, staticUniverse{}, Options{}, logger.Nop())

			req := RefreshRequest{Symbols: []string{"AAPL"}, AsOf: asOf}
			flow, err := orch.PrepareRefresh(ctx, req)
			require.NoError(t, err)

			err = orch.RunRefresh(ctx, flow.ID, req)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantError)

			got, err := h.flows.GetFlow(ctx, flow.ID)
			require.NoError(t, err)
			assert.Equal(t, contracts.FlowFailed, got.State)
			assert.Contains(t, got.Error, tt.wantError)
			assert.True(t, got.CompletedAt.Valid)
		})
	}
}
