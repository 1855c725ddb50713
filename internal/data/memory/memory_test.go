package memory

import (
	"context"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/canslim-screener/internal/contracts"
)

var asOf = time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)

func TestUpsertCollected_Idempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewScoredSymbolRepo()

	row := &contracts.ScoredSymbol{
		Symbol:           "aapl",
		Date:             asOf,
		Name:             "Apple Inc.",
		Price:            null.FloatFrom(187.5),
		RelativeStrength: null.FloatFrom(104.2),
	}

	require.NoError(t, repo.UpsertCollected(ctx, row))
	first, err := repo.Get(ctx, "AAPL", asOf)
	require.NoError(t, err)

	require.NoError(t, repo.UpsertCollected(ctx, row))
	second, err := repo.Get(ctx, "AAPL", asOf)
	require.NoError(t, err)

	assert.Equal(t, 1, repo.Count())
	first.UpdatedAt, second.UpdatedAt = time.Time{}, time.Time{}
	assert.Equal(t, first, second)
}

func TestUpsertCollected_ClearsLaterStages(t *testing.T) {
	ctx := context.Background()
	repo := NewScoredSymbolRepo()

	row := &contracts.ScoredSymbol{Symbol: "MSFT", Date: asOf, RelativeStrength: null.FloatFrom(99)}
	require.NoError(t, repo.UpsertCollected(ctx, row))

	_, err := repo.UpdatePercentiles(ctx, asOf, []contracts.PercentileUpdate{{Symbol: "MSFT", PercentileRank: 60}})
	require.NoError(t, err)
	_, err = repo.UpdateScores(ctx, asOf, []contracts.ScoreUpdate{{Symbol: "MSFT", CompositeScore: 55}})
	require.NoError(t, err)

	got, _ := repo.Get(ctx, "MSFT", asOf)
	assert.True(t, got.CompositeScore.Valid)

	require.NoError(t, repo.UpsertCollected(ctx, row))
	got, _ = repo.Get(ctx, "MSFT", asOf)
	assert.False(t, got.PercentileRank.Valid)
	assert.False(t, got.CompositeScore.Valid)
	assert.False(t, got.Scores.C.Valid)
}

func TestUpdatePercentiles_OnlyTouchesPercentile(t *testing.T) {
	ctx := context.Background()
	repo := NewScoredSymbolRepo()
	require.NoError(t, repo.UpsertCollected(ctx, &contracts.ScoredSymbol{Symbol: "A", Date: asOf, RelativeStrength: null.FloatFrom(101.5)}))

	n, err := repo.UpdatePercentiles(ctx, asOf, []contracts.PercentileUpdate{
		{Symbol: "A", PercentileRank: 42},
		{Symbol: "MISSING", PercentileRank: 10},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, _ := repo.Get(ctx, "A", asOf)
	assert.Equal(t, int64(42), got.PercentileRank.Int64)
	assert.InDelta(t, 101.5, got.RelativeStrength.Float64, 1e-9)
}

func TestListByDateOrdering(t *testing.T) {
	ctx := context.Background()
	repo := NewScoredSymbolRepo()
	for _, s := range []string{"A", "B", "C"} {
		require.NoError(t, repo.UpsertCollected(ctx, &contracts.ScoredSymbol{Symbol: s, Date: asOf, RelativeStrength: null.FloatFrom(100)}))
	}
	_, _ = repo.UpdateScores(ctx, asOf, []contracts.ScoreUpdate{
		{Symbol: "A", CompositeScore: 40},
		{Symbol: "C", CompositeScore: 70},
	})

	rows, err := repo.ListByDate(ctx, asOf, 0)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"C", "A", "B"}, []string{rows[0].Symbol, rows[1].Symbol, rows[2].Symbol})

	latest, err := repo.LatestDate(ctx)
	require.NoError(t, err)
	assert.Equal(t, asOf, latest)
}

func TestBenchmarkRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewBenchmarkRepo()

	_, err := repo.Get(ctx, "^GSPC")
	assert.ErrorIs(t, err, contracts.ErrBenchmarkUnavailable)

	require.NoError(t, repo.Upsert(ctx, &contracts.BenchmarkRecord{Symbol: "^GSPC", WeightedPerformance: 8}))
	require.NoError(t, repo.Upsert(ctx, &contracts.BenchmarkRecord{Symbol: "^GSPC", WeightedPerformance: 10}))

	rec, err := repo.Get(ctx, "^gspc")
	require.NoError(t, err)
	assert.InDelta(t, 10.0, rec.WeightedPerformance, 1e-9)

	all, _ := repo.List(ctx)
	assert.Len(t, all, 1)
}

func TestFlowRepo_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewFlowRepo()
	now := time.Now()

	require.NoError(t, repo.CreateFlow(ctx, &contracts.FlowExecution{ID: "f1", Name: contracts.FlowScreenerRefresh, State: contracts.FlowPending, TotalJobs: 3, CreatedAt: now}))
	assert.Error(t, repo.AdvanceFlow(ctx, "f1", 1, "ranking"))

	require.NoError(t, repo.StartFlow(ctx, "f1", now))
	assert.ErrorIs(t, repo.StartFlow(ctx, "f1", now), contracts.ErrInvalidTransition)
	require.NoError(t, repo.AdvanceFlow(ctx, "f1", 1, "ranking"))

	ok, err := repo.FinishFlow(ctx, "f1", contracts.FlowCompleted, "", now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.FinishFlow(ctx, "f1", contracts.FlowCancelled, "", now)
	require.NoError(t, err)
	assert.False(t, ok, "terminal flows stay terminal")

	f, err := repo.GetFlow(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, contracts.FlowCompleted, f.State)
	assert.Equal(t, 1, f.CompletedJobs)
	assert.True(t, f.CompletedAt.Valid)

	_, err = repo.GetFlow(ctx, "nope")
	assert.ErrorIs(t, err, contracts.ErrFlowNotFound)
}

func TestFlowRepo_Jobs(t *testing.T) {
	ctx := context.Background()
	repo := NewFlowRepo()
	require.NoError(t, repo.CreateFlow(ctx, &contracts.FlowExecution{ID: "f1", State: contracts.FlowPending}))

	require.NoError(t, repo.CreateJob(ctx, &contracts.JobExecution{FlowID: "f1", Name: "ranking", Seq: 2, State: contracts.JobPending}))
	require.NoError(t, repo.CreateJob(ctx, &contracts.JobExecution{FlowID: "f1", Name: "collection", Seq: 1, State: contracts.JobPending}))
	assert.Error(t, repo.CreateJob(ctx, &contracts.JobExecution{FlowID: "f1", Name: "ranking"}))
	assert.ErrorIs(t, repo.CreateJob(ctx, &contracts.JobExecution{FlowID: "zz", Name: "x"}), contracts.ErrFlowNotFound)

	require.NoError(t, repo.UpdateJob(ctx, &contracts.JobExecution{FlowID: "f1", Name: "collection", Seq: 1, State: contracts.JobCompleted}))

	jobs, err := repo.ListJobs(ctx, "f1")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "collection", jobs[0].Name)
	assert.Equal(t, contracts.JobCompleted, jobs[0].State)
}

func TestListRecentFlows(t *testing.T) {
	ctx := context.Background()
	repo := NewFlowRepo()
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.CreateFlow(ctx, &contracts.FlowExecution{ID: id, CreatedAt: base.Add(time.Duration(i) * time.Hour)}))
	}

	flows, err := repo.ListRecentFlows(ctx, 2)
	require.NoError(t, err)
	require.Len(t, flows, 2)
	assert.Equal(t, "c", flows[0].ID)
	assert.Equal(t, "b", flows[1].ID)
}

func TestSnapshotRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewSnapshotRepo()

	_, err := repo.Latest(ctx)
	assert.ErrorIs(t, err, contracts.ErrDataUnavailable)

	t1 := time.Date(2026, 10, 15, 21, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Save(ctx, &contracts.MarketSnapshot{Condition: contracts.MarketRiskOn, RecordedAt: t1}))
	require.NoError(t, repo.Save(ctx, &contracts.MarketSnapshot{Condition: contracts.MarketRiskOff, RecordedAt: t1.Add(-time.Hour)}))

	snap, err := repo.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, contracts.MarketRiskOn, snap.Condition)
}
