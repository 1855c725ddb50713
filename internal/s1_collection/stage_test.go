package s1_collection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/canslim-screener/internal/contracts"
	"github.com/wonny/canslim-screener/internal/data/memory"
	"github.com/wonny/canslim-screener/internal/external/marketdatatest"
	"github.com/wonny/canslim-screener/pkg/logger"
)

var asOf = time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)

type fixture struct {
	market     *marketdatatest.Fake
	benchmarks *memory.BenchmarkRepo
	symbols    *memory.ScoredSymbolRepo
	stage      *Stage
}

func newFixture(t *testing.T, benchmarkPerf float64) *fixture {
	t.Helper()
	f := &fixture{
		market:     marketdatatest.New("^GSPC"),
		benchmarks: memory.NewBenchmarkRepo(),
		symbols:    memory.NewScoredSymbolRepo(),
	}
	require.NoError(t, f.benchmarks.Upsert(context.Background(), &contracts.BenchmarkRecord{
		Symbol:              "^GSPC",
		WeightedPerformance: benchmarkPerf,
		RecordedAt:          asOf,
	}))
	f.stage = NewStage(f.market, f.benchmarks, f.symbols, Config{
		BenchmarkSymbol: "^GSPC",
		BenchmarkMaxAge: 96 * time.Hour,
		Workers:         3,
	}, logger.Nop())
	f.stage.now = func() time.Time { return asOf.Add(2 * time.Hour) }
	return f
}

func (f *fixture) addSymbol(symbol string, gainPct float64, sessions int) {
	f.market.Quotes[symbol] = &contracts.Quote{
		Symbol:    symbol,
		Name:      symbol + " Inc",
		Price:     120,
		Volume:    2_000_000,
		MarketCap: 1e9,
		High52W:   125,
		Low52W:    80,
	}
	f.market.Fundamentals[symbol] = &contracts.Fundamentals{
		Symbol:             symbol,
		Industry:           "Semiconductors",
		QuarterlyEPSGrowth: null.FloatFrom(30),
		AnnualEPSGrowth:    null.FloatFrom(25),
		InstitutionalPct:   null.FloatFrom(60),
	}
	f.market.History[symbol] = marketdatatest.TrendBars(sessions, gainPct)
}

func TestExecute_ComputesRelativeStrength(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10)
	f.addSymbol("AAPL", 20, 300)

	report, err := f.stage.Execute(ctx, Input{Symbols: []string{"aapl"}, Source: "custom", AsOf: asOf})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 0, report.Failed)
	assert.InDelta(t, 10.0, report.BenchmarkPerformance, 1e-9)
	assert.Equal(t, "2026-10-16", report.Date)

	row, err := f.symbols.Get(ctx, "AAPL", asOf)
	require.NoError(t, err)
	require.True(t, row.RelativeStrength.Valid)
	assert.InDelta(t, 109.0909, row.RelativeStrength.Float64, 1e-3)
	assert.Equal(t, "Semiconductors", row.Industry)
	assert.InDelta(t, 30.0, row.QuarterlyEPSGrowth.Float64, 1e-9)
	assert.InDelta(t, 1_000_000.0, row.AvgVolume50D.Float64, 1e-9)
	assert.False(t, row.PercentileRank.Valid)
	assert.False(t, row.CompositeScore.Valid)
}

func TestExecute_IsolatesSymbolFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10)
	f.addSymbol("AAPL", 20, 300)
	f.addSymbol("MSFT", 5, 300)
	f.addSymbol("NEWCO", 50, 100) // short history
	f.market.Errors["BROKEN"] = errors.New("upstream 502")

	report, err := f.stage.Execute(ctx, Input{
		Symbols: []string{"AAPL", "BROKEN", "MSFT", "NEWCO"},
		AsOf:    asOf,
	})
	require.NoError(t, err)

	assert.Equal(t, 4, report.Processed)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 2, report.Failed)
	require.Len(t, report.Errors, 2)
	assert.Equal(t, "BROKEN", report.Errors[0].Symbol)
	assert.Equal(t, "NEWCO", report.Errors[1].Symbol)
	assert.Contains(t, report.Errors[1].Message, "insufficient price history")

	// 이력 부족 종목은 RS 없이 저장됨
	row, err := f.symbols.Get(ctx, "NEWCO", asOf)
	require.NoError(t, err)
	assert.False(t, row.RelativeStrength.Valid)
	assert.True(t, row.Price.Valid)

	_, err = f.symbols.Get(ctx, "BROKEN", asOf)
	assert.ErrorIs(t, err, contracts.ErrSymbolNotFound)

	ranked, err := f.symbols.ListWithRelativeStrength(ctx, asOf)
	require.NoError(t, err)
	assert.Len(t, ranked, 2)
}

func TestExecute_NilQuoteIsSymbolFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10)
	f.addSymbol("AAPL", 20, 300)
	f.addSymbol("GHOST", 20, 300)
	f.market.Quotes["GHOST"] = nil

	report, err := f.stage.Execute(ctx, Input{Symbols: []string{"AAPL", "GHOST"}, AsOf: asOf})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "GHOST", report.Errors[0].Symbol)
	assert.Contains(t, report.Errors[0].Message, "quote")

	_, err = f.symbols.Get(ctx, "GHOST", asOf)
	assert.ErrorIs(t, err, contracts.ErrSymbolNotFound)
}

func TestExecute_MissingFundamentalsLeavesNulls(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10)
	f.addSymbol("TSLA", 10, 300)
	delete(f.market.Fundamentals, "TSLA")

	report, err := f.stage.Execute(ctx, Input{Symbols: []string{"TSLA"}, AsOf: asOf})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)

	row, err := f.symbols.Get(ctx, "TSLA", asOf)
	require.NoError(t, err)
	assert.False(t, row.QuarterlyEPSGrowth.Valid)
	assert.False(t, row.InstitutionalPct.Valid)
	assert.InDelta(t, 100.0, row.RelativeStrength.Float64, 1e-9)
}

func TestExecute_BenchmarkPreconditions(t *testing.T) {
	ctx := context.Background()

	t.Run("missing", func(t *testing.T) {
		f := newFixture(t, 10)
		f.stage.cfg.BenchmarkSymbol = "^NDX"
		f.addSymbol("AAPL", 20, 300)

		report, err := f.stage.Execute(ctx, Input{Symbols: []string{"AAPL"}, AsOf: asOf})
		assert.ErrorIs(t, err, contracts.ErrBenchmarkUnavailable)
		assert.Equal(t, 0, report.Processed)
		assert.Equal(t, 0, f.market.Calls("AAPL"))
	})

	t.Run("stale", func(t *testing.T) {
		f := newFixture(t, 10)
		f.stage.now = func() time.Time { return asOf.Add(5 * 24 * time.Hour) }
		f.addSymbol("AAPL", 20, 300)

		_, err := f.stage.Execute(ctx, Input{Symbols: []string{"AAPL"}, AsOf: asOf})
		assert.ErrorIs(t, err, contracts.ErrBenchmarkUnavailable)
		assert.Equal(t, 0, f.market.Calls("AAPL"))
	})

	t.Run("as-of date required", func(t *testing.T) {
		f := newFixture(t, 10)
		_, err := f.stage.Execute(ctx, Input{Symbols: []string{"AAPL"}})
		assert.ErrorIs(t, err, contracts.ErrAsOfDateRequired)
	})
}

func TestExecute_RerunClearsLaterStages(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10)
	f.addSymbol("AAPL", 20, 300)

	_, err := f.stage.Execute(ctx, Input{Symbols: []string{"AAPL"}, AsOf: asOf})
	require.NoError(t, err)
	_, err = f.symbols.UpdatePercentiles(ctx, asOf, []contracts.PercentileUpdate{{Symbol: "AAPL", PercentileRank: 99}})
	require.NoError(t, err)

	_, err = f.stage.Execute(ctx, Input{Symbols: []string{"AAPL"}, AsOf: asOf})
	require.NoError(t, err)

	row, err := f.symbols.Get(ctx, "AAPL", asOf)
	require.NoError(t, err)
	assert.False(t, row.PercentileRank.Valid)
	assert.Equal(t, 1, f.symbols.Count())
}

func TestBuildRow_FallsBackToHistory(t *testing.T) {
	bars := marketdatatest.TrendBars(260, 10)
	row := buildRow("XYZ", asOf, &contracts.Quote{Symbol: "XYZ", Price: 110}, nil, bars)

	assert.InDelta(t, 110.0, row.High52W.Float64, 1e-9)
	assert.InDelta(t, 100.0, row.Low52W.Float64, 1e-9)
	assert.Equal(t, int64(1_000_000), row.Volume.Int64)
	assert.False(t, row.MarketCap.Valid)
	assert.Empty(t, row.Industry)
}
