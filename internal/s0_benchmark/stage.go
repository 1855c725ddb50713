package s0_benchmark

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wonny/canslim-screener/internal/contracts"
	"github.com/wonny/canslim-screener/internal/signals"
	"github.com/wonny/canslim-screener/pkg/logger"
)

// Stage computes weighted historical performance for benchmark indices
// ⭐ SSOT: 벤치마크 가중 성과 계산/저장은 여기서만
type Stage struct {
	market        contracts.MarketDataPort
	benchmarks    contracts.BenchmarkRepository
	snapshots     contracts.MarketSnapshotRepository
	defaultSymbol string
	logger        *logger.Logger
	now           func() time.Time
}

// NewStage creates a benchmark stage. snapshots may be nil to skip regime snapshots.
func NewStage(
	market contracts.MarketDataPort,
	benchmarks contracts.BenchmarkRepository,
	snapshots contracts.MarketSnapshotRepository,
	defaultSymbol string,
	log *logger.Logger,
) *Stage {
	return &Stage{
		market:        market,
		benchmarks:    benchmarks,
		snapshots:     snapshots,
		defaultSymbol: strings.ToUpper(defaultSymbol),
		logger:        log.WithComponent("s0_benchmark"),
		now:           time.Now,
	}
}

// Input selects the indices to refresh. Empty Symbols means the default index.
type Input struct {
	Symbols []string
	AsOf    time.Time // zero means now
}

// Execute refreshes each index independently; one index failing does not stop the others.
// Only persistence failures are returned as errors.
func (s *Stage) Execute(ctx context.Context, in Input) (*contracts.BenchmarkReport, error) {
	symbols := contracts.NormalizeSymbols(in.Symbols)
	if len(symbols) == 0 {
		symbols = []string{s.defaultSymbol}
	}
	end := in.AsOf
	if end.IsZero() {
		end = s.now()
	}

	s.logger.WithFields(map[string]interface{}{
		"symbols": symbols,
		"end":     contracts.DateKey(end),
	}).Info("Starting benchmark refresh")

	report := &contracts.BenchmarkReport{
		Performance: make(map[string]float64, len(symbols)),
		ErrorSummary: contracts.ErrorSummary{
			Errors: []contracts.SymbolError{},
		},
	}

	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		bars, err := s.fetchHistory(ctx, symbol, end)
		if err != nil {
			s.recordFailure(report, symbol, err)
			continue
		}

		perf, err := signals.ComputePerformance(bars)
		if err != nil {
			s.recordFailure(report, symbol, err)
			continue
		}

		rec := &contracts.BenchmarkRecord{
			Symbol:              symbol,
			Return1M:            perf.Return1M,
			Return3M:            perf.Return3M,
			Return6M:            perf.Return6M,
			Return9M:            perf.Return9M,
			Return12M:           perf.Return12M,
			WeightedPerformance: perf.Weighted,
			RecordedAt:          s.now(),
		}
		if err := s.benchmarks.Upsert(ctx, rec); err != nil {
			return report, fmt.Errorf("failed to save benchmark %s: %w", symbol, err)
		}

		report.Updated++
		report.Performance[symbol] = perf.Weighted

		if symbol == s.defaultSymbol {
			s.saveRegime(ctx, symbol, bars)
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"updated": report.Updated,
		"failed":  report.ErrorCount,
	}).Info("Benchmark refresh completed")

	return report, nil
}

func (s *Stage) fetchHistory(ctx context.Context, symbol string, end time.Time) ([]contracts.Bar, error) {
	q := contracts.HistoryQuery{Period: contracts.Period2Y, Interval: contracts.IntervalDaily, End: end}
	if symbol == s.defaultSymbol {
		return s.market.GetBenchmarkHistory(ctx, q)
	}
	return s.market.GetPriceHistory(ctx, symbol, q)
}

// saveRegime persists a market snapshot for the default index; failures only log
func (s *Stage) saveRegime(ctx context.Context, symbol string, bars []contracts.Bar) {
	if s.snapshots == nil {
		return
	}

	regime, err := signals.ClassifyMarket(bars)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to classify market regime")
		return
	}

	snap := &contracts.MarketSnapshot{
		Symbol:     symbol,
		Condition:  regime.Condition,
		Close:      regime.Close,
		SMA50:      regime.SMA50,
		SMA200:     regime.SMA200,
		Source:     "computed",
		RecordedAt: s.now(),
	}
	if err := s.snapshots.Save(ctx, snap); err != nil {
		s.logger.WithError(err).Warn("Failed to save market snapshot")
		return
	}

	s.logger.WithFields(map[string]interface{}{
		"symbol":    symbol,
		"condition": regime.Condition,
	}).Info("Market regime updated")
}

func (s *Stage) recordFailure(report *contracts.BenchmarkReport, symbol string, err error) {
	report.Record(symbol, err)

	level := s.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"error":  err.Error(),
	})
	if errors.Is(err, contracts.ErrInsufficientHistory) {
		level.Warn("Benchmark has insufficient history")
		return
	}
	level.Warn("Failed to compute benchmark")
}
