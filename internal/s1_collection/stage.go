package s1_collection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/guregu/null/v6"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/wonny/canslim-screener/internal/contracts"
	"github.com/wonny/canslim-screener/internal/signals"
	"github.com/wonny/canslim-screener/pkg/logger"
)

// Config holds collection settings
type Config struct {
	BenchmarkSymbol   string
	BenchmarkMaxAge   time.Duration // 0 disables the freshness check
	Workers           int
	RequestsPerSecond float64 // 0 means unlimited
}

// Stage fetches per-symbol data, computes raw relative strength and writes partial rows
// ⭐ SSOT: 종목별 수집 + RS 원점수 계산은 여기서만
type Stage struct {
	market     contracts.MarketDataPort
	benchmarks contracts.BenchmarkRepository
	symbols    contracts.ScoredSymbolRepository
	cfg        Config
	logger     *logger.Logger
	now        func() time.Time
}

// NewStage creates a collection stage
func NewStage(
	market contracts.MarketDataPort,
	benchmarks contracts.BenchmarkRepository,
	symbols contracts.ScoredSymbolRepository,
	cfg Config,
	log *logger.Logger,
) *Stage {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Stage{
		market:     market,
		benchmarks: benchmarks,
		symbols:    symbols,
		cfg:        cfg,
		logger:     log.WithComponent("s1_collection"),
		now:        time.Now,
	}
}

// Input is one collection batch
type Input struct {
	Symbols []string
	Source  string
	AsOf    time.Time
}

// symbolResult is the outcome of one symbol
type symbolResult struct {
	symbol string
	err    error
}

// Execute collects every symbol independently.
// A missing or stale benchmark fails the stage before any symbol is processed.
func (s *Stage) Execute(ctx context.Context, in Input) (*contracts.CollectionReport, error) {
	report := &contracts.CollectionReport{
		Date:            contracts.DateKey(in.AsOf),
		Source:          in.Source,
		BenchmarkSymbol: s.cfg.BenchmarkSymbol,
		ErrorSummary:    contracts.ErrorSummary{Errors: []contracts.SymbolError{}},
	}
	if in.AsOf.IsZero() {
		return report, contracts.ErrAsOfDateRequired
	}

	benchmark, err := s.loadBenchmark(ctx)
	if err != nil {
		return report, err
	}
	report.BenchmarkPerformance = benchmark.WeightedPerformance

	symbols := contracts.NormalizeSymbols(in.Symbols)

	s.logger.WithFields(map[string]interface{}{
		"date":                  report.Date,
		"source":                in.Source,
		"symbols":               len(symbols),
		"workers":               s.cfg.Workers,
		"benchmark_performance": benchmark.WeightedPerformance,
	}).Info("Starting collection")

	results, err := s.collectAll(ctx, symbols, in.AsOf, benchmark.WeightedPerformance)
	if err != nil {
		return report, err
	}

	// 입력 순서대로 집계
	for _, sym := range symbols {
		res := results[sym]
		report.Processed++
		if res.err != nil {
			report.Failed++
			report.Record(sym, res.err)
			continue
		}
		report.Succeeded++
	}

	s.logger.WithFields(map[string]interface{}{
		"processed": report.Processed,
		"succeeded": report.Succeeded,
		"failed":    report.Failed,
	}).Info("Collection completed")

	return report, nil
}

func (s *Stage) loadBenchmark(ctx context.Context) (*contracts.BenchmarkRecord, error) {
	rec, err := s.benchmarks.Get(ctx, s.cfg.BenchmarkSymbol)
	if err != nil {
		if errors.Is(err, contracts.ErrBenchmarkUnavailable) {
			return nil, fmt.Errorf("%w: %s", contracts.ErrBenchmarkUnavailable, s.cfg.BenchmarkSymbol)
		}
		return nil, fmt.Errorf("failed to read benchmark %s: %w", s.cfg.BenchmarkSymbol, err)
	}
	if s.cfg.BenchmarkMaxAge > 0 && !rec.IsFresh(s.now(), s.cfg.BenchmarkMaxAge) {
		return nil, fmt.Errorf("%w: %s recorded at %s is older than %s",
			contracts.ErrBenchmarkUnavailable, rec.Symbol, rec.RecordedAt.Format(time.RFC3339), s.cfg.BenchmarkMaxAge)
	}
	return rec, nil
}

// collectAll runs a bounded worker pool. Per-symbol failures are captured in the
// result map; only persistence failures abort the pool.
func (s *Stage) collectAll(ctx context.Context, symbols []string, asOf time.Time, benchmarkPerf float64) (map[string]symbolResult, error) {
	var limiter *rate.Limiter
	if s.cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.cfg.RequestsPerSecond), 1)
	}

	results := make(map[string]symbolResult, len(symbols))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)

	for _, sym := range symbols {
		sym := sym
		g.Go(func() error {
			if limiter != nil {
				if err := limiter.Wait(gctx); err != nil {
					return err
				}
			}

			row, symErr := s.collectOne(gctx, sym, asOf, benchmarkPerf)
			if row != nil {
				if err := s.symbols.UpsertCollected(gctx, row); err != nil {
					return fmt.Errorf("failed to save %s: %w", sym, err)
				}
			}
			if symErr != nil {
				s.logger.WithFields(map[string]interface{}{
					"symbol": sym,
					"error":  symErr.Error(),
				}).Warn("Symbol collection failed")
			}

			mu.Lock()
			results[sym] = symbolResult{symbol: sym, err: symErr}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// collectOne builds the partial row for a symbol.
// A row with null RS is still returned when only the RS computation failed.
func (s *Stage) collectOne(ctx context.Context, symbol string, asOf time.Time, benchmarkPerf float64) (*contracts.ScoredSymbol, error) {
	quote, err := s.market.GetQuote(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("quote: %w", err)
	}
	if quote == nil {
		return nil, fmt.Errorf("quote: %w", contracts.ErrDataUnavailable)
	}

	fundamentals, err := s.market.GetFundamentals(ctx, symbol)
	if err != nil && !errors.Is(err, contracts.ErrDataUnavailable) {
		return nil, fmt.Errorf("fundamentals: %w", err)
	}

	bars, err := s.market.GetPriceHistory(ctx, symbol, contracts.HistoryQuery{
		Period:   contracts.Period2Y,
		Interval: contracts.IntervalDaily,
		End:      asOf,
	})
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}

	row := buildRow(symbol, asOf, quote, fundamentals, bars)

	perf, err := signals.ComputePerformance(bars)
	if err != nil {
		return row, err
	}
	rs, ok := signals.RelativeStrength(perf.Weighted, benchmarkPerf)
	if !ok {
		return row, fmt.Errorf("relative strength undefined for benchmark performance %.2f%%", benchmarkPerf)
	}
	row.RelativeStrength = null.FloatFrom(rs)
	return row, nil
}

// buildRow maps quote, fundamentals and history onto a partial ScoredSymbol
func buildRow(symbol string, asOf time.Time, q *contracts.Quote, f *contracts.Fundamentals, bars []contracts.Bar) *contracts.ScoredSymbol {
	row := &contracts.ScoredSymbol{
		Symbol: symbol,
		Date:   asOf,
		Name:   q.Name,
	}

	if q.Price > 0 {
		row.Price = null.FloatFrom(q.Price)
		row.DayChangePct = null.FloatFrom(q.DayChangePct)
	}
	if q.MarketCap > 0 {
		row.MarketCap = null.FloatFrom(q.MarketCap)
	}

	// 52주 고가/저가: quote 우선, 없으면 최근 252봉
	high, low, ok := signals.HighLow(bars, signals.Sessions12M)
	switch {
	case q.High52W > 0:
		row.High52W = null.FloatFrom(q.High52W)
	case ok:
		row.High52W = null.FloatFrom(high)
	}
	switch {
	case q.Low52W > 0:
		row.Low52W = null.FloatFrom(q.Low52W)
	case ok:
		row.Low52W = null.FloatFrom(low)
	}

	switch {
	case q.Volume > 0:
		row.Volume = null.IntFrom(q.Volume)
	case len(bars) > 0:
		row.Volume = null.IntFrom(bars[len(bars)-1].Volume)
	}
	if avg, ok := signals.AverageVolume(bars, 50); ok && avg > 0 {
		row.AvgVolume50D = null.FloatFrom(avg)
	}

	if f != nil {
		row.Industry = f.Industry
		row.QuarterlyEPSGrowth = f.QuarterlyEPSGrowth
		row.AnnualEPSGrowth = f.AnnualEPSGrowth
		row.InstitutionalPct = f.InstitutionalPct
	}
	return row
}
