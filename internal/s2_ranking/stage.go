package s2_ranking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/wonny/canslim-screener/internal/contracts"
	"github.com/wonny/canslim-screener/internal/signals"
	"github.com/wonny/canslim-screener/pkg/logger"
)

// Stage converts raw relative strength into 1~99 percentile ranks
// ⭐ SSOT: percentile_rank 는 이 stage 만 씀
type Stage struct {
	symbols contracts.ScoredSymbolRepository
	logger  *logger.Logger
}

// NewStage creates a ranking stage
func NewStage(symbols contracts.ScoredSymbolRepository, log *logger.Logger) *Stage {
	return &Stage{
		symbols: symbols,
		logger:  log.WithComponent("s2_ranking"),
	}
}

// Input identifies the ranking population
type Input struct {
	AsOf time.Time
}

// Execute ranks every row for the date that has a relative strength.
// The population is the date's rows, not the batch that produced them.
func (s *Stage) Execute(ctx context.Context, in Input) (*contracts.RankingReport, error) {
	report := &contracts.RankingReport{
		Date:         contracts.DateKey(in.AsOf),
		ErrorSummary: contracts.ErrorSummary{Errors: []contracts.SymbolError{}},
	}
	if in.AsOf.IsZero() {
		return report, contracts.ErrAsOfDateRequired
	}

	rows, err := s.symbols.ListWithRelativeStrength(ctx, in.AsOf)
	if err != nil {
		return report, fmt.Errorf("failed to load candidates: %w", err)
	}

	values := make([]signals.RSValue, 0, len(rows))
	for _, row := range rows {
		rs := row.RelativeStrength.Float64
		if math.IsNaN(rs) || math.IsInf(rs, 0) {
			report.Record(row.Symbol, errors.New("relative strength is not finite"))
			continue
		}
		values = append(values, signals.RSValue{Symbol: row.Symbol, RS: rs})
	}
	report.Total = len(values)

	if len(values) == 0 {
		return report, fmt.Errorf("%w %s", contracts.ErrNoCandidates, report.Date)
	}

	updates := signals.RankPercentiles(values)
	updated, err := s.symbols.UpdatePercentiles(ctx, in.AsOf, updates)
	if err != nil {
		return report, fmt.Errorf("failed to save percentiles: %w", err)
	}
	report.Updated = updated

	s.logger.WithFields(map[string]interface{}{
		"date":    report.Date,
		"total":   report.Total,
		"updated": report.Updated,
		"skipped": report.ErrorCount,
	}).Info("Ranking completed")

	return report, nil
}
