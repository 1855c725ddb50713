package s3_scoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/canslim-screener/internal/contracts"
	"github.com/wonny/canslim-screener/internal/signals"
	"github.com/wonny/canslim-screener/pkg/logger"
)

// Stage evaluates the seven CAN SLIM criteria for ranked rows
// ⭐ SSOT: composite_score 와 sub-score 는 이 stage 만 씀
type Stage struct {
	symbols contracts.ScoredSymbolRepository
	market  contracts.MarketConditionSource // nil → Neutral
	logger  *logger.Logger
}

// NewStage creates a scoring stage. market may be nil.
func NewStage(symbols contracts.ScoredSymbolRepository, market contracts.MarketConditionSource, log *logger.Logger) *Stage {
	return &Stage{
		symbols: symbols,
		market:  market,
		logger:  log.WithComponent("s3_scoring"),
	}
}

// Input identifies the scoring population.
// MarketCondition overrides the condition source when set.
type Input struct {
	AsOf            time.Time
	MarketCondition contracts.MarketCondition
}

// Execute scores every row for the date that has a percentile rank
func (s *Stage) Execute(ctx context.Context, in Input) (*contracts.ScoringReport, error) {
	report := &contracts.ScoringReport{
		Date:         contracts.DateKey(in.AsOf),
		ErrorSummary: contracts.ErrorSummary{Errors: []contracts.SymbolError{}},
	}
	if in.AsOf.IsZero() {
		return report, contracts.ErrAsOfDateRequired
	}

	condition := s.resolveCondition(ctx, in.MarketCondition)
	report.MarketCondition = condition

	rows, err := s.symbols.ListRanked(ctx, in.AsOf)
	if err != nil {
		return report, fmt.Errorf("failed to load ranked rows: %w", err)
	}
	report.Total = len(rows)
	if len(rows) == 0 {
		return report, fmt.Errorf("%w %s", contracts.ErrNoCandidates, report.Date)
	}

	updates := make([]contracts.ScoreUpdate, 0, len(rows))
	for _, row := range rows {
		if err := validateRow(row); err != nil {
			report.Record(row.Symbol, err)
			continue
		}
		scores := signals.EvaluateCANSLIM(row, condition)
		updates = append(updates, contracts.ScoreUpdate{
			Symbol:         row.Symbol,
			CompositeScore: signals.CompositeScore(scores),
			Scores:         scores,
		})
	}

	if len(updates) > 0 {
		updated, err := s.symbols.UpdateScores(ctx, in.AsOf, updates)
		if err != nil {
			return report, fmt.Errorf("failed to save scores: %w", err)
		}
		report.Updated = updated
	}

	s.logger.WithFields(map[string]interface{}{
		"date":             report.Date,
		"total":            report.Total,
		"updated":          report.Updated,
		"market_condition": string(condition),
		"errors":           report.ErrorCount,
	}).Info("Scoring completed")

	return report, nil
}

// resolveCondition: explicit input → condition source → Neutral
func (s *Stage) resolveCondition(ctx context.Context, explicit contracts.MarketCondition) contracts.MarketCondition {
	if explicit != "" {
		return explicit
	}
	if s.market == nil {
		return contracts.MarketNeutral
	}

	cond, err := s.market.GetLatestCondition(ctx)
	if err != nil {
		if !errors.Is(err, contracts.ErrDataUnavailable) {
			s.logger.WithError(err).Warn("Market condition lookup failed, using Neutral")
		}
		return contracts.MarketNeutral
	}
	return cond
}

// validateRow rejects rows whose stored inputs are out of range
func validateRow(row *contracts.ScoredSymbol) error {
	p := row.PercentileRank.Int64
	if p < signals.MinPercentile || p > signals.MaxPercentile {
		return fmt.Errorf("percentile rank %d out of range", p)
	}
	if row.Volume.Valid && row.Volume.Int64 < 0 {
		return fmt.Errorf("negative volume %d", row.Volume.Int64)
	}
	return nil
}
