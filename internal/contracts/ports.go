package contracts

import (
	"context"
	"time"
)

// ⭐ SSOT: 외부 협력자 포트 정의는 여기서만
// 구현체는 orchestrator 생성 시점에 주입 (테스트는 fake 사용)

// MarketDataPort supplies quotes, OHLC history and fundamentals.
// Absent data is reported as ErrDataUnavailable.
type MarketDataPort interface {
	GetQuote(ctx context.Context, symbol string) (*Quote, error)
	GetPriceHistory(ctx context.Context, symbol string, q HistoryQuery) ([]Bar, error)
	GetFundamentals(ctx context.Context, symbol string) (*Fundamentals, error)
	// GetBenchmarkHistory returns history for the default broad-market index
	GetBenchmarkHistory(ctx context.Context, q HistoryQuery) ([]Bar, error)
}

// SymbolUniverseProvider resolves a source label (e.g. "sp500") to symbols
type SymbolUniverseProvider interface {
	GetSymbols(ctx context.Context, source string) ([]string, error)
}

// MarketConditionSource returns the latest regime, or ErrDataUnavailable
type MarketConditionSource interface {
	GetLatestCondition(ctx context.Context) (MarketCondition, error)
}

// RankingPublisher announces the top scored symbols of a completed flow
type RankingPublisher interface {
	PublishRankings(ctx context.Context, date time.Time, top []*ScoredSymbol) error
	Close() error
}
