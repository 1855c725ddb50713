package contracts

import (
	"context"
	"time"
)

// ⭐ SSOT: Repository 인터페이스 정의는 여기서만
// 모든 쓰기는 키 기준 UPSERT (재실행 시 덮어쓰기, 중복 없음)

// ScoredSymbolRepository manages (symbol, date) scored rows
type ScoredSymbolRepository interface {
	// UpsertCollected writes identity, price, fundamental and RS fields and
	// clears percentile and score fields for the key
	UpsertCollected(ctx context.Context, row *ScoredSymbol) error
	// ListWithRelativeStrength returns rows for date with non-null RS
	ListWithRelativeStrength(ctx context.Context, date time.Time) ([]*ScoredSymbol, error)
	// ListRanked returns rows for date with non-null percentile rank
	ListRanked(ctx context.Context, date time.Time) ([]*ScoredSymbol, error)
	// UpdatePercentiles sets only percentile_rank; returns rows updated
	UpdatePercentiles(ctx context.Context, date time.Time, updates []PercentileUpdate) (int, error)
	// UpdateScores sets composite and sub-scores; returns rows updated
	UpdateScores(ctx context.Context, date time.Time, updates []ScoreUpdate) (int, error)
	Get(ctx context.Context, symbol string, date time.Time) (*ScoredSymbol, error)
	// ListByDate orders by composite desc (nulls last), then RS desc
	ListByDate(ctx context.Context, date time.Time, limit int) ([]*ScoredSymbol, error)
	LatestDate(ctx context.Context) (time.Time, error)
}

// BenchmarkRepository manages the latest benchmark record per index
type BenchmarkRepository interface {
	Upsert(ctx context.Context, rec *BenchmarkRecord) error
	// Get returns ErrBenchmarkUnavailable when no record exists
	Get(ctx context.Context, symbol string) (*BenchmarkRecord, error)
	List(ctx context.Context) ([]*BenchmarkRecord, error)
}

// MarketSnapshotRepository manages market regime snapshots
type MarketSnapshotRepository interface {
	Save(ctx context.Context, snap *MarketSnapshot) error
	// Latest returns ErrDataUnavailable when no snapshot exists
	Latest(ctx context.Context) (*MarketSnapshot, error)
}

// FlowRepository manages FlowExecution and JobExecution records
type FlowRepository interface {
	CreateFlow(ctx context.Context, flow *FlowExecution) error
	// StartFlow moves a pending flow to running
	StartFlow(ctx context.Context, id string, at time.Time) error
	// AdvanceFlow records progress of a running flow
	AdvanceFlow(ctx context.Context, id string, completedJobs int, currentJob string) error
	// FinishFlow moves a pending/running flow to a terminal state.
	// Returns false when the flow was already terminal.
	FinishFlow(ctx context.Context, id string, state FlowState, errMsg string, at time.Time) (bool, error)
	GetFlow(ctx context.Context, id string) (*FlowExecution, error)
	ListRecentFlows(ctx context.Context, limit int) ([]*FlowExecution, error)

	CreateJob(ctx context.Context, job *JobExecution) error
	UpdateJob(ctx context.Context, job *JobExecution) error
	ListJobs(ctx context.Context, flowID string) ([]*JobExecution, error)
}
