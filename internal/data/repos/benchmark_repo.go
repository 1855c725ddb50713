package repos

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/canslim-screener/internal/contracts"
)

// BenchmarkRepository implements contracts.BenchmarkRepository
type BenchmarkRepository struct {
	pool *pgxpool.Pool
}

// NewBenchmarkRepository creates a new benchmark repository
func NewBenchmarkRepository(pool *pgxpool.Pool) *BenchmarkRepository {
	return &BenchmarkRepository{pool: pool}
}

// Upsert keeps only the latest record per index
func (r *BenchmarkRepository) Upsert(ctx context.Context, rec *contracts.BenchmarkRecord) error {
	query := `
		INSERT INTO screener.benchmarks (
			symbol, return_1m, return_3m, return_6m, return_9m, return_12m,
			weighted_performance, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (symbol) DO UPDATE SET
			return_1m = EXCLUDED.return_1m,
			return_3m = EXCLUDED.return_3m,
			return_6m = EXCLUDED.return_6m,
			return_9m = EXCLUDED.return_9m,
			return_12m = EXCLUDED.return_12m,
			weighted_performance = EXCLUDED.weighted_performance,
			recorded_at = EXCLUDED.recorded_at
	`

	_, err := r.pool.Exec(ctx, query,
		strings.ToUpper(rec.Symbol),
		rec.Return1M, rec.Return3M, rec.Return6M, rec.Return9M, rec.Return12M,
		rec.WeightedPerformance, rec.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert benchmark %s: %w", rec.Symbol, err)
	}
	return nil
}

// Get returns ErrBenchmarkUnavailable when no record exists
func (r *BenchmarkRepository) Get(ctx context.Context, symbol string) (*contracts.BenchmarkRecord, error) {
	query := `
		SELECT symbol, return_1m, return_3m, return_6m, return_9m, return_12m,
			weighted_performance, recorded_at
		FROM screener.benchmarks
		WHERE symbol = $1
	`
	rec, err := scanBenchmark(r.pool.QueryRow(ctx, query, strings.ToUpper(symbol)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, contracts.ErrBenchmarkUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get benchmark: %w", err)
	}
	return rec, nil
}

// List returns all records ordered by symbol
func (r *BenchmarkRepository) List(ctx context.Context) ([]*contracts.BenchmarkRecord, error) {
	query := `
		SELECT symbol, return_1m, return_3m, return_6m, return_9m, return_12m,
			weighted_performance, recorded_at
		FROM screener.benchmarks
		ORDER BY symbol
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query benchmarks: %w", err)
	}
	defer rows.Close()

	var out []*contracts.BenchmarkRecord
	for rows.Next() {
		rec, err := scanBenchmark(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan benchmark: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanBenchmark(row pgx.Row) (*contracts.BenchmarkRecord, error) {
	var rec contracts.BenchmarkRecord
	err := row.Scan(
		&rec.Symbol, &rec.Return1M, &rec.Return3M, &rec.Return6M, &rec.Return9M, &rec.Return12M,
		&rec.WeightedPerformance, &rec.RecordedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// MarketSnapshotRepository implements contracts.MarketSnapshotRepository
type MarketSnapshotRepository struct {
	pool *pgxpool.Pool
}

// NewMarketSnapshotRepository creates a new snapshot repository
func NewMarketSnapshotRepository(pool *pgxpool.Pool) *MarketSnapshotRepository {
	return &MarketSnapshotRepository{pool: pool}
}

// Save appends a snapshot; history is kept
func (r *MarketSnapshotRepository) Save(ctx context.Context, snap *contracts.MarketSnapshot) error {
	query := `
		INSERT INTO screener.market_snapshots (
			symbol, condition, close, sma50, sma200, source, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		strings.ToUpper(snap.Symbol), string(snap.Condition),
		snap.Close, snap.SMA50, snap.SMA200, snap.Source, snap.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save market snapshot: %w", err)
	}
	return nil
}

// Latest returns ErrDataUnavailable when no snapshot exists
func (r *MarketSnapshotRepository) Latest(ctx context.Context) (*contracts.MarketSnapshot, error) {
	query := `
		SELECT symbol, condition, close, sma50, sma200, source, recorded_at
		FROM screener.market_snapshots
		ORDER BY recorded_at DESC, id DESC
		LIMIT 1
	`
	var snap contracts.MarketSnapshot
	var condition string
	err := r.pool.QueryRow(ctx, query).Scan(
		&snap.Symbol, &condition, &snap.Close, &snap.SMA50, &snap.SMA200, &snap.Source, &snap.RecordedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: no market snapshot", contracts.ErrDataUnavailable)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get market snapshot: %w", err)
	}
	snap.Condition = contracts.MarketCondition(condition)
	return &snap, nil
}
