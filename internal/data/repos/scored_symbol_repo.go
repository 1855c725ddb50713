package repos

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/canslim-screener/internal/contracts"
)

// ScoredSymbolRepository implements contracts.ScoredSymbolRepository
// ⭐ SSOT: scored_symbols 저장/조회는 여기서만
type ScoredSymbolRepository struct {
	pool *pgxpool.Pool
}

// NewScoredSymbolRepository creates a new scored symbol repository
func NewScoredSymbolRepository(pool *pgxpool.Pool) *ScoredSymbolRepository {
	return &ScoredSymbolRepository{pool: pool}
}

const scoredSymbolColumns = `
	symbol, as_of_date, name, industry,
	price, high_52w, low_52w, volume, avg_volume_50d, market_cap, day_change_pct,
	quarterly_eps_growth, annual_eps_growth, institutional_pct,
	relative_strength, percentile_rank, composite_score,
	score_c, score_a, score_n, score_s, score_l, score_i, score_m,
	updated_at
`

// UpsertCollected writes collection fields; a rerun clears percentile and scores
func (r *ScoredSymbolRepository) UpsertCollected(ctx context.Context, row *contracts.ScoredSymbol) error {
	query := `
		INSERT INTO screener.scored_symbols (
			symbol, as_of_date, name, industry,
			price, high_52w, low_52w, volume, avg_volume_50d, market_cap, day_change_pct,
			quarterly_eps_growth, annual_eps_growth, institutional_pct,
			relative_strength, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW())
		ON CONFLICT (symbol, as_of_date) DO UPDATE SET
			name = EXCLUDED.name,
			industry = EXCLUDED.industry,
			price = EXCLUDED.price,
			high_52w = EXCLUDED.high_52w,
			low_52w = EXCLUDED.low_52w,
			volume = EXCLUDED.volume,
			avg_volume_50d = EXCLUDED.avg_volume_50d,
			market_cap = EXCLUDED.market_cap,
			day_change_pct = EXCLUDED.day_change_pct,
			quarterly_eps_growth = EXCLUDED.quarterly_eps_growth,
			annual_eps_growth = EXCLUDED.annual_eps_growth,
			institutional_pct = EXCLUDED.institutional_pct,
			relative_strength = EXCLUDED.relative_strength,
			percentile_rank = NULL,
			composite_score = NULL,
			score_c = NULL, score_a = NULL, score_n = NULL, score_s = NULL,
			score_l = NULL, score_i = NULL, score_m = NULL,
			updated_at = NOW()
	`

	_, err := r.pool.Exec(ctx, query,
		strings.ToUpper(row.Symbol), row.Date, row.Name, row.Industry,
		row.Price, row.High52W, row.Low52W, row.Volume, row.AvgVolume50D, row.MarketCap, row.DayChangePct,
		row.QuarterlyEPSGrowth, row.AnnualEPSGrowth, row.InstitutionalPct,
		row.RelativeStrength,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert scored symbol %s: %w", row.Symbol, err)
	}
	return nil
}

// ListWithRelativeStrength returns rows for date with non-null RS
func (r *ScoredSymbolRepository) ListWithRelativeStrength(ctx context.Context, date time.Time) ([]*contracts.ScoredSymbol, error) {
	query := `SELECT ` + scoredSymbolColumns + `
		FROM screener.scored_symbols
		WHERE as_of_date = $1 AND relative_strength IS NOT NULL
		ORDER BY symbol
	`
	return r.query(ctx, query, date)
}

// ListRanked returns rows for date with non-null percentile rank
func (r *ScoredSymbolRepository) ListRanked(ctx context.Context, date time.Time) ([]*contracts.ScoredSymbol, error) {
	query := `SELECT ` + scoredSymbolColumns + `
		FROM screener.scored_symbols
		WHERE as_of_date = $1 AND percentile_rank IS NOT NULL
		ORDER BY symbol
	`
	return r.query(ctx, query, date)
}

// UpdatePercentiles bulk-updates only percentile_rank in one batch
func (r *ScoredSymbolRepository) UpdatePercentiles(ctx context.Context, date time.Time, updates []contracts.PercentileUpdate) (int, error) {
	if len(updates) == 0 {
		return 0, nil
	}

	query := `
		UPDATE screener.scored_symbols
		SET percentile_rank = $3, updated_at = NOW()
		WHERE symbol = $1 AND as_of_date = $2
	`

	batch := &pgx.Batch{}
	for _, u := range updates {
		batch.Queue(query, strings.ToUpper(u.Symbol), date, u.PercentileRank)
	}
	return r.sendBatch(ctx, batch, "percentile")
}

// UpdateScores bulk-updates composite and sub-scores in one batch
func (r *ScoredSymbolRepository) UpdateScores(ctx context.Context, date time.Time, updates []contracts.ScoreUpdate) (int, error) {
	if len(updates) == 0 {
		return 0, nil
	}

	query := `
		UPDATE screener.scored_symbols
		SET composite_score = $3,
			score_c = $4, score_a = $5, score_n = $6, score_s = $7,
			score_l = $8, score_i = $9, score_m = $10,
			updated_at = NOW()
		WHERE symbol = $1 AND as_of_date = $2
	`

	batch := &pgx.Batch{}
	for _, u := range updates {
		s := u.Scores
		batch.Queue(query, strings.ToUpper(u.Symbol), date, u.CompositeScore,
			s.C, s.A, s.N, s.S, s.L, s.I, s.M)
	}
	return r.sendBatch(ctx, batch, "score")
}

// sendBatch runs queued updates in a transaction and counts affected rows
func (r *ScoredSymbolRepository) sendBatch(ctx context.Context, batch *pgx.Batch, what string) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	results := tx.SendBatch(ctx, batch)
	updated := 0
	for i := 0; i < batch.Len(); i++ {
		tag, err := results.Exec()
		if err != nil {
			results.Close()
			return 0, fmt.Errorf("failed to apply %s update: %w", what, err)
		}
		updated += int(tag.RowsAffected())
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("failed to close %s batch: %w", what, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return updated, nil
}

// Get returns one row or ErrSymbolNotFound
func (r *ScoredSymbolRepository) Get(ctx context.Context, symbol string, date time.Time) (*contracts.ScoredSymbol, error) {
	query := `SELECT ` + scoredSymbolColumns + `
		FROM screener.scored_symbols
		WHERE symbol = $1 AND as_of_date = $2
	`
	row, err := scanScoredSymbol(r.pool.QueryRow(ctx, query, strings.ToUpper(symbol), date))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s on %s", contracts.ErrSymbolNotFound, symbol, contracts.DateKey(date))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scored symbol: %w", err)
	}
	return row, nil
}

// ListByDate orders by composite desc (nulls last), then RS desc
func (r *ScoredSymbolRepository) ListByDate(ctx context.Context, date time.Time, limit int) ([]*contracts.ScoredSymbol, error) {
	query := `SELECT ` + scoredSymbolColumns + `
		FROM screener.scored_symbols
		WHERE as_of_date = $1
		ORDER BY composite_score DESC NULLS LAST, relative_strength DESC NULLS LAST, symbol
	`
	args := []interface{}{date}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	return r.query(ctx, query, args...)
}

// LatestDate returns the most recent as-of date, or ErrSymbolNotFound when empty
func (r *ScoredSymbolRepository) LatestDate(ctx context.Context) (time.Time, error) {
	var latest *time.Time
	err := r.pool.QueryRow(ctx, `SELECT MAX(as_of_date) FROM screener.scored_symbols`).Scan(&latest)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get latest date: %w", err)
	}
	if latest == nil {
		return time.Time{}, contracts.ErrSymbolNotFound
	}
	return *latest, nil
}

func (r *ScoredSymbolRepository) query(ctx context.Context, query string, args ...interface{}) ([]*contracts.ScoredSymbol, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scored symbols: %w", err)
	}
	defer rows.Close()

	var out []*contracts.ScoredSymbol
	for rows.Next() {
		s, err := scanScoredSymbol(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

func scanScoredSymbol(row pgx.Row) (*contracts.ScoredSymbol, error) {
	var s contracts.ScoredSymbol
	err := row.Scan(
		&s.Symbol, &s.Date, &s.Name, &s.Industry,
		&s.Price, &s.High52W, &s.Low52W, &s.Volume, &s.AvgVolume50D, &s.MarketCap, &s.DayChangePct,
		&s.QuarterlyEPSGrowth, &s.AnnualEPSGrowth, &s.InstitutionalPct,
		&s.RelativeStrength, &s.PercentileRank, &s.CompositeScore,
		&s.Scores.C, &s.Scores.A, &s.Scores.N, &s.Scores.S, &s.Scores.L, &s.Scores.I, &s.Scores.M,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
