package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/guregu/null/v6"

	"github.com/wonny/canslim-screener/internal/contracts"
)

type symbolKey struct {
	symbol string
	date   string
}

// ScoredSymbolRepo is an in-memory contracts.ScoredSymbolRepository
type ScoredSymbolRepo struct {
	mu   sync.RWMutex
	rows map[symbolKey]contracts.ScoredSymbol
	now  func() time.Time
}

// NewScoredSymbolRepo creates an empty repository
func NewScoredSymbolRepo() *ScoredSymbolRepo {
	return &ScoredSymbolRepo{
		rows: make(map[symbolKey]contracts.ScoredSymbol),
		now:  time.Now,
	}
}

func keyOf(symbol string, date time.Time) symbolKey {
	return symbolKey{symbol: strings.ToUpper(symbol), date: contracts.DateKey(date)}
}

// UpsertCollected writes the collection fields and clears later-stage fields
func (r *ScoredSymbolRepo) UpsertCollected(ctx context.Context, row *contracts.ScoredSymbol) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *row
	stored.Symbol = strings.ToUpper(row.Symbol)
	stored.Date = dateOnly(row.Date)
	stored.PercentileRank = null.Int{}
	stored.CompositeScore = null.Int{}
	stored.Scores = contracts.SubScores{}
	stored.UpdatedAt = r.now()

	r.rows[keyOf(row.Symbol, row.Date)] = stored
	return nil
}

// ListWithRelativeStrength returns rows for date with non-null RS, by symbol
func (r *ScoredSymbolRepo) ListWithRelativeStrength(ctx context.Context, date time.Time) ([]*contracts.ScoredSymbol, error) {
	return r.filter(date, func(s *contracts.ScoredSymbol) bool { return s.RelativeStrength.Valid }), nil
}

// ListRanked returns rows for date with non-null percentile, by symbol
func (r *ScoredSymbolRepo) ListRanked(ctx context.Context, date time.Time) ([]*contracts.ScoredSymbol, error) {
	return r.filter(date, func(s *contracts.ScoredSymbol) bool { return s.PercentileRank.Valid }), nil
}

// UpdatePercentiles sets only percentile_rank
func (r *ScoredSymbolRepo) UpdatePercentiles(ctx context.Context, date time.Time, updates []contracts.PercentileUpdate) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, u := range updates {
		k := keyOf(u.Symbol, date)
		row, ok := r.rows[k]
		if !ok {
			continue
		}
		row.PercentileRank = null.IntFrom(int64(u.PercentileRank))
		row.UpdatedAt = r.now()
		r.rows[k] = row
		n++
	}
	return n, nil
}

// UpdateScores sets composite and sub-scores
func (r *ScoredSymbolRepo) UpdateScores(ctx context.Context, date time.Time, updates []contracts.ScoreUpdate) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, u := range updates {
		k := keyOf(u.Symbol, date)
		row, ok := r.rows[k]
		if !ok {
			continue
		}
		row.CompositeScore = null.IntFrom(int64(u.CompositeScore))
		row.Scores = u.Scores.ToSubScores()
		row.UpdatedAt = r.now()
		r.rows[k] = row
		n++
	}
	return n, nil
}

// Get returns one row or ErrSymbolNotFound
func (r *ScoredSymbolRepo) Get(ctx context.Context, symbol string, date time.Time) (*contracts.ScoredSymbol, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row, ok := r.rows[keyOf(symbol, date)]
	if !ok {
		return nil, contracts.ErrSymbolNotFound
	}
	return &row, nil
}

// ListByDate orders by composite desc (nulls last), then RS desc, then symbol
func (r *ScoredSymbolRepo) ListByDate(ctx context.Context, date time.Time, limit int) ([]*contracts.ScoredSymbol, error) {
	rows := r.filter(date, func(*contracts.ScoredSymbol) bool { return true })
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.CompositeScore.Valid != b.CompositeScore.Valid {
			return a.CompositeScore.Valid
		}
		if a.CompositeScore.Int64 != b.CompositeScore.Int64 {
			return a.CompositeScore.Int64 > b.CompositeScore.Int64
		}
		if a.RelativeStrength.Valid != b.RelativeStrength.Valid {
			return a.RelativeStrength.Valid
		}
		if a.RelativeStrength.Float64 != b.RelativeStrength.Float64 {
			return a.RelativeStrength.Float64 > b.RelativeStrength.Float64
		}
		return a.Symbol < b.Symbol
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// LatestDate returns the most recent as-of date, or ErrSymbolNotFound when empty
func (r *ScoredSymbolRepo) LatestDate(ctx context.Context) (time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest time.Time
	for _, row := range r.rows {
		if row.Date.After(latest) {
			latest = row.Date
		}
	}
	if latest.IsZero() {
		return time.Time{}, contracts.ErrSymbolNotFound
	}
	return latest, nil
}

// Count returns the number of stored rows (tests)
func (r *ScoredSymbolRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rows)
}

func (r *ScoredSymbolRepo) filter(date time.Time, keep func(*contracts.ScoredSymbol) bool) []*contracts.ScoredSymbol {
	r.mu.RLock()
	defer r.mu.RUnlock()

	day := contracts.DateKey(date)
	var out []*contracts.ScoredSymbol
	for k, row := range r.rows {
		if k.date != day {
			continue
		}
		row := row
		if keep(&row) {
			out = append(out, &row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
