package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/wonny/canslim-screener/internal/contracts"
)

// BenchmarkRepo is an in-memory contracts.BenchmarkRepository
type BenchmarkRepo struct {
	mu      sync.RWMutex
	records map[string]contracts.BenchmarkRecord
}

// NewBenchmarkRepo creates an empty repository
func NewBenchmarkRepo() *BenchmarkRepo {
	return &BenchmarkRepo{records: make(map[string]contracts.BenchmarkRecord)}
}

// Upsert replaces the record for the symbol (latest wins)
func (r *BenchmarkRepo) Upsert(ctx context.Context, rec *contracts.BenchmarkRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[strings.ToUpper(rec.Symbol)] = *rec
	return nil
}

// Get returns ErrBenchmarkUnavailable when absent
func (r *BenchmarkRepo) Get(ctx context.Context, symbol string) (*contracts.BenchmarkRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[strings.ToUpper(symbol)]
	if !ok {
		return nil, contracts.ErrBenchmarkUnavailable
	}
	return &rec, nil
}

// List returns all records ordered by symbol
func (r *BenchmarkRepo) List(ctx context.Context) ([]*contracts.BenchmarkRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*contracts.BenchmarkRecord, 0, len(r.records))
	for _, rec := range r.records {
		rec := rec
		out = append(out, &rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

// SnapshotRepo is an in-memory contracts.MarketSnapshotRepository
type SnapshotRepo struct {
	mu     sync.RWMutex
	latest *contracts.MarketSnapshot
}

// NewSnapshotRepo creates an empty repository
func NewSnapshotRepo() *SnapshotRepo {
	return &SnapshotRepo{}
}

// Save records a snapshot; only the most recent is kept
func (r *SnapshotRepo) Save(ctx context.Context, snap *contracts.MarketSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.latest == nil || !snap.RecordedAt.Before(r.latest.RecordedAt) {
		s := *snap
		r.latest = &s
	}
	return nil
}

// Latest returns ErrDataUnavailable when no snapshot exists
func (r *SnapshotRepo) Latest(ctx context.Context) (*contracts.MarketSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.latest == nil {
		return nil, contracts.ErrDataUnavailable
	}
	s := *r.latest
	return &s, nil
}
