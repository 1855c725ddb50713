package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/guregu/null/v6"

	"github.com/wonny/canslim-screener/internal/contracts"
	"github.com/wonny/canslim-screener/pkg/logger"
)

// Screener list bounds
const (
	DefaultScreenerLimit = 50
	MaxScreenerLimit     = 1000
)

// ScreenerHandler serves scored symbols, benchmarks and the market condition
// ⭐ SSOT: 스크리너 조회 API는 이 구조체에서만
type ScreenerHandler struct {
	symbols    contracts.ScoredSymbolRepository
	benchmarks contracts.BenchmarkRepository
	snapshots  contracts.MarketSnapshotRepository
	logger     *logger.Logger
}

func NewScreenerHandler(
	symbols contracts.ScoredSymbolRepository,
	benchmarks contracts.BenchmarkRepository,
	snapshots contracts.MarketSnapshotRepository,
	log *logger.Logger,
) *ScreenerHandler {
	return &ScreenerHandler{
		symbols:    symbols,
		benchmarks: benchmarks,
		snapshots:  snapshots,
		logger:     log.WithComponent("api.screener"),
	}
}

// SymbolView is a scored row with derived display fields
type SymbolView struct {
	*contracts.ScoredSymbol
	IsComplete          bool       `json:"is_complete"`
	DistanceFromHighPct null.Float `json:"distance_from_high_pct"`
	VolumeRatio         null.Float `json:"volume_ratio"`
}

func newSymbolView(s *contracts.ScoredSymbol) SymbolView {
	return SymbolView{
		ScoredSymbol:        s,
		IsComplete:          s.IsComplete(),
		DistanceFromHighPct: s.DistanceFromHighPct(),
		VolumeRatio:         s.VolumeRatio(),
	}
}

// List returns scored symbols for a date ordered by composite score.
// Without date the latest as-of date is used.
// GET /api/screener?date=YYYY-MM-DD&limit=N
func (h *ScreenerHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, ok := queryInt(r, "limit", DefaultScreenerLimit)
	if !ok {
		respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}
	if limit == 0 || limit > MaxScreenerLimit {
		limit = MaxScreenerLimit
	}

	date, ok, err := parseDateParam(r.URL.Query().Get("date"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !ok {
		date, err = h.symbols.LatestDate(ctx)
		if errors.Is(err, contracts.ErrSymbolNotFound) {
			respondJSON(w, http.StatusOK, map[string]interface{}{
				"date":    nil,
				"count":   0,
				"symbols": []SymbolView{},
			})
			return
		}
		if err != nil {
			h.logger.WithError(err).Error("Failed to get latest date")
			respondError(w, http.StatusInternalServerError, "Failed to get latest date")
			return
		}
	}

	rows, err := h.symbols.ListByDate(ctx, date, limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list scored symbols")
		respondError(w, http.StatusInternalServerError, "Failed to list scored symbols")
		return
	}

	views := make([]SymbolView, 0, len(rows))
	for _, row := range rows {
		views = append(views, newSymbolView(row))
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"date":    contracts.DateKey(date),
		"count":   len(views),
		"symbols": views,
	})
}

// Get returns one symbol's row
// GET /api/screener/{symbol}?date=YYYY-MM-DD
func (h *ScreenerHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])

	date, ok, err := parseDateParam(r.URL.Query().Get("date"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !ok {
		date, err = h.symbols.LatestDate(ctx)
		if errors.Is(err, contracts.ErrSymbolNotFound) {
			respondError(w, http.StatusNotFound, "Symbol not found")
			return
		}
		if err != nil {
			h.logger.WithError(err).Error("Failed to get latest date")
			respondError(w, http.StatusInternalServerError, "Failed to get latest date")
			return
		}
	}

	row, err := h.symbols.Get(ctx, symbol, date)
	if errors.Is(err, contracts.ErrSymbolNotFound) {
		respondError(w, http.StatusNotFound, "Symbol not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("symbol", symbol).Error("Failed to get scored symbol")
		respondError(w, http.StatusInternalServerError, "Failed to get scored symbol")
		return
	}
	respondJSON(w, http.StatusOK, newSymbolView(row))
}

// ListBenchmarks returns the latest record of every index
// GET /api/benchmarks
func (h *ScreenerHandler) ListBenchmarks(w http.ResponseWriter, r *http.Request) {
	recs, err := h.benchmarks.List(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list benchmarks")
		respondError(w, http.StatusInternalServerError, "Failed to list benchmarks")
		return
	}
	if recs == nil {
		recs = []*contracts.BenchmarkRecord{}
	}
	respondJSON(w, http.StatusOK, recs)
}

// GetBenchmark returns the latest record for one index, with freshness
// GET /api/benchmarks/{symbol}
func (h *ScreenerHandler) GetBenchmark(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])

	rec, err := h.benchmarks.Get(r.Context(), symbol)
	if errors.Is(err, contracts.ErrBenchmarkUnavailable) {
		respondError(w, http.StatusNotFound, "Benchmark not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("symbol", symbol).Error("Failed to get benchmark")
		respondError(w, http.StatusInternalServerError, "Failed to get benchmark")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"benchmark": rec,
		"age_hours": time.Since(rec.RecordedAt).Hours(),
	})
}

// MarketCondition returns the latest market regime snapshot
// GET /api/market
func (h *ScreenerHandler) MarketCondition(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshots.Latest(r.Context())
	if errors.Is(err, contracts.ErrDataUnavailable) {
		respondError(w, http.StatusNotFound, "No market snapshot recorded")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to get market snapshot")
		respondError(w, http.StatusInternalServerError, "Failed to get market snapshot")
		return
	}
	respondJSON(w, http.StatusOK, snap)
}
