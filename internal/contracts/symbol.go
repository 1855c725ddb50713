package contracts

import (
	"strings"
	"time"

	"github.com/guregu/null/v6"
)

// ScoredSymbol is one symbol's staged computation result for an as-of date
// ⭐ SSOT: (symbol, date) 키 단위로 S1이 생성하고 S2/S3가 제자리 갱신
//
// Stage-pending fields use null types: Valid=false means "not yet computed
// by the owning stage". Fundamentals may stay null permanently.
type ScoredSymbol struct {
	Symbol   string    `json:"symbol"`
	Date     time.Time `json:"date"`
	Name     string    `json:"name"`
	Industry string    `json:"industry"`

	// Price fields (S1)
	Price        null.Float `json:"price"`
	High52W      null.Float `json:"high_52w"`
	Low52W       null.Float `json:"low_52w"`
	Volume       null.Int   `json:"volume"`
	AvgVolume50D null.Float `json:"avg_volume_50d"`
	MarketCap    null.Float `json:"market_cap"`
	DayChangePct null.Float `json:"day_change_pct"`

	// Fundamental fields (S1)
	QuarterlyEPSGrowth null.Float `json:"quarterly_eps_growth"`
	AnnualEPSGrowth    null.Float `json:"annual_eps_growth"`
	InstitutionalPct   null.Float `json:"institutional_pct"`

	// S1: raw relative strength
	RelativeStrength null.Float `json:"relative_strength"`

	// S2: 1~99
	PercentileRank null.Int `json:"percentile_rank"`

	// S3: composite 0~100 and sub-scores
	CompositeScore null.Int  `json:"composite_score"`
	Scores         SubScores `json:"scores"`

	UpdatedAt time.Time `json:"updated_at"`
}

// SubScores holds the seven CAN SLIM criterion scores (0~100 each)
type SubScores struct {
	C null.Int `json:"c"`
	A null.Int `json:"a"`
	N null.Int `json:"n"`
	S null.Int `json:"s"`
	L null.Int `json:"l"`
	I null.Int `json:"i"`
	M null.Int `json:"m"`
}

// IsComplete reports whether raw RS, percentile and composite are all present
func (s *ScoredSymbol) IsComplete() bool {
	return s.RelativeStrength.Valid && s.PercentileRank.Valid && s.CompositeScore.Valid
}

// DistanceFromHighPct returns how far price sits below the 52-week high, in percent
func (s *ScoredSymbol) DistanceFromHighPct() null.Float {
	if !s.Price.Valid || !s.High52W.Valid || s.High52W.Float64 <= 0 {
		return null.Float{}
	}
	return null.FloatFrom((s.High52W.Float64 - s.Price.Float64) / s.High52W.Float64 * 100)
}

// VolumeRatio returns volume over 50-day average volume
func (s *ScoredSymbol) VolumeRatio() null.Float {
	if !s.Volume.Valid || !s.AvgVolume50D.Valid || s.AvgVolume50D.Float64 <= 0 {
		return null.Float{}
	}
	return null.FloatFrom(float64(s.Volume.Int64) / s.AvgVolume50D.Float64)
}

// PercentileUpdate is one row of the ranking bulk update
type PercentileUpdate struct {
	Symbol         string
	PercentileRank int
}

// ScoreUpdate is one row of the scoring bulk update
type ScoreUpdate struct {
	Symbol         string
	CompositeScore int
	Scores         CANSLIM
}

// CANSLIM is a fully computed set of sub-scores
type CANSLIM struct {
	C, A, N, S, L, I, M int
}

// Sum returns C+A+N+S+L+I+M
func (c CANSLIM) Sum() int {
	return c.C + c.A + c.N + c.S + c.L + c.I + c.M
}

// ToSubScores converts to the nullable persisted form
func (c CANSLIM) ToSubScores() SubScores {
	return SubScores{
		C: null.IntFrom(int64(c.C)),
		A: null.IntFrom(int64(c.A)),
		N: null.IntFrom(int64(c.N)),
		S: null.IntFrom(int64(c.S)),
		L: null.IntFrom(int64(c.L)),
		I: null.IntFrom(int64(c.I)),
		M: null.IntFrom(int64(c.M)),
	}
}

// NormalizeSymbols upper-cases, trims and de-duplicates, keeping first-seen order
func NormalizeSymbols(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	return out
}
