package contracts

import (
	"fmt"
	"strings"
	"time"

	"github.com/guregu/null/v6"
)

// MarketCondition is the prevailing market regime used by the M criterion
type MarketCondition string

const (
	MarketRiskOn  MarketCondition = "Risk-On"
	MarketNeutral MarketCondition = "Neutral"
	MarketRiskOff MarketCondition = "Risk-Off"
)

// ParseMarketCondition accepts "Risk-On", "risk_on", "riskon" and similar spellings
func ParseMarketCondition(s string) (MarketCondition, error) {
	norm := strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToLower(s))
	switch norm {
	case "riskon":
		return MarketRiskOn, nil
	case "neutral":
		return MarketNeutral, nil
	case "riskoff":
		return MarketRiskOff, nil
	default:
		return "", fmt.Errorf("unknown market condition %q", s)
	}
}

// Quote is a current quote snapshot. Zero numeric values mean "not reported".
type Quote struct {
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	DayChangePct float64 `json:"day_change_pct"`
	Volume       int64   `json:"volume"`
	MarketCap    float64 `json:"market_cap"`
	High52W      float64 `json:"high_52w"`
	Low52W       float64 `json:"low_52w"`
}

// Fundamentals holds the per-symbol fundamentals used by C, A and I
// Growth and ownership figures are percentages (30 means 30%).
type Fundamentals struct {
	Symbol             string     `json:"symbol"`
	Industry           string     `json:"industry"`
	QuarterlyEPSGrowth null.Float `json:"quarterly_eps_growth"`
	AnnualEPSGrowth    null.Float `json:"annual_eps_growth"`
	InstitutionalPct   null.Float `json:"institutional_pct"`
}

// Bar is one OHLCV session
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Period is a history lookback window
type Period string

const (
	Period1Y Period = "1y"
	Period2Y Period = "2y"
)

// Years returns the lookback length in years
func (p Period) Years() int {
	switch p {
	case Period2Y:
		return 2
	default:
		return 1
	}
}

// Interval is a bar size
type Interval string

const (
	IntervalDaily  Interval = "1d"
	IntervalWeekly Interval = "1wk"
)

// HistoryQuery selects a window of bars ending at End (inclusive)
type HistoryQuery struct {
	Period   Period
	Interval Interval
	End      time.Time
}

// MarketSnapshot is a persisted market regime classification
type MarketSnapshot struct {
	Symbol     string          `json:"symbol"`
	Condition  MarketCondition `json:"condition"`
	Close      float64         `json:"close"`
	SMA50      float64         `json:"sma_50"`
	SMA200     float64         `json:"sma_200"`
	Source     string          `json:"source"` // computed, manual
	RecordedAt time.Time       `json:"recorded_at"`
}
