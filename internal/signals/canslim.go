package signals

import (
	"github.com/guregu/null/v6"

	"github.com/wonny/canslim-screener/internal/contracts"
)

// NeutralScore is used for any criterion whose input is missing
const NeutralScore = 50

// ScoreEPSGrowth scores C (quarterly) and A (annual) EPS growth %
func ScoreEPSGrowth(growth null.Float) int {
	if !growth.Valid {
		return NeutralScore
	}
	switch g := growth.Float64; {
	case g >= 50:
		return 100
	case g >= 25:
		return 80
	case g >= 0:
		return 50
	default:
		return 20
	}
}

// ScoreNewHigh scores N: distance below the 52-week high, lower is better
func ScoreNewHigh(distancePct null.Float) int {
	if !distancePct.Valid {
		return NeutralScore
	}
	switch d := distancePct.Float64; {
	case d <= 0:
		return 100
	case d <= 5:
		return 90
	case d <= 15:
		return 70
	case d <= 25:
		return 40
	default:
		return 20
	}
}

// ScoreVolume scores S: volume over 50-day average volume
func ScoreVolume(ratio null.Float) int {
	if !ratio.Valid {
		return NeutralScore
	}
	switch r := ratio.Float64; {
	case r >= 2.0:
		return 100
	case r >= 1.5:
		return 80
	case r >= 1.0:
		return 60
	default:
		return 40
	}
}

// ScoreLeader scores L: RS percentile rank 1~99
func ScoreLeader(percentile null.Int) int {
	if !percentile.Valid {
		return NeutralScore
	}
	switch p := percentile.Int64; {
	case p >= 90:
		return 100
	case p >= 80:
		return 80
	case p >= 70:
		return 60
	case p >= 50:
		return 40
	default:
		return 20
	}
}

// ScoreInstitutional scores I: institutional ownership %
func ScoreInstitutional(pct null.Float) int {
	if !pct.Valid {
		return NeutralScore
	}
	switch p := pct.Float64; {
	case p >= 50:
		return 100
	case p >= 25:
		return 80
	case p >= 10:
		return 60
	default:
		return 40
	}
}

// ScoreMarket scores M from the market condition
func ScoreMarket(m contracts.MarketCondition) int {
	switch m {
	case contracts.MarketRiskOn:
		return 100
	case contracts.MarketRiskOff:
		return 20
	default:
		return NeutralScore
	}
}

// EvaluateCANSLIM computes all seven sub-scores for one symbol
func EvaluateCANSLIM(s *contracts.ScoredSymbol, market contracts.MarketCondition) contracts.CANSLIM {
	return contracts.CANSLIM{
		C: ScoreEPSGrowth(s.QuarterlyEPSGrowth),
		A: ScoreEPSGrowth(s.AnnualEPSGrowth),
		N: ScoreNewHigh(s.DistanceFromHighPct()),
		S: ScoreVolume(s.VolumeRatio()),
		L: ScoreLeader(s.PercentileRank),
		I: ScoreInstitutional(s.InstitutionalPct),
		M: ScoreMarket(market),
	}
}

// CompositeScore is floor((C+A+N+S+L+I+M)/7)
func CompositeScore(c contracts.CANSLIM) int {
	return c.Sum() / 7
}
