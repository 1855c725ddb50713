package events

import (
	"strconv"
	"time"

	"github.com/wonny/canslim-screener/internal/contracts"
)

// Event envelope values understood by the alert-service consumer
const (
	EventTypeRankingUpdate = "ranking_update"
	EventSource            = "canslim-screener"
	SchemaVersion          = "1.0"

	SignalWatch = "WATCH"
	Criteria    = "canslim_composite"
)

// RankingEvent is the JSON envelope published to the rankings topic
type RankingEvent struct {
	EventType     string      `json:"event_type"`
	Source        string      `json:"source"`
	SchemaVersion string      `json:"schema_version"`
	Timestamp     time.Time   `json:"timestamp"`
	Data          RankingData `json:"data"`
}

type RankingData struct {
	SignalType   string          `json:"signal_type"`
	Criteria     string          `json:"criteria"`
	Timestamp    time.Time       `json:"timestamp"`
	TotalSymbols int             `json:"total_symbols"`
	Rankings     []SymbolRanking `json:"rankings"`
}

// SymbolRanking is one ranked symbol. RankingFactors carries the sub-scores.
type SymbolRanking struct {
	Symbol         string             `json:"symbol"`
	Rank           int                `json:"rank"`
	Score          float64            `json:"score"`
	SignalType     string             `json:"signal_type"`
	Confidence     float64            `json:"confidence"`
	Reasoning      string             `json:"reasoning"`
	RankingFactors map[string]float64 `json:"ranking_factors"`
}

// NewRankingEvent builds the event for the as-of date. top must already be
// ordered best first; rows without a composite score are dropped.
func NewRankingEvent(date time.Time, top []*contracts.ScoredSymbol, now time.Time) RankingEvent {
	rankings := make([]SymbolRanking, 0, len(top))
	for _, row := range top {
		if row == nil || !row.CompositeScore.Valid {
			continue
		}
		rankings = append(rankings, SymbolRanking{
			Symbol:         row.Symbol,
			Rank:           len(rankings) + 1,
			Score:          float64(row.CompositeScore.Int64),
			SignalType:     SignalWatch,
			Confidence:     float64(row.CompositeScore.Int64) / 100,
			Reasoning:      reasoning(row),
			RankingFactors: factors(row),
		})
	}

	return RankingEvent{
		EventType:     EventTypeRankingUpdate,
		Source:        EventSource,
		SchemaVersion: SchemaVersion,
		Timestamp:     now.UTC(),
		Data: RankingData{
			SignalType:   SignalWatch,
			Criteria:     Criteria,
			Timestamp:    date,
			TotalSymbols: len(rankings),
			Rankings:     rankings,
		},
	}
}

func factors(row *contracts.ScoredSymbol) map[string]float64 {
	out := make(map[string]float64, 9)
	put := func(key string, v int64, ok bool) {
		if ok {
			out[key] = float64(v)
		}
	}
	put("c", row.Scores.C.Int64, row.Scores.C.Valid)
	put("a", row.Scores.A.Int64, row.Scores.A.Valid)
	put("n", row.Scores.N.Int64, row.Scores.N.Valid)
	put("s", row.Scores.S.Int64, row.Scores.S.Valid)
	put("l", row.Scores.L.Int64, row.Scores.L.Valid)
	put("i", row.Scores.I.Int64, row.Scores.I.Valid)
	put("m", row.Scores.M.Int64, row.Scores.M.Valid)
	put("rs_percentile", row.PercentileRank.Int64, row.PercentileRank.Valid)
	if row.RelativeStrength.Valid {
		out["relative_strength"] = row.RelativeStrength.Float64
	}
	return out
}

func reasoning(row *contracts.ScoredSymbol) string {
	if row.PercentileRank.Valid {
		return "CAN SLIM composite " + itoa(row.CompositeScore.Int64) + ", RS percentile " + itoa(row.PercentileRank.Int64)
	}
	return "CAN SLIM composite " + itoa(row.CompositeScore.Int64)
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
