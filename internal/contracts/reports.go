package contracts

import (
	"fmt"
	"time"
)

// StageReport is the result payload of one stage execution
type StageReport interface {
	Stage() Stage
	// Capped returns a copy whose embedded error list holds at most max entries
	Capped(max int) StageReport
}

// BenchmarkReport is the output of the benchmark stage
type BenchmarkReport struct {
	Updated     int                `json:"updated"`
	Performance map[string]float64 `json:"performance"`
	ErrorSummary
}

func (r *BenchmarkReport) Stage() Stage { return StageBenchmark }

func (r *BenchmarkReport) Capped(max int) StageReport {
	c := *r
	c.ErrorSummary = r.ErrorSummary.Capped(max)
	return &c
}

// CollectionReport is the output of the collection stage
type CollectionReport struct {
	Date                 string  `json:"date"`
	Source               string  `json:"source"`
	BenchmarkSymbol      string  `json:"benchmark_symbol"`
	BenchmarkPerformance float64 `json:"benchmark_performance"`
	Processed            int     `json:"processed"`
	Succeeded            int     `json:"succeeded"`
	Failed               int     `json:"failed"`
	ErrorSummary
}

func (r *CollectionReport) Stage() Stage { return StageCollection }

func (r *CollectionReport) Capped(max int) StageReport {
	c := *r
	c.ErrorSummary = r.ErrorSummary.Capped(max)
	return &c
}

// RankingReport is the output of the ranking stage
type RankingReport struct {
	Date    string `json:"date"`
	Total   int    `json:"total"`
	Updated int    `json:"updated"`
	ErrorSummary
}

func (r *RankingReport) Stage() Stage { return StageRanking }

func (r *RankingReport) Capped(max int) StageReport {
	c := *r
	c.ErrorSummary = r.ErrorSummary.Capped(max)
	return &c
}

// ScoringReport is the output of the scoring stage
type ScoringReport struct {
	Date            string          `json:"date"`
	Total           int             `json:"total"`
	Updated         int             `json:"updated"`
	MarketCondition MarketCondition `json:"market_condition"`
	ErrorSummary
}

func (r *ScoringReport) Stage() Stage { return StageScoring }

func (r *ScoringReport) Capped(max int) StageReport {
	c := *r
	c.ErrorSummary = r.ErrorSummary.Capped(max)
	return &c
}

// DateKey formats an as-of date the way reports and cache keys carry it
func DateKey(d time.Time) string {
	return d.Format("2006-01-02")
}

// ParseDate parses a YYYY-MM-DD as-of date (UTC midnight)
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", s, err)
	}
	return d, nil
}

// MarketDate returns the calendar date of now in loc as a UTC midnight as-of date
func MarketDate(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}
