package contracts

import "time"

// BenchmarkRecord is the latest weighted performance snapshot for an index
// ⭐ SSOT: 지수 심볼당 최신 1건만 유지 (latest-wins)
type BenchmarkRecord struct {
	Symbol              string    `json:"symbol"`
	Return1M            float64   `json:"return_1m"`
	Return3M            float64   `json:"return_3m"`
	Return6M            float64   `json:"return_6m"`
	Return9M            float64   `json:"return_9m"`
	Return12M           float64   `json:"return_12m"`
	WeightedPerformance float64   `json:"weighted_performance"`
	RecordedAt          time.Time `json:"recorded_at"`
}

// IsFresh reports whether the record is no older than maxAge at now
func (b *BenchmarkRecord) IsFresh(now time.Time, maxAge time.Duration) bool {
	return now.Sub(b.RecordedAt) <= maxAge
}
