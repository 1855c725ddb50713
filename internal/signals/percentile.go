package signals

import (
	"sort"

	"github.com/wonny/canslim-screener/internal/contracts"
)

// Percentile bounds
const (
	MinPercentile = 1
	MaxPercentile = 99
)

// RSValue is one population member's raw relative strength
type RSValue struct {
	Symbol string
	RS     float64
}

// Percentile maps a rank position (count of members with RS ≤ the target)
// in a population of size n to floor(position/n × 98) + 1.
func Percentile(position, n int) int {
	if n <= 0 || position <= 0 {
		return MinPercentile
	}
	if position > n {
		position = n
	}
	return position*98/n + 1
}

// RankPercentiles assigns a 1~99 percentile to every member.
// Tied RS values share the same rank position, hence the same percentile.
// Output is ordered by (RS asc, symbol asc).
func RankPercentiles(values []RSValue) []contracts.PercentileUpdate {
	n := len(values)
	if n == 0 {
		return nil
	}

	sorted := make([]RSValue, n)
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].RS != sorted[j].RS {
			return sorted[i].RS < sorted[j].RS
		}
		return sorted[i].Symbol < sorted[j].Symbol
	})

	updates := make([]contracts.PercentileUpdate, n)
	for i := 0; i < n; {
		// 동일 RS 구간의 끝 = RS ≤ 값인 종목 수
		j := i
		for j < n && sorted[j].RS == sorted[i].RS {
			j++
		}
		pct := Percentile(j, n)
		for k := i; k < j; k++ {
			updates[k] = contracts.PercentileUpdate{Symbol: sorted[k].Symbol, PercentileRank: pct}
		}
		i = j
	}
	return updates
}
