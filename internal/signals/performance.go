package signals

import (
	"fmt"

	"github.com/wonny/canslim-screener/internal/contracts"
)

// Session counts approximating calendar months
const (
	Sessions1M  = 21
	Sessions3M  = 63
	Sessions6M  = 126
	Sessions9M  = 189
	Sessions12M = 252

	// MinHistorySessions is the minimum history needed for a weighted performance
	MinHistorySessions = Sessions12M
)

// IBD-style weights for the weighted performance
const (
	Weight3M  = 0.40
	Weight6M  = 0.20
	Weight9M  = 0.20
	Weight12M = 0.20
)

// Performance holds period returns (percent) and the weighted performance
type Performance struct {
	Return1M  float64 `json:"return_1m"`
	Return3M  float64 `json:"return_3m"`
	Return6M  float64 `json:"return_6m"`
	Return9M  float64 `json:"return_9m"`
	Return12M float64 `json:"return_12m"`
	Weighted  float64 `json:"weighted"`
}

// PeriodReturn returns the percent change from the close `sessions` bars back
// (counting the latest bar) to the latest close. Bars are oldest first.
func PeriodReturn(bars []contracts.Bar, sessions int) (float64, error) {
	n := len(bars)
	if sessions <= 0 || n < sessions {
		return 0, fmt.Errorf("%w: need %d sessions, have %d", contracts.ErrInsufficientHistory, sessions, n)
	}

	past := bars[n-sessions].Close
	if past <= 0 {
		return 0, fmt.Errorf("non-positive close %.4f at %s", past, contracts.DateKey(bars[n-sessions].Date))
	}
	return (bars[n-1].Close/past - 1) * 100, nil
}

// WeightedPerformance is 0.40×r3m + 0.20×r6m + 0.20×r9m + 0.20×r12m
func WeightedPerformance(r3m, r6m, r9m, r12m float64) float64 {
	return Weight3M*r3m + Weight6M*r6m + Weight9M*r9m + Weight12M*r12m
}

// ComputePerformance derives all period returns and the weighted performance.
// Fewer than MinHistorySessions bars yields ErrInsufficientHistory.
func ComputePerformance(bars []contracts.Bar) (Performance, error) {
	if len(bars) < MinHistorySessions {
		return Performance{}, fmt.Errorf("%w: need %d sessions, have %d",
			contracts.ErrInsufficientHistory, MinHistorySessions, len(bars))
	}

	var p Performance
	var err error
	periods := []struct {
		sessions int
		dest     *float64
	}{
		{Sessions1M, &p.Return1M},
		{Sessions3M, &p.Return3M},
		{Sessions6M, &p.Return6M},
		{Sessions9M, &p.Return9M},
		{Sessions12M, &p.Return12M},
	}
	for _, period := range periods {
		if *period.dest, err = PeriodReturn(bars, period.sessions); err != nil {
			return Performance{}, err
		}
	}

	p.Weighted = WeightedPerformance(p.Return3M, p.Return6M, p.Return9M, p.Return12M)
	return p, nil
}

// RelativeStrength is (1 + stock/100) / (1 + benchmark/100) × 100.
// ok is false when benchmark ≤ -100 (undefined).
func RelativeStrength(stockWeighted, benchmarkWeighted float64) (rs float64, ok bool) {
	if benchmarkWeighted <= -100 {
		return 0, false
	}
	return (1 + stockWeighted/100) / (1 + benchmarkWeighted/100) * 100, true
}
