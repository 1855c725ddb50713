package signals

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/canslim-screener/internal/contracts"
)

// flatBars returns n bars at `base` with the final close at `last`
func flatBars(n int, base, last float64) []contracts.Bar {
	start := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]contracts.Bar, n)
	for i := range bars {
		bars[i] = contracts.Bar{Date: start.AddDate(0, 0, i), Open: base, High: base, Low: base, Close: base, Volume: 1000}
	}
	bars[n-1].Close = last
	bars[n-1].High = last
	return bars
}

func TestPeriodReturn(t *testing.T) {
	bars := flatBars(30, 100, 120)

	r, err := PeriodReturn(bars, Sessions1M)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, r, 1e-9)

	_, err = PeriodReturn(bars, Sessions3M)
	assert.ErrorIs(t, err, contracts.ErrInsufficientHistory)
}

func TestComputePerformance(t *testing.T) {
	p, err := ComputePerformance(flatBars(MinHistorySessions, 100, 110))
	require.NoError(t, err)

	assert.InDelta(t, 10.0, p.Return1M, 1e-9)
	assert.InDelta(t, 10.0, p.Return12M, 1e-9)
	assert.InDelta(t, 10.0, p.Weighted, 1e-9)
}

func TestComputePerformance_Insufficient(t *testing.T) {
	_, err := ComputePerformance(flatBars(MinHistorySessions-1, 100, 110))
	assert.ErrorIs(t, err, contracts.ErrInsufficientHistory)
}

func TestWeightedPerformance(t *testing.T) {
	// 0.4×30 + 0.2×20 + 0.2×10 + 0.2×0 = 18
	assert.InDelta(t, 18.0, WeightedPerformance(30, 20, 10, 0), 1e-9)
}

func TestRelativeStrength(t *testing.T) {
	tests := []struct {
		name   string
		stock  float64
		bench  float64
		want   float64
		wantOK bool
	}{
		{"outperform", 20, 10, 109.0909, true},
		{"equal is 100", 12.5, 12.5, 100, true},
		{"underperform", -10, 10, 81.8181, true},
		{"benchmark at -100 undefined", 5, -100, 0, false},
		{"benchmark below -100 undefined", 5, -150, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs, ok := RelativeStrength(tt.stock, tt.bench)
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.InDelta(t, tt.want, rs, 1e-3)
			}
		})
	}
}

func TestRelativeStrength_EqualAlways100(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		w := rng.Float64()*300 - 99
		rs, ok := RelativeStrength(w, w)
		require.True(t, ok)
		assert.InDelta(t, 100.0, rs, 1e-9)
	}
}

func TestPercentile(t *testing.T) {
	assert.Equal(t, 99, Percentile(100, 100))
	assert.Equal(t, 1, Percentile(1, 100))
	assert.Equal(t, 50, Percentile(50, 100))
	assert.Equal(t, 99, Percentile(1, 1))
	assert.Equal(t, 1, Percentile(0, 10))
}

func TestRankPercentiles_TopOfHundred(t *testing.T) {
	rs, ok := RelativeStrength(20, 10)
	require.True(t, ok)

	values := []RSValue{{Symbol: "LEAD", RS: rs}}
	for i := 0; i < 99; i++ {
		values = append(values, RSValue{Symbol: fmt.Sprintf("S%02d", i), RS: 50 + float64(i)*0.5})
	}

	updates := RankPercentiles(values)
	require.Len(t, updates, 100)

	top := updates[len(updates)-1]
	assert.Equal(t, "LEAD", top.Symbol)
	assert.Equal(t, 99, top.PercentileRank)
	assert.Equal(t, 100, ScoreLeader(null.IntFrom(int64(top.PercentileRank))))
}

func TestRankPercentiles_BoundsAndMonotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for _, n := range []int{1, 2, 3, 17, 100, 503} {
		values := make([]RSValue, n)
		for i := range values {
			// 반올림으로 동점 발생
			values[i] = RSValue{Symbol: fmt.Sprintf("X%04d", i), RS: float64(rng.Intn(n/2+1)) + 80}
		}

		updates := RankPercentiles(values)
		require.Len(t, updates, n)

		byRS := make(map[string]float64, n)
		for _, v := range values {
			byRS[v.Symbol] = v.RS
		}
		sort.SliceStable(updates, func(i, j int) bool { return byRS[updates[i].Symbol] < byRS[updates[j].Symbol] })

		prev := 0
		for _, u := range updates {
			assert.GreaterOrEqual(t, u.PercentileRank, MinPercentile)
			assert.LessOrEqual(t, u.PercentileRank, MaxPercentile)
			assert.GreaterOrEqual(t, u.PercentileRank, prev, "n=%d", n)
			prev = u.PercentileRank
		}
	}
}

func TestRankPercentiles_TiesShare(t *testing.T) {
	updates := RankPercentiles([]RSValue{
		{"B", 105}, {"A", 105}, {"C", 90}, {"D", 120},
	})

	got := map[string]int{}
	for _, u := range updates {
		got[u.Symbol] = u.PercentileRank
	}
	assert.Equal(t, got["A"], got["B"])
	// C: pos 1/4 → 25, A/B: pos 3/4 → 74, D: pos 4/4 → 99
	assert.Equal(t, 25, got["C"])
	assert.Equal(t, 74, got["A"])
	assert.Equal(t, 99, got["D"])
	// ordered by (RS, symbol)
	assert.Equal(t, []string{"C", "A", "B", "D"}, []string{updates[0].Symbol, updates[1].Symbol, updates[2].Symbol, updates[3].Symbol})
}

func TestRankPercentiles_Empty(t *testing.T) {
	assert.Empty(t, RankPercentiles(nil))
}

func TestCriterionRules(t *testing.T) {
	tests := []struct {
		name string
		got  int
		want int
	}{
		{"C 50", ScoreEPSGrowth(null.FloatFrom(50)), 100},
		{"C 30", ScoreEPSGrowth(null.FloatFrom(30)), 80},
		{"C 0", ScoreEPSGrowth(null.FloatFrom(0)), 50},
		{"C negative", ScoreEPSGrowth(null.FloatFrom(-3)), 20},
		{"C missing", ScoreEPSGrowth(null.Float{}), 50},
		{"N at high", ScoreNewHigh(null.FloatFrom(0)), 100},
		{"N 3", ScoreNewHigh(null.FloatFrom(3)), 90},
		{"N 15", ScoreNewHigh(null.FloatFrom(15)), 70},
		{"N 25", ScoreNewHigh(null.FloatFrom(25)), 40},
		{"N 40", ScoreNewHigh(null.FloatFrom(40)), 20},
		{"S 2.0", ScoreVolume(null.FloatFrom(2.0)), 100},
		{"S 1.6", ScoreVolume(null.FloatFrom(1.6)), 80},
		{"S 1.0", ScoreVolume(null.FloatFrom(1.0)), 60},
		{"S 0.5", ScoreVolume(null.FloatFrom(0.5)), 40},
		{"L 90", ScoreLeader(null.IntFrom(90)), 100},
		{"L 85", ScoreLeader(null.IntFrom(85)), 80},
		{"L 70", ScoreLeader(null.IntFrom(70)), 60},
		{"L 50", ScoreLeader(null.IntFrom(50)), 40},
		{"L 49", ScoreLeader(null.IntFrom(49)), 20},
		{"I 50", ScoreInstitutional(null.FloatFrom(50)), 100},
		{"I 25", ScoreInstitutional(null.FloatFrom(25)), 80},
		{"I 10", ScoreInstitutional(null.FloatFrom(10)), 60},
		{"I 5", ScoreInstitutional(null.FloatFrom(5)), 40},
		{"I missing", ScoreInstitutional(null.Float{}), 50},
		{"M on", ScoreMarket(contracts.MarketRiskOn), 100},
		{"M neutral", ScoreMarket(contracts.MarketNeutral), 50},
		{"M off", ScoreMarket(contracts.MarketRiskOff), 20},
		{"M unknown", ScoreMarket(""), 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestEvaluateCANSLIM_MissingInstitutional(t *testing.T) {
	s := &contracts.ScoredSymbol{
		Symbol:             "NVDA",
		QuarterlyEPSGrowth: null.FloatFrom(30),
		AnnualEPSGrowth:    null.FloatFrom(30),
		Price:              null.FloatFrom(97),
		High52W:            null.FloatFrom(100),
		Volume:             null.IntFrom(1600),
		AvgVolume50D:       null.FloatFrom(1000),
		PercentileRank:     null.IntFrom(85),
	}

	c := EvaluateCANSLIM(s, contracts.MarketRiskOn)
	assert.Equal(t, contracts.CANSLIM{C: 80, A: 80, N: 90, S: 80, L: 80, I: 50, M: 100}, c)
	assert.Equal(t, 80, CompositeScore(c))
}

func TestCompositeScore_FloorAndBounds(t *testing.T) {
	assert.Equal(t, 0, CompositeScore(contracts.CANSLIM{}))
	assert.Equal(t, 100, CompositeScore(contracts.CANSLIM{C: 100, A: 100, N: 100, S: 100, L: 100, I: 100, M: 100}))
	// 699/7 = 99.86 → 99
	assert.Equal(t, 99, CompositeScore(contracts.CANSLIM{C: 100, A: 100, N: 100, S: 100, L: 100, I: 100, M: 99}))
	// 180/7 = 25.71 → 25
	assert.Equal(t, 25, CompositeScore(contracts.CANSLIM{C: 20, A: 20, N: 20, S: 40, L: 20, I: 40, M: 20}))
}

func TestSeriesHelpers(t *testing.T) {
	bars := flatBars(60, 10, 20)
	bars[10].Low = 5

	sma, err := SMA(bars, 10)
	require.NoError(t, err)
	assert.InDelta(t, 11.0, sma, 1e-9)

	avg, ok := AverageVolume(bars, 50)
	assert.True(t, ok)
	assert.InDelta(t, 1000.0, avg, 1e-9)

	high, low, ok := HighLow(bars, 252)
	assert.True(t, ok)
	assert.InDelta(t, 20.0, high, 1e-9)
	assert.InDelta(t, 5.0, low, 1e-9)
}

func TestClassifyMarket(t *testing.T) {
	rising := make([]contracts.Bar, 250)
	for i := range rising {
		rising[i] = contracts.Bar{Close: 100 + float64(i)}
	}
	r, err := ClassifyMarket(rising)
	require.NoError(t, err)
	assert.Equal(t, contracts.MarketRiskOn, r.Condition)

	falling := make([]contracts.Bar, 250)
	for i := range falling {
		falling[i] = contracts.Bar{Close: 400 - float64(i)}
	}
	r, err = ClassifyMarket(falling)
	require.NoError(t, err)
	assert.Equal(t, contracts.MarketRiskOff, r.Condition)

	// above SMA200 but below SMA50
	pullback := make([]contracts.Bar, 250)
	copy(pullback, rising)
	pullback[249].Close = 310
	r, err = ClassifyMarket(pullback)
	require.NoError(t, err)
	assert.Equal(t, contracts.MarketNeutral, r.Condition)

	_, err = ClassifyMarket(rising[:150])
	assert.ErrorIs(t, err, contracts.ErrInsufficientHistory)
}
