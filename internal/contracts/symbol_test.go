package contracts

import (
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
)

func TestScoredSymbolIsComplete(t *testing.T) {
	s := &ScoredSymbol{Symbol: "AAPL"}
	assert.False(t, s.IsComplete())

	s.RelativeStrength = null.FloatFrom(109.09)
	assert.False(t, s.IsComplete())

	s.PercentileRank = null.IntFrom(99)
	assert.False(t, s.IsComplete())

	s.CompositeScore = null.IntFrom(80)
	assert.True(t, s.IsComplete())
}

func TestDistanceFromHighPct(t *testing.T) {
	s := &ScoredSymbol{Price: null.FloatFrom(97), High52W: null.FloatFrom(100)}
	assert.InDelta(t, 3.0, s.DistanceFromHighPct().Float64, 1e-9)

	s.High52W = null.Float{}
	assert.False(t, s.DistanceFromHighPct().Valid)
}

func TestVolumeRatio(t *testing.T) {
	s := &ScoredSymbol{Volume: null.IntFrom(1600), AvgVolume50D: null.FloatFrom(1000)}
	assert.InDelta(t, 1.6, s.VolumeRatio().Float64, 1e-9)

	s.AvgVolume50D = null.FloatFrom(0)
	assert.False(t, s.VolumeRatio().Valid)
}

func TestCANSLIMSum(t *testing.T) {
	c := CANSLIM{C: 80, A: 80, N: 90, S: 80, L: 80, I: 50, M: 100}
	assert.Equal(t, 560, c.Sum())

	sub := c.ToSubScores()
	assert.Equal(t, int64(50), sub.I.Int64)
	assert.True(t, sub.M.Valid)
}

func TestParseMarketCondition(t *testing.T) {
	tests := []struct {
		in      string
		want    MarketCondition
		wantErr bool
	}{
		{"Risk-On", MarketRiskOn, false},
		{"risk_on", MarketRiskOn, false},
		{"NEUTRAL", MarketNeutral, false},
		{"risk off", MarketRiskOff, false},
		{"bullish", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMarketCondition(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		assert.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestNormalizeSymbols(t *testing.T) {
	got := NormalizeSymbols([]string{" aapl", "MSFT", "AAPL", "", "brk-b"})
	assert.Equal(t, []string{"AAPL", "MSFT", "BRK-B"}, got)
}

func TestMarketDate(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}

	// 01:30 UTC on the 17th is still the 16th in New York
	now := time.Date(2026, 10, 17, 1, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC), MarketDate(now, ny))
	assert.Equal(t, "2026-10-17", DateKey(MarketDate(now, time.UTC)))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-10-16")
	assert.NoError(t, err)
	assert.Equal(t, "2026-10-16", DateKey(d))

	_, err = ParseDate("10/16/2026")
	assert.Error(t, err)
}
